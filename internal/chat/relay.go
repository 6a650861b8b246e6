package chat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/suPer8Hu/coding-arena/internal/ai"
	"github.com/suPer8Hu/coding-arena/internal/logger"
)

type State int

const (
	StateIdle State = iota
	StateBuildingPrompt
	StateStreaming
	StateCompleted
	StateFailedBeforeStream
	StateFailedDuringStream
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBuildingPrompt:
		return "building_prompt"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateFailedBeforeStream:
		return "failed_before_stream"
	case StateFailedDuringStream:
		return "failed_during_stream"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

var (
	ErrValidation          = errors.New("message is required")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrUpstreamInterrupted = errors.New("upstream interrupted")
	ErrClientDisconnect    = errors.New("client disconnected")
)

const (
	ValidationMessage = "Message is required"
	FailureMessage    = "Something went wrong"
)

// Responder is a response whose headers have not been sent. It can either
// finish with a structured error or commit to streaming.
type Responder interface {
	Reject(status int, body any)
	// Commit sends the streaming headers. The Responder must not be used
	// after Commit returns.
	Commit() (Stream, error)
}

// Stream is a committed response. Only fragments can be written to it.
type Stream interface {
	// Write sends one fragment and flushes it to the connection.
	Write(fragment string) error
}

// Resolver turns a model name into a fragment producer.
type Resolver interface {
	ResolveStream(ctx context.Context, model string) (ai.StreamProvider, error)
}

type Outcome struct {
	State     State
	Fragments int
	Bytes     int
	Err       error
}

type Relay struct {
	resolver Resolver
	policy   Policy
}

func NewRelay(resolver Resolver, policy Policy) *Relay {
	return &Relay{resolver: resolver, policy: policy}
}

// Run drives one request from validation to stream termination. A
// FailedDuringStream outcome means the response was committed and must be
// terminated abnormally by the transport.
func (r *Relay) Run(ctx context.Context, req StreamRequest, resp Responder) Outcome {
	start := time.Now()
	out := r.run(ctx, req, resp)

	log := logger.FromContext(ctx).With(
		"state", out.State.String(),
		"fragments", out.Fragments,
		"bytes", out.Bytes,
		"model", req.Model,
		"cost", time.Since(start).String(),
	)
	switch {
	case out.Err == nil:
		log.Info("chat stream finished")
	case errors.Is(out.Err, ErrValidation):
		log.Warn("chat stream rejected", "error", out.Err)
	default:
		log.Error("chat stream failed", "error", out.Err)
	}
	return out
}

func (r *Relay) run(parent context.Context, req StreamRequest, resp Responder) Outcome {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		resp.Reject(http.StatusBadRequest, map[string]string{"error": ValidationMessage})
		return Outcome{State: StateFailedBeforeStream, Err: ErrValidation}
	}

	// building prompt
	msgs := BuildMessages(r.policy.SystemPrompt, req.History, message, r.policy.HistoryLimit)
	provider, err := r.resolver.ResolveStream(parent, req.Model)
	if err != nil {
		return r.failBefore(resp, fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err))
	}

	var ctx context.Context
	var cancel context.CancelFunc
	if r.policy.Timeout > 0 {
		ctx, cancel = context.WithTimeout(parent, r.policy.Timeout)
	} else {
		ctx, cancel = context.WithCancel(parent)
	}
	// cancelling stops the producer when we leave early
	defer cancel()

	chunks, errs := provider.StreamChat(ctx, msgs, r.policy.Options)

	first, ok, err := next(ctx, chunks, errs)
	if err != nil {
		if parent.Err() != nil {
			// nobody left to answer
			return Outcome{State: StateFailedBeforeStream, Err: fmt.Errorf("%w: %w", ErrClientDisconnect, parent.Err())}
		}
		return r.failBefore(resp, fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err))
	}

	stream, err := resp.Commit()
	if err != nil {
		return Outcome{State: StateFailedBeforeStream, Err: fmt.Errorf("%w: %w", ErrClientDisconnect, err)}
	}
	out := Outcome{State: StateStreaming}

	for ok {
		if err := stream.Write(first); err != nil {
			out.State = StateFailedDuringStream
			out.Err = fmt.Errorf("%w: %w", ErrClientDisconnect, err)
			return out
		}
		out.Fragments++
		out.Bytes += len(first)

		first, ok, err = next(ctx, chunks, errs)
		if err != nil {
			out.State = StateFailedDuringStream
			if parent.Err() != nil {
				out.Err = fmt.Errorf("%w: %w", ErrClientDisconnect, parent.Err())
			} else {
				out.Err = fmt.Errorf("%w: %w", ErrUpstreamInterrupted, err)
			}
			return out
		}
	}

	if r.policy.EndMarker != "" {
		if err := stream.Write(r.policy.EndMarker); err != nil {
			out.State = StateFailedDuringStream
			out.Err = fmt.Errorf("%w: %w", ErrClientDisconnect, err)
			return out
		}
	}
	out.State = StateCompleted
	return out
}

func (r *Relay) failBefore(resp Responder, err error) Outcome {
	resp.Reject(http.StatusInternalServerError, map[string]string{"message": FailureMessage})
	return Outcome{State: StateFailedBeforeStream, Err: err}
}

// next waits for the next non-empty fragment. ok is false once the producer
// finished cleanly.
func next(ctx context.Context, chunks <-chan string, errs <-chan error) (string, bool, error) {
	for {
		select {
		case f, open := <-chunks:
			if !open {
				if err := <-errs; err != nil {
					return "", false, err
				}
				if err := ctx.Err(); err != nil {
					return "", false, err
				}
				return "", false, nil
			}
			if f == "" {
				continue
			}
			return f, true, nil
		case <-ctx.Done():
			return "", false, ctx.Err()
		}
	}
}
