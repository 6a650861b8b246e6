// Package aitest provides a scripted provider for tests.
package aitest

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/suPer8Hu/coding-arena/internal/ai"
)

// Scripted yields Fragments in order, sleeping Delay before each one.
// When Err is set it is returned after FailAfter fragments have been sent.
// Hang blocks after the fragments until the context ends.
type Scripted struct {
	Fragments []string
	Delay     time.Duration
	Err       error
	FailAfter int
	Hang      bool

	calls atomic.Int64

	mu       sync.Mutex
	last     []ai.Message
	lastOpts ai.Options
	sent     int
	stopped  bool
}

func (s *Scripted) Calls() int { return int(s.calls.Load()) }

func (s *Scripted) LastMessages() []ai.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ai.Message(nil), s.last...)
}

func (s *Scripted) LastOptions() ai.Options {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastOpts
}

// Sent is the number of fragments handed to the consumer by the last call.
func (s *Scripted) Sent() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent
}

// Stopped reports whether the last stream ended because its context was done.
func (s *Scripted) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

func (s *Scripted) record(messages []ai.Message, opts ai.Options) {
	s.calls.Add(1)
	s.mu.Lock()
	s.last = append([]ai.Message(nil), messages...)
	s.lastOpts = opts
	s.sent = 0
	s.stopped = false
	s.mu.Unlock()
}

func (s *Scripted) Chat(ctx context.Context, messages []ai.Message, opts ai.Options) (string, error) {
	s.record(messages, opts)
	if s.Err != nil {
		return "", s.Err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return strings.Join(s.Fragments, ""), nil
}

func (s *Scripted) StreamChat(ctx context.Context, messages []ai.Message, opts ai.Options) (<-chan string, <-chan error) {
	s.record(messages, opts)
	chunks := make(chan string)
	errs := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(errs)

		stop := func() {
			s.mu.Lock()
			s.stopped = true
			s.mu.Unlock()
			errs <- ctx.Err()
		}

		for i, f := range s.Fragments {
			if s.Err != nil && i == s.FailAfter {
				errs <- s.Err
				return
			}
			if s.Delay > 0 {
				select {
				case <-time.After(s.Delay):
				case <-ctx.Done():
					stop()
					return
				}
			}
			select {
			case chunks <- f:
				s.mu.Lock()
				s.sent++
				s.mu.Unlock()
			case <-ctx.Done():
				stop()
				return
			}
		}
		if s.Err != nil {
			errs <- s.Err
			return
		}
		if s.Hang {
			<-ctx.Done()
			stop()
		}
	}()

	return chunks, errs
}

// Registry returns a registry with the provider registered as "fake".
func (s *Scripted) Registry() *ai.Registry {
	reg := ai.NewRegistry()
	reg.Register("fake", func(ctx context.Context, model string) (ai.Provider, error) {
		return s, nil
	})
	return reg
}

// Gateway returns a gateway whose default provider is s.
func (s *Scripted) Gateway() *ai.Gateway {
	return ai.NewGateway(s.Registry(), "fake", "scripted")
}
