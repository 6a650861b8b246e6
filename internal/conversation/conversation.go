package conversation

import (
	"context"
	"errors"
	"sync"

	"github.com/suPer8Hu/coding-arena/internal/chat"
	"github.com/suPer8Hu/coding-arena/internal/chatclient"
)

// Streamer sends one turn and reports the growing transcript.
type Streamer interface {
	Stream(ctx context.Context, req chat.StreamRequest, onUpdate func(string)) (chatclient.Result, error)
}

// Conversation runs turns one at a time. Starting a turn aborts the read
// loop of the previous one; the aborted turn keeps its partial text and is
// marked incomplete.
type Conversation struct {
	streamer Streamer
	model    string

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func New(streamer Streamer, model string) *Conversation {
	return &Conversation{streamer: streamer, model: model}
}

// Turn is a running exchange.
type Turn struct {
	Slot *Slot
	done chan struct{}
}

// Done is closed once the slot is finished.
func (t *Turn) Done() <-chan struct{} { return t.done }

// Wait blocks until the turn ends and returns its assistant message.
func (t *Turn) Wait() Message {
	<-t.done
	return t.Slot.Message()
}

// Send starts a turn in s. onUpdate, if set, sees every transcript update of
// this turn only.
func (c *Conversation) Send(ctx context.Context, s *Session, text string, onUpdate func(string)) *Turn {
	c.mu.Lock()
	defer c.mu.Unlock()

	// the previous turn is finished before this one reads the history
	if c.cancel != nil {
		c.cancel()
		<-c.done
	}

	history, slot := s.BeginTurn(text)
	turn := &Turn{Slot: slot, done: make(chan struct{})}
	tctx, cancel := context.WithCancel(ctx)
	c.cancel, c.done = cancel, turn.done

	req := chat.StreamRequest{Message: text, History: history, Model: c.model}
	go func() {
		defer close(turn.done)
		defer cancel()

		res, err := c.streamer.Stream(tctx, req, func(transcript string) {
			slot.Update(transcript)
			if onUpdate != nil {
				onUpdate(transcript)
			}
		})
		slot.Finish(finalStatus(res, err), err)
	}()
	return turn
}

// Close aborts the running turn, if any, and waits for it.
func (c *Conversation) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		<-c.done
		c.cancel, c.done = nil, nil
	}
}

func finalStatus(res chatclient.Result, err error) Status {
	if err == nil && res.Complete {
		return StatusComplete
	}
	var se *chatclient.StatusError
	if errors.As(err, &se) {
		return StatusFailed
	}
	if res.Transcript != "" {
		return StatusIncomplete
	}
	return StatusFailed
}
