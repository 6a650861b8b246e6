package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/coding-arena/internal/chat"
	"github.com/suPer8Hu/coding-arena/internal/chatclient"
)

// fakeStreamer emits "<message>1", "<message>2", ... for each request. A
// request whose message starts with "hang" blocks after its fragments until
// cancelled.
type fakeStreamer struct {
	fragments int
	err       error

	mu       sync.Mutex
	requests []chat.StreamRequest
	started  chan string
}

func (f *fakeStreamer) Stream(ctx context.Context, req chat.StreamRequest, onUpdate func(string)) (chatclient.Result, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if f.err != nil {
		return chatclient.Result{}, f.err
	}

	var transcript string
	for i := 1; i <= f.fragments; i++ {
		transcript += fmt.Sprintf("%s%d;", req.Message, i)
		onUpdate(transcript)
	}
	if f.started != nil {
		f.started <- req.Message
	}
	if strings.HasPrefix(req.Message, "hang") {
		<-ctx.Done()
		return chatclient.Result{Transcript: transcript}, fmt.Errorf("%w: %w", chatclient.ErrIncomplete, ctx.Err())
	}
	return chatclient.Result{Transcript: transcript, Complete: true}, nil
}

func TestSend_NewTurnAbortsPreviousWithoutCrossTalk(t *testing.T) {
	f := &fakeStreamer{fragments: 3, started: make(chan string, 2)}
	conv := New(f, "")
	s := NewStore().New()

	var aUpdates, bUpdates []string
	a := conv.Send(context.Background(), s, "hangA", func(x string) { aUpdates = append(aUpdates, x) })
	require.Equal(t, "hangA", <-f.started)

	b := conv.Send(context.Background(), s, "B", func(x string) { bUpdates = append(bUpdates, x) })
	require.Equal(t, "B", <-f.started)

	am, bm := a.Wait(), b.Wait()
	assert.Equal(t, "hangA1;hangA2;hangA3;", am.Content)
	assert.Equal(t, StatusIncomplete, am.Status)
	assert.Equal(t, "B1;B2;B3;", bm.Content)
	assert.Equal(t, StatusComplete, bm.Status)

	for _, u := range aUpdates {
		assert.NotContains(t, u, "B")
	}
	for _, u := range bUpdates {
		assert.NotContains(t, u, "hang")
	}

	msgs := s.Messages()
	require.Len(t, msgs, 4)
	assert.Equal(t, []string{"hangA", am.Content, "B", bm.Content},
		[]string{msgs[0].Content, msgs[1].Content, msgs[2].Content, msgs[3].Content})
}

func TestSend_HistoryExcludesEmptyMessages(t *testing.T) {
	f := &fakeStreamer{fragments: 1}
	conv := New(f, "ollama:llama3")
	s := NewStore().New()

	conv.Send(context.Background(), s, "first", nil).Wait()

	f.err = &chatclient.StatusError{StatusCode: 500, Message: "Something went wrong"}
	failed := conv.Send(context.Background(), s, "second", nil).Wait()
	assert.Equal(t, StatusFailed, failed.Status)
	assert.Empty(t, failed.Content)

	f.err = nil
	conv.Send(context.Background(), s, "third", nil).Wait()

	require.Len(t, f.requests, 3)
	assert.Empty(t, f.requests[0].History)
	assert.Equal(t, "ollama:llama3", f.requests[0].Model)
	assert.Equal(t, []chat.Turn{
		{Role: "user", Content: "first"},
		{Role: "assistant", Content: "first1;"},
		{Role: "user", Content: "second"},
	}, f.requests[2].History)
}

func TestFinalStatus(t *testing.T) {
	cases := []struct {
		name string
		res  chatclient.Result
		err  error
		want Status
	}{
		{"clean", chatclient.Result{Transcript: "hi", Complete: true}, nil, StatusComplete},
		{"empty answer", chatclient.Result{Complete: true}, nil, StatusComplete},
		{"rejected", chatclient.Result{}, &chatclient.StatusError{StatusCode: 500}, StatusFailed},
		{"dropped with text", chatclient.Result{Transcript: "Hel"}, chatclient.ErrIncomplete, StatusIncomplete},
		{"dropped before text", chatclient.Result{}, chatclient.ErrIncomplete, StatusFailed},
		{"connect error", chatclient.Result{}, errors.New("dial tcp: refused"), StatusFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, finalStatus(tc.res, tc.err))
		})
	}
}

func TestSlot_ContentOnlyGrows(t *testing.T) {
	s := NewStore().New()
	_, slot := s.BeginTurn("q")

	slot.Update("ab")
	slot.Update("x")
	slot.Update("abc")
	assert.Equal(t, "abc", slot.Message().Content)

	slot.Finish(StatusComplete, nil)
	slot.Update("abcd")
	slot.Finish(StatusFailed, errors.New("late"))
	m := slot.Message()
	assert.Equal(t, "abc", m.Content)
	assert.Equal(t, StatusComplete, m.Status)
}

func TestStore(t *testing.T) {
	st := NewStore()
	a := st.Active()
	b := st.New()
	assert.Same(t, b, st.Active())

	got, err := st.Select(a.ID)
	require.NoError(t, err)
	assert.Same(t, a, got)
	assert.Len(t, st.List(), 2)

	require.NoError(t, st.Delete(a.ID))
	assert.ErrorIs(t, st.Delete(a.ID), ErrSessionNotFound)
	_, err = st.Get(a.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	st.Clear()
	assert.Empty(t, st.List())
	assert.NotSame(t, b, st.Active())
}

func TestSessionTitle(t *testing.T) {
	s := NewStore().New()
	assert.Equal(t, "New chat", s.Title())
	s.BeginTurn("  How do   goroutines work?  ")
	s.BeginTurn("second question")
	assert.Equal(t, "How do goroutines work?", s.Title())
}
