package rabbitmq

import (
	"context"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/suPer8Hu/coding-arena/internal/logger"
)

type fakeAck struct {
	acked, nacked, requeued bool
}

func (f *fakeAck) Ack(bool) error { f.acked = true; return nil }
func (f *fakeAck) Nack(_, requeue bool) error {
	f.nacked, f.requeued = true, requeue
	return nil
}

func newTestConsumer(maxRetries int, handle HandlerFunc) *Consumer {
	return NewConsumer(ConsumerConfig{Queue: "q", MaxRetries: maxRetries}, logger.Discard(), handle)
}

func TestProcess_Success(t *testing.T) {
	var got string
	c := newTestConsumer(3, func(ctx context.Context, id string) error { got = id; return nil })
	a := &fakeAck{}
	c.process(context.Background(), 0, []byte(`{"job_id":"01J"}`), 0, a, nil)
	if got != "01J" || !a.acked || a.nacked {
		t.Fatalf("got=%q ack=%+v", got, a)
	}
}

func TestProcess_BadMessageDeadLetters(t *testing.T) {
	called := false
	c := newTestConsumer(3, func(context.Context, string) error { called = true; return nil })
	for _, body := range []string{`not json`, `{}`} {
		a := &fakeAck{}
		c.process(context.Background(), 0, []byte(body), 0, a, nil)
		if !a.nacked || a.requeued || a.acked {
			t.Fatalf("%s: ack=%+v", body, a)
		}
	}
	if called {
		t.Fatalf("handler should not run for bad messages")
	}
}

func TestProcess_RetryThenDeadLetter(t *testing.T) {
	c := newTestConsumer(2, func(context.Context, string) error { return errors.New("boom") })

	var sent []int
	republish := func(ctx context.Context, body []byte, retries int) error {
		sent = append(sent, retries)
		return nil
	}

	a := &fakeAck{}
	c.process(context.Background(), 0, []byte(`{"job_id":"j"}`), 1, a, republish)
	if !a.acked || len(sent) != 1 || sent[0] != 2 {
		t.Fatalf("expected retry with count 2: ack=%+v sent=%v", a, sent)
	}

	a = &fakeAck{}
	c.process(context.Background(), 0, []byte(`{"job_id":"j"}`), 2, a, republish)
	if !a.nacked || a.requeued || len(sent) != 1 {
		t.Fatalf("expected dead-letter after max retries: ack=%+v sent=%v", a, sent)
	}
}

func TestProcess_ShutdownRequeues(t *testing.T) {
	republish := func(context.Context, []byte, int) error {
		t.Fatalf("shutdown must not use the retry queue")
		return nil
	}

	// cancelled while the job runs
	ctx, cancel := context.WithCancel(context.Background())
	c := newTestConsumer(3, func(ctx context.Context, _ string) error {
		cancel()
		return ctx.Err()
	})
	a := &fakeAck{}
	c.process(ctx, 0, []byte(`{"job_id":"j"}`), 0, a, republish)
	if a.acked || !a.nacked || !a.requeued {
		t.Fatalf("in-flight job should be requeued: %+v", a)
	}

	// still buffered when the worker drains after cancellation
	called := false
	c = newTestConsumer(3, func(context.Context, string) error { called = true; return nil })
	a = &fakeAck{}
	c.process(ctx, 0, []byte(`{"job_id":"k"}`), 2, a, republish)
	if called || !a.nacked || !a.requeued {
		t.Fatalf("buffered job should be requeued without running: called=%v ack=%+v", called, a)
	}
}

func TestRetryCount(t *testing.T) {
	cases := []struct {
		h    amqp.Table
		want int
	}{
		{nil, 0},
		{amqp.Table{retryHeader: int32(2)}, 2},
		{amqp.Table{retryHeader: int64(4)}, 4},
		{amqp.Table{retryHeader: "x"}, 0},
	}
	for _, tc := range cases {
		if got := retryCount(tc.h); got != tc.want {
			t.Fatalf("retryCount(%v) = %d, want %d", tc.h, got, tc.want)
		}
	}
}
