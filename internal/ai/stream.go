package ai

import "context"

// StreamProvider is an optional interface. Providers may implement streaming chat.
//
// The chunk channel yields fragments in production order. Both channels are
// closed when streaming ends; an error, if any, is sent before they close.
type StreamProvider interface {
	StreamChat(ctx context.Context, messages []Message, opts Options) (<-chan string, <-chan error)
}

// emit sends a fragment unless ctx is done first. It reports whether the
// caller should keep producing.
func emit(ctx context.Context, chunks chan<- string, s string) bool {
	select {
	case chunks <- s:
		return true
	case <-ctx.Done():
		return false
	}
}

// Collect drains a stream into a single string.
func Collect(chunks <-chan string, errs <-chan error) (string, error) {
	var out []byte
	for c := range chunks {
		out = append(out, c...)
	}
	if err := <-errs; err != nil {
		return string(out), err
	}
	return string(out), nil
}
