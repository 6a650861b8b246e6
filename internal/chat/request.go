package chat

import (
	"strings"
	"time"

	"github.com/suPer8Hu/coding-arena/internal/ai"
)

// Turn is one prior message carried by the client.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// StreamRequest is the body of one chat-stream call. The server keeps no
// session; History is everything the client wants the model to see.
type StreamRequest struct {
	Message string `json:"message"`
	History []Turn `json:"history"`
	Model   string `json:"model"`
}

const DefaultSystemPrompt = `You are the Coding Arena tutor, an expert programming teacher.
Answer thoroughly and in a structured way: use Markdown headings, bullet lists and tables where they help,
and put every code sample in a fenced code block tagged with its language.
Explain the reasoning behind the code, point out common mistakes, and finish with a short summary.`

// Policy is the process-wide relay configuration. It is read-only once the
// relay is built.
type Policy struct {
	SystemPrompt string
	Options      ai.Options
	// HistoryLimit keeps only the most recent turns; zero keeps all of them.
	HistoryLimit int
	// Timeout bounds one whole relay, first byte to last.
	Timeout time.Duration
	// EndMarker, when set, is written after the last fragment of a
	// successful stream so clients can tell truncation from a short answer.
	EndMarker string
}

func DefaultPolicy() Policy {
	return Policy{
		SystemPrompt: DefaultSystemPrompt,
		Options: ai.Options{
			Temperature:     0.7,
			TopP:            0.95,
			MaxOutputTokens: 8192,
		},
		Timeout: 5 * time.Minute,
	}
}

// BuildMessages lays out the outbound request: system directive, filtered
// history, then the new user message.
func BuildMessages(system string, history []Turn, message string, limit int) []ai.Message {
	kept := make([]ai.Message, 0, len(history))
	for _, t := range history {
		role := strings.ToLower(strings.TrimSpace(t.Role))
		if role != ai.RoleUser && role != ai.RoleAssistant {
			continue
		}
		if strings.TrimSpace(t.Content) == "" {
			continue
		}
		kept = append(kept, ai.Message{Role: role, Content: t.Content})
	}
	if limit > 0 && len(kept) > limit {
		kept = kept[len(kept)-limit:]
	}

	out := make([]ai.Message, 0, len(kept)+2)
	if strings.TrimSpace(system) != "" {
		out = append(out, ai.Message{Role: ai.RoleSystem, Content: system})
	}
	out = append(out, kept...)
	out = append(out, ai.Message{Role: ai.RoleUser, Content: message})
	return out
}
