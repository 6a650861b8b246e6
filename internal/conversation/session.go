// Package conversation keeps client-side chat sessions. The server holds no
// session state; every turn resends the history built here.
package conversation

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/suPer8Hu/coding-arena/internal/ai"
	"github.com/suPer8Hu/coding-arena/internal/chat"
)

type Status int

const (
	StatusStreaming Status = iota
	StatusComplete
	// StatusIncomplete keeps whatever text arrived before the stream broke.
	StatusIncomplete
	// StatusFailed is an error bubble with no content.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusStreaming:
		return "streaming"
	case StatusComplete:
		return "complete"
	case StatusIncomplete:
		return "incomplete"
	case StatusFailed:
		return "failed"
	}
	return "unknown"
}

type Message struct {
	Role      string
	Content   string
	Status    Status
	Err       error
	CreatedAt time.Time
}

var ErrSessionNotFound = errors.New("session not found")

type Session struct {
	ID        string
	CreatedAt time.Time

	mu       sync.Mutex
	title    string
	messages []*Message
}

func newSession() *Session {
	return &Session{ID: uuid.NewString(), CreatedAt: time.Now(), title: "New chat"}
}

func (s *Session) Title() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.title
}

// Messages returns a snapshot of the session.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	for i, m := range s.messages {
		out[i] = *m
	}
	return out
}

// BeginTurn records the user message and an empty assistant placeholder. It
// returns the history to send (everything before this turn with non-empty
// content) and the slot the answer must be written to.
func (s *Session) BeginTurn(text string) ([]chat.Turn, *Slot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := make([]chat.Turn, 0, len(s.messages))
	for _, m := range s.messages {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		history = append(history, chat.Turn{Role: m.Role, Content: m.Content})
	}

	if len(s.messages) == 0 {
		s.title = titleFrom(text)
	}
	now := time.Now()
	s.messages = append(s.messages, &Message{Role: ai.RoleUser, Content: text, Status: StatusComplete, CreatedAt: now})
	reply := &Message{Role: ai.RoleAssistant, Status: StatusStreaming, CreatedAt: now}
	s.messages = append(s.messages, reply)
	return history, &Slot{session: s, msg: reply}
}

func titleFrom(text string) string {
	t := strings.Join(strings.Fields(text), " ")
	if r := []rune(t); len(r) > 40 {
		t = string(r[:40]) + "…"
	}
	if t == "" {
		return "New chat"
	}
	return t
}

// Slot is the assistant message of one turn. Only the turn that created it
// writes to it.
type Slot struct {
	session *Session
	msg     *Message
}

// Update replaces the content with a longer transcript. Content only grows,
// and a finished slot is frozen.
func (sl *Slot) Update(transcript string) {
	sl.session.mu.Lock()
	defer sl.session.mu.Unlock()
	if sl.msg.Status != StatusStreaming || !strings.HasPrefix(transcript, sl.msg.Content) {
		return
	}
	sl.msg.Content = transcript
}

func (sl *Slot) Finish(status Status, err error) {
	sl.session.mu.Lock()
	defer sl.session.mu.Unlock()
	if sl.msg.Status != StatusStreaming {
		return
	}
	sl.msg.Status = status
	sl.msg.Err = err
	if status == StatusFailed {
		sl.msg.Content = ""
	}
}

func (sl *Slot) Message() Message {
	sl.session.mu.Lock()
	defer sl.session.mu.Unlock()
	return *sl.msg
}

// Store holds the sessions of one client and which one is selected.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	active   string
}

func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

// New creates a session and selects it.
func (st *Store) New() *Session {
	s := newSession()
	st.mu.Lock()
	defer st.mu.Unlock()
	st.sessions[s.ID] = s
	st.active = s.ID
	return s
}

func (st *Store) Get(id string) (*Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

func (st *Store) Select(id string) (*Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	st.active = id
	return s, nil
}

// Active returns the selected session, creating one on first use.
func (st *Store) Active() *Session {
	st.mu.Lock()
	s, ok := st.sessions[st.active]
	st.mu.Unlock()
	if ok {
		return s
	}
	return st.New()
}

// List returns sessions oldest first.
func (st *Store) List() []*Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	out := make([]*Session, 0, len(st.sessions))
	for _, s := range st.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (st *Store) Delete(id string) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(st.sessions, id)
	if st.active == id {
		st.active = ""
	}
	return nil
}

// Clear drops every session.
func (st *Store) Clear() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.sessions = make(map[string]*Session)
	st.active = ""
}
