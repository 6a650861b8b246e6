package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/coding-arena/internal/ai/aitest"
	"github.com/suPer8Hu/coding-arena/internal/auth"
	"github.com/suPer8Hu/coding-arena/internal/chat"
	"github.com/suPer8Hu/coding-arena/internal/chatclient"
	"github.com/suPer8Hu/coding-arena/internal/config"
	"github.com/suPer8Hu/coding-arena/internal/conversation"
	"github.com/suPer8Hu/coding-arena/internal/course"
	"github.com/suPer8Hu/coding-arena/internal/httpapi/handlers"
	"gorm.io/gorm"
)

func init() { gin.SetMode(gin.TestMode) }

const testSecret = "test-secret"

type fakePublisher struct {
	mu  sync.Mutex
	ids []string
	err error
}

func (p *fakePublisher) PublishJob(ctx context.Context, jobID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.ids = append(p.ids, jobID)
	return nil
}

type testEnv struct {
	srv  *httptest.Server
	prov *aitest.Scripted
	pub  *fakePublisher
	db   *gorm.DB
}

func newTestEnv(t *testing.T, prov *aitest.Scripted) *testEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(course.Models()...); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	cfg := config.Config{
		JWTSecret:      testSecret,
		AllowedOrigins: []string{"http://localhost:3000"},
	}
	gw := prov.Gateway()
	relay := chat.NewRelay(gw, chat.DefaultPolicy())
	courses := course.NewService(course.NewRepo(db), gw, chat.DefaultPolicy().Options, 5)
	pub := &fakePublisher{}

	r := NewRouter(handlers.NewHandler(cfg, relay, courses, pub), cfg, nil)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, prov: prov, pub: pub, db: db}
}

func (e *testEnv) post(t *testing.T, path, body string, header map[string]string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, e.srv.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post %s: %v", path, err)
	}
	return resp
}

func bearer(t *testing.T, uid uint64) map[string]string {
	t.Helper()
	tok, err := auth.SignToken(testSecret, uid, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return map[string]string{"Authorization": "Bearer " + tok}
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decodeEnvelope(t *testing.T, resp *http.Response) envelope {
	t.Helper()
	defer resp.Body.Close()
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return env
}

// Fragments arrive in order and the client rebuilds the answer.
func TestChatStream_RelaysFragments(t *testing.T) {
	env := newTestEnv(t, &aitest.Scripted{Fragments: []string{"Hel", "lo", "!"}, Delay: 20 * time.Millisecond})

	var updates []string
	conv := conversation.New(chatclient.New(env.srv.URL), "")
	s := conversation.NewStore().New()
	msg := conv.Send(context.Background(), s, "Say hi", func(x string) { updates = append(updates, x) }).Wait()

	if msg.Content != "Hello!" || msg.Status != conversation.StatusComplete {
		t.Fatalf("unexpected message %+v", msg)
	}
	if len(updates) == 0 || len(updates) > 3 {
		t.Fatalf("expected 1..3 updates, got %d: %q", len(updates), updates)
	}
	if env.prov.Calls() != 1 {
		t.Fatalf("expected exactly one gateway call, got %d", env.prov.Calls())
	}
}

func TestChatStream_Framing(t *testing.T) {
	env := newTestEnv(t, &aitest.Scripted{Fragments: []string{"a", "b"}})

	resp := env.post(t, "/api/v1/ai/chat-stream", `{"message":"hi"}`, map[string]string{"Origin": "http://localhost:3000"})
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	want := map[string]string{
		"Content-Type":                     "text/plain; charset=utf-8",
		"Cache-Control":                    "no-cache",
		"X-Accel-Buffering":                "no",
		"Access-Control-Allow-Origin":      "http://localhost:3000",
		"Access-Control-Allow-Credentials": "true",
	}
	for k, v := range want {
		if got := resp.Header.Get(k); got != v {
			t.Fatalf("%s = %q, want %q", k, got, v)
		}
	}
	if resp.StatusCode != http.StatusOK || string(body) != "ab" {
		t.Fatalf("status=%d body=%q", resp.StatusCode, body)
	}
	if resp.ContentLength != -1 {
		t.Fatalf("expected a streamed body without length, got %d", resp.ContentLength)
	}
}

// Validation happens before any gateway call.
func TestChatStream_RejectsEmptyMessage(t *testing.T) {
	env := newTestEnv(t, &aitest.Scripted{Fragments: []string{"x"}})

	for _, body := range []string{`{"message":""}`, `{}`, `{"message":"   "}`, ``, `{"message":5}`, `{"message":null}`, `{"message":`} {
		resp := env.post(t, "/api/v1/ai/chat-stream", body, nil)
		raw, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%q: expected 400, got %d", body, resp.StatusCode)
		}
		if strings.TrimSpace(string(raw)) != `{"error":"Message is required"}` {
			t.Fatalf("%q: unexpected body %s", body, raw)
		}
		if !strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
			t.Fatalf("%q: unexpected content type %q", body, resp.Header.Get("Content-Type"))
		}
	}
	if env.prov.Calls() != 0 {
		t.Fatalf("gateway called %d times", env.prov.Calls())
	}
}

// An upstream error before the first fragment is a 500 and the
// turn becomes an error bubble.
func TestChatStream_FailureBeforeFirstFragment(t *testing.T) {
	env := newTestEnv(t, &aitest.Scripted{Err: errors.New("upstream refused")})

	resp := env.post(t, "/api/v1/ai/chat-stream", `{"message":"hi"}`, nil)
	raw, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError || strings.TrimSpace(string(raw)) != `{"message":"Something went wrong"}` {
		t.Fatalf("status=%d body=%s", resp.StatusCode, raw)
	}

	conv := conversation.New(chatclient.New(env.srv.URL), "")
	s := conversation.NewStore().New()
	msg := conv.Send(context.Background(), s, "hi", nil).Wait()

	var se *chatclient.StatusError
	if msg.Status != conversation.StatusFailed || msg.Content != "" || !errors.As(msg.Err, &se) {
		t.Fatalf("expected error bubble, got %+v", msg)
	}
}

// The connection drops after one fragment. The client keeps
// that fragment and flags the turn as incomplete.
func TestChatStream_FailureAfterFirstFragment(t *testing.T) {
	env := newTestEnv(t, &aitest.Scripted{Fragments: []string{"Hel"}, Err: errors.New("connection reset"), FailAfter: 1})

	res, err := chatclient.New(env.srv.URL).Stream(context.Background(), chat.StreamRequest{Message: "hi"}, nil)
	if !errors.Is(err, chatclient.ErrIncomplete) {
		t.Fatalf("expected ErrIncomplete, got %v", err)
	}
	if res.Complete || res.Transcript != "Hel" {
		t.Fatalf("unexpected result %+v", res)
	}

	conv := conversation.New(chatclient.New(env.srv.URL), "")
	msg := conv.Send(context.Background(), conversation.NewStore().New(), "hi", nil).Wait()
	if msg.Status != conversation.StatusIncomplete || msg.Content != "Hel" {
		t.Fatalf("unexpected message %+v", msg)
	}
}

func TestChatStream_ClientDisconnectStopsUpstream(t *testing.T) {
	prov := &aitest.Scripted{Fragments: []string{"a"}, Hang: true}
	env := newTestEnv(t, prov)

	ctx, cancel := context.WithCancel(context.Background())
	_, err := chatclient.New(env.srv.URL).Stream(ctx, chat.StreamRequest{Message: "hi"}, func(string) { cancel() })
	if err == nil {
		t.Fatalf("expected an error after cancelling")
	}

	deadline := time.Now().Add(2 * time.Second)
	for !prov.Stopped() {
		if time.Now().After(deadline) {
			t.Fatalf("upstream was not cancelled")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestChatStream_RequireAuth(t *testing.T) {
	prov := &aitest.Scripted{Fragments: []string{"x"}}
	cfg := config.Config{JWTSecret: testSecret, ChatStreamRequireAuth: true}
	r := NewRouter(handlers.NewHandler(cfg, chat.NewRelay(prov.Gateway(), chat.DefaultPolicy()), nil, nil), cfg, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/ai/chat-stream", strings.NewReader(`{"message":"hi"}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized || prov.Calls() != 0 {
		t.Fatalf("status=%d calls=%d", w.Code, prov.Calls())
	}
}

func TestRouter_NotFoundAndPing(t *testing.T) {
	env := newTestEnv(t, &aitest.Scripted{})

	resp, err := http.Get(env.srv.URL + "/ping")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("ping: %d", resp.StatusCode)
	}

	resp, err = http.Get(env.srv.URL + "/nope")
	if err != nil {
		t.Fatal(err)
	}
	if e := decodeEnvelope(t, resp); resp.StatusCode != http.StatusNotFound || e.Code != 40400 {
		t.Fatalf("status=%d code=%d", resp.StatusCode, e.Code)
	}
}

func TestContent_RequiresAuth(t *testing.T) {
	env := newTestEnv(t, &aitest.Scripted{Fragments: []string{"# L"}})
	resp := env.post(t, "/api/v1/ai/generate-lesson", `{"topic":"go"}`, nil)
	if e := decodeEnvelope(t, resp); resp.StatusCode != http.StatusUnauthorized || e.Code != 40100 {
		t.Fatalf("status=%d code=%d", resp.StatusCode, e.Code)
	}
	if env.prov.Calls() != 0 {
		t.Fatalf("gateway should not be called")
	}
}

func TestContent_GenerateCourseAndFetch(t *testing.T) {
	env := newTestEnv(t, &aitest.Scripted{Fragments: []string{"1. Basics\n", "2. Next steps"}})
	h := bearer(t, 42)

	resp := env.post(t, "/api/v1/ai/generate-course", `{"topic":"Go","lessons":2}`, h)
	e := decodeEnvelope(t, resp)
	if resp.StatusCode != http.StatusOK || e.Code != 0 {
		t.Fatalf("status=%d env=%+v", resp.StatusCode, e)
	}
	var data struct {
		Course course.Course `json:"course"`
	}
	if err := json.Unmarshal(e.Data, &data); err != nil {
		t.Fatal(err)
	}
	if len(data.Course.Lessons) != 2 || env.prov.Calls() != 3 {
		t.Fatalf("lessons=%d calls=%d", len(data.Course.Lessons), env.prov.Calls())
	}

	req, _ := http.NewRequest(http.MethodGet, env.srv.URL+"/api/v1/courses/"+data.Course.ID, nil)
	req.Header.Set("Authorization", h["Authorization"])
	got, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	if e := decodeEnvelope(t, got); got.StatusCode != http.StatusOK || !bytes.Contains(e.Data, []byte(`"title":"Next steps"`)) {
		t.Fatalf("status=%d data=%s", got.StatusCode, e.Data)
	}

	req, _ = http.NewRequest(http.MethodGet, env.srv.URL+"/api/v1/courses/"+data.Course.ID, nil)
	req.Header.Set("Authorization", bearer(t, 7)["Authorization"])
	other, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	other.Body.Close()
	if other.StatusCode != http.StatusNotFound {
		t.Fatalf("other user should get 404, got %d", other.StatusCode)
	}
}

func TestContent_GenerateLessonValidation(t *testing.T) {
	env := newTestEnv(t, &aitest.Scripted{Fragments: []string{"# Closures\n\nbody"}})
	h := bearer(t, 1)

	resp := env.post(t, "/api/v1/ai/generate-lesson", `{"topic":" "}`, h)
	if e := decodeEnvelope(t, resp); resp.StatusCode != http.StatusBadRequest || e.Code != 10002 {
		t.Fatalf("status=%d code=%d", resp.StatusCode, e.Code)
	}

	resp = env.post(t, "/api/v1/ai/generate-lesson", `{"topic":"closures"}`, h)
	e := decodeEnvelope(t, resp)
	if resp.StatusCode != http.StatusOK || !bytes.Contains(e.Data, []byte(`"title":"Closures"`)) {
		t.Fatalf("status=%d data=%s", resp.StatusCode, e.Data)
	}
}

func TestContent_AsyncJobIsIdempotent(t *testing.T) {
	env := newTestEnv(t, &aitest.Scripted{Fragments: []string{"1. A"}})
	h := bearer(t, 9)
	h["Idempotency-Key"] = "abc"

	var ids []string
	for i := 0; i < 2; i++ {
		resp := env.post(t, "/api/v1/ai/generate-course/async", `{"topic":"Go"}`, h)
		e := decodeEnvelope(t, resp)
		var data struct {
			JobID string `json:"job_id"`
		}
		if err := json.Unmarshal(e.Data, &data); err != nil || data.JobID == "" {
			t.Fatalf("bad response %s: %v", e.Data, err)
		}
		ids = append(ids, data.JobID)
	}
	if ids[0] != ids[1] || len(env.pub.ids) != 1 || env.pub.ids[0] != ids[0] {
		t.Fatalf("ids=%v published=%v", ids, env.pub.ids)
	}
	if env.prov.Calls() != 0 {
		t.Fatalf("async endpoint must not call the model")
	}

	req, _ := http.NewRequest(http.MethodGet, env.srv.URL+"/api/v1/ai/jobs/"+ids[0], nil)
	req.Header.Set("Authorization", h["Authorization"])
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	if e := decodeEnvelope(t, resp); !bytes.Contains(e.Data, []byte(`"status":"queued"`)) {
		t.Fatalf("unexpected job %s", e.Data)
	}
}
