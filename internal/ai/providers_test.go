package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestOllamaStreamChat_YieldsContentInOrder(t *testing.T) {
	var got ollamaChatReq
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		flusher := w.(http.Flusher)
		for _, part := range []string{"Hel", "lo", "!"} {
			fmt.Fprintf(w, `{"message":{"role":"assistant","content":%q},"done":false}`+"\n", part)
			flusher.Flush()
		}
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":""},"done":true}`)
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "llama3:latest")
	chunks, errs := p.StreamChat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, Options{Temperature: 0.7, MaxOutputTokens: 100})

	var parts []string
	for c := range chunks {
		parts = append(parts, c)
	}
	if err := <-errs; err != nil {
		t.Fatalf("stream error: %v", err)
	}
	if strings.Join(parts, "|") != "Hel|lo|!" {
		t.Fatalf("unexpected fragments: %v", parts)
	}
	if !got.Stream || got.Model != "llama3:latest" {
		t.Fatalf("unexpected request: %+v", got)
	}
	if got.Options == nil || got.Options.NumPredict != 100 || got.Options.Temperature != 0.7 {
		t.Fatalf("options not forwarded: %+v", got.Options)
	}
}

func TestOllamaStreamChat_TruncatedBodyIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"partial"},"done":false}`)
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "")
	out, err := Collect(p.StreamChat(context.Background(), nil, Options{}))
	if err == nil {
		t.Fatalf("expected error for stream without done record")
	}
	if out != "partial" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestOllamaChat_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "")
	if _, err := p.Chat(context.Background(), nil, Options{}); err == nil {
		t.Fatalf("expected status error")
	}
}

func TestOpenRouterStreamChat_ParsesSSE(t *testing.T) {
	var got openRouterChatReq
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "Bearer sk-test" {
			t.Errorf("Authorization = %q", auth)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		fmt.Fprint(w, ": OPENROUTER PROCESSING\n\n")
		for _, part := range []string{"a", "b"} {
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", part)
			flusher.Flush()
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	p := NewOpenRouterProvider(srv.URL, "sk-test", "openrouter/auto", "", "arena")
	out, err := Collect(p.StreamChat(context.Background(), []Message{{Role: RoleUser, Content: "x"}}, Options{TopP: 0.9}))
	if err != nil {
		t.Fatalf("stream error: %v", err)
	}
	if out != "ab" {
		t.Fatalf("unexpected output %q", out)
	}
	if got.TopP != 0.9 || !got.Stream {
		t.Fatalf("unexpected request: %+v", got)
	}
}

func TestOpenRouterChat_RequiresAPIKey(t *testing.T) {
	p := NewOpenRouterProvider("", "", "m", "", "")
	if _, err := p.Chat(context.Background(), nil, Options{}); err == nil {
		t.Fatalf("expected api key error")
	}
	_, err := Collect(p.StreamChat(context.Background(), nil, Options{}))
	if err == nil {
		t.Fatalf("expected api key error from stream")
	}
}

func TestOpenRouterStreamChat_StopsOnCancel(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"first\"}}]}\n\n")
		flusher.Flush()
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	p := NewOpenRouterProvider(srv.URL, "k", "m", "", "")
	chunks, errs := p.StreamChat(ctx, nil, Options{})

	if first := <-chunks; first != "first" {
		t.Fatalf("unexpected first chunk %q", first)
	}
	cancel()

	select {
	case <-errs:
	case <-time.After(2 * time.Second):
		t.Fatalf("stream did not stop after cancel")
	}
}
