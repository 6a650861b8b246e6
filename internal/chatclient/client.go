// Package chatclient consumes the chat-stream endpoint incrementally.
package chatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/suPer8Hu/coding-arena/internal/chat"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ErrIncomplete means the body ended abnormally after the stream started.
// The transcript in the accompanying Result is partial.
var ErrIncomplete = errors.New("chatclient: stream ended before completion")

// StatusError is a non-2xx answer received before any streamed content.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("chatclient: status %d", e.StatusCode)
	}
	return fmt.Sprintf("chatclient: status %d: %s", e.StatusCode, e.Message)
}

type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	// Token is sent as a bearer token when set.
	Token string
	// EndMarker must match the server's CHAT_STREAM_END_MARKER. When set, a
	// stream only counts as complete if it ends with the marker, which is
	// never shown to the caller.
	EndMarker string
}

func New(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		// no timeout; ctx bounds a stream
		HTTPClient: &http.Client{},
	}
}

type Result struct {
	Transcript string
	// Complete is true only when the body ended cleanly.
	Complete bool
	// Updates counts onUpdate calls.
	Updates int
}

// Stream sends one turn and reads the answer as it arrives. onUpdate, if not
// nil, receives the whole transcript so far after every read that added text.
func (c *Client) Stream(ctx context.Context, req chat.StreamRequest, onUpdate func(transcript string)) (Result, error) {
	var res Result

	body, err := json.Marshal(req)
	if err != nil {
		return res, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/v1/ai/chat-stream", bytes.NewReader(body))
	if err != nil {
		return res, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/plain")
	if c.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.Token)
	}

	hc := c.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(httpReq)
	if err != nil {
		return res, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return res, statusError(resp)
	}

	return c.consume(resp.Body, resp.Header.Get("Content-Type"), onUpdate)
}

// consume reads a committed body until it ends.
func (c *Client) consume(body io.Reader, contentType string, onUpdate func(string)) (Result, error) {
	var res Result

	enc, err := bodyEncoding(contentType)
	if err != nil {
		return res, err
	}
	r := transform.NewReader(body, enc.NewDecoder())

	var transcript strings.Builder
	shown := ""
	buf := make([]byte, 4096)
	for {
		n, readErr := r.Read(buf)
		if n > 0 {
			transcript.Write(buf[:n])
			if v := c.visible(transcript.String()); v != shown {
				shown = v
				res.Updates++
				if onUpdate != nil {
					onUpdate(shown)
				}
			}
		}
		if readErr == nil {
			continue
		}

		full := transcript.String()
		if errors.Is(readErr, io.EOF) {
			if c.EndMarker == "" {
				res.Transcript, res.Complete = full, true
				return res, nil
			}
			if strings.HasSuffix(full, c.EndMarker) {
				res.Transcript, res.Complete = strings.TrimSuffix(full, c.EndMarker), true
				return res, nil
			}
			res.Transcript = full
			return res, fmt.Errorf("%w: end marker missing", ErrIncomplete)
		}
		res.Transcript = full
		return res, fmt.Errorf("%w: %w", ErrIncomplete, readErr)
	}
}

// visible hides a trailing prefix of the end marker so it never flashes on
// screen while the marker is still arriving.
func (c *Client) visible(s string) string {
	m := c.EndMarker
	if m == "" {
		return s
	}
	for k := min(len(m), len(s)); k > 0; k-- {
		if strings.HasSuffix(s, m[:k]) {
			return s[:len(s)-k]
		}
	}
	return s
}

func bodyEncoding(contentType string) (encoding.Encoding, error) {
	if contentType == "" {
		return unicode.UTF8, nil
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, fmt.Errorf("chatclient: bad content type %q: %w", contentType, err)
	}
	charset := params["charset"]
	if charset == "" {
		return unicode.UTF8, nil
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, fmt.Errorf("chatclient: unsupported charset %q: %w", charset, err)
	}
	return enc, nil
}

func statusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	msg := strings.TrimSpace(string(raw))
	if json.Unmarshal(raw, &body) == nil {
		switch {
		case body.Error != "":
			msg = body.Error
		case body.Message != "":
			msg = body.Message
		}
	}
	return &StatusError{StatusCode: resp.StatusCode, Message: msg}
}
