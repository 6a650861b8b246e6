package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/suPer8Hu/coding-arena/internal/chatclient"
	"github.com/suPer8Hu/coding-arena/internal/conversation"
	"github.com/suPer8Hu/coding-arena/internal/markdown"
)

var chatOpts struct {
	server    string
	token     string
	model     string
	endMarker string
	pretty    bool
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "start an interactive chat session",
	Long: `Start an interactive chat session against the chat-stream endpoint.

Answers are printed as they arrive. Ctrl-C while an answer is streaming stops
it and keeps the partial text; Ctrl-C at the prompt exits.`,
	Example: `  $ arena-cli chat
  $ arena-cli chat --model openrouter:openrouter/auto --pretty`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         runChat,
}

func init() {
	f := chatCmd.Flags()
	f.StringVarP(&chatOpts.server, "server", "s", envOr("ARENA_SERVER", "http://localhost:8080"), "API server base URL")
	f.StringVar(&chatOpts.token, "token", os.Getenv("ARENA_TOKEN"), "bearer token")
	f.StringVarP(&chatOpts.model, "model", "m", "", "model, optionally prefixed with a provider (provider:model)")
	f.StringVar(&chatOpts.endMarker, "end-marker", os.Getenv("CHAT_STREAM_END_MARKER"), "end-of-stream marker configured on the server")
	f.BoolVar(&chatOpts.pretty, "pretty", false, "render finished answers as formatted Markdown")
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func runChat(cmd *cobra.Command, args []string) error {
	client := chatclient.New(chatOpts.server)
	client.Token = chatOpts.token
	client.EndMarker = chatOpts.endMarker

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	defer signal.Stop(sig)

	r := &repl{
		conv:      conversation.New(client, chatOpts.model),
		store:     conversation.NewStore(),
		in:        cmd.InOrStdin(),
		out:       cmd.OutOrStdout(),
		pretty:    chatOpts.pretty,
		interrupt: sig,
	}
	printInfo(r.out, "connected to %s, type /help for commands", chatOpts.server)
	return r.run(cmd.Context())
}

// repl reads prompts and slash commands line by line.
type repl struct {
	conv   *conversation.Conversation
	store  *conversation.Store
	in     io.Reader
	out    io.Writer
	pretty bool
	// interrupt may be nil.
	interrupt <-chan os.Signal
}

const chatHelp = `commands:
  /new            start a new session
  /list           list sessions
  /switch <n>     select a session by number or id
  /delete <n>     delete a session
  /clear          delete every session
  /history        print the current session
  /quit           exit`

func (r *repl) run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	defer r.conv.Close()

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(r.in)
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()

	for {
		boldColor.Fprint(r.out, "you › ")
		var line string
		select {
		case l, ok := <-lines:
			if !ok {
				fmt.Fprintln(r.out)
				return nil
			}
			line = strings.TrimSpace(l)
		case <-r.interrupt:
			fmt.Fprintln(r.out)
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}

		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "/"):
			if quit := r.command(line); quit {
				return nil
			}
		default:
			r.ask(ctx, line)
		}
	}
}

// command runs a slash command and reports whether the loop should stop.
func (r *repl) command(line string) bool {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "/quit", "/exit":
		return true
	case "/help":
		fmt.Fprintln(r.out, chatHelp)
	case "/new":
		s := r.store.New()
		printSuccess(r.out, "new session %s", short(s.ID))
	case "/list":
		active := r.store.Active()
		for i, s := range r.store.List() {
			mark := " "
			if s == active {
				mark = "*"
			}
			title := s.Title()
			if len(s.Messages()) == 0 {
				title = "(empty)"
			}
			fmt.Fprintf(r.out, "%s %d  %s  %s\n", mark, i+1, short(s.ID), title)
		}
	case "/switch":
		s, err := r.lookup(arg)
		if err == nil {
			_, err = r.store.Select(s.ID)
		}
		if err != nil {
			printError(r.out, "%v", err)
			break
		}
		printSuccess(r.out, "switched to %s", short(s.ID))
	case "/delete":
		s, err := r.lookup(arg)
		if err == nil {
			err = r.store.Delete(s.ID)
		}
		if err != nil {
			printError(r.out, "%v", err)
			break
		}
		printSuccess(r.out, "deleted %s", short(s.ID))
	case "/clear":
		r.conv.Close()
		r.store.Clear()
		printSuccess(r.out, "all sessions deleted")
	case "/history":
		for _, m := range r.store.Active().Messages() {
			boldColor.Fprintf(r.out, "%s › ", m.Role)
			fmt.Fprintln(r.out, m.Content)
		}
	default:
		printWarning(r.out, "unknown command %s, type /help", name)
	}
	return false
}

// lookup accepts a 1-based position from /list, a full id or an id prefix.
func (r *repl) lookup(arg string) (*conversation.Session, error) {
	if arg == "" {
		return nil, errors.New("session number or id required")
	}
	list := r.store.List()
	if n, err := strconv.Atoi(arg); err == nil {
		if n < 1 || n > len(list) {
			return nil, conversation.ErrSessionNotFound
		}
		return list[n-1], nil
	}
	for _, s := range list {
		if strings.HasPrefix(s.ID, arg) {
			return s, nil
		}
	}
	return nil, conversation.ErrSessionNotFound
}

func (r *repl) ask(ctx context.Context, text string) {
	s := r.store.Active()
	p := &livePrinter{w: r.out, progress: r.pretty}

	boldColor.Fprint(r.out, "assistant › ")
	turn := r.conv.Send(ctx, s, text, p.update)
	select {
	case <-turn.Done():
	case <-r.interrupt:
		r.conv.Close()
	}
	msg := turn.Wait()
	p.finish()

	if r.pretty && msg.Content != "" {
		if err := WriteTerminal(r.out, markdown.Render(msg.Content)); err != nil {
			printError(r.out, "render: %v", err)
		}
	}

	switch msg.Status {
	case conversation.StatusIncomplete:
		printWarning(r.out, "answer interrupted, partial text kept")
	case conversation.StatusFailed:
		printError(r.out, "%s", failureText(msg.Err))
	}
}

func failureText(err error) string {
	var se *chatclient.StatusError
	if errors.As(err, &se) && se.Message != "" {
		return se.Message
	}
	if err != nil {
		return err.Error()
	}
	return "no answer"
}

// livePrinter echoes the growing transcript. In progress mode it only shows
// a character count and leaves the text to the final render.
type livePrinter struct {
	w        io.Writer
	progress bool
	n        int
}

func (p *livePrinter) update(transcript string) {
	if p.progress {
		faintColor.Fprintf(p.w, "\rreceiving… %d chars", len([]rune(transcript)))
		p.n = len(transcript)
		return
	}
	if len(transcript) > p.n {
		io.WriteString(p.w, transcript[p.n:])
		p.n = len(transcript)
	}
}

func (p *livePrinter) finish() {
	if p.progress {
		if p.n > 0 {
			io.WriteString(p.w, "\r\033[K")
		} else {
			fmt.Fprintln(p.w)
		}
		return
	}
	fmt.Fprintln(p.w)
}

func short(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
