package cli

import (
	"fmt"
	"html"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/suPer8Hu/coding-arena/internal/markdown"
)

var renderOpts struct {
	output string
	title  string
}

var renderCmd = &cobra.Command{
	Use:   "render [file]",
	Short: "render Markdown to the terminal or to an HTML page",
	Long: `Render a Markdown answer with the same renderer the chat view uses.
Reads stdin when the file is "-" or omitted. With -o the result is written as
a standalone HTML page with code highlighting styles.`,
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
	RunE:         runRender,
}

func init() {
	renderCmd.Flags().StringVarP(&renderOpts.output, "output", "o", "", "write an HTML page to this file")
	renderCmd.Flags().StringVar(&renderOpts.title, "title", "", "HTML page title (defaults to the file name)")
}

func runRender(cmd *cobra.Command, args []string) error {
	var (
		src  []byte
		err  error
		name = "stdin"
	)
	if len(args) == 0 || args[0] == "-" {
		src, err = io.ReadAll(cmd.InOrStdin())
	} else {
		name = filepath.Base(args[0])
		src, err = os.ReadFile(args[0])
	}
	if err != nil {
		return fmt.Errorf("read markdown: %w", err)
	}

	doc := markdown.Render(string(src))
	if renderOpts.output == "" {
		return WriteTerminal(cmd.OutOrStdout(), doc)
	}

	title := renderOpts.title
	if title == "" {
		title = strings.TrimSuffix(name, filepath.Ext(name))
	}
	f, err := os.Create(renderOpts.output)
	if err != nil {
		return err
	}
	if err := writePage(f, title, doc); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	printSuccess(cmd.OutOrStdout(), "wrote %s", renderOpts.output)
	return nil
}

const pageStyle = `body { max-width: 820px; margin: 2rem auto; padding: 0 1rem; font: 16px/1.6 system-ui, sans-serif; color: #1f2328; }
.code-block { border: 1px solid #d0d7de; border-radius: 6px; margin: 1rem 0; overflow: hidden; }
.code-header { display: flex; justify-content: space-between; padding: .25rem .75rem; background: #f6f8fa; font-size: 12px; }
.code-block pre { margin: 0; padding: .75rem; overflow-x: auto; }
.code-block[data-state="streaming"] { border-style: dashed; }
pre.raw-html { background: #fff8c5; padding: .5rem; }
table { border-collapse: collapse; }
th, td { border: 1px solid #d0d7de; padding: .25rem .5rem; }
`

// writePage wraps a rendered document in a self-contained HTML page.
func writePage(w io.Writer, title string, doc *markdown.Document) error {
	if _, err := fmt.Fprintf(w, "<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>%s</title>\n<style>\n%s", html.EscapeString(title), pageStyle); err != nil {
		return err
	}
	if err := markdown.WriteCSS(w); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "</style>\n</head>\n<body>\n<article class=\"markdown\">\n%s</article>\n</body>\n</html>\n", doc.HTML)
	return err
}
