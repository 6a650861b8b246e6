package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/suPer8Hu/coding-arena/internal/markdown"
)

var (
	headingColor = color.New(color.FgCyan, color.Bold)
	keywordColor = color.New(color.FgMagenta)
	stringColor  = color.New(color.FgGreen)
	numberColor  = color.New(color.FgYellow)
	nameColor    = color.New(color.FgBlue)
)

// WriteTerminal prints a rendered document for a plain terminal.
func WriteTerminal(w io.Writer, doc *markdown.Document) error {
	bw := bufio.NewWriter(w)
	for i, n := range doc.Blocks {
		if i > 0 {
			bw.WriteByte('\n')
		}
		writeBlock(bw, n, "")
	}
	return bw.Flush()
}

func writeBlock(w io.Writer, n *markdown.Node, indent string) {
	switch n.Kind {
	case markdown.KindHeading:
		headingColor.Fprintf(w, "%s%s %s\n", indent, strings.Repeat("#", n.Level), n.Text)
	case markdown.KindParagraph:
		fmt.Fprintf(w, "%s%s\n", indent, n.Text)
	case markdown.KindList:
		for i, item := range n.Children {
			bullet := "• "
			if n.Ordered {
				bullet = fmt.Sprintf("%d. ", i+1)
			}
			writeItem(w, item, indent, bullet)
		}
	case markdown.KindBlockquote:
		for _, c := range n.Children {
			writeBlock(w, c, indent+faintColor.Sprint("│ "))
		}
	case markdown.KindThematicBreak:
		faintColor.Fprintf(w, "%s%s\n", indent, strings.Repeat("─", 40))
	case markdown.KindCodeBlock:
		writeCode(w, n, indent)
	case markdown.KindHTML:
		faintColor.Fprintf(w, "%s%s\n", indent, n.Text)
	case markdown.KindTable:
		for _, row := range n.Children {
			cells := make([]string, 0, len(row.Children))
			for _, c := range row.Children {
				cells = append(cells, c.Text)
			}
			line := strings.Join(cells, " │ ")
			if row.Header {
				boldColor.Fprintf(w, "%s%s\n", indent, line)
			} else {
				fmt.Fprintf(w, "%s%s\n", indent, line)
			}
		}
	default:
		if n.Text != "" {
			fmt.Fprintf(w, "%s%s\n", indent, n.Text)
		}
	}
}

func writeItem(w io.Writer, item *markdown.Node, indent, bullet string) {
	pad := indent + strings.Repeat(" ", len([]rune(bullet)))
	for i, c := range item.Children {
		if i == 0 && (c.Kind == markdown.KindParagraph || c.Kind == markdown.KindHeading) {
			fmt.Fprintf(w, "%s%s%s\n", indent, bullet, c.Text)
			continue
		}
		if i == 0 {
			fmt.Fprintf(w, "%s%s\n", indent, bullet)
		}
		writeBlock(w, c, pad)
	}
	if len(item.Children) == 0 {
		fmt.Fprintf(w, "%s%s\n", indent, bullet)
	}
}

func writeCode(w io.Writer, n *markdown.Node, indent string) {
	header := "── " + n.Language + " "
	if !n.Closed {
		header += "(streaming) "
	}
	faintColor.Fprintf(w, "%s%s\n", indent, header+strings.Repeat("─", max(0, 40-len([]rune(header)))))

	var line strings.Builder
	flush := func() {
		fmt.Fprintf(w, "%s  %s\n", indent, line.String())
		line.Reset()
	}
	for _, t := range n.Tokens {
		c := tokenColor(t.Type)
		parts := strings.Split(t.Value, "\n")
		for i, p := range parts {
			if i > 0 {
				flush()
			}
			if p == "" {
				continue
			}
			if c != nil {
				line.WriteString(c.Sprint(p))
			} else {
				line.WriteString(p)
			}
		}
	}
	if line.Len() > 0 {
		flush()
	}
	faintColor.Fprintf(w, "%s%s\n", indent, strings.Repeat("─", 40))
}

func tokenColor(typ string) *color.Color {
	switch {
	case strings.HasPrefix(typ, "Keyword"):
		return keywordColor
	case strings.HasPrefix(typ, "LiteralString"):
		return stringColor
	case strings.HasPrefix(typ, "LiteralNumber"):
		return numberColor
	case strings.HasPrefix(typ, "Comment"):
		return faintColor
	case typ == "NameFunction" || typ == "NameBuiltin" || typ == "NameClass":
		return nameColor
	}
	return nil
}
