// Package markdown renders a chat transcript that may still be streaming.
//
// Render is a pure function of the transcript text: callers re-render the
// whole transcript after every update and keep no parse state in between.
package markdown

import (
	"bytes"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

type Kind string

const (
	KindHeading       Kind = "heading"
	KindParagraph     Kind = "paragraph"
	KindList          Kind = "list"
	KindListItem      Kind = "list_item"
	KindBlockquote    Kind = "blockquote"
	KindThematicBreak Kind = "thematic_break"
	KindCodeBlock     Kind = "code_block"
	KindHTML          Kind = "html"
	KindTable         Kind = "table"
	KindTableRow      Kind = "table_row"
	KindTableCell     Kind = "table_cell"
)

// DefaultLanguage tags fences without an info string.
const DefaultLanguage = "text"

type Token struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Node is one block of the render tree.
type Node struct {
	Kind Kind `json:"kind"`
	// Level is the heading level.
	Level   int  `json:"level,omitempty"`
	Ordered bool `json:"ordered,omitempty"`
	Header  bool `json:"header,omitempty"`
	// Text is the plain inline text of headings, paragraphs, cells and raw
	// HTML blocks.
	Text string `json:"text,omitempty"`

	Language string `json:"language,omitempty"`
	Code     string `json:"code,omitempty"`
	// Closed is false for a fence still waiting for its closing line.
	Closed bool    `json:"closed,omitempty"`
	Tokens []Token `json:"tokens,omitempty"`

	Children []*Node `json:"children,omitempty"`

	raw []chroma.Token
}

// CopyText is the text a copy button puts on the clipboard: the fenced code
// without its trailing newline. It is only offered for closed code blocks.
func (n *Node) CopyText() (string, bool) {
	if n.Kind != KindCodeBlock || !n.Closed {
		return "", false
	}
	return strings.TrimSuffix(n.Code, "\n"), true
}

type Document struct {
	Blocks []*Node `json:"blocks"`
	HTML   string  `json:"html"`
}

// nodeAttr links an AST code block to its render node.
const nodeAttr = "arena-node"

var md = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithParserOptions(
		// ahead of the stock fenced code parser at 700
		parser.WithBlockParsers(util.Prioritized(newFenceTracker(), 699)),
	),
	goldmark.WithRendererOptions(
		renderer.WithNodeRenderers(util.Prioritized(newBlockRenderer(), 100)),
	),
)

func Render(transcript string) *Document {
	src := []byte(transcript)
	root := md.Parser().Parse(text.NewReader(src))

	b := &builder{src: src}
	doc := &Document{}
	for c := root.FirstChild(); c != nil; c = c.NextSibling() {
		doc.Blocks = append(doc.Blocks, b.block(c))
	}
	b.markTrailingFence()

	var buf bytes.Buffer
	if err := md.Renderer().Render(&buf, src, root); err != nil {
		buf.Reset()
		buf.WriteString("<pre>")
		buf.Write(util.EscapeHTML(src))
		buf.WriteString("</pre>\n")
	}
	doc.HTML = buf.String()
	return doc
}

type fence struct {
	ast  *ast.FencedCodeBlock
	node *Node
}

type builder struct {
	src    []byte
	fences []fence
}

func (b *builder) children(n ast.Node) []*Node {
	var out []*Node
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		out = append(out, b.block(c))
	}
	return out
}

func (b *builder) block(n ast.Node) *Node {
	switch n := n.(type) {
	case *ast.Heading:
		return &Node{Kind: KindHeading, Level: n.Level, Text: plainText(n, b.src)}
	case *ast.Paragraph, *ast.TextBlock:
		return &Node{Kind: KindParagraph, Text: plainText(n, b.src)}
	case *ast.List:
		return &Node{Kind: KindList, Ordered: n.IsOrdered(), Children: b.children(n)}
	case *ast.ListItem:
		return &Node{Kind: KindListItem, Children: b.children(n)}
	case *ast.Blockquote:
		return &Node{Kind: KindBlockquote, Children: b.children(n)}
	case *ast.ThematicBreak:
		return &Node{Kind: KindThematicBreak}
	case *ast.FencedCodeBlock:
		lang := DefaultLanguage
		if l := strings.TrimSpace(string(n.Language(b.src))); l != "" {
			lang = l
		}
		node := codeNode(lang, linesText(n, b.src))
		n.SetAttributeString(nodeAttr, node)
		b.fences = append(b.fences, fence{ast: n, node: node})
		return node
	case *ast.CodeBlock:
		node := codeNode(DefaultLanguage, linesText(n, b.src))
		n.SetAttributeString(nodeAttr, node)
		return node
	case *ast.HTMLBlock:
		t := linesText(n, b.src)
		if n.HasClosure() {
			t += string(n.ClosureLine.Value(b.src))
		}
		return &Node{Kind: KindHTML, Text: strings.TrimRight(t, "\n")}
	case *east.Table:
		return &Node{Kind: KindTable, Children: b.children(n)}
	case *east.TableHeader:
		return &Node{Kind: KindTableRow, Header: true, Children: b.children(n)}
	case *east.TableRow:
		return &Node{Kind: KindTableRow, Children: b.children(n)}
	case *east.TableCell:
		return &Node{Kind: KindTableCell, Text: plainText(n, b.src)}
	default:
		return &Node{Kind: Kind(strings.ToLower(n.Kind().String())), Text: plainText(n, b.src)}
	}
}

// markTrailingFence opens the last fenced block when the transcript ends
// inside it. Every other fence is closed by definition.
func (b *builder) markTrailingFence() {
	if len(b.fences) == 0 {
		return
	}
	last := b.fences[len(b.fences)-1]
	if fenceOpen(last.ast) {
		last.node.Closed = false
	}
}

func codeNode(lang, code string) *Node {
	n := &Node{Kind: KindCodeBlock, Language: lang, Code: code, Closed: true}
	n.raw = tokenize(lang, code)
	n.Tokens = make([]Token, 0, len(n.raw))
	for _, t := range n.raw {
		n.Tokens = append(n.Tokens, Token{Type: t.Type.String(), Value: t.Value})
	}
	return n
}

func tokenize(lang, code string) []chroma.Token {
	lexer := lexers.Get(lang)
	if lexer == nil {
		lexer = lexers.Fallback
	}
	it, err := chroma.Coalesce(lexer).Tokenise(nil, code)
	if err != nil {
		return []chroma.Token{{Type: chroma.Text, Value: code}}
	}
	return it.Tokens()
}

// linesText joins a block's lines as they appear in src. goldmark forces a
// newline onto a code line cut off by the end of input; a streaming block
// must not show one the model has not sent yet.
func linesText(n ast.Node, src []byte) string {
	var sb strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		v := seg.Value(src)
		if seg.ForceNewline && seg.Stop >= len(src) && !bytes.HasSuffix(src, []byte("\n")) {
			v = bytes.TrimSuffix(v, []byte("\n"))
		}
		sb.Write(v)
	}
	return sb.String()
}

func plainText(n ast.Node, src []byte) string {
	var sb strings.Builder
	afterBox := false
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.Text:
			v := t.Segment.Value(src)
			if afterBox {
				v = bytes.TrimLeft(v, " ")
				afterBox = false
			}
			sb.Write(v)
			if t.SoftLineBreak() || t.HardLineBreak() {
				sb.WriteByte(' ')
			}
		case *ast.String:
			sb.Write(t.Value)
		case *ast.RawHTML:
			for i := 0; i < t.Segments.Len(); i++ {
				seg := t.Segments.At(i)
				sb.Write(seg.Value(src))
			}
		case *ast.AutoLink:
			sb.Write(t.Label(src))
			return ast.WalkSkipChildren, nil
		case *east.TaskCheckBox:
			if t.IsChecked {
				sb.WriteString("[x] ")
			} else {
				sb.WriteString("[ ] ")
			}
			afterBox = true
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(sb.String())
}
