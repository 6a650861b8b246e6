package markdown

import (
	"io"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/util"
)

// StyleName is the chroma style used by CSS.
const StyleName = "github"

// blockRenderer overrides goldmark's code and raw HTML output. Code blocks
// get token classes and a copy button; raw HTML is shown as escaped text.
type blockRenderer struct {
	formatter *chromahtml.Formatter
	style     *chroma.Style
}

func newBlockRenderer() *blockRenderer {
	return &blockRenderer{
		formatter: chromahtml.New(chromahtml.WithClasses(true)),
		style:     styles.Get(StyleName),
	}
}

func (r *blockRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(ast.KindFencedCodeBlock, r.renderCode)
	reg.Register(ast.KindCodeBlock, r.renderCode)
	reg.Register(ast.KindHTMLBlock, r.renderHTMLBlock)
	reg.Register(ast.KindRawHTML, r.renderRawHTML)
}

func (r *blockRenderer) renderCode(w util.BufWriter, src []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	v, ok := node.AttributeString(nodeAttr)
	n, _ := v.(*Node)
	if !ok || n == nil {
		n = codeNode(DefaultLanguage, linesText(node, src))
	}

	state := "closed"
	if !n.Closed {
		state = "streaming"
	}
	lang := util.EscapeHTML([]byte(n.Language))

	_, _ = w.WriteString(`<div class="code-block" data-lang="`)
	_, _ = w.Write(lang)
	_, _ = w.WriteString(`" data-state="` + state + `">` + "\n")
	_, _ = w.WriteString(`<div class="code-header"><span class="code-lang">`)
	_, _ = w.Write(lang)
	_, _ = w.WriteString(`</span>`)
	if text, ok := n.CopyText(); ok {
		_, _ = w.WriteString(`<button type="button" class="copy" data-copy="`)
		_, _ = w.Write(util.EscapeHTML([]byte(text)))
		_, _ = w.WriteString(`">Copy</button>`)
	}
	_, _ = w.WriteString("</div>\n")

	if err := r.formatter.Format(w, r.style, chroma.Literator(n.raw...)); err != nil {
		_, _ = w.WriteString("<pre><code>")
		_, _ = w.Write(util.EscapeHTML([]byte(n.Code)))
		_, _ = w.WriteString("</code></pre>")
	}
	_, _ = w.WriteString("\n</div>\n")
	return ast.WalkSkipChildren, nil
}

func (r *blockRenderer) renderHTMLBlock(w util.BufWriter, src []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	n := node.(*ast.HTMLBlock)
	_, _ = w.WriteString(`<pre class="raw-html">`)
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		_, _ = w.Write(util.EscapeHTML(seg.Value(src)))
	}
	if n.HasClosure() {
		_, _ = w.Write(util.EscapeHTML(n.ClosureLine.Value(src)))
	}
	_, _ = w.WriteString("</pre>\n")
	return ast.WalkSkipChildren, nil
}

func (r *blockRenderer) renderRawHTML(w util.BufWriter, src []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkSkipChildren, nil
	}
	n := node.(*ast.RawHTML)
	for i := 0; i < n.Segments.Len(); i++ {
		seg := n.Segments.At(i)
		_, _ = w.Write(util.EscapeHTML(seg.Value(src)))
	}
	return ast.WalkSkipChildren, nil
}

// WriteCSS writes the stylesheet for the token classes in rendered HTML.
func WriteCSS(w io.Writer) error {
	return newBlockRenderer().formatter.WriteCSS(w, styles.Get(StyleName))
}
