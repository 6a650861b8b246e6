package markdown

import (
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
)

// fenceClosedAttr is set on a fenced code block whose closing fence was read.
const fenceClosedAttr = "arena-fence-closed"

// fenceTracker is goldmark's fenced code parser, recording on each block
// whether it ended on a closing fence rather than at the end of its
// container or of the input.
type fenceTracker struct {
	parser.BlockParser
}

func newFenceTracker() fenceTracker {
	return fenceTracker{BlockParser: parser.NewFencedCodeBlockParser()}
}

func (p fenceTracker) Continue(node ast.Node, reader text.Reader, pc parser.Context) parser.State {
	s := p.BlockParser.Continue(node, reader, pc)
	if s&parser.Close != 0 {
		node.SetAttributeString(fenceClosedAttr, true)
	}
	return s
}

// fenceOpen reports whether n is still waiting for its closing fence: it
// never read one and nothing in the document follows it.
func fenceOpen(n ast.Node) bool {
	if _, ok := n.AttributeString(fenceClosedAttr); ok {
		return false
	}
	for c := n; c != nil; c = c.Parent() {
		if c.NextSibling() != nil {
			return false
		}
	}
	return true
}
