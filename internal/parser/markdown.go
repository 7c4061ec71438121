package parser

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// parseMarkdown drops markup and keeps the text, one block per paragraph.
// Link targets and images are omitted; code blocks are kept verbatim.
func parseMarkdown(data []byte) (string, error) {
	source := bytes.TrimPrefix(data, utf8BOM)
	doc := markdown.Parser().Parse(text.NewReader(source))

	var b strings.Builder
	breakBlock := func() {
		s := b.String()
		if s != "" && !strings.HasSuffix(s, "\n\n") {
			if strings.HasSuffix(s, "\n") {
				b.WriteByte('\n')
			} else {
				b.WriteString("\n\n")
			}
		}
	}

	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if _, ok := n.(*extast.TableCell); ok && n.NextSibling() != nil {
				b.WriteString(" | ")
			}
			if _, ok := n.(*extast.TableRow); ok {
				b.WriteByte('\n')
			}
			if _, ok := n.(*extast.TableHeader); ok {
				b.WriteByte('\n')
			}
			return ast.WalkContinue, nil
		}

		switch node := n.(type) {
		case *ast.Document:
			return ast.WalkContinue, nil
		case *ast.Image, *ast.HTMLBlock, *ast.RawHTML, *ast.ThematicBreak:
			return ast.WalkSkipChildren, nil
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			breakBlock()
			lines := node.Lines()
			for i := 0; i < lines.Len(); i++ {
				segment := lines.At(i)
				b.Write(segment.Value(source))
			}
			return ast.WalkSkipChildren, nil
		case *ast.AutoLink:
			b.Write(node.Label(source))
			return ast.WalkSkipChildren, nil
		case *ast.Text:
			b.Write(node.Segment.Value(source))
			if node.SoftLineBreak() || node.HardLineBreak() {
				b.WriteByte('\n')
			}
			return ast.WalkContinue, nil
		case *ast.String:
			b.Write(node.Value)
			return ast.WalkContinue, nil
		case *extast.TableRow, *extast.TableHeader, *extast.TableCell:
			return ast.WalkContinue, nil
		}

		if n.Type() == ast.TypeBlock {
			breakBlock()
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return "", err
	}
	return b.String(), nil
}
