package conv

import (
	"bytes"
	"strings"

	"github.com/gomarkdown/markdown/ast"
	"github.com/gomarkdown/markdown/parser"
)

var extensions = parser.CommonExtensions | parser.NoEmptyLineBeforeBlock

// MarkdownToSlack renders model-produced markdown as Slack mrkdwn:
// *bold*, _italic_, ~strike~, `code` and <url|text> links. Headings
// become bold lines, list items become bullets.
func MarkdownToSlack(md []byte) string {
	p := parser.NewWithExtensions(extensions)
	doc := p.Parse(md)

	var buf bytes.Buffer
	ast.WalkFunc(doc, func(node ast.Node, entering bool) ast.WalkStatus {
		switch n := node.(type) {
		case *ast.Text:
			if entering {
				buf.Write(n.Literal)
			}
		case *ast.Strong:
			buf.WriteString("*")
		case *ast.Emph:
			buf.WriteString("_")
		case *ast.Del:
			buf.WriteString("~")
		case *ast.Code:
			if entering {
				buf.WriteString("`")
				buf.Write(n.Literal)
				buf.WriteString("`")
			}
		case *ast.CodeBlock:
			if entering {
				buf.WriteString("```\n")
				buf.Write(n.Literal)
				buf.WriteString("```\n")
			}
		case *ast.Link:
			if entering {
				buf.WriteString("<")
				buf.Write(n.Destination)
				buf.WriteString("|")
			} else {
				buf.WriteString(">")
			}
		case *ast.Heading:
			if entering {
				buf.WriteString("*")
			} else {
				buf.WriteString("*\n\n")
			}
		case *ast.Paragraph:
			// Paragraphs inside list items stay on the bullet's line.
			if !entering {
				if _, inItem := node.GetParent().(*ast.ListItem); !inItem {
					buf.WriteString("\n\n")
				}
			}
		case *ast.ListItem:
			if entering {
				buf.WriteString("• ")
			} else {
				buf.WriteString("\n")
			}
		case *ast.List:
			if !entering {
				buf.WriteString("\n")
			}
		}
		return ast.GoToNext
	})

	return strings.TrimSpace(buf.String())
}
