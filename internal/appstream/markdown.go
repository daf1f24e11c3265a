package appstream

import (
	"strings"
	"sync"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

//nolint:gochecknoglobals // The parser is stateless between Parse calls.
var (
	markdownOnce   sync.Once
	markdownParser goldmark.Markdown
)

func getMarkdown() goldmark.Markdown {
	markdownOnce.Do(func() {
		markdownParser = goldmark.New()
	})

	return markdownParser
}

// FromMarkdown converts markdown into an AppStream <description>.
// Paragraphs and headings become <p>, lists become <ul> or <ol> of <li>.
// Inline markup is flattened to text and nested lists are folded into
// the outermost one, as AppStream descriptions allow neither.
func FromMarkdown(markdown string) *Element {
	source := []byte(markdown)
	doc := getMarkdown().Parser().Parse(text.NewReader(source))

	b := &descriptionBuilder{
		source: source,
		root:   NewElement("description"),
	}

	//nolint:errcheck // The walker never returns an error.
	ast.Walk(doc, b.walk)

	return b.root
}

type descriptionBuilder struct {
	source []byte
	root   *Element
	// list is the outermost open list.
	list  *Element
	depth int
	// items is the stack of open list items.
	items  []*Element
	inline strings.Builder
}

func (b *descriptionBuilder) walk(node ast.Node, entering bool) (ast.WalkStatus, error) {
	switch node.Kind() {
	case ast.KindList:
		b.flush()

		if entering {
			b.depth++
			if b.depth == 1 {
				name := "ul"
				if list, ok := node.(*ast.List); ok && list.IsOrdered() {
					name = "ol"
				}

				b.list = b.root.SubElement(name)
			}
		} else {
			b.depth--
			if b.depth == 0 {
				b.list = nil
			}
		}

	case ast.KindListItem:
		b.flush()

		if entering {
			b.items = append(b.items, b.list.SubElement("li"))
		} else {
			b.items = b.items[:len(b.items)-1]
		}

	case ast.KindParagraph, ast.KindTextBlock, ast.KindHeading:
		b.flush()

	case ast.KindFencedCodeBlock, ast.KindCodeBlock:
		if entering {
			b.flush()

			lines := node.Lines()
			for i := range lines.Len() {
				segment := lines.At(i)
				b.write(strings.TrimSpace(string(segment.Value(b.source))))
				b.write(" ")
			}

			b.flush()
		}

		return ast.WalkSkipChildren, nil

	case ast.KindHTMLBlock, ast.KindRawHTML:
		return ast.WalkSkipChildren, nil

	case ast.KindText:
		if entering {
			if t, ok := node.(*ast.Text); ok {
				b.write(string(t.Segment.Value(b.source)))

				if t.SoftLineBreak() || t.HardLineBreak() {
					b.write(" ")
				}
			}
		}

	case ast.KindString:
		if entering {
			if s, ok := node.(*ast.String); ok {
				b.write(string(s.Value))
			}
		}

	case ast.KindAutoLink:
		if entering {
			if link, ok := node.(*ast.AutoLink); ok {
				b.write(string(link.URL(b.source)))
			}
		}

		return ast.WalkSkipChildren, nil
	}

	return ast.WalkContinue, nil
}

func (b *descriptionBuilder) write(s string) {
	b.inline.WriteString(s)
}

// flush moves accumulated inline text into the open list item or a new paragraph.
func (b *descriptionBuilder) flush() {
	content := strings.Join(strings.Fields(b.inline.String()), " ")
	b.inline.Reset()

	if content == "" {
		return
	}

	if len(b.items) > 0 {
		item := b.items[len(b.items)-1]
		if item.Text != "" {
			item.Text += " "
		}

		item.Text += content

		return
	}

	b.root.AddText("p", content)
}
