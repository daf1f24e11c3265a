package appstream

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// errNoRoot is returned when a document holds no element.
var errNoRoot = errors.New("no root element")

// Attr is a single attribute, kept in insertion order.
type Attr struct {
	Name  string
	Value string
}

// Element is a minimal ordered XML tree node.
type Element struct {
	Name     string
	Attrs    []Attr
	Text     string
	Children []*Element
}

// NewElement creates an element with no attributes or children.
func NewElement(name string) *Element {
	return &Element{Name: name}
}

// Set assigns an attribute, replacing an existing one with the same name.
func (e *Element) Set(name, value string) *Element {
	for i := range e.Attrs {
		if e.Attrs[i].Name == name {
			e.Attrs[i].Value = value

			return e
		}
	}

	e.Attrs = append(e.Attrs, Attr{Name: name, Value: value})

	return e
}

// Attr returns the value of an attribute.
func (e *Element) Attr(name string) (string, bool) {
	for _, attr := range e.Attrs {
		if attr.Name == name {
			return attr.Value, true
		}
	}

	return "", false
}

// Append adds child as the last child.
func (e *Element) Append(child *Element) {
	if child != nil {
		e.Children = append(e.Children, child)
	}
}

// SubElement appends and returns a new child.
func (e *Element) SubElement(name string) *Element {
	child := NewElement(name)
	e.Children = append(e.Children, child)

	return child
}

// AddText appends a child holding text.
func (e *Element) AddText(name, text string) *Element {
	child := e.SubElement(name)
	child.Text = text

	return child
}

// Find returns the first child with the given name.
func (e *Element) Find(name string) *Element {
	for _, child := range e.Children {
		if child.Name == name {
			return child
		}
	}

	return nil
}

// FindAll returns every child with the given name.
func (e *Element) FindAll(name string) []*Element {
	var result []*Element

	for _, child := range e.Children {
		if child.Name == name {
			result = append(result, child)
		}
	}

	return result
}

// Marshal renders the tree as an indented UTF-8 document with an XML declaration.
func Marshal(root *Element) ([]byte, error) {
	var buf bytes.Buffer

	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")

	declaration := xml.ProcInst{Target: "xml", Inst: []byte(`version="1.0" encoding="UTF-8"`)}
	if err := enc.EncodeToken(declaration); err != nil {
		return nil, fmt.Errorf("encode declaration: %w", err)
	}

	if err := encodeElement(enc, root); err != nil {
		return nil, err
	}

	if err := enc.Flush(); err != nil {
		return nil, fmt.Errorf("flush document: %w", err)
	}

	buf.WriteByte('\n')

	return buf.Bytes(), nil
}

func encodeElement(enc *xml.Encoder, e *Element) error {
	start := xml.StartElement{Name: xml.Name{Local: e.Name}}
	for _, attr := range e.Attrs {
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: attr.Name}, Value: attr.Value})
	}

	if err := enc.EncodeToken(start); err != nil {
		return fmt.Errorf("encode <%s>: %w", e.Name, err)
	}

	if e.Text != "" {
		if err := enc.EncodeToken(xml.CharData(e.Text)); err != nil {
			return fmt.Errorf("encode text of <%s>: %w", e.Name, err)
		}
	}

	for _, child := range e.Children {
		if err := encodeElement(enc, child); err != nil {
			return err
		}
	}

	if err := enc.EncodeToken(start.End()); err != nil {
		return fmt.Errorf("encode </%s>: %w", e.Name, err)
	}

	return nil
}

// Parse reads a document produced by Marshal. Whitespace-only text is dropped.
func Parse(data []byte) (*Element, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))

	var (
		root  *Element
		stack []*Element
	)

	for {
		token, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, fmt.Errorf("parse document: %w", err)
		}

		switch t := token.(type) {
		case xml.StartElement:
			el := NewElement(t.Name.Local)
			for _, attr := range t.Attr {
				el.Attrs = append(el.Attrs, Attr{Name: attr.Name.Local, Value: attr.Value})
			}

			if len(stack) > 0 {
				stack[len(stack)-1].Append(el)
			} else {
				root = el
			}

			stack = append(stack, el)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 && strings.TrimSpace(string(t)) != "" {
				stack[len(stack)-1].Text += string(t)
			}
		}
	}

	if root == nil {
		return nil, fmt.Errorf("parse document: %w", errNoRoot)
	}

	return root, nil
}
