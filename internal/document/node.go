package document

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Node is a typed descriptor that builds into an html.Node.
type Node interface {
	build(p *pass) *html.Node
}

// Text is character data. The renderer escapes it.
type Text string

func (t Text) build(*pass) *html.Node {
	return &html.Node{Type: html.TextNode, Data: string(t)}
}

// Raw is the body of a script or style element. It is written verbatim, so it
// must not contain the closing tag of its parent.
type Raw string

func (r Raw) build(*pass) *html.Node {
	return &html.Node{Type: html.TextNode, Data: string(r)}
}

// Handler binds a DOM event on an element to a controller action.
type Handler struct {
	Event  string
	Action string
	Args   []string
}

// Element is an element descriptor.
type Element struct {
	Tag      string
	Attrs    []html.Attribute
	Children []Node
	Handlers []Handler
}

// E creates an element. Nil children are skipped.
func E(tag string, children ...Node) *Element {
	return (&Element{Tag: tag}).Add(children...)
}

// Add appends children, skipping nil ones.
func (e *Element) Add(children ...Node) *Element {
	for _, c := range children {
		if isNil(c) {
			continue
		}
		e.Children = append(e.Children, c)
	}
	return e
}

func (e *Element) Attr(key, val string) *Element {
	e.Attrs = append(e.Attrs, html.Attribute{Key: key, Val: val})
	return e
}

func (e *Element) ID(id string) *Element { return e.Attr("id", id) }

func (e *Element) Class(class string) *Element { return e.Attr("class", class) }

func (e *Element) Hidden() *Element { return e.Attr("hidden", "") }

// On registers a handler. The binding pass assigns the element an index.
func (e *Element) On(event, action string, args ...string) *Element {
	if args == nil {
		args = []string{}
	}
	e.Handlers = append(e.Handlers, Handler{Event: event, Action: action, Args: args})
	return e
}

func (e *Element) build(p *pass) *html.Node {
	n := &html.Node{
		Type:     html.ElementNode,
		Data:     e.Tag,
		DataAtom: atom.Lookup([]byte(e.Tag)),
		Attr:     append([]html.Attribute(nil), e.Attrs...),
	}

	if len(e.Handlers) > 0 {
		idx := p.next
		p.next++
		n.Attr = append(n.Attr, html.Attribute{Key: "data-bind", Val: strconv.Itoa(idx)})
		for _, h := range e.Handlers {
			p.bindings = append(p.bindings, Binding{Index: idx, Event: h.Event, Action: h.Action, Args: h.Args})
		}
	}

	raw := e.Tag == "script" || e.Tag == "style"
	for _, c := range e.Children {
		switch v := c.(type) {
		case Raw:
			if !raw {
				p.fail(fmt.Errorf("raw content inside <%s>", e.Tag))
				continue
			}
			if strings.Contains(strings.ToLower(string(v)), "</"+e.Tag) {
				p.fail(fmt.Errorf("<%s> body contains its closing tag", e.Tag))
				continue
			}
		case Text:
			if raw {
				p.fail(fmt.Errorf("unescaped text inside <%s>", e.Tag))
				continue
			}
		}
		n.AppendChild(c.build(p))
	}
	return n
}

func isNil(n Node) bool {
	if n == nil {
		return true
	}
	el, ok := n.(*Element)
	return ok && el == nil
}

// Binding is one row of the event table read by the client controller.
type Binding struct {
	Index  int      `json:"index"`
	Event  string   `json:"event"`
	Action string   `json:"action"`
	Args   []string `json:"args"`
}

// pass numbers bound elements in document order and collects the first
// structural error.
type pass struct {
	next     int
	bindings []Binding
	err      error
}

func (p *pass) fail(err error) {
	if p.err == nil {
		p.err = err
	}
}
