package dom

import (
	"errors"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/GriffinCanCode/pagehook/internal/classify"
)

var (
	ErrNotFound   = errors.New("element not found")
	ErrNilElement = errors.New("nil element")
	ErrHierarchy  = errors.New("hierarchy request error")
)

// Element is a handle on one node of a Document. Two handles on the same
// node are Equal.
type Element struct {
	doc  *Document
	node *html.Node
}

// Node exposes the underlying tree node. It is stable for the lifetime of
// the element and usable as a map key.
func (e *Element) Node() *html.Node {
	return e.node
}

// Document returns the owning document.
func (e *Element) Document() *Document {
	return e.doc
}

// Equal reports whether both handles refer to the same node.
func (e *Element) Equal(other *Element) bool {
	if e == nil || other == nil {
		return e == other
	}
	return e.node == other.node
}

// Tag returns the lower-case tag name.
func (e *Element) Tag() string {
	return strings.ToLower(e.node.Data)
}

// Attr returns the named attribute and whether it is present.
func (e *Element) Attr(name string) (string, bool) {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	return attr(e.node, name)
}

// AttrOr returns the named attribute or fallback when absent or empty.
func (e *Element) AttrOr(name, fallback string) string {
	if v, ok := e.Attr(name); ok && v != "" {
		return v
	}
	return fallback
}

// Has reports whether the named attribute is present.
func (e *Element) Has(name string) bool {
	_, ok := e.Attr(name)
	return ok
}

// SetAttr sets or replaces an attribute.
func (e *Element) SetAttr(name, value string) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()

	name = strings.ToLower(name)
	for i, a := range e.node.Attr {
		if strings.EqualFold(a.Key, name) && a.Namespace == "" {
			e.node.Attr[i].Val = value
			return
		}
	}
	e.node.Attr = append(e.node.Attr, html.Attribute{Key: name, Val: value})
}

// Text returns the concatenated text of all descendant text nodes.
func (e *Element) Text() string {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	return textContent(e.node)
}

// Name returns the "name" attribute.
func (e *Element) Name() string {
	v, _ := e.Attr("name")
	return v
}

// Parent returns the parent element, or nil for detached or root nodes.
func (e *Element) Parent() *Element {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()

	p := e.node.Parent
	if p == nil || p.Type != html.ElementNode {
		return nil
	}
	return e.doc.wrap(p)
}

// Closest returns e or its nearest ancestor with the given tag, or nil.
func (e *Element) Closest(tag string) *Element {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()

	tag = strings.ToLower(tag)
	for n := e.node; n != nil; n = n.Parent {
		if n.Type == html.ElementNode && strings.ToLower(n.Data) == tag {
			return e.doc.wrap(n)
		}
	}
	return nil
}

// Form returns the nearest enclosing form, or nil.
func (e *Element) Form() *Element {
	return e.Closest("form")
}

// Connected reports whether e is currently attached to its document.
func (e *Element) Connected() bool {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	return isAncestor(e.doc.root, e.node)
}

// Contains reports whether other is e or one of its descendants.
func (e *Element) Contains(other *Element) bool {
	if other == nil {
		return false
	}
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	return isAncestor(e.node, other.node)
}

// Matches reports whether e itself matches a CSS selector.
func (e *Element) Matches(selector string) bool {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	return goquery.NewDocumentFromNode(e.node).Is(selector)
}

// QueryAll returns the descendants of e matching a CSS selector.
func (e *Element) QueryAll(selector string) []*Element {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	return e.doc.find(e.node, selector)
}

// Href returns the resolved address of an <a> or <area> element with an
// href attribute, or "".
func (e *Element) Href() string {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	return e.href()
}

func (e *Element) href() string {
	switch strings.ToLower(e.node.Data) {
	case "a", "area":
	default:
		return ""
	}
	raw, ok := attr(e.node, "href")
	if !ok || strings.TrimSpace(raw) == "" {
		return ""
	}
	return e.doc.resolve(raw)
}

// Descriptor snapshots e for the classifier.
func (e *Element) Descriptor() classify.Descriptor {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()

	attrs := make(map[string]string, len(e.node.Attr))
	for _, a := range e.node.Attr {
		if a.Namespace == "" {
			attrs[strings.ToLower(a.Key)] = a.Val
		}
	}

	return classify.Descriptor{
		Tag:        strings.ToLower(e.node.Data),
		Type:       strings.ToLower(attrs["type"]),
		Attributes: attrs,
		Text:       textContent(e.node),
		Value:      attrs["value"],
		Class:      attrs["class"],
		ID:         attrs["id"],
		Href:       e.href(),
	}
}

// FormValues collects the successful controls of a form as name/value pairs,
// skipping file inputs and the control named exclude.
func (e *Element) FormValues(exclude string) map[string]string {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()

	values := make(map[string]string)
	goquery.NewDocumentFromNode(e.node).Find("input, select, textarea").Each(func(_ int, s *goquery.Selection) {
		name, ok := s.Attr("name")
		if !ok || name == "" || name == exclude {
			return
		}
		if _, disabled := s.Attr("disabled"); disabled {
			return
		}

		switch goquery.NodeName(s) {
		case "textarea":
			values[name] = s.Text()
		case "select":
			opt := s.Find("option[selected]").First()
			if opt.Length() == 0 {
				opt = s.Find("option").First()
			}
			if opt.Length() > 0 {
				values[name] = opt.AttrOr("value", strings.TrimSpace(opt.Text()))
			}
		default:
			switch strings.ToLower(s.AttrOr("type", "text")) {
			case "file", "submit", "button", "image", "reset":
				return
			case "checkbox", "radio":
				if _, checked := s.Attr("checked"); !checked {
					return
				}
				values[name] = s.AttrOr("value", "on")
			default:
				values[name] = s.AttrOr("value", "")
			}
		}
	})
	return values
}

func attr(n *html.Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, name) {
			return a.Val, true
		}
	}
	return "", false
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	walk(n, func(c *html.Node) bool {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
		return true
	})
	return sb.String()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
