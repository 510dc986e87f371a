package dom

import (
	"bytes"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"github.com/saintfish/chardet"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/net/html/charset"
)

// Document is the host page's tree. All methods are safe for concurrent use;
// listeners and mutation callbacks always run without the tree lock held.
type Document struct {
	mu   sync.RWMutex
	root *html.Node
	url  *url.URL

	nextListener atomic.Uint64
	docListeners map[string][]listenerEntry
	elListeners  map[*html.Node]map[string][]listenerEntry

	subs map[*Subscription]struct{}
}

// Parse builds a document from an HTML snapshot served at pageURL. Non UTF-8
// input is transcoded using the detected charset.
func Parse(r io.Reader, pageURL string) (*Document, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid page url: %w", err)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read page: %w", err)
	}

	root, err := html.Parse(decode(data))
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}

	return &Document{
		root:         root,
		url:          u,
		docListeners: make(map[string][]listenerEntry),
		elListeners:  make(map[*html.Node]map[string][]listenerEntry),
		subs:         make(map[*Subscription]struct{}),
	}, nil
}

// ParseString is Parse for an in-memory snapshot.
func ParseString(src, pageURL string) (*Document, error) {
	return Parse(strings.NewReader(src), pageURL)
}

func decode(data []byte) io.Reader {
	if utf8.Valid(data) {
		return bytes.NewReader(data)
	}

	result, err := chardet.NewHtmlDetector().DetectBest(data)
	if err != nil {
		return bytes.NewReader(data)
	}

	r, err := charset.NewReaderLabel(result.Charset, bytes.NewReader(data))
	if err != nil {
		return bytes.NewReader(data)
	}
	return r
}

// URL returns a copy of the page address.
func (d *Document) URL() *url.URL {
	d.mu.RLock()
	defer d.mu.RUnlock()

	u := *d.url
	return &u
}

// SetURL moves the document to a new address (same-document navigation).
func (d *Document) SetURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}

	d.mu.Lock()
	d.url = d.url.ResolveReference(u)
	d.mu.Unlock()
	return nil
}

// ResolveURL resolves raw against the page address, returning raw unchanged
// when it cannot be parsed.
func (d *Document) ResolveURL(raw string) string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.resolve(raw)
}

func (d *Document) resolve(raw string) string {
	ref, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return raw
	}
	return d.url.ResolveReference(ref).String()
}

// Root returns the document node wrapper.
func (d *Document) Root() *Element {
	return d.wrap(d.root)
}

// Body returns the <body> element, or nil.
func (d *Document) Body() *Element {
	return d.first(atom.Body)
}

// Head returns the <head> element, or nil.
func (d *Document) Head() *Element {
	return d.first(atom.Head)
}

func (d *Document) first(a atom.Atom) *Element {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var found *html.Node
	walk(d.root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.DataAtom == a {
			found = n
			return false
		}
		return true
	})
	return d.wrap(found)
}

// QueryAll returns the elements matching a CSS selector in document order.
func (d *Document) QueryAll(selector string) []*Element {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.find(d.root, selector)
}

func (d *Document) find(root *html.Node, selector string) []*Element {
	var out []*Element
	goquery.NewDocumentFromNode(root).Find(selector).Each(func(_ int, s *goquery.Selection) {
		out = append(out, d.wrap(s.Get(0)))
	})
	return out
}

// XPath returns the first element matching expr. The host shell addresses
// elements this way.
func (d *Document) XPath(expr string) (*Element, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	n, err := htmlquery.Query(d.root, expr)
	if err != nil {
		return nil, fmt.Errorf("invalid xpath %q: %w", expr, err)
	}
	if n == nil || n.Type != html.ElementNode {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, expr)
	}
	return d.wrap(n), nil
}

// BaseTargetBlank reports whether the document declares
// <base target="_blank"> in its head.
func (d *Document) BaseTargetBlank() bool {
	return len(d.QueryAll(`head base[target="_blank"]`)) > 0
}

// HTML renders the current tree.
func (d *Document) HTML() string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var buf bytes.Buffer
	if err := html.Render(&buf, d.root); err != nil {
		return ""
	}
	return buf.String()
}

// CreateElement returns a detached element.
func (d *Document) CreateElement(tag string, attrs map[string]string) *Element {
	n := &html.Node{
		Type:     html.ElementNode,
		Data:     strings.ToLower(tag),
		DataAtom: atom.Lookup([]byte(strings.ToLower(tag))),
	}
	for _, key := range sortedKeys(attrs) {
		n.Attr = append(n.Attr, html.Attribute{Key: key, Val: attrs[key]})
	}
	return d.wrap(n)
}

// AppendChild moves child under parent and notifies observers.
func (d *Document) AppendChild(parent, child *Element) error {
	if parent == nil || child == nil {
		return ErrNilElement
	}

	d.mu.Lock()
	if isAncestor(child.node, parent.node) {
		d.mu.Unlock()
		return fmt.Errorf("%w: cycle", ErrHierarchy)
	}

	var removed *MutationRecord
	if old := child.node.Parent; old != nil {
		old.RemoveChild(child.node)
		removed = &MutationRecord{Target: d.wrap(old), Removed: []*Element{child}}
	}
	parent.node.AppendChild(child.node)
	added := MutationRecord{Target: parent, Added: []*Element{child}}
	d.mu.Unlock()

	if removed != nil {
		d.notify(*removed)
	}
	d.notify(added)
	return nil
}

// AppendHTML parses fragment in the context of parent, appends the result as
// one mutation batch and returns the inserted element nodes.
func (d *Document) AppendHTML(parent *Element, fragment string) ([]*Element, error) {
	if parent == nil {
		return nil, ErrNilElement
	}

	nodes, err := html.ParseFragment(strings.NewReader(fragment), parent.node)
	if err != nil {
		return nil, fmt.Errorf("parse fragment: %w", err)
	}

	d.mu.Lock()
	record := MutationRecord{Target: parent}
	for _, n := range nodes {
		parent.node.AppendChild(n)
		if n.Type == html.ElementNode {
			record.Added = append(record.Added, d.wrap(n))
		}
	}
	d.mu.Unlock()

	d.notify(record)
	return record.Added, nil
}

// Remove detaches el from its parent. Removing a detached element is a no-op.
func (d *Document) Remove(el *Element) {
	if el == nil {
		return
	}

	d.mu.Lock()
	parent := el.node.Parent
	if parent == nil {
		d.mu.Unlock()
		return
	}
	parent.RemoveChild(el.node)
	record := MutationRecord{Target: d.wrap(parent), Removed: []*Element{el}}
	d.mu.Unlock()

	d.notify(record)
}

func (d *Document) wrap(n *html.Node) *Element {
	if n == nil {
		return nil
	}
	return &Element{doc: d, node: n}
}

func walk(n *html.Node, visit func(*html.Node) bool) bool {
	if !visit(n) {
		return false
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if !walk(c, visit) {
			return false
		}
	}
	return true
}

// isAncestor reports whether a is n or one of its ancestors.
func isAncestor(a, n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p == a {
			return true
		}
	}
	return false
}
