package interceptor

import (
	"sync"

	"github.com/GriffinCanCode/pagehook/internal/dom"
)

// Registry tracks the installed interceptor of each document so a page is
// never intercepted twice.
type Registry struct {
	mu    sync.Mutex
	pages map[*dom.Document]*Interceptor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{pages: make(map[*dom.Document]*Interceptor)}
}

// Install returns the interceptor already installed on doc, or creates and
// installs a new one.
func (r *Registry) Install(doc *dom.Document, deps Deps) (*Interceptor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if i, ok := r.pages[doc]; ok {
		return i, nil
	}
	i := New(doc, deps)
	if _, err := i.Install(); err != nil {
		i.Close()
		return nil, err
	}
	r.pages[doc] = i
	return i, nil
}

// Lookup returns the interceptor installed on doc.
func (r *Registry) Lookup(doc *dom.Document) (*Interceptor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.pages[doc]
	return i, ok
}

// Remove closes and forgets the interceptor of doc.
func (r *Registry) Remove(doc *dom.Document) bool {
	r.mu.Lock()
	i, ok := r.pages[doc]
	delete(r.pages, doc)
	r.mu.Unlock()

	if ok {
		i.Close()
	}
	return ok
}

// Len returns the number of installed interceptors.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pages)
}

// CloseAll closes every installed interceptor.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	pages := r.pages
	r.pages = make(map[*dom.Document]*Interceptor)
	r.mu.Unlock()

	for _, i := range pages {
		i.Close()
	}
}
