package host

import (
	"strings"
	"sync"

	"github.com/GriffinCanCode/pagehook/internal/shared/id"
)

// ObjectURLScheme prefixes every temporary object reference.
const ObjectURLScheme = "blob:"

// Blob is an in-memory binary object.
type Blob struct {
	Data []byte
	Type string
}

// ObjectURLs is the registry of temporary object references. A reference is
// valid from Create until Revoke.
type ObjectURLs struct {
	mu    sync.RWMutex
	blobs map[string]Blob
}

// NewObjectURLs creates an empty registry.
func NewObjectURLs() *ObjectURLs {
	return &ObjectURLs{blobs: make(map[string]Blob)}
}

// Create registers b and returns its reference.
func (o *ObjectURLs) Create(b Blob) string {
	ref := ObjectURLScheme + id.NewBlobID().String()

	o.mu.Lock()
	o.blobs[ref] = b
	o.mu.Unlock()
	return ref
}

// Get resolves a reference.
func (o *ObjectURLs) Get(ref string) (Blob, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	b, ok := o.blobs[ref]
	return b, ok
}

// Revoke releases a reference. Unknown references are ignored.
func (o *ObjectURLs) Revoke(ref string) {
	o.mu.Lock()
	delete(o.blobs, ref)
	o.mu.Unlock()
}

// Len returns the number of live references.
func (o *ObjectURLs) Len() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.blobs)
}

// IsObjectURL reports whether s looks like a reference from this registry.
func IsObjectURL(s string) bool {
	return strings.HasPrefix(s, ObjectURLScheme)
}
