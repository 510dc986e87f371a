package dom

import (
	"golang.org/x/net/html"
)

// Event types dispatched by the host.
const (
	EventClick     = "click"
	EventChange    = "change"
	EventDragEnter = "dragenter"
	EventDragOver  = "dragover"
	EventDragLeave = "dragleave"
	EventDrop      = "drop"
)

// Event is one interaction signal. It lives for a single Dispatch.
type Event struct {
	Type   string
	Target *Element
	// Files carries the selection of a change event or the payload of a drop.
	Files []File
	// DropEffect is set by dragover listeners.
	DropEffect string

	defaultPrevented   bool
	propagationStopped bool
}

// NewEvent creates an event of the given type aimed at target.
func NewEvent(typ string, target *Element) *Event {
	return &Event{Type: typ, Target: target}
}

// PreventDefault suppresses the native action of the event.
func (e *Event) PreventDefault() { e.defaultPrevented = true }

// StopPropagation stops delivery to later listeners.
func (e *Event) StopPropagation() { e.propagationStopped = true }

// DefaultPrevented reports whether the native action was suppressed.
func (e *Event) DefaultPrevented() bool { return e.defaultPrevented }

// PropagationStopped reports whether delivery was stopped.
func (e *Event) PropagationStopped() bool { return e.propagationStopped }

// Listener handles an event.
type Listener func(*Event)

// ListenerID identifies a registration for later removal.
type ListenerID uint64

type listenerEntry struct {
	id      ListenerID
	capture bool
	fn      Listener
}

// AddEventListener registers a document level listener. Capture listeners
// run before any element listener.
func (d *Document) AddEventListener(typ string, capture bool, fn Listener) ListenerID {
	id := ListenerID(d.nextListener.Add(1))

	d.mu.Lock()
	defer d.mu.Unlock()
	d.docListeners[typ] = append(d.docListeners[typ], listenerEntry{id: id, capture: capture, fn: fn})
	return id
}

// RemoveEventListener removes a document or element listener by id.
func (d *Document) RemoveEventListener(id ListenerID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	for typ, entries := range d.docListeners {
		if out, ok := without(entries, id); ok {
			d.docListeners[typ] = out
			return true
		}
	}
	for n, byType := range d.elListeners {
		for typ, entries := range byType {
			if out, ok := without(entries, id); ok {
				byType[typ] = out
				if len(out) == 0 {
					delete(byType, typ)
				}
				if len(byType) == 0 {
					delete(d.elListeners, n)
				}
				return true
			}
		}
	}
	return false
}

// ListenerCount returns the number of document level listeners for typ.
func (d *Document) ListenerCount(typ string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.docListeners[typ])
}

// AddEventListener registers a listener on the element.
func (e *Element) AddEventListener(typ string, fn Listener) ListenerID {
	d := e.doc
	id := ListenerID(d.nextListener.Add(1))

	d.mu.Lock()
	defer d.mu.Unlock()
	byType := d.elListeners[e.node]
	if byType == nil {
		byType = make(map[string][]listenerEntry)
		d.elListeners[e.node] = byType
	}
	byType[typ] = append(byType[typ], listenerEntry{id: id, fn: fn})
	return id
}

// RemoveEventListener removes a listener registered on the element.
func (e *Element) RemoveEventListener(id ListenerID) bool {
	return e.doc.RemoveEventListener(id)
}

// ListenerCount returns the number of listeners for typ on the element.
func (e *Element) ListenerCount(typ string) int {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	return len(e.doc.elListeners[e.node][typ])
}

// Dispatch delivers ev: document capture listeners, then the target and its
// ancestors, then document bubble listeners. StopPropagation ends delivery
// after the current listener.
func (d *Document) Dispatch(ev *Event) {
	capture, path, bubble := d.route(ev)

	for _, fn := range capture {
		fn(ev)
		if ev.propagationStopped {
			return
		}
	}
	for _, fn := range path {
		fn(ev)
		if ev.propagationStopped {
			return
		}
	}
	for _, fn := range bubble {
		fn(ev)
		if ev.propagationStopped {
			return
		}
	}
}

func (d *Document) route(ev *Event) (capture, path, bubble []Listener) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, l := range d.docListeners[ev.Type] {
		if l.capture {
			capture = append(capture, l.fn)
		} else {
			bubble = append(bubble, l.fn)
		}
	}

	if ev.Target != nil {
		for n := ev.Target.node; n != nil; n = n.Parent {
			if n.Type != html.ElementNode {
				continue
			}
			for _, l := range d.elListeners[n][ev.Type] {
				path = append(path, l.fn)
			}
		}
	}
	return capture, path, bubble
}

func without(entries []listenerEntry, id ListenerID) ([]listenerEntry, bool) {
	for i, l := range entries {
		if l.id == id {
			out := make([]listenerEntry, 0, len(entries)-1)
			out = append(out, entries[:i]...)
			return append(out, entries[i+1:]...), true
		}
	}
	return entries, false
}
