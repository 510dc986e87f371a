package observer

import (
	"sync"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/GriffinCanCode/pagehook/internal/classify"
	"github.com/GriffinCanCode/pagehook/internal/dom"
	"github.com/GriffinCanCode/pagehook/internal/infrastructure/monitoring"
)

// ChangeFunc receives the non-empty selection of an enhanced file input.
type ChangeFunc func(input *dom.Element, files []dom.File)

// Enhancer keeps exactly one change listener bound to every file-picker
// input of a document.
type Enhancer struct {
	doc      *dom.Document
	onChange ChangeFunc
	metrics  *monitoring.Metrics
	log      *zap.Logger

	mu    sync.Mutex
	bound map[*html.Node]dom.ListenerID
}

// NewEnhancer creates an enhancer that reports selections to onChange.
func NewEnhancer(doc *dom.Document, onChange ChangeFunc, metrics *monitoring.Metrics, logger *zap.Logger) *Enhancer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Enhancer{
		doc:      doc,
		onChange: onChange,
		metrics:  metrics,
		log:      logger,
		bound:    make(map[*html.Node]dom.ListenerID),
	}
}

// Enhance rebinds every file-picker input in the document: any listener a
// previous pass attached is removed and one fresh listener is attached.
// Bindings of inputs no longer in the document are dropped. It returns the
// number of inputs bound.
func (e *Enhancer) Enhance() int {
	inputs := FilePickers(e.doc.Root())

	e.mu.Lock()
	defer e.mu.Unlock()

	live := make(map[*html.Node]bool, len(inputs))
	for _, input := range inputs {
		if id, ok := e.bound[input.Node()]; ok {
			input.RemoveEventListener(id)
		}
		e.bound[input.Node()] = input.AddEventListener(dom.EventChange, e.listener(input))
		live[input.Node()] = true
	}
	for n, id := range e.bound {
		if !live[n] {
			e.doc.RemoveEventListener(id)
			delete(e.bound, n)
		}
	}

	e.log.Info("enhanced file inputs", zap.Int("count", len(inputs)))
	e.metrics.AddEnhancedInputs(len(inputs))
	return len(inputs)
}

func (e *Enhancer) listener(input *dom.Element) dom.Listener {
	return func(ev *dom.Event) {
		if len(ev.Files) == 0 {
			return
		}
		e.log.Info("file input changed",
			zap.String("name", input.Name()),
			zap.Strings("files", dom.Names(ev.Files)))
		e.onChange(input, ev.Files)
	}
}

// Detach removes every listener the enhancer attached.
func (e *Enhancer) Detach() {
	e.mu.Lock()
	defer e.mu.Unlock()

	for n, id := range e.bound {
		e.doc.RemoveEventListener(id)
		delete(e.bound, n)
	}
}

// Bound returns the number of inputs currently carrying a listener.
func (e *Enhancer) Bound() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.bound)
}

// FilePickers returns the file-picker inputs at or below root.
func FilePickers(root *dom.Element) []*dom.Element {
	if root == nil {
		return nil
	}
	var out []*dom.Element
	if root.Tag() == "input" && classify.IsFilePicker(root.Descriptor()) {
		out = append(out, root)
	}
	for _, input := range root.QueryAll("input") {
		if classify.IsFilePicker(input.Descriptor()) {
			out = append(out, input)
		}
	}
	return out
}
