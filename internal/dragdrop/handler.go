package dragdrop

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/pagehook/internal/dom"
	"github.com/GriffinCanCode/pagehook/internal/host"
	"github.com/GriffinCanCode/pagehook/internal/upload"
)

// DropEffect is the cursor feedback requested while dragging over the page.
const DropEffect = "copy"

// Handler turns files dropped anywhere on the page into an upload.
type Handler struct {
	doc          *dom.Document
	dialogs      host.Dialogs
	resolver     *upload.Resolver
	orchestrator *upload.Orchestrator
	depth        *atomic.Int32
	log          *zap.Logger
}

// New creates a handler. depth is the reentrant enter/leave counter owned by
// the caller; nil allocates a private one.
func New(doc *dom.Document, dialogs host.Dialogs, resolver *upload.Resolver, orchestrator *upload.Orchestrator, depth *atomic.Int32, logger *zap.Logger) *Handler {
	if depth == nil {
		depth = new(atomic.Int32)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		doc:          doc,
		dialogs:      dialogs,
		resolver:     resolver,
		orchestrator: orchestrator,
		depth:        depth,
		log:          logger,
	}
}

// Depth returns the enter/leave balance. It is diagnostic only.
func (h *Handler) Depth() int32 { return h.depth.Load() }

// Enter handles dragenter.
func (h *Handler) Enter(ev *dom.Event) {
	ev.PreventDefault()
	h.log.Debug("drag entered page", zap.Int32("depth", h.depth.Add(1)))
}

// Over handles dragover.
func (h *Handler) Over(ev *dom.Event) {
	ev.PreventDefault()
	ev.DropEffect = DropEffect
}

// Leave handles dragleave.
func (h *Handler) Leave(ev *dom.Event) {
	ev.PreventDefault()
	if h.depth.Add(-1) == 0 {
		h.log.Debug("drag left page")
	}
}

// Accept handles the drop event itself: the native action is suppressed,
// the counter reset and, for a non-empty payload, the user asked to
// confirm. It returns the files to upload and whether to upload them.
func (h *Handler) Accept(ctx context.Context, ev *dom.Event) ([]dom.File, bool) {
	ev.PreventDefault()
	h.depth.Store(0)

	files := ev.Files
	if len(files) == 0 {
		return nil, false
	}

	h.log.Info("files dropped", zap.Strings("files", dom.Names(files)))
	if !h.dialogs.Confirm(ctx, ConfirmMessage(len(files))) {
		h.log.Debug("drop upload declined")
		return nil, false
	}
	return files, true
}

// Drop uploads confirmed files to the endpoint of the current page path,
// without extra fields.
func (h *Handler) Drop(ctx context.Context, files []dom.File) error {
	endpoint := h.resolver.ForPath(h.doc.URL().Path)
	_, err := h.orchestrator.Transmit(ctx, upload.Request{
		Endpoint: endpoint,
		Files:    files,
		Source:   upload.SourceDrop,
	})
	if err != nil {
		return fmt.Errorf("drop upload: %w", err)
	}
	return nil
}

// ConfirmMessage is the question asked before uploading n dropped files.
func ConfirmMessage(n int) string {
	if n == 1 {
		return "Upload 1 file?"
	}
	return fmt.Sprintf("Upload %d files?", n)
}
