package download

import (
	"context"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/pagehook/internal/dom"
	"github.com/GriffinCanCode/pagehook/internal/host"
	"github.com/GriffinCanCode/pagehook/internal/httpclient"
	"github.com/GriffinCanCode/pagehook/internal/infrastructure/monitoring"
)

// DefaultFilename is used when nothing better can be derived.
const DefaultFilename = "download"

// LoaderAttr marks the hidden loader frames created by the handler.
const LoaderAttr = "data-pagehook-loader"

// Request names a resource to download.
type Request struct {
	URL string
	// Filename is optional; it is derived from the URL when empty.
	Filename string
}

// Outcome reports which strategies ran.
type Outcome struct {
	Filename      string `json:"filename"`
	LoaderStarted bool   `json:"loaderStarted"`
	Saved         bool   `json:"saved"`
	Navigated     bool   `json:"navigated"`
}

// Options configures a Handler.
type Options struct {
	// LoaderGrace is how long the hidden loader frame lives.
	LoaderGrace time.Duration
	// RevokeDelay is how long the object URL outlives the save-as.
	RevokeDelay time.Duration
	// FetchEnabled turns on the fetch and save strategy.
	FetchEnabled bool
}

// DefaultOptions returns the standard timings.
func DefaultOptions() Options {
	return Options{
		LoaderGrace:  5 * time.Second,
		RevokeDelay:  time.Second,
		FetchEnabled: true,
	}
}

// Handler performs downloads for one page. Every strategy runs regardless of
// the others: a hidden loader frame, then fetch and save, then navigation
// if the fetch did not produce a saved file.
type Handler struct {
	doc       *dom.Document
	client    *httpclient.Client
	navigator host.Navigator
	saver     host.Saver
	blobs     *host.ObjectURLs
	opts      Options
	metrics   *monitoring.Metrics
	log       *zap.Logger

	mu      sync.Mutex
	nextID  int
	pending map[int]*cleanup
}

type cleanup struct {
	timer *time.Timer
	fn    func()
}

// Deps bundles the collaborators of a Handler.
type Deps struct {
	Document  *dom.Document
	Client    *httpclient.Client
	Navigator host.Navigator
	Saver     host.Saver
	Blobs     *host.ObjectURLs
	Metrics   *monitoring.Metrics
	Logger    *zap.Logger
}

// NewHandler creates a download handler.
func NewHandler(deps Deps, opts Options) *Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	blobs := deps.Blobs
	if blobs == nil {
		blobs = host.NewObjectURLs()
	}
	return &Handler{
		doc:       deps.Document,
		client:    deps.Client,
		navigator: deps.Navigator,
		saver:     deps.Saver,
		blobs:     blobs,
		opts:      opts,
		metrics:   deps.Metrics,
		log:       logger,
		pending:   make(map[int]*cleanup),
	}
}

// Download runs the strategies for req. It never fails; problems are logged
// and degrade to navigation.
func (h *Handler) Download(ctx context.Context, req Request) Outcome {
	target := req.URL
	if h.doc != nil {
		target = h.doc.ResolveURL(target)
	}
	out := Outcome{Filename: req.Filename}
	if out.Filename == "" {
		out.Filename = ResolveFilename("", "", target)
	}

	log := h.log.With(zap.String("url", target), zap.String("filename", out.Filename))
	log.Info("download requested")

	out.LoaderStarted = h.startLoader(target)

	if h.opts.FetchEnabled && h.client != nil {
		out.Saved = h.fetchAndSave(ctx, log, target, out.Filename)
	}

	if !out.Saved {
		log.Info("falling back to navigation")
		h.navigator.Navigate(target)
		h.metrics.RecordDownload("navigate", "ok")
		out.Navigated = true
	}
	return out
}

func (h *Handler) startLoader(target string) bool {
	if h.doc == nil || h.doc.Body() == nil {
		return false
	}

	frame := h.doc.CreateElement("iframe", map[string]string{
		"src":      target,
		"style":    "display:none",
		LoaderAttr: "",
	})
	if err := h.doc.AppendChild(h.doc.Body(), frame); err != nil {
		h.log.Warn("failed to attach loader frame", zap.Error(err))
		h.metrics.RecordDownload("loader", "error")
		return false
	}
	h.navigator.LoadInBackground(target)
	h.metrics.RecordDownload("loader", "ok")

	h.schedule(h.opts.LoaderGrace, func() { h.doc.Remove(frame) })
	return true
}

func (h *Handler) fetchAndSave(ctx context.Context, log *zap.Logger, target, filename string) bool {
	resp, err := h.client.Execute(ctx, httpclient.ScopeDownload, target, func(r *resty.Request) (*resty.Response, error) {
		return r.Get(target)
	})
	if err != nil {
		log.Warn("fetch failed", zap.Error(err))
		h.metrics.RecordDownload("fetch", "error")
		return false
	}
	if !resp.IsSuccess() {
		log.Warn("fetch returned non-success status", zap.Int("status", resp.StatusCode()))
		h.metrics.RecordDownload("fetch", "status")
		return false
	}

	body := resp.Body()
	blob := host.Blob{Data: body, Type: resp.Header().Get("Content-Type")}
	if blob.Type == "" {
		blob.Type = mimetype.Detect(body).String()
	}

	ref := h.blobs.Create(blob)
	err = h.saver.SaveAs(ctx, host.SaveRequest{ObjectURL: ref, Filename: filename, Blob: blob})
	if err != nil {
		h.blobs.Revoke(ref)
		log.Warn("save failed", zap.Error(err))
		h.metrics.RecordDownload("fetch", "error")
		return false
	}
	h.schedule(h.opts.RevokeDelay, func() { h.blobs.Revoke(ref) })

	log.Info("download saved", zap.Int("bytes", len(body)), zap.String("type", blob.Type))
	h.metrics.RecordDownload("fetch", "ok")
	return true
}

// schedule runs fn after d unless Flush runs it first.
func (h *Handler) schedule(d time.Duration, fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	c := &cleanup{fn: fn}
	c.timer = time.AfterFunc(d, func() {
		h.mu.Lock()
		_, ok := h.pending[id]
		delete(h.pending, id)
		h.mu.Unlock()
		if ok {
			fn()
		}
	})
	h.pending[id] = c
}

// Pending returns the number of scheduled cleanups.
func (h *Handler) Pending() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.pending)
}

// Flush runs every scheduled cleanup now.
func (h *Handler) Flush() {
	h.mu.Lock()
	pending := h.pending
	h.pending = make(map[int]*cleanup)
	h.mu.Unlock()

	// Entries removed from the map belong to Flush even if their timer
	// already fired.
	for _, c := range pending {
		c.timer.Stop()
		c.fn()
	}
}

// ResolveFilename picks the save name: the download attribute, then
// data-filename, then the last path segment of the URL, then "download".
func ResolveFilename(downloadAttr, dataFilename, rawURL string) string {
	for _, name := range []string{downloadAttr, dataFilename} {
		if name = strings.TrimSpace(name); name != "" {
			return name
		}
	}

	u, err := url.Parse(rawURL)
	if err != nil || u.Path == "" || strings.HasSuffix(u.Path, "/") {
		return DefaultFilename
	}
	base := path.Base(u.Path)
	if unescaped, err := url.PathUnescape(base); err == nil {
		base = unescaped
	}
	return base
}
