package interceptor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/pagehook/internal/classify"
	"github.com/GriffinCanCode/pagehook/internal/dom"
	"github.com/GriffinCanCode/pagehook/internal/download"
	"github.com/GriffinCanCode/pagehook/internal/dragdrop"
	"github.com/GriffinCanCode/pagehook/internal/host"
	"github.com/GriffinCanCode/pagehook/internal/httpclient"
	"github.com/GriffinCanCode/pagehook/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/pagehook/internal/observer"
	"github.com/GriffinCanCode/pagehook/internal/upload"
)

// ErrClosed is returned when installing an interceptor that was closed.
var ErrClosed = errors.New("interceptor closed")

// Options holds the timings of the interception flows.
type Options struct {
	Download         download.Options
	SelectionTimeout time.Duration
}

// DefaultOptions returns the standard timings.
func DefaultOptions() Options {
	return Options{
		Download:         download.DefaultOptions(),
		SelectionTimeout: upload.DefaultSelectionTimeout,
	}
}

// Deps are the collaborators shared by every page.
type Deps struct {
	Shell      host.Shell
	Client     *httpclient.Client
	Classifier *classify.Classifier
	Endpoints  upload.EndpointRules
	Blobs      *host.ObjectURLs
	Metrics    *monitoring.Metrics
	Logger     *zap.Logger
	Options    Options
}

// State is what one installation owns between Install and Close: the
// mutation observer, the drag depth counter and the document listeners.
type State struct {
	Observer  *observer.Observer
	DragDepth atomic.Int32
	listeners []dom.ListenerID
}

// Interceptor reroutes clicks, drags and file input changes of one page to
// the host shell.
type Interceptor struct {
	doc        *dom.Document
	shell      host.Shell
	classifier *classify.Classifier
	resolver   *upload.Resolver
	selector   *upload.Selector
	uploads    *upload.Orchestrator
	downloads  *download.Handler
	drag       *dragdrop.Handler
	enhancer   *observer.Enhancer
	metrics    *monitoring.Metrics
	log        *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	tasks  sync.WaitGroup

	mu        sync.Mutex
	state     *State
	closed    bool
	clickSeen sync.Map // *dom.Event -> classify.Classification
}

// New wires an interceptor for doc. Nothing is attached until Install.
func New(doc *dom.Document, deps Deps) *Interceptor {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("page", doc.URL().String()))

	classifier := deps.Classifier
	if classifier == nil {
		classifier = classify.Default()
	}
	endpoints := deps.Endpoints
	if endpoints.Default == "" && len(endpoints.Paths) == 0 {
		endpoints = upload.DefaultEndpointRules()
	}
	client := deps.Client
	if client == nil {
		client = httpclient.New(httpclient.DefaultOptions(), logger.Named("http"))
	}

	ctx, cancel := context.WithCancel(context.Background())
	i := &Interceptor{
		doc:        doc,
		shell:      deps.Shell,
		classifier: classifier,
		resolver:   upload.NewResolver(endpoints),
		selector:   upload.NewSelector(deps.Shell, deps.Options.SelectionTimeout, logger.Named("selector")),
		metrics:    deps.Metrics,
		log:        logger.Named("interceptor"),
		ctx:        ctx,
		cancel:     cancel,
	}

	i.uploads = upload.NewOrchestrator(client, deps.Shell, deps.Shell, deps.Metrics, logger.Named("upload"))
	i.uploads.ResolveURL = doc.ResolveURL

	i.downloads = download.NewHandler(download.Deps{
		Document:  doc,
		Client:    client,
		Navigator: deps.Shell,
		Saver:     deps.Shell,
		Blobs:     deps.Blobs,
		Metrics:   deps.Metrics,
		Logger:    logger.Named("download"),
	}, deps.Options.Download)

	i.enhancer = observer.NewEnhancer(doc, i.onInputChange, deps.Metrics, logger.Named("enhancer"))
	return i
}

// Document returns the page the interceptor serves.
func (i *Interceptor) Document() *dom.Document { return i.doc }

// Installed reports whether Install has run and Close has not.
func (i *Interceptor) Installed() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state != nil
}

// Install attaches the interceptor to the page: one capture-phase click
// listener, the drag listeners, an initial enhancement pass and the
// mutation observer. Calling it again returns the existing state.
func (i *Interceptor) Install() (*State, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.closed {
		return nil, ErrClosed
	}
	if i.state != nil {
		return i.state, nil
	}

	st := &State{}
	i.drag = dragdrop.New(i.doc, i.shell, i.resolver, i.uploads, &st.DragDepth, i.log.Named("drag"))

	st.listeners = append(st.listeners,
		i.doc.AddEventListener(dom.EventClick, true, i.onClick),
		i.doc.AddEventListener(dom.EventDragEnter, false, i.drag.Enter),
		i.doc.AddEventListener(dom.EventDragOver, false, i.drag.Over),
		i.doc.AddEventListener(dom.EventDragLeave, false, i.drag.Leave),
		i.doc.AddEventListener(dom.EventDrop, false, i.onDrop),
	)

	i.enhancer.Enhance()

	st.Observer = observer.New(i.doc, i.classifier, i.enhancer, i.log.Named("observer"))
	if err := st.Observer.Start(); err != nil {
		for _, id := range st.listeners {
			i.doc.RemoveEventListener(id)
		}
		i.enhancer.Detach()
		return nil, fmt.Errorf("start observer: %w", err)
	}

	i.state = st
	i.log.Info("file upload and download interception enabled")
	return st, nil
}

// Close detaches everything Install attached, cancels running tasks, waits
// for them and releases pending loader frames and object URLs.
func (i *Interceptor) Close() {
	i.mu.Lock()
	if i.closed {
		i.mu.Unlock()
		return
	}
	i.closed = true
	st := i.state
	i.state = nil
	i.mu.Unlock()

	if st != nil {
		st.Observer.Stop()
		for _, id := range st.listeners {
			i.doc.RemoveEventListener(id)
		}
	}
	i.enhancer.Detach()

	i.cancel()
	i.tasks.Wait()
	i.downloads.Flush()
	i.log.Info("interceptor closed")
}

// Wait blocks until every task started so far has finished.
func (i *Interceptor) Wait() {
	i.tasks.Wait()
}

// DragDepth returns the drag enter/leave balance.
func (i *Interceptor) DragDepth() int32 {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.state == nil {
		return 0
	}
	return i.state.DragDepth.Load()
}

// Click dispatches a click on target through the page and returns the
// classification the interceptor assigned together with the event.
func (i *Interceptor) Click(target *dom.Element) (classify.Classification, *dom.Event) {
	ev := dom.NewEvent(dom.EventClick, target)
	i.doc.Dispatch(ev)

	c, ok := i.clickSeen.LoadAndDelete(ev)
	if !ok {
		return classify.Ignored, ev
	}
	return c.(classify.Classification), ev
}

func (i *Interceptor) onClick(ev *dom.Event) {
	i.clickSeen.Store(ev, i.HandleClick(ev))
}

// HandleClick classifies a click and acts on it. Suppression of the native
// action happens before it returns; selection and network work continue as
// tasks.
func (i *Interceptor) HandleClick(ev *dom.Event) classify.Classification {
	target := ev.Target
	if target == nil {
		return classify.Ignored
	}

	desc := target.Descriptor()
	anchor := target.Closest("a")
	var origin *classify.Descriptor
	if anchor != nil {
		d := anchor.Descriptor()
		origin = &d
	}

	c := i.classifier.Classify(desc, origin, i.doc.BaseTargetBlank())
	i.metrics.RecordClassification(c.String())
	i.log.Debug("click detected",
		zap.String("tag", desc.Tag),
		zap.String("id", desc.ID),
		zap.Stringer("classification", c))

	switch c {
	case classify.UploadTrigger:
		if classify.IsFilePicker(desc) {
			i.log.Debug("file input clicked, keeping native chooser")
			return c
		}
		ev.PreventDefault()
		ev.StopPropagation()
		i.startClickUpload(target)

	case classify.DownloadLink:
		ev.PreventDefault()
		ev.StopPropagation()
		req := download.Request{
			URL: origin.Href,
			Filename: download.ResolveFilename(
				anchor.AttrOr("download", ""),
				anchor.AttrOr("data-filename", ""),
				origin.Href),
		}
		i.log.Info("download link clicked", zap.String("href", origin.Href))
		i.spawn(func(ctx context.Context) { i.downloads.Download(ctx, req) })

	case classify.BlankNavigation:
		ev.PreventDefault()
		i.log.Info("opening new-context link in place", zap.String("href", origin.Href))
		i.shell.Navigate(origin.Href)
	}
	return c
}

func (i *Interceptor) startClickUpload(target *dom.Element) {
	opts := upload.OptionsFor(target)
	endpoint := i.resolver.Resolve(target)
	var extra map[string]string
	if p := target.AttrOr("data-path", ""); p != "" {
		extra = map[string]string{"path": p}
	}

	i.spawn(func(ctx context.Context) {
		files, err := i.selector.Select(ctx, opts)
		if err != nil {
			i.log.Warn("file selection failed", zap.Error(err))
			return
		}
		if len(files) == 0 {
			i.log.Debug("no files selected")
			return
		}
		_, _ = i.uploads.Transmit(ctx, upload.Request{
			Endpoint: endpoint,
			Files:    files,
			Extra:    extra,
			Source:   upload.SourceClick,
		})
	})
}

func (i *Interceptor) onDrop(ev *dom.Event) {
	files, ok := i.drag.Accept(i.ctx, ev)
	if !ok {
		return
	}
	i.spawn(func(ctx context.Context) {
		if err := i.drag.Drop(ctx, files); err != nil {
			i.log.Warn("drop upload failed", zap.Error(err))
		}
	})
}

func (i *Interceptor) onInputChange(input *dom.Element, files []dom.File) {
	endpoint := i.resolver.Resolve(input)
	var extra map[string]string
	if form := input.Form(); form != nil {
		extra = form.FormValues(input.Name())
	}

	i.spawn(func(ctx context.Context) {
		_, _ = i.uploads.Transmit(ctx, upload.Request{
			Endpoint: endpoint,
			Files:    files,
			Extra:    extra,
			Source:   upload.SourceChange,
		})
	})
}

func (i *Interceptor) spawn(fn func(ctx context.Context)) {
	i.tasks.Add(1)
	go func() {
		defer i.tasks.Done()
		fn(i.ctx)
	}()
}

// Download is the script entry point for downloads.
func (i *Interceptor) Download(ctx context.Context, url, filename string) download.Outcome {
	return i.downloads.Download(ctx, download.Request{URL: url, Filename: filename})
}

// Upload is the script entry point for uploads.
func (i *Interceptor) Upload(ctx context.Context, endpoint string, files []dom.File, extra map[string]string) (*upload.Result, error) {
	return i.uploads.Transmit(ctx, upload.Request{
		Endpoint: endpoint,
		Files:    files,
		Extra:    extra,
		Source:   upload.SourceScript,
	})
}

// SelectFiles is the script entry point for the file chooser.
func (i *Interceptor) SelectFiles(ctx context.Context, accept string, multiple bool) ([]dom.File, error) {
	if accept == "" {
		accept = upload.AnyType
	}
	return i.selector.Select(ctx, host.ChooseOptions{Accept: accept, Multiple: multiple})
}
