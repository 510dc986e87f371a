package server

import (
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/pagehook/internal/bridge"
	"github.com/GriffinCanCode/pagehook/internal/dom"
	"github.com/GriffinCanCode/pagehook/internal/host"
	"github.com/GriffinCanCode/pagehook/internal/httpclient"
	"github.com/GriffinCanCode/pagehook/internal/interceptor"
	"github.com/GriffinCanCode/pagehook/internal/shared/id"
)

// ErrPageNotFound is returned for unknown page ids.
var ErrPageNotFound = errors.New("page not found")

// Page is one loaded snapshot with its interceptor, script context and
// shell connection. Events on a page are dispatched one at a time.
type Page struct {
	ID          id.PageID
	Doc         *dom.Document
	Interceptor *interceptor.Interceptor
	Host        *RemoteHost
	Runtime     *bridge.Runtime
	Created     time.Time

	mu sync.Mutex
}

// Lock serializes dispatch on the page.
func (p *Page) Lock() { p.mu.Lock() }

// Unlock releases the dispatch lock.
func (p *Page) Unlock() { p.mu.Unlock() }

// Manager owns the loaded pages.
type Manager struct {
	deps     interceptor.Deps
	scripts  bridge.Config
	registry *interceptor.Registry
	log      *zap.Logger

	mu    sync.RWMutex
	pages map[id.PageID]*Page
}

// NewManager creates a manager. Every page shares the client and object URL
// registry of deps; each gets its own RemoteHost as shell.
func NewManager(deps interceptor.Deps, scripts bridge.Config) *Manager {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Blobs == nil {
		deps.Blobs = host.NewObjectURLs()
	}
	if deps.Client == nil {
		deps.Client = httpclient.New(httpclient.DefaultOptions(), deps.Logger.Named("http"))
	}
	return &Manager{
		deps:     deps,
		scripts:  scripts,
		registry: interceptor.NewRegistry(),
		log:      deps.Logger.Named("pages"),
		pages:    make(map[id.PageID]*Page),
	}
}

// Blobs returns the shared object URL registry.
func (m *Manager) Blobs() *host.ObjectURLs { return m.deps.Blobs }

// Create parses src as the page at pageURL and installs the interceptor.
func (m *Manager) Create(pageURL, src string) (*Page, error) {
	doc, err := dom.ParseString(src, pageURL)
	if err != nil {
		return nil, fmt.Errorf("load page: %w", err)
	}

	pid := id.NewPageID()
	logger := m.deps.Logger.With(zap.String("page_id", pid.String()))

	remote := NewRemoteHost(func(ref string) string {
		return "/pages/" + pid.String() + "/blobs/" + url.PathEscape(ref)
	}, m.deps.Metrics, logger.Named("remote"))

	deps := m.deps
	deps.Shell = remote
	deps.Logger = logger

	i, err := m.registry.Install(doc, deps)
	if err != nil {
		return nil, fmt.Errorf("install interceptor: %w", err)
	}

	page := &Page{
		ID:          pid,
		Doc:         doc,
		Interceptor: i,
		Host:        remote,
		Runtime:     bridge.New(i, m.scripts, logger.Named("script")),
		Created:     time.Now(),
	}

	m.mu.Lock()
	m.pages[pid] = page
	count := len(m.pages)
	m.mu.Unlock()

	m.deps.Metrics.SetPagesActive(count)
	m.log.Info("page loaded", zap.String("page_id", pid.String()), zap.String("url", doc.URL().String()))
	return page, nil
}

// Get returns a loaded page.
func (m *Manager) Get(pid id.PageID) (*Page, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.pages[pid]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPageNotFound, pid)
	}
	return p, nil
}

// Close tears down a page.
func (m *Manager) Close(pid id.PageID) error {
	m.mu.Lock()
	p, ok := m.pages[pid]
	delete(m.pages, pid)
	count := len(m.pages)
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrPageNotFound, pid)
	}
	m.registry.Remove(p.Doc)
	p.Host.Close()
	m.deps.Metrics.SetPagesActive(count)
	m.log.Info("page closed", zap.String("page_id", pid.String()))
	return nil
}

// CloseAll tears down every page.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	pages := m.pages
	m.pages = make(map[id.PageID]*Page)
	m.mu.Unlock()

	m.registry.CloseAll()
	for _, p := range pages {
		p.Host.Close()
	}
	m.deps.Metrics.SetPagesActive(0)
}

// Len returns the number of loaded pages.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.pages)
}
