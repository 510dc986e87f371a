package observer

import (
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/pagehook/internal/classify"
	"github.com/GriffinCanCode/pagehook/internal/dom"
)

// ErrNoBody is returned when the document has no body to watch.
var ErrNoBody = errors.New("document has no body")

// Observer watches the body subtree for inserted nodes. It reports new
// download links and re-runs enhancement when a file-picker input appears.
// It never reclassifies clicks.
type Observer struct {
	doc        *dom.Document
	classifier *classify.Classifier
	enhancer   *Enhancer
	log        *zap.Logger

	mu  sync.Mutex
	sub *dom.Subscription
}

// New creates a stopped observer.
func New(doc *dom.Document, classifier *classify.Classifier, enhancer *Enhancer, logger *zap.Logger) *Observer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Observer{doc: doc, classifier: classifier, enhancer: enhancer, log: logger}
}

// Start subscribes to the body subtree. Starting a running observer is a
// no-op.
func (o *Observer) Start() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.sub != nil {
		return nil
	}
	body := o.doc.Body()
	if body == nil {
		return ErrNoBody
	}
	sub, err := o.doc.Observe(body, true, o.handle)
	if err != nil {
		return err
	}
	o.sub = sub
	return nil
}

// Stop disconnects the subscription.
func (o *Observer) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.sub != nil {
		o.sub.Disconnect()
		o.sub = nil
	}
}

// Running reports whether the observer is subscribed.
func (o *Observer) Running() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sub != nil && o.sub.Active()
}

func (o *Observer) handle(records []dom.MutationRecord) {
	enhance := false
	for _, record := range records {
		for _, added := range record.Added {
			o.reportDownloadLinks(added)
			if !enhance && len(FilePickers(added)) > 0 {
				enhance = true
			}
		}
	}

	if enhance {
		o.log.Info("new file input found, re-enhancing")
		o.enhancer.Enhance()
	}
}

func (o *Observer) reportDownloadLinks(added *dom.Element) {
	anchors := added.QueryAll("a[href]")
	if added.Matches("a[href]") {
		anchors = append([]*dom.Element{added}, anchors...)
	}
	for _, a := range anchors {
		desc := a.Descriptor()
		if o.classifier.IsDownloadLink(desc.Href, &desc) {
			o.log.Info("new download link found", zap.String("href", desc.Href))
		}
	}
}
