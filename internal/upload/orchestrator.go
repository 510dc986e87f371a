package upload

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/pagehook/internal/dom"
	"github.com/GriffinCanCode/pagehook/internal/host"
	"github.com/GriffinCanCode/pagehook/internal/httpclient"
	"github.com/GriffinCanCode/pagehook/internal/infrastructure/monitoring"
)

// Upload sources, used for logs and metrics.
const (
	SourceClick  = "click"
	SourceChange = "change"
	SourceDrop   = "drop"
	SourceScript = "script"
)

// Request is one multipart upload.
type Request struct {
	Endpoint string
	Files    []dom.File
	Extra    map[string]string
	Source   string
}

// Result is the decoded reply of an accepted upload.
type Result struct {
	Status int
	Data   any
}

// Orchestrator transmits selected files and reports the outcome to the
// user: the page reloads on success, an alert is shown on failure.
type Orchestrator struct {
	client    *httpclient.Client
	dialogs   host.Dialogs
	navigator host.Navigator
	// ResolveURL turns a relative endpoint into an absolute one. When nil
	// endpoints are used as given.
	ResolveURL func(string) string

	policy  *bluemonday.Policy
	metrics *monitoring.Metrics
	log     *zap.Logger
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(client *httpclient.Client, dialogs host.Dialogs, navigator host.Navigator, metrics *monitoring.Metrics, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		client:    client,
		dialogs:   dialogs,
		navigator: navigator,
		policy:    bluemonday.StrictPolicy(),
		metrics:   metrics,
		log:       logger,
	}
}

// Transmit posts the files as one multipart request. An empty file list is
// a no-op. A single file goes in field "file", several in "file0", "file1"
// and so on; extra fields are sent alongside. On a 2xx reply the JSON body
// is decoded and the page reloaded. Any failure is alerted and returned.
func (o *Orchestrator) Transmit(ctx context.Context, req Request) (*Result, error) {
	if len(req.Files) == 0 {
		o.log.Debug("nothing to upload", zap.String("source", req.Source))
		return nil, nil
	}

	endpoint := req.Endpoint
	if o.ResolveURL != nil {
		endpoint = o.ResolveURL(endpoint)
	}

	log := o.log.With(
		zap.String("source", req.Source),
		zap.String("endpoint", endpoint),
		zap.Strings("files", dom.Names(req.Files)))
	log.Info("uploading files")

	result, err := o.send(ctx, endpoint, req)
	if err != nil {
		log.Error("upload failed", zap.Error(err))
		o.metrics.RecordUpload(req.Source, outcome(err), len(req.Files))
		o.dialogs.Alert(ctx, o.alertText(err))
		return nil, err
	}

	log.Info("upload complete", zap.Int("status", result.Status))
	o.metrics.RecordUpload(req.Source, "ok", len(req.Files))
	o.navigator.Reload()
	return result, nil
}

func (o *Orchestrator) send(ctx context.Context, endpoint string, req Request) (*Result, error) {
	readers := make([]io.ReadCloser, 0, len(req.Files))
	defer func() {
		for _, rc := range readers {
			_ = rc.Close()
		}
	}()

	resp, err := o.client.Execute(ctx, httpclient.ScopeUpload, endpoint, func(r *resty.Request) (*resty.Response, error) {
		for i, f := range req.Files {
			rc, err := f.Open()
			if err != nil {
				return nil, &UnexpectedError{Err: fmt.Errorf("open %s: %w", f.Name, err)}
			}
			readers = append(readers, rc)
			r.SetMultipartField(FieldName(i, len(req.Files)), f.Name, f.ContentType(), rc)
		}
		if len(req.Extra) > 0 {
			r.SetFormData(req.Extra)
		}
		return r.Post(endpoint)
	})
	if err != nil {
		var unexpected *UnexpectedError
		if errors.As(err, &unexpected) {
			return nil, unexpected
		}
		return nil, &NetworkError{Endpoint: endpoint, Err: err}
	}

	if !resp.IsSuccess() {
		return nil, &UploadRejectedError{
			Status:     resp.StatusCode(),
			StatusText: http.StatusText(resp.StatusCode()),
		}
	}

	var data any
	if err := sonic.Unmarshal(resp.Body(), &data); err != nil {
		return nil, &UnexpectedError{Err: fmt.Errorf("decode upload reply: %w", err)}
	}
	return &Result{Status: resp.StatusCode(), Data: data}, nil
}

// FieldName returns the multipart field of the i-th of n files.
func FieldName(i, n int) string {
	if n == 1 {
		return "file"
	}
	return fmt.Sprintf("file%d", i)
}

// alertText strips markup the page may have smuggled into an endpoint or
// server message.
func (o *Orchestrator) alertText(err error) string {
	msg := html.UnescapeString(o.policy.Sanitize(err.Error()))
	return "upload failed: " + strings.TrimSpace(msg)
}

func outcome(err error) string {
	var (
		rejected *UploadRejectedError
		network  *NetworkError
	)
	switch {
	case errors.As(err, &rejected):
		return "rejected"
	case errors.As(err, &network):
		return "network"
	default:
		return "error"
	}
}
