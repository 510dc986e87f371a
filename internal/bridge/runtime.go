package bridge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/pagehook/internal/dom"
	"github.com/GriffinCanCode/pagehook/internal/shared/utils"
)

// Global names of the published entry points.
const (
	DownloadFunc    = "pakeDownload"
	UploadFunc      = "pakeUpload"
	SelectorFunc    = "pakeCreateFileSelector"
	fileHandleField = "__handle"
)

// ErrNotRunning is returned by an entry point invoked outside Run.
var ErrNotRunning = errors.New("no script is running")

// Runtime is the script context of one page. Runs are serialized.
type Runtime struct {
	vm     *goja.Runtime
	entry  EntryPoints
	config Config
	log    *zap.Logger

	mu  sync.Mutex
	ctx context.Context

	files  map[string]dom.File
	nextID int

	console   []LogEntry
	consoleMu sync.Mutex
}

// New creates a runtime publishing entry on window.
func New(entry EntryPoints, config Config, logger *zap.Logger) *Runtime {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultConfig().Timeout
	}

	vm := goja.New()
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))
	if config.MaxCallStackSize > 0 {
		vm.SetMaxCallStackSize(config.MaxCallStackSize)
	}

	r := &Runtime{
		vm:     vm,
		entry:  entry,
		config: config,
		log:    logger,
		files:  make(map[string]dom.File),
	}
	r.setupGlobals()
	return r
}

// Run evaluates source. It is interrupted when ctx is done or the configured
// timeout passes.
func (r *Runtime) Run(ctx context.Context, source string) (*Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()
	r.ctx = ctx
	defer r.release()

	r.consoleMu.Lock()
	r.console = []LogEntry{}
	r.consoleMu.Unlock()

	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			r.vm.Interrupt(ctx.Err().Error())
		case <-stop:
		}
	}()

	start := time.Now()
	val, err := r.vm.RunString(source)
	close(stop)
	r.vm.ClearInterrupt()

	result := &Result{Duration: time.Since(start)}
	r.consoleMu.Lock()
	result.Console = append([]LogEntry{}, r.console...)
	r.consoleMu.Unlock()

	if err != nil {
		return result, fmt.Errorf("run script: %w", err)
	}

	result.Value, err = r.export(val)
	if err != nil {
		return result, err
	}
	return result, nil
}

// release drops the run's context and the file handles it handed out.
// Handles do not outlive the run that selected them.
func (r *Runtime) release() {
	r.ctx = nil
	if len(r.files) > 0 {
		r.log.Debug("releasing file handles", zap.Int("count", len(r.files)))
		clear(r.files)
	}
}

// Files returns the number of file handles scripts currently hold.
func (r *Runtime) Files() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.files)
}

func (r *Runtime) export(val goja.Value) (any, error) {
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return nil, nil
	}
	p, ok := val.Export().(*goja.Promise)
	if !ok {
		return val.Export(), nil
	}
	switch p.State() {
	case goja.PromiseStateFulfilled:
		return p.Result().Export(), nil
	case goja.PromiseStateRejected:
		return nil, fmt.Errorf("promise rejected: %s", p.Result().String())
	default:
		return nil, nil
	}
}

func (r *Runtime) setupGlobals() {
	global := r.vm.GlobalObject()

	_ = r.vm.Set("require", goja.Undefined())
	_ = r.vm.Set("process", goja.Undefined())
	_ = r.vm.Set("window", global)

	console := r.vm.NewObject()
	for _, level := range []string{"log", "info", "warn", "error", "debug"} {
		_ = console.Set(level, r.consoleFunc(level))
	}
	_ = r.vm.Set("console", console)

	_ = r.vm.Set(DownloadFunc, r.download)
	_ = r.vm.Set(UploadFunc, r.upload)
	_ = r.vm.Set(SelectorFunc, r.selectFiles)
}

func (r *Runtime) consoleFunc(level string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = arg.String()
		}
		msg := strings.Join(parts, " ")

		r.consoleMu.Lock()
		r.console = append(r.console, LogEntry{Level: level, Message: msg, Time: time.Now()})
		r.consoleMu.Unlock()

		r.log.Debug("page console", zap.String("level", level), zap.String("message", msg))
		return goja.Undefined()
	}
}

// download backs pakeDownload(url, filename). It never rejects.
func (r *Runtime) download(call goja.FunctionCall) goja.Value {
	p, resolve, reject := r.vm.NewPromise()
	if r.ctx == nil {
		reject(r.vm.NewGoError(ErrNotRunning))
		return r.vm.ToValue(p)
	}

	url := argString(call, 0)
	filename := argString(call, 1)
	out := r.entry.Download(r.ctx, url, filename)
	resolve(out)
	return r.vm.ToValue(p)
}

// upload backs pakeUpload(endpoint, files, extra). The promise resolves to
// the decoded reply and rejects with the upload error.
func (r *Runtime) upload(call goja.FunctionCall) goja.Value {
	p, resolve, reject := r.vm.NewPromise()
	if r.ctx == nil {
		reject(r.vm.NewGoError(ErrNotRunning))
		return r.vm.ToValue(p)
	}

	endpoint := argString(call, 0)
	files, err := r.fileArgs(call.Argument(1))
	if err != nil {
		reject(r.vm.NewGoError(err))
		return r.vm.ToValue(p)
	}
	extra := stringMap(call.Argument(2))

	res, err := r.entry.Upload(r.ctx, endpoint, files, extra)
	switch {
	case err != nil:
		reject(r.vm.NewGoError(err))
	case res == nil:
		resolve(goja.Undefined())
	default:
		resolve(res.Data)
	}
	return r.vm.ToValue(p)
}

// selectFiles backs pakeCreateFileSelector(accept, multiple). A cancelled
// chooser resolves to an empty array.
func (r *Runtime) selectFiles(call goja.FunctionCall) goja.Value {
	p, resolve, reject := r.vm.NewPromise()
	if r.ctx == nil {
		reject(r.vm.NewGoError(ErrNotRunning))
		return r.vm.ToValue(p)
	}

	accept := argString(call, 0)
	multiple := call.Argument(1).ToBoolean()
	files, err := r.entry.SelectFiles(r.ctx, accept, multiple)
	if err != nil {
		reject(r.vm.NewGoError(err))
		return r.vm.ToValue(p)
	}

	handles := make([]any, len(files))
	for i, f := range files {
		handles[i] = r.handle(f)
	}
	resolve(r.vm.NewArray(handles...))
	return r.vm.ToValue(p)
}

func (r *Runtime) handle(f dom.File) *goja.Object {
	r.nextID++
	id := fmt.Sprintf("file-%d", r.nextID)
	r.files[id] = f

	obj := r.vm.NewObject()
	_ = obj.Set("name", f.Name)
	_ = obj.Set("size", f.Size())
	_ = obj.Set("type", f.ContentType())
	_ = obj.DefineDataProperty(fileHandleField, r.vm.ToValue(id), goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_FALSE)
	return obj
}

func (r *Runtime) fileArgs(v goja.Value) ([]dom.File, error) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil, nil
	}
	obj, ok := v.(*goja.Object)
	if !ok || obj.ClassName() != "Array" {
		return nil, errors.New("files must be an array")
	}
	length := obj.Get("length").ToInteger()
	if length > utils.MaxFileCount {
		return nil, fmt.Errorf("too many files: %d (max %d)", length, utils.MaxFileCount)
	}

	files := make([]dom.File, 0, length)
	for i := 0; i < int(length); i++ {
		item := obj.Get(fmt.Sprint(i))
		if item == nil || goja.IsUndefined(item) || goja.IsNull(item) {
			return nil, fmt.Errorf("file %d is empty", i)
		}
		handle, ok := item.(*goja.Object)
		if !ok {
			return nil, fmt.Errorf("file %d is not a file handle", i)
		}
		id := handle.Get(fileHandleField)
		if id == nil || goja.IsUndefined(id) {
			return nil, fmt.Errorf("file %d was not produced by %s", i, SelectorFunc)
		}
		f, ok := r.files[id.String()]
		if !ok {
			return nil, fmt.Errorf("unknown file handle %q", id.String())
		}
		files = append(files, f)
	}
	return files, nil
}

func argString(call goja.FunctionCall, i int) string {
	v := call.Argument(i)
	if goja.IsUndefined(v) || goja.IsNull(v) {
		return ""
	}
	return v.String()
}

func stringMap(v goja.Value) map[string]string {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}
	exported, ok := v.Export().(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(exported))
	for k, val := range exported {
		out[k] = fmt.Sprint(val)
	}
	return out
}
