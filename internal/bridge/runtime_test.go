package bridge

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/pagehook/internal/dom"
	"github.com/GriffinCanCode/pagehook/internal/download"
	"github.com/GriffinCanCode/pagehook/internal/upload"
)

type uploadCall struct {
	endpoint string
	files    []string
	extra    map[string]string
}

type fakeEntry struct {
	mu        sync.Mutex
	downloads []download.Request
	uploads   []uploadCall
	selected  []dom.File
	selectErr error
	uploadErr error
	block     bool
}

func (f *fakeEntry) Download(_ context.Context, url, filename string) download.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.downloads = append(f.downloads, download.Request{URL: url, Filename: filename})
	return download.Outcome{Filename: filename, Saved: true}
}

func (f *fakeEntry) Upload(_ context.Context, endpoint string, files []dom.File, extra map[string]string) (*upload.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, uploadCall{endpoint: endpoint, files: dom.Names(files), extra: extra})
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	return &upload.Result{Status: 200, Data: map[string]any{"ok": true}}, nil
}

func (f *fakeEntry) SelectFiles(ctx context.Context, _ string, _ bool) ([]dom.File, error) {
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.selected, f.selectErr
}

func TestEntryPointsPublishedOnWindow(t *testing.T) {
	r := New(&fakeEntry{}, DefaultConfig(), nil)

	res, err := r.Run(context.Background(),
		`[typeof window.pakeDownload, typeof window.pakeUpload, typeof window.pakeCreateFileSelector].join(",")`)
	require.NoError(t, err)
	assert.Equal(t, "function,function,function", res.Value)
}

func TestDownload(t *testing.T) {
	entry := &fakeEntry{}
	r := New(entry, DefaultConfig(), nil)

	res, err := r.Run(context.Background(), `pakeDownload("/files/a.pdf", "a.pdf")`)
	require.NoError(t, err)
	assert.Equal(t, []download.Request{{URL: "/files/a.pdf", Filename: "a.pdf"}}, entry.downloads)

	assert.Equal(t, download.Outcome{Filename: "a.pdf", Saved: true}, res.Value)
}

func TestSelectThenUpload(t *testing.T) {
	entry := &fakeEntry{selected: []dom.File{
		dom.FileFromBytes("a.txt", []byte("a")),
		dom.FileFromBytes("b.txt", []byte("bb")),
	}}
	r := New(entry, DefaultConfig(), nil)

	res, err := r.Run(context.Background(), `
		(async () => {
			const files = await pakeCreateFileSelector("text/plain", true);
			console.log("picked", files.length, files[1].name, files[1].size);
			return await pakeUpload("/api/upload", files, { path: "/docs", n: 2 });
		})()
	`)
	require.NoError(t, err)

	require.Len(t, entry.uploads, 1)
	assert.Equal(t, "/api/upload", entry.uploads[0].endpoint)
	assert.Equal(t, []string{"a.txt", "b.txt"}, entry.uploads[0].files)
	assert.Equal(t, map[string]string{"path": "/docs", "n": "2"}, entry.uploads[0].extra)

	assert.Equal(t, map[string]any{"ok": true}, res.Value)
	require.Len(t, res.Console, 1)
	assert.Equal(t, "log", res.Console[0].Level)
	assert.Equal(t, "picked 2 b.txt 2", res.Console[0].Message)
	assert.Equal(t, 0, r.Files())
}

func TestFileHandlesReleasedAfterRun(t *testing.T) {
	entry := &fakeEntry{selected: []dom.File{dom.FileFromBytes("a.txt", nil)}}
	r := New(entry, DefaultConfig(), nil)

	res, err := r.Run(context.Background(), `
		(async () => {
			window.kept = await pakeCreateFileSelector("*/*", false);
			return kept.length;
		})()
	`)
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.Value)
	assert.Equal(t, 0, r.Files())

	_, err = r.Run(context.Background(), `pakeUpload("/api/upload", kept)`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown file handle")
	assert.Empty(t, entry.uploads)
}

func TestUploadRejectsMalformedFiles(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{"plain object", `pakeUpload("/x", {})`, "files must be an array"},
		{"number", `pakeUpload("/x", 5)`, "files must be an array"},
		{"fake length", `pakeUpload("/x", {length: 1e12})`, "files must be an array"},
		{"oversized array", `pakeUpload("/x", new Array(1000))`, "too many files"},
		{"primitive item", `pakeUpload("/x", [1])`, "not a file handle"},
		{"hole", `pakeUpload("/x", [,])`, "file 0 is empty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := &fakeEntry{}
			r := New(entry, DefaultConfig(), nil)

			_, err := r.Run(context.Background(), tt.source)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "promise rejected")
			assert.Contains(t, err.Error(), tt.want)
			assert.Empty(t, entry.uploads)
		})
	}
}

func TestCancelledSelectionResolvesEmpty(t *testing.T) {
	r := New(&fakeEntry{selected: []dom.File{}}, DefaultConfig(), nil)

	res, err := r.Run(context.Background(), `(async () => (await pakeCreateFileSelector()).length)()`)
	require.NoError(t, err)
	assert.EqualValues(t, 0, res.Value)
}

func TestUploadRejects(t *testing.T) {
	entry := &fakeEntry{
		selected:  []dom.File{dom.FileFromBytes("a.txt", nil)},
		uploadErr: &upload.UploadRejectedError{Status: 500, StatusText: "Internal Server Error"},
	}
	r := New(entry, DefaultConfig(), nil)

	res, err := r.Run(context.Background(), `
		(async () => {
			try {
				await pakeUpload("/api/upload", await pakeCreateFileSelector("*/*", false));
				return "ok";
			} catch (e) {
				return "caught: " + e.message;
			}
		})()
	`)
	require.NoError(t, err)
	assert.Equal(t, "caught: 500 Internal Server Error", res.Value)
}

func TestUploadRejectsForeignFiles(t *testing.T) {
	entry := &fakeEntry{}
	r := New(entry, DefaultConfig(), nil)

	_, err := r.Run(context.Background(), `pakeUpload("/api/upload", [{ name: "forged.txt" }])`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "promise rejected")
	assert.Empty(t, entry.uploads)
}

func TestSelectionErrorRejects(t *testing.T) {
	r := New(&fakeEntry{selectErr: upload.ErrSelectionTimeout}, DefaultConfig(), nil)

	_, err := r.Run(context.Background(), `pakeCreateFileSelector("*/*")`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), upload.ErrSelectionTimeout.Error())
}

func TestRunTimeout(t *testing.T) {
	r := New(&fakeEntry{}, Config{Timeout: 50 * time.Millisecond}, nil)

	_, err := r.Run(context.Background(), `for (;;) {}`)
	require.Error(t, err)

	var interrupted *goja.InterruptedError
	assert.ErrorAs(t, err, &interrupted)

	res, err := r.Run(context.Background(), `1 + 1`)
	require.NoError(t, err)
	assert.EqualValues(t, 2, res.Value)
}

func TestContextCancelInterruptsSelection(t *testing.T) {
	r := New(&fakeEntry{block: true}, DefaultConfig(), nil)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := r.Run(ctx, `pakeCreateFileSelector("*/*")`)
	require.Error(t, err)
}

func TestScriptError(t *testing.T) {
	r := New(&fakeEntry{}, DefaultConfig(), nil)
	_, err := r.Run(context.Background(), `throw new Error("boom")`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.False(t, errors.Is(err, ErrNotRunning))
}
