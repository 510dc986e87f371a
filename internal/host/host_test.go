package host

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/pagehook/internal/dom"
)

func TestObjectURLsLifecycle(t *testing.T) {
	urls := NewObjectURLs()

	ref := urls.Create(Blob{Data: []byte("abc"), Type: "text/plain"})
	assert.True(t, IsObjectURL(ref))
	assert.Equal(t, 1, urls.Len())

	b, ok := urls.Get(ref)
	require.True(t, ok)
	assert.Equal(t, []byte("abc"), b.Data)

	urls.Revoke(ref)
	urls.Revoke(ref)
	_, ok = urls.Get(ref)
	assert.False(t, ok)
	assert.Equal(t, 0, urls.Len())
}

func TestScriptedChooserBlocksUntilContextDone(t *testing.T) {
	s := &Scripted{}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	files, err := s.ChooseFiles(ctx, ChooseOptions{Accept: "*/*"})
	assert.Nil(t, files)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, []ChooseOptions{{Accept: "*/*"}}, s.Chooses())
}

func TestScriptedChooserHook(t *testing.T) {
	s := &Scripted{ChooseFunc: func(context.Context, ChooseOptions) ([]dom.File, error) {
		return []dom.File{dom.FileFromBytes("a.txt", []byte("a"))}, nil
	}}

	files, err := s.ChooseFiles(context.Background(), ChooseOptions{Multiple: true})
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestScriptedConfirmDefaultsToNo(t *testing.T) {
	s := &Scripted{}
	assert.False(t, s.Confirm(context.Background(), "upload 2 files?"))

	s.ConfirmFunc = func(string) bool { return true }
	assert.True(t, s.Confirm(context.Background(), "upload 3 files?"))
	assert.Equal(t, []string{"upload 2 files?", "upload 3 files?"}, s.Confirms())
}

func TestScriptedRecordsSideEffects(t *testing.T) {
	s := &Scripted{}
	s.Navigate("https://example.com/a")
	s.LoadInBackground("https://example.com/b")
	s.Reload()
	s.Alert(context.Background(), "oops")

	assert.Equal(t, []string{"https://example.com/a"}, s.Navigations())
	assert.Equal(t, []string{"https://example.com/b"}, s.BackgroundLoads())
	assert.Equal(t, 1, s.Reloads())
	assert.Equal(t, []string{"oops"}, s.Alerts())
}

func TestScriptedSaveDir(t *testing.T) {
	dir := t.TempDir()
	s := &Scripted{SaveDir: dir}

	err := s.SaveAs(context.Background(), SaveRequest{
		ObjectURL: "blob:x",
		Filename:  "../report.csv",
		Blob:      Blob{Data: []byte("a,b\n")},
	})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "report.csv"))
	require.NoError(t, err)
	assert.Equal(t, "a,b\n", string(data))
	assert.Len(t, s.Saves(), 1)
}
