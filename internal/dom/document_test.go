package dom

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const page = `<!doctype html>
<html>
<head><title>Files</title><base target="_blank"></head>
<body>
  <a id="report" href="/export/report.csv"><span id="label">Report</span></a>
  <form id="profile" action="/api/cloud/upload">
    <input type="text" name="title" value="notes">
    <input type="checkbox" name="public" checked>
    <input type="checkbox" name="archived">
    <input type="file" name="attachment">
    <select name="kind"><option value="a">A</option><option value="b" selected>B</option></select>
    <textarea name="body">hello</textarea>
    <input type="text" name="skip" disabled value="x">
    <button class="upload-button">Upload</button>
  </form>
  <div id="dynamic"></div>
</body>
</html>`

func mustParse(t *testing.T) *Document {
	t.Helper()
	doc, err := ParseString(page, "https://example.com/cloud/index.html")
	require.NoError(t, err)
	return doc
}

func TestParseAndQuery(t *testing.T) {
	doc := mustParse(t)

	require.NotNil(t, doc.Body())
	require.NotNil(t, doc.Head())
	assert.True(t, doc.BaseTargetBlank())

	inputs := doc.QueryAll(`input[type="file"]`)
	require.Len(t, inputs, 1)
	assert.Equal(t, "attachment", inputs[0].Name())

	el, err := doc.XPath(`//span[@id="label"]`)
	require.NoError(t, err)
	assert.Equal(t, "Report", el.Text())

	_, err = doc.XPath(`//video`)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestElementNavigation(t *testing.T) {
	doc := mustParse(t)

	label, err := doc.XPath(`//span[@id="label"]`)
	require.NoError(t, err)

	anchor := label.Closest("a")
	require.NotNil(t, anchor)
	assert.Equal(t, "https://example.com/export/report.csv", anchor.Href())
	assert.Equal(t, "", label.Href())
	assert.Nil(t, label.Form())
	assert.True(t, anchor.Contains(label))
	assert.False(t, label.Contains(anchor))
	assert.True(t, label.Connected())

	desc := anchor.Descriptor()
	assert.Equal(t, "a", desc.Tag)
	assert.Equal(t, "report", desc.ID)
	assert.Equal(t, "Report", desc.Text)
	assert.Equal(t, "https://example.com/export/report.csv", desc.Href)
}

func TestFormValues(t *testing.T) {
	doc := mustParse(t)

	form := doc.QueryAll("#profile")[0]
	values := form.FormValues("title")

	assert.Equal(t, map[string]string{
		"public": "on",
		"kind":   "b",
		"body":   "hello",
	}, values)
}

func TestMutationsNotifySubtreeObservers(t *testing.T) {
	doc := mustParse(t)

	var batches [][]MutationRecord
	sub, err := doc.Observe(doc.Body(), true, func(records []MutationRecord) {
		batches = append(batches, records)
	})
	require.NoError(t, err)

	dynamic := doc.QueryAll("#dynamic")[0]
	added, err := doc.AppendHTML(dynamic, `<p>one</p><input type="file" name="late">`)
	require.NoError(t, err)
	require.Len(t, added, 2)
	require.Len(t, batches, 1)
	assert.Len(t, batches[0][0].Added, 2)
	assert.True(t, batches[0][0].Target.Equal(dynamic))

	doc.Remove(added[0])
	require.Len(t, batches, 2)
	assert.Len(t, batches[1][0].Removed, 1)

	sub.Disconnect()
	assert.False(t, sub.Active())
	_, err = doc.AppendHTML(dynamic, `<p>two</p>`)
	require.NoError(t, err)
	assert.Len(t, batches, 2)
}

func TestObserveWithoutSubtree(t *testing.T) {
	doc := mustParse(t)

	calls := 0
	_, err := doc.Observe(doc.Body(), false, func([]MutationRecord) { calls++ })
	require.NoError(t, err)

	_, err = doc.AppendHTML(doc.QueryAll("#dynamic")[0], `<p>deep</p>`)
	require.NoError(t, err)
	assert.Equal(t, 0, calls)

	require.NoError(t, doc.AppendChild(doc.Body(), doc.CreateElement("iframe", map[string]string{"src": "/x"})))
	assert.Equal(t, 1, calls)
}

func TestAppendChildRejectsCycle(t *testing.T) {
	doc := mustParse(t)
	body := doc.Body()
	dynamic := doc.QueryAll("#dynamic")[0]
	assert.ErrorIs(t, doc.AppendChild(dynamic, body), ErrHierarchy)
}

func TestDispatchOrder(t *testing.T) {
	doc := mustParse(t)
	button := doc.QueryAll(".upload-button")[0]

	var order []string
	doc.AddEventListener(EventClick, false, func(*Event) { order = append(order, "bubble") })
	doc.AddEventListener(EventClick, true, func(*Event) { order = append(order, "capture") })
	form := button.Form()
	form.AddEventListener(EventClick, func(*Event) { order = append(order, "form") })
	button.AddEventListener(EventClick, func(*Event) { order = append(order, "button") })

	doc.Dispatch(NewEvent(EventClick, button))
	assert.Equal(t, []string{"capture", "button", "form", "bubble"}, order)
}

func TestDispatchStopPropagation(t *testing.T) {
	doc := mustParse(t)
	button := doc.QueryAll(".upload-button")[0]

	reached := false
	doc.AddEventListener(EventClick, true, func(ev *Event) {
		ev.PreventDefault()
		ev.StopPropagation()
	})
	button.AddEventListener(EventClick, func(*Event) { reached = true })

	ev := NewEvent(EventClick, button)
	doc.Dispatch(ev)
	assert.False(t, reached)
	assert.True(t, ev.DefaultPrevented())
	assert.True(t, ev.PropagationStopped())
}

func TestListenerRemoval(t *testing.T) {
	doc := mustParse(t)
	input := doc.QueryAll(`input[type="file"]`)[0]

	id := input.AddEventListener(EventChange, func(*Event) {})
	assert.Equal(t, 1, input.ListenerCount(EventChange))
	assert.True(t, input.RemoveEventListener(id))
	assert.Equal(t, 0, input.ListenerCount(EventChange))
	assert.False(t, input.RemoveEventListener(id))

	docID := doc.AddEventListener(EventDrop, false, func(*Event) {})
	assert.Equal(t, 1, doc.ListenerCount(EventDrop))
	assert.True(t, doc.RemoveEventListener(docID))
	assert.Equal(t, 0, doc.ListenerCount(EventDrop))
}

func TestResolveAndSetURL(t *testing.T) {
	doc := mustParse(t)
	assert.Equal(t, "https://example.com/api/upload", doc.ResolveURL("/api/upload"))
	assert.Equal(t, "https://example.com/cloud/x", doc.ResolveURL("x"))

	require.NoError(t, doc.SetURL("/homework/list"))
	assert.Equal(t, "/homework/list", doc.URL().Path)
}

func TestParseLegacyCharset(t *testing.T) {
	latin1 := "<html><body><p>Le caf\xe9 de la gare est ouvert tous les jours, m\xeame le dimanche.</p></body></html>"
	doc, err := ParseString(latin1, "https://example.com/")
	require.NoError(t, err)

	text := doc.Body().Text()
	assert.True(t, utf8.ValidString(text))
	assert.True(t, strings.HasPrefix(text, "Le caf"))
}

func TestFiles(t *testing.T) {
	mem := FileFromBytes("a.txt", []byte("plain text content"))
	assert.Equal(t, int64(18), mem.Size())
	assert.True(t, strings.HasPrefix(mem.ContentType(), "text/plain"))

	path := filepath.Join(t.TempDir(), "b.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"ok":true}`), 0o644))

	disk, err := FileFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "b.json", disk.Name)
	assert.Equal(t, int64(11), disk.Size())
	assert.Equal(t, "application/json", disk.ContentType())

	rc, err := disk.Open()
	require.NoError(t, err)
	require.NoError(t, rc.Close())

	_, err = FileFromPath(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)

	assert.Equal(t, []string{"a.txt", "b.json"}, Names([]File{mem, disk}))
}
