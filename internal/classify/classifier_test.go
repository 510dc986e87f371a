package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func anchor(href string, attrs map[string]string) *Descriptor {
	if attrs == nil {
		attrs = map[string]string{}
	}
	attrs["href"] = href
	return &Descriptor{Tag: "a", Attributes: attrs, Href: href}
}

func span(text string) Descriptor {
	return Descriptor{Tag: "span", Text: text, Attributes: map[string]string{}}
}

func TestClassify(t *testing.T) {
	c := Default()

	tests := []struct {
		name      string
		target    Descriptor
		origin    *Descriptor
		baseBlank bool
		want      Classification
	}{
		{
			name:   "native file picker",
			target: Descriptor{Tag: "input", Type: "file", Attributes: map[string]string{"type": "file"}},
			want:   UploadTrigger,
		},
		{
			name:   "upload keyword in class",
			target: Descriptor{Tag: "button", Class: "btn upload-button", Attributes: map[string]string{}},
			want:   UploadTrigger,
		},
		{
			name:   "localized keyword in text",
			target: span("点击上传"),
			want:   UploadTrigger,
		},
		{
			name:   "keyword in value when text empty",
			target: Descriptor{Tag: "input", Type: "button", Value: "Choose File", Attributes: map[string]string{}},
			want:   UploadTrigger,
		},
		{
			name:   "keyword in id",
			target: Descriptor{Tag: "div", ID: "BrowseFiles", Attributes: map[string]string{}},
			want:   UploadTrigger,
		},
		{
			name:   "upload trigger wins over download anchor",
			target: span("upload"),
			origin: anchor("https://example.com/files/a.pdf", nil),
			want:   UploadTrigger,
		},
		{
			name:   "download extension",
			target: span("report"),
			origin: anchor("https://example.com/docs/report.PDF", nil),
			want:   DownloadLink,
		},
		{
			name:   "download attribute",
			target: span("get"),
			origin: anchor("https://example.com/page", map[string]string{"download": ""}),
			want:   DownloadLink,
		},
		{
			name:   "download keyword in query",
			target: span("get"),
			origin: anchor("https://example.com/get?mode=attachment", nil),
			want:   DownloadLink,
		},
		{
			name:   "structural file segment",
			target: span("get"),
			origin: anchor("https://example.com/files/file/123", nil),
			want:   DownloadLink,
		},
		{
			name:   "extension in query value",
			target: span("get"),
			origin: anchor("https://example.com/view?name=slides.pptx", nil),
			want:   DownloadLink,
		},
		{
			name:   "download wins over blank target",
			target: span("get"),
			origin: anchor("https://example.com/a.zip", map[string]string{"target": "_blank"}),
			want:   DownloadLink,
		},
		{
			name:   "blank target",
			target: span("docs"),
			origin: anchor("https://example.com/docs", map[string]string{"target": "_blank"}),
			want:   BlankNavigation,
		},
		{
			name:      "document base target",
			target:    span("docs"),
			origin:    anchor("https://example.com/docs", nil),
			baseBlank: true,
			want:      BlankNavigation,
		},
		{
			name:   "plain link",
			target: span("docs"),
			origin: anchor("https://example.com/docs", nil),
			want:   Ignored,
		},
		{
			name:   "anchor without address",
			target: span("docs"),
			origin: &Descriptor{Tag: "a", Attributes: map[string]string{"target": "_blank"}},
			want:   Ignored,
		},
		{
			name:      "no anchor",
			target:    span("hello"),
			baseBlank: true,
			want:      Ignored,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.target, tt.origin, tt.baseBlank))
		})
	}
}

func TestEveryDownloadExtensionClassifies(t *testing.T) {
	c := Default()
	for _, ext := range DefaultVocabulary().DownloadExtensions {
		origin := anchor("https://example.com/static/name"+ext, map[string]string{"target": "_blank"})
		assert.Equal(t, DownloadLink, c.Classify(span("x"), origin, true), ext)
	}
}

func TestIsFilePicker(t *testing.T) {
	assert.True(t, IsFilePicker(Descriptor{Tag: "input", Type: "file"}))
	assert.False(t, IsFilePicker(Descriptor{Tag: "input", Type: "text"}))
	assert.False(t, IsFilePicker(Descriptor{Tag: "button", Type: "file"}))
}

func TestIsDownloadLinkEmpty(t *testing.T) {
	assert.False(t, Default().IsDownloadLink("", nil))
}

func TestClassificationString(t *testing.T) {
	assert.Equal(t, "upload-trigger", UploadTrigger.String())
	assert.Equal(t, "download-link", DownloadLink.String())
	assert.Equal(t, "blank-navigation", BlankNavigation.String())
	assert.Equal(t, "ignored", Ignored.String())
}

func TestCustomVocabulary(t *testing.T) {
	vocab := DefaultVocabulary().Merge(Vocabulary{
		UploadKeywords:     []string{"Hochladen"},
		DownloadExtensions: []string{"iso"},
	})
	c, err := New(vocab)
	require.NoError(t, err)

	assert.True(t, c.IsUploadTrigger(span("Datei hochladen")))
	assert.True(t, c.IsDownloadLink("https://mirror.example.com/linux.iso", nil))
}

func TestVocabularyMergeDeduplicates(t *testing.T) {
	merged := DefaultVocabulary().Merge(Vocabulary{DownloadKeywords: []string{"EXPORT", "fetch"}})
	assert.Equal(t, []string{"download", "attachment", "export", "fetch"}, merged.DownloadKeywords)
}
