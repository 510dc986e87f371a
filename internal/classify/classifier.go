package classify

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Classification is the mutually exclusive category assigned to one click.
type Classification int

const (
	Ignored Classification = iota
	UploadTrigger
	DownloadLink
	BlankNavigation
)

// String returns the wire name of the classification.
func (c Classification) String() string {
	switch c {
	case UploadTrigger:
		return "upload-trigger"
	case DownloadLink:
		return "download-link"
	case BlankNavigation:
		return "blank-navigation"
	default:
		return "ignored"
	}
}

// Descriptor is a typed snapshot of one element, detached from the tree.
type Descriptor struct {
	Tag        string // lower case
	Type       string // lower case "type" attribute for inputs
	Attributes map[string]string
	Text       string
	Value      string
	Class      string
	ID         string
	// Href is the resolved absolute address of an anchor, empty when the
	// element has none.
	Href string
}

// Attr returns the named attribute and whether it is present.
func (d Descriptor) Attr(name string) (string, bool) {
	v, ok := d.Attributes[name]
	return v, ok
}

// Has reports whether the named attribute is present.
func (d Descriptor) Has(name string) bool {
	_, ok := d.Attributes[name]
	return ok
}

// Classifier decides what to do with a click. It holds no mutable state and
// is safe for concurrent use.
type Classifier struct {
	vocab      Vocabulary
	structural string
}

// New creates a classifier for the given vocabulary.
func New(vocab Vocabulary) (*Classifier, error) {
	vocab = vocab.normalized()

	pattern := ""
	if len(vocab.StructuralSegments) > 0 {
		pattern = fmt.Sprintf("/**/{%s}/**/*", strings.Join(vocab.StructuralSegments, ","))
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid structural segments %q", vocab.StructuralSegments)
		}
	}

	return &Classifier{vocab: vocab, structural: pattern}, nil
}

// MustNew is New for vocabularies known to be valid.
func MustNew(vocab Vocabulary) *Classifier {
	c, err := New(vocab)
	if err != nil {
		panic(err)
	}
	return c
}

// Default returns a classifier using DefaultVocabulary.
func Default() *Classifier {
	return MustNew(DefaultVocabulary())
}

// Classify maps a click target and its nearest enclosing anchor to exactly
// one outcome. Rules are evaluated in priority order and stop at the first
// match: upload trigger, download link, new-context navigation.
func (c *Classifier) Classify(target Descriptor, origin *Descriptor, baseBlank bool) Classification {
	if c.IsUploadTrigger(target) {
		return UploadTrigger
	}
	if origin == nil || origin.Href == "" {
		return Ignored
	}
	if c.IsDownloadLink(origin.Href, origin) {
		return DownloadLink
	}
	if WantsNewContext(*origin, baseBlank) {
		return BlankNavigation
	}
	return Ignored
}

// IsFilePicker reports whether d is a native <input type="file">.
func IsFilePicker(d Descriptor) bool {
	return d.Tag == "input" && d.Type == "file"
}

// IsUploadTrigger reports whether d is a file picker or carries upload intent
// in its text, value, class or id.
func (c *Classifier) IsUploadTrigger(d Descriptor) bool {
	if IsFilePicker(d) {
		return true
	}

	text := d.Text
	if text == "" {
		text = d.Value
	}
	haystacks := []string{
		strings.ToLower(text),
		strings.ToLower(d.Class),
		strings.ToLower(d.ID),
	}

	for _, keyword := range c.vocab.UploadKeywords {
		for _, h := range haystacks {
			if h != "" && strings.Contains(h, keyword) {
				return true
			}
		}
	}
	return false
}

// IsDownloadLink reports whether href should be saved rather than rendered.
// anchor may be nil for addresses that did not come from an element.
func (c *Classifier) IsDownloadLink(href string, anchor *Descriptor) bool {
	if href == "" {
		return false
	}
	if anchor != nil && anchor.Has("download") {
		return true
	}

	lower := strings.ToLower(href)
	path, queryValues := splitURL(lower)

	if c.hasDownloadExtension(path, queryValues) {
		return true
	}
	for _, keyword := range c.vocab.DownloadKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	if c.structural != "" {
		if ok, _ := doublestar.Match(c.structural, path); ok {
			return true
		}
	}
	return false
}

func (c *Classifier) hasDownloadExtension(path string, queryValues []string) bool {
	for _, ext := range c.vocab.DownloadExtensions {
		if strings.HasSuffix(path, ext) {
			return true
		}
		for _, v := range queryValues {
			if strings.HasSuffix(v, ext) {
				return true
			}
		}
	}
	return false
}

// WantsNewContext reports whether following the anchor would open a new
// browsing context, either through its own target or a document-wide
// <base target="_blank">.
func WantsNewContext(anchor Descriptor, baseBlank bool) bool {
	if baseBlank {
		return true
	}
	target, _ := anchor.Attr("target")
	return strings.EqualFold(target, "_blank")
}

// splitURL returns the path and query values of a lower-cased address.
// Unparseable input is treated as a bare path.
func splitURL(lower string) (string, []string) {
	u, err := url.Parse(lower)
	if err != nil {
		if i := strings.IndexAny(lower, "?#"); i >= 0 {
			return lower[:i], nil
		}
		return lower, nil
	}

	path := u.Path
	if path == "" {
		path = "/"
	}

	var values []string
	for _, vs := range u.Query() {
		values = append(values, vs...)
	}
	return path, values
}
