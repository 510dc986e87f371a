package classify

import "strings"

// Vocabulary holds the keyword and extension lists the classifier matches
// against. Matching is case-insensitive.
type Vocabulary struct {
	UploadKeywords     []string `yaml:"upload_keywords"`
	DownloadExtensions []string `yaml:"download_extensions"`
	DownloadKeywords   []string `yaml:"download_keywords"`
	StructuralSegments []string `yaml:"structural_segments"`
}

// DefaultVocabulary returns the built-in localized vocabulary.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		UploadKeywords: []string{"上传", "upload", "选择文件", "choose file", "browse", "添加文件"},
		DownloadExtensions: []string{
			".pdf", ".doc", ".docx", ".xls", ".xlsx", ".ppt", ".pptx",
			".zip", ".rar", ".7z", ".tar", ".gz",
			".jpg", ".jpeg", ".png", ".gif", ".bmp", ".webp", ".svg",
			".mp3", ".mp4", ".avi", ".mov", ".wmv", ".flv",
			".txt", ".rtf", ".csv", ".json", ".xml",
			".apk", ".exe", ".dmg", ".deb", ".rpm",
		},
		DownloadKeywords:   []string{"download", "attachment", "export"},
		StructuralSegments: []string{"download", "export", "attachment", "file"},
	}
}

// Merge appends the entries of other that v does not already contain.
func (v Vocabulary) Merge(other Vocabulary) Vocabulary {
	return Vocabulary{
		UploadKeywords:     union(v.UploadKeywords, other.UploadKeywords),
		DownloadExtensions: union(v.DownloadExtensions, other.DownloadExtensions),
		DownloadKeywords:   union(v.DownloadKeywords, other.DownloadKeywords),
		StructuralSegments: union(v.StructuralSegments, other.StructuralSegments),
	}
}

func (v Vocabulary) normalized() Vocabulary {
	exts := lowerAll(v.DownloadExtensions)
	for i, ext := range exts {
		if !strings.HasPrefix(ext, ".") {
			exts[i] = "." + ext
		}
	}

	return Vocabulary{
		UploadKeywords:     lowerAll(v.UploadKeywords),
		DownloadExtensions: exts,
		DownloadKeywords:   lowerAll(v.DownloadKeywords),
		StructuralSegments: lowerAll(v.StructuralSegments),
	}
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func union(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, s := range list {
			key := strings.ToLower(s)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, s)
		}
	}
	return out
}
