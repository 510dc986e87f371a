package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateString(t *testing.T) {
	assert.NoError(t, ValidateString("", "name", 10, false))
	assert.EqualError(t, ValidateString("", "name", 10, true), "name is required")
	assert.Error(t, ValidateString(strings.Repeat("x", 11), "name", 10, true))
	assert.Error(t, ValidateString("a\x00b", "name", 10, true))
	assert.NoError(t, ValidateString("上传文件", "name", 4, true))
}

func TestValidateSize(t *testing.T) {
	assert.NoError(t, ValidateSize("abc", "html", 3))
	assert.EqualError(t, ValidateSize("abcd", "html", 3), "html size 4 bytes exceeds maximum 3 bytes")
}

func TestValidatePageURL(t *testing.T) {
	tests := []struct {
		url     string
		wantErr bool
	}{
		{"https://example.com/cloud", false},
		{"http://127.0.0.1:8080/", false},
		{"file:///tmp/page.html", false},
		{"", true},
		{"/relative/path", true},
		{"javascript:alert(1)", true},
		{"https:///nohost", true},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			err := ValidatePageURL(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateFiles(t *testing.T) {
	assert.NoError(t, ValidateFiles(nil))
	assert.NoError(t, ValidateFiles([]string{"/tmp/a.txt"}))
	assert.EqualError(t, ValidateFiles([]string{"/tmp/a.txt", ""}), "files[1] is required")
	assert.Error(t, ValidateFiles(make([]string, MaxFileCount+1)))
}
