package config

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"

	"github.com/GriffinCanCode/pagehook/internal/classify"
	"github.com/GriffinCanCode/pagehook/internal/upload"
)

// Rules extend the built-in matching vocabulary and endpoint table.
//
//	vocabulary:
//	  upload_keywords: ["附件上传"]
//	  download_extensions: [".epub"]
//	endpoints:
//	  paths:
//	    - contains: reports
//	      endpoint: /api/reports/upload
//	  default: /api/upload
type Rules struct {
	Vocabulary classify.Vocabulary `yaml:"vocabulary"`
	Endpoints  upload.EndpointRules `yaml:"endpoints"`
}

// DefaultRules returns the built-in rules.
func DefaultRules() Rules {
	return Rules{
		Vocabulary: classify.DefaultVocabulary(),
		Endpoints:  upload.DefaultEndpointRules(),
	}
}

// ParseRules decodes YAML rules and merges them over the built-in ones.
// Path rules from the document are consulted before the built-in ones.
func ParseRules(data []byte) (Rules, error) {
	var extra Rules
	if err := yaml.Unmarshal(data, &extra); err != nil {
		return Rules{}, fmt.Errorf("parse rules: %w", err)
	}

	rules := DefaultRules()
	rules.Vocabulary = rules.Vocabulary.Merge(extra.Vocabulary)
	rules.Endpoints = extra.Endpoints.Merge(rules.Endpoints)
	return rules, nil
}

// LoadRules reads the rules file. An empty path yields the built-in rules.
func LoadRules(path string) (Rules, error) {
	if path == "" {
		return DefaultRules(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("read rules: %w", err)
	}
	return ParseRules(data)
}
