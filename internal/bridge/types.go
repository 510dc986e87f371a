package bridge

import (
	"context"
	"time"

	"github.com/GriffinCanCode/pagehook/internal/dom"
	"github.com/GriffinCanCode/pagehook/internal/download"
	"github.com/GriffinCanCode/pagehook/internal/upload"
)

// EntryPoints are the operations published to page scripts.
type EntryPoints interface {
	Download(ctx context.Context, url, filename string) download.Outcome
	Upload(ctx context.Context, endpoint string, files []dom.File, extra map[string]string) (*upload.Result, error)
	SelectFiles(ctx context.Context, accept string, multiple bool) ([]dom.File, error)
}

// Config limits script execution.
type Config struct {
	Timeout          time.Duration
	MaxCallStackSize int
}

// DefaultConfig returns the standard limits. The timeout leaves room for a
// file selection to be answered inside a script.
func DefaultConfig() Config {
	return Config{
		Timeout:          2 * time.Minute,
		MaxCallStackSize: 1024,
	}
}

// LogEntry is a console call made by a script.
type LogEntry struct {
	Level   string    `json:"level"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// Result is the outcome of one script run. Value is the exported completion
// value; a settled promise is replaced by its result.
type Result struct {
	Value    any           `json:"value"`
	Console  []LogEntry    `json:"console"`
	Duration time.Duration `json:"duration"`
}
