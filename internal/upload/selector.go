package upload

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/pagehook/internal/dom"
	"github.com/GriffinCanCode/pagehook/internal/host"
)

// DefaultSelectionTimeout bounds the wait for a chooser answer.
const DefaultSelectionTimeout = 60 * time.Second

// AnyType is the accept filter used when an element declares none.
const AnyType = "*/*"

// OptionsFor reads the chooser options declared on a trigger element:
// accept, then data-accept, then any type; multiple or data-multiple.
func OptionsFor(el *dom.Element) host.ChooseOptions {
	opts := host.ChooseOptions{Accept: AnyType}
	if el == nil {
		return opts
	}
	if v := el.AttrOr("accept", ""); v != "" {
		opts.Accept = v
	} else if v := el.AttrOr("data-accept", ""); v != "" {
		opts.Accept = v
	}
	opts.Multiple = el.Has("multiple") || el.Has("data-multiple")
	return opts
}

// Selector asks the host for files with a deadline.
type Selector struct {
	dialogs host.Dialogs
	timeout time.Duration
	log     *zap.Logger
}

// NewSelector creates a selector. A zero timeout uses
// DefaultSelectionTimeout.
func NewSelector(dialogs host.Dialogs, timeout time.Duration, logger *zap.Logger) *Selector {
	if timeout <= 0 {
		timeout = DefaultSelectionTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Selector{dialogs: dialogs, timeout: timeout, log: logger}
}

type selection struct {
	files []dom.File
	err   error
}

// Select shows the chooser and waits for the answer. A cancelled chooser
// returns an empty slice and nil. If the host does not answer within the
// timeout the chooser is abandoned and ErrSelectionTimeout is returned.
func (s *Selector) Select(ctx context.Context, opts host.ChooseOptions) ([]dom.File, error) {
	chooseCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan selection, 1)
	go func() {
		files, err := s.dialogs.ChooseFiles(chooseCtx, opts)
		done <- selection{files: files, err: err}
	}()

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	select {
	case res := <-done:
		switch {
		case errors.Is(res.err, ErrSelectionCancelled):
			s.log.Debug("file selection cancelled")
			return []dom.File{}, nil
		case res.err != nil:
			return nil, fmt.Errorf("choose files: %w", res.err)
		}
		files := res.files
		if files == nil {
			files = []dom.File{}
		}
		s.log.Debug("files selected",
			zap.Int("count", len(files)),
			zap.Strings("names", dom.Names(files)))
		return files, nil
	case <-timer.C:
		s.log.Warn("file selection timed out", zap.Duration("timeout", s.timeout))
		return nil, ErrSelectionTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
