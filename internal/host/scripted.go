package host

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/GriffinCanCode/pagehook/internal/dom"
)

// Scripted is a headless Shell whose answers come from hooks and whose side
// effects are recorded. It backs tests and runs without an attached shell.
type Scripted struct {
	// ChooseFunc answers file chooser prompts. When nil the chooser never
	// answers and returns once ctx is done.
	ChooseFunc func(ctx context.Context, opts ChooseOptions) ([]dom.File, error)
	// ConfirmFunc answers confirm prompts. When nil every prompt is declined.
	ConfirmFunc func(message string) bool
	// SaveFunc handles save-as. When nil and SaveDir is set the blob is
	// written to SaveDir; otherwise the request is only recorded.
	SaveFunc func(req SaveRequest) error
	SaveDir  string

	mu          sync.Mutex
	chooses     []ChooseOptions
	confirms    []string
	alerts      []string
	navigations []string
	background  []string
	saves       []SaveRequest
	reloads     int
}

var _ Shell = (*Scripted)(nil)

// ChooseFiles implements Dialogs.
func (s *Scripted) ChooseFiles(ctx context.Context, opts ChooseOptions) ([]dom.File, error) {
	s.mu.Lock()
	s.chooses = append(s.chooses, opts)
	fn := s.ChooseFunc
	s.mu.Unlock()

	if fn == nil {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return fn(ctx, opts)
}

// Confirm implements Dialogs.
func (s *Scripted) Confirm(_ context.Context, message string) bool {
	s.mu.Lock()
	s.confirms = append(s.confirms, message)
	fn := s.ConfirmFunc
	s.mu.Unlock()

	return fn != nil && fn(message)
}

// Alert implements Dialogs.
func (s *Scripted) Alert(_ context.Context, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, message)
}

// Navigate implements Navigator.
func (s *Scripted) Navigate(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.navigations = append(s.navigations, url)
}

// Reload implements Navigator.
func (s *Scripted) Reload() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reloads++
}

// LoadInBackground implements Navigator.
func (s *Scripted) LoadInBackground(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.background = append(s.background, url)
}

// SaveAs implements Saver.
func (s *Scripted) SaveAs(_ context.Context, req SaveRequest) error {
	s.mu.Lock()
	s.saves = append(s.saves, req)
	fn, dir := s.SaveFunc, s.SaveDir
	s.mu.Unlock()

	switch {
	case fn != nil:
		return fn(req)
	case dir != "":
		path := filepath.Join(dir, filepath.Base(req.Filename))
		if err := os.WriteFile(path, req.Blob.Data, 0o644); err != nil {
			return fmt.Errorf("save %s: %w", req.Filename, err)
		}
	}
	return nil
}

// Chooses returns the recorded chooser prompts.
func (s *Scripted) Chooses() []ChooseOptions {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ChooseOptions(nil), s.chooses...)
}

// Confirms returns the recorded confirm messages.
func (s *Scripted) Confirms() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.confirms...)
}

// Alerts returns the recorded alert messages.
func (s *Scripted) Alerts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.alerts...)
}

// Navigations returns the recorded navigations.
func (s *Scripted) Navigations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.navigations...)
}

// BackgroundLoads returns the recorded background loads.
func (s *Scripted) BackgroundLoads() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.background...)
}

// Saves returns the recorded save requests.
func (s *Scripted) Saves() []SaveRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SaveRequest(nil), s.saves...)
}

// Reloads returns the number of reloads.
func (s *Scripted) Reloads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reloads
}
