package host

import (
	"context"

	"github.com/GriffinCanCode/pagehook/internal/dom"
)

// ChooseOptions configures the native file chooser.
type ChooseOptions struct {
	Accept   string `json:"accept"`
	Multiple bool   `json:"multiple"`
}

// Dialogs are the modal surfaces of the shell.
type Dialogs interface {
	// ChooseFiles shows the file chooser. A cancelled chooser returns an
	// empty selection and a nil error. Implementations must return when ctx
	// is done.
	ChooseFiles(ctx context.Context, opts ChooseOptions) ([]dom.File, error)
	// Confirm asks a yes/no question and blocks until answered.
	Confirm(ctx context.Context, message string) bool
	// Alert shows a message to the user.
	Alert(ctx context.Context, message string)
}

// Navigator controls the top-level browsing context of the webview.
type Navigator interface {
	// Navigate loads url in the current context.
	Navigate(url string)
	// Reload reloads the current page.
	Reload()
	// LoadInBackground points a hidden, detached loading context at url.
	// Fire and forget.
	LoadInBackground(url string)
}

// SaveRequest asks the shell to save an in-memory object to disk.
type SaveRequest struct {
	// ObjectURL is the temporary reference registered for the blob.
	ObjectURL string
	Filename  string
	Blob      Blob
}

// Saver performs a save-as for an in-memory object.
type Saver interface {
	SaveAs(ctx context.Context, req SaveRequest) error
}

// Shell is everything the interceptor needs from the embedding application.
type Shell interface {
	Dialogs
	Navigator
	Saver
}
