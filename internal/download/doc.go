// Package download reroutes download links to the host shell.
//
// Three strategies run for every request, none waiting on another:
//   - a hidden loader frame pointed at the URL, removed after a grace period
//   - a GET whose 2xx body becomes a blob handed to the host's save-as
//   - navigation of the page to the URL when nothing was saved
package download
