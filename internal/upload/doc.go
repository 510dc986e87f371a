// Package upload implements file selection, endpoint resolution and
// multipart transmission for intercepted upload interactions.
package upload
