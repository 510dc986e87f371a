// Package server is the local bridge between the native webview shell and
// the page interceptors.
//
// The shell loads a page snapshot with POST /pages and then forwards the
// page's events (clicks, drags, inserted markup, file input changes) to the
// page routes. Everything the interceptor needs from the shell travels back
// over the page websocket:
//
//	choose_files, confirm, save      prompts, answered with {"type":"answer","id":...}
//	alert, navigate, reload,
//	load_in_background               notifications
//
// Messages produced while no shell is connected are queued and delivered
// when one attaches. Saved downloads are fetched from
// GET /pages/:id/blobs/:ref while their object URL is live.
//
// Routes:
//   - GET /health, GET /metrics
//   - POST /pages, GET /pages/:id, DELETE /pages/:id
//   - POST /pages/:id/{click,drag,mutations,change,script}
//   - GET /pages/:id/ws, GET /pages/:id/blobs/:ref
package server
