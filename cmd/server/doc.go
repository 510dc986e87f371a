// Command server runs the pagehook bridge: the local HTTP and websocket
// service a native webview shell uses to route page clicks, drags and file
// inputs through the interceptor.
//
// Configuration comes from the environment (PORT, HOST, LOG_LEVEL,
// RULES_FILE, ...); flags override it.
//
// Usage:
//
//	server -port 8787 -rules rules.yaml
//	server -dev
//
// SIGINT and SIGTERM shut the server down gracefully, closing every page.
package main
