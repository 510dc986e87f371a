/*
Package interceptor installs the click, drag and file input hooks on a page
and routes what they catch to the upload and download flows.

A click is classified once, in the capture phase, before any page handler
sees it. Upload triggers and download links are suppressed and stopped;
links meant for a new browsing context only have their default prevented
and are loaded in place. Everything else passes through untouched.

Work that waits on the user or the network runs as a task owned by the
interceptor. Close cancels and waits for those tasks.
*/
package interceptor
