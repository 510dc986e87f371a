/*
Package bridge is the script context of a page.

It publishes the three entry points page scripts call:

	pakeDownload(url, filename)
	pakeUpload(endpoint, files, extra)
	pakeCreateFileSelector(accept, multiple)

on window. Each returns a promise. The underlying Go call completes before
the function returns, so the promise is already settled when the script
continues; awaiting it works as usual. Files handed to scripts are opaque
handles and can only be passed back to pakeUpload.
*/
package bridge
