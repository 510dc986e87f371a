// Package dragdrop handles files dragged onto the page from outside.
package dragdrop
