/*
Package observer keeps file input enhancement valid while the page mutates.

The Enhancer binds one change listener per file-picker input; running it
again detaches the old binding before attaching a new one, so repeated
passes never stack listeners. The Observer subscribes to child-list
mutations of the body subtree and triggers a whole-document pass when an
inserted node is or contains a file-picker input. Inserted download links
are only logged.
*/
package observer
