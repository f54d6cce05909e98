// Package logging configures structured JSON logging for catalogsearch.
//
// Logs go to stderr and, with --debug or a configured file path, to a
// size-rotated file under ~/.catalogsearch/logs. The `catalogsearch logs`
// command reads those files back through Viewer.
package logging
