// Package convert implements the presentation conversion pipeline: an
// uploaded file becomes a session directory of per-page PNG images by way
// of a document-to-PDF step and a PDF rasterization step, both delegated
// to external tools.
package convert
