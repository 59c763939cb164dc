// Package static holds the embedded upload page.
package static

import (
	"embed"
	"html/template"
)

//go:embed index.html
var files embed.FS

// PageData is rendered into the upload page.
type PageData struct {
	Title     string
	Recognize bool
	MaxSizeMB int64
}

// Template parses the embedded upload page.
func Template() (*template.Template, error) {
	return template.ParseFS(files, "index.html")
}
