package cspec

import (
	"embed"
	"io/fs"
)

//go:embed resources/embedded.css resources/main.js
var resourceFS embed.FS

// ResourceBundle exposes the embedded CSS/JS assets appended to output
// documents (§4.16) and served by the dev server's /_assets/ route.
type ResourceBundle struct {
	CSS string
	JS  string
}

// LoadResourceBundle reads the embedded assets. It only errors if the
// embed failed to compile the bundle in, which would be a build-time
// defect, not a runtime one.
func LoadResourceBundle() (*ResourceBundle, error) {
	css, err := fs.ReadFile(resourceFS, "resources/embedded.css")
	if err != nil {
		return nil, err
	}
	js, err := fs.ReadFile(resourceFS, "resources/main.js")
	if err != nil {
		return nil, err
	}
	return &ResourceBundle{CSS: string(css), JS: string(js)}, nil
}

// FS returns the embedded filesystem rooted at "resources", suitable for
// mounting behind an http.FileServer (C13).
func (b *ResourceBundle) FS() (fs.FS, error) {
	return fs.Sub(resourceFS, "resources")
}
