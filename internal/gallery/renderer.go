package gallery

import (
	"embed"
	"fmt"
	"io"
	"io/fs"
	"sync"

	"github.com/flosch/pongo2/v6"
)

//go:embed templates assets
var files embed.FS

// Renderer turns a manifest into index.html. Render is a pure function of
// the manifest.
type Renderer interface {
	Framework() Framework
	Render(w io.Writer, m *Manifest) error
	// Assets are copied verbatim next to index.html.
	Assets() fs.FS
}

// NewRenderer returns the renderer for fw.
func NewRenderer(fw Framework) (Renderer, error) {
	switch fw {
	case Lightbox:
		return newTemplateRenderer(fw, "photoswipe/index.html")
	case TableSlideshow:
		return newTemplateRenderer(fw, "blueimp/index.html")
	}
	return nil, fmt.Errorf("unknown gallery framework %q", fw)
}

type templateRenderer struct {
	fw     Framework
	tpl    *pongo2.Template
	assets fs.FS
}

var (
	setOnce sync.Once
	set     *pongo2.TemplateSet
	setErr  error
)

func templateSet() (*pongo2.TemplateSet, error) {
	setOnce.Do(func() {
		sub, err := fs.Sub(files, "templates")
		if err != nil {
			setErr = err
			return
		}
		set = pongo2.NewSet("gallery", pongo2.NewFSLoader(sub))
	})
	return set, setErr
}

func newTemplateRenderer(fw Framework, name string) (*templateRenderer, error) {
	ts, err := templateSet()
	if err != nil {
		return nil, fmt.Errorf("gallery templates: %w", err)
	}
	tpl, err := ts.FromCache(name)
	if err != nil {
		return nil, fmt.Errorf("load template %q: %w", name, err)
	}
	assets, err := fs.Sub(files, "assets/"+string(fw))
	if err != nil {
		return nil, fmt.Errorf("gallery assets: %w", err)
	}
	return &templateRenderer{fw: fw, tpl: tpl, assets: assets}, nil
}

func (r *templateRenderer) Framework() Framework { return r.fw }

func (r *templateRenderer) Assets() fs.FS { return r.assets }

// Render executes the template with autoescaping on, so labels reach the
// page as text exactly as the user wrote them.
func (r *templateRenderer) Render(w io.Writer, m *Manifest) error {
	ctx := pongo2.Context{
		"title":     m.Title,
		"timestamp": m.FormattedTimestamp(),
		"framework": string(m.Framework),
		"entries":   m.Entries,
	}
	if err := r.tpl.ExecuteWriter(ctx, w); err != nil {
		return fmt.Errorf("render %s gallery: %w", r.fw, err)
	}
	return nil
}
