package render

import (
	"context"
	"fmt"

	"github.com/gentlegiant96202/silberarrows-uv-sub005/pkg/model"
)

// Backend drives a headless browser through the load → settle → capture
// pipeline. Implementations must tear down every browser resource they open
// before returning, on success and failure alike.
type Backend interface {
	// RenderImage loads the resolved document and captures a PNG using the
	// request's capture strategy (viewport clip or element scope).
	RenderImage(ctx context.Context, req *ImageRequest) ([]byte, error)

	// RenderPDF loads the resolved document and exports a paginated PDF with
	// print backgrounds enabled.
	RenderPDF(ctx context.Context, req *PDFRequest) ([]byte, error)

	// RenderPDFPages rasterizes an existing PDF's pages inside the browser
	// via an injected PDF-rendering script, returning per-page data URLs.
	RenderPDFPages(ctx context.Context, req *PDFPagesRequest) ([]Page, error)

	// Close cleans up any long-lived resources held by the backend.
	Close() error

	// Name returns the backend name.
	Name() string
}

// NewBackend creates a rendering backend from configuration.
// "chromium" (go-rod) is the default; "playwright" requires the Node driver.
func NewBackend(cfg model.RendererConfig) (Backend, error) {
	switch cfg.Backend {
	case "", "chromium":
		return NewChromiumBackend(cfg), nil
	case "playwright":
		return NewPlaywrightBackend(cfg), nil
	}
	return nil, fmt.Errorf("unknown renderer backend %q (want chromium or playwright)", cfg.Backend)
}
