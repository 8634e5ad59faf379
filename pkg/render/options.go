package render

import (
	"errors"
	"time"
)

// Sentinel errors surfaced to the endpoint layer.
var (
	ErrBrowserLaunch   = errors.New("failed to launch browser")
	ErrPageLoad        = errors.New("failed to load document")
	ErrRenderTimeout   = errors.New("render timed out before the page settled")
	ErrElementNotFound = errors.New("capture element not found")
	ErrCapture         = errors.New("capture failed")
	ErrNotPDF          = errors.New("output is not a PDF")
)

// WaitMode selects the initial readiness signal.
type WaitMode int

const (
	// WaitNetworkIdle waits for the load event and then for network activity
	// to settle. Default for self-contained documents.
	WaitNetworkIdle WaitMode = iota
	// WaitDOMReady waits only for the document to be parsed. Used when
	// external image hosts are known to be slow, to bound worst-case latency.
	WaitDOMReady
)

// Viewport is the explicit pixel viewport for a render. It is a first-class
// input to the render call, never inferred from content.
type Viewport struct {
	Width  int
	Height int
	Scale  float64 // device scale factor; 1.0 renders at exact pixel size
}

// WaitOptions is the readiness protocol configuration for one render.
// The steps run strictly in order: mode signal, font readiness, forced
// layout of a font probe, fixed settle delay.
type WaitOptions struct {
	Mode        WaitMode
	Timeout     time.Duration // bound on the load step; render fails fast past it
	SettleDelay time.Duration // fixed post-readiness sleep
	FontFamily  string        // probe font family; empty skips the probe
}

// Clip is a viewport-space capture rectangle.
type Clip struct {
	X, Y, Width, Height float64
}

// ImageRequest describes one PNG render.
// Exactly one of Clip or Selector is set: a non-empty Selector requests an
// element-scoped screenshot; otherwise the clip rectangle is captured.
type ImageRequest struct {
	HTML     string
	Viewport Viewport
	Wait     WaitOptions
	Clip     *Clip
	Selector string
}

// PDFPageFormat selects the paper geometry for a PDF export.
type PDFPageFormat int

const (
	// PDFFormatA4 exports A4 pages with uniform margins.
	PDFFormatA4 PDFPageFormat = iota
	// PDFFormatCSSPage exports with zero margins and defers page sizing to
	// the document's @page CSS rules, for precision layouts.
	PDFFormatCSSPage
)

// A4 paper dimensions in inches. Chrome's print pipeline works at 96 DPI.
const (
	a4WidthInches  = 8.27
	a4HeightInches = 11.69
)

// PDFRequest describes one paginated PDF export.
type PDFRequest struct {
	HTML         string
	Viewport     Viewport
	Wait         WaitOptions
	Format       PDFPageFormat
	MarginInches float64 // used by the A4 format; ignored for CSS page sizing
}

// PDFPagesRequest describes a PDF rasterization call.
type PDFPagesRequest struct {
	PDFURL  string
	Scale   float64
	Timeout time.Duration
}

// Page is one rasterized PDF page.
type Page struct {
	PageIndex int    `json:"pageIndex"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	DataURL   string `json:"dataUrl"`
}

// Defaults applied by the backends when a request leaves fields zero.
const (
	defaultTimeout     = 30 * time.Second
	defaultSettleDelay = 800 * time.Millisecond
	defaultScale       = 1.0
	defaultPDFScale    = 1.5
	defaultPDFMargin   = 0.4
)

// normalizeViewport fills viewport defaults in place.
func normalizeViewport(v *Viewport) {
	if v.Width == 0 {
		v.Width = 1080
	}
	if v.Height == 0 {
		v.Height = 1920
	}
	if v.Scale == 0 {
		v.Scale = defaultScale
	}
}

// normalizeWait fills wait defaults in place.
func normalizeWait(w *WaitOptions) {
	if w.Timeout == 0 {
		w.Timeout = defaultTimeout
	}
	if w.SettleDelay == 0 {
		w.SettleDelay = defaultSettleDelay
	}
}
