package render

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/gentlegiant96202/silberarrows-uv-sub005/pkg/model"
)

// ProfileDirPrefix is shared with the janitor, which sweeps abandoned
// profile directories.
const ProfileDirPrefix = ".render-profile-"

// ChromiumBackend renders documents with go-rod. Every render call launches
// a fresh browser process with its own profile directory and tears it down
// before returning: per-request isolation over per-request latency, which is
// the right trade for a low-QPS internal rendering service.
type ChromiumBackend struct {
	config model.RendererConfig
}

// NewChromiumBackend creates a Chromium backend with config defaults applied.
func NewChromiumBackend(config model.RendererConfig) *ChromiumBackend {
	if config.TimeoutMS == 0 {
		config.TimeoutMS = int(defaultTimeout / time.Millisecond)
	}
	if config.DeviceScaleFactor == 0 {
		config.DeviceScaleFactor = 1.0
	}
	return &ChromiumBackend{config: config}
}

// Name returns the backend name.
func (b *ChromiumBackend) Name() string { return "chromium" }

// Close is a no-op: the backend holds no long-lived browser, each render
// owns its own instance.
func (b *ChromiumBackend) Close() error { return nil }

// findChromeBinary tries to locate a Chrome binary in common locations.
func findChromeBinary() string {
	candidatePaths := []string{
		"/usr/bin/google-chrome",
		"/usr/bin/google-chrome-stable",
		"/usr/bin/chromium",
		"/usr/bin/chromium-browser",
		"/snap/bin/chromium",
		"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
		"/Applications/Chromium.app/Contents/MacOS/Chromium",
	}
	for _, path := range candidatePaths {
		if info, err := os.Stat(path); err == nil && info.Mode()&0111 != 0 {
			return path
		}
	}
	return ""
}

// generateInstanceID creates a unique identifier for one render session.
func generateInstanceID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// chromiumSession owns every resource of one render: browser process,
// profile directory, page, and the temp file holding the document.
type chromiumSession struct {
	browser    *rod.Browser
	page       *rod.Page
	profileDir string
	htmlPath   string
	instanceID string
}

// close releases everything the session owns. Safe to call on a partially
// initialized session; runs on every exit path.
func (s *chromiumSession) close() {
	if s.page != nil {
		_ = s.page.Close()
	}
	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			log.Printf("[RENDER] WARNING: failed to close browser (instance: %s): %v", s.instanceID, err)
		}
	}
	if s.profileDir != "" {
		os.RemoveAll(s.profileDir)
	}
	if s.htmlPath != "" {
		os.Remove(s.htmlPath)
	}
}

// newSession launches a fresh Chromium process and opens a blank page.
func (b *ChromiumBackend) newSession() (*chromiumSession, error) {
	s := &chromiumSession{instanceID: generateInstanceID()}
	s.profileDir = filepath.Join(os.TempDir(), ProfileDirPrefix+s.instanceID)
	os.MkdirAll(s.profileDir, 0755)

	l := launcher.New()

	chromePath := b.config.ChromiumPath
	if chromePath == "" {
		chromePath = findChromeBinary()
	}
	if chromePath != "" {
		l = l.Bin(chromePath)
	}

	// Flags for server environments, same set on every launch.
	l = l.Set("no-sandbox")
	l = l.Set("disable-setuid-sandbox")
	l = l.Set("disable-dev-shm-usage")
	l = l.Set("disable-gpu")
	l = l.Set("no-first-run")
	l = l.Set("no-default-browser-check")
	l = l.Set("disable-breakpad")
	l = l.Set("user-data-dir", s.profileDir)
	if b.config.Headless {
		l = l.Headless(false)
		l = l.Set("headless", "new")
	}

	if b.config.SkipTLSVerify {
		l = l.Set("ignore-certificate-errors")
	}

	launchURL, err := l.Launch()
	if err != nil {
		s.close()
		return nil, fmt.Errorf("%w: %v", ErrBrowserLaunch, err)
	}

	browser := rod.New().ControlURL(launchURL)
	if err := browser.Connect(); err != nil {
		s.close()
		return nil, fmt.Errorf("%w: connect: %v", ErrBrowserLaunch, err)
	}
	s.browser = browser

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		s.close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	s.page = page

	return s, nil
}

// loadDocument writes the resolved HTML to a session-scoped temp file and
// navigates the page to it. No web server hosts intermediate documents.
func (s *chromiumSession) loadDocument(html string) error {
	f, err := os.CreateTemp("", "render-doc-*.html")
	if err != nil {
		return fmt.Errorf("failed to stage document: %w", err)
	}
	s.htmlPath = f.Name()
	if _, err := f.WriteString(html); err != nil {
		f.Close()
		return fmt.Errorf("failed to stage document: %w", err)
	}
	f.Close()

	if err := s.page.Navigate("file://" + s.htmlPath); err != nil {
		return fmt.Errorf("%w: %v", ErrPageLoad, err)
	}
	return nil
}

// Readiness scripts. Eval awaits returned promises, so each script resolves
// only once its signal has fired.
const (
	jsDOMReady = `() => new Promise((resolve) => {
		if (document.readyState !== 'loading') { resolve(document.readyState); return; }
		document.addEventListener('DOMContentLoaded', () => resolve('interactive'), { once: true });
	})`

	jsFontsReady = `() => document.fonts.ready.then(() => document.fonts.status)`

	// jsFontProbe appends a hidden element styled with the custom family and
	// reads its box to force a synchronous layout pass. Some headless builds
	// defer custom font application until a layout needs it; without this the
	// first paint can use the fallback font.
	jsFontProbe = `(family) => {
		const probe = document.createElement('span');
		probe.textContent = 'AED 0123456789';
		probe.style.cssText = 'position:absolute;left:-9999px;top:0;visibility:hidden;font-size:48px;';
		probe.style.fontFamily = family;
		document.body.appendChild(probe);
		const forced = probe.offsetWidth + probe.offsetHeight;
		probe.remove();
		return forced;
	}`
)

// settle runs the readiness protocol in order: load-or-DOM signal, network
// idle, font readiness, font probe forced layout, fixed settle delay.
func (s *chromiumSession) settle(ctx context.Context, wait WaitOptions) error {
	page := s.page.Context(ctx).Timeout(wait.Timeout)

	switch wait.Mode {
	case WaitDOMReady:
		if _, err := page.Eval(jsDOMReady); err != nil {
			return wrapTimeout(err, "waiting for DOM")
		}
	default:
		if err := page.WaitLoad(); err != nil {
			return wrapTimeout(err, "waiting for load event")
		}
		page.WaitIdle(wait.Timeout)
	}

	if _, err := page.Eval(jsFontsReady); err != nil {
		log.Printf("[RENDER] WARNING: font readiness wait failed (instance: %s): %v", s.instanceID, err)
	}

	if wait.FontFamily != "" {
		if _, err := page.Eval(jsFontProbe, wait.FontFamily); err != nil {
			log.Printf("[RENDER] WARNING: font probe failed (instance: %s): %v", s.instanceID, err)
		}
	}

	if wait.SettleDelay > 0 {
		select {
		case <-time.After(wait.SettleDelay):
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrRenderTimeout, ctx.Err())
		}
	}
	return nil
}

// wrapTimeout maps deadline errors to the render timeout sentinel.
func wrapTimeout(err error, stage string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %v", ErrRenderTimeout, stage, err)
	}
	return fmt.Errorf("%w: %s: %v", ErrPageLoad, stage, err)
}

// RenderImage loads the document at the requested viewport, settles it, and
// captures a PNG via viewport clip or element scope.
func (b *ChromiumBackend) RenderImage(ctx context.Context, req *ImageRequest) ([]byte, error) {
	normalizeViewport(&req.Viewport)
	normalizeWait(&req.Wait)

	s, err := b.newSession()
	if err != nil {
		return nil, err
	}
	defer s.close()

	if err := s.page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             req.Viewport.Width,
		Height:            req.Viewport.Height,
		DeviceScaleFactor: req.Viewport.Scale,
		Mobile:            false,
	}); err != nil {
		return nil, fmt.Errorf("failed to set viewport: %w", err)
	}

	if err := s.loadDocument(req.HTML); err != nil {
		return nil, err
	}
	if err := s.settle(ctx, req.Wait); err != nil {
		return nil, err
	}

	page := s.page.Context(ctx).Timeout(req.Wait.Timeout)

	if req.Selector != "" {
		el, err := page.Element(req.Selector)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrElementNotFound, req.Selector, err)
		}
		bin, err := el.Screenshot(proto.PageCaptureScreenshotFormatPng, 0)
		if err != nil {
			return nil, fmt.Errorf("%w: element screenshot: %v", ErrCapture, err)
		}
		return bin, nil
	}

	clip := req.Clip
	if clip == nil {
		clip = &Clip{Width: float64(req.Viewport.Width), Height: float64(req.Viewport.Height)}
	}
	bin, err := page.Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
		Clip: &proto.PageViewport{
			X:      clip.X,
			Y:      clip.Y,
			Width:  clip.Width,
			Height: clip.Height,
			Scale:  1,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: clipped screenshot: %v", ErrCapture, err)
	}
	return bin, nil
}

// RenderPDF loads the document, settles it, and exports a paginated PDF with
// print backgrounds enabled.
func (b *ChromiumBackend) RenderPDF(ctx context.Context, req *PDFRequest) ([]byte, error) {
	normalizeViewport(&req.Viewport)
	normalizeWait(&req.Wait)
	if req.MarginInches == 0 && req.Format == PDFFormatA4 {
		req.MarginInches = defaultPDFMargin
	}

	s, err := b.newSession()
	if err != nil {
		return nil, err
	}
	defer s.close()

	if err := s.page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             req.Viewport.Width,
		Height:            req.Viewport.Height,
		DeviceScaleFactor: req.Viewport.Scale,
		Mobile:            false,
	}); err != nil {
		return nil, fmt.Errorf("failed to set viewport: %w", err)
	}

	if err := s.loadDocument(req.HTML); err != nil {
		return nil, err
	}
	if err := s.settle(ctx, req.Wait); err != nil {
		return nil, err
	}

	f := func(x float64) *float64 { return &x }
	opts := &proto.PagePrintToPDF{
		PrintBackground:     true,
		DisplayHeaderFooter: false,
		Scale:               f(1.0),
	}
	switch req.Format {
	case PDFFormatCSSPage:
		opts.PreferCSSPageSize = true
		opts.MarginTop = f(0)
		opts.MarginBottom = f(0)
		opts.MarginLeft = f(0)
		opts.MarginRight = f(0)
	default:
		opts.PreferCSSPageSize = false
		opts.PaperWidth = f(a4WidthInches)
		opts.PaperHeight = f(a4HeightInches)
		opts.MarginTop = f(req.MarginInches)
		opts.MarginBottom = f(req.MarginInches)
		opts.MarginLeft = f(req.MarginInches)
		opts.MarginRight = f(req.MarginInches)
	}

	page := s.page.Context(ctx).Timeout(req.Wait.Timeout)
	stream, err := page.PDF(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: pdf export: %v", ErrCapture, err)
	}
	pdf, err := io.ReadAll(stream)
	if err != nil {
		return nil, fmt.Errorf("%w: reading pdf stream: %v", ErrCapture, err)
	}
	if !IsPDF(pdf) {
		return nil, fmt.Errorf("%w (got %d bytes)", ErrNotPDF, len(pdf))
	}
	return pdf, nil
}

// RenderPDFPages rasterizes the pages of an existing PDF by injecting a
// PDF-rendering library into a blank page and drawing each page to a canvas.
func (b *ChromiumBackend) RenderPDFPages(ctx context.Context, req *PDFPagesRequest) ([]Page, error) {
	if req.Scale == 0 {
		req.Scale = defaultPDFScale
	}
	if req.Timeout == 0 {
		req.Timeout = 60 * time.Second
	}

	s, err := b.newSession()
	if err != nil {
		return nil, err
	}
	defer s.close()

	page := s.page.Context(ctx).Timeout(req.Timeout)
	if err := page.Navigate("about:blank"); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPageLoad, err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, wrapTimeout(err, "waiting for blank page")
	}

	res, err := page.Eval(jsRasterizePDF, req.PDFURL, req.Scale)
	if err != nil {
		return nil, wrapTimeout(err, "rasterizing pdf")
	}

	raw, err := json.Marshal(res.Value)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding pages: %v", ErrCapture, err)
	}
	var pages []Page
	if err := json.Unmarshal(raw, &pages); err != nil {
		return nil, fmt.Errorf("%w: decoding pages: %v", ErrCapture, err)
	}
	return pages, nil
}
