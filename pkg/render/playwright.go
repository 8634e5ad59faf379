package render

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/gentlegiant96202/silberarrows-uv-sub005/pkg/model"
)

// PlaywrightBackend renders documents through the Playwright driver. Unlike
// the chromium backend it keeps one browser process alive and isolates each
// render inside a fresh browser context, which is cheaper per request but
// depends on the external Node.js driver being installable.
type PlaywrightBackend struct {
	config     model.RendererConfig
	instanceID string

	mu      sync.Mutex
	pw      *playwright.Playwright
	browser playwright.Browser
}

// NewPlaywrightBackend creates a Playwright backend. The browser launches
// lazily on first render.
func NewPlaywrightBackend(config model.RendererConfig) *PlaywrightBackend {
	if config.TimeoutMS == 0 {
		config.TimeoutMS = int(defaultTimeout / time.Millisecond)
	}
	if config.DeviceScaleFactor == 0 {
		config.DeviceScaleFactor = 1.0
	}
	instanceID := generateInstanceID()
	log.Printf("DEBUG: Created new PlaywrightBackend instance: %s", instanceID)
	return &PlaywrightBackend{config: config, instanceID: instanceID}
}

// Name returns the backend name.
func (b *PlaywrightBackend) Name() string { return "playwright" }

// getBrowser initializes or returns the shared browser instance.
func (b *PlaywrightBackend) getBrowser() (playwright.Browser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browser != nil {
		return b.browser, nil
	}

	log.Printf("DEBUG: Initializing Playwright (instance: %s)", b.instanceID)

	// Writable cache and driver paths for container environments where the
	// home directory is read-only.
	if os.Getenv("PLAYWRIGHT_BROWSERS_PATH") == "" {
		os.Setenv("PLAYWRIGHT_BROWSERS_PATH", "/tmp/.playwright-cache")
	}
	if os.Getenv("PLAYWRIGHT_DRIVER_PATH") == "" {
		os.Setenv("PLAYWRIGHT_DRIVER_PATH", "/tmp/.playwright-driver")
	}
	os.MkdirAll(os.Getenv("PLAYWRIGHT_BROWSERS_PATH"), 0755)
	os.MkdirAll(os.Getenv("PLAYWRIGHT_DRIVER_PATH"), 0755)

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to start Playwright: %v (consider backend=chromium)", ErrBrowserLaunch, err)
	}
	b.pw = pw

	launchOptions := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(b.config.Headless),
		Args: []string{
			"--no-sandbox",
			"--disable-setuid-sandbox",
			"--disable-dev-shm-usage",
			"--disable-gpu",
			"--no-first-run",
			"--no-default-browser-check",
			"--disable-breakpad",
		},
	}

	chromiumPath := b.config.ChromiumPath
	if chromiumPath == "" {
		chromiumPath = findChromeBinary()
	}
	if chromiumPath != "" {
		launchOptions.ExecutablePath = playwright.String(chromiumPath)
		log.Printf("DEBUG: Using system Chromium: %s", chromiumPath)
	} else {
		log.Printf("WARNING: No system Chromium found, will try Playwright's bundled version")
	}

	if b.config.SkipTLSVerify {
		launchOptions.Args = append(launchOptions.Args, "--ignore-certificate-errors")
		log.Printf("WARNING: TLS certificate verification disabled for renderer")
	}

	browser, err := b.pw.Chromium.Launch(launchOptions)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to launch Chromium: %v", ErrBrowserLaunch, err)
	}
	b.browser = browser
	log.Printf("Playwright Chromium browser initialized successfully")
	return browser, nil
}

// Close shuts down the shared browser and the driver.
func (b *PlaywrightBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browser != nil {
		if err := b.browser.Close(); err != nil {
			log.Printf("WARNING: failed to close Playwright browser (instance: %s): %v", b.instanceID, err)
		}
		b.browser = nil
	}
	if b.pw != nil {
		if err := b.pw.Stop(); err != nil {
			return fmt.Errorf("failed to stop Playwright: %w", err)
		}
		b.pw = nil
	}
	return nil
}

// newPage creates an isolated context and page at the given viewport.
func (b *PlaywrightBackend) newPage(viewport Viewport, timeout time.Duration) (playwright.BrowserContext, playwright.Page, error) {
	browser, err := b.getBrowser()
	if err != nil {
		return nil, nil, err
	}

	browserContext, err := browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  viewport.Width,
			Height: viewport.Height,
		},
		DeviceScaleFactor: playwright.Float(viewport.Scale),
		IgnoreHttpsErrors: playwright.Bool(b.config.SkipTLSVerify),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	page, err := browserContext.NewPage()
	if err != nil {
		browserContext.Close()
		return nil, nil, fmt.Errorf("failed to create page: %w", err)
	}
	page.SetDefaultTimeout(float64(timeout / time.Millisecond))
	return browserContext, page, nil
}

// settle runs the readiness protocol on a loaded page.
func (b *PlaywrightBackend) settle(ctx context.Context, page playwright.Page, wait WaitOptions) error {
	if _, err := page.Evaluate(jsFontsReady); err != nil {
		log.Printf("WARNING: font readiness wait failed (instance: %s): %v", b.instanceID, err)
	}
	if wait.FontFamily != "" {
		if _, err := page.Evaluate(jsFontProbe, wait.FontFamily); err != nil {
			log.Printf("WARNING: font probe failed (instance: %s): %v", b.instanceID, err)
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

func waitUntilState(mode WaitMode) *playwright.WaitUntilState {
	if mode == WaitDOMReady {
		return playwright.WaitUntilStateDomcontentloaded
	}
	return playwright.WaitUntilStateNetworkidle
}

// RenderImage loads the document in a fresh context and captures a PNG.
func (b *PlaywrightBackend) RenderImage(ctx context.Context, req *ImageRequest) ([]byte, error) {
	normalizeViewport(&req.Viewport)
	normalizeWait(&req.Wait)

	browserContext, page, err := b.newPage(req.Viewport, req.Wait.Timeout)
	if err != nil {
		return nil, err
	}
	defer browserContext.Close()
	defer page.Close()

	if err := page.SetContent(req.HTML, playwright.PageSetContentOptions{
		WaitUntil: waitUntilState(req.Wait.Mode),
	}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPageLoad, err)
	}
	if err := b.settle(ctx, page, req.Wait); err != nil {
		return nil, err
	}

	if req.Selector != "" {
		locator := page.Locator(req.Selector)
		bin, err := locator.Screenshot(playwright.LocatorScreenshotOptions{
			Type: playwright.ScreenshotTypePng,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrElementNotFound, req.Selector, err)
		}
		return bin, nil
	}

	opts := playwright.PageScreenshotOptions{Type: playwright.ScreenshotTypePng}
	if req.Clip != nil {
		opts.Clip = &playwright.Rect{
			X:      req.Clip.X,
			Y:      req.Clip.Y,
			Width:  req.Clip.Width,
			Height: req.Clip.Height,
		}
	}
	bin, err := page.Screenshot(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: screenshot: %v", ErrCapture, err)
	}
	return bin, nil
}

// RenderPDF loads the document in a fresh context and exports a PDF.
func (b *PlaywrightBackend) RenderPDF(ctx context.Context, req *PDFRequest) ([]byte, error) {
	normalizeViewport(&req.Viewport)
	normalizeWait(&req.Wait)
	if req.MarginInches == 0 && req.Format == PDFFormatA4 {
		req.MarginInches = defaultPDFMargin
	}

	browserContext, page, err := b.newPage(req.Viewport, req.Wait.Timeout)
	if err != nil {
		return nil, err
	}
	defer browserContext.Close()
	defer page.Close()

	if err := page.SetContent(req.HTML, playwright.PageSetContentOptions{
		WaitUntil: waitUntilState(req.Wait.Mode),
	}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPageLoad, err)
	}
	if err := b.settle(ctx, page, req.Wait); err != nil {
		return nil, err
	}

	opts := playwright.PagePdfOptions{
		PrintBackground: playwright.Bool(true),
	}
	switch req.Format {
	case PDFFormatCSSPage:
		opts.PreferCSSPageSize = playwright.Bool(true)
		opts.Margin = &playwright.Margin{
			Top:    playwright.String("0"),
			Bottom: playwright.String("0"),
			Left:   playwright.String("0"),
			Right:  playwright.String("0"),
		}
	default:
		opts.Format = playwright.String("A4")
		margin := fmt.Sprintf("%.2fin", req.MarginInches)
		opts.Margin = &playwright.Margin{
			Top:    playwright.String(margin),
			Bottom: playwright.String(margin),
			Left:   playwright.String(margin),
			Right:  playwright.String(margin),
		}
	}

	pdf, err := page.PDF(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: pdf export: %v", ErrCapture, err)
	}
	if !IsPDF(pdf) {
		return nil, fmt.Errorf("%w (got %d bytes)", ErrNotPDF, len(pdf))
	}
	return pdf, nil
}

// RenderPDFPages rasterizes the pages of an existing PDF inside a blank page.
func (b *PlaywrightBackend) RenderPDFPages(ctx context.Context, req *PDFPagesRequest) ([]Page, error) {
	if req.Scale == 0 {
		req.Scale = defaultPDFScale
	}
	if req.Timeout == 0 {
		req.Timeout = 60 * time.Second
	}

	browserContext, page, err := b.newPage(Viewport{Width: 1280, Height: 1024, Scale: 1}, req.Timeout)
	if err != nil {
		return nil, err
	}
	defer browserContext.Close()
	defer page.Close()

	if _, err := page.Goto("about:blank"); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPageLoad, err)
	}

	// Playwright passes a single argument to Evaluate, so destructure it.
	script := "(args) => (" + jsRasterizePDF + ")(args.url, args.scale)"
	result, err := page.Evaluate(script, map[string]interface{}{"url": req.PDFURL, "scale": req.Scale})
	if err != nil {
		if strings.Contains(err.Error(), "Timeout") {
			return nil, fmt.Errorf("%w: rasterizing pdf: %v", ErrRenderTimeout, err)
		}
		return nil, fmt.Errorf("%w: rasterizing pdf: %v", ErrCapture, err)
	}

	raw, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding pages: %v", ErrCapture, err)
	}
	var pages []Page
	if err := json.Unmarshal(raw, &pages); err != nil {
		return nil, fmt.Errorf("%w: decoding pages: %v", ErrCapture, err)
	}
	return pages, nil
}
