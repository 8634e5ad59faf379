package api

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gentlegiant96202/silberarrows-uv-sub005/pkg/mail"
	"github.com/gentlegiant96202/silberarrows-uv-sub005/pkg/model"
	"github.com/gentlegiant96202/silberarrows-uv-sub005/pkg/render"
	"github.com/gentlegiant96202/silberarrows-uv-sub005/pkg/store"
	"github.com/gentlegiant96202/silberarrows-uv-sub005/pkg/substitute"
	"github.com/gentlegiant96202/silberarrows-uv-sub005/pkg/template"
)

// brandFontFamily is the custom font family templates declare via
// @font-face; the readiness probe forces a layout pass against it.
const brandFontFamily = "BrandFont"

// docProfile fixes viewport and readiness parameters per document type.
// Viewport choice is a first-class input to the render, never inferred.
type docProfile struct {
	viewport render.Viewport
	mode     render.WaitMode
	settle   time.Duration
	timeout  time.Duration
	selector string
}

// Documents loading caller-hosted car photos use the DOM-ready signal with a
// long settle delay, because external image hosts are slow enough to stall
// the network-idle signal past any sane timeout.
var docProfiles = map[string]docProfile{
	template.DocStory:             {viewport: render.Viewport{Width: 1080, Height: 1920}, settle: 2 * time.Second, timeout: 30 * time.Second},
	template.DocPost45:            {viewport: render.Viewport{Width: 1080, Height: 1350}, settle: 2 * time.Second, timeout: 30 * time.Second},
	template.DocCatalog:           {viewport: render.Viewport{Width: 3000, Height: 3000}, mode: render.WaitDOMReady, settle: 5 * time.Second, timeout: 60 * time.Second, selector: ".catalog-card"},
	template.DocLeasingCatalog:    {viewport: render.Viewport{Width: 2400, Height: 2400}, mode: render.WaitDOMReady, settle: 5 * time.Second, timeout: 60 * time.Second, selector: ".catalog-card"},
	template.DocLeasingCatalogAlt: {viewport: render.Viewport{Width: 2400, Height: 2400}, mode: render.WaitDOMReady, settle: 5 * time.Second, timeout: 60 * time.Second, selector: ".catalog-card"},
	template.DocDamageReport:      {viewport: render.Viewport{Width: 2029, Height: 765}, mode: render.WaitDOMReady, settle: 2 * time.Second, timeout: 30 * time.Second},
	docContentPillar:              {viewport: render.Viewport{Width: 1080, Height: 1920}, mode: render.WaitDOMReady, settle: 3 * time.Second, timeout: 45 * time.Second},
	docMythBuster:                 {viewport: render.Viewport{Width: 2160, Height: 3840}, mode: render.WaitDOMReady, settle: 7 * time.Second, timeout: 60 * time.Second},
}

// Run doc types that do not map one-to-one onto a template file.
const (
	docCards         = "cards"
	docContentPillar = "content-pillar"
	docRawHTML       = "raw-html"
	docCarPDF        = "car-pdf"
	docMythBuster    = "myth-buster"
	docPDFToImages   = "pdf-to-images"
)

// Handler handles HTTP API requests
type Handler struct {
	templates *template.Store
	backend   render.Backend
	store     *store.Store
	mailer    *mail.Mailer // nil when SMTP is not configured
	config    model.RendererConfig
	mux       *http.ServeMux
}

// NewHandler creates a new API handler. mailer may be nil.
func NewHandler(templates *template.Store, backend render.Backend, st *store.Store, mailer *mail.Mailer, config model.RendererConfig) *Handler {
	h := &Handler{
		templates: templates,
		backend:   backend,
		store:     st,
		mailer:    mailer,
		config:    config,
		mux:       http.NewServeMux(),
	}

	h.registerRoutes()
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// registerRoutes registers all HTTP routes
func (h *Handler) registerRoutes() {
	h.mux.HandleFunc("/render", h.handleRenderCards)
	h.mux.HandleFunc("/render-catalog", h.handleCatalog)
	h.mux.HandleFunc("/render-leasing-catalog", h.handleLeasingCatalog)
	h.mux.HandleFunc("/render-leasing-catalog-alt", h.handleLeasingCatalogAlt)
	h.mux.HandleFunc("/render-content-pillar", h.handleContentPillar)
	h.mux.HandleFunc("/render-html", h.handleRenderHTML)
	h.mux.HandleFunc("/render-car-pdf", h.handleCarPDF)
	h.mux.HandleFunc("/render-consignment-agreement", h.handleConsignment)
	h.mux.HandleFunc("/render-damage-report", h.handleDamageReport)
	h.mux.HandleFunc("/render-myth-buster", h.handleMythBuster)
	h.mux.HandleFunc("/render-pdf-to-images", h.handlePDFToImages)
	h.mux.HandleFunc("/health", h.handleHealth)
	h.mux.Handle("/metrics", promhttp.Handler())
	h.mux.HandleFunc("/api/smtp/test", h.handleSMTPTest)
	h.mux.HandleFunc("/api/runs", h.handleRuns)
	h.mux.HandleFunc("/api/runs/", h.handleRun)
}

// wait builds the readiness options for a document profile, honoring the
// configured settle-delay override.
func (h *Handler) wait(p docProfile) render.WaitOptions {
	settle := p.settle
	if h.config.SettleMS > 0 {
		settle = time.Duration(h.config.SettleMS) * time.Millisecond
		if settle < p.settle {
			settle = p.settle
		}
	}
	return render.WaitOptions{
		Mode:        p.mode,
		Timeout:     p.timeout,
		SettleDelay: settle,
		FontFamily:  brandFontFamily,
	}
}

// beginRun opens an audit record. Failures are logged, never fatal: auditing
// must not take the render path down.
func (h *Handler) beginRun(docType, requestID string) *model.Run {
	run := &model.Run{
		RequestID: requestID,
		DocType:   docType,
		Status:    model.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	if h.store != nil {
		if err := h.store.CreateRun(run); err != nil {
			log.Printf("[API] WARNING: failed to record run for request %s: %v", requestID, err)
		}
	}
	return run
}

// endRun closes an audit record. artifact is retained only when non-nil
// (PDF outputs); renderErr marks the run failed.
func (h *Handler) endRun(run *model.Run, size int, artifact []byte, renderErr error) {
	now := time.Now().UTC()
	run.FinishedAt = &now
	run.DurationMS = now.Sub(run.StartedAt).Milliseconds()
	run.Bytes = int64(size)
	if artifact != nil {
		sum := sha256.Sum256(artifact)
		run.Checksum = hex.EncodeToString(sum[:])
		run.ArtifactData = artifact
	}
	if renderErr != nil {
		run.Status = model.RunStatusFailed
		run.ErrorText = renderErr.Error()
	} else {
		run.Status = model.RunStatusCompleted
	}
	if h.store != nil {
		if err := h.store.UpdateRun(run); err != nil {
			log.Printf("[API] WARNING: failed to update run for request %s: %v", run.RequestID, err)
		}
	}

	status := run.Status
	rendersTotal.WithLabelValues(run.DocType, status).Inc()
	renderDuration.WithLabelValues(run.DocType).Observe(float64(run.DurationMS) / 1000)
	if renderErr == nil {
		artifactBytes.WithLabelValues(run.DocType).Observe(float64(size))
	}
}

func decodeJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func requirePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error":   err.Error(),
	})
}

// statusFor maps pipeline errors to HTTP statuses. Requests for a document
// type whose template never existed are caller mistakes; everything past
// validation is a 500.
func statusFor(err error) int {
	if errors.Is(err, template.ErrTemplateNotFound) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// renderDoc resolves a stored template against fields and captures a PNG
// with the document's profile.
func (h *Handler) renderDoc(r *http.Request, doc string, profile docProfile, fields map[string]any) ([]byte, error) {
	tpl, err := h.templates.Template(doc)
	if err != nil {
		return nil, err
	}
	html := substitute.Apply(tpl, merge(fields, h.templates.AssetFields()))

	return h.backend.RenderImage(r.Context(), &render.ImageRequest{
		HTML:     html,
		Viewport: profile.viewport,
		Wait:     h.wait(profile),
		Selector: profile.selector,
	})
}

// handleRenderCards handles POST /render: the 4:5 post and 9:16 story pair.
func (h *Handler) handleRenderCards(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}

	var req model.RenderCardsRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	requestID := uuid.NewString()
	run := h.beginRun(docCards, requestID)
	log.Printf("[API] %s request %s: %s %s", docCards, requestID, req.CarDetails.Year.String(), req.CarDetails.Model)

	fields := merge(carFields(req.CarDetails), pricingFields(req.Pricing))
	fields["FIRST_IMAGE_URL"] = req.FirstImageURL
	fields["SECOND_IMAGE_URL"] = req.SecondImageURL

	post, err := h.renderDoc(r, template.DocPost45, docProfiles[template.DocPost45], fields)
	if err != nil {
		h.endRun(run, 0, nil, err)
		respondError(w, statusFor(err), err)
		return
	}
	story, err := h.renderDoc(r, template.DocStory, docProfiles[template.DocStory], fields)
	if err != nil {
		h.endRun(run, 0, nil, err)
		respondError(w, statusFor(err), err)
		return
	}

	h.endRun(run, len(post)+len(story), nil, nil)
	respondJSON(w, map[string]interface{}{
		"success":    true,
		"image45":    base64.StdEncoding.EncodeToString(post),
		"imageStory": base64.StdEncoding.EncodeToString(story),
		"stats":      model.NewRenderStats(len(post)+len(story), run.StartedAt),
	})
}

// catalogVariant renders one of the square catalog documents.
func (h *Handler) catalogVariant(w http.ResponseWriter, r *http.Request, doc string, leasing bool) {
	if !requirePost(w, r) {
		return
	}

	var req model.CatalogRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if err := req.Validate(leasing); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	requestID := uuid.NewString()
	run := h.beginRun(doc, requestID)
	log.Printf("[API] %s request %s: stock %s", doc, requestID, req.CarDetails.StockNumber)

	fields := carFields(req.CarDetails)
	fields["CATALOG_IMAGE_URL"] = req.CatalogImageURL
	if leasing {
		fields["MONTHLY_LEASE"] = req.MonthlyLease.Display()
	}

	img, err := h.renderDoc(r, doc, docProfiles[doc], fields)
	if err != nil {
		h.endRun(run, 0, nil, err)
		respondError(w, statusFor(err), err)
		return
	}

	h.endRun(run, len(img), nil, nil)
	respondJSON(w, map[string]interface{}{
		"success":      true,
		"catalogImage": base64.StdEncoding.EncodeToString(img),
		"stats":        model.NewRenderStats(len(img), run.StartedAt),
	})
}

func (h *Handler) handleCatalog(w http.ResponseWriter, r *http.Request) {
	h.catalogVariant(w, r, template.DocCatalog, false)
}

func (h *Handler) handleLeasingCatalog(w http.ResponseWriter, r *http.Request) {
	h.catalogVariant(w, r, template.DocLeasingCatalog, true)
}

func (h *Handler) handleLeasingCatalogAlt(w http.ResponseWriter, r *http.Request) {
	h.catalogVariant(w, r, template.DocLeasingCatalogAlt, true)
}

// handleContentPillar handles POST /render-content-pillar.
func (h *Handler) handleContentPillar(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}

	var req model.ContentPillarRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	requestID := uuid.NewString()
	run := h.beginRun(docContentPillar, requestID)
	log.Printf("[API] %s request %s: %s", docContentPillar, requestID, req.DayOfWeek)

	doc := template.ContentPillarDoc(req.DayOfWeek)
	img, err := h.renderDoc(r, doc, docProfiles[docContentPillar], contentPillarFields(&req))
	if err != nil {
		h.endRun(run, 0, nil, err)
		respondError(w, statusFor(err), err)
		return
	}

	h.endRun(run, len(img), nil, nil)
	respondJSON(w, map[string]interface{}{
		"success":            true,
		"contentPillarImage": base64.StdEncoding.EncodeToString(img),
		"stats":              model.NewRenderStats(len(img), run.StartedAt),
	})
}

// handleRenderHTML handles POST /render-html: caller-templated markup in,
// PNG out. No substitution runs server-side.
func (h *Handler) handleRenderHTML(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}

	var req model.RenderHTMLRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	requestID := uuid.NewString()
	run := h.beginRun(docRawHTML, requestID)

	profile := docProfiles[docContentPillar]
	img, err := h.backend.RenderImage(r.Context(), &render.ImageRequest{
		HTML:     req.HTML,
		Viewport: profile.viewport,
		Wait:     h.wait(profile),
	})
	if err != nil {
		h.endRun(run, 0, nil, err)
		respondError(w, statusFor(err), err)
		return
	}

	h.endRun(run, len(img), nil, nil)
	respondJSON(w, map[string]interface{}{
		"success":            true,
		"contentPillarImage": base64.StdEncoding.EncodeToString(img),
		"stats":              model.NewRenderStats(len(img), run.StartedAt),
	})
}

// handleCarPDF handles POST /render-car-pdf: caller-supplied brochure HTML
// exported as A4 with print backgrounds.
func (h *Handler) handleCarPDF(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}

	var req model.CarPDFRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	requestID := uuid.NewString()
	run := h.beginRun(docCarPDF, requestID)

	pdf, err := h.backend.RenderPDF(r.Context(), &render.PDFRequest{
		HTML:     req.HTML,
		Viewport: render.Viewport{Width: 1240, Height: 1754},
		Wait: render.WaitOptions{
			Mode:        render.WaitDOMReady,
			Timeout:     60 * time.Second,
			SettleDelay: 2 * time.Second,
			FontFamily:  brandFontFamily,
		},
		Format: render.PDFFormatA4,
	})
	if err != nil {
		h.endRun(run, 0, nil, err)
		respondError(w, statusFor(err), err)
		return
	}

	h.endRun(run, len(pdf), pdf, nil)
	stats := model.NewRenderStats(len(pdf), run.StartedAt)
	stats.Pages = render.CountPages(pdf)
	respondJSON(w, map[string]interface{}{
		"success": true,
		"pdf":     base64.StdEncoding.EncodeToString(pdf),
		"stats":   stats,
	})
}

// Delivery email templates for generated agreements.
const (
	consignmentEmailSubject = "Agreement document: {fileName}"
	consignmentEmailBody    = "<p>Please find the generated {agreementType} agreement attached as {fileName}.</p>"
)

// handleConsignment handles POST /render-consignment-agreement: server-side
// contract templating, A4 export, optional SMTP delivery.
func (h *Handler) handleConsignment(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}

	var req model.ConsignmentRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	requestID := uuid.NewString()
	run := h.beginRun(template.DocConsignment, requestID)
	log.Printf("[API] %s request %s: %s", template.DocConsignment, requestID, req.AgreementType)

	tpl, err := h.templates.Template(template.DocConsignment)
	if err != nil {
		h.endRun(run, 0, nil, err)
		respondError(w, statusFor(err), err)
		return
	}
	html := substitute.Apply(tpl, merge(consignmentFields(&req), h.templates.AssetFields()))

	pdf, err := h.backend.RenderPDF(r.Context(), &render.PDFRequest{
		HTML:     html,
		Viewport: render.Viewport{Width: 1240, Height: 1754},
		Wait: render.WaitOptions{
			Mode:        render.WaitNetworkIdle,
			Timeout:     45 * time.Second,
			SettleDelay: 1500 * time.Millisecond,
			FontFamily:  brandFontFamily,
		},
		Format: render.PDFFormatA4,
	})
	if err != nil {
		h.endRun(run, 0, nil, err)
		respondError(w, statusFor(err), err)
		return
	}

	fileName := consignmentFileName(&req)
	response := map[string]interface{}{
		"success":  true,
		"pdfData":  base64.StdEncoding.EncodeToString(pdf),
		"fileName": fileName,
		"pdfStats": model.NewRenderStats(len(pdf), run.StartedAt),
	}

	if len(req.EmailTo) > 0 {
		if h.mailer == nil {
			response["emailed"] = false
			response["emailError"] = "SMTP not configured"
		} else {
			vars := map[string]string{
				"fileName":      fileName,
				"agreementType": req.AgreementType,
			}
			subject := mail.InterpolateTemplate(consignmentEmailSubject, vars)
			body := mail.InterpolateTemplate(consignmentEmailBody, vars)
			if err := h.mailer.SendDocument(req.EmailTo, subject, body, pdf, fileName); err != nil {
				log.Printf("[API] WARNING: failed to email agreement for request %s: %v", requestID, err)
				response["emailed"] = false
				response["emailError"] = err.Error()
			} else {
				response["emailed"] = true
			}
		}
	}

	h.endRun(run, len(pdf), pdf, nil)
	respondJSON(w, response)
}

// handleDamageReport handles POST /render-damage-report.
func (h *Handler) handleDamageReport(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}

	var req model.DamageReportRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	requestID := uuid.NewString()
	run := h.beginRun(template.DocDamageReport, requestID)
	log.Printf("[API] %s request %s: %d annotation(s)", template.DocDamageReport, requestID, len(req.DamageAnnotations))

	img, err := h.renderDoc(r, template.DocDamageReport, docProfiles[template.DocDamageReport], damageFields(&req))
	if err != nil {
		h.endRun(run, 0, nil, err)
		respondError(w, statusFor(err), err)
		return
	}

	h.endRun(run, len(img), nil, nil)
	respondJSON(w, map[string]interface{}{
		"success":           true,
		"damageReportImage": base64.StdEncoding.EncodeToString(img),
		"stats":             model.NewRenderStats(len(img), run.StartedAt),
	})
}

// handleMythBuster handles POST /render-myth-buster: caller-supplied markup
// at a high-resolution default viewport.
func (h *Handler) handleMythBuster(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}

	var req model.MythBusterRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	requestID := uuid.NewString()
	run := h.beginRun(docMythBuster, requestID)
	log.Printf("[API] %s request %s: %s", docMythBuster, requestID, req.TemplateType)

	profile := docProfiles[docMythBuster]
	if req.Width > 0 {
		profile.viewport.Width = req.Width
	}
	if req.Height > 0 {
		profile.viewport.Height = req.Height
	}

	img, err := h.backend.RenderImage(r.Context(), &render.ImageRequest{
		HTML:     req.HTML,
		Viewport: profile.viewport,
		Wait:     h.wait(profile),
	})
	if err != nil {
		h.endRun(run, 0, nil, err)
		respondError(w, statusFor(err), err)
		return
	}

	h.endRun(run, len(img), nil, nil)
	respondJSON(w, map[string]interface{}{
		"success":         true,
		"mythBusterImage": base64.StdEncoding.EncodeToString(img),
		"templateType":    req.TemplateType,
		"stats":           model.NewRenderStats(len(img), run.StartedAt),
	})
}

// handlePDFToImages handles POST /render-pdf-to-images.
func (h *Handler) handlePDFToImages(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}

	var req model.PDFToImagesRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	requestID := uuid.NewString()
	run := h.beginRun(docPDFToImages, requestID)

	pages, err := h.backend.RenderPDFPages(r.Context(), &render.PDFPagesRequest{
		PDFURL: req.PDFURL,
		Scale:  req.Scale,
	})
	if err != nil {
		h.endRun(run, 0, nil, err)
		respondError(w, statusFor(err), err)
		return
	}

	size := 0
	for _, p := range pages {
		size += len(p.DataURL)
	}
	h.endRun(run, size, nil, nil)
	respondJSON(w, map[string]interface{}{
		"success": true,
		"pages":   pages,
	})
}

// handleHealth handles GET /health.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	respondJSON(w, map[string]interface{}{
		"status":    "ok",
		"backend":   h.backend.Name(),
		"templates": h.templates.Available(),
	})
}

// handleSMTPTest handles POST /api/smtp/test. A config in the body tests
// that config; an empty body tests the server's own SMTP settings.
func (h *Handler) handleSMTPTest(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}

	// An empty body means "test the server's own SMTP settings".
	var cfg model.SMTPConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	mailer := h.mailer
	if cfg.Host != "" {
		mailer = mail.NewMailer(cfg)
	}
	if mailer == nil {
		respondJSON(w, map[string]interface{}{
			"success": false,
			"error":   "SMTP not configured",
		})
		return
	}

	if err := mailer.TestConnection(); err != nil {
		respondJSON(w, map[string]interface{}{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	respondJSON(w, map[string]interface{}{
		"success": true,
		"message": "Successfully connected to SMTP server",
	})
}

// handleRuns handles GET /api/runs.
func (h *Handler) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.store == nil {
		respondError(w, http.StatusServiceUnavailable, errors.New("run auditing disabled"))
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := h.store.ListRuns(limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, map[string]interface{}{"runs": runs})
}

// handleRun handles GET /api/runs/{id} and GET /api/runs/{id}/artifact.
func (h *Handler) handleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.store == nil {
		respondError(w, http.StatusServiceUnavailable, errors.New("run auditing disabled"))
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	// api/runs/{id} or api/runs/{id}/artifact
	if len(parts) < 3 || len(parts) > 4 {
		http.Error(w, "Invalid path", http.StatusBadRequest)
		return
	}
	id, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		http.Error(w, "Invalid run ID", http.StatusBadRequest)
		return
	}

	if len(parts) == 3 {
		run, err := h.store.GetRun(id)
		if err != nil {
			respondError(w, http.StatusNotFound, err)
			return
		}
		respondJSON(w, run)
		return
	}

	if parts[3] != "artifact" {
		http.Error(w, "Invalid path", http.StatusBadRequest)
		return
	}
	data, docType, err := h.store.GetRunArtifact(id)
	if err != nil {
		respondError(w, http.StatusNotFound, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fmt.Sprintf("%s-%d.pdf", docType, id)))
	w.Write(data)
}
