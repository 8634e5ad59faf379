package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gentlegiant96202/silberarrows-uv-sub005/pkg/mail"
	"github.com/gentlegiant96202/silberarrows-uv-sub005/pkg/model"
	"github.com/gentlegiant96202/silberarrows-uv-sub005/pkg/render"
	"github.com/gentlegiant96202/silberarrows-uv-sub005/pkg/store"
	"github.com/gentlegiant96202/silberarrows-uv-sub005/pkg/template"
)

// stubBackend records render calls and returns canned artifacts.
type stubBackend struct {
	lastImage *render.ImageRequest
	lastPDF   *render.PDFRequest
	images    [][]byte
	pdf       []byte
	pages     []render.Page
	err       error
}

func (s *stubBackend) RenderImage(ctx context.Context, req *render.ImageRequest) ([]byte, error) {
	s.lastImage = req
	if s.err != nil {
		return nil, s.err
	}
	if len(s.images) > 0 {
		img := s.images[0]
		s.images = s.images[1:]
		return img, nil
	}
	return []byte("png-bytes"), nil
}

func (s *stubBackend) RenderPDF(ctx context.Context, req *render.PDFRequest) ([]byte, error) {
	s.lastPDF = req
	if s.err != nil {
		return nil, s.err
	}
	if s.pdf != nil {
		return s.pdf, nil
	}
	return []byte("%PDF-1.4 fake"), nil
}

func (s *stubBackend) RenderPDFPages(ctx context.Context, req *render.PDFPagesRequest) ([]render.Page, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.pages, nil
}

func (s *stubBackend) Close() error { return nil }
func (s *stubBackend) Name() string { return "stub" }

var pngFixture = append([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}, make([]byte, 8)...)

func testTemplates(t *testing.T) *template.Store {
	t.Helper()
	templatesDir := t.TempDir()
	assetsDir := t.TempDir()

	files := map[string]string{
		"story":                 `<html>{{CAR_YEAR}} {{CAR_MODEL}} {{CAR_PRICE}} {{FIRST_IMAGE_URL}}</html>`,
		"post-4x5":              `<html>{{CAR_YEAR}} {{CAR_MODEL}} {{PRICE_MONTHLY}} {{SECOND_IMAGE_URL}}</html>`,
		"catalog":               `<html><div class="catalog-card">{{CAR_YEAR}} {{CAR_MODEL}} {{CAR_MILEAGE}} {{CAR_STOCK_NUMBER}} {{CAR_PRICE}} {{CATALOG_IMAGE_URL}}</div></html>`,
		"leasing-catalog":       `<html><div class="catalog-card">{{MONTHLY_LEASE}}</div></html>`,
		"leasing-catalog-alt":   `<html><div class="catalog-card">{{MONTHLY_LEASE}}</div></html>`,
		"consignment-agreement": `<html>{{AGREEMENT_TITLE}} {{ownerName}} {{#if DAMAGE_MARKERS}}{{#each DAMAGE_MARKERS}}<i style="left:{{X_PCT}}%;top:{{Y_PCT}}%" class="{{SEVERITY}}"></i>{{/each}}{{/if}}</html>`,
		"damage-report":         `<html>{{#each MARKERS}}<i class="{{SEVERITY}}" style="left:{{X_PCT}}%;top:{{Y_PCT}}%"></i>{{/each}}{{DIAGRAM_IMAGE_URL}}</html>`,
	}
	for _, day := range []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"} {
		files["content-pillar-"+day] = `<html>{{TITLE}} {{DESCRIPTION}}{{#if PROBLEM}}<div class="problem">{{PROBLEM}}</div>{{/if}}{{#if SOLUTION}}<div class="solution">{{SOLUTION}}</div>{{/if}}{{#if WARNING}}<div class="warning">{{WARNING}}</div>{{/if}}</html>`
	}
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(templatesDir, name+".html"), []byte(body), 0644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(assetsDir, "logo.png"), pngFixture, 0644))

	store, err := template.NewStore(templatesDir, assetsDir)
	require.NoError(t, err)
	return store
}

func newTestHandler(t *testing.T, backend *stubBackend) *Handler {
	t.Helper()
	return NewHandler(testTemplates(t), backend, nil, nil, model.RendererConfig{})
}

func post(t *testing.T, h *Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func validCarBody() map[string]any {
	return map[string]any{
		"year":        2022,
		"model":       "GLE 450",
		"mileage":     "35,000 KM",
		"stockNumber": "ST1234",
		"price":       "185,000",
	}
}

func TestRenderCatalog(t *testing.T) {
	backend := &stubBackend{}
	h := newTestHandler(t, backend)

	w := post(t, h, "/render-catalog", map[string]any{
		"carDetails":      validCarBody(),
		"catalogImageUrl": "https://cdn.example.com/car.jpg",
	})

	require.Equal(t, http.StatusOK, w.Code)
	out := decodeBody(t, w)
	assert.Equal(t, true, out["success"])

	img, err := base64.StdEncoding.DecodeString(out["catalogImage"].(string))
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), img)

	// Element-scoped capture at the square catalog viewport.
	require.NotNil(t, backend.lastImage)
	assert.Equal(t, ".catalog-card", backend.lastImage.Selector)
	assert.Equal(t, 3000, backend.lastImage.Viewport.Width)
	assert.Equal(t, 3000, backend.lastImage.Viewport.Height)

	html := backend.lastImage.HTML
	assert.Contains(t, html, "2022")
	assert.Contains(t, html, "GLE 450")
	assert.Contains(t, html, "35,000 KM")
	assert.Contains(t, html, "ST1234")
	assert.Contains(t, html, "185,000")
	assert.Contains(t, html, "https://cdn.example.com/car.jpg")
	assert.NotContains(t, html, "{{")
}

func TestRenderCatalogValidation(t *testing.T) {
	h := newTestHandler(t, &stubBackend{})

	w := post(t, h, "/render-catalog", map[string]any{
		"carDetails": map[string]any{"model": "GLE 450"},
	})

	require.Equal(t, http.StatusBadRequest, w.Code)
	out := decodeBody(t, w)
	assert.Equal(t, false, out["success"])
	errText := out["error"].(string)
	assert.Contains(t, errText, "carDetails.year")
	assert.Contains(t, errText, "catalogImageUrl")
}

func TestRenderLeasingCatalogRequiresMonthly(t *testing.T) {
	h := newTestHandler(t, &stubBackend{})

	w := post(t, h, "/render-leasing-catalog", map[string]any{
		"carDetails":      validCarBody(),
		"catalogImageUrl": "https://cdn.example.com/car.jpg",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeBody(t, w)["error"], "monthlyLease")
}

func TestRenderCardsReturnsBothFormats(t *testing.T) {
	backend := &stubBackend{images: [][]byte{[]byte("post-png"), []byte("story-png")}}
	h := newTestHandler(t, backend)

	w := post(t, h, "/render", map[string]any{
		"carDetails":     validCarBody(),
		"pricing":        map[string]any{"cash": 185000, "monthly": 3200, "downPayment": 37000},
		"firstImageUrl":  "https://cdn.example.com/a.jpg",
		"secondImageUrl": "https://cdn.example.com/b.jpg",
	})

	require.Equal(t, http.StatusOK, w.Code)
	out := decodeBody(t, w)
	assert.Equal(t, true, out["success"])

	post45, _ := base64.StdEncoding.DecodeString(out["image45"].(string))
	story, _ := base64.StdEncoding.DecodeString(out["imageStory"].(string))
	assert.Equal(t, "post-png", string(post45))
	assert.Equal(t, "story-png", string(story))

	// Last render is the 9:16 story.
	assert.Equal(t, 1080, backend.lastImage.Viewport.Width)
	assert.Equal(t, 1920, backend.lastImage.Viewport.Height)
}

func TestContentPillarConditionalOmission(t *testing.T) {
	backend := &stubBackend{}
	h := newTestHandler(t, backend)

	w := post(t, h, "/render-content-pillar", map[string]any{
		"title":       "Cooling system checks",
		"description": "Keep it cool in summer",
		"dayOfWeek":   "tuesday",
		"problem":     "Engine overheating",
		"solution":    "Check coolant",
	})

	require.Equal(t, http.StatusOK, w.Code)
	out := decodeBody(t, w)
	assert.Equal(t, true, out["success"])
	assert.NotEmpty(t, out["contentPillarImage"])

	html := backend.lastImage.HTML
	assert.Contains(t, html, "Engine overheating")
	assert.Contains(t, html, "Check coolant")
	assert.NotContains(t, html, "warning")
	assert.NotContains(t, html, "{{")
}

func TestContentPillarRejectsUnknownDay(t *testing.T) {
	h := newTestHandler(t, &stubBackend{})

	w := post(t, h, "/render-content-pillar", map[string]any{
		"title":       "T",
		"description": "D",
		"dayOfWeek":   "someday",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRenderHTMLSkipsTemplating(t *testing.T) {
	backend := &stubBackend{}
	h := newTestHandler(t, backend)

	raw := `<html><body>{{NOT_A_PLACEHOLDER}}</body></html>`
	w := post(t, h, "/render-html", map[string]any{"html": raw, "dayOfWeek": "monday"})

	require.Equal(t, http.StatusOK, w.Code)
	// Caller-supplied markup is rendered verbatim.
	assert.Equal(t, raw, backend.lastImage.HTML)
}

func TestDamageReportMarkerTransform(t *testing.T) {
	backend := &stubBackend{}
	h := newTestHandler(t, backend)

	w := post(t, h, "/render-damage-report", map[string]any{
		"diagramImageUrl": "https://cdn.example.com/diagram.png",
		"damageAnnotations": []map[string]any{
			{"x": 1014.5, "y": 382.5, "severity": "minor"},
			{"x": 0, "y": 0, "severity": "severe"},
		},
	})

	require.Equal(t, http.StatusOK, w.Code)
	html := backend.lastImage.HTML
	assert.Contains(t, html, "left:50.0%")
	assert.Contains(t, html, "top:50.0%")
	assert.Contains(t, html, `class="minor"`)
	assert.Contains(t, html, `class="severe"`)
	assert.Equal(t, 2029, backend.lastImage.Viewport.Width)
	assert.Equal(t, 765, backend.lastImage.Viewport.Height)
}

func TestCarPDF(t *testing.T) {
	backend := &stubBackend{}
	h := newTestHandler(t, backend)

	w := post(t, h, "/render-car-pdf", map[string]any{"html": "<html>brochure</html>"})

	require.Equal(t, http.StatusOK, w.Code)
	out := decodeBody(t, w)
	assert.Equal(t, true, out["success"])
	assert.NotEmpty(t, out["pdf"])
	require.NotNil(t, backend.lastPDF)
	assert.Equal(t, render.PDFFormatA4, backend.lastPDF.Format)
}

func TestConsignmentAgreement(t *testing.T) {
	backend := &stubBackend{}
	h := newTestHandler(t, backend)

	w := post(t, h, "/render-consignment-agreement", map[string]any{
		"agreementType": "consignment",
		"carData": map[string]any{
			"ownerName":   "Jane Doe",
			"stockNumber": "ST1234",
			"damageMarkers": []map[string]any{
				{"x": 1014.5, "y": 382.5, "severity": "moderate"},
			},
		},
	})

	require.Equal(t, http.StatusOK, w.Code)
	out := decodeBody(t, w)
	assert.Equal(t, true, out["success"])
	assert.NotEmpty(t, out["pdfData"])
	assert.Contains(t, out["fileName"], "consignment-ST1234")

	html := backend.lastPDF.HTML
	assert.Contains(t, html, "VEHICLE CONSIGNMENT AGREEMENT")
	assert.Contains(t, html, "Jane Doe")
	assert.Contains(t, html, "left:50.0%")
	assert.Contains(t, html, `class="moderate"`)
}

func TestConsignmentEmailTemplates(t *testing.T) {
	vars := map[string]string{
		"fileName":      "consignment-ST1234-20260831.pdf",
		"agreementType": "consignment",
	}
	subject := mail.InterpolateTemplate(consignmentEmailSubject, vars)
	body := mail.InterpolateTemplate(consignmentEmailBody, vars)

	assert.Equal(t, "Agreement document: consignment-ST1234-20260831.pdf", subject)
	assert.Contains(t, body, "generated consignment agreement")
	assert.Contains(t, body, "consignment-ST1234-20260831.pdf")
	assert.NotContains(t, body, "{fileName}")
	assert.NotContains(t, body, "{agreementType}")
}

func TestRunLookup(t *testing.T) {
	st, err := store.NewStore(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer st.Close()

	h := NewHandler(testTemplates(t), &stubBackend{}, st, nil, model.RendererConfig{})

	run := &model.Run{
		RequestID: "req-1",
		DocType:   "car-pdf",
		StartedAt: time.Now().UTC(),
	}
	require.NoError(t, st.CreateRun(run))
	now := time.Now().UTC()
	run.FinishedAt = &now
	run.Status = model.RunStatusCompleted
	run.Bytes = 13
	run.ArtifactData = []byte("%PDF-1.4 data")
	require.NoError(t, st.UpdateRun(run))

	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/runs/%d", run.ID), nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	out := decodeBody(t, w)
	assert.Equal(t, "req-1", out["request_id"])
	assert.Equal(t, model.RunStatusCompleted, out["status"])

	req = httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/runs/%d/artifact", run.ID), nil)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, "%PDF-1.4 data", w.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/api/runs/9999", nil)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPDFToImages(t *testing.T) {
	backend := &stubBackend{pages: []render.Page{
		{PageIndex: 0, Width: 1240, Height: 1754, DataURL: "data:image/png;base64,AAAA"},
		{PageIndex: 1, Width: 1240, Height: 1754, DataURL: "data:image/png;base64,BBBB"},
	}}
	h := newTestHandler(t, backend)

	w := post(t, h, "/render-pdf-to-images", map[string]any{"pdfUrl": "https://cdn.example.com/doc.pdf"})

	require.Equal(t, http.StatusOK, w.Code)
	out := decodeBody(t, w)
	pages := out["pages"].([]any)
	require.Len(t, pages, 2)
	first := pages[0].(map[string]any)
	assert.Equal(t, float64(0), first["pageIndex"])
	assert.Equal(t, "data:image/png;base64,AAAA", first["dataUrl"])
}

func TestRenderFailureMapsTo500(t *testing.T) {
	backend := &stubBackend{err: render.ErrRenderTimeout}
	h := newTestHandler(t, backend)

	w := post(t, h, "/render-catalog", map[string]any{
		"carDetails":      validCarBody(),
		"catalogImageUrl": "https://cdn.example.com/car.jpg",
	})

	require.Equal(t, http.StatusInternalServerError, w.Code)
	out := decodeBody(t, w)
	assert.Equal(t, false, out["success"])
	assert.Contains(t, out["error"], "timed out")
}

func TestMethodNotAllowed(t *testing.T) {
	h := newTestHandler(t, &stubBackend{})

	req := httptest.NewRequest(http.MethodGet, "/render-catalog", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestHealth(t *testing.T) {
	h := newTestHandler(t, &stubBackend{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	out := decodeBody(t, w)
	assert.Equal(t, "ok", out["status"])
	assert.Equal(t, "stub", out["backend"])

	templates := out["templates"].(map[string]any)
	assert.Equal(t, true, templates["catalog"])
}

func TestMythBusterCustomViewport(t *testing.T) {
	backend := &stubBackend{}
	h := newTestHandler(t, backend)

	w := post(t, h, "/render-myth-buster", map[string]any{
		"html":         "<html>myth</html>",
		"templateType": "classic",
		"width":        1080,
		"height":       1920,
	})

	require.Equal(t, http.StatusOK, w.Code)
	out := decodeBody(t, w)
	assert.Equal(t, "classic", out["templateType"])
	assert.Equal(t, 1080, backend.lastImage.Viewport.Width)
	assert.Equal(t, 1920, backend.lastImage.Viewport.Height)

	// Default is the high-resolution portrait canvas.
	post(t, h, "/render-myth-buster", map[string]any{"html": "<html>m</html>", "templateType": "classic"})
	assert.Equal(t, 2160, backend.lastImage.Viewport.Width)
	assert.Equal(t, 3840, backend.lastImage.Viewport.Height)
}
