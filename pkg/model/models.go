package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Fallback is the display value substituted for optional fields that were
// not provided. Output must never contain "undefined", "null" or a literal
// unresolved placeholder.
const Fallback = "—"

var moneyPrinter = message.NewPrinter(language.English)

// Money accepts either a pre-formatted string ("185,000") or a raw JSON
// number and always displays with grouped thousands separators.
type Money struct {
	raw any
}

// UnmarshalJSON implements json.Unmarshaler for Money
func (m *Money) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		m.raw = nil
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		m.raw = str
		return nil
	}
	var n float64
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("money value must be a string or number: %w", err)
	}
	m.raw = n
	return nil
}

// MarshalJSON implements json.Marshaler for Money
func (m Money) MarshalJSON() ([]byte, error) {
	if m.raw == nil {
		return []byte("null"), nil
	}
	return json.Marshal(m.Display())
}

// Display returns the grouped-digits form, or the fallback token when empty.
// Pre-formatted strings pass through untouched so callers that already
// grouped their digits are never double-formatted.
func (m Money) Display() string {
	switch v := m.raw.(type) {
	case nil:
		return Fallback
	case string:
		if strings.TrimSpace(v) == "" {
			return Fallback
		}
		return v
	case float64:
		return moneyPrinter.Sprintf("%v", number.Decimal(v, number.MaxFractionDigits(0)))
	default:
		return fmt.Sprint(v)
	}
}

// IsZero reports whether no value was supplied.
func (m Money) IsZero() bool {
	switch v := m.raw.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case float64:
		return v == 0
	}
	return false
}

// NewMoney builds a Money from a raw value.
func NewMoney(v any) Money { return Money{raw: v} }

// FormatNumber renders a numeric value with grouped thousands separators and
// no fraction digits ("35,000").
func FormatNumber(v float64) string {
	return moneyPrinter.Sprintf("%v", number.Decimal(v, number.MaxFractionDigits(0)))
}

// FlexString accepts a JSON string or number and renders it as its plain
// string form ("2022" for year fields either way).
type FlexString struct {
	val string
	set bool
}

// UnmarshalJSON implements json.Unmarshaler for FlexString
func (f *FlexString) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		f.val, f.set = str, str != ""
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	f.val, f.set = n.String(), true
	return nil
}

// MarshalJSON implements json.Marshaler for FlexString
func (f FlexString) MarshalJSON() ([]byte, error) {
	if !f.set {
		return []byte("null"), nil
	}
	return json.Marshal(f.val)
}

// String returns the plain string form, empty when unset.
func (f FlexString) String() string { return f.val }

// IsZero reports whether no value was supplied.
func (f FlexString) IsZero() bool { return !f.set }

// NewFlexString builds a FlexString from a plain string.
func NewFlexString(s string) FlexString { return FlexString{val: s, set: s != ""} }

// CarDetails carries the vehicle fields shared by the creative endpoints.
type CarDetails struct {
	Year        FlexString `json:"year"`
	Model       string     `json:"model"`
	Mileage     FlexString `json:"mileage"`
	StockNumber string     `json:"stockNumber"`
	Price       Money      `json:"price"`
}

// PricingDetails carries the finance figures shown on story/post creatives.
type PricingDetails struct {
	Cash        Money `json:"cash"`
	Monthly     Money `json:"monthly"`
	DownPayment Money `json:"downPayment"`
}

// RenderCardsRequest is the body of POST /render (4:5 post + 9:16 story pair).
type RenderCardsRequest struct {
	CarDetails     CarDetails     `json:"carDetails"`
	Pricing        PricingDetails `json:"pricing"`
	FirstImageURL  string         `json:"firstImageUrl"`
	SecondImageURL string         `json:"secondImageUrl"`
}

// CatalogRequest is the body of POST /render-catalog and both leasing variants.
type CatalogRequest struct {
	CarDetails      CarDetails `json:"carDetails"`
	CatalogImageURL string     `json:"catalogImageUrl"`
	MonthlyLease    Money      `json:"monthlyLease,omitempty"`
}

// ContentPillarRequest is the body of POST /render-content-pillar.
// DayOfWeek selects the template variant; the myth/fact and problem/solution
// pairs are optional and drive conditional blocks in the templates.
type ContentPillarRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	ImageURL    string `json:"imageUrl"`
	DayOfWeek   string `json:"dayOfWeek"`
	BadgeText   string `json:"badgeText"`
	Subtitle    string `json:"subtitle"`
	Myth        string `json:"myth,omitempty"`
	Fact        string `json:"fact,omitempty"`
	Problem     string `json:"problem,omitempty"`
	Solution    string `json:"solution,omitempty"`
	Difficulty  string `json:"difficulty,omitempty"`
	ToolsNeeded string `json:"tools_needed,omitempty"`
	Warning     string `json:"warning,omitempty"`
}

// RenderHTMLRequest is the body of POST /render-html (caller-templated HTML).
type RenderHTMLRequest struct {
	HTML      string `json:"html"`
	DayOfWeek string `json:"dayOfWeek"`
}

// CarPDFRequest is the body of POST /render-car-pdf.
type CarPDFRequest struct {
	HTML string `json:"html"`
}

// ConsignmentRequest is the body of POST /render-consignment-agreement.
// CarData is free-form: the contract template decides which keys it reads.
// EmailTo, when present, triggers SMTP delivery of the generated PDF.
type ConsignmentRequest struct {
	CarData       map[string]any `json:"carData"`
	AgreementType string         `json:"agreementType"`
	EmailTo       []string       `json:"emailTo,omitempty"`
}

// DamageAnnotation is one marker on the damage diagram, in source-image
// pixel coordinates (2029x765 space).
type DamageAnnotation struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Severity string  `json:"severity"`
	Label    string  `json:"label,omitempty"`
}

// DamageReportRequest is the body of POST /render-damage-report.
type DamageReportRequest struct {
	CarDetails        *CarDetails        `json:"carDetails,omitempty"`
	DamageAnnotations []DamageAnnotation `json:"damageAnnotations"`
	InspectionNotes   string             `json:"inspectionNotes,omitempty"`
	DiagramImageURL   string             `json:"diagramImageUrl"`
}

// MythBusterRequest is the body of POST /render-myth-buster.
type MythBusterRequest struct {
	HTML         string `json:"html"`
	TemplateType string `json:"templateType"`
	Width        int    `json:"width,omitempty"`
	Height       int    `json:"height,omitempty"`
}

// PDFToImagesRequest is the body of POST /render-pdf-to-images.
type PDFToImagesRequest struct {
	PDFURL string  `json:"pdfUrl"`
	Scale  float64 `json:"scale,omitempty"`
}

// RenderStats is the metadata block attached to successful responses.
type RenderStats struct {
	SizeBytes   int       `json:"sizeBytes"`
	SizeMB      string    `json:"sizeMB"`
	Pages       int       `json:"pages,omitempty"`
	DurationMS  int64     `json:"durationMs"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// NewRenderStats fills a stats block for an artifact of the given size.
func NewRenderStats(sizeBytes int, started time.Time) RenderStats {
	return RenderStats{
		SizeBytes:   sizeBytes,
		SizeMB:      fmt.Sprintf("%.2f", float64(sizeBytes)/(1024*1024)),
		DurationMS:  time.Since(started).Milliseconds(),
		GeneratedAt: time.Now().UTC(),
	}
}

// Run is one audit record of a render request.
type Run struct {
	ID           int64      `json:"id"`
	RequestID    string     `json:"request_id"`
	DocType      string     `json:"doc_type"`
	Status       string     `json:"status"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	DurationMS   int64      `json:"duration_ms"`
	Bytes        int64      `json:"bytes"`
	Checksum     string     `json:"checksum,omitempty"`
	ErrorText    string     `json:"error_text,omitempty"`
	ArtifactData []byte     `json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Run statuses.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// SMTPConfig holds SMTP configuration for optional document delivery.
type SMTPConfig struct {
	Host          string `json:"host" mapstructure:"host"`
	Port          int    `json:"port" mapstructure:"port"`
	Username      string `json:"username" mapstructure:"username"`
	Password      string `json:"password" mapstructure:"password"`
	From          string `json:"from" mapstructure:"from"`
	UseTLS        bool   `json:"use_tls" mapstructure:"use_tls"`
	SkipTLSVerify bool   `json:"skip_tls_verify" mapstructure:"skip_tls_verify"`
}

// RendererConfig holds headless-browser configuration.
type RendererConfig struct {
	Backend           string  `json:"backend" mapstructure:"backend"` // "chromium" (go-rod, default) or "playwright"
	ChromiumPath      string  `json:"chromium_path" mapstructure:"chromium_path"`
	TimeoutMS         int     `json:"timeout_ms" mapstructure:"timeout_ms"`
	SettleMS          int     `json:"settle_ms" mapstructure:"settle_ms"`
	DeviceScaleFactor float64 `json:"device_scale_factor" mapstructure:"device_scale_factor"`
	SkipTLSVerify     bool    `json:"skip_tls_verify" mapstructure:"skip_tls_verify"`
	Headless          bool    `json:"headless" mapstructure:"headless"`
}
