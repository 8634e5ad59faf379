package api

import (
	"strconv"
	"strings"
	"time"

	"github.com/gentlegiant96202/silberarrows-uv-sub005/pkg/model"
	"github.com/gentlegiant96202/silberarrows-uv-sub005/pkg/substitute"
)

// Source-image pixel space of the damage diagram. Annotation coordinates
// arrive in this space and are converted to container percentages.
const (
	damageDiagramWidth  = 2029.0
	damageDiagramHeight = 765.0
)

// formatMileage groups bare numeric mileage values and appends the unit.
// Pre-formatted strings ("35,000 KM") pass through untouched.
func formatMileage(f model.FlexString) string {
	s := strings.TrimSpace(f.String())
	if s == "" {
		return model.Fallback
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return model.FormatNumber(n) + " KM"
	}
	return s
}

// carFields maps vehicle details to template placeholders.
func carFields(c model.CarDetails) map[string]any {
	return map[string]any{
		"CAR_YEAR":         c.Year.String(),
		"CAR_MODEL":        c.Model,
		"CAR_MILEAGE":      formatMileage(c.Mileage),
		"CAR_STOCK_NUMBER": c.StockNumber,
		"CAR_PRICE":        c.Price.Display(),
	}
}

// pricingFields maps finance figures to template placeholders.
func pricingFields(p model.PricingDetails) map[string]any {
	return map[string]any{
		"PRICE_CASH":         p.Cash.Display(),
		"PRICE_MONTHLY":      p.Monthly.Display(),
		"PRICE_DOWN_PAYMENT": p.DownPayment.Display(),
	}
}

// contentPillarFields maps a content pillar request to template placeholders.
// Optional pairs stay absent when empty so conditional blocks drop out.
func contentPillarFields(req *model.ContentPillarRequest) map[string]any {
	fields := map[string]any{
		"TITLE":       req.Title,
		"DESCRIPTION": req.Description,
		"IMAGE_URL":   req.ImageURL,
		"BADGE_TEXT":  req.BadgeText,
		"SUBTITLE":    req.Subtitle,
	}
	optional := map[string]string{
		"MYTH":         req.Myth,
		"FACT":         req.Fact,
		"PROBLEM":      req.Problem,
		"SOLUTION":     req.Solution,
		"DIFFICULTY":   req.Difficulty,
		"TOOLS_NEEDED": req.ToolsNeeded,
		"WARNING":      req.Warning,
	}
	for key, value := range optional {
		if strings.TrimSpace(value) != "" {
			fields[key] = value
		}
	}
	return fields
}

// damageFields maps a damage report request to template placeholders,
// converting each annotation from source-image pixels to percentages.
func damageFields(req *model.DamageReportRequest) map[string]any {
	markers := make([]map[string]any, 0, len(req.DamageAnnotations))
	for _, a := range req.DamageAnnotations {
		severity := strings.ToLower(strings.TrimSpace(a.Severity))
		if severity == "" {
			severity = "minor"
		}
		markers = append(markers, map[string]any{
			"X_PCT":    substitute.FormatPercent(substitute.PercentOf(a.X, damageDiagramWidth)),
			"Y_PCT":    substitute.FormatPercent(substitute.PercentOf(a.Y, damageDiagramHeight)),
			"SEVERITY": severity,
			"LABEL":    a.Label,
		})
	}

	fields := map[string]any{
		"DIAGRAM_IMAGE_URL": req.DiagramImageURL,
		"MARKERS":           markers,
	}
	if strings.TrimSpace(req.InspectionNotes) != "" {
		fields["INSPECTION_NOTES"] = req.InspectionNotes
	}
	if req.CarDetails != nil {
		for key, value := range carFields(*req.CarDetails) {
			fields[key] = value
		}
	}
	return fields
}

// consignmentFields builds the contract substitution map. Caller-supplied
// carData keys pass through verbatim; the agreement type drives the title
// and the checkbox pair.
func consignmentFields(req *model.ConsignmentRequest) map[string]any {
	fields := make(map[string]any, len(req.CarData)+8)
	for key, value := range req.CarData {
		fields[key] = value
	}

	// Damage markers recorded during inspection ride along in carData and
	// feed the contract's condition diagram.
	if raw, ok := req.CarData["damageMarkers"].([]any); ok {
		markers := make([]map[string]any, 0, len(raw))
		for _, entry := range raw {
			m, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			x, _ := m["x"].(float64)
			y, _ := m["y"].(float64)
			severity, _ := m["severity"].(string)
			if severity == "" {
				severity = "minor"
			}
			label, _ := m["label"].(string)
			markers = append(markers, map[string]any{
				"X_PCT":    substitute.FormatPercent(substitute.PercentOf(x, damageDiagramWidth)),
				"Y_PCT":    substitute.FormatPercent(substitute.PercentOf(y, damageDiagramHeight)),
				"SEVERITY": strings.ToLower(severity),
				"LABEL":    label,
			})
		}
		fields["DAMAGE_MARKERS"] = markers
	}

	fields["AGREEMENT_DATE"] = time.Now().Format("02 January 2006")
	switch req.AgreementType {
	case model.AgreementDirectPurchase:
		fields["AGREEMENT_TITLE"] = "VEHICLE DIRECT PURCHASE AGREEMENT"
		fields["CHECK_CONSIGNMENT"] = ""
		fields["CHECK_DIRECT"] = "&#10005;"
	default:
		fields["AGREEMENT_TITLE"] = "VEHICLE CONSIGNMENT AGREEMENT"
		fields["CHECK_CONSIGNMENT"] = "&#10005;"
		fields["CHECK_DIRECT"] = ""
	}
	return fields
}

// consignmentFileName derives the download name for a generated contract.
func consignmentFileName(req *model.ConsignmentRequest) string {
	base := req.AgreementType
	if stock, ok := req.CarData["stockNumber"].(string); ok && stock != "" {
		base += "-" + stock
	}
	return base + "-" + time.Now().Format("20060102") + ".pdf"
}

// merge overlays src entries onto dst and returns dst.
func merge(dst map[string]any, src map[string]any) map[string]any {
	for key, value := range src {
		dst[key] = value
	}
	return dst
}
