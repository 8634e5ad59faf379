package model

import (
	"fmt"
	"strings"
)

// Weekdays accepted by the content pillar endpoints.
var weekdays = map[string]bool{
	"monday": true, "tuesday": true, "wednesday": true, "thursday": true,
	"friday": true, "saturday": true, "sunday": true,
}

// IsWeekday reports whether s is a valid lowercase weekday name.
func IsWeekday(s string) bool {
	return weekdays[strings.ToLower(strings.TrimSpace(s))]
}

// missingFieldsError builds the 400-level error naming every absent field.
func missingFieldsError(fields []string) error {
	if len(fields) == 0 {
		return nil
	}
	return fmt.Errorf("missing required field(s): %s", strings.Join(fields, ", "))
}

// requiredCarFields collects the car detail fields every creative needs.
func requiredCarFields(c CarDetails, prefix string) []string {
	var missing []string
	if c.Year.IsZero() {
		missing = append(missing, prefix+".year")
	}
	if strings.TrimSpace(c.Model) == "" {
		missing = append(missing, prefix+".model")
	}
	if c.Mileage.IsZero() {
		missing = append(missing, prefix+".mileage")
	}
	if strings.TrimSpace(c.StockNumber) == "" {
		missing = append(missing, prefix+".stockNumber")
	}
	if c.Price.IsZero() {
		missing = append(missing, prefix+".price")
	}
	return missing
}

// Validate checks the story/post pair request.
func (r *RenderCardsRequest) Validate() error {
	missing := requiredCarFields(r.CarDetails, "carDetails")
	if strings.TrimSpace(r.FirstImageURL) == "" {
		missing = append(missing, "firstImageUrl")
	}
	if strings.TrimSpace(r.SecondImageURL) == "" {
		missing = append(missing, "secondImageUrl")
	}
	return missingFieldsError(missing)
}

// Validate checks a catalog request. Leasing variants additionally require
// the monthly lease figure.
func (r *CatalogRequest) Validate(leasing bool) error {
	missing := requiredCarFields(r.CarDetails, "carDetails")
	if strings.TrimSpace(r.CatalogImageURL) == "" {
		missing = append(missing, "catalogImageUrl")
	}
	if leasing && r.MonthlyLease.IsZero() {
		missing = append(missing, "monthlyLease")
	}
	return missingFieldsError(missing)
}

// Validate checks a content pillar request.
func (r *ContentPillarRequest) Validate() error {
	var missing []string
	if strings.TrimSpace(r.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(r.Description) == "" {
		missing = append(missing, "description")
	}
	if strings.TrimSpace(r.DayOfWeek) == "" {
		missing = append(missing, "dayOfWeek")
	}
	if err := missingFieldsError(missing); err != nil {
		return err
	}
	if !IsWeekday(r.DayOfWeek) {
		return fmt.Errorf("invalid dayOfWeek %q: must be a lowercase weekday name", r.DayOfWeek)
	}
	return nil
}

// Validate checks a raw-HTML render request.
func (r *RenderHTMLRequest) Validate() error {
	if strings.TrimSpace(r.HTML) == "" {
		return missingFieldsError([]string{"html"})
	}
	return nil
}

// Validate checks a car PDF request.
func (r *CarPDFRequest) Validate() error {
	if strings.TrimSpace(r.HTML) == "" {
		return missingFieldsError([]string{"html"})
	}
	return nil
}

// AgreementTypes accepted by the consignment endpoint.
const (
	AgreementConsignment    = "consignment"
	AgreementDirectPurchase = "direct-purchase"
)

// Validate checks a consignment agreement request.
func (r *ConsignmentRequest) Validate() error {
	var missing []string
	if len(r.CarData) == 0 {
		missing = append(missing, "carData")
	}
	if strings.TrimSpace(r.AgreementType) == "" {
		missing = append(missing, "agreementType")
	}
	if err := missingFieldsError(missing); err != nil {
		return err
	}
	switch r.AgreementType {
	case AgreementConsignment, AgreementDirectPurchase:
		return nil
	}
	return fmt.Errorf("invalid agreementType %q: must be %q or %q",
		r.AgreementType, AgreementConsignment, AgreementDirectPurchase)
}

// Validate checks a damage report request.
func (r *DamageReportRequest) Validate() error {
	var missing []string
	if len(r.DamageAnnotations) == 0 {
		missing = append(missing, "damageAnnotations")
	}
	if strings.TrimSpace(r.DiagramImageURL) == "" {
		missing = append(missing, "diagramImageUrl")
	}
	if err := missingFieldsError(missing); err != nil {
		return err
	}
	for i, a := range r.DamageAnnotations {
		if a.X < 0 || a.Y < 0 {
			return fmt.Errorf("damageAnnotations[%d]: coordinates must be non-negative", i)
		}
	}
	return nil
}

// Validate checks a myth buster request.
func (r *MythBusterRequest) Validate() error {
	var missing []string
	if strings.TrimSpace(r.HTML) == "" {
		missing = append(missing, "html")
	}
	if strings.TrimSpace(r.TemplateType) == "" {
		missing = append(missing, "templateType")
	}
	if err := missingFieldsError(missing); err != nil {
		return err
	}
	if r.Width < 0 || r.Height < 0 {
		return fmt.Errorf("width and height must be positive when provided")
	}
	return nil
}

// Validate checks a PDF rasterization request.
func (r *PDFToImagesRequest) Validate() error {
	if strings.TrimSpace(r.PDFURL) == "" {
		return missingFieldsError([]string{"pdfUrl"})
	}
	if r.Scale < 0 {
		return fmt.Errorf("scale must be positive when provided")
	}
	return nil
}
