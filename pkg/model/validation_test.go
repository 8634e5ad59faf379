package model

import (
	"strings"
	"testing"
)

func validCar() CarDetails {
	return CarDetails{
		Year:        NewFlexString("2022"),
		Model:       "GLE 450",
		Mileage:     NewFlexString("35,000 KM"),
		StockNumber: "ST1234",
		Price:       NewMoney("185,000"),
	}
}

func TestRenderCardsRequestValidate(t *testing.T) {
	tests := []struct {
		name          string
		mutate        func(*RenderCardsRequest)
		expectError   bool
		errorContains string
	}{
		{
			name:   "valid request",
			mutate: func(r *RenderCardsRequest) {},
		},
		{
			name:          "missing both image urls",
			mutate:        func(r *RenderCardsRequest) { r.FirstImageURL = ""; r.SecondImageURL = "" },
			expectError:   true,
			errorContains: "firstImageUrl, secondImageUrl",
		},
		{
			name:          "missing car model",
			mutate:        func(r *RenderCardsRequest) { r.CarDetails.Model = "" },
			expectError:   true,
			errorContains: "carDetails.model",
		},
		{
			name:          "missing price",
			mutate:        func(r *RenderCardsRequest) { r.CarDetails.Price = NewMoney(nil) },
			expectError:   true,
			errorContains: "carDetails.price",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := RenderCardsRequest{
				CarDetails:     validCar(),
				FirstImageURL:  "https://cdn.example.com/a.jpg",
				SecondImageURL: "https://cdn.example.com/b.jpg",
			}
			tt.mutate(&req)

			err := req.Validate()
			if tt.expectError {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !strings.Contains(err.Error(), tt.errorContains) {
					t.Errorf("error %q does not contain %q", err.Error(), tt.errorContains)
				}
			} else if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestCatalogRequestValidate(t *testing.T) {
	req := CatalogRequest{CarDetails: validCar(), CatalogImageURL: "https://cdn.example.com/c.jpg"}

	if err := req.Validate(false); err != nil {
		t.Errorf("plain catalog: unexpected error %v", err)
	}

	// Leasing variant requires the monthly figure.
	if err := req.Validate(true); err == nil {
		t.Error("leasing without monthlyLease should fail")
	} else if !strings.Contains(err.Error(), "monthlyLease") {
		t.Errorf("error %q does not name monthlyLease", err.Error())
	}

	req.MonthlyLease = NewMoney(3499.0)
	if err := req.Validate(true); err != nil {
		t.Errorf("leasing with monthlyLease: unexpected error %v", err)
	}
}

func TestContentPillarRequestValidate(t *testing.T) {
	req := ContentPillarRequest{Title: "T", Description: "D", DayOfWeek: "tuesday"}
	if err := req.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	req.DayOfWeek = "someday"
	if err := req.Validate(); err == nil {
		t.Error("invalid weekday should fail")
	}

	req.DayOfWeek = ""
	if err := req.Validate(); err == nil || !strings.Contains(err.Error(), "dayOfWeek") {
		t.Errorf("missing dayOfWeek should be named, got %v", err)
	}
}

func TestConsignmentRequestValidate(t *testing.T) {
	req := ConsignmentRequest{
		CarData:       map[string]any{"ownerName": "A"},
		AgreementType: AgreementConsignment,
	}
	if err := req.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	req.AgreementType = "lease"
	if err := req.Validate(); err == nil {
		t.Error("unknown agreement type should fail")
	}

	req.AgreementType = AgreementDirectPurchase
	req.CarData = nil
	if err := req.Validate(); err == nil || !strings.Contains(err.Error(), "carData") {
		t.Errorf("missing carData should be named, got %v", err)
	}
}

func TestDamageReportRequestValidate(t *testing.T) {
	req := DamageReportRequest{
		DamageAnnotations: []DamageAnnotation{{X: 1014.5, Y: 382.5, Severity: "minor"}},
		DiagramImageURL:   "https://cdn.example.com/diagram.png",
	}
	if err := req.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	req.DamageAnnotations[0].X = -1
	if err := req.Validate(); err == nil {
		t.Error("negative coordinate should fail")
	}

	req.DamageAnnotations = nil
	if err := req.Validate(); err == nil || !strings.Contains(err.Error(), "damageAnnotations") {
		t.Errorf("missing annotations should be named, got %v", err)
	}
}

func TestIsWeekday(t *testing.T) {
	for _, day := range []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"} {
		if !IsWeekday(day) {
			t.Errorf("%s should be a weekday", day)
		}
	}
	if IsWeekday("Funday") || IsWeekday("") {
		t.Error("invalid names accepted")
	}
	if !IsWeekday(" Tuesday ") {
		t.Error("case and whitespace should be tolerated")
	}
}
