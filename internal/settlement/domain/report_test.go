package settlement

import (
	"errors"
	"testing"
	"time"

	telemetry "steamwash-cloud/internal/telemetry/domain"
)

func TestParseFormat(t *testing.T) {
	cases := map[string]Format{"xlsx": FormatXLSX, " PDF ": FormatPDF, "csv": FormatCSV}
	for raw, want := range cases {
		got, err := ParseFormat(raw)
		if err != nil || got != want {
			t.Fatalf("ParseFormat(%q) = %q, %v", raw, got, err)
		}
	}
	if _, err := ParseFormat("docx"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected unsupported format, got %v", err)
	}
}

func TestNewUsageReport(t *testing.T) {
	at := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	state := telemetry.DefaultSystemState()
	usage := telemetry.ResourceUsage{WashSessions: 2, EnergyConsumption: 1.5}
	report := NewUsageReport("Bay 1", at, state, usage, telemetry.DefaultTariffs())

	if report.Financials.GrossRevenue != 2*3*15000 {
		t.Fatalf("unexpected gross revenue: %v", report.Financials.GrossRevenue)
	}
	if name := report.FileName(FormatCSV); name != "bay-1-usage-20260304-050607.csv" {
		t.Fatalf("unexpected file name %q", name)
	}
}
