package settlement

import (
	"errors"
	"strings"
	"time"

	telemetry "steamwash-cloud/internal/telemetry/domain"
)

var (
	// ErrUnsupportedFormat is returned for an unknown export format.
	ErrUnsupportedFormat = errors.New("settlement: unsupported format")
)

// Format is an export file format.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatPDF  Format = "pdf"
	FormatCSV  Format = "csv"
)

// ParseFormat validates a raw format string.
func ParseFormat(value string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(value))); f {
	case FormatXLSX, FormatPDF, FormatCSV:
		return f, nil
	default:
		return "", ErrUnsupportedFormat
	}
}

// ContentType returns the MIME type served for f.
func (f Format) ContentType() string {
	switch f {
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatPDF:
		return "application/pdf"
	default:
		return "text/csv; charset=utf-8"
	}
}

// UsageReport is a point-in-time billing statement of the wash system.
type UsageReport struct {
	Site        string                  `json:"site"`
	GeneratedAt time.Time               `json:"generated_at"`
	Usage       telemetry.ResourceUsage `json:"usage"`
	Tariffs     telemetry.Tariffs       `json:"tariffs"`
	Financials  telemetry.Financials    `json:"financials"`
}

// NewUsageReport derives the financial view from state, usage and tariffs.
func NewUsageReport(site string, at time.Time, state telemetry.SystemState, usage telemetry.ResourceUsage, tariffs telemetry.Tariffs) UsageReport {
	return UsageReport{
		Site:        site,
		GeneratedAt: at,
		Usage:       usage,
		Tariffs:     tariffs,
		Financials:  telemetry.ComputeFinancials(state, usage, tariffs),
	}
}

// FileName returns the download name for the report in format f.
func (r UsageReport) FileName(f Format) string {
	site := strings.TrimSpace(r.Site)
	if site == "" {
		site = "steamwash"
	}
	site = strings.ReplaceAll(strings.ToLower(site), " ", "-")
	return site + "-usage-" + r.GeneratedAt.UTC().Format("20060102-150405") + "." + string(f)
}
