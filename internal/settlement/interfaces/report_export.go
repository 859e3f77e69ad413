package interfaces

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	settlement "steamwash-cloud/internal/settlement/domain"
)

// Export renders report in format f.
func Export(report settlement.UsageReport, f settlement.Format) ([]byte, error) {
	switch f {
	case settlement.FormatXLSX:
		return BuildReportXLSX(report)
	case settlement.FormatPDF:
		return BuildReportPDF(report)
	case settlement.FormatCSV:
		return BuildReportCSV(report)
	default:
		return nil, settlement.ErrUnsupportedFormat
	}
}

type summaryRow struct {
	label string
	value any
}

func summaryRows(report settlement.UsageReport) []summaryRow {
	fin := report.Financials
	return []summaryRow{
		{"Site", report.Site},
		{"Generated", report.GeneratedAt.Format(time.RFC3339)},
		{"Wash Sessions", fin.WashSessions},
		{"Active Motors", fin.ActiveMotors},
		{"Service Price", fin.ServicePrice},
		{"Wash Duration (min)", report.Usage.WashDuration},
		{"Gross Revenue", fin.GrossRevenue},
		{"Operational Cost", fin.OperationalCost},
		{"Net Revenue", fin.NetRevenue},
	}
}

// BuildReportPDF renders a one-page PDF statement.
func BuildReportPDF(report settlement.UsageReport) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Steam Wash Usage Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	for _, row := range summaryRows(report) {
		pdf.Cell(0, 6, fmt.Sprintf("%s: %s", row.label, formatValue(row.value)))
		pdf.Ln(5)
	}
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(35, 6, "Resource", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Quantity", "1", 0, "C", false, 0, "")
	pdf.CellFormat(20, 6, "Unit", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Tariff", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, "Amount", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, line := range report.Financials.Costs {
		pdf.CellFormat(35, 6, line.Resource, "1", 0, "L", false, 0, "")
		pdf.CellFormat(35, 6, fmt.Sprintf("%.3f", line.Quantity), "1", 0, "R", false, 0, "")
		pdf.CellFormat(20, 6, line.Unit, "1", 0, "C", false, 0, "")
		pdf.CellFormat(35, 6, fmt.Sprintf("%.2f", line.Tariff), "1", 0, "R", false, 0, "")
		pdf.CellFormat(40, 6, fmt.Sprintf("%.2f", line.Amount), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildReportXLSX renders a workbook with summary and costs sheets.
func BuildReportXLSX(report settlement.UsageReport) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	summarySheet := "summary"
	costsSheet := "costs"
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(costsSheet); err != nil {
		return nil, err
	}

	_ = f.SetCellValue(summarySheet, "A1", "Steam Wash Usage Report")
	for i, row := range summaryRows(report) {
		r := i + 3
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("A%d", r), row.label)
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("B%d", r), row.value)
	}

	_ = f.SetCellValue(costsSheet, "A1", "Resource")
	_ = f.SetCellValue(costsSheet, "B1", "Quantity")
	_ = f.SetCellValue(costsSheet, "C1", "Unit")
	_ = f.SetCellValue(costsSheet, "D1", "Tariff")
	_ = f.SetCellValue(costsSheet, "E1", "Amount")
	for i, line := range report.Financials.Costs {
		r := i + 2
		_ = f.SetCellValue(costsSheet, fmt.Sprintf("A%d", r), line.Resource)
		_ = f.SetCellValue(costsSheet, fmt.Sprintf("B%d", r), line.Quantity)
		_ = f.SetCellValue(costsSheet, fmt.Sprintf("C%d", r), line.Unit)
		_ = f.SetCellValue(costsSheet, fmt.Sprintf("D%d", r), line.Tariff)
		_ = f.SetCellValue(costsSheet, fmt.Sprintf("E%d", r), line.Amount)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildReportCSV renders the summary followed by the cost lines.
func BuildReportCSV(report settlement.UsageReport) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	_ = writer.Write([]string{"field", "value"})
	for _, row := range summaryRows(report) {
		_ = writer.Write([]string{row.label, formatValue(row.value)})
	}
	_ = writer.Write(nil)
	_ = writer.Write([]string{"resource", "quantity", "unit", "tariff", "amount"})
	for _, line := range report.Financials.Costs {
		_ = writer.Write([]string{
			line.Resource,
			strconv.FormatFloat(line.Quantity, 'f', 3, 64),
			line.Unit,
			strconv.FormatFloat(line.Tariff, 'f', 2, 64),
			strconv.FormatFloat(line.Amount, 'f', 2, 64),
		})
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formatValue(value any) string {
	switch v := value.(type) {
	case float64:
		return strconv.FormatFloat(v, 'f', 2, 64)
	case int:
		return strconv.Itoa(v)
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}
