package interfaces

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/xuri/excelize/v2"

	"steamwash-cloud/internal/settlement/application"
	telemetryapp "steamwash-cloud/internal/telemetry/application"
	telemetry "steamwash-cloud/internal/telemetry/domain"
)

type stubReader struct {
	snapshot telemetryapp.Snapshot
	err      error
}

func (s stubReader) GetSnapshot(context.Context) (telemetryapp.Snapshot, error) {
	return s.snapshot, s.err
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func newRouter(t *testing.T, reader application.SnapshotReader) *mux.Router {
	t.Helper()
	service, err := application.NewReportService(reader, fixedClock{now: time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)}, "North Bay")
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	handler, err := NewReportHandler(service, nil, nil)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	router := mux.NewRouter()
	handler.Register(router)
	return router
}

func sampleSnapshot() telemetryapp.Snapshot {
	return telemetryapp.Snapshot{
		SystemStatus: telemetry.DefaultSystemState(),
		ResourceUsage: telemetry.ResourceUsage{
			EnergyConsumption: 2,
			WaterUsage:        10,
			SoapUsage:         100,
			WashSessions:      3,
		},
		Tariffs: telemetry.DefaultTariffs(),
	}
}

func get(router http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestFinancials(t *testing.T) {
	router := newRouter(t, stubReader{snapshot: sampleSnapshot()})

	rec := get(router, "/api/financials")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	var env struct {
		Success bool                 `json:"success"`
		Data    telemetry.Financials `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	// 3 sessions * 3 motors * 15000; costs 2*1500 + 10*500 + 100*50
	if env.Data.GrossRevenue != 135000 || env.Data.OperationalCost != 13000 || env.Data.NetRevenue != 122000 {
		t.Fatalf("unexpected financials: %+v", env.Data)
	}
}

func TestFinancialsStorageUnavailable(t *testing.T) {
	router := newRouter(t, stubReader{err: telemetry.ErrStorageUnavailable})

	if rec := get(router, "/api/financials"); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestExportCSV(t *testing.T) {
	router := newRouter(t, stubReader{snapshot: sampleSnapshot()})

	rec := get(router, "/api/reports/usage.csv")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "north-bay-usage-20260501-080000.csv") {
		t.Fatalf("unexpected content disposition %q", cd)
	}
	reader := csv.NewReader(bytes.NewReader(rec.Body.Bytes()))
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	var found bool
	for _, record := range records {
		if len(record) == 5 && record[0] == "energy" {
			found = true
			if record[4] != "3000.00" {
				t.Fatalf("unexpected energy amount %q", record[4])
			}
		}
	}
	if !found {
		t.Fatalf("energy cost line missing: %v", records)
	}
}

func TestExportXLSX(t *testing.T) {
	router := newRouter(t, stubReader{snapshot: sampleSnapshot()})

	rec := get(router, "/api/reports/usage.xlsx")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	book, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer book.Close()
	value, err := book.GetCellValue("costs", "A3")
	if err != nil {
		t.Fatalf("read cell: %v", err)
	}
	if value != "water" {
		t.Fatalf("expected water cost line, got %q", value)
	}
}

func TestExportPDF(t *testing.T) {
	router := newRouter(t, stubReader{snapshot: sampleSnapshot()})

	rec := get(router, "/api/reports/usage.pdf")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")) {
		t.Fatalf("expected pdf output")
	}
}

func TestExportUnknownFormat(t *testing.T) {
	router := newRouter(t, stubReader{snapshot: sampleSnapshot()})

	if rec := get(router, "/api/reports/usage.docx"); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
