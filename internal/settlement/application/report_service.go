package application

import (
	"context"
	"errors"
	"time"

	settlement "steamwash-cloud/internal/settlement/domain"
	telemetryapp "steamwash-cloud/internal/telemetry/application"
)

// SnapshotReader loads the current telemetry snapshot.
type SnapshotReader interface {
	GetSnapshot(ctx context.Context) (telemetryapp.Snapshot, error)
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// ReportService builds usage reports from live telemetry.
type ReportService struct {
	reader SnapshotReader
	clock  Clock
	site   string
}

// NewReportService constructs a report service.
func NewReportService(reader SnapshotReader, clock Clock, site string) (*ReportService, error) {
	if reader == nil {
		return nil, errors.New("settlement: nil snapshot reader")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &ReportService{reader: reader, clock: clock, site: site}, nil
}

// Build returns a report of the current accumulated usage.
func (s *ReportService) Build(ctx context.Context) (settlement.UsageReport, error) {
	snapshot, err := s.reader.GetSnapshot(ctx)
	if err != nil {
		return settlement.UsageReport{}, err
	}
	return settlement.NewUsageReport(s.site, s.clock.Now(), snapshot.SystemStatus, snapshot.ResourceUsage, snapshot.Tariffs), nil
}
