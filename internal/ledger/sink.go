package ledger

import (
	"context"

	"github.com/justchokingaround/snapshot/internal/config"
	"github.com/justchokingaround/snapshot/internal/database"
	"github.com/justchokingaround/snapshot/pkg/snapshot"
)

// RecordReport stores every record of report as a pending entry
func (s *Service) RecordReport(ctx context.Context, report *snapshot.Report) error {
	if report == nil {
		return nil
	}
	records := report.Records()
	entries := make([]Entry, len(records))
	for i, r := range records {
		entries[i] = Entry{Dir: r.Dir, Name: r.Name, Kind: r.Kind.String()}
	}
	return s.Record(ctx, report.SessionID, entries)
}

// ReportSink opens the ledger database for each report it receives. It
// does nothing when the ledger is disabled.
type ReportSink struct {
	cfg *config.DatabaseConfig
}

// NewReportSink creates a sink writing to the database described by cfg
func NewReportSink(cfg *config.DatabaseConfig) *ReportSink {
	return &ReportSink{cfg: cfg}
}

// RecordReport implements snapshot.ReportSink
func (s *ReportSink) RecordReport(ctx context.Context, report *snapshot.Report) error {
	if s.cfg == nil || !s.cfg.Enabled {
		return nil
	}
	db, err := database.Open(s.cfg)
	if err != nil {
		return err
	}
	defer database.Close(db)

	return NewService(db).RecordReport(ctx, report)
}

var _ snapshot.ReportSink = (*ReportSink)(nil)
