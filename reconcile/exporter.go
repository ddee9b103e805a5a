package reconcile

import "context"

// Exporter renders or exports a reconciliation report. Document rendering
// lives entirely outside this package; the coordinator only passes the
// current report through.
type Exporter interface {
	GenerateReport(ctx context.Context, report *Report) error
	ExportReport(ctx context.Context, report *Report, format string) error
}

// NopExporter discards reports. Used when no rendering backend is wired.
type NopExporter struct{}

func (NopExporter) GenerateReport(context.Context, *Report) error { return nil }

func (NopExporter) ExportReport(context.Context, *Report, string) error { return nil }
