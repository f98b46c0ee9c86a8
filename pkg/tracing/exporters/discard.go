package exporters

import (
	"context"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// DiscardExporter drops every span. Used when no collector is configured.
type DiscardExporter struct{}

func (d *DiscardExporter) ExportSpans(_ context.Context, _ []sdktrace.ReadOnlySpan) error {
	return nil
}

func (d *DiscardExporter) Shutdown(_ context.Context) error {
	return nil
}
