package audit

import (
	"context"
	"log"

	"go.opentelemetry.io/otel/trace"

	"github.com/mohammad-safakhou/advisor/internal/executor"
	"github.com/mohammad-safakhou/advisor/internal/planner"
)

// RunRecord describes one completed plan or route flow.
type RunRecord struct {
	RunID      string                `json:"run_id"`
	Flow       string                `json:"flow"`
	UserText   string                `json:"user_text"`
	Plan       planner.Plan          `json:"plan"`
	Results    []executor.ToolOutput `json:"results"`
	Answer     string                `json:"answer,omitempty"`
	Error      string                `json:"error,omitempty"`
	DurationMS int64                 `json:"duration_ms"`
}

// QueryRecord describes one natural-language query execution.
type QueryRecord struct {
	RunID      string `json:"run_id"`
	Prompt     string `json:"prompt"`
	TableHint  string `json:"table_hint,omitempty"`
	SQL        string `json:"sql"`
	RowCount   int    `json:"row_count"`
	Rejected   bool   `json:"rejected,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

// Recorder receives completed runs. Implementations must not fail the caller.
type Recorder interface {
	RecordRun(ctx context.Context, rec RunRecord)
	RecordQuery(ctx context.Context, rec QueryRecord)
}

// Nop discards every record.
type Nop struct{}

func (Nop) RecordRun(context.Context, RunRecord)     {}
func (Nop) RecordQuery(context.Context, QueryRecord) {}

// StreamRecorder publishes records to a Redis stream and logs failures.
type StreamRecorder struct {
	pub    *Publisher
	stream string
	logger *log.Logger
}

func NewStreamRecorder(pub *Publisher, stream string) *StreamRecorder {
	return &StreamRecorder{
		pub:    pub,
		stream: stream,
		logger: log.New(log.Writer(), "[AUDIT] ", log.LstdFlags),
	}
}

func (r *StreamRecorder) RecordRun(ctx context.Context, rec RunRecord) {
	if rec.Results == nil {
		rec.Results = []executor.ToolOutput{}
	}
	if rec.Plan.Steps == nil {
		rec.Plan.Steps = []planner.Step{}
	}
	r.publish(ctx, EventRunCompleted, rec.RunID, rec)
}

func (r *StreamRecorder) RecordQuery(ctx context.Context, rec QueryRecord) {
	r.publish(ctx, EventQueryCompleted, rec.RunID, rec)
}

func (r *StreamRecorder) publish(ctx context.Context, eventType, runID string, payload interface{}) {
	if _, err := r.pub.PublishRaw(ctx, r.stream, eventType, PayloadV1, traceID(ctx), payload); err != nil {
		r.logger.Printf("publish %s for run %s: %v", eventType, runID, err)
	}
}

func traceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}
