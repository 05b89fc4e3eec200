package advisor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mohammad-safakhou/advisor/internal/audit"
	"github.com/mohammad-safakhou/advisor/internal/llm"
	"github.com/mohammad-safakhou/advisor/internal/sqlguard"
	"github.com/mohammad-safakhou/advisor/internal/telemetry"
)

// SQLInstructions is the system prompt of the SQL writer.
const SQLInstructions = `You write PostgreSQL queries.
Return exactly one read-only statement starting with SELECT or WITH.
Output only the SQL: no markdown, no comments, no explanations.
Tables live in schema 'public'. Add a LIMIT when the request does not give one.
If the request cannot be answered with a single read-only SELECT/WITH, output:
SELECT 'unsupported' AS error;`

const sqlExamples = `
Examples:
- "how many rows does <table> have?" -> SELECT COUNT(*) AS total FROM public.<table>;
- "show 5 rows from <table>" -> SELECT * FROM public.<table> LIMIT 5;
- "all rows of <table> for user_id=3" -> SELECT * FROM public.<table> WHERE user_id=3;
`

// QueryResult is the outcome of SanitizeAndRun.
type QueryResult struct {
	RunID string                   `json:"run_id"`
	SQL   string                   `json:"sql"`
	Rows  []map[string]interface{} `json:"rows"`
}

// SQLPrompts builds the system and user prompts for the SQL writer.
func SQLPrompts(schemaBrief, prompt, tableHint string) (system, user string) {
	system = SQLInstructions
	if schemaBrief != "" {
		system += "\n\n" + schemaBrief
	}
	user = strings.TrimSpace(prompt)
	if hint := strings.TrimSpace(tableHint); hint != "" {
		user += "\nMain table (hint): " + hint
	}
	return system, user + sqlExamples
}

// SanitizeAndRun asks the model for SQL answering prompt, passes it through
// the SQL guard and runs it read-only. Rejections and execution failures are
// returned as *QueryError carrying the SQL.
func (s *Service) SanitizeAndRun(ctx context.Context, prompt, tableHint string) (res *QueryResult, err error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrEmptyInput
	}
	if s.Queries == nil {
		return nil, ErrNoDatabase
	}
	start := time.Now()
	runID := uuid.NewString()
	ctx, span := telemetry.Tracer().Start(ctx, "advisor.query")
	span.SetAttributes(attribute.String("advisor.run_id", runID))

	rec := audit.QueryRecord{RunID: runID, Prompt: prompt, TableHint: tableHint}
	defer func() {
		telemetry.EndSpan(span, err)
		outcome := "ok"
		if err != nil {
			rec.Error = err.Error()
			outcome = "error"
			if errors.Is(err, sqlguard.ErrRejectedQuery) {
				rec.Rejected = true
				outcome = "rejected"
			}
		} else {
			rec.RowCount = len(res.Rows)
		}
		rec.DurationMS = time.Since(start).Milliseconds()
		s.Metrics.ObserveQuery(outcome, time.Since(start))
		s.Recorder.RecordQuery(ctx, rec)
	}()

	brief := ""
	if s.Schema != nil {
		b, berr := s.Schema.SchemaBrief(ctx, s.query.SchemaColumns)
		if berr != nil {
			s.logger.Printf("query %s: schema brief unavailable: %v", runID, berr)
		} else {
			brief = b
		}
	}
	system, user := SQLPrompts(brief, prompt, tableHint)
	raw, err := s.LLM.Generate(ctx, llm.Request{
		System:      system,
		Prompt:      user,
		MaxTokens:   s.query.Generation.MaxTokens,
		Temperature: s.query.Generation.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("generate sql: %w", llm.Unavailable(err))
	}

	candidate := sqlguard.StripCodeFence(raw)
	rec.SQL = candidate
	if sqlguard.IsUnsupported(candidate) {
		return nil, &QueryError{SQL: candidate, Err: fmt.Errorf("%w: request cannot be answered with a read-only query", sqlguard.ErrRejectedQuery)}
	}
	sanitized, err := sqlguard.Sanitize(candidate, s.query.DefaultLimit)
	if err != nil {
		return nil, &QueryError{SQL: candidate, Err: err}
	}
	rec.SQL = sanitized

	rows, err := s.Queries.QueryReadOnly(ctx, sanitized)
	if err != nil {
		s.logger.Printf("query %s failed: %v", runID, err)
		return nil, &QueryError{SQL: sanitized, Err: err}
	}
	if rows == nil {
		rows = []map[string]interface{}{}
	}
	return &QueryResult{RunID: runID, SQL: sanitized, Rows: rows}, nil
}
