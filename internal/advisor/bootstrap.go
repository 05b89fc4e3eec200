package advisor

import (
	"context"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"

	"github.com/mohammad-safakhou/advisor/config"
	"github.com/mohammad-safakhou/advisor/internal/audit"
	"github.com/mohammad-safakhou/advisor/internal/llm"
	"github.com/mohammad-safakhou/advisor/internal/store"
	"github.com/mohammad-safakhou/advisor/internal/telemetry"
)

// Open connects the configured collaborators (language model, Postgres,
// Redis audit stream) and builds the runtime. Postgres and audit are
// optional; Close releases whatever was opened.
func Open(ctx context.Context, cfg *config.Config, metrics *telemetry.Metrics) (*Runtime, error) {
	logger := log.New(log.Writer(), "[ADVISOR] ", log.LstdFlags)
	var closers []func() error
	fail := func(err error) (*Runtime, error) {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i]()
		}
		return nil, err
	}

	client, err := llm.New(cfg.LLM)
	if err != nil {
		return fail(fmt.Errorf("llm client: %w", err))
	}

	var st *store.Store
	if cfg.Storage.Postgres.Configured() {
		dsn, err := cfg.Storage.Postgres.DSN()
		if err != nil {
			return fail(err)
		}
		st, err = store.NewWithDSN(ctx, dsn, store.WithStatementTimeout(cfg.Query.StatementTimeout))
		if err != nil {
			return fail(fmt.Errorf("postgres: %w", err))
		}
		closers = append(closers, st.Close)
	} else {
		logger.Printf("postgres not configured; data tools use sample data and /api/query is disabled")
	}

	var rec audit.Recorder = audit.Nop{}
	if cfg.Audit.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:        cfg.Storage.Redis.Addr(),
			Password:    cfg.Storage.Redis.Password,
			DB:          cfg.Storage.Redis.DB,
			DialTimeout: cfg.Storage.Redis.Timeout,
		})
		closers = append(closers, rdb.Close)
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fail(fmt.Errorf("redis connection failed (%s): %w", cfg.Storage.Redis.Addr(), err))
		}
		schemas, err := audit.NewSchemaRegistry()
		if err != nil {
			return fail(err)
		}
		rec = audit.NewStreamRecorder(audit.NewPublisher(rdb, schemas, cfg.Audit.MaxLen), cfg.Audit.Stream)
	}

	rt, err := Build(cfg, client, st, rec, metrics)
	if err != nil {
		return fail(err)
	}
	rt.closers = closers
	return rt, nil
}
