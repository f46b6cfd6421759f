package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"land-crawler/models"
)

// PostgresStore persists run status and collected complexes to PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection to PostgreSQL, runs schema migrations,
// and returns a ready-to-use PostgresStore.
func NewPostgresStore(ctx context.Context, dsn string, pingAttempts int) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	if pingAttempts <= 0 {
		pingAttempts = 1
	}
	for i := 0; i < pingAttempts; i++ {
		if err = db.PingContext(ctx); err == nil {
			break
		}
		if i < pingAttempts-1 {
			time.Sleep(2 * time.Second)
		}
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	ps := &PostgresStore{db: db}
	if err := ps.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return ps, nil
}

func (ps *PostgresStore) migrate(ctx context.Context) error {
	_, err := ps.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS crawl_runs (
			run_id            TEXT        PRIMARY KEY,
			phase             VARCHAR(16) NOT NULL,
			targets_processed INTEGER     NOT NULL DEFAULT 0,
			targets_total     INTEGER     NOT NULL DEFAULT 0,
			current_target    TEXT,
			message           TEXT        NOT NULL DEFAULT '',
			items_collected   INTEGER     NOT NULL DEFAULT 0,
			eta_seconds       DOUBLE PRECISION,
			status            JSONB       NOT NULL,
			started_at        TIMESTAMPTZ NOT NULL,
			updated_at        TIMESTAMPTZ NOT NULL
		);

		CREATE TABLE IF NOT EXISTS complexes (
			complex_no   TEXT        PRIMARY KEY,
			complex_name TEXT        NOT NULL DEFAULT '',
			overview     JSONB,
			crawled_at   TIMESTAMPTZ NOT NULL
		);

		CREATE TABLE IF NOT EXISTS articles (
			complex_no TEXT        NOT NULL,
			article_id TEXT        NOT NULL,
			payload    JSONB       NOT NULL,
			crawled_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (complex_no, article_id)
		);

		CREATE INDEX IF NOT EXISTS idx_crawl_runs_phase ON crawl_runs(phase);
		CREATE INDEX IF NOT EXISTS idx_articles_crawled ON articles(crawled_at);
	`)
	return err
}

// WriteStatus upserts the run row keyed by run id.
func (ps *PostgresStore) WriteStatus(ctx context.Context, s models.RunStatus) error {
	doc, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("postgres: marshal status: %w", err)
	}
	var current sql.NullString
	if s.CurrentTarget != nil {
		current = sql.NullString{String: string(*s.CurrentTarget), Valid: true}
	}
	var eta sql.NullFloat64
	if s.ETASeconds != nil {
		eta = sql.NullFloat64{Float64: *s.ETASeconds, Valid: true}
	}

	_, err = ps.db.ExecContext(ctx, `
		INSERT INTO crawl_runs (run_id, phase, targets_processed, targets_total, current_target,
			message, items_collected, eta_seconds, status, started_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (run_id) DO UPDATE SET
			phase = EXCLUDED.phase,
			targets_processed = EXCLUDED.targets_processed,
			targets_total = EXCLUDED.targets_total,
			current_target = EXCLUDED.current_target,
			message = EXCLUDED.message,
			items_collected = EXCLUDED.items_collected,
			eta_seconds = EXCLUDED.eta_seconds,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at
	`, s.RunID, string(s.Phase), s.TargetsProcessed, s.TargetsTotal, current,
		s.Message, s.ItemsCollected, eta, string(doc), s.StartedAt, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("postgres: upsert run %q: %w", s.RunID, err)
	}
	return nil
}

// Write stores overviews and articles of every populated record. Error records are skipped.
func (ps *PostgresStore) Write(results []models.TargetResult) error {
	ctx := context.Background()
	for _, r := range results {
		if r.Failed() {
			continue
		}
		if err := ps.upsertComplex(ctx, r); err != nil {
			return err
		}
		if r.Articles == nil {
			continue
		}
		const batchSize = 50
		items := r.Articles.Items
		for i := 0; i < len(items); i += batchSize {
			end := i + batchSize
			if end > len(items) {
				end = len(items)
			}
			query, args := articleBatch(r.Target, r.CrawledAt, items[i:end])
			if _, err := ps.db.ExecContext(ctx, query, args...); err != nil {
				return fmt.Errorf("postgres: insert articles for %s: %w", r.Target, err)
			}
		}
	}
	return nil
}

func (ps *PostgresStore) upsertComplex(ctx context.Context, r models.TargetResult) error {
	var name string
	var overview []byte
	if r.Overview != nil {
		name = r.Overview.ComplexName
		b, err := json.Marshal(r.Overview)
		if err != nil {
			return fmt.Errorf("postgres: marshal overview %s: %w", r.Target, err)
		}
		overview = b
	}
	_, err := ps.db.ExecContext(ctx, `
		INSERT INTO complexes (complex_no, complex_name, overview, crawled_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (complex_no) DO UPDATE SET
			complex_name = COALESCE(NULLIF(EXCLUDED.complex_name, ''), complexes.complex_name),
			overview = COALESCE(EXCLUDED.overview, complexes.overview),
			crawled_at = EXCLUDED.crawled_at
	`, string(r.Target), name, nullableJSON(overview), r.CrawledAt)
	if err != nil {
		return fmt.Errorf("postgres: upsert complex %s: %w", r.Target, err)
	}
	return nil
}

// articleBatch builds one multi-row upsert for a slice of items.
func articleBatch(t models.Target, at time.Time, batch []models.Item) (string, []interface{}) {
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]interface{}, 0, len(batch)*4)

	for idx, it := range batch {
		base := idx * 4
		valueStrings = append(valueStrings,
			fmt.Sprintf("($%d,$%d,$%d,$%d)", base+1, base+2, base+3, base+4))
		valueArgs = append(valueArgs, string(t), it.ID, string(it.Raw), at)
	}

	query := fmt.Sprintf(`
		INSERT INTO articles (complex_no, article_id, payload, crawled_at)
		VALUES %s
		ON CONFLICT (complex_no, article_id) DO UPDATE SET
			payload = EXCLUDED.payload,
			crawled_at = EXCLUDED.crawled_at
	`, strings.Join(valueStrings, ","))
	return query, valueArgs
}

func nullableJSON(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

func (ps *PostgresStore) Close() error {
	return ps.db.Close()
}
