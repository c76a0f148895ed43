package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/mohammad-safakhou/askgraph/internal/compiler"
)

// PostgresSink stores runs in the run_audits table.
type PostgresSink struct {
	DB *sql.DB
}

// OpenPostgres connects with lib/pq and pings the server.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

func (s PostgresSink) Record(ctx context.Context, res compiler.Result) error {
	if res.Fallback {
		return nil
	}
	return s.Save(ctx, FromResult(res))
}

// Save upserts an entry by run id.
func (s PostgresSink) Save(ctx context.Context, e Entry) error {
	tasks, err := json.Marshal(e.Tasks)
	if err != nil {
		return fmt.Errorf("marshal tasks: %w", err)
	}
	_, err = s.DB.ExecContext(ctx, `
INSERT INTO run_audits (run_id, user_id, question, final_answer, rounds, tasks, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (run_id) DO UPDATE SET
  final_answer = EXCLUDED.final_answer,
  rounds = EXCLUDED.rounds,
  tasks = EXCLUDED.tasks;
`, e.RunID, e.UserID, e.Question, e.FinalAnswer, e.Rounds, tasks, e.Timestamp)
	if err != nil {
		return fmt.Errorf("insert run audit: %w", err)
	}
	return nil
}

// Get loads an entry by run id.
func (s PostgresSink) Get(ctx context.Context, runID string) (Entry, bool, error) {
	var (
		e     Entry
		tasks []byte
	)
	err := s.DB.QueryRowContext(ctx, `
SELECT run_id, user_id, question, final_answer, rounds, tasks, created_at
FROM run_audits
WHERE run_id=$1
`, runID).Scan(&e.RunID, &e.UserID, &e.Question, &e.FinalAnswer, &e.Rounds, &tasks, &e.Timestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	if err := json.Unmarshal(tasks, &e.Tasks); err != nil {
		return Entry{}, false, fmt.Errorf("decode tasks: %w", err)
	}
	return e, true, nil
}
