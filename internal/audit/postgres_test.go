package audit

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

func TestPostgresSinkRecord(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	query := regexp.QuoteMeta(`
INSERT INTO run_audits (run_id, user_id, question, final_answer, rounds, tasks, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (run_id) DO UPDATE SET
  final_answer = EXCLUDED.final_answer,
  rounds = EXCLUDED.rounds,
  tasks = EXCLUDED.tasks;
`)
	mock.ExpectExec(query).
		WithArgs("run-1", "user-7", "What was Nvidia's revenue?", "About 60.9 billion dollars.", 1, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := (PostgresSink{DB: db}).Record(context.Background(), sampleResult()); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresSinkSkipsFallback(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	res := sampleResult()
	res.Fallback = true
	if err := (PostgresSink{DB: db}).Record(context.Background(), res); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresSinkGet(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	now := time.Now().UTC()
	query := regexp.QuoteMeta(`
SELECT run_id, user_id, question, final_answer, rounds, tasks, created_at
FROM run_audits
WHERE run_id=$1
`)
	mock.ExpectQuery(query).
		WithArgs("run-1").
		WillReturnRows(sqlmock.NewRows([]string{"run_id", "user_id", "question", "final_answer", "rounds", "tasks", "created_at"}).
			AddRow("run-1", "user-7", "q", "a", 2, []byte(`[{"task_id":1,"name":"search","observation":"x"}]`), now))
	mock.ExpectQuery(query).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"run_id", "user_id", "question", "final_answer", "rounds", "tasks", "created_at"}))

	st := PostgresSink{DB: db}
	e, ok, err := st.Get(context.Background(), "run-1")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if e.Rounds != 2 || len(e.Tasks) != 1 || e.Tasks[0].Name != "search" {
		t.Fatalf("unexpected entry %+v", e)
	}
	if _, ok, err := st.Get(context.Background(), "missing"); ok || err != nil {
		t.Fatalf("expected not found, got ok=%v err=%v", ok, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
