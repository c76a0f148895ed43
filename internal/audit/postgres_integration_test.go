package audit_test

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/mohammad-safakhou/askgraph/internal/audit"
	"github.com/mohammad-safakhou/askgraph/internal/compiler"
)

func migrationsDir(t *testing.T) string {
	t.Helper()
	_, file, _, _ := runtime.Caller(0)
	return "file://" + filepath.Join(filepath.Dir(file), "..", "..", "migrations")
}

func TestPostgresSinkRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	pgC, err := tcPostgres.RunContainer(ctx,
		tcPostgres.WithDatabase("askgraph"),
		tcPostgres.WithUsername("askgraph"),
		tcPostgres.WithPassword("askgraph"),
		testcontainers.WithWaitStrategy(wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("postgres container: %v", err)
	}
	defer func() { _ = pgC.Terminate(ctx) }()

	host, err := pgC.Host(ctx)
	if err != nil {
		t.Fatalf("postgres host: %v", err)
	}
	port, err := pgC.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("postgres port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://askgraph:askgraph@%s:%s/askgraph?sslmode=disable", host, port.Port())

	if err := audit.Migrate(migrationsDir(t), dsn, "up", 0); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	db, err := audit.OpenPostgres(ctx, dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	g := compiler.Graph{
		1: {Index: 1, Name: "search", Args: []any{"q"}, Observation: "obs", Observed: true, Status: compiler.StatusDone},
		2: {Index: 2, Name: "join", Dependencies: []int{1}, IsJoin: true, Status: compiler.StatusDone},
	}
	res := compiler.Result{
		RunID: "run-int", UserID: "u", Question: "q", Answer: "a",
		Rounds: []compiler.Round{{Number: 1, Graph: g}}, Started: time.Now(),
	}
	sink := audit.PostgresSink{DB: db}
	if err := sink.Record(ctx, res); err != nil {
		t.Fatalf("Record: %v", err)
	}
	got, ok, err := sink.Get(ctx, "run-int")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if got.FinalAnswer != "a" || len(got.Tasks) != 2 || got.Tasks[0].Observation != "obs" {
		t.Fatalf("unexpected entry %+v", got)
	}
	if err := audit.Migrate(migrationsDir(t), dsn, "down", 0); err != nil {
		t.Fatalf("migrate down: %v", err)
	}
}
