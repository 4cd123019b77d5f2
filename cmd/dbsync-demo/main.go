// Command dbsync-demo runs the basic-CRUD scenario end to end against an
// in-memory sqlite database: create a tracked table, mutate it, push the
// changes, then pull them back and show the round trip.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/google/uuid"

	dbsync "github.com/eddiethedean/dbsync"
	"github.com/eddiethedean/dbsync/enginesql"
	"github.com/eddiethedean/dbsync/internal/envconfig"
	"github.com/eddiethedean/dbsync/pk"
	"github.com/eddiethedean/dbsync/table"
)

func main() {
	dsn := flag.String("dsn", "", "connection string; empty uses an in-memory sqlite database")
	flag.Parse()

	if err := run(*dsn); err != nil {
		log.Fatal(err)
	}
}

func run(dsn string) error {
	cfg := envconfig.FromEnv()
	if dsn != "" {
		cfg.DSN = dsn
	}

	ctx := context.Background()
	engine, err := openEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer engine.Close()

	opts := dbsync.DefaultOptions()
	opts.MaxConcurrentPushes = cfg.MaxConcurrentPushes
	opts.RetryPolicy.MaxAttempts = cfg.RetryMaxAttempts
	opts.RetryPolicy.InitialDelay = cfg.RetryInitialDelay
	opts.RetryPolicy.MaxDelay = cfg.RetryMaxDelay
	db := dbsync.NewDatabase(engine, opts)

	schema := table.NewSchema(
		table.Column{Name: "id", Type: table.KindInt64},
		table.Column{Name: "name", Type: table.KindString},
		table.Column{Name: "email", Type: table.KindString},
	)
	seed, err := table.New(schema, pk.New("id"), []table.Row{
		{"id": int64(1), "name": "Ada Lovelace", "email": "ada@example.com"},
		{"id": int64(2), "name": "Alan Turing", "email": "alan@example.com"},
	})
	if err != nil {
		return err
	}

	runID := uuid.New()
	fmt.Printf("run %s: seeding users table with %d rows\n", runID, seed.Len())

	users := dbsync.NewTrackedTable("users", seed, opts.TrackingMode)
	db.AddTable(users)

	if err := db.Push(ctx, "users"); err != nil {
		return err
	}
	fmt.Println("created users table and pushed initial rows")

	if err := users.UpdateRow(pk.Of(int64(1)), table.Row{"email": "ada.lovelace@example.com"}); err != nil {
		return err
	}
	if err := users.AddRow(table.Row{"id": int64(3), "name": "Grace Hopper", "email": "grace@example.com"}); err != nil {
		return err
	}
	if err := users.DeleteRow(pk.Of(int64(2))); err != nil {
		return err
	}

	summary := users.ChangesSummary()
	fmt.Printf("pending changes: %d updated, %d inserted, %d deleted\n", summary.Updates, summary.Inserts, summary.Deletes)

	if err := db.Push(ctx, "users"); err != nil {
		return err
	}
	fmt.Println("pushed changes")

	if err := db.Pull(ctx, "users"); err != nil {
		return err
	}
	fresh, _ := db.Table("users")
	fmt.Printf("pulled back %d rows:\n", fresh.Len())
	for _, r := range fresh.Data().Rows() {
		fmt.Printf("  %v\n", r)
	}

	healthy := db.HealthCheck(ctx, cfg.QueryTimeout)
	fmt.Printf("connection healthy: %v\n", healthy)
	fmt.Printf("pool: %+v\n", db.PoolSnapshot())

	return nil
}

func openEngine(ctx context.Context, cfg envconfig.Config) (dbsync.Engine, error) {
	switch cfg.Dialect {
	case "mysql":
		return enginesql.OpenMySQL(ctx, cfg.DSN)
	case "postgres":
		return enginesql.OpenPostgres(ctx, cfg.DSN)
	default:
		if cfg.DSN == "" {
			return enginesql.OpenSQLiteMemory(ctx)
		}
		return enginesql.OpenSQLite(ctx, cfg.DSN)
	}
}
