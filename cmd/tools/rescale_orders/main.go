// Command rescale_orders repairs legacy orders whose amounts were stored
// scaled by 100 twice. Run with --dry-run first.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/storefront-api/internal/config"
	"github.com/noah-isme/storefront-api/internal/db"
	"github.com/noah-isme/storefront-api/internal/events"
)

type pgxTransactor struct {
	pool *pgxpool.Pool
}

func (t pgxTransactor) InTx(ctx context.Context, fn func(store) error) error {
	return db.InTx(ctx, t.pool, func(q *db.Queries) error { return fn(q) })
}

func main() {
	var (
		dryRun = flag.Bool("dry-run", false, "report affected orders without writing")
		batch  = flag.Int("batch", 500, "orders scanned per query")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx := context.Background()
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	pool, err := pgxpool.New(connectCtx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	defer pool.Close()
	if err := pool.Ping(connectCtx); err != nil {
		log.Fatalf("ping database: %v", err)
	}

	r := rescaler{
		Store:  db.New(pool),
		Tx:     pgxTransactor{pool: pool},
		Bus:    &events.Bus{},
		Batch:  int32(*batch),
		DryRun: *dryRun,
		Logf:   log.Printf,
	}
	res, err := r.run(ctx)
	if err != nil {
		log.Fatalf("rescale orders: %v", err)
	}
	if *dryRun {
		log.Printf("dry run: %d of %d orders would be rescaled", res.Rescaled, res.Scanned)
		return
	}
	log.Printf("rescaled %d of %d orders", res.Rescaled, res.Scanned)
}
