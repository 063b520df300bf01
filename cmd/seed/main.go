package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"

	"membership-billing/internal/config"
	"membership-billing/internal/domain/model"
	"membership-billing/internal/domain/ports/repository"
	pg "membership-billing/internal/infra/db/postgres"
	"membership-billing/internal/infra/logging"
	red "membership-billing/internal/infra/redis"
)

var catalog = []struct {
	ID       string
	Name     string
	Price    int64
	Features []string
	Lifetime bool
}{
	{"premium", "Premium", 10000, []string{"Member directory", "Monthly newsletter"}, false},
	{"vip", "VIP", 20000, []string{"Member directory", "Monthly newsletter", "Event priority"}, false},
	{"golden", "Golden", 50000, []string{"Member directory", "Monthly newsletter", "Event priority", "Lifetime access"}, true},
}

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	demoUser := flag.String("demo-user", "", "also write a completed premium purchase for this user id")
	flag.Parse()

	// ---- Config ----
	cfg, err := config.LoadConfig(*cfgPath, false)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := logging.New(cfg.Log, true)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pg.NewPool(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	var packages repository.PackageRepository = pg.NewPostgresPackageRepo(pool)
	if cfg.Redis.URL != "" {
		// saves through the decorator drop stale catalog entries
		rc, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		defer rc.Close()
		packages = pg.NewPackageRepoCacheDecorator(packages, rc, cfg.Redis.TTL, logger)
	}
	records := pg.NewPostgresPaymentRecordRepo(pool)
	txm := pg.NewTxManager(pool)

	err = txm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		for i, c := range catalog {
			p, err := model.NewPackage(c.ID, c.Name, c.Price, c.Features, c.Lifetime, i+1)
			if err != nil {
				return fmt.Errorf("package %s: %w", c.ID, err)
			}
			if err := packages.Save(ctx, tx, p); err != nil {
				return err
			}
			fmt.Printf("seeded: %s (price=%d, lifetime=%t)\n", p.ID, p.Price, p.Lifetime)
		}

		if *demoUser == "" {
			return nil
		}
		now := time.Now().UTC()
		rec := &model.PaymentRecord{
			ID:          uuid.NewString(),
			UserID:      *demoUser,
			PackageType: "premium",
			Amount:      10000,
			Status:      model.PaymentStatusCompleted,
			Details: []model.PaymentDetail{{
				Kind:          model.DetailKindPurchase,
				TargetPackage: "premium",
				TargetPrice:   10000,
				Timestamp:     now.Format(time.RFC3339),
			}},
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := records.Save(ctx, tx, rec); err != nil {
			return err
		}
		fmt.Printf("seeded: completed premium purchase for %s (record=%s)\n", *demoUser, rec.ID)
		return nil
	})
	if err != nil {
		log.Fatalf("seed: %v", err)
	}
	fmt.Println("Seeding complete.")
}
