// Command seed loads a YAML fixture describing a project, its quota
// scheme, and cells, publishes the scheme, and materialises each cell's
// sample pool against the bank gateway. It is the dialer core's
// development/demo bootstrap, not a production migration tool.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"gopkg.in/yaml.v3"

	"github.com/surveypulse/dialer-core/internal/bank"
	"github.com/surveypulse/dialer-core/internal/clockid"
	"github.com/surveypulse/dialer-core/internal/config"
	"github.com/surveypulse/dialer-core/internal/domain"
	"github.com/surveypulse/dialer-core/internal/pool"
	"github.com/surveypulse/dialer-core/internal/scheme"
	"github.com/surveypulse/dialer-core/internal/store/postgres"
)

// fixture is the on-disk YAML shape accepted by this command.
type fixture struct {
	Project struct {
		ID   string `yaml:"id"`
		Code string `yaml:"code"`
		Name string `yaml:"name"`
	} `yaml:"project"`
	Scheme struct {
		Name       string             `yaml:"name"`
		CreatedBy  string             `yaml:"created_by"`
		Policy     string             `yaml:"overflow_policy"`
		Priority   int                `yaml:"priority"`
		IsDefault  bool               `yaml:"is_default"`
		Dimensions []fixtureDimension `yaml:"dimensions"`
		Cells      []fixtureCell      `yaml:"cells"`
	} `yaml:"scheme"`
	PoolMultiplier int `yaml:"pool_multiplier"`
}

type fixtureDimension struct {
	Key    string   `yaml:"key"`
	Values []string `yaml:"values"`
}

type fixtureCell struct {
	Label    string         `yaml:"label"`
	Selector map[string]any `yaml:"selector"`
	Target   uint           `yaml:"target"`
	SoftCap  *uint          `yaml:"soft_cap"`
	Weight   float64        `yaml:"weight"`
}

func main() {
	path := flag.String("fixture", "", "path to the YAML seed fixture")
	initSchema := flag.Bool("init-schema", false, "create the dialer core's tables if they don't exist")
	flag.Parse()

	if *path == "" {
		slog.Error("-fixture is required")
		os.Exit(1)
	}

	raw, err := os.ReadFile(*path)
	if err != nil {
		slog.Error("failed to read fixture", slog.Any("error", err))
		os.Exit(1)
	}
	var fx fixture
	if err := yaml.Unmarshal(raw, &fx); err != nil {
		slog.Error("failed to parse fixture", slog.Any("error", err))
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	dbPool, err := postgres.NewPool(ctx, cfg.DBURL)
	if err != nil {
		slog.Error("db connect failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbPool.Close()

	if *initSchema {
		if _, err := dbPool.Exec(ctx, postgres.Schema); err != nil {
			slog.Error("failed to apply schema", slog.Any("error", err))
			os.Exit(1)
		}
		slog.Info("schema applied")
	}

	bankDSN := cfg.BankDBURL
	if bankDSN == "" {
		bankDSN = cfg.DBURL
	}
	bankPool, err := pgxpool.New(ctx, bankDSN)
	if err != nil {
		slog.Error("bank db connect failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer bankPool.Close()

	if err := run(ctx, dbPool, bankPool, fx); err != nil {
		slog.Error("seed failed", slog.Any("error", err))
		os.Exit(1)
	}
	slog.Info("seed completed", slog.String("project_id", fx.Project.ID))
}

func run(ctx context.Context, dbPool, bankPool *pgxpool.Pool, fx fixture) error {
	if _, err := dbPool.Exec(ctx,
		`INSERT INTO projects (id, code, name, status) VALUES ($1, $2, $3, 'active')
		 ON CONFLICT (id) DO UPDATE SET code = EXCLUDED.code, name = EXCLUDED.name`,
		fx.Project.ID, fx.Project.Code, fx.Project.Name,
	); err != nil {
		return fmt.Errorf("op=seed.upsert_project: %w", err)
	}

	store := postgres.NewStore(dbPool)
	clock := clockid.SystemClock{}
	ids := clockid.NewULIDGenerator(clock)
	schemeService := scheme.NewService(store, clock, ids)
	bankGateway := bank.NewPgxGateway(bankPool)
	poolBuilder := pool.NewBuilder(store, bankGateway, clock, ids)

	dims := make([]domain.Dimension, 0, len(fx.Scheme.Dimensions))
	for _, d := range fx.Scheme.Dimensions {
		dims = append(dims, domain.Dimension{Key: d.Key, Values: d.Values})
	}
	policy := domain.OverflowPolicy(fx.Scheme.Policy)
	if policy == "" {
		policy = domain.PolicySoft
	}

	sch, err := schemeService.CreateDraft(ctx, fx.Project.ID, fx.Scheme.Name, fx.Scheme.CreatedBy, dims, policy, fx.Scheme.Priority)
	if err != nil {
		return fmt.Errorf("op=seed.create_draft: %w", err)
	}
	slog.Info("scheme created", slog.String("scheme_id", sch.ID), slog.Int("version", sch.Version))

	defs := make([]scheme.CellDefinition, 0, len(fx.Scheme.Cells))
	for _, c := range fx.Scheme.Cells {
		defs = append(defs, scheme.CellDefinition{
			Selector: domain.Selector(c.Selector),
			Label:    c.Label,
			Target:   c.Target,
			SoftCap:  c.SoftCap,
			Weight:   c.Weight,
		})
	}
	cells, err := schemeService.BulkUpsertCells(ctx, sch.ID, defs)
	if err != nil {
		return fmt.Errorf("op=seed.bulk_upsert_cells: %w", err)
	}
	slog.Info("cells upserted", slog.Int("count", len(cells)))

	isDefault := fx.Scheme.IsDefault
	if _, err := schemeService.Publish(ctx, sch.ID, &isDefault); err != nil {
		return fmt.Errorf("op=seed.publish: %w", err)
	}
	slog.Info("scheme published")

	for _, c := range cells {
		attempted, err := poolBuilder.BuildPool(ctx, c.ID, 0, fx.PoolMultiplier)
		if err != nil {
			return fmt.Errorf("op=seed.build_pool cell=%s: %w", c.ID, err)
		}
		slog.Info("pool built", slog.String("cell_id", c.ID), slog.Int("attempted", attempted))
	}
	return nil
}
