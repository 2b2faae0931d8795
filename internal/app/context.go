package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"signflow/internal/config"
	"signflow/internal/db"
	"signflow/internal/domain"
	"signflow/internal/engine"
	"signflow/internal/jobs"
	"signflow/internal/migrate"
	"signflow/internal/repo"
)

// ResolveAccount picks the active account and makes sure its row and form configs
// exist, seeding them from cfg. An override wins, then a single-account database,
// then the account named in the config file.
func ResolveAccount(ctx context.Context, r repo.Repo, cfg *config.Config, accountOverride string) (string, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	accountID := accountOverride
	if accountID == "" {
		a, err := r.SingleAccount(ctx)
		switch {
		case err == nil:
			accountID = a.ID
		case errors.Is(err, repo.ErrNotFound):
			accountID = cfg.Account.ID
		default:
			return "", err
		}
	}
	if _, err := r.GetAccount(ctx, accountID); err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			return "", err
		}
		if err := createAccount(ctx, r, accountID, cfg); err != nil {
			return "", err
		}
	}
	return accountID, nil
}

// createAccount inserts the account row with the configured form defaults.
func createAccount(ctx context.Context, r repo.Repo, accountID string, cfg *config.Config) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	a := domain.Account{
		ID:        accountID,
		Name:      cfg.Account.Name,
		Timezone:  cfg.Account.Timezone,
		Locale:    cfg.Account.Locale,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if err := r.UpsertAccount(ctx, tx, a); err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	keys := make([]string, 0, len(cfg.Form))
	for k := range cfg.Form {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := r.InsertAccountConfigIfMissing(ctx, tx, accountID, k, cfg.Form[k]); err != nil {
			return fmt.Errorf("seed account config %s: %w", k, err)
		}
	}
	return tx.Commit()
}

type Options struct {
	Workspace string
	Account   string
	Logger    *zap.Logger
}

// Runtime is an opened workspace: database, config and a wired engine.
type Runtime struct {
	DB        *sql.DB
	Config    *config.Config
	AccountID string
	Engine    engine.Engine
	Logger    *zap.Logger
	Source    jobs.Source

	redis *jobs.RedisQueue
}

// Open opens and migrates the workspace database and wires the engine to the
// configured job backend.
func Open(ctx context.Context, opts Options) (*Runtime, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg, err := config.Load(opts.Workspace)
	if err != nil {
		return nil, err
	}
	conn, err := db.Open(db.Config{Workspace: opts.Workspace})
	if err != nil {
		return nil, err
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, err
	}
	r := repo.Repo{DB: conn}
	accountID, err := ResolveAccount(ctx, r, cfg, opts.Account)
	if err != nil {
		conn.Close()
		return nil, err
	}
	cfg.Account.ID = accountID

	e, err := engine.New(conn, cfg)
	if err != nil {
		conn.Close()
		return nil, err
	}
	e.Logger = logger

	rt := &Runtime{DB: conn, Config: cfg, AccountID: accountID, Logger: logger}
	switch cfg.Jobs.Backend {
	case "redis":
		q := jobs.NewRedisQueue(cfg.Jobs.RedisAddr, "", cfg.Jobs.RedisDB, cfg.Jobs.QueuePrefix, cfg.Jobs.MaxAttempts)
		if err := q.Ping(ctx); err != nil {
			q.Close()
			conn.Close()
			return nil, fmt.Errorf("redis job queue: %w", err)
		}
		rt.redis = q
		rt.Source = q
		e.Jobs = q
		e.Search = q
	default:
		ob := jobs.Outbox{Repo: r, MaxAttempts: cfg.Jobs.MaxAttempts}
		rt.Source = ob
		e.Jobs = ob
		e.Search = ob
	}
	rt.Engine = e
	return rt, nil
}

// Worker builds a job worker with the engine's handlers plus extra ones.
func (rt *Runtime) Worker(extra map[string]jobs.Handler) *jobs.Worker {
	w := jobs.NewWorker(rt.Source, rt.Config.Jobs.Rate, rt.Config.Jobs.Burst, rt.Logger)
	w.Handle(engine.JobProcessSubmitterCompletion, rt.Engine.ProcessSubmitterCompletion)
	w.Handle(jobs.JobSearchReindex, jobs.SearchReindexer{Repo: rt.Engine.Repo}.Handle)
	for name, h := range extra {
		w.Handle(name, h)
	}
	return w
}

func (rt *Runtime) Close() error {
	var errs []error
	if rt.redis != nil {
		errs = append(errs, rt.redis.Close())
	}
	errs = append(errs, rt.DB.Close())
	return errors.Join(errs...)
}
