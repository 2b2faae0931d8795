package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"signflow/internal/attachments"
	"signflow/internal/config"
	"signflow/internal/domain"
	"signflow/internal/engine/conditions"
	"signflow/internal/events"
	"signflow/internal/formula"
	"signflow/internal/i18n"
	"signflow/internal/phonelength"
	"signflow/internal/repo"
)

// Job names dispatched by the engine.
const (
	JobProcessSubmitterCompletion = "process_submitter_completion"
	JobSendCompletedWebhook       = "send_completed_webhook"
)

// ExpressionEvaluator computes a numeric formula over field values.
type ExpressionEvaluator interface {
	Evaluate(formula string, values map[string]any) (float64, error)
}

// PhoneRules is the dial-code length table.
type PhoneRules interface {
	LookupRules(dialCode string) (phonelength.Rule, bool)
	ExtractDialCode(number string) (string, bool)
	ValidLength(number, dialCode string) bool
}

// StampGenerator builds a stamp image attachment for a party. The attachment is only
// stored, through SaveStamp, by the transaction that completes the party.
type StampGenerator interface {
	NewStamp(sub domain.Submitter, withLogo bool) domain.Attachment
	SaveStamp(ctx context.Context, q repo.DBTX, a domain.Attachment) error
}

// Dispatcher enqueues background jobs. Enqueue is fire-and-forget from the engine's view.
type Dispatcher interface {
	Enqueue(ctx context.Context, name string, payload map[string]any) error
}

// SearchIndexer schedules a record for reindexing.
type SearchIndexer interface {
	EnqueueReindex(ctx context.Context, recordType, recordID string) error
}

type Engine struct {
	DB       *sql.DB
	Repo     repo.Repo
	Events   events.Writer
	Config   *config.Config
	Now      func() time.Time
	Logger   *zap.Logger
	Formulas ExpressionEvaluator
	Phones   PhoneRules
	Stamps   StampGenerator
	Jobs     Dispatcher
	Search   SearchIndexer
}

func New(db *sql.DB, cfg *config.Config) (Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	fe, err := formula.New()
	if err != nil {
		return Engine{}, err
	}
	r := repo.Repo{DB: db}
	return Engine{
		DB:       db,
		Repo:     r,
		Events:   events.Writer{},
		Config:   cfg,
		Now:      time.Now,
		Logger:   zap.NewNop(),
		Formulas: fe,
		Phones:   phonelength.New(),
		Stamps:   attachments.StampGenerator{Repo: r},
	}, nil
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) nowString() string {
	return e.now().UTC().Format(time.RFC3339)
}

func (e Engine) logger() *zap.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return zap.NewNop()
}

func (e Engine) events() events.Writer {
	w := e.Events
	if w.Now == nil {
		w.Now = e.now
	}
	return w
}

// Settings are the account-level toggles the core reads. They are built per call and
// passed down explicitly.
type Settings struct {
	AccountID            string
	Location             *time.Location
	Locale               string
	MaxFormulaDepth      int
	MaxFormulaRounds     int
	GuardianAgeThreshold int
	PhoneMinDigits       int
	PhoneMaxDigits       int
}

// DefaultSettings mirrors the built-in configuration.
func DefaultSettings() Settings {
	return settingsFromConfig(config.Default())
}

func settingsFromConfig(cfg *config.Config) Settings {
	s := Settings{
		AccountID:            cfg.Account.ID,
		Location:             time.UTC,
		Locale:               cfg.Account.Locale,
		MaxFormulaDepth:      cfg.Formulas.MaxDepth,
		MaxFormulaRounds:     cfg.Formulas.MaxRounds,
		GuardianAgeThreshold: cfg.Invites.GuardianAgeThreshold,
		PhoneMinDigits:       cfg.Phone.MinDigits,
		PhoneMaxDigits:       cfg.Phone.MaxDigits,
	}
	if loc, err := time.LoadLocation(cfg.Account.Timezone); err == nil {
		s.Location = loc
	}
	return s
}

// Settings loads the toggles for an account: config file defaults overlaid by the
// account row.
func (e Engine) Settings(ctx context.Context, accountID string) (Settings, error) {
	cfg := e.Config
	if cfg == nil {
		cfg = config.Default()
	}
	s := settingsFromConfig(cfg)
	s.AccountID = accountID
	acc, err := e.Repo.GetAccount(ctx, accountID)
	if errors.Is(err, repo.ErrNotFound) {
		return s, nil
	}
	if err != nil {
		return s, fmt.Errorf("load account: %w", err)
	}
	if strings.TrimSpace(acc.Timezone) != "" {
		loc, err := time.LoadLocation(acc.Timezone)
		if err != nil {
			e.logger().Warn("unknown account timezone", zap.String("account_id", accountID), zap.String("timezone", acc.Timezone))
		} else {
			s.Location = loc
		}
	}
	if strings.TrimSpace(acc.Locale) != "" {
		s.Locale = acc.Locale
	}
	return s, nil
}

func (s Settings) location() *time.Location {
	if s.Location == nil {
		return time.UTC
	}
	return s.Location
}

func (s Settings) translator() i18n.Translator {
	return i18n.New(s.Locale)
}

func (e Engine) evaluator(s Settings) conditions.Evaluator {
	return conditions.Evaluator{Now: e.today(s), OptionLabel: s.translator().OptionLabel}
}

// today returns the clock as seen in the account timezone, so ages roll over at the
// account's midnight.
func (e Engine) today(s Settings) func() time.Time {
	return func() time.Time { return e.now().In(s.location()) }
}

// RequestContext is the request metadata stamped on completion and tracking events.
type RequestContext struct {
	IP        string
	UserAgent string
	Timezone  string
}

func (rc RequestContext) meta() events.RequestMeta {
	return events.RequestMeta{IP: rc.IP, UserAgent: rc.UserAgent}
}

// load fetches a submitter and its submission outside any transaction.
func (e Engine) load(ctx context.Context, submitterID string) (domain.Submitter, domain.Submission, error) {
	sub, err := e.Repo.GetSubmitter(ctx, e.DB, submitterID)
	if err != nil {
		return domain.Submitter{}, domain.Submission{}, fmt.Errorf("submitter %s: %w", submitterID, err)
	}
	submission, err := e.Repo.GetSubmission(ctx, e.DB, sub.SubmissionID)
	if err != nil {
		return domain.Submitter{}, domain.Submission{}, fmt.Errorf("submission %s: %w", sub.SubmissionID, err)
	}
	return sub, submission, nil
}

// expired reports whether the submission passed its expiry.
func (e Engine) expired(s domain.Submission) bool {
	if s.ExpiresAt == nil {
		return false
	}
	ts, err := time.Parse(time.RFC3339, *s.ExpiresAt)
	if err != nil {
		return false
	}
	return !e.now().Before(ts)
}

// GetSubmitter returns a submitter by id.
func (e Engine) GetSubmitter(ctx context.Context, id string) (domain.Submitter, error) {
	return e.Repo.GetSubmitter(ctx, e.DB, id)
}

// GetSubmission returns a submission with its parties.
func (e Engine) GetSubmission(ctx context.Context, id string) (domain.Submission, error) {
	return e.Repo.GetSubmission(ctx, e.DB, id)
}

func (e Engine) enqueue(ctx context.Context, name string, payload map[string]any) {
	if e.Jobs == nil {
		e.logger().Debug("no job dispatcher configured", zap.String("job", name))
		return
	}
	if err := e.Jobs.Enqueue(ctx, name, payload); err != nil {
		e.logger().Warn("job dispatch failed", zap.String("job", name), zap.Any("payload", payload), zap.Error(err))
	}
}

func (e Engine) reindex(ctx context.Context, recordType, recordID string) {
	if e.Search == nil {
		return
	}
	if err := e.Search.EnqueueReindex(ctx, recordType, recordID); err != nil {
		e.logger().Warn("search reindex failed", zap.String("record_type", recordType), zap.String("record_id", recordID), zap.Error(err))
	}
}
