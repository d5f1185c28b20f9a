package tenure

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/tenure/activity"
	"github.com/xraph/tenure/audit"
	"github.com/xraph/tenure/directory"
	"github.com/xraph/tenure/grant"
	"github.com/xraph/tenure/plugin"
	"github.com/xraph/tenure/store"
)

// Engine is the central authorization engine. It derives effective tiers
// from the grant ledger, runs the grant and revoke workflows, and records
// every privileged action in the audit trail.
type Engine struct {
	store     store.Store
	directory directory.Directory
	cache     Cache
	recorder  *audit.Recorder
	plugins   *plugin.Registry
	pending   []plugin.Plugin
	logger    *slog.Logger
	config    Config
	now       func() time.Time
}

// NewEngine creates a new Tenure engine with the given options.
func NewEngine(opts ...Option) (*Engine, error) {
	e := &Engine{
		logger: slog.Default(),
		config: DefaultConfig(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.store == nil {
		return nil, errors.New("tenure: store is required")
	}
	if e.directory == nil {
		return nil, errors.New("tenure: directory is required")
	}

	e.plugins = plugin.NewRegistry(e.logger)
	for _, p := range e.pending {
		e.plugins.Register(p)
	}
	e.pending = nil

	recOpts := []audit.Option{
		audit.WithLogger(e.logger),
		audit.WithRetries(e.config.AuditAppendRetries),
		audit.WithClock(e.now),
	}
	if e.config.AuditKey != nil {
		recOpts = append(recOpts, audit.WithKey(e.config.AuditKey))
	}
	rec, err := audit.NewRecorder(e.store, recOpts...)
	if err != nil {
		return nil, fmt.Errorf("tenure: audit recorder: %w", err)
	}
	e.recorder = rec
	return e, nil
}

// Store returns the underlying composite store.
func (e *Engine) Store() store.Store { return e.store }

// Directory returns the identity directory.
func (e *Engine) Directory() directory.Directory { return e.directory }

// Plugins returns the plugin registry.
func (e *Engine) Plugins() *plugin.Registry { return e.plugins }

// Logger returns the engine's logger.
func (e *Engine) Logger() *slog.Logger { return e.logger }

// Recorder returns the audit recorder.
func (e *Engine) Recorder() *audit.Recorder { return e.recorder }

// Start performs any startup initialization.
func (e *Engine) Start(_ context.Context) error { return nil }

// Stop notifies plugins of shutdown.
func (e *Engine) Stop(ctx context.Context) error {
	e.plugins.EmitShutdown(ctx)
	return nil
}

// ──────────────────────────────────────────────────
// Authorization
// ──────────────────────────────────────────────────

// EffectiveTier returns the highest-privilege tier currently in force for
// the subject, or TierNone. This is the hot path and may be served from
// the cache.
func (e *Engine) EffectiveTier(ctx context.Context, subjectID string) (Tier, error) {
	tier, _, err := e.effectiveTier(ctx, subjectID)
	return tier, err
}

// effectiveTier also reports whether the decision came from the cache.
func (e *Engine) effectiveTier(ctx context.Context, subjectID string) (Tier, bool, error) {
	now := e.now()
	if e.cachingEnabled() {
		if d, ok := e.cache.Get(ctx, subjectID); ok && now.Before(d.ValidUntil) {
			return d.Tier, true, nil
		}
	}

	tier, earliest, err := e.resolveTier(ctx, subjectID, now)
	if err != nil {
		return TierNone, false, err
	}

	if e.cachingEnabled() {
		until := now.Add(e.config.CacheTTL)
		if earliest != nil && earliest.Before(until) {
			until = *earliest
		}
		e.cache.Set(ctx, subjectID, TierDecision{Tier: tier, ValidUntil: until})
	}
	return tier, false, nil
}

// EffectiveTierAt evaluates the subject's grants at an arbitrary instant.
// It always reads the ledger.
func (e *Engine) EffectiveTierAt(ctx context.Context, subjectID string, at time.Time) (Tier, error) {
	tier, _, err := e.resolveTier(ctx, subjectID, at)
	return tier, err
}

// Authorize reports whether the subject's effective tier meets required.
// SuperAdmin satisfies every requirement; TierNone satisfies none.
func (e *Engine) Authorize(ctx context.Context, subjectID string, required Tier) (bool, error) {
	if !required.Valid() {
		return false, fmt.Errorf("%w: required tier %d", ErrInvalidTier, int(required))
	}
	tier, cached, err := e.effectiveTier(ctx, subjectID)
	if err != nil {
		return false, err
	}
	allowed := tier.Satisfies(required)
	e.plugins.EmitAfterAuthorize(ctx, &plugin.AuthorizeEvent{
		SubjectID: subjectID,
		Required:  required,
		Effective: tier,
		Allowed:   allowed,
		At:        e.now(),
		Cached:    cached,
	})
	return allowed, nil
}

// Enforce returns ErrForbidden if the subject does not meet required.
func (e *Engine) Enforce(ctx context.Context, subjectID string, required Tier) error {
	ok, err := e.Authorize(ctx, subjectID, required)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %q requires %s", ErrForbidden, subjectID, required)
	}
	return nil
}

func (e *Engine) resolveTier(ctx context.Context, subjectID string, at time.Time) (Tier, *time.Time, error) {
	grants, err := e.store.ListGrantsForSubject(ctx, subjectID)
	if err != nil {
		return TierNone, nil, e.storeError(err)
	}
	tier, earliest := grant.EffectiveTier(grants, at)
	return tier, earliest, nil
}

func (e *Engine) cachingEnabled() bool {
	return e.cache != nil && e.config.CacheTTL > 0
}

func (e *Engine) invalidate(ctx context.Context, subjectID string) {
	if e.cache != nil {
		e.cache.InvalidateSubject(ctx, subjectID)
	}
}

// storeError maps backend sentinels onto the engine's error taxonomy.
// Anything unrecognised is a persistence failure.
func (e *Engine) storeError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, grant.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrGrantNotFound, err)
	case errors.Is(err, grant.ErrDuplicateActive):
		return fmt.Errorf("%w: %w", ErrDuplicateActiveGrant, err)
	case errors.Is(err, grant.ErrAlreadyRevoked):
		return fmt.Errorf("%w: %w", ErrAlreadyRevoked, err)
	case errors.Is(err, activity.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
}
