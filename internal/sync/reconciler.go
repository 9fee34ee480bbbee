package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/seniorcare/opscentre/internal/remote"
	"github.com/seniorcare/opscentre/internal/schema"
)

var errNotConfigured = errors.New("sync not configured")

// LocalStore is the part of the local store a run needs.
type LocalStore interface {
	Settings(ctx context.Context) (schema.SyncSettings, error)
	LastUpdated(ctx context.Context) (time.Time, error)
	Snapshot(ctx context.Context) (*schema.Snapshot, error)
	ApplyRemote(ctx context.Context, snap *schema.Snapshot, syncedAt time.Time) (bool, error)
	RecordPush(ctx context.Context, remoteID string, syncedAt time.Time) error
}

// Config configures a Reconciler.
type Config struct {
	Store LocalStore
	// Remotes maps each provider to its client.
	Remotes map[schema.Provider]remote.Store
	// Credential is used when the settings carry none.
	Credential string
	// LockDir enables cross-process exclusion through lock files.
	LockDir string
	Logger  *slog.Logger
	Now     func() time.Time
}

// Request is one run's parameters.
type Request struct {
	Mode Mode
	// Force makes a push write even when both sides carry the same
	// lastUpdated.
	Force bool
}

// Reconciler runs sync passes between a LocalStore and a remote.Store.
type Reconciler struct {
	store      LocalStore
	remotes    map[schema.Provider]remote.Store
	credential string
	guard      *guard
	logger     *slog.Logger
	now        func() time.Time
}

// New returns a Reconciler. Store must be set.
func New(cfg Config) *Reconciler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Reconciler{
		store:      cfg.Store,
		remotes:    cfg.Remotes,
		credential: cfg.Credential,
		guard:      newGuard(cfg.LockDir),
		logger:     cfg.Logger.With("component", "sync"),
		now:        cfg.Now,
	}
}

// Reconcile runs one pass in the given mode.
func (r *Reconciler) Reconcile(ctx context.Context, mode Mode) Result {
	return r.Run(ctx, Request{Mode: mode})
}

// Run executes one pass of the state machine and reports what happened.
func (r *Reconciler) Run(ctx context.Context, req Request) Result {
	p := &pass{
		r:   r,
		req: req,
		res: Result{Mode: req.Mode, Started: r.now()},
	}

	state := StateIdle
	for {
		p.res.States = append(p.res.States, state)
		if state.Terminal() {
			break
		}
		state = p.step(ctx, state)
	}
	if p.release != nil {
		p.release()
	}

	p.res.Duration = r.now().Sub(p.res.Started)
	if p.res.LastUpdated.IsZero() {
		if ts, err := r.store.LastUpdated(ctx); err == nil {
			p.res.LastUpdated = ts
		}
	}
	r.report(p.res)
	return p.res
}

func (r *Reconciler) report(res Result) {
	attrs := []any{
		"mode", res.Mode.String(),
		"outcome", string(res.Outcome),
		"duration", res.Duration,
	}
	if res.Reason != ReasonNone {
		attrs = append(attrs, "reason", string(res.Reason))
	}
	if res.RemoteID != "" {
		attrs = append(attrs, "remote_id", res.RemoteID)
	}
	switch {
	case res.Outcome == OutcomeFailed:
		r.logger.Warn("sync failed", append(attrs, "error", res.Err)...)
	case res.Changed():
		r.logger.Info("sync complete", attrs...)
	default:
		r.logger.Debug("sync complete", attrs...)
	}
}

// pass holds the data threaded through one run's states.
type pass struct {
	r       *Reconciler
	req     Request
	res     Result
	release func()

	client remote.Store
	target remote.Target
	id     string // sanitized id
	valid  bool   // id addresses an existing remote object
	snap   *schema.Snapshot
}

func (p *pass) step(ctx context.Context, s State) State {
	switch s {
	case StateIdle:
		return p.idle(ctx)
	case StateFetching:
		return p.fetch(ctx)
	case StateComparing:
		return p.compare(ctx)
	case StatePulling:
		return p.pull(ctx)
	case StatePushing:
		return p.push(ctx)
	}
	return p.fail(ReasonOther, fmt.Errorf("no transition from state %s", s))
}

// idle checks preconditions and takes the in-flight guard.
func (p *pass) idle(ctx context.Context) State {
	settings, err := p.r.store.Settings(ctx)
	if err != nil {
		return p.fail(ReasonOther, fmt.Errorf("failed to load sync settings: %w", err))
	}
	if !settings.Enabled {
		return p.unconfigured("sync is disabled")
	}

	provider := settings.Provider
	if provider == "" {
		provider = schema.ProviderGitHub
	}
	client, ok := p.r.remotes[provider]
	if !ok || client == nil {
		return p.unconfigured(fmt.Sprintf("no remote for provider %q", provider))
	}
	p.client = client

	var key string
	switch provider {
	case schema.ProviderScript:
		if settings.Endpoint == "" {
			return p.unconfigured("no endpoint configured")
		}
		p.target = remote.Target{Endpoint: settings.Endpoint}
		p.valid = true
		key = string(provider) + ":" + settings.Endpoint
	default:
		credential := settings.Credential
		if credential == "" {
			credential = p.r.credential
		}
		if credential == "" {
			return p.unconfigured("no token configured")
		}
		p.id = remote.Sanitize(settings.RemoteID)
		p.valid = remote.IsCanonical(p.id)
		p.target = remote.Target{Credential: credential, ID: p.id}
		key = string(provider) + ":" + p.id

		if !p.valid {
			if settings.RemoteID != "" && remote.LooksLikeCredential(settings.RemoteID) {
				p.r.logger.Warn("gist id field holds an access token, not a gist id")
			}
			switch p.req.Mode {
			case ModeAutoPull:
				// Polling before first setup.
				p.res.Outcome = OutcomeNoop
				return StateDone
			case ModePull:
				if p.id == "" && settings.RemoteID == "" {
					return p.fail(ReasonInvalidIdentifier, fmt.Errorf("%w: no gist id configured", remote.ErrInvalidID))
				}
				return p.fail(ReasonInvalidIdentifier, fmt.Errorf("%w: %q", remote.ErrInvalidID, settings.RemoteID))
			}
		}
	}

	release, ok, err := p.r.guard.tryAcquire(key)
	if err != nil {
		return p.fail(ReasonOther, err)
	}
	if !ok {
		p.res.Outcome = OutcomeSkipped
		p.res.Reason = ReasonBusy
		p.res.Message = describe(ReasonBusy, nil)
		return StateDone
	}
	p.release = release

	if p.valid {
		return StateFetching
	}
	return StateComparing
}

func (p *pass) fetch(ctx context.Context) State {
	snap, err := p.client.Fetch(ctx, p.target)
	if err != nil {
		reason := Classify(err)
		if p.req.Mode == ModePush && ctx.Err() == nil {
			// A push overwrites whatever is there. Write reports the
			// failure if the remote really is unusable.
			p.r.logger.Info("remote unavailable before push", "reason", string(reason), "error", err)
			return StateComparing
		}
		return p.fail(reason, err)
	}
	p.snap = snap
	return StateComparing
}

func (p *pass) compare(ctx context.Context) State {
	local, err := p.r.store.LastUpdated(ctx)
	if err != nil {
		return p.fail(ReasonOther, fmt.Errorf("failed to read local timestamp: %w", err))
	}

	if p.snap.NewerThan(local) {
		return StatePulling
	}
	if p.req.Mode != ModePush {
		p.res.Outcome = OutcomeNoop
		p.res.Message = "already up to date"
		return StateDone
	}
	// A remote without lastUpdated is not a tie: the push overwrites it.
	if p.snap.SameAge(local) && !p.req.Force {
		p.res.Outcome = OutcomeNoop
		p.res.Message = "remote already has the latest changes"
		return StateDone
	}
	return StatePushing
}

func (p *pass) pull(ctx context.Context) State {
	applied, err := p.r.store.ApplyRemote(ctx, p.snap, p.r.now())
	if err != nil {
		return p.fail(ReasonOther, fmt.Errorf("failed to apply remote snapshot: %w", err))
	}
	if !applied {
		p.res.Outcome = OutcomeNoop
		p.res.Message = "local data changed during sync"
		return StateDone
	}
	p.res.Outcome = OutcomePulled
	p.res.RemoteID = p.id
	p.res.LastUpdated = schema.NormalizeTime(p.snap.LastUpdated)
	return StateDone
}

func (p *pass) push(ctx context.Context) State {
	snap, err := p.r.store.Snapshot(ctx)
	if err != nil {
		return p.fail(ReasonOther, fmt.Errorf("failed to build snapshot: %w", err))
	}

	if !p.valid {
		p.r.logger.Info("no usable gist id, creating a new gist")
	}
	id, err := p.client.Write(ctx, p.target, snap)
	if err != nil {
		return p.fail(Classify(err), err)
	}

	if err := p.r.store.RecordPush(ctx, id, p.r.now()); err != nil {
		return p.fail(ReasonOther, fmt.Errorf("pushed to %s but failed to save settings: %w", id, err))
	}
	if id == "" {
		id = p.id
	}
	p.res.Outcome = OutcomePushed
	p.res.RemoteID = id
	p.res.LastUpdated = snap.LastUpdated
	return StateDone
}

// unconfigured ends a run whose preconditions are not met: silently for
// background polls, as a ConfigurationError for manual runs.
func (p *pass) unconfigured(msg string) State {
	if !p.req.Mode.Manual() {
		p.res.Outcome = OutcomeNoop
		p.res.Reason = ReasonConfiguration
		p.res.Message = msg
		return StateDone
	}
	p.fail(ReasonConfiguration, fmt.Errorf("%w: %s", errNotConfigured, msg))
	p.res.Message = describe(ReasonConfiguration, nil) + " (" + msg + ")"
	return StateFailed
}

func (p *pass) fail(reason Reason, err error) State {
	if reason == ReasonOther {
		// Store errors caused by cancellation are reported like timeouts.
		if c := Classify(err); c != ReasonNone {
			reason = c
		}
	}
	p.res.Outcome = OutcomeFailed
	p.res.Reason = reason
	p.res.Err = err
	p.res.Message = describe(reason, err)
	return StateFailed
}
