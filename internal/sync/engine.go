package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	stdsync "sync"
	"time"

	"github.com/tonimelisma/dashsync/internal/document"
	"github.com/tonimelisma/dashsync/internal/localstore"
	"github.com/tonimelisma/dashsync/internal/remote"
)

// Engine defaults.
const (
	DefaultDebounce           = 2 * time.Second
	DefaultRetryDelay         = time.Second
	DefaultMaxRetries         = 3
	DefaultIntervalMultiUser  = 15 * time.Second
	DefaultIntervalSingleUser = 60 * time.Second
	DefaultMinSyncInterval    = 10 * time.Second
	DefaultMaxPayloadBytes    = 1_000_000
	DefaultMaxQueue           = 5
	DefaultLogTrimBytes       = 800_000
)

// EngineConfig holds the options for NewEngine. Zero durations and sizes
// fall back to the Default* constants.
type EngineConfig struct {
	Local       LocalStore      // satisfied by *localstore.Store
	Remote      RemoteStore     // satisfied by *remote.Client
	Pinger      Pinger          // optional: checks connectivity while offline
	Presence    PresenceSource  // optional: nil means always single-user
	Guard       EditGuard       // optional: nil means never editing
	Activity    ActivitySource  // optional: nil means always active
	Checkpoints CheckpointStore // optional: persists last backup time
	Logger      *slog.Logger

	UserID string
	Source string // backupSource tag sent with every backup

	Strategy           Strategy
	Debounce           time.Duration
	RetryDelay         time.Duration
	MaxRetries         int
	IntervalMultiUser  time.Duration
	IntervalSingleUser time.Duration
	MinSyncInterval    time.Duration
	MaxPayloadBytes    int
	MaxQueue           int
	LogTrimBytes       int
}

// Engine keeps the local snapshot and the remote backup in step. Local
// writes always succeed first; outbound delivery runs on a single ordered
// lane so the remote never sees an older snapshot after a newer one.
type Engine struct {
	local       LocalStore
	remote      RemoteStore
	pinger      Pinger
	presence    PresenceSource
	guard       EditGuard
	activity    ActivitySource
	checkpoints CheckpointStore
	logger      *slog.Logger

	userID string
	source string

	strategy           Strategy
	debounceDelay      time.Duration
	retryDelay         time.Duration
	maxRetries         int
	intervalMultiUser  time.Duration
	intervalSingleUser time.Duration
	minSyncInterval    time.Duration
	maxPayload         int
	maxQueue           int
	logTrimBytes       int

	nowFunc   func() time.Time
	sleepFunc func(ctx context.Context, d time.Duration) error
	afterFunc func(d time.Duration, f func()) timer

	// ctx scopes outbound deliveries. Cancelled by Close once the lane drains.
	ctx    context.Context
	cancel context.CancelFunc
	wg     stdsync.WaitGroup

	mu          stdsync.Mutex
	doc         *document.Document
	upState     State // owned by the outbound lane
	downState   State // owned by reconcile
	retry       int
	online      bool
	lastBackup  *time.Time
	backupErr   string
	queue       []PendingOperation
	outbox      []*delivery
	sending     bool
	debounce    timer
	debounceSeq uint64
	restoreGen  uint64
	lastRestore time.Time
	closed      bool
}

// NewEngine creates an Engine. Call Init before Update.
func NewEngine(cfg *EngineConfig) (*Engine, error) {
	if cfg.Local == nil {
		return nil, errors.New("sync: creating engine: local store is required")
	}

	if cfg.Remote == nil {
		return nil, errors.New("sync: creating engine: remote store is required")
	}

	if cfg.UserID == "" {
		return nil, errors.New("sync: creating engine: user ID is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Engine{
		local:              cfg.Local,
		remote:             cfg.Remote,
		pinger:             cfg.Pinger,
		presence:           cfg.Presence,
		guard:              cfg.Guard,
		activity:           cfg.Activity,
		checkpoints:        cfg.Checkpoints,
		logger:             logger,
		userID:             cfg.UserID,
		source:             cfg.Source,
		strategy:           cfg.Strategy,
		debounceDelay:      orDuration(cfg.Debounce, DefaultDebounce),
		retryDelay:         orDuration(cfg.RetryDelay, DefaultRetryDelay),
		maxRetries:         orInt(cfg.MaxRetries, DefaultMaxRetries),
		intervalMultiUser:  orDuration(cfg.IntervalMultiUser, DefaultIntervalMultiUser),
		intervalSingleUser: orDuration(cfg.IntervalSingleUser, DefaultIntervalSingleUser),
		minSyncInterval:    orDuration(cfg.MinSyncInterval, DefaultMinSyncInterval),
		maxPayload:         orInt(cfg.MaxPayloadBytes, DefaultMaxPayloadBytes),
		maxQueue:           orInt(cfg.MaxQueue, DefaultMaxQueue),
		logTrimBytes:       orInt(cfg.LogTrimBytes, DefaultLogTrimBytes),
		nowFunc:            time.Now,
		sleepFunc:          timeSleep,
		afterFunc:          realAfterFunc,
		ctx:                ctx,
		cancel:             cancel,
		online:             true,
	}, nil
}

func orDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}

	return v
}

func orInt(v, def int) int {
	if v <= 0 {
		return def
	}

	return v
}

func realAfterFunc(d time.Duration, f func()) timer {
	return time.AfterFunc(d, f)
}

// timeSleep waits for d or until ctx is done.
func timeSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Init loads the local snapshot and runs the startup reconcile. A missing
// or unreadable local snapshot starts the engine empty. A failed reconcile
// is logged and returned but leaves the engine usable.
func (e *Engine) Init(ctx context.Context) (*document.Document, error) {
	doc, err := e.local.Load(ctx)
	if err != nil {
		e.logger.Warn("loading local snapshot failed, starting empty",
			slog.String("error", err.Error()))

		doc = nil
	}

	var last *time.Time

	if e.checkpoints != nil {
		t, cerr := e.checkpoints.GetTime(ctx, localstore.KeyLastBackupTime)
		if cerr == nil && !t.IsZero() {
			last = &t
		}
	}

	e.mu.Lock()
	e.doc = doc
	if last != nil {
		e.lastBackup = last
	}
	e.mu.Unlock()

	if doc != nil {
		e.logger.Info("loaded local snapshot",
			slog.String("version", doc.Version),
			slog.Int("phases", len(doc.Phases)),
			slog.Int("logs", len(doc.Logs)))
	}

	if rerr := e.reconcile(ctx, true); rerr != nil {
		return e.Document(), rerr
	}

	return e.Document(), nil
}

// Update applies fn to a copy of the current snapshot, trims the log,
// persists the result locally and schedules remote delivery. fn sees an
// empty document when nothing has been stored yet. The returned document
// is a copy carrying the freshly stamped version.
//
// fn runs with the engine lock held. It must not call back into the
// engine (Document, State, Status, Update, ...) or it deadlocks.
func (e *Engine) Update(ctx context.Context, fn func(*document.Document) error) (*document.Document, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, ErrClosed
	}

	next := e.doc.Clone()
	if next == nil {
		next = &document.Document{Phases: []document.Phase{}, Logs: []document.LogEntry{}}
	}

	if err := fn(next); err != nil {
		return nil, fmt.Errorf("sync: applying update: %w", err)
	}

	if dropped := document.TrimLog(next, e.logTrimBytes); dropped > 0 {
		e.logger.Info("trimmed activity log",
			slog.Int("dropped", dropped),
			slog.Int("kept", len(next.Logs)))
	}

	if _, err := e.local.Save(ctx, next); err != nil {
		return nil, fmt.Errorf("sync: saving locally: %w", err)
	}

	e.doc = next
	e.scheduleLocked()

	return next.Clone(), nil
}

// Document returns a copy of the current snapshot, or nil before any data
// exists.
func (e *Engine) Document() *document.Document {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.doc.Clone()
}

// State returns the consumer-visible delivery status.
func (e *Engine) State() SyncState {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := SyncState{
		IsOnline:     e.online,
		BackupError:  e.backupErr,
		PendingQueue: make([]PendingOperation, len(e.queue)),
	}

	if e.lastBackup != nil {
		t := *e.lastBackup
		st.LastBackupTime = &t
	}

	for i, op := range e.queue {
		op.Document = op.Document.Clone()
		st.PendingQueue[i] = op
	}

	return st
}

// Status returns the engine's current activity.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.statusLocked()
}

// statusLocked folds the outbound and inbound states into one. An active
// delivery wins over a pull; a pull wins over a resting Idle or Queued.
func (e *Engine) statusLocked() Status {
	switch {
	case e.upState == StateSyncingUp || e.upState == StateRetrying:
		return Status{State: e.upState, Retry: e.retry}
	case e.downState != StateIdle:
		return Status{State: e.downState}
	default:
		return Status{State: e.upState}
	}
}

// EffectiveStrategy resolves StrategyAuto against current presence.
func (e *Engine) EffectiveStrategy() Strategy {
	if e.strategy != StrategyAuto {
		return e.strategy
	}

	if e.presence != nil && e.presence.HasMultipleUsers() {
		return StrategyImmediate
	}

	return StrategyDebounce
}

// Interval is the current periodic reconcile interval.
func (e *Engine) Interval() time.Duration {
	if e.presence != nil && e.presence.HasMultipleUsers() {
		return e.intervalMultiUser
	}

	return e.intervalSingleUser
}

// Run drives periodic work until ctx is cancelled: probing connectivity
// while offline, flushing the pending queue and pulling remote changes.
// The interval is re-evaluated each round as presence changes.
func (e *Engine) Run(ctx context.Context) error {
	for {
		t := time.NewTimer(e.Interval())

		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
			e.tick(ctx)
		}
	}
}

// tick is one periodic round.
func (e *Engine) tick(ctx context.Context) {
	e.mu.Lock()
	online := e.online
	e.mu.Unlock()

	if !online {
		if e.pinger == nil {
			return
		}

		if err := e.pinger.Ping(ctx); err != nil {
			e.logger.Debug("remote still unreachable", slog.String("error", err.Error()))
			return
		}

		e.SetOnline(true)
	} else {
		e.mu.Lock()
		e.flushQueueLocked()
		e.mu.Unlock()
	}

	if e.activity != nil && !e.activity.IsActive() {
		e.logger.Debug("skipping periodic reconcile: user inactive")
		return
	}

	if err := e.reconcile(ctx, false); err != nil {
		e.logger.Debug("periodic reconcile failed", slog.String("error", err.Error()))
	}
}

// Close flushes a pending debounced draft, waits for the outbound lane to
// drain and releases the delivery context. If ctx ends first, in-flight
// requests are cancelled and the remaining deliveries fail fast; Close then
// returns ctx's error. The local store is owned by the caller and is not
// closed.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}

	if e.debounce != nil {
		e.stopDebounceLocked()

		if e.doc != nil {
			e.enqueueLocked(&delivery{doc: e.doc.Clone(), kind: remote.BackupAuto})
		}
	}

	e.closed = true
	e.mu.Unlock()

	drained := make(chan struct{})

	go func() {
		e.wg.Wait()
		close(drained)
	}()

	var err error

	select {
	case <-drained:
	case <-ctx.Done():
		e.logger.Warn("close deadline reached, abandoning pending backups",
			slog.String("error", ctx.Err().Error()))

		e.cancel()
		<-drained

		err = fmt.Errorf("sync: close: %w", ctx.Err())
	}

	e.cancel()

	return err
}
