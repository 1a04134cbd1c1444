// Package syncclient is the entry point for embedding dashsync. A Client
// owns one local store, one remote connection and the cadences that keep
// them in step: presence heartbeats, periodic reconciles, activity checks
// and optional change notifications. Create one per process with New and
// release it with Dispose.
package syncclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	stdsync "sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tonimelisma/dashsync/internal/activity"
	"github.com/tonimelisma/dashsync/internal/document"
	"github.com/tonimelisma/dashsync/internal/localstore"
	"github.com/tonimelisma/dashsync/internal/presence"
	"github.com/tonimelisma/dashsync/internal/remote"
	"github.com/tonimelisma/dashsync/internal/sync"
)

// Delivery outcomes returned by ForceSync.
var (
	ErrQueued          = sync.ErrQueued
	ErrPayloadTooLarge = sync.ErrPayloadTooLarge
)

// ParseStrategy converts "auto", "debounce" or "immediate" to a Strategy.
func ParseStrategy(s string) (Strategy, error) { return sync.ParseStrategy(s) }

// Re-exported types so embedders need not import internal packages.
type (
	Document           = document.Document
	Phase              = document.Phase
	Task               = document.Task
	LogEntry           = document.LogEntry
	SyncState          = sync.SyncState
	Status             = sync.Status
	Strategy           = sync.Strategy
	PresenceSnapshot   = presence.Snapshot
	Signal             = activity.Signal
	PendingOperation   = sync.PendingOperation
	RemoteNotification = remote.Notification
)

// Options configures New. Zero values fall back to package defaults.
type Options struct {
	DataDir string // directory holding the local database (required)
	UserID  string // account whose dashboard is synced (required)
	Source  string // backupSource tag, e.g. "cli"

	BackupURL  string // required
	SessionURL string // required
	NotifyURL  string // optional websocket endpoint for change notifications

	HTTPClient        *http.Client // nil → http.DefaultClient
	UserAgent         string
	RequestsPerSecond float64

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

	HeartbeatInterval   time.Duration
	ActivityInterval    time.Duration
	InactivityThreshold time.Duration

	Logger *slog.Logger
}

func (o *Options) validate() error {
	var errs []error

	if o.DataDir == "" {
		errs = append(errs, errors.New("data directory is required"))
	}

	if o.UserID == "" {
		errs = append(errs, errors.New("user ID is required"))
	}

	if o.BackupURL == "" {
		errs = append(errs, errors.New("backup URL is required"))
	}

	if o.SessionURL == "" {
		errs = append(errs, errors.New("session URL is required"))
	}

	return errors.Join(errs...)
}

// Client is a running sync context. All methods are safe for concurrent use.
type Client struct {
	store   *localstore.Store
	remote  *remote.Client
	engine  *sync.Engine
	tracker *presence.Tracker
	monitor *activity.Monitor
	guard   *activity.Guard
	logger  *slog.Logger

	userID    string
	sessionID string
	notifyURL string

	// wake carries out-of-cadence reconcile requests to the run loop.
	wake chan struct{}

	initMu      stdsync.Mutex
	initialized bool

	// editing is set while this client holds the edit flag. Dispose only
	// clears a flag this client raised; another process may own it.
	editing atomic.Bool

	cancel context.CancelFunc
	group  *errgroup.Group
}

// New opens the local store and wires the components. Nothing runs in the
// background until Start.
func New(ctx context.Context, opts Options) (*Client, error) {
	if err := opts.validate(); err != nil {
		return nil, fmt.Errorf("syncclient: invalid options: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	store, err := localstore.Open(ctx, opts.DataDir, logger)
	if err != nil {
		return nil, fmt.Errorf("syncclient: %w", err)
	}

	sessionID, err := presence.SessionID(ctx, store)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("syncclient: %w", err)
	}

	rc := remote.NewClient(remote.Config{
		BackupURL:         opts.BackupURL,
		SessionURL:        opts.SessionURL,
		HTTPClient:        opts.HTTPClient,
		UserAgent:         opts.UserAgent,
		RequestsPerSecond: opts.RequestsPerSecond,
		Logger:            logger,
	})

	tracker := presence.NewTracker(rc, sessionID, opts.HeartbeatInterval, logger)
	monitor := activity.NewMonitor(opts.InactivityThreshold, opts.ActivityInterval, logger)
	guard := activity.NewGuard(store, logger)

	engine, err := sync.NewEngine(&sync.EngineConfig{
		Local:              store,
		Remote:             rc,
		Pinger:             rc,
		Presence:           tracker,
		Guard:              guard,
		Activity:           monitor,
		Checkpoints:        store,
		Logger:             logger,
		UserID:             opts.UserID,
		Source:             opts.Source,
		Strategy:           opts.Strategy,
		Debounce:           opts.Debounce,
		RetryDelay:         opts.RetryDelay,
		MaxRetries:         opts.MaxRetries,
		IntervalMultiUser:  opts.IntervalMultiUser,
		IntervalSingleUser: opts.IntervalSingleUser,
		MinSyncInterval:    opts.MinSyncInterval,
		MaxPayloadBytes:    opts.MaxPayloadBytes,
		MaxQueue:           opts.MaxQueue,
		LogTrimBytes:       opts.LogTrimBytes,
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("syncclient: %w", err)
	}

	c := &Client{
		store:     store,
		remote:    rc,
		engine:    engine,
		tracker:   tracker,
		monitor:   monitor,
		guard:     guard,
		logger:    logger,
		userID:    opts.UserID,
		sessionID: sessionID,
		notifyURL: opts.NotifyURL,
		wake:      make(chan struct{}, 1),
	}

	monitor.OnChange(func(active bool) {
		if active {
			c.RequestReconcile()
		}
	})

	return c, nil
}

// Init loads the local snapshot and runs the initial restore without
// starting any background cadence. One-shot callers use it instead of
// Start. A restore error is returned, but the client stays usable with its
// local data. Later calls return the current snapshot.
func (c *Client) Init(ctx context.Context) (*Document, error) {
	c.initMu.Lock()
	defer c.initMu.Unlock()

	if c.initialized {
		return c.engine.Document(), nil
	}

	c.initialized = true

	return c.engine.Init(ctx)
}

// Start runs Init and launches the background cadences. They stop on
// Dispose, not when ctx is cancelled.
func (c *Client) Start(ctx context.Context) (*Document, error) {
	if c.group != nil {
		return nil, errors.New("syncclient: already started")
	}

	doc, err := c.Init(ctx)
	if err != nil {
		c.logger.Warn("initial restore failed, continuing with local data",
			slog.String("error", err.Error()))
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	g, gctx := errgroup.WithContext(runCtx)

	c.cancel = cancel
	c.group = g

	g.Go(func() error { return c.engine.Run(gctx) })
	g.Go(func() error { return c.tracker.Run(gctx) })
	g.Go(func() error { return c.monitor.Run(gctx) })
	g.Go(func() error { return c.reconcileLoop(gctx) })

	if c.notifyURL != "" {
		g.Go(func() error { return c.remote.Subscribe(gctx, c.notifyURL, c.onNotification) })
	}

	c.logger.Info("sync client started",
		slog.String("user_id", c.userID),
		slog.String("session_id", c.sessionID),
		slog.Bool("notifications", c.notifyURL != ""))

	return doc, nil
}

// reconcileLoop serves RequestReconcile signals one at a time.
func (c *Client) reconcileLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.wake:
			if err := c.engine.Reconcile(ctx); err != nil {
				c.logger.Debug("requested reconcile failed", slog.String("error", err.Error()))
			}
		}
	}
}

// onNotification reacts to changes announced for this user by other sessions.
func (c *Client) onNotification(n RemoteNotification) {
	if n.UserID != c.userID || n.SessionID == c.sessionID {
		return
	}

	c.logger.Debug("remote change announced",
		slog.String("type", n.Type),
		slog.String("from_session", n.SessionID))

	c.RequestReconcile()
}

// RequestReconcile asks for an out-of-cadence pull. Requests made while one
// is pending collapse into it. The edit guard still applies.
func (c *Client) RequestReconcile() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// Dispose stops the cadences, flushes a pending draft, clears an edit flag
// this client raised and closes the local store. A draft still in flight
// when ctx ends is abandoned; it stays in the local store.
func (c *Client) Dispose(ctx context.Context) error {
	var errs []error

	if c.cancel != nil {
		c.cancel()

		if err := c.group.Wait(); err != nil {
			errs = append(errs, err)
		}
	}

	if err := c.engine.Close(ctx); err != nil {
		errs = append(errs, err)
	}

	if c.editing.Load() {
		if err := c.StopEditing(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	if err := c.store.Close(); err != nil {
		errs = append(errs, err)
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("syncclient: dispose: %w", err)
	}

	return nil
}

// Update mutates the document through fn and schedules delivery. fn runs
// under the engine lock and must not call other Client methods.
func (c *Client) Update(ctx context.Context, fn func(*Document) error) (*Document, error) {
	return c.engine.Update(ctx, fn)
}

// AddLog appends a log entry stamped with the current document version.
func (c *Client) AddLog(ctx context.Context, message string) (*Document, error) {
	return c.engine.Update(ctx, func(d *Document) error {
		document.AppendLog(d, message, time.Now())
		return nil
	})
}

// Document returns a copy of the current snapshot, or nil when none exists.
func (c *Client) Document() *Document { return c.engine.Document() }

// ForceSync sends the current snapshot now as a manual backup.
func (c *Client) ForceSync(ctx context.Context) error { return c.engine.ForceSync(ctx) }

// Reconcile pulls the remote snapshot now and waits for the result.
func (c *Client) Reconcile(ctx context.Context) error { return c.engine.Reconcile(ctx) }

// SetOnline reports a connectivity change from the host environment.
func (c *Client) SetOnline(online bool) { c.engine.SetOnline(online) }

// State returns the delivery status.
func (c *Client) State() SyncState { return c.engine.State() }

// Status returns the engine's current activity.
func (c *Client) Status() Status { return c.engine.Status() }

// Presence returns the latest presence snapshot.
func (c *Client) Presence() PresenceSnapshot { return c.tracker.Snapshot() }

// RefreshPresence lists active sessions without sending a heartbeat.
func (c *Client) RefreshPresence(ctx context.Context) (PresenceSnapshot, error) {
	return c.tracker.Refresh(ctx)
}

// HasMultipleUsers reports whether other sessions are active.
func (c *Client) HasMultipleUsers() bool { return c.tracker.HasMultipleUsers() }

// StartEditing suppresses remote pulls until StopEditing.
func (c *Client) StartEditing(ctx context.Context) error {
	if err := c.guard.StartEditing(ctx); err != nil {
		return err
	}

	c.editing.Store(true)

	return nil
}

// StopEditing lifts the edit guard.
func (c *Client) StopEditing(ctx context.Context) error {
	if err := c.guard.StopEditing(ctx); err != nil {
		return err
	}

	c.editing.Store(false)

	return nil
}

// IsEditing reports the persisted edit flag.
func (c *Client) IsEditing(ctx context.Context) bool { return c.guard.IsEditing(ctx) }

// RecordActivity feeds a user-interaction signal to the activity monitor.
func (c *Client) RecordActivity(sig Signal) { c.monitor.Record(sig) }

// IsActive reports whether the user interacted recently.
func (c *Client) IsActive() bool { return c.monitor.IsActive() }

// SessionID returns this installation's persisted session token.
func (c *Client) SessionID() string { return c.sessionID }

// UserID returns the synced account.
func (c *Client) UserID() string { return c.userID }

// IDPrefix returns the prefix used for ids minted by this client.
func (c *Client) IDPrefix() string { return document.ClientPrefix(c.sessionID) }

// SetActiveTab remembers the last dashboard tab shown to the user.
func (c *Client) SetActiveTab(ctx context.Context, tab string) error {
	return c.store.Set(ctx, localstore.KeyActiveTab, tab)
}

// ActiveTab returns the remembered tab, or "" when none was stored.
func (c *Client) ActiveTab(ctx context.Context) (string, error) {
	tab, _, err := c.store.Get(ctx, localstore.KeyActiveTab)
	return tab, err
}

// LocalDocument reads the stored snapshot directly, without Init or any
// network call.
func (c *Client) LocalDocument(ctx context.Context) (*Document, error) {
	return c.store.Load(ctx)
}

// LastBackupTime returns when a backup last reached the remote, or the zero
// time if none has.
func (c *Client) LastBackupTime(ctx context.Context) (time.Time, error) {
	return c.store.GetTime(ctx, localstore.KeyLastBackupTime)
}
