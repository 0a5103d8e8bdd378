package reconcile

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/quietlawn/rachio-bridge/internal/bridge"
	"github.com/quietlawn/rachio-bridge/internal/rachio"
)

// Logger defines the logging interface used by the Reconciler.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Deps contains the dependencies required by the Reconciler.
type Deps struct {
	Client     *rachio.Client
	Store      *bridge.Store
	Dispatcher *bridge.Dispatcher

	// PersonID is the cloud account whose inventory is pulled.
	PersonID string

	// Interval between scheduled runs.
	Interval time.Duration

	// OnDeviceDiscovered, when non-nil, is called once per newly seen
	// device after a successful run (webhook registration hooks here).
	OnDeviceDiscovered func(ctx context.Context, deviceCloudID string)

	Logger Logger
}

// Reconciler periodically pulls the full device and zone inventory and
// merges it into the entity store.
//
// Runs are guarded by a single in-flight flag: a scheduled run that
// finds a previous run still active is skipped, not queued. A failed
// pull leaves the store untouched; entities are marked with a
// communication-error status instead, and recover automatically on the
// next successful run.
type Reconciler struct {
	deps   Deps
	logger Logger

	inflight atomic.Bool
	syncCh   chan struct{}
	cancel   context.CancelFunc
	done     chan struct{}
	closeOne sync.Once
}

// New creates a Reconciler. Start must be called to begin the loop.
func New(deps Deps) (*Reconciler, error) {
	if deps.Client == nil || deps.Store == nil || deps.Dispatcher == nil {
		return nil, errors.New("reconcile: client, store, and dispatcher are required")
	}
	if deps.PersonID == "" {
		return nil, errors.New("reconcile: person id is required")
	}
	if deps.Interval <= 0 {
		deps.Interval = 900 * time.Second
	}

	logger := deps.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	return &Reconciler{
		deps:   deps,
		logger: logger,
		syncCh: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}, nil
}

// Start launches the reconciliation loop: one run immediately, then one
// per interval, plus on-demand runs via TriggerSync. The loop stops when
// ctx is cancelled or Close is called.
func (r *Reconciler) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)

	go func() {
		defer close(r.done)

		// First run immediately so the store is populated at startup
		r.RunOnce(ctx)

		ticker := time.NewTicker(r.deps.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.RunOnce(ctx)
			case <-r.syncCh:
				r.RunOnce(ctx)
			}
		}
	}()
}

// Close stops the loop and waits for any in-flight run to finish.
func (r *Reconciler) Close() {
	r.closeOne.Do(func() {
		if r.cancel != nil {
			r.cancel()
			<-r.done
		}
	})
}

// TriggerSync requests an on-demand run. Returns false when a trigger is
// already pending.
func (r *Reconciler) TriggerSync() bool {
	select {
	case r.syncCh <- struct{}{}:
		return true
	default:
		return false
	}
}

// RunOnce performs a single reconciliation cycle. Safe to call directly;
// concurrent calls beyond the first are skipped.
func (r *Reconciler) RunOnce(ctx context.Context) {
	if !r.inflight.CompareAndSwap(false, true) {
		r.logger.Debug("reconciliation already in flight, skipping")
		return
	}
	defer r.inflight.Store(false)

	started := time.Now()

	person, err := r.deps.Client.Person(ctx, r.deps.PersonID)
	if err != nil {
		// The prior snapshot stays fully intact; devices surface the
		// failure as a communication-error status until a pull succeeds.
		r.logger.Error("inventory pull failed", "error", err)
		for _, dev := range r.deps.Store.Devices() {
			_ = r.deps.Store.SetDeviceStatus(dev.UID, bridge.StatusCommError, err.Error())
		}
		return
	}

	// The whole merge is one atomic store operation; events routed
	// concurrently see the old or the new inventory, never a mix.
	discovered := r.deps.Store.SyncInventory(person.Devices)

	for _, ref := range discovered {
		r.deps.Dispatcher.NotifyDiscovered(ref)
		r.logger.Info("entity discovered",
			"kind", string(ref.Kind), "name", ref.Name, "uid", ref.UID)

		if ref.Kind == bridge.KindDevice && r.deps.OnDeviceDiscovered != nil {
			r.deps.OnDeviceDiscovered(ctx, ref.CloudID)
		}
	}

	devices, zones := r.deps.Store.Stats()
	r.logger.Debug("reconciliation complete",
		"devices", devices, "zones", zones,
		"new_entities", len(discovered),
		"duration_ms", time.Since(started).Milliseconds())
}
