package history

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/quietlawn/rachio-bridge/internal/bridge"
)

// recorderQueueSize bounds the async write queue. Entries beyond it are
// dropped; the history log is diagnostic, not authoritative.
const recorderQueueSize = 256

// recordTimeout bounds each insert.
const recordTimeout = 5 * time.Second

// Logger defines the logging interface used by the Recorder.
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

// Recorder is a bridge.Observer that persists discoveries and state
// transitions to the history repository.
//
// Observer callbacks run inside the dispatcher's critical section, so
// writes go through a buffered queue serviced by a single worker; when
// the queue is full the entry is dropped and counted.
type Recorder struct {
	repo   Repository
	logger Logger

	queue    chan Entry
	done     chan struct{}
	closeOne sync.Once
	dropped  int64
	mu       sync.Mutex
}

// NewRecorder creates a recorder and starts its write worker.
func NewRecorder(repo Repository, logger Logger) *Recorder {
	if logger == nil {
		logger = noopLogger{}
	}
	r := &Recorder{
		repo:   repo,
		logger: logger,
		queue:  make(chan Entry, recorderQueueSize),
		done:   make(chan struct{}),
	}
	go r.run()
	return r
}

// EntityDiscovered implements bridge.Observer.
func (r *Recorder) EntityDiscovered(ref bridge.EntityRef) {
	entry := Entry{
		DeviceUID: ref.UID,
		Type:      "DISCOVERED",
		Summary:   ref.Name,
		Outcome:   OutcomeDiscovered,
	}
	if ref.Kind == bridge.KindZone {
		entry.DeviceUID = ref.DeviceUID
		entry.ZoneUID = ref.UID
	}
	r.enqueue(entry)
}

// StateChanged implements bridge.Observer.
func (r *Recorder) StateChanged(change bridge.Change) {
	entry := Entry{
		DeviceUID: change.Entity.UID,
		Type:      "STATE_CHANGED",
		Subtype:   change.Field,
		Summary:   fmt.Sprintf("%v -> %v", change.Old, change.New),
		Outcome:   OutcomeChanged,
	}
	if change.Entity.Kind == bridge.KindZone {
		entry.DeviceUID = change.Entity.DeviceUID
		entry.ZoneUID = change.Entity.UID
	}
	r.enqueue(entry)
}

// Record queues an arbitrary entry (webhook routing outcomes come in
// through here).
func (r *Recorder) Record(entry Entry) {
	r.enqueue(entry)
}

// Dropped returns how many entries were discarded due to a full queue.
func (r *Recorder) Dropped() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// Close stops the worker after draining queued entries.
func (r *Recorder) Close() {
	r.closeOne.Do(func() {
		close(r.queue)
		<-r.done
	})
}

func (r *Recorder) enqueue(entry Entry) {
	defer func() {
		// Sending on the closed queue after shutdown loses the entry,
		// which is acceptable for a diagnostic log.
		if recover() != nil {
			r.logger.Debug("history entry after shutdown dropped")
		}
	}()

	select {
	case r.queue <- entry:
	default:
		r.mu.Lock()
		r.dropped++
		r.mu.Unlock()
		r.logger.Warn("history queue full, entry dropped",
			"device_uid", entry.DeviceUID, "type", entry.Type)
	}
}

func (r *Recorder) run() {
	defer close(r.done)

	for entry := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		if err := r.repo.RecordEvent(ctx, entry); err != nil {
			r.logger.Error("recording history entry", "error", err)
		}
		cancel()
	}
}
