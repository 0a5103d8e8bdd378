package bridge

import (
	"sync"
	"testing"
)

// recordingObserver captures notifications for assertions.
type recordingObserver struct {
	mu         sync.Mutex
	discovered []EntityRef
	changes    []Change
}

func (o *recordingObserver) EntityDiscovered(ref EntityRef) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.discovered = append(o.discovered, ref)
}

func (o *recordingObserver) StateChanged(change Change) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.changes = append(o.changes, change)
}

func (o *recordingObserver) changeCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.changes)
}

func TestDispatcher_NotifiesOnFirstValue(t *testing.T) {
	obs := &recordingObserver{}
	d := NewDispatcher(obs)

	ref := EntityRef{Kind: KindDevice, UID: "uid-1", Name: "Backyard"}

	if !d.UpdateIfChanged(ref, FieldStatus, "ONLINE") {
		t.Error("first update should notify")
	}
	if obs.changeCount() != 1 {
		t.Errorf("changes = %d, want 1", obs.changeCount())
	}

	change := obs.changes[0]
	if change.Field != FieldStatus || change.New != "ONLINE" {
		t.Errorf("change = %+v, want status ONLINE", change)
	}
	if change.Old != nil {
		t.Errorf("change.Old = %v, want nil on first observation", change.Old)
	}
}

func TestDispatcher_SuppressesUnchangedValues(t *testing.T) {
	obs := &recordingObserver{}
	d := NewDispatcher(obs)

	ref := EntityRef{Kind: KindDevice, UID: "uid-1"}

	d.UpdateIfChanged(ref, FieldStatus, "ONLINE")
	for i := 0; i < 10; i++ {
		if d.UpdateIfChanged(ref, FieldStatus, "ONLINE") {
			t.Fatal("repeated identical value should not notify")
		}
	}

	if obs.changeCount() != 1 {
		t.Errorf("changes = %d, want exactly 1 for repeated value", obs.changeCount())
	}
}

func TestDispatcher_NotifiesOnTransition(t *testing.T) {
	obs := &recordingObserver{}
	d := NewDispatcher(obs)

	ref := EntityRef{Kind: KindDevice, UID: "uid-1"}

	d.UpdateIfChanged(ref, FieldStatus, "ONLINE")
	if !d.UpdateIfChanged(ref, FieldStatus, "OFFLINE") {
		t.Error("transition to a new value should notify")
	}

	change := obs.changes[len(obs.changes)-1]
	if change.Old != "ONLINE" || change.New != "OFFLINE" {
		t.Errorf("change old/new = %v/%v, want ONLINE/OFFLINE", change.Old, change.New)
	}
}

func TestDispatcher_FieldsIndependent(t *testing.T) {
	obs := &recordingObserver{}
	d := NewDispatcher(obs)

	ref := EntityRef{Kind: KindDevice, UID: "uid-1"}

	d.UpdateIfChanged(ref, FieldStatus, "ONLINE")
	if !d.UpdateIfChanged(ref, FieldEnabled, true) {
		t.Error("different field should notify independently")
	}
	if !d.UpdateIfChanged(EntityRef{Kind: KindZone, UID: "uid-2"}, FieldStatus, "ONLINE") {
		t.Error("same field on a different entity should notify independently")
	}
}

func TestDispatcher_ConcurrentSameValueNotifiesOnce(t *testing.T) {
	obs := &recordingObserver{}
	d := NewDispatcher(obs)

	ref := EntityRef{Kind: KindDevice, UID: "uid-1"}

	var wg sync.WaitGroup
	fired := make(chan bool, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fired <- d.UpdateIfChanged(ref, FieldStatus, "ONLINE")
		}()
	}
	wg.Wait()
	close(fired)

	notified := 0
	for f := range fired {
		if f {
			notified++
		}
	}
	if notified != 1 {
		t.Errorf("%d goroutines observed a change, want exactly 1", notified)
	}
	if obs.changeCount() != 1 {
		t.Errorf("changes = %d, want 1", obs.changeCount())
	}
}

func TestDispatcher_NotifyDiscovered(t *testing.T) {
	obs := &recordingObserver{}
	d := NewDispatcher(obs)

	ref := EntityRef{Kind: KindZone, UID: "uid-2", Name: "Front Lawn"}
	d.NotifyDiscovered(ref)

	if len(obs.discovered) != 1 || obs.discovered[0].UID != "uid-2" {
		t.Errorf("discovered = %v, want one ref uid-2", obs.discovered)
	}
}
