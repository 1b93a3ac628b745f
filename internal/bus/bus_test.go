package bus

import (
	"fmt"
	"sync"
	"testing"

	"github.com/mcb1510/v2v-simulator/internal/v2v"
)

// testLogger implements Logger for testing
type testLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *testLogger) Debug(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("DEBUG: %s %v", msg, keysAndValues))
}

func (l *testLogger) Info(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("INFO: %s %v", msg, keysAndValues))
}

func (l *testLogger) Error(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("ERROR: %s %v", msg, keysAndValues))
}

// recorder collects delivered messages in order.
type recorder struct {
	name     string
	received []v2v.Message
}

func (r *recorder) OnMessage(m v2v.Message) {
	r.received = append(r.received, m)
}

func newTestBus(t *testing.T, opts ...Option) *Bus {
	t.Helper()
	b, err := New(append([]Option{WithLogger(&testLogger{})}, opts...)...)
	if err != nil {
		t.Fatalf("failed to create bus: %v", err)
	}
	return b
}

func bsm(sender v2v.VehicleID, at float64) v2v.BasicSafetyMessage {
	return v2v.BasicSafetyMessage{Source: sender, SimTime: at}
}

func cwm(sender, target v2v.VehicleID, at float64) v2v.CollisionWarningMessage {
	return v2v.CollisionWarningMessage{Source: sender, Target: target, SimTime: at}
}

func TestBus_DrainPreservesPublicationOrder(t *testing.T) {
	b := newTestBus(t)

	b.Publish(bsm(1, 0.1))
	b.Publish(bsm(2, 0.1))
	b.Publish(cwm(2, 1, 0.1))

	if b.Pending() != 3 {
		t.Errorf("expected 3 pending, got %d", b.Pending())
	}

	batch := b.Drain()
	if len(batch) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(batch))
	}
	if batch[0].Sender() != 1 || batch[1].Sender() != 2 {
		t.Errorf("unexpected BSM order: %v, %v", batch[0].Sender(), batch[1].Sender())
	}
	if batch[2].MessageKind() != v2v.KindCWM {
		t.Errorf("expected trailing CWM, got %v", batch[2].MessageKind())
	}
	if b.Pending() != 0 {
		t.Errorf("expected empty bus after drain, got %d", b.Pending())
	}
}

func TestBus_DeliverAllFansOutInRegistrationOrder(t *testing.T) {
	b := newTestBus(t)

	first := &recorder{name: "first"}
	second := &recorder{name: "second"}
	var order []string
	b.Subscribe(subscriberFunc(func(m v2v.Message) {
		first.OnMessage(m)
		order = append(order, first.name)
	}))
	b.Subscribe(subscriberFunc(func(m v2v.Message) {
		second.OnMessage(m)
		order = append(order, second.name)
	}))

	b.Publish(bsm(1, 0.1))
	b.Publish(bsm(2, 0.1))

	n := b.DeliverAll()

	if n != 2 {
		t.Errorf("expected 2 delivered, got %d", n)
	}
	if len(first.received) != 2 || len(second.received) != 2 {
		t.Fatalf("expected both subscribers to see 2 messages, got %d and %d",
			len(first.received), len(second.received))
	}
	if order[0] != "first" || order[1] != "second" {
		t.Errorf("expected registration order per message, got %v", order)
	}
	if first.received[0].Sender() != 1 || first.received[1].Sender() != 2 {
		t.Errorf("unexpected delivery order: %v", first.received)
	}
}

// subscriberFunc adapts a function to the Subscriber interface.
type subscriberFunc func(v2v.Message)

func (f subscriberFunc) OnMessage(m v2v.Message) { f(m) }

func TestBus_DeliverAllEmpty(t *testing.T) {
	b := newTestBus(t)

	if n := b.DeliverAll(); n != 0 {
		t.Errorf("expected 0 delivered, got %d", n)
	}
}

func TestBus_DeliverAllRecordsLog(t *testing.T) {
	b := newTestBus(t, WithLogCapacity(10))

	b.Publish(bsm(1, 0.1))
	b.Publish(cwm(1, 2, 0.1))
	b.DeliverAll()

	recent := b.Recent()
	if len(recent) != 2 {
		t.Fatalf("expected 2 logged messages, got %d", len(recent))
	}
	if b.Total() != 2 {
		t.Errorf("expected total 2, got %d", b.Total())
	}
}

func TestBus_DrainedMessagesAreNotLogged(t *testing.T) {
	b := newTestBus(t)

	b.Publish(bsm(1, 0.1))
	b.Drain()

	if len(b.Recent()) != 0 {
		t.Errorf("expected empty log after plain drain, got %d", len(b.Recent()))
	}
}

func TestLog_EvictsOldestKeepsMostRecent(t *testing.T) {
	l := NewLog(3)

	for i := 1; i <= 5; i++ {
		l.Record(bsm(v2v.VehicleID(i), float64(i)))
	}

	recent := l.Recent()
	if len(recent) != 3 {
		t.Fatalf("expected 3 retained, got %d", len(recent))
	}
	for i, want := range []v2v.VehicleID{3, 4, 5} {
		if recent[i].Sender() != want {
			t.Errorf("position %d: expected sender %v, got %v", i, want, recent[i].Sender())
		}
	}
	if l.Total() != 5 {
		t.Errorf("expected total 5, got %d", l.Total())
	}
}

func TestLog_DefaultCapacity(t *testing.T) {
	if got := NewLog(0).Cap(); got != DefaultLogCapacity {
		t.Errorf("expected default capacity %d, got %d", DefaultLogCapacity, got)
	}
}

func TestLog_PartialFill(t *testing.T) {
	l := NewLog(5)
	l.Record(bsm(1, 0.1))
	l.Record(bsm(2, 0.2))

	recent := l.Recent()
	if len(recent) != 2 {
		t.Fatalf("expected 2 retained, got %d", len(recent))
	}
	if recent[0].Sender() != 1 || recent[1].Sender() != 2 {
		t.Errorf("unexpected order: %v", recent)
	}
}
