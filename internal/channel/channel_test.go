package channel

import (
	"sync"
	"testing"
)

func TestFeed_OfferAndReceive(t *testing.T) {
	f := NewFeed[int](2)
	f.Offer(1)
	f.Offer(2)

	if f.Len() != 2 {
		t.Errorf("expected 2 buffered, got %d", f.Len())
	}
	if got := <-f.Receive(); got != 1 {
		t.Errorf("expected 1, got %d", got)
	}
	if got := <-f.Receive(); got != 2 {
		t.Errorf("expected 2, got %d", got)
	}
}

func TestFeed_EvictsOldestWhenFull(t *testing.T) {
	f := NewFeed[int](2)
	f.Offer(1)
	f.Offer(2)
	f.Offer(3)

	if f.Dropped() != 1 {
		t.Errorf("expected 1 drop, got %d", f.Dropped())
	}
	if got := <-f.Receive(); got != 2 {
		t.Errorf("expected oldest survivor 2, got %d", got)
	}
	if got := <-f.Receive(); got != 3 {
		t.Errorf("expected 3, got %d", got)
	}
}

func TestFeed_MinimumSize(t *testing.T) {
	f := NewFeed[int](0)
	f.Offer(1)
	f.Offer(2)

	if got := <-f.Receive(); got != 2 {
		t.Errorf("expected latest value 2, got %d", got)
	}
}

func TestFeed_CloseStopsRange(t *testing.T) {
	f := NewFeed[int](4)
	f.Offer(1)
	f.Offer(2)
	f.Close()

	var got []int
	for v := range f.Receive() {
		got = append(got, v)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 values before close, got %d", len(got))
	}
}

func TestFeed_OfferAfterClose(t *testing.T) {
	f := NewFeed[int](1)
	f.Close()

	f.Offer(1)

	if f.Dropped() != 1 {
		t.Errorf("expected post-close offer to count as drop, got %d", f.Dropped())
	}
}

func TestFeed_ConcurrentProducerConsumer(t *testing.T) {
	f := NewFeed[int](8)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			f.Offer(i)
		}
		f.Close()
	}()

	received := 0
	for range f.Receive() {
		received++
	}
	wg.Wait()

	if received == 0 {
		t.Fatal("expected to receive at least one value")
	}
	if uint64(received)+f.Dropped() != 1000 {
		t.Errorf("received %d + dropped %d should equal 1000", received, f.Dropped())
	}
}
