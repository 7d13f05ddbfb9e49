package events

import (
	"testing"
	"time"
)

func TestSubscribeToChannel(t *testing.T) {
	bus := New()
	ch := make(chan any, 10)

	unsub := SubscribeToChannel[SaveFailedEvent](bus, ch)
	defer unsub()

	bus.Publish(SaveFailedEvent{Folder: "order-7", Error: "disk full"})

	select {
	case received := <-ch:
		e, ok := received.(SaveFailedEvent)
		if !ok {
			t.Fatalf("Expected SaveFailedEvent, got %T", received)
		}
		if e.Folder != "order-7" {
			t.Errorf("Expected folder order-7, got %s", e.Folder)
		}
	case <-time.After(time.Second):
		t.Fatal("event not forwarded")
	}
}

func TestSubscribeToChannel_NonBlocking(_ *testing.T) {
	bus := New()
	ch := make(chan any) // no reader

	unsub := SubscribeToChannel[SlotChangedEvent](bus, ch)
	defer unsub()

	done := make(chan bool, 1)
	go func() {
		bus.Publish(SlotChangedEvent{Slot: "front", Action: "captured"})
		done <- true
	}()
	<-done
}

func TestSubscribeToChannel_NilBus(_ *testing.T) {
	unsub := SubscribeToChannel[SlotChangedEvent](nil, make(chan any, 1))
	unsub()
}
