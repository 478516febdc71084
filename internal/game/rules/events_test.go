package rules

import "testing"

func TestEventBusSubscribeTyped(t *testing.T) {
	bus := NewEventBus()

	playedCount := 0
	heartCount := 0

	handle1 := bus.SubscribeTyped(EventEffectPlayed, func(e Event) {
		playedCount++
	})

	handle2 := bus.SubscribeTyped(EventHeartLost, func(e Event) {
		heartCount++
	})

	bus.Publish(NewEvent(EventEffectPlayed, "player1", "player2", "e-1"))
	if playedCount != 1 {
		t.Fatalf("expected played count 1, got %d", playedCount)
	}
	if heartCount != 0 {
		t.Fatalf("expected heart count 0, got %d", heartCount)
	}

	bus.Publish(NewEventWithAmount(EventHeartLost, "player2", "", "", 1))
	if heartCount != 1 {
		t.Fatalf("expected heart count 1, got %d", heartCount)
	}

	bus.Unsubscribe(handle1)
	bus.Publish(NewEvent(EventEffectPlayed, "player1", "player1", "e-2"))
	if playedCount != 1 {
		t.Fatalf("expected played count still 1 after unsubscribe, got %d", playedCount)
	}

	bus.Unsubscribe(handle2)
	bus.Publish(NewEventWithAmount(EventHeartLost, "player2", "", "", 1))
	if heartCount != 1 {
		t.Fatalf("expected heart count still 1 after unsubscribe, got %d", heartCount)
	}
}

func TestEventBusDeliversInSubscriptionOrder(t *testing.T) {
	bus := NewEventBus()

	var order []int
	for i := 0; i < 5; i++ {
		i := i
		bus.Subscribe(func(Event) { order = append(order, i) })
	}

	bus.Publish(NewEvent(EventPassed, "player1", "", ""))

	for i, got := range order {
		if got != i {
			t.Fatalf("expected listener %d at position %d, got %d", i, i, got)
		}
	}
}

func TestEventBusPublishBatch(t *testing.T) {
	bus := NewEventBus()

	count := 0
	bus.Subscribe(func(e Event) {
		count++
	})

	bus.PublishBatch([]Event{
		NewEvent(EventValueCardPlayed, "player1", "", "v-1"),
		NewEvent(EventTurnEnded, "player1", "", ""),
		NewEvent(EventPassed, "player2", "", ""),
	})

	if count != 3 {
		t.Fatalf("expected count 3 after batch publish, got %d", count)
	}
}

func TestEventTerminal(t *testing.T) {
	if !EventMatchEnded.IsTerminal() {
		t.Fatal("EventMatchEnded should be terminal")
	}
	if EventRoundResolved.IsTerminal() {
		t.Fatal("EventRoundResolved should not be terminal")
	}
}
