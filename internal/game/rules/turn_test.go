package rules

import "testing"

func TestPhaseTransitionTable(t *testing.T) {
	pm := NewPhaseMachine()

	steps := []Phase{PhaseInitialDraw, PhasePlaying, PhaseResolution, PhasePlaying, PhaseResolution, PhaseGameOver}
	for _, next := range steps {
		if err := pm.Transition(next); err != nil {
			t.Fatalf("transition to %s: %v", next, err)
		}
	}
	if pm.Current() != PhaseGameOver {
		t.Fatalf("expected GAME_OVER, got %s", pm.Current())
	}
}

func TestPhaseTransitionRejectsIllegal(t *testing.T) {
	pm := NewPhaseMachine()

	if err := pm.Transition(PhaseResolution); err == nil {
		t.Fatal("expected SETUP -> RESOLUTION to be rejected")
	}
	if pm.Current() != PhaseSetup {
		t.Fatalf("phase changed on rejected transition: %s", pm.Current())
	}
	if CanTransition(PhaseGameOver, PhasePlaying) {
		t.Fatal("GAME_OVER must be terminal")
	}
}

func TestTurnOrderAdvanceWrapsAndSkipsEliminated(t *testing.T) {
	to := NewTurnOrder([]string{"Alice", "Bob", "Carol"}, "Bob")

	if to.Current() != "Bob" {
		t.Fatalf("expected Bob to start, got %s", to.Current())
	}
	if next := to.Advance(); next != "Carol" {
		t.Fatalf("expected Carol, got %s", next)
	}
	if next := to.Advance(); next != "Alice" {
		t.Fatalf("expected wrap to Alice, got %s", next)
	}

	to.Eliminate("Bob")
	if next := to.Advance(); next != "Carol" {
		t.Fatalf("expected Bob to be skipped, got %s", next)
	}
	if to.ActiveCount() != 2 {
		t.Fatalf("expected 2 active players, got %d", to.ActiveCount())
	}
}

func TestTurnOrderPassLimit(t *testing.T) {
	to := NewTurnOrder([]string{"Alice", "Bob"}, "Alice")

	for i := 0; i < 3; i++ {
		if to.RecordPass() {
			t.Fatalf("round ended early after %d passes", i+1)
		}
	}
	if !to.RecordPass() {
		t.Fatal("expected fourth pass to end the round")
	}
	to.RecordPass()
	if to.Passes() != to.PassLimit() {
		t.Fatalf("pass counter exceeded limit: %d", to.Passes())
	}

	to.ResetPasses()
	if to.Passes() != 0 {
		t.Fatalf("expected passes reset, got %d", to.Passes())
	}
}

func TestTurnOrderStartNextRoundRotatesStarter(t *testing.T) {
	to := NewTurnOrder([]string{"Alice", "Bob", "Carol"}, "Alice")
	to.Advance()
	to.Advance()
	to.RecordPass()

	if first := to.StartNextRound(); first != "Bob" {
		t.Fatalf("expected Bob to open round two, got %s", first)
	}
	if to.Passes() != 0 {
		t.Fatalf("expected passes reset at round start, got %d", to.Passes())
	}
	to.Eliminate("Carol")
	if first := to.StartNextRound(); first != "Alice" {
		t.Fatalf("expected Alice to open round three, got %s", first)
	}
}
