package scoring

import (
	"testing"

	"github.com/reversus-game/reversus-server-go/internal/game/cards"
	"github.com/stretchr/testify/assert"
)

func TestScoreSumsValueCards(t *testing.T) {
	assert.Equal(t, 14, Score(ScoreInput{ValueCards: []int{6, 8}, Resto: 4}))
}

func TestScoreRestoModifiers(t *testing.T) {
	base := ScoreInput{ValueCards: []int{6, 8}, Resto: 4}

	mais := base
	mais.ScoreEffect = cards.Mais
	assert.Equal(t, 18, Score(mais))

	menos := base
	menos.ScoreEffect = cards.Menos
	assert.Equal(t, 10, Score(menos))
}

func TestScorePinnedResto(t *testing.T) {
	in := ScoreInput{ValueCards: []int{2}, Resto: 4, ScoreEffect: cards.Mais, PinnedResto: PinnedRestoHigh}
	assert.Equal(t, 12, Score(in))

	in.PinnedResto = PinnedRestoLow
	assert.Equal(t, 4, Score(in))
}

func TestScoreDoubleNegativeOnlyTouchesNegative(t *testing.T) {
	menos := ScoreInput{ValueCards: []int{10}, Resto: 3, ScoreEffect: cards.Menos, DoubleNegative: true}
	assert.Equal(t, 4, Score(menos))

	mais := ScoreInput{ValueCards: []int{10}, Resto: 3, ScoreEffect: cards.Mais, DoubleNegative: true}
	assert.Equal(t, 13, Score(mais))
}

func TestScoreNarrativeAndSideChannel(t *testing.T) {
	assert.Equal(t, 20, Score(ScoreInput{ValueCards: []int{10}, ScoreEffect: cards.MaisDez}))
	assert.Equal(t, 0, Score(ScoreInput{ValueCards: []int{10}, ScoreEffect: cards.MenosDez}))
	assert.Equal(t, 15, Score(ScoreInput{ValueCards: []int{10}, SideChannel: cards.Sobe}))
	assert.Equal(t, 5, Score(ScoreInput{ValueCards: []int{10}, SideChannel: cards.Desce}))
}

func TestStepsWinnerAndModifiers(t *testing.T) {
	assert.Equal(t, 1, Steps(MoveInput{Winner: true}))
	assert.Equal(t, 0, Steps(MoveInput{Winner: true, Blocked: true}))
	assert.Equal(t, 2, Steps(MoveInput{Winner: true, MovementEffect: cards.Sobe}))
	assert.Equal(t, -1, Steps(MoveInput{MovementEffect: cards.Desce}))
	assert.Equal(t, -2, Steps(MoveInput{MovementEffect: cards.Desce, DoubleNegative: true}))
}

func TestStepsCleanWin(t *testing.T) {
	assert.Equal(t, 3, Steps(MoveInput{Winner: true, CleanWinBonus: true}))
	assert.Equal(t, 1, Steps(MoveInput{Winner: true, CleanWinBonus: true, UsedPositive: true}))
}

func TestStepsNonWinnerAdjustment(t *testing.T) {
	assert.Equal(t, -1, Steps(MoveInput{TaggedNonWinner: true, NonWinnerSteps: -1}))
	assert.Equal(t, 0, Steps(MoveInput{NonWinnerSteps: -1}))
}

func TestStepsPulaNeverMoves(t *testing.T) {
	assert.Equal(t, 0, Steps(MoveInput{Winner: true, MovementEffect: cards.Pula}))
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 1, Clamp(-3, 1, 10))
	assert.Equal(t, 10, Clamp(12, 1, 10))
	assert.Equal(t, 5, Clamp(5, 1, 10))
}
