// Package selector holds the bot's random picks: the roll outcome and the
// dinner choice.
package selector

import (
	"math/rand/v2"
	"strings"
)

// Rand is the random source. *rand.Rand satisfies it.
type Rand interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// Default draws from the process-wide generator.
var Default Rand = globalRand{}

type Outcome int

const (
	// OutcomeNovelty sends the fixed animation instead of a die.
	OutcomeNovelty Outcome = iota
	OutcomeDice
)

const rollFaces = 3

// Roll picks one of three equally likely faces. Face 0 is the novelty
// payload, the other two send a real die.
func Roll(r Rand) Outcome {
	if r == nil {
		r = Default
	}
	if r.IntN(rollFaces) == 0 {
		return OutcomeNovelty
	}
	return OutcomeDice
}

const DinnerUsage = "請輸入選項 e.g. /dinner 八方雲集 Sukiya 臺鐵便當 元氣"

// Candidates splits a command argument on whitespace.
func Candidates(args string) []string {
	return strings.Fields(args)
}

// Dinner returns one candidate picked uniformly, or DinnerUsage and false
// when there is nothing to pick from.
func Dinner(r Rand, candidates []string) (string, bool) {
	if len(candidates) == 0 {
		return DinnerUsage, false
	}
	if r == nil {
		r = Default
	}
	return candidates[r.IntN(len(candidates))], true
}
