package climb

import "math/rand/v2"

// Randomizer is the source of dice rolls, shuffles and character picks.
// *rand.Rand satisfies it but is not safe for concurrent use; use DefaultRandom
// for shared services.
type Randomizer interface {
	IntN(n int) int
	Shuffle(n int, swap func(i, j int))
}

type globalRandom struct{}

func (globalRandom) IntN(n int) int                     { return rand.IntN(n) }
func (globalRandom) Shuffle(n int, swap func(i, j int)) { rand.Shuffle(n, swap) }

// DefaultRandom uses the goroutine-safe top-level math/rand/v2 source.
var DefaultRandom Randomizer = globalRandom{}

// RollDie returns a uniform value in 1..6.
func RollDie(r Randomizer) int {
	return r.IntN(6) + 1
}
