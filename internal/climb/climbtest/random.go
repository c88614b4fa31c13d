// Package climbtest holds helpers shared by tests of packages built on climb.
package climbtest

import (
	"math/rand/v2"
	"sync"
)

// Scripted is a Randomizer whose IntN answers come from a queue. Once the
// queue runs dry it falls back to a seeded source, as does Shuffle.
type Scripted struct {
	mu     sync.Mutex
	values []int
	rng    *rand.Rand
}

func NewScripted(values ...int) *Scripted {
	return &Scripted{
		values: values,
		rng:    rand.New(rand.NewPCG(1, 2)),
	}
}

// QueueDice queues die faces (1..6) for the next IntN(6) calls.
func (s *Scripted) QueueDice(faces ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range faces {
		s.values = append(s.values, f-1)
	}
}

func (s *Scripted) IntN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.values) > 0 {
		v := s.values[0]
		s.values = s.values[1:]
		return v % n
	}
	return s.rng.IntN(n)
}

func (s *Scripted) Shuffle(n int, swap func(i, j int)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rng.Shuffle(n, swap)
}
