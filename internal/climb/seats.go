package climb

import (
	"slices"
)

// LowestUnusedIndex returns the smallest seat index in [0, maxPlayers) that no
// player holds, or -1 when every seat is taken.
func LowestUnusedIndex(players []Player, maxPlayers int) int {
	used := make(map[int]bool, len(players))
	for _, p := range players {
		used[p.PlayerIndex] = true
	}
	for i := 0; i < maxPlayers; i++ {
		if !used[i] {
			return i
		}
	}
	return -1
}

// LowestUnusedCharacter returns the smallest character in [1, 6] that no player
// uses, or -1 when all are taken.
func LowestUnusedCharacter(players []Player) int {
	used := make(map[int]bool, len(players))
	for _, p := range players {
		used[p.Character] = true
	}
	for c := 1; c <= CharacterCount; c++ {
		if !used[c] {
			return c
		}
	}
	return -1
}

func RandomCharacter(r Randomizer) int {
	return r.IntN(CharacterCount) + 1
}

// Renumber packs player indexes into 0..n-1 keeping their relative order and
// returns the players whose index changed.
func Renumber(players []Player) []Player {
	sorted := slices.Clone(players)
	slices.SortStableFunc(sorted, func(a, b Player) int {
		return a.PlayerIndex - b.PlayerIndex
	})

	var changed []Player
	for i := range sorted {
		if sorted[i].PlayerIndex != i {
			sorted[i].PlayerIndex = i
			changed = append(changed, sorted[i])
		}
	}
	return changed
}

// IndexesDense reports whether the players hold exactly 0..n-1.
func IndexesDense(players []Player) bool {
	seen := make([]bool, len(players))
	for _, p := range players {
		if p.PlayerIndex < 0 || p.PlayerIndex >= len(players) || seen[p.PlayerIndex] {
			return false
		}
		seen[p.PlayerIndex] = true
	}
	return true
}

// NextTurn returns the index after current, wrapping around playerCount seats.
func NextTurn(current, playerCount int) int {
	if playerCount <= 0 {
		return 0
	}
	return (current + 1) % playerCount
}

// Advance moves a position forward by steps without passing boardSize.
func Advance(position, steps, boardSize int) int {
	return min(position+steps, boardSize)
}
