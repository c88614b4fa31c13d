package climb_test

import (
	"climb-server/internal/climb"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoard(t *testing.T) {
	squares := climb.Board()

	require.Len(t, squares, climb.LastSquare+1)
	for i, sq := range squares {
		assert.Equal(t, i, sq.Position)
	}
	assert.Equal(t, climb.SquareEntrance, squares[0].Type)
	assert.Equal(t, climb.SquareExit, squares[climb.LastSquare].Type)
	assert.Equal(t, climb.SquareNormal, squares[1].Type)
}

func TestSquareAt(t *testing.T) {
	sq, err := climb.SquareAt(32)
	require.NoError(t, err)
	assert.Equal(t, climb.SquareElevatorLanding, sq.Type)
	require.NotNil(t, sq.Floor)
	assert.Equal(t, 2, *sq.Floor)

	_, err = climb.SquareAt(-1)
	assert.Equal(t, climb.KindValidation, climb.KindOf(err))
	_, err = climb.SquareAt(113)
	assert.Equal(t, climb.KindValidation, climb.KindOf(err))
}

func TestSpecialSquares(t *testing.T) {
	special := climb.SpecialSquares()
	assert.Len(t, special, 15)
	for _, sq := range special {
		assert.NotEqual(t, climb.SquareNormal, sq.Type)
	}

	landings := climb.ElevatorLandings()
	assert.Len(t, landings, 6)
	assert.Equal(t, 16, landings[0].Position)
	assert.Equal(t, 97, landings[5].Position)
}

func TestCalculateFloor(t *testing.T) {
	tests := []struct {
		position int
		floor    int
		elevator bool
		exit     bool
	}{
		{0, 0, false, false},
		{15, 0, false, false},
		{16, 1, true, false},
		{47, 2, false, false},
		{80, 5, true, false},
		{96, 5, false, false},
		{97, 6, true, false},
		{112, 6, false, true},
	}

	for _, tt := range tests {
		info, err := climb.CalculateFloor(tt.position)
		require.NoError(t, err)
		assert.Equal(t, tt.floor, info.Floor, "position %d", tt.position)
		assert.Equal(t, tt.elevator, info.IsElevatorLanding, "position %d", tt.position)
		assert.Equal(t, tt.exit, info.IsExit, "position %d", tt.position)
	}

	_, err := climb.CalculateFloor(200)
	assert.Error(t, err)
}
