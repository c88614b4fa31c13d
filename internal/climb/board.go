package climb

import "fmt"

type SquareType string

const (
	SquareNormal          SquareType = "NORMAL"
	SquareEntrance        SquareType = "ENTRANCE"
	SquareLanding         SquareType = "LANDING"
	SquareElevatorLanding SquareType = "ELEVATOR_LANDING"
	SquareExit            SquareType = "EXIT"
)

const LastSquare = 112

type BoardSquare struct {
	Position    int        `json:"position"`
	Type        SquareType `json:"type"`
	Floor       *int       `json:"floor"`
	Description string     `json:"description"`
}

type specialSquare struct {
	kind        SquareType
	floor       int // -1 when the square has no floor
	description string
}

var specialSquares = map[int]specialSquare{
	0:   {SquareEntrance, 0, "Entrance - Ground floor"},
	8:   {SquareLanding, -1, "Mid-floor landing"},
	16:  {SquareElevatorLanding, 1, "Floor 1 landing - Elevator door"},
	24:  {SquareLanding, -1, "Mid-floor landing"},
	32:  {SquareElevatorLanding, 2, "Floor 2 landing - Elevator door"},
	40:  {SquareLanding, -1, "Mid-floor landing"},
	48:  {SquareElevatorLanding, 3, "Floor 3 landing - Elevator door"},
	56:  {SquareLanding, -1, "Mid-floor landing"},
	64:  {SquareElevatorLanding, 4, "Floor 4 landing - Elevator door"},
	72:  {SquareLanding, -1, "Mid-floor landing"},
	80:  {SquareElevatorLanding, 5, "Floor 5 landing - Elevator door"},
	88:  {SquareLanding, -1, "Mid-floor landing"},
	97:  {SquareElevatorLanding, 6, "Floor 6 landing - Elevator door"},
	105: {SquareLanding, -1, "Mid-floor landing"},
	112: {SquareExit, -1, "Exit door - Goal!"},
}

var board = buildBoard()

func buildBoard() []BoardSquare {
	squares := make([]BoardSquare, 0, LastSquare+1)
	for pos := 0; pos <= LastSquare; pos++ {
		sq := BoardSquare{Position: pos, Type: SquareNormal, Description: fmt.Sprintf("Square %d", pos)}
		if special, ok := specialSquares[pos]; ok {
			sq.Type = special.kind
			sq.Description = special.description
			if special.floor >= 0 {
				floor := special.floor
				sq.Floor = &floor
			}
		}
		squares = append(squares, sq)
	}
	return squares
}

// Board returns all squares 0..112 ordered by position.
func Board() []BoardSquare {
	out := make([]BoardSquare, len(board))
	copy(out, board)
	return out
}

func SquareAt(position int) (BoardSquare, error) {
	if position < 0 || position > LastSquare {
		return BoardSquare{}, Validation("Position must be between 0 and 112")
	}
	return board[position], nil
}

// SpecialSquares returns every square that is not NORMAL.
func SpecialSquares() []BoardSquare {
	return filterSquares(func(sq BoardSquare) bool { return sq.Type != SquareNormal })
}

func ElevatorLandings() []BoardSquare {
	return filterSquares(func(sq BoardSquare) bool { return sq.Type == SquareElevatorLanding })
}

func filterSquares(keep func(BoardSquare) bool) []BoardSquare {
	var out []BoardSquare
	for _, sq := range board {
		if keep(sq) {
			out = append(out, sq)
		}
	}
	return out
}

// FloorInfo describes where a position sits in the building.
type FloorInfo struct {
	Position          int  `json:"position"`
	Floor             int  `json:"floor"`
	IsElevatorLanding bool `json:"isElevatorLanding"`
	IsLanding         bool `json:"isLanding"`
	IsExit            bool `json:"isExit"`
}

func CalculateFloor(position int) (FloorInfo, error) {
	sq, err := SquareAt(position)
	if err != nil {
		return FloorInfo{}, err
	}

	var floor int
	switch {
	case position < 16:
		floor = 0
	case position < 32:
		floor = 1
	case position < 48:
		floor = 2
	case position < 64:
		floor = 3
	case position < 80:
		floor = 4
	case position < 97:
		floor = 5
	default:
		floor = 6
	}

	return FloorInfo{
		Position:          position,
		Floor:             floor,
		IsElevatorLanding: sq.Type == SquareElevatorLanding,
		IsLanding:         sq.Type == SquareLanding,
		IsExit:            sq.Type == SquareExit,
	}, nil
}
