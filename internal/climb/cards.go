package climb

import (
	"github.com/google/uuid"
)

const (
	CardTypeCount = 21
	CopiesPerType = 5
	DeckSize      = CardTypeCount * CopiesPerType
)

const (
	CardKey        = 1
	CardQuarantine = 12
)

type CardDefinition struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Effect      string `json:"effect"`
	// Counter cards answer another player's card and may be played off-turn.
	Counter bool `json:"counter"`
	Special bool `json:"special"`
}

var cardCatalog = []CardDefinition{
	{1, "Key", "Required to win. Hold this card and reach square 112 (the exit door).", "key", false, false},
	{2, "Special Alarm", "Alarm! Every other player goes back to the entrance. Countered by 'Caught You'.", "alarm_all_to_start", false, true},
	{3, "Caught You", "Counter 'Special Alarm' and stay where you are.", "crash_alarm", true, false},
	{4, "Winged Sneakers", "Multiply your dice roll by 3. Countered by 'Snip'.", "multiply_dice", false, false},
	{5, "Snip", "Counter 'Winged Sneakers'. The rival only multiplies a single die by 3.", "crash_winged_shoes", true, false},
	{6, "Freshly Mopped", "Block a square. Nobody can pass it for one round.", "block_square", false, false},
	{7, "Double Roll", "Roll the dice twice this turn.", "double_roll", false, false},
	{8, "Parcel Delivery", "Pick a player who must go down 2 floors to deliver a parcel.", "go_down_floors", false, false},
	{9, "Crossfitter", "Roll a single die this turn.", "single_dice", false, false},
	{10, "Going Up", "On a floor landing, go up to the next floor and keep playing. Countered by 'Wonderful Neighbour'.", "go_up_floor", false, false},
	{11, "Wonderful Neighbour", "Counter 'Going Up' and cancel the rival's climb.", "crash_go_up", true, false},
	{12, "Special Quarantine", "The building is quarantined. The game ends and nobody wins.", "quarantine_end_game", false, true},
	{13, "Purring Kitten", "Place a cat on a square. Whoever passes rolls a die: 1-3 goes down a landing, 4-6 goes up.", "place_cat", false, false},
	{14, "Party", "Roll a die and everybody heads to that floor. Countered by 'Antisocial'.", "all_to_floor", false, false},
	{15, "Antisocial", "Counter 'Party' and stay on your square.", "crash_party", true, false},
	{16, "Blackout", "The lights go out. Only players with a 'Flashlight' may move on their turn.", "blackout", false, false},
	{17, "Flashlight", "Counter 'Blackout' and keep moving on your turn.", "flashlight", true, false},
	{18, "Tumble", "You trip and fall to the landing below.", "fall_down_landing", false, false},
	{19, "Gossip", "Pick a player: they move to your square and skip a turn.", "gossip", false, false},
	{20, "Swap", "Swap your whole hand with another player's.", "swap_hands", false, false},
	{21, "News", "A news card. No special action.", "none", false, false},
}

// Cards returns the static card catalog ordered by id.
func Cards() []CardDefinition {
	out := make([]CardDefinition, len(cardCatalog))
	copy(out, cardCatalog)
	return out
}

func CardByID(id int) (CardDefinition, error) {
	if id < 1 || id > len(cardCatalog) {
		return CardDefinition{}, ErrCardNotFound
	}
	return cardCatalog[id-1], nil
}

// Deck is a game's draw pile plus its discard pile. The front of DrawPile is
// the next card drawn.
type Deck struct {
	GameID   uuid.UUID `json:"gameId"`
	DrawPile []int     `json:"drawPile"`
	Discard  []int     `json:"discard"`
}

// BuildInitialDeck returns every card type copies times, shuffled with
// Fisher-Yates.
func BuildInitialDeck(r Randomizer, cardTypeCount, copiesPerType int) []int {
	cards := make([]int, 0, cardTypeCount*copiesPerType)
	for id := 1; id <= cardTypeCount; id++ {
		for range copiesPerType {
			cards = append(cards, id)
		}
	}
	Shuffle(r, cards)
	return cards
}

func Shuffle(r Randomizer, cards []int) {
	r.Shuffle(len(cards), func(i, j int) {
		cards[i], cards[j] = cards[j], cards[i]
	})
}

func (d Deck) Count() int {
	return len(d.DrawPile)
}

// Draw pops up to n cards from the front of the draw pile.
func (d *Deck) Draw(n int) []int {
	if n > len(d.DrawPile) {
		n = len(d.DrawPile)
	}
	drawn := make([]int, n)
	copy(drawn, d.DrawPile[:n])
	d.DrawPile = d.DrawPile[n:]
	return drawn
}

// Reshuffle moves the discard pile into the draw pile in random order.
func (d *Deck) Reshuffle(r Randomizer) {
	Shuffle(r, d.Discard)
	d.DrawPile = append(d.DrawPile, d.Discard...)
	d.Discard = []int{}
}

func (d *Deck) DiscardCards(cards ...int) {
	d.Discard = append(d.Discard, cards...)
}
