package engine

// TileEffect is the effect attached to a special tile
type TileEffect string

const (
	TileAdvance2   TileEffect = "advance_2"
	TileRetreat3   TileEffect = "retreat_3"
	TileSkipTurn   TileEffect = "skip_turn"
	TileSwapRandom TileEffect = "swap_random"
	TileDrawCard   TileEffect = "draw_card"
)

// specialTiles maps zero-based board positions to their effect. Read-only.
var specialTiles = map[int]TileEffect{
	5:  TileAdvance2,
	10: TileRetreat3,
	15: TileSkipTurn,
	20: TileSwapRandom,
	25: TileDrawCard,
}

// SpecialTiles returns a copy of the special-tile table
func SpecialTiles() map[int]TileEffect {
	tiles := make(map[int]TileEffect, len(specialTiles))
	for pos, effect := range specialTiles {
		tiles[pos] = effect
	}
	return tiles
}

// LookupTile returns the effect at position, if any
func LookupTile(position int) (TileEffect, bool) {
	effect, ok := specialTiles[position]
	return effect, ok
}

// Valid reports whether t is one of the known effects
func (t TileEffect) Valid() bool {
	switch t {
	case TileAdvance2, TileRetreat3, TileSkipTurn, TileSwapRandom, TileDrawCard:
		return true
	}
	return false
}

// DisplayName returns the label shown to players
func (t TileEffect) DisplayName() string {
	switch t {
	case TileAdvance2:
		return "Advance 2 tiles"
	case TileRetreat3:
		return "Go back 3 tiles"
	case TileSkipTurn:
		return "Lose the next turn"
	case TileSwapRandom:
		return "Swap places"
	case TileDrawCard:
		return "Draw a card"
	default:
		return string(t)
	}
}

// clampPosition keeps a position on the board
func clampPosition(position int) int {
	return max(0, min(position, GoalTile))
}
