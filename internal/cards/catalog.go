package cards

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrBadCards       = errors.New("bad card definitions")
	ErrNotEnoughCards = errors.New("not enough cards")
	ErrDeckExhausted  = errors.New("deck exhausted")
)

// DefaultIcon is used for packs that ship without one.
const DefaultIcon = "/favicon.ico"

// Pack identifies the provenance of a card. Packs are selected or excluded
// as a whole when a game starts.
type Pack struct {
	Key  string `json:"key"`
	Name string `json:"name"`
	Icon string `json:"icon"`
}

// Card is a single prompt ("black") or response ("white") card. Draw and
// Pick are only meaningful on prompt cards. Pack is nil while the card sits
// in the catalog and is attached when the card is drawn from a deck.
type Card struct {
	ID        int    `json:"id"`
	Text      string `json:"text"`
	Watermark string `json:"watermark"`
	Pack      *Pack  `json:"pack,omitempty"`
	Draw      int    `json:"draw,omitempty"`
	Pick      int    `json:"pick,omitempty"`
}

// Catalog is the validated, immutable set of cards and packs loaded once at
// startup. Card ids are unique across both kinds for the lifetime of one
// catalog instance.
type Catalog struct {
	Packs     map[string]Pack
	Prompts   []Card
	Responses []Card
}

// rawFile mirrors the cards.json layout. Pointer fields distinguish absent
// from zero so validation can report missing fields precisely; a field of
// the wrong JSON type fails the unmarshal itself.
type rawFile struct {
	Packs map[string]rawPack `json:"packs"`
	Black []rawCard          `json:"black"`
	White []rawCard          `json:"white"`
}

type rawPack struct {
	Name *string `json:"name"`
	Icon *string `json:"icon"`
}

type rawCard struct {
	Text      *string `json:"text"`
	Watermark *string `json:"watermark"`
	Draw      *int    `json:"draw"`
	Pick      *int    `json:"pick"`
}

// Load parses and validates raw card definitions and assigns each card a
// process-unique integer id in a single monotonic pass, prompt cards first.
// All failures wrap ErrBadCards; no partially built catalog is returned.
func Load(raw []byte) (*Catalog, error) {
	var f rawFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadCards, err)
	}

	packs := make(map[string]Pack, len(f.Packs))
	for key, p := range f.Packs {
		if p.Name == nil {
			return nil, fmt.Errorf("%w: pack %q has no name", ErrBadCards, key)
		}
		icon := DefaultIcon
		if p.Icon != nil {
			icon = *p.Icon
		}
		packs[key] = Pack{Key: key, Name: *p.Name, Icon: icon}
	}

	cat := &Catalog{
		Packs:     packs,
		Prompts:   make([]Card, 0, len(f.Black)),
		Responses: make([]Card, 0, len(f.White)),
	}

	nextID := 0
	for i, c := range f.Black {
		card, err := validateCard(c, packs, fmt.Sprintf("black card %d", i))
		if err != nil {
			return nil, err
		}
		card.Pick = 1
		if c.Pick != nil {
			if *c.Pick < 1 {
				return nil, fmt.Errorf("%w: black card %d has pick %d", ErrBadCards, i, *c.Pick)
			}
			card.Pick = *c.Pick
		}
		if c.Draw != nil {
			if *c.Draw < 0 {
				return nil, fmt.Errorf("%w: black card %d has draw %d", ErrBadCards, i, *c.Draw)
			}
			card.Draw = *c.Draw
		}
		card.ID = nextID
		nextID++
		cat.Prompts = append(cat.Prompts, card)
	}

	for i, c := range f.White {
		card, err := validateCard(c, packs, fmt.Sprintf("white card %d", i))
		if err != nil {
			return nil, err
		}
		card.ID = nextID
		nextID++
		cat.Responses = append(cat.Responses, card)
	}

	return cat, nil
}

func validateCard(c rawCard, packs map[string]Pack, what string) (Card, error) {
	if c.Text == nil {
		return Card{}, fmt.Errorf("%w: %s has no text", ErrBadCards, what)
	}
	if c.Watermark == nil {
		return Card{}, fmt.Errorf("%w: %s has no watermark", ErrBadCards, what)
	}
	if _, ok := packs[*c.Watermark]; !ok {
		return Card{}, fmt.Errorf("%w: %s references unknown pack %q", ErrBadCards, what, *c.Watermark)
	}
	return Card{Text: *c.Text, Watermark: *c.Watermark}, nil
}

// Merge overlays custom card definitions onto base before loading. Overlay
// pack keys get a "C-" prefix so they can never shadow a built-in pack, and
// overlay card watermarks are rewritten to match. Both arguments must be the
// raw cards.json shape; the merged document is returned re-encoded.
func Merge(base, overlay []byte) ([]byte, error) {
	var b, o rawFile
	if err := json.Unmarshal(base, &b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadCards, err)
	}
	if err := json.Unmarshal(overlay, &o); err != nil {
		return nil, fmt.Errorf("%w: custom cards: %v", ErrBadCards, err)
	}

	if b.Packs == nil {
		b.Packs = make(map[string]rawPack)
	}
	for key, p := range o.Packs {
		b.Packs["C-"+key] = p
	}
	for _, c := range o.Black {
		if c.Watermark != nil {
			wm := "C-" + *c.Watermark
			c.Watermark = &wm
		}
		b.Black = append(b.Black, c)
	}
	for _, c := range o.White {
		if c.Watermark != nil {
			wm := "C-" + *c.Watermark
			c.Watermark = &wm
		}
		b.White = append(b.White, c)
	}

	return json.Marshal(b)
}
