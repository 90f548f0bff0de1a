package cards

import (
	"fmt"
	"math/rand"
)

// Deck holds the two shuffled draw piles for one game instance. Cards are
// copied out of the catalog at build time, so attaching pack details on draw
// never touches the catalog.
type Deck struct {
	packs     map[string]Pack
	prompts   []Card
	responses []Card
}

// NewDeck filters the catalog down to the selected packs and shuffles the
// two piles independently. minResponses is the number of response cards the
// first round will need (player count times max hand size); fewer than that,
// or an empty prompt pile, fails with ErrNotEnoughCards.
func NewDeck(cat *Catalog, packKeys []string, minResponses int) (*Deck, error) {
	selected := make(map[string]bool, len(packKeys))
	for _, k := range packKeys {
		selected[k] = true
	}

	d := &Deck{packs: cat.Packs}
	for _, c := range cat.Prompts {
		if selected[c.Watermark] {
			d.prompts = append(d.prompts, c)
		}
	}
	for _, c := range cat.Responses {
		if selected[c.Watermark] {
			d.responses = append(d.responses, c)
		}
	}

	if len(d.prompts) == 0 {
		return nil, fmt.Errorf("%w: selected packs contain no prompt cards", ErrNotEnoughCards)
	}
	if len(d.responses) < minResponses {
		return nil, fmt.Errorf("%w: selected packs contain %d response cards, need %d",
			ErrNotEnoughCards, len(d.responses), minResponses)
	}

	rand.Shuffle(len(d.prompts), func(i, j int) {
		d.prompts[i], d.prompts[j] = d.prompts[j], d.prompts[i]
	})
	rand.Shuffle(len(d.responses), func(i, j int) {
		d.responses[i], d.responses[j] = d.responses[j], d.responses[i]
	})

	return d, nil
}

// DrawPrompt pops the top prompt card and attaches its resolved pack.
// Callers check CanDealRound first; drawing from an empty pile is an error,
// not a retry.
func (d *Deck) DrawPrompt() (Card, error) {
	if len(d.prompts) == 0 {
		return Card{}, fmt.Errorf("%w: prompt pile", ErrDeckExhausted)
	}
	c := d.prompts[len(d.prompts)-1]
	d.prompts = d.prompts[:len(d.prompts)-1]
	d.attachPack(&c)
	return c, nil
}

// DrawResponse pops the top response card and attaches its resolved pack.
func (d *Deck) DrawResponse() (Card, error) {
	if len(d.responses) == 0 {
		return Card{}, fmt.Errorf("%w: response pile", ErrDeckExhausted)
	}
	c := d.responses[len(d.responses)-1]
	d.responses = d.responses[:len(d.responses)-1]
	d.attachPack(&c)
	return c, nil
}

// CanDealRound is the sole exhaustion predicate: true iff another full round
// can be dealt to playerCount players with hands of maxHandSize.
func (d *Deck) CanDealRound(playerCount, maxHandSize int) bool {
	return len(d.prompts) > 0 && len(d.responses) >= playerCount*maxHandSize
}

// PromptsLeft reports the remaining prompt pile size.
func (d *Deck) PromptsLeft() int { return len(d.prompts) }

// ResponsesLeft reports the remaining response pile size.
func (d *Deck) ResponsesLeft() int { return len(d.responses) }

func (d *Deck) attachPack(c *Card) {
	if p, ok := d.packs[c.Watermark]; ok {
		pc := p
		c.Pack = &pc
	}
}
