package game

import (
	"sort"
	"strconv"
	"strings"

	"blanks/internal/cards"
)

// Profile is the slice of the external identity record the game carries
// around for broadcasts. The engine never validates or persists it. Flags
// holds truly ad hoc per-game markers, currently only the end-vote.
type Profile struct {
	Nick   string          `json:"nick"`
	Avatar string          `json:"avatar"`
	Flags  map[string]bool `json:"-"`
}

// Player is one participant's mutable state for the lifetime of the session.
// A player record is created on join and reused on rejoin; it is never
// destroyed while the session is open.
type Player struct {
	ID      string
	Profile Profile
	IsJudge bool
	Score   int

	hand       []cards.Card
	submission []cards.Card
}

func newPlayer(id string, profile Profile) *Player {
	if profile.Flags == nil {
		profile.Flags = make(map[string]bool)
	}
	return &Player{ID: id, Profile: profile}
}

// Hand returns a copy of the player's current hand in deal order.
func (p *Player) Hand() []cards.Card {
	out := make([]cards.Card, len(p.hand))
	copy(out, p.hand)
	return out
}

// HasSubmitted reports whether the player has a submission this round.
func (p *Player) HasSubmitted() bool { return len(p.submission) > 0 }

// submit moves the requested cards from the hand to the submission, in the
// order the caller listed them. The move is atomic: if any id is not in the
// hand, nothing is removed. The remaining hand keeps its relative order.
func (p *Player) submit(cardIDs []int, required int) error {
	if p.IsJudge {
		return ErrPlayerIsJudge
	}
	if p.HasSubmitted() {
		return ErrAlreadySubmitted
	}
	if len(cardIDs) != required {
		return ErrWrongSubmissionSize
	}

	byID := make(map[int]cards.Card, len(p.hand))
	for _, c := range p.hand {
		byID[c.ID] = c
	}

	taken := make(map[int]bool, len(cardIDs))
	chosen := make([]cards.Card, 0, len(cardIDs))
	for _, id := range cardIDs {
		c, ok := byID[id]
		if !ok || taken[id] {
			return ErrUnknownCardID
		}
		taken[id] = true
		chosen = append(chosen, c)
	}

	rest := p.hand[:0]
	for _, c := range p.hand {
		if !taken[c.ID] {
			rest = append(rest, c)
		}
	}
	p.hand = rest
	p.submission = chosen
	return nil
}

func (p *Player) resetForNewRound() {
	p.submission = nil
	p.IsJudge = false
}

func (p *Player) resetForNewGame() {
	p.resetForNewRound()
	p.hand = nil
	p.Score = 0
}

// Fingerprint derives the anonymizing identifier of a submission from its
// card ids: ids sorted ascending and joined with "-". It is total and
// order-independent, and collision-free within a round because no card id
// is ever dealt twice.
func Fingerprint(ids []int) string {
	sorted := make([]int, len(ids))
	copy(sorted, ids)
	sort.Ints(sorted)

	parts := make([]string, len(sorted))
	for i, id := range sorted {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, "-")
}

func (p *Player) fingerprint() string {
	ids := make([]int, len(p.submission))
	for i, c := range p.submission {
		ids[i] = c.ID
	}
	return Fingerprint(ids)
}
