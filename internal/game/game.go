package game

import (
	"errors"
	"math/rand"
	"sort"
	"sync"

	"blanks/internal/cards"
)

var (
	ErrNotEnoughPlayers    = errors.New("not enough players")
	ErrWrongStage          = errors.New("wrong stage for action")
	ErrPlayerIsJudge       = errors.New("player is the judge")
	ErrWrongSubmissionSize = errors.New("wrong number of cards")
	ErrAlreadySubmitted    = errors.New("already submitted this round")
	ErrUnknownCardID       = errors.New("card not in hand")
	ErrUnknownChoice       = errors.New("no submission with this fingerprint")
	ErrPlayerNotFound      = errors.New("player not found")
)

// Stage is the round engine's state. All transitions happen inside Game
// operations; nothing outside this package writes a stage.
type Stage string

const (
	StageNotStarted Stage = "NotStarted"
	StageChoosing   Stage = "Choosing"
	StageJudging    Stage = "Judging"
)

// DefaultMaxHandSize is the hand size dealt to every player.
const DefaultMaxHandSize = 10

// voteEndFlag is the ad hoc profile flag carrying a player's end-vote.
const voteEndFlag = "vote_end"

// Game is the round engine: it owns the deck, deals hands, rotates the
// judge, collects and anonymizes submissions, resolves winners and decides
// when a cycle is over. One instance serves one table; operations serialize
// on an internal mutex, so callers may invoke them from any goroutine.
type Game struct {
	mu sync.Mutex

	catalog *cards.Catalog

	stage        Stage
	players      map[string]*Player
	order        []string // join order
	deck         *cards.Deck
	activePrompt *cards.Card
	judge        *Player
	judgeHistory []string
	maxHandSize  int
}

// RoundInfo is what a freshly dealt round looks like to the transport layer.
type RoundInfo struct {
	Judge  *Player
	Prompt cards.Card
	Others []*Player
}

// Submission is one anonymized entry of the judging view. Fingerprint is the
// only handle the judge gets; it carries no player identity.
type Submission struct {
	Fingerprint string       `json:"fingerprint"`
	Cards       []cards.Card `json:"cards"`
}

// Standing is one row of the end-of-cycle table.
type Standing struct {
	Score int    `json:"score"`
	Nick  string `json:"nickname"`
}

// Summary is the id-free per-player view broadcast to all clients. ID is
// kept for the transport layer to resolve presence but never serialized.
type Summary struct {
	ID           string `json:"-"`
	Nick         string `json:"nickname"`
	Avatar       string `json:"avatar"`
	Score        int    `json:"score"`
	IsJudge      bool   `json:"isJudge"`
	HasSubmitted bool   `json:"hasSubmitted"`
	Disconnected bool   `json:"disconnected"`
}

// RejoinInfo restores a reconnecting player's view of an in-progress round.
type RejoinInfo struct {
	IsJudge bool
	Prompt  *cards.Card
	Hand    []cards.Card
	Choices []Submission // only set while judging
}

func New(catalog *cards.Catalog, maxHandSize int) *Game {
	if maxHandSize <= 0 {
		maxHandSize = DefaultMaxHandSize
	}
	return &Game{
		catalog:     catalog,
		stage:       StageNotStarted,
		players:     make(map[string]*Player),
		maxHandSize: maxHandSize,
	}
}

// Stage returns the current stage.
func (g *Game) Stage() Stage {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stage
}

// IsJudge reports whether id is the current round's judge.
func (g *Game) IsJudge(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.players[id]
	return ok && p.IsJudge
}

// HasPlayer reports whether id belongs to a current player.
func (g *Game) HasPlayer(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.players[id]
	return ok
}

// AddPlayer inserts a new player at the end of the join order and returns
// true, or replaces an existing record (reconnect with fresh metadata) and
// returns false. Past NotStarted the player is dealt a hand immediately so
// they can play the very next round.
func (g *Game) AddPlayer(id string, profile Profile) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	p := newPlayer(id, profile)
	_, existing := g.players[id]
	g.players[id] = p
	if !existing {
		g.order = append(g.order, id)
	}
	if g.stage != StageNotStarted {
		g.topUp(p)
	}
	return !existing
}

// StartGame builds a fresh deck from the selected packs and moves the table
// into its first cycle. The stage and player-count preconditions leave the
// game untouched on failure.
func (g *Game) StartGame(packKeys []string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.stage != StageNotStarted {
		return ErrWrongStage
	}
	if len(g.players) < 2 {
		return ErrNotEnoughPlayers
	}

	deck, err := cards.NewDeck(g.catalog, packKeys, len(g.players)*g.maxHandSize)
	if err != nil {
		return err
	}

	g.deck = deck
	for _, p := range g.players {
		p.resetForNewGame()
	}
	g.judge = nil
	g.judgeHistory = nil
	g.activePrompt = nil
	g.stage = StageChoosing
	return nil
}

// StartRound deals the next round: hands are topped up, the judge rotates,
// a new prompt is revealed. When the deck cannot supply another round the
// cycle ends instead and the final standings are returned in place of the
// round.
func (g *Game) StartRound() (*RoundInfo, []Standing, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.stage == StageNotStarted {
		return nil, nil, ErrWrongStage
	}

	if !g.deck.CanDealRound(len(g.players), g.maxHandSize) {
		return nil, g.endLocked(), nil
	}

	for _, id := range g.order {
		p := g.players[id]
		p.resetForNewRound()
		g.topUp(p)
	}

	judge := g.pickJudge()
	judge.IsJudge = true
	g.judge = judge
	g.judgeHistory = append(g.judgeHistory, judge.ID)

	prompt, err := g.deck.DrawPrompt()
	if err != nil {
		return nil, nil, err
	}
	g.activePrompt = &prompt
	g.stage = StageChoosing

	others := make([]*Player, 0, len(g.order)-1)
	for _, id := range g.order {
		if id != judge.ID {
			others = append(others, g.players[id])
		}
	}
	return &RoundInfo{Judge: judge, Prompt: prompt, Others: others}, nil, nil
}

// pickJudge draws uniformly from the players who have not judged this cycle,
// clearing the history first once everyone has had a turn. Round-robin fair,
// randomized within each cycle.
func (g *Game) pickJudge() *Player {
	judged := make(map[string]bool, len(g.judgeHistory))
	for _, id := range g.judgeHistory {
		judged[id] = true
	}

	pool := make([]*Player, 0, len(g.order))
	for _, id := range g.order {
		if !judged[id] {
			pool = append(pool, g.players[id])
		}
	}
	if len(pool) == 0 {
		g.judgeHistory = nil
		for _, id := range g.order {
			pool = append(pool, g.players[id])
		}
	}
	return pool[rand.Intn(len(pool))]
}

func (g *Game) topUp(p *Player) {
	for len(p.hand) < g.maxHandSize {
		c, err := g.deck.DrawResponse()
		if err != nil {
			break
		}
		p.hand = append(p.hand, c)
	}
}

// SubmitChoice delegates to the player's submission logic using the active
// prompt's pick count. It returns true once every non-judge player is in,
// at which point the stage flips to Judging.
func (g *Game) SubmitChoice(playerID string, cardIDs []int) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.stage != StageChoosing {
		return false, ErrWrongStage
	}
	if g.activePrompt == nil {
		// StartGame opens choosing before the first round is dealt.
		return false, ErrWrongStage
	}
	p, ok := g.players[playerID]
	if !ok {
		return false, ErrPlayerNotFound
	}
	if err := p.submit(cardIDs, g.activePrompt.Pick); err != nil {
		return false, err
	}

	if g.everyoneSubmitted() {
		g.stage = StageJudging
		return true, nil
	}
	return false, nil
}

func (g *Game) everyoneSubmitted() bool {
	for _, p := range g.players {
		if p.IsJudge {
			continue
		}
		if !p.HasSubmitted() {
			return false
		}
	}
	return true
}

// RevealSubmissions returns the anonymized judging view: every non-judge
// submission, ordered by fingerprint. The order is stable within a round and
// carries no information about who submitted what or when.
func (g *Game) RevealSubmissions() ([]Submission, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.stage != StageJudging {
		return nil, ErrWrongStage
	}
	return g.choicesLocked(), nil
}

func (g *Game) choicesLocked() []Submission {
	out := make([]Submission, 0, len(g.players))
	for _, id := range g.order {
		p := g.players[id]
		if p.IsJudge || !p.HasSubmitted() {
			continue
		}
		sub := make([]cards.Card, len(p.submission))
		copy(sub, p.submission)
		out = append(out, Submission{Fingerprint: p.fingerprint(), Cards: sub})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Fingerprint < out[j].Fingerprint })
	return out
}

// ChooseWinner awards a point to the player whose submission matches the
// given fingerprint. It does not advance the round; callers start the next
// round or end the game.
func (g *Game) ChooseWinner(fingerprint string) (*Player, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.stage != StageJudging {
		return nil, ErrWrongStage
	}
	for _, id := range g.order {
		p := g.players[id]
		if p.IsJudge || !p.HasSubmitted() {
			continue
		}
		if p.fingerprint() == fingerprint {
			p.Score++
			return p, nil
		}
	}
	return nil, ErrUnknownChoice
}

// EndGame closes the cycle: it returns the final standings sorted by score
// descending (ties keep join order), resets every player and puts the table
// back to NotStarted.
func (g *Game) EndGame() []Standing {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.endLocked()
}

func (g *Game) endLocked() []Standing {
	standings := make([]Standing, 0, len(g.order))
	for _, id := range g.order {
		p := g.players[id]
		standings = append(standings, Standing{Score: p.Score, Nick: p.Profile.Nick})
	}
	sort.SliceStable(standings, func(i, j int) bool { return standings[i].Score > standings[j].Score })

	for _, p := range g.players {
		p.resetForNewGame()
		delete(p.Profile.Flags, voteEndFlag)
	}
	g.stage = StageNotStarted
	g.judge = nil
	g.judgeHistory = nil
	g.activePrompt = nil
	g.deck = nil
	return standings
}

// VoteEnd records a player's vote to stop the game and reports the tally.
// The caller ends the game once the vote is unanimous.
func (g *Game) VoteEnd(playerID string, vote bool) (votesFor, total int, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.stage == StageNotStarted {
		return 0, 0, ErrWrongStage
	}
	p, ok := g.players[playerID]
	if !ok {
		return 0, 0, ErrPlayerNotFound
	}
	p.Profile.Flags[voteEndFlag] = vote

	for _, q := range g.players {
		if q.Profile.Flags[voteEndFlag] {
			votesFor++
		}
	}
	return votesFor, len(g.players), nil
}

// SetNick updates a player's display name in place.
func (g *Game) SetNick(playerID, nick string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.players[playerID]
	if ok {
		p.Profile.Nick = nick
	}
	return ok
}

// SetAvatar updates a player's avatar in place.
func (g *Game) SetAvatar(playerID, avatar string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.players[playerID]
	if ok {
		p.Profile.Avatar = avatar
	}
	return ok
}

// PlayerSummaries returns the broadcastable per-player view in join order.
func (g *Game) PlayerSummaries() []Summary {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]Summary, 0, len(g.order))
	for _, id := range g.order {
		p := g.players[id]
		out = append(out, Summary{
			ID:           p.ID,
			Nick:         p.Profile.Nick,
			Avatar:       p.Profile.Avatar,
			Score:        p.Score,
			IsJudge:      p.IsJudge,
			HasSubmitted: p.HasSubmitted(),
		})
	}
	return out
}

// Rejoin rebuilds a reconnecting player's view of the current round.
func (g *Game) Rejoin(playerID string) (*RejoinInfo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	p, ok := g.players[playerID]
	if !ok {
		return nil, ErrPlayerNotFound
	}

	info := &RejoinInfo{IsJudge: p.IsJudge, Prompt: g.activePrompt, Hand: p.Hand()}
	if g.stage == StageJudging {
		info.Choices = g.choicesLocked()
	}
	return info, nil
}
