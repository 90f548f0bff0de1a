// Package httpapi carries the HTTP side of the transport: identity cookies,
// game control routes and profile editing. Route semantics follow the
// socket broadcasts in internal/ws; the engine itself stays transport
// agnostic.
package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	qrcode "github.com/skip2/go-qrcode"

	"blanks/internal/avatar"
	"blanks/internal/cards"
	"blanks/internal/game"
	"blanks/internal/users"
)

const cookieName = "id"

// UserStore is the slice of the identity store the routes need. Kept as an
// interface so handler tests can run against an in-memory fake.
type UserStore interface {
	Get(ctx context.Context, id string) (users.User, error)
	Create(ctx context.Context) (users.User, error)
	UpdateNick(ctx context.Context, id, nick string) error
	UpdateAvatar(ctx context.Context, id, avatar string) error
}

// Broadcaster fans engine outputs out to connected clients. Implemented by
// ws.Server.
type Broadcaster interface {
	BroadcastPlayers()
	BroadcastNewRound(round *game.RoundInfo)
	BroadcastChoices(subs []game.Submission)
	BroadcastEnd(standings []game.Standing)
	BroadcastVoteEnd(votesFor, total int)
}

// API bundles the collaborators every route handler needs.
type API struct {
	Game    *game.Game
	Users   UserStore
	WS      Broadcaster
	Catalog *cards.Catalog
	Domain  string // cookie domain, may be empty
	BaseURL string // public address, used for the join QR code
}

// Register mounts all game and profile routes on r.
func (a *API) Register(r *gin.Engine) {
	r.GET("/api/session", a.handleSession)
	r.POST("/start", a.handleStart)
	r.POST("/submit_cards", a.handleSubmitCards)
	r.POST("/judge_decision", a.handleJudgeDecision)
	r.PUT("/vote_end", a.handleVoteEnd)
	r.GET("/change_nick", a.handleChangeNick)
	r.POST("/change_avatar", a.handleChangeAvatar)
	r.GET("/qr", a.handleQR)
}

// ensureUser resolves the identity cookie, minting a fresh user and cookie
// when the browser shows up without one.
func (a *API) ensureUser(c *gin.Context) (users.User, error) {
	if id, err := c.Cookie(cookieName); err == nil {
		if u, err := a.Users.Get(c.Request.Context(), id); err == nil {
			return u, nil
		}
	}

	u, err := a.Users.Create(c.Request.Context())
	if err != nil {
		return users.User{}, err
	}
	c.SetCookie(cookieName, u.ID, 0, "/", a.Domain, false, false)
	log.Info().Str("id", u.ID).Str("nick", u.Nick).Msg("new user")
	return u, nil
}

// loggedIn resolves the cookie against the store without creating anything.
// Browsers without a valid identity are bounced to / where one is issued.
func (a *API) loggedIn(c *gin.Context) (users.User, bool) {
	id, err := c.Cookie(cookieName)
	if err != nil {
		c.Redirect(http.StatusFound, "/")
		return users.User{}, false
	}
	u, err := a.Users.Get(c.Request.Context(), id)
	if err != nil {
		c.Redirect(http.StatusFound, "/")
		return users.User{}, false
	}
	return u, true
}

func (a *API) handleSession(c *gin.Context) {
	u, err := a.ensureUser(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create user"})
		return
	}

	packs := make([]cards.Pack, 0, len(a.Catalog.Packs))
	for _, p := range a.Catalog.Packs {
		packs = append(packs, p)
	}
	sort.Slice(packs, func(i, j int) bool { return packs[i].Key < packs[j].Key })

	c.JSON(http.StatusOK, gin.H{
		"nickname": u.Nick,
		"avatar":   u.Avatar,
		"stage":    a.Game.Stage(),
		"inGame":   a.Game.HasPlayer(u.ID),
		"packs":    packs,
	})
}

func (a *API) handleStart(c *gin.Context) {
	if _, ok := a.loggedIn(c); !ok {
		return
	}

	var packKeys []string
	if err := c.BindJSON(&packKeys); err != nil {
		c.String(http.StatusBadRequest, "invalid pack selection")
		return
	}

	if err := a.Game.StartGame(packKeys); err != nil {
		switch {
		case errors.Is(err, game.ErrWrongStage):
			c.String(http.StatusMethodNotAllowed, "Game already started")
		case errors.Is(err, game.ErrNotEnoughPlayers):
			c.String(http.StatusMethodNotAllowed, "Not enough players")
		case errors.Is(err, cards.ErrNotEnoughCards):
			c.String(http.StatusMethodNotAllowed, "Chosen packs don't contain enough cards")
		default:
			c.String(http.StatusInternalServerError, err.Error())
		}
		return
	}

	round, _, err := a.Game.StartRound()
	if err != nil {
		c.String(http.StatusInternalServerError, err.Error())
		return
	}
	log.Info().Strs("packs", packKeys).Str("judge", round.Judge.Profile.Nick).Msg("game started")

	a.WS.BroadcastNewRound(round)
	a.WS.BroadcastPlayers()
	c.Status(http.StatusOK)
}

func (a *API) handleSubmitCards(c *gin.Context) {
	u, ok := a.loggedIn(c)
	if !ok {
		return
	}

	var cardIDs []int
	if err := c.BindJSON(&cardIDs); err != nil {
		c.String(http.StatusBadRequest, "invalid card list")
		return
	}

	allIn, err := a.Game.SubmitChoice(u.ID, cardIDs)
	if err != nil {
		switch {
		case errors.Is(err, game.ErrWrongStage):
			c.String(http.StatusMethodNotAllowed, "Not accepting submissions")
		case errors.Is(err, game.ErrPlayerNotFound):
			c.String(http.StatusMethodNotAllowed, "Not a player in this game")
		case errors.Is(err, game.ErrPlayerIsJudge):
			c.String(http.StatusMethodNotAllowed, "User is judge")
		case errors.Is(err, game.ErrAlreadySubmitted):
			c.String(http.StatusMethodNotAllowed, "Already chose")
		case errors.Is(err, game.ErrWrongSubmissionSize):
			c.String(http.StatusBadRequest, "Wrong number of cards")
		case errors.Is(err, game.ErrUnknownCardID):
			c.String(http.StatusBadRequest, "Card not in hand")
		default:
			c.String(http.StatusInternalServerError, err.Error())
		}
		return
	}

	if allIn {
		subs, err := a.Game.RevealSubmissions()
		if err == nil {
			a.WS.BroadcastChoices(subs)
		}
	}
	a.WS.BroadcastPlayers()
	c.Status(http.StatusOK)
}

func (a *API) handleJudgeDecision(c *gin.Context) {
	u, ok := a.loggedIn(c)
	if !ok {
		return
	}
	if !a.Game.IsJudge(u.ID) {
		c.String(http.StatusMethodNotAllowed, "User is not the judge")
		return
	}

	var body struct {
		Decision string `json:"decision"`
	}
	if err := c.BindJSON(&body); err != nil {
		c.String(http.StatusBadRequest, "invalid decision")
		return
	}

	winner, err := a.Game.ChooseWinner(body.Decision)
	if err != nil {
		switch {
		case errors.Is(err, game.ErrWrongStage):
			c.String(http.StatusMethodNotAllowed, "Cannot choose winner during card picking")
		case errors.Is(err, game.ErrUnknownChoice):
			c.String(http.StatusBadRequest, "No submission with this fingerprint")
		default:
			c.String(http.StatusInternalServerError, err.Error())
		}
		return
	}
	log.Info().Str("winner", winner.Profile.Nick).Int("score", winner.Score).Msg("round won")

	round, standings, err := a.Game.StartRound()
	if err != nil {
		c.String(http.StatusInternalServerError, err.Error())
		return
	}
	if standings != nil {
		// Deck exhausted: the cycle is over.
		a.WS.BroadcastEnd(standings)
		a.WS.BroadcastPlayers()
		c.Status(http.StatusOK)
		return
	}

	a.WS.BroadcastNewRound(round)
	a.WS.BroadcastPlayers()
	c.Status(http.StatusOK)
}

func (a *API) handleVoteEnd(c *gin.Context) {
	u, ok := a.loggedIn(c)
	if !ok {
		return
	}

	// An empty body counts as a vote in favor.
	body := struct {
		Vote *bool `json:"vote"`
	}{}
	if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		c.String(http.StatusBadRequest, "invalid vote")
		return
	}
	vote := true
	if body.Vote != nil {
		vote = *body.Vote
	}

	votesFor, total, err := a.Game.VoteEnd(u.ID, vote)
	if err != nil {
		switch {
		case errors.Is(err, game.ErrWrongStage):
			c.String(http.StatusMethodNotAllowed, "Game not started")
		case errors.Is(err, game.ErrPlayerNotFound):
			c.String(http.StatusMethodNotAllowed, "Non players cannot vote")
		default:
			c.String(http.StatusInternalServerError, err.Error())
		}
		return
	}

	if votesFor == total {
		standings := a.Game.EndGame()
		log.Info().Int("players", total).Msg("game ended by unanimous vote")
		a.WS.BroadcastEnd(standings)
	} else {
		a.WS.BroadcastVoteEnd(votesFor, total)
	}
	a.WS.BroadcastPlayers()
	c.Status(http.StatusOK)
}

func (a *API) handleChangeNick(c *gin.Context) {
	u, ok := a.loggedIn(c)
	if !ok {
		return
	}

	nick, okParam := c.GetQuery("n")
	if !okParam {
		c.String(http.StatusBadRequest, "No n parameter in request")
		return
	}

	if err := a.Users.UpdateNick(c.Request.Context(), u.ID, nick); err != nil {
		switch {
		case errors.Is(err, users.ErrNickTaken):
			c.String(http.StatusConflict, err.Error())
		case errors.Is(err, users.ErrNickTooLong),
			errors.Is(err, users.ErrNickReserved),
			errors.Is(err, users.ErrNickInvalid):
			c.String(http.StatusBadRequest, err.Error())
		default:
			c.String(http.StatusInternalServerError, err.Error())
		}
		return
	}

	if a.Game.SetNick(u.ID, nick) {
		a.WS.BroadcastPlayers()
	}
	c.Status(http.StatusOK)
}

func (a *API) handleChangeAvatar(c *gin.Context) {
	u, ok := a.loggedIn(c)
	if !ok {
		return
	}

	var body struct {
		Avatar string `json:"avatar"`
	}
	if err := c.BindJSON(&body); err != nil {
		c.String(http.StatusBadRequest, "invalid avatar payload")
		return
	}

	small, err := avatar.Downscale(body.Avatar)
	if err != nil {
		c.String(http.StatusBadRequest, "could not process image")
		return
	}
	if err := a.Users.UpdateAvatar(c.Request.Context(), u.ID, small); err != nil {
		c.String(http.StatusInternalServerError, err.Error())
		return
	}

	if a.Game.SetAvatar(u.ID, small) {
		a.WS.BroadcastPlayers()
	}
	c.String(http.StatusOK, small)
}

// handleQR renders the join address as a QR code so players on the same
// network can scan their way in.
func (a *API) handleQR(c *gin.Context) {
	png, err := qrcode.Encode(a.BaseURL, qrcode.Medium, 256)
	if err != nil {
		c.String(http.StatusInternalServerError, "could not generate QR code")
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}
