package ws

import (
	"context"
	"sync"

	"github.com/gin-gonic/gin"
	socketio "github.com/googollee/go-socket.io"
	"github.com/rs/zerolog/log"

	"blanks/internal/game"
)

// roomAll is the room every authenticated connection joins; broadcasts that
// concern the whole table go there. Each player additionally joins a room
// named after their id so round payloads stay private.
const roomAll = "table"

// ConnCtx is the per-connection state: which player, if any, this socket
// authenticated as.
type ConnCtx struct {
	PlayerID string
}

// Directory resolves opaque identity tokens to profiles. Implemented by the
// users store.
type Directory interface {
	Lookup(ctx context.Context, id string) (game.Profile, error)
}

// Server owns the socket.io side of the transport: it authenticates
// connections against the identity directory, feeds joins into the engine
// and fans engine outputs back out to clients.
type Server struct {
	Game *game.Game
	Dir  Directory

	io *socketio.Server

	mu        sync.Mutex
	bySID     map[string]string // socket id -> player id
	connected map[string]int    // player id -> live connection count
}

func New(g *game.Game, dir Directory) *Server {
	return &Server{
		Game:      g,
		Dir:       dir,
		bySID:     make(map[string]string),
		connected: make(map[string]int),
	}
}

// Mount attaches the socket.io server with handlers to the given Gin engine.
func (srv *Server) Mount(r *gin.Engine) *socketio.Server {
	io := socketio.NewServer(nil)
	srv.io = io

	io.OnConnect("/", func(s socketio.Conn) error {
		s.SetContext(&ConnCtx{})
		log.Info().Str("sid", s.ID()).Msg("socket connected")
		return nil
	})

	// join_game: the client presents its cookie token. Mid-game, known
	// players get their round state back and strangers are turned away.
	io.OnEvent("/", "join_game", func(s socketio.Conn, id string) {
		profile, err := srv.Dir.Lookup(context.Background(), id)
		if err != nil {
			log.Warn().Str("sid", s.ID()).Str("id", id).Msg("join with unknown id")
			return
		}

		if srv.Game.Stage() != game.StageNotStarted {
			info, err := srv.Game.Rejoin(id)
			if err != nil {
				log.Info().Str("sid", s.ID()).Msg("stranger to a running game, disconnecting")
				s.Close()
				return
			}
			s.SetContext(&ConnCtx{PlayerID: id})
			s.Join(roomAll)
			s.Join(id)
			srv.track(s.ID(), id)
			s.Emit("rejoin", rejoinPayload(info))
			log.Info().Str("sid", s.ID()).Str("playerId", id).Msg("rejoin")
		} else {
			s.SetContext(&ConnCtx{PlayerID: id})
			s.Join(roomAll)
			s.Join(id)
			srv.track(s.ID(), id)
			joined := srv.Game.AddPlayer(id, profile)
			log.Info().Str("sid", s.ID()).Str("playerId", id).Bool("new", joined).Msg("join_game")
		}

		srv.BroadcastPlayers()
	})

	io.OnError("/", func(s socketio.Conn, e error) {
		log.Error().Str("sid", s.ID()).Err(e).Msg("socket error")
	})
	io.OnDisconnect("/", func(s socketio.Conn, reason string) {
		srv.untrack(s.ID())
		log.Info().Str("sid", s.ID()).Str("reason", reason).Msg("socket disconnected")
		srv.BroadcastPlayers()
	})

	go io.Serve()

	r.GET("/socket.io/*any", gin.WrapH(io))
	r.POST("/socket.io/*any", gin.WrapH(io))

	return io
}

func (srv *Server) track(sid, playerID string) {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	srv.bySID[sid] = playerID
	srv.connected[playerID]++
}

func (srv *Server) untrack(sid string) {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	id, ok := srv.bySID[sid]
	if !ok {
		return
	}
	delete(srv.bySID, sid)
	if srv.connected[id] > 1 {
		srv.connected[id]--
	} else {
		delete(srv.connected, id)
	}
}

// BroadcastPlayers sends the current player list, with live-connection
// presence folded in, to everyone at the table.
func (srv *Server) BroadcastPlayers() {
	if srv.io == nil {
		return
	}
	summaries := srv.Game.PlayerSummaries()

	srv.mu.Lock()
	for i := range summaries {
		summaries[i].Disconnected = srv.connected[summaries[i].ID] == 0
	}
	srv.mu.Unlock()

	srv.io.BroadcastToRoom("/", roomAll, "players", summaries)
}

// BroadcastNewRound delivers each player their private round-start payload:
// the judge sees no hand, everyone sees the prompt.
func (srv *Server) BroadcastNewRound(round *game.RoundInfo) {
	if srv.io == nil {
		return
	}
	srv.io.BroadcastToRoom("/", round.Judge.ID, "new_round", gin.H{
		"isJudge":      true,
		"activePrompt": round.Prompt,
	})
	for _, p := range round.Others {
		srv.io.BroadcastToRoom("/", p.ID, "new_round", gin.H{
			"isJudge":      false,
			"hand":         p.Hand(),
			"activePrompt": round.Prompt,
		})
	}
}

// BroadcastChoices publishes the anonymized judging view to the table.
func (srv *Server) BroadcastChoices(subs []game.Submission) {
	if srv.io == nil {
		return
	}
	srv.io.BroadcastToRoom("/", roomAll, "choices", ChoicesPayload(subs))
}

// BroadcastEnd publishes the final standings.
func (srv *Server) BroadcastEnd(standings []game.Standing) {
	if srv.io == nil {
		return
	}
	srv.io.BroadcastToRoom("/", roomAll, "end", standings)
}

// BroadcastVoteEnd publishes the running end-vote tally.
func (srv *Server) BroadcastVoteEnd(votesFor, total int) {
	if srv.io == nil {
		return
	}
	srv.io.BroadcastToRoom("/", roomAll, "vote_end", gin.H{"for": votesFor, "all": total})
}

// ChoicesPayload flattens anonymized submissions into the wire shape: the
// fingerprint plus parallel card id and text lists, no player linkage.
func ChoicesPayload(subs []game.Submission) []gin.H {
	out := make([]gin.H, 0, len(subs))
	for _, sub := range subs {
		ids := make([]int, len(sub.Cards))
		texts := make([]string, len(sub.Cards))
		for i, c := range sub.Cards {
			ids[i] = c.ID
			texts[i] = c.Text
		}
		out = append(out, gin.H{
			"fingerprint": sub.Fingerprint,
			"cardIds":     ids,
			"cardTexts":   texts,
		})
	}
	return out
}

func rejoinPayload(info *game.RejoinInfo) gin.H {
	payload := gin.H{
		"isJudge":      info.IsJudge,
		"activePrompt": info.Prompt,
		"hand":         info.Hand,
	}
	if info.Choices != nil {
		payload["choices"] = ChoicesPayload(info.Choices)
	}
	return payload
}
