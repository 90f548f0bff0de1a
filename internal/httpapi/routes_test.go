package httpapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"blanks/internal/cards"
	"blanks/internal/game"
	"blanks/internal/users"
)

type fakeStore struct {
	byID map[string]users.User
	next int
}

func newFakeStore() *fakeStore {
	return &fakeStore{byID: make(map[string]users.User)}
}

func (f *fakeStore) Get(_ context.Context, id string) (users.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return users.User{}, users.ErrNotFound
	}
	return u, nil
}

func (f *fakeStore) Create(context.Context) (users.User, error) {
	f.next++
	u := users.User{
		ID:     fmt.Sprintf("id%d", f.next),
		Nick:   fmt.Sprintf("user%d", f.next),
		Avatar: users.DefaultAvatar,
	}
	f.byID[u.ID] = u
	return u, nil
}

func (f *fakeStore) UpdateNick(_ context.Context, id, nick string) error {
	if err := users.ValidateNick(nick); err != nil {
		return err
	}
	for _, u := range f.byID {
		if u.Nick == nick {
			return users.ErrNickTaken
		}
	}
	u, ok := f.byID[id]
	if !ok {
		return users.ErrNotFound
	}
	u.Nick = nick
	f.byID[id] = u
	return nil
}

func (f *fakeStore) UpdateAvatar(_ context.Context, id, avatar string) error {
	u, ok := f.byID[id]
	if !ok {
		return users.ErrNotFound
	}
	u.Avatar = avatar
	f.byID[id] = u
	return nil
}

type fakeBroadcaster struct {
	players   int
	newRounds int
	choices   int
	ends      int
	votes     int

	lastVotesFor int
	lastTotal    int
	lastEnd      []game.Standing
}

func (f *fakeBroadcaster) BroadcastPlayers()                      { f.players++ }
func (f *fakeBroadcaster) BroadcastNewRound(*game.RoundInfo)      { f.newRounds++ }
func (f *fakeBroadcaster) BroadcastChoices([]game.Submission)     { f.choices++ }
func (f *fakeBroadcaster) BroadcastEnd(standings []game.Standing) { f.ends++; f.lastEnd = standings }
func (f *fakeBroadcaster) BroadcastVoteEnd(votesFor, total int) {
	f.votes++
	f.lastVotesFor = votesFor
	f.lastTotal = total
}

func testAPICatalog() *cards.Catalog {
	cat := &cards.Catalog{
		Packs: map[string]cards.Pack{
			"TEST": {Key: "TEST", Name: "Test Pack", Icon: cards.DefaultIcon},
		},
	}
	for i := 0; i < 5; i++ {
		cat.Prompts = append(cat.Prompts, cards.Card{ID: i, Text: fmt.Sprintf("prompt %d", i), Watermark: "TEST", Pick: 1})
	}
	for i := 5; i < 85; i++ {
		cat.Responses = append(cat.Responses, cards.Card{ID: i, Text: fmt.Sprintf("response %d", i), Watermark: "TEST"})
	}
	return cat
}

type fixture struct {
	api    *API
	router *gin.Engine
	store  *fakeStore
	ws     *fakeBroadcaster
	game   *game.Game
	ids    []string
}

// newFixture builds a router with nPlayers users already seated at the table.
func newFixture(t *testing.T, nPlayers int) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &fixture{
		store: newFakeStore(),
		ws:    &fakeBroadcaster{},
		game:  game.New(testAPICatalog(), game.DefaultMaxHandSize),
	}
	for i := 0; i < nPlayers; i++ {
		u, _ := f.store.Create(context.Background())
		f.game.AddPlayer(u.ID, game.Profile{Nick: u.Nick, Avatar: u.Avatar})
		f.ids = append(f.ids, u.ID)
	}

	f.api = &API{
		Game:    f.game,
		Users:   f.store,
		WS:      f.ws,
		Catalog: testAPICatalog(),
		BaseURL: "http://party.local:8080",
	}
	f.router = gin.New()
	f.api.Register(f.router)
	return f
}

func (f *fixture) do(t *testing.T, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var payload *bytes.Buffer
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshaling body: %v", err)
		}
		payload = bytes.NewBuffer(raw)
	} else {
		payload = &bytes.Buffer{}
	}

	req := httptest.NewRequest(method, path, payload)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.AddCookie(&http.Cookie{Name: "id", Value: userID})
	}

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

// startGame runs the /start route and returns the id of the chosen judge.
func (f *fixture) startGame(t *testing.T) (judge string, others []string) {
	t.Helper()

	if w := f.do(t, http.MethodPost, "/start", f.ids[0], []string{"TEST"}); w.Code != http.StatusOK {
		t.Fatalf("start failed with %d: %s", w.Code, w.Body.String())
	}
	for _, id := range f.ids {
		if f.game.IsJudge(id) {
			judge = id
		} else {
			others = append(others, id)
		}
	}
	if judge == "" {
		t.Fatal("no judge after start")
	}
	return judge, others
}

func TestSessionMintsIdentity(t *testing.T) {
	f := newFixture(t, 0)

	w := f.do(t, http.MethodGet, "/api/session", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var gotCookie bool
	for _, ck := range w.Result().Cookies() {
		if ck.Name == "id" && ck.Value != "" {
			gotCookie = true
		}
	}
	if !gotCookie {
		t.Fatal("fresh browsers should get an id cookie")
	}

	var body struct {
		Nickname string       `json:"nickname"`
		Stage    string       `json:"stage"`
		InGame   bool         `json:"inGame"`
		Packs    []cards.Pack `json:"packs"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding session: %v", err)
	}
	if body.Nickname != "user1" {
		t.Fatalf("expected default nick, got %q", body.Nickname)
	}
	if body.Stage != string(game.StageNotStarted) {
		t.Fatalf("expected stage %s, got %s", game.StageNotStarted, body.Stage)
	}
	if body.InGame {
		t.Fatal("fresh users are not seated yet")
	}
	if len(body.Packs) != 1 || body.Packs[0].Key != "TEST" {
		t.Fatalf("expected the catalog packs, got %+v", body.Packs)
	}
}

func TestSessionKeepsExistingIdentity(t *testing.T) {
	f := newFixture(t, 1)

	w := f.do(t, http.MethodGet, "/api/session", f.ids[0], nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if len(w.Result().Cookies()) != 0 {
		t.Fatal("known browsers should not get a new cookie")
	}
	if len(f.store.byID) != 1 {
		t.Fatal("no user should have been minted")
	}
}

func TestRoutesRedirectWithoutIdentity(t *testing.T) {
	f := newFixture(t, 2)

	cases := []struct {
		method, path string
	}{
		{http.MethodPost, "/start"},
		{http.MethodPost, "/submit_cards"},
		{http.MethodPost, "/judge_decision"},
		{http.MethodPut, "/vote_end"},
		{http.MethodGet, "/change_nick"},
		{http.MethodPost, "/change_avatar"},
	}
	for _, tc := range cases {
		w := f.do(t, tc.method, tc.path, "", nil)
		if w.Code != http.StatusFound {
			t.Fatalf("%s %s: expected 302, got %d", tc.method, tc.path, w.Code)
		}
		if loc := w.Header().Get("Location"); loc != "/" {
			t.Fatalf("%s %s: expected redirect to /, got %q", tc.method, tc.path, loc)
		}
	}
}

func TestStart(t *testing.T) {
	f := newFixture(t, 1)

	w := f.do(t, http.MethodPost, "/start", f.ids[0], []string{"TEST"})
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("one player should not be able to start, got %d", w.Code)
	}

	u, _ := f.store.Create(context.Background())
	f.game.AddPlayer(u.ID, game.Profile{Nick: u.Nick})
	f.ids = append(f.ids, u.ID)

	w = f.do(t, http.MethodPost, "/start", f.ids[0], []string{"NOPE"})
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("empty pack selection should fail, got %d", w.Code)
	}

	w = f.do(t, http.MethodPost, "/start", f.ids[0], []string{"TEST"})
	if w.Code != http.StatusOK {
		t.Fatalf("start failed with %d: %s", w.Code, w.Body.String())
	}
	if f.ws.newRounds != 1 || f.ws.players != 1 {
		t.Fatalf("expected one round and one player broadcast, got %d/%d", f.ws.newRounds, f.ws.players)
	}

	w = f.do(t, http.MethodPost, "/start", f.ids[0], []string{"TEST"})
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("double start should 405, got %d", w.Code)
	}
}

func TestSubmitCards(t *testing.T) {
	f := newFixture(t, 3)
	judge, others := f.startGame(t)

	hand := func(id string) []cards.Card {
		info, err := f.game.Rejoin(id)
		if err != nil {
			t.Fatalf("reading hand: %v", err)
		}
		return info.Hand
	}

	w := f.do(t, http.MethodPost, "/submit_cards", judge, []int{hand(judge)[0].ID})
	if w.Code != http.StatusMethodNotAllowed || w.Body.String() != "User is judge" {
		t.Fatalf("judge submit: got %d %q", w.Code, w.Body.String())
	}

	w = f.do(t, http.MethodPost, "/submit_cards", others[0], []int{99999})
	if w.Code != http.StatusBadRequest || w.Body.String() != "Card not in hand" {
		t.Fatalf("unknown card: got %d %q", w.Code, w.Body.String())
	}

	w = f.do(t, http.MethodPost, "/submit_cards", others[0], []int{hand(others[0])[0].ID, hand(others[0])[1].ID})
	if w.Code != http.StatusBadRequest || w.Body.String() != "Wrong number of cards" {
		t.Fatalf("wrong size: got %d %q", w.Code, w.Body.String())
	}

	w = f.do(t, http.MethodPost, "/submit_cards", others[0], []int{hand(others[0])[0].ID})
	if w.Code != http.StatusOK {
		t.Fatalf("submit failed with %d: %s", w.Code, w.Body.String())
	}
	if f.ws.choices != 0 {
		t.Fatal("choices must not be revealed before everyone is in")
	}

	w = f.do(t, http.MethodPost, "/submit_cards", others[0], []int{hand(others[0])[0].ID})
	if w.Code != http.StatusMethodNotAllowed || w.Body.String() != "Already chose" {
		t.Fatalf("double submit: got %d %q", w.Code, w.Body.String())
	}

	w = f.do(t, http.MethodPost, "/submit_cards", others[1], []int{hand(others[1])[0].ID})
	if w.Code != http.StatusOK {
		t.Fatalf("final submit failed with %d: %s", w.Code, w.Body.String())
	}
	if f.ws.choices != 1 {
		t.Fatal("last submission should reveal the choices")
	}
	if f.game.Stage() != game.StageJudging {
		t.Fatalf("expected stage %s, got %s", game.StageJudging, f.game.Stage())
	}
}

func TestJudgeDecision(t *testing.T) {
	f := newFixture(t, 2)
	judge, others := f.startGame(t)

	w := f.do(t, http.MethodPost, "/judge_decision", others[0], gin.H{"decision": "1"})
	if w.Code != http.StatusMethodNotAllowed || w.Body.String() != "User is not the judge" {
		t.Fatalf("non-judge verdict: got %d %q", w.Code, w.Body.String())
	}

	w = f.do(t, http.MethodPost, "/judge_decision", judge, gin.H{"decision": "1"})
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("verdict during choosing should 405, got %d", w.Code)
	}

	info, err := f.game.Rejoin(others[0])
	if err != nil {
		t.Fatalf("reading hand: %v", err)
	}
	chosen := info.Hand[0].ID
	if w := f.do(t, http.MethodPost, "/submit_cards", others[0], []int{chosen}); w.Code != http.StatusOK {
		t.Fatalf("submit failed: %d", w.Code)
	}

	w = f.do(t, http.MethodPost, "/judge_decision", judge, gin.H{"decision": "no-such"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("unknown fingerprint should 400, got %d", w.Code)
	}

	w = f.do(t, http.MethodPost, "/judge_decision", judge, gin.H{"decision": game.Fingerprint([]int{chosen})})
	if w.Code != http.StatusOK {
		t.Fatalf("verdict failed with %d: %s", w.Code, w.Body.String())
	}
	if f.ws.newRounds != 2 {
		t.Fatalf("a verdict should deal the next round, got %d round broadcasts", f.ws.newRounds)
	}
	if f.game.Stage() != game.StageChoosing {
		t.Fatalf("expected stage %s, got %s", game.StageChoosing, f.game.Stage())
	}
}

func TestVoteEnd(t *testing.T) {
	f := newFixture(t, 2)

	w := f.do(t, http.MethodPut, "/vote_end", f.ids[0], gin.H{})
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("vote before start should 405, got %d", w.Code)
	}

	f.startGame(t)

	// An empty body counts as a vote for ending.
	w = f.do(t, http.MethodPut, "/vote_end", f.ids[0], gin.H{})
	if w.Code != http.StatusOK {
		t.Fatalf("vote failed with %d: %s", w.Code, w.Body.String())
	}
	if f.ws.votes != 1 || f.ws.lastVotesFor != 1 || f.ws.lastTotal != 2 {
		t.Fatalf("expected a 1/2 tally broadcast, got %+v", f.ws)
	}
	if f.ws.ends != 0 {
		t.Fatal("a split vote must not end the game")
	}

	w = f.do(t, http.MethodPut, "/vote_end", f.ids[1], gin.H{"vote": true})
	if w.Code != http.StatusOK {
		t.Fatalf("vote failed with %d: %s", w.Code, w.Body.String())
	}
	if f.ws.ends != 1 {
		t.Fatal("a unanimous vote should end the game")
	}
	if len(f.ws.lastEnd) != 2 {
		t.Fatalf("ending should broadcast standings for everyone, got %d", len(f.ws.lastEnd))
	}
	if f.game.Stage() != game.StageNotStarted {
		t.Fatalf("expected stage %s, got %s", game.StageNotStarted, f.game.Stage())
	}
}

func TestVoteEndEmptyBody(t *testing.T) {
	f := newFixture(t, 2)
	f.startGame(t)

	w := f.do(t, http.MethodPut, "/vote_end", f.ids[0], nil)
	if w.Code != http.StatusOK {
		t.Fatalf("vote with empty body failed with %d: %s", w.Code, w.Body.String())
	}
	if f.ws.votes != 1 || f.ws.lastVotesFor != 1 || f.ws.lastTotal != 2 {
		t.Fatalf("expected a 1/2 tally broadcast, got %+v", f.ws)
	}
}

func TestChangeNick(t *testing.T) {
	f := newFixture(t, 2)

	w := f.do(t, http.MethodGet, "/change_nick", f.ids[0], nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing parameter should 400, got %d", w.Code)
	}

	w = f.do(t, http.MethodGet, "/change_nick?n=Blanky", f.ids[0], nil)
	if w.Code != http.StatusOK {
		t.Fatalf("rename failed with %d: %s", w.Code, w.Body.String())
	}
	if u, _ := f.store.Get(context.Background(), f.ids[0]); u.Nick != "Blanky" {
		t.Fatalf("nick not stored, got %q", u.Nick)
	}
	// The seated player record is renamed too.
	if f.ws.players != 1 {
		t.Fatal("a rename of a seated player should be broadcast")
	}

	w = f.do(t, http.MethodGet, "/change_nick?n=Blanky", f.ids[1], nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("taken nick should 409, got %d", w.Code)
	}

	w = f.do(t, http.MethodGet, "/change_nick?n=user99", f.ids[1], nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("reserved nick should 400, got %d", w.Code)
	}
}

func TestChangeAvatar(t *testing.T) {
	f := newFixture(t, 1)

	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encoding fixture: %v", err)
	}
	uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())

	w := f.do(t, http.MethodPost, "/change_avatar", f.ids[0], gin.H{"avatar": uri})
	if w.Code != http.StatusOK {
		t.Fatalf("upload failed with %d: %s", w.Code, w.Body.String())
	}
	if !strings.HasPrefix(w.Body.String(), "data:image/png;base64,") {
		t.Fatal("response should carry the stored data URI")
	}
	if u, _ := f.store.Get(context.Background(), f.ids[0]); u.Avatar != w.Body.String() {
		t.Fatal("stored avatar should match the response")
	}

	w = f.do(t, http.MethodPost, "/change_avatar", f.ids[0], gin.H{"avatar": "garbage"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad image should 400, got %d", w.Code)
	}
}

func TestQR(t *testing.T) {
	f := newFixture(t, 0)

	w := f.do(t, http.MethodGet, "/qr", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/png" {
		t.Fatalf("expected image/png, got %q", ct)
	}
	if w.Body.Len() == 0 {
		t.Fatal("expected PNG bytes")
	}
}
