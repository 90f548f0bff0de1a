package users

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"

	"github.com/google/uuid"
)

var (
	ErrNotFound     = errors.New("user not found")
	ErrNickTooLong  = errors.New("nick cannot be longer than 16 characters")
	ErrNickReserved = errors.New("nick cannot match the default user pattern")
	ErrNickInvalid  = errors.New("nick contains disallowed characters")
	ErrNickTaken    = errors.New("nick already taken")
)

var (
	defaultNickRe = regexp.MustCompile(`^user\d+$`)
	allowedRe     = regexp.MustCompile(`(?i)^[A-Z0-9` + "`" + `~!@#$%^&*()\-=_+{}\[\]:;'",./<>?\\|\s]+$`)
)

// User is one per-browser identity record. The id doubles as the opaque
// cookie token; it is the only thing the game engine keys players by.
type User struct {
	ID     string
	Nick   string
	Avatar string
}

// Store persists user profiles across process restarts. Game state is not
// persisted; only identities survive.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Get looks a user up by their opaque id.
func (s *Store) Get(ctx context.Context, id string) (User, error) {
	var u User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, nick, avatar FROM users WHERE id = ?`, id,
	).Scan(&u.ID, &u.Nick, &u.Avatar)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("querying user: %w", err)
	}
	return u, nil
}

// Create mints a fresh identity with a random token, a numbered default
// nick and the default avatar.
func (s *Store) Create(ctx context.Context) (User, error) {
	token := uuid.New()
	u := User{
		ID:     hex.EncodeToString(token[:]),
		Avatar: DefaultAvatar,
	}

	// The default nick is derived from the row count; on a nick collision
	// (concurrent signups) bump the number and retry.
	for {
		n, err := s.Count(ctx)
		if err != nil {
			return User{}, err
		}
		u.Nick = fmt.Sprintf("user%d", n+1)
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO users (id, nick, avatar) VALUES (?, ?, ?)`,
			u.ID, u.Nick, u.Avatar,
		)
		if err == nil {
			return u, nil
		}
		taken, terr := s.NickTaken(ctx, u.Nick)
		if terr != nil || !taken {
			return User{}, fmt.Errorf("inserting user: %w", err)
		}
	}
}

// Count returns the number of known users.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return n, nil
}

// NickTaken reports whether any user already holds nick.
func (s *Store) NickTaken(ctx context.Context, nick string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE nick = ?`, nick,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking nick: %w", err)
	}
	return n > 0, nil
}

// UpdateNick validates and stores a new display name.
func (s *Store) UpdateNick(ctx context.Context, id, nick string) error {
	if err := ValidateNick(nick); err != nil {
		return err
	}
	taken, err := s.NickTaken(ctx, nick)
	if err != nil {
		return err
	}
	if taken {
		return ErrNickTaken
	}

	res, err := s.db.ExecContext(ctx, `UPDATE users SET nick = ? WHERE id = ?`, nick, id)
	if err != nil {
		return fmt.Errorf("updating nick: %w", err)
	}
	return affectedOne(res)
}

// UpdateAvatar stores a new avatar data URI.
func (s *Store) UpdateAvatar(ctx context.Context, id, avatar string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET avatar = ? WHERE id = ?`, avatar, id)
	if err != nil {
		return fmt.Errorf("updating avatar: %w", err)
	}
	return affectedOne(res)
}

func affectedOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ValidateNick enforces the display-name rules: at most 16 characters, not
// shaped like a default nick, and only characters from the allowed set.
func ValidateNick(nick string) error {
	if len(nick) > 16 {
		return ErrNickTooLong
	}
	if defaultNickRe.MatchString(nick) {
		return ErrNickReserved
	}
	if !allowedRe.MatchString(nick) {
		return ErrNickInvalid
	}
	return nil
}
