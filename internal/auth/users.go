package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"golang.org/x/crypto/bcrypt"

	"ragstore/internal/domain"
)

// Metadata keys for user records.
const (
	metaUsername     = "username"
	metaPasswordHash = "password"
	metaUserID       = "user_id"
)

// maxUsers bounds the user listing query; the user index is expected to
// stay far below this.
const maxUsers = 10000

var (
	// ErrUserExists is returned when registering an already-taken username.
	ErrUserExists = errors.New("username already exists")

	// ErrInvalidCredentials is returned on unknown user or wrong password.
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// User is an authenticated caller. ID is the opaque tenant identifier that
// scopes every record in the RAG index.
type User struct {
	ID       string
	Username string
}

// Store keeps user credentials in their own vector index. Vectors carry no
// meaning here; every user record stores the same unit vector so that a
// single similarity query can enumerate users, and the real payload lives
// in metadata (username, bcrypt hash, user_id).
type Store struct {
	store     domain.VectorStore
	dimension int
	logger    *slog.Logger
}

// NewStore creates a credential store over the given vector index.
func NewStore(store domain.VectorStore, dimension int, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{store: store, dimension: dimension, logger: logger}
}

// AddUser registers a new user with a bcrypt-hashed password and the next
// free numeric user ID, starting at "1".
func (s *Store) AddUser(ctx context.Context, username, password string) (User, error) {
	if username == "" || password == "" {
		return User{}, errors.New("username and password are required")
	}
	if err := s.store.EnsureIndex(ctx); err != nil {
		return User{}, fmt.Errorf("add user: %w", err)
	}
	existing, err := s.GetUserByUsername(ctx, username)
	if err != nil {
		return User{}, err
	}
	if existing != nil {
		return User{}, ErrUserExists
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("add user: hash password: %w", err)
	}
	userID, err := s.nextUserID(ctx)
	if err != nil {
		return User{}, err
	}
	record := domain.Record{
		ID:     "user-" + userID,
		Vector: s.placeholderVector(),
		Metadata: map[string]string{
			metaUsername:     username,
			metaPasswordHash: string(hash),
			metaUserID:       userID,
		},
	}
	if err := s.store.Upsert(ctx, []domain.Record{record}); err != nil {
		return User{}, fmt.Errorf("add user: %w", err)
	}
	s.logger.Debug("user registered", "user_id", userID)
	return User{ID: userID, Username: username}, nil
}

// GetUserByUsername returns the user with the given name, or nil if absent.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	matches, err := s.store.Query(ctx, s.placeholderVector(), maxUsers,
		map[string]string{metaUsername: username}, true)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if len(matches) == 0 {
		return nil, nil
	}
	m := matches[0]
	return &User{ID: m.Metadata[metaUserID], Username: m.Metadata[metaUsername]}, nil
}

// Authenticate verifies a username/password pair.
func (s *Store) Authenticate(ctx context.Context, username, password string) (User, error) {
	matches, err := s.store.Query(ctx, s.placeholderVector(), maxUsers,
		map[string]string{metaUsername: username}, true)
	if err != nil {
		return User{}, fmt.Errorf("authenticate: %w", err)
	}
	if len(matches) == 0 {
		return User{}, ErrInvalidCredentials
	}
	m := matches[0]
	if bcrypt.CompareHashAndPassword([]byte(m.Metadata[metaPasswordHash]), []byte(password)) != nil {
		return User{}, ErrInvalidCredentials
	}
	return User{ID: m.Metadata[metaUserID], Username: m.Metadata[metaUsername]}, nil
}

// nextUserID scans all users and returns max(user_id)+1 as a string.
// Concurrent registrations could race on the same ID; acceptable for the
// single-operator deployments this targets.
func (s *Store) nextUserID(ctx context.Context) (string, error) {
	matches, err := s.store.Query(ctx, s.placeholderVector(), maxUsers, nil, true)
	if err != nil {
		return "", fmt.Errorf("next user id: %w", err)
	}
	maxID := 0
	for _, m := range matches {
		id, err := strconv.Atoi(m.Metadata[metaUserID])
		if err != nil {
			continue
		}
		if id > maxID {
			maxID = id
		}
	}
	return strconv.Itoa(maxID + 1), nil
}

// placeholderVector is the shared dummy vector for user records: a unit
// vector, so queries with the same vector rank all users equally.
func (s *Store) placeholderVector() []float32 {
	v := make([]float32, s.dimension)
	v[0] = 1
	return v
}
