package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	// TTL applied on every session write. A session that is neither
	// refreshed nor otherwise touched for this long disappears.
	sessionTTL = time.Hour

	sessionPrefix = "session:"

	fieldAccessToken  = "access_token"
	fieldRefreshToken = "refresh_token"
	fieldSpotifyID    = "spotify_id"
)

// Tokens is the credential set stored for one authenticated user.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	SpotifyID    string
}

// Store keeps session records as Redis hashes. Callers never see the
// backend key, only the signed session id.
type Store struct {
	rdb    *redis.Client
	signer *Signer
	logger zerolog.Logger
}

// NewStore creates a Redis-backed session store.
func NewStore(rdb *redis.Client, signer *Signer, logger zerolog.Logger) *Store {
	return &Store{
		rdb:    rdb,
		signer: signer,
		logger: logger.With().Str("component", "session").Logger(),
	}
}

// Create writes a fresh session record with a one-hour TTL and returns the
// signed id that externally identifies it. The field writes and the expiry
// go out as one transaction so a concurrent reader never sees a session
// without a TTL.
func (s *Store) Create(ctx context.Context, tokens Tokens) (string, error) {
	key := sessionPrefix + uuid.NewString()

	signed, err := s.signer.Sign(key)
	if err != nil {
		return "", fmt.Errorf("signing session id: %w", err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, key, map[string]any{
		fieldAccessToken:  tokens.AccessToken,
		fieldRefreshToken: tokens.RefreshToken,
		fieldSpotifyID:    tokens.SpotifyID,
	})
	pipe.Expire(ctx, key, sessionTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("writing session: %w", err)
	}

	s.logger.Debug().Str("spotify_id", tokens.SpotifyID).Msg("session created")
	return signed, nil
}

// Tokens returns the credential set behind a signed id, or nil when the id
// fails verification or the record is missing, incomplete, or expired.
// An error means the backend itself was unreachable.
func (s *Store) Tokens(ctx context.Context, signedID string) (*Tokens, error) {
	key := s.signer.Verify(signedID)
	if key == "" {
		return nil, nil
	}

	vals, err := s.rdb.HMGet(ctx, key, fieldAccessToken, fieldRefreshToken, fieldSpotifyID).Result()
	if err != nil {
		return nil, fmt.Errorf("reading session: %w", err)
	}

	fields := make([]string, len(vals))
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			return nil, nil
		}
		fields[i] = str
	}

	return &Tokens{
		AccessToken:  fields[0],
		RefreshToken: fields[1],
		SpotifyID:    fields[2],
	}, nil
}

// Update rewrites the supplied token fields, leaving empty ones untouched,
// re-writes the Spotify id from the current record, and resets the TTL.
// It reports false for ids that fail verification or no longer resolve to
// a live record.
func (s *Store) Update(ctx context.Context, signedID, accessToken, refreshToken string) (bool, error) {
	key := s.signer.Verify(signedID)
	if key == "" {
		return false, nil
	}

	current, err := s.Tokens(ctx, signedID)
	if err != nil {
		return false, err
	}
	if current == nil {
		return false, nil
	}

	pipe := s.rdb.TxPipeline()
	if accessToken != "" {
		pipe.HSet(ctx, key, fieldAccessToken, accessToken)
	}
	if refreshToken != "" {
		pipe.HSet(ctx, key, fieldRefreshToken, refreshToken)
	}
	pipe.HSet(ctx, key, fieldSpotifyID, current.SpotifyID)
	pipe.Expire(ctx, key, sessionTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("updating session: %w", err)
	}

	return true, nil
}

// Exists reports whether a signed id resolves to a live session record.
func (s *Store) Exists(ctx context.Context, signedID string) (bool, error) {
	key := s.signer.Verify(signedID)
	if key == "" {
		return false, nil
	}

	n, err := s.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("checking session: %w", err)
	}
	return n > 0, nil
}

// Delete removes the session record. It reports false for ids that fail
// verification.
func (s *Store) Delete(ctx context.Context, signedID string) (bool, error) {
	key := s.signer.Verify(signedID)
	if key == "" {
		return false, nil
	}

	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		return false, fmt.Errorf("deleting session: %w", err)
	}
	return true, nil
}
