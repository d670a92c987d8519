package web

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"net/http"
	"sort"

	"github.com/rs/zerolog"

	"spotify-dupe-finder/internal/dupes"
	"spotify-dupe-finder/internal/session"
	"spotify-dupe-finder/internal/spotify"
)

const (
	sessionCookieName = "session_id"
	stateCookieName   = "spotify_auth_state"
)

// SessionStore persists token sets behind signed session ids.
type SessionStore interface {
	Create(ctx context.Context, tokens session.Tokens) (string, error)
	Update(ctx context.Context, signedID, accessToken, refreshToken string) (bool, error)
	Tokens(ctx context.Context, signedID string) (*session.Tokens, error)
	Exists(ctx context.Context, signedID string) (bool, error)
}

// MusicAPI is the outbound Spotify surface the handlers depend on.
type MusicAPI interface {
	AuthCodeURL(state string, showDialog bool) string
	Exchange(ctx context.Context, code string) (accessToken, refreshToken string, err error)
	Refresh(ctx context.Context, refreshToken string) (string, error)
	CurrentUser(ctx context.Context, accessToken string) (*spotify.User, error)
	ListPlaylists(ctx context.Context, accessToken string) ([]dupes.Playlist, error)
	ListTracks(ctx context.Context, accessToken, href string) ([]dupes.Track, error)
}

// DupeCache caches computed duplicate results per Spotify user.
type DupeCache interface {
	Put(ctx context.Context, spotifyID string, result dupes.SongMap) error
	Get(ctx context.Context, spotifyID string) (dupes.SongMap, error)
	Has(ctx context.Context, spotifyID string) (bool, error)
}

// Handlers contains the HTTP handlers for the application.
type Handlers struct {
	api       MusicAPI
	sessions  SessionStore
	cache     DupeCache
	templates *Templates
	logger    zerolog.Logger
}

// NewHandlers creates a Handlers instance with explicit dependencies.
func NewHandlers(api MusicAPI, sessions SessionStore, cache DupeCache, templates *Templates, logger zerolog.Logger) *Handlers {
	return &Handlers{
		api:       api,
		sessions:  sessions,
		cache:     cache,
		templates: templates,
		logger:    logger.With().Str("component", "web").Logger(),
	}
}

// Home handles the landing page (GET /).
func (h *Handlers) Home(w http.ResponseWriter, r *http.Request) {
	authenticated := false
	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		ok, err := h.sessions.Exists(r.Context(), cookie.Value)
		if err != nil {
			h.logger.Error().Err(err).Msg("checking session")
			http.Error(w, "Session store unavailable", http.StatusInternalServerError)
			return
		}
		authenticated = ok
	}

	data := HomePageData{
		PageData:      PageData{Title: "Spotify Duplicate Song Finder"},
		Authenticated: authenticated,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.templates.Render(w, "index", data); err != nil {
		http.Error(w, "Failed to render template", http.StatusInternalServerError)
	}
}

// Login starts the authorization flow (GET /login).
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	h.redirectToAuth(w, r, false)
}

// Logout restarts the flow with forced re-consent so another account can
// be picked (GET /logout).
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	h.redirectToAuth(w, r, true)
}

func (h *Handlers) redirectToAuth(w http.ResponseWriter, r *http.Request, showDialog bool) {
	state, err := generateState()
	if err != nil {
		http.Error(w, "Failed to generate state", http.StatusInternalServerError)
		return
	}

	// Stored for verification on the callback.
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   300,
	})

	http.Redirect(w, r, h.api.AuthCodeURL(state, showDialog), http.StatusTemporaryRedirect)
}

// Callback finishes the authorization flow (GET /callback).
func (h *Handlers) Callback(w http.ResponseWriter, r *http.Request) {
	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil {
		http.Error(w, "Missing state cookie", http.StatusBadRequest)
		return
	}

	query := r.URL.Query()
	if state := query.Get("state"); state == "" || state != stateCookie.Value {
		h.logger.Error().
			Str("error_param", query.Get("error")).
			Msg("OAuth state mismatch")
		http.Error(w, "State mismatch", http.StatusBadRequest)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})

	if errMsg := query.Get("error"); errMsg != "" {
		http.Error(w, "Spotify auth error: "+errMsg, http.StatusBadRequest)
		return
	}

	access, refresh, err := h.api.Exchange(r.Context(), query.Get("code"))
	if err != nil {
		h.logger.Error().Err(err).Msg("token exchange failed")
		http.Error(w, "Failed to get token", http.StatusBadGateway)
		return
	}

	user, err := h.api.CurrentUser(r.Context(), access)
	if err != nil {
		h.logger.Error().Err(err).Msg("profile lookup failed")
		http.Error(w, "Failed to get user info", http.StatusBadGateway)
		return
	}

	signedID, err := h.sessions.Create(r.Context(), session.Tokens{
		AccessToken:  access,
		RefreshToken: refresh,
		SpotifyID:    user.ID,
	})
	if err != nil {
		h.logger.Error().Err(err).Msg("session create failed")
		http.Error(w, "Failed to create session", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    signedID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, "/me", http.StatusTemporaryRedirect)
}

// Refresh exchanges the session's refresh token for a new access token and
// returns the updated token set as JSON (GET /refresh).
func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	signedID, tokens := h.requireSession(w, r)
	if tokens == nil {
		return
	}

	access, err := h.api.Refresh(r.Context(), tokens.RefreshToken)
	if err != nil {
		h.logger.Error().Err(err).Msg("token refresh failed")
		http.Error(w, "Failed to refresh token", http.StatusBadGateway)
		return
	}

	if _, err := h.sessions.Update(r.Context(), signedID, access, ""); err != nil {
		h.logger.Error().Err(err).Msg("session update failed")
		http.Error(w, "Failed to update session", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, map[string]string{
		"access_token":  access,
		"refresh_token": tokens.RefreshToken,
	})
}

// Me renders the profile page with the token set and any cached duplicate
// result (GET /me).
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	_, tokens := h.requireSession(w, r)
	if tokens == nil {
		return
	}

	user, err := h.api.CurrentUser(r.Context(), tokens.AccessToken)
	if err != nil {
		h.logger.Error().Err(err).Msg("profile lookup failed")
		http.Error(w, "Failed to get profile", http.StatusBadGateway)
		return
	}

	cached, err := h.cache.Get(r.Context(), tokens.SpotifyID)
	if err != nil {
		// The page is still useful without the cached result.
		h.logger.Error().Err(err).Msg("reading duplicate cache")
	}

	data := MePageData{
		PageData:     PageData{Title: user.DisplayName},
		User:         user,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		Duplicates:   toDuplicateRows(cached),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.templates.Render(w, "me", data); err != nil {
		http.Error(w, "Failed to render template", http.StatusInternalServerError)
	}
}

// DuplicateSongs returns the duplicate result as JSON, computing and
// caching it on first request (GET /duplicate_songs).
func (h *Handlers) DuplicateSongs(w http.ResponseWriter, r *http.Request) {
	_, tokens := h.requireSession(w, r)
	if tokens == nil {
		return
	}

	cached, err := h.cache.Has(r.Context(), tokens.SpotifyID)
	if err != nil {
		h.logger.Error().Err(err).Msg("checking duplicate cache")
		http.Error(w, "Cache unavailable", http.StatusInternalServerError)
		return
	}

	var result dupes.SongMap
	if cached {
		result, err = h.cache.Get(r.Context(), tokens.SpotifyID)
		if err != nil {
			h.logger.Error().Err(err).Msg("reading duplicate cache")
			http.Error(w, "Cache unavailable", http.StatusInternalServerError)
			return
		}
	} else {
		result, err = h.computeDuplicates(r.Context(), tokens)
		if err != nil {
			h.logger.Error().Err(err).Msg("computing duplicates")
			http.Error(w, "Failed to compute duplicates", http.StatusBadGateway)
			return
		}
	}

	h.writeJSON(w, toDuplicateRows(result))
}

// Recache forces a recomputation of the duplicate result, then redirects
// to the profile page (GET /recache).
func (h *Handlers) Recache(w http.ResponseWriter, r *http.Request) {
	_, tokens := h.requireSession(w, r)
	if tokens == nil {
		return
	}

	if _, err := h.computeDuplicates(r.Context(), tokens); err != nil {
		h.logger.Error().Err(err).Msg("recomputing duplicates")
		http.Error(w, "Failed to recompute duplicates", http.StatusBadGateway)
		return
	}

	http.Redirect(w, r, "/me", http.StatusTemporaryRedirect)
}

// computeDuplicates runs the full playlist scan and stores the outcome in
// the cache.
func (h *Handlers) computeDuplicates(ctx context.Context, tokens *session.Tokens) (dupes.SongMap, error) {
	playlists, err := h.api.ListPlaylists(ctx, tokens.AccessToken)
	if err != nil {
		return nil, err
	}

	eligible := dupes.FilterEligible(playlists)

	songs, err := dupes.BuildSongMap(ctx, eligible, dupes.TrackListerFunc(
		func(ctx context.Context, href string) ([]dupes.Track, error) {
			return h.api.ListTracks(ctx, tokens.AccessToken, href)
		}))
	if err != nil {
		return nil, err
	}

	result := dupes.SelectDuplicates(songs)
	if err := h.cache.Put(ctx, tokens.SpotifyID, result); err != nil {
		return nil, err
	}
	return result, nil
}

// requireSession resolves the caller's session, responding with a client
// error when there is none. Callers bail out on a nil token set.
func (h *Handlers) requireSession(w http.ResponseWriter, r *http.Request) (string, *session.Tokens) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		http.Error(w, "Not authenticated", http.StatusBadRequest)
		return "", nil
	}

	tokens, err := h.sessions.Tokens(r.Context(), cookie.Value)
	if err != nil {
		h.logger.Error().Err(err).Msg("session lookup failed")
		http.Error(w, "Session store unavailable", http.StatusInternalServerError)
		return "", nil
	}
	if tokens == nil {
		http.Error(w, "Not authenticated", http.StatusBadRequest)
		return "", nil
	}

	return cookie.Value, tokens
}

func (h *Handlers) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error().Err(err).Msg("encoding response")
	}
}

// DuplicateRow is the JSON and template presentation of one duplicated song.
type DuplicateRow struct {
	Track     string   `json:"track"`
	Artist    string   `json:"artist"`
	Playlists []string `json:"playlists"`
}

// toDuplicateRows flattens a song map into a deterministically sorted list.
func toDuplicateRows(m dupes.SongMap) []DuplicateRow {
	rows := make([]DuplicateRow, 0, len(m))
	for song, playlists := range m {
		rows = append(rows, DuplicateRow{
			Track:     song.Name,
			Artist:    song.Artist,
			Playlists: playlists,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Track != rows[j].Track {
			return rows[i].Track < rows[j].Track
		}
		return rows[i].Artist < rows[j].Artist
	})
	return rows
}

// stateAlphabet matches the characters Spotify examples use for the CSRF
// state value.
const (
	stateAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	stateLength   = 16
)

// generateState creates a random state string for OAuth.
func generateState() (string, error) {
	buf := make([]byte, stateLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = stateAlphabet[int(b)%len(stateAlphabet)]
	}
	return string(buf), nil
}
