// Package spotify wraps the slice of the Spotify Web API this application
// uses: the authorization-code flow, the current-user profile, and
// paginated playlist and track listings.
package spotify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"spotify-dupe-finder/internal/dupes"
)

const (
	apiBaseURL = "https://api.spotify.com/v1"
	userAgent  = "spotify-dupe-finder/1.0"
)

// scopes requested during authorization.
var scopes = []string{"user-read-private", "user-read-email", "playlist-read-private"}

// ErrUpstream is returned when the API answers with a non-success status.
var ErrUpstream = errors.New("spotify API error")

// Config holds the OAuth application credentials.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// Client talks to the Spotify accounts service and Web API. Access tokens
// are supplied by the caller on every request; the client holds no
// per-user state.
type Client struct {
	oauth      *oauth2.Config
	httpClient *http.Client
	baseURL    string
	logger     zerolog.Logger
}

// NewClient creates a Client from application credentials.
func NewClient(cfg Config, logger zerolog.Logger) *Client {
	return &Client{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       scopes,
			Endpoint:     endpoints.Spotify,
		},
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    apiBaseURL,
		logger:     logger.With().Str("component", "spotify").Logger(),
	}
}

// AuthCodeURL builds the authorization redirect for the given CSRF state.
// showDialog forces the consent screen even for already-authorized users.
func (c *Client) AuthCodeURL(state string, showDialog bool) string {
	if showDialog {
		return c.oauth.AuthCodeURL(state, oauth2.SetAuthURLParam("show_dialog", "true"))
	}
	return c.oauth.AuthCodeURL(state)
}

// Exchange trades an authorization code for an access/refresh token pair.
func (c *Client) Exchange(ctx context.Context, code string) (accessToken, refreshToken string, err error) {
	token, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		return "", "", fmt.Errorf("exchanging authorization code: %w", err)
	}
	return token.AccessToken, token.RefreshToken, nil
}

// Refresh obtains a fresh access token from a refresh token.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (string, error) {
	src := c.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	token, err := src.Token()
	if err != nil {
		return "", fmt.Errorf("refreshing access token: %w", err)
	}
	return token.AccessToken, nil
}

// User is the Spotify profile of the authenticated account. ID is the
// stable identifier the duplicate cache is keyed by.
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	Country     string `json:"country"`
	Product     string `json:"product"`
}

// CurrentUser fetches the profile of the token's owner.
func (c *Client) CurrentUser(ctx context.Context, accessToken string) (*User, error) {
	var user User
	if err := c.getJSON(ctx, accessToken, c.baseURL+"/me", &user); err != nil {
		return nil, fmt.Errorf("fetching profile: %w", err)
	}
	return &user, nil
}

// ListPlaylists returns every playlist of the current user, following the
// next-page reference embedded in each response until it is exhausted.
func (c *Client) ListPlaylists(ctx context.Context, accessToken string) ([]dupes.Playlist, error) {
	var playlists []dupes.Playlist

	next := c.baseURL + "/me/playlists"
	for next != "" {
		var page playlistPage
		if err := c.getJSON(ctx, accessToken, next, &page); err != nil {
			return nil, fmt.Errorf("fetching playlists: %w", err)
		}
		for _, item := range page.Items {
			playlists = append(playlists, dupes.Playlist{
				Name:        item.Name,
				TrackCount:  item.Tracks.Total,
				Description: item.Description,
				TracksHref:  item.Tracks.Href,
			})
		}
		next = page.Next
	}

	return playlists, nil
}

// ListTracks returns every track of one playlist, addressed by its API
// href. Items with a missing or malformed track payload are skipped so a
// single bad entry does not abort the whole scan.
func (c *Client) ListTracks(ctx context.Context, accessToken, href string) ([]dupes.Track, error) {
	var tracks []dupes.Track

	next := href
	for next != "" {
		var page trackPage
		if err := c.getJSON(ctx, accessToken, next, &page); err != nil {
			return nil, fmt.Errorf("fetching tracks: %w", err)
		}
		for _, item := range page.Items {
			if item.Track == nil || item.Track.Name == "" || len(item.Track.Artists) == 0 {
				c.logger.Warn().Str("href", href).Msg("skipping malformed track item")
				continue
			}
			tracks = append(tracks, dupes.Track{
				Name:   item.Track.Name,
				Artist: item.Track.Artists[0].Name,
			})
		}
		next = page.Next
	}

	return tracks, nil
}

// getJSON performs an authenticated GET and decodes the JSON response.
func (c *Client) getJSON(ctx context.Context, accessToken, reqURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr apiError
		if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("%w: %d %s", ErrUpstream, resp.StatusCode, apiErr.Error.Message)
		}
		return fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}
