// Package dupes computes which songs appear in more than one playlist.
//
// The inputs are playlist summaries and per-playlist track listings; the
// output is a map from each song to the names of the playlists containing
// it, narrowed to songs that show up more than once.
package dupes

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Track-count bounds for a playlist to be worth scanning. Very small
// playlists are noise, very large ones are library dumps.
const (
	minTracks = 10
	maxTracks = 80
)

// excludeMarkers mark playlists that must never be scanned, matched as
// case-sensitive substrings of the playlist description.
var excludeMarkers = []string{"Person", "Archived", "Exempt"}

// Playlist is a playlist summary as returned by the playlist listing.
type Playlist struct {
	Name        string
	TrackCount  int
	Description string
	TracksHref  string
}

// Track identifies a song by its title and primary artist.
type Track struct {
	Name   string
	Artist string
}

// SongMap maps each song to the names of the playlists containing it.
// A playlist's name appears once per occurrence of the song in it.
type SongMap map[Track][]string

// TrackLister lists the tracks of a single playlist by its API href.
type TrackLister interface {
	ListTracks(ctx context.Context, href string) ([]Track, error)
}

// TrackListerFunc adapts a function to the TrackLister interface.
type TrackListerFunc func(ctx context.Context, href string) ([]Track, error)

// ListTracks calls f.
func (f TrackListerFunc) ListTracks(ctx context.Context, href string) ([]Track, error) {
	return f(ctx, href)
}

// FilterEligible keeps only playlists whose track count is within
// [minTracks, maxTracks) and whose description carries no exclusion
// marker. The result maps playlist name to tracks href; on a name
// collision the last playlist wins.
func FilterEligible(playlists []Playlist) map[string]string {
	eligible := make(map[string]string)
	for _, p := range playlists {
		if p.TrackCount < minTracks || p.TrackCount >= maxTracks {
			continue
		}
		if hasExcludeMarker(p.Description) {
			continue
		}
		eligible[p.Name] = p.TracksHref
	}
	return eligible
}

func hasExcludeMarker(description string) bool {
	for _, marker := range excludeMarkers {
		if strings.Contains(description, marker) {
			return true
		}
	}
	return false
}

// BuildSongMap fetches the tracks of every eligible playlist and records,
// per song, the playlists it was found in. Playlists are processed in
// sorted-name order so the output is deterministic. Repeated occurrences
// of a song within one playlist are preserved, not collapsed.
func BuildSongMap(ctx context.Context, eligible map[string]string, lister TrackLister) (SongMap, error) {
	names := make([]string, 0, len(eligible))
	for name := range eligible {
		names = append(names, name)
	}
	sort.Strings(names)

	songs := make(SongMap)
	for _, name := range names {
		tracks, err := lister.ListTracks(ctx, eligible[name])
		if err != nil {
			return nil, fmt.Errorf("listing tracks of %q: %w", name, err)
		}
		for _, t := range tracks {
			songs[t] = append(songs[t], name)
		}
	}
	return songs, nil
}

// SelectDuplicates returns the subset of songs contained in more than one
// playlist.
func SelectDuplicates(songs SongMap) SongMap {
	duplicates := make(SongMap)
	for song, playlists := range songs {
		if len(playlists) > 1 {
			duplicates[song] = playlists
		}
	}
	return duplicates
}
