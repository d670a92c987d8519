package dupes

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func TestFilterEligible(t *testing.T) {
	tests := []struct {
		name     string
		playlist Playlist
		want     bool
	}{
		{
			name:     "below minimum track count",
			playlist: Playlist{Name: "Short", TrackCount: 9},
			want:     false,
		},
		{
			name:     "at minimum track count",
			playlist: Playlist{Name: "Min", TrackCount: 10},
			want:     true,
		},
		{
			name:     "just under maximum track count",
			playlist: Playlist{Name: "Big", TrackCount: 79},
			want:     true,
		},
		{
			name:     "at maximum track count",
			playlist: Playlist{Name: "TooBig", TrackCount: 80},
			want:     false,
		},
		{
			name:     "archived marker excludes regardless of count",
			playlist: Playlist{Name: "Old", TrackCount: 40, Description: "Archived 2019"},
			want:     false,
		},
		{
			name:     "person marker excludes",
			playlist: Playlist{Name: "Shared", TrackCount: 40, Description: "Person: someone else"},
			want:     false,
		},
		{
			name:     "exempt marker excludes",
			playlist: Playlist{Name: "Skip", TrackCount: 40, Description: "Exempt from scanning"},
			want:     false,
		},
		{
			name:     "marker match is case-sensitive",
			playlist: Playlist{Name: "Lower", TrackCount: 40, Description: "archived long ago"},
			want:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterEligible([]Playlist{tt.playlist})
			if _, ok := got[tt.playlist.Name]; ok != tt.want {
				t.Errorf("FilterEligible(%+v) included=%v, want %v", tt.playlist, ok, tt.want)
			}
		})
	}
}

func TestFilterEligibleNameCollision(t *testing.T) {
	playlists := []Playlist{
		{Name: "Mix", TrackCount: 20, TracksHref: "href-one"},
		{Name: "Mix", TrackCount: 30, TracksHref: "href-two"},
	}

	got := FilterEligible(playlists)
	if got["Mix"] != "href-two" {
		t.Errorf("FilterEligible name collision: got %q, want last write %q", got["Mix"], "href-two")
	}
}

func TestSelectDuplicates(t *testing.T) {
	songs := SongMap{
		{Name: "A", Artist: "X"}: {"P1"},
		{Name: "B", Artist: "Y"}: {"P1", "P2"},
	}

	want := SongMap{
		{Name: "B", Artist: "Y"}: {"P1", "P2"},
	}

	if got := SelectDuplicates(songs); !reflect.DeepEqual(got, want) {
		t.Errorf("SelectDuplicates() = %v, want %v", got, want)
	}
}

func TestBuildSongMap(t *testing.T) {
	eligible := map[string]string{
		"P1": "href-p1",
		"P2": "href-p2",
	}

	byHref := map[string][]Track{
		"href-p1": {{Name: "Song", Artist: "Artist"}},
		"href-p2": {{Name: "Song", Artist: "Artist"}, {Name: "Other", Artist: "A2"}},
	}

	lister := TrackListerFunc(func(_ context.Context, href string) ([]Track, error) {
		return byHref[href], nil
	})

	got, err := BuildSongMap(context.Background(), eligible, lister)
	if err != nil {
		t.Fatalf("BuildSongMap() error = %v", err)
	}

	want := SongMap{
		{Name: "Song", Artist: "Artist"}: {"P1", "P2"},
		{Name: "Other", Artist: "A2"}:    {"P2"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("BuildSongMap() = %v, want %v", got, want)
	}

	dupes := SelectDuplicates(got)
	wantDupes := SongMap{
		{Name: "Song", Artist: "Artist"}: {"P1", "P2"},
	}
	if !reflect.DeepEqual(dupes, wantDupes) {
		t.Errorf("SelectDuplicates() = %v, want %v", dupes, wantDupes)
	}
}

// A song repeated within one playlist keeps one entry per occurrence, so a
// single playlist can by itself push a song over the duplicate threshold.
func TestBuildSongMapPreservesRepeats(t *testing.T) {
	eligible := map[string]string{"P1": "href-p1"}

	lister := TrackListerFunc(func(_ context.Context, _ string) ([]Track, error) {
		return []Track{
			{Name: "Song", Artist: "Artist"},
			{Name: "Song", Artist: "Artist"},
		}, nil
	})

	got, err := BuildSongMap(context.Background(), eligible, lister)
	if err != nil {
		t.Fatalf("BuildSongMap() error = %v", err)
	}

	want := SongMap{
		{Name: "Song", Artist: "Artist"}: {"P1", "P1"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("BuildSongMap() = %v, want %v", got, want)
	}
}

func TestBuildSongMapListerError(t *testing.T) {
	wantErr := errors.New("upstream down")
	lister := TrackListerFunc(func(_ context.Context, _ string) ([]Track, error) {
		return nil, wantErr
	})

	_, err := BuildSongMap(context.Background(), map[string]string{"P1": "href"}, lister)
	if !errors.Is(err, wantErr) {
		t.Errorf("BuildSongMap() error = %v, want wrapped %v", err, wantErr)
	}
}
