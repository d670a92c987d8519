package dupes

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// elemDelim separates each element's length prefix from its content.
const elemDelim = "/:"

// Encode flattens a list of strings into a single string. Each element is
// prefixed with its byte length, so elements containing the delimiter (or
// empty elements) round-trip exactly.
func Encode(items ...string) string {
	var b strings.Builder
	for _, item := range items {
		b.WriteString(strconv.Itoa(len(item)))
		b.WriteString(elemDelim)
		b.WriteString(item)
	}
	return b.String()
}

// Decode reverses Encode. It scans delimiters only at length-prefix
// positions, so delimiters embedded in element content are never
// misinterpreted.
func Decode(s string) ([]string, error) {
	var items []string
	for i := 0; i < len(s); {
		d := strings.Index(s[i:], elemDelim)
		if d < 0 {
			return nil, fmt.Errorf("missing delimiter at offset %d", i)
		}
		n, err := strconv.Atoi(s[i : i+d])
		if err != nil {
			return nil, fmt.Errorf("bad length prefix at offset %d: %w", i, err)
		}
		start := i + d + len(elemDelim)
		if n < 0 || start+n > len(s) {
			return nil, fmt.Errorf("truncated element at offset %d", i)
		}
		items = append(items, s[start:start+n])
		i = start + n
	}
	return items, nil
}

// MarshalJSON flattens each (track, artist) key into an encoded string so
// the map survives transport through string-keyed storage.
func (m SongMap) MarshalJSON() ([]byte, error) {
	flat := make(map[string][]string, len(m))
	for song, playlists := range m {
		flat[Encode(song.Name, song.Artist)] = playlists
	}
	return json.Marshal(flat)
}

// UnmarshalJSON reverses MarshalJSON.
func (m *SongMap) UnmarshalJSON(data []byte) error {
	var flat map[string][]string
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}

	out := make(SongMap, len(flat))
	for key, playlists := range flat {
		parts, err := Decode(key)
		if err != nil {
			return fmt.Errorf("decoding song key %q: %w", key, err)
		}
		if len(parts) != 2 {
			return fmt.Errorf("song key %q: want 2 elements, got %d", key, len(parts))
		}
		out[Track{Name: parts[0], Artist: parts[1]}] = playlists
	}

	*m = out
	return nil
}
