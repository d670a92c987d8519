package spotify

// playlistPage is one page of the current user's playlists.
type playlistPage struct {
	Items []playlistItem `json:"items"`
	Next  string         `json:"next"`
}

type playlistItem struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Tracks      struct {
		Href  string `json:"href"`
		Total int    `json:"total"`
	} `json:"tracks"`
}

// trackPage is one page of a playlist's tracks. Track is a pointer because
// the API serves null for removed or unavailable tracks.
type trackPage struct {
	Items []trackItem `json:"items"`
	Next  string      `json:"next"`
}

type trackItem struct {
	Track *struct {
		Name    string `json:"name"`
		Artists []struct {
			Name string `json:"name"`
		} `json:"artists"`
	} `json:"track"`
}

// apiError is the error envelope the Web API returns on failure.
type apiError struct {
	Error struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}
