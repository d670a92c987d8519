package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	signer, err := NewSigner("test-secret")
	if err != nil {
		t.Fatalf("NewSigner() error = %v", err)
	}

	return NewStore(rdb, signer, zerolog.Nop()), mr
}

func TestStoreCreateAndGet(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	tokens := Tokens{AccessToken: "access", RefreshToken: "refresh", SpotifyID: "user-1"}
	signedID, err := store.Create(ctx, tokens)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := store.Tokens(ctx, signedID)
	if err != nil {
		t.Fatalf("Tokens() error = %v", err)
	}
	if got == nil || *got != tokens {
		t.Errorf("Tokens() = %+v, want %+v", got, tokens)
	}

	exists, err := store.Exists(ctx, signedID)
	if err != nil {
		t.Fatalf("Exists() error = %v", err)
	}
	if !exists {
		t.Error("Exists() = false immediately after Create()")
	}
}

func TestStoreRejectsTamperedID(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	signedID, err := store.Create(ctx, Tokens{AccessToken: "a", RefreshToken: "r", SpotifyID: "u"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	i := len(signedID) / 2
	c := byte('x')
	if signedID[i] == c {
		c = '0'
	}
	tampered := signedID[:i] + string(c) + signedID[i+1:]

	got, err := store.Tokens(ctx, tampered)
	if err != nil {
		t.Fatalf("Tokens() error = %v", err)
	}
	if got != nil {
		t.Errorf("Tokens() with tampered id = %+v, want nil", got)
	}

	exists, err := store.Exists(ctx, tampered)
	if err != nil {
		t.Fatalf("Exists() error = %v", err)
	}
	if exists {
		t.Error("Exists() with tampered id = true, want false")
	}

	ok, err := store.Update(ctx, tampered, "new-access", "")
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if ok {
		t.Error("Update() with tampered id = true, want false")
	}
}

func TestStoreTTLExpiry(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	signedID, err := store.Create(ctx, Tokens{AccessToken: "a", RefreshToken: "r", SpotifyID: "u"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	mr.FastForward(time.Hour + time.Second)

	exists, err := store.Exists(ctx, signedID)
	if err != nil {
		t.Fatalf("Exists() error = %v", err)
	}
	if exists {
		t.Error("Exists() = true after TTL elapsed")
	}

	got, err := store.Tokens(ctx, signedID)
	if err != nil {
		t.Fatalf("Tokens() error = %v", err)
	}
	if got != nil {
		t.Errorf("Tokens() after expiry = %+v, want nil", got)
	}
}

func TestStoreUpdate(t *testing.T) {
	tests := []struct {
		name         string
		accessToken  string
		refreshToken string
		want         Tokens
	}{
		{
			name:        "access token only",
			accessToken: "access-2",
			want:        Tokens{AccessToken: "access-2", RefreshToken: "refresh-1", SpotifyID: "user-1"},
		},
		{
			name:         "refresh token only",
			refreshToken: "refresh-2",
			want:         Tokens{AccessToken: "access-1", RefreshToken: "refresh-2", SpotifyID: "user-1"},
		},
		{
			name:         "both",
			accessToken:  "access-2",
			refreshToken: "refresh-2",
			want:         Tokens{AccessToken: "access-2", RefreshToken: "refresh-2", SpotifyID: "user-1"},
		},
		{
			name: "neither",
			want: Tokens{AccessToken: "access-1", RefreshToken: "refresh-1", SpotifyID: "user-1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, _ := newTestStore(t)
			ctx := context.Background()

			signedID, err := store.Create(ctx, Tokens{
				AccessToken:  "access-1",
				RefreshToken: "refresh-1",
				SpotifyID:    "user-1",
			})
			if err != nil {
				t.Fatalf("Create() error = %v", err)
			}

			ok, err := store.Update(ctx, signedID, tt.accessToken, tt.refreshToken)
			if err != nil {
				t.Fatalf("Update() error = %v", err)
			}
			if !ok {
				t.Fatal("Update() = false, want true")
			}

			got, err := store.Tokens(ctx, signedID)
			if err != nil {
				t.Fatalf("Tokens() error = %v", err)
			}
			if got == nil || *got != tt.want {
				t.Errorf("Tokens() after update = %+v, want %+v", got, tt.want)
			}
		})
	}
}

// Any update, even an empty one, pushes the expiry a full TTL out.
func TestStoreUpdateResetsTTL(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	signedID, err := store.Create(ctx, Tokens{AccessToken: "a", RefreshToken: "r", SpotifyID: "u"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	mr.FastForward(45 * time.Minute)

	ok, err := store.Update(ctx, signedID, "", "")
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if !ok {
		t.Fatal("Update() = false, want true")
	}

	// 45m + 45m past creation, but only 45m past the update.
	mr.FastForward(45 * time.Minute)

	exists, err := store.Exists(ctx, signedID)
	if err != nil {
		t.Fatalf("Exists() error = %v", err)
	}
	if !exists {
		t.Error("Exists() = false, want true after TTL reset")
	}
}

func TestStoreUpdateMissingRecord(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	signedID, err := store.Create(ctx, Tokens{AccessToken: "a", RefreshToken: "r", SpotifyID: "u"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	mr.FastForward(2 * time.Hour)

	ok, err := store.Update(ctx, signedID, "new", "")
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if ok {
		t.Error("Update() on expired session = true, want false")
	}
}

func TestStoreDelete(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	signedID, err := store.Create(ctx, Tokens{AccessToken: "a", RefreshToken: "r", SpotifyID: "u"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	ok, err := store.Delete(ctx, signedID)
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if !ok {
		t.Fatal("Delete() = false, want true")
	}

	exists, err := store.Exists(ctx, signedID)
	if err != nil {
		t.Fatalf("Exists() error = %v", err)
	}
	if exists {
		t.Error("Exists() = true after Delete()")
	}
}

func TestStoreBackendDown(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	signedID, err := store.Create(ctx, Tokens{AccessToken: "a", RefreshToken: "r", SpotifyID: "u"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	mr.Close()

	if _, err := store.Tokens(ctx, signedID); err == nil {
		t.Error("Tokens() with backend down succeeded, want error")
	}
	if _, err := store.Create(ctx, Tokens{}); err == nil {
		t.Error("Create() with backend down succeeded, want error")
	}
}
