package session

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/wealthbuilder-ke/wealthbuilder/internal/api"
	"github.com/wealthbuilder-ke/wealthbuilder/internal/platform/cache"
)

var testUser = api.User{
	Email:         "a@b.com",
	LiteracyLevel: api.LevelBeginner,
	PrimaryGoal:   api.GoalLearning,
}

// failingStore fails every write.
type failingStore struct {
	MemoryStore
}

func (f *failingStore) Save(context.Context, Record) error { return errors.New("disk full") }
func (f *failingStore) Clear(context.Context) error       { return errors.New("disk full") }

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-1",
		"exp": exp.Unix(),
	}).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}
	return tok
}

func TestSession_LoginLogout(t *testing.T) {
	store := NewMemoryStore()
	s := New(store)
	ctx := context.Background()

	if s.IsAuthenticated() {
		t.Fatal("new session should not be authenticated")
	}

	if err := s.Login(ctx, "t1", testUser); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if !s.IsAuthenticated() {
		t.Error("IsAuthenticated() = false after login")
	}
	if s.Token() != "t1" {
		t.Errorf("Token() = %q, want t1", s.Token())
	}
	user, ok := s.User()
	if !ok || user.LiteracyLevel != api.LevelBeginner {
		t.Errorf("User() = %+v, %v", user, ok)
	}

	rec, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("store.Load() error = %v", err)
	}
	if rec.Token != "t1" || rec.DisplayName != "a@b.com" {
		t.Errorf("persisted record = %+v", rec)
	}

	if err := s.Logout(ctx); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if s.IsAuthenticated() || s.Token() != "" {
		t.Error("session still authenticated after logout")
	}
	if _, ok := s.User(); ok {
		t.Error("User() still present after logout")
	}
	if _, err := store.Load(ctx); !errors.Is(err, ErrNoRecord) {
		t.Errorf("store.Load() after logout error = %v, want ErrNoRecord", err)
	}
}

func TestSession_Login_EmptyToken(t *testing.T) {
	s := New(NewMemoryStore())
	if err := s.Login(context.Background(), "", testUser); !errors.Is(err, ErrEmptyToken) {
		t.Fatalf("Login() error = %v, want ErrEmptyToken", err)
	}
	if s.IsAuthenticated() {
		t.Error("session should not be authenticated")
	}
}

func TestSession_Login_PersistFailureKeepsState(t *testing.T) {
	s := New(&failingStore{})
	if err := s.Login(context.Background(), "t1", testUser); err == nil {
		t.Fatal("Login() should fail when the store fails")
	}
	if s.IsAuthenticated() {
		t.Error("state changed despite persist failure")
	}
}

func TestSession_Logout_ClearsStateEvenWhenStoreFails(t *testing.T) {
	store := &failingStore{}
	s := New(store)
	s.token = "t1"
	s.user = &testUser

	if err := s.Logout(context.Background()); err == nil {
		t.Fatal("Logout() should report the store failure")
	}
	if s.IsAuthenticated() {
		t.Error("session still authenticated after logout")
	}
}

func TestSession_Restore(t *testing.T) {
	ctx := context.Background()

	t.Run("no record", func(t *testing.T) {
		s := New(NewMemoryStore())
		if err := s.Restore(ctx); err != nil {
			t.Fatalf("Restore() error = %v", err)
		}
		if s.IsAuthenticated() {
			t.Error("should not be authenticated")
		}
	})

	t.Run("valid record", func(t *testing.T) {
		store := NewMemoryStore()
		store.Save(ctx, Record{Token: "t1", DisplayName: "Wanjiru", User: api.User{Email: "w@example.com"}})

		s := New(store)
		if err := s.Restore(ctx); err != nil {
			t.Fatalf("Restore() error = %v", err)
		}
		if !s.IsAuthenticated() {
			t.Fatal("should be authenticated")
		}
		user, _ := s.User()
		if user.DisplayName() != "Wanjiru" {
			t.Errorf("DisplayName() = %q, want Wanjiru", user.DisplayName())
		}
	})

	t.Run("expired jwt", func(t *testing.T) {
		store := NewMemoryStore()
		store.Save(ctx, Record{Token: signedToken(t, time.Now().Add(-time.Hour)), User: testUser})

		s := New(store)
		if err := s.Restore(ctx); err != nil {
			t.Fatalf("Restore() error = %v", err)
		}
		if s.IsAuthenticated() {
			t.Error("expired token should not authenticate")
		}
		if _, err := store.Load(ctx); !errors.Is(err, ErrNoRecord) {
			t.Errorf("expired record should be cleared, Load() error = %v", err)
		}
	})

	unreadable := []struct {
		name  string
		write func(t *testing.T, path string)
	}{
		{
			name: "rotated secret",
			write: func(t *testing.T, path string) {
				old, _ := NewFileStore(path, "old-secret")
				if err := old.Save(ctx, Record{Token: "t1", User: testUser}); err != nil {
					t.Fatalf("Save() error = %v", err)
				}
			},
		},
		{
			name: "corrupt file",
			write: func(t *testing.T, path string) {
				if err := os.WriteFile(path, []byte("garbage"), 0o600); err != nil {
					t.Fatal(err)
				}
			},
		},
	}
	for _, tt := range unreadable {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "session")
			tt.write(t, path)

			store, _ := NewFileStore(path, "new-secret")
			s := New(store)
			if err := s.Restore(ctx); err != nil {
				t.Fatalf("Restore() error = %v", err)
			}
			if s.IsAuthenticated() {
				t.Error("unreadable record should not authenticate")
			}
			if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
				t.Errorf("unreadable session file should be removed, Stat() error = %v", err)
			}
		})
	}
}

func TestSession_TokenExpiresWhileHeld(t *testing.T) {
	now := time.Now()
	s := New(NewMemoryStore())
	s.now = func() time.Time { return now }

	if err := s.Login(context.Background(), signedToken(t, now.Add(time.Minute)), testUser); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if !s.IsAuthenticated() {
		t.Fatal("fresh token should authenticate")
	}

	s.now = func() time.Time { return now.Add(2 * time.Minute) }
	if s.IsAuthenticated() {
		t.Error("token past exp should not authenticate")
	}
}

func TestNew_NilStorePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("New(nil) should panic")
		}
	}()
	New(nil)
}

func TestFileStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "session")

	store, err := NewFileStore(path, "correct horse")
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}

	if _, err := store.Load(ctx); !errors.Is(err, ErrNoRecord) {
		t.Fatalf("Load() on missing file error = %v, want ErrNoRecord", err)
	}

	want := Record{Token: "t1", DisplayName: "a@b.com", User: testUser}
	if err := store.Save(ctx, want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("file mode = %v, want 0600", info.Mode().Perm())
	}
	raw, _ := os.ReadFile(path)
	if bytes.Contains(raw, []byte("a@b.com")) {
		t.Error("session file appears to hold plaintext")
	}

	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != want {
		t.Errorf("Load() = %+v, want %+v", got, want)
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("second Clear() error = %v", err)
	}
	if _, err := store.Load(ctx); !errors.Is(err, ErrNoRecord) {
		t.Errorf("Load() after Clear error = %v, want ErrNoRecord", err)
	}
}

func TestFileStore_WrongSecret(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session")

	writer, _ := NewFileStore(path, "secret-one")
	if err := writer.Save(ctx, Record{Token: "t1"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	reader, _ := NewFileStore(path, "secret-two")
	_, err := reader.Load(ctx)
	if !errors.Is(err, ErrBadSecret) || !errors.Is(err, ErrUnreadable) {
		t.Errorf("Load() error = %v, want ErrBadSecret and ErrUnreadable", err)
	}
}

func TestFileStore_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session")
	if err := os.WriteFile(path, []byte("{\"token\":\"plain\"}"), 0o600); err != nil {
		t.Fatal(err)
	}

	store, _ := NewFileStore(path, "secret")
	if _, err := store.Load(context.Background()); !errors.Is(err, ErrUnreadable) {
		t.Errorf("Load() error = %v, want ErrUnreadable", err)
	}
}

func TestNewFileStore_Validation(t *testing.T) {
	if _, err := NewFileStore("", "s"); err == nil {
		t.Error("empty path should fail")
	}
	if _, err := NewFileStore("x", ""); err == nil {
		t.Error("empty secret should fail")
	}
}

func TestNewRedisStore_NilCache(t *testing.T) {
	if _, err := NewRedisStore(nil, "default"); err == nil {
		t.Error("NewRedisStore(nil) should fail")
	}
}

// TestRedisStore_RoundTrip runs against the Redis at WB_TEST_CACHE_URL.
func TestRedisStore_RoundTrip(t *testing.T) {
	url := os.Getenv("WB_TEST_CACHE_URL")
	if url == "" || testing.Short() {
		t.Skip("WB_TEST_CACHE_URL not set")
	}
	ctx := t.Context()
	c, err := cache.New(ctx, url)
	if err != nil {
		t.Fatalf("cache.New() error = %v", err)
	}
	defer c.Close()

	store, err := NewRedisStore(c, "test-"+uuid.NewString())
	if err != nil {
		t.Fatalf("NewRedisStore() error = %v", err)
	}
	if _, err := store.Load(ctx); !errors.Is(err, ErrNoRecord) {
		t.Fatalf("Load() on empty key error = %v, want ErrNoRecord", err)
	}

	want := Record{Token: "t1", DisplayName: "a@b.com", User: testUser}
	if err := store.Save(ctx, want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != want {
		t.Errorf("Load() = %+v, want %+v", got, want)
	}

	s := New(store)
	if err := s.Restore(ctx); err != nil || !s.IsAuthenticated() {
		t.Fatalf("Restore() = %v, authenticated %v", err, s.IsAuthenticated())
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if _, err := store.Load(ctx); !errors.Is(err, ErrNoRecord) {
		t.Errorf("Load() after Clear error = %v, want ErrNoRecord", err)
	}
}
