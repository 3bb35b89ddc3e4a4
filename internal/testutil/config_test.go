package testutil

import (
	"testing"
	"time"
)

func TestDefaultTestDBConfig(t *testing.T) {
	t.Run("defaults to local test database port 55432", func(t *testing.T) {
		for _, k := range []string{"TEST_DB_HOST", "TEST_DB_PORT", "TEST_DB_USER", "TEST_DB_PASSWORD", "TEST_DB_NAME"} {
			t.Setenv(k, "")
		}

		cfg := DefaultTestDBConfig()
		if cfg.Host != "localhost" {
			t.Errorf("expected Host=localhost, got %s", cfg.Host)
		}
		if cfg.Port != "55432" {
			t.Errorf("expected Port=55432 (test DB), got %s", cfg.Port)
		}
		if cfg.User != "bellsbank" || cfg.Password != "bellsbank" || cfg.DBName != "bellsbank" {
			t.Errorf("unexpected credentials: %+v", cfg)
		}
	})

	t.Run("respects TEST_DB_PORT environment variable", func(t *testing.T) {
		t.Setenv("TEST_DB_HOST", "postgres")
		t.Setenv("TEST_DB_PORT", "5432")

		cfg := DefaultTestDBConfig()
		if cfg.Host != "postgres" {
			t.Errorf("expected Host=postgres, got %s", cfg.Host)
		}
		if cfg.Port != "5432" {
			t.Errorf("expected Port=5432 (CI DB), got %s", cfg.Port)
		}
	})
}

func TestNewTestRedis(t *testing.T) {
	mr, client := NewTestRedis(t)

	if err := client.Set(t.Context(), "k", "v", time.Minute).Err(); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got, _ := mr.Get("k"); got != "v" {
		t.Fatalf("expected v, got %q", got)
	}
}

func TestSessionBuilder(t *testing.T) {
	sess := NewSession().WithUser("u1", "a@example.com").WithTokens("at", "rt").Build()
	if sess.UserID() != "u1" || sess.AccessToken != "at" || sess.RefreshToken != "rt" {
		t.Fatalf("unexpected session: %+v", sess)
	}
	if NewSession().WithoutUser().BuildPtr().User != nil {
		t.Fatal("expected no user")
	}
}
