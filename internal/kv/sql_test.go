package kv

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func testSQLRoundTrip(t *testing.T, s *SQL) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := s.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("expected missing key, got ok=%v err=%v", ok, err)
	}

	if err := s.Set(ctx, "wa_blast_settings", `{"delay":2000}`); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	if err := s.Set(ctx, "wa_blast_settings", `{"delay":3000}`); err != nil {
		t.Fatalf("second Set() error: %v", err)
	}

	v, ok, err := s.Get(ctx, "wa_blast_settings")
	if err != nil || !ok {
		t.Fatalf("Get() ok=%v err=%v", ok, err)
	}
	if v != `{"delay":3000}` {
		t.Fatalf("expected upserted value, got %q", v)
	}
}

func TestSQL_SQLite(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "wasender.db")
	s, err := OpenSQL(context.Background(), SQLite, path)
	if err != nil {
		t.Fatalf("OpenSQL() error: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	testSQLRoundTrip(t, s)
}

func TestSQL_SQLiteReopenKeepsData(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "wasender.db")

	s, err := OpenSQL(ctx, SQLite, path)
	if err != nil {
		t.Fatalf("OpenSQL() error: %v", err)
	}
	if err := s.Set(ctx, "wa_blast_active_template_id", "delivery"); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	_ = s.Close()

	s, err = OpenSQL(ctx, SQLite, path)
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	defer s.Close()

	v, ok, err := s.Get(ctx, "wa_blast_active_template_id")
	if err != nil || !ok || v != "delivery" {
		t.Fatalf("unexpected Get() = %q ok=%v err=%v", v, ok, err)
	}
}

func TestSQL_Postgres(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_URL")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_URL not set")
	}

	s, err := OpenSQL(context.Background(), Postgres, dsn)
	if err != nil {
		t.Fatalf("OpenSQL() error: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	testSQLRoundTrip(t, s)
}

func TestOpenSQL_UnknownDialect(t *testing.T) {
	t.Parallel()

	if _, err := OpenSQL(context.Background(), Dialect("mysql"), "x"); err == nil {
		t.Fatalf("expected error for unknown dialect")
	}
}

func TestMemory(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	ctx := context.Background()

	if _, ok, _ := m.Get(ctx, "k"); ok {
		t.Fatalf("expected missing key")
	}
	if err := m.Set(ctx, "k", "v"); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	if v, ok, _ := m.Get(ctx, "k"); !ok || v != "v" {
		t.Fatalf("unexpected Get() = %q ok=%v", v, ok)
	}

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	if err := m.Set(canceled, "k", "x"); err == nil {
		t.Fatalf("expected context error")
	}
}
