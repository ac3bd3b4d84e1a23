package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func testMedium(t *testing.T, m Medium) {
	t.Helper()
	ctx := context.Background()

	if _, _, err := m.Get(ctx, DefaultKey); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("Get on empty medium: got %v, want ErrKeyNotFound", err)
	}

	rev, err := m.Put(ctx, DefaultKey, []byte(`[]`), 0)
	if err != nil {
		t.Fatalf("first Put: %v", err)
	}
	if rev != 1 {
		t.Errorf("first revision = %d, want 1", rev)
	}

	value, got, err := m.Get(ctx, DefaultKey)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(value) != `[]` || got != 1 {
		t.Errorf("Get = %q rev %d, want [] rev 1", value, got)
	}

	// 过期的写入方
	if _, err := m.Put(ctx, DefaultKey, []byte(`[{"id":1}]`), 0); !errors.Is(err, ErrRevisionConflict) {
		t.Errorf("Put with stale revision: got %v, want ErrRevisionConflict", err)
	}

	rev, err = m.Put(ctx, DefaultKey, []byte(`[{"id":2}]`), 1)
	if err != nil {
		t.Fatalf("second Put: %v", err)
	}
	if rev != 2 {
		t.Errorf("second revision = %d, want 2", rev)
	}

	value, got, err = m.Get(ctx, DefaultKey)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(value) != `[{"id":2}]` || got != 2 {
		t.Errorf("Get = %q rev %d", value, got)
	}

	// 不同 key 互不影响
	if _, _, err := m.Get(ctx, "other"); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("Get other key: got %v, want ErrKeyNotFound", err)
	}
}

func TestMemoryStorage(t *testing.T) {
	m := NewMemoryStorage()
	defer m.Close()
	testMedium(t, m)
}

func TestMemoryStorageCopiesValues(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStorage()
	buf := []byte("abc")
	if _, err := m.Put(ctx, "k", buf, 0); err != nil {
		t.Fatal(err)
	}
	buf[0] = 'x'
	value, _, _ := m.Get(ctx, "k")
	if string(value) != "abc" {
		t.Errorf("stored value aliased caller buffer: %q", value)
	}
}

func TestBoltStorage(t *testing.T) {
	m, err := NewBoltStorage(filepath.Join(t.TempDir(), "tasks.db"))
	if err != nil {
		t.Fatalf("NewBoltStorage: %v", err)
	}
	defer m.Close()
	testMedium(t, m)
}

func TestBoltStoragePersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tasks.db")

	m, err := NewBoltStorage(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Put(ctx, DefaultKey, []byte(`[]`), 0); err != nil {
		t.Fatal(err)
	}
	if err := m.Close(); err != nil {
		t.Fatal(err)
	}

	m, err = NewBoltStorage(path)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()
	_, rev, err := m.Get(ctx, DefaultKey)
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if rev != 1 {
		t.Errorf("revision after reopen = %d, want 1", rev)
	}
}

func TestSQLiteStorage(t *testing.T) {
	m, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "tasks.sqlite"))
	if err != nil {
		t.Fatalf("NewSQLiteStorage: %v", err)
	}
	defer m.Close()
	testMedium(t, m)
}

func TestDialectRebind(t *testing.T) {
	q := `UPDATE kv SET v = ?, rev = ? WHERE k = ? AND rev = ?`
	if got := sqliteDialect.rebind(q); got != q {
		t.Errorf("sqlite rebind changed query: %s", got)
	}
	want := `UPDATE kv SET v = $1, rev = $2 WHERE k = $3 AND rev = $4`
	if got := postgresDialect.rebind(q); got != want {
		t.Errorf("postgres rebind = %s, want %s", got, want)
	}
}

func TestRegistryOpen(t *testing.T) {
	ctx := context.Background()

	m, err := Open(ctx, Options{Backend: "memory"})
	if err != nil {
		t.Fatalf("Open memory: %v", err)
	}
	m.Close()

	path := filepath.Join(t.TempDir(), "nested", "dir", "tasks.db")
	m, err = Open(ctx, Options{Backend: "bolt", Path: path})
	if err != nil {
		t.Fatalf("Open bolt: %v", err)
	}
	m.Close()

	if _, err := Open(ctx, Options{Backend: "floppy"}); err == nil {
		t.Error("expected error for unknown backend")
	}
	if _, err := Open(ctx, Options{Backend: "bolt"}); err == nil {
		t.Error("expected error for empty bolt path")
	}
}

func TestBackends(t *testing.T) {
	want := []string{"bolt", "memory", "mysql", "postgres", "redis", "sqlite"}
	got := Backends()
	if len(got) != len(want) {
		t.Fatalf("Backends() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Backends()[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestParseRevision(t *testing.T) {
	tests := []struct {
		in      interface{}
		want    Revision
		wantErr bool
	}{
		{nil, 0, false},
		{"", 0, false},
		{"42", 42, false},
		{"abc", 0, true},
		{7, 0, true},
	}
	for _, tt := range tests {
		got, err := parseRevision(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseRevision(%v) err = %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("parseRevision(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestSplitEntry(t *testing.T) {
	tests := []struct {
		name      string
		vals      []interface{}
		wantValue string
		wantFound bool
		wantRev   Revision
		wantErr   bool
	}{
		{"present", []interface{}{"[]", "3"}, "[]", true, 3, false},
		{"absent", []interface{}{nil, nil}, "", false, 0, false},
		// 值被删除但版本号残留
		{"orphaned revision", []interface{}{nil, "5"}, "", false, 0, false},
		{"bad revision", []interface{}{"[]", "x"}, "", false, 0, true},
		{"short reply", []interface{}{"[]"}, "", false, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, rev, err := splitEntry(tt.vals)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v", err)
			}
			if tt.wantErr {
				return
			}
			if (value != nil) != tt.wantFound || string(value) != tt.wantValue {
				t.Errorf("value = %q, found = %v", value, value != nil)
			}
			if rev != tt.wantRev {
				t.Errorf("rev = %d, want %d", rev, tt.wantRev)
			}
		})
	}
}
