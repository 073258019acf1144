package backend

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"estate/internal/config"
	"estate/internal/log"
	"estate/internal/storage"
	"estate/internal/storage/memory"
)

func testLogger() *log.Logger {
	return log.New(log.Config{Handler: slog.NewTextHandler(io.Discard, nil)})
}

func TestFromAppConfig(t *testing.T) {
	tests := []struct {
		name    string
		app     *config.Config
		want    Config
		wantErr bool
	}{
		{
			name: "sqlite",
			app:  &config.Config{DataBackend: "sqlite", SQLiteDBPath: "/tmp/estate.db", DataDir: "/srv/data"},
			want: Config{Type: SQLiteBackend, SQLiteDBPath: "/tmp/estate.db", DataDirectory: "/srv/data"},
		},
		{
			name: "memory defaults data dir",
			app:  &config.Config{DataBackend: "memory"},
			want: Config{Type: MemoryBackend, DataDirectory: "data"},
		},
		{name: "unknown backend", app: &config.Config{DataBackend: "sheets"}, wantErr: true},
		{name: "nil config", app: nil, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromAppConfig(tt.app)
			if (err != nil) != tt.wantErr {
				t.Fatalf("FromAppConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("FromAppConfig() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"sqlite with path", Config{Type: SQLiteBackend, SQLiteDBPath: "x.db"}, false},
		{"sqlite without path", Config{Type: SQLiteBackend}, true},
		{"memory", Config{Type: MemoryBackend}, false},
		{"invalid", Config{Type: "postgres"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.config.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestTypeStrings(t *testing.T) {
	got := TypeStrings()
	if len(got) != 2 || got[0] != "sqlite" || got[1] != "memory" {
		t.Errorf("TypeStrings() = %v", got)
	}
}

func TestCreateStore_Memory(t *testing.T) {
	dir := t.TempDir()
	seed := `{"projects": [{"id": "p1", "name": "Tower"}]}`
	if err := os.WriteFile(filepath.Join(dir, "seed.json"), []byte(seed), 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := NewFactory(testLogger()).CreateStore(context.Background(), Config{Type: MemoryBackend, DataDirectory: dir})
	if err != nil {
		t.Fatalf("CreateStore: %v", err)
	}
	defer res.Cleanup()

	if _, ok := res.Store.(*memory.Store); !ok {
		t.Fatalf("store = %T, want *memory.Store", res.Store)
	}
	projects, err := res.Store.ListProjects(context.Background())
	if err != nil || len(projects) != 1 || projects[0].Name != "Tower" {
		t.Errorf("projects = %+v, %v", projects, err)
	}
}

func TestCreateStore_MemoryBadSeed(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "seed.json"), []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFactory(testLogger()).CreateStore(context.Background(), Config{Type: MemoryBackend, DataDirectory: dir}); err == nil {
		t.Fatal("expected error for malformed seed")
	}
}

func TestCreateStore_SQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "estate.db")

	res, err := NewFactory(testLogger()).CreateStore(context.Background(), Config{Type: SQLiteBackend, SQLiteDBPath: path})
	if err != nil {
		t.Fatalf("CreateStore: %v", err)
	}
	defer res.Cleanup()

	repo, ok := res.Store.(*storage.SQLiteRepository)
	if !ok {
		t.Fatalf("store = %T, want *storage.SQLiteRepository", res.Store)
	}
	if repo.SchemaVersion() == 0 {
		t.Error("migrations not applied")
	}
	if err := res.Store.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestCreateStore_Invalid(t *testing.T) {
	if _, err := NewFactory(nil).CreateStore(context.Background(), Config{Type: SQLiteBackend}); err == nil {
		t.Fatal("expected validation error")
	}
}
