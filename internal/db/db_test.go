package db

import (
	"errors"
	"strings"
	"testing"

	"github.com/KramerO/ollama-flow-sub002/internal/config"
	"github.com/KramerO/ollama-flow-sub002/internal/models"
)

func TestDSN(t *testing.T) {
	tests := []struct {
		name     string
		user     string
		host     string
		port     int
		database string
		want     string
	}{
		{
			name:     "default user",
			host:     "127.0.0.1",
			port:     3306,
			database: "ollama_flow",
			want:     "root@tcp(127.0.0.1:3306)/ollama_flow?parseTime=true",
		},
		{
			name:     "custom user host and port",
			user:     "flow",
			host:     "10.0.0.5",
			port:     3307,
			database: "drones",
			want:     "flow@tcp(10.0.0.5:3307)/drones?parseTime=true",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DSN(tt.user, tt.host, tt.port, tt.database)
			if got != tt.want {
				t.Errorf("DSN() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDSN_ParseTimeFlag(t *testing.T) {
	dsn := DSN("", "localhost", 3306, "test")
	if !strings.Contains(dsn, "parseTime=true") {
		t.Errorf("DSN missing parseTime=true: %s", dsn)
	}
}

func TestAllModels_Count(t *testing.T) {
	if got := len(AllModels()); got != 3 {
		t.Errorf("AllModels() returned %d models, want 3", got)
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(config.DatabaseConfig{Driver: "oracle"})
	if err == nil {
		t.Fatal("expected error for unknown driver")
	}
	if !strings.Contains(err.Error(), "unknown driver") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "unknown driver")
	}
}

func TestOpen_SQLiteMigrate(t *testing.T) {
	gormDB, err := Open(config.DatabaseConfig{Driver: config.DriverSQLite, Path: ":memory:"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer Close(gormDB)

	if err := AutoMigrate(gormDB); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	for _, m := range []interface{}{&models.Message{}, &models.Agent{}, &models.Workflow{}} {
		if !gormDB.Migrator().HasTable(m) {
			t.Errorf("table for %T not created", m)
		}
	}
}

func TestUnavailable_Wraps(t *testing.T) {
	cause := errors.New("sql: database is closed")
	err := Unavailable("mailbox: enqueue", cause)
	if !errors.Is(err, ErrUnavailable) {
		t.Error("errors.Is(err, ErrUnavailable) = false")
	}
	if !errors.Is(err, cause) {
		t.Error("cause missing from chain")
	}
	if !strings.HasPrefix(err.Error(), "mailbox: enqueue: store unavailable") {
		t.Errorf("error = %q", err.Error())
	}
}

func TestUnavailable_Nil(t *testing.T) {
	if err := Unavailable("op", nil); err != nil {
		t.Errorf("Unavailable(nil) = %v, want nil", err)
	}
}
