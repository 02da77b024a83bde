package node

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// setupTestDB creates an in-memory SQLite database with the nodes and rooms tables.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:?_foreign_keys=on")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	schema := `
		CREATE TABLE rooms (
			id   TEXT PRIMARY KEY,
			name TEXT NOT NULL
		);
		CREATE TABLE nodes (
			id              TEXT PRIMARY KEY,
			name            TEXT,
			room_id         TEXT REFERENCES rooms(id) ON DELETE SET NULL,
			ip_address      TEXT,
			mac_address     TEXT,
			signal_strength INTEGER,
			uptime_seconds  INTEGER,
			last_seen       TEXT NOT NULL,
			created_at      TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			updated_at      TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		);
	`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		t.Fatalf("failed to create test schema: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }
func int64Ptr(i int64) *int64 { return &i }

func TestSQLiteRepository_Upsert(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	t.Run("creates node on first heartbeat", func(t *testing.T) {
		hb := &Heartbeat{
			NodeID:         "door-01",
			IPAddress:      strPtr("192.168.1.50"),
			SignalStrength: intPtr(-62),
			UptimeSeconds:  int64Ptr(3600),
			ReceivedAt:     time.Now().UTC(),
		}
		if err := repo.Upsert(ctx, hb); err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}

		got, err := repo.Get(ctx, "door-01")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got.IPAddress == nil || *got.IPAddress != "192.168.1.50" {
			t.Errorf("IPAddress = %v, want 192.168.1.50", got.IPAddress)
		}
		if got.SignalStrength == nil || *got.SignalStrength != -62 {
			t.Errorf("SignalStrength = %v, want -62", got.SignalStrength)
		}
	})

	t.Run("replay is idempotent and preserves omitted fields", func(t *testing.T) {
		first := &Heartbeat{
			NodeID:         "door-02",
			MACAddress:     strPtr("aa:bb:cc:dd:ee:ff"),
			SignalStrength: intPtr(-70),
			ReceivedAt:     time.Now().UTC().Add(-time.Minute),
		}
		if err := repo.Upsert(ctx, first); err != nil {
			t.Fatalf("first Upsert() error = %v", err)
		}

		// Second heartbeat omits telemetry entirely.
		later := time.Now().UTC()
		second := &Heartbeat{NodeID: "door-02", ReceivedAt: later}
		if err := repo.Upsert(ctx, second); err != nil {
			t.Fatalf("second Upsert() error = %v", err)
		}

		got, err := repo.Get(ctx, "door-02")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got.MACAddress == nil || *got.MACAddress != "aa:bb:cc:dd:ee:ff" {
			t.Errorf("MACAddress = %v, want preserved value", got.MACAddress)
		}
		if got.SignalStrength == nil || *got.SignalStrength != -70 {
			t.Errorf("SignalStrength = %v, want preserved -70", got.SignalStrength)
		}
		if got.LastSeen.Unix() != later.Unix() {
			t.Errorf("LastSeen = %v, want %v", got.LastSeen, later)
		}
	})

	t.Run("heartbeat name is upserted like telemetry", func(t *testing.T) {
		first := &Heartbeat{
			NodeID:     "door-03",
			Name:       strPtr("Front Door"),
			ReceivedAt: time.Now().UTC(),
		}
		if err := repo.Upsert(ctx, first); err != nil {
			t.Fatalf("first Upsert() error = %v", err)
		}

		got, err := repo.Get(ctx, "door-03")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got.Name == nil || *got.Name != "Front Door" {
			t.Errorf("Name = %v, want Front Door from heartbeat", got.Name)
		}

		// A nameless heartbeat keeps the existing name.
		if err := repo.Upsert(ctx, &Heartbeat{NodeID: "door-03", ReceivedAt: time.Now().UTC()}); err != nil {
			t.Fatalf("nameless Upsert() error = %v", err)
		}
		got, err = repo.Get(ctx, "door-03")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got.Name == nil || *got.Name != "Front Door" {
			t.Errorf("Name = %v, want Front Door preserved", got.Name)
		}

		// A heartbeat carrying a new name updates it.
		renamed := &Heartbeat{NodeID: "door-03", Name: strPtr("Main Entrance"), ReceivedAt: time.Now().UTC()}
		if err := repo.Upsert(ctx, renamed); err != nil {
			t.Fatalf("renaming Upsert() error = %v", err)
		}
		got, err = repo.Get(ctx, "door-03")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got.Name == nil || *got.Name != "Main Entrance" {
			t.Errorf("Name = %v, want Main Entrance", got.Name)
		}
	})

	t.Run("rejects empty node id", func(t *testing.T) {
		err := repo.Upsert(ctx, &Heartbeat{})
		if !errors.Is(err, ErrIDRequired) {
			t.Errorf("Upsert() error = %v, want ErrIDRequired", err)
		}
	})
}

func TestSQLiteRepository_AssignRoom(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	if _, err := db.Exec(`INSERT INTO rooms (id, name) VALUES ('room-001', 'Lab')`); err != nil {
		t.Fatalf("inserting test room: %v", err)
	}
	if err := repo.Upsert(ctx, &Heartbeat{NodeID: "door-01"}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	t.Run("assigns and clears room", func(t *testing.T) {
		if err := repo.AssignRoom(ctx, "door-01", strPtr("room-001")); err != nil {
			t.Fatalf("AssignRoom() error = %v", err)
		}
		got, _ := repo.Get(ctx, "door-01")
		if got.RoomID == nil || *got.RoomID != "room-001" {
			t.Errorf("RoomID = %v, want room-001", got.RoomID)
		}

		if err := repo.AssignRoom(ctx, "door-01", nil); err != nil {
			t.Fatalf("AssignRoom(nil) error = %v", err)
		}
		got, _ = repo.Get(ctx, "door-01")
		if got.RoomID != nil {
			t.Errorf("RoomID = %v, want nil after detach", got.RoomID)
		}
	})

	t.Run("returns ErrRoomNotFound for missing room", func(t *testing.T) {
		err := repo.AssignRoom(ctx, "door-01", strPtr("no-such-room"))
		if !errors.Is(err, ErrRoomNotFound) {
			t.Errorf("AssignRoom() error = %v, want ErrRoomNotFound", err)
		}
	})

	t.Run("returns ErrNotFound for missing node", func(t *testing.T) {
		err := repo.AssignRoom(ctx, "no-such-node", strPtr("room-001"))
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("AssignRoom() error = %v, want ErrNotFound", err)
		}
	})
}

func TestSQLiteRepository_Rename(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	if err := repo.Upsert(ctx, &Heartbeat{NodeID: "door-01"}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	if err := repo.Rename(ctx, "door-01", "Front Door"); err != nil {
		t.Fatalf("Rename() error = %v", err)
	}
	got, _ := repo.Get(ctx, "door-01")
	if got.Name == nil || *got.Name != "Front Door" {
		t.Errorf("Name = %v, want Front Door", got.Name)
	}

	if err := repo.Rename(ctx, "no-such-node", "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Rename() error = %v, want ErrNotFound", err)
	}
}

func TestSQLiteRepository_Delete(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	if err := repo.Upsert(ctx, &Heartbeat{NodeID: "door-01"}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	if err := repo.Delete(ctx, "door-01"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := repo.Get(ctx, "door-01"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after delete error = %v, want ErrNotFound", err)
	}
	if err := repo.Delete(ctx, "door-01"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
}

func TestNode_OnlineAt(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name     string
		lastSeen time.Time
		want     bool
	}{
		{"just seen", now, true},
		{"within threshold", now.Add(-OnlineThreshold + time.Second), true},
		{"exactly at threshold", now.Add(-OnlineThreshold), false},
		{"long gone", now.Add(-time.Hour), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := &Node{ID: "door-01", LastSeen: tt.lastSeen}
			if got := n.OnlineAt(now); got != tt.want {
				t.Errorf("OnlineAt() = %v, want %v", got, tt.want)
			}
		})
	}
}
