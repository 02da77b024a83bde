package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	_ "github.com/mattn/go-sqlite3"

	"github.com/keylock-project/keylock-core/internal/access"
	"github.com/keylock-project/keylock-core/internal/infrastructure/config"
	"github.com/keylock-project/keylock-core/internal/infrastructure/logging"
	"github.com/keylock-project/keylock-core/internal/key"
	"github.com/keylock-project/keylock-core/internal/ledger"
	"github.com/keylock-project/keylock-core/internal/node"
	"github.com/keylock-project/keylock-core/internal/room"
	"github.com/keylock-project/keylock-core/internal/scanstage"
)

const testJWTSecret = "test-secret-key-at-least-32-characters-long"

// mockCommander records admin commands instead of publishing them.
type mockCommander struct {
	commands []string // "nodeID/command" or "nodeID/command/cardID"
	err      error
}

func (m *mockCommander) SendAdminCommand(nodeID, command string, cardID *string) error {
	if m.err != nil {
		return m.err
	}
	recorded := nodeID + "/" + command
	if cardID != nil {
		recorded += "/" + *cardID
	}
	m.commands = append(m.commands, recorded)
	return nil
}

// apiFixture bundles the server with direct repository access so tests
// can seed data without going through HTTP.
type apiFixture struct {
	srv       *Server
	router    http.Handler
	rooms     room.Repository
	nodes     node.Repository
	keys      key.Repository
	perms     access.PermissionRepository
	ledger    ledger.Repository
	stage     *scanstage.Cache
	commander *mockCommander
}

// testServer creates a Server backed by in-memory SQLite repositories.
func testServer(t *testing.T) *apiFixture {
	t.Helper()

	db := setupTestDB(t)
	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")

	rooms := room.NewSQLiteRepository(db)
	nodes := node.NewSQLiteRepository(db)
	keys := key.NewSQLiteRepository(db)
	perms := access.NewSQLitePermissionRepository(db)
	ledgerRepo := ledger.NewSQLiteRepository(db)
	stage := scanstage.NewCache(log)
	commander := &mockCommander{}

	srv, err := New(Deps{
		Config: config.APIConfig{
			Host: "127.0.0.1",
			Port: 0,
			Timeouts: config.APITimeoutConfig{
				Read:  5,
				Write: 5,
				Idle:  5,
			},
		},
		Security: config.SecurityConfig{
			JWT: config.JWTConfig{Secret: testJWTSecret},
		},
		Logger:    log,
		Rooms:     rooms,
		Nodes:     nodes,
		Keys:      keys,
		Perms:     perms,
		Ledger:    ledgerRepo,
		Stage:     stage,
		Commander: commander,
		Version:   "test",
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	srv.hub = NewHub(log)
	go srv.hub.Run(context.Background())

	return &apiFixture{
		srv:       srv,
		router:    srv.buildRouter(),
		rooms:     rooms,
		nodes:     nodes,
		keys:      keys,
		perms:     perms,
		ledger:    ledgerRepo,
		stage:     stage,
		commander: commander,
	}
}

// setupTestDB creates an in-memory SQLite database with the full schema.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:?_foreign_keys=on")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	schema := `
		CREATE TABLE rooms (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
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
		CREATE TABLE key_users (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			email      TEXT,
			is_active  INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		);
		CREATE TABLE keys (
			id          TEXT PRIMARY KEY,
			key_id      TEXT NOT NULL UNIQUE,
			name        TEXT,
			is_active   INTEGER NOT NULL DEFAULT 1,
			key_user_id TEXT UNIQUE REFERENCES key_users(id) ON DELETE SET NULL,
			created_at  TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			updated_at  TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		);
		CREATE TABLE key_user_room_permissions (
			key_user_id TEXT NOT NULL REFERENCES key_users(id) ON DELETE CASCADE,
			room_id     TEXT NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
			assigned_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			PRIMARY KEY (key_user_id, room_id)
		);
		CREATE TABLE access_logs (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp      TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			node_id        TEXT NOT NULL,
			rfid_tag       TEXT NOT NULL,
			access_granted INTEGER NOT NULL,
			reason         TEXT,
			room_id        TEXT,
			key_user_id    TEXT
		);
	`

	if _, execErr := db.Exec(schema); execErr != nil {
		db.Close()
		t.Fatalf("failed to create test schema: %v", execErr)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

// testToken mints a valid HS256 token the way the admin UI would.
func testToken(t *testing.T) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "admin",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("signing test token: %v", err)
	}
	return signed
}

// authedRequest builds a request carrying a valid bearer token.
func authedRequest(t *testing.T, method, target, body string) *http.Request {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+testToken(t))
	return req
}

func (f *apiFixture) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

// ─── Health Endpoint Tests ─────────────────────────────────────────

func TestHealth(t *testing.T) {
	f := testServer(t)

	w := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	if w.Code != http.StatusOK {
		t.Errorf("health status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("status = %v, want ok", resp["status"])
	}
	if resp["version"] != "test" {
		t.Errorf("version = %v, want test", resp["version"])
	}
}

// ─── Middleware Tests ──────────────────────────────────────────────

func TestRequestID_Generated(t *testing.T) {
	f := testServer(t)

	w := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header to be set")
	}
}

func TestRequestID_PreservesClient(t *testing.T) {
	f := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "client-123")
	w := f.do(req)

	if got := w.Header().Get("X-Request-ID"); got != "client-123" {
		t.Errorf("X-Request-ID = %q, want %q", got, "client-123")
	}
}

func TestCORS_Preflight(t *testing.T) {
	f := testServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := f.do(req)

	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("ACAO = %q, want %q", got, "http://localhost:3000")
	}
}

// ─── Auth Tests ────────────────────────────────────────────────────

func TestAuth_MissingToken(t *testing.T) {
	f := testServer(t)

	w := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/rooms", nil))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestAuth_InvalidToken(t *testing.T) {
	f := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/rooms", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	w := f.do(req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestAuth_WrongSecret(t *testing.T) {
	f := testServer(t)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "admin",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte("a-different-secret-that-is-long-enough"))
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/rooms", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	w := f.do(req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestAuth_ExpiredToken(t *testing.T) {
	f := testServer(t)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "admin",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/rooms", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	w := f.do(req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestAuth_ValidToken(t *testing.T) {
	f := testServer(t)

	w := f.do(authedRequest(t, http.MethodGet, "/api/v1/rooms", ""))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}
}

// ─── Room CRUD Tests ───────────────────────────────────────────────

func TestCreateAndGetRoom(t *testing.T) {
	f := testServer(t)

	w := f.do(authedRequest(t, http.MethodPost, "/api/v1/rooms", `{"name":"Server Room"}`))
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, want %d; body: %s", w.Code, http.StatusCreated, w.Body.String())
	}

	var created room.Room
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("unmarshal created: %v", err)
	}
	if created.ID == "" {
		t.Error("expected room ID to be auto-generated")
	}

	w = f.do(authedRequest(t, http.MethodGet, "/api/v1/rooms/"+created.ID, ""))
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d, want %d", w.Code, http.StatusOK)
	}

	var got room.Room
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal got: %v", err)
	}
	if got.Name != "Server Room" {
		t.Errorf("name = %q, want %q", got.Name, "Server Room")
	}
}

func TestCreateRoom_EmptyName(t *testing.T) {
	f := testServer(t)

	w := f.do(authedRequest(t, http.MethodPost, "/api/v1/rooms", `{"name":""}`))

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestGetRoom_NotFound(t *testing.T) {
	f := testServer(t)

	w := f.do(authedRequest(t, http.MethodGet, "/api/v1/rooms/nonexistent", ""))

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestDeleteRoom(t *testing.T) {
	f := testServer(t)
	ctx := context.Background()

	r := &room.Room{ID: "room-1", Name: "Workshop"}
	if err := f.rooms.Create(ctx, r); err != nil {
		t.Fatalf("Create: %v", err)
	}

	w := f.do(authedRequest(t, http.MethodDelete, "/api/v1/rooms/room-1", ""))
	if w.Code != http.StatusNoContent {
		t.Errorf("delete status = %d, want %d", w.Code, http.StatusNoContent)
	}

	w = f.do(authedRequest(t, http.MethodGet, "/api/v1/rooms/room-1", ""))
	if w.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

// ─── Node Tests ────────────────────────────────────────────────────

// seedNode inserts a node as heartbeat ingestion would.
func seedNode(t *testing.T, f *apiFixture, id string) {
	t.Helper()

	hb := &node.Heartbeat{NodeID: id, ReceivedAt: time.Now().UTC()}
	if err := f.nodes.Upsert(context.Background(), hb); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
}

func TestListNodes_OnlineStatus(t *testing.T) {
	f := testServer(t)
	seedNode(t, f, "door-01")

	w := f.do(authedRequest(t, http.MethodGet, "/api/v1/nodes", ""))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp []map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp) != 1 {
		t.Fatalf("node count = %d, want 1", len(resp))
	}
	if resp[0]["online"] != true {
		t.Errorf("online = %v, want true (just heartbeat)", resp[0]["online"])
	}
}

func TestUpdateNode_RenameAndAssignRoom(t *testing.T) {
	f := testServer(t)
	ctx := context.Background()
	seedNode(t, f, "door-01")

	if err := f.rooms.Create(ctx, &room.Room{ID: "room-1", Name: "Lab"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	body := `{"name":"Lab Door","room_id":"room-1"}`
	w := f.do(authedRequest(t, http.MethodPatch, "/api/v1/nodes/door-01", body))
	if w.Code != http.StatusOK {
		t.Fatalf("patch status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var got nodeResponse
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Name == nil || *got.Name != "Lab Door" {
		t.Errorf("name = %v, want Lab Door", got.Name)
	}
	if got.RoomID == nil || *got.RoomID != "room-1" {
		t.Errorf("room_id = %v, want room-1", got.RoomID)
	}
}

func TestUpdateNode_DetachRoom(t *testing.T) {
	f := testServer(t)
	ctx := context.Background()
	seedNode(t, f, "door-01")

	if err := f.rooms.Create(ctx, &room.Room{ID: "room-1", Name: "Lab"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	roomID := "room-1"
	if err := f.nodes.AssignRoom(ctx, "door-01", &roomID); err != nil {
		t.Fatalf("AssignRoom: %v", err)
	}

	// Explicit null detaches; an absent field would leave it alone.
	w := f.do(authedRequest(t, http.MethodPatch, "/api/v1/nodes/door-01", `{"room_id":null}`))
	if w.Code != http.StatusOK {
		t.Fatalf("patch status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var got nodeResponse
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.RoomID != nil {
		t.Errorf("room_id = %v, want nil after detach", *got.RoomID)
	}
}

func TestUpdateNode_UnknownRoom(t *testing.T) {
	f := testServer(t)
	seedNode(t, f, "door-01")

	w := f.do(authedRequest(t, http.MethodPatch, "/api/v1/nodes/door-01", `{"room_id":"ghost"}`))

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

// ─── Staged Scan Tests ─────────────────────────────────────────────

func TestGetStagedScan(t *testing.T) {
	f := testServer(t)
	seedNode(t, f, "door-01")

	f.stage.Record("door-01", "AABBCC", scanstage.ModeEnrollment)

	w := f.do(authedRequest(t, http.MethodGet, "/api/v1/nodes/door-01/scan", ""))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var scan scanstage.Scan
	if err := json.Unmarshal(w.Body.Bytes(), &scan); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if scan.CardID != "AABBCC" {
		t.Errorf("card_id = %q, want AABBCC", scan.CardID)
	}
}

func TestGetStagedScan_ModeMismatch(t *testing.T) {
	f := testServer(t)

	f.stage.Record("door-01", "AABBCC", scanstage.ModeAccessCheck)

	// Default mode is enrollment, so an access-check scan stays hidden.
	w := f.do(authedRequest(t, http.MethodGet, "/api/v1/nodes/door-01/scan", ""))
	if w.Code != http.StatusNotFound {
		t.Errorf("default mode status = %d, want %d", w.Code, http.StatusNotFound)
	}

	w = f.do(authedRequest(t, http.MethodGet, "/api/v1/nodes/door-01/scan?mode=access-check", ""))
	if w.Code != http.StatusOK {
		t.Errorf("access-check mode status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestGetStagedScan_InvalidMode(t *testing.T) {
	f := testServer(t)

	w := f.do(authedRequest(t, http.MethodGet, "/api/v1/nodes/door-01/scan?mode=bogus", ""))

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestClearStagedScan(t *testing.T) {
	f := testServer(t)

	f.stage.Record("door-01", "AABBCC", scanstage.ModeEnrollment)

	w := f.do(authedRequest(t, http.MethodDelete, "/api/v1/nodes/door-01/scan", ""))
	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if _, ok := f.stage.Peek("door-01", scanstage.ModeEnrollment); ok {
		t.Error("expected staged scan to be cleared")
	}
}

// ─── Enrollment Tests ──────────────────────────────────────────────

func TestStartEnrollment(t *testing.T) {
	f := testServer(t)
	seedNode(t, f, "door-01")

	// A stale scan from a previous attempt should not leak through.
	f.stage.Record("door-01", "OLD111", scanstage.ModeEnrollment)

	w := f.do(authedRequest(t, http.MethodPost, "/api/v1/nodes/door-01/enrollment/start", ""))
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusAccepted, w.Body.String())
	}

	if len(f.commander.commands) != 1 || f.commander.commands[0] != "door-01/START_KEY_REGISTRATION" {
		t.Errorf("commands = %v, want [door-01/START_KEY_REGISTRATION]", f.commander.commands)
	}
	if _, ok := f.stage.Peek("door-01", scanstage.ModeEnrollment); ok {
		t.Error("expected stale scan to be cleared on start")
	}
}

func TestStartEnrollment_UnknownNode(t *testing.T) {
	f := testServer(t)

	w := f.do(authedRequest(t, http.MethodPost, "/api/v1/nodes/ghost/enrollment/start", ""))

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestStartEnrollment_BrokerUnreachable(t *testing.T) {
	f := testServer(t)
	seedNode(t, f, "door-01")

	f.commander.err = fmt.Errorf("not connected")

	w := f.do(authedRequest(t, http.MethodPost, "/api/v1/nodes/door-01/enrollment/start", ""))

	if w.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadGateway)
	}
}

func TestCompleteEnrollment(t *testing.T) {
	f := testServer(t)
	seedNode(t, f, "door-01")

	tests := []struct {
		name string
		body string
		want string
	}{
		// Success carries the staged card id so the node knows what it registered.
		{"success sends KEY_REG_SUCCESS", `{"success":true}`, "door-01/KEY_REG_SUCCESS/AABBCC"},
		{"failure sends KEY_REG_FAIL", `{"success":false}`, "door-01/KEY_REG_FAIL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.commander.commands = nil
			f.stage.Record("door-01", "AABBCC", scanstage.ModeEnrollment)

			w := f.do(authedRequest(t, http.MethodPost, "/api/v1/nodes/door-01/enrollment/complete", tt.body))
			if w.Code != http.StatusAccepted {
				t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusAccepted, w.Body.String())
			}

			if len(f.commander.commands) != 1 || f.commander.commands[0] != tt.want {
				t.Errorf("commands = %v, want [%s]", f.commander.commands, tt.want)
			}
			if _, ok := f.stage.Peek("door-01", scanstage.ModeEnrollment); ok {
				t.Error("expected staged scan to be cleared on completion")
			}
		})
	}
}

// ─── Key User and Key Tests ────────────────────────────────────────

func TestCreateKeyUser(t *testing.T) {
	f := testServer(t)

	w := f.do(authedRequest(t, http.MethodPost, "/api/v1/key-users", `{"name":"Ada"}`))
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusCreated, w.Body.String())
	}

	var created key.KeyUser
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !created.IsActive {
		t.Error("expected new key user to start active")
	}
}

func TestCreateKey_DuplicateTag(t *testing.T) {
	f := testServer(t)

	w := f.do(authedRequest(t, http.MethodPost, "/api/v1/keys", `{"key_id":"AABBCC"}`))
	if w.Code != http.StatusCreated {
		t.Fatalf("first create status = %d, want %d; body: %s", w.Code, http.StatusCreated, w.Body.String())
	}

	w = f.do(authedRequest(t, http.MethodPost, "/api/v1/keys", `{"key_id":"AABBCC"}`))
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate create status = %d, want %d", w.Code, http.StatusConflict)
	}
}

func TestAssignKeyHolder_UserAlreadyHoldsKey(t *testing.T) {
	f := testServer(t)
	ctx := context.Background()

	if err := f.keys.CreateUser(ctx, &key.KeyUser{ID: "user-1", Name: "Ada", IsActive: true}); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	userID := "user-1"
	if err := f.keys.CreateKey(ctx, &key.Key{ID: "key-1", KeyID: "AABBCC", IsActive: true, KeyUserID: &userID}); err != nil {
		t.Fatalf("CreateKey: %v", err)
	}
	if err := f.keys.CreateKey(ctx, &key.Key{ID: "key-2", KeyID: "DDEEFF", IsActive: true}); err != nil {
		t.Fatalf("CreateKey: %v", err)
	}

	w := f.do(authedRequest(t, http.MethodPut, "/api/v1/keys/key-2/holder", `{"key_user_id":"user-1"}`))
	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d", w.Code, http.StatusConflict)
	}
}

func TestSetKeyUserActive(t *testing.T) {
	f := testServer(t)
	ctx := context.Background()

	if err := f.keys.CreateUser(ctx, &key.KeyUser{ID: "user-1", Name: "Ada", IsActive: true}); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	w := f.do(authedRequest(t, http.MethodPut, "/api/v1/key-users/user-1/active", `{"active":false}`))
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNoContent)
	}

	u, err := f.keys.GetUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if u.IsActive {
		t.Error("expected user to be deactivated")
	}
}

// ─── Permission Tests ──────────────────────────────────────────────

func TestGrantListRevokePermission(t *testing.T) {
	f := testServer(t)
	ctx := context.Background()

	if err := f.keys.CreateUser(ctx, &key.KeyUser{ID: "user-1", Name: "Ada", IsActive: true}); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if err := f.rooms.Create(ctx, &room.Room{ID: "room-1", Name: "Lab"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	w := f.do(authedRequest(t, http.MethodPut, "/api/v1/key-users/user-1/permissions/room-1", ""))
	if w.Code != http.StatusNoContent {
		t.Fatalf("grant status = %d, want %d; body: %s", w.Code, http.StatusNoContent, w.Body.String())
	}

	// Granting again is a no-op.
	w = f.do(authedRequest(t, http.MethodPut, "/api/v1/key-users/user-1/permissions/room-1", ""))
	if w.Code != http.StatusNoContent {
		t.Errorf("repeat grant status = %d, want %d", w.Code, http.StatusNoContent)
	}

	w = f.do(authedRequest(t, http.MethodGet, "/api/v1/key-users/user-1/permissions", ""))
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d, want %d", w.Code, http.StatusOK)
	}
	var perms []access.Permission
	if err := json.Unmarshal(w.Body.Bytes(), &perms); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(perms) != 1 {
		t.Fatalf("permission count = %d, want 1", len(perms))
	}

	w = f.do(authedRequest(t, http.MethodDelete, "/api/v1/key-users/user-1/permissions/room-1", ""))
	if w.Code != http.StatusNoContent {
		t.Errorf("revoke status = %d, want %d", w.Code, http.StatusNoContent)
	}

	w = f.do(authedRequest(t, http.MethodDelete, "/api/v1/key-users/user-1/permissions/room-1", ""))
	if w.Code != http.StatusNotFound {
		t.Errorf("repeat revoke status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestGrantPermission_UnknownTarget(t *testing.T) {
	f := testServer(t)

	w := f.do(authedRequest(t, http.MethodPut, "/api/v1/key-users/ghost/permissions/nowhere", ""))

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

// ─── Access Log Tests ──────────────────────────────────────────────

func TestListAccessLogs(t *testing.T) {
	f := testServer(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := f.ledger.Record(ctx, "door-01", "AABBCC", false, "DENIED_TAG_NOT_FOUND"); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	w := f.do(authedRequest(t, http.MethodGet, "/api/v1/access-logs?limit=2", ""))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var page ledger.Page
	if err := json.Unmarshal(w.Body.Bytes(), &page); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(page.Entries) != 2 {
		t.Fatalf("entry count = %d, want 2", len(page.Entries))
	}
	if page.NextCursor == nil {
		t.Fatal("expected next_cursor for remaining entries")
	}

	// Second page via cursor.
	w = f.do(authedRequest(t, http.MethodGet,
		fmt.Sprintf("/api/v1/access-logs?limit=2&cursor=%d", *page.NextCursor), ""))
	if w.Code != http.StatusOK {
		t.Fatalf("second page status = %d, want %d", w.Code, http.StatusOK)
	}
	if err := json.Unmarshal(w.Body.Bytes(), &page); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(page.Entries) != 1 {
		t.Errorf("second page entry count = %d, want 1", len(page.Entries))
	}
	if page.NextCursor != nil {
		t.Errorf("next_cursor = %v, want nil on last page", *page.NextCursor)
	}
}

func TestListAccessLogs_FilterByNode(t *testing.T) {
	f := testServer(t)
	ctx := context.Background()

	if err := f.ledger.Record(ctx, "door-01", "AABBCC", true, "GRANTED"); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := f.ledger.Record(ctx, "door-02", "DDEEFF", false, "DENIED_NO_PERMISSION"); err != nil {
		t.Fatalf("Record: %v", err)
	}

	w := f.do(authedRequest(t, http.MethodGet, "/api/v1/access-logs?node_id=door-01", ""))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var page ledger.Page
	if err := json.Unmarshal(w.Body.Bytes(), &page); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(page.Entries) != 1 {
		t.Fatalf("entry count = %d, want 1", len(page.Entries))
	}
	if page.Entries[0].NodeID != "door-01" {
		t.Errorf("node_id = %q, want door-01", page.Entries[0].NodeID)
	}
}

func TestListAccessLogs_BadCursor(t *testing.T) {
	f := testServer(t)

	w := f.do(authedRequest(t, http.MethodGet, "/api/v1/access-logs?cursor=abc", ""))

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

// ─── WebSocket Hub Tests ───────────────────────────────────────────

func TestHub_BroadcastToSubscribed(t *testing.T) {
	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")
	hub := NewHub(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	client := &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: map[string]struct{}{"access.decision": {}},
	}
	hub.Register(client)

	hub.Broadcast("access.decision", map[string]any{"node_id": "door-01", "granted": true})

	select {
	case msg := <-client.send:
		var wsMsg WSMessage
		if err := json.Unmarshal(msg, &wsMsg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if wsMsg.EventType != "access.decision" {
			t.Errorf("event_type = %q, want %q", wsMsg.EventType, "access.decision")
		}
	case <-time.After(time.Second):
		t.Error("timed out waiting for broadcast message")
	}
}

func TestHub_NoMessageForUnsubscribed(t *testing.T) {
	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")
	hub := NewHub(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	client := &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: map[string]struct{}{"node.heartbeat": {}},
	}
	hub.Register(client)

	hub.Broadcast("access.decision", map[string]any{"node_id": "door-01"})

	select {
	case <-client.send:
		t.Error("unsubscribed client should not receive message")
	case <-time.After(100 * time.Millisecond):
		// no message received
	}
}

func TestHub_ClientCount(t *testing.T) {
	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")
	hub := NewHub(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	if hub.ClientCount() != 0 {
		t.Errorf("initial client count = %d, want 0", hub.ClientCount())
	}

	client := &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: make(map[string]struct{}),
	}
	hub.Register(client)

	if hub.ClientCount() != 1 {
		t.Errorf("after register count = %d, want 1", hub.ClientCount())
	}

	hub.Unregister(client)

	if hub.ClientCount() != 0 {
		t.Errorf("after unregister count = %d, want 0", hub.ClientCount())
	}
}
