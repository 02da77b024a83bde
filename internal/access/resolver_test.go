package access

import (
	"context"
	"errors"
	"testing"

	"github.com/keylock-project/keylock-core/internal/key"
	"github.com/keylock-project/keylock-core/internal/node"
)

// fixture wires a resolver over in-memory fakes.
type fixture struct {
	keys  *fakeKeyStore
	nodes *fakeNodeStore
	perms *fakePerms
}

type fakeKeyStore struct {
	keys  map[string]*key.Key
	users map[string]*key.KeyUser
	err   error
}

func (f *fakeKeyStore) GetByTag(_ context.Context, tag string) (*key.Key, error) {
	if f.err != nil {
		return nil, f.err
	}
	k, ok := f.keys[tag]
	if !ok {
		return nil, key.ErrKeyNotFound
	}
	return k, nil
}

func (f *fakeKeyStore) GetUser(_ context.Context, id string) (*key.KeyUser, error) {
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.users[id]
	if !ok {
		return nil, key.ErrUserNotFound
	}
	return u, nil
}

type fakeNodeStore struct {
	nodes map[string]*node.Node
	err   error
}

func (f *fakeNodeStore) Get(_ context.Context, id string) (*node.Node, error) {
	if f.err != nil {
		return nil, f.err
	}
	n, ok := f.nodes[id]
	if !ok {
		return nil, node.ErrNotFound
	}
	return n, nil
}

type fakePerms struct {
	PermissionRepository
	granted map[string]bool
	err     error
}

func (f *fakePerms) Has(_ context.Context, keyUserID, roomID string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.granted[keyUserID+"/"+roomID], nil
}

func strPtr(s string) *string { return &s }

// newFixture builds the baseline happy path: tag AABBCC belongs to an
// active key held by active user user-001, node door-01 guards room-001,
// and user-001 has permission for room-001.
func newFixture() *fixture {
	return &fixture{
		keys: &fakeKeyStore{
			keys: map[string]*key.Key{
				"AABBCC": {ID: "key-001", KeyID: "AABBCC", IsActive: true, KeyUserID: strPtr("user-001")},
			},
			users: map[string]*key.KeyUser{
				"user-001": {ID: "user-001", Name: "Alice", IsActive: true},
			},
		},
		nodes: &fakeNodeStore{
			nodes: map[string]*node.Node{
				"door-01": {ID: "door-01", RoomID: strPtr("room-001")},
			},
		},
		perms: &fakePerms{
			granted: map[string]bool{"user-001/room-001": true},
		},
	}
}

func (f *fixture) resolver() *Resolver {
	return NewResolver(f.keys, f.nodes, f.perms, nil)
}

func TestResolver_Resolve(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(f *fixture)
		nodeID     string
		tag        string
		wantStatus StatusCode
	}{
		{
			name:       "full chain grants",
			mutate:     func(*fixture) {},
			nodeID:     "door-01",
			tag:        "AABBCC",
			wantStatus: StatusGranted,
		},
		{
			name:       "unknown tag",
			mutate:     func(*fixture) {},
			nodeID:     "door-01",
			tag:        "FFFFFF",
			wantStatus: StatusTagNotFound,
		},
		{
			name: "inactive key",
			mutate: func(f *fixture) {
				f.keys.keys["AABBCC"].IsActive = false
			},
			nodeID:     "door-01",
			tag:        "AABBCC",
			wantStatus: StatusKeyInactive,
		},
		{
			name: "unassigned key",
			mutate: func(f *fixture) {
				f.keys.keys["AABBCC"].KeyUserID = nil
			},
			nodeID:     "door-01",
			tag:        "AABBCC",
			wantStatus: StatusKeyUnassigned,
		},
		{
			name: "inactive user",
			mutate: func(f *fixture) {
				f.keys.users["user-001"].IsActive = false
			},
			nodeID:     "door-01",
			tag:        "AABBCC",
			wantStatus: StatusUserInactive,
		},
		{
			name:       "unknown node",
			mutate:     func(*fixture) {},
			nodeID:     "door-99",
			tag:        "AABBCC",
			wantStatus: StatusNodeNotFound,
		},
		{
			name: "node without room",
			mutate: func(f *fixture) {
				f.nodes.nodes["door-01"].RoomID = nil
			},
			nodeID:     "door-01",
			tag:        "AABBCC",
			wantStatus: StatusNodeUnassigned,
		},
		{
			name: "no permission",
			mutate: func(f *fixture) {
				f.perms.granted = nil
			},
			nodeID:     "door-01",
			tag:        "AABBCC",
			wantStatus: StatusNoPermission,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			tt.mutate(f)

			d := f.resolver().Resolve(context.Background(), tt.nodeID, tt.tag)
			if d.Status != tt.wantStatus {
				t.Errorf("Status = %q, want %q", d.Status, tt.wantStatus)
			}
			if d.Granted != (tt.wantStatus == StatusGranted) {
				t.Errorf("Granted = %v, inconsistent with status %q", d.Granted, d.Status)
			}
			if d.NodeID != tt.nodeID || d.Tag != tt.tag {
				t.Errorf("Decision identity = (%q, %q), want (%q, %q)", d.NodeID, d.Tag, tt.nodeID, tt.tag)
			}
		})
	}
}

func TestResolver_Resolve_CarriesContext(t *testing.T) {
	t.Run("granted decision names user and room", func(t *testing.T) {
		f := newFixture()
		d := f.resolver().Resolve(context.Background(), "door-01", "AABBCC")

		if d.KeyUserID == nil || *d.KeyUserID != "user-001" {
			t.Errorf("KeyUserID = %v, want user-001", d.KeyUserID)
		}
		if d.RoomID == nil || *d.RoomID != "room-001" {
			t.Errorf("RoomID = %v, want room-001", d.RoomID)
		}
		if d.ResolvedAt.IsZero() {
			t.Error("ResolvedAt should be set")
		}
	})

	t.Run("permission denial still carries user and room", func(t *testing.T) {
		f := newFixture()
		f.perms.granted = nil
		d := f.resolver().Resolve(context.Background(), "door-01", "AABBCC")

		if d.KeyUserID == nil || *d.KeyUserID != "user-001" {
			t.Errorf("KeyUserID = %v, want user-001", d.KeyUserID)
		}
		if d.RoomID == nil || *d.RoomID != "room-001" {
			t.Errorf("RoomID = %v, want room-001", d.RoomID)
		}
	})
}

func TestResolver_Resolve_FailsClosed(t *testing.T) {
	storeErr := errors.New("database is locked")

	tests := []struct {
		name   string
		mutate func(f *fixture)
	}{
		{"key store failure", func(f *fixture) { f.keys.err = storeErr }},
		{"node store failure", func(f *fixture) { f.nodes.err = storeErr }},
		{"permission store failure", func(f *fixture) { f.perms.err = storeErr }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			tt.mutate(f)

			d := f.resolver().Resolve(context.Background(), "door-01", "AABBCC")
			if d.Granted {
				t.Error("storage failure must never grant")
			}
			if d.Status != StatusProcessing {
				t.Errorf("Status = %q, want %q", d.Status, StatusProcessing)
			}
		})
	}
}
