package access

import (
	"context"
	"errors"
	"time"

	"github.com/keylock-project/keylock-core/internal/infrastructure/logging"
	"github.com/keylock-project/keylock-core/internal/key"
	"github.com/keylock-project/keylock-core/internal/node"
)

// KeyStore is the subset of key.Repository the resolver reads.
type KeyStore interface {
	GetByTag(ctx context.Context, tag string) (*key.Key, error)
	GetUser(ctx context.Context, id string) (*key.KeyUser, error)
}

// NodeStore is the subset of node.Repository the resolver reads.
type NodeStore interface {
	Get(ctx context.Context, id string) (*node.Node, error)
}

// Resolver decides whether a scanned tag opens a given node.
//
// Resolution walks the chain tag -> key -> user -> node -> room ->
// permission and stops at the first broken link. The resolver is
// stateless and fail-closed: any storage error denies with
// StatusProcessing rather than guessing.
type Resolver struct {
	keys   KeyStore
	nodes  NodeStore
	perms  PermissionRepository
	logger *logging.Logger
}

// NewResolver creates an access resolver.
func NewResolver(keys KeyStore, nodes NodeStore, perms PermissionRepository, logger *logging.Logger) *Resolver {
	if logger == nil {
		logger = logging.Default()
	}
	return &Resolver{
		keys:   keys,
		nodes:  nodes,
		perms:  perms,
		logger: logger.With("component", "access.resolver"),
	}
}

// Resolve evaluates a scan against current policy.
//
// It always returns a usable Decision; callers publish GRANT or DENY
// from Decision.Granted without inspecting errors. Node liveness is
// deliberately ignored: a node that can deliver a scan deserves an
// answer regardless of heartbeat age.
func (r *Resolver) Resolve(ctx context.Context, nodeID, tag string) *Decision {
	d := &Decision{
		NodeID:     nodeID,
		Tag:        tag,
		ResolvedAt: time.Now().UTC(),
	}

	k, err := r.keys.GetByTag(ctx, tag)
	if err != nil {
		if errors.Is(err, key.ErrKeyNotFound) {
			return r.deny(d, StatusTagNotFound)
		}
		return r.fail(d, "looking up tag", err)
	}
	if !k.IsActive {
		return r.deny(d, StatusKeyInactive)
	}
	if k.KeyUserID == nil {
		return r.deny(d, StatusKeyUnassigned)
	}
	d.KeyUserID = k.KeyUserID

	u, err := r.keys.GetUser(ctx, *k.KeyUserID)
	if err != nil {
		return r.fail(d, "looking up key user", err)
	}
	if !u.IsActive {
		return r.deny(d, StatusUserInactive)
	}

	n, err := r.nodes.Get(ctx, nodeID)
	if err != nil {
		if errors.Is(err, node.ErrNotFound) {
			return r.deny(d, StatusNodeNotFound)
		}
		return r.fail(d, "looking up node", err)
	}
	if n.RoomID == nil {
		return r.deny(d, StatusNodeUnassigned)
	}
	d.RoomID = n.RoomID

	ok, err := r.perms.Has(ctx, u.ID, *n.RoomID)
	if err != nil {
		return r.fail(d, "checking permission", err)
	}
	if !ok {
		return r.deny(d, StatusNoPermission)
	}

	d.Granted = true
	d.Status = StatusGranted
	return d
}

// deny finalises a policy denial.
func (r *Resolver) deny(d *Decision, status StatusCode) *Decision {
	d.Granted = false
	d.Status = status
	return d
}

// fail finalises an operational denial and logs the underlying cause.
func (r *Resolver) fail(d *Decision, op string, err error) *Decision {
	r.logger.Error("access check failed",
		"op", op,
		"node_id", d.NodeID,
		"tag", d.Tag,
		"error", err)
	d.Granted = false
	d.Status = StatusProcessing
	return d
}
