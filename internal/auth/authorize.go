package auth

import (
	"context"
	"errors"
)

// Action is one of the CRUD-ish verbs the routing layer derives from the
// request method and path.
type Action string

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionList   Action = "list"
)

// OwnershipStore answers the single data-store question the engine needs:
// does resource type T with id I belong to principal P.
type OwnershipStore interface {
	OwnsResource(ctx context.Context, userID, resourceType, resourceID string) (bool, error)
}

// ownership describes how an ownership-gated rule resolves.
type ownership int

const (
	ownNone  ownership = iota // no ownership check
	ownQuery                  // ask the ownership store
	ownSelf                   // the resource id is the principal's own subject
)

// rule is one row of the static permission table: the actions a role may
// perform on a resource, and which of them are additionally gated on
// ownership for non-privileged principals.
type rule struct {
	all     bool
	actions map[Action]ownership
}

func (r rule) lookup(action Action) (ownership, bool) {
	if r.all {
		return ownNone, true
	}
	gate, ok := r.actions[action]
	return gate, ok
}

// Catalog resources are world-readable; per-user records are gated below.
var permissionTable = map[string]map[string]rule{
	RoleStaff: {
		"destinos":    {actions: map[Action]ownership{ActionRead: ownNone, ActionList: ownNone}},
		"naves":       {actions: map[Action]ownership{ActionRead: ownNone, ActionList: ownNone}},
		"rutas":       {actions: map[Action]ownership{ActionRead: ownNone, ActionList: ownNone}},
		"actividades": {actions: map[Action]ownership{ActionRead: ownNone, ActionList: ownNone}},
		"reservas":    {all: true},
		"usuarios":    {all: true},
		"resenas":     {all: true},
	},
	RoleUser: {
		"destinos":    {actions: map[Action]ownership{ActionRead: ownNone, ActionList: ownNone}},
		"naves":       {actions: map[Action]ownership{ActionRead: ownNone, ActionList: ownNone}},
		"rutas":       {actions: map[Action]ownership{ActionRead: ownNone, ActionList: ownNone}},
		"actividades": {actions: map[Action]ownership{ActionRead: ownNone, ActionList: ownNone}},
		"reservas": {actions: map[Action]ownership{
			ActionCreate: ownNone, // nothing to own yet
			ActionRead:   ownQuery,
			ActionUpdate: ownQuery,
			ActionDelete: ownQuery,
		}},
		"usuarios": {actions: map[Action]ownership{
			ActionRead:   ownSelf,
			ActionUpdate: ownSelf,
		}},
		"resenas": {actions: map[Action]ownership{
			ActionCreate: ownNone,
			ActionList:   ownNone,
			ActionRead:   ownNone,
			ActionUpdate: ownQuery,
			ActionDelete: ownQuery,
		}},
	},
}

// Engine maps (principal, resource, action, optional resource id) to an
// allow/deny decision. Pure apart from the ownership callback; unrecognized
// input always denies, it never propagates as an allow.
type Engine struct {
	owners OwnershipStore
}

func NewEngine(owners OwnershipStore) *Engine {
	return &Engine{owners: owners}
}

// Authorize returns the decision. The error return reports ownership-store
// failures for logging; the decision is already deny in that case.
func (e *Engine) Authorize(ctx context.Context, p Principal, resource string, action Action, resourceID string) (bool, error) {
	if resource == "" || action == "" {
		return false, nil
	}

	// Explicit permission grants short-circuit the role rules.
	if p.HasPermission(resource, action) {
		return true, nil
	}

	if p.HasRole(RoleAdmin) {
		return true, nil
	}

	role := RoleUser
	if p.HasRole(RoleStaff) {
		role = RoleStaff
	}
	resourceRules, ok := permissionTable[role]
	if !ok {
		return false, nil
	}
	r, ok := resourceRules[resource]
	if !ok {
		return false, nil
	}
	gate, ok := r.lookup(action)
	if !ok {
		return false, nil
	}

	switch gate {
	case ownNone:
		return true, nil
	case ownSelf:
		return resourceID != "" && p.Subject == resourceID, nil
	case ownQuery:
		if resourceID == "" {
			return false, nil
		}
		if e.owners == nil {
			return false, errors.New("auth: ownership store not configured")
		}
		owns, err := e.owners.OwnsResource(ctx, p.Subject, resource, resourceID)
		if err != nil {
			return false, err
		}
		return owns, nil
	default:
		return false, nil
	}
}
