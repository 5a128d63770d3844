// Package authz decides whether one subject may see another's data.
//
// Two distinct resolution modes exist and their asymmetry is deliberate:
// privileged lookups walk a most-privileged-first chain and default to
// deny, while plain co-member fan-out defaults to allow unless the data
// owner has explicitly revoked the capability. Downstream behavior depends
// on this difference; do not unify the two paths.
package authz

import (
	"context"
	"errors"
	"fmt"

	"github.com/kinpoint/kinpoint/internal/grant"
	"github.com/kinpoint/kinpoint/internal/membership"
)

// Capability is one visibility right an observer can hold over a subject.
type Capability string

// Capabilities.
const (
	CapabilityLocation Capability = "location"
	CapabilityBattery  Capability = "battery"
	CapabilityHistory  Capability = "history"
	CapabilityMessages Capability = "messages"
)

// Valid reports whether c is a known capability.
func (c Capability) Valid() bool {
	switch c {
	case CapabilityLocation, CapabilityBattery, CapabilityHistory, CapabilityMessages:
		return true
	}
	return false
}

// ErrUnknownCapability is returned for capability values outside the enum.
var ErrUnknownCapability = errors.New("unknown capability")

// RoleSource reports platform-wide roles.
type RoleSource interface {
	IsSuperAdmin(ctx context.Context, id string) (bool, error)
}

// AccessAuditor receives the outcome of every privileged visibility check.
type AccessAuditor interface {
	RecordAccess(ctx context.Context, observerID, subjectID, capability string, allowed bool)
}

// Resolver evaluates observer/subject visibility from membership facts and
// the two grant sources.
type Resolver struct {
	roles       RoleSource
	memberships membership.Repository
	grants      grant.Repository
	auditor     AccessAuditor
}

// NewResolver creates an authorization resolver.
func NewResolver(roles RoleSource, memberships membership.Repository, grants grant.Repository) *Resolver {
	return &Resolver{
		roles:       roles,
		memberships: memberships,
		grants:      grants,
	}
}

// SetAuditor installs an access auditor. Subsequent CanView decisions
// between distinct parties are reported to it.
func (r *Resolver) SetAuditor(a AccessAuditor) {
	r.auditor = a
}

// CanView is the privileged lookup: first match wins, most privileged
// first, and absence of any match denies.
//
//  1. Platform super-admin observers see everything.
//  2. An admin of a group containing the subject sees everything.
//  3. A supervisor grant naming the subject with the capability allows.
//  4. A directed grant subject->observer with the capability allows.
//  5. Otherwise deny.
func (r *Resolver) CanView(ctx context.Context, observerID, subjectID string, cap Capability) (bool, error) {
	allowed, err := r.canView(ctx, observerID, subjectID, cap)
	if err == nil && r.auditor != nil && observerID != subjectID {
		r.auditor.RecordAccess(ctx, observerID, subjectID, string(cap), allowed)
	}
	return allowed, err
}

func (r *Resolver) canView(ctx context.Context, observerID, subjectID string, cap Capability) (bool, error) {
	if !cap.Valid() {
		return false, fmt.Errorf("%w: %q", ErrUnknownCapability, cap)
	}
	if observerID == subjectID {
		return true, nil
	}

	isSuper, err := r.roles.IsSuperAdmin(ctx, observerID)
	if err != nil {
		return false, fmt.Errorf("super admin lookup: %w", err)
	}
	if isSuper {
		return true, nil
	}

	isAdmin, err := r.memberships.IsAdminOfSubject(ctx, observerID, subjectID)
	if err != nil {
		return false, fmt.Errorf("admin relation lookup: %w", err)
	}
	if isAdmin {
		return true, nil
	}

	sup, err := r.grants.GetSupervisorGrant(ctx, observerID, subjectID)
	if err != nil && !errors.Is(err, grant.ErrGrantNotFound) {
		return false, fmt.Errorf("supervisor grant lookup: %w", err)
	}
	if sup != nil && supervisorAllows(sup, cap) {
		return true, nil
	}

	g, err := r.grants.GetGrant(ctx, subjectID, observerID)
	if err != nil && !errors.Is(err, grant.ErrGrantNotFound) {
		return false, fmt.Errorf("grant lookup: %w", err)
	}
	if g != nil && grantAllows(g, cap) {
		return true, nil
	}

	return false, nil
}

// PeerAllowed is the co-member fan-out check: peers in a shared group see
// each other's live data unless the data owner has explicitly revoked the
// capability. No grant row means allow; a row with the flag off means deny.
func (r *Resolver) PeerAllowed(ctx context.Context, observerID, subjectID string, cap Capability) (bool, error) {
	if !cap.Valid() {
		return false, fmt.Errorf("%w: %q", ErrUnknownCapability, cap)
	}
	if observerID == subjectID {
		return true, nil
	}

	g, err := r.grants.GetGrant(ctx, subjectID, observerID)
	if errors.Is(err, grant.ErrGrantNotFound) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("grant lookup: %w", err)
	}
	return grantAllows(g, cap), nil
}

func grantAllows(g *grant.Grant, cap Capability) bool {
	switch cap {
	case CapabilityLocation:
		return g.ViewLocation
	case CapabilityBattery:
		return g.ViewBattery
	case CapabilityHistory:
		return g.ViewHistory
	case CapabilityMessages:
		return g.SendMessages
	}
	return false
}

func supervisorAllows(g *grant.SupervisorGrant, cap Capability) bool {
	switch cap {
	case CapabilityLocation:
		return g.ViewLocation
	case CapabilityBattery:
		return g.ViewBattery
	case CapabilityHistory:
		return g.ViewHistory
	case CapabilityMessages:
		return g.SendMessages
	}
	return false
}
