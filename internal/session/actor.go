// Package session carries the identity of the caller through a request.
package session

import (
	"context"

	"sewabaju/internal/apperr"
)

// Identity is what the rental engine needs to know about the caller.
type Identity interface {
	CurrentActorID() string
	IsStaff() bool
}

// Actor is either a StaffActor or a CustomerActor.
type Actor interface {
	Identity
	isActor()
}

// StaffActor is a logged-in staff member.
type StaffActor struct {
	ID    string
	Title string
}

func (a StaffActor) CurrentActorID() string { return a.ID }
func (a StaffActor) IsStaff() bool          { return true }
func (StaffActor) isActor()                 {}

// CustomerActor is a logged-in customer.
type CustomerActor struct {
	ID      string
	Address string
	Points  int
}

func (a CustomerActor) CurrentActorID() string { return a.ID }
func (a CustomerActor) IsStaff() bool          { return false }
func (CustomerActor) isActor()                 {}

type actorKey struct{}

// WithActor returns a copy of ctx carrying actor.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// FromContext returns the actor stored in ctx, if any.
func FromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(Actor)
	return actor, ok && actor != nil
}

// RequireStaff returns the staff actor in ctx or a ForbiddenError.
func RequireStaff(ctx context.Context, action string) (Actor, error) {
	actor, ok := FromContext(ctx)
	if !ok {
		return nil, &apperr.ForbiddenError{Action: action}
	}
	if !actor.IsStaff() {
		return nil, &apperr.ForbiddenError{ActorID: actor.CurrentActorID(), Action: action}
	}
	return actor, nil
}

// RequireOwnerOrStaff allows staff or the actor whose id equals ownerID.
func RequireOwnerOrStaff(ctx context.Context, ownerID, action string) (Actor, error) {
	actor, ok := FromContext(ctx)
	if !ok {
		return nil, &apperr.ForbiddenError{Action: action}
	}
	if actor.IsStaff() || actor.CurrentActorID() == ownerID {
		return actor, nil
	}
	return nil, &apperr.ForbiddenError{ActorID: actor.CurrentActorID(), Action: action}
}
