// Package authz holds the capability checks shared by every handler.
// A failed check is always core.ErrForbidden and never says anything about the target.
package authz

import (
	"context"

	"github.com/trezcool/quizhub/core"
	"github.com/trezcool/quizhub/core/user"
)

// Actor is whoever performs a request.
type Actor struct {
	ID   int
	Role string
}

func ActorOf(usr user.User) Actor {
	return Actor{ID: usr.ID, Role: usr.Role}
}

func (a Actor) IsAdmin() bool   { return a.Role == user.RoleAdmin }
func (a Actor) IsTeacher() bool { return a.Role == user.RoleTeacher }
func (a Actor) IsStudent() bool { return a.Role == user.RoleStudent }

// Grants answers the relationship questions the predicates are built on.
type Grants interface {
	IsEnrolled(ctx context.Context, userID, subjectID int) (bool, error)
	IsAssigned(ctx context.Context, teacherID, subjectID int) (bool, error)
}

type (
	enrollmentChecker interface {
		IsEnrolled(ctx context.Context, userID, subjectID int) (bool, error)
	}

	assignmentChecker interface {
		IsAssigned(ctx context.Context, teacherID, subjectID int) (bool, error)
	}

	serviceGrants struct {
		enrollmentChecker
		assignmentChecker
	}
)

// NewGrants combines the enrollment and teacher assignment lookups.
func NewGrants(enrollments enrollmentChecker, assignments assignmentChecker) Grants {
	return serviceGrants{enrollments, assignments}
}

type Policy struct {
	grants Grants
}

func NewPolicy(grants Grants) *Policy {
	return &Policy{grants: grants}
}

// CanManageSubject: admins, and teachers assigned to the subject.
func (p *Policy) CanManageSubject(ctx context.Context, actor Actor, subjectID int) (bool, error) {
	switch {
	case actor.IsAdmin():
		return true, nil
	case actor.IsTeacher():
		return p.grants.IsAssigned(ctx, actor.ID, subjectID)
	}
	return false, nil
}

// CanStudySubject: students actively enrolled in the subject.
func (p *Policy) CanStudySubject(ctx context.Context, actor Actor, subjectID int) (bool, error) {
	if !actor.IsStudent() {
		return false, nil
	}
	return p.grants.IsEnrolled(ctx, actor.ID, subjectID)
}

// CanViewSubject: whoever can manage or study the subject.
func (p *Policy) CanViewSubject(ctx context.Context, actor Actor, subjectID int) (bool, error) {
	if ok, err := p.CanManageSubject(ctx, actor, subjectID); ok || err != nil {
		return ok, err
	}
	return p.CanStudySubject(ctx, actor, subjectID)
}

func IsSelfOrAdmin(actor Actor, userID int) bool {
	return actor.IsAdmin() || actor.ID == userID
}

func IsOwner(actor Actor, ownerID int) bool {
	return actor.ID == ownerID
}

func (p *Policy) RequireManageSubject(ctx context.Context, actor Actor, subjectID int) error {
	return require(p.CanManageSubject(ctx, actor, subjectID))
}

func (p *Policy) RequireStudySubject(ctx context.Context, actor Actor, subjectID int) error {
	return require(p.CanStudySubject(ctx, actor, subjectID))
}

func (p *Policy) RequireViewSubject(ctx context.Context, actor Actor, subjectID int) error {
	return require(p.CanViewSubject(ctx, actor, subjectID))
}

func RequireSelfOrAdmin(actor Actor, userID int) error {
	return require(IsSelfOrAdmin(actor, userID), nil)
}

func RequireOwner(actor Actor, ownerID int) error {
	return require(IsOwner(actor, ownerID), nil)
}

func require(ok bool, err error) error {
	if err != nil {
		return err
	}
	if !ok {
		return core.ErrForbidden
	}
	return nil
}
