package service

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/noah-isme/hifz-api/internal/models"
	"github.com/noah-isme/hifz-api/internal/policy"
	"github.com/noah-isme/hifz-api/internal/repository"
	"github.com/noah-isme/hifz-api/internal/workflow"
)

// Actor is the authenticated caller a use case runs on behalf of. For students UserID is the
// student id, for parents it is the id stored in guardian rows and for teachers the class
// teacher id.
type Actor struct {
	UserID   uint
	Role     policy.Role
	SchoolID uint
}

// Subject converts the actor for permission checks.
func (a Actor) Subject() policy.Subject {
	return policy.Subject{UserID: a.UserID, Role: a.Role, SchoolID: a.SchoolID}
}

func (a Actor) userKey() string {
	return fmt.Sprintf("%d", a.UserID)
}

// relations resolves how an actor relates to classes and students.
type relations struct {
	directory repository.DirectoryRepository
}

// forStudentInClass builds the relationship for an entity owned by studentID in classID.
func (r relations) forStudentInClass(ctx context.Context, actor Actor, classID, studentID uint) (policy.Relationship, error) {
	var rel policy.Relationship

	switch actor.Role {
	case policy.RoleTeacher:
		class, err := r.directory.GetClass(ctx, classID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return rel, nil
			}
			return rel, err
		}
		rel.OwnsClass = class.TeacherID == actor.UserID && class.SchoolID == actor.SchoolID
	case policy.RoleStudent:
		rel.IsStudent = studentID == actor.UserID
	case policy.RoleParent:
		ok, err := r.directory.IsGuardian(ctx, actor.UserID, studentID)
		if err != nil {
			return rel, err
		}
		rel.IsParent = ok
	}

	return rel, nil
}

// forStudent looks up the student's class first.
func (r relations) forStudent(ctx context.Context, actor Actor, studentID uint) (policy.Relationship, error) {
	if actor.Role != policy.RoleTeacher {
		return r.forStudentInClass(ctx, actor, 0, studentID)
	}

	student, err := r.directory.GetStudent(ctx, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return policy.Relationship{}, nil
		}
		return policy.Relationship{}, err
	}
	return r.forStudentInClass(ctx, actor, student.ClassID, studentID)
}

// forTarget resolves the relationship for a target. Reads widen the audience: every teacher
// of the school sees every target, class members see class targets and the whole school sees
// school targets.
func (r relations) forTarget(ctx context.Context, actor Actor, target models.Target, read bool) (policy.Relationship, error) {
	var (
		rel policy.Relationship
		err error
	)

	switch target.Scope {
	case workflow.ScopeIndividual:
		if target.StudentID != nil {
			rel, err = r.forStudent(ctx, actor, *target.StudentID)
		}
	case workflow.ScopeClass:
		if target.ClassID != nil {
			rel, err = r.forStudentInClass(ctx, actor, *target.ClassID, 0)
			if err == nil && read {
				rel.InAudience, err = r.inClass(ctx, actor, *target.ClassID)
			}
		}
	case workflow.ScopeSchool:
		rel.InAudience = read
	}
	if err != nil {
		return rel, err
	}

	if read && actor.Role == policy.RoleTeacher {
		rel.InAudience = true
	}

	return rel, nil
}

func (r relations) inClass(ctx context.Context, actor Actor, classID uint) (bool, error) {
	var studentIDs []uint
	switch actor.Role {
	case policy.RoleStudent:
		studentIDs = []uint{actor.UserID}
	case policy.RoleParent:
		ids, err := r.directory.StudentIDsByParent(ctx, actor.UserID)
		if err != nil {
			return false, err
		}
		studentIDs = ids
	default:
		return false, nil
	}

	classIDs, err := r.directory.ClassIDsOfStudents(ctx, studentIDs)
	if err != nil {
		return false, err
	}
	return containsID(classIDs, classID), nil
}

// visibleStudents returns the students whose rows the actor may list. restrict is false for
// roles that see the whole school.
func (r relations) visibleStudents(ctx context.Context, actor Actor) (ids []uint, restrict bool, err error) {
	switch actor.Role {
	case policy.RoleOwner:
		return nil, false, nil
	case policy.RoleTeacher:
		classIDs, err := r.directory.ClassIDsByTeacher(ctx, actor.UserID)
		if err != nil {
			return nil, true, err
		}
		ids, err := r.directory.StudentIDsInClasses(ctx, classIDs)
		return ids, true, err
	case policy.RoleStudent:
		return []uint{actor.UserID}, true, nil
	case policy.RoleParent:
		ids, err := r.directory.StudentIDsByParent(ctx, actor.UserID)
		return ids, true, err
	default:
		return []uint{}, true, nil
	}
}

// narrow applies an optional query filter to a visibility set. ok is false when the filter
// falls outside what the actor may see.
func narrow(visible []uint, restrict bool, want *uint) (ids []uint, ok bool) {
	if want == nil {
		return visible, true
	}
	if !restrict || containsID(visible, *want) {
		return []uint{*want}, true
	}
	return nil, false
}

func containsID(ids []uint, id uint) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
