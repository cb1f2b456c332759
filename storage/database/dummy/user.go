package dummydb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/trezcool/quizhub/core"
	"github.com/trezcool/quizhub/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) CheckEmailUniqueness(_ context.Context, email string, excludedIDs ...int) error {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, usr := range repo.db.users {
		if strings.EqualFold(usr.Email, email) && !containsInt(excludedIDs, usr.ID) {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, u := range repo.db.users {
		if strings.EqualFold(u.Email, usr.Email) {
			return user.User{}, user.ErrEmailExists
		}
	}
	usr.ID = repo.db.nextID("user")
	repo.db.users[usr.ID] = usr
	return usr, nil
}

func (repo *userRepository) GetUser(_ context.Context, filter user.GetFilter) (user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if filter.ID == 0 && filter.Email == "" {
		return user.User{}, user.ErrNotFound
	}
	for _, usr := range repo.db.users {
		if filter.ID != 0 && usr.ID != filter.ID {
			continue
		}
		if filter.Email != "" && !strings.EqualFold(usr.Email, filter.Email) {
			continue
		}
		return usr, nil
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) QueryUsers(_ context.Context, filter user.QueryFilter, orderings []core.DBOrdering) ([]user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	search := strings.ToLower(filter.Search)
	users := make([]user.User, 0)
	for _, u := range repo.db.users {
		// users with search keyword matching any FullName, Email or Qualification ?
		if search != "" &&
			!strings.Contains(strings.ToLower(u.FullName), search) &&
			!strings.Contains(strings.ToLower(u.Email), search) &&
			!strings.Contains(strings.ToLower(u.Qualification), search) {
			continue
		}
		if filter.Role != "" && u.Role != filter.Role {
			continue
		}
		if filter.BranchID != nil && (!u.BranchID.Valid || u.BranchID.Int != *filter.BranchID) {
			continue
		}
		if filter.IsActive != nil && u.IsActive != *filter.IsActive {
			continue
		}
		users = append(users, u)
	}

	sort.Slice(users, func(i, j int) bool { return lessUser(users[i], users[j], orderings) })
	return users, nil
}

// lessUser applies the orderings, then the default newest-first order.
func lessUser(a, b user.User, orderings []core.DBOrdering) bool {
	for _, ord := range orderings {
		var c int
		switch ord.Field {
		case "id":
			c = compareInts(a.ID, b.ID)
		case "email":
			c = strings.Compare(a.Email, b.Email)
		case "role":
			c = strings.Compare(a.Role, b.Role)
		case "full_name":
			c = strings.Compare(a.FullName, b.FullName)
		case "created_at":
			c = compareTimes(a.CreatedAt, b.CreatedAt)
		case "updated_at":
			c = compareTimes(a.UpdatedAt, b.UpdatedAt)
		case "last_login":
			c = compareTimes(a.LastLogin.Time, b.LastLogin.Time)
		}
		if c != 0 {
			return (c < 0) == ord.Ascending
		}
	}
	if c := compareTimes(a.CreatedAt, b.CreatedAt); c != 0 {
		return c > 0
	}
	return a.ID > b.ID
}

func compareInts(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compareTimes(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	}
	return 0
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.users[usr.ID]; !ok {
		return user.User{}, user.ErrNotFound
	}
	for _, u := range repo.db.users {
		if u.ID != usr.ID && strings.EqualFold(u.Email, usr.Email) {
			return user.User{}, user.ErrEmailExists
		}
	}
	repo.db.users[usr.ID] = usr
	return usr, nil
}

func (repo *userRepository) DeleteUsersByID(_ context.Context, ids ...int) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, id := range ids {
		repo.db.deleteUser(id)
	}
	return nil
}

// deleteUser cascades like the foreign keys do. Lock must be held.
func (db *DB) deleteUser(id int) {
	if _, ok := db.users[id]; !ok {
		return
	}
	delete(db.users, id)
	for k := range db.teacherSubjects {
		if k.teacherID == id {
			delete(db.teacherSubjects, k)
		}
	}
	for sid, s := range db.scores {
		if s.UserID == id {
			delete(db.scores, sid)
		}
	}
	for eid, e := range db.enrollments {
		if e.UserID == id {
			delete(db.enrollments, eid)
		}
	}
	for mid, m := range db.messages {
		if m.UserID == id {
			delete(db.messages, mid)
		}
	}
	for mid, m := range db.materials {
		if m.UploadedBy == id {
			delete(db.materials, mid)
		}
	}
	for aid, a := range db.assignments {
		if a.TeacherID == id {
			db.deleteAssignment(aid)
		}
	}
	for sid, s := range db.submissions {
		if s.StudentID == id {
			delete(db.submissions, sid)
		}
	}
	for nid, n := range db.notifications {
		if n.UserID == id {
			delete(db.notifications, nid)
		}
	}
}

// displayName is the author or student name joined onto messages and submissions. Lock must be held.
func (db *DB) displayName(userID int) (string, string) {
	u, ok := db.users[userID]
	if !ok {
		return "", ""
	}
	return u.DisplayName(), u.Role
}
