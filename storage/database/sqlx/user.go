package sqlxrepos

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/quizhub/core"
	"github.com/trezcool/quizhub/core/user"
)

const userColumns = `id, email, role, full_name, qualification, dob, address, pin_code, branch_id,
	is_active, password_hash, created_at, updated_at, last_login`

var userOrderColumns = map[string]string{
	"id":         "id",
	"email":      "email",
	"role":       "role",
	"full_name":  "full_name",
	"is_active":  "is_active",
	"created_at": "created_at",
	"updated_at": "updated_at",
	"last_login": "last_login",
}

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *sqlx.DB) *userRepository {
	return &userRepository{db: db}
}

func (repo *userRepository) CheckEmailUniqueness(ctx context.Context, email string, excludedIDs ...int) error {
	if excludedIDs == nil {
		excludedIDs = []int{}
	}
	var exists bool
	err := repo.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM app_user WHERE lower(email) = lower($1) AND NOT (id = ANY($2)))`,
		email, pq.Array(excludedIDs),
	)
	if err != nil {
		return errors.Wrap(err, "checking email uniqueness")
	}
	if exists {
		return user.ErrEmailExists
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	id, err := insertReturningID(ctx, repo.db, `
		INSERT INTO app_user (email, role, full_name, qualification, dob, address, pin_code, branch_id,
			is_active, password_hash, created_at, updated_at, last_login)
		VALUES (:email, :role, :full_name, :qualification, :dob, :address, :pin_code, :branch_id,
			:is_active, :password_hash, :created_at, :updated_at, :last_login)
		RETURNING id`, usr)
	if err != nil {
		if isUniqueViolation(err) {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	usr.ID = id
	return usr, nil
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	var w where
	if filter.ID != 0 {
		w.add("id = ?", filter.ID)
	}
	if filter.Email != "" {
		w.add("lower(email) = lower(?)", filter.Email)
	}
	if len(w.conds) == 0 {
		return user.User{}, user.ErrNotFound
	}

	var usr user.User
	q := repo.db.Rebind("SELECT " + userColumns + " FROM app_user" + w.String())
	if err := repo.db.GetContext(ctx, &usr, q, w.args...); err != nil {
		return user.User{}, notFound(err, user.ErrNotFound)
	}
	return usr, nil
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter user.QueryFilter, orderings []core.DBOrdering) ([]user.User, error) {
	var w where
	if filter.Search != "" {
		s := likeArg(strings.ToLower(filter.Search))
		w.add("(lower(full_name) LIKE ? OR lower(email) LIKE ? OR lower(qualification) LIKE ?)", s, s, s)
	}
	if filter.Role != "" {
		w.add("role = ?", filter.Role)
	}
	if filter.BranchID != nil {
		w.add("branch_id = ?", *filter.BranchID)
	}
	if filter.IsActive != nil {
		w.add("is_active = ?", *filter.IsActive)
	}
	order := core.OrderByClause(orderings, userOrderColumns, "created_at DESC, id DESC")

	users := make([]user.User, 0)
	q := repo.db.Rebind("SELECT " + userColumns + " FROM app_user" + w.String() + " ORDER BY " + order)
	if err := repo.db.SelectContext(ctx, &users, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	return users, nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	res, err := repo.db.NamedExecContext(ctx, `
		UPDATE app_user SET email = :email, role = :role, full_name = :full_name, qualification = :qualification,
			dob = :dob, address = :address, pin_code = :pin_code, branch_id = :branch_id, is_active = :is_active,
			password_hash = :password_hash, updated_at = :updated_at, last_login = :last_login
		WHERE id = :id`, usr)
	if err != nil {
		if isUniqueViolation(err) {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if err = checkAffected(res, user.ErrNotFound); err != nil {
		return user.User{}, err
	}
	return usr, nil
}

func (repo *userRepository) DeleteUsersByID(ctx context.Context, ids ...int) error {
	if len(ids) == 0 {
		return nil
	}
	q, args, err := sqlx.In("DELETE FROM app_user WHERE id IN (?)", ids)
	if err != nil {
		return errors.Wrap(err, "building delete query")
	}
	if _, err = repo.db.ExecContext(ctx, repo.db.Rebind(q), args...); err != nil {
		return errors.Wrap(err, "deleting users")
	}
	return nil
}
