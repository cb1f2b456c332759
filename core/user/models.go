package user

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/quizhub/core"
)

// Roles
const (
	RoleAdmin   = "admin"
	RoleStudent = "student"
	RoleTeacher = "teacher"
)

var (
	AllRoles = []string{RoleAdmin, RoleStudent, RoleTeacher}

	Roles = []Role{
		{Name: "Student", Value: RoleStudent},
		{Name: "Teacher", Value: RoleTeacher},
		{Name: "Admin", Value: RoleAdmin},
	}
)

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

func IsValidRole(role string) bool {
	for _, r := range AllRoles {
		if r == role {
			return true
		}
	}
	return false
}

type User struct {
	ID            int       `json:"id" db:"id"`
	Email         string    `json:"email" db:"email"`
	Role          string    `json:"role" db:"role"`
	FullName      string    `json:"full_name" db:"full_name"`
	Qualification string    `json:"qualification" db:"qualification"`
	DOB           null.Time `json:"dob" db:"dob"`
	Address       string    `json:"address" db:"address"`
	PinCode       string    `json:"pin_code" db:"pin_code"`
	BranchID      null.Int  `json:"branch_id" db:"branch_id"`
	IsActive      bool      `json:"is_active" db:"is_active"`
	PasswordHash  []byte    `json:"-" db:"password_hash"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"` // UTC
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"` // UTC
	LastLogin     null.Time `json:"last_login" db:"last_login"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u User) IsAdmin() bool   { return u.Role == RoleAdmin }
func (u User) IsTeacher() bool { return u.Role == RoleTeacher }
func (u User) IsStudent() bool { return u.Role == RoleStudent }

// DisplayName is the full name, or the email when no name was given.
func (u User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Email
}

// NewUser contains information needed to register a new student.
type NewUser struct {
	Email           string `json:"email" form:"email" validate:"required,email"`
	Password        string `json:"password" form:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" form:"password_confirm" validate:"required,eqfield=Password"`
	FullName        string `json:"full_name" form:"full_name" validate:"required"`
	Qualification   string `json:"qualification" form:"qualification"`
	DOB             string `json:"dob" form:"dob" validate:"omitempty,date"`
	Address         string `json:"address" form:"address"`
	PinCode         string `json:"pin_code" form:"pin_code" validate:"omitempty,numeric"`
	BranchID        *int   `json:"branch_id" form:"branch_id"`
}

func (nu *NewUser) Validate(validate *validator.Validate, svc *Service) error {
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.FullName = core.CleanString(nu.FullName)
	nu.Qualification = core.CleanString(nu.Qualification)
	nu.Address = core.CleanString(nu.Address)
	nu.PinCode = core.CleanString(nu.PinCode)

	if err := validate.Struct(nu); err != nil {
		return err
	}
	return svc.checkUniqueness(nu.Email)
}

// NewTeacher contains information needed by an admin to create a teacher account.
type NewTeacher struct {
	Email         string `json:"email" form:"email" validate:"required,email"`
	Password      string `json:"password" form:"password" validate:"required"`
	FullName      string `json:"full_name" form:"full_name"`
	Qualification string `json:"qualification" form:"qualification"`
	Address       string `json:"address" form:"address"`
	PinCode       string `json:"pin_code" form:"pin_code" validate:"omitempty,numeric"`
	SubjectName   string `json:"subject_name" form:"subject_name"`
}

func (nt *NewTeacher) Validate(validate *validator.Validate) error {
	nt.Email = core.CleanString(nt.Email, true /* lower */)
	nt.FullName = core.CleanString(nt.FullName)
	if nt.FullName == "" {
		nt.FullName = "Teacher"
	}
	nt.Qualification = core.CleanString(nt.Qualification)
	nt.Address = core.CleanString(nt.Address)
	nt.PinCode = core.CleanString(nt.PinCode)
	nt.SubjectName = core.CleanString(nt.SubjectName)
	return validate.Struct(nt)
}

// UpdateProfile defines what information a user may change on their own profile.
type UpdateProfile struct {
	FullName        string  `json:"full_name"`
	Qualification   *string `json:"qualification"`
	DOB             *string `json:"dob" validate:"omitempty,date"`
	Address         *string `json:"address"`
	PinCode         *string `json:"pin_code" validate:"omitempty,numeric"`
	Password        string  `json:"password" validate:"omitempty"`
	PasswordConfirm string  `json:"password_confirm" validate:"required_with=Password,eqfield=Password"`
}

func (up *UpdateProfile) Validate(validate *validator.Validate) error {
	up.FullName = core.CleanString(up.FullName)
	for _, s := range []*string{up.Qualification, up.DOB, up.Address, up.PinCode} {
		if s != nil {
			*s = core.CleanString(*s)
		}
	}
	return validate.Struct(up)
}

type ResetUserPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

func (rp ResetUserPassword) Validate(validate *validator.Validate) error { return validate.Struct(rp) }

type GetFilter struct {
	ID    int
	Email string
}

type QueryFilter struct {
	Search   string `query:"search"`
	Role     string `query:"role"`
	BranchID *int   `query:"branch_id"`
	IsActive *bool  `query:"is_active"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Role = core.CleanString(qf.Role, true /* lower */)
}

// NullDate parses an optional `YYYY-MM-DD` string.
func NullDate(s string) null.Time {
	if s == "" {
		return null.Time{}
	}
	t, err := time.Parse(core.DateLayout, s)
	if err != nil {
		return null.Time{}
	}
	return null.TimeFrom(t)
}
