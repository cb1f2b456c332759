package user

import (
	"context"
	"net/mail"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/quizhub/core"
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrNotFound              = core.NewNotFoundError("user")
	ErrEmailExists           = errors.New("a user with this email already exists")
	ErrAuthenticationFailed  = errors.New("invalid credentials")
	ErrAccountDeactivated    = errors.New("this account has been deactivated")
	ErrCannotDeleteSelf      = errors.New("you cannot delete your own account")
	errPasswordResetTokenBad = errors.New("invalid password reset link")
)

type Repository interface {
	CheckEmailUniqueness(ctx context.Context, email string, excludedIDs ...int) error
	CreateUser(ctx context.Context, usr User) (User, error)
	GetUser(ctx context.Context, filter GetFilter) (User, error)
	// QueryUsers applies AND operation on available QueryFilter fields.
	// QueryFilter.Search does a case-insensitive match on one of User.FullName, User.Email or User.Qualification.
	QueryUsers(ctx context.Context, filter QueryFilter, orderings []core.DBOrdering) ([]User, error)
	UpdateUser(ctx context.Context, usr User) (User, error)
	DeleteUsersByID(ctx context.Context, ids ...int) error
}

type Service struct {
	repo    Repository
	mailSvc core.EmailService
}

func NewService(repo Repository, mailSvc core.EmailService, conf *core.Config) *Service {
	secretKey = []byte(conf.SecretKey)
	passwordResetTimeoutDelta = conf.Server.PasswordResetTimeoutDelta
	return &Service{repo: repo, mailSvc: mailSvc}
}

func (svc *Service) checkUniqueness(email string, excludedIDs ...int) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := svc.repo.CheckEmailUniqueness(ctx, email, excludedIDs...); err != nil {
		if err == ErrEmailExists {
			return core.NewValidationError(err, core.FieldError{Field: "email", Error: err.Error()})
		}
		return err
	}
	return nil
}

// Register creates a student account.
func (svc *Service) Register(ctx context.Context, nu NewUser) (User, error) {
	now := NowFunc().UTC()
	usr := User{
		Email:         nu.Email,
		Role:          RoleStudent,
		FullName:      nu.FullName,
		Qualification: nu.Qualification,
		DOB:           NullDate(nu.DOB),
		Address:       nu.Address,
		PinCode:       nu.PinCode,
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if nu.BranchID != nil {
		usr.BranchID.SetValid(*nu.BranchID)
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	return svc.repo.CreateUser(ctx, usr)
}

// Authenticate checks the credentials and stamps the last login.
func (svc *Service) Authenticate(ctx context.Context, email, pwd string) (User, error) {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		if core.IsNotFound(err) {
			return User{}, ErrAuthenticationFailed
		}
		return User{}, err
	}
	if err := usr.CheckPassword(pwd); err != nil {
		return User{}, ErrAuthenticationFailed
	}
	if !usr.IsActive {
		return User{}, ErrAccountDeactivated
	}

	usr.LastLogin = null.TimeFrom(NowFunc().UTC())
	if usr, err = svc.repo.UpdateUser(ctx, usr); err != nil {
		return User{}, errors.Wrap(err, "updating last login")
	}
	return usr, nil
}

func (svc *Service) GetByID(ctx context.Context, id int) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
}

func (svc *Service) UpdateProfile(ctx context.Context, usr User, up UpdateProfile) (User, error) {
	if up.FullName != "" {
		usr.FullName = up.FullName
	}
	if up.Qualification != nil {
		usr.Qualification = *up.Qualification
	}
	if up.DOB != nil {
		usr.DOB = NullDate(*up.DOB)
	}
	if up.Address != nil {
		usr.Address = *up.Address
	}
	if up.PinCode != nil {
		usr.PinCode = *up.PinCode
	}
	if up.Password != "" {
		if err := validatePasswordPolicy(up.Password, usr.FullName, usr.Email); err != nil {
			return User{}, err
		}
		if err := usr.SetPassword(up.Password); err != nil {
			return User{}, errors.Wrap(err, "hashing password")
		}
	}
	usr.UpdatedAt = NowFunc().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

// SelectBranch sets the branch of a user. The branch must have been checked by the caller.
func (svc *Service) SelectBranch(ctx context.Context, userID, branchID int) (User, error) {
	usr, err := svc.GetByID(ctx, userID)
	if err != nil {
		return User{}, err
	}
	usr.BranchID.SetValid(branchID)
	usr.UpdatedAt = NowFunc().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *Service) QueryStudents(ctx context.Context, filter QueryFilter, orderings []core.DBOrdering) ([]User, error) {
	filter.Role = RoleStudent
	return svc.repo.QueryUsers(ctx, filter, orderings)
}

func (svc *Service) QueryTeachers(ctx context.Context, filter QueryFilter, orderings []core.DBOrdering) ([]User, error) {
	filter.Role = RoleTeacher
	return svc.repo.QueryUsers(ctx, filter, orderings)
}

// Query lists users of every role.
func (svc *Service) Query(ctx context.Context, filter QueryFilter, orderings []core.DBOrdering) ([]User, error) {
	return svc.repo.QueryUsers(ctx, filter, orderings)
}

// CreateTeacher creates a teacher account, or promotes the account already holding the email.
func (svc *Service) CreateTeacher(ctx context.Context, nt NewTeacher) (User, error) {
	usr, err := svc.GetByEmail(ctx, nt.Email)
	switch {
	case err == nil:
		if usr.IsAdmin() {
			return User{}, core.NewValidationError(ErrEmailExists, core.FieldError{Field: "email", Error: ErrEmailExists.Error()})
		}
		usr.Role = RoleTeacher
		usr.UpdatedAt = NowFunc().UTC()
		return svc.repo.UpdateUser(ctx, usr)
	case !core.IsNotFound(err):
		return User{}, err
	}

	now := NowFunc().UTC()
	usr = User{
		Email:         nt.Email,
		Role:          RoleTeacher,
		FullName:      nt.FullName,
		Qualification: nt.Qualification,
		Address:       nt.Address,
		PinCode:       nt.PinCode,
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := validatePasswordPolicy(nt.Password, nt.FullName, nt.Email); err != nil {
		return User{}, err
	}
	if err := usr.SetPassword(nt.Password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	return svc.repo.CreateUser(ctx, usr)
}

// Delete removes a user and everything they own. Admins cannot delete themselves.
func (svc *Service) Delete(ctx context.Context, actorID, id int) error {
	if actorID == id {
		return core.NewValidationError(ErrCannotDeleteSelf)
	}
	if _, err := svc.GetByID(ctx, id); err != nil {
		return err
	}
	return svc.repo.DeleteUsersByID(ctx, id)
}

// SetPassword overrides the password of the user with the given email.
func (svc *Service) SetPassword(ctx context.Context, email, pwd string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if err := usr.SetPassword(pwd); err != nil {
		return errors.Wrap(err, "hashing password")
	}
	usr.UpdatedAt = NowFunc().UTC()
	_, err = svc.repo.UpdateUser(ctx, usr)
	return err
}

// SaveAccount creates an account with the given role or updates the existing one.
func (svc *Service) SaveAccount(ctx context.Context, email, role, name, pwd string) (User, error) {
	if !IsValidRole(role) {
		return User{}, core.NewValidationError(nil, core.FieldError{Field: "role", Error: roleText})
	}
	email = core.CleanString(email, true /* lower */)
	now := NowFunc().UTC()

	usr, err := svc.GetByEmail(ctx, email)
	if err != nil && !core.IsNotFound(err) {
		return User{}, err
	}
	exists := err == nil
	if !exists {
		usr = User{Email: email, IsActive: true, CreatedAt: now}
	}
	usr.Role = role
	if name != "" {
		usr.FullName = name
	}
	usr.UpdatedAt = now
	if err := usr.SetPassword(pwd); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}

	if exists {
		return svc.repo.UpdateUser(ctx, usr)
	}
	return svc.repo.CreateUser(ctx, usr)
}

func (svc *Service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !usr.IsActive {
		return ErrNotFound
	}
	svc.sendPasswordResetMail(usr)
	return nil
}

func (svc *Service) sendPasswordResetMail(usr User) {
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.FullName, Address: usr.Email}},
		Subject:      "Password Reset",
		TemplateName: "password_reset",
		TemplateData: map[string]interface{}{
			"Name":  usr.DisplayName(),
			"UID":   EncodeUID(usr),
			"Token": makeToken(usr),
		},
	})
}

func (svc *Service) ResetPassword(ctx context.Context, rp ResetUserPassword) error {
	id, err := decodeUID(rp.UID)
	if err != nil {
		return core.NewValidationError(errPasswordResetTokenBad)
	}
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		if core.IsNotFound(err) {
			return core.NewValidationError(errPasswordResetTokenBad)
		}
		return err
	}
	if err := verifyToken(usr, rp.Token); err != nil {
		return core.NewValidationError(err)
	}
	if err := validatePasswordPolicy(rp.Password, usr.FullName, usr.Email); err != nil {
		return err
	}
	if err := usr.SetPassword(rp.Password); err != nil {
		return errors.Wrap(err, "hashing password")
	}
	usr.UpdatedAt = NowFunc().UTC()
	_, err = svc.repo.UpdateUser(ctx, usr)
	return err
}
