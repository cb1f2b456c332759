package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/quizhub/apps/di"
	"github.com/trezcool/quizhub/core"
	"github.com/trezcool/quizhub/core/catalog"
	"github.com/trezcool/quizhub/core/user"
)

var errUnknownBranch = "unknown branch"

type userApi struct {
	svc      *user.Service
	catalog  *catalog.Service
	validate *validator.Validate
	logger   core.Logger
}

func registerUserAPI(g *echo.Group, jwt echo.MiddlewareFunc, svcs *di.Services, validate *validator.Validate, logger core.Logger) {
	api := userApi{
		svc:      svcs.Users,
		catalog:  svcs.Catalog,
		validate: validate,
		logger:   logger,
	}

	// un-authed endpoints
	// TODO: rate limit `/login`, `/password-reset` & `/password-reset-confirm`
	g.POST("/register", api.register)
	g.POST("/login", api.login)
	g.POST("/password-reset", api.resetPassword)
	g.POST("/password-reset-confirm", api.confirmPasswordReset)

	// authed endpoints
	g.POST("/token-refresh", api.refreshToken, jwt)
	g.GET("/profile", api.profile, jwt)
	g.PUT("/profile", api.updateProfile, jwt)
	g.POST("/profile/branch", api.selectBranch, jwt, roleMiddleware(user.RoleStudent))
}

// Handlers

func (api *userApi) register(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}
	if err := data.Validate(api.validate, api.svc); err != nil {
		return err
	}
	if err := checkBranch(ctx, api.catalog, data.BranchID); err != nil {
		return err
	}

	usr, err := api.svc.Register(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "registering user")
	}
	return ctx.JSON(http.StatusCreated, usr)
}

func (api *userApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := api.svc.Authenticate(ctx.Request().Context(), data.Email, data.Password)
	if err != nil {
		return errors.Wrap(err, "authenticating")
	}
	token, err := GenerateToken(GetUserClaims(usr))
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token, User: &usr})
}

func (api *userApi) refreshToken(ctx echo.Context) error {
	token, err := refreshToken(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *userApi) resetPassword(ctx echo.Context) error {
	var data PasswordResetRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PasswordResetRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.svc.RequestPasswordReset(ctx.Request().Context(), data.Email); err != nil && !core.IsNotFound(err) {
		// do not return errors to attackers
		api.logger.Error("requesting password reset", errors.Wrap(err, "requesting password reset"))
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{
		Success: "If the email address supplied is associated with an active account on this system, " +
			"an email will arrive in your inbox shortly with instructions to reset your password.",
	})
}

func (api *userApi) confirmPasswordReset(ctx echo.Context) error {
	var data user.ResetUserPassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResetUserPassword")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.svc.ResetPassword(ctx.Request().Context(), data); err != nil {
		return errors.Wrap(err, "resetting password")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Password has been reset with the new password."})
}

func (api *userApi) profile(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) updateProfile(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data user.UpdateProfile
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateProfile")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, err = api.svc.UpdateProfile(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "updating profile")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) selectBranch(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var data SelectBranchRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SelectBranchRequest")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}
	if err := checkBranch(ctx, api.catalog, &data.BranchID); err != nil {
		return err
	}

	usr, err := api.svc.SelectBranch(ctx.Request().Context(), claims.UserID, data.BranchID)
	if err != nil {
		return errors.Wrap(err, "selecting branch")
	}
	return ctx.JSON(http.StatusOK, usr)
}

// checkBranch turns an unknown branch into a validation error on `branch_id`.
func checkBranch(ctx echo.Context, svc *catalog.Service, branchID *int) error {
	if branchID == nil {
		return nil
	}
	if _, err := svc.GetBranch(ctx.Request().Context(), *branchID); err != nil {
		if core.IsNotFound(err) {
			return core.NewValidationError(nil, core.FieldError{Field: "branch_id", Error: errUnknownBranch})
		}
		return errors.Wrap(err, "getting branch")
	}
	return nil
}

type (
	LoginRequest struct {
		Email    string `json:"email" form:"email" validate:"required"`
		Password string `json:"password" form:"password" validate:"required"`
	}

	LoginResponse struct {
		Token string     `json:"token"`
		User  *user.User `json:"user,omitempty"`
	}

	PasswordResetRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	SelectBranchRequest struct {
		BranchID int `json:"branch_id" form:"branch_id" validate:"required"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Email = core.CleanString(lr.Email, true /* lower */)
	return validate.Struct(lr)
}

func (pr *PasswordResetRequest) Validate(validate *validator.Validate) error {
	pr.Email = core.CleanString(pr.Email, true /* lower */)
	return validate.Struct(pr)
}
