package echoapi

import (
	"fmt"
	htmltmpl "html/template"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/quizhub/apps/di"
	"github.com/trezcool/quizhub/core"
	"github.com/trezcool/quizhub/core/user"
)

const webTemplatesDir = "assets/templates/web"

var webFuncs = htmltmpl.FuncMap{
	"date": func(t time.Time) string { return t.Format("2006-01-02 15:04") },
	"day":  func(t time.Time) string { return t.Format(core.DateLayout) },
	"pct":  func(f float64) string { return strconv.FormatFloat(f, 'f', 1, 64) + "%" },
}

type templateRenderer struct {
	templates map[string]*htmltmpl.Template
}

// newTemplateRenderer parses every page under assets/templates/web, each one layered on `_base.gohtml`.
func newTemplateRenderer(fsys fs.FS, logger core.Logger) *templateRenderer {
	r := &templateRenderer{templates: make(map[string]*htmltmpl.Template)}

	fps, err := fs.Glob(fsys, path.Join(webTemplatesDir, "*.gohtml"))
	if err != nil {
		logger.Error(fmt.Sprintf("echoapi.newTemplateRenderer: %v", err), err)
	}
	for _, fp := range fps {
		fname := path.Base(fp)
		if strings.HasPrefix(fname, "_") {
			continue
		}
		tmpl, err := htmltmpl.New(fname).Funcs(webFuncs).ParseFS(fsys, path.Join(webTemplatesDir, "_base.gohtml"), fp)
		if err != nil {
			logger.Error(fmt.Sprintf("echoapi.newTemplateRenderer(%s): %v", fname, err), err)
			continue
		}
		r.templates[strings.TrimSuffix(fname, ".gohtml")] = tmpl
	}
	return r
}

func (r *templateRenderer) Render(w io.Writer, name string, data interface{}, _ echo.Context) error {
	tmpl, ok := r.templates[name]
	if !ok {
		return errors.Errorf("unknown template %q", name)
	}
	return tmpl.ExecuteTemplate(w, "base", data)
}

// homePage is where each role lands after login, and where failed page actions send it back.
func homePage(role string) string {
	switch role {
	case user.RoleAdmin:
		return "/admin"
	case user.RoleTeacher:
		return "/teacher"
	case user.RoleStudent:
		return "/user"
	}
	return "/login"
}

func redirectMsg(ctx echo.Context, to, msg string) error {
	if msg != "" {
		sep := "?"
		if strings.Contains(to, "?") {
			sep = "&"
		}
		to += sep + "msg=" + url.QueryEscape(msg)
	}
	return ctx.Redirect(http.StatusFound, to)
}

// formErrors flattens validation failures into {field: message}.
func formErrors(err error, translator ut.Translator) (map[string]string, bool) {
	switch verr := errors.Cause(err).(type) {
	case validator.ValidationErrors:
		fields := make(map[string]string, len(verr))
		for _, fe := range verr {
			fields[fe.Field()] = fe.Translate(translator)
		}
		return fields, true
	case *core.ValidationError:
		fields := make(map[string]string, len(verr.Fields))
		for _, fe := range verr.Fields {
			fields[fe.Field] = fe.Error
		}
		if len(fields) == 0 {
			fields["form"] = verr.Error()
		}
		return fields, true
	}
	return nil, false
}

// webMessage turns the failures a visitor can cause into a message for the next page.
func webMessage(err error, translator ut.Translator) (string, bool) {
	if fields, ok := formErrors(err, translator); ok {
		msgs := make([]string, 0, len(fields))
		for field, msg := range fields {
			if field == "form" {
				msgs = append(msgs, msg)
			} else {
				msgs = append(msgs, field+": "+msg)
			}
		}
		return strings.Join(msgs, "; "), true
	}

	cause := errors.Cause(err)
	switch e := cause.(type) {
	case *core.NotFoundError:
		return e.Error(), true
	case *echo.HTTPError:
		if e.Code == http.StatusNotFound || e.Code == http.StatusForbidden {
			return fmt.Sprint(e.Message), true
		}
	}
	if cause == core.ErrForbidden || isBadRequest(cause) {
		return cause.Error(), true
	}
	return "", false
}

type web struct {
	svcs       *di.Services
	validate   *validator.Validate
	translator ut.Translator
	logger     core.Logger
}

// handle redirects expected failures to the role's home page; anything else goes to the error handler.
func (w *web) handle(h echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		err := h(ctx)
		if err == nil {
			return nil
		}
		if errors.Cause(err) == errUnauthorized {
			clearSession(ctx)
			return ctx.Redirect(http.StatusFound, "/login")
		}
		msg, ok := webMessage(err, w.translator)
		if !ok {
			return err
		}
		claims, _ := getContextClaims(ctx)
		home := homePage(claims.Role)
		if ctx.Request().URL.Path == home {
			// a failing home page would redirect to itself
			return err
		}
		return redirectMsg(ctx, home, msg)
	}
}

// render adds the session user and the flash message to the page data.
func (w *web) render(ctx echo.Context, name string, data echo.Map) error {
	if data == nil {
		data = echo.Map{}
	}
	data["Msg"] = ctx.QueryParam("msg")
	if _, err := getContextClaims(ctx); err == nil {
		usr, err := getContextUser(ctx, w.svcs.Users)
		if err != nil {
			return errors.Wrap(err, "getting context user")
		}
		data["User"] = usr
	}
	return ctx.Render(http.StatusOK, name, data)
}

func registerWeb(app *echo.Echo, svcs *di.Services, validate *validator.Validate, translator ut.Translator, logger core.Logger) {
	w := &web{svcs: svcs, validate: validate, translator: translator, logger: logger}

	app.GET("/login", w.loginPage)
	app.POST("/login", w.login)
	app.GET("/logout", w.logout)
	app.GET("/register", w.registerPage)
	app.POST("/register", w.register)

	w.registerAdminPages(app.Group("/admin", webSessionMiddleware(user.RoleAdmin)))
	w.registerTeacherPages(app.Group("/teacher", webSessionMiddleware(user.RoleTeacher)))
	w.registerUserPages(app.Group("/user", webSessionMiddleware(user.RoleStudent)))
}

func (w *web) loginPage(ctx echo.Context) error {
	if cookie, err := ctx.Cookie(sessionCookie); err == nil {
		if claims, err := parseToken(cookie.Value); err == nil {
			return ctx.Redirect(http.StatusFound, homePage(claims.Role))
		}
	}
	return w.render(ctx, "login", echo.Map{"Title": "Login", "Email": "", "Error": ""})
}

func (w *web) login(ctx echo.Context) error {
	data := LoginRequest{Email: ctx.FormValue("email"), Password: ctx.FormValue("password")}
	if err := data.Validate(w.validate); err != nil {
		return w.render(ctx, "login", echo.Map{"Title": "Login", "Email": data.Email, "Error": "Email and password are required."})
	}

	usr, err := w.svcs.Users.Authenticate(ctx.Request().Context(), data.Email, data.Password)
	if err != nil {
		switch errors.Cause(err) {
		case user.ErrAuthenticationFailed, user.ErrAccountDeactivated:
			return w.render(ctx, "login", echo.Map{"Title": "Login", "Email": data.Email, "Error": errors.Cause(err).Error()})
		}
		return errors.Wrap(err, "authenticating")
	}
	token, err := GenerateToken(GetUserClaims(usr))
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	setSession(ctx, token)

	if usr.IsStudent() && !usr.BranchID.Valid {
		return ctx.Redirect(http.StatusFound, "/user/branch")
	}
	return ctx.Redirect(http.StatusFound, homePage(usr.Role))
}

func (w *web) logout(ctx echo.Context) error {
	clearSession(ctx)
	return ctx.Redirect(http.StatusFound, "/login")
}

func (w *web) registerPage(ctx echo.Context) error {
	return w.renderRegister(ctx, user.NewUser{}, nil)
}

func (w *web) renderRegister(ctx echo.Context, form user.NewUser, fieldErrs map[string]string) error {
	branches, err := w.svcs.Catalog.QueryBranches(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying branches")
	}
	return w.render(ctx, "register", echo.Map{
		"Title":    "Sign up",
		"Form":     form,
		"Errors":   fieldErrs,
		"Branches": branches,
	})
}

func (w *web) register(ctx echo.Context) error {
	data := user.NewUser{
		Email:           ctx.FormValue("email"),
		Password:        ctx.FormValue("password"),
		PasswordConfirm: ctx.FormValue("password_confirm"),
		FullName:        ctx.FormValue("full_name"),
		Qualification:   ctx.FormValue("qualification"),
		DOB:             ctx.FormValue("dob"),
		Address:         ctx.FormValue("address"),
		PinCode:         ctx.FormValue("pin_code"),
		BranchID:        formInt(ctx, "branch_id"),
	}

	err := data.Validate(w.validate, w.svcs.Users)
	if err == nil {
		err = checkBranch(ctx, w.svcs.Catalog, data.BranchID)
	}
	if err == nil {
		_, err = w.svcs.Users.Register(ctx.Request().Context(), data)
	}
	if err != nil {
		if fieldErrs, ok := formErrors(err, w.translator); ok {
			data.Password, data.PasswordConfirm = "", ""
			return w.renderRegister(ctx, data, fieldErrs)
		}
		return errors.Wrap(err, "registering user")
	}
	return redirectMsg(ctx, "/login", "Registration successful, try login now")
}

// formInt reads an optional integer form value.
func formInt(ctx echo.Context, name string) *int {
	v, err := strconv.Atoi(strings.TrimSpace(ctx.FormValue(name)))
	if err != nil {
		return nil
	}
	return &v
}

// formID reads a required positive integer form value.
func formID(ctx echo.Context, name string) (int, error) {
	v := formInt(ctx, name)
	if v == nil || *v <= 0 {
		return 0, core.NewValidationError(nil, core.FieldError{Field: name, Error: "is required"})
	}
	return *v, nil
}
