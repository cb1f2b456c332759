package echoapi

import (
	"net/http"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

const sessionCookie = "session"

func hasRole(role string, roles []string) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// roleMiddleware lets through tokens holding one of roles.
func roleMiddleware(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if hasRole(claims.Role, roles) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

// webSessionMiddleware reads the session cookie and stores its claims where the JWT middleware would.
// Anonymous visitors are sent to the login page, users of another role to their own home page.
func webSessionMiddleware(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			cookie, err := ctx.Cookie(sessionCookie)
			if err != nil || cookie.Value == "" {
				return ctx.Redirect(http.StatusFound, "/login")
			}
			claims, err := parseToken(cookie.Value)
			if err != nil {
				clearSession(ctx)
				return ctx.Redirect(http.StatusFound, "/login")
			}
			ctx.Set(jwtConfig.ContextKey, &jwt.Token{Claims: claims, Valid: true})

			if len(roles) > 0 && !hasRole(claims.Role, roles) {
				return ctx.Redirect(http.StatusFound, homePage(claims.Role))
			}
			return next(ctx)
		}
	}
}

func setSession(ctx echo.Context, token string) {
	ctx.SetCookie(&http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(jwtExpirationDelta.Seconds()),
	})
}

func clearSession(ctx echo.Context) {
	ctx.SetCookie(&http.Cookie{Name: sessionCookie, Value: "", Path: "/", HttpOnly: true, MaxAge: -1})
}
