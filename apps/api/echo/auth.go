package echoapi

import (
	"strconv"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/quizhub/core"
	"github.com/trezcool/quizhub/core/authz"
	"github.com/trezcool/quizhub/core/user"
)

var (
	// jwtConfig is the JWT auth middleware config; the signing key comes from configureAuth.
	jwtConfig = middleware.JWTConfig{
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    "userToken",
		Claims:        new(Claims),
	}
	contextUserKey = "user"

	issuer                    string
	jwtExpirationDelta        = time.Hour
	jwtRefreshExpirationDelta = 7 * 24 * time.Hour

	nowFunc = time.Now // mockable
)

func configureAuth(conf *core.Config) {
	jwtConfig.SigningKey = []byte(conf.SecretKey)
	issuer = conf.AppName
	if conf.Server.JWTExpirationDelta > 0 {
		jwtExpirationDelta = conf.Server.JWTExpirationDelta
	}
	if conf.Server.JWTRefreshExpirationDelta > 0 {
		jwtRefreshExpirationDelta = conf.Server.JWTRefreshExpirationDelta
	}
}

// Claims represents the authorization claims transmitted via a JWT.
// The same token is used as bearer token and as web session cookie.
type Claims struct {
	jwt.StandardClaims
	UserID       int    `json:"user_id"`
	Role         string `json:"role"`
	OrigIssuedAt int64  `json:"oriat,omitempty"`
}

func (c Claims) Actor() authz.Actor {
	return authz.Actor{ID: c.UserID, Role: c.Role}
}

func GetUserClaims(usr user.User, origIat ...int64) *Claims {
	now := nowFunc()
	nownix := now.Unix()

	oriat := nownix
	if len(origIat) > 0 {
		oriat = origIat[0]
	}

	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    issuer,
			Subject:   strconv.Itoa(usr.ID),
			ExpiresAt: now.Add(jwtExpirationDelta).Unix(),
			IssuedAt:  nownix,
		},
		UserID:       usr.ID,
		Role:         usr.Role,
		OrigIssuedAt: oriat,
	}
}

// GenerateToken generates a signed JWT token string representing the user Claims.
func GenerateToken(claims *Claims) (string, error) {
	method := jwt.GetSigningMethod(jwtConfig.SigningMethod)
	token := jwt.NewWithClaims(method, claims)

	ss, err := token.SignedString(jwtConfig.SigningKey)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

// parseToken validates a signed token outside of the JWT middleware (web session cookies).
func parseToken(raw string) (*Claims, error) {
	claims := new(Claims)
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwtConfig.SigningMethod {
			return nil, errors.Errorf("unexpected jwt signing method: %v", t.Header["alg"])
		}
		return jwtConfig.SigningKey, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(jwtConfig.ContextKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

func getContextActor(ctx echo.Context) (authz.Actor, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return authz.Actor{}, err
	}
	return claims.Actor(), nil
}

// getContextUser loads the authenticated user once per request.
func getContextUser(ctx echo.Context, svc *user.Service) (user.User, error) {
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		return usr, nil
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return user.User{}, errors.Wrap(err, "getting context claims")
	}
	usr, err := svc.GetByID(ctx.Request().Context(), claims.UserID)
	if err != nil {
		if core.IsNotFound(err) {
			return user.User{}, errUnauthorized
		}
		return user.User{}, errors.Wrap(err, "finding user by ID")
	}
	ctx.Set(contextUserKey, usr)
	return usr, nil
}

func refreshToken(ctx echo.Context, svc *user.Service) (string, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return "", errors.Wrap(err, "getting context claims")
	}
	usr, err := getContextUser(ctx, svc)
	if err != nil {
		return "", errors.Wrap(err, "getting context user")
	}

	// check if user is still active
	if !usr.IsActive {
		return "", errAccountDeactivated
	}

	// check if refresh has not expired
	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(jwtRefreshExpirationDelta)
	if nowFunc().After(expTime) {
		return "", errRefreshExpired
	}

	token, err := GenerateToken(GetUserClaims(usr, claims.OrigIssuedAt))
	return token, errors.Wrap(err, "generating token")
}
