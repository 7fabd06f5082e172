package echoapi

import (
	"strconv"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/credikids/credikids/core"
	"github.com/credikids/credikids/core/user"
)

var (
	// appJWTConfig is the default JWT auth middleware config.
	appJWTConfig   middleware.JWTConfig
	contextUserKey = "user"

	conf *core.Config
)

func initJWTConfig(c *core.Config) {
	conf = c
	appJWTConfig = middleware.JWTConfig{
		SigningKey:    []byte(c.SecretKey),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    "userToken",
		Claims:        new(Claims),
	}
}

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt int64  `json:"oriat,omitempty"`
	Nick         string `json:"nick,omitempty"`
	Role         string `json:"role,omitempty"`
	IsAdmin      bool   `json:"is_admin,omitempty"` // -> PARENT DASHBOARD
}

func GetUserClaims(usr user.User, origIat ...int64) *Claims {
	now := time.Now()
	nownix := now.Unix()

	var oriat int64
	if len(origIat) > 0 {
		oriat = origIat[0]
	} else {
		oriat = nownix
	}

	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    conf.AppName,
			Subject:   strconv.Itoa(usr.ID),
			Audience:  "CrediKids",
			ExpiresAt: now.Add(conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  nownix,
		},
		OrigIssuedAt: oriat,
		Nick:         usr.Nick,
		Role:         usr.Role,
		IsAdmin:      usr.IsAdmin(),
	}
}

func authenticate(ctx echo.Context, iconCodes []int, svc user.ServiceInterface) (*Claims, error) {
	usr, err := svc.Authenticate(ctx.Request().Context(), iconCodes)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return nil, errAuthenticationFailed
		}
		return nil, errors.Wrap(err, "authenticating user")
	}
	return GetUserClaims(usr), nil
}

// GenerateToken generates a signed JWT token string representing the user Claims.
func GenerateToken(claims *Claims) (string, error) {
	method := jwt.GetSigningMethod(appJWTConfig.SigningMethod)
	token := jwt.NewWithClaims(method, claims)

	ss, err := token.SignedString(appJWTConfig.SigningKey)
	if err != nil {
		return "", errors.New("signing token")
	}
	return ss, nil
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(appJWTConfig.ContextKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

func (c Claims) userID() int {
	id, _ := strconv.Atoi(c.Subject)
	return id
}

func getContextUser(ctx echo.Context, svc user.ServiceInterface, clms ...Claims) (user.User, error) {
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		return usr, nil
	}

	var claims Claims
	var err error
	if len(clms) > 0 {
		claims = clms[0]
	} else {
		claims, err = getContextClaims(ctx)
		if err != nil {
			return user.User{}, errors.Wrap(err, "getting context claims")
		}
	}

	usr, err := svc.GetByID(ctx.Request().Context(), claims.userID())
	if err != nil {
		return user.User{}, errors.Wrap(err, "finding user by ID")
	}
	ctx.Set(contextUserKey, usr)
	return usr, nil
}

func refreshToken(ctx echo.Context, svc user.ServiceInterface) (string, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return "", errors.Wrap(err, "getting context claims")
	}

	usr, err := getContextUser(ctx, svc, claims)
	if err != nil {
		return "", errors.Wrap(err, "getting context user")
	}

	// check if user is still active
	if !usr.IsActive {
		return "", errAccountDeactivated
	}

	// check if refresh has not expired
	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(conf.Server.JWTRefreshExpirationDelta)
	if time.Now().After(expTime) {
		return "", errRefreshExpired
	}

	newClaims := GetUserClaims(usr, claims.OrigIssuedAt)
	token, err := GenerateToken(newClaims)
	return token, errors.Wrap(err, "generating token")
}
