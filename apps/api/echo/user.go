package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/credikids/credikids/core"
	"github.com/credikids/credikids/core/credit"
	"github.com/credikids/credikids/core/reward"
	"github.com/credikids/credikids/core/task"
	"github.com/credikids/credikids/core/user"
)

var errUsrNotFoundInCtx = errors.New("user object not found in echo.Context")

type authApi struct {
	svc user.ServiceInterface
}

func registerAuthAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc user.ServiceInterface) {
	api := authApi{svc: svc}

	ag := g.Group("/auth")

	// un-authed endpoints
	ag.POST("/login", api.login)

	// authed endpoints
	tg := ag.Group("", jwt)
	tg.GET("/me", api.me)
	tg.POST("/refresh", api.refreshToken)
	tg.POST("/change-pin", api.changePIN)
}

func (api *authApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	claims, err := authenticate(ctx, data.IconCodes, api.svc)
	if err != nil {
		return err
	}
	token, err := GenerateToken(claims)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}

	usr, err := api.svc.GetByID(ctx.Request().Context(), claims.userID())
	if err != nil {
		return errors.Wrap(err, "finding user by ID")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token, User: usr})
}

func (api *authApi) me(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *authApi) refreshToken(ctx echo.Context) error {
	token, err := refreshToken(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *authApi) changePIN(ctx echo.Context) error {
	var data user.ChangePIN
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ChangePIN")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	usr, err := api.svc.ChangeAccessCode(ctx.Request().Context(), ctxUsr.ID, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, usr)
}

type userApi struct {
	svc       user.ServiceInterface
	taskSvc   *task.Service
	rewardSvc *reward.Service
	creditSvc *credit.Service
}

func registerUserAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc user.ServiceInterface,
	taskSvc *task.Service,
	rewardSvc *reward.Service,
	creditSvc *credit.Service,
) {
	api := userApi{svc: svc, taskSvc: taskSvc, rewardSvc: rewardSvc, creditSvc: creditSvc}

	// icon catalog, needed by the login screen
	g.GET("/icons", api.queryIcons)

	ug := g.Group("/users", jwt)
	ug.POST("", api.create, adminMiddleware())
	ug.GET("", api.query, adminMiddleware())

	// detail endpoints
	dg := ug.Group("/:id", ctxUserOrAdminMiddleware(api.svc))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update, adminMiddleware())
	dg.DELETE("", api.destroy, adminMiddleware())
	dg.POST("/toggle-active", api.toggleActive, adminMiddleware())
	dg.GET("/history", api.history)
	dg.GET("/balance", api.balance)
}

// Handlers

func (api *userApi) create(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}
	if err := data.Validate(ctx.Request().Context(), api.svc); err != nil {
		return err
	}

	usr, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating user")
	}
	return ctx.JSON(http.StatusCreated, usr)
}

func (api *userApi) query(ctx echo.Context) error {
	users, err := api.svc.QueryAll(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	if users == nil {
		users = []user.User{}
	}
	return ctx.JSON(http.StatusOK, users)
}

func (api *userApi) retrieve(ctx echo.Context) error {
	usr, ok := ctx.Get("object").(user.User)
	if !ok {
		return errors.Wrap(errUsrNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) update(ctx echo.Context) error {
	usr, ok := ctx.Get("object").(user.User)
	if !ok {
		return errors.Wrap(errUsrNotFoundInCtx, "retrieving object from context")
	}

	var data user.UpdateUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateUser")
	}
	if err := data.Validate(ctx.Request().Context(), api.svc, usr); err != nil {
		return err
	}

	usr, err := api.svc.Update(ctx.Request().Context(), usr.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating user")
	}
	return ctx.JSON(http.StatusOK, usr)
}

// destroy deactivates the account; history must survive.
func (api *userApi) destroy(ctx echo.Context) error {
	usr, ok := ctx.Get("object").(user.User)
	if !ok {
		return errors.Wrap(errUsrNotFoundInCtx, "retrieving object from context")
	}

	// ctxUser cannot deactivate themselves
	ctxUsr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if usr.ID == ctxUsr.ID {
		return errHttpForbidden
	}

	if _, err := api.svc.Deactivate(ctx.Request().Context(), usr.ID); err != nil {
		return errors.Wrap(err, "deactivating user")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *userApi) toggleActive(ctx echo.Context) error {
	usr, ok := ctx.Get("object").(user.User)
	if !ok {
		return errors.Wrap(errUsrNotFoundInCtx, "retrieving object from context")
	}

	ctxUsr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if usr.ID == ctxUsr.ID {
		return errHttpForbidden
	}

	usr, err = api.svc.ToggleActive(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "toggling user active state")
	}
	return ctx.JSON(http.StatusOK, usr)
}

// history aggregates a user's validated completions, redemptions and bonuses.
func (api *userApi) history(ctx echo.Context) error {
	usr, ok := ctx.Get("object").(user.User)
	if !ok {
		return errors.Wrap(errUsrNotFoundInCtx, "retrieving object from context")
	}
	reqCtx := ctx.Request().Context()

	completions, err := api.taskSvc.QueryCompletions(reqCtx, task.CompletionFilter{UserID: usr.ID})
	if err != nil {
		return errors.Wrap(err, "querying completions")
	}
	redemptions, err := api.rewardSvc.QueryRedemptions(reqCtx, usr.ID, "")
	if err != nil {
		return errors.Wrap(err, "querying redemptions")
	}
	bonuses, err := api.creditSvc.QueryByUser(reqCtx, usr.ID)
	if err != nil {
		return errors.Wrap(err, "querying bonuses")
	}

	if completions == nil {
		completions = []task.Completion{}
	}
	if redemptions == nil {
		redemptions = []reward.Redemption{}
	}
	if bonuses == nil {
		bonuses = []credit.Bonus{}
	}
	return ctx.JSON(http.StatusOK, HistoryResponse{
		Score:       usr.Score,
		Completions: completions,
		Redemptions: redemptions,
		Bonuses:     bonuses,
	})
}

func (api *userApi) balance(ctx echo.Context) error {
	usr, ok := ctx.Get("object").(user.User)
	if !ok {
		return errors.Wrap(errUsrNotFoundInCtx, "retrieving object from context")
	}

	balance, err := api.rewardSvc.AvailableCredits(ctx.Request().Context(), usr.ID, usr.Score)
	if err != nil {
		return errors.Wrap(err, "computing balance")
	}
	return ctx.JSON(http.StatusOK, balance)
}

func (api *userApi) queryIcons(ctx echo.Context) error {
	icons, err := api.svc.Icons(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying icons")
	}
	if icons == nil {
		icons = []user.Icon{}
	}
	return ctx.JSON(http.StatusOK, icons)
}

// ctxUserOrAdminMiddleware resolves the :id user into the context; plain
// users only see themselves, admins see everyone.
func ctxUserOrAdminMiddleware(svc user.ServiceInterface) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if id, err := strconv.Atoi(ctx.Param("id")); err == nil {
				ctxUsr, err := getContextUser(ctx, svc)
				if err != nil {
					return errors.Wrap(err, "getting context user")
				}

				if id == ctxUsr.ID || ctxUsr.IsAdmin() {
					usr, err := svc.GetByID(ctx.Request().Context(), id)
					if err == nil {
						ctx.Set("object", usr)
						return next(ctx)
					} else if errors.Cause(err) != user.ErrNotFound {
						return errors.Wrap(err, "finding user by ID")
					}
				}
			}
			return errHttpNotFound
		}
	}
}

type (
	LoginRequest struct {
		IconCodes []int `json:"icon_codes" validate:"required,iconcode"`
	}

	LoginResponse struct {
		Token string    `json:"token"`
		User  user.User `json:"user,omitempty"`
	}

	HistoryResponse struct {
		Score       int                 `json:"score"`
		Completions []task.Completion   `json:"completions"`
		Redemptions []reward.Redemption `json:"redemptions"`
		Bonuses     []credit.Bonus      `json:"bonuses"`
	}
)

func (lr *LoginRequest) Validate() error {
	return core.Validate.Struct(lr)
}
