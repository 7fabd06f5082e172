package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/credikids/credikids/core/reward"
	"github.com/credikids/credikids/core/user"
)

type rewardApi struct {
	svc     *reward.Service
	userSvc user.ServiceInterface
}

func registerRewardAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *reward.Service, userSvc user.ServiceInterface) {
	api := rewardApi{svc: svc, userSvc: userSvc}

	rg := g.Group("/rewards", jwt)
	rg.POST("", api.create, adminMiddleware())
	rg.GET("", api.query)

	rg.GET("/redemptions", api.queryRedemptions)
	rg.POST("/redemptions/:id/approve", api.approveRedemption, adminMiddleware())
	rg.POST("/redemptions/:id/reject", api.rejectRedemption, adminMiddleware())

	rg.GET("/:id", api.retrieve)
	rg.PUT("/:id", api.update, adminMiddleware())
	rg.DELETE("/:id", api.deactivate, adminMiddleware())
	rg.POST("/:id/redeem", api.redeem)
}

// Handlers

func (api *rewardApi) create(ctx echo.Context) error {
	var data reward.NewReward
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewReward")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	r, err := api.svc.Create(ctx.Request().Context(), data, claims.userID())
	if err != nil {
		return errors.Wrap(err, "creating reward")
	}
	return ctx.JSON(http.StatusCreated, r)
}

// query lists rewards; plain users only see active ones.
func (api *rewardApi) query(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	rewards, err := api.svc.Query(ctx.Request().Context(), !claims.IsAdmin)
	if err != nil {
		return errors.Wrap(err, "querying rewards")
	}
	if rewards == nil {
		rewards = []reward.Reward{}
	}
	return ctx.JSON(http.StatusOK, rewards)
}

func (api *rewardApi) retrieve(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	r, err := api.svc.GetByID(ctx.Request().Context(), id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, r)
}

func (api *rewardApi) update(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}

	var data reward.UpdateReward
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateReward")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	r, err := api.svc.Update(ctx.Request().Context(), id, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, r)
}

func (api *rewardApi) deactivate(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	if _, err := api.svc.Deactivate(ctx.Request().Context(), id); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *rewardApi) redeem(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}

	var data RedeemRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RedeemRequest")
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	rd, err := api.svc.Redeem(ctx.Request().Context(), id, claims.userID(), data.Notes)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, rd)
}

// queryRedemptions lists the caller's redemptions; admins see everyone's and
// may filter by ?status=.
func (api *rewardApi) queryRedemptions(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	userID := claims.userID()
	if claims.IsAdmin {
		userID = 0
	}
	redemptions, err := api.svc.QueryRedemptions(ctx.Request().Context(), userID, ctx.QueryParam("status"))
	if err != nil {
		return errors.Wrap(err, "querying redemptions")
	}
	if redemptions == nil {
		redemptions = []reward.Redemption{}
	}
	return ctx.JSON(http.StatusOK, redemptions)
}

func (api *rewardApi) approveRedemption(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	rd, newScore, err := api.svc.Approve(ctx.Request().Context(), id, claims.userID())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, RedemptionResponse{Redemption: rd, NewScore: newScore})
}

func (api *rewardApi) rejectRedemption(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}

	var data reward.RejectRedemption
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RejectRedemption")
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	rd, err := api.svc.Reject(ctx.Request().Context(), id, claims.userID(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, rd)
}

type (
	RedeemRequest struct {
		Notes string `json:"notes"`
	}

	RedemptionResponse struct {
		Redemption reward.Redemption `json:"redemption"`
		NewScore   int               `json:"new_score"`
	}
)
