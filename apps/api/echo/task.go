package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/credikids/credikids/core/credit"
	"github.com/credikids/credikids/core/task"
	"github.com/credikids/credikids/core/user"
)

type taskApi struct {
	svc       *task.Service
	creditSvc *credit.Service
	userSvc   user.ServiceInterface
}

func registerTaskAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc *task.Service,
	creditSvc *credit.Service,
	userSvc user.ServiceInterface,
) {
	api := taskApi{svc: svc, creditSvc: creditSvc, userSvc: userSvc}

	tg := g.Group("/tasks", jwt)
	tg.POST("", api.create, adminMiddleware())
	tg.GET("", api.query)
	tg.GET("/:id", api.retrieve)
	tg.PUT("/:id", api.update, adminMiddleware())
	tg.DELETE("/:id", api.archive, adminMiddleware())

	tg.POST("/assign", api.assign, adminMiddleware())
	tg.POST("/assign/bulk", api.assignBulk, adminMiddleware())
	tg.GET("/completions/pending-validation", api.pendingValidations, adminMiddleware())
	tg.GET("/assignments/cancelled", api.cancelledAssignments, adminMiddleware())

	tg.GET("/proposals", api.queryProposals)
	tg.POST("/proposals", api.createProposal)
	tg.POST("/proposals/:id/review", api.reviewProposal, adminMiddleware())

	tg.POST("/users/:id/bonus", api.postBonus, adminMiddleware())

	ag := g.Group("/assignments", jwt)
	ag.POST("/:id/complete", api.complete)
	ag.POST("/:id/cancel", api.cancel)
	ag.POST("/:id/reset", api.reset, adminMiddleware())

	cg := g.Group("/completions", jwt)
	cg.POST("/:id/validate", api.validateCompletion, adminMiddleware())
}

// Handlers

func (api *taskApi) create(ctx echo.Context) error {
	var data task.NewTask
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTask")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	t, err := api.svc.Create(ctx.Request().Context(), data, claims.userID())
	if err != nil {
		return errors.Wrap(err, "creating task")
	}
	return ctx.JSON(http.StatusCreated, t)
}

func (api *taskApi) query(ctx echo.Context) error {
	activeOnly, _ := strconv.ParseBool(ctx.QueryParam("active"))
	tasks, err := api.svc.Query(ctx.Request().Context(), activeOnly)
	if err != nil {
		return errors.Wrap(err, "querying tasks")
	}
	if tasks == nil {
		tasks = []task.Task{}
	}
	return ctx.JSON(http.StatusOK, tasks)
}

func (api *taskApi) retrieve(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	t, err := api.svc.GetByID(ctx.Request().Context(), id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *taskApi) update(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}

	var data task.UpdateTask
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateTask")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	t, err := api.svc.Update(ctx.Request().Context(), id, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *taskApi) archive(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	if _, err := api.svc.Archive(ctx.Request().Context(), id); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *taskApi) assign(ctx echo.Context) error {
	var data task.NewAssignment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAssignment")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	a, err := api.svc.Assign(ctx.Request().Context(), data, claims.userID())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, a)
}

func (api *taskApi) assignBulk(ctx echo.Context) error {
	var data task.BulkAssignment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to BulkAssignment")
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	count, err := api.svc.BulkAssign(ctx.Request().Context(), &data, claims.userID())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, echo.Map{"assignments_created": count})
}

func (api *taskApi) complete(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}

	var data CompleteRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CompleteRequest")
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	c, err := api.svc.Complete(ctx.Request().Context(), id, claims.userID(), data.Notes)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, c)
}

func (api *taskApi) cancel(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}

	var data CancelRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CancelRequest")
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	a, penalty, err := api.svc.Cancel(ctx.Request().Context(), id, claims.userID(), data.Reason)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, CancelResponse{Assignment: a, PenaltyApplied: penalty})
}

func (api *taskApi) reset(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	a, err := api.svc.Reset(ctx.Request().Context(), id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *taskApi) validateCompletion(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}

	var data task.ValidateCompletion
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ValidateCompletion")
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	c, newScore, err := api.svc.ValidateCompletion(ctx.Request().Context(), id, claims.userID(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, ValidateResponse{Completion: c, NewScore: newScore})
}

func (api *taskApi) pendingValidations(ctx echo.Context) error {
	completions, err := api.svc.PendingValidations(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying pending validations")
	}
	if completions == nil {
		completions = []task.Completion{}
	}
	return ctx.JSON(http.StatusOK, completions)
}

func (api *taskApi) cancelledAssignments(ctx echo.Context) error {
	assignments, err := api.svc.CancelledAssignments(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying cancelled assignments")
	}
	if assignments == nil {
		assignments = []task.Assignment{}
	}
	return ctx.JSON(http.StatusOK, assignments)
}

func (api *taskApi) createProposal(ctx echo.Context) error {
	var data task.NewProposal
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewProposal")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	p, err := api.svc.CreateProposal(ctx.Request().Context(), data, claims.userID())
	if err != nil {
		return errors.Wrap(err, "creating proposal")
	}
	return ctx.JSON(http.StatusCreated, p)
}

// queryProposals lists the caller's proposals; admins see everyone's.
func (api *taskApi) queryProposals(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	userID := claims.userID()
	if claims.IsAdmin {
		userID = 0
	}
	proposals, err := api.svc.QueryProposals(ctx.Request().Context(), userID)
	if err != nil {
		return errors.Wrap(err, "querying proposals")
	}
	if proposals == nil {
		proposals = []task.Proposal{}
	}
	return ctx.JSON(http.StatusOK, proposals)
}

func (api *taskApi) reviewProposal(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}

	var data task.ReviewProposal
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ReviewProposal")
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	p, err := api.svc.ReviewProposal(ctx.Request().Context(), id, claims.userID(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *taskApi) postBonus(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}

	var data credit.NewBonus
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewBonus")
	}
	data.UserID = id
	if err := data.Validate(); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	b, newScore, err := api.creditSvc.PostBonus(ctx.Request().Context(), data, claims.userID())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, BonusResponse{Bonus: b, NewScore: newScore})
}

func pathID(ctx echo.Context) (int, error) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return 0, errHttpNotFound
	}
	return id, nil
}

type (
	CompleteRequest struct {
		Notes string `json:"notes"`
	}

	CancelRequest struct {
		Reason string `json:"reason"`
	}

	CancelResponse struct {
		Assignment     task.Assignment `json:"assignment"`
		PenaltyApplied int             `json:"penalty_applied"`
	}

	ValidateResponse struct {
		Completion task.Completion `json:"completion"`
		NewScore   int             `json:"new_score"`
	}

	BonusResponse struct {
		Bonus    credit.Bonus `json:"bonus"`
		NewScore int          `json:"new_score"`
	}
)
