package echoapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/credikids/credikids/core"
	"github.com/credikids/credikids/core/task"
	"github.com/credikids/credikids/core/user"
)

type calendarApi struct {
	svc *task.Service
}

func registerCalendarAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *task.Service, userSvc user.ServiceInterface) {
	api := calendarApi{svc: svc}

	cg := g.Group("/calendar/user/:id", jwt, ctxUserOrAdminMiddleware(userSvc))
	cg.GET("", api.queryRange)
	cg.GET("/day/:date", api.queryDay)
	cg.GET("/pending", api.queryPending)
	cg.GET("/cancelled", api.queryCancelled)
	cg.GET("/completed", api.queryCompleted)
}

// Handlers

// queryRange lists a user's assignments over ?from=&to=, grouped by date.
func (api *calendarApi) queryRange(ctx echo.Context) error {
	usr, ok := ctx.Get("object").(user.User)
	if !ok {
		return errors.Wrap(errUsrNotFoundInCtx, "retrieving object from context")
	}

	filter := task.AssignmentFilter{UserID: usr.ID}
	if from := ctx.QueryParam("from"); from != "" {
		d, err := task.ParseDate(from)
		if err != nil {
			return core.NewValidationError(err, core.FieldError{Field: "from", Error: err.Error()})
		}
		filter.From = d
	}
	if to := ctx.QueryParam("to"); to != "" {
		d, err := task.ParseDate(to)
		if err != nil {
			return core.NewValidationError(err, core.FieldError{Field: "to", Error: err.Error()})
		}
		filter.To = d
	}

	var ord Ordering
	ord.Bind(ctx, "assigned_date", "created_at", "id")
	filter.Ordering = ord.Orderings

	assignments, err := api.svc.QueryAssignments(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying assignments")
	}

	grouped := make(map[string][]task.Assignment)
	for _, a := range assignments {
		key := a.AssignedDate.Format(task.DateLayout)
		grouped[key] = append(grouped[key], a)
	}
	return ctx.JSON(http.StatusOK, grouped)
}

func (api *calendarApi) queryDay(ctx echo.Context) error {
	usr, ok := ctx.Get("object").(user.User)
	if !ok {
		return errors.Wrap(errUsrNotFoundInCtx, "retrieving object from context")
	}

	d, err := task.ParseDate(ctx.Param("date"))
	if err != nil {
		return core.NewValidationError(err, core.FieldError{Field: "date", Error: err.Error()})
	}

	assignments, err := api.svc.QueryAssignments(ctx.Request().Context(), task.AssignmentFilter{
		UserID: usr.ID,
		From:   d,
		To:     d,
	})
	if err != nil {
		return errors.Wrap(err, "querying assignments")
	}
	if assignments == nil {
		assignments = []task.Assignment{}
	}
	return ctx.JSON(http.StatusOK, assignments)
}

// queryPending lists assignments still open, bounded to today: upcoming dates
// are not "pending" yet.
func (api *calendarApi) queryPending(ctx echo.Context) error {
	notCompleted, notCancelled := false, false
	now := time.Now().UTC()
	return api.queryFiltered(ctx, task.AssignmentFilter{
		IsCompleted: &notCompleted,
		IsCancelled: &notCancelled,
		To:          time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC),
	})
}

func (api *calendarApi) queryCancelled(ctx echo.Context) error {
	cancelled := true
	return api.queryFiltered(ctx, task.AssignmentFilter{
		IsCancelled: &cancelled,
		Limit:       queryLimit(ctx, 30),
		Ordering:    []core.DBOrdering{{Field: "cancelled_at"}},
	})
}

func (api *calendarApi) queryCompleted(ctx echo.Context) error {
	completed := true
	return api.queryFiltered(ctx, task.AssignmentFilter{
		IsCompleted: &completed,
		Limit:       queryLimit(ctx, 100),
		Ordering:    []core.DBOrdering{{Field: "assigned_date"}},
	})
}

func (api *calendarApi) queryFiltered(ctx echo.Context, filter task.AssignmentFilter) error {
	usr, ok := ctx.Get("object").(user.User)
	if !ok {
		return errors.Wrap(errUsrNotFoundInCtx, "retrieving object from context")
	}
	filter.UserID = usr.ID

	assignments, err := api.svc.QueryAssignments(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying assignments")
	}
	if assignments == nil {
		assignments = []task.Assignment{}
	}
	return ctx.JSON(http.StatusOK, assignments)
}

func queryLimit(ctx echo.Context, dflt int) int {
	if limit, err := strconv.Atoi(ctx.QueryParam("limit")); err == nil && limit > 0 {
		return limit
	}
	return dflt
}
