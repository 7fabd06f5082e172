package echoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/credikids/credikids/core"
	"github.com/credikids/credikids/core/credit"
	"github.com/credikids/credikids/core/reward"
	"github.com/credikids/credikids/core/task"
	"github.com/credikids/credikids/core/user"
	logger "github.com/credikids/credikids/services/logger"
	inmemdb "github.com/credikids/credikids/storage/database/inmem"
)

var testCtx = context.Background()

type apiTestEnv struct {
	server *Server
	usrSvc user.ServiceInterface
	admin  user.User
	kid    user.User
}

func testConfig() *core.Config {
	return &core.Config{
		TestMode:  true,
		Env:       "TEST",
		AppName:   "CrediKids",
		SecretKey: "secret",
		Server: core.ServerConfig{
			JWTExpirationDelta:        10 * time.Minute,
			JWTRefreshExpirationDelta: 4 * time.Hour,
		},
	}
}

func setupAPI(t *testing.T) *apiTestEnv {
	t.Helper()
	conf := testConfig()

	db := inmemdb.NewDB()
	usrRepo := inmemdb.NewUserRepository(db)
	usrSvc := user.NewService(db, usrRepo)

	env := &apiTestEnv{
		usrSvc: usrSvc,
		server: NewServer(ServerDeps{
			Conf:           conf,
			Logger:         logger.NewRollbarLogger(log.New(os.Stdout, "TEST : ", log.LstdFlags), conf),
			DisableReqLogs: true,
			UserSvc:        usrSvc,
			TaskSvc:        task.NewService(db, inmemdb.NewTaskRepository(db), usrRepo),
			RewardSvc:      reward.NewService(db, inmemdb.NewRewardRepository(db), usrRepo),
			CreditSvc:      credit.NewService(db, inmemdb.NewCreditRepository(db), usrRepo),
		}),
	}
	env.admin = env.createUser(t, "mom", user.RoleAdmin, []int{1, 2, 3, 4})
	env.kid = env.createUser(t, "sam", user.RoleUser, []int{5, 6, 7, 8})
	return env
}

func (env *apiTestEnv) createUser(t *testing.T, nick, role string, icons []int) user.User {
	t.Helper()
	usr, err := env.usrSvc.Create(testCtx, user.NewUser{
		Nick:      nick,
		Figure:    "bear",
		IconCodes: icons,
		Role:      role,
	})
	require.NoError(t, err)
	return usr
}

func (env *apiTestEnv) token(t *testing.T, usr user.User) string {
	t.Helper()
	token, err := GenerateToken(GetUserClaims(usr))
	require.NoError(t, err)
	return token
}

func (env *apiTestEnv) request(method, path, token string, data ...interface{}) *httptest.ResponseRecorder {
	var body bytes.Buffer
	if len(data) > 0 {
		_ = json.NewEncoder(&body).Encode(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	env.server.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func TestAPI_home(t *testing.T) {
	env := setupAPI(t)
	rec := env.request(http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to CrediKids API!", rec.Body.String())
}

func TestAPI_auth(t *testing.T) {
	env := setupAPI(t)

	t.Run("login", func(t *testing.T) {
		rec := env.request(http.MethodPost, "/v1/auth/login", "", LoginRequest{IconCodes: []int{1, 2, 3, 4}})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp LoginResponse
		decode(t, rec, &resp)
		assert.NotEmpty(t, resp.Token)
		assert.Equal(t, "mom", resp.User.Nick)
	})

	t.Run("wrong code", func(t *testing.T) {
		rec := env.request(http.MethodPost, "/v1/auth/login", "", LoginRequest{IconCodes: []int{9, 9, 9, 9}})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("too few icons", func(t *testing.T) {
		rec := env.request(http.MethodPost, "/v1/auth/login", "", LoginRequest{IconCodes: []int{1, 2, 3}})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("me requires a token", func(t *testing.T) {
		rec := env.request(http.MethodGet, "/v1/auth/me", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("me", func(t *testing.T) {
		rec := env.request(http.MethodGet, "/v1/auth/me", env.token(t, env.kid))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var usr user.User
		decode(t, rec, &usr)
		assert.Equal(t, "sam", usr.Nick)
	})

	t.Run("refresh", func(t *testing.T) {
		rec := env.request(http.MethodPost, "/v1/auth/refresh", env.token(t, env.kid))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp LoginResponse
		decode(t, rec, &resp)
		assert.NotEmpty(t, resp.Token)
	})
}

func TestAPI_adminOnly(t *testing.T) {
	env := setupAPI(t)
	newUser := user.NewUser{Nick: "lea", Figure: "cat", IconCodes: []int{2, 4, 6, 8}}

	rec := env.request(http.MethodPost, "/v1/users", env.token(t, env.kid), newUser)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.request(http.MethodPost, "/v1/users", env.token(t, env.admin), newUser)
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestAPI_userVisibility(t *testing.T) {
	env := setupAPI(t)
	kidToken := env.token(t, env.kid)

	// users only see themselves, admins see everyone
	rec := env.request(http.MethodGet, fmt.Sprintf("/v1/users/%d", env.kid.ID), kidToken)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.request(http.MethodGet, fmt.Sprintf("/v1/users/%d", env.admin.ID), kidToken)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.request(http.MethodGet, fmt.Sprintf("/v1/users/%d", env.kid.ID), env.token(t, env.admin))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPI_taskFlow(t *testing.T) {
	env := setupAPI(t)
	adminToken := env.token(t, env.admin)
	kidToken := env.token(t, env.kid)

	// admin creates a task
	rec := env.request(http.MethodPost, "/v1/tasks", adminToken, task.NewTask{
		Title:     "Feed the fish",
		Type:      task.TypeSpecial,
		Frequency: task.FrequencyDaily,
		BaseValue: 10,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var tsk task.Task
	decode(t, rec, &tsk)

	// and assigns it to the kid
	rec = env.request(http.MethodPost, "/v1/tasks/assign", adminToken, task.NewAssignment{
		TaskID:       tsk.ID,
		UserID:       env.kid.ID,
		AssignedDate: "2025-06-02",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var a task.Assignment
	decode(t, rec, &a)

	// the kid completes it
	rec = env.request(http.MethodPost, fmt.Sprintf("/v1/assignments/%d/complete", a.ID), kidToken, CompleteRequest{Notes: "done"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var c task.Completion
	decode(t, rec, &c)

	// completing someone else's assignment is forbidden
	rec = env.request(http.MethodPost, fmt.Sprintf("/v1/assignments/%d/complete", a.ID), adminToken, CompleteRequest{})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// only admins validate
	rec = env.request(http.MethodPost, fmt.Sprintf("/v1/completions/%d/validate", c.ID), kidToken, task.ValidateCompletion{ValidationScore: task.ScoreGood})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.request(http.MethodPost, fmt.Sprintf("/v1/completions/%d/validate", c.ID), adminToken, task.ValidateCompletion{ValidationScore: task.ScoreGood})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var vResp ValidateResponse
	decode(t, rec, &vResp)
	assert.Equal(t, 6, vResp.Completion.CreditsAwarded) // 60% of 10
	assert.Equal(t, 6, vResp.NewScore)

	// validating twice conflicts
	rec = env.request(http.MethodPost, fmt.Sprintf("/v1/completions/%d/validate", c.ID), adminToken, task.ValidateCompletion{ValidationScore: task.ScorePerfect})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// the credits show up in the kid's balance
	rec = env.request(http.MethodGet, fmt.Sprintf("/v1/users/%d/balance", env.kid.ID), kidToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var bal reward.Balance
	decode(t, rec, &bal)
	assert.Equal(t, reward.Balance{Total: 6, Pending: 0, Available: 6}, bal)
}

func TestAPI_redemptionFlow(t *testing.T) {
	env := setupAPI(t)
	adminToken := env.token(t, env.admin)

	// seed the kid with credits
	rec := env.request(http.MethodPost, fmt.Sprintf("/v1/tasks/users/%d/bonus", env.kid.ID), adminToken, credit.NewBonus{
		Credits: 100,
		Reason:  "birthday",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = env.request(http.MethodPost, "/v1/rewards", adminToken, reward.NewReward{Name: "Movie night", Cost: 30})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var r reward.Reward
	decode(t, rec, &r)

	kidToken := env.token(t, env.kid)

	rec = env.request(http.MethodPost, fmt.Sprintf("/v1/rewards/%d/redeem", r.ID), kidToken, RedeemRequest{Notes: "for saturday"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var rd reward.Redemption
	decode(t, rec, &rd)
	assert.Equal(t, reward.RedemptionPending, rd.Status)
	assert.Equal(t, "for saturday", rd.Notes.String)

	// pending reservation shows in the balance
	rec = env.request(http.MethodGet, fmt.Sprintf("/v1/users/%d/balance", env.kid.ID), kidToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var bal reward.Balance
	decode(t, rec, &bal)
	assert.Equal(t, reward.Balance{Total: 100, Pending: 30, Available: 70}, bal)

	rec = env.request(http.MethodPost, fmt.Sprintf("/v1/rewards/redemptions/%d/approve", rd.ID), adminToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp RedemptionResponse
	decode(t, rec, &resp)
	assert.Equal(t, reward.RedemptionApproved, resp.Redemption.Status)
	assert.Equal(t, 70, resp.NewScore)
}

func TestAPI_calendar(t *testing.T) {
	env := setupAPI(t)
	adminToken := env.token(t, env.admin)
	kidToken := env.token(t, env.kid)

	date := func(offset int) string {
		return time.Now().UTC().AddDate(0, 0, offset).Format(task.DateLayout)
	}
	createTask := func(title string) task.Task {
		rec := env.request(http.MethodPost, "/v1/tasks", adminToken, task.NewTask{
			Title:     title,
			Type:      task.TypeSpecial,
			Frequency: task.FrequencyDaily,
			BaseValue: 10,
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var tsk task.Task
		decode(t, rec, &tsk)
		return tsk
	}
	assign := func(taskID int, date string) task.Assignment {
		rec := env.request(http.MethodPost, "/v1/tasks/assign", adminToken, task.NewAssignment{
			TaskID:       taskID,
			UserID:       env.kid.ID,
			AssignedDate: date,
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var a task.Assignment
		decode(t, rec, &a)
		return a
	}
	list := func(path string) []task.Assignment {
		rec := env.request(http.MethodGet, path, kidToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var assignments []task.Assignment
		decode(t, rec, &assignments)
		return assignments
	}

	chores := createTask("Feed the fish")
	homework := createTask("Homework")

	doneOld := assign(chores.ID, date(-2))
	open := assign(chores.ID, date(-1))
	doneToday := assign(chores.ID, date(0))
	assign(chores.ID, date(1)) // upcoming, never pending
	dropped := assign(homework.ID, date(0))

	for _, a := range []task.Assignment{doneOld, doneToday} {
		rec := env.request(http.MethodPost, fmt.Sprintf("/v1/assignments/%d/complete", a.ID), kidToken, CompleteRequest{})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}
	rec := env.request(http.MethodPost, fmt.Sprintf("/v1/assignments/%d/cancel", dropped.ID), kidToken, CancelRequest{Reason: "no time"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	t.Run("pending stops at today", func(t *testing.T) {
		pending := list(fmt.Sprintf("/v1/calendar/user/%d/pending", env.kid.ID))
		require.Len(t, pending, 1)
		assert.Equal(t, open.ID, pending[0].ID)
	})

	t.Run("completed, most recent first", func(t *testing.T) {
		completed := list(fmt.Sprintf("/v1/calendar/user/%d/completed", env.kid.ID))
		require.Len(t, completed, 2)
		assert.Equal(t, doneToday.ID, completed[0].ID)
		assert.Equal(t, doneOld.ID, completed[1].ID)

		limited := list(fmt.Sprintf("/v1/calendar/user/%d/completed?limit=1", env.kid.ID))
		require.Len(t, limited, 1)
		assert.Equal(t, doneToday.ID, limited[0].ID)
	})

	t.Run("cancelled", func(t *testing.T) {
		cancelled := list(fmt.Sprintf("/v1/calendar/user/%d/cancelled", env.kid.ID))
		require.Len(t, cancelled, 1)
		assert.Equal(t, dropped.ID, cancelled[0].ID)
	})
}
