package credit_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/credikids/credikids/core/credit"
	"github.com/credikids/credikids/core/user"
	inmemdb "github.com/credikids/credikids/storage/database/inmem"
)

var ctx = context.Background()

func setup(t *testing.T) (*credit.Service, user.Repository, user.User, user.User) {
	db := inmemdb.NewDB()
	usrRepo := inmemdb.NewUserRepository(db)
	svc := credit.NewService(db, inmemdb.NewCreditRepository(db), usrRepo)

	admin := createUser(t, usrRepo, "mom", user.RoleAdmin, 0)
	kid := createUser(t, usrRepo, "sam", user.RoleUser, 50)
	return svc, usrRepo, admin, kid
}

func createUser(t *testing.T, repo user.Repository, nick, role string, score int) user.User {
	t.Helper()
	now := time.Now().UTC()
	usr, err := repo.CreateUser(ctx, user.User{
		Nick:      nick,
		Figure:    "bear",
		Role:      role,
		Score:     score,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	})
	require.NoError(t, err)
	return usr
}

func TestService_PostBonus(t *testing.T) {
	svc, usrRepo, admin, kid := setup(t)

	b, newScore, err := svc.PostBonus(ctx, credit.NewBonus{
		UserID:  kid.ID,
		Credits: 15,
		Reason:  "helped with groceries",
	}, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, 65, newScore)
	assert.Equal(t, 15, b.Credits)
	assert.Equal(t, admin.ID, b.GrantedByID)

	// a penalty is just a negative bonus
	_, newScore, err = svc.PostBonus(ctx, credit.NewBonus{
		UserID:  kid.ID,
		Credits: -5,
		Reason:  "broke a plate",
	}, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, 60, newScore)

	usr, err := usrRepo.GetUserByID(ctx, kid.ID)
	require.NoError(t, err)
	assert.Equal(t, 60, usr.Score)
}

func TestService_PostBonus_unknownUser(t *testing.T) {
	svc, _, admin, _ := setup(t)

	_, _, err := svc.PostBonus(ctx, credit.NewBonus{
		UserID:  404,
		Credits: 10,
		Reason:  "nope",
	}, admin.ID)
	assert.Error(t, err)
}

func TestService_QueryByUser(t *testing.T) {
	svc, usrRepo, admin, kid := setup(t)
	kid2 := createUser(t, usrRepo, "lea", user.RoleUser, 0)

	_, _, err := svc.PostBonus(ctx, credit.NewBonus{UserID: kid.ID, Credits: 5, Reason: "a"}, admin.ID)
	require.NoError(t, err)
	_, _, err = svc.PostBonus(ctx, credit.NewBonus{UserID: kid2.ID, Credits: 10, Reason: "b"}, admin.ID)
	require.NoError(t, err)
	_, _, err = svc.PostBonus(ctx, credit.NewBonus{UserID: kid.ID, Credits: -3, Reason: "c"}, admin.ID)
	require.NoError(t, err)

	mine, err := svc.QueryByUser(ctx, kid.ID)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	// newest first
	assert.Equal(t, -3, mine[0].Credits)
	assert.Equal(t, 5, mine[1].Credits)

	all, err := svc.QueryByUser(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestNewBonus_Validate(t *testing.T) {
	tests := []struct {
		name    string
		nb      credit.NewBonus
		wantErr bool
	}{
		{name: "valid", nb: credit.NewBonus{UserID: 1, Credits: 5, Reason: "good job"}},
		{name: "valid negative", nb: credit.NewBonus{UserID: 1, Credits: -5, Reason: "oops"}},
		{name: "missing user", nb: credit.NewBonus{Credits: 5, Reason: "x"}, wantErr: true},
		{name: "zero credits", nb: credit.NewBonus{UserID: 1, Reason: "x"}, wantErr: true},
		{name: "missing reason", nb: credit.NewBonus{UserID: 1, Credits: 5}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.nb.Validate()
			if tt.wantErr && err == nil {
				t.Fatal("Validate() error = nil, want error")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("Validate() error = %v", err)
			}
		})
	}
}
