package user_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/credikids/credikids/core"
	"github.com/credikids/credikids/core/user"
	inmemdb "github.com/credikids/credikids/storage/database/inmem"
)

var ctx = context.Background()

func setup(t *testing.T) *user.Service {
	db := inmemdb.NewDB()
	return user.NewService(db, inmemdb.NewUserRepository(db))
}

func createUser(t *testing.T, svc *user.Service, nick string, icons []int) user.User {
	t.Helper()
	usr, err := svc.Create(ctx, user.NewUser{
		Nick:      nick,
		Figure:    "bear",
		IconCodes: icons,
	})
	require.NoError(t, err)
	return usr
}

func TestService_Create(t *testing.T) {
	svc := setup(t)

	usr := createUser(t, svc, "sam", []int{1, 2, 3, 4})
	assert.Equal(t, user.RoleUser, usr.Role) // default
	assert.True(t, usr.IsActive)
	assert.Zero(t, usr.Score)
	assert.Equal(t, "1,2,3,4", usr.AccessCode)

	_, err := svc.Create(ctx, user.NewUser{
		Nick:      "mom",
		Figure:    "crown",
		IconCodes: []int{5, 6, 7, 8},
		Role:      user.RoleAdmin,
	})
	require.NoError(t, err)

	_, err = svc.Create(ctx, user.NewUser{
		Nick:      "bad",
		Figure:    "bear",
		IconCodes: []int{1, 2, 3},
	})
	assert.Equal(t, user.ErrInvalidAccessCode, err)
}

func TestService_CheckUniqueness(t *testing.T) {
	svc := setup(t)
	usr := createUser(t, svc, "sam", []int{1, 2, 3, 4})

	err := svc.CheckUniqueness(ctx, "sam", "")
	vErr, ok := err.(*core.ValidationError)
	require.True(t, ok, "error = %v (%T), want *core.ValidationError", err, err)
	require.Len(t, vErr.Fields, 1)
	assert.Equal(t, "nick", vErr.Fields[0].Field)

	err = svc.CheckUniqueness(ctx, "", "1,2,3,4")
	vErr, ok = err.(*core.ValidationError)
	require.True(t, ok, "error = %v (%T), want *core.ValidationError", err, err)
	require.Len(t, vErr.Fields, 1)
	assert.Equal(t, "icon_codes", vErr.Fields[0].Field)

	// the user themselves is excluded
	assert.NoError(t, svc.CheckUniqueness(ctx, "sam", "1,2,3,4", usr))
	assert.NoError(t, svc.CheckUniqueness(ctx, "lea", "4,3,2,1"))
}

func TestService_Authenticate(t *testing.T) {
	svc := setup(t)
	usr := createUser(t, svc, "sam", []int{1, 2, 3, 4})

	got, err := svc.Authenticate(ctx, []int{1, 2, 3, 4})
	require.NoError(t, err)
	assert.Equal(t, usr.ID, got.ID)

	// an icon sequence is an exact ordered match
	_, err = svc.Authenticate(ctx, []int{4, 3, 2, 1})
	assert.Equal(t, user.ErrNotFound, err)

	_, err = svc.Authenticate(ctx, []int{1, 2, 3})
	assert.Equal(t, user.ErrNotFound, err)

	// deactivated users cannot log in
	_, err = svc.Deactivate(ctx, usr.ID)
	require.NoError(t, err)
	_, err = svc.Authenticate(ctx, []int{1, 2, 3, 4})
	assert.Equal(t, user.ErrNotFound, err)
}

func TestService_ChangeAccessCode(t *testing.T) {
	svc := setup(t)
	usr := createUser(t, svc, "sam", []int{1, 2, 3, 4})
	createUser(t, svc, "lea", []int{5, 6, 7, 8})

	// current PIN must match
	_, err := svc.ChangeAccessCode(ctx, usr.ID, user.ChangePIN{
		OldIconCodes: []int{9, 9, 9, 9},
		NewIconCodes: []int{2, 2, 2, 2},
	})
	assert.Equal(t, user.ErrPINMismatch, err)

	// the new code must be free
	_, err = svc.ChangeAccessCode(ctx, usr.ID, user.ChangePIN{
		OldIconCodes: []int{1, 2, 3, 4},
		NewIconCodes: []int{5, 6, 7, 8},
	})
	assert.IsType(t, &core.ValidationError{}, err)

	usr, err = svc.ChangeAccessCode(ctx, usr.ID, user.ChangePIN{
		OldIconCodes: []int{1, 2, 3, 4},
		NewIconCodes: []int{2, 2, 2, 2},
	})
	require.NoError(t, err)
	assert.Equal(t, "2,2,2,2", usr.AccessCode)

	_, err = svc.Authenticate(ctx, []int{2, 2, 2, 2})
	assert.NoError(t, err)
}

func TestService_ToggleActive(t *testing.T) {
	svc := setup(t)
	usr := createUser(t, svc, "sam", []int{1, 2, 3, 4})

	usr, err := svc.ToggleActive(ctx, usr.ID)
	require.NoError(t, err)
	assert.False(t, usr.IsActive)

	usr, err = svc.ToggleActive(ctx, usr.ID)
	require.NoError(t, err)
	assert.True(t, usr.IsActive)
}

func TestService_Update(t *testing.T) {
	svc := setup(t)
	usr := createUser(t, svc, "sam", []int{1, 2, 3, 4})

	got, err := svc.Update(ctx, usr.ID, user.UpdateUser{Nick: "sammy"})
	require.NoError(t, err)
	assert.Equal(t, "sammy", got.Nick)
	// everything else stays untouched
	assert.Equal(t, "bear", got.Figure)
	assert.Equal(t, "1,2,3,4", got.AccessCode)
	assert.Equal(t, user.RoleUser, got.Role)

	got, err = svc.Update(ctx, usr.ID, user.UpdateUser{IconCodes: []int{9, 8, 7, 6}})
	require.NoError(t, err)
	assert.Equal(t, "9,8,7,6", got.AccessCode)
}

func TestService_Icons(t *testing.T) {
	db := inmemdb.NewDB()
	svc := user.NewService(db, inmemdb.NewUserRepository(db))

	db.SeedIcons(
		user.Icon{ID: 1, Name: "star", IconPath: "⭐", DisplayOrder: 2},
		user.Icon{ID: 2, Name: "heart", IconPath: "❤️", DisplayOrder: 1},
	)

	icons, err := svc.Icons(ctx)
	require.NoError(t, err)
	require.Len(t, icons, 2)
	// ordered by display order
	assert.Equal(t, "heart", icons[0].Name)
	assert.Equal(t, "star", icons[1].Name)
}
