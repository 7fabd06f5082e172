package user

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/credikids/credikids/core"
)

var (
	// errors
	ErrNotFound          = errors.New("user not found")
	ErrNickExists        = errors.New("a user with this nick already exists")
	ErrAccessCodeExists  = errors.New("this icon sequence is already in use")
	ErrInvalidAccessCode = errors.New("an access code must contain exactly 4 icons")
	ErrPINMismatch       = errors.New("current PIN is incorrect")
)

type (
	Repository interface {
		CheckUniqueness(ctx context.Context, nick, accessCode string, excludedUsers []User, exec ...core.DBExecutor) error
		CreateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		QueryAllUsers(ctx context.Context, exec ...core.DBExecutor) ([]User, error)
		QueryUsersByID(ctx context.Context, ids []int, exec ...core.DBExecutor) ([]User, error)
		GetUserByID(ctx context.Context, id int, exec ...core.DBExecutor) (User, error)
		GetUserByAccessCode(ctx context.Context, code string, exec ...core.DBExecutor) (User, error)
		UpdateUser(ctx context.Context, usr User, isActive *bool, exec ...core.DBExecutor) (User, error)
		// AdjustUserScore applies a signed credit delta to the user's running
		// balance and returns the new balance. Implementations must serialize
		// concurrent deltas on the user row.
		AdjustUserScore(ctx context.Context, id, delta int, exec ...core.DBExecutor) (int, error)
		// GetUserScoreForUpdate reads the balance while holding the user row
		// lock for the remainder of the transaction.
		GetUserScoreForUpdate(ctx context.Context, id int, exec ...core.DBExecutor) (int, error)
		QueryIcons(ctx context.Context, exec ...core.DBExecutor) ([]Icon, error)
	}

	ServiceInterface interface {
		CheckUniqueness(ctx context.Context, nick, accessCode string, excludedUsers ...User) error
		Create(ctx context.Context, nu NewUser) (User, error)
		QueryAll(ctx context.Context) ([]User, error)
		GetByID(ctx context.Context, id int) (User, error)
		Update(ctx context.Context, id int, uu UpdateUser) (User, error)
		ToggleActive(ctx context.Context, id int) (User, error)
		Deactivate(ctx context.Context, id int) (User, error)
		Authenticate(ctx context.Context, iconCodes []int) (User, error)
		ChangeAccessCode(ctx context.Context, id int, data ChangePIN) (User, error)
		Icons(ctx context.Context) ([]Icon, error)
	}

	Service struct {
		db   core.DB
		repo Repository
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(db core.DB, repo Repository) *Service {
	return &Service{db: db, repo: repo}
}

func (svc *Service) CheckUniqueness(ctx context.Context, nick, accessCode string, exclUsers ...User) error {
	if err := svc.repo.CheckUniqueness(ctx, nick, accessCode, exclUsers); err != nil {
		var field string
		switch errors.Cause(err) {
		case ErrNickExists:
			field = "nick"
		case ErrAccessCodeExists:
			field = "icon_codes"
		default:
			return err
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return nil
}

func (svc *Service) Create(ctx context.Context, nu NewUser) (User, error) {
	now := time.Now().UTC()
	usr := User{
		Nick:      nu.Nick,
		Figure:    nu.Figure,
		Role:      nu.Role,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if usr.Role == "" {
		usr.Role = RoleUser
	}
	if err := usr.SetAccessCode(nu.IconCodes); err != nil {
		return User{}, err
	}
	return svc.repo.CreateUser(ctx, usr)
}

func (svc *Service) QueryAll(ctx context.Context) ([]User, error) {
	return svc.repo.QueryAllUsers(ctx)
}

func (svc *Service) GetByID(ctx context.Context, id int) (User, error) {
	return svc.repo.GetUserByID(ctx, id)
}

func (svc *Service) Update(ctx context.Context, id int, uu UpdateUser) (User, error) {
	usr := User{
		ID:        id,
		Nick:      uu.Nick,
		Figure:    uu.Figure,
		Role:      uu.Role,
		UpdatedAt: time.Now().UTC(),
	}
	if uu.IconCodes != nil {
		if err := usr.SetAccessCode(uu.IconCodes); err != nil {
			return User{}, err
		}
	}
	return svc.repo.UpdateUser(ctx, usr, uu.IsActive)
}

func (svc *Service) ToggleActive(ctx context.Context, id int) (User, error) {
	usr, err := svc.repo.GetUserByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	isActive := !usr.IsActive
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr, &isActive)
}

func (svc *Service) Deactivate(ctx context.Context, id int) (User, error) {
	usr, err := svc.repo.GetUserByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	isActive := false
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr, &isActive)
}

// Authenticate resolves an active user by their 4-icon access code.
func (svc *Service) Authenticate(ctx context.Context, iconCodes []int) (User, error) {
	code, err := EncodeAccessCode(iconCodes)
	if err != nil {
		return User{}, ErrNotFound
	}
	usr, err := svc.repo.GetUserByAccessCode(ctx, code)
	if err != nil {
		return User{}, err
	}
	if !usr.IsActive {
		return User{}, ErrNotFound
	}
	return usr, nil
}

func (svc *Service) ChangeAccessCode(ctx context.Context, id int, data ChangePIN) (User, error) {
	usr, err := svc.repo.GetUserByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	if !usr.VerifyAccessCode(data.OldIconCodes) {
		return User{}, ErrPINMismatch
	}

	newCode, err := EncodeAccessCode(data.NewIconCodes)
	if err != nil {
		return User{}, core.NewValidationError(err, core.FieldError{Field: "new_icon_codes", Error: err.Error()})
	}
	if err := svc.CheckUniqueness(ctx, "", newCode, usr); err != nil {
		return User{}, err
	}

	usr.AccessCode = newCode
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr, nil)
}

func (svc *Service) Icons(ctx context.Context) ([]Icon, error) {
	return svc.repo.QueryIcons(ctx)
}
