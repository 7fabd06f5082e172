package user

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/credikids/credikids/core"
)

// Roles
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

var AllRoles = []string{RoleAdmin, RoleUser}

type User struct {
	ID     int    `json:"id"`
	Nick   string `json:"nick"`
	Figure string `json:"figure"` // avatar image

	// AccessCode is the 4-icon PIN sequence, stored as comma-joined icon ids.
	// It must remain queryable by exact match: login resolves the user by code.
	AccessCode string `json:"-"`

	Role      string    `json:"role"`
	Score     int       `json:"score"` // running credit balance
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// SetAccessCode sets the access code from a sequence of exactly 4 icon ids.
func (u *User) SetAccessCode(iconIDs []int) error {
	code, err := EncodeAccessCode(iconIDs)
	if err != nil {
		return err
	}
	u.AccessCode = code
	return nil
}

func (u *User) VerifyAccessCode(iconIDs []int) bool {
	code, err := EncodeAccessCode(iconIDs)
	if err != nil {
		return false
	}
	return u.AccessCode == code
}

// AccessCodeIcons returns the stored icon ids of the access code.
func (u *User) AccessCodeIcons() []int {
	parts := strings.Split(u.AccessCode, ",")
	icons := make([]int, 0, len(parts))
	for _, p := range parts {
		if id, err := strconv.Atoi(p); err == nil {
			icons = append(icons, id)
		}
	}
	return icons
}

// EncodeAccessCode joins a 4-icon sequence into its stored form.
func EncodeAccessCode(iconIDs []int) (string, error) {
	if len(iconIDs) != 4 {
		return "", ErrInvalidAccessCode
	}
	parts := make([]string, 0, 4)
	for _, id := range iconIDs {
		if id <= 0 {
			return "", ErrInvalidAccessCode
		}
		parts = append(parts, strconv.Itoa(id))
	}
	return strings.Join(parts, ","), nil
}

// Icon is one of the selectable access-code icons shown on the login screen.
type Icon struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	IconPath     string `json:"icon_path"` // URL or emoji
	DisplayOrder int    `json:"display_order"`
}

// NewUser contains information needed to create a new User.
type NewUser struct {
	Nick      string `json:"nick" validate:"required"`
	Figure    string `json:"figure" validate:"required"`
	IconCodes []int  `json:"icon_codes" validate:"required,iconcode"`
	Role      string `json:"role" validate:"omitempty,oneof=admin user"`
}

func (nu *NewUser) Validate(ctx context.Context, svc ServiceInterface) error {
	nu.Nick = core.CleanString(nu.Nick)
	nu.Figure = core.CleanString(nu.Figure)

	if err := core.Validate.Struct(nu); err != nil {
		return err
	}
	code, err := EncodeAccessCode(nu.IconCodes)
	if err != nil {
		return core.NewValidationError(err, core.FieldError{Field: "icon_codes", Error: err.Error()})
	}
	return svc.CheckUniqueness(ctx, nu.Nick, code)
}

// UpdateUser defines what information may be provided to modify an existing User.
type UpdateUser struct {
	Nick      string `json:"nick"`
	Figure    string `json:"figure"`
	IconCodes []int  `json:"icon_codes" validate:"omitempty,iconcode"`
	Role      string `json:"role" validate:"omitempty,oneof=admin user"`
	IsActive  *bool  `json:"is_active"`
}

func (uu *UpdateUser) Validate(ctx context.Context, svc ServiceInterface, origUsr User) error {
	nick := core.CleanString(uu.Nick)
	if nick != "" {
		uu.Nick = nick
	} else {
		uu.Nick = origUsr.Nick
	}

	figure := core.CleanString(uu.Figure)
	if figure != "" {
		uu.Figure = figure
	} else {
		uu.Figure = origUsr.Figure
	}

	if err := core.Validate.Struct(uu); err != nil {
		return err
	}

	code := origUsr.AccessCode
	if uu.IconCodes != nil {
		var err error
		if code, err = EncodeAccessCode(uu.IconCodes); err != nil {
			return core.NewValidationError(err, core.FieldError{Field: "icon_codes", Error: err.Error()})
		}
	}
	return svc.CheckUniqueness(ctx, uu.Nick, code, origUsr)
}

// ChangePIN carries an access-code change request.
type ChangePIN struct {
	OldIconCodes []int `json:"old_icon_codes" validate:"required,iconcode"`
	NewIconCodes []int `json:"new_icon_codes" validate:"required,iconcode"`
}

func (cp ChangePIN) Validate() error { return core.Validate.Struct(cp) }
