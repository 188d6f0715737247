package user

import (
	"crypto/subtle"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/taarifa/core"
)

// Roles
const (
	RoleAdmin       = "admin"
	RoleResponsable = "responsable" // class representative
	RoleStudent     = "student"
)

var (
	AllRoles = []string{RoleAdmin, RoleResponsable, RoleStudent}

	rolePriorities = map[string]int{
		RoleAdmin:       30,
		RoleResponsable: 20,
		RoleStudent:     10,
	}

	Roles = []Role{
		{Name: "Student", Value: RoleStudent},
		{Name: "Class representative", Value: RoleResponsable},
		{Name: "Admin", Value: RoleAdmin},
	}

	// errors
	ErrEmailExists           = errors.New("a user with this email already exists")
	ErrInvalidCredentials    = errors.New("invalid email or password")
	errPasswordMismatch      = errors.New("password mismatch")
	errClassGroupForbidden   = errors.New("only students and class representatives belong to a class")
	errUnknownClassGroupText = "unknown class group"
)

func RolePriority(role string) int {
	return rolePriorities[role]
}

func MaxRolePriority(roles []string) int {
	var max int
	for _, role := range roles {
		if RolePriority(role) > max {
			max = RolePriority(role)
		}
	}
	return max
}

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type User struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Email        string  `json:"email"`
	Role         string  `json:"role"`
	ClassGroup   *string `json:"class_group"`
	PasswordHash []byte  `json:"-"`
}

func (u User) ItemID() string { return u.ID }

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

// HasHashedPassword reports whether the stored password is a bcrypt hash.
// Accounts created before hashing was introduced hold their password in plain text.
func (u *User) HasHashedPassword() bool {
	_, err := bcrypt.Cost(u.PasswordHash)
	return err == nil
}

func (u *User) CheckPassword(pwd string) error {
	if !u.HasHashedPassword() {
		if len(u.PasswordHash) > 0 && subtle.ConstantTimeCompare(u.PasswordHash, []byte(pwd)) == 1 {
			return nil
		}
		return errPasswordMismatch
	}
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) IsAdmin() bool       { return u.Role == RoleAdmin }
func (u *User) IsResponsable() bool { return u.Role == RoleResponsable }
func (u *User) IsStudent() bool     { return u.Role == RoleStudent }

// IsUnrestricted reports whether the user sees every item regardless of its target class.
func (u *User) IsUnrestricted() bool {
	return u.IsAdmin() || u.IsResponsable()
}

func (u *User) CanManageContent() bool {
	return u.IsUnrestricted()
}

// InClass reports whether the user belongs to the class group `name`.
func (u *User) InClass(name string) bool {
	return u.ClassGroup != nil && *u.ClassGroup == name
}

type (
	// Directory answers the lookups needed to validate user input.
	Directory interface {
		CheckEmailUniqueness(email string, excludedIDs ...string) error
		ClassGroupExists(name string) bool
	}

	// NewUser contains information needed to create a new User.
	NewUser struct {
		Name            string  `json:"name" validate:"required,notblank"`
		Email           string  `json:"email" validate:"required,email"`
		Password        string  `json:"password" validate:"required"`
		PasswordConfirm string  `json:"password_confirm" validate:"required,eqfield=Password"`
		Role            string  `json:"role" validate:"required,role"`
		ClassGroup      *string `json:"class_group" validate:"omitempty,notblank"`
	}

	// UpdateUser defines what information may be provided to modify an existing User.
	// A nil ClassGroup keeps the current class; an empty one removes it.
	UpdateUser struct {
		Name       string  `json:"name"`
		Email      string  `json:"email" validate:"omitempty,email"`
		Role       string  `json:"role" validate:"omitempty,role"`
		ClassGroup *string `json:"class_group"`
	}

	// UpdateProfile is what users may change about themselves.
	UpdateProfile struct {
		Name            string `json:"name"`
		Email           string `json:"email" validate:"omitempty,email"`
		Password        string `json:"password" validate:"omitempty"`
		PasswordConfirm string `json:"password_confirm" validate:"required_with=Password,eqfield=Password"`
	}

	// SetUserPassword is used by admins to set the password of another User.
	SetUserPassword struct {
		Password        string `json:"password" validate:"required"`
		PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
	}

	ResetUserPassword struct {
		Token           string `json:"token,omitempty" validate:"required"`
		UID             string `json:"uid,omitempty" validate:"required"`
		Password        string `json:"password,omitempty" validate:"required"`
		PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
	}

	LoginCredentials struct {
		Email    string `json:"email" validate:"required"`
		Password string `json:"password" validate:"required"`
	}
)

func (nu *NewUser) Validate(validate *validator.Validate, dir Directory) error {
	nu.Name = core.CleanString(nu.Name)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.ClassGroup = core.CleanOptional(nu.ClassGroup)

	if err := validate.Struct(nu); err != nil {
		return err
	}
	if err := validateClassGroup(nu.Role, nu.ClassGroup, dir); err != nil {
		return err
	}
	return checkEmailUniqueness(dir, nu.Email)
}

func (uu *UpdateUser) Validate(validate *validator.Validate, origUsr User, dir Directory) error {
	if name := core.CleanString(uu.Name); name != "" {
		uu.Name = name
	} else {
		uu.Name = origUsr.Name
	}
	if email := core.CleanString(uu.Email, true /* lower */); email != "" {
		uu.Email = email
	} else {
		uu.Email = origUsr.Email
	}
	if uu.Role == "" {
		uu.Role = origUsr.Role
	}
	if uu.ClassGroup == nil {
		uu.ClassGroup = origUsr.ClassGroup
	} else {
		uu.ClassGroup = core.CleanOptional(uu.ClassGroup)
	}

	if err := validate.Struct(uu); err != nil {
		return err
	}
	if err := validateClassGroup(uu.Role, uu.ClassGroup, dir); err != nil {
		return err
	}
	return checkEmailUniqueness(dir, uu.Email, origUsr.ID)
}

func (up *UpdateProfile) Validate(validate *validator.Validate, origUsr User, dir Directory) error {
	if name := core.CleanString(up.Name); name != "" {
		up.Name = name
	} else {
		up.Name = origUsr.Name
	}
	if email := core.CleanString(up.Email, true /* lower */); email != "" {
		up.Email = email
	} else {
		up.Email = origUsr.Email
	}

	if err := validate.Struct(up); err != nil {
		return err
	}
	return checkEmailUniqueness(dir, up.Email, origUsr.ID)
}

// Validate checks the new password against the policy, using the attributes of `usr`.
func (sp SetUserPassword) Validate(validate *validator.Validate, usr User) error {
	if err := validate.Struct(sp); err != nil {
		return err
	}
	return ValidatePassword(sp.Password, usr)
}

func (rp ResetUserPassword) Validate(validate *validator.Validate) error {
	return validate.Struct(rp)
}

func (lc *LoginCredentials) Validate(validate *validator.Validate) error {
	lc.Email = core.CleanString(lc.Email, true /* lower */)
	return validate.Struct(lc)
}

func checkEmailUniqueness(dir Directory, email string, excludedIDs ...string) error {
	if err := dir.CheckEmailUniqueness(email, excludedIDs...); err != nil {
		if errors.Cause(err) == ErrEmailExists {
			return core.NewValidationError(err, core.FieldError{Field: "email", Error: err.Error()})
		}
		return err
	}
	return nil
}

func validateClassGroup(role string, classGroup *string, dir Directory) error {
	if classGroup == nil {
		return nil
	}
	if role == RoleAdmin {
		return core.NewValidationError(
			errClassGroupForbidden,
			core.FieldError{Field: "class_group", Error: errClassGroupForbidden.Error()},
		)
	}
	if !dir.ClassGroupExists(*classGroup) {
		return core.NewValidationError(
			errors.New(errUnknownClassGroupText),
			core.FieldError{Field: "class_group", Error: errUnknownClassGroupText},
		)
	}
	return nil
}
