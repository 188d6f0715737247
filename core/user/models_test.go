package user

import (
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/taarifa/core"
)

type directoryMock struct {
	emails  map[string]string // email -> id
	classes map[string]bool
}

func (d directoryMock) CheckEmailUniqueness(email string, excludedIDs ...string) error {
	id, ok := d.emails[email]
	if !ok {
		return nil
	}
	for _, exclID := range excludedIDs {
		if exclID == id {
			return nil
		}
	}
	return ErrEmailExists
}

func (d directoryMock) ClassGroupExists(name string) bool { return d.classes[name] }

func newValidate(t *testing.T) *validator.Validate {
	t.Helper()
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	InitValidators(validate, translator)
	return validate
}

func strPtr(s string) *string { return &s }

func TestUser_CheckPassword(t *testing.T) {
	hashed := User{}
	require.NoError(t, hashed.SetPassword("Str0ng!Pass"))
	assert.True(t, hashed.HasHashedPassword())
	assert.NoError(t, hashed.CheckPassword("Str0ng!Pass"))
	assert.Error(t, hashed.CheckPassword("wrong"))

	legacy := User{PasswordHash: []byte("plain-text")}
	assert.False(t, legacy.HasHashedPassword())
	assert.NoError(t, legacy.CheckPassword("plain-text"))
	assert.Error(t, legacy.CheckPassword("plain-tex"))

	empty := User{}
	assert.Error(t, empty.CheckPassword(""))
}

func TestUser_IsUnrestricted(t *testing.T) {
	tests := []struct {
		role string
		want bool
	}{
		{role: RoleAdmin, want: true},
		{role: RoleResponsable, want: true},
		{role: RoleStudent, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			usr := User{Role: tt.role}
			assert.Equal(t, tt.want, usr.IsUnrestricted())
		})
	}
}

func TestMaxRolePriority(t *testing.T) {
	assert.Equal(t, RolePriority(RoleAdmin), MaxRolePriority(AllRoles))
	assert.Equal(t, 0, MaxRolePriority([]string{"janitor"}))
	assert.Greater(t, RolePriority(RoleResponsable), RolePriority(RoleStudent))
}

func TestNewUser_Validate(t *testing.T) {
	validate := newValidate(t)
	dir := directoryMock{
		emails:  map[string]string{"taken@school.test": "u1"},
		classes: map[string]bool{"L1": true},
	}

	valid := func() NewUser {
		return NewUser{
			Name:            " Amani Juma ",
			Email:           " Amani@School.TEST ",
			Password:        "Kil1manjaro!",
			PasswordConfirm: "Kil1manjaro!",
			Role:            RoleStudent,
			ClassGroup:      strPtr("L1"),
		}
	}

	tests := []struct {
		name      string
		mutate    func(nu *NewUser)
		wantField string
	}{
		{name: "valid", mutate: func(nu *NewUser) {}},
		{name: "blank name", mutate: func(nu *NewUser) { nu.Name = "   " }, wantField: "name"},
		{name: "bad email", mutate: func(nu *NewUser) { nu.Email = "nope" }, wantField: "email"},
		{name: "bad role", mutate: func(nu *NewUser) { nu.Role = "teacher" }, wantField: "role"},
		{name: "confirm mismatch", mutate: func(nu *NewUser) { nu.PasswordConfirm = "x" }, wantField: "password_confirm"},
		{name: "weak password", mutate: func(nu *NewUser) { nu.Password, nu.PasswordConfirm = "12345678", "12345678" }, wantField: "password"},
		{name: "unknown class", mutate: func(nu *NewUser) { nu.ClassGroup = strPtr("L9") }, wantField: "class_group"},
		{name: "admin with class", mutate: func(nu *NewUser) { nu.Role = RoleAdmin }, wantField: "class_group"},
		{name: "email taken", mutate: func(nu *NewUser) { nu.Email = "TAKEN@school.test" }, wantField: "email"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nu := valid()
			tt.mutate(&nu)
			err := nu.Validate(validate, dir)
			if tt.wantField == "" {
				require.NoError(t, err)
				assert.Equal(t, "Amani Juma", nu.Name)
				assert.Equal(t, "amani@school.test", nu.Email)
				return
			}
			require.Error(t, err)
			assert.Contains(t, errorFields(err), tt.wantField)
		})
	}
}

func TestUpdateUser_Validate_KeepsOriginalValues(t *testing.T) {
	validate := newValidate(t)
	dir := directoryMock{emails: map[string]string{"a@school.test": "u1"}, classes: map[string]bool{"L1": true}}
	orig := User{ID: "u1", Name: "A", Email: "a@school.test", Role: RoleStudent, ClassGroup: strPtr("L1")}

	uu := UpdateUser{}
	require.NoError(t, uu.Validate(validate, orig, dir))
	assert.Equal(t, "A", uu.Name)
	assert.Equal(t, "a@school.test", uu.Email)
	assert.Equal(t, RoleStudent, uu.Role)
	require.NotNil(t, uu.ClassGroup)
	assert.Equal(t, "L1", *uu.ClassGroup)

	uu = UpdateUser{ClassGroup: strPtr("")}
	require.NoError(t, uu.Validate(validate, orig, dir))
	assert.Nil(t, uu.ClassGroup)
}

func TestValidatePassword(t *testing.T) {
	usr := User{Name: "Neema Mushi", Email: "neema@school.test"}
	tests := []struct {
		pwd     string
		wantTag string
	}{
		{pwd: "Sh0rt!", wantTag: pwdMinLenTag},
		{pwd: "Has Space1!", wantTag: pwdNoSpaceTag},
		{pwd: "1234567890", wantTag: pwdNotAllNumTag},
		{pwd: "alllowercase1!", wantTag: pwdComplexityTag},
		{pwd: "NeemaMushi1!", wantTag: pwdAttrSimTag},
		{pwd: "Kil1manjaro!"},
	}
	for _, tt := range tests {
		t.Run(tt.pwd, func(t *testing.T) {
			assert.Equal(t, tt.wantTag, passwordPolicyViolation(tt.pwd, usr.Name, usr.Email))
			err := ValidatePassword(tt.pwd, usr)
			if tt.wantTag == "" {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func errorFields(err error) []string {
	var fields []string
	switch e := errors.Cause(err).(type) {
	case validator.ValidationErrors:
		for _, fe := range e {
			fields = append(fields, fe.Field())
		}
	case *core.ValidationError:
		for _, fe := range e.Fields {
			fields = append(fields, fe.Field)
		}
	}
	return fields
}
