package user

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/repoacademico/repositorio/core"
)

func Test_checkPassword(t *testing.T) {
	tests := []struct {
		name  string
		pwd   string
		attrs []string
		want  string
	}{
		{name: "too short", pwd: "Ab1!", want: pwdMinLenTag},
		{name: "whitespace", pwd: "Abc 123!xyz", want: pwdNoSpaceTag},
		{name: "all numeric", pwd: "12345678", want: pwdNotAllNumTag},
		{name: "legacy seed password", pwd: "123456", want: pwdMinLenTag},
		{name: "no special", pwd: "Abcdefg1", want: pwdComplexityTag},
		{name: "no upper", pwd: "abcdef1!", want: pwdComplexityTag},
		{name: "similar to name", pwd: "Ana.perez1", attrs: []string{"Ana Perez", "ana@colegio.com"}, want: pwdAttrSimTag},
		{name: "valid", pwd: "Tr3s-Leches!9", attrs: []string{"Ana Perez", "ana@colegio.com"}},
		{name: "empty attrs ignored", pwd: "Tr3s-Leches!9", attrs: []string{"", ""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := checkPassword(tt.pwd, tt.attrs...); got != tt.want {
				t.Errorf("checkPassword() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValidatePassword(t *testing.T) {
	err := ValidatePassword("abc")
	if assert.Error(t, err) {
		verr, ok := err.(*core.ValidationError)
		if assert.True(t, ok) && assert.Len(t, verr.Fields, 1) {
			assert.Equal(t, "password", verr.Fields[0].Field)
			assert.Equal(t, pwdMinLenText, verr.Fields[0].Error)
		}
	}
	assert.NoError(t, ValidatePassword("Tr3s-Leches!9", "Ana Perez"))
}

func TestNewUser_Validate(t *testing.T) {
	valid := NewUser{
		Nombre:          "Ana Perez",
		Correo:          "ana@colegio.com",
		Rol:             RoleTutor,
		Password:        "Tr3s-Leches!9",
		PasswordConfirm: "Tr3s-Leches!9",
	}

	tests := []struct {
		name      string
		mutate    func(nu *NewUser)
		wantField string
	}{
		{name: "valid", mutate: func(nu *NewUser) {}},
		{name: "missing name", mutate: func(nu *NewUser) { nu.Nombre = "" }, wantField: "nombre"},
		{name: "bad email", mutate: func(nu *NewUser) { nu.Correo = "ana" }, wantField: "correo"},
		{name: "legacy role", mutate: func(nu *NewUser) { nu.Rol = RoleDocente }, wantField: "rol"},
		{name: "confirm mismatch", mutate: func(nu *NewUser) { nu.PasswordConfirm = "other" }, wantField: "password_confirm"},
		{name: "weak password", mutate: func(nu *NewUser) { nu.Password, nu.PasswordConfirm = "123456", "123456" }, wantField: "password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nu := valid
			tt.mutate(&nu)
			err := nu.Validate()
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			verr, ok := err.(*core.ValidationError)
			if !ok {
				t.Fatalf("Validate() error = %v, want *core.ValidationError", err)
			}
			var fields []string
			for _, f := range verr.Fields {
				fields = append(fields, f.Field)
			}
			assert.Contains(t, fields, tt.wantField)
		})
	}
}

func TestRoles(t *testing.T) {
	assert.True(t, IsValidRole(RoleAdmin))
	assert.False(t, IsValidRole(RoleDocente))
	assert.True(t, IsLegacyRole(RoleEstudiante))

	r, ok := ReplacementRole(RoleDocente)
	assert.True(t, ok)
	assert.Equal(t, RoleTutor, r)
	r, ok = ReplacementRole(RoleSecretaria)
	assert.True(t, ok)
	assert.Equal(t, RoleAdmin, r)
	_, ok = ReplacementRole(RoleEstudiante)
	assert.False(t, ok)
}
