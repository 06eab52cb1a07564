package user

import (
	"golang.org/x/crypto/bcrypt"

	"github.com/repoacademico/repositorio/core"
)

// Roles
const (
	RoleAdmin = "admin"
	RoleTutor = "tutor"

	// legacy values, rewritten by the tutores migration
	RoleSecretaria = "secretaria"
	RoleDocente    = "docente"
	RoleEstudiante = "estudiante"
)

var (
	AllRoles    = []string{RoleAdmin, RoleTutor}
	LegacyRoles = []string{RoleSecretaria, RoleDocente, RoleEstudiante}

	// legacyReplacements maps a legacy role to the role it is folded into.
	// estudiante has no replacement: those accounts are left for manual review.
	legacyReplacements = map[string]string{
		RoleDocente:    RoleTutor,
		RoleSecretaria: RoleAdmin,
	}
)

func IsValidRole(role string) bool {
	for _, r := range AllRoles {
		if r == role {
			return true
		}
	}
	return false
}

func IsLegacyRole(role string) bool {
	for _, r := range LegacyRoles {
		if r == role {
			return true
		}
	}
	return false
}

// ReplacementRole returns the current role a legacy role is folded into.
func ReplacementRole(legacy string) (string, bool) {
	r, ok := legacyReplacements[legacy]
	return r, ok
}

type User struct {
	ID           int    `db:"id" json:"id"`
	Nombre       string `db:"nombre" json:"nombre"`
	Correo       string `db:"correo" json:"correo"`
	Rol          string `db:"rol" json:"rol"`
	Especialidad string `db:"especialidad" json:"especialidad"`
	PasswordHash []byte `db:"password" json:"-"`
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) IsAdmin() bool { return u.Rol == RoleAdmin }

func (u *User) IsTutor() bool { return u.Rol == RoleTutor }

// NewUser contains information needed to create a new User.
type NewUser struct {
	Nombre          string `json:"nombre" validate:"required"`
	Correo          string `json:"correo" validate:"required,email"`
	Rol             string `json:"rol" validate:"required,oneof=admin tutor"`
	Especialidad    string `json:"especialidad" validate:"omitempty,max=100"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (nu *NewUser) Clean() {
	nu.Nombre = core.CleanString(nu.Nombre)
	nu.Correo = core.CleanString(nu.Correo, true /* lower */)
	nu.Rol = core.CleanString(nu.Rol, true /* lower */)
	nu.Especialidad = core.CleanString(nu.Especialidad)
}

func (nu NewUser) Validate() error { return core.ValidateStruct(nu) }

// ResetUserPassword holds a password change requested from the admin CLI.
type ResetUserPassword struct {
	Correo          string `json:"correo" validate:"required,email"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (rp ResetUserPassword) Validate() error { return core.ValidateStruct(rp) }
