package user

import (
	"context"

	"github.com/pkg/errors"

	"github.com/repoacademico/repositorio/core"
)

var (
	// errors
	ErrNotFound    = errors.New("user not found")
	ErrEmailExists = errors.New("a user with this email already exists")
)

type (
	Repository interface {
		GetUserByEmail(ctx context.Context, correo string) (User, error)
		CreateUser(ctx context.Context, usr User) (User, error)
		UpdatePassword(ctx context.Context, id int, hash []byte) error
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) checkUniqueness(ctx context.Context, correo string) error {
	_, err := svc.repo.GetUserByEmail(ctx, correo)
	switch {
	case err == nil:
		return core.NewValidationError(ErrEmailExists, core.FieldError{Field: "correo", Error: ErrEmailExists.Error()})
	case errors.Cause(err) == ErrNotFound:
		return nil
	default:
		return err
	}
}

func (svc *Service) Create(ctx context.Context, nu NewUser) (User, error) {
	nu.Clean()
	if err := nu.Validate(); err != nil {
		return User{}, err
	}
	if err := svc.checkUniqueness(ctx, nu.Correo); err != nil {
		return User{}, err
	}
	usr := User{
		Nombre:       nu.Nombre,
		Correo:       nu.Correo,
		Rol:          nu.Rol,
		Especialidad: nu.Especialidad,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	return svc.repo.CreateUser(ctx, usr)
}

func (svc *Service) GetByEmail(ctx context.Context, correo string) (User, error) {
	return svc.repo.GetUserByEmail(ctx, core.CleanString(correo, true /* lower */))
}

func (svc *Service) ResetPassword(ctx context.Context, rp ResetUserPassword) error {
	rp.Correo = core.CleanString(rp.Correo, true /* lower */)
	if err := rp.Validate(); err != nil {
		return err
	}
	usr, err := svc.repo.GetUserByEmail(ctx, rp.Correo)
	if err != nil {
		return err
	}
	if err := ValidatePassword(rp.Password, usr.Nombre, usr.Correo); err != nil {
		return err
	}
	if err := usr.SetPassword(rp.Password); err != nil {
		return errors.Wrap(err, "hashing password")
	}
	return svc.repo.UpdatePassword(ctx, usr.ID, usr.PasswordHash)
}
