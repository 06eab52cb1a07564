package database

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/repoacademico/repositorio/core"
	"github.com/repoacademico/repositorio/core/user"
)

const userColumns = "id, nombre, correo, password, rol, COALESCE(especialidad, '') AS especialidad"

// UserRepository stores users in the usuarios table.
type UserRepository struct {
	db core.DBExecutor
}

var _ user.Repository = (*UserRepository)(nil)

func NewUserRepository(db core.DBExecutor) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetUserByEmail(ctx context.Context, correo string) (user.User, error) {
	var usr user.User
	err := r.db.GetContext(ctx, &usr, "SELECT "+userColumns+" FROM usuarios WHERE correo = ?", correo)
	if err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "fetching user")
	}
	return usr, nil
}

func (r *UserRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	var especialidad sql.NullString
	if usr.Especialidad != "" {
		especialidad = sql.NullString{String: usr.Especialidad, Valid: true}
	}
	res, err := r.db.ExecContext(
		ctx,
		"INSERT INTO usuarios(nombre, correo, password, rol, especialidad) VALUES (?, ?, ?, ?, ?)",
		usr.Nombre, usr.Correo, usr.PasswordHash, usr.Rol, especialidad,
	)
	if err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return user.User{}, errors.Wrap(err, "reading user id")
	}
	usr.ID = int(id)
	return usr, nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id int, hash []byte) error {
	res, err := r.db.ExecContext(ctx, "UPDATE usuarios SET password = ? WHERE id = ?", hash, id)
	if err != nil {
		return errors.Wrap(err, "updating password")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.ErrNotFound
	}
	return nil
}
