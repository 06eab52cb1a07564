package testutil

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"github.com/repoacademico/repositorio/core/user"
)

// DSNEnv names the variable holding the data source name of a disposable MySQL database.
const DSNEnv = "TEST_DATABASE_DSN"

// PrepareDB connects to the test database and loads the legacy fixture.
// The test is skipped when no database is configured.
func PrepareDB(t *testing.T) *sqlx.DB {
	t.Helper()
	dsn := os.Getenv(DSNEnv)
	if dsn == "" {
		t.Skipf("%s is not set", DSNEnv)
	}
	db, err := sqlx.Connect("mysql", dsn)
	if err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	LoadSQL(t, db, Fixture("legacy.sql"))
	return db
}

// Fixture returns the path of a file under tests/testdata.
func Fixture(name string) string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "testdata", name)
}

// LoadSQL runs the statements of a script, one at a time.
func LoadSQL(t *testing.T, db *sqlx.DB, path string) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("LoadSQL() failed: %v", err)
	}
	for _, stmt := range splitStatements(string(data)) {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("LoadSQL() failed on %q: %v", stmt, err)
		}
	}
}

// splitStatements splits a script on the semicolons ending a line and drops comments.
func splitStatements(script string) []string {
	var (
		stmts []string
		cur   strings.Builder
	)
	for _, line := range strings.Split(script, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		cur.WriteString(line)
		cur.WriteString("\n")
		if strings.HasSuffix(trimmed, ";") {
			stmt := strings.TrimSuffix(strings.TrimSpace(cur.String()), ";")
			stmts = append(stmts, stmt)
			cur.Reset()
		}
	}
	if rest := strings.TrimSpace(cur.String()); rest != "" {
		stmts = append(stmts, rest)
	}
	return stmts
}

func CreateUser(t *testing.T, repo user.Repository, nombre, correo, pwd, rol string) user.User {
	t.Helper()
	usr := user.User{
		Nombre: nombre,
		Correo: correo,
		Rol:    rol,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}
