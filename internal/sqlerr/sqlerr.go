// Package sqlerr translates PostgreSQL driver errors.
//
// It turns SQLSTATE codes and pgx sentinel errors into errs.HTTPError
// values, so a constraint violation in the postgres store surfaces as a
// 400 with a readable message instead of a bare 500.
package sqlerr
