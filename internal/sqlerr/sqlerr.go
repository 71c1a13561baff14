// Package sqlerr translates database driver errors into application errors.
//
// Postgres reports failures as SQLSTATE codes plus metadata (table, column,
// constraint). This package maps those into typed categories and, further
// up, into errs.HTTPError values with messages a client can actually show
// (e.g. a foreign key violation on scan_violations.scan_id becomes a 400
// with "The referenced Scan does not exist").
package sqlerr
