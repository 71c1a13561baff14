package sqlerr

// Code categorizes a database error by the kind of constraint it violated.
type Code int

const (
	// Other covers everything we don't specifically map.
	Other Code = iota

	// ForeignKeyViolation: a referenced row does not exist (SQLSTATE 23503).
	ForeignKeyViolation

	// UniqueViolation: a duplicate value hit a unique constraint (23505).
	UniqueViolation

	// NotNullViolation: a required column was left empty (23502).
	NotNullViolation

	// CheckViolation: a value failed a CHECK constraint (23514).
	CheckViolation
)

// Severity mirrors the Postgres severity field as an enum.
type Severity int

const (
	SeverityUnknown Severity = iota
	SeverityError
	SeverityFatal
	SeverityPanic
	SeverityWarning
	SeverityNotice
)

// Error is the normalized form of a database driver error.
//
// It keeps both the mapped category (Code/Severity) and the raw Postgres
// metadata so repositories can switch on the category while logs retain the
// full picture.
type Error struct {
	Code     Code
	Severity Severity

	// DatabaseCode is the original SQLSTATE (e.g. "23505").
	DatabaseCode string

	// Message is the database's own message, not client-safe.
	Message string

	SchemaName     string
	TableName      string
	ColumnName     string
	DataTypeName   string
	ConstraintName string

	// driverErr is the original error, kept for Unwrap.
	driverErr error
}

// Error satisfies the error interface with the database's message.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap exposes the underlying driver error so errors.As can still reach
// pgconn.PgError through the chain.
func (e *Error) Unwrap() error {
	return e.driverErr
}

// MapCode maps a SQLSTATE string onto our Code enum.
//
// Only the integrity-constraint class (23xxx) gets specific treatment;
// everything else is Other and ends up as a generic 500.
func MapCode(sqlstate string) Code {
	switch sqlstate {
	case "23503":
		return ForeignKeyViolation
	case "23505":
		return UniqueViolation
	case "23502":
		return NotNullViolation
	case "23514":
		return CheckViolation
	default:
		return Other
	}
}

// MapSeverity maps the Postgres severity string onto our Severity enum.
func MapSeverity(severity string) Severity {
	switch severity {
	case "ERROR":
		return SeverityError
	case "FATAL":
		return SeverityFatal
	case "PANIC":
		return SeverityPanic
	case "WARNING":
		return SeverityWarning
	case "NOTICE":
		return SeverityNotice
	default:
		return SeverityUnknown
	}
}
