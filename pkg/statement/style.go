// Package statement is the statement-processing core of sqlbind: it locates
// parameter placeholders in raw SQL, converts placeholders and values between
// styles, and compiles (SQL, parameters, config) triples into immutable
// execution-ready artifacts.
package statement

// ParameterStyle identifies a placeholder syntax. The set is closed; styles
// are used as map keys and as dispatch tags.
type ParameterStyle string

const (
	// StyleQmark is the positional question mark: ?
	StyleQmark ParameterStyle = "qmark"
	// StyleNumeric is the dollar-numbered positional form: $1, $2
	StyleNumeric ParameterStyle = "numeric"
	// StyleNamedColon is the colon-named form: :name
	StyleNamedColon ParameterStyle = "named_colon"
	// StylePositionalColon is the Oracle colon-numbered form: :1, :2
	StylePositionalColon ParameterStyle = "positional_colon"
	// StyleNamedAt is the at-named form: @name
	StyleNamedAt ParameterStyle = "named_at"
	// StyleNamedDollar is the dollar-named form: $name
	StyleNamedDollar ParameterStyle = "named_dollar"
	// StyleNamedPyformat is the percent-named form: %(name)s
	StyleNamedPyformat ParameterStyle = "named_pyformat"
	// StylePyformat is the percent-positional form: %s
	StylePyformat ParameterStyle = "pyformat"
	// StyleStatic marks values embedded into the SQL text as literals.
	StyleStatic ParameterStyle = "static"
	// StyleNone marks statements that carry no parameters at all.
	StyleNone ParameterStyle = "none"
)

// IsNamed reports whether placeholders of this style carry a name.
func (s ParameterStyle) IsNamed() bool {
	switch s {
	case StyleNamedColon, StyleNamedAt, StyleNamedDollar, StyleNamedPyformat:
		return true
	}
	return false
}

// IsPositional reports whether placeholders of this style bind by position.
func (s ParameterStyle) IsPositional() bool {
	switch s {
	case StyleQmark, StyleNumeric, StylePositionalColon, StylePyformat:
		return true
	}
	return false
}

// OperationKind is the coarse classification of a statement.
type OperationKind string

const (
	OpSelect   OperationKind = "SELECT"
	OpInsert   OperationKind = "INSERT"
	OpUpdate   OperationKind = "UPDATE"
	OpDelete   OperationKind = "DELETE"
	OpDDL      OperationKind = "DDL"
	OpCopyFrom OperationKind = "COPY_FROM"
	OpCopyTo   OperationKind = "COPY_TO"
	OpExecute  OperationKind = "EXECUTE"
	OpScript   OperationKind = "SCRIPT"
	OpUnknown  OperationKind = "UNKNOWN"
)

// IsModifying reports whether the operation writes data.
func (k OperationKind) IsModifying() bool {
	switch k {
	case OpInsert, OpUpdate, OpDelete, OpCopyFrom, OpDDL, OpScript:
		return true
	}
	return false
}
