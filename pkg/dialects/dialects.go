// Package dialects provides ready-made ParameterStyleConfig presets for the
// supported database dialects. Each preset is built once and treated as
// immutable; pass it into every Process/Compile call for that dialect.
package dialects

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cast"

	"github.com/ekaya-inc/sqlbind/pkg/statement"
)

// parseStyles is the set the AST parser ingests without normalization. The
// parser only understands colon-named bind variables, so everything else goes
// through phase-1 normalization into :param_<n> form.
func parseStyles() map[statement.ParameterStyle]bool {
	return map[statement.ParameterStyle]bool{
		statement.StyleNamedColon: true,
	}
}

func styleSet(styles ...statement.ParameterStyle) map[statement.ParameterStyle]bool {
	set := make(map[statement.ParameterStyle]bool, len(styles))
	for _, s := range styles {
		set[s] = true
	}
	return set
}

// Postgres targets pgx and lib/pq: dollar-numbered execution placeholders and
// native array binding.
func Postgres() *statement.ParameterStyleConfig {
	return &statement.ParameterStyleConfig{
		DefaultStyle:             statement.StyleNumeric,
		SupportedParseStyles:     parseStyles(),
		SupportedExecutionStyles: styleSet(statement.StyleNumeric),
		DefaultExecutionStyle:    statement.StyleNumeric,
		HasNativeListExpansion:   true,
	}
}

// Psycopg targets the psycopg wire convention: percent placeholders both
// positional and named.
func Psycopg() *statement.ParameterStyleConfig {
	return &statement.ParameterStyleConfig{
		DefaultStyle:             statement.StylePyformat,
		SupportedParseStyles:     parseStyles(),
		SupportedExecutionStyles: styleSet(statement.StylePyformat, statement.StyleNamedPyformat),
		DefaultExecutionStyle:    statement.StylePyformat,
		HasNativeListExpansion:   true,
		PreserveFormat:           true,
	}
}

// MySQL targets go-sql-driver/mysql: question-mark placeholders only.
func MySQL() *statement.ParameterStyleConfig {
	return &statement.ParameterStyleConfig{
		DefaultStyle:             statement.StyleQmark,
		SupportedParseStyles:     parseStyles(),
		SupportedExecutionStyles: styleSet(statement.StyleQmark),
		DefaultExecutionStyle:    statement.StyleQmark,
		TypeCoercions: map[statement.ValueKind]statement.TypeCoercion{
			statement.KindUUID:    uuidToString,
			statement.KindDecimal: decimalToString,
		},
	}
}

// SQLite targets mattn/go-sqlite3: question marks and colon-named
// placeholders, with temporal and decimal values bound as text.
func SQLite() *statement.ParameterStyleConfig {
	return &statement.ParameterStyleConfig{
		DefaultStyle:             statement.StyleQmark,
		SupportedParseStyles:     parseStyles(),
		SupportedExecutionStyles: styleSet(statement.StyleQmark, statement.StyleNamedColon),
		DefaultExecutionStyle:    statement.StyleQmark,
		TypeCoercions: map[statement.ValueKind]statement.TypeCoercion{
			statement.KindUUID:     uuidToString,
			statement.KindDecimal:  decimalToString,
			statement.KindDateTime: timeToRFC3339,
		},
	}
}

// Oracle uses colon placeholders, both numbered (:1) and named (:name), and
// allows mixing the two in one statement. Booleans bind as 0/1.
func Oracle() *statement.ParameterStyleConfig {
	return &statement.ParameterStyleConfig{
		DefaultStyle:             statement.StyleNamedColon,
		SupportedParseStyles:     parseStyles(),
		SupportedExecutionStyles: styleSet(statement.StyleNamedColon, statement.StylePositionalColon),
		DefaultExecutionStyle:    statement.StyleNamedColon,
		AllowMixedStyles:         true,
		TypeCoercions: map[statement.ValueKind]statement.TypeCoercion{
			statement.KindBool: boolToInt,
			statement.KindUUID: uuidToString,
		},
	}
}

// SQLServer targets go-mssqldb: @name placeholders.
func SQLServer() *statement.ParameterStyleConfig {
	return &statement.ParameterStyleConfig{
		DefaultStyle:             statement.StyleNamedAt,
		SupportedParseStyles:     parseStyles(),
		SupportedExecutionStyles: styleSet(statement.StyleNamedAt),
		DefaultExecutionStyle:    statement.StyleNamedAt,
		TypeCoercions: map[statement.ValueKind]statement.TypeCoercion{
			statement.KindUUID: uuidToString,
		},
	}
}

// DuckDB accepts question marks, dollar-numbered, and dollar-named
// placeholders; numbered execution is canonical.
func DuckDB() *statement.ParameterStyleConfig {
	return &statement.ParameterStyleConfig{
		DefaultStyle:             statement.StyleNumeric,
		SupportedParseStyles:     parseStyles(),
		SupportedExecutionStyles: styleSet(statement.StyleQmark, statement.StyleNumeric, statement.StyleNamedDollar),
		DefaultExecutionStyle:    statement.StyleNumeric,
		HasNativeListExpansion:   true,
	}
}

// BigQuery uses @name placeholders.
func BigQuery() *statement.ParameterStyleConfig {
	return &statement.ParameterStyleConfig{
		DefaultStyle:             statement.StyleNamedAt,
		SupportedParseStyles:     parseStyles(),
		SupportedExecutionStyles: styleSet(statement.StyleNamedAt),
		DefaultExecutionStyle:    statement.StyleNamedAt,
		TypeCoercions: map[statement.ValueKind]statement.TypeCoercion{
			statement.KindUUID:    uuidToString,
			statement.KindDecimal: decimalToString,
		},
	}
}

// ByName resolves a preset from its configuration name.
func ByName(name string) (*statement.ParameterStyleConfig, error) {
	switch name {
	case "postgres", "postgresql":
		return Postgres(), nil
	case "psycopg":
		return Psycopg(), nil
	case "mysql", "mariadb":
		return MySQL(), nil
	case "sqlite", "sqlite3":
		return SQLite(), nil
	case "oracle":
		return Oracle(), nil
	case "sqlserver", "mssql":
		return SQLServer(), nil
	case "duckdb":
		return DuckDB(), nil
	case "bigquery":
		return BigQuery(), nil
	}
	return nil, fmt.Errorf("unknown dialect %q", name)
}

func uuidToString(value any) (any, error) {
	if u, ok := value.(uuid.UUID); ok {
		return u.String(), nil
	}
	return cast.ToStringE(value)
}

func decimalToString(value any) (any, error) {
	if d, ok := value.(decimal.Decimal); ok {
		return d.String(), nil
	}
	return cast.ToStringE(value)
}

func timeToRFC3339(value any) (any, error) {
	if t, ok := value.(time.Time); ok {
		return t.Format(time.RFC3339Nano), nil
	}
	return nil, fmt.Errorf("expected time.Time, got %T", value)
}

func boolToInt(value any) (any, error) {
	b, err := cast.ToBoolE(value)
	if err != nil {
		return nil, err
	}
	if b {
		return 1, nil
	}
	return 0, nil
}
