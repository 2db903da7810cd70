package statement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/sqlbind/pkg/apperrors"
)

func profileOf(sql string) *ParameterProfile {
	return NewParameterProfile(scanPlaceholders(sql))
}

func TestValidateAlignmentNamed(t *testing.T) {
	profile := profileOf("UPDATE users SET active = :active WHERE id = :id")

	t.Run("exact match", func(t *testing.T) {
		err := ValidateAlignment(profile, map[string]any{"id": 1, "active": true}, false)
		assert.NoError(t, err)
	})

	t.Run("missing name is listed", func(t *testing.T) {
		err := ValidateAlignment(profile, map[string]any{"id": 1}, false)
		require.Error(t, err)
		var alignErr *apperrors.AlignmentError
		require.ErrorAs(t, err, &alignErr)
		assert.Equal(t, []string{"active"}, alignErr.Missing)
		assert.Equal(t, -1, alignErr.BatchIndex)
		assert.Contains(t, err.Error(), "active")
	})

	t.Run("unexpected name is listed", func(t *testing.T) {
		err := ValidateAlignment(profile, map[string]any{"id": 1, "active": true, "extra": 0}, false)
		var alignErr *apperrors.AlignmentError
		require.ErrorAs(t, err, &alignErr)
		assert.Equal(t, []string{"extra"}, alignErr.Unexpected)
	})

	t.Run("ordinal keys satisfy named slots", func(t *testing.T) {
		err := ValidateAlignment(profile, map[string]any{"1": true, "2": 1}, false)
		assert.NoError(t, err)
	})
}

func TestValidateAlignmentPositional(t *testing.T) {
	profile := profileOf("SELECT * FROM t WHERE a = ? AND b = ?")

	assert.NoError(t, ValidateAlignment(profile, []any{1, 2}, false))

	err := ValidateAlignment(profile, []any{1}, false)
	var alignErr *apperrors.AlignmentError
	require.ErrorAs(t, err, &alignErr)
	assert.Equal(t, []string{"0", "1"}, alignErr.Expected)
	assert.Equal(t, []string{"0"}, alignErr.Actual)

	// Nil parameters cannot satisfy two placeholders.
	assert.Error(t, ValidateAlignment(profile, nil, false))
}

func TestValidateAlignmentScalar(t *testing.T) {
	profile := profileOf("SELECT * FROM t WHERE a = ?")
	assert.NoError(t, ValidateAlignment(profile, 5, false))
}

func TestValidateAlignmentMixedNumberedAndNamed(t *testing.T) {
	// :3 binds slot 2 but callers key the value by the written number.
	profile := profileOf("INSERT INTO t VALUES (:1, :2, :name, :3)")

	err := ValidateAlignment(profile, map[string]any{"1": 1, "2": 2, "name": 3, "3": 4}, false)
	assert.NoError(t, err)

	err = ValidateAlignment(profile, map[string]any{"1": 1, "2": 2, "3": 4}, false)
	var alignErr *apperrors.AlignmentError
	require.ErrorAs(t, err, &alignErr)
	assert.Equal(t, []string{"name"}, alignErr.Missing)
}

func TestValidateAlignmentRepeatedName(t *testing.T) {
	// One name bound twice still needs exactly one value.
	profile := profileOf("SELECT * FROM t WHERE a = :id OR b = :id")
	assert.NoError(t, ValidateAlignment(profile, map[string]any{"id": 7}, false))
}

func TestValidateAlignmentBatch(t *testing.T) {
	profile := profileOf("INSERT INTO t VALUES (:a, :b)")

	t.Run("all rows valid", func(t *testing.T) {
		rows := []any{
			map[string]any{"a": 1, "b": 2},
			map[string]any{"a": 3, "b": 4},
		}
		assert.NoError(t, ValidateAlignment(profile, rows, true))
	})

	t.Run("offending row index reported", func(t *testing.T) {
		rows := []any{
			map[string]any{"a": 1, "b": 2},
			map[string]any{"a": 3},
		}
		err := ValidateAlignment(profile, rows, true)
		var alignErr *apperrors.AlignmentError
		require.ErrorAs(t, err, &alignErr)
		assert.Equal(t, 1, alignErr.BatchIndex)
		assert.Equal(t, []string{"b"}, alignErr.Missing)
		assert.Contains(t, err.Error(), "batch element 1")
	})

	t.Run("empty batch has zero rows to check", func(t *testing.T) {
		assert.NoError(t, ValidateAlignment(profile, []any{}, true))
	})
}

func TestExpectedIdentifiers(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want []string
	}{
		{"named", "SELECT :b, :a", []string{"a", "b"}},
		{"repeated named dedupes", "SELECT :a, :a", []string{"a"}},
		{"anonymous marks", "SELECT ?, ?", []string{"0", "1"}},
		{"explicit numbers are one-based", "SELECT $2, $1", []string{"0", "1"}},
		{"mixed numbered and named", "SELECT :1, :2, :name, :3", []string{"0", "1", "2", "name"}},
		{"empty", "SELECT 1", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, profileOf(tt.sql).ExpectedIdentifiers())
		})
	}
}

func TestParameterProfile(t *testing.T) {
	p := profileOf("SELECT * FROM t WHERE a = :x AND b = ? AND c = :x")
	assert.Equal(t, []ParameterStyle{StyleNamedColon, StyleQmark}, p.Styles)
	assert.True(t, p.IsMixed())
	assert.Equal(t, StyleNamedColon, p.DominantStyle())
	assert.Equal(t, []string{"x"}, p.Named)
	assert.True(t, p.Reused[string(StyleNamedColon)+":x"])

	empty := profileOf("SELECT 1")
	assert.Equal(t, StyleNone, empty.DominantStyle())
	assert.False(t, empty.IsMixed())
}
