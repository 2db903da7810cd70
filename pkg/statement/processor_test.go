package statement

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/sqlbind/pkg/apperrors"
	"github.com/ekaya-inc/sqlbind/pkg/cache"
)

func parseOnlyColon() map[ParameterStyle]bool {
	return map[ParameterStyle]bool{StyleNamedColon: true}
}

func numericConfig() *ParameterStyleConfig {
	return &ParameterStyleConfig{
		DefaultStyle:             StyleNumeric,
		SupportedParseStyles:     parseOnlyColon(),
		SupportedExecutionStyles: map[ParameterStyle]bool{StyleNumeric: true},
		DefaultExecutionStyle:    StyleNumeric,
	}
}

func qmarkConfig() *ParameterStyleConfig {
	return &ParameterStyleConfig{
		DefaultStyle:             StyleQmark,
		SupportedParseStyles:     parseOnlyColon(),
		SupportedExecutionStyles: map[ParameterStyle]bool{StyleQmark: true},
		DefaultExecutionStyle:    StyleQmark,
	}
}

func newTestProcessor() *Processor {
	return NewProcessor(NewTokenizer(nil, 64), nil, 64, nil)
}

func TestProcessConvertsToExecutionStyle(t *testing.T) {
	p := newTestProcessor()
	result, err := p.Process("SELECT * FROM users WHERE id = ?", []any{5}, numericConfig(), "postgres", false)
	require.NoError(t, err)

	assert.Equal(t, "SELECT * FROM users WHERE id = $1", result.SQL)
	assert.Equal(t, []any{5}, result.Params)
	assert.Equal(t, StyleNumeric, result.Style)
	assert.Equal(t, "SELECT * FROM users WHERE id = :param_0", result.ParseSQL)
	assert.False(t, result.Embedded)
}

func TestProcessLeavesAcceptableStyleAlone(t *testing.T) {
	p := newTestProcessor()
	sql := "SELECT * FROM users WHERE id = ? AND status = ?"
	result, err := p.Process(sql, []any{5, "active"}, qmarkConfig(), "mysql", false)
	require.NoError(t, err)

	assert.Equal(t, sql, result.SQL)
	assert.Equal(t, []any{5, "active"}, result.Params)
	assert.Equal(t, StyleQmark, result.Style)
	// The parse variant still needs colon normalization even though the
	// execution text is untouched.
	assert.Contains(t, result.ParseSQL, ":param_0")
}

func TestProcessNamedPassthroughHasNoParseVariant(t *testing.T) {
	cfg := &ParameterStyleConfig{
		DefaultStyle:             StyleNamedColon,
		SupportedParseStyles:     parseOnlyColon(),
		SupportedExecutionStyles: map[ParameterStyle]bool{StyleNamedColon: true},
		DefaultExecutionStyle:    StyleNamedColon,
	}
	p := newTestProcessor()
	sql := "SELECT * FROM users WHERE id = :id"
	result, err := p.Process(sql, map[string]any{"id": 1}, cfg, "oracle", false)
	require.NoError(t, err)

	assert.Equal(t, sql, result.SQL)
	assert.Empty(t, result.ParseSQL)
	assert.Equal(t, sql, result.parseVariant())
}

func TestProcessMixedStylesAllowed(t *testing.T) {
	cfg := &ParameterStyleConfig{
		DefaultStyle:             StyleNamedColon,
		SupportedParseStyles:     parseOnlyColon(),
		SupportedExecutionStyles: map[ParameterStyle]bool{StyleNamedColon: true, StylePositionalColon: true},
		DefaultExecutionStyle:    StyleNamedColon,
		AllowMixedStyles:         true,
	}
	p := newTestProcessor()
	sql := "INSERT INTO t VALUES (:1, :2, :name, :3)"
	result, err := p.Process(sql, map[string]any{"1": 1, "2": 2, "name": 3, "3": 4}, cfg, "oracle", false)
	require.NoError(t, err)
	assert.Equal(t, sql, result.SQL)
	assert.True(t, result.Profile.IsMixed())
}

func TestProcessMixedStylesConvertedWhenDisallowed(t *testing.T) {
	p := newTestProcessor()
	sql := "SELECT * FROM t WHERE a = $1 AND b = :x"
	result, err := p.Process(sql, map[string]any{"1": 10, "x": 20}, numericConfig(), "postgres", false)
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b = $2", result.SQL)
	assert.Equal(t, []any{10, 20}, result.Params)
}

func TestProcessTypeCoercion(t *testing.T) {
	cfg := &ParameterStyleConfig{
		DefaultStyle:             StyleNamedColon,
		SupportedParseStyles:     parseOnlyColon(),
		SupportedExecutionStyles: map[ParameterStyle]bool{StyleNamedColon: true},
		DefaultExecutionStyle:    StyleNamedColon,
		TypeCoercions: map[ValueKind]TypeCoercion{
			KindBool: func(v any) (any, error) {
				if v == true {
					return 1, nil
				}
				return 0, nil
			},
		},
	}
	p := newTestProcessor()
	result, err := p.Process("UPDATE t SET active = :active WHERE id = :id",
		map[string]any{"active": true, "id": 9}, cfg, "oracle", false)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"active": 1, "id": 9}, result.Params)
}

func TestProcessCoercionFailurePropagates(t *testing.T) {
	cfg := qmarkConfig()
	cfg.TypeCoercions = map[ValueKind]TypeCoercion{
		KindBool: func(any) (any, error) { return nil, fmt.Errorf("driver cannot bind booleans") },
	}
	p := newTestProcessor()
	_, err := p.Process("SELECT * FROM t WHERE a = ?", []any{true}, cfg, "mysql", false)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrCoercionFailed)
}

func TestProcessStaticEmbedding(t *testing.T) {
	cfg := qmarkConfig()
	cfg.NeedsStaticScriptCompilation = true
	p := newTestProcessor()
	result, err := p.Process("INSERT INTO t VALUES (?, ?)", []any{"x", 42}, cfg, "duckdb", false)
	require.NoError(t, err)

	assert.Equal(t, "INSERT INTO t VALUES ('x', 42)", result.SQL)
	assert.Nil(t, result.Params)
	assert.Equal(t, StyleStatic, result.Style)
	assert.True(t, result.Embedded)
}

func TestProcessBatchConversion(t *testing.T) {
	p := newTestProcessor()
	rows := []any{[]any{1, "a"}, []any{2, "b"}}
	result, err := p.Process("INSERT INTO t VALUES (?, ?)", rows, numericConfig(), "postgres", true)
	require.NoError(t, err)

	assert.Equal(t, "INSERT INTO t VALUES ($1, $2)", result.SQL)
	assert.Equal(t, rows, result.Params)
}

func TestProcessBatchPreservesOriginalContainer(t *testing.T) {
	cfg := numericConfig()
	cfg.PreserveOriginalForBatch = true
	p := newTestProcessor()
	rows := []any{
		map[string]any{"a": 1},
		map[string]any{"a": 2},
	}
	result, err := p.Process("INSERT INTO t VALUES (:a)", rows, cfg, "postgres", true)
	require.NoError(t, err)

	assert.Equal(t, "INSERT INTO t VALUES ($1)", result.SQL)
	// The caller's row maps survive for native batch APIs instead of being
	// reshaped into per-row sequences.
	assert.Equal(t, rows, result.Params)
}

func TestProcessInjectionScan(t *testing.T) {
	cfg := qmarkConfig()
	cfg.CheckInjection = true
	p := newTestProcessor()

	_, err := p.Process("SELECT * FROM users WHERE name = ?",
		[]any{"' OR '1'='1"}, cfg, "mysql", false)
	require.Error(t, err)
	var injErr *apperrors.InjectionError
	require.ErrorAs(t, err, &injErr)
	assert.NotEmpty(t, injErr.Fingerprint)

	_, err = p.Process("SELECT * FROM users WHERE name = ?",
		[]any{"Alice O'Brien"}, cfg, "mysql", false)
	assert.NoError(t, err)
}

func TestProcessOutputTransforms(t *testing.T) {
	cfg := qmarkConfig()
	cfg.OutputTransforms = []OutputTransform{
		func(sql string, params any) (string, any) {
			return sql + " /* routed */", params
		},
	}
	p := newTestProcessor()
	result, err := p.Process("SELECT * FROM t WHERE a = ?", []any{1}, cfg, "mysql", false)
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM t WHERE a = ? /* routed */", result.SQL)
}

func TestProcessNoPlaceholders(t *testing.T) {
	p := newTestProcessor()
	result, err := p.Process("SELECT 1", nil, numericConfig(), "postgres", false)
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", result.SQL)
	assert.Equal(t, StyleNumeric, result.Style)
	assert.Empty(t, result.ParseSQL)
	assert.Empty(t, result.Profile.Parameters)
}

func TestProcessPlanCacheKeepsCallerValues(t *testing.T) {
	registry := cache.NewRegistry()
	tok := NewTokenizer(registry, 64)
	p := NewProcessor(tok, registry, 64, nil)
	cfg := numericConfig()

	first, err := p.Process("SELECT * FROM t WHERE a = ?", []any{1}, cfg, "postgres", false)
	require.NoError(t, err)
	second, err := p.Process("SELECT * FROM t WHERE a = ?", []any{2}, cfg, "postgres", false)
	require.NoError(t, err)

	// The SQL rewrite is shared through the plan cache, but every caller
	// gets its own values back.
	assert.Equal(t, first.SQL, second.SQL)
	assert.Equal(t, []any{1}, first.Params)
	assert.Equal(t, []any{2}, second.Params)
	stats := registry.Stats()[cache.NameProcessor]
	assert.Equal(t, uint64(1), stats.Hits)
}

func TestProcessPlanCacheKeepsCallerValuesNamed(t *testing.T) {
	p := newTestProcessor()
	cfg := numericConfig()

	first, err := p.Process("SELECT * FROM t WHERE a = :a", map[string]any{"a": 10}, cfg, "postgres", false)
	require.NoError(t, err)
	second, err := p.Process("SELECT * FROM t WHERE a = :a", map[string]any{"a": 20}, cfg, "postgres", false)
	require.NoError(t, err)

	assert.Equal(t, "SELECT * FROM t WHERE a = $1", second.SQL)
	assert.Equal(t, []any{10}, first.Params)
	assert.Equal(t, []any{20}, second.Params)
}

func TestProcessStaticEmbeddingNotShared(t *testing.T) {
	cfg := qmarkConfig()
	cfg.NeedsStaticScriptCompilation = true
	p := newTestProcessor()

	first, err := p.Process("INSERT INTO t VALUES (?)", []any{"x"}, cfg, "duckdb", false)
	require.NoError(t, err)
	second, err := p.Process("INSERT INTO t VALUES (?)", []any{"y"}, cfg, "duckdb", false)
	require.NoError(t, err)

	// Embedded literals belong to the call that supplied them.
	assert.Equal(t, "INSERT INTO t VALUES ('x')", first.SQL)
	assert.Equal(t, "INSERT INTO t VALUES ('y')", second.SQL)
}

func TestDetectExecuteMany(t *testing.T) {
	tests := []struct {
		name   string
		params any
		want   bool
	}{
		{"sequence rows", []any{[]any{1}, []any{2}, []any{3}}, true},
		{"map rows", []any{map[string]any{"a": 1}, map[string]any{"a": 2}}, true},
		{"single row is not a batch", []any{[]any{1}}, false},
		{"mixed row kinds", []any{[]any{1}, map[string]any{"a": 2}}, false},
		{"ragged sequence rows", []any{[]any{1}, []any{1, 2}}, false},
		{"flat scalars", []any{1, 2, 3}, false},
		{"scalar", 7, false},
		{"nil", nil, false},
		{"typed slice of rows", [][]int{{1}, {2}}, true},
		{"byte string is a scalar", []byte("ab"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectExecuteMany(tt.params))
		})
	}
}

func TestNormalizeContainer(t *testing.T) {
	got := normalizeContainer(map[string]int{"a": 1})
	assert.Equal(t, map[string]any{"a": 1}, got)

	got = normalizeContainer([]string{"x", "y"})
	assert.Equal(t, []any{"x", "y"}, got)

	// []byte stays a scalar byte string.
	raw := []byte{1, 2}
	assert.Equal(t, any(raw), normalizeContainer(raw))
}

func TestProcessBatchCoercionReportsRow(t *testing.T) {
	cfg := qmarkConfig()
	cfg.TypeCoercions = map[ValueKind]TypeCoercion{
		KindBool: func(any) (any, error) { return nil, errors.New("no booleans") },
	}
	p := newTestProcessor()
	rows := []any{[]any{1}, []any{true}}
	_, err := p.Process("INSERT INTO t VALUES (?)", rows, cfg, "mysql", true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch element 1")
}
