package statement

import (
	"hash/fnv"
	"sort"
	"strconv"
)

// TypeCoercion converts a parameter value before binding. Coercions are keyed
// by ValueKind in ParameterStyleConfig.TypeCoercions.
type TypeCoercion func(value any) (any, error)

// OutputTransform is a final hook over the processed SQL and parameters,
// applied after style conversion.
type OutputTransform func(sql string, params any) (string, any)

// ParameterStyleConfig is the per-dialect/driver placeholder policy. It is
// built once per dialect, treated as immutable, and participates in every
// cache key via Hash.
type ParameterStyleConfig struct {
	// DefaultStyle is assumed when SQL carries no placeholders at all.
	DefaultStyle ParameterStyle
	// SupportedParseStyles are the styles the AST parser can ingest without
	// phase-1 normalization.
	SupportedParseStyles map[ParameterStyle]bool
	// SupportedExecutionStyles are the styles the driver accepts as-is.
	SupportedExecutionStyles map[ParameterStyle]bool
	// DefaultExecutionStyle is the phase-2 conversion target.
	DefaultExecutionStyle ParameterStyle

	// TypeCoercions maps value kinds to driver-specific conversions.
	TypeCoercions map[ValueKind]TypeCoercion

	HasNativeListExpansion       bool
	NeedsStaticScriptCompilation bool
	AllowMixedStyles             bool
	PreserveFormat               bool
	PreserveOriginalForBatch     bool

	// CheckInjection enables the libinjection scan over string parameter
	// values during processing.
	CheckInjection bool

	// OutputTransforms run in order over the final SQL/parameters.
	OutputTransforms []OutputTransform
}

// SupportsExecution reports whether the driver accepts style without
// conversion.
func (c *ParameterStyleConfig) SupportsExecution(style ParameterStyle) bool {
	return c.SupportedExecutionStyles[style]
}

// SupportsParse reports whether the AST parser ingests style without
// normalization.
func (c *ParameterStyleConfig) SupportsParse(style ParameterStyle) bool {
	return c.SupportedParseStyles[style]
}

// Hash returns a deterministic fingerprint of the configuration for cache-key
// composition. Function values cannot be hashed; coercions contribute their
// sorted kind tags and transforms their count, which is sufficient because a
// config is constructed once per dialect and never mutated.
func (c *ParameterStyleConfig) Hash() uint64 {
	h := fnv.New64a()
	write := func(s string) {
		_, _ = h.Write([]byte(s))
		_, _ = h.Write([]byte{0})
	}
	write(string(c.DefaultStyle))
	write(string(c.DefaultExecutionStyle))
	write(renderStyleSet(c.SupportedParseStyles))
	write(renderStyleSet(c.SupportedExecutionStyles))
	write(renderFlags(
		c.HasNativeListExpansion,
		c.NeedsStaticScriptCompilation,
		c.AllowMixedStyles,
		c.PreserveFormat,
		c.PreserveOriginalForBatch,
		c.CheckInjection,
	))
	kinds := make([]int, 0, len(c.TypeCoercions))
	for k := range c.TypeCoercions {
		kinds = append(kinds, int(k))
	}
	sort.Ints(kinds)
	for _, k := range kinds {
		write(strconv.Itoa(k))
	}
	write(strconv.Itoa(len(c.OutputTransforms)))
	return h.Sum64()
}

func renderStyleSet(set map[ParameterStyle]bool) string {
	styles := make([]string, 0, len(set))
	for s, ok := range set {
		if ok {
			styles = append(styles, string(s))
		}
	}
	sort.Strings(styles)
	out := ""
	for _, s := range styles {
		out += s + ","
	}
	return out
}

func renderFlags(flags ...bool) string {
	buf := make([]byte, len(flags))
	for i, f := range flags {
		if f {
			buf[i] = '1'
		} else {
			buf[i] = '0'
		}
	}
	return string(buf)
}
