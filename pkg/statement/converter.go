package statement

import (
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cast"

	"github.com/ekaya-inc/sqlbind/pkg/apperrors"
)

// generator renders one placeholder occurrence for a target style. slot is
// the 0-based binding slot assigned to the occurrence.
type generator func(name string, slot int) string

// generatorFor returns the placeholder generator for a target style.
// An unknown target is a configuration error.
func generatorFor(style ParameterStyle) (generator, error) {
	switch style {
	case StyleQmark:
		return func(string, int) string { return "?" }, nil
	case StyleNumeric:
		return func(_ string, slot int) string { return "$" + strconv.Itoa(slot+1) }, nil
	case StylePositionalColon:
		return func(_ string, slot int) string { return ":" + strconv.Itoa(slot+1) }, nil
	case StyleNamedColon:
		return func(name string, slot int) string { return ":" + nameOrSynthetic(name, slot) }, nil
	case StyleNamedAt:
		return func(name string, slot int) string { return "@" + nameOrSynthetic(name, slot) }, nil
	case StyleNamedDollar:
		return func(name string, slot int) string { return "$" + nameOrSynthetic(name, slot) }, nil
	case StyleNamedPyformat:
		return func(name string, slot int) string { return "%(" + nameOrSynthetic(name, slot) + ")s" }, nil
	case StylePyformat:
		return func(string, int) string { return "%s" }, nil
	}
	return nil, fmt.Errorf("%w: %s", apperrors.ErrUnsupportedStyle, style)
}

// nameOrSynthetic keeps a declared identifier-like name and synthesizes
// param_<slot> for anonymous or numbered occurrences.
func nameOrSynthetic(name string, slot int) string {
	if name != "" && isIdentName(name) {
		return name
	}
	return syntheticName(slot)
}

func syntheticName(slot int) string {
	return "param_" + strconv.Itoa(slot)
}

// bindingSlots assigns a stable 0-based slot to every occurrence: repeated
// named placeholders share one slot, numbered placeholders ($2, :3) bind the
// slot their written number names, and anonymous marks each take a fresh
// slot. The second return is the distinct slot count.
func bindingSlots(infos []ParameterInfo) ([]int, int) {
	slots := make([]int, len(infos))
	claimed := make(map[int]bool)
	numbered := make([]bool, len(infos))

	// Explicit numbers claim their slots first so a later named or anonymous
	// occurrence never collides with them.
	for i, info := range infos {
		if (info.Style == StyleNumeric || info.Style == StylePositionalColon) && info.Name != "" {
			if n, err := strconv.Atoi(info.Name); err == nil && n > 0 {
				slots[i] = n - 1
				claimed[n-1] = true
				numbered[i] = true
			}
		}
	}

	byKey := make(map[string]int)
	next := 0
	takeFree := func() int {
		for claimed[next] {
			next++
		}
		claimed[next] = true
		return next
	}
	maxSlot := -1
	for i, info := range infos {
		if !numbered[i] {
			if info.Style.IsNamed() && info.Name != "" {
				if s, ok := byKey[info.Name]; ok {
					slots[i] = s
				} else {
					slots[i] = takeFree()
					byKey[info.Name] = slots[i]
				}
			} else {
				slots[i] = takeFree()
			}
		}
		if slots[i] > maxSlot {
			maxSlot = slots[i]
		}
	}
	return slots, maxSlot + 1
}

// rewrite substitutes every recorded occurrence using gen, copying the
// unchanged spans between placeholders. Positions stay valid because the
// original string is never mutated; occurrences are walked in ascending
// position order, which the tokenizer guarantees.
func rewrite(sql string, infos []ParameterInfo, gen func(idx int, info ParameterInfo) string) string {
	b := acquireBuilder()
	defer releaseBuilder(b)
	b.Grow(len(sql) + len(infos)*4)

	last := 0
	for idx, info := range infos {
		b.WriteString(sql[last:info.Position])
		b.WriteString(gen(idx, info))
		last = info.Position + len(info.Placeholder)
	}
	b.WriteString(sql[last:])
	return b.String()
}

// NormalizeForParse rewrites only the placeholders whose style the AST parser
// cannot ingest into the canonical :param_<slot> form, leaving parseable
// occurrences untouched. Returns the (possibly unchanged) SQL and its
// re-extracted occurrence list.
func NormalizeForParse(sql string, infos []ParameterInfo, cfg *ParameterStyleConfig) (string, []ParameterInfo) {
	needs := false
	for _, info := range infos {
		if !cfg.SupportsParse(info.Style) {
			needs = true
			break
		}
	}
	if !needs {
		return sql, infos
	}

	slots, _ := bindingSlots(infos)
	normalized := rewrite(sql, infos, func(idx int, info ParameterInfo) string {
		if cfg.SupportsParse(info.Style) {
			return info.Placeholder
		}
		return ":" + nameOrSynthetic(info.Name, slots[idx])
	})
	return normalized, scanPlaceholders(normalized)
}

// ConvertPlaceholders rewrites sql into the target style and reshapes params
// into the container shape that style binds (ordered sequences for
// positional targets, name-keyed maps for named ones). When every occurrence
// already matches the target the SQL text is returned untouched; parameters
// are still reshaped.
func ConvertPlaceholders(sql string, params any, infos []ParameterInfo, target ParameterStyle, isBatch bool) (string, any, error) {
	if len(infos) == 0 {
		return sql, params, nil
	}

	outSQL := sql
	if !allStyle(infos, target) {
		gen, err := generatorFor(target)
		if err != nil {
			return "", nil, err
		}
		slots, _ := bindingSlots(infos)
		outSQL = rewrite(sql, infos, func(idx int, info ParameterInfo) string {
			return gen(info.Name, slots[idx])
		})
	}
	return outSQL, reshapeParams(params, infos, target, isBatch), nil
}

// reshapeParams converts a parameter container into the shape target binds,
// without touching SQL text. Batch payloads reshape per row. It is a pure
// function of the fresh values and the occurrence list, so it can be
// re-applied to every caller's own parameters after the SQL rewrite has been
// cached.
func reshapeParams(params any, infos []ParameterInfo, target ParameterStyle, isBatch bool) any {
	if len(infos) == 0 {
		return params
	}
	slots, distinct := bindingSlots(infos)
	reshape := func(row any) any {
		if target.IsNamed() {
			return reshapeToMap(row, infos, slots, distinct)
		}
		seq := reshapeToSequence(row, infos, slots, distinct)
		if target == StyleQmark || target == StylePyformat {
			// Anonymous marks bind one value per occurrence, so a slot
			// referenced twice (or out of written order) must be expanded
			// into occurrence order.
			return expandOccurrences(seq, slots)
		}
		return seq
	}
	if isBatch {
		if rows, ok := params.([]any); ok {
			out := make([]any, len(rows))
			for i, row := range rows {
				out[i] = reshape(row)
			}
			return out
		}
	}
	return reshape(params)
}

func allStyle(infos []ParameterInfo, style ParameterStyle) bool {
	for _, info := range infos {
		if info.Style != style {
			return false
		}
	}
	return true
}

// reshapeToMap pairs binding slots with declared names, falling back to the
// synthetic param_<slot> name for anonymous occurrences.
func reshapeToMap(params any, infos []ParameterInfo, slots []int, distinct int) any {
	switch p := params.(type) {
	case nil:
		return nil
	case map[string]any:
		return p
	case []any:
		out := make(map[string]any, distinct)
		for idx, info := range infos {
			slot := slots[idx]
			name := nameOrSynthetic(info.Name, slot)
			if slot < len(p) {
				out[name] = p[slot]
			}
		}
		return out
	default:
		// Scalar binds the first slot.
		name := syntheticName(0)
		if len(infos) > 0 {
			name = nameOrSynthetic(infos[0].Name, 0)
		}
		return map[string]any{name: p}
	}
}

// reshapeToSequence resolves one value per binding slot, looking a map entry
// up by declared name, synthetic name, 1-based ordinal string, and finally by
// the positional order of the map's own keys (sorted, for determinism).
func reshapeToSequence(params any, infos []ParameterInfo, slots []int, distinct int) any {
	switch p := params.(type) {
	case nil:
		return nil
	case []any:
		if len(p) == distinct {
			return p
		}
		out := make([]any, distinct)
		for i := 0; i < distinct && i < len(p); i++ {
			out[i] = p[i]
		}
		return out
	case map[string]any:
		nameBySlot := make(map[int]string, distinct)
		for idx, info := range infos {
			if _, ok := nameBySlot[slots[idx]]; !ok {
				nameBySlot[slots[idx]] = info.Name
			}
		}
		sortedKeys := make([]string, 0, len(p))
		for k := range p {
			sortedKeys = append(sortedKeys, k)
		}
		sort.Strings(sortedKeys)

		out := make([]any, distinct)
		for slot := 0; slot < distinct; slot++ {
			if v, ok := resolveSlot(p, nameBySlot[slot], slot); ok {
				out[slot] = v
			} else if slot < len(sortedKeys) {
				out[slot] = p[sortedKeys[slot]]
			}
		}
		return out
	default:
		return []any{p}
	}
}

// expandOccurrences turns a slot-indexed sequence into an occurrence-ordered
// one. Identity when every occurrence already owns its own slot in order.
func expandOccurrences(seq any, slots []int) any {
	values, ok := seq.([]any)
	if !ok {
		return seq
	}
	identity := len(values) == len(slots)
	if identity {
		for i := range slots {
			if slots[i] != i {
				identity = false
				break
			}
		}
	}
	if identity {
		return values
	}
	out := make([]any, len(slots))
	for i, slot := range slots {
		if slot < len(values) {
			out[i] = values[slot]
		}
	}
	return out
}

func resolveSlot(m map[string]any, name string, slot int) (any, bool) {
	if name != "" {
		if v, ok := m[name]; ok {
			return v, true
		}
	}
	if v, ok := m[syntheticName(slot)]; ok {
		return v, true
	}
	if v, ok := m[strconv.Itoa(slot+1)]; ok {
		return v, true
	}
	return nil, false
}

// EmbedStatic serializes parameter values as SQL literals directly into the
// statement text for drivers that cannot bind parameters to script bodies.
// The returned parameter payload is always empty.
func EmbedStatic(sql string, params any, infos []ParameterInfo) (string, error) {
	if len(infos) == 0 {
		return sql, nil
	}
	slots, distinct := bindingSlots(infos)
	seq, _ := reshapeToSequence(params, infos, slots, distinct).([]any)

	var firstErr error
	out := rewrite(sql, infos, func(idx int, info ParameterInfo) string {
		slot := slots[idx]
		var v any
		if slot < len(seq) {
			v = seq[slot]
		}
		lit, err := renderLiteral(v)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		return lit
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}

// renderLiteral serializes a single value as a SQL literal. Strings are
// escaped by doubling single quotes; byte strings use the X'..' hex form.
func renderLiteral(value any) (string, error) {
	kind := KindOf(value)
	value = unwrapTyped(value)

	switch kind {
	case KindNull:
		return "NULL", nil
	case KindBool:
		if b, err := cast.ToBoolE(value); err == nil {
			if b {
				return "TRUE", nil
			}
			return "FALSE", nil
		}
	case KindInt:
		if n, err := cast.ToInt64E(value); err == nil {
			return strconv.FormatInt(n, 10), nil
		}
	case KindFloat:
		if f, err := cast.ToFloat64E(value); err == nil {
			return strconv.FormatFloat(f, 'g', -1, 64), nil
		}
	case KindDecimal:
		if d, ok := value.(decimal.Decimal); ok {
			return d.String(), nil
		}
	case KindText:
		return quoteLiteral(cast.ToString(value)), nil
	case KindBytes:
		if b, ok := value.([]byte); ok {
			return "X'" + strings.ToUpper(hex.EncodeToString(b)) + "'", nil
		}
	case KindDate:
		if t, ok := value.(time.Time); ok {
			return quoteLiteral(t.Format("2006-01-02")), nil
		}
	case KindTime:
		if t, ok := value.(time.Time); ok {
			return quoteLiteral(t.Format("15:04:05")), nil
		}
	case KindDateTime:
		if t, ok := value.(time.Time); ok {
			return quoteLiteral(t.Format(time.RFC3339)), nil
		}
	case KindUUID:
		if u, ok := value.(uuid.UUID); ok {
			return quoteLiteral(u.String()), nil
		}
	case KindList:
		items, ok := value.([]any)
		if !ok {
			break
		}
		parts := make([]string, len(items))
		for i, item := range items {
			lit, err := renderLiteral(item)
			if err != nil {
				return "", err
			}
			parts[i] = lit
		}
		return "(" + strings.Join(parts, ", ") + ")", nil
	}

	// Anything else renders through its string form rather than failing the
	// whole embed.
	s, err := cast.ToStringE(value)
	if err != nil {
		return "", fmt.Errorf("%w: cannot embed %T as literal", apperrors.ErrCoercionFailed, value)
	}
	return quoteLiteral(s), nil
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
