package statement

import (
	"sort"
	"strconv"
)

// ParameterInfo describes one placeholder occurrence in SQL text. Instances
// are created during tokenization and never mutated afterwards; downstream
// rewriters rely on the list being ordered by Position.
type ParameterInfo struct {
	// Name is the declared parameter name, empty for positional styles.
	// For numbered styles ($2, :3) it holds the number as written.
	Name string
	// Style is the placeholder syntax this occurrence was written in.
	Style ParameterStyle
	// Position is the byte offset of the placeholder in the source SQL.
	Position int
	// Ordinal is the 0-based order of appearance.
	Ordinal int
	// Placeholder is the exact source text, e.g. "%(user_id)s".
	Placeholder string
}

// identifier returns the key used for alignment checks: the name for named
// occurrences, the 0-based ordinal rendered as a string otherwise.
func (p ParameterInfo) identifier() string {
	if p.Style.IsNamed() && p.Name != "" {
		return p.Name
	}
	return strconv.Itoa(p.Ordinal)
}

// ParameterProfile is the aggregate view over the placeholders of one SQL
// string: which styles appear, which names repeat, and the named parameters
// in first-appearance order.
type ParameterProfile struct {
	Parameters []ParameterInfo
	Styles     []ParameterStyle
	Named      []string
	Reused     map[string]bool
}

// NewParameterProfile derives a profile from an ordered occurrence list.
func NewParameterProfile(infos []ParameterInfo) *ParameterProfile {
	p := &ParameterProfile{
		Parameters: infos,
		Reused:     make(map[string]bool),
	}
	seenStyle := make(map[ParameterStyle]bool)
	seenKey := make(map[string]bool)
	for _, info := range infos {
		if !seenStyle[info.Style] {
			seenStyle[info.Style] = true
			p.Styles = append(p.Styles, info.Style)
		}
		key := info.reuseKey()
		if seenKey[key] {
			p.Reused[key] = true
		}
		seenKey[key] = true
		if info.Style.IsNamed() && info.Name != "" && !containsString(p.Named, info.Name) {
			p.Named = append(p.Named, info.Name)
		}
	}
	return p
}

// reuseKey identifies which occurrences share a binding: named placeholders
// by name, numbered ones by their written number, anonymous marks never.
func (p ParameterInfo) reuseKey() string {
	if p.Name != "" {
		return string(p.Style) + ":" + p.Name
	}
	return string(p.Style) + "#" + strconv.Itoa(p.Ordinal)
}

// DominantStyle returns the single style of the profile, or StyleNone when
// empty. Mixed-style SQL reports the first style seen.
func (p *ParameterProfile) DominantStyle() ParameterStyle {
	if len(p.Styles) == 0 {
		return StyleNone
	}
	return p.Styles[0]
}

// IsMixed reports whether more than one placeholder style appears.
func (p *ParameterProfile) IsMixed() bool {
	return len(p.Styles) > 1
}

// ExpectedIdentifiers returns the sorted, deduplicated identifier set the
// profile requires from supplied parameters: names for named placeholders,
// 0-based binding slots for positional ones.
func (p *ParameterProfile) ExpectedIdentifiers() []string {
	seen := make(map[string]bool)
	slotByKey := make(map[string]int)
	var ids []string
	for _, info := range p.Parameters {
		key := info.reuseKey()
		slot, ok := slotByKey[key]
		if !ok {
			slot = len(slotByKey)
			slotByKey[key] = slot
		}
		var id string
		switch {
		case info.Style.IsNamed() && info.Name != "":
			id = info.Name
		case info.Name != "":
			// Numbered positional (:2, $3): the written number is 1-based.
			if n, err := strconv.Atoi(info.Name); err == nil {
				id = strconv.Itoa(n - 1)
			} else {
				id = strconv.Itoa(slot)
			}
		default:
			id = strconv.Itoa(slot)
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
