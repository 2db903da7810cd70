package statement

import (
	"sort"
	"strconv"

	"github.com/ekaya-inc/sqlbind/pkg/apperrors"
)

// ValidateAlignment checks that the supplied parameters line up with the
// placeholders the profile declares. It is the single always-enforced
// correctness gate between compilation and execution: a mismatch is reported
// with both identifier sets rendered, never silently corrected.
//
// For batch calls every row of the outer sequence is validated independently;
// an empty outer sequence is valid (zero rows to bind).
func ValidateAlignment(profile *ParameterProfile, params any, isBatch bool) error {
	params = normalizeContainer(params)
	if isBatch {
		rows, ok := params.([]any)
		if !ok {
			return validateSingle(profile, params, 0)
		}
		for i, row := range rows {
			if err := validateSingle(profile, row, i); err != nil {
				return err
			}
		}
		return nil
	}
	return validateSingle(profile, params, -1)
}

func validateSingle(profile *ParameterProfile, params any, batchIndex int) error {
	expected := profile.ExpectedIdentifiers()
	actual := actualIdentifiers(params)

	// Named placeholders against a name-keyed value compare as identifier
	// sets; every other pairing can only be compared by count.
	if m, ok := params.(map[string]any); ok && len(profile.Named) > 0 {
		return compareSets(expected, actual, m, profile, batchIndex)
	}
	if len(expected) != len(actual) {
		return &apperrors.AlignmentError{
			Expected:   expected,
			Actual:     actual,
			BatchIndex: batchIndex,
		}
	}
	return nil
}

func compareSets(expected, actual []string, supplied map[string]any, profile *ParameterProfile, batchIndex int) error {
	slots, distinct := bindingSlots(profile.Parameters)

	// Map each expected identifier back to its binding slot and the name as
	// written in the SQL, so a numbered placeholder's 0-based identifier
	// still resolves the 1-based map key callers naturally use (:3 binds
	// slot 2, supplied as "3").
	slotByID := make(map[string]int, len(expected))
	writtenBySlot := make(map[int]string, distinct)
	for i, info := range profile.Parameters {
		slotByID[expectedIdentifier(info, slots[i])] = slots[i]
		if _, ok := writtenBySlot[slots[i]]; !ok {
			writtenBySlot[slots[i]] = info.Name
		}
	}

	var missing, unexpected []string
	for _, id := range expected {
		if _, ok := supplied[id]; ok {
			continue
		}
		slot, ok := slotByID[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		// A written-number, synthetic, or 1-based ordinal key still
		// satisfies the slot.
		if _, ok := resolveSlot(supplied, writtenBySlot[slot], slot); !ok {
			missing = append(missing, id)
		}
	}

	expectedSet := make(map[string]bool, len(expected))
	for _, id := range expected {
		expectedSet[id] = true
	}
	for slot := 0; slot < distinct; slot++ {
		expectedSet[syntheticName(slot)] = true
		expectedSet[strconv.Itoa(slot+1)] = true
	}
	for _, id := range actual {
		if !expectedSet[id] {
			unexpected = append(unexpected, id)
		}
	}
	if len(missing) == 0 && len(unexpected) == 0 {
		return nil
	}
	sort.Strings(missing)
	sort.Strings(unexpected)
	return &apperrors.AlignmentError{
		Expected:   expected,
		Actual:     actual,
		Missing:    missing,
		Unexpected: unexpected,
		BatchIndex: batchIndex,
	}
}

// expectedIdentifier renders the identifier ExpectedIdentifiers derives for
// one occurrence: the name for named styles, the 0-based slot its written
// number names for numbered styles, the slot itself for anonymous marks.
func expectedIdentifier(info ParameterInfo, slot int) string {
	if info.Style.IsNamed() && info.Name != "" {
		return info.Name
	}
	if info.Name != "" {
		if n, err := strconv.Atoi(info.Name); err == nil {
			return strconv.Itoa(n - 1)
		}
	}
	return strconv.Itoa(slot)
}

// actualIdentifiers derives the identifier set of a supplied value: map keys,
// the index range of a sequence, a single synthetic index for a scalar, or
// nothing for nil.
func actualIdentifiers(params any) []string {
	switch v := params.(type) {
	case nil:
		return nil
	case map[string]any:
		ids := make([]string, 0, len(v))
		for k := range v {
			ids = append(ids, k)
		}
		sort.Strings(ids)
		return ids
	case []any:
		ids := make([]string, len(v))
		for i := range v {
			ids[i] = strconv.Itoa(i)
		}
		return ids
	}
	return []string{"0"}
}
