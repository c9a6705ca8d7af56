package types

import (
	"strconv"
	"strings"
)

// Ingredient is one raw material entry inside a solution composition. Names
// come from the raw-material vocabulary but are stored as plain text, and
// duplicates within one composition are allowed. Percentages are recorded as
// entered; siblings are not required to sum to 100.
type Ingredient struct {
	Name       string  `json:"name"`
	Percentage float64 `json:"percentage"`
}

// SolutionComposition is a named group of ingredients. A formula carries two
// ordered lists of these, one per solution slot.
type SolutionComposition struct {
	Name        string       `json:"name"`
	Ingredients []Ingredient `json:"ingredients"`
}

// Clone returns a deep copy.
func (sc SolutionComposition) Clone() SolutionComposition {
	out := SolutionComposition{Name: sc.Name}
	if sc.Ingredients != nil {
		out.Ingredients = make([]Ingredient, len(sc.Ingredients))
		copy(out.Ingredients, sc.Ingredients)
	}
	return out
}

// CloneCompositions deep-copies a composition list so edits never alias the
// cached record they came from.
func CloneCompositions(list []SolutionComposition) []SolutionComposition {
	if list == nil {
		return nil
	}
	out := make([]SolutionComposition, len(list))
	for i, sc := range list {
		out[i] = sc.Clone()
	}
	return out
}

// The edit helpers below are copy-on-write: they return a new list and leave
// the input untouched. An out-of-range position returns the list unchanged.

func AddComposition(list []SolutionComposition, name string) []SolutionComposition {
	out := CloneCompositions(list)
	return append(out, SolutionComposition{Name: name})
}

func RemoveComposition(list []SolutionComposition, pos int) []SolutionComposition {
	if pos < 0 || pos >= len(list) {
		return CloneCompositions(list)
	}
	out := make([]SolutionComposition, 0, len(list)-1)
	for i, sc := range list {
		if i == pos {
			continue
		}
		out = append(out, sc.Clone())
	}
	return out
}

func RenameComposition(list []SolutionComposition, pos int, name string) []SolutionComposition {
	out := CloneCompositions(list)
	if pos < 0 || pos >= len(out) {
		return out
	}
	out[pos].Name = name
	return out
}

func AddIngredient(list []SolutionComposition, pos int, ing Ingredient) []SolutionComposition {
	out := CloneCompositions(list)
	if pos < 0 || pos >= len(out) {
		return out
	}
	out[pos].Ingredients = append(out[pos].Ingredients, ing)
	return out
}

// RemoveIngredient removes by position, not by name, so duplicate ingredient
// names stay addressable.
func RemoveIngredient(list []SolutionComposition, pos, ingPos int) []SolutionComposition {
	out := CloneCompositions(list)
	if pos < 0 || pos >= len(out) {
		return out
	}
	ings := out[pos].Ingredients
	if ingPos < 0 || ingPos >= len(ings) {
		return out
	}
	out[pos].Ingredients = append(ings[:ingPos:ingPos], ings[ingPos+1:]...)
	return out
}

func UpdateIngredient(list []SolutionComposition, pos, ingPos int, ing Ingredient) []SolutionComposition {
	out := CloneCompositions(list)
	if pos < 0 || pos >= len(out) {
		return out
	}
	if ingPos < 0 || ingPos >= len(out[pos].Ingredients) {
		return out
	}
	out[pos].Ingredients[ingPos] = ing
	return out
}

// ParsePercentage coerces free-text input to a number. Unparseable input
// becomes 0; no range clamp is applied.
func ParsePercentage(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}

const maxBaseMaterials = 3

// NormalizeBaseMaterials drops blank substrate entries and caps the list at
// three. The list is never empty: if everything was blank a single empty
// placeholder is reinstated.
func NormalizeBaseMaterials(in []string) []string {
	out := make([]string, 0, len(in))
	for _, m := range in {
		if strings.TrimSpace(m) == "" {
			continue
		}
		out = append(out, m)
	}
	if len(out) == 0 {
		return []string{""}
	}
	if len(out) > maxBaseMaterials {
		out = out[:maxBaseMaterials]
	}
	return out
}
