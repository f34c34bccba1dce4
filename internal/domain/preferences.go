package domain

import (
	"fmt"
	"sort"
	"strings"
)

// Preferences maps a role ("me", "partner", ...) to that role's preference object.
// Values are arbitrary JSON; only object values contribute to the summary.
type Preferences map[string]any

// FormatPreferences flattens p into a natural-language summary used as ranking context.
// Roles are visited in sorted order so identical input always yields identical output.
func FormatPreferences(p Preferences) string {
	if len(p) == 0 {
		return ""
	}

	roles := make([]string, 0, len(p))
	for role := range p {
		roles = append(roles, role)
	}
	sort.Strings(roles)

	var parts []string
	for _, role := range roles {
		obj, ok := p[role].(map[string]any)
		if !ok {
			continue
		}
		if v := stringList(obj["cuisines"]); len(v) > 0 {
			parts = append(parts, role+" likes "+strings.Join(v, "/"))
		}
		if v := stringList(obj["restrictions"]); len(v) > 0 {
			parts = append(parts, role+" restrictions "+strings.Join(v, ", "))
		}
		if v := stringList(obj["allergies"]); len(v) > 0 {
			parts = append(parts, role+" allergies "+strings.Join(v, ", "))
		}
		if b := scalar(obj["budget"]); b != "" {
			parts = append(parts, role+" budget "+b)
		}
		if v := stringList(obj["atmosphere"]); len(v) > 0 {
			parts = append(parts, role+" prefers "+strings.Join(v, "/")+" atmosphere")
		}
	}
	return strings.Join(parts, "; ")
}

// stringList accepts decoded JSON arrays and native string slices; non-string items are dropped.
func stringList(v any) []string {
	switch t := v.(type) {
	case []string:
		out := make([]string, 0, len(t))
		for _, s := range t {
			if s != "" {
				out = append(out, s)
			}
		}
		return out
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func scalar(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64, int, int64, bool:
		return fmt.Sprint(t)
	default:
		return ""
	}
}
