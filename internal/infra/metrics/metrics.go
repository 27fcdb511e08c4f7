package metrics

import "strings"

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// bounded maps v to itself when it is one of allowed, otherwise to "other".
// Keeps label cardinality fixed for values that come from outside.
func bounded(v string, allowed ...string) string {
	v = norm(v)
	for _, a := range allowed {
		if v == a {
			return v
		}
	}
	return "other"
}
