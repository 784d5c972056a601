package observability

import (
	"strings"
	"unicode"
)

// Field length caps for caller controlled values written to logs and span attributes.
const (
	methodLimit = 10
	clientLimit = 64
	routeLimit  = 180
)

// clean drops control characters and keeps at most limit runes. Route patterns default to "/".
func clean(value string, limit int) string {
	var b strings.Builder
	n := 0
	for _, r := range value {
		if n == limit {
			break
		}
		if unicode.IsControl(r) {
			continue
		}
		b.WriteRune(r)
		n++
	}
	return b.String()
}

func cleanRoute(route string) string {
	if route = clean(route, routeLimit); route == "" {
		return "/"
	}
	return route
}
