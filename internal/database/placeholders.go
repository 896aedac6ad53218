package database

import (
	"strconv"
	"strings"
)

// ConvertPlaceholders rewrites ? placeholders to the format required by the
// given driver. Repositories write queries with ? for portability; postgres
// needs $1, $2, ... while mysql and sqlite take ? as-is.
func ConvertPlaceholders(driver, query string) string {
	if driver != "postgres" {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// Rebinder wraps a driver name and converts queries for it.
type Rebinder struct {
	Driver string
}

// Q converts a portable ?-placeholder query for the wrapped driver.
func (r Rebinder) Q(query string) string {
	return ConvertPlaceholders(r.Driver, query)
}
