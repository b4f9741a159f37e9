// Package schema carries the MySQL DDL of the service.
package schema

import (
	_ "embed"
	"strings"
)

//go:embed schema.sql
var DDL string

// Statements splits DDL into individual statements for drivers that do not
// accept multi-statement execs.
func Statements() []string {
	parts := strings.Split(DDL, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
