package persistence

import "strings"

func splitColumns(columns string) []string {
	parts := strings.Split(columns, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if c := strings.TrimSpace(p); c != "" {
			out = append(out, c)
		}
	}
	return out
}

func without(columns []string, skip []string) []string {
	out := columns[:0:0]
	for _, c := range columns {
		keep := true
		for _, s := range skip {
			if c == s {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, c)
		}
	}
	return out
}

// namedParams ":id, :customer_id, ..." для NamedExec.
func namedParams(columns string) string {
	cols := splitColumns(columns)
	for i, c := range cols {
		cols[i] = ":" + c
	}
	return strings.Join(cols, ", ")
}

// assignments "customer_id = :customer_id, ..." для UPDATE.
func assignments(columns string, skip ...string) string {
	cols := without(splitColumns(columns), skip)
	for i, c := range cols {
		cols[i] = c + " = :" + c
	}
	return strings.Join(cols, ", ")
}

// excluded "status = EXCLUDED.status, ..." для ON CONFLICT DO UPDATE.
func excluded(columns string, skip ...string) string {
	cols := without(splitColumns(columns), skip)
	for i, c := range cols {
		cols[i] = c + " = EXCLUDED." + c
	}
	return strings.Join(cols, ", ")
}

func prefixed(alias, columns string) string {
	cols := splitColumns(columns)
	for i, c := range cols {
		cols[i] = alias + "." + c
	}
	return strings.Join(cols, ", ")
}
