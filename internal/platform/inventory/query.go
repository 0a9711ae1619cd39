package inventory

import "strings"

// HostsQuery builds a name disjunction: ( name=a OR name=b ).
// It returns "" for no names.
func HostsQuery(names ...string) string {
	if len(names) == 0 {
		return ""
	}
	clauses := make([]string, len(names))
	for i, n := range names {
		clauses[i] = "name=" + n
	}
	return "( " + strings.Join(clauses, " OR ") + " )"
}

// And joins the non-empty clauses with AND. Compound clauses are
// parenthesized so operator precedence is preserved.
func And(clauses ...string) string {
	var parts []string
	for _, c := range clauses {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		parts = append(parts, c)
	}
	if len(parts) == 1 {
		return parts[0]
	}
	for i, p := range parts {
		if strings.ContainsAny(p, " \t") && !isGrouped(p) {
			parts[i] = "( " + p + " )"
		}
	}
	return strings.Join(parts, " AND ")
}

// ProfileQuery matches hosts in the given hostgroup.
func ProfileQuery(profile string) string {
	return "hostgroup=" + profile
}

// ProfilePrefixQuery matches hosts in any hostgroup whose name starts with prefix.
func ProfilePrefixQuery(prefix string) string {
	if prefix == "" {
		return ""
	}
	return "hostgroup ~ " + prefix + "%"
}

// isGrouped reports whether the whole expression is enclosed by one pair
// of parentheses.
func isGrouped(s string) bool {
	if !strings.HasPrefix(s, "(") || !strings.HasSuffix(s, ")") {
		return false
	}
	depth := 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 && i != len(s)-1 {
				return false
			}
		}
	}
	return depth == 0
}
