// Package hostrange expands compact host range expressions into host names.
//
// The first numeric ("01:10") or single-letter ("A:Z") range found in an
// expression is expanded; numeric ranges keep the zero padding of the
// lower bound:
//
//	web01:03.example.com -> web01.example.com, web02.example.com, web03.example.com
//	rackA:C              -> rackA, rackB, rackC
package hostrange

import (
	"fmt"
	"regexp"
	"strconv"
)

var rangePattern = regexp.MustCompile(`(\d+):(\d+)|([a-zA-Z]):([a-zA-Z])`)

// Expand returns the host names described by expr. An expression without a
// range expands to itself.
func Expand(expr string) ([]string, error) {
	loc := rangePattern.FindStringSubmatchIndex(expr)
	if loc == nil {
		return []string{expr}, nil
	}

	prefix, suffix := expr[:loc[0]], expr[loc[1]:]

	if loc[2] >= 0 {
		lowStr, highStr := expr[loc[2]:loc[3]], expr[loc[4]:loc[5]]
		low, err := strconv.Atoi(lowStr)
		if err != nil {
			return nil, fmt.Errorf("invalid range start %q: %w", lowStr, err)
		}
		high, err := strconv.Atoi(highStr)
		if err != nil {
			return nil, fmt.Errorf("invalid range end %q: %w", highStr, err)
		}
		if high < low {
			return nil, fmt.Errorf("invalid range %q: end before start", expr[loc[0]:loc[1]])
		}
		width := len(lowStr)
		hosts := make([]string, 0, high-low+1)
		for i := low; i <= high; i++ {
			hosts = append(hosts, fmt.Sprintf("%s%0*d%s", prefix, width, i, suffix))
		}
		return hosts, nil
	}

	low, high := expr[loc[6]], expr[loc[8]]
	if high < low {
		return nil, fmt.Errorf("invalid range %q: end before start", expr[loc[0]:loc[1]])
	}
	hosts := make([]string, 0, int(high-low)+1)
	for c := low; c <= high; c++ {
		hosts = append(hosts, prefix+string(c)+suffix)
	}
	return hosts, nil
}

// ExpandAll expands every expression and concatenates the results,
// dropping duplicates while keeping the first occurrence order.
func ExpandAll(exprs []string) ([]string, error) {
	seen := make(map[string]bool)
	var hosts []string
	for _, expr := range exprs {
		expanded, err := Expand(expr)
		if err != nil {
			return nil, err
		}
		for _, h := range expanded {
			if seen[h] {
				continue
			}
			seen[h] = true
			hosts = append(hosts, h)
		}
	}
	return hosts, nil
}
