package output

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/SirZenith/gimme/harvest"
)

// ParseSelection turns selection expression into list of option ids of
// registry. Expression is either `all`, `jpg`, or comma separated ids and id
// ranges, e.g. `1,3-5`. Returned ids keep option order and have no duplicates.
func ParseSelection(expr string, registry *harvest.Registry) ([]string, error) {
	expr = strings.TrimSpace(strings.ToLower(expr))
	options := registry.Options()

	switch expr {
	case "":
		return nil, fmt.Errorf("empty selection")
	case "all":
		return filterIDs(options, func(*harvest.FileOption) bool { return true }), nil
	case "jpg":
		return registry.MatchIDs(harvest.JPGExts...), nil
	}

	wanted := map[string]bool{}
	for _, part := range strings.Split(expr, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		st, ed, err := parseRange(part)
		if err != nil {
			return nil, err
		}

		if ed > len(options) {
			return nil, fmt.Errorf("selection %q contains unknown id, available ids are 1-%d", expr, len(options))
		}

		for i := st; i <= ed; i++ {
			wanted[strconv.Itoa(i)] = true
		}
	}

	result := filterIDs(options, func(opt *harvest.FileOption) bool { return wanted[opt.ID] })
	if len(result) != len(wanted) {
		return nil, fmt.Errorf("selection %q contains unknown id, available ids are 1-%d", expr, len(options))
	}

	return result, nil
}

func parseRange(part string) (int, int, error) {
	stStr, edStr, isRange := strings.Cut(part, "-")

	st, err := strconv.Atoi(strings.TrimSpace(stStr))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid id %q", stStr)
	}

	ed := st
	if isRange {
		if ed, err = strconv.Atoi(strings.TrimSpace(edStr)); err != nil {
			return 0, 0, fmt.Errorf("invalid id %q", edStr)
		}
	}

	if st <= 0 || ed < st {
		return 0, 0, fmt.Errorf("invalid id range %q", part)
	}

	return st, ed, nil
}

func filterIDs(options []*harvest.FileOption, pred func(*harvest.FileOption) bool) []string {
	result := []string{}
	for _, opt := range options {
		if pred(opt) {
			result = append(result, opt.ID)
		}
	}
	return result
}
