package ticket

import (
	"context"
	"regexp"
	"strconv"
	"strings"
)

// NumberIndex is the slice of the store the version resolver needs.
type NumberIndex interface {
	TicketNumberExists(ctx context.Context, number string) (bool, error)
	TicketNumbersWithBase(ctx context.Context, base string) ([]string, error)
}

var versionSuffix = regexp.MustCompile(`\.(\d+)$`)

// ResolveNumber assigns the final ticket number for a freshly extracted
// candidate. If no stored ticket carries the candidate (case-insensitive),
// it is accepted as-is. Otherwise the trailing ".<digits>" suffix is
// stripped to get the base, every stored "base" or "base.<n>" number is
// examined, and "base.<max+1>" is assigned. The maximum is recomputed from
// the store on every call because manual corrections and out-of-order
// submissions leave gaps a stored counter would miss.
//
// The index read and the eventual insert are not one transaction, so two
// concurrent scans of the same number can be assigned the same suffix.
func ResolveNumber(ctx context.Context, idx NumberIndex, candidate string) (assigned string, duplicate bool, err error) {
	exists, err := idx.TicketNumberExists(ctx, candidate)
	if err != nil {
		return "", false, err
	}
	if !exists {
		return candidate, false, nil
	}

	base := versionSuffix.ReplaceAllString(candidate, "")
	numbers, err := idx.TicketNumbersWithBase(ctx, base)
	if err != nil {
		return "", false, err
	}

	max := 0
	lowerBase := strings.ToLower(base)
	for _, n := range numbers {
		lower := strings.ToLower(n)
		if lower == lowerBase {
			continue // the bare base counts as suffix 0
		}
		rest, ok := strings.CutPrefix(lower, lowerBase+".")
		if !ok {
			continue
		}
		if suffix, err := strconv.Atoi(rest); err == nil && suffix > max {
			max = suffix
		}
	}
	return base + "." + strconv.Itoa(max+1), true, nil
}
