package ledger

import (
	"fmt"
	"strings"
	"time"
)

// dateLayouts are the formats seen on the utility's account pages.
var dateLayouts = []string{
	DateLayout,
	"1/2/2006",
	"01/02/2006",
	"1/2/06",
	"Jan 2, 2006",
	"Jan 02, 2006",
	"January 2, 2006",
	"Jan. 2, 2006",
	"2006/01/02",
}

// ParseDate parses a statement date in any of the known layouts. The result
// is midnight UTC.
func ParseDate(raw string) (time.Time, error) {
	s := strings.Join(strings.Fields(raw), " ")
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", raw)
}
