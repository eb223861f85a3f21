package encode

import (
	"fmt"
	"time"
)

// dateLayouts are the accepted date formats, tried in order
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
}

// parseDate parses a raw cell into a time. time.Time values pass through.
func parseDate(value any) (time.Time, error) {
	switch v := value.(type) {
	case time.Time:
		return v, nil
	case string:
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, v); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("unrecognized date format %q", v)
	default:
		return time.Time{}, fmt.Errorf("unsupported date value %T", value)
	}
}
