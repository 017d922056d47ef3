package normalize

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/workbib/workbib/internal/work"
)

// InvalidDateError reports a malformed date-parts or year/month/day
// combination encountered during normalization.
type InvalidDateError struct {
	Value  any
	Reason string
}

func (e *InvalidDateError) Error() string {
	return fmt.Sprintf("invalid date %v: %s", e.Value, e.Reason)
}

// ParseDate derives a publication date from the shapes the pipeline
// encounters:
//
//   - a CrossRef "date_parts" document: {"date_parts": [[year, month, day]]}
//     with missing trailing components defaulting to 1;
//   - a map with scalar "year"/"month"/"day" fields (BibTeX path), month
//     and day defaulting to 1;
//   - a "YYYY-MM-DD" / "YYYY-MM" / "YYYY" string.
//
// A nil or empty value yields a zero date and no error. Anything else
// fails with *InvalidDateError.
func ParseDate(v any) (work.PublicationDate, error) {
	switch val := v.(type) {
	case nil:
		return work.PublicationDate{}, nil
	case work.PublicationDate:
		return val, nil
	case map[string]any:
		if parts, ok := val["date_parts"]; ok {
			return dateFromParts(parts)
		}
		return dateFromScalars(val)
	case string:
		if val == "" {
			return work.PublicationDate{}, nil
		}
		return dateFromString(val)
	default:
		return work.PublicationDate{}, &InvalidDateError{Value: v, Reason: "unsupported type"}
	}
}

// dateFromParts handles the nested [[year, month, day]] array form.
func dateFromParts(v any) (work.PublicationDate, error) {
	outer, ok := v.([]any)
	if !ok || len(outer) == 0 {
		return work.PublicationDate{}, &InvalidDateError{Value: v, Reason: "date_parts is not a non-empty array"}
	}

	inner, ok := outer[0].([]any)
	if !ok || len(inner) == 0 {
		return work.PublicationDate{}, &InvalidDateError{Value: v, Reason: "date_parts[0] is not a non-empty array"}
	}

	// Missing trailing components default to 1
	parts := [3]int{0, 1, 1}
	for i := 0; i < len(inner) && i < 3; i++ {
		n, err := toInt(inner[i])
		if err != nil {
			return work.PublicationDate{}, &InvalidDateError{Value: v, Reason: err.Error()}
		}
		parts[i] = n
	}

	return validDate(parts[0], parts[1], parts[2], v)
}

// dateFromScalars handles separate year/month/day fields.
func dateFromScalars(m map[string]any) (work.PublicationDate, error) {
	yv, ok := m["year"]
	if !ok || yv == nil || yv == "" {
		return work.PublicationDate{}, nil
	}
	year, err := toInt(yv)
	if err != nil {
		return work.PublicationDate{}, &InvalidDateError{Value: m, Reason: "year: " + err.Error()}
	}

	month, day := 1, 1
	if mv, ok := m["month"]; ok && mv != nil && mv != "" {
		if month, err = toInt(mv); err != nil {
			return work.PublicationDate{}, &InvalidDateError{Value: m, Reason: "month: " + err.Error()}
		}
	}
	if dv, ok := m["day"]; ok && dv != nil && dv != "" {
		if day, err = toInt(dv); err != nil {
			return work.PublicationDate{}, &InvalidDateError{Value: m, Reason: "day: " + err.Error()}
		}
	}

	return validDate(year, month, day, m)
}

func dateFromString(s string) (work.PublicationDate, error) {
	for _, layout := range []string{"2006-01-02", "2006-01", "2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return work.PublicationDate{Year: t.Year(), Month: int(t.Month()), Day: t.Day()}, nil
		}
	}
	return work.PublicationDate{}, &InvalidDateError{Value: s, Reason: "unrecognized date string"}
}

// validDate rejects combinations time.Date would silently normalize
// (e.g. month 13 rolling into the next year).
func validDate(year, month, day int, orig any) (work.PublicationDate, error) {
	if year <= 0 {
		return work.PublicationDate{}, &InvalidDateError{Value: orig, Reason: "year out of range"}
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return work.PublicationDate{}, &InvalidDateError{Value: orig, Reason: "month or day out of range"}
	}
	return work.PublicationDate{Year: year, Month: month, Day: day}, nil
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("%v is not an integer", n)
		}
		return int(n), nil
	case json.Number:
		i, err := n.Int64()
		return int(i), err
	case string:
		return strconv.Atoi(n)
	default:
		return 0, fmt.Errorf("cannot convert %T to int", v)
	}
}
