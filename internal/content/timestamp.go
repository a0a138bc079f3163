package content

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

type timestampKind uint8

const (
	timeUnknown timestampKind = iota
	timeValid
	timeRaw
)

// Timestamp is a normalized point in time. It is either a comparable
// instant, a raw string that could not be parsed (kept so no data is lost,
// but not comparable), or unknown.
type Timestamp struct {
	kind timestampKind
	t    time.Time
	raw  string
}

// At returns a comparable timestamp for t, normalized to UTC.
func At(t time.Time) Timestamp {
	if t.IsZero() {
		return Timestamp{}
	}
	return Timestamp{kind: timeValid, t: t.UTC()}
}

// NormalizeTimestamp reconciles the encodings a store may hand back for
// "when": a native time, an ISO-8601 (or otherwise parseable) string, or
// nothing. Unparseable strings are preserved verbatim but flagged as not
// comparable. Anything else is unknown.
func NormalizeTimestamp(v any) Timestamp {
	switch tv := v.(type) {
	case nil:
		return Timestamp{}
	case Timestamp:
		return tv
	case time.Time:
		return At(tv)
	case *time.Time:
		if tv == nil {
			return Timestamp{}
		}
		return At(*tv)
	case string:
		return parseTimestamp(tv)
	case *string:
		if tv == nil {
			return Timestamp{}
		}
		return parseTimestamp(*tv)
	default:
		return Timestamp{}
	}
}

func parseTimestamp(s string) Timestamp {
	s = strings.TrimSpace(s)
	if s == "" {
		return Timestamp{}
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return At(t)
	}
	if t, err := dateparse.ParseIn(s, time.UTC); err == nil {
		return At(t)
	}
	return Timestamp{kind: timeRaw, raw: s}
}

// Known reports whether the timestamp is a comparable instant.
func (ts Timestamp) Known() bool { return ts.kind == timeValid }

// IsUnknown reports whether no time information is present at all.
func (ts Timestamp) IsUnknown() bool { return ts.kind == timeUnknown }

// Time returns the instant and whether it is comparable.
func (ts Timestamp) Time() (time.Time, bool) {
	return ts.t, ts.kind == timeValid
}

// String returns an RFC 3339 string, the preserved raw value, or "".
func (ts Timestamp) String() string {
	switch ts.kind {
	case timeValid:
		return ts.t.Format(time.RFC3339Nano)
	case timeRaw:
		return ts.raw
	default:
		return ""
	}
}

// Format renders a comparable timestamp with layout; raw values are
// returned as-is and unknown values as "".
func (ts Timestamp) Format(layout string) string {
	if ts.kind == timeValid {
		return ts.t.Format(layout)
	}
	return ts.String()
}

// Equal reports whether two timestamps carry the same value.
func (ts Timestamp) Equal(o Timestamp) bool {
	if ts.kind != o.kind {
		return false
	}
	switch ts.kind {
	case timeValid:
		return ts.t.Equal(o.t)
	case timeRaw:
		return ts.raw == o.raw
	default:
		return true
	}
}

// compareDesc orders a before b (negative) when a is more recent. Values
// that are not comparable sort after every comparable one.
func compareDesc(a, b Timestamp) int {
	switch {
	case a.Known() && b.Known():
		return b.t.Compare(a.t)
	case a.Known():
		return -1
	case b.Known():
		return 1
	default:
		return 0
	}
}

func (ts Timestamp) MarshalJSON() ([]byte, error) {
	if ts.kind == timeUnknown {
		return []byte("null"), nil
	}
	return json.Marshal(ts.String())
}

func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*ts = NormalizeTimestamp(v)
	return nil
}
