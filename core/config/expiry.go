package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const day = 24 * time.Hour

// Expiry is an age threshold for garbage collection. An Expiry that never
// fires disables collection for its class of records. The zero value is
// unset and never fires.
type Expiry struct {
	age   time.Duration
	never bool
	set   bool
}

// Never returns an Expiry that never fires.
func Never() Expiry {
	return Expiry{never: true, set: true}
}

// After returns an Expiry firing once a record is older than d.
func After(d time.Duration) Expiry {
	if d < 0 {
		return Never()
	}
	return Expiry{age: d, set: true}
}

// Days returns an Expiry of n days.
func Days(n int) Expiry {
	return After(time.Duration(n) * day)
}

// IsZero reports whether the expiry was never set.
func (e Expiry) IsZero() bool {
	return !e.set
}

// IsNever reports whether the expiry is disabled.
func (e Expiry) IsNever() bool {
	return e.never || !e.set
}

// Age returns the threshold. It is meaningless when IsNever is true.
func (e Expiry) Age() time.Duration {
	return e.age
}

// Cutoff returns the time at or before which records expire, relative to now.
func (e Expiry) Cutoff(now time.Time) (time.Time, bool) {
	if e.IsNever() {
		return time.Time{}, false
	}
	return now.Add(-e.age), true
}

// Expired reports whether a record last used at lastUsed is past the
// threshold at now.
func (e Expiry) Expired(lastUsed, now time.Time) bool {
	cutoff, ok := e.Cutoff(now)
	return ok && !lastUsed.After(cutoff)
}

func (e Expiry) String() string {
	switch {
	case e.IsNever():
		return "never"
	case e.age == 0:
		return "now"
	case e.age%day == 0:
		return strconv.FormatInt(int64(e.age/day), 10) + ".days.ago"
	default:
		return e.age.String()
	}
}

// ParseExpiry accepts "never", "now", a day count ("30", "30d",
// "30.days.ago"), a week count ("2.weeks.ago") or a Go duration ("36h").
func ParseExpiry(s string) (Expiry, error) {
	v := strings.ToLower(strings.TrimSpace(s))

	switch v {
	case "never", "false":
		return Never(), nil
	case "now", "all":
		return After(0), nil
	case "":
		return Expiry{}, fmt.Errorf("empty expiry")
	}

	if n, err := strconv.Atoi(v); err == nil {
		return Days(n), nil
	}
	if num, ok := strings.CutSuffix(v, "d"); ok {
		if n, err := strconv.Atoi(num); err == nil {
			return Days(n), nil
		}
	}
	if rest, ok := strings.CutSuffix(v, ".ago"); ok {
		if e, ok := parseApprox(rest); ok {
			return e, nil
		}
	}

	d, err := time.ParseDuration(v)
	if err != nil {
		return Expiry{}, fmt.Errorf("invalid expiry %q", s)
	}
	return After(d), nil
}

func parseApprox(s string) (Expiry, bool) {
	num, unit, ok := strings.Cut(s, ".")
	if !ok {
		return Expiry{}, false
	}
	n, err := strconv.Atoi(num)
	if err != nil {
		return Expiry{}, false
	}

	switch strings.TrimSuffix(unit, "s") {
	case "hour":
		return After(time.Duration(n) * time.Hour), true
	case "day":
		return Days(n), true
	case "week":
		return Days(7 * n), true
	default:
		return Expiry{}, false
	}
}

// UnmarshalYAML accepts any form ParseExpiry does, including bare integers.
func (e *Expiry) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expiry must be a scalar", value.Line)
	}

	parsed, err := ParseExpiry(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*e = parsed
	return nil
}

// MarshalYAML renders the expiry in a form UnmarshalYAML accepts.
func (e Expiry) MarshalYAML() (any, error) {
	return e.String(), nil
}
