package source

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// Amount decodes numbers, numeric strings and formatted values such as
// "$12,500". Anything else decodes to absent.
type Amount struct{ Value *float64 }

func (a *Amount) UnmarshalJSON(b []byte) error {
	a.Value = nil
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	var n float64
	if err := json.Unmarshal(b, &n); err == nil {
		a.Value = validAmount(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		a.Value = ParseAmount(s)
	}
	return nil
}

// ParseAmount extracts a non-negative amount from free text.
func ParseAmount(s string) *float64 {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "USD")
	s = strings.NewReplacer("$", "", ",", "", " ", "").Replace(s)
	if s == "" {
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return validAmount(n)
}

func validAmount(n float64) *float64 {
	if n < 0 || math.IsNaN(n) || math.IsInf(n, 0) {
		return nil
	}
	return &n
}

// Date decodes any date layout dateparse understands. Unparseable or empty
// values decode to absent.
type Date struct{ Value *time.Time }

func (d *Date) UnmarshalJSON(b []byte) error {
	d.Value = nil
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return nil
	}
	d.Value = ParseDeadline(s)
	return nil
}

// ParseDeadline parses s as a calendar date in UTC.
func ParseDeadline(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return nil
	}
	t = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return &t
}

// List decodes a JSON array of strings or a comma separated string.
type List []string

func (l *List) UnmarshalJSON(b []byte) error {
	*l = nil
	var arr []any
	if err := json.Unmarshal(b, &arr); err == nil {
		for _, v := range arr {
			if s, ok := v.(string); ok {
				*l = append(*l, s)
			}
		}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil && strings.TrimSpace(s) != "" {
		for _, part := range strings.Split(s, ",") {
			*l = append(*l, strings.TrimSpace(part))
		}
	}
	return nil
}

// Grade decodes an integer grade from a number or numeric string.
type Grade int

func (g *Grade) UnmarshalJSON(b []byte) error {
	*g = 0
	var n float64
	if err := json.Unmarshal(b, &n); err == nil {
		if n > 0 && n < 100 {
			*g = Grade(n)
		}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		if v, err := strconv.Atoi(strings.TrimSpace(s)); err == nil && v > 0 && v < 100 {
			*g = Grade(v)
		}
	}
	return nil
}
