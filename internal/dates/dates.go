// Package dates parses the deadlines users type on the command line.
package dates

import (
	"fmt"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"

	"github.com/seniorcare/opscentre/internal/schema"
)

var parser = newParser()

func newParser() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}

// ParseDeadline accepts a YYYY-MM-DD date or natural language such as
// "tomorrow", "next friday" or "in 3 days", resolved against now. The
// result is the calendar date at midnight UTC.
func ParseDeadline(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("deadline cannot be empty")
	}
	if d, err := schema.ParseDate(s); err == nil {
		return d, nil
	}
	if strings.EqualFold(s, "today") {
		return schema.Day(now), nil
	}

	r, err := parser.Parse(s, now)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid deadline %q: %w", s, err)
	}
	if r == nil {
		return time.Time{}, fmt.Errorf("invalid deadline %q: use YYYY-MM-DD or a phrase like \"next friday\"", s)
	}
	return schema.Day(r.Time), nil
}
