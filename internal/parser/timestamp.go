package parser

import (
	"net/mail"
	"strings"
	"time"

	"github.com/ncruces/go-strftime"
	"github.com/pkg/errors"

	"github.com/coffersTech/photon/internal/config"
	"github.com/coffersTech/photon/internal/model"
)

// Well-known timestamp formats.
const (
	FormatRFC2822 = "rfc2822"
	FormatRFC3339 = "rfc3339"
	FormatISO8601 = "iso8601"
)

var (
	iso8601Layouts = []string{
		"2006-01-02T15:04:05.999999999Z07:00",
		"2006-01-02T15:04:05.999999999Z0700",
		"2006-01-02T15:04:05.999999999Z07",
		"2006-01-02T15:04Z07:00",
		"2006-01-02 15:04:05.999999999Z07:00",
		"20060102T150405.999999999Z0700",
	}
	iso8601LocalLayouts = []string{
		"2006-01-02T15:04:05.999999999",
		"2006-01-02T15:04",
		"2006-01-02 15:04:05.999999999",
		"20060102T150405.999999999",
		"2006-01-02",
	}
)

// Timestamp coerces a string into a timestamp.
type Timestamp struct {
	noChildren

	format    string
	layouts   []string
	rfc2822   bool
	assumeUTC bool
}

// NewTimestamp compiles format, which is one of the well-known names, a
// strftime pattern (anything containing '%') or a Go reference layout.
// With assumeUTC, inputs without an offset are read as UTC; otherwise they
// do not parse.
func NewTimestamp(format string, assumeUTC bool) (*Timestamp, error) {
	ts := &Timestamp{format: format, assumeUTC: assumeUTC}

	switch strings.ToLower(format) {
	case FormatRFC2822:
		ts.rfc2822 = true
	case "", FormatRFC3339:
		ts.layouts = []string{time.RFC3339Nano}
		if assumeUTC {
			ts.layouts = append(ts.layouts, "2006-01-02T15:04:05.999999999")
		}
	case FormatISO8601:
		ts.layouts = iso8601Layouts
		if assumeUTC {
			ts.layouts = append(append([]string(nil), iso8601Layouts...), iso8601LocalLayouts...)
		}
	default:
		layout := format
		if strings.Contains(format, "%") {
			var err error
			layout, err = strftime.Layout(format)
			if err != nil {
				return nil, errors.Wrapf(err, "invalid timestamp format %q", format)
			}
		}
		if time.Unix(0, 0).UTC().Format(layout) == layout {
			return nil, errors.Errorf("timestamp format %q has no date or time fields", format)
		}
		if !hasZone(layout) && !assumeUTC {
			return nil, errors.Errorf("timestamp format %q has no offset, set assume_utc to read it as UTC", format)
		}
		ts.layouts = []string{layout}
	}
	return ts, nil
}

func hasZone(layout string) bool {
	for _, z := range []string{"Z07", "-07", "MST"} {
		if strings.Contains(layout, z) {
			return true
		}
	}
	return false
}

func (t *Timestamp) Kind() string { return config.ParserTimestamp }

func (t *Timestamp) Type() model.FieldType { return model.FieldTimestamp }

func (t *Timestamp) Instance() Instance { return t }

// Parse replaces a String input with a Timestamp. Inputs that do not parse
// are left as they are.
func (t *Timestamp) Parse(_ *model.Arena, input *model.Value) []model.Value {
	s, ok := input.Str()
	if !ok {
		return nil
	}
	if parsed, ok := t.parse(s); ok {
		*input = model.Timestamp(parsed)
	}
	return nil
}

func (t *Timestamp) parse(s string) (time.Time, bool) {
	if t.rfc2822 {
		parsed, err := mail.ParseDate(s)
		return parsed, err == nil
	}
	for _, layout := range t.layouts {
		var (
			parsed time.Time
			err    error
		)
		if t.assumeUTC {
			parsed, err = time.ParseInLocation(layout, s, time.UTC)
		} else {
			parsed, err = time.Parse(layout, s)
		}
		if err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}
