package repository

import (
	"encoding/json"
	"fmt"
	"time"
)

// jsonColumn decodes a JSON text column into dst. SQL NULL, empty text and
// JSON null leave dst untouched.
type jsonColumn struct{ dst any }

func (c jsonColumn) Scan(src any) error {
	var b []byte
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("json column: unsupported type %T", src)
	}
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	return json.Unmarshal(b, c.dst)
}

func encodeJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// timeLayouts are the text forms SQLite drivers may hand back.
var timeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// timeColumn scans native times and their text forms.
type timeColumn struct {
	t     time.Time
	valid bool
}

func (c *timeColumn) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		c.valid = false
		return nil
	case time.Time:
		c.t, c.valid = v.UTC(), true
		return nil
	case []byte:
		return c.parse(string(v))
	case string:
		return c.parse(v)
	}
	return fmt.Errorf("time column: unsupported type %T", src)
}

func (c *timeColumn) parse(s string) error {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			c.t, c.valid = t.UTC(), true
			return nil
		}
	}
	return fmt.Errorf("time column: cannot parse %q", s)
}

func (c *timeColumn) ptr() *time.Time {
	if !c.valid {
		return nil
	}
	t := c.t
	return &t
}

// dbTime normalizes t to the precision both drivers keep.
func dbTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func dbTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return dbTime(*t)
}
