package notion

import (
	"context"
	"time"
)

// Property is the normalized shape of one Notion page property. The external
// adapter collapses the provider's polymorphic property variants (status,
// select, multi_select, title, rich_text, date) into this canonical form so
// the rest of the system never touches the wire format.
type Property struct {
	Type    string
	Date    *DateValue
	Options []string
	Text    string
}

type DateValue struct {
	Start string
	End   string
}

type Row struct {
	ID         string
	Properties map[string]Property
}

type Query struct {
	DateProperty  string
	DateOnOrAfter string
	TitleProperty string
	TitleEquals   string
	PageSize      int
	SortLatest    bool
}

type Client interface {
	QueryDatabase(ctx context.Context, databaseID string, q Query) ([]Row, error)
	UpdatePageDate(ctx context.Context, pageID, dateProperty string, start, end time.Time) error
}

// Date returns the named date property, falling back to the first date-typed
// property when the name does not match. Schedule rows in the wild do not
// always use the configured property name.
func (r Row) Date(name string) (DateValue, bool) {
	if p, ok := r.Properties[name]; ok && p.Type == "date" && p.Date != nil {
		return *p.Date, true
	}
	for _, p := range r.Properties {
		if p.Type == "date" && p.Date != nil {
			return *p.Date, true
		}
	}
	return DateValue{}, false
}

func (r Row) MultiSelect(name string) []string {
	if p, ok := r.Properties[name]; ok && p.Type == "multi_select" {
		return p.Options
	}
	return nil
}

// StatusNames returns the labels of the named status-like property, falling
// back to the first status, select or multi_select property on the row.
func (r Row) StatusNames(name string) []string {
	if p, ok := r.Properties[name]; ok && isStatusType(p.Type) {
		return p.Options
	}
	for _, p := range r.Properties {
		if isStatusType(p.Type) {
			return p.Options
		}
	}
	return nil
}

func isStatusType(t string) bool {
	return t == "status" || t == "select" || t == "multi_select"
}

// Relation returns the linked page ids of the named relation property. The
// second result is false when the property is absent or not relation-typed.
func (r Row) Relation(name string) ([]string, bool) {
	p, ok := r.Properties[name]
	if !ok || p.Type != "relation" {
		return nil, false
	}
	return p.Options, true
}

// PlainText returns the first non-empty title/rich_text content among the
// named properties.
func (r Row) PlainText(names ...string) string {
	for _, name := range names {
		p, ok := r.Properties[name]
		if !ok {
			continue
		}
		if (p.Type == "title" || p.Type == "rich_text") && p.Text != "" {
			return p.Text
		}
	}
	return ""
}

const (
	isoDateTimeLayout = "2006-01-02T15:04:05"
	isoDateLayout     = "2006-01-02"
)

// ParseTime parses a provider ISO-8601 timestamp. Timestamps without a UTC
// offset are interpreted in loc, per the provider contract.
func ParseTime(value string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(isoDateTimeLayout, value, loc); err == nil {
		return t, nil
	}
	return time.ParseInLocation(isoDateLayout, value, loc)
}
