package document

import (
	"context"
	"testing"
)

type fixedDoc struct {
	rawPages []string
}

func (f fixedDoc) Source() string        { return "src" }
func (f fixedDoc) Text() string          { return "" }
func (f fixedDoc) RawPages() []string    { return f.rawPages }
func (f fixedDoc) Empty() bool           { return false }
func (f fixedDoc) Attrs() map[string]any { return nil }

type scriptedDateCaller struct {
	replies []map[string]any
	idx     int
}

func (c *scriptedDateCaller) Call(_ context.Context, _, _ string) (map[string]any, error) {
	if c.idx >= len(c.replies) {
		return map[string]any{}, nil
	}
	r := c.replies[c.idx]
	c.idx++
	return r, nil
}

func TestDateExtractor_Parse_TakesLatestValidDate(t *testing.T) {
	caller := &scriptedDateCaller{replies: []map[string]any{
		{"year": 2019.0, "month": 6.0, "day": 1.0},
		{"year": 2021.0, "month": 3.0, "day": 15.0},
	}}
	e := NewDateExtractor(caller)
	doc := fixedDoc{rawPages: []string{"page one text", "page two text"}}

	year, month, day, err := e.Parse(context.Background(), doc)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if year == nil || *year != 2021 {
		t.Errorf("year = %v, want 2021", year)
	}
	if month == nil || *month != 3 {
		t.Errorf("month = %v, want 3", month)
	}
	if day == nil || *day != 15 {
		t.Errorf("day = %v, want 15", day)
	}
}

func TestDateExtractor_Parse_NoRawPagesReturnsAllNil(t *testing.T) {
	e := NewDateExtractor(&scriptedDateCaller{})
	year, month, day, err := e.Parse(context.Background(), fixedDoc{})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if year != nil || month != nil || day != nil {
		t.Error("expected all nil with no raw pages")
	}
}

func TestDateExtractor_Parse_RejectsOutOfRangeValues(t *testing.T) {
	caller := &scriptedDateCaller{replies: []map[string]any{
		{"year": 1500.0, "month": 13.0, "day": 99.0},
	}}
	e := NewDateExtractor(caller)
	doc := fixedDoc{rawPages: []string{"page text"}}

	year, month, day, err := e.Parse(context.Background(), doc)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if year != nil || month != nil || day != nil {
		t.Error("expected all nil with out-of-range values")
	}
}

func TestParseDateElement_RejectsOverlongValue(t *testing.T) {
	replies := []map[string]any{{"year": 20215.0}}
	got := parseDateElement(replies, "year", 4, 2000, 1<<30)
	if got != nil {
		t.Errorf("expected nil for overlong value, got %v", *got)
	}
}
