package document

import (
	"context"
	"fmt"

	"github.com/NREL/elm-sub000/internal/validate"
)

// DateSystemMessage is the structured prompt used to pull the latest
// enactment date out of a document's raw pages.
const DateSystemMessage = "You are a legal scholar that reads ordinance " +
	"text and extracts structured date information. Return your answer " +
	"in JSON format (not markdown). Your JSON file must include exactly " +
	"four keys. The first key is 'explanation', which contains a short " +
	"summary of the most relevant date information you found in the " +
	"text. The second key is 'year', which should contain an integer " +
	"value that represents the latest year this ordinance was " +
	"enacted/updated, or null if that information cannot be found in " +
	"the text. The third key is 'month', which should contain an " +
	"integer value that represents the latest month of the year this " +
	"ordinance was enacted/updated, or null if that information cannot " +
	"be found in the text. The fourth key is 'day', which should " +
	"contain an integer value that represents the latest day of the " +
	"month this ordinance was enacted/updated, or null if that " +
	"information cannot be found in the text."

// DateExtractor pulls the latest enactment date mentioned anywhere across
// a document's raw pages, one structured query per page.
type DateExtractor struct {
	Caller validate.StructuredCaller
}

// NewDateExtractor builds a DateExtractor using caller for the per-page
// structured date queries.
func NewDateExtractor(caller validate.StructuredCaller) *DateExtractor {
	return &DateExtractor{Caller: caller}
}

// Parse extracts year, month, day from doc's raw pages. Each return value
// is nil if that component was never found in a valid, correctly-sized
// range on any page.
func (e *DateExtractor) Parse(ctx context.Context, doc Document) (year, month, day *int, err error) {
	pages := doc.RawPages()
	if len(pages) == 0 {
		return nil, nil, nil, nil
	}

	var replies []map[string]any
	for _, text := range pages {
		if text == "" {
			continue
		}
		props, callErr := e.Caller.Call(ctx, DateSystemMessage, "Please extract the date for this ordinance:\n"+text)
		if callErr != nil {
			return nil, nil, nil, fmt.Errorf("document: date extraction: %w", callErr)
		}
		if len(props) == 0 {
			continue
		}
		replies = append(replies, props)
	}

	year = parseDateElement(replies, "year", 4, 2000, 1<<30)
	month = parseDateElement(replies, "month", 2, 1, 12)
	day = parseDateElement(replies, "day", 2, 1, 31)
	return year, month, day, nil
}

// parseDateElement reduces every reply's value for key to the maximum
// integer that fits within maxLen decimal digits and the [minVal, maxVal]
// range, or nil if no reply had a qualifying value. nil stands in for the
// "-inf sentinel" the value was reduced from: there is no valid year,
// month, or day that is ever negative, so a missing pointer is
// unambiguous in a way a sentinel integer would not be.
func parseDateElement(replies []map[string]any, key string, maxLen, minVal, maxVal int) *int {
	best := 0
	found := false
	for _, props := range replies {
		raw, ok := props[key]
		if !ok || raw == nil {
			continue
		}
		n, ok := numberProp(raw)
		if !ok {
			continue
		}
		if len(fmt.Sprintf("%d", n)) > maxLen {
			continue
		}
		if n < minVal || n > maxVal {
			continue
		}
		if !found || n > best {
			best = n
			found = true
		}
	}
	if !found {
		return nil
	}
	return &best
}

func numberProp(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case string:
		var i int
		if _, err := fmt.Sscanf(n, "%d", &i); err == nil {
			return i, true
		}
	}
	return 0, false
}
