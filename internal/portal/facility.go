package portal

import (
	"fmt"
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Facility is one entry of the consulate facility dropdown.
type Facility struct {
	Value string
	City  string
}

// ParseFacilities extracts the facility options from the outer html of
// the facility <select>. Options without a value (placeholders) are
// skipped.
func ParseFacilities(selectHTML string) ([]Facility, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(selectHTML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse facility select: %w", err)
	}

	var facilities []Facility
	doc.Find("option").Each(func(i int, s *goquery.Selection) {
		value, _ := s.Attr("value")
		city := strings.TrimSpace(s.Text())
		if value == "" || city == "" {
			return
		}
		facilities = append(facilities, Facility{Value: value, City: city})
	})
	return facilities, nil
}

// FilterPreferred keeps the facilities whose city is in the preferred
// list, preserving dropdown order.
func FilterPreferred(facilities []Facility, preferred []string) []Facility {
	var matched []Facility
	for _, f := range facilities {
		if slices.Contains(preferred, f.City) {
			matched = append(matched, f)
		}
	}
	return matched
}
