// Package langmap resolves traveler locations to the local language the
// live translation session should target.
package langmap

import (
	"strings"

	"golang.org/x/text/language"
)

// Entry describes the dominant local language for a city.
type Entry struct {
	Language string
	Script   string
	Tag      language.Tag // primary BCP-47 tag
}

var cities = map[string]Entry{
	// Hindi belt
	"Delhi":    {"Hindi", "Devanagari", language.Hindi},
	"Jaipur":   {"Hindi", "Devanagari", language.Hindi},
	"Varanasi": {"Hindi", "Devanagari", language.Hindi},
	"Lucknow":  {"Hindi", "Devanagari", language.Hindi},
	"Agra":     {"Hindi", "Devanagari", language.Hindi},

	// South India
	"Bangalore":  {"Kannada", "Kannada", language.Kannada},
	"Mysore":     {"Kannada", "Kannada", language.Kannada},
	"Chennai":    {"Tamil", "Tamil", language.Tamil},
	"Madurai":    {"Tamil", "Tamil", language.Tamil},
	"Kochi":      {"Malayalam", "Malayalam", language.Malayalam},
	"Trivandrum": {"Malayalam", "Malayalam", language.Malayalam},
	"Hyderabad":  {"Telugu", "Telugu", language.Telugu},

	// West India
	"Mumbai":    {"Hindi/Marathi", "Devanagari", language.Hindi},
	"Pune":      {"Marathi", "Devanagari", language.Marathi},
	"Ahmedabad": {"Gujarati", "Gujarati", language.Gujarati},
	"Goa":       {"Konkani/English", "Devanagari", language.English},

	// East India
	"Kolkata": {"Bengali", "Bengali", language.Bengali},

	// North India
	"Amritsar":   {"Punjabi", "Gurmukhi", language.Punjabi},
	"Chandigarh": {"Punjabi/Hindi", "Gurmukhi/Devanagari", language.Punjabi},
}

// Common alternate names, lowercase → canonical key.
var aliases = map[string]string{
	"bengaluru":          "Bangalore",
	"bombay":             "Mumbai",
	"calcutta":           "Kolkata",
	"thiruvananthapuram": "Trivandrum",
	"new delhi":          "Delhi",
	"madras":             "Chennai",
	"kochin":             "Kochi",
	"cochin":             "Kochi",
	"poona":              "Pune",
	"ernakulam":          "Kochi",
	"gurugram":           "Delhi",
	"gurgaon":            "Delhi",
	"noida":              "Delhi",
	"navi mumbai":        "Mumbai",
	"thane":              "Mumbai",
	"secunderabad":       "Hyderabad",
	"mysuru":             "Mysore",
}

// Default is the fallback when a location cannot be resolved.
var Default = Entry{"Hindi", "Devanagari", language.Hindi}

// Cities returns the canonical city names with a known language.
func Cities() []string {
	out := make([]string, 0, len(cities))
	for city := range cities {
		out = append(out, city)
	}
	return out
}

// Lookup returns the entry for a canonical city name, or Default.
func Lookup(city string) Entry {
	if e, ok := cities[city]; ok {
		return e
	}
	return Default
}

// Resolve maps raw location input (from geocoding or user text) to a
// canonical city. Tries exact match, then aliases, then substring match.
func Resolve(raw string) (city string, entry Entry, ok bool) {
	input := strings.ToLower(strings.TrimSpace(raw))
	if input == "" {
		return "", Entry{}, false
	}

	for name, e := range cities {
		if strings.ToLower(name) == input {
			return name, e, true
		}
	}

	if canonical, found := aliases[input]; found {
		return canonical, cities[canonical], true
	}

	for name, e := range cities {
		lower := strings.ToLower(name)
		if strings.Contains(input, lower) || strings.Contains(lower, input) {
			return name, e, true
		}
	}

	return "", Entry{}, false
}
