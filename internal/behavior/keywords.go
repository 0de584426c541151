package behavior

import "strings"

// keywordRule maps a persona to the substrings that count as evidence for it.
type keywordRule struct {
	persona  string
	keywords []string
}

// independentRules are each evaluated on every interaction.
var independentRules = []keywordRule{
	{Foodie, []string{"restaurant", "food", "eat", "cuisine", "chef", "menu", "taste", "delicious", "recipe"}},
	{Romantic, []string{"romantic", "date", "couple", "intimate", "sunset", "wine", "cozy", "candlelit"}},
	{Explorer, []string{"adventure", "explore", "hidden", "off beaten", "unique", "discover", "outdoor", "hike"}},
	{Cultural, []string{"museum", "history", "art", "culture", "heritage", "traditional", "local customs"}},
}

// priceRules are mutually exclusive: the first match wins and the rest are skipped.
var priceRules = []keywordRule{
	{Budget, []string{"cheap", "budget", "affordable", "free", "inexpensive", "deal", "discount"}},
	{Luxury, []string{"luxury", "expensive", "premium", "upscale", "fine dining", "high-end"}},
}

// matchPersonas returns the personas whose keyword sets match text, in
// evaluation order. Each persona appears at most once.
func matchPersonas(text string) []string {
	text = strings.ToLower(text)

	var matched []string
	for _, r := range independentRules {
		if r.matches(text) {
			matched = append(matched, r.persona)
		}
	}
	for _, r := range priceRules {
		if r.matches(text) {
			matched = append(matched, r.persona)
			break
		}
	}
	return matched
}

func (r keywordRule) matches(text string) bool {
	for _, kw := range r.keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// bucketForHour maps a wall-clock hour to a timing bucket.
func bucketForHour(hour int) string {
	switch {
	case hour < 12:
		return Morning
	case hour < 17:
		return Afternoon
	default:
		return Evening
	}
}
