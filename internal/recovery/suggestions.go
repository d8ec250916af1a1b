package recovery

import "math/rand/v2"

var suggestions = map[int][]string{
	5: {
		"Stand up and stretch your arms and shoulders",
		"Look at something 20 feet away for 20 seconds",
		"Take five slow, deep breaths",
		"Refill your water glass",
		"Roll your neck and wrists",
	},
	10: {
		"Take a short walk around the block",
		"Do a quick body-scan meditation",
		"Step outside for some fresh air",
		"Make a cup of tea away from your desk",
	},
	15: {
		"Go for a brisk walk",
		"Do a light yoga flow",
		"Have a healthy snack without screens",
		"Call or chat with a friend",
	},
	20: {
		"Take a power nap",
		"Go for a longer walk outside",
		"Do a full stretching routine",
		"Read a few pages of a book",
	},
}

// Suggestions returns the activity table for a break length. Unknown lengths
// fall back to the five-minute bucket.
func Suggestions(breakMinutes int) []string {
	if s, ok := suggestions[breakMinutes]; ok {
		return s
	}
	return suggestions[5]
}

// SuggestionForDuration picks an activity for the break at random.
func SuggestionForDuration(breakMinutes int) string {
	s := Suggestions(breakMinutes)
	return s[rand.IntN(len(s))]
}
