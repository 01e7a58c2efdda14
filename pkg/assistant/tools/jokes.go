package tools

import "strings"

// Canned jokes by category so the tool works offline.
var jokeCategories = map[string][]string{
	"neutral": {
		"Why do programmers prefer dark mode? Because light attracts bugs.",
		"There are only two hard things in computer science: cache invalidation, naming things, and off-by-one errors.",
		"A SQL query walks into a bar, walks up to two tables and asks: can I join you?",
		"Why do Java developers wear glasses? Because they don't C#.",
		"I would tell you a UDP joke, but you might not get it.",
		"How many programmers does it take to change a light bulb? None, that's a hardware problem.",
		"!false. It's funny because it's true.",
		"A programmer's partner says: while you're out, buy some milk. The programmer never returns.",
	},
	"chuck": {
		"Chuck Norris writes code that optimizes itself.",
		"Chuck Norris can unit test an entire application with a single assert.",
		"Chuck Norris doesn't use a debugger, the bugs confess on their own.",
		"Chuck Norris's keyboard has no Ctrl key because nothing controls Chuck Norris.",
		"Chuck Norris can compile syntax errors.",
	},
	"twister": {
		"She sells seashells by the seashore.",
		"Peter Piper picked a peck of pickled peppers.",
		"How much wood would a woodchuck chuck if a woodchuck could chuck wood?",
		"Red lorry, yellow lorry, red lorry, yellow lorry.",
	},
}

// jokesForCategory maps the friendly category names onto the canned lists.
// Unknown categories and "programming" fall back to neutral, "all" unions
// everything.
func jokesForCategory(category string) []string {
	switch strings.ToLower(category) {
	case "chuck":
		return jokeCategories["chuck"]
	case "twister":
		return jokeCategories["twister"]
	case "all":
		var all []string
		all = append(all, jokeCategories["neutral"]...)
		all = append(all, jokeCategories["chuck"]...)
		all = append(all, jokeCategories["twister"]...)
		return all
	default:
		return jokeCategories["neutral"]
	}
}
