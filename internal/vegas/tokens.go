package vegas

import "slices"

var tokens = []string{
	"dice",
	"chip",
	"cards",
	"slot",
	"showgirl",
	"elvis",
	"cadillac",
	"flamingo",
}

// Tokens lists the selectable game pieces.
func Tokens() []string {
	return slices.Clone(tokens)
}

func ValidToken(name string) bool {
	return slices.Contains(tokens, name)
}
