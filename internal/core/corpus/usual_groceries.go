package corpus

import (
	"fmt"
	"os"
	"strings"
)

// defaultUsualGroceries is the built-in context list used when no custom
// file is supplied and the caller has not opted out of context entirely.
var defaultUsualGroceries = []string{
	"whole milk",
	"free-range eggs",
	"sourdough bread",
	"unsalted butter",
	"cheddar cheese",
	"greek yogurt",
	"bananas",
	"apples",
	"baby spinach",
	"cherry tomatoes",
	"chicken breast",
	"ground beef",
	"spaghetti",
	"basmati rice",
	"olive oil",
	"ground coffee",
	"orange juice",
	"dark chocolate",
}

// DefaultUsualGroceries returns the built-in list as newline-delimited text,
// the shape the oracle prompt expects.
func DefaultUsualGroceries() string {
	return strings.Join(defaultUsualGroceries, "\n")
}

// LoadUsualGroceries reads a custom usual-groceries file: one item per line,
// blank lines ignored.
func LoadUsualGroceries(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read usual groceries: %w", err)
	}

	var lines []string
	for _, line := range strings.Split(string(data), "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	if len(lines) == 0 {
		return "", fmt.Errorf("usual groceries file %s has no items", path)
	}
	return strings.Join(lines, "\n"), nil
}
