// Package corpus loads the batch-evaluation test corpus: newline-delimited
// JSON test cases plus the usual-groceries context list passed to the oracle.
package corpus

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/CartMateCo/grocery-service/internal/core/grocery"
)

// TestCase is one labeled utterance: the raw user text and the grocery list
// a correct extraction should produce.
type TestCase struct {
	Utterance string
	Expected  []grocery.GroceryItem
}

// Record lines carry the expected list as a JSON-encoded string, not an
// inline object, so labelers can paste extractor output verbatim.
type record struct {
	Item struct {
		Utterance  string `json:"utterance"`
		ExpectJSON string `json:"expect_json"`
	} `json:"item"`
}

type expectedList struct {
	Items []grocery.GroceryItem `json:"items"`
}

// Load reads newline-delimited JSON test cases. Blank lines are skipped; a
// malformed line is an error naming its line number.
func Load(r io.Reader) ([]TestCase, error) {
	var cases []TestCase

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		var rec record
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			return nil, fmt.Errorf("parse corpus line %d: %w", line, err)
		}
		if rec.Item.Utterance == "" {
			return nil, fmt.Errorf("parse corpus line %d: empty utterance", line)
		}

		var expected expectedList
		if err := json.Unmarshal([]byte(rec.Item.ExpectJSON), &expected); err != nil {
			return nil, fmt.Errorf("parse corpus line %d expect_json: %w", line, err)
		}

		cases = append(cases, TestCase{
			Utterance: rec.Item.Utterance,
			Expected:  expected.Items,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read corpus: %w", err)
	}

	return cases, nil
}

// LoadFile reads a corpus file from disk.
func LoadFile(path string) ([]TestCase, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open corpus: %w", err)
	}
	defer f.Close()
	return Load(f)
}
