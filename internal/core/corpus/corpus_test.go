package corpus

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadParsesRecords(t *testing.T) {
	input := `{"item":{"utterance":"add two apples","expect_json":"{\"items\":[{\"item\":\"apples\",\"quantity\":2}]}"}}

{"item":{"utterance":"remove the milk","expect_json":"{\"items\":[{\"item\":\"milk\",\"quantity\":0,\"action\":\"remove\"}]}"}}
`

	cases, err := Load(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cases) != 2 {
		t.Fatalf("got %d cases, want 2", len(cases))
	}

	if cases[0].Utterance != "add two apples" {
		t.Errorf("utterance = %q", cases[0].Utterance)
	}
	if len(cases[0].Expected) != 1 || cases[0].Expected[0].Name != "apples" || cases[0].Expected[0].Quantity != 2 {
		t.Errorf("expected items = %+v", cases[0].Expected)
	}
	if cases[1].Expected[0].Action != "remove" {
		t.Errorf("action = %q, want remove", cases[1].Expected[0].Action)
	}
}

func TestLoadRejectsMalformedLine(t *testing.T) {
	input := `{"item":{"utterance":"ok","expect_json":"{\"items\":[]}"}}
{not json}
`
	_, err := Load(strings.NewReader(input))
	if err == nil {
		t.Fatal("expected an error for malformed line")
	}
	if !strings.Contains(err.Error(), "line 2") {
		t.Errorf("error = %v, want line number 2", err)
	}
}

func TestLoadRejectsBadExpectJSON(t *testing.T) {
	input := `{"item":{"utterance":"ok","expect_json":"not json"}}`
	_, err := Load(strings.NewReader(input))
	if err == nil || !strings.Contains(err.Error(), "expect_json") {
		t.Fatalf("error = %v, want expect_json parse failure", err)
	}
}

func TestLoadUsualGroceries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usual.txt")
	if err := os.WriteFile(path, []byte("oat milk\n\n  rye bread  \n"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := LoadUsualGroceries(path)
	if err != nil {
		t.Fatalf("LoadUsualGroceries: %v", err)
	}
	if got != "oat milk\nrye bread" {
		t.Errorf("got %q", got)
	}
}

func TestLoadUsualGroceriesEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usual.txt")
	if err := os.WriteFile(path, []byte("\n\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadUsualGroceries(path); err == nil {
		t.Fatal("expected an error for a file with no items")
	}
}

func TestDefaultUsualGroceriesNonEmpty(t *testing.T) {
	got := DefaultUsualGroceries()
	if !strings.Contains(got, "\n") {
		t.Errorf("default list should be newline-delimited, got %q", got)
	}
}
