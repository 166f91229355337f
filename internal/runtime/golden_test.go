package runtime

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// goldenTest runs an .ink file and compares its output to a .expected file.
func goldenTest(t *testing.T, name string) {
	t.Helper()

	inkPath := filepath.Join("..", "..", "testdata", name+".ink")
	expectedPath := filepath.Join("..", "..", "testdata", name+".expected")

	source, err := os.ReadFile(inkPath)
	if err != nil {
		t.Fatalf("failed to read %s: %v", inkPath, err)
	}

	expected, err := os.ReadFile(expectedPath)
	if err != nil {
		t.Fatalf("failed to read %s: %v", expectedPath, err)
	}

	var buf bytes.Buffer
	interp := NewInterpreter(&buf)
	if _, err := interp.Run(parseOK(t, string(source))); err != nil {
		t.Fatalf("runtime error: %v", err)
	}

	expectedStr := strings.TrimRight(string(expected), "\n")
	gotStr := strings.TrimRight(buf.String(), "\n")

	if gotStr != expectedStr {
		expectedLines := strings.Split(expectedStr, "\n")
		gotLines := strings.Split(gotStr, "\n")

		t.Errorf("output mismatch for %s", name)
		maxLines := len(expectedLines)
		if len(gotLines) > maxLines {
			maxLines = len(gotLines)
		}
		for i := 0; i < maxLines; i++ {
			var exp, g string
			if i < len(expectedLines) {
				exp = expectedLines[i]
			} else {
				exp = "<missing>"
			}
			if i < len(gotLines) {
				g = gotLines[i]
			} else {
				g = "<missing>"
			}
			prefix := "  "
			if exp != g {
				prefix = "! "
			}
			t.Logf("%sline %d: expected=%q got=%q", prefix, i+1, exp, g)
		}
	}
}

func TestGoldenPatterns(t *testing.T) {
	goldenTest(t, "golden_patterns")
}

func TestGoldenSignals(t *testing.T) {
	goldenTest(t, "golden_signals")
}

func TestGoldenComprehensions(t *testing.T) {
	goldenTest(t, "golden_comprehensions")
}

func TestGoldenFunctions(t *testing.T) {
	goldenTest(t, "golden_functions")
}
