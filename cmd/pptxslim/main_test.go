package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wudi/pptxkit/archive"
	"github.com/wudi/pptxkit/pptxtest"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("pptxslim %s: %v\n%s", strings.Join(args, " "), err, out.String())
	}
	return out.String()
}

func writeDeck(t *testing.T) string {
	t.Helper()
	p := pptxtest.Basic(2)
	m := p.AddMaster()
	p.AddLayout(m)
	in := filepath.Join(t.TempDir(), "deck.pptx")
	if err := os.WriteFile(in, p.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return in
}

func TestOptimizeCommand(t *testing.T) {
	in := writeDeck(t)
	out := filepath.Join(filepath.Dir(in), "small.pptx")

	stdout := execute(t, "optimize", in, "-o", out, "--policy", "keep")

	if !strings.Contains(stdout, "small.pptx") {
		t.Errorf("summary does not name the output: %q", stdout)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	a, err := archive.Decode(data)
	if err != nil {
		t.Fatalf("output is not a package: %v", err)
	}
	if a.Has("ppt/slideMasters/slideMaster2.xml") {
		t.Errorf("unused master survived")
	}
}

func TestInspectCommandJSON(t *testing.T) {
	in := writeDeck(t)

	stdout := execute(t, "inspect", in, "--json")

	var report struct {
		Parts  int
		Unused map[string][]string
	}
	if err := json.Unmarshal([]byte(stdout), &report); err != nil {
		t.Fatalf("decode %q: %v", stdout, err)
	}
	if got := report.Unused["master"]; len(got) != 1 {
		t.Errorf("unused masters = %v", got)
	}
}

func TestVersionCommand(t *testing.T) {
	if out := execute(t, "version"); !strings.HasPrefix(out, "pptxslim ") {
		t.Errorf("version output %q", out)
	}
}
