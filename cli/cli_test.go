package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestResolveOutput(t *testing.T) {
	cases := []struct {
		format, output         string
		wantFormat, wantOutput string
	}{
		{"", "", "svg", "friends.svg"},
		{"", "-", "ascii", "-"},
		{"", "out/graph.PNG", "png", "out/graph.PNG"},
		{"dot", "", "dot", "friends.dot"},
		{"json", "x.txt", "json", "x.txt"},
	}
	for _, c := range cases {
		f, o := resolveOutput(c.format, c.output)
		if f != c.wantFormat || o != c.wantOutput {
			t.Errorf("resolveOutput(%q, %q) = %q, %q; want %q, %q",
				c.format, c.output, f, o, c.wantFormat, c.wantOutput)
		}
	}
}

func TestLayoutCommand(t *testing.T) {
	dir := t.TempDir()
	feed := filepath.Join(dir, "friends.csv")
	if err := os.WriteFile(feed, []byte("2010,Ada,Ben,Cy\n2015,Cy,Dee\n"), 0644); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(dir, "friends.svg")

	var stderr bytes.Buffer
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs([]string{"layout", feed, "-o", out, "--steps", "200"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	if err := Execute(); err != nil {
		t.Fatalf("layout: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !strings.Contains(string(data), "<svg") {
		t.Error("output is not SVG")
	}
	if n := strings.Count(string(data), "<line"); n != 4 {
		t.Errorf("got %d edges drawn, want 4", n)
	}
	if !strings.Contains(stderr.String(), "4 people, 4 friendships") {
		t.Errorf("summary = %q", stderr.String())
	}
}

func TestLayoutRejectsUnknownFormat(t *testing.T) {
	rootCmd.SetArgs([]string{"layout", "friends.csv", "-f", "gif"})
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		layoutFormat = ""
	})
	if err := Execute(); err == nil {
		t.Error("expected an unsupported format error")
	}
}

func TestVersionCommand(t *testing.T) {
	var stdout bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetArgs([]string{"version"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	if err := Execute(); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(stdout.String(), "friendgraph "+Version) {
		t.Errorf("version output = %q", stdout.String())
	}
}
