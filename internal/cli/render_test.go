package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

const testScene = `
[scene]
width = 40
height = 20
background = "#ffffff"
start = 0
end = 3

[[box]]
name = "red.box"
kind = "rect"
x = [[0, 0], [3, 30]]
width = 10
height = 10
fill = "#ff0000"
`

func TestParseFrames(t *testing.T) {
	tests := []struct {
		spec    string
		want    []int
		wantErr bool
	}{
		{spec: "", want: nil},
		{spec: "  ", want: nil},
		{spec: "3", want: []int{3}},
		{spec: "0-3", want: []int{0, 1, 2, 3}},
		{spec: "0-2,7", want: []int{0, 1, 2, 7}},
		{spec: "7, 1-2", want: []int{1, 2, 7}},
		{spec: "1-3,2-4", want: []int{1, 2, 3, 4}},
		{spec: "5-5", want: []int{5}},
		{spec: "1,,2", want: []int{1, 2}},
		{spec: "a", wantErr: true},
		{spec: "-1", wantErr: true},
		{spec: "3-1", wantErr: true},
		{spec: "1-x", wantErr: true},
		{spec: "0-20000", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			got, err := parseFrames(tt.spec)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseFrames(%q) error = %v, wantErr %v", tt.spec, err, tt.wantErr)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("parseFrames(%q) = %v, want %v", tt.spec, got, tt.want)
			}
		})
	}
}

func TestFileNames(t *testing.T) {
	if got := frameFileName(7); got != "frame_0007.png" {
		t.Errorf("frameFileName(7) = %q", got)
	}
	if got := graphFileName("scenes/intro.toml", 3, "svg"); got != "scenes/intro.frame3.svg" {
		t.Errorf("graphFileName = %q", got)
	}
	if got := sanitize("red box/1"); got != "red_box_1" {
		t.Errorf("sanitize = %q", got)
	}
}

func writeScene(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scene.toml")
	if err := os.WriteFile(path, []byte(testScene), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func testContext() context.Context {
	return withLogger(context.Background(), log.New(io.Discard))
}

func TestRunRender(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	t.Setenv(envMongoURI, "")
	t.Setenv(envRedisAddr, "")
	t.Setenv(envRedisURL, "")

	c := New(io.Discard, LogInfo)
	out := filepath.Join(t.TempDir(), "out")
	err := c.runRender(testContext(), writeScene(t), renderOpts{
		output:      out,
		frames:      "0-1,3",
		skipOpacity: -1,
		noCache:     true,
		layers:      true,
	})
	if err != nil {
		t.Fatalf("runRender: %v", err)
	}

	for _, name := range []string{
		"frame_0000.png",
		"frame_0001.png",
		"frame_0003.png",
		"frame_0003_layer_00_red_box.png",
	} {
		if _, err := os.Stat(filepath.Join(out, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(out, "frame_0002.png")); !os.IsNotExist(err) {
		t.Error("frame 2 was not requested")
	}
}

func TestRunRenderErrors(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	t.Setenv(envMongoURI, "")

	c := New(io.Discard, LogInfo)
	scene := writeScene(t)

	tests := []struct {
		name string
		path string
		opts renderOpts
	}{
		{name: "bad frames", path: scene, opts: renderOpts{frames: "x", skipOpacity: -1}},
		{name: "frame out of range", path: scene, opts: renderOpts{frames: "9", skipOpacity: -1}},
		{name: "missing scene", path: filepath.Join(t.TempDir(), "nope.toml"), opts: renderOpts{skipOpacity: -1}},
		{name: "bad skip opacity", path: scene, opts: renderOpts{skipOpacity: 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.opts.output = t.TempDir()
			tt.opts.noCache = true
			if err := c.runRender(testContext(), tt.path, tt.opts); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestRunGraph(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())

	c := New(io.Discard, LogInfo)
	out := filepath.Join(t.TempDir(), "graph.dot")
	err := c.runGraph(testContext(), writeScene(t), graphOpts{
		frame:   2,
		format:  "DOT",
		output:  out,
		noCache: true,
	})
	if err != nil {
		t.Fatalf("runGraph: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "digraph") {
		t.Errorf("graph output is not DOT:\n%s", data)
	}

	if err := c.runGraph(testContext(), writeScene(t), graphOpts{format: "gif", noCache: true}); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestRootCommand(t *testing.T) {
	root := New(io.Discard, LogInfo).RootCommand()
	want := []string{"cache", "completion", "graph", "history", "render", "serve"}
	var got []string
	for _, cmd := range root.Commands() {
		got = append(got, cmd.Name())
	}
	slices.Sort(got)
	for _, name := range want {
		if !slices.Contains(got, name) {
			t.Errorf("missing subcommand %q in %v", name, got)
		}
	}
}
