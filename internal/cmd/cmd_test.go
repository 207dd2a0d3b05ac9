package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/relabs-tech/inertial_dmp/internal/config"
	"github.com/relabs-tech/inertial_dmp/internal/dmp"
)

func TestPrintLayoutsRoundTrips(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "layouts.yaml")
	doc := `layouts:
  - name: custom
    packet_size: 16
    quaternion: {offset: 0, width: 4}
  - name: teapot
    packet_size: 10
    quaternion: {offset: 0, width: 2}
`
	if err := os.WriteFile(file, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	cfg.DMPLayoutFile = file

	var buf bytes.Buffer
	if err := printLayouts(&buf, cfg); err != nil {
		t.Fatal(err)
	}
	got, err := dmp.ParseLayouts(buf.Bytes())
	if err != nil {
		t.Fatalf("output is not a layout file: %v\n%s", err, buf.String())
	}
	if len(got) != len(dmp.BuiltinLayouts())+1 {
		t.Fatalf("got %d layouts", len(got))
	}
	if got["custom"].PacketSize != 16 {
		t.Errorf("custom: %+v", got["custom"])
	}
	if got["teapot"].PacketSize != 10 {
		t.Errorf("file layout did not replace built-in teapot: %+v", got["teapot"])
	}
}

func TestRootCommandTree(t *testing.T) {
	root := getRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	joined := strings.Join(names, " ")
	for _, want := range []string{"produce", "console", "web", "display", "layouts", "registers"} {
		if !strings.Contains(joined, want) {
			t.Errorf("missing subcommand %s in %q", want, joined)
		}
	}
	if root.PersistentFlags().Lookup("config").DefValue != config.DefaultConfigPath {
		t.Error("unexpected --config default")
	}
}
