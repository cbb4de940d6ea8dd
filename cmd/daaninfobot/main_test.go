package main

import (
	"bytes"
	"runtime/debug"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseChatIDs(t *testing.T) {
	got, err := parseChatIDs([]string{" -100123 ", "", "5,6", " , "})
	if err != nil {
		t.Fatalf("parseChatIDs() error = %v", err)
	}
	if diff := cmp.Diff([]int64{-100123, 5, 6}, got); diff != "" {
		t.Fatalf("parseChatIDs() mismatch (-want +got):\n%s", diff)
	}
	if _, err := parseChatIDs([]string{"abc"}); err == nil {
		t.Fatalf("parseChatIDs(abc) error = nil, want error")
	}
}

func TestRootCommandTree(t *testing.T) {
	root := newRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"login", "run", "version"} {
		found := false
		for _, n := range names {
			if n == want {
				found = true
			}
		}
		if !found {
			t.Fatalf("subcommands = %v, missing %s", names, want)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	cmd := newVersionCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.HasPrefix(out.String(), "daaninfobot ") || !strings.Contains(out.String(), "\ngo: ") {
		t.Fatalf("output = %q", out.String())
	}
}

func TestWriteVersionBuildInfo(t *testing.T) {
	info := &debug.BuildInfo{
		GoVersion: "go1.24.1",
		Main:      debug.Module{Path: "github.com/wilicw/daaninfobot", Version: "v0.3.0"},
		Deps: []*debug.Module{
			{Path: "github.com/spf13/cobra", Version: "v1.8.1"},
			{Path: "github.com/gotd/td", Version: "v0.117.0"},
		},
	}
	var out bytes.Buffer
	writeVersion(&out, info)

	want := "daaninfobot v0.3.0\ngo: go1.24.1\nmtproto: github.com/gotd/td v0.117.0\n"
	if diff := cmp.Diff(want, out.String()); diff != "" {
		t.Fatalf("writeVersion() mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteVersionWithoutBuildInfo(t *testing.T) {
	var out bytes.Buffer
	writeVersion(&out, nil)
	if !strings.HasPrefix(out.String(), "daaninfobot dev\ngo: go") {
		t.Fatalf("writeVersion(nil) = %q", out.String())
	}
}
