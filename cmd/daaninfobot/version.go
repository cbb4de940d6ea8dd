package main

import (
	"fmt"
	"io"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const mtprotoModule = "github.com/gotd/td"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and build details",
		RunE: func(cmd *cobra.Command, args []string) error {
			info, _ := debug.ReadBuildInfo()
			writeVersion(cmd.OutOrStdout(), info)
			return nil
		},
	}
}

func writeVersion(w io.Writer, info *debug.BuildInfo) {
	v := strings.TrimSpace(version)
	if (v == "" || v == "dev") && info != nil && info.Main.Version != "" && info.Main.Version != "(devel)" {
		v = info.Main.Version
	}
	_, _ = fmt.Fprintf(w, "daaninfobot %s\n", v)
	if c := strings.TrimSpace(commit); c != "" && c != "none" {
		_, _ = fmt.Fprintf(w, "commit: %s\n", c)
	}
	if d := strings.TrimSpace(date); d != "" && d != "unknown" {
		_, _ = fmt.Fprintf(w, "date: %s\n", d)
	}

	goVersion := runtime.Version()
	if info != nil && info.GoVersion != "" {
		goVersion = info.GoVersion
	}
	_, _ = fmt.Fprintf(w, "go: %s\n", goVersion)
	if info == nil {
		return
	}
	for _, dep := range info.Deps {
		if dep.Path != mtprotoModule {
			continue
		}
		if dep.Replace != nil {
			dep = dep.Replace
		}
		_, _ = fmt.Fprintf(w, "mtproto: %s %s\n", mtprotoModule, dep.Version)
	}
}
