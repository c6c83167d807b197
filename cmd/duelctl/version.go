package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

var (
	// Version is injected via ldflags at build time
	Version = "dev"
	// BuildDate is injected via ldflags at build time
	BuildDate = "unknown"
)

func versionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the CLI and server versions",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "duelctl version %s\n", Version)
			fmt.Fprintf(w, "Build date: %s\n", BuildDate)
			fmt.Fprintf(w, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
			v, err := a.client.Version(cmd.Context())
			if err != nil {
				fmt.Fprintf(w, "Server: unreachable (%v)\n", err)
				return nil
			}
			fmt.Fprintf(w, "Server: %s %s\n", v["version"], v["time"])
			return nil
		},
	}
}
