package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/pefman/rose-manor/internal/api"
	"github.com/pefman/rose-manor/internal/engine"
)

const defaultServer = "http://localhost:8081"

// app is shared by every subcommand once flags are parsed.
type app struct {
	server     string
	adminToken string
	asJSON     bool
	client     *api.Client
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func newRootCmd() *cobra.Command {
	a := &app{}
	rootCmd := &cobra.Command{
		Use:           "duelctl",
		Short:         "Play and operate a Little Rose Manor server",
		Long:          `duelctl talks to a running game server: create characters, explore the manor, fight, and run admin chores.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			a.client = api.NewClient(a.server).WithAdminToken(a.adminToken)
		},
	}
	rootCmd.PersistentFlags().StringVar(&a.server, "server", envOr("ROSE_SERVER", defaultServer), "game server base URL")
	rootCmd.PersistentFlags().StringVar(&a.adminToken, "admin-token", os.Getenv("ROSE_ADMIN_TOKEN"), "token for admin commands")
	rootCmd.PersistentFlags().BoolVar(&a.asJSON, "json", false, "print raw JSON")

	rootCmd.AddCommand(
		versionCmd(a),
		playerCmd(a),
		locationsCmd(a),
		exploreCmd(a),
		fightCmd(a),
		actCmd(a),
		statusCmd(a),
		forfeitCmd(a),
		statsCmd(a),
		adminCmd(a),
	)
	return rootCmd
}

func (a *app) printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printSnapshot prints the combat log, or JSON when --json is set.
func (a *app) printSnapshot(w io.Writer, snap engine.Snapshot) error {
	if a.asJSON {
		return a.printJSON(w, snap)
	}
	if snap.Session == nil {
		fmt.Fprintln(w, "No combat.")
		return nil
	}
	s := snap.Session
	for _, l := range s.Log {
		fmt.Fprintln(w, l.String())
	}
	fmt.Fprintf(w, "%s  HP %d/%d  SAN %d/%d  |  %s  HP %d/%d  |  round %d, %s\n",
		s.Player.Name, s.Player.HP, s.Player.MaxHP, s.Player.Sanity, s.Player.MaxSanity,
		s.Opponent.Name, s.Opponent.HP, s.Opponent.MaxHP, s.Round, snap.State)
	if snap.Result != nil {
		printResult(w, *snap.Result)
	}
	return nil
}

func printResult(w io.Writer, r engine.Result) {
	fmt.Fprintf(w, "Outcome: %s after %d round(s)", r.Outcome, r.Rounds)
	if r.Experience > 0 {
		fmt.Fprintf(w, ", +%d xp", r.Experience)
	}
	if r.ItemDrop {
		fmt.Fprint(w, ", item dropped")
	}
	fmt.Fprintln(w)
}
