package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pefman/rose-manor/internal/engine"
)

func fightCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "fight PLAYER TARGET",
		Short: "Start a combat against another character",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := a.client.StartCombat(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return a.printSnapshot(cmd.OutOrStdout(), snap)
		},
	}
}

func actCmd(a *app) *cobra.Command {
	var confirm bool
	cmd := &cobra.Command{
		Use:   "act PLAYER ACTION",
		Short: "Take a combat action",
		Long: "Take a combat action: " + actionList() + ".\n" +
			"Surrender costs 80% HP and 50% sanity and needs --confirm.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			action, err := engine.ParseAction(args[1])
			if err != nil {
				return err
			}
			snap, err := a.client.Act(cmd.Context(), args[0], engine.Request{Action: action, Confirmed: confirm})
			if err != nil {
				return err
			}
			return a.printSnapshot(cmd.OutOrStdout(), snap)
		},
	}
	cmd.Flags().BoolVar(&confirm, "confirm", false, "confirm a surrender")
	return cmd
}

func actionList() string {
	names := make([]string, len(engine.Actions))
	for i, act := range engine.Actions {
		names[i] = string(act)
	}
	return strings.Join(names, ", ")
}

func statusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status PLAYER",
		Short: "Show the current combat",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := a.client.Combat(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.printSnapshot(cmd.OutOrStdout(), snap)
		},
	}
}

func forfeitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "forfeit PLAYER",
		Short: "Abandon the current combat without reward or penalty",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.client.Forfeit(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if a.asJSON {
				return a.printJSON(cmd.OutOrStdout(), res)
			}
			printResult(cmd.OutOrStdout(), res)
			return nil
		},
	}
}

func statsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats PLAYER",
		Short: "Show a player's combat record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.client.PlayerStats(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if a.asJSON {
				return a.printJSON(cmd.OutOrStdout(), r)
			}
			fmt.Fprintf(cmd.OutOrStdout(),
				"fights %d  wins %d  defeats %d  escapes %d  surrenders %d  forfeits %d  xp %d  best hit %d\n",
				r.Fights, r.Victories, r.Defeats, r.Escapes, r.Surrenders, r.Forfeits, r.Experience, r.BestHit)
			return nil
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "best-hit",
		Short: "Show today's biggest hit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, ok, err := a.client.DailyBestHit(cmd.Context())
			if err != nil {
				return err
			}
			if a.asJSON {
				return a.printJSON(cmd.OutOrStdout(), h)
			}
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "No hits landed today.")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s hit %s for %d\n", h.Player, h.Opponent, h.Damage)
			return nil
		},
	})
	return cmd
}
