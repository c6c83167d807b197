package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pefman/rose-manor/internal/models"
)

func printPlayer(w io.Writer, p models.Player) {
	status := "alive"
	if !p.Alive {
		status = "dead"
	}
	fmt.Fprintf(w, "%s (%s) day %d, %s\n", p.Name, p.ID, p.Day, status)
	fmt.Fprintf(w, "  HP %d/%d  SAN %d/%d  STR %d  AGI %d  LUCK %d  AP %d  XP %d\n",
		p.HP, p.MaxHP, p.Sanity, p.MaxSanity, p.Strength, p.Agility, p.Luck, p.ActionPoints, p.Experience)
	if len(p.Inventory) > 0 {
		names := make([]string, len(p.Inventory))
		for i, it := range p.Inventory {
			names[i] = it.Name
		}
		fmt.Fprintf(w, "  Inventory: %s\n", strings.Join(names, ", "))
	}
	for _, c := range p.Clues {
		fmt.Fprintf(w, "  Clue: %s\n", c)
	}
}

func playerCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "player",
		Short: "Create and inspect characters",
	}

	var id string
	create := &cobra.Command{
		Use:   "create NAME",
		Short: "Create a character with the starting stats",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.client.CreatePlayer(cmd.Context(), id, args[0])
			if err != nil {
				return err
			}
			if a.asJSON {
				return a.printJSON(cmd.OutOrStdout(), p)
			}
			printPlayer(cmd.OutOrStdout(), p)
			return nil
		},
	}
	create.Flags().StringVar(&id, "id", "", "player id (generated when empty)")

	list := &cobra.Command{
		Use:   "list",
		Short: "List every character",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ps, err := a.client.Players(cmd.Context())
			if err != nil {
				return err
			}
			if a.asJSON {
				return a.printJSON(cmd.OutOrStdout(), ps)
			}
			for _, p := range ps {
				printPlayer(cmd.OutOrStdout(), p)
			}
			return nil
		},
	}

	show := &cobra.Command{
		Use:   "show ID",
		Short: "Show one character",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.client.Player(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if a.asJSON {
				return a.printJSON(cmd.OutOrStdout(), p)
			}
			printPlayer(cmd.OutOrStdout(), p)
			return nil
		},
	}

	var limit int
	history := &cobra.Command{
		Use:   "history ID",
		Short: "Show recent combats",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			recs, err := a.client.History(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			if a.asJSON {
				return a.printJSON(cmd.OutOrStdout(), recs)
			}
			for _, r := range recs {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s vs %s: %s in %d round(s), best hit %d\n",
					r.EndedAt.Format("2006-01-02 15:04"), r.PlayerID, r.OpponentID, r.Outcome, r.Rounds, r.BestHit)
			}
			return nil
		},
	}
	history.Flags().IntVar(&limit, "limit", 10, "number of records")

	cmd.AddCommand(create, list, show, history)
	return cmd
}

func locationsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "locations",
		Short: "List explorable locations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			locs, err := a.client.Locations(cmd.Context())
			if err != nil {
				return err
			}
			if a.asJSON {
				return a.printJSON(cmd.OutOrStdout(), locs)
			}
			for _, l := range locs {
				fmt.Fprintf(cmd.OutOrStdout(), "%-10s %s - %s\n", l.ID, l.Name, l.Description)
			}
			return nil
		},
	}
}

func exploreCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "explore PLAYER LOCATION",
		Short: "Search a location for one action point",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := a.client.Explore(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			if a.asJSON {
				return a.printJSON(cmd.OutOrStdout(), f)
			}
			fmt.Fprintln(cmd.OutOrStdout(), f.Message)
			fmt.Fprintf(cmd.OutOrStdout(), "HP %d/%d  SAN %d/%d  AP %d\n",
				f.Player.HP, f.Player.MaxHP, f.Player.Sanity, f.Player.MaxSanity, f.Player.ActionPoints)
			return nil
		},
	}
}
