package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pefman/rose-manor/internal/models"
)

func adminCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Operator commands (need --admin-token when the server sets one)",
	}

	newDay := &cobra.Command{
		Use:   "new-day",
		Short: "Advance the day: refill action points and recover the living",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.client.NewDay(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "A new day dawns over the manor.")
			return nil
		},
	}

	reset := &cobra.Command{
		Use:   "reset",
		Short: "Forfeit every combat and restore every character",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			forfeited, err := a.client.Reset(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "World reset; %d combat(s) forfeited.\n", len(forfeited))
			return nil
		},
	}

	var (
		hp, maxHP, sanity, maxSanity int
		strength, agility, luck, ap  int
		name                         string
		alive                        bool
	)
	set := &cobra.Command{
		Use:   "set PLAYER",
		Short: "Edit a character's stats and vitals",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch models.VitalsPatch
			f := cmd.Flags()
			intFlag := func(flag string, v *int, dst **int) {
				if f.Changed(flag) {
					*dst = v
				}
			}
			intFlag("hp", &hp, &patch.HP)
			intFlag("max-hp", &maxHP, &patch.MaxHP)
			intFlag("sanity", &sanity, &patch.Sanity)
			intFlag("max-sanity", &maxSanity, &patch.MaxSanity)
			intFlag("strength", &strength, &patch.Strength)
			intFlag("agility", &agility, &patch.Agility)
			intFlag("luck", &luck, &patch.Luck)
			intFlag("ap", &ap, &patch.ActionPoints)
			if f.Changed("name") {
				patch.Name = &name
			}
			if f.Changed("alive") {
				patch.Alive = &alive
			}
			p, err := a.client.PatchPlayer(cmd.Context(), args[0], patch)
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
	f := set.Flags()
	f.IntVar(&hp, "hp", 0, "current HP")
	f.IntVar(&maxHP, "max-hp", 0, "maximum HP")
	f.IntVar(&sanity, "sanity", 0, "current sanity")
	f.IntVar(&maxSanity, "max-sanity", 0, "maximum sanity")
	f.IntVar(&strength, "strength", 0, "strength")
	f.IntVar(&agility, "agility", 0, "agility")
	f.IntVar(&luck, "luck", 0, "luck")
	f.IntVar(&ap, "ap", 0, "action points")
	f.StringVar(&name, "name", "", "display name")
	f.BoolVar(&alive, "alive", true, "alive flag")

	cmd.AddCommand(newDay, reset, set)
	return cmd
}
