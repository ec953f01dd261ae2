package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var cityCmd = &cobra.Command{
	Use:   "city <user-id>",
	Short: "Show a user's city",
	Args:  cobra.ExactArgs(1),
	RunE:  runCity,
}

var decayAll bool

var decayCmd = &cobra.Command{
	Use:   "decay [user-id]",
	Short: "Recompute building decay",
	Long:  "Recompute decay as of each user's today. Decay is also refreshed whenever a city is read.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runDecay,
}

func init() {
	decayCmd.Flags().BoolVar(&decayAll, "all", false, "Refresh every user")
}

func runCity(cmd *cobra.Command, args []string) error {
	eng, closeDB, err := localEngine()
	if err != nil {
		return err
	}
	defer closeDB()

	city, err := eng.CityState(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("city: %w", err)
	}
	fmt.Printf("## %s\n\n", args[0])
	printCity(city)
	return nil
}

func runDecay(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && !decayAll {
		return fmt.Errorf("give a user id or --all")
	}

	eng, closeDB, err := localEngine()
	if err != nil {
		return err
	}
	defer closeDB()

	ctx := context.Background()
	users := args
	if decayAll {
		if users, err = eng.DB.ListUserIDs(ctx); err != nil {
			return fmt.Errorf("list users: %w", err)
		}
	}

	total := 0
	for _, id := range users {
		changes, err := eng.RefreshDecay(ctx, id)
		if err != nil {
			return fmt.Errorf("decay %s: %w", id, err)
		}
		for _, c := range changes {
			fmt.Printf("%s: %s %d -> %d (%s)\n", id, c.Building, c.OldDecay, c.NewDecay, c.VisualState)
		}
		total += len(changes)
	}
	fmt.Printf("%d building(s) changed across %d user(s).\n", total, len(users))
	return nil
}
