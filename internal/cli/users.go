package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lazypower/habitcity/internal/engine"
	"github.com/lazypower/habitcity/internal/store"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users",
}

var (
	userEmail    string
	userName     string
	userTimezone string
)

var userAddCmd = &cobra.Command{
	Use:   "add <user-id>",
	Short: "Register a user and build their city",
	Args:  cobra.ExactArgs(1),
	RunE:  runUserAdd,
}

var userDeleteCmd = &cobra.Command{
	Use:   "delete <user-id>",
	Short: "Delete a user and all of their progression",
	Args:  cobra.ExactArgs(1),
	RunE:  runUserDelete,
}

var userResetCmd = &cobra.Command{
	Use:   "reset <user-id> [habit]",
	Short: "Reset progression for one habit, or every habit",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runUserReset,
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List user ids",
	Args:  cobra.NoArgs,
	RunE:  runUserList,
}

func init() {
	userAddCmd.Flags().StringVar(&userEmail, "email", "", "Email address")
	userAddCmd.Flags().StringVar(&userName, "name", "", "Display name")
	userAddCmd.Flags().StringVar(&userTimezone, "tz", "UTC", "IANA timezone used for the user's calendar days")

	userCmd.AddCommand(userAddCmd)
	userCmd.AddCommand(userDeleteCmd)
	userCmd.AddCommand(userResetCmd)
	userCmd.AddCommand(userListCmd)
}

func runUserAdd(cmd *cobra.Command, args []string) error {
	eng, closeDB, err := localEngine()
	if err != nil {
		return err
	}
	defer closeDB()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	reg, err := eng.Register(ctx, store.User{
		ID:          args[0],
		Email:       userEmail,
		DisplayName: userName,
		Timezone:    userTimezone,
	})
	if err != nil {
		return fmt.Errorf("register: %w", err)
	}

	if reg.IsNew {
		fmt.Printf("Registered %s (%s).\n\n", reg.User.ID, reg.User.Timezone)
	} else {
		fmt.Printf("%s already exists.\n\n", reg.User.ID)
	}
	printCity(reg.City)
	return nil
}

func runUserDelete(cmd *cobra.Command, args []string) error {
	eng, closeDB, err := localEngine()
	if err != nil {
		return err
	}
	defer closeDB()

	if err := eng.DeleteUser(context.Background(), args[0]); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	fmt.Printf("Deleted %s.\n", args[0])
	return nil
}

func runUserReset(cmd *cobra.Command, args []string) error {
	eng, closeDB, err := localEngine()
	if err != nil {
		return err
	}
	defer closeDB()

	habit := ""
	if len(args) > 1 {
		habit = args[1]
	}
	if err := eng.ResetProgression(context.Background(), args[0], habit); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	if habit == "" {
		habit = "every habit"
	}
	fmt.Printf("Reset %s for %s.\n", habit, args[0])
	return nil
}

func runUserList(cmd *cobra.Command, args []string) error {
	eng, closeDB, err := localEngine()
	if err != nil {
		return err
	}
	defer closeDB()

	ids, err := eng.DB.ListUserIDs(context.Background())
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}
	if len(ids) == 0 {
		fmt.Println("No users yet. Add one with `habitcity user add`.")
		return nil
	}
	for _, id := range ids {
		fmt.Println(id)
	}
	return nil
}

// printCity renders a city as a table, one building per line.
func printCity(city engine.CityState) {
	fmt.Printf("  %-8s %-11s %5s %3s %5s  %-12s %s\n", "BUILDING", "HABIT", "XP", "LVL", "DECAY", "STATE", "STREAK")
	for _, b := range city.Buildings {
		last := "never"
		if b.LastCompleted != nil {
			last = *b.LastCompleted
		}
		fmt.Printf("  %-8s %-11s %5d %3d %5d  %-12s %d (last %s)\n",
			b.Building, b.HabitType, b.Experience, b.Level, b.DecayDays, b.VisualState, b.Streak, last)
	}
}
