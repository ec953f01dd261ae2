package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lazypower/habitcity/internal/client"
	"github.com/lazypower/habitcity/internal/engine"
)

// Decisions depend on the server's in-memory safety history, so these
// commands go through a running server (HABITCITY_URL, HABITCITY_TOKEN).

var stateFlag string

var decideCmd = &cobra.Command{
	Use:   "decide <user-id>",
	Short: "Ask the server for the next action",
	Args:  cobra.ExactArgs(1),
	RunE:  runDecide,
}

var completeCmd = &cobra.Command{
	Use:   "complete <user-id> <habit>",
	Short: "Record a habit completion",
	Args:  cobra.ExactArgs(2),
	RunE:  runComplete,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Manage safety history on the server",
}

var historyClearCmd = &cobra.Command{
	Use:   "clear <user-id>",
	Short: "Clear a user's action history",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryClear,
}

func init() {
	const stateHelp = "consistency,momentum,energy,failure_rate,fatigue, each in [0,1]"
	decideCmd.Flags().StringVar(&stateFlag, "state", "", stateHelp)
	decideCmd.MarkFlagRequired("state")
	completeCmd.Flags().StringVar(&stateFlag, "state", "", stateHelp+" (default: server default)")

	historyCmd.AddCommand(historyClearCmd)
}

// parseState reads five comma-separated components in observation order.
func parseState(s string) (engine.UserState, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 5 {
		return engine.UserState{}, fmt.Errorf("state needs 5 comma-separated values, got %d", len(parts))
	}
	var v [5]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return engine.UserState{}, fmt.Errorf("state value %d: %w", i+1, err)
		}
		v[i] = f
	}
	st := engine.UserState{
		Consistency: v[0],
		Momentum:    v[1],
		Energy:      v[2],
		FailureRate: v[3],
		Fatigue:     v[4],
	}
	if err := st.Validate(); err != nil {
		return engine.UserState{}, err
	}
	return st, nil
}

func remoteContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 15*time.Second)
}

func runDecide(cmd *cobra.Command, args []string) error {
	state, err := parseState(stateFlag)
	if err != nil {
		return err
	}
	ctx, cancel := remoteContext()
	defer cancel()

	d, err := client.NewFromEnv().Decide(ctx, args[0], state)
	if err != nil {
		return err
	}
	printDecision(d)
	return nil
}

func runComplete(cmd *cobra.Command, args []string) error {
	var state *engine.UserState
	if stateFlag != "" {
		st, err := parseState(stateFlag)
		if err != nil {
			return err
		}
		state = &st
	}
	ctx, cancel := remoteContext()
	defer cancel()

	out, err := client.NewFromEnv().Complete(ctx, args[0], args[1], state)
	if err != nil {
		return err
	}
	printDecision(out.Decision)

	up := out.BuildingUpdate
	fmt.Printf("\n%s +%d xp -> %d (level %d)\n", up.Building, up.ExperienceDelta, up.Experience, up.Level)
	if up.LevelUp {
		fmt.Printf("Level up! %d -> %d\n", up.OldLevel, up.Level)
	}
	return nil
}

func runHistoryClear(cmd *cobra.Command, args []string) error {
	ctx, cancel := remoteContext()
	defer cancel()

	if err := client.NewFromEnv().ClearHistory(ctx, args[0]); err != nil {
		return err
	}
	fmt.Printf("Cleared action history for %s.\n", args[0])
	return nil
}

func printDecision(d engine.Decision) {
	conf := "n/a"
	if d.Confidence != nil {
		conf = fmt.Sprintf("%.2f", *d.Confidence)
	}
	fmt.Printf("%s [%s] confidence %s\n", d.Action, d.CityEffect, conf)
	fmt.Printf("  %s\n", d.Explanation)
}
