package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one conflict sweep and print overlapping pairs",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireApp()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		now := time.Now().UTC()
		users, err := c.EventRepo.ActiveParticipants(ctx, now, now.AddDate(0, 0, sweepDays))
		if err != nil {
			return err
		}

		found := 0
		for _, userID := range users {
			pairs, err := c.MonitorConflicts.Handle(ctx, userID, sweepDays)
			if err != nil {
				return err
			}
			for _, pair := range pairs {
				found++
				fmt.Printf("%s: %q overlaps %q by %d minutes\n",
					userID, pair.EventA.Title(), pair.EventB.Title(), pair.OverlapMinutes)
			}
		}

		unconfirmed, err := c.DetectUnconfirmed.Handle(ctx)
		if err != nil {
			return err
		}
		for _, session := range unconfirmed {
			fmt.Printf("unconfirmed: %q starts in %.0f hours (%d awaiting response)\n",
				session.Event.Title(),
				session.HoursTillStart,
				len(session.Event.UnrespondedParticipants()),
			)
		}

		if found == 0 && len(unconfirmed) == 0 {
			fmt.Println("all clear")
		}
		return nil
	},
}

var sweepDays int

func init() {
	sweepCmd.Flags().IntVar(&sweepDays, "days", 14, "lookahead window in days")
	rootCmd.AddCommand(sweepCmd)
}
