package cli

import (
	"fmt"
	"time"

	"github.com/tutorloop/tutorloop/internal/scheduling/domain"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check a time range against a user's calendar without writing",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireApp()
		if err != nil {
			return err
		}

		userID, err := uuid.Parse(checkUser)
		if err != nil {
			return fmt.Errorf("invalid --user: %w", err)
		}
		start, err := parseFlagTime(checkStart)
		if err != nil {
			return fmt.Errorf("invalid --start: %w", err)
		}
		end, err := parseFlagTime(checkEnd)
		if err != nil {
			return fmt.Errorf("invalid --end: %w", err)
		}
		exclude := uuid.Nil
		if checkExclude != "" {
			if exclude, err = uuid.Parse(checkExclude); err != nil {
				return fmt.Errorf("invalid --exclude: %w", err)
			}
		}

		conflicts, err := c.ConflictFinder.FindConflicts(cmd.Context(), userID,
			domain.TimeRange{Start: start, End: end}, exclude)
		if err != nil {
			return err
		}

		if len(conflicts) == 0 {
			fmt.Println("no conflicts")
			return nil
		}
		for _, conflict := range conflicts {
			fmt.Printf("%s  %s - %s  %s\n",
				conflict.EventID,
				conflict.Range.Start.Format(time.RFC3339),
				conflict.Range.End.Format(time.RFC3339),
				conflict.Title,
			)
		}
		return nil
	},
}

var (
	checkUser    string
	checkStart   string
	checkEnd     string
	checkExclude string
)

func init() {
	checkCmd.Flags().StringVar(&checkUser, "user", "", "user ID to check")
	checkCmd.Flags().StringVar(&checkStart, "start", "", "start time (RFC 3339)")
	checkCmd.Flags().StringVar(&checkEnd, "end", "", "end time (RFC 3339)")
	checkCmd.Flags().StringVar(&checkExclude, "exclude", "", "session ID to exclude")
	rootCmd.AddCommand(checkCmd)
}
