package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check CLI wiring health",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireApp()
		if err != nil {
			return err
		}
		if err := c.Ping(cmd.Context()); err != nil {
			return fmt.Errorf("database not reachable: %w", err)
		}
		fmt.Println("ok")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
