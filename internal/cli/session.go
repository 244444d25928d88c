package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tutorloop/tutorloop/internal/scheduling/application/commands"
	"github.com/tutorloop/tutorloop/internal/scheduling/domain"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage tutoring sessions",
}

var sessionCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Propose a new session with an atomic conflict check",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireApp()
		if err != nil {
			return err
		}

		in := commands.CreateSessionInput{
			Title:          sessionTitle,
			ConversationID: sessionConversation,
			Timezone:       sessionTimezone,
		}
		if in.StartTime, err = parseFlagTime(sessionStart); err != nil {
			return fmt.Errorf("invalid --start: %w", err)
		}
		if in.EndTime, err = parseFlagTime(sessionEnd); err != nil {
			return fmt.Errorf("invalid --end: %w", err)
		}
		if in.CreatedBy, err = uuid.Parse(sessionUser); err != nil {
			return fmt.Errorf("invalid --user: %w", err)
		}
		if in.Participants, err = parseParticipants(sessionParticipants); err != nil {
			return err
		}

		event, err := c.CreateSessionHandler.Handle(cmd.Context(), in)
		if err != nil {
			var ce *domain.ConflictError
			if errors.As(err, &ce) {
				fmt.Printf("conflict detected with: %s\n", strings.Join(ce.Titles(), ", "))
				fmt.Println("a warning with alternatives was posted to the conversation")
				return nil
			}
			return err
		}

		fmt.Printf("session created: %s (%s)\n", event.ID(), event.Status())
		return nil
	},
}

var sessionRescheduleCmd = &cobra.Command{
	Use:   "reschedule",
	Short: "Move or retitle an existing session",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireApp()
		if err != nil {
			return err
		}

		in := commands.UpdateSessionInput{
			Title:          sessionTitle,
			ConversationID: sessionConversation,
			Timezone:       sessionTimezone,
		}
		if in.EventID, err = uuid.Parse(sessionID); err != nil {
			return fmt.Errorf("invalid --id: %w", err)
		}
		if in.UserID, err = uuid.Parse(sessionUser); err != nil {
			return fmt.Errorf("invalid --user: %w", err)
		}
		if sessionStart != "" {
			if in.StartTime, err = parseFlagTime(sessionStart); err != nil {
				return fmt.Errorf("invalid --start: %w", err)
			}
		}
		if sessionEnd != "" {
			if in.EndTime, err = parseFlagTime(sessionEnd); err != nil {
				return fmt.Errorf("invalid --end: %w", err)
			}
		}

		event, err := c.UpdateSessionHandler.Handle(cmd.Context(), in)
		if err != nil {
			var ce *domain.ConflictError
			if errors.As(err, &ce) {
				fmt.Printf("move rejected, conflicts with: %s\n", strings.Join(ce.Titles(), ", "))
				fmt.Println("a warning with alternatives was posted to the conversation")
				return nil
			}
			return err
		}

		fmt.Printf("session updated: %s at %s\n", event.ID(), event.StartTime().Format(time.RFC3339))
		return nil
	},
}

var sessionRSVPCmd = &cobra.Command{
	Use:   "rsvp",
	Short: "Record an accept or decline response",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireApp()
		if err != nil {
			return err
		}

		in := commands.RecordRSVPInput{Response: domain.RSVPResponse(sessionResponse)}
		if in.EventID, err = uuid.Parse(sessionID); err != nil {
			return fmt.Errorf("invalid --id: %w", err)
		}
		if in.UserID, err = uuid.Parse(sessionUser); err != nil {
			return fmt.Errorf("invalid --user: %w", err)
		}

		event, err := c.RecordRSVPHandler.Handle(cmd.Context(), in)
		if err != nil {
			return err
		}
		fmt.Printf("response recorded, session is now %s\n", event.Status())
		return nil
	},
}

var sessionCancelCmd = &cobra.Command{
	Use:   "cancel",
	Short: "Cancel a session",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireApp()
		if err != nil {
			return err
		}

		in := commands.DeleteSessionInput{}
		if in.EventID, err = uuid.Parse(sessionID); err != nil {
			return fmt.Errorf("invalid --id: %w", err)
		}
		if in.UserID, err = uuid.Parse(sessionUser); err != nil {
			return fmt.Errorf("invalid --user: %w", err)
		}

		if err := c.DeleteSessionHandler.Handle(cmd.Context(), in); err != nil {
			return err
		}
		fmt.Println("session cancelled")
		return nil
	},
}

var sessionPickCmd = &cobra.Command{
	Use:   "pick",
	Short: "Apply one of the offered alternative slots",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireApp()
		if err != nil {
			return err
		}

		userID, err := uuid.Parse(sessionUser)
		if err != nil {
			return fmt.Errorf("invalid --user: %w", err)
		}

		applied, err := c.Orchestrator.HandleAlternativeSelection(
			cmd.Context(), pickConflictID, pickIndex, sessionConversation, userID)
		if err != nil {
			return err
		}
		if applied {
			fmt.Println("alternative applied")
		} else {
			fmt.Println("alternative could not be applied")
		}
		return nil
	},
}

var (
	sessionID           string
	sessionTitle        string
	sessionStart        string
	sessionEnd          string
	sessionParticipants string
	sessionUser         string
	sessionConversation string
	sessionTimezone     string
	sessionResponse     string
	pickConflictID      string
	pickIndex           int
)

func parseFlagTime(value string) (time.Time, error) {
	return time.Parse(time.RFC3339, value)
}

func parseParticipants(value string) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for _, raw := range strings.Split(value, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid participant %q: %w", raw, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func init() {
	sessionCreateCmd.Flags().StringVar(&sessionTitle, "title", "", "session title")
	sessionCreateCmd.Flags().StringVar(&sessionStart, "start", "", "start time (RFC 3339)")
	sessionCreateCmd.Flags().StringVar(&sessionEnd, "end", "", "end time (RFC 3339)")
	sessionCreateCmd.Flags().StringVar(&sessionParticipants, "participants", "", "comma-separated participant IDs")
	sessionCreateCmd.Flags().StringVar(&sessionUser, "user", "", "creator user ID")
	sessionCreateCmd.Flags().StringVar(&sessionConversation, "conversation", "", "conversation ID")
	sessionCreateCmd.Flags().StringVar(&sessionTimezone, "tz", "", "IANA timezone of the requester")

	sessionRescheduleCmd.Flags().StringVar(&sessionID, "id", "", "session ID")
	sessionRescheduleCmd.Flags().StringVar(&sessionTitle, "title", "", "new title")
	sessionRescheduleCmd.Flags().StringVar(&sessionStart, "start", "", "new start time (RFC 3339)")
	sessionRescheduleCmd.Flags().StringVar(&sessionEnd, "end", "", "new end time (RFC 3339)")
	sessionRescheduleCmd.Flags().StringVar(&sessionUser, "user", "", "requesting user ID")
	sessionRescheduleCmd.Flags().StringVar(&sessionConversation, "conversation", "", "conversation ID")
	sessionRescheduleCmd.Flags().StringVar(&sessionTimezone, "tz", "", "IANA timezone of the requester")

	sessionRSVPCmd.Flags().StringVar(&sessionID, "id", "", "session ID")
	sessionRSVPCmd.Flags().StringVar(&sessionUser, "user", "", "responding user ID")
	sessionRSVPCmd.Flags().StringVar(&sessionResponse, "response", "", "accept or decline")

	sessionCancelCmd.Flags().StringVar(&sessionID, "id", "", "session ID")
	sessionCancelCmd.Flags().StringVar(&sessionUser, "user", "", "requesting user ID")

	sessionPickCmd.Flags().StringVar(&pickConflictID, "conflict", "", "conflict ID from the warning")
	sessionPickCmd.Flags().IntVar(&pickIndex, "index", 0, "alternative index (0-based)")
	sessionPickCmd.Flags().StringVar(&sessionUser, "user", "", "selecting user ID")
	sessionPickCmd.Flags().StringVar(&sessionConversation, "conversation", "", "conversation ID")

	sessionCmd.AddCommand(sessionCreateCmd, sessionRescheduleCmd, sessionRSVPCmd, sessionCancelCmd, sessionPickCmd)
	rootCmd.AddCommand(sessionCmd)
}
