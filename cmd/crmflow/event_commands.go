package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"crmflow/internal/api"
	"crmflow/internal/ipc"
)

func newEventCommand(ctx *commandContext) *cobra.Command {
	eventCmd := &cobra.Command{
		Use:   "event",
		Short: "Manage calendar events",
	}

	var req api.CalendarEventRequest
	addCmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Create a calendar event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Title = args[0]
			return ctx.withClient(func(client *ipc.Client) error {
				ev, err := client.AddEvent(req)
				if err != nil {
					return err
				}
				if ctx.wantJSON() {
					return writeJSON(cmd, ev)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Event %s starts at %s\n", ev.ID, ev.StartsAt)
				return nil
			})
		},
	}
	addCmd.Flags().StringVar(&req.ID, "id", "", "Event identifier (generated when empty)")
	addCmd.Flags().StringVar(&req.StartsAt, "starts-at", "", "Start time (RFC3339)")
	addCmd.Flags().StringVar(&req.OwnerID, "owner", "", "Owning user id")
	_ = addCmd.MarkFlagRequired("starts-at")
	eventCmd.AddCommand(addCmd)
	return eventCmd
}

func newReminderCommand(ctx *commandContext) *cobra.Command {
	reminderCmd := &cobra.Command{
		Use:   "reminder",
		Short: "Schedule and fire event reminders",
	}

	setCmd := &cobra.Command{
		Use:   "set <event-id> <user-id> <none|min_15|hour_1|day_1>",
		Short: "Set or clear a user's reminder for an event",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.SetReminder(args[0], args[1], args[2])
				if err != nil {
					return err
				}
				if ctx.wantJSON() {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				if resp.Reminder == nil {
					fmt.Fprintln(out, "Reminder cleared")
					return nil
				}
				fmt.Fprintf(out, "Reminder %s fires at %s\n", resp.Reminder.ID, resp.Reminder.ReminderTime)
				return nil
			})
		},
	}

	pollCmd := &cobra.Command{
		Use:   "poll",
		Short: "Run one reminder poll cycle now",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.PollReminders()
				if err != nil {
					return err
				}
				if ctx.wantJSON() {
					return writeJSON(cmd, resp)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d reminder(s) fired\n", resp.Fired)
				return nil
			})
		},
	}

	reminderCmd.AddCommand(setCmd, pollCmd)
	return reminderCmd
}
