package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"crmflow/internal/access"
	"crmflow/internal/api"
	"crmflow/internal/ipc"
)

func newNotifyCommand(ctx *commandContext) *cobra.Command {
	notifyCmd := &cobra.Command{
		Use:   "notify",
		Short: "Send and manage notifications",
	}
	notifyCmd.AddCommand(newNotifySendCommand(ctx))
	notifyCmd.AddCommand(newNotifyListCommand(ctx))
	notifyCmd.AddCommand(newNotifyReadCommand(ctx))
	notifyCmd.AddCommand(newNotifyReadAllCommand(ctx))
	return notifyCmd
}

func newNotifySendCommand(ctx *commandContext) *cobra.Command {
	var req api.NotificationRequest
	cmd := &cobra.Command{
		Use:   "send <user-id> <title>",
		Short: "Create a notification and deliver it on every enabled channel",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.UserID = args[0]
			req.Title = args[1]
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.SendNotification(ctx.actorName(), req)
				if err != nil {
					return err
				}
				if ctx.wantJSON() {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Notification %s created\n", resp.Notification.ID)
				rows := make([][]string, 0, len(resp.Delivery.Attempted)+len(resp.Delivery.Skipped))
				for _, ch := range resp.Delivery.Delivered {
					rows = append(rows, []string{ch, "delivered", ""})
				}
				for ch, reason := range resp.Delivery.Failed {
					rows = append(rows, []string{ch, "failed", reason})
				}
				for _, ch := range resp.Delivery.Skipped {
					rows = append(rows, []string{ch, "skipped", ""})
				}
				if len(rows) > 0 {
					fmt.Fprint(out, renderTable([]string{"Channel", "Result", "Detail"}, rows, nil))
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&req.Type, "type", "t", "system", "Notification type")
	cmd.Flags().StringVarP(&req.Priority, "priority", "p", "normal", "Priority: low, normal, high or urgent")
	cmd.Flags().StringVarP(&req.Message, "message", "m", "", "Notification body")
	cmd.Flags().StringVar(&req.LinkedType, "linked-type", "", "Type of the linked record")
	cmd.Flags().StringVar(&req.LinkedID, "linked-id", "", "ID of the linked record")
	cmd.Flags().StringVar(&req.LinkedName, "linked-name", "", "Display name of the linked record")
	cmd.Flags().BoolVar(&req.SMS, "sms", false, "Also deliver by SMS")
	cmd.Flags().BoolVar(&req.WhatsApp, "whatsapp", false, "Also deliver by WhatsApp")
	return cmd
}

func newNotifyListCommand(ctx *commandContext) *cobra.Command {
	var unreadOnly bool
	var limit int
	cmd := &cobra.Command{
		Use:   "list <user-id>",
		Short: "List a user's notifications, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withReader(cmd, func(reader access.Reader) error {
				list, err := reader.Notifications(cmd.Context(), args[0], unreadOnly, limit)
				if err != nil {
					return err
				}
				if ctx.wantJSON() {
					return writeJSON(cmd, list)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%d unread\n", list.Unread)
				if len(list.Items) == 0 {
					return nil
				}
				rows := make([][]string, 0, len(list.Items))
				for _, n := range list.Items {
					rows = append(rows, []string{n.ID, n.CreatedAt, n.Priority, n.Title, yesNo(n.IsRead)})
				}
				fmt.Fprint(out, renderTable([]string{"ID", "Created", "Priority", "Title", "Read"}, rows, nil))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&unreadOnly, "unread", false, "Only unread notifications")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum number of notifications")
	return cmd
}

func newNotifyReadCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "read <notification-id>",
		Short: "Mark a notification read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.MarkRead(args[0])
				if err != nil {
					return err
				}
				return printChanged(cmd, ctx, resp)
			})
		},
	}
}

func newNotifyReadAllCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "read-all <user-id>",
		Short: "Mark every notification of a user read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.MarkAllRead(args[0])
				if err != nil {
					return err
				}
				return printChanged(cmd, ctx, resp)
			})
		},
	}
}

func printChanged(cmd *cobra.Command, ctx *commandContext, resp *api.MarkReadResponse) error {
	if ctx.wantJSON() {
		return writeJSON(cmd, resp)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d notification(s) marked read\n", resp.Changed)
	return nil
}
