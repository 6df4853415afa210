package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"crmflow/internal/api"
	"crmflow/internal/ipc"
)

func newUserCommand(ctx *commandContext) *cobra.Command {
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "Manage the user directory",
	}

	var req api.UserRequest
	addCmd := &cobra.Command{
		Use:   "add <id>",
		Short: "Create or update a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.ID = args[0]
			return ctx.withClient(func(client *ipc.Client) error {
				user, err := client.UpsertUser(req)
				if err != nil {
					return err
				}
				if ctx.wantJSON() {
					return writeJSON(cmd, user)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "User %s saved\n", user.ID)
				return nil
			})
		},
	}
	addCmd.Flags().StringVar(&req.DisplayName, "name", "", "Display name")
	addCmd.Flags().StringVar(&req.Email, "email", "", "Email address")
	addCmd.Flags().StringVar(&req.Phone, "phone", "", "Phone number in E.164 format")
	userCmd.AddCommand(addCmd)
	return userCmd
}

func newPrefsCommand(ctx *commandContext) *cobra.Command {
	prefsCmd := &cobra.Command{
		Use:   "prefs",
		Short: "Manage notification channel preferences",
	}

	var req api.PreferenceRequest
	var subscription string
	setCmd := &cobra.Command{
		Use:   "set <user-id>",
		Short: "Replace a user's channel opt-ins",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("subscription") {
				req.PushSubscription = &subscription
			}
			return ctx.withClient(func(client *ipc.Client) error {
				pref, err := client.SetPreferences(args[0], req)
				if err != nil {
					return err
				}
				if ctx.wantJSON() {
					return writeJSON(cmd, pref)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Preferences for %s: push=%s email=%s\n",
					pref.UserID, yesNo(pref.PushEnabled), yesNo(pref.EmailEnabled))
				return nil
			})
		},
	}
	setCmd.Flags().BoolVar(&req.PushEnabled, "push", false, "Enable push notifications")
	setCmd.Flags().BoolVar(&req.EmailEnabled, "email", false, "Enable email notifications")
	setCmd.Flags().StringVar(&subscription, "subscription", "", "Push subscription topic (empty clears it)")
	prefsCmd.AddCommand(setCmd)
	return prefsCmd
}
