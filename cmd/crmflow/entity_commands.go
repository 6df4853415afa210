package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"crmflow/internal/access"
	"crmflow/internal/api"
	"crmflow/internal/ipc"
)

func newEntityCommand(ctx *commandContext) *cobra.Command {
	entityCmd := &cobra.Command{
		Use:   "entity",
		Short: "Create entities and move them between stages",
	}
	entityCmd.AddCommand(newEntityAddCommand(ctx))
	entityCmd.AddCommand(newEntityShowCommand(ctx))
	entityCmd.AddCommand(newEntityMoveCommand(ctx))
	entityCmd.AddCommand(newEntityHistoryCommand(ctx))
	return entityCmd
}

func newEntityAddCommand(ctx *commandContext) *cobra.Command {
	var req api.CreateEntityRequest
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a lead, contact, opportunity or client",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Name = args[0]
			return ctx.withClient(func(client *ipc.Client) error {
				entity, err := client.CreateEntity(ctx.actorName(), req)
				if err != nil {
					return err
				}
				return printEntity(cmd, ctx, entity)
			})
		},
	}
	cmd.Flags().StringVar(&req.ID, "id", "", "Entity identifier (generated when empty)")
	cmd.Flags().StringVarP(&req.Type, "type", "t", "", "Entity type: lead, contact, opportunity or client")
	cmd.Flags().StringVar(&req.OwnerID, "owner", "", "Owning user id")
	cmd.Flags().StringVar(&req.Stage, "stage", "", "Initial stage (defaults to the first stage of the type)")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func newEntityShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show an entity and its current stage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withReader(cmd, func(reader access.Reader) error {
				entity, err := reader.Entity(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printEntity(cmd, ctx, entity)
			})
		},
	}
}

func newEntityMoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "move <id> <stage>",
		Short: "Transition an entity to a later stage",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Transition(ctx.actorName(), args[0], args[1])
				if err != nil {
					return err
				}
				if ctx.wantJSON() {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				if !resp.Applied {
					fmt.Fprintf(out, "%s stays in %s (not a forward move)\n", resp.Entity.ID, resp.Entity.StageLabel)
					return nil
				}
				fmt.Fprintf(out, "%s moved to %s\n", resp.Entity.ID, resp.Entity.StageLabel)
				return nil
			})
		},
	}
}

func newEntityHistoryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "history <id>",
		Short: "List the stage intervals of an entity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withReader(cmd, func(reader access.Reader) error {
				intervals, err := reader.History(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if ctx.wantJSON() {
					return writeJSON(cmd, intervals)
				}
				if len(intervals) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No stage history")
					return nil
				}
				rows := make([][]string, 0, len(intervals))
				for _, iv := range intervals {
					ended := iv.EndedAt
					if ended == "" {
						ended = "(current)"
					}
					rows = append(rows, []string{strconv.FormatInt(iv.ID, 10), iv.StageName, iv.StartedAt, ended})
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Stage", "Started", "Ended"}, rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
}

func printEntity(cmd *cobra.Command, ctx *commandContext, e *api.Entity) error {
	if ctx.wantJSON() {
		return writeJSON(cmd, e)
	}
	rows := [][]string{
		{"ID", e.ID},
		{"Type", e.Type},
		{"Name", e.Name},
		{"Stage", fmt.Sprintf("%s (%s)", e.StageLabel, e.Stage)},
		{"Owner", e.OwnerID},
		{"Updated", e.UpdatedAt},
	}
	fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"Field", "Value"}, rows, nil))
	return nil
}
