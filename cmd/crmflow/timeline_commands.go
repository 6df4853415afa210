package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"crmflow/internal/access"
	"crmflow/internal/api"
	"crmflow/internal/ipc"
)

func newTimelineCommand(ctx *commandContext) *cobra.Command {
	timelineCmd := &cobra.Command{
		Use:   "timeline",
		Short: "Read and append audit timeline events",
	}
	timelineCmd.AddCommand(newTimelineListCommand(ctx))
	timelineCmd.AddCommand(newTimelineAddCommand(ctx))
	return timelineCmd
}

func newTimelineListCommand(ctx *commandContext) *cobra.Command {
	var before string
	var limit int
	cmd := &cobra.Command{
		Use:   "list <subject-id>",
		Short: "List a subject's timeline, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withReader(cmd, func(reader access.Reader) error {
				page, err := reader.Timeline(cmd.Context(), args[0], before, limit)
				if err != nil {
					return err
				}
				if ctx.wantJSON() {
					return writeJSON(cmd, page)
				}
				out := cmd.OutOrStdout()
				if len(page.Events) == 0 {
					fmt.Fprintln(out, "No timeline events")
					return nil
				}
				rows := make([][]string, 0, len(page.Events))
				for _, ev := range page.Events {
					rows = append(rows, []string{ev.CreatedAt, ev.EventType, ev.Title, ev.Author})
				}
				fmt.Fprint(out, renderTable([]string{"When", "Type", "Title", "Author"}, rows, nil))
				if page.NextBefore != "" {
					fmt.Fprintf(out, "More events: --before %s\n", page.NextBefore)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&before, "before", "", "Only events created before this RFC3339 timestamp")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum number of events")
	return cmd
}

func newTimelineAddCommand(ctx *commandContext) *cobra.Command {
	var req api.TimelineAppendRequest
	cmd := &cobra.Command{
		Use:   "add <subject-id> <title>",
		Short: "Append a timeline event",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.SubjectID = args[0]
			req.Title = args[1]
			return ctx.withClient(func(client *ipc.Client) error {
				ev, err := client.AppendTimeline(ctx.actorName(), req)
				if err != nil {
					return err
				}
				if ctx.wantJSON() {
					return writeJSON(cmd, ev)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Recorded %s on %s\n", ev.EventType, ev.SubjectID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&req.SubjectType, "subject-type", "contact", "Subject type")
	cmd.Flags().StringVarP(&req.EventType, "type", "t", "note", "Event type")
	cmd.Flags().StringVarP(&req.Description, "description", "d", "", "Event description")
	return cmd
}
