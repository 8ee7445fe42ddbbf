package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"gitlab.com/timkado/api/affiliate-lead-service/internal/model"
	"gitlab.com/timkado/api/affiliate-lead-service/pkg/utils"
)

func newRootCmd(connectEnv connectFunc) *cobra.Command {
	var configPath string
	var e *env

	root := &cobra.Command{
		Use:           "leadctl",
		Short:         "Operate on leads, affiliates and the event outbox",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			e, err = connectEnv(cmd.Context(), configPath)
			return err
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if e != nil && e.close != nil {
				e.close()
			}
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "directory containing default.yaml")

	current := func() *env { return e }
	root.AddCommand(leadCmd(current), affiliateCmd(current), outboxCmd(current))
	return root
}

func leadCmd(current func() *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lead",
		Short: "Manage leads",
	}

	statuses := make([]string, 0, len(model.LeadStatuses))
	for _, s := range model.LeadStatuses {
		statuses = append(statuses, string(s))
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status <lead-id> <status>",
		Short: "Set the follow-up status of a lead (" + strings.Join(statuses, ", ") + ")",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := current().leads.SetStatus(cmd.Context(), args[0], model.LeadStatus(args[1])); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "lead %s is now %s\n", args[0], args[1])
			return nil
		},
	})

	list := &cobra.Command{
		Use:   "list",
		Short: "List leads, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			status, _ := cmd.Flags().GetString("status")
			limit, _ := cmd.Flags().GetInt("limit")
			leads, err := current().leads.List(cmd.Context(), model.LeadFilter{
				Status: model.LeadStatus(status),
				Limit:  limit,
			})
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTATUS\tVISITOR\tPHONE\tAFFILIATE\tCREATED")
			for _, l := range leads {
				affiliateID := "-"
				if l.AffiliateID != nil {
					affiliateID = *l.AffiliateID
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					l.ID, l.Status, l.VisitorName, utils.MaskPhone(l.VisitorPhone), affiliateID, utils.FormatISO8601(l.CreatedAt))
			}
			return w.Flush()
		},
	}
	list.Flags().String("status", "", "only leads in this status")
	list.Flags().Int("limit", 50, "maximum number of leads")
	cmd.AddCommand(list)

	cmd.AddCommand(&cobra.Command{
		Use:   "renotify <lead-id>",
		Short: "Publish LeadCreated again; recipients already messaged within the dedupe window are skipped",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := current().leads.Renotify(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "LeadCreated republished for %s\n", args[0])
			return nil
		},
	})
	return cmd
}

func affiliateCmd(current func() *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "affiliate",
		Short: "Manage affiliates",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "approve <affiliate-id>",
		Short: "Activate an affiliate, assigning a referral code if it has none",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := current().affiliates.Approve(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "affiliate %s approved with code %s\n", a.ID, a.Code())
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "block <affiliate-id>",
		Short: "Block an affiliate; existing cookies stop attributing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := current().affiliates.Block(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "affiliate %s blocked\n", args[0])
			return nil
		},
	})
	return cmd
}

func outboxCmd(current func() *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "Inspect the event outbox",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "flush",
		Short: "Publish outbox events left unpublished",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			n, err := current().outbox.Flush(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "published %d outbox events\n", n)
			return nil
		},
	})
	return cmd
}
