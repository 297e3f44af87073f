package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/mkernan/questboard/internal/models"
	"github.com/mkernan/questboard/internal/quest"
	"github.com/spf13/cobra"
)

func newQuestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quest",
		Short: "Quest definition commands",
	}

	cmd.AddCommand(newQuestCreateCmd())
	cmd.AddCommand(newQuestListCmd())
	cmd.AddCommand(newQuestShowCmd())
	cmd.AddCommand(newQuestObjectiveCmd())
	cmd.AddCommand(newQuestPublishCmd())
	cmd.AddCommand(newQuestArchiveCmd())
	return cmd
}

func newQuestCreateCmd() *cobra.Command {
	var (
		configPath     string
		title          string
		description    string
		points         int
		completionDays int
		finalApproval  bool
		exclusivity    string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new draft quest",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuestCreate(cmd, configPath, quest.CreateOpts{
				Title:                 title,
				Description:           description,
				Points:                points,
				CompletionDays:        completionDays,
				RequiresFinalApproval: finalApproval,
				ExclusivityCode:       exclusivity,
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "questboard.yaml", "path to Questboard config file")
	cmd.Flags().StringVar(&title, "title", "", "quest title (required)")
	cmd.Flags().StringVar(&description, "description", "", "detailed description")
	cmd.Flags().IntVar(&points, "points", 0, "points awarded on completion")
	cmd.Flags().IntVar(&completionDays, "days", 0, "days to complete after acceptance (0 = unlimited)")
	cmd.Flags().BoolVar(&finalApproval, "final-approval", false, "require a GM sign-off after all objectives")
	cmd.Flags().StringVar(&exclusivity, "exclusivity", "", "exclusivity code (one active run per member per code)")
	cmd.MarkFlagRequired("title")
	return cmd
}

func runQuestCreate(cmd *cobra.Command, configPath string, opts quest.CreateOpts) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	q, err := quest.Create(gormDB, opts)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created quest %s (draft)\n", q.ID)
	fmt.Fprintln(out, "Add objectives with `qb quest objective add`, then publish.")
	return nil
}

func newQuestListCmd() *cobra.Command {
	var (
		configPath string
		status     string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List quests",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuestList(cmd, configPath, quest.ListFilters{
				Status: models.QuestStatus(status),
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "questboard.yaml", "path to Questboard config file")
	cmd.Flags().StringVar(&status, "status", "", "filter by status (draft, published, archived)")
	return cmd
}

func runQuestList(cmd *cobra.Command, configPath string, filters quest.ListFilters) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	quests, err := quest.List(gormDB, filters)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(quests) == 0 {
		fmt.Fprintln(out, "No quests found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tSTATUS\tPOINTS\tDAYS\tFINAL")
	for _, q := range quests {
		days := "-"
		if q.CompletionDays > 0 {
			days = fmt.Sprintf("%d", q.CompletionDays)
		}
		final := "-"
		if q.RequiresFinalApproval {
			final = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
			q.ID, truncate(q.Title, 40), q.Status, q.Points, days, final)
	}
	w.Flush()
	return nil
}

func newQuestShowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show quest details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuestShow(cmd, configPath, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "questboard.yaml", "path to Questboard config file")
	return cmd
}

func runQuestShow(cmd *cobra.Command, configPath, id string) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	q, err := quest.Get(gormDB, id)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s  %s [%s]\n", q.ID, q.Title, q.Status)
	if q.Description != "" {
		fmt.Fprintf(out, "\n%s\n", q.Description)
	}
	fmt.Fprintf(out, "\nPoints: %d\n", q.Points)
	if q.CompletionDays > 0 {
		fmt.Fprintf(out, "Time limit: %d days\n", q.CompletionDays)
	}
	if q.RequiresFinalApproval {
		fmt.Fprintln(out, "Requires final GM approval")
	}
	if q.ExclusivityCode != "" {
		fmt.Fprintf(out, "Exclusivity code: %s\n", q.ExclusivityCode)
	}

	if len(q.Objectives) > 0 {
		fmt.Fprintf(out, "\nObjectives (%d):\n", len(q.Objectives))
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "  ID\tTITLE\tPOINTS\tEVIDENCE\tDEPENDS ON")
		for _, obj := range q.Objectives {
			dep := "-"
			if obj.DependsOnID != nil {
				dep = *obj.DependsOnID
			}
			fmt.Fprintf(w, "  %s\t%s\t%d\t%s\t%s\n",
				obj.ID, truncate(obj.Title, 40), obj.Points, obj.EvidenceType, dep)
		}
		w.Flush()
	}
	return nil
}

func newQuestObjectiveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "objective",
		Short: "Objective commands for draft quests",
	}
	cmd.AddCommand(newQuestObjectiveAddCmd())
	return cmd
}

func newQuestObjectiveAddCmd() *cobra.Command {
	var (
		configPath   string
		questID      string
		title        string
		points       int
		order        int
		dependsOn    string
		evidenceType string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add an objective to a draft quest",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuestObjectiveAdd(cmd, configPath, quest.ObjectiveOpts{
				QuestID:      questID,
				Title:        title,
				Points:       points,
				DisplayOrder: order,
				DependsOnID:  dependsOn,
				EvidenceType: models.EvidenceType(evidenceType),
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "questboard.yaml", "path to Questboard config file")
	cmd.Flags().StringVar(&questID, "quest", "", "quest ID (required)")
	cmd.Flags().StringVar(&title, "title", "", "objective title (required)")
	cmd.Flags().IntVar(&points, "points", 0, "points awarded on approval")
	cmd.Flags().IntVar(&order, "order", 0, "display order")
	cmd.Flags().StringVar(&dependsOn, "depends-on", "", "objective ID this one depends on")
	cmd.Flags().StringVar(&evidenceType, "evidence", "none", "evidence type (none, text, link, text_or_link)")
	cmd.MarkFlagRequired("quest")
	cmd.MarkFlagRequired("title")
	return cmd
}

func runQuestObjectiveAdd(cmd *cobra.Command, configPath string, opts quest.ObjectiveOpts) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	obj, err := quest.AddObjective(gormDB, opts)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Added objective %s to quest %s\n", obj.ID, opts.QuestID)
	return nil
}

func newQuestPublishCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "publish <id>",
		Short: "Publish a draft quest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			if err := quest.Publish(gormDB, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Published quest %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "questboard.yaml", "path to Questboard config file")
	return cmd
}

func newQuestArchiveCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "archive <id>",
		Short: "Archive a published quest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			if err := quest.Archive(gormDB, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Archived quest %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "questboard.yaml", "path to Questboard config file")
	return cmd
}

// truncate shortens s to max runes with an ellipsis.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
