package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/leadflow-pro/leadflow/internal/model"
	"github.com/leadflow-pro/leadflow/internal/pipeline"
)

var (
	pipelineUser  string
	pipelineStage string
)

var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Work with the CRM pipeline",
}

var pipelineListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pipeline leads",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		filter := pipeline.ListFilter{Stage: model.Stage(pipelineStage)}
		if filter.Stage != "" && !filter.Stage.Valid() {
			return eris.Errorf("unknown stage %q", pipelineStage)
		}

		leads, err := env.Pipe.List(ctx, pipelineUser, filter)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tBUSINESS\tSTAGE\tSCORE\tCATEGORY\tUPDATED")
		for _, pl := range leads {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
				pl.ID, pl.Lead.BusinessName, pl.Stage, pl.LeadScore,
				pl.ScoreCategory, pl.UpdatedAt.Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

var pipelineStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show per-stage lead counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		counts, err := env.Pipe.StageCounts(ctx, pipelineUser)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "STAGE\tLEADS")
		total := 0
		for _, stage := range model.Stages {
			fmt.Fprintf(w, "%s\t%d\n", stage, counts[stage])
			total += counts[stage]
		}
		fmt.Fprintf(w, "total\t%d\n", total)
		return w.Flush()
	},
}

var pipelineStageCmd = &cobra.Command{
	Use:   "stage <lead-id> <stage>",
	Short: "Move a lead to another stage",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		pl, err := env.Pipe.UpdateStage(ctx, pipelineUser, args[0], model.Stage(args[1]))
		if err != nil {
			return err
		}
		return printJSON(pl)
	},
}

var pipelineContactCmd = &cobra.Command{
	Use:   "contact <lead-id> <method>",
	Short: "Record that a lead was contacted",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		pl, err := env.Pipe.RecordContact(ctx, pipelineUser, args[0], model.ContactMethod(args[1]))
		if err != nil {
			return err
		}
		return printJSON(pl)
	},
}

var pipelineActivitiesCmd = &cobra.Command{
	Use:   "activities <lead-id>",
	Short: "Show a lead's activity log",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		activities, err := env.Pipe.Activities(ctx, pipelineUser, args[0])
		if err != nil {
			return err
		}
		return printJSON(activities)
	},
}

var pipelineDeleteCmd = &cobra.Command{
	Use:   "delete <lead-id>",
	Short: "Remove a lead from the pipeline",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		return env.Pipe.Delete(ctx, pipelineUser, args[0])
	},
}

func init() {
	pipelineCmd.PersistentFlags().StringVar(&pipelineUser, "user", "", "user the pipeline belongs to (required)")
	_ = pipelineCmd.MarkPersistentFlagRequired("user")
	pipelineListCmd.Flags().StringVar(&pipelineStage, "stage", "", "filter by stage")
	pipelineCmd.AddCommand(pipelineListCmd, pipelineStatsCmd, pipelineStageCmd,
		pipelineContactCmd, pipelineActivitiesCmd, pipelineDeleteCmd)
	rootCmd.AddCommand(pipelineCmd)
}
