package main

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/leadflow-pro/leadflow/internal/model"
	"github.com/leadflow-pro/leadflow/internal/pipeline"
)

var (
	exportPath  string
	exportUser  string
	exportStage string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export pipeline leads to XLSX",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		filter := pipeline.ListFilter{Stage: model.Stage(exportStage)}
		if filter.Stage != "" && !filter.Stage.Valid() {
			return eris.Errorf("unknown stage %q", exportStage)
		}

		leads, err := env.Pipe.List(ctx, exportUser, filter)
		if err != nil {
			return err
		}

		if err := writeLeadsXLSX(exportPath, leads); err != nil {
			return err
		}

		zap.L().Info("export complete",
			zap.Int("leads", len(leads)),
			zap.String("file", exportPath),
		)
		return nil
	},
}

func writeLeadsXLSX(path string, leads []model.PipelineLead) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Pipeline")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	for _, column := range []string{
		"Business", "Category", "City", "State", "Website", "Email", "Phone",
		"Stage", "Score", "Score Category", "Tags", "Notes", "Last Contacted", "Next Follow-Up",
	} {
		header.AddCell().SetString(column)
	}

	for _, pl := range leads {
		row := sheet.AddRow()
		row.AddCell().SetString(pl.Lead.BusinessName)
		row.AddCell().SetString(pl.Lead.Category)
		row.AddCell().SetString(pl.Lead.City)
		row.AddCell().SetString(pl.Lead.State)
		row.AddCell().SetString(pl.Lead.Website)
		row.AddCell().SetString(pl.Lead.Email)
		row.AddCell().SetString(pl.Lead.Phone)
		row.AddCell().SetString(string(pl.Stage))
		row.AddCell().SetInt(pl.LeadScore)
		row.AddCell().SetString(pl.ScoreCategory)
		row.AddCell().SetString(strings.Join(pl.Tags, ", "))
		row.AddCell().SetString(pl.Notes)
		if pl.LastContactedAt != nil {
			row.AddCell().SetString(pl.LastContactedAt.Format("2006-01-02"))
		} else {
			row.AddCell().SetString("")
		}
		if pl.NextFollowUpAt != nil {
			row.AddCell().SetString(pl.NextFollowUpAt.Format("2006-01-02"))
		} else {
			row.AddCell().SetString("")
		}
	}

	return eris.Wrap(f.Save(path), "export: save xlsx")
}

func init() {
	exportCmd.Flags().StringVar(&exportPath, "file", "pipeline.xlsx", "output path")
	exportCmd.Flags().StringVar(&exportUser, "user", "", "user whose pipeline to export (required)")
	exportCmd.Flags().StringVar(&exportStage, "stage", "", "filter by stage")
	_ = exportCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(exportCmd)
}
