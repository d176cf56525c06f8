package main

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/leadflow-pro/leadflow/internal/db"
	"github.com/leadflow-pro/leadflow/internal/model"
)

var (
	importPath string
	importUser string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import leads from CSV or XLSX into the pipeline",
	Long:  "Reads a lead sheet (business_name, category, city, state, website, email, phone columns) and loads the rows into the user's pipeline at the new stage.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		rows, err := readLeadSheet(importPath)
		if err != nil {
			return err
		}
		leads, err := leadsFromRows(rows)
		if err != nil {
			return err
		}

		var imported int
		if env.Pool != nil {
			imported, err = bulkImport(cmd, env, leads)
		} else {
			for _, lead := range leads {
				if _, err = env.Pipe.Add(ctx, importUser, lead, 0, ""); err != nil {
					break
				}
				imported++
			}
		}
		if err != nil {
			return eris.Wrap(err, "import leads")
		}

		zap.L().Info("import complete",
			zap.Int("imported", imported),
			zap.String("file", importPath),
		)
		return nil
	},
}

// bulkImport loads leads through a single COPY + upsert round trip.
func bulkImport(cmd *cobra.Command, env *appEnv, leads []model.Lead) (int, error) {
	now := time.Now().UTC()
	rows := make([][]any, 0, len(leads))
	for _, lead := range leads {
		leadJSON, err := json.Marshal(lead)
		if err != nil {
			return 0, eris.Wrap(err, "marshal lead")
		}
		rows = append(rows, []any{
			uuid.NewString(), importUser, leadJSON, string(model.StageNew),
			[]byte("[]"), 0, "", now, now,
		})
	}

	n, err := db.BulkUpsert(cmd.Context(), env.Pool, db.UpsertConfig{
		Table:        "pipeline_leads",
		Columns:      []string{"id", "user_id", "lead", "stage", "tags", "lead_score", "score_category", "created_at", "updated_at"},
		ConflictKeys: []string{"id"},
	}, rows)
	return int(n), err
}

// readLeadSheet reads a CSV or XLSX file into rows of strings, header first.
func readLeadSheet(path string) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrap(err, "open csv")
		}
		defer f.Close()

		reader := csv.NewReader(f)
		reader.FieldsPerRecord = -1
		var rows [][]string
		for {
			record, err := reader.Read()
			if err == io.EOF {
				break
			}
			if err != nil {
				return nil, eris.Wrap(err, "read csv")
			}
			rows = append(rows, record)
		}
		return rows, nil

	case ".xlsx":
		f, err := xlsx.OpenFile(path)
		if err != nil {
			return nil, eris.Wrap(err, "open xlsx")
		}
		if len(f.Sheets) == 0 {
			return nil, eris.New("xlsx has no sheets")
		}
		var rows [][]string
		for _, row := range f.Sheets[0].Rows {
			cells := make([]string, 0, len(row.Cells))
			for _, cell := range row.Cells {
				cells = append(cells, cell.String())
			}
			rows = append(rows, cells)
		}
		return rows, nil

	default:
		return nil, eris.Errorf("unsupported file type %q (want .csv or .xlsx)", filepath.Ext(path))
	}
}

// leadsFromRows maps sheet rows onto leads using the header row's column
// names. Unknown columns are ignored.
func leadsFromRows(rows [][]string) ([]model.Lead, error) {
	if len(rows) < 2 {
		return nil, eris.New("sheet needs a header row and at least one lead")
	}

	index := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if _, ok := index["business_name"]; !ok {
		return nil, eris.New("sheet is missing a business_name column")
	}

	cell := func(row []string, column string) string {
		i, ok := index[column]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	leads := make([]model.Lead, 0, len(rows)-1)
	for _, row := range rows[1:] {
		lead := model.Lead{
			ID:           uuid.NewString(),
			BusinessName: cell(row, "business_name"),
			Category:     cell(row, "category"),
			Address:      cell(row, "address"),
			City:         cell(row, "city"),
			State:        cell(row, "state"),
			Zip:          cell(row, "zip"),
			Phone:        cell(row, "phone"),
			Email:        cell(row, "email"),
			Website:      cell(row, "website"),
		}
		if lead.BusinessName == "" {
			continue
		}
		if raw := cell(row, "google_rating"); raw != "" {
			if rating, err := strconv.ParseFloat(raw, 64); err == nil {
				lead.GoogleRating = &rating
			}
		}
		if raw := cell(row, "review_count"); raw != "" {
			if reviews, err := strconv.Atoi(raw); err == nil {
				lead.ReviewCount = &reviews
			}
		}
		leads = append(leads, lead)
	}
	return leads, nil
}

func init() {
	importCmd.Flags().StringVar(&importPath, "file", "", "path to CSV or XLSX file (required)")
	importCmd.Flags().StringVar(&importUser, "user", "", "user to import leads for (required)")
	_ = importCmd.MarkFlagRequired("file")
	_ = importCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(importCmd)
}
