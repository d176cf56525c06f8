package pipeline

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/leadflow-pro/leadflow/internal/model"
)

// SQLiteStore implements Store over a local SQLite database, for
// single-machine deployments without Postgres.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a SQLiteStore over an open database, creating the
// pipeline tables if needed.
func NewSQLite(sqlDB *sql.DB) (*SQLiteStore, error) {
	ddl := `
CREATE TABLE IF NOT EXISTS pipeline_leads (
	id                  TEXT PRIMARY KEY,
	user_id             TEXT NOT NULL,
	lead                TEXT NOT NULL,
	stage               TEXT NOT NULL DEFAULT 'new',
	tags                TEXT NOT NULL DEFAULT '[]',
	notes               TEXT NOT NULL DEFAULT '',
	lead_score          INTEGER NOT NULL DEFAULT 0,
	score_category      TEXT NOT NULL DEFAULT '',
	last_contacted_at   DATETIME,
	last_contact_method TEXT NOT NULL DEFAULT '',
	next_follow_up_at   DATETIME,
	created_at          DATETIME NOT NULL,
	updated_at          DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_pipeline_leads_user ON pipeline_leads(user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS lead_activities (
	id         TEXT PRIMARY KEY,
	lead_id    TEXT NOT NULL,
	user_id    TEXT NOT NULL,
	type       TEXT NOT NULL,
	method     TEXT NOT NULL DEFAULT '',
	details    TEXT,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_lead_activities_lead ON lead_activities(lead_id, created_at DESC);
`
	if _, err := sqlDB.Exec(ddl); err != nil {
		return nil, eris.Wrap(err, "pipeline: migrate sqlite")
	}
	return &SQLiteStore{db: sqlDB}, nil
}

func (s *SQLiteStore) Add(ctx context.Context, userID string, lead model.Lead, score int, category string) (*model.PipelineLead, error) {
	leadJSON, err := json.Marshal(lead)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: marshal lead")
	}
	id := uuid.NewString()
	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO pipeline_leads (id, user_id, lead, stage, tags, lead_score, score_category, created_at, updated_at)
		 VALUES (?, ?, ?, ?, '[]', ?, ?, ?, ?)`,
		id, userID, string(leadJSON), string(model.StageNew), score, category, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: insert lead")
	}
	return s.Get(ctx, userID, id)
}

func (s *SQLiteStore) Get(ctx context.Context, userID, leadID string) (*model.PipelineLead, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+leadColumns+` FROM pipeline_leads WHERE id = ? AND user_id = ?`,
		leadID, userID,
	)
	pl, err := scanLeadSQL(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: get lead")
	}
	return pl, nil
}

func (s *SQLiteStore) List(ctx context.Context, userID string, filter ListFilter) ([]model.PipelineLead, error) {
	query := `SELECT ` + leadColumns + ` FROM pipeline_leads WHERE user_id = ?`
	args := []any{userID}
	if filter.Stage != "" {
		query += ` AND stage = ?`
		args = append(args, string(filter.Stage))
	}
	if filter.MinScore > 0 {
		query += ` AND lead_score >= ?`
		args = append(args, filter.MinScore)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: list leads")
	}
	defer rows.Close()

	var out []model.PipelineLead
	for rows.Next() {
		pl, err := scanLeadSQL(rows.Scan)
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: scan lead")
		}
		if filter.Tag != "" && !hasTag(pl.Tags, filter.Tag) {
			continue
		}
		out = append(out, *pl)
	}
	return out, eris.Wrap(rows.Err(), "pipeline: list leads iterate")
}

func (s *SQLiteStore) UpdateStage(ctx context.Context, userID, leadID string, stage model.Stage) (*model.PipelineLead, error) {
	if !stage.Valid() {
		return nil, eris.Errorf("pipeline: invalid stage %q", stage)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE pipeline_leads SET stage = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
		string(stage), time.Now().UTC(), leadID, userID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: update stage")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	s.logActivity(ctx, leadID, userID, model.ActivityStageChanged, "", map[string]any{"stage": string(stage)})
	return s.Get(ctx, userID, leadID)
}

func (s *SQLiteStore) Update(ctx context.Context, userID, leadID string, input UpdateInput) (*model.PipelineLead, error) {
	sets := []string{"updated_at = ?"}
	args := []any{time.Now().UTC()}

	if input.Notes != nil {
		sets = append(sets, "notes = ?")
		args = append(args, *input.Notes)
	}
	if input.Tags != nil {
		tagsJSON, err := json.Marshal(*input.Tags)
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: marshal tags")
		}
		sets = append(sets, "tags = ?")
		args = append(args, string(tagsJSON))
	}
	if input.NextFollowUpAt != nil {
		sets = append(sets, "next_follow_up_at = ?")
		args = append(args, *input.NextFollowUpAt)
	}
	if input.LeadScore != nil {
		sets = append(sets, "lead_score = ?")
		args = append(args, *input.LeadScore)
	}
	if input.ScoreCategory != nil {
		sets = append(sets, "score_category = ?")
		args = append(args, *input.ScoreCategory)
	}
	args = append(args, leadID, userID)

	res, err := s.db.ExecContext(ctx,
		`UPDATE pipeline_leads SET `+strings.Join(sets, ", ")+` WHERE id = ? AND user_id = ?`,
		args...,
	)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: update lead")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	if input.NextFollowUpAt != nil {
		s.logActivity(ctx, leadID, userID, model.ActivityFollowUpScheduled, "",
			map[string]any{"at": input.NextFollowUpAt.Format(time.RFC3339)})
	}
	if input.Notes != nil {
		s.logActivity(ctx, leadID, userID, model.ActivityNoteAdded, "", nil)
	}
	return s.Get(ctx, userID, leadID)
}

func (s *SQLiteStore) RecordContact(ctx context.Context, userID, leadID string, method model.ContactMethod) (*model.PipelineLead, error) {
	if !method.Valid() {
		return nil, eris.Errorf("pipeline: invalid contact method %q", method)
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE pipeline_leads SET last_contacted_at = ?, last_contact_method = ?, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		now, string(method), now, leadID, userID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: record contact")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	s.logActivity(ctx, leadID, userID, model.ActivityContacted, method, nil)
	return s.Get(ctx, userID, leadID)
}

func (s *SQLiteStore) Delete(ctx context.Context, userID, leadID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM pipeline_leads WHERE id = ? AND user_id = ?`,
		leadID, userID,
	)
	if err != nil {
		return eris.Wrap(err, "pipeline: delete lead")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	_, err = s.db.ExecContext(ctx, `DELETE FROM lead_activities WHERE lead_id = ? AND user_id = ?`, leadID, userID)
	return eris.Wrap(err, "pipeline: delete activities")
}

func (s *SQLiteStore) Activities(ctx context.Context, userID, leadID string) ([]model.Activity, error) {
	if _, err := s.Get(ctx, userID, leadID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, lead_id, user_id, type, method, details, created_at
		 FROM lead_activities WHERE lead_id = ? AND user_id = ? ORDER BY created_at DESC`,
		leadID, userID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: list activities")
	}
	defer rows.Close()

	var out []model.Activity
	for rows.Next() {
		var a model.Activity
		var typ, method string
		var details sql.NullString
		if err := rows.Scan(&a.ID, &a.LeadID, &a.UserID, &typ, &method, &details, &a.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "pipeline: scan activity")
		}
		a.Type = model.ActivityType(typ)
		a.ContactMethod = model.ContactMethod(method)
		if details.Valid && details.String != "" {
			_ = json.Unmarshal([]byte(details.String), &a.Details)
		}
		out = append(out, a)
	}
	return out, eris.Wrap(rows.Err(), "pipeline: list activities iterate")
}

func (s *SQLiteStore) StageCounts(ctx context.Context, userID string) (map[model.Stage]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT stage, COUNT(*) FROM pipeline_leads WHERE user_id = ? GROUP BY stage`,
		userID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: stage counts")
	}
	defer rows.Close()

	counts := make(map[model.Stage]int)
	for rows.Next() {
		var stage string
		var n int
		if err := rows.Scan(&stage, &n); err != nil {
			return nil, eris.Wrap(err, "pipeline: scan stage count")
		}
		counts[model.Stage(stage)] = n
	}
	return counts, eris.Wrap(rows.Err(), "pipeline: stage counts iterate")
}

func (s *SQLiteStore) Close() {
	_ = s.db.Close()
}

func (s *SQLiteStore) logActivity(ctx context.Context, leadID, userID string, typ model.ActivityType, method model.ContactMethod, details map[string]any) {
	var detailsJSON string
	if details != nil {
		raw, _ := json.Marshal(details)
		detailsJSON = string(raw)
	}
	_, _ = s.db.ExecContext(ctx,
		`INSERT INTO lead_activities (id, lead_id, user_id, type, method, details, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), leadID, userID, string(typ), string(method), detailsJSON, time.Now().UTC(),
	)
}

// scanLeadSQL reads one pipeline_leads row from a database/sql scanner.
func scanLeadSQL(scan func(...any) error) (*model.PipelineLead, error) {
	var pl model.PipelineLead
	var leadJSON, tagsJSON, stage, method string
	var lastContacted, nextFollowUp sql.NullTime
	err := scan(&pl.ID, &pl.UserID, &leadJSON, &stage, &tagsJSON, &pl.Notes,
		&pl.LeadScore, &pl.ScoreCategory, &lastContacted, &method,
		&nextFollowUp, &pl.CreatedAt, &pl.UpdatedAt)
	if err != nil {
		return nil, err
	}
	pl.Stage = model.Stage(stage)
	pl.LastContactMethod = model.ContactMethod(method)
	if lastContacted.Valid {
		pl.LastContactedAt = &lastContacted.Time
	}
	if nextFollowUp.Valid {
		pl.NextFollowUpAt = &nextFollowUp.Time
	}
	if err := json.Unmarshal([]byte(leadJSON), &pl.Lead); err != nil {
		return nil, eris.Wrap(err, "pipeline: decode lead payload")
	}
	if tagsJSON != "" {
		if err := json.Unmarshal([]byte(tagsJSON), &pl.Tags); err != nil {
			return nil, eris.Wrap(err, "pipeline: decode tags")
		}
	}
	return &pl, nil
}
