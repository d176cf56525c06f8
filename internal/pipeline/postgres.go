package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/leadflow-pro/leadflow/internal/db"
	"github.com/leadflow-pro/leadflow/internal/model"
)

// PostgresStore implements Store over a pgx pool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore. closeFn, if non-nil, is invoked on
// Close; pass the pool's Close when the store owns the pool.
func NewPostgres(pool db.Pool, closeFn func()) *PostgresStore {
	return &PostgresStore{pool: pool, closeFn: closeFn}
}

// MigratePostgres creates the pipeline tables.
func MigratePostgres(ctx context.Context, pool db.Pool) error {
	ddl := `
CREATE TABLE IF NOT EXISTS pipeline_leads (
	id                  TEXT PRIMARY KEY,
	user_id             TEXT NOT NULL,
	lead                JSONB NOT NULL,
	stage               TEXT NOT NULL DEFAULT 'new',
	tags                JSONB NOT NULL DEFAULT '[]',
	notes               TEXT NOT NULL DEFAULT '',
	lead_score          INTEGER NOT NULL DEFAULT 0,
	score_category      TEXT NOT NULL DEFAULT '',
	last_contacted_at   TIMESTAMPTZ,
	last_contact_method TEXT NOT NULL DEFAULT '',
	next_follow_up_at   TIMESTAMPTZ,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_pipeline_leads_user ON pipeline_leads(user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_pipeline_leads_stage ON pipeline_leads(user_id, stage);

CREATE TABLE IF NOT EXISTS lead_activities (
	id         TEXT PRIMARY KEY,
	lead_id    TEXT NOT NULL,
	user_id    TEXT NOT NULL,
	type       TEXT NOT NULL,
	method     TEXT NOT NULL DEFAULT '',
	details    JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_lead_activities_lead ON lead_activities(lead_id, created_at DESC);
`
	_, err := pool.Exec(ctx, ddl)
	return eris.Wrap(err, "pipeline: migrate postgres")
}

const leadColumns = `id, user_id, lead, stage, tags, notes, lead_score, score_category,
	last_contacted_at, last_contact_method, next_follow_up_at, created_at, updated_at`

func (s *PostgresStore) Add(ctx context.Context, userID string, lead model.Lead, score int, category string) (*model.PipelineLead, error) {
	leadJSON, err := json.Marshal(lead)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: marshal lead")
	}

	id := uuid.NewString()
	now := time.Now().UTC()
	_, err = s.pool.Exec(ctx,
		`INSERT INTO pipeline_leads (id, user_id, lead, stage, tags, lead_score, score_category, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, '[]', $5, $6, $7, $7)`,
		id, userID, leadJSON, string(model.StageNew), score, category, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: insert lead")
	}

	return s.Get(ctx, userID, id)
}

func (s *PostgresStore) Get(ctx context.Context, userID, leadID string) (*model.PipelineLead, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+leadColumns+` FROM pipeline_leads WHERE id = $1 AND user_id = $2`,
		leadID, userID,
	)
	pl, err := scanLead(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrap(err, "pipeline: get lead")
	}
	return pl, nil
}

func (s *PostgresStore) List(ctx context.Context, userID string, filter ListFilter) ([]model.PipelineLead, error) {
	query := `SELECT ` + leadColumns + ` FROM pipeline_leads WHERE user_id = $1`
	args := []any{userID}

	if filter.Stage != "" {
		args = append(args, string(filter.Stage))
		query += ` AND stage = $2`
	}
	if filter.MinScore > 0 {
		args = append(args, filter.MinScore)
		query += ` AND lead_score >= $` + itoa(len(args))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: list leads")
	}
	defer rows.Close()

	var out []model.PipelineLead
	for rows.Next() {
		pl, err := scanLead(rows)
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

func (s *PostgresStore) UpdateStage(ctx context.Context, userID, leadID string, stage model.Stage) (*model.PipelineLead, error) {
	if !stage.Valid() {
		return nil, eris.Errorf("pipeline: invalid stage %q", stage)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE pipeline_leads SET stage = $1, updated_at = now() WHERE id = $2 AND user_id = $3`,
		string(stage), leadID, userID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: update stage")
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotFound
	}

	s.logActivity(ctx, leadID, userID, model.ActivityStageChanged, "", map[string]any{"stage": string(stage)})
	return s.Get(ctx, userID, leadID)
}

func (s *PostgresStore) Update(ctx context.Context, userID, leadID string, input UpdateInput) (*model.PipelineLead, error) {
	sets := []string{"updated_at = now()"}
	args := []any{leadID, userID}

	add := func(clause string, value any) {
		args = append(args, value)
		sets = append(sets, clause+" = $"+itoa(len(args)))
	}

	if input.Notes != nil {
		add("notes", *input.Notes)
	}
	if input.Tags != nil {
		tagsJSON, err := json.Marshal(*input.Tags)
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: marshal tags")
		}
		add("tags", tagsJSON)
	}
	if input.NextFollowUpAt != nil {
		add("next_follow_up_at", *input.NextFollowUpAt)
	}
	if input.LeadScore != nil {
		add("lead_score", *input.LeadScore)
	}
	if input.ScoreCategory != nil {
		add("score_category", *input.ScoreCategory)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE pipeline_leads SET `+strings.Join(sets, ", ")+` WHERE id = $1 AND user_id = $2`,
		args...,
	)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: update lead")
	}
	if tag.RowsAffected() == 0 {
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

func (s *PostgresStore) RecordContact(ctx context.Context, userID, leadID string, method model.ContactMethod) (*model.PipelineLead, error) {
	if !method.Valid() {
		return nil, eris.Errorf("pipeline: invalid contact method %q", method)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE pipeline_leads SET last_contacted_at = now(), last_contact_method = $1, updated_at = now()
		 WHERE id = $2 AND user_id = $3`,
		string(method), leadID, userID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: record contact")
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotFound
	}

	s.logActivity(ctx, leadID, userID, model.ActivityContacted, method, nil)
	return s.Get(ctx, userID, leadID)
}

func (s *PostgresStore) Delete(ctx context.Context, userID, leadID string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM pipeline_leads WHERE id = $1 AND user_id = $2`,
		leadID, userID,
	)
	if err != nil {
		return eris.Wrap(err, "pipeline: delete lead")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	_, err = s.pool.Exec(ctx, `DELETE FROM lead_activities WHERE lead_id = $1 AND user_id = $2`, leadID, userID)
	return eris.Wrap(err, "pipeline: delete activities")
}

func (s *PostgresStore) Activities(ctx context.Context, userID, leadID string) ([]model.Activity, error) {
	// Ownership check first so a foreign lead reads as not-found.
	if _, err := s.Get(ctx, userID, leadID); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, lead_id, user_id, type, method, details, created_at
		 FROM lead_activities WHERE lead_id = $1 AND user_id = $2 ORDER BY created_at DESC`,
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
		var details []byte
		if err := rows.Scan(&a.ID, &a.LeadID, &a.UserID, &typ, &method, &details, &a.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "pipeline: scan activity")
		}
		a.Type = model.ActivityType(typ)
		a.ContactMethod = model.ContactMethod(method)
		if len(details) > 0 {
			_ = json.Unmarshal(details, &a.Details)
		}
		out = append(out, a)
	}
	return out, eris.Wrap(rows.Err(), "pipeline: list activities iterate")
}

func (s *PostgresStore) StageCounts(ctx context.Context, userID string) (map[model.Stage]int, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT stage, COUNT(*) FROM pipeline_leads WHERE user_id = $1 GROUP BY stage`,
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

func (s *PostgresStore) Close() {
	if s.closeFn != nil {
		s.closeFn()
	}
}

// logActivity appends to the activity log. Best effort: a failed log entry
// never fails the mutation it describes.
func (s *PostgresStore) logActivity(ctx context.Context, leadID, userID string, typ model.ActivityType, method model.ContactMethod, details map[string]any) {
	var detailsJSON []byte
	if details != nil {
		detailsJSON, _ = json.Marshal(details)
	}
	_, _ = s.pool.Exec(ctx,
		`INSERT INTO lead_activities (id, lead_id, user_id, type, method, details, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, now())`,
		uuid.NewString(), leadID, userID, string(typ), string(method), detailsJSON,
	)
}

// scanLead reads one pipeline_leads row.
func scanLead(row pgx.Row) (*model.PipelineLead, error) {
	var pl model.PipelineLead
	var leadJSON, tagsJSON []byte
	var stage, method string
	err := row.Scan(&pl.ID, &pl.UserID, &leadJSON, &stage, &tagsJSON, &pl.Notes,
		&pl.LeadScore, &pl.ScoreCategory, &pl.LastContactedAt, &method,
		&pl.NextFollowUpAt, &pl.CreatedAt, &pl.UpdatedAt)
	if err != nil {
		return nil, err
	}
	pl.Stage = model.Stage(stage)
	pl.LastContactMethod = model.ContactMethod(method)
	if err := json.Unmarshal(leadJSON, &pl.Lead); err != nil {
		return nil, eris.Wrap(err, "pipeline: decode lead payload")
	}
	if len(tagsJSON) > 0 {
		if err := json.Unmarshal(tagsJSON, &pl.Tags); err != nil {
			return nil, eris.Wrap(err, "pipeline: decode tags")
		}
	}
	return &pl, nil
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

func itoa(n int) string { return strconv.Itoa(n) }
