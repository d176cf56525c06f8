package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/leadflow-pro/leadflow/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

var leadColumnNames = []string{
	"id", "user_id", "lead", "stage", "tags", "notes", "lead_score", "score_category",
	"last_contacted_at", "last_contact_method", "next_follow_up_at", "created_at", "updated_at",
}

func leadRow(id, userID string) *pgxmock.Rows {
	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	return pgxmock.NewRows(leadColumnNames).AddRow(
		id, userID, []byte(`{"id":"lead-1","business_name":"Acme"}`), "new",
		[]byte(`["hot"]`), "call back monday", 72, "hot",
		nil, "", nil, now, now,
	)
}

func TestPostgresStore_Get(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT (.+) FROM pipeline_leads WHERE id = \$1 AND user_id = \$2`).
		WithArgs("pl-1", "user-1").
		WillReturnRows(leadRow("pl-1", "user-1"))

	store := NewPostgres(mock, nil)
	pl, err := store.Get(context.Background(), "user-1", "pl-1")
	require.NoError(t, err)
	assert.Equal(t, "pl-1", pl.ID)
	assert.Equal(t, "Acme", pl.Lead.BusinessName)
	assert.Equal(t, model.StageNew, pl.Stage)
	assert.Equal(t, []string{"hot"}, pl.Tags)
	assert.Equal(t, 72, pl.LeadScore)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetForeignLeadIsNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	// The row exists for another user; the scoped query returns nothing.
	mock.ExpectQuery(`SELECT (.+) FROM pipeline_leads WHERE id = \$1 AND user_id = \$2`).
		WithArgs("pl-1", "intruder").
		WillReturnRows(pgxmock.NewRows(leadColumnNames))

	store := NewPostgres(mock, nil)
	_, err = store.Get(context.Background(), "intruder", "pl-1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateStage(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`UPDATE pipeline_leads SET stage = \$1`).
		WithArgs("qualified", "pl-1", "user-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`INSERT INTO lead_activities`).
		WithArgs(pgxmock.AnyArg(), "pl-1", "user-1", "stage_changed", "", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(`SELECT (.+) FROM pipeline_leads WHERE id = \$1 AND user_id = \$2`).
		WithArgs("pl-1", "user-1").
		WillReturnRows(leadRow("pl-1", "user-1"))

	store := NewPostgres(mock, nil)
	pl, err := store.UpdateStage(context.Background(), "user-1", "pl-1", model.StageQualified)
	require.NoError(t, err)
	assert.Equal(t, "pl-1", pl.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateStageRejectsUnknownStage(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgres(mock, nil)
	_, err = store.UpdateStage(context.Background(), "user-1", "pl-1", model.Stage("bogus"))
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateStageNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`UPDATE pipeline_leads SET stage = \$1`).
		WithArgs("won", "pl-404", "user-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	store := NewPostgres(mock, nil)
	_, err = store.UpdateStage(context.Background(), "user-1", "pl-404", model.StageWon)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RecordContact(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`UPDATE pipeline_leads SET last_contacted_at = now\(\)`).
		WithArgs("email", "pl-1", "user-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`INSERT INTO lead_activities`).
		WithArgs(pgxmock.AnyArg(), "pl-1", "user-1", "contacted", "email", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(`SELECT (.+) FROM pipeline_leads`).
		WithArgs("pl-1", "user-1").
		WillReturnRows(leadRow("pl-1", "user-1"))

	store := NewPostgres(mock, nil)
	_, err = store.RecordContact(context.Background(), "user-1", "pl-1", model.ContactEmail)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RecordContactRejectsUnknownMethod(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgres(mock, nil)
	_, err = store.RecordContact(context.Background(), "user-1", "pl-1", model.ContactMethod("carrier pigeon"))
	assert.Error(t, err)
}

func TestPostgresStore_DeleteNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`DELETE FROM pipeline_leads WHERE id = \$1 AND user_id = \$2`).
		WithArgs("pl-404", "user-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	store := NewPostgres(mock, nil)
	err = store.Delete(context.Background(), "user-1", "pl-404")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteRemovesActivities(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`DELETE FROM pipeline_leads WHERE id = \$1 AND user_id = \$2`).
		WithArgs("pl-1", "user-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`DELETE FROM lead_activities WHERE lead_id = \$1 AND user_id = \$2`).
		WithArgs("pl-1", "user-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 2))

	store := NewPostgres(mock, nil)
	require.NoError(t, store.Delete(context.Background(), "user-1", "pl-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListFiltersByStage(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT (.+) FROM pipeline_leads WHERE user_id = \$1 AND stage = \$2`).
		WithArgs("user-1", "new").
		WillReturnRows(leadRow("pl-1", "user-1"))

	store := NewPostgres(mock, nil)
	leads, err := store.List(context.Background(), "user-1", ListFilter{Stage: model.StageNew})
	require.NoError(t, err)
	assert.Len(t, leads, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListTagFilterInMemory(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	rows := pgxmock.NewRows(leadColumnNames).
		AddRow("pl-1", "user-1", []byte(`{"id":"l1","business_name":"A"}`), "new",
			[]byte(`["HOT"]`), "", 0, "", nil, "", nil, now, now).
		AddRow("pl-2", "user-1", []byte(`{"id":"l2","business_name":"B"}`), "new",
			[]byte(`[]`), "", 0, "", nil, "", nil, now, now)

	mock.ExpectQuery(`SELECT (.+) FROM pipeline_leads WHERE user_id = \$1`).
		WithArgs("user-1").
		WillReturnRows(rows)

	store := NewPostgres(mock, nil)
	leads, err := store.List(context.Background(), "user-1", ListFilter{Tag: "hot"})
	require.NoError(t, err)
	require.Len(t, leads, 1, "tag match is case-insensitive")
	assert.Equal(t, "pl-1", leads[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_StageCounts(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT stage, COUNT\(\*\) FROM pipeline_leads WHERE user_id = \$1 GROUP BY stage`).
		WithArgs("user-1").
		WillReturnRows(pgxmock.NewRows([]string{"stage", "count"}).
			AddRow("new", 3).
			AddRow("qualified", 1))

	store := NewPostgres(mock, nil)
	counts, err := store.StageCounts(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, map[model.Stage]int{
		model.StageNew:       3,
		model.StageQualified: 1,
	}, counts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ActivitiesChecksOwnershipFirst(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT (.+) FROM pipeline_leads WHERE id = \$1 AND user_id = \$2`).
		WithArgs("pl-1", "intruder").
		WillReturnRows(pgxmock.NewRows(leadColumnNames))

	store := NewPostgres(mock, nil)
	_, err = store.Activities(context.Background(), "intruder", "pl-1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigratePostgres(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS pipeline_leads`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, MigratePostgres(context.Background(), mock))
	assert.NoError(t, mock.ExpectationsWereMet())
}
