package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearcheck/dossier-api/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestSQLite_CreateAndGetJob(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	job := &model.Job{
		Identifier:   "52998224725",
		Kind:         model.KindIndividual,
		BuyerContact: "buyer@example.com",
	}
	require.NoError(t, st.CreateJob(ctx, job))
	require.NotEmpty(t, job.ID)

	got, err := st.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, "52998224725", got.Identifier)
	assert.Equal(t, model.KindIndividual, got.Kind)
	assert.Equal(t, model.JobStatusPending, got.Status)
	assert.Equal(t, model.StageIdle, got.Stage)
	assert.Equal(t, "buyer@example.com", got.BuyerContact)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestSQLite_GetJob_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetJob(context.Background(), "nonexistent")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSQLite_UpdateJob_PartialPatch(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	job := &model.Job{Identifier: "52998224725", Kind: model.KindIndividual}
	require.NoError(t, st.CreateJob(ctx, job))

	require.NoError(t, st.UpdateJob(ctx, job.ID, model.StatusPatch(model.JobStatusPaid)))

	got, err := st.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusPaid, got.Status)
	// Unpatched fields survive.
	assert.Equal(t, model.StageIdle, got.Stage)
	assert.Empty(t, got.ReportID)

	require.NoError(t, st.UpdateJob(ctx, job.ID, model.StagePatch(model.StageIdentity)))
	got, err = st.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusPaid, got.Status)
	assert.Equal(t, model.StageIdentity, got.Stage)
}

func TestSQLite_UpdateJob_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	err := st.UpdateJob(context.Background(), "nope", model.StatusPatch(model.JobStatusFailed))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSQLite_ListStuckJobs(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	stuck := &model.Job{
		Identifier: "52998224725",
		Kind:       model.KindIndividual,
		Status:     model.JobStatusProcessing,
		PaymentID:  "pay-1",
	}
	require.NoError(t, st.CreateJob(ctx, stuck))

	// Processing but no payment reference: not refundable, excluded.
	noPayment := &model.Job{
		Identifier: "52998224725",
		Kind:       model.KindIndividual,
		Status:     model.JobStatusProcessing,
	}
	require.NoError(t, st.CreateJob(ctx, noPayment))

	// Completed jobs are never stuck.
	done := &model.Job{
		Identifier: "52998224725",
		Kind:       model.KindIndividual,
		Status:     model.JobStatusCompleted,
		PaymentID:  "pay-2",
	}
	require.NoError(t, st.CreateJob(ctx, done))

	jobs, err := st.ListStuckJobs(ctx, time.Now().UTC().Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, stuck.ID, jobs[0].ID)

	// A cutoff in the past matches nothing.
	jobs, err = st.ListStuckJobs(ctx, time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestSQLite_ReportRoundTrip(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	report := &model.Report{
		Identifier:  "52998224725",
		Kind:        model.KindIndividual,
		DisplayName: "Maria Souza",
		Payload: model.ReportPayload{
			Cadastral: &model.SubjectData{Name: "Maria Souza"},
			CourtRecords: []model.CourtRecord{
				{Jurisdiction: "tjsp", Reference: "0001234-56.2023.8.26.0100", CaseClass: "Execução Fiscal", Role: model.RoleDefendant},
			},
			Sources: []string{"cadastral", "courtsearch"},
		},
		Synopsis:  "One open enforcement case.",
		ExpiresAt: time.Now().UTC().Add(30 * 24 * time.Hour),
	}

	id, err := st.CreateReport(ctx, report)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := st.GetReport(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Maria Souza", got.DisplayName)
	assert.Equal(t, "One open enforcement case.", got.Synopsis)
	require.NotNil(t, got.Payload.Cadastral)
	assert.Equal(t, "Maria Souza", got.Payload.Cadastral.Name)
	require.Len(t, got.Payload.CourtRecords, 1)
	assert.Equal(t, "tjsp", got.Payload.CourtRecords[0].Jurisdiction)
	assert.False(t, got.Expired(time.Now().UTC()))
}

func TestSQLite_GetReport_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetReport(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}
