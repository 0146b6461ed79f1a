package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/trustgate/internal/ledger"
)

func TestRecordRunInsertsOnce(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	inserted, err := s.RecordRun(ctx, createTestRun("r1", "profiling", true), testOutputs)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = s.RecordRun(ctx, createTestRun("r1", "profiling", false), testOutputs)
	require.NoError(t, err)
	assert.False(t, inserted)

	run, err := s.GetRun(ctx, "r1")
	require.NoError(t, err)
	assert.True(t, run.Success, "first record wins")
}

func TestRecordRunNullableStages(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	before := "init"
	run := createTestRun("r2", "specification", false)
	run.StageBefore = &before
	run.Blocked = true

	_, err := s.RecordRun(ctx, run, nil)
	require.NoError(t, err)

	got, err := s.GetRun(ctx, "r2")
	require.NoError(t, err)
	require.NotNil(t, got.StageBefore)
	assert.Equal(t, "init", *got.StageBefore)
	assert.Nil(t, got.StageAfter)
	assert.True(t, got.Blocked)
	assert.False(t, got.Success)
}

func TestRunFromLedger(t *testing.T) {
	l := ledger.Create("build", nil, nil, ledger.WithRunIDGenerator(ledger.NewFixedGenerator("r3")))
	l.AddWarning("w")
	l.AddError("e1")
	l.AddError("e2")

	run := RunFromLedger(l, "audit/ledger/r3.json", "d", true)
	assert.Equal(t, "r3", run.RunID)
	assert.Equal(t, "build", run.Command)
	assert.Equal(t, 1, run.WarningCount)
	assert.Equal(t, 2, run.ErrorCount)
	assert.True(t, run.Blocked)
	assert.Equal(t, "guided", run.ExecutionMode)
}
