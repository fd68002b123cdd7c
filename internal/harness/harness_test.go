package harness

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macterra/Axio-sub003/internal/journal"
	"github.com/macterra/Axio-sub003/pkg/constitution"
	"github.com/macterra/Axio-sub003/pkg/kernel"
)

const testConstitution = `
transformations:
  - name: EXECUTE
    bit: 0
  - name: WRITE
    bit: 1
  - name: GOVERNANCE_DESTROY
    bit: 54
  - name: GOVERNANCE_CREATE
    bit: 55
governance:
  create: GOVERNANCE_CREATE
  destroy: GOVERNANCE_DESTROY
instruction_budget: 128
authorities:
  - authority_id: VK-001
    holder_id: holder-1
    resource_scope: repo://main
    transformations: [EXECUTE, WRITE, GOVERNANCE_CREATE, GOVERNANCE_DESTROY]
    start_epoch: 0
    expiry_epoch: 20
`

const testScenario = `
name: exercise-run
batches:
  - batch_id: batch-1
    epoch_advancement:
      event_id: adv-1
      new_epoch: 1
    events:
      - inject:
          authority:
            authority_id: VK-010
            holder_id: holder-2
            resource_scope: repo://side
            transformations: [EXECUTE]
            start_epoch: 1
            expiry_epoch: 5
          nonce: n-1
      - action:
          request_id: req-1
          resource_scope: repo://main
          transformation: EXECUTE
  - batch_id: batch-2
    epoch_advancement:
      new_epoch: 2
    events:
      - governance:
          event_id: gov-1
          action: CREATE_AUTHORITY
          initiators: [VK-001]
          new_authority_id: VK-020
          resource_scope: repo://main
          scope_basis_authority_id: VK-001
          transformations: [EXECUTE]
          expiry_epoch: 15
          holder_id: holder-3
      - action:
          request_id: req-2
          resource_scope: repo://side
          transformation: EXECUTE
`

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSetup(t *testing.T) (*constitution.Constitution, []Batch) {
	t.Helper()
	c, err := constitution.Parse([]byte(testConstitution))
	require.NoError(t, err)
	name, batches, err := ParseScenario([]byte(testScenario), c)
	require.NoError(t, err)
	assert.Equal(t, "exercise-run", name)
	return c, batches
}

func TestParseScenarioResolvesEvents(t *testing.T) {
	_, batches := testSetup(t)
	require.Len(t, batches, 2)

	assert.Equal(t, "batch-1", batches[0].BatchID)
	require.NotNil(t, batches[0].Step.EpochAdvancement)
	assert.Equal(t, uint64(1), batches[0].Step.EpochAdvancement.NewEpoch)
	require.Len(t, batches[0].Step.Events, 2)

	inject, ok := batches[0].Step.Events[0].(kernel.AuthorityInjectionEvent)
	require.True(t, ok)
	assert.Equal(t, "VK-010", inject.Authority.AuthorityID)
	assert.Equal(t, kernel.StatusActive, inject.Authority.Status)
	assert.True(t, inject.Authority.AAV.Has(0))
	assert.False(t, inject.Authority.AAV.Has(1))

	action, ok := batches[0].Step.Events[1].(kernel.ActionRequestEvent)
	require.True(t, ok)
	assert.Equal(t, kernel.Transformation(0), action.TransformationType)

	gov, ok := batches[1].Step.Events[0].(kernel.GovernanceActionRequest)
	require.True(t, ok)
	assert.Equal(t, kernel.GovernanceCreateAuthority, gov.ActionType)
	assert.Equal(t, "VK-020", gov.Params.NewAuthorityID)
	assert.Equal(t, "VK-001", gov.Params.ScopeBasisAuthorityID)
	assert.True(t, gov.Params.AAV.Has(0))
}

func TestParseScenarioMintsMissingIDs(t *testing.T) {
	c, err := constitution.Parse([]byte(testConstitution))
	require.NoError(t, err)

	doc := `
name: minted
batches:
  - events:
      - action:
          resource_scope: repo://main
          transformation: EXECUTE
`
	_, batches, err := ParseScenario([]byte(doc), c)
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.NotEmpty(t, batches[0].BatchID)

	action := batches[0].Step.Events[0].(kernel.ActionRequestEvent)
	assert.NotEmpty(t, action.RequestID)
}

func TestParseScenarioRejectsUnknownTransformation(t *testing.T) {
	c, err := constitution.Parse([]byte(testConstitution))
	require.NoError(t, err)

	doc := `
name: bad
batches:
  - events:
      - action:
          request_id: req-1
          resource_scope: repo://main
          transformation: DELETE
`
	_, _, err = ParseScenario([]byte(doc), c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DELETE")
}

func TestParseScenarioRejectsAmbiguousEvent(t *testing.T) {
	c, err := constitution.Parse([]byte(testConstitution))
	require.NoError(t, err)

	doc := `
name: bad
batches:
  - events:
      - action:
          request_id: req-1
          resource_scope: repo://main
          transformation: EXECUTE
        inject:
          authority:
            authority_id: VK-099
          nonce: n
`
	_, _, err = ParseScenario([]byte(doc), c)
	require.Error(t, err)
}

func TestRunnerJournalsHashStream(t *testing.T) {
	c, batches := testSetup(t)

	store, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	defer store.Close()

	k, err := kernel.New(c.KernelConfig(discard()))
	require.NoError(t, err)

	r := NewRunner(k, RunnerConfig{Logger: discard(), Journal: store})
	results, err := r.Run(batches)
	require.NoError(t, err)
	require.Len(t, results, 2)

	var want []string
	for _, res := range results {
		for _, out := range res.Outputs {
			want = append(want, out.StateHash)
		}
	}
	got, err := store.HashStream()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestVerifyMatchesJournaledRun(t *testing.T) {
	c, batches := testSetup(t)

	store, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	defer store.Close()

	k, err := kernel.New(c.KernelConfig(discard()))
	require.NoError(t, err)
	_, err = NewRunner(k, RunnerConfig{Logger: discard(), Journal: store}).Run(batches)
	require.NoError(t, err)

	report, err := Verify(store, c.KernelConfig(discard()))
	require.NoError(t, err)
	assert.True(t, report.Match)
	assert.Nil(t, report.Divergence)
	assert.Equal(t, 2, report.Batches)
	assert.Equal(t, k.State().StateID, report.FinalStateID)
}

func TestVerifyDetectsDivergentConfiguration(t *testing.T) {
	c, batches := testSetup(t)

	store, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	defer store.Close()

	k, err := kernel.New(c.KernelConfig(discard()))
	require.NoError(t, err)
	_, err = NewRunner(k, RunnerConfig{Logger: discard(), Journal: store}).Run(batches)
	require.NoError(t, err)

	// Replay with a different seed set: every hash diverges from the start.
	cfg := c.KernelConfig(discard())
	cfg.Seed = append(cfg.Seed, kernel.AuthorityRecord{
		AuthorityID:   "VK-EXTRA",
		HolderID:      "holder-x",
		ResourceScope: "repo://extra",
		Status:        kernel.StatusActive,
		AAV:           kernel.AAV(0).With(0),
		ExpiryEpoch:   30,
	})
	report, err := Verify(store, cfg)
	require.NoError(t, err)
	assert.False(t, report.Match)
	require.NotNil(t, report.Divergence)
	assert.Equal(t, "batch-1", report.Divergence.BatchID)
	assert.NotEqual(t, report.Divergence.Journaled, report.Divergence.Replayed)
}
