package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"cultivation_backend/internal/cultivation/domain"
	"cultivation_backend/internal/events"
	"cultivation_backend/platform/apperr"
	"cultivation_backend/platform/validator"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct{}

func (testConfig) GetDefaultFarmID() string           { return "FPR" }
func (testConfig) GetFarmLocation() *time.Location    { return time.UTC }
func (testConfig) GetMaxBagletsPerBatch() int         { return 500 }
func (testConfig) GetOperationTimeout() time.Duration { return 5 * time.Second }

// recordingBus captures published events synchronously.
type recordingBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *recordingBus) Publish(_ context.Context, e events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
}

func (b *recordingBus) PublishSync(ctx context.Context, e events.Event) error {
	b.Publish(ctx, e)
	return nil
}

func (b *recordingBus) Subscribe(string, events.Handler) {}

func (b *recordingBus) names() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.events))
	for i, e := range b.events {
		out[i] = e.EventName()
	}
	return out
}

type observation struct {
	op   string
	kind string
}

type recordingObserver struct {
	mu   sync.Mutex
	seen []observation
}

func (o *recordingObserver) ObserveOperation(op string, _ time.Time, kind string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.seen = append(o.seen, observation{op: op, kind: kind})
}

var scenarioDate = time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC)

type fixture struct {
	svc  *Service
	repo *memRepo
	bus  *recordingBus
	obs  *recordingObserver
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	repo := newMemRepo()
	repo.state.strains["OYS-01"] = domain.Strain{StrainCode: "OYS-01", StrainVendorID: "V1", Species: "Pleurotus ostreatus", IsActive: true}
	repo.state.recipes["SUB-A"] = domain.SubstrateRecipe{
		SubstrateID: "SUB-A",
		Mediums:     []domain.MediumLine{{MediumID: "M1", MediumName: "Straw", QtyG: 100}},
	}
	repo.state.codes["TRICHO"] = true
	repo.state.codes["BACT"] = true

	bus := &recordingBus{}
	obs := &recordingObserver{}
	svc := New(repo, bus, validator.New(), testConfig{}, nil,
		WithObserver(obs),
		WithClock(func() time.Time { return time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC) }),
	)
	return fixture{svc: svc, repo: repo, bus: bus, obs: obs}
}

func (f fixture) provision(t *testing.T, count int) ProvisionResult {
	t.Helper()
	res, err := f.svc.ProvisionBatch(context.Background(), ProvisionInput{
		FarmID:       "FPR",
		PreparedDate: scenarioDate,
		StrainCode:   "OYS-01",
		SubstrateID:  "SUB-A",
		BagletCount:  count,
		CreatedBy:    "a@b.com",
	})
	require.NoError(t, err)
	return res
}

func (f fixture) history(t *testing.T, bagletID string) []domain.StatusLogEntry {
	t.Helper()
	entries, err := f.svc.ListStatusHistory(context.Background(), bagletID)
	require.NoError(t, err)
	return entries
}

func requireKind(t *testing.T, err error, kind apperr.Kind) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, kind.String(), apperr.GetKind(err).String(), "error: %v", err)
}

func TestProvisionBatchCreatesPlannedBaglets(t *testing.T) {
	f := newFixture(t)
	res := f.provision(t, 5)

	assert.Equal(t, "FPR-15012025-B01", res.Batch.BatchID)
	assert.Equal(t, 1, res.Batch.BatchSequence)
	require.Len(t, res.BagletIDs, 5)
	for i, id := range res.BagletIDs {
		assert.True(t, strings.HasPrefix(id, "FPR-15012025-B01-OYS-01-V1-SUB-A-"), id)
		assert.True(t, strings.HasSuffix(id, fmt.Sprintf("-%03d", i+1)), id)

		b, err := f.svc.GetBaglet(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusPlanned, b.CurrentStatus)

		entries := f.history(t, id)
		require.Len(t, entries, 1)
		assert.Nil(t, entries[0].PreviousStatus)
		assert.Equal(t, domain.StatusPlanned, entries[0].Status)
		assert.Equal(t, "a@b.com", entries[0].Actor)
	}

	require.Len(t, res.Recipe.PerBatch.Mediums, 1)
	assert.Equal(t, "M1", res.Recipe.PerBatch.Mediums[0].MediumID)
	assert.InDelta(t, 500, res.Recipe.PerBatch.Mediums[0].QtyG, 1e-9)
	assert.InDelta(t, 100, res.Recipe.PerUnit.Mediums[0].QtyG, 1e-9)

	assert.Equal(t, []string{"cultivation.batch.provisioned"}, f.bus.names())
}

func TestProvisionBatchDefaultsFarmAndDate(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.ProvisionBatch(context.Background(), ProvisionInput{
		StrainCode:  "OYS-01",
		SubstrateID: "SUB-A",
		BagletCount: 1,
		CreatedBy:   "a@b.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "FPR", res.Batch.FarmID)
	assert.Equal(t, scenarioDate, res.Batch.PreparedDate)
	assert.Equal(t, "FPR-15012025-B01", res.Batch.BatchID)
}

func TestProvisionBatchSequenceIsPerFarmAndDate(t *testing.T) {
	f := newFixture(t)
	first := f.provision(t, 1)
	second := f.provision(t, 1)

	assert.Equal(t, "FPR-15012025-B01", first.Batch.BatchID)
	assert.Equal(t, "FPR-15012025-B02", second.Batch.BatchID)

	other, err := f.svc.ProvisionBatch(context.Background(), ProvisionInput{
		FarmID:       "FPR",
		PreparedDate: scenarioDate.AddDate(0, 0, 1),
		StrainCode:   "OYS-01",
		SubstrateID:  "SUB-A",
		BagletCount:  1,
		CreatedBy:    "a@b.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "FPR-16012025-B01", other.Batch.BatchID)
}

func TestProvisionBatchRejectsBadInputBeforeStoreAccess(t *testing.T) {
	f := newFixture(t)
	f.repo.failOn("GetStrain", errors.New("store must not be reached"))

	cases := []struct {
		name string
		in   ProvisionInput
	}{
		{"zero count", ProvisionInput{StrainCode: "OYS-01", SubstrateID: "SUB-A", BagletCount: 0, CreatedBy: "a@b.com"}},
		{"count over max", ProvisionInput{StrainCode: "OYS-01", SubstrateID: "SUB-A", BagletCount: 501, CreatedBy: "a@b.com"}},
		{"bad creator", ProvisionInput{StrainCode: "OYS-01", SubstrateID: "SUB-A", BagletCount: 1, CreatedBy: "not-an-email"}},
		{"bad farm", ProvisionInput{FarmID: "farm with spaces", StrainCode: "OYS-01", SubstrateID: "SUB-A", BagletCount: 1, CreatedBy: "a@b.com"}},
		{"missing strain", ProvisionInput{SubstrateID: "SUB-A", BagletCount: 1, CreatedBy: "a@b.com"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.ProvisionBatch(context.Background(), tc.in)
			requireKind(t, err, apperr.KindValidation)
		})
	}
}

func TestProvisionBatchIsAtomic(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ProvisionBatch(context.Background(), ProvisionInput{
		FarmID: "FPR", PreparedDate: scenarioDate, StrainCode: "OYS-01",
		SubstrateID: "NOPE", BagletCount: 5, CreatedBy: "a@b.com",
	})
	requireKind(t, err, apperr.KindInvalidReference)
	assert.Empty(t, f.repo.state.batches)
	assert.Empty(t, f.repo.state.baglets)
	assert.Empty(t, f.repo.state.log)

	f.repo.failOn("AppendStatusLog", errors.New("connection reset"))
	_, err = f.svc.ProvisionBatch(context.Background(), ProvisionInput{
		FarmID: "FPR", PreparedDate: scenarioDate, StrainCode: "OYS-01",
		SubstrateID: "SUB-A", BagletCount: 5, CreatedBy: "a@b.com",
	})
	requireKind(t, err, apperr.KindStorage)
	assert.Empty(t, f.repo.state.batches)
	assert.Empty(t, f.repo.state.baglets)
	assert.Empty(t, f.bus.names())

	assert.Contains(t, f.obs.seen, observation{op: opProvisionBatch, kind: "storage_failure"})
}

func TestProvisionBatchConcurrentSequencesAreContiguous(t *testing.T) {
	f := newFixture(t)
	const n = 20

	var wg sync.WaitGroup
	ids := make([]string, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := f.svc.ProvisionBatch(context.Background(), ProvisionInput{
				FarmID: "FPR", PreparedDate: scenarioDate, StrainCode: "OYS-01",
				SubstrateID: "SUB-A", BagletCount: 2, CreatedBy: "a@b.com",
			})
			ids[i], errs[i] = res.Batch.BatchID, err
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for i := range ids {
		require.NoError(t, errs[i])
		assert.False(t, seen[ids[i]], "duplicate batch id %s", ids[i])
		seen[ids[i]] = true
	}
	for seq := 1; seq <= n; seq++ {
		assert.True(t, seen[fmt.Sprintf("FPR-15012025-B%02d", seq)], "missing sequence %d", seq)
	}
}

func TestTransitionBagletAppendsLogEntry(t *testing.T) {
	f := newFixture(t)
	id := f.provision(t, 1).BagletIDs[0]

	res, err := f.svc.TransitionBaglet(context.Background(), TransitionInput{
		BagletID: id, ExpectedStatus: domain.StatusPlanned, NewStatus: domain.StatusPrepared,
		Notes: "bagged", Actor: "op@farm.test",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPlanned, res.PreviousStatus)
	assert.Equal(t, domain.StatusPrepared, res.NewStatus)
	assert.Equal(t, "FPR-15012025-B01", res.BatchID)

	entries := f.history(t, id)
	require.Len(t, entries, 2)
	require.NotNil(t, entries[1].PreviousStatus)
	assert.Equal(t, domain.StatusPlanned, *entries[1].PreviousStatus)
	assert.Equal(t, domain.StatusPrepared, entries[1].Status)
	assert.Equal(t, "bagged", entries[1].Notes)
	assert.Equal(t, "op@farm.test", entries[1].Actor)
	assert.True(t, domain.IsConnectedWalk(entries))
}

func TestTransitionBagletRejectsNonEdge(t *testing.T) {
	f := newFixture(t)
	id := f.provision(t, 1).BagletIDs[0]

	_, err := f.svc.TransitionBaglet(context.Background(), TransitionInput{
		BagletID: id, ExpectedStatus: domain.StatusPlanned, NewStatus: domain.StatusHarvested, Actor: "op@farm.test",
	})
	requireKind(t, err, apperr.KindInvalidTransition)

	var appErr *apperr.Error
	require.True(t, errors.As(err, &appErr))
	details, ok := appErr.Details.(apperr.TransitionDetails)
	require.True(t, ok)
	assert.Equal(t, "PLANNED", details.CurrentStatus)
	assert.Equal(t, "HARVESTED", details.RequestedStatus)

	assert.Len(t, f.history(t, id), 1)
}

func TestTransitionBagletStaleExpectationReportsActualStatus(t *testing.T) {
	f := newFixture(t)
	id := f.provision(t, 1).BagletIDs[0]
	ctx := context.Background()

	_, err := f.svc.TransitionBaglet(ctx, TransitionInput{BagletID: id, ExpectedStatus: domain.StatusPlanned, NewStatus: domain.StatusPrepared, Actor: "a@b.com"})
	require.NoError(t, err)

	_, err = f.svc.TransitionBaglet(ctx, TransitionInput{BagletID: id, ExpectedStatus: domain.StatusPlanned, NewStatus: domain.StatusDeleted, Actor: "a@b.com"})
	requireKind(t, err, apperr.KindInvalidTransition)

	var appErr *apperr.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperr.TransitionDetails{CurrentStatus: "PREPARED", RequestedStatus: "DELETED"}, appErr.Details)
}

func TestTransitionBagletMissingBaglet(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.TransitionBaglet(context.Background(), TransitionInput{
		BagletID: "nope", ExpectedStatus: domain.StatusPlanned, NewStatus: domain.StatusPrepared, Actor: "a@b.com",
	})
	requireKind(t, err, apperr.KindNotFound)
}

func TestTransitionBagletRaceHasOneWinner(t *testing.T) {
	f := newFixture(t)
	id := f.provision(t, 1).BagletIDs[0]

	targets := []domain.Status{domain.StatusPrepared, domain.StatusDeleted}
	errs := make([]error, len(targets))
	var wg sync.WaitGroup
	for i, to := range targets {
		wg.Add(1)
		go func(i int, to domain.Status) {
			defer wg.Done()
			_, errs[i] = f.svc.TransitionBaglet(context.Background(), TransitionInput{
				BagletID: id, ExpectedStatus: domain.StatusPlanned, NewStatus: to, Actor: "a@b.com",
			})
		}(i, to)
	}
	wg.Wait()

	wins, conflicts := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case apperr.Is(err, apperr.KindInvalidTransition):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, conflicts)

	entries := f.history(t, id)
	assert.Len(t, entries, 2)
	assert.True(t, domain.IsConnectedWalk(entries))
}

func TestTransitionBagletEnteringContaminatedRaisesFlag(t *testing.T) {
	f := newFixture(t)
	id := f.provision(t, 1).BagletIDs[0]
	walk(t, f, id, domain.StatusPrepared, domain.StatusSterilized, domain.StatusInoculated, domain.StatusContaminated)

	b, err := f.svc.GetBaglet(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, b.ContaminationFlag)
	assert.Equal(t, domain.StatusContaminated, b.CurrentStatus)
}

func TestBulkSterilizeScenario(t *testing.T) {
	f := newFixture(t)
	res := f.provision(t, 5)
	ctx := context.Background()

	prepared, err := f.svc.BulkTransition(ctx, BulkTransitionInput{
		BatchID: res.Batch.BatchID, FromStatus: domain.StatusPlanned, ToStatus: domain.StatusPrepared, Actor: "a@b.com",
	})
	require.NoError(t, err)
	assert.Equal(t, 5, prepared.UpdatedCount)

	sterilized, err := f.svc.BulkTransition(ctx, BulkTransitionInput{
		BatchID: res.Batch.BatchID, FromStatus: domain.StatusPrepared, ToStatus: domain.StatusSterilized, Actor: "a@b.com",
	})
	require.NoError(t, err)
	assert.Equal(t, 5, sterilized.UpdatedCount)
	assert.Equal(t, res.BagletIDs, sterilized.BagletIDs)

	for _, id := range res.BagletIDs {
		entries := f.history(t, id)
		require.Len(t, entries, 3)
		last := entries[2]
		assert.Equal(t, domain.StatusSterilized, last.Status)
		require.NotNil(t, last.PreviousStatus)
		assert.Equal(t, domain.StatusPrepared, *last.PreviousStatus)
		assert.True(t, domain.IsConnectedWalk(entries))
	}

	view, err := f.svc.GetBatch(ctx, res.Batch.BatchID)
	require.NoError(t, err)
	assert.Equal(t, "STERILIZED", view.DerivedStatus)
	assert.Equal(t, 5, view.StatusCounts[domain.StatusSterilized])
}

func TestBulkTransitionReportsExactlyTheChangedSet(t *testing.T) {
	f := newFixture(t)
	res := f.provision(t, 3)
	ctx := context.Background()

	_, err := f.svc.TransitionBaglet(ctx, TransitionInput{
		BagletID: res.BagletIDs[1], ExpectedStatus: domain.StatusPlanned, NewStatus: domain.StatusPrepared, Actor: "a@b.com",
	})
	require.NoError(t, err)

	out, err := f.svc.BulkTransition(ctx, BulkTransitionInput{
		BatchID: res.Batch.BatchID, FromStatus: domain.StatusPlanned, ToStatus: domain.StatusPrepared, Actor: "a@b.com",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, out.UpdatedCount)
	assert.Equal(t, []string{res.BagletIDs[0], res.BagletIDs[2]}, out.BagletIDs)
	assert.Len(t, f.history(t, res.BagletIDs[1]), 2)

	view, err := f.svc.GetBatch(ctx, res.Batch.BatchID)
	require.NoError(t, err)
	assert.Equal(t, "PREPARED", view.DerivedStatus)
}

func TestBulkTransitionErrors(t *testing.T) {
	f := newFixture(t)
	res := f.provision(t, 2)
	ctx := context.Background()

	_, err := f.svc.BulkTransition(ctx, BulkTransitionInput{
		BatchID: res.Batch.BatchID, FromStatus: domain.StatusPrepared, ToStatus: domain.StatusSterilized, Actor: "a@b.com",
	})
	requireKind(t, err, apperr.KindNoEligibleBaglets)

	_, err = f.svc.BulkTransition(ctx, BulkTransitionInput{
		BatchID: "FPR-15012025-B09", FromStatus: domain.StatusPlanned, ToStatus: domain.StatusPrepared, Actor: "a@b.com",
	})
	requireKind(t, err, apperr.KindNotFound)

	_, err = f.svc.BulkTransition(ctx, BulkTransitionInput{
		BatchID: res.Batch.BatchID, FromStatus: domain.StatusPlanned, ToStatus: domain.StatusHarvested, Actor: "a@b.com",
	})
	requireKind(t, err, apperr.KindInvalidTransition)

	f.repo.failOn("AppendStatusLog", errors.New("disk full"))
	_, err = f.svc.BulkTransition(ctx, BulkTransitionInput{
		BatchID: res.Batch.BatchID, FromStatus: domain.StatusPlanned, ToStatus: domain.StatusPrepared, Actor: "a@b.com",
	})
	requireKind(t, err, apperr.KindStorage)

	counts, err := f.svc.GetStatusCounts(ctx, res.Batch.BatchID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCounts{domain.StatusPlanned: 2}, counts)
}

func TestPrepareBagletMergesMetricsAndTransitions(t *testing.T) {
	f := newFixture(t)
	id := f.provision(t, 1).BagletIDs[0]

	b, err := f.svc.PrepareBaglet(context.Background(), PrepareInput{
		BagletID: id,
		Metrics:  domain.PartialMetrics{WeightG: fp(1200), HumidityPct: fp(65)},
		Actor:    "a@b.com",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPrepared, b.CurrentStatus)
	require.NotNil(t, b.Metrics.WeightG)
	assert.Equal(t, 1200.0, *b.Metrics.WeightG)
	assert.Nil(t, b.Metrics.TemperatureC)

	_, err = f.svc.PrepareBaglet(context.Background(), PrepareInput{BagletID: id, Actor: "a@b.com"})
	requireKind(t, err, apperr.KindInvalidTransition)
}

func TestPrepareBagletRollsBackStatusWhenMetricsFail(t *testing.T) {
	f := newFixture(t)
	id := f.provision(t, 1).BagletIDs[0]
	f.repo.failOn("MergeMetrics", errors.New("timeout"))

	_, err := f.svc.PrepareBaglet(context.Background(), PrepareInput{
		BagletID: id, Metrics: domain.PartialMetrics{WeightG: fp(1)}, Actor: "a@b.com",
	})
	requireKind(t, err, apperr.KindStorage)

	b, err := f.svc.GetBaglet(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPlanned, b.CurrentStatus)
	assert.Len(t, f.history(t, id), 1)
}

func TestMergeMetricsPreservesOmittedFields(t *testing.T) {
	f := newFixture(t)
	id := f.provision(t, 1).BagletIDs[0]
	ctx := context.Background()

	_, err := f.svc.MergeMetrics(ctx, id, domain.PartialMetrics{WeightG: fp(500)})
	require.NoError(t, err)

	merged, err := f.svc.MergeMetrics(ctx, id, domain.PartialMetrics{TemperatureC: fp(24)})
	require.NoError(t, err)
	require.NotNil(t, merged.WeightG)
	require.NotNil(t, merged.TemperatureC)
	assert.Equal(t, 500.0, *merged.WeightG)
	assert.Equal(t, 24.0, *merged.TemperatureC)
	assert.Nil(t, merged.HumidityPct)
	assert.NotNil(t, merged.LastObservedAt)

	b, err := f.svc.GetBaglet(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPlanned, b.CurrentStatus)
	assert.Len(t, f.history(t, id), 1)
}

func TestMergeMetricsValidation(t *testing.T) {
	f := newFixture(t)
	id := f.provision(t, 1).BagletIDs[0]
	ctx := context.Background()

	_, err := f.svc.MergeMetrics(ctx, id, domain.PartialMetrics{})
	requireKind(t, err, apperr.KindValidation)

	_, err = f.svc.MergeMetrics(ctx, id, domain.PartialMetrics{HumidityPct: fp(120)})
	requireKind(t, err, apperr.KindValidation)

	_, err = f.svc.MergeMetrics(ctx, id, domain.PartialMetrics{PH: fp(-1)})
	requireKind(t, err, apperr.KindValidation)

	_, err = f.svc.MergeMetrics(ctx, id, domain.PartialMetrics{WeightG: fp(1e9)})
	requireKind(t, err, apperr.KindValidation)

	_, err = f.svc.MergeMetrics(ctx, "missing", domain.PartialMetrics{PH: fp(7)})
	requireKind(t, err, apperr.KindNotFound)
}

func TestRecordFindingsMovesContaminatedToAnalyzed(t *testing.T) {
	f := newFixture(t)
	id := f.provision(t, 1).BagletIDs[0]
	walk(t, f, id, domain.StatusPrepared, domain.StatusSterilized, domain.StatusInoculated, domain.StatusContaminated)
	ctx := context.Background()

	res, err := f.svc.RecordFindings(ctx, RecordFindingsInput{
		BagletID: id,
		Findings: []FindingInput{{Code: "tricho", Notes: "green mould on the surface"}},
		Actor:    "lab@farm.test",
	})
	require.NoError(t, err)
	assert.True(t, res.Transitioned)
	assert.Equal(t, domain.StatusCRCAnalyzed, res.Status)
	require.Len(t, res.Findings, 1)
	assert.Equal(t, "TRICHO", res.Findings[0].Code)

	entries := f.history(t, id)
	assert.Equal(t, domain.StatusCRCAnalyzed, entries[len(entries)-1].Status)
	assert.True(t, domain.IsConnectedWalk(entries))

	again, err := f.svc.RecordFindings(ctx, RecordFindingsInput{
		BagletID: id,
		Findings: []FindingInput{{Code: "BACT", Notes: "slime"}},
		Actor:    "lab@farm.test",
	})
	require.NoError(t, err)
	assert.False(t, again.Transitioned)
	assert.Len(t, f.history(t, id), len(entries))

	findings, err := f.svc.ListFindings(ctx, id)
	require.NoError(t, err)
	assert.Len(t, findings, 2)
}

func TestRecordFindingsErrors(t *testing.T) {
	f := newFixture(t)
	id := f.provision(t, 1).BagletIDs[0]
	ctx := context.Background()

	_, err := f.svc.RecordFindings(ctx, RecordFindingsInput{
		BagletID: id, Findings: []FindingInput{{Code: "TRICHO", Notes: "x"}}, Actor: "a@b.com",
	})
	requireKind(t, err, apperr.KindInvalidTransition)

	walk(t, f, id, domain.StatusPrepared, domain.StatusSterilized, domain.StatusInoculated, domain.StatusContaminated)

	_, err = f.svc.RecordFindings(ctx, RecordFindingsInput{
		BagletID: id, Findings: []FindingInput{{Code: "UNKNOWN", Notes: "x"}}, Actor: "a@b.com",
	})
	requireKind(t, err, apperr.KindInvalidReference)

	_, err = f.svc.RecordFindings(ctx, RecordFindingsInput{
		BagletID: id, Findings: []FindingInput{{Code: "TRICHO"}}, Actor: "a@b.com",
	})
	requireKind(t, err, apperr.KindValidation)

	_, err = f.svc.RecordFindings(ctx, RecordFindingsInput{
		BagletID: id, Findings: []FindingInput{{Code: "TRICHO", Notes: "<p></p>"}}, Actor: "a@b.com",
	})
	requireKind(t, err, apperr.KindValidation)

	b, err := f.svc.GetBaglet(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusContaminated, b.CurrentStatus)
	assert.Empty(t, f.repo.state.findings)
}

func TestSoftDeleteBatchHidesEverything(t *testing.T) {
	f := newFixture(t)
	res := f.provision(t, 3)
	ctx := context.Background()

	n, err := f.svc.SoftDeleteBatch(ctx, res.Batch.BatchID, "admin@farm.test")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = f.svc.GetBatch(ctx, res.Batch.BatchID)
	requireKind(t, err, apperr.KindNotFound)
	_, err = f.svc.GetBaglet(ctx, res.BagletIDs[0])
	requireKind(t, err, apperr.KindNotFound)
	_, err = f.svc.TransitionBaglet(ctx, TransitionInput{
		BagletID: res.BagletIDs[0], ExpectedStatus: domain.StatusPlanned, NewStatus: domain.StatusPrepared, Actor: "a@b.com",
	})
	requireKind(t, err, apperr.KindNotFound)

	next := f.provision(t, 1)
	assert.Equal(t, "FPR-15012025-B02", next.Batch.BatchID)
}

func TestListBatchesPaging(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 3; i++ {
		f.provision(t, 1)
	}

	page, err := f.svc.ListBatches(context.Background(), ListBatchesInput{FarmID: "FPR", Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "FPR-15012025-B01", page.Items[0].BatchID)
}

func TestGetBatchEmptyCohortDerivesNone(t *testing.T) {
	f := newFixture(t)
	f.repo.state.batches["FPR-15012025-B07"] = domain.Batch{BatchID: "FPR-15012025-B07", FarmID: "FPR", PreparedDate: scenarioDate, BatchSequence: 7}

	view, err := f.svc.GetBatch(context.Background(), "FPR-15012025-B07")
	require.NoError(t, err)
	assert.Equal(t, "NONE", view.DerivedStatus)
}

func TestListAvailableTransitions(t *testing.T) {
	f := newFixture(t)
	next, err := f.svc.ListAvailableTransitions(domain.StatusContaminated)
	require.NoError(t, err)
	assert.Equal(t, []domain.Status{domain.StatusCRCAnalyzed, domain.StatusDisposed}, next)

	next, err = f.svc.ListAvailableTransitions(domain.StatusRecycled)
	require.NoError(t, err)
	assert.Empty(t, next)
}

func walk(t *testing.T, f fixture, id string, path ...domain.Status) {
	t.Helper()
	from := domain.StatusPlanned
	for _, to := range path {
		_, err := f.svc.TransitionBaglet(context.Background(), TransitionInput{
			BagletID: id, ExpectedStatus: from, NewStatus: to, Actor: "a@b.com",
		})
		require.NoError(t, err, "%s -> %s", from, to)
		from = to
	}
}

func fp(v float64) *float64 { return &v }
