package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"cultivation_backend/internal/cultivation/domain"
	"cultivation_backend/internal/cultivation/repository"
	"cultivation_backend/platform/apperr"
)

// memRepo is a transactional in-memory Repository. A unit of work holds
// the store mutex for its whole duration and works on a copy of the state
// that only replaces the committed state when fn returns nil. That gives
// the same serialization the advisory and row locks give in Postgres.
type memRepo struct {
	mu    sync.Mutex
	state memState
	fail  map[string]error
	clock func() time.Time
}

type memState struct {
	strains  map[string]domain.Strain
	recipes  map[string]domain.SubstrateRecipe
	codes    map[string]bool
	batches  map[string]domain.Batch
	baglets  map[string]domain.Baglet
	log      []domain.StatusLogEntry
	findings []domain.ContaminationFinding
}

func newMemRepo() *memRepo {
	return &memRepo{
		state: memState{
			strains:  map[string]domain.Strain{},
			recipes:  map[string]domain.SubstrateRecipe{},
			codes:    map[string]bool{},
			batches:  map[string]domain.Batch{},
			baglets:  map[string]domain.Baglet{},
			log:      []domain.StatusLogEntry{},
			findings: []domain.ContaminationFinding{},
		},
		fail:  map[string]error{},
		clock: func() time.Time { return time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC) },
	}
}

// failOn makes the named Store method return err inside every later unit of work.
func (r *memRepo) failOn(method string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fail[method] = err
}

func (s memState) clone() memState {
	c := memState{
		strains:  make(map[string]domain.Strain, len(s.strains)),
		recipes:  make(map[string]domain.SubstrateRecipe, len(s.recipes)),
		codes:    make(map[string]bool, len(s.codes)),
		batches:  make(map[string]domain.Batch, len(s.batches)),
		baglets:  make(map[string]domain.Baglet, len(s.baglets)),
		log:      slices.Clone(s.log),
		findings: slices.Clone(s.findings),
	}
	for k, v := range s.strains {
		c.strains[k] = v
	}
	for k, v := range s.recipes {
		c.recipes[k] = v
	}
	for k, v := range s.codes {
		c.codes[k] = v
	}
	for k, v := range s.batches {
		c.batches[k] = v
	}
	for k, v := range s.baglets {
		c.baglets[k] = v
	}
	return c
}

// WithinTx serializes every transaction behind one mutex. Concurrency tests
// built on memRepo check how the service reports a lost race, not the
// advisory lock or the status predicate; those are covered against SQL in
// the repository package.
func (r *memRepo) WithinTx(ctx context.Context, fn func(repository.Store) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	work := r.state.clone()
	if err := fn(&memTx{repo: r, st: &work}); err != nil {
		return err
	}
	r.state = work
	return nil
}

func (r *memRepo) SoftDeleteBatch(_ context.Context, batchID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.state.batches[batchID]
	if !ok || b.IsDeleted {
		return 0, apperr.NotFound("batch not found")
	}
	b.IsDeleted = true
	r.state.batches[batchID] = b

	n := 0
	for id, bg := range r.state.baglets {
		if bg.BatchID == batchID && !bg.IsDeleted {
			bg.IsDeleted = true
			r.state.baglets[id] = bg
			n++
		}
	}
	return n, nil
}

// Reader

func (r *memRepo) GetBatch(_ context.Context, batchID string) (domain.Batch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.state.batches[batchID]
	if !ok || b.IsDeleted {
		return domain.Batch{}, apperr.NotFound("batch not found")
	}
	return b, nil
}

func (r *memRepo) ListBatches(_ context.Context, p repository.ListBatchesParams) ([]domain.Batch, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []domain.Batch
	for _, b := range r.state.batches {
		if b.IsDeleted || (p.FarmID != "" && b.FarmID != p.FarmID) {
			continue
		}
		if p.PreparedDate != nil && !b.PreparedDate.Equal(*p.PreparedDate) {
			continue
		}
		all = append(all, b)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].BatchID > all[j].BatchID })
	total := len(all)
	start := min(p.Offset, total)
	end := min(start+p.Limit, total)
	return all[start:end], total, nil
}

func (r *memRepo) GetBaglet(_ context.Context, bagletID string) (domain.Baglet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.state.baglets[bagletID]
	if !ok {
		return domain.Baglet{}, apperr.NotFound("baglet not found")
	}
	return b, nil
}

func (r *memRepo) ListBaglets(_ context.Context, batchID string) ([]domain.Baglet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.Baglet{}
	for _, b := range r.state.baglets {
		if b.BatchID == batchID && !b.IsDeleted {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BagletSequence < out[j].BagletSequence })
	return out, nil
}

func (r *memRepo) ListStatusHistory(_ context.Context, bagletID string) ([]domain.StatusLogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.StatusLogEntry{}
	for _, e := range r.state.log {
		if e.BagletID == bagletID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *memRepo) StatusCounts(_ context.Context, batchID string) (domain.StatusCounts, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := domain.StatusCounts{}
	for _, b := range r.state.baglets {
		if b.BatchID == batchID && !b.IsDeleted {
			counts[b.CurrentStatus]++
		}
	}
	return counts, nil
}

func (r *memRepo) ListFindings(_ context.Context, bagletID string) ([]domain.ContaminationFinding, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.ContaminationFinding{}
	for _, f := range r.state.findings {
		if f.BagletID == bagletID {
			out = append(out, f)
		}
	}
	return out, nil
}

// memTx is the Store handed to a unit of work.
type memTx struct {
	repo *memRepo
	st   *memState
}

func (t *memTx) check(method string) error {
	return t.repo.fail[method]
}

func (t *memTx) GetStrain(_ context.Context, code string) (domain.Strain, error) {
	if err := t.check("GetStrain"); err != nil {
		return domain.Strain{}, err
	}
	s, ok := t.st.strains[code]
	if !ok || !s.IsActive {
		return domain.Strain{}, apperr.InvalidReference(fmt.Sprintf("unknown strain %q", code))
	}
	return s, nil
}

func (t *memTx) GetSubstrateRecipe(_ context.Context, id string) (domain.SubstrateRecipe, error) {
	if err := t.check("GetSubstrateRecipe"); err != nil {
		return domain.SubstrateRecipe{}, err
	}
	r, ok := t.st.recipes[id]
	if !ok {
		return domain.SubstrateRecipe{}, apperr.InvalidReference(fmt.Sprintf("unknown substrate %q", id))
	}
	return r, nil
}

func (t *memTx) LockBatchScope(context.Context, string, time.Time) error {
	return t.check("LockBatchScope")
}

func (t *memTx) NextBatchSequence(_ context.Context, farmID string, date time.Time) (int, error) {
	if err := t.check("NextBatchSequence"); err != nil {
		return 0, err
	}
	next := 1
	for _, b := range t.st.batches {
		if b.FarmID == farmID && b.PreparedDate.Equal(date) && b.BatchSequence >= next {
			next = b.BatchSequence + 1
		}
	}
	return next, nil
}

func (t *memTx) InsertBatch(_ context.Context, batch domain.Batch) (time.Time, error) {
	if err := t.check("InsertBatch"); err != nil {
		return time.Time{}, err
	}
	if _, dup := t.st.batches[batch.BatchID]; dup {
		return time.Time{}, errors.New("duplicate key value violates unique constraint \"batches_pkey\"")
	}
	batch.CreatedAt = t.repo.clock()
	t.st.batches[batch.BatchID] = batch
	return batch.CreatedAt, nil
}

func (t *memTx) InsertBaglets(_ context.Context, baglets []repository.NewBaglet) error {
	if err := t.check("InsertBaglets"); err != nil {
		return err
	}
	now := t.repo.clock()
	for _, b := range baglets {
		t.st.baglets[b.BagletID] = domain.Baglet{
			BagletID:        b.BagletID,
			BatchID:         b.BatchID,
			BagletSequence:  b.BagletSequence,
			CurrentStatus:   b.Status,
			StatusChangedAt: now,
			CreatedAt:       now,
		}
	}
	return nil
}

func (t *memTx) AppendStatusLog(_ context.Context, entries []repository.NewStatusLogEntry) error {
	if err := t.check("AppendStatusLog"); err != nil {
		return err
	}
	for _, e := range entries {
		t.st.log = append(t.st.log, domain.StatusLogEntry{
			ID:             e.ID,
			BagletID:       e.BagletID,
			BatchID:        e.BatchID,
			PreviousStatus: e.PreviousStatus,
			Status:         e.Status,
			Notes:          e.Notes,
			Actor:          e.Actor,
			LoggedAt:       t.repo.clock(),
		})
	}
	return nil
}

func (t *memTx) LockBatch(_ context.Context, batchID string) (domain.Batch, error) {
	if err := t.check("LockBatch"); err != nil {
		return domain.Batch{}, err
	}
	b, ok := t.st.batches[batchID]
	if !ok || b.IsDeleted {
		return domain.Batch{}, apperr.NotFound("batch not found")
	}
	return b, nil
}

func (t *memTx) GetBaglet(_ context.Context, bagletID string) (domain.Baglet, error) {
	b, ok := t.st.baglets[bagletID]
	if !ok {
		return domain.Baglet{}, apperr.NotFound("baglet not found")
	}
	return b, nil
}

func (t *memTx) LockBaglet(_ context.Context, bagletID string) (domain.Baglet, error) {
	b, ok := t.st.baglets[bagletID]
	if !ok || b.IsDeleted {
		return domain.Baglet{}, apperr.NotFound("baglet not found")
	}
	return b, nil
}

func (t *memTx) CompareAndSwapStatus(_ context.Context, p repository.CASParams) (string, bool, error) {
	if err := t.check("CompareAndSwapStatus"); err != nil {
		return "", false, err
	}
	b, ok := t.st.baglets[p.BagletID]
	if !ok || b.IsDeleted || b.CurrentStatus != p.Expected {
		return "", false, nil
	}
	b.CurrentStatus = p.Next
	b.StatusChangedAt = t.repo.clock()
	b.ContaminationFlag = b.ContaminationFlag || p.Next == domain.StatusContaminated
	t.st.baglets[p.BagletID] = b
	return b.BatchID, true, nil
}

func (t *memTx) ClaimCohort(_ context.Context, p repository.CohortParams) ([]string, error) {
	if err := t.check("ClaimCohort"); err != nil {
		return nil, err
	}
	ids := []string{}
	for id, b := range t.st.baglets {
		if b.BatchID != p.BatchID || b.IsDeleted || b.CurrentStatus != p.From {
			continue
		}
		b.CurrentStatus = p.To
		b.StatusChangedAt = t.repo.clock()
		b.ContaminationFlag = b.ContaminationFlag || p.To == domain.StatusContaminated
		t.st.baglets[id] = b
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (t *memTx) MergeMetrics(_ context.Context, bagletID string, patch domain.PartialMetrics) (domain.ObservedMetrics, error) {
	if err := t.check("MergeMetrics"); err != nil {
		return domain.ObservedMetrics{}, err
	}
	b, ok := t.st.baglets[bagletID]
	if !ok || b.IsDeleted {
		return domain.ObservedMetrics{}, apperr.NotFound("baglet not found")
	}
	merged := patch.Apply(b.Metrics)
	now := t.repo.clock()
	merged.LastObservedAt = &now
	b.Metrics = merged
	t.st.baglets[bagletID] = b
	return merged, nil
}

func (t *memTx) MissingContaminationCodes(_ context.Context, codes []string) ([]string, error) {
	var missing []string
	for _, c := range codes {
		if !t.st.codes[c] {
			missing = append(missing, c)
		}
	}
	return missing, nil
}

func (t *memTx) InsertFindings(_ context.Context, findings []domain.ContaminationFinding) error {
	if err := t.check("InsertFindings"); err != nil {
		return err
	}
	t.st.findings = append(t.st.findings, findings...)
	return nil
}

var (
	_ repository.Repository = (*memRepo)(nil)
	_ repository.Store      = (*memTx)(nil)
)
