// Package service serves the reference catalog through a read-through
// cache and applies admin upserts.
package service

import (
	"context"
	"strings"
	"time"

	"cultivation_backend/internal/catalog/repository"
	"cultivation_backend/internal/cultivation/domain"
	"cultivation_backend/internal/events"
	"cultivation_backend/platform/apperr"
	"cultivation_backend/platform/cache"
	"cultivation_backend/platform/logger"

	"golang.org/x/sync/singleflight"
)

// Cache keys. Substrates are cached per id.
const (
	keyStrains            = "strains"
	keySubstrates         = "substrates"
	keyContaminationCodes = "contamination-codes"
	keySubstratePrefix    = "substrate:"
)

// loadTimeout bounds a shared catalog load.
const loadTimeout = 10 * time.Second

// Catalog sections named in CatalogChanged events.
const (
	SectionStrains            = "strains"
	SectionSubstrates         = "substrates"
	SectionContaminationCodes = "contamination_codes"
)

// CacheRecorder counts cache hits and misses.
type CacheRecorder interface {
	CacheHit()
	CacheMiss()
}

type nopRecorder struct{}

func (nopRecorder) CacheHit()  {}
func (nopRecorder) CacheMiss() {}

// Service provides business logic for the catalog.
type Service struct {
	repo     repository.Repository
	cache    cache.Cache
	ttl      time.Duration
	bus      events.Bus
	log      *logger.Logger
	recorder CacheRecorder
	group    singleflight.Group
}

// New creates a new catalog service. A nil cache disables caching.
func New(repo repository.Repository, c cache.Cache, ttl time.Duration, bus events.Bus, log *logger.Logger, recorder CacheRecorder) *Service {
	if c == nil {
		c = cache.Nop{}
	}
	if log == nil {
		log = logger.Nop()
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Service{repo: repo, cache: c, ttl: ttl, bus: bus, log: log, recorder: recorder}
}

// ListStrains returns active strains.
func (s *Service) ListStrains(ctx context.Context) ([]domain.Strain, error) {
	return cached(ctx, s, keyStrains, func(ctx context.Context) ([]domain.Strain, error) {
		return s.repo.ListStrains(ctx, false)
	})
}

// ListSubstrates returns active substrate headers.
func (s *Service) ListSubstrates(ctx context.Context) ([]repository.Substrate, error) {
	return cached(ctx, s, keySubstrates, func(ctx context.Context) ([]repository.Substrate, error) {
		return s.repo.ListSubstrates(ctx, false)
	})
}

// GetSubstrate returns a substrate with its recipe.
func (s *Service) GetSubstrate(ctx context.Context, substrateID string) (repository.Substrate, error) {
	substrateID = strings.TrimSpace(substrateID)
	if substrateID == "" {
		return repository.Substrate{}, apperr.Validation("substrate id is required")
	}
	return cached(ctx, s, keySubstratePrefix+substrateID, func(ctx context.Context) (repository.Substrate, error) {
		return s.repo.GetSubstrate(ctx, substrateID)
	})
}

// ListContaminationCodes returns active contamination codes.
func (s *Service) ListContaminationCodes(ctx context.Context) ([]domain.ContaminationCode, error) {
	return cached(ctx, s, keyContaminationCodes, func(ctx context.Context) ([]domain.ContaminationCode, error) {
		return s.repo.ListContaminationCodes(ctx, false)
	})
}

// UpsertStrains validates and writes strains, then drops the cached list.
func (s *Service) UpsertStrains(ctx context.Context, strains []domain.Strain) (int, error) {
	normalized, err := normalizeStrains(strains)
	if err != nil {
		return 0, err
	}
	if err := s.repo.UpsertStrains(ctx, normalized); err != nil {
		return 0, apperr.AsStorage("upsert_strains", err)
	}
	s.invalidate(ctx, SectionStrains, len(normalized), keyStrains)
	return len(normalized), nil
}

// UpsertSubstrates validates and writes substrates with their recipes.
func (s *Service) UpsertSubstrates(ctx context.Context, substrates []repository.Substrate) (int, error) {
	normalized, err := normalizeSubstrates(substrates)
	if err != nil {
		return 0, err
	}
	if err := s.repo.UpsertSubstrates(ctx, normalized); err != nil {
		return 0, apperr.AsStorage("upsert_substrates", err)
	}
	keys := []string{keySubstrates}
	for _, sub := range normalized {
		keys = append(keys, keySubstratePrefix+sub.SubstrateID)
	}
	s.invalidate(ctx, SectionSubstrates, len(normalized), keys...)
	return len(normalized), nil
}

// UpsertContaminationCodes validates and writes contamination codes.
func (s *Service) UpsertContaminationCodes(ctx context.Context, codes []domain.ContaminationCode) (int, error) {
	normalized, err := normalizeCodes(codes)
	if err != nil {
		return 0, err
	}
	if err := s.repo.UpsertContaminationCodes(ctx, normalized); err != nil {
		return 0, apperr.AsStorage("upsert_contamination_codes", err)
	}
	s.invalidate(ctx, SectionContaminationCodes, len(normalized), keyContaminationCodes)
	return len(normalized), nil
}

func (s *Service) invalidate(ctx context.Context, section string, count int, keys ...string) {
	if err := s.cache.Delete(ctx, keys...); err != nil {
		s.log.WithContext(ctx).Warn("catalog cache invalidation failed", "section", section, "error", err)
	}
	s.log.WithContext(ctx).Info("catalog updated", "section", section, "count", count)
	if s.bus != nil {
		s.bus.Publish(ctx, events.CatalogChanged{
			BaseEvent: events.NewBaseEvent(),
			Section:   section,
			Count:     count,
		})
	}
}

// cached reads key from the cache and falls back to load on a miss.
// Concurrent misses for the same key share one load, which runs detached
// from any single caller's cancellation and is bounded by loadTimeout. Each
// caller still stops waiting when its own context ends. Cache failures are
// logged and never fail the read.
func cached[T any](ctx context.Context, s *Service, key string, load func(context.Context) (T, error)) (T, error) {
	var out T
	hit, err := s.cache.Get(ctx, key, &out)
	switch {
	case err != nil:
		s.log.WithContext(ctx).Warn("catalog cache read failed", "key", key, "error", err)
	case hit:
		s.recorder.CacheHit()
		return out, nil
	}
	s.recorder.CacheMiss()

	ch := s.group.DoChan(key, func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()

		loaded, err := load(loadCtx)
		if err != nil {
			return nil, err
		}
		if err := s.cache.Set(loadCtx, key, loaded, s.ttl); err != nil {
			s.log.WithContext(ctx).Warn("catalog cache write failed", "key", key, "error", err)
		}
		return loaded, nil
	})

	select {
	case <-ctx.Done():
		return out, apperr.AsStorage("catalog_read", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return out, apperr.AsStorage("catalog_read", res.Err)
		}
		return res.Val.(T), nil
	}
}

func normalizeStrains(in []domain.Strain) ([]domain.Strain, error) {
	if len(in) == 0 {
		return nil, apperr.Validation("at least one strain is required")
	}
	out := make([]domain.Strain, len(in))
	for i, st := range in {
		st.StrainCode = strings.ToUpper(strings.TrimSpace(st.StrainCode))
		st.StrainVendorID = strings.TrimSpace(st.StrainVendorID)
		st.Species = strings.TrimSpace(st.Species)
		st.VendorName = strings.TrimSpace(st.VendorName)
		if st.StrainCode == "" || st.StrainVendorID == "" || st.Species == "" {
			return nil, apperr.Validation("strain code, vendor id and species are required").
				WithDetails(map[string]int{"index": i})
		}
		out[i] = st
	}
	return out, nil
}

func normalizeSubstrates(in []repository.Substrate) ([]repository.Substrate, error) {
	if len(in) == 0 {
		return nil, apperr.Validation("at least one substrate is required")
	}
	out := make([]repository.Substrate, len(in))
	for i, sub := range in {
		sub.SubstrateID = strings.TrimSpace(sub.SubstrateID)
		sub.Name = strings.TrimSpace(sub.Name)
		if sub.SubstrateID == "" || sub.Name == "" {
			return nil, apperr.Validation("substrate id and name are required").
				WithDetails(map[string]int{"index": i})
		}
		for _, m := range sub.Mediums {
			if strings.TrimSpace(m.MediumID) == "" || m.QtyG < 0 {
				return nil, apperr.Validation("medium lines need an id and a non-negative quantity").
					WithDetails(map[string]string{"substrateId": sub.SubstrateID})
			}
		}
		for _, sp := range sub.Supplements {
			if strings.TrimSpace(sp.SupplementID) == "" || strings.TrimSpace(sp.Unit) == "" || sp.Qty < 0 {
				return nil, apperr.Validation("supplement lines need an id, a unit and a non-negative quantity").
					WithDetails(map[string]string{"substrateId": sub.SubstrateID})
			}
		}
		out[i] = sub
	}
	return out, nil
}

func normalizeCodes(in []domain.ContaminationCode) ([]domain.ContaminationCode, error) {
	if len(in) == 0 {
		return nil, apperr.Validation("at least one contamination code is required")
	}
	out := make([]domain.ContaminationCode, len(in))
	for i, c := range in {
		c.Code = strings.ToUpper(strings.TrimSpace(c.Code))
		c.Description = strings.TrimSpace(c.Description)
		if c.Code == "" || c.Description == "" {
			return nil, apperr.Validation("contamination code and description are required").
				WithDetails(map[string]int{"index": i})
		}
		out[i] = c
	}
	return out, nil
}
