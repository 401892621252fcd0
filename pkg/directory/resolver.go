package directory

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"mercator-hq/themis/pkg/compliance/storage"
)

// Resolver answers the two role-policy questions the engine needs: which
// policies a role must acknowledge, and which employees a policy affects.
// It is read-only over the store's role-policy mappings and the directory.
//
// Mapping lookups are cached per role with a bounded TTL, so admin edits to
// the mappings become visible within at most one TTL. Employee fan-out is
// never cached; it always reflects the live directory.
type Resolver struct {
	store  storage.Store
	dir    Directory
	ttl    time.Duration
	logger *slog.Logger

	mu    sync.Mutex
	cache map[string]cachedPolicies
}

type cachedPolicies struct {
	policyIDs []string
	fetchedAt time.Time
}

// NewResolver creates a resolver with the given cache TTL. A zero or
// negative TTL disables caching.
func NewResolver(store storage.Store, dir Directory, ttl time.Duration) *Resolver {
	return &Resolver{
		store:  store,
		dir:    dir,
		ttl:    ttl,
		logger: slog.Default().With("component", "directory.resolver"),
		cache:  make(map[string]cachedPolicies),
	}
}

// MandatoryPolicies returns the IDs of policies a role's holders must
// acknowledge.
func (r *Resolver) MandatoryPolicies(ctx context.Context, roleID string) ([]string, error) {
	if r.ttl > 0 {
		r.mu.Lock()
		if entry, ok := r.cache[roleID]; ok && time.Since(entry.fetchedAt) < r.ttl {
			out := append([]string(nil), entry.policyIDs...)
			r.mu.Unlock()
			return out, nil
		}
		r.mu.Unlock()
	}

	mappings, err := r.store.MappingsForRole(ctx, roleID)
	if err != nil {
		return nil, err
	}
	policyIDs := []string{}
	for _, m := range mappings {
		if m.IsMandatory {
			policyIDs = append(policyIDs, m.PolicyID)
		}
	}

	if r.ttl > 0 {
		r.mu.Lock()
		r.cache[roleID] = cachedPolicies{
			policyIDs: append([]string(nil), policyIDs...),
			fetchedAt: time.Now(),
		}
		r.mu.Unlock()
	}
	return policyIDs, nil
}

// AffectedEmployees returns the IDs of active employees whose role maps to
// the policy, within one company.
func (r *Resolver) AffectedEmployees(ctx context.Context, companyID, policyID string) ([]string, error) {
	roles, err := r.store.RolesForPolicy(ctx, policyID)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	employeeIDs := []string{}
	for _, role := range roles {
		employees, err := r.dir.ActiveByRole(ctx, companyID, role)
		if err != nil {
			return nil, err
		}
		for _, e := range employees {
			if !seen[e.ID] {
				seen[e.ID] = true
				employeeIDs = append(employeeIDs, e.ID)
			}
		}
	}
	return employeeIDs, nil
}

// Invalidate drops the cached policy set for a role, forcing the next
// MandatoryPolicies call to re-read the store.
func (r *Resolver) Invalidate(roleID string) {
	r.mu.Lock()
	delete(r.cache, roleID)
	r.mu.Unlock()
}

// Employee proxies a directory lookup, so engine components depend on the
// resolver alone.
func (r *Resolver) Employee(ctx context.Context, id string) (*Employee, error) {
	e, err := r.dir.Employee(ctx, id)
	if err != nil {
		return nil, err
	}
	return e, nil
}
