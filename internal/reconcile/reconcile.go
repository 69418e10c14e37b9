package reconcile

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/filevault/fv-registry/internal/adapter"
	"github.com/filevault/fv-registry/internal/chain"
	"github.com/filevault/fv-registry/internal/domain"
	"github.com/filevault/fv-registry/internal/logger"
	"github.com/filevault/fv-registry/internal/store"
	"github.com/filevault/fv-registry/internal/store/schema"
)

// Reconciler merges the on-chain grant record with the off-chain cache into
// a single exercisability view. Status is derived here and only here; call
// sites consume the view instead of recomputing it.
type Reconciler struct {
	oracle chain.Oracle
	store  store.Store
	clock  adapter.Clock
}

// New creates a grant reconciler
func New(oracle chain.Oracle, st store.Store, clock adapter.Clock) *Reconciler {
	return &Reconciler{
		oracle: oracle,
		store:  st,
		clock:  clock,
	}
}

// Resolve returns the authoritative view of a capability. Precedence:
// a mined on-chain record wins outright; an unmined or unreachable chain
// falls back to the cached record. Unreachability is availability over
// staleness, a deliberate trade-off, so the fallback is taken at WARN
// rather than failing the read.
func (r *Reconciler) Resolve(ctx context.Context, capID domain.CapabilityID) (*domain.GrantView, error) {
	if !capID.Valid() {
		return nil, domain.ErrInvalidCapabilityID
	}

	// Chain first: when the record is mined the cache is irrelevant, so a
	// cache outage must not fail the read
	onChain, chainErr := r.oracle.ReadGrant(ctx, capID)
	if chainErr != nil {
		cached, err := r.store.GetGrant(ctx, string(capID))
		if err != nil {
			return nil, fmt.Errorf("failed to read grant cache: %w", err)
		}
		if cached == nil {
			return nil, fmt.Errorf("chain unreachable and no cached grant for %s: %w", capID, chainErr)
		}
		logger.WarnCtx(ctx, "chain oracle unreachable, serving cached grant state",
			zap.String("capID", string(capID)),
			zap.Error(chainErr))
		return r.viewFromCache(capID, cached), nil
	}

	if !onChain.Mined() {
		cached, err := r.store.GetGrant(ctx, string(capID))
		if err != nil {
			return nil, fmt.Errorf("failed to read grant cache: %w", err)
		}
		if cached == nil {
			return nil, domain.ErrGrantNotFound
		}
		return r.viewFromCache(capID, cached), nil
	}

	return r.viewFromChain(capID, onChain), nil
}

// viewFromChain derives the view from a mined on-chain record. The chain is
// authoritative for usage, expiry, and revocation.
func (r *Reconciler) viewFromChain(capID domain.CapabilityID, g *domain.OnChainGrant) *domain.GrantView {
	view := &domain.GrantView{
		CapID:         capID,
		FileID:        g.FileID,
		GrantorID:     g.Grantor,
		GranteeID:     g.Grantee,
		UsedDownloads: g.UsedDownloads,
		MaxDownloads:  g.MaxDownloads,
		ExpiresAt:     g.ExpiresAt,
		OnChain:       true,
	}

	now := r.clock.Now()
	switch {
	case g.Revoked:
		view.Status = domain.GrantStatusRevoked
	case now.After(g.ExpiresAt):
		view.Status = domain.GrantStatusExpired
	case g.UsedDownloads >= g.MaxDownloads:
		view.Status = domain.GrantStatusExhausted
	default:
		view.Status = domain.GrantStatusConfirmed
	}
	return view
}

// viewFromCache derives the view from the off-chain record alone, used when
// the granting transaction is not mined yet or the chain is unreachable.
func (r *Reconciler) viewFromCache(capID domain.CapabilityID, g *schema.Grant) *domain.GrantView {
	view := &domain.GrantView{
		CapID:         capID,
		FileID:        domain.FileID(g.FileID),
		GrantorID:     g.GrantorID,
		GranteeID:     g.GranteeID,
		UsedDownloads: g.UsedDownloads,
		MaxDownloads:  g.MaxDownloads,
		ExpiresAt:     g.ExpiresAt,
		OnChain:       false,
	}

	now := r.clock.Now()
	switch {
	case g.RevokedAt != nil:
		view.Status = domain.GrantStatusRevoked
	case now.After(g.ExpiresAt):
		view.Status = domain.GrantStatusExpired
	case g.UsedDownloads >= g.MaxDownloads:
		view.Status = domain.GrantStatusExhausted
	case g.Confirmed:
		view.Status = domain.GrantStatusConfirmed
	default:
		view.Status = domain.GrantStatusPending
	}
	return view
}

// AuthorizeExercise checks that the caller is the grantee before a download
// path exercises the capability. Identity mismatch is a hard error distinct
// from any status transition.
func AuthorizeExercise(view *domain.GrantView, callerID string) error {
	if !strings.EqualFold(view.GranteeID, callerID) {
		return domain.ErrNotGrantee
	}
	return nil
}

// AuthorizeRevoke checks that the caller is the grantor before a revocation
// is relayed
func AuthorizeRevoke(view *domain.GrantView, callerID string) error {
	if !strings.EqualFold(view.GrantorID, callerID) {
		return domain.ErrNotGrantor
	}
	return nil
}
