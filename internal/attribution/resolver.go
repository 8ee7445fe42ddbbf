package attribution

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"gitlab.com/timkado/api/affiliate-lead-service/internal/apperrors"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/model"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/observer"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/storage"
	"gitlab.com/timkado/api/affiliate-lead-service/pkg/logger"
)

// AffiliateResolver turns referral codes and stored affiliate ids into active affiliates.
type AffiliateResolver interface {
	Resolve(ctx context.Context, code string) (*model.Affiliate, bool)
	Revalidate(ctx context.Context, affiliateID string) (*model.Affiliate, Validity)
}

// Validity is the outcome of revalidating a stored affiliate id.
type Validity int

const (
	// Inactive means the affiliate is gone or no longer active.
	Inactive Validity = iota
	Active
	// Unknown means the lookup failed; the stored attribution must be kept.
	Unknown
)

var _ AffiliateResolver = (*Resolver)(nil)

// Resolver validates referral codes against the affiliate store. It never
// fails loudly: any problem yields (nil, false).
type Resolver struct {
	repo   storage.AffiliateRepo
	logger *zap.Logger
}

// NewResolver creates a resolver backed by repo.
func NewResolver(repo storage.AffiliateRepo, log *zap.Logger) *Resolver {
	return &Resolver{repo: repo, logger: log.Named("resolver")}
}

// NormalizeCode trims and upper-cases a referral code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Resolve returns the active affiliate owning code.
func (r *Resolver) Resolve(ctx context.Context, code string) (*model.Affiliate, bool) {
	code = NormalizeCode(code)
	if code == "" {
		observer.IncReferralResolution("empty")
		return nil, false
	}

	affiliate, err := r.repo.FindActiveByCode(ctx, code)
	if err != nil {
		if apperrors.IsNotFoundError(err) {
			observer.IncReferralResolution("invalid")
			return nil, false
		}
		logger.FromContextOr(ctx, r.logger).Warn("Referral code lookup failed",
			zap.String("code", code),
			zap.Error(err),
		)
		observer.IncReferralResolution("error")
		return nil, false
	}
	if !affiliate.IsActive() {
		observer.IncReferralResolution("invalid")
		return nil, false
	}

	observer.IncReferralResolution("valid")
	return affiliate, true
}

// Revalidate checks that a previously attributed affiliate still exists and
// is active. Lookup failures yield Unknown, never Inactive.
func (r *Resolver) Revalidate(ctx context.Context, affiliateID string) (*model.Affiliate, Validity) {
	if affiliateID == "" {
		return nil, Inactive
	}

	affiliate, err := r.repo.FindByID(ctx, affiliateID)
	if err != nil {
		if apperrors.IsNotFoundError(err) {
			return nil, Inactive
		}
		logger.FromContextOr(ctx, r.logger).Warn("Affiliate revalidation failed",
			zap.String("affiliate_id", affiliateID),
			zap.Error(err),
		)
		return nil, Unknown
	}
	if !affiliate.IsActive() {
		return nil, Inactive
	}
	return affiliate, Active
}
