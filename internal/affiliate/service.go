package affiliate

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"go.uber.org/zap"

	"gitlab.com/timkado/api/affiliate-lead-service/internal/apperrors"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/model"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/storage"
	"gitlab.com/timkado/api/affiliate-lead-service/pkg/logger"
)

const (
	codeAlphabet    = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength      = 6
	maxCodeAttempts = 8
)

// ErrCodeExhausted is returned when no unused code was found.
var ErrCodeExhausted = errors.New("could not generate a unique affiliate code")

// Service handles affiliate approval and blocking.
type Service struct {
	repo    storage.AffiliateRepo
	logger  *zap.Logger
	newCode func() (string, error)
}

func NewService(repo storage.AffiliateRepo, log *zap.Logger) *Service {
	return &Service{repo: repo, logger: log.Named("affiliate_service"), newCode: GenerateCode}
}

// GenerateCode returns a random upper-case alphanumeric code.
func GenerateCode() (string, error) {
	buf := make([]byte, codeLength)
	limit := big.NewInt(int64(len(codeAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		buf[i] = codeAlphabet[n.Int64()]
	}
	return string(buf), nil
}

// Approve activates the affiliate and assigns a referral code if it has none.
// An existing code is never changed.
func (s *Service) Approve(ctx context.Context, affiliateID string) (*model.Affiliate, error) {
	log := logger.FromContextOr(ctx, s.logger).With(zap.String("affiliate_id", affiliateID))

	aff, err := s.repo.FindByID(ctx, affiliateID)
	if err != nil {
		return nil, err
	}

	if aff.Code() == "" {
		code, err := s.assignCode(ctx, affiliateID)
		if err != nil {
			return nil, err
		}
		aff.AffiliateCode = &code
		log.Info("Affiliate code assigned", zap.String("code", code))
	}

	if err := s.repo.UpdateStatus(ctx, affiliateID, model.AffiliateActive); err != nil {
		return nil, err
	}
	aff.Status = model.AffiliateActive
	log.Info("Affiliate approved")
	return aff, nil
}

func (s *Service) assignCode(ctx context.Context, affiliateID string) (string, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := s.newCode()
		if err != nil {
			return "", fmt.Errorf("generate affiliate code: %w", err)
		}
		err = s.repo.AssignCode(ctx, affiliateID, code)
		if err == nil {
			return code, nil
		}
		if !errors.Is(err, apperrors.ErrDuplicate) {
			return "", err
		}
		logger.FromContextOr(ctx, s.logger).Debug("Affiliate code collision, retrying",
			zap.String("code", code), zap.Int("attempt", attempt+1))
	}
	return "", ErrCodeExhausted
}

// Block stops the affiliate from earning further attribution. Existing
// cookies pointing at it are dropped on their next read.
func (s *Service) Block(ctx context.Context, affiliateID string) error {
	if err := s.repo.UpdateStatus(ctx, affiliateID, model.AffiliateBlocked); err != nil {
		return err
	}
	logger.FromContextOr(ctx, s.logger).Info("Affiliate blocked", zap.String("affiliate_id", affiliateID))
	return nil
}
