//go:build integration

package integration_test

import (
	"time"

	"gitlab.com/timkado/api/affiliate-lead-service/internal/apperrors"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/model"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/storage"
)

type RepositorySuite struct {
	BaseIntegrationSuite
}

func (s *RepositorySuite) TestAffiliateCodeLookupAndAssignment() {
	repo := storage.NewAffiliateRepoAdapter(s.Repo)
	affiliate := model.NewAffiliate(&model.Affiliate{Status: model.AffiliatePending})
	affiliate.AffiliateCode = nil
	s.Require().NoError(repo.Save(s.Ctx, affiliate))

	s.Require().NoError(repo.AssignCode(s.Ctx, affiliate.ID, "AFF123"))
	s.ErrorIs(repo.AssignCode(s.Ctx, affiliate.ID, "OTHER1"), apperrors.ErrConflict, "codes are immutable")

	_, err := repo.FindActiveByCode(s.Ctx, "AFF123")
	s.ErrorIs(err, apperrors.ErrNotFound, "pending affiliates do not resolve")

	s.Require().NoError(repo.UpdateStatus(s.Ctx, affiliate.ID, model.AffiliateActive))
	found, err := repo.FindActiveByCode(s.Ctx, "AFF123")
	s.Require().NoError(err)
	s.Equal(affiliate.ID, found.ID)

	other := model.NewAffiliate()
	other.AffiliateCode = nil
	s.Require().NoError(repo.Save(s.Ctx, other))
	s.ErrorIs(repo.AssignCode(s.Ctx, other.ID, "AFF123"), apperrors.ErrDuplicate)
}

func (s *RepositorySuite) TestPropertySlugsAreUnique() {
	repo := storage.NewPropertyRepoAdapter(s.Repo)

	first := &model.Property{Title: "Villa Canggu", Status: model.PropertyPublished, Currency: "IDR"}
	second := &model.Property{Title: "Villa  Canggu!", Status: model.PropertyPublished, Currency: "IDR"}
	draft := &model.Property{Title: "Draft House", Status: model.PropertyDraft, Currency: "IDR"}
	for _, p := range []*model.Property{first, second, draft} {
		s.Require().NoError(repo.Save(s.Ctx, p))
	}

	s.Equal("villa-canggu", first.Slug)
	s.Equal("villa-canggu-2", second.Slug)

	found, err := repo.FindBySlug(s.Ctx, "villa-canggu-2")
	s.Require().NoError(err)
	s.Equal(second.ID, found.ID)

	items, total, err := repo.ListPublished(s.Ctx, 10, 0)
	s.Require().NoError(err)
	s.EqualValues(2, total)
	s.Len(items, 2)
}

func (s *RepositorySuite) TestLeadWithOutboxAndRelayQueries() {
	properties := storage.NewPropertyRepoAdapter(s.Repo)
	leads := storage.NewLeadRepoAdapter(s.Repo)
	outbox := storage.NewOutboxRepoAdapter(s.Repo)

	property := &model.Property{Title: "Rumah Ubud", Status: model.PropertyPublished, Currency: "IDR"}
	s.Require().NoError(properties.Save(s.Ctx, property))

	lead := model.NewLead(&model.Lead{PropertyID: property.ID})
	event := &model.OutboxEvent{
		ID:          "6b0f7d1e-8a51-4d0e-9a53-6c9f1c1d2e3f",
		AggregateID: lead.ID,
		Subject:     string(model.V1LeadsCreated),
		Payload:     []byte(`{"lead_id":"` + lead.ID + `"}`),
	}
	s.Require().NoError(leads.CreateWithOutbox(s.Ctx, lead, event))

	pending, err := outbox.FindUnpublished(s.Ctx, time.Now().Add(time.Minute), 10)
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	s.Equal(event.ID, pending[0].ID)

	s.Require().NoError(outbox.MarkFailed(s.Ctx, event.ID, "nats down"))
	s.Require().NoError(outbox.MarkPublished(s.Ctx, event.ID))
	pending, err = outbox.FindUnpublished(s.Ctx, time.Now().Add(time.Minute), 10)
	s.Require().NoError(err)
	s.Empty(pending)

	s.Require().NoError(leads.UpdateStatus(s.Ctx, lead.ID, model.LeadSurvey))
	stored, err := leads.FindByID(s.Ctx, lead.ID)
	s.Require().NoError(err)
	s.Equal(model.LeadSurvey, stored.Status)

	listed, err := leads.List(s.Ctx, model.LeadFilter{Status: model.LeadSurvey, Limit: 10})
	s.Require().NoError(err)
	s.Len(listed, 1)
}

func (s *RepositorySuite) TestVisitsAreAppendOnly() {
	repo := storage.NewVisitRepoAdapter(s.Repo)
	for i := 0; i < 3; i++ {
		s.Require().NoError(repo.Save(s.Ctx, model.NewVisit()))
	}

	var count int64
	s.Require().NoError(s.DB.WithContext(s.Ctx).Model(&model.Visit{}).Count(&count).Error)
	s.EqualValues(3, count)
}
