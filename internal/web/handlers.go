package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"gitlab.com/timkado/api/affiliate-lead-service/internal/apperrors"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/attribution"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/lead"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/model"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/requestctx"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/storage"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/visit"
	"gitlab.com/timkado/api/affiliate-lead-service/pkg/logger"
)

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

// VisitRecorder records page views.
type VisitRecorder interface {
	Record(ctx context.Context, in visit.Input)
}

// LeadSubmitter creates leads from inquiries.
type LeadSubmitter interface {
	Submit(ctx context.Context, in lead.SubmitInput, affiliateID *string) (*model.Lead, error)
}

type handlers struct {
	resolver    attribution.AffiliateResolver
	cookies     *attribution.CookieStore
	properties  storage.PropertyRepo
	visits      VisitRecorder
	leads       LeadSubmitter
	catalogPath string
	logger      *zap.Logger
}

// CatalogResponse is one page of published properties.
type CatalogResponse struct {
	Items   []model.Property `json:"items"`
	Page    int              `json:"page"`
	PerPage int              `json:"per_page"`
	Total   int64            `json:"total"`
}

type inquiryRequest struct {
	VisitorName  string `json:"visitor_name"`
	VisitorPhone string `json:"visitor_phone"`
	Message      string `json:"message"`
}

// InquiryResponse is returned for an accepted inquiry.
type InquiryResponse struct {
	LeadID string           `json:"lead_id"`
	Status model.LeadStatus `json:"status"`
}

// referral resolves /ref/:code, stores the attribution when the code is
// valid and always sends the visitor on to the catalog.
func (h *handlers) referral(c *gin.Context) {
	code := attribution.NormalizeCode(c.Param("code"))
	ctx := c.Request.Context()

	if affiliate, ok := h.resolver.Resolve(ctx, code); ok {
		if err := h.cookies.Attach(c.Writer, affiliate.ID); err != nil {
			logger.FromContextOr(ctx, h.logger).Error("Failed to write attribution cookie", zap.Error(err))
		}
	}

	target := h.catalogPath
	if code != "" {
		target += "?" + url.Values{attribution.RefParam: {code}}.Encode()
	}
	c.Redirect(http.StatusFound, target)
}

func (h *handlers) catalog(c *gin.Context) {
	page := positiveInt(c.Query("page"), 1)
	perPage := positiveInt(c.Query("per_page"), defaultPerPage)
	if perPage > maxPerPage {
		perPage = maxPerPage
	}

	items, total, err := h.properties.ListPublished(c.Request.Context(), perPage, (page-1)*perPage)
	if err != nil {
		writeError(c, fmt.Errorf("list properties: %w", err))
		return
	}
	if items == nil {
		items = []model.Property{}
	}

	h.recordVisit(c, nil)
	c.JSON(http.StatusOK, CatalogResponse{Items: items, Page: page, PerPage: perPage, Total: total})
}

func (h *handlers) property(c *gin.Context) {
	property, err := h.publishedProperty(c.Request.Context(), c.Param("slug"))
	if err != nil {
		writeError(c, err)
		return
	}

	h.recordVisit(c, &property.ID)
	c.JSON(http.StatusOK, property)
}

func (h *handlers) inquiry(c *gin.Context) {
	ctx := c.Request.Context()

	var req inquiryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, fmt.Errorf("%w: %v", apperrors.ErrBadRequest, err))
		return
	}

	property, err := h.publishedProperty(ctx, c.Param("slug"))
	if err != nil {
		writeError(c, err)
		return
	}

	created, err := h.leads.Submit(ctx, lead.SubmitInput{
		PropertyID:   property.ID,
		VisitorName:  req.VisitorName,
		VisitorPhone: req.VisitorPhone,
		Message:      req.Message,
	}, requestctx.AffiliateIDPtr(ctx))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, InquiryResponse{LeadID: created.ID, Status: created.Status})
}

func (h *handlers) publishedProperty(ctx context.Context, slug string) (*model.Property, error) {
	property, err := h.properties.FindBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("find property %q: %w", slug, err)
	}
	if !property.IsPublished() {
		return nil, fmt.Errorf("%w: property %q is not published", apperrors.ErrNotFound, slug)
	}
	return property, nil
}

func (h *handlers) recordVisit(c *gin.Context, propertyID *string) {
	h.visits.Record(c.Request.Context(), visit.Input{
		AffiliateID: requestctx.AffiliateIDPtr(c.Request.Context()),
		PropertyID:  propertyID,
		IP:          c.ClientIP(),
		UserAgent:   c.Request.UserAgent(),
		URL:         c.Request.URL.RequestURI(),
	})
}

func positiveInt(raw string, def int) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return def
	}
	return n
}
