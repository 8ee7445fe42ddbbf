package model

import (
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"gitlab.com/timkado/api/affiliate-lead-service/pkg/utils"
)

// Test factories. Non-zero fields of the optional override replace the fake defaults.

func init() {
	gofakeit.Seed(time.Now().UnixNano())
}

func fakeWhatsApp() string {
	return "+62812" + gofakeit.DigitN(7)
}

// NewAffiliate creates an active Affiliate with a phone and code.
func NewAffiliate(overrideDefaults ...*Affiliate) *Affiliate {
	phone := fakeWhatsApp()
	code := strings.ToUpper(gofakeit.LetterN(3) + gofakeit.DigitN(3))
	base := &Affiliate{
		ID:            gofakeit.UUID(),
		Name:          gofakeit.Name(),
		Email:         gofakeit.Email(),
		Phone:         &phone,
		AffiliateCode: &code,
		Status:        AffiliateActive,
		CreatedAt:     utils.Now().Add(-time.Duration(gofakeit.Number(24, 2400)) * time.Hour),
		UpdatedAt:     utils.Now(),
	}

	if len(overrideDefaults) > 0 && overrideDefaults[0] != nil {
		ovr := overrideDefaults[0]
		if ovr.ID != "" {
			base.ID = ovr.ID
		}
		if ovr.Name != "" {
			base.Name = ovr.Name
		}
		if ovr.Email != "" {
			base.Email = ovr.Email
		}
		if ovr.Phone != nil {
			base.Phone = ovr.Phone
		}
		if ovr.AffiliateCode != nil {
			base.AffiliateCode = ovr.AffiliateCode
		}
		if ovr.Status != "" {
			base.Status = ovr.Status
		}
		if !ovr.CreatedAt.IsZero() {
			base.CreatedAt = ovr.CreatedAt
		}
	}
	return base
}

// NewProperty creates a published Property.
func NewProperty(overrideDefaults ...*Property) *Property {
	title := gofakeit.Adjective() + " house in " + gofakeit.City()
	base := &Property{
		ID:          gofakeit.UUID(),
		Title:       title,
		Slug:        strings.ToLower(strings.ReplaceAll(title, " ", "-")),
		Description: gofakeit.Paragraph(1, 3, 12, " "),
		Price:       int64(gofakeit.Number(500, 9000)) * 1_000_000,
		Currency:    "IDR",
		City:        gofakeit.City(),
		ImageURL:    gofakeit.URL(),
		Status:      PropertyPublished,
		CreatedAt:   utils.Now().Add(-time.Duration(gofakeit.Number(1, 500)) * time.Hour),
		UpdatedAt:   utils.Now(),
	}

	if len(overrideDefaults) > 0 && overrideDefaults[0] != nil {
		ovr := overrideDefaults[0]
		if ovr.ID != "" {
			base.ID = ovr.ID
		}
		if ovr.Title != "" {
			base.Title = ovr.Title
		}
		if ovr.Slug != "" {
			base.Slug = ovr.Slug
		}
		if ovr.Price != 0 {
			base.Price = ovr.Price
		}
		if ovr.Status != "" {
			base.Status = ovr.Status
		}
	}
	return base
}

// NewLead creates a Lead in status new without attribution.
func NewLead(overrideDefaults ...*Lead) *Lead {
	base := &Lead{
		ID:           gofakeit.UUID(),
		PropertyID:   gofakeit.UUID(),
		VisitorName:  gofakeit.Name(),
		VisitorPhone: fakeWhatsApp(),
		Message:      gofakeit.Sentence(8),
		Status:       LeadNew,
		CreatedAt:    utils.Now(),
		UpdatedAt:    utils.Now(),
	}

	if len(overrideDefaults) > 0 && overrideDefaults[0] != nil {
		ovr := overrideDefaults[0]
		if ovr.ID != "" {
			base.ID = ovr.ID
		}
		if ovr.AffiliateID != nil {
			base.AffiliateID = ovr.AffiliateID
		}
		if ovr.PropertyID != "" {
			base.PropertyID = ovr.PropertyID
		}
		if ovr.VisitorName != "" {
			base.VisitorName = ovr.VisitorName
		}
		if ovr.VisitorPhone != "" {
			base.VisitorPhone = ovr.VisitorPhone
		}
		if ovr.Message != "" {
			base.Message = ovr.Message
		}
		if ovr.Status != "" {
			base.Status = ovr.Status
		}
	}
	return base
}

// NewVisit creates an unattributed catalog Visit from a desktop browser.
func NewVisit(overrideDefaults ...*Visit) *Visit {
	base := &Visit{
		IPAddress:   gofakeit.IPv4Address(),
		DeviceClass: DeviceDesktop,
		Browser:     "Chrome",
		URL:         "/properties",
		VisitedAt:   utils.Now(),
	}

	if len(overrideDefaults) > 0 && overrideDefaults[0] != nil {
		ovr := overrideDefaults[0]
		base.AffiliateID = ovr.AffiliateID
		base.PropertyID = ovr.PropertyID
		if ovr.IPAddress != "" {
			base.IPAddress = ovr.IPAddress
		}
		if ovr.DeviceClass != "" {
			base.DeviceClass = ovr.DeviceClass
		}
		if ovr.URL != "" {
			base.URL = ovr.URL
		}
		if !ovr.VisitedAt.IsZero() {
			base.VisitedAt = ovr.VisitedAt
		}
	}
	return base
}
