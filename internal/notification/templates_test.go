package notification

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/timkado/api/affiliate-lead-service/internal/config"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/settings"
)

func sampleData() MessageData {
	return MessageData{
		SiteName:      "Rumah",
		LeadID:        "lead-1",
		PropertyTitle: "Villa Canggu",
		PropertyURL:   "https://rumah.example/properties/villa-canggu",
		VisitorName:   "Budi",
		VisitorPhone:  "+6281234567890",
		Message:       "Is it still available?",
	}
}

func TestRenderer_DefaultTemplates(t *testing.T) {
	r := NewRenderer(&settings.SiteSettings{
		AffiliateLeadTemplate:  config.DefaultAffiliateLeadTemplate,
		VisitorConfirmTemplate: config.DefaultVisitorConfirmTemplate,
	})

	body, err := r.Render(RoleAffiliate, sampleData())
	require.NoError(t, err)
	assert.Equal(t, "New inquiry for Villa Canggu\n"+
		"Name: Budi\nWhatsApp: +6281234567890\n"+
		"Message: Is it still available?\n"+
		"Lead: lead-1\nhttps://rumah.example/properties/villa-canggu", body)

	body, err = r.Render(RoleVisitor, sampleData())
	require.NoError(t, err)
	assert.Equal(t, "Hi Budi, thanks for your interest in Villa Canggu on Rumah. Our agent will contact you shortly.", body)
}

func TestRenderer_OmitsEmptyMessage(t *testing.T) {
	r := NewRenderer(&settings.SiteSettings{})
	data := sampleData()
	data.Message = ""

	body, err := r.Render(RoleAffiliate, data)
	require.NoError(t, err)
	assert.NotContains(t, body, "Message:")
}

func TestRenderer_CustomAndBrokenTemplates(t *testing.T) {
	r := NewRenderer(&settings.SiteSettings{
		AffiliateLeadTemplate:  "Lead {{.LeadID}} for {{.PropertyTitle}}  ",
		VisitorConfirmTemplate: "{{.VisitorName",
	})

	body, err := r.Render(RoleAffiliate, sampleData())
	require.NoError(t, err)
	assert.Equal(t, "Lead lead-1 for Villa Canggu", body)

	body, err = r.Render(RoleVisitor, sampleData())
	require.NoError(t, err)
	assert.Contains(t, body, "thanks for your interest in Villa Canggu")
}

func TestRenderer_UnknownRole(t *testing.T) {
	r := NewRenderer(&settings.SiteSettings{})
	_, err := r.Render(DeliveryRole("broker"), sampleData())
	assert.Error(t, err)
}
