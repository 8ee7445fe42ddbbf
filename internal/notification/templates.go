package notification

import (
	"fmt"
	"strings"
	"text/template"

	"gitlab.com/timkado/api/affiliate-lead-service/internal/config"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/settings"
)

// MessageData is the data available to message templates.
type MessageData struct {
	SiteName      string
	LeadID        string
	PropertyTitle string
	PropertyURL   string
	VisitorName   string
	VisitorPhone  string
	Message       string
	AffiliateName string
}

// Renderer builds WhatsApp message bodies from the site templates.
type Renderer struct {
	affiliate *template.Template
	visitor   *template.Template
}

// NewRenderer parses the site templates, falling back to the built-in ones
// when a stored template does not parse.
func NewRenderer(site *settings.SiteSettings) *Renderer {
	return &Renderer{
		affiliate: parseOr("affiliate_lead", site.AffiliateLeadTemplate, config.DefaultAffiliateLeadTemplate),
		visitor:   parseOr("visitor_confirm", site.VisitorConfirmTemplate, config.DefaultVisitorConfirmTemplate),
	}
}

func parseOr(name, text, fallback string) *template.Template {
	if strings.TrimSpace(text) != "" {
		if t, err := template.New(name).Option("missingkey=zero").Parse(text); err == nil {
			return t
		}
	}
	return template.Must(template.New(name).Parse(fallback))
}

// Render returns the body for role.
func (r *Renderer) Render(role DeliveryRole, data MessageData) (string, error) {
	var t *template.Template
	switch role {
	case RoleAffiliate:
		t = r.affiliate
	case RoleVisitor:
		t = r.visitor
	default:
		return "", fmt.Errorf("no template for role %q", role)
	}

	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render %s message: %w", role, err)
	}
	return strings.TrimSpace(b.String()), nil
}
