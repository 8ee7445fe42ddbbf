package settings

import (
	"context"
	"strings"
	"text/template"

	"go.uber.org/zap"

	"gitlab.com/timkado/api/affiliate-lead-service/internal/config"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/model"
	"gitlab.com/timkado/api/affiliate-lead-service/internal/storage"
)

// SiteSettings holds operator-editable site values. It is loaded once at
// startup and passed to the components that need it.
type SiteSettings struct {
	SiteName               string
	BaseURL                string
	OperatorEmails         []string
	AffiliateLeadTemplate  string
	VisitorConfirmTemplate string
}

// Defaults builds settings from configuration.
func Defaults(cfg *config.Config) SiteSettings {
	return SiteSettings{
		SiteName:               cfg.Site.Name,
		BaseURL:                strings.TrimRight(cfg.Site.BaseURL, "/"),
		OperatorEmails:         append([]string(nil), cfg.Alert.Recipients...),
		AffiliateLeadTemplate:  cfg.Site.AffiliateLeadTemplate,
		VisitorConfirmTemplate: cfg.Site.VisitorConfirmTemplate,
	}
}

// Load reads stored settings over defaults. Any stored value that is empty
// or unusable keeps its default. If the store cannot be read at all the
// defaults are returned unchanged.
func Load(ctx context.Context, repo storage.SettingsRepo, defaults SiteSettings, log *zap.Logger) *SiteSettings {
	log = log.Named("settings")
	result := defaults
	result.OperatorEmails = append([]string(nil), defaults.OperatorEmails...)

	stored, err := repo.All(ctx)
	if err != nil {
		log.Warn("Site settings unavailable, using defaults", zap.Error(err))
		return &result
	}

	if v := strings.TrimSpace(stored[model.SettingSiteName]); v != "" {
		result.SiteName = v
	}
	if v := strings.TrimSpace(stored[model.SettingBaseURL]); v != "" {
		result.BaseURL = strings.TrimRight(v, "/")
	}
	if emails := splitList(stored[model.SettingOperatorEmails]); len(emails) > 0 {
		result.OperatorEmails = emails
	}
	if v := stored[model.SettingAffiliateLeadTemplate]; strings.TrimSpace(v) != "" {
		if validTemplate(v) {
			result.AffiliateLeadTemplate = v
		} else {
			log.Warn("Stored affiliate lead template does not parse, using default")
		}
	}
	if v := stored[model.SettingVisitorConfirmTemplate]; strings.TrimSpace(v) != "" {
		if validTemplate(v) {
			result.VisitorConfirmTemplate = v
		} else {
			log.Warn("Stored visitor confirmation template does not parse, using default")
		}
	}

	log.Info("Site settings loaded", zap.Int("stored_keys", len(stored)))
	return &result
}

// PropertyURL returns the public URL of a property page.
func (s *SiteSettings) PropertyURL(slug string) string {
	return s.BaseURL + "/properties/" + slug
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ';' || r == '\n' }) {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func validTemplate(text string) bool {
	_, err := template.New("check").Parse(text)
	return err == nil
}
