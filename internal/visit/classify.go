package visit

import (
	"strings"

	"github.com/mssola/useragent"

	"gitlab.com/timkado/api/affiliate-lead-service/internal/model"
)

var botMarkers = []string{"bot", "crawler", "spider", "slurp"}

// Classify derives the device class and browser name from a user agent.
func Classify(userAgent string) (model.DeviceClass, string) {
	userAgent = strings.TrimSpace(userAgent)
	if userAgent == "" {
		return model.DeviceUnknown, ""
	}

	ua := useragent.New(userAgent)
	browser, _ := ua.Browser()

	switch {
	case ua.Bot() || hasBotMarker(userAgent):
		return model.DeviceBot, browser
	case isTablet(ua, userAgent):
		return model.DeviceTablet, browser
	case ua.Mobile() || strings.Contains(userAgent, "Mobi"):
		return model.DeviceMobile, browser
	default:
		return model.DeviceDesktop, browser
	}
}

// isTablet matches iPads and Android devices that do not advertise "Mobile".
func isTablet(ua *useragent.UserAgent, raw string) bool {
	if ua.Platform() == "iPad" || strings.Contains(raw, "iPad") {
		return true
	}
	return strings.Contains(raw, "Android") && !strings.Contains(raw, "Mobile")
}

func hasBotMarker(raw string) bool {
	lower := strings.ToLower(raw)
	for _, marker := range botMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
