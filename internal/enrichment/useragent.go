// Package enrichment derives structured facts from raw request headers so
// click rows can be grouped without reparsing on every stats read.
package enrichment

import (
	"regexp"
	"strings"

	"github.com/mssola/user_agent"
)

// UAInfo is the denormalized view of a User-Agent string, computed once at
// click-write time.
type UAInfo struct {
	Browser        string
	BrowserVersion string
	OS             string
	OSVersion      string
	Device         string
	IsMobile       bool
	IsBot          bool
}

// ParseFunc lets callers inject the parser, keeping aggregation logic
// independent of any particular UA taxonomy.
type ParseFunc func(uaString string) UAInfo

// Bot detection is keyed on crawler tokens in the raw string, independent of
// the device classification. A mobile crawler is both mobile and a bot.
var botPattern = regexp.MustCompile(`(?i)bot|crawler|spider|crawling`)

// Parse derives browser, OS, and device facts from a User-Agent string.
// A blank string yields "unknown" for every field and false flags.
func Parse(uaString string) UAInfo {
	if strings.TrimSpace(uaString) == "" {
		return UAInfo{
			Browser: "unknown",
			OS:      "unknown",
			Device:  "unknown",
		}
	}

	ua := user_agent.New(uaString)
	browser, version := ua.Browser()
	osInfo := ua.OSInfo()

	info := UAInfo{
		Browser:        orUnknown(browser),
		BrowserVersion: version,
		OS:             orUnknown(osInfo.Name),
		OSVersion:      osInfo.Version,
		Device:         orUnknown(ua.Platform()),
		IsMobile:       ua.Mobile(),
		IsBot:          botPattern.MatchString(uaString),
	}

	return info
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
