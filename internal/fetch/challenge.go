package fetch

import (
	"net/http"
	"regexp"
	"strings"
)

// Interstitial page titles served by bot-protection vendors.
var challengeTitles = []string{
	"just a moment",
	"attention required",
	"access denied",
	"verify you are human",
	"checking your browser",
	"один момент", // cloudflare localized
	"please wait while we verify",
}

// Body markers that identify a challenge page regardless of title.
var challengeBodyMarkers = []string{
	"cf-chl-",
	"__cf_chl",
	"cf-browser-verification",
	"_cf_chl_opt",
	"challenge-platform",
	"ddos-guard",
	"px-captcha",
}

var titleRe = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)

// isChallenge reports whether the response looks like a bot-challenge
// interstitial rather than real content.
func isChallenge(status int, body string) bool {
	lower := strings.ToLower(body)

	if m := titleRe.FindStringSubmatch(lower); m != nil {
		title := strings.TrimSpace(m[1])
		for _, t := range challengeTitles {
			if strings.Contains(title, t) {
				return true
			}
		}
	}

	// 403/503 from a protected origin plus a challenge marker in the body.
	if status == http.StatusForbidden || status == http.StatusServiceUnavailable {
		for _, marker := range challengeBodyMarkers {
			if strings.Contains(lower, marker) {
				return true
			}
		}
	}

	return false
}

// isAuthStatus reports whether the status code indicates the content
// requires credentials the fetcher does not have.
func isAuthStatus(status int) bool {
	return status == http.StatusUnauthorized || status == http.StatusPaymentRequired
}
