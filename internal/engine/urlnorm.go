package engine

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Tracking params stripped during normalization. utm_* is handled
// separately by prefix.
var trackingParams = map[string]bool{
	"fbclid": true,
	"gclid":  true,
	"ref":    true,
	"source": true,
	"mc_cid": true,
	"mc_eid": true,
	"igshid": true,
	"si":     true,
}

// NormalizeURL canonicalizes a URL for duplicate detection. Two URLs
// that normalize to the same string are treated as the same content.
//
// Rules: lowercase scheme and host, force https, strip default ports,
// fragment, trailing slash, www. prefix, and tracking query params;
// remaining params are sorted by key.
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty url")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("missing host")
	}

	u.Scheme = "https"
	host := strings.ToLower(u.Host)
	host = strings.TrimSuffix(host, ":443")
	host = strings.TrimSuffix(host, ":80")
	host = strings.TrimPrefix(host, "www.")
	u.Host = host

	u.Fragment = ""
	u.User = nil

	path := u.EscapedPath()
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	u.RawPath = ""
	u.Path = path

	q := u.Query()
	kept := url.Values{}
	for k, vs := range q {
		lk := strings.ToLower(k)
		if strings.HasPrefix(lk, "utm_") || trackingParams[lk] {
			continue
		}
		kept[k] = vs
	}
	if len(kept) == 0 {
		u.RawQuery = ""
	} else {
		keys := make([]string, 0, len(kept))
		for k := range kept {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var sb strings.Builder
		for _, k := range keys {
			for _, v := range kept[k] {
				if sb.Len() > 0 {
					sb.WriteByte('&')
				}
				sb.WriteString(url.QueryEscape(k))
				sb.WriteByte('=')
				sb.WriteString(url.QueryEscape(v))
			}
		}
		u.RawQuery = sb.String()
	}

	return u.String(), nil
}
