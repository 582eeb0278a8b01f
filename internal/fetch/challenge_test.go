package fetch

import "testing"

func TestIsChallenge(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   bool
	}{
		{
			name:   "cloudflare interstitial title",
			status: 200,
			body:   "<html><head><title>Just a moment...</title></head><body></body></html>",
			want:   true,
		},
		{
			name:   "attention required title",
			status: 403,
			body:   "<title>Attention Required! | Cloudflare</title>",
			want:   true,
		},
		{
			name:   "access denied title",
			status: 200,
			body:   "<title>Access Denied</title>",
			want:   true,
		},
		{
			name:   "403 with cf challenge marker",
			status: 403,
			body:   `<html><body><script src="/cdn-cgi/challenge-platform/h/b"></script></body></html>`,
			want:   true,
		},
		{
			name:   "503 with cf-chl marker",
			status: 503,
			body:   `<form id="challenge-form" action="/?__cf_chl_f_tk=abc"></form>`,
			want:   true,
		},
		{
			name:   "plain article",
			status: 200,
			body:   "<html><head><title>How Go Maps Work</title></head><body><article>text</article></body></html>",
			want:   false,
		},
		{
			name:   "403 without challenge markers",
			status: 403,
			body:   "<html><title>Forbidden</title></html>",
			want:   false,
		},
		{
			name:   "marker in body but 200 status",
			status: 200,
			body:   `article mentions cf-chl- tokens in prose <title>Security blog</title>`,
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isChallenge(tt.status, tt.body); got != tt.want {
				t.Errorf("isChallenge(%d, ...) = %v, want %v", tt.status, got, tt.want)
			}
		})
	}
}

func TestIsAuthStatus(t *testing.T) {
	for _, code := range []int{401, 402} {
		if !isAuthStatus(code) {
			t.Errorf("isAuthStatus(%d) = false, want true", code)
		}
	}
	for _, code := range []int{200, 403, 404, 500} {
		if isAuthStatus(code) {
			t.Errorf("isAuthStatus(%d) = true, want false", code)
		}
	}
}
