package engine

import "testing"

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "forces https and strips www",
			input: "http://www.Example.com/Article",
			want:  "https://example.com/Article",
		},
		{
			name:  "strips default https port",
			input: "https://example.com:443/post",
			want:  "https://example.com/post",
		},
		{
			name:  "strips default http port",
			input: "http://example.com:80/post",
			want:  "https://example.com/post",
		},
		{
			name:  "strips fragment",
			input: "https://example.com/page#section-2",
			want:  "https://example.com/page",
		},
		{
			name:  "strips trailing slash",
			input: "https://example.com/blog/entry/",
			want:  "https://example.com/blog/entry",
		},
		{
			name:  "keeps root path slash",
			input: "https://example.com/",
			want:  "https://example.com/",
		},
		{
			name:  "strips utm params",
			input: "https://example.com/a?utm_source=tw&utm_medium=social&id=5",
			want:  "https://example.com/a?id=5",
		},
		{
			name:  "strips known tracking params",
			input: "https://example.com/a?fbclid=xyz&gclid=abc&si=q&id=5",
			want:  "https://example.com/a?id=5",
		},
		{
			name:  "sorts remaining params",
			input: "https://example.com/search?z=1&a=2&m=3",
			want:  "https://example.com/search?a=2&m=3&z=1",
		},
		{
			name:  "drops all-tracking query entirely",
			input: "https://example.com/a?utm_campaign=x&ref=home",
			want:  "https://example.com/a",
		},
		{
			name:  "adds scheme when missing",
			input: "example.com/path",
			want:  "https://example.com/path",
		},
		{
			name:  "youtube watch url keeps v param",
			input: "https://www.youtube.com/watch?v=dQw4w9WgXcQ&si=share123",
			want:  "https://youtube.com/watch?v=dQw4w9WgXcQ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeURL(tt.input)
			if err != nil {
				t.Fatalf("NormalizeURL(%q) error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("NormalizeURL(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeURLErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"whitespace only", "   "},
		{"unsupported scheme", "ftp://example.com/file"},
		{"missing host", "https:///path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NormalizeURL(tt.input); err == nil {
				t.Errorf("NormalizeURL(%q) expected error, got nil", tt.input)
			}
		})
	}
}

func TestNormalizeURLIdempotent(t *testing.T) {
	inputs := []string{
		"http://www.example.com/a/?utm_source=x&b=2&a=1#frag",
		"https://news.ycombinator.com/item?id=39000000",
	}
	for _, in := range inputs {
		first, err := NormalizeURL(in)
		if err != nil {
			t.Fatalf("first pass: %v", err)
		}
		second, err := NormalizeURL(first)
		if err != nil {
			t.Fatalf("second pass: %v", err)
		}
		if first != second {
			t.Errorf("not idempotent: %q -> %q -> %q", in, first, second)
		}
	}
}
