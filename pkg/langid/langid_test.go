package langid

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHeuristic(t *testing.T) {
	tests := []struct {
		text string
		want Tag
	}{
		{"hello there", English},
		{"你好", Chinese},
		{"こんにちは", Japanese},
		{"漢字とかな", Japanese}, // kana wins over han
		{"안녕하세요", Korean},
		{"привет", Russian},
		{"مرحبا", Arabic},
		{"नमस्ते", Hindi},
		{"สวัสดี", Thai},
		{"γειά σου", Greek},
		{"¿cómo estás?", Spanish},
		{"12345 !!!", Unknown},
		{"", Unknown},
	}

	for _, tc := range tests {
		got := Heuristic(tc.text, English, Spanish)
		if got != tc.want {
			t.Errorf("Heuristic(%q) = %q; want %q", tc.text, got, tc.want)
		}
	}
}

func TestClassify_ShortInputStaysLocal(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.Write([]byte(`{"language_code":"fr"}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	got := c.Classify(context.Background(), "hi")
	if got != English {
		t.Errorf("Classify(short) = %q; want %q", got, English)
	}
	if called {
		t.Error("short input should not reach the remote service")
	}
}

func TestClassify_Remote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"language_code":"fr-FR"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, WithMinRemoteLen(1))
	got := c.Classify(context.Background(), "bonjour tout le monde")
	if got != French {
		t.Errorf("Classify = %q; want %q", got, French)
	}
}

func TestClassify_RemoteFailureFallsBack(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"non-2xx", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}},
		{"malformed", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{not json`))
		}},
		{"empty-code", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"language_code":""}`))
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()

			c := New(srv.URL, WithMinRemoteLen(1))
			got := c.Classify(context.Background(), "こんにちは世界")
			if got != Japanese {
				t.Errorf("Classify = %q; want heuristic fallback %q", got, Japanese)
			}
		})
	}
}

func TestClassify_NoEndpoint(t *testing.T) {
	c := New("")
	if got := c.Classify(context.Background(), "a perfectly long english sentence"); got != English {
		t.Errorf("Classify = %q; want %q", got, English)
	}
}

func TestClassify_InconclusiveReturnsUnknown(t *testing.T) {
	c := New("")
	if got := c.Classify(context.Background(), "…  —  "); got != Unknown {
		t.Errorf("Classify = %q; want Unknown", got)
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"en-US", "en"},
		{"zh_CN", "zh"},
		{" FR ", "fr"},
		{"und", ""},
		{"unknown", ""},
	}
	for _, tc := range tests {
		if got := normalize(tc.in); got != tc.want {
			t.Errorf("normalize(%q) = %q; want %q", tc.in, got, tc.want)
		}
	}
}

func TestLocale(t *testing.T) {
	if got := Locale(Chinese); got != "zh-CN" {
		t.Errorf("Locale(zh) = %q; want zh-CN", got)
	}
	if got := Locale(Tag("pt")); got != "pt-PT" {
		t.Errorf("Locale(pt) = %q; want pt-PT", got)
	}
	if got := Locale(Unknown); got != "" {
		t.Errorf("Locale(Unknown) = %q; want empty", got)
	}
}

func TestDisplayName(t *testing.T) {
	if got := DisplayName(Korean); got != "Korean" {
		t.Errorf("DisplayName(ko) = %q; want Korean", got)
	}
	if got := DisplayName(Tag("xx")); got != "xx" {
		t.Errorf("DisplayName(xx) = %q; want xx", got)
	}
}
