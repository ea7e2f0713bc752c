// Package langid identifies the language of short conversational text.
//
// Classification is two-tiered: very short samples are classified locally
// from character-set ranges, longer samples are sent to a remote
// classification service. Any remote failure falls back to the local
// heuristic, so Classify never returns an error and never blocks past the
// caller's context deadline.
package langid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"unicode"
)

// Tag is a short ISO-639-style language code.
type Tag string

// Tags recognized by the local heuristic.
const (
	// Unknown is the sentinel returned when no rule matches and the remote
	// service is unavailable or inconclusive. Callers must treat Unknown as
	// "no state change".
	Unknown Tag = ""

	English  Tag = "en"
	Chinese  Tag = "zh"
	Japanese Tag = "ja"
	Korean   Tag = "ko"
	Russian  Tag = "ru"
	Arabic   Tag = "ar"
	Hindi    Tag = "hi"
	Thai     Tag = "th"
	Greek    Tag = "el"
	Spanish  Tag = "es"
	French   Tag = "fr"
	German   Tag = "de"
)

// IsKnown reports whether the tag carries a usable classification.
func (t Tag) IsKnown() bool { return t != Unknown }

// DefaultMinRemoteLen is the sample length (in runes) below which
// classification is always local.
const DefaultMinRemoteLen = 12

// Classifier classifies text samples into language tags.
//
// The zero value is not usable; construct with New.
type Classifier struct {
	endpoint   string
	httpClient *http.Client
	minRemote  int
	latin      Tag
	diacritic  Tag
	logger     *slog.Logger
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithHTTPClient sets the HTTP client used for remote classification.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Classifier) { c.httpClient = client }
}

// WithMinRemoteLen sets the rune count at which remote classification kicks in.
func WithMinRemoteLen(n int) Option {
	return func(c *Classifier) { c.minRemote = n }
}

// WithLatinDefault sets the tag returned for plain ASCII Latin text.
func WithLatinDefault(tag Tag) Option {
	return func(c *Classifier) { c.latin = tag }
}

// WithDiacriticDefault sets the tag returned for Latin text with diacritics.
func WithDiacriticDefault(tag Tag) Option {
	return func(c *Classifier) { c.diacritic = tag }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Classifier) { c.logger = logger }
}

// New creates a Classifier. endpoint is the remote classification URL;
// an empty endpoint disables the remote tier entirely.
func New(endpoint string, opts ...Option) *Classifier {
	c := &Classifier{
		endpoint:   endpoint,
		httpClient: http.DefaultClient,
		minRemote:  DefaultMinRemoteLen,
		latin:      English,
		diacritic:  Spanish,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify returns the best-guess language tag for text.
//
// Short samples are classified locally. Longer samples go to the remote
// service; on any failure (network, non-2xx, malformed body, timeout via
// ctx) the local heuristic is used instead. Classify returns Unknown when
// nothing matches.
func (c *Classifier) Classify(ctx context.Context, text string) Tag {
	text = strings.TrimSpace(text)
	if text == "" {
		return Unknown
	}

	if c.endpoint == "" || len([]rune(text)) < c.minRemote {
		return Heuristic(text, c.latin, c.diacritic)
	}

	tag, err := c.classifyRemote(ctx, text)
	if err != nil {
		c.logger.Debug("remote classification failed, using heuristic", "error", err)
		return Heuristic(text, c.latin, c.diacritic)
	}
	if tag == Unknown {
		return Heuristic(text, c.latin, c.diacritic)
	}
	return tag
}

// classifyRequest is the remote classification request body.
type classifyRequest struct {
	Text string `json:"text"`
}

// classifyResponse is the remote classification response body.
type classifyResponse struct {
	LanguageCode string `json:"language_code"`
}

func (c *Classifier) classifyRemote(ctx context.Context, text string) (Tag, error) {
	body, err := json.Marshal(classifyRequest{Text: text})
	if err != nil {
		return Unknown, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return Unknown, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Unknown, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Unknown, fmt.Errorf("langid: classification failed: %d: %s", resp.StatusCode, msg)
	}

	var out classifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Unknown, fmt.Errorf("langid: malformed response: %w", err)
	}

	code := normalize(out.LanguageCode)
	if code == "" {
		return Unknown, fmt.Errorf("langid: empty language code")
	}
	return Tag(code), nil
}

// normalize reduces a language code or locale ("en-US", "zh_CN") to its
// primary subtag.
func normalize(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if i := strings.IndexAny(code, "-_"); i > 0 {
		code = code[:i]
	}
	if code == "und" || code == "unknown" {
		return ""
	}
	return code
}

// Heuristic classifies text from character-set ranges alone.
//
// latin is returned for plain ASCII Latin text, diacritic for Latin text
// carrying combining marks or accented letters. Unknown is returned when no
// rule matches.
func Heuristic(text string, latin, diacritic Tag) Tag {
	var (
		han, kana, hangul             int
		cyrillic, arabic, devanagari  int
		thai, greek                   int
		ascii, accented               int
	)

	for _, r := range text {
		switch {
		case unicode.Is(unicode.Hiragana, r) || unicode.Is(unicode.Katakana, r):
			kana++
		case unicode.Is(unicode.Han, r):
			han++
		case unicode.Is(unicode.Hangul, r):
			hangul++
		case unicode.Is(unicode.Cyrillic, r):
			cyrillic++
		case unicode.Is(unicode.Arabic, r):
			arabic++
		case unicode.Is(unicode.Devanagari, r):
			devanagari++
		case unicode.Is(unicode.Thai, r):
			thai++
		case unicode.Is(unicode.Greek, r):
			greek++
		case r < 0x80 && unicode.IsLetter(r):
			ascii++
		case unicode.Is(unicode.Latin, r):
			accented++
		}
	}

	switch {
	// Kana is decisive for Japanese even when Han characters dominate.
	case kana > 0:
		return Japanese
	case han > 0:
		return Chinese
	case hangul > 0:
		return Korean
	case cyrillic > 0:
		return Russian
	case arabic > 0:
		return Arabic
	case devanagari > 0:
		return Hindi
	case thai > 0:
		return Thai
	case greek > 0:
		return Greek
	case accented > 0:
		return diacritic
	case ascii > 0:
		return latin
	default:
		return Unknown
	}
}
