package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"
)

// bridgeFile is the per-context settings file name.
const bridgeFile = "bridge.yaml"

// Bridge holds the per-context translation session settings.
type Bridge struct {
	// Transport selects the peer transport: "webrtc" (default) or
	// "websocket".
	Transport string `yaml:"transport,omitempty"`

	// CredentialURL issues ephemeral client secrets for WebRTC sessions.
	CredentialURL string `yaml:"credential_url,omitempty"`

	// SignalURL accepts SDP offers for WebRTC sessions.
	SignalURL string `yaml:"signal_url,omitempty"`

	// WebSocketURL is the endpoint for the websocket transport.
	WebSocketURL string `yaml:"websocket_url,omitempty"`

	// APIKey authenticates websocket connections directly.
	APIKey string `yaml:"api_key,omitempty"`

	// ClassifierURL is the remote language-identification endpoint.
	// Empty means local heuristics only.
	ClassifierURL string `yaml:"classifier_url,omitempty"`

	// RecognizerURL is the local speech-recognition stream endpoint.
	// Empty disables push-to-talk capture; the peer's transcription is
	// used instead.
	RecognizerURL string `yaml:"recognizer_url,omitempty"`

	// RecognizerAPIKey authenticates the recognition stream.
	RecognizerAPIKey string `yaml:"recognizer_api_key,omitempty"`

	// Voice selects the synthesized output voice.
	Voice string `yaml:"voice,omitempty"`

	// TranscriptionModel enables peer-side input transcription.
	TranscriptionModel string `yaml:"transcription_model,omitempty"`

	// MainLanguage and TargetLanguage override the default fallback pair
	// (en/zh). BCP-47 primary subtags, e.g. "en", "ja".
	MainLanguage   string `yaml:"main_language,omitempty"`
	TargetLanguage string `yaml:"target_language,omitempty"`
}

// Validate checks that the settings are usable for the chosen transport.
func (b *Bridge) Validate() error {
	switch b.Transport {
	case "", "webrtc":
		if b.CredentialURL == "" || b.SignalURL == "" {
			return fmt.Errorf("webrtc transport needs credential_url and signal_url")
		}
	case "websocket":
		if b.WebSocketURL == "" {
			return fmt.Errorf("websocket transport needs websocket_url")
		}
	default:
		return fmt.Errorf("unknown transport %q (want webrtc or websocket)", b.Transport)
	}
	return nil
}

// LoadBridge reads the bridge settings from a context directory.
func LoadBridge(contextDir string) (*Bridge, error) {
	path := filepath.Join(contextDir, bridgeFile)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("bridge config not found in context (expected: %s)", path)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var b Bridge
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &b, nil
}

// SaveBridge writes the bridge settings to a context directory.
func SaveBridge(contextDir string, b *Bridge) error {
	if err := os.MkdirAll(contextDir, 0755); err != nil {
		return fmt.Errorf("create context dir: %w", err)
	}

	data, err := yaml.Marshal(b)
	if err != nil {
		return fmt.Errorf("marshal bridge config: %w", err)
	}

	path := filepath.Join(contextDir, bridgeFile)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
