package peer

// Audio formats carried over the channel.
const (
	// AudioFormatPCM16 is 16-bit little-endian PCM at 24kHz, mono.
	AudioFormatPCM16 = "pcm16"
	// AudioFormatOpus is Opus frames as negotiated by the media transport.
	AudioFormatOpus = "opus"
)

// Item roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Item is a conversation item exchanged over the channel.
type Item struct {
	// ID is assigned by whichever side creates the item.
	ID string `json:"id,omitzero"`

	// Type is "message".
	Type string `json:"type,omitzero"`

	// Role is user, assistant or system.
	Role string `json:"role,omitzero"`

	// Content is the item text.
	Content string `json:"content,omitzero"`
}

// SessionConfig is the client-controlled session behavior configuration,
// sent with session.update.
type SessionConfig struct {
	// Instructions is the agent behavior prompt. The synchronizer
	// interpolates the current language pair into it.
	Instructions string `json:"instructions,omitzero"`

	// Voice selects the synthesized output voice.
	Voice string `json:"voice,omitzero"`

	// InputAudioFormat and OutputAudioFormat select the audio codecs.
	InputAudioFormat  string `json:"input_audio_format,omitzero"`
	OutputAudioFormat string `json:"output_audio_format,omitzero"`

	// Transcription, when set, enables the peer's own transcription of
	// committed user audio.
	Transcription *TranscriptionConfig `json:"transcription,omitzero"`

	// Tools declares functions the agent may call.
	Tools []Tool `json:"tools,omitzero"`
}

// TranscriptionConfig configures peer-side input transcription.
type TranscriptionConfig struct {
	Model string `json:"model,omitzero"`
}

// Tool declares one callable function.
type Tool struct {
	Type        string         `json:"type"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitzero"`
	Parameters  map[string]any `json:"parameters,omitzero"`
}

// SessionInfo is the server-reported session state.
type SessionInfo struct {
	ID                string `json:"id,omitzero"`
	Model             string `json:"model,omitzero"`
	Voice             string `json:"voice,omitzero"`
	Instructions      string `json:"instructions,omitzero"`
	InputAudioFormat  string `json:"input_audio_format,omitzero"`
	OutputAudioFormat string `json:"output_audio_format,omitzero"`
	ExpiresAt         int64  `json:"expires_at,omitzero"`
}
