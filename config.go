package versobot

// Config holds the full agent configuration.
type Config struct {
	// Cache configures the response cache and its durable file.
	Cache CacheConfig `json:"cache" yaml:"cache"`
	// Sync configures the knowledge-base sync pipeline.
	Sync SyncConfig `json:"sync" yaml:"sync"`
	// Embedding selects the embedding backend and dimensionality.
	Embedding EmbeddingConfig `json:"embedding" yaml:"embedding"`
	// Generation selects the chat generation backend.
	Generation GenerationConfig `json:"generation" yaml:"generation"`
	// Index selects the vector index backend.
	Index IndexConfig `json:"index" yaml:"index"`
	// Persona configures the persona document and name handling.
	Persona PersonaConfig `json:"persona" yaml:"persona"`

	// TopK is the number of exemplars retrieved per turn.
	TopK int `json:"top_k" yaml:"top_k"`
	// FallbackReply is returned when generation fails.
	FallbackReply string `json:"fallback_reply,omitempty" yaml:"fallback_reply,omitempty"`
	// CacheFallbackReplies controls whether the generation-failure fallback
	// reply is cached like a normal reply.
	CacheFallbackReplies bool `json:"cache_fallback_replies,omitempty" yaml:"cache_fallback_replies,omitempty"`
}

// CacheConfig configures the response cache.
type CacheConfig struct {
	// Path is the durable cache file.
	Path string `json:"path" yaml:"path"`
	// MaxSize is the entry capacity before batch eviction.
	MaxSize int `json:"max_size" yaml:"max_size"`
	// PersistEvery is the number of writes between disk flushes.
	PersistEvery int `json:"persist_every" yaml:"persist_every"`
}

// SyncConfig configures the knowledge-base sync pipeline.
type SyncConfig struct {
	// BatchSize is the buffered-pair count that triggers a flush.
	BatchSize int `json:"batch_size" yaml:"batch_size"`
	// ClosingPhrases overrides the built-in conversation-ending vocabulary.
	ClosingPhrases []string `json:"closing_phrases,omitempty" yaml:"closing_phrases,omitempty"`
}

// EmbeddingConfig selects the embedding backend.
type EmbeddingConfig struct {
	// Provider is one of openai, bedrock, huggingface.
	Provider string `json:"provider" yaml:"provider"`
	Model    string `json:"model,omitempty" yaml:"model,omitempty"`
	// Dim is the embedding dimensionality, also used for fallback vectors.
	Dim int `json:"dim" yaml:"dim"`
}

// GenerationConfig selects the chat generation backend.
type GenerationConfig struct {
	// Provider is one of gemini, openai, bedrock.
	Provider    string  `json:"provider" yaml:"provider"`
	Model       string  `json:"model,omitempty" yaml:"model,omitempty"`
	Temperature float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
}

// IndexBackend identifies a vector index backend.
type IndexBackend string

// Supported index backends. BackendNone runs the agent without a knowledge
// index; retrieval degrades to static exemplars.
const (
	BackendPinecone IndexBackend = "pinecone"
	BackendSQLite   IndexBackend = "sqlite"
	BackendPostgres IndexBackend = "postgres"
	BackendNone     IndexBackend = "none"
)

// IndexConfig selects and parameterises the vector index backend.
type IndexConfig struct {
	Backend IndexBackend `json:"backend" yaml:"backend"`
	// Host is the Pinecone index host (pinecone backend only).
	Host string `json:"host,omitempty" yaml:"host,omitempty"`
	// DSN is the database connection string (sqlite and postgres backends).
	DSN string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
}

// PersonaConfig configures persona loading and name anonymisation.
type PersonaConfig struct {
	// Path is the persona document file; empty falls back to the
	// PERSONA_JSON environment variable, then the built-in default.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
	// PublicName replaces PrivateName in prompts and synced passages.
	PublicName  string `json:"public_name,omitempty" yaml:"public_name,omitempty"`
	PrivateName string `json:"private_name,omitempty" yaml:"private_name,omitempty"`
}

// DefaultFallbackReply is returned when generation fails and no override is
// configured.
const DefaultFallbackReply = "Haan, samajh gaya. Kya hua?"

// DefaultConfig returns a Config with working defaults for every knob.
func DefaultConfig() Config {
	return Config{
		Cache: CacheConfig{
			Path:         "response-cache.gob",
			MaxSize:      500,
			PersistEvery: 5,
		},
		Sync: SyncConfig{
			BatchSize: 10,
		},
		Embedding: EmbeddingConfig{
			Provider: "huggingface",
			Dim:      1024,
		},
		Generation: GenerationConfig{
			Provider:    "gemini",
			Temperature: 0.7,
		},
		Index: IndexConfig{
			Backend: BackendNone,
		},
		Persona: PersonaConfig{
			PublicName: "verso",
		},
		TopK:          5,
		FallbackReply: DefaultFallbackReply,
	}
}
