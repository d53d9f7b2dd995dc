package providers

// Base provides the name, apiKey, and baseURL fields shared by REST-based
// provider implementations. Embed it to avoid repeating the accessors.
type Base struct {
	name    string
	apiKey  string
	baseURL string
}

// Name returns the provider name.
func (b *Base) Name() string { return b.name }

// BaseURL returns the provider base URL.
func (b *Base) BaseURL() string { return b.baseURL }
