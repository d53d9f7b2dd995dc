// Package persona owns the agent's speaking style: the persona document
// (name, rules, signature phrases), its JSON-schema validation, and prompt
// composition for the generation backend.
package persona

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/verso-labs/versobot/internal/logging"
	"github.com/verso-labs/versobot/internal/retrieval"
	"github.com/verso-labs/versobot/providers"
)

// Persona is the validated persona document.
type Persona struct {
	Name       string   `json:"name"`
	Rules      []string `json:"rules"`
	Signatures []string `json:"signatures,omitempty"`
}

// schemaJSON constrains persona documents: a name and at least one rule
// are required; signatures are optional style phrases.
const schemaJSON = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["name", "rules"],
	"properties": {
		"name": {"type": "string", "minLength": 1},
		"rules": {"type": "array", "items": {"type": "string"}, "minItems": 1},
		"signatures": {"type": "array", "items": {"type": "string"}}
	},
	"additionalProperties": false
}`

var schema = jsonschema.MustCompileString("persona.json", schemaJSON)

// Default returns the public-safe persona used when no document is
// configured or the configured one fails validation.
func Default(publicName string) *Persona {
	if publicName == "" {
		publicName = "verso"
	}
	return &Persona{
		Name: publicName,
		Rules: []string{
			"Keep replies short (1-3 sentences).",
			"Use Hinglish; 0-1 emoji only if it fits.",
			"Do not copy exemplar text verbatim.",
			"Be warm and practical; gentle tease is fine.",
		},
		Signatures: []string{"haan", "arre", "acha", "okayss?", "done na?"},
	}
}

// Parse validates and decodes a persona document. Raw base64-encoded JSON
// is tolerated for secret-store friendliness.
func Parse(raw []byte) (*Persona, error) {
	data := raw
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		decoded, b64Err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(raw)))
		if b64Err != nil {
			return nil, fmt.Errorf("parse persona: %w", err)
		}
		data = decoded
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse persona: %w", err)
		}
	}

	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("invalid persona document: %w", err)
	}

	var p Persona
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode persona: %w", err)
	}
	return &p, nil
}

// Resolve loads the persona from path when set, else from the PERSONA_JSON
// environment variable, else returns the default. A document that fails to
// load or validate degrades to the default with a logged warning.
func Resolve(path, publicName string) *Persona {
	var raw []byte
	switch {
	case path != "":
		data, err := os.ReadFile(path)
		if err != nil {
			logging.Logger.Warn("failed to read persona file, using default", "path", path, "error", err)
			return Default(publicName)
		}
		raw = data
	case os.Getenv("PERSONA_JSON") != "":
		raw = []byte(os.Getenv("PERSONA_JSON"))
	default:
		return Default(publicName)
	}

	p, err := Parse(raw)
	if err != nil {
		logging.Logger.Warn("persona document rejected, using default", "error", err)
		return Default(publicName)
	}
	return p
}

// Anonymize replaces whole-word occurrences of privateName with publicName,
// case-insensitively. Used to keep the private alias out of prompts, logs,
// and synced passages.
func Anonymize(s, privateName, publicName string) string {
	if s == "" || privateName == "" {
		return s
	}
	re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(privateName) + `\b`)
	if err != nil {
		return s
	}
	return re.ReplaceAllString(s, publicName)
}

// Style hints injected into every prompt alongside the persona rules.
var (
	openers = []string{"Haan", "Okay", "Arre"}
	closers = []string{"okayss?", "done na?"}
	hedges  = []string{"haan", "arre", "acha", "ig"}
)

const (
	promptHistoryTail  = 4
	promptExemplarHead = 3
	promptTruncate     = 140
)

func clip(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// ComposePrompt renders the generation prompt: persona header, style
// hints, the recent chat tail, exemplar snippets, and the user turn.
func ComposePrompt(p *Persona, userTurn string, history []providers.Message, exemplars []retrieval.Exemplar) string {
	if len(history) > promptHistoryTail {
		history = history[len(history)-promptHistoryTail:]
	}
	if len(exemplars) > promptExemplarHead {
		exemplars = exemplars[:promptExemplarHead]
	}

	var hist strings.Builder
	for i, msg := range history {
		if i > 0 {
			hist.WriteString("\n")
		}
		role := msg.Role
		if role == "" {
			role = providers.RoleUser
		}
		hist.WriteString(role + ": " + strings.TrimSpace(msg.Content))
	}

	var ex strings.Builder
	for _, e := range exemplars {
		ex.WriteString("- ctx: " + clip(e.Context, promptTruncate) + "\n")
		ex.WriteString("  rsp: " + clip(e.Response, promptTruncate) + "\n")
	}

	var b strings.Builder
	b.WriteString("You are mimicking " + p.Name + " in Hinglish. Be concise and warm.\n")
	b.WriteString("Persona: " + p.Name + "\n")
	b.WriteString("Rules: " + strings.Join(p.Rules, ", ") + "\n")
	b.WriteString("Style hints (openers/closers/hedges): " +
		strings.Join(openers, ", ") + " | " +
		strings.Join(closers, ", ") + " | " +
		strings.Join(hedges, ", ") + "\n")
	b.WriteString("Do not copy exemplar text verbatim. 0-1 emoji only if it fits.\n\n")
	b.WriteString("Chat tail:\n" + hist.String() + "\n\n")
	b.WriteString("Relevant past chat snippets (ctx→rsp):\n" + ex.String() + "\n")
	b.WriteString("User: " + userTurn + "\n")
	b.WriteString("Assistant:")
	return b.String()
}
