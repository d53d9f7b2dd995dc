package persona

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/verso-labs/versobot/internal/retrieval"
	"github.com/verso-labs/versobot/providers"
)

func TestParse_ValidDocument(t *testing.T) {
	p, err := Parse([]byte(`{"name":"verso","rules":["be brief"],"signatures":["haan"]}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Name != "verso" || len(p.Rules) != 1 || p.Signatures[0] != "haan" {
		t.Errorf("unexpected persona: %+v", p)
	}
}

func TestParse_Base64Document(t *testing.T) {
	raw := base64.StdEncoding.EncodeToString([]byte(`{"name":"verso","rules":["be brief"]}`))
	p, err := Parse([]byte(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Name != "verso" {
		t.Errorf("unexpected persona: %+v", p)
	}
}

func TestParse_RejectsSchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"missing name", `{"rules":["x"]}`},
		{"empty rules", `{"name":"v","rules":[]}`},
		{"unknown field", `{"name":"v","rules":["x"],"model":"gpt"}`},
		{"not json", `hello world`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.doc)); err == nil {
				t.Errorf("expected error for %q", tt.doc)
			}
		})
	}
}

func TestResolve_MissingFileFallsBackToDefault(t *testing.T) {
	p := Resolve("/nonexistent/persona.json", "verso")
	if p.Name != "verso" {
		t.Errorf("expected default persona, got %+v", p)
	}
	if len(p.Rules) == 0 {
		t.Error("default persona must carry rules")
	}
}

func TestResolve_EnvDocument(t *testing.T) {
	t.Setenv("PERSONA_JSON", `{"name":"custom","rules":["short"]}`)
	p := Resolve("", "verso")
	if p.Name != "custom" {
		t.Errorf("expected env persona, got %+v", p)
	}
}

func TestResolve_InvalidEnvDocumentFallsBack(t *testing.T) {
	t.Setenv("PERSONA_JSON", `{"rules":[]}`)
	p := Resolve("", "fallback")
	if p.Name != "fallback" {
		t.Errorf("expected default persona on invalid env doc, got %+v", p)
	}
}

func TestAnonymize(t *testing.T) {
	tests := []struct {
		in, private, public, want string
	}{
		{"hi Priya!", "Priya", "verso", "hi verso!"},
		{"PRIYA bol rahi thi", "priya", "verso", "verso bol rahi thi"},
		{"priyanka is someone else", "priya", "verso", "priyanka is someone else"},
		{"", "priya", "verso", ""},
		{"no names here", "priya", "verso", "no names here"},
	}
	for _, tt := range tests {
		if got := Anonymize(tt.in, tt.private, tt.public); got != tt.want {
			t.Errorf("Anonymize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestComposePrompt(t *testing.T) {
	p := Default("verso")
	history := []providers.Message{
		{Role: "user", Content: "drop-1"},
		{Role: "user", Content: "print ho gaya?"},
		{Role: "assistant", Content: "haan ho gaya"},
		{Role: "user", Content: "spiral binding?"},
		{Role: "assistant", Content: "done"},
	}
	exemplars := []retrieval.Exemplar{
		{Score: 0.9, Context: "paise kitne hue?", Response: "kal ice-cream done?"},
		{Score: 0.8, Context: "e2", Response: "r2"},
		{Score: 0.7, Context: "e3", Response: "r3"},
		{Score: 0.6, Context: "dropped", Response: "dropped"},
	}

	prompt := ComposePrompt(p, "aur batao", history, exemplars)

	if !strings.Contains(prompt, "Persona: verso") {
		t.Error("prompt must carry the persona name")
	}
	if strings.Contains(prompt, "drop-1") {
		t.Error("only the last four history turns belong in the prompt")
	}
	if !strings.Contains(prompt, "print ho gaya?") {
		t.Error("recent history must be present")
	}
	if strings.Contains(prompt, "dropped") {
		t.Error("only the first three exemplars belong in the prompt")
	}
	if !strings.Contains(prompt, "paise kitne hue?") {
		t.Error("exemplar contexts must be present")
	}
	if !strings.Contains(prompt, "User: aur batao") {
		t.Error("user turn must terminate the prompt body")
	}
	if !strings.HasSuffix(prompt, "Assistant:") {
		t.Error("prompt must end with the assistant cue")
	}
}
