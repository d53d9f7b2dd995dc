package signature

import (
	"strings"
	"testing"
)

func TestCompute_Deterministic(t *testing.T) {
	history := []Turn{
		{Role: "user", Content: "print ho gaya?"},
		{Role: "assistant", Content: "haan, ho gaya"},
	}
	exemplars := []Exemplar{
		{Context: "paise kitne hue?", Response: "don't change the topic haan"},
	}

	a := Compute(history, exemplars)
	b := Compute(history, exemplars)
	if a != b {
		t.Fatalf("identical inputs produced different signatures: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("expected fixed-width sha256 hex signature, got length %d", len(a))
	}
}

func TestCompute_DifferentTailsDiffer(t *testing.T) {
	base := []Turn{{Role: "user", Content: "kya scene hai"}}
	other := []Turn{{Role: "user", Content: "mood down hai"}}

	if Compute(base, nil) == Compute(other, nil) {
		t.Error("different conversation tails should produce different signatures")
	}
	if Compute(base, nil) == Compute(base, []Exemplar{{Context: "x", Response: "y"}}) {
		t.Error("different exemplar sets should produce different signatures")
	}
}

func TestCompute_OnlyTailConsidered(t *testing.T) {
	long := make([]Turn, 0, 10)
	for i := 0; i < 6; i++ {
		long = append(long, Turn{Role: "user", Content: "old message"})
	}
	tail := []Turn{
		{Role: "user", Content: "a"},
		{Role: "assistant", Content: "b"},
		{Role: "user", Content: "c"},
		{Role: "assistant", Content: "d"},
	}
	long = append(long, tail...)

	if Compute(long, nil) != Compute(tail, nil) {
		t.Error("only the last four turns should contribute to the signature")
	}
}

func TestCompute_TruncationBoundary(t *testing.T) {
	content := strings.Repeat("x", 200)
	a := Compute([]Turn{{Role: "user", Content: content}}, nil)
	b := Compute([]Turn{{Role: "user", Content: content + "suffix beyond the limit"}}, nil)
	if a != b {
		t.Error("content beyond the 120-rune truncation point must not affect the signature")
	}

	c := Compute(nil, []Exemplar{{Context: strings.Repeat("y", 100), Response: "r"}})
	d := Compute(nil, []Exemplar{{Context: strings.Repeat("y", 100) + "tail", Response: "r"}})
	if c != d {
		t.Error("exemplar text beyond the 80-rune truncation point must not affect the signature")
	}
}

func TestCompute_OnlyFirstThreeExemplars(t *testing.T) {
	three := []Exemplar{
		{Context: "a", Response: "1"},
		{Context: "b", Response: "2"},
		{Context: "c", Response: "3"},
	}
	five := append(append([]Exemplar{}, three...), Exemplar{Context: "d"}, Exemplar{Context: "e"})

	if Compute(nil, three) != Compute(nil, five) {
		t.Error("only the first three exemplars should contribute to the signature")
	}
}

func TestCompute_MissingRoleDefaults(t *testing.T) {
	a := Compute([]Turn{{Content: "hello"}}, nil)
	b := Compute([]Turn{{Role: "?", Content: "hello"}}, nil)
	if a != b {
		t.Error("an empty role should fingerprint as the placeholder role")
	}
}
