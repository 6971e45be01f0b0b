package policyopa

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"zkcred/internal/domain"
	"zkcred/internal/usecase"
)

func TestDefaultEngineAllowsBaseline(t *testing.T) {
	engine := newTestEngine(t)

	first, err := engine.Evaluate(context.Background(), baseInput())
	if err != nil {
		t.Fatalf("evaluate first: %v", err)
	}
	second, err := engine.Evaluate(context.Background(), baseInput())
	if err != nil {
		t.Fatalf("evaluate second: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected deterministic policy evaluation")
	}
	if !first.Allow || len(first.Deny) != 0 {
		t.Fatalf("expected allow for baseline input, got %+v", first)
	}
	if engine.BundleHash() == "" {
		t.Fatalf("expected bundle hash to be set")
	}
}

func TestDefaultEngineDenies(t *testing.T) {
	engine := newTestEngine(t)

	tests := []struct {
		name   string
		mutate func(input *usecase.DisclosureInput)
		want   []string
	}{
		{
			name:   "missing verifier",
			mutate: func(input *usecase.DisclosureInput) { input.VerifierID = "" },
			want:   []string{"VERIFIER_REQUIRED"},
		},
		{
			name:   "sensitive attribute",
			mutate: func(input *usecase.DisclosureInput) { input.Disclose = []string{"name", "income"} },
			want:   []string{"SENSITIVE_ATTRIBUTE:income"},
		},
		{
			name: "too many and sensitive",
			mutate: func(input *usecase.DisclosureInput) {
				input.Disclose = []string{"a", "b", "c", "d", "birthYear"}
			},
			want: []string{"SENSITIVE_ATTRIBUTE:birthYear", "TOO_MANY_DISCLOSURES"},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			input := baseInput()
			tt.mutate(&input)
			out, err := engine.Evaluate(context.Background(), input)
			if err != nil {
				t.Fatalf("evaluate: %v", err)
			}
			if out.Allow {
				t.Fatalf("expected deny")
			}
			if !reflect.DeepEqual(tt.want, out.Deny) {
				t.Fatalf("expected deny %v, got %v", tt.want, out.Deny)
			}
		})
	}
}

func TestEngineFromBundlePath(t *testing.T) {
	dir := t.TempDir()
	policy := `package zkcred.disclosure
result := {"allow": false, "deny": ["CLOSED"]}`
	if err := os.WriteFile(filepath.Join(dir, "policy.rego"), []byte(policy), 0o644); err != nil {
		t.Fatalf("write rego: %v", err)
	}
	engine, err := NewEngineFromBundlePath(context.Background(), dir, "closed")
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	out, err := engine.Evaluate(context.Background(), baseInput())
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if out.Allow || len(out.Deny) != 1 || out.Deny[0] != "CLOSED" {
		t.Fatalf("unexpected decision: %+v", out)
	}
	if engine.BundleID() != "closed" {
		t.Fatalf("expected bundle id closed, got %s", engine.BundleID())
	}
}

func TestEngineRejectsTimeBuiltin(t *testing.T) {
	rejectBuiltin(t, "time.now_ns()")
}

func TestEngineRejectsHttpSend(t *testing.T) {
	rejectBuiltin(t, "http.send({\"method\": \"get\", \"url\": \"https://example.com\"})")
}

func TestEngineRejectsRand(t *testing.T) {
	rejectBuiltin(t, "rand.intn(\"x\", 10)")
}

func rejectBuiltin(t *testing.T, expr string) {
	t.Helper()
	dir := t.TempDir()
	regoContent := `package zkcred.disclosure
result := {"allow": true, "deny": []} {
  ` + expr + `
}`
	if err := os.WriteFile(filepath.Join(dir, "policy.rego"), []byte(regoContent), 0o644); err != nil {
		t.Fatalf("write rego: %v", err)
	}
	if _, err := NewEngineFromBundlePath(context.Background(), dir, "test"); err == nil {
		t.Fatalf("expected builtin to be rejected")
	}
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	engine, err := NewDefaultEngine(context.Background())
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return engine
}

func baseInput() usecase.DisclosureInput {
	return usecase.DisclosureInput{
		CircuitID:  "age-18",
		Kind:       domain.KindAgeAtLeast,
		VerifierID: "shop",
		Domain:     "shop.example",
		Disclose:   []string{"name", "nationality"},
	}
}
