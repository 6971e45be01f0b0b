package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"zkcred/internal/domain"
	"zkcred/internal/infra/cachemem"
	"zkcred/internal/infra/registrymem"
	"zkcred/internal/usecase"
	"zkcred/internal/zk"
	"zkcred/internal/zk/zktest"
)

func newRegistry(t *testing.T, cache usecase.DescriptorCache) (*usecase.CircuitRegistry, *registrymem.Events) {
	t.Helper()
	events := registrymem.NewEvents()
	log := quietLogger()
	reg := usecase.NewCircuitRegistry(
		registrymem.NewCircuits(),
		cache,
		usecase.NewEventEmitter(events, nil, log),
		zktest.Normalizer(t),
		time.Minute,
		log,
	)
	return reg, events
}

func TestCircuitRegistry_Lifecycle(t *testing.T) {
	reg, events := newRegistry(t, cachemem.New())
	ctx := context.Background()
	desc, _ := zktest.AgeAtLeast(t, "age-18", 18)

	stored, err := reg.Register(ctx, desc)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if stored.Status != domain.CircuitDraft {
		t.Fatalf("expected draft, got %s", stored.Status)
	}
	if stored.RegistrationHeight != 1 || stored.VerifyingKeyHash == "" {
		t.Fatalf("expected height and key hash, got %+v", stored)
	}
	if _, err := reg.GetForProving(ctx, "age-18"); !errors.Is(err, domain.ErrCircuitInactive) {
		t.Fatalf("expected draft circuit to be unusable, got %v", err)
	}
	if _, err := reg.Register(ctx, desc); !errors.Is(err, domain.ErrDuplicateCircuit) {
		t.Fatalf("expected ErrDuplicateCircuit, got %v", err)
	}

	if err := reg.Activate(ctx, "age-18", "reviewed"); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if err := reg.Activate(ctx, "age-18", "again"); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if _, err := reg.GetForProving(ctx, "age-18"); err != nil {
		t.Fatalf("expected active circuit for proving: %v", err)
	}
	if err := reg.Deprecate(ctx, "age-18", "superseded"); err != nil {
		t.Fatalf("deprecate: %v", err)
	}
	if _, err := reg.GetForVerification(ctx, "age-18"); err != nil {
		t.Fatalf("expected deprecated circuit for verification: %v", err)
	}
	if err := reg.Revoke(ctx, "age-18", "compromised"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := reg.GetForVerification(ctx, "age-18"); !errors.Is(err, domain.ErrCircuitRevoked) {
		t.Fatalf("expected ErrCircuitRevoked, got %v", err)
	}
	got, err := reg.Get(ctx, "age-18")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.StatusReason != "compromised" {
		t.Fatalf("expected revocation reason, got %q", got.StatusReason)
	}

	list, err := events.ListByCircuit(ctx, "age-18")
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	want := []domain.CircuitEventType{
		domain.EventCircuitRegistered,
		domain.EventCircuitActivated,
		domain.EventCircuitDeprecated,
		domain.EventCircuitRevoked,
	}
	if len(list) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(list))
	}
	for i := range want {
		if list[i].Type != want[i] {
			t.Fatalf("expected event %d to be %s, got %s", i, want[i], list[i].Type)
		}
	}
}

func TestCircuitRegistry_RevokeInvalidatesCache(t *testing.T) {
	cache := cachemem.New()
	reg, _ := newRegistry(t, cache)
	ctx := context.Background()
	desc, _ := zktest.AgeAtLeast(t, "age-18", 18)
	if _, err := reg.Register(ctx, desc); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := reg.Activate(ctx, "age-18", ""); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if _, err := reg.GetForVerification(ctx, "age-18"); err != nil {
		t.Fatalf("warm cache: %v", err)
	}
	if _, ok, _ := cache.Get(ctx, "age-18"); !ok {
		t.Fatalf("expected descriptor to be cached")
	}
	if err := reg.Revoke(ctx, "age-18", ""); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := reg.GetForVerification(ctx, "age-18"); !errors.Is(err, domain.ErrCircuitRevoked) {
		t.Fatalf("expected revocation to be visible immediately, got %v", err)
	}
}

func TestCircuitRegistry_RejectsBadDescriptors(t *testing.T) {
	reg, _ := newRegistry(t, nil)
	ctx := context.Background()
	base, _ := zktest.AgeAtLeast(t, "age-18", 18)

	cases := map[string]func(d *domain.CircuitDescriptor){
		"missing id":      func(d *domain.CircuitDescriptor) { d.CircuitID = "" },
		"zero version":    func(d *domain.CircuitDescriptor) { d.Version = 0 },
		"empty schema":    func(d *domain.CircuitDescriptor) { d.PublicInputSchema = nil },
		"short schema":    func(d *domain.CircuitDescriptor) { d.PublicInputSchema = zk.PublicInputSchema()[:4] },
		"other scheme":    func(d *domain.CircuitDescriptor) { d.ProvingScheme = "plonk-bls12" },
		"garbage key":     func(d *domain.CircuitDescriptor) { d.VerifyingKey = []byte("not a key") },
		"key hash":        func(d *domain.CircuitDescriptor) { d.VerifyingKeyHash = "deadbeef" },
		"unknown subject": func(d *domain.CircuitDescriptor) { d.Predicate.Subject = "height" },
	}
	for name, mutate := range cases {
		d := base
		d.PublicInputSchema = zk.PublicInputSchema()
		mutate(&d)
		if _, err := reg.Register(ctx, d); !errors.Is(err, domain.ErrInvalidDescriptor) {
			t.Fatalf("%s: expected ErrInvalidDescriptor, got %v", name, err)
		}
	}
	list, err := reg.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected nothing registered, got %d", len(list))
	}
}

func TestCircuitRegistry_UnknownCircuit(t *testing.T) {
	reg, _ := newRegistry(t, nil)
	ctx := context.Background()
	if _, err := reg.Get(ctx, "nope"); !errors.Is(err, domain.ErrCircuitNotFound) {
		t.Fatalf("expected ErrCircuitNotFound, got %v", err)
	}
	if err := reg.Revoke(ctx, "nope", ""); !errors.Is(err, domain.ErrCircuitNotFound) {
		t.Fatalf("expected ErrCircuitNotFound, got %v", err)
	}
}

func TestRevocationSweep_RequiresRevoked(t *testing.T) {
	h := newHarness(t)
	h.activeAge(t, "age-18", 18)
	if _, err := h.sweep.Execute(context.Background(), "age-18"); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected sweeping an active circuit to fail, got %v", err)
	}
}

func TestCredentialStatusService(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	status, err := h.statuses.Get(ctx, "cred-1")
	if err != nil || status != domain.CredentialActive {
		t.Fatalf("expected unknown credential to read active, got %v %v", status, err)
	}
	if err := h.statuses.Set(ctx, "cred-1", "suspended"); !errors.Is(err, domain.ErrInvalidCredential) {
		t.Fatalf("expected ErrInvalidCredential, got %v", err)
	}
	if err := h.statuses.Set(ctx, "", domain.CredentialRevoked); !errors.Is(err, domain.ErrMissingField) {
		t.Fatalf("expected ErrMissingField, got %v", err)
	}
	if err := h.statuses.Set(ctx, "cred-1", domain.CredentialRevoked); err != nil {
		t.Fatalf("set: %v", err)
	}
	if status, _ := h.statuses.Get(ctx, "cred-1"); status != domain.CredentialRevoked {
		t.Fatalf("expected revoked, got %s", status)
	}
}
