package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"zkcred/internal/domain"
)

func TestCollectorsRecordOutcomes(t *testing.T) {
	c := New()
	c.ObserveProof("software", "ok", 120*time.Millisecond)
	c.SetQueueDepth(3)
	c.ObserveVerification("rejected", []domain.Reason{domain.ReasonInvalidProof, domain.ReasonContextMismatch}, time.Millisecond)

	families, err := c.Gatherer().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	got := make(map[string]float64)
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				got[mf.GetName()] += m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				got[mf.GetName()] = m.GetGauge().GetValue()
			}
		}
	}
	if got["zkcred_prover_proofs_total"] != 1 {
		t.Fatalf("expected 1 proof, got %v", got["zkcred_prover_proofs_total"])
	}
	if got["zkcred_prover_queue_depth"] != 3 {
		t.Fatalf("expected queue depth 3, got %v", got["zkcred_prover_queue_depth"])
	}
	if got["zkcred_verifier_rejections_total"] != 2 {
		t.Fatalf("expected 2 rejection reasons, got %v", got["zkcred_verifier_rejections_total"])
	}
}

func TestHandlerServesText(t *testing.T) {
	c := New()
	c.ObserveVerification("accepted", nil, time.Millisecond)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `zkcred_verifier_verifications_total{outcome="accepted"} 1`) {
		t.Fatalf("expected verification counter in output")
	}
}
