package prover

import (
	"context"
	"errors"
	"fmt"
	"time"

	"zkcred/internal/domain"
	"zkcred/internal/witness"
	"zkcred/internal/zk"

	"github.com/sirupsen/logrus"
)

// Observer receives proving telemetry.
type Observer interface {
	ObserveProof(backend, outcome string, d time.Duration)
	SetQueueDepth(n int)
}

type nopObserver struct{}

func (nopObserver) ObserveProof(string, string, time.Duration) {}
func (nopObserver) SetQueueDepth(int)                          {}

// Result is a finished proof with the values a submission needs.
type Result struct {
	Proof         []byte
	PublicSignals []domain.FieldElement
	Nullifier     domain.Nullifier
	Opening       domain.OpeningProof
	Backend       string
	Duration      time.Duration
}

// Generator runs proofs for built witnesses.
type Generator struct {
	Params   ParamsStore
	Prover   Prover
	Observer Observer
	Log      logrus.FieldLogger
}

func NewGenerator(params ParamsStore, p Prover, obs Observer, log logrus.FieldLogger) *Generator {
	if p == nil {
		p = Software{}
	}
	if obs == nil {
		obs = nopObserver{}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Generator{Params: params, Prover: p, Observer: obs, Log: log}
}

// Prove checks that w satisfies the circuit and proves it. An unsatisfied
// witness yields ErrProvingFailed, which retrying with the same witness
// cannot fix. The caller owns w and must zero it.
func (g *Generator) Prove(ctx context.Context, desc domain.CircuitDescriptor, w *witness.Witness) (Result, error) {
	if g.Params == nil {
		return Result{}, errors.New("proving params store is required")
	}
	if w == nil {
		return Result{}, errors.New("witness is required")
	}
	start := time.Now()
	log := g.Log.WithFields(logrus.Fields{"circuit_id": desc.CircuitID, "backend": g.Prover.Name()})

	res, err := g.prove(ctx, desc, w)
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrProvingFailed):
		outcome = "unsatisfied"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		outcome = "cancelled"
	default:
		outcome = "error"
	}
	elapsed := time.Since(start)
	g.Observer.ObserveProof(g.Prover.Name(), outcome, elapsed)
	log = log.WithFields(logrus.Fields{"outcome": outcome, "duration_ms": elapsed.Milliseconds()})
	if err != nil {
		log.Warn("proof generation failed")
		return Result{}, err
	}
	log.Info("proof generated")
	res.Backend = g.Prover.Name()
	res.Duration = elapsed
	return res, nil
}

func (g *Generator) prove(ctx context.Context, desc domain.CircuitDescriptor, w *witness.Witness) (Result, error) {
	params, err := g.Params.Load(ctx, desc.ProvingParamsRef)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return Result{}, fmt.Errorf("%w: %v", domain.ErrProvingFailed, err)
		}
		return Result{}, fmt.Errorf("%w: %v", domain.ErrTransientResource, err)
	}
	if params.Predicate != w.Predicate {
		return Result{}, fmt.Errorf("%w: proving params compiled for a different predicate", domain.ErrSchemaMismatch)
	}
	if desc.VerifyingKeyHash != "" {
		hash, err := params.VerifyingKeyHash()
		if err != nil {
			return Result{}, fmt.Errorf("%w: %v", domain.ErrProvingFailed, err)
		}
		if hash != desc.VerifyingKeyHash {
			return Result{}, fmt.Errorf("%w: proving params do not match the registered verifying key", domain.ErrSchemaMismatch)
		}
	}

	full, err := w.Full()
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", domain.ErrProvingFailed, err)
	}
	if err := params.CCS.IsSolved(full); err != nil {
		return Result{}, fmt.Errorf("%w: witness does not satisfy circuit constraints", domain.ErrProvingFailed)
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	proof, err := g.Prover.Prove(ctx, params, full)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, ctxErr
		}
		return Result{}, fmt.Errorf("%w: %v", domain.ErrProvingFailed, err)
	}
	encoded, err := zk.EncodeProof(proof)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", domain.ErrProvingFailed, err)
	}
	return Result{
		Proof:         encoded,
		PublicSignals: w.PublicSignals(),
		Nullifier:     w.Nullifier,
		Opening:       w.Opening,
	}, nil
}
