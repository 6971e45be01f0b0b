package prover

import (
	"context"
	"fmt"

	"zkcred/internal/zk"

	"github.com/consensys/gnark/backend"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/backend/witness"
)

// Prover runs the Groth16 proving algorithm. Implementations are chosen when
// the service is wired, never by probing the environment at proving time.
//
// Proving is randomized: gnark draws the Groth16 blinding scalars r and s
// from crypto/rand for every proof, so two proofs of one witness differ.
type Prover interface {
	Name() string
	Prove(ctx context.Context, params *zk.Params, full witness.Witness) (groth16.Proof, error)
}

// Software is the pure-Go reference prover.
type Software struct{}

func (Software) Name() string { return "software" }

func (Software) Prove(ctx context.Context, params *zk.Params, full witness.Witness) (groth16.Proof, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return groth16.Prove(params.CCS, params.PK, full)
}

// Accelerated offloads MSM and NTT to a GPU through ICICLE. Binaries built
// without the icicle tag fall back to the CPU path inside gnark.
type Accelerated struct{}

func (Accelerated) Name() string { return "icicle" }

func (Accelerated) Prove(ctx context.Context, params *zk.Params, full witness.Witness) (groth16.Proof, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return groth16.Prove(params.CCS, params.PK, full, backend.WithIcicleAcceleration())
}

// New returns the prover for a configured backend name.
func New(name string) (Prover, error) {
	switch name {
	case "", "software":
		return Software{}, nil
	case "icicle":
		return Accelerated{}, nil
	default:
		return nil, fmt.Errorf("unknown prover backend %q", name)
	}
}
