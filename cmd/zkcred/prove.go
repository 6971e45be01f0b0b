package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"zkcred/internal/commitment"
	"zkcred/internal/config"
	"zkcred/internal/domain"
	"zkcred/internal/infra/ledgermem"
	"zkcred/internal/infra/policyopa"
	"zkcred/internal/nullifier"
	"zkcred/internal/prover"
	"zkcred/internal/usecase"
	"zkcred/internal/witness"

	"github.com/spf13/cobra"
)

var (
	proveDescriptor    string
	proveParams        string
	proveCredential    string
	proveDisclose      []string
	proveCtx           contextFlags
	proveBackend       string
	proveOut           string
	proveCommitmentIn  string
	proveCommitmentOut string
	provePolicy        bool
	provePolicyBundle  string
	proveAuditLinkable bool
)

// Environment supplies flag defaults so the CLI and daemon share one configuration.
var proveEnv = config.FromEnv()

var proveCmd = &cobra.Command{
	Use:   "prove",
	Short: "Prove a credential predicate for a verifier context",
	Long: "Normalizes the credential, commits to it and proves the circuit predicate bound to the verifier context. " +
		"The submission goes to the verifier; the commitment opening stays with the holder.",
	Args: cobra.NoArgs,
	RunE: runProve,
}

func init() {
	proveCmd.Flags().StringVar(&proveDescriptor, "descriptor", "", "Circuit descriptor JSON")
	proveCmd.Flags().StringVar(&proveParams, "params", proveEnv.ParamsDir, "Proving parameters root directory")
	proveCmd.Flags().StringVar(&proveCredential, "credential", "", "Credential JSON")
	proveCmd.Flags().StringSliceVar(&proveDisclose, "disclose", nil, "Attributes to disclose")
	proveCmd.Flags().StringVar(&proveBackend, "backend", proveEnv.ProverBackend, "Prover backend: software, icicle")
	proveCmd.Flags().StringVar(&proveOut, "out", "", "Submission output file (default stdout)")
	proveCmd.Flags().StringVar(&proveCommitmentIn, "commitment", "", "Existing commitment JSON to bind the proof to")
	proveCmd.Flags().StringVar(&proveCommitmentOut, "commitment-out", "", "Where to write the commitment opening (mode 0600)")
	proveCmd.Flags().BoolVar(&provePolicy, "policy", false, "Check the disclosure policy before proving")
	proveCmd.Flags().StringVar(&provePolicyBundle, "policy-bundle", proveEnv.PolicyBundlePath, "Rego bundle overriding the embedded disclosure policy")
	proveCmd.Flags().BoolVar(&proveAuditLinkable, "audit-linkable", proveEnv.AuditLinkable, "Derive audit-linkable nullifiers")
	proveCtx.register(proveCmd)
	rootCmd.AddCommand(proveCmd)
}

func runProve(cmd *cobra.Command, args []string) error {
	if proveDescriptor == "" || proveCredential == "" {
		return errors.New("--descriptor and --credential are required")
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	registry, schemas, desc, err := localRegistry(ctx, proveDescriptor)
	if err != nil {
		return err
	}
	var cred domain.VerifiableCredential
	if err := readJSON(proveCredential, &cred); err != nil {
		return err
	}
	var existing *domain.Commitment
	if proveCommitmentIn != "" {
		existing = &domain.Commitment{}
		if err := readJSON(proveCommitmentIn, existing); err != nil {
			return err
		}
	}
	backend, err := prover.New(proveBackend)
	if err != nil {
		return err
	}
	guard, err := disclosureGuard(ctx)
	if err != nil {
		return err
	}

	var opts []nullifier.Option
	opts = append(opts, nullifier.WithLogger(log))
	if proveAuditLinkable {
		opts = append(opts, nullifier.WithAuditLinkability())
	}
	nullifiers := nullifier.NewManager(ledgermem.New(), opts...)
	commitments := commitment.NewEngine(nil)
	pool := prover.NewPool(proveEnv.ProverWorkers, proveEnv.ProverQueue, nil, log)
	defer pool.Close()

	uc := &usecase.ProveCredential{
		Registry:    registry,
		Normalizer:  schemas,
		Commitments: commitments,
		Witnesses:   witness.NewGenerator(schemas, commitments, nullifiers),
		Proofs:      prover.NewGenerator(prover.NewFileParams(proveParams), backend, nil, log),
		Pool:        pool,
		Guard:       guard,
		Log:         log,
	}
	out, err := uc.Prove(ctx, usecase.ProveRequest{
		Credential: cred,
		CircuitID:  desc.CircuitID,
		Disclose:   domain.DisclosurePolicy(proveDisclose),
		Context:    proveCtx.public(),
		Commitment: existing,
	})
	if err != nil {
		return err
	}

	if proveCommitmentOut != "" {
		if err := writeJSON(proveCommitmentOut, out.Commitment, 0o600); err != nil {
			return fmt.Errorf("writing commitment: %w", err)
		}
	}
	if err := writeJSON(proveOut, out.Submission, 0o644); err != nil {
		return err
	}
	if proveOut != "" && !jsonOutput {
		headerColor.Println("Proof")
		fmt.Printf("  %s %s\n", labelColor.Sprint("circuit:"), desc.CircuitID)
		fmt.Printf("  %s %s (%s)\n", labelColor.Sprint("backend:"), out.Backend, out.Duration.Round(time.Millisecond))
		fmt.Printf("  %s %s\n", labelColor.Sprint("nullifier:"), dimColor.Sprint(out.Submission.Nullifier.Hex()))
		fmt.Printf("  %s %s\n", labelColor.Sprint("submission:"), proveOut)
	}
	return nil
}

func disclosureGuard(ctx context.Context) (usecase.DisclosureGuard, error) {
	switch {
	case provePolicyBundle != "":
		return policyopa.NewEngineFromBundlePath(ctx, provePolicyBundle, provePolicyBundle)
	case provePolicy:
		return policyopa.NewDefaultEngine(ctx)
	default:
		return nil, nil
	}
}
