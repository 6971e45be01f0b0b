package main

import (
	"errors"

	"zkcred/internal/domain"
	"zkcred/internal/infra/ledgermem"
	"zkcred/internal/infra/registrymem"
	"zkcred/internal/nullifier"
	"zkcred/internal/usecase"
	"zkcred/internal/verifier"

	"github.com/spf13/cobra"
)

var (
	verifyDescriptor string
	verifySubmission string
	verifyRequired   []string
	verifyCtx        contextFlags
	verifyAudit      bool
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify a proof submission offline",
	Long: "Runs the cryptographic, context and disclosure checks of a submission against a descriptor. " +
		"Nullifier replay and credential status are only checked by the daemon, which holds the ledger.",
	Args: cobra.NoArgs,
	RunE: runVerify,
}

func init() {
	verifyCmd.Flags().StringVar(&verifyDescriptor, "descriptor", "", "Circuit descriptor JSON")
	verifyCmd.Flags().StringVar(&verifySubmission, "submission", "", "Proof submission JSON")
	verifyCmd.Flags().StringSliceVar(&verifyRequired, "require", nil, "Attributes the submission must disclose")
	verifyCmd.Flags().BoolVar(&verifyAudit, "audit-linkable", false, "Expect audit-linkable nullifiers")
	verifyCtx.register(verifyCmd)
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	if verifyDescriptor == "" || verifySubmission == "" {
		return errors.New("--descriptor and --submission are required")
	}
	ctx := cmd.Context()
	registry, schemas, _, err := localRegistry(ctx, verifyDescriptor)
	if err != nil {
		return err
	}
	var sub domain.ProofSubmission
	if err := readJSON(verifySubmission, &sub); err != nil {
		return err
	}

	opts := []nullifier.Option{nullifier.WithLogger(log)}
	if verifyAudit {
		opts = append(opts, nullifier.WithAuditLinkability())
	}
	nullifiers := nullifier.NewManager(ledgermem.New(), opts...)
	uc := &usecase.VerifyProof{
		Registry:   registry,
		Verifier:   verifier.New(schemas, nullifiers, ledgermem.NewStatusRegistry(), log),
		Nullifiers: nullifiers,
		Records:    registrymem.NewProofRecords(),
		Log:        log,
	}
	res, err := uc.Execute(ctx, sub, domain.ExpectedContext{
		PublicContext:       verifyCtx.public(),
		RequiredDisclosures: verifyRequired,
	})
	if err != nil {
		return err
	}
	if jsonOutput {
		if err := printJSON(res); err != nil {
			return err
		}
	} else {
		printVerification(res)
	}
	if !res.Verified {
		return errors.New("proof rejected")
	}
	return nil
}
