package main

import (
	"zkcred/internal/domain"

	"github.com/spf13/cobra"
)

// contextFlags are the verifier context flags shared by prove and verify.
type contextFlags struct {
	verifier  string
	domain    string
	nonce     string
	reference int64
}

func (f *contextFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.verifier, "verifier", "", "Verifier identifier")
	cmd.Flags().StringVar(&f.domain, "domain", "", "Verifier domain")
	cmd.Flags().StringVar(&f.nonce, "nonce", "", "Verifier challenge nonce")
	cmd.Flags().Int64Var(&f.reference, "reference", 0, "Reference value for time-relative predicates, e.g. the current year")
	_ = cmd.MarkFlagRequired("verifier")
	_ = cmd.MarkFlagRequired("nonce")
}

func (f contextFlags) public() domain.PublicContext {
	return domain.PublicContext{
		VerifierID: f.verifier,
		Domain:     f.domain,
		Nonce:      f.nonce,
		Reference:  f.reference,
	}
}
