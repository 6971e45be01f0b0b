package main

import (
	"fmt"
	"path/filepath"

	"zkcred/internal/domain"
	"zkcred/internal/normalize"
	"zkcred/internal/zk"

	"github.com/spf13/cobra"
)

var (
	setupKind      string
	setupSubject   string
	setupThreshold int64
	setupPrivate   []string
	setupSchema    string
	setupCircuitID string
	setupVersion   int
	setupName      string
	setupCreator   string
	setupOut       string
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Compile a predicate circuit and run a local Groth16 setup",
	Long: "Compiles the predicate circuit, runs a local trusted setup and writes the proving parameters to <out>/<circuit-id>/ " +
		"and a draft circuit descriptor to <out>/<circuit-id>.json. Local setups are for development; production keys come from a ceremony.",
	Args: cobra.NoArgs,
	RunE: runSetup,
}

func init() {
	setupCmd.Flags().StringVar(&setupKind, "kind", string(domain.KindAgeAtLeast), "Predicate kind: age_at_least, at_least, equals, possession")
	setupCmd.Flags().StringVar(&setupSubject, "subject", "birthYear", "Attribute the predicate is evaluated over")
	setupCmd.Flags().Int64Var(&setupThreshold, "threshold", 18, "Predicate threshold")
	setupCmd.Flags().StringSliceVar(&setupPrivate, "private", nil, "Additional attributes that may never be disclosed")
	setupCmd.Flags().StringVar(&setupSchema, "schema", normalize.IdentityV1, "Credential schema version")
	setupCmd.Flags().StringVar(&setupCircuitID, "circuit-id", "", "Circuit identifier (default <kind>-<threshold>)")
	setupCmd.Flags().IntVar(&setupVersion, "version", 1, "Circuit version")
	setupCmd.Flags().StringVar(&setupName, "name", "", "Human readable circuit name")
	setupCmd.Flags().StringVar(&setupCreator, "creator", "", "Circuit creator")
	setupCmd.Flags().StringVar(&setupOut, "out", "params", "Output directory")
	rootCmd.AddCommand(setupCmd)
}

func runSetup(cmd *cobra.Command, args []string) error {
	spec := domain.PredicateSpec{
		Kind:          domain.CircuitKind(setupKind),
		SchemaVersion: setupSchema,
		Subject:       setupSubject,
		Threshold:     setupThreshold,
		Private:       setupPrivate,
	}
	circuitID := setupCircuitID
	if circuitID == "" {
		circuitID = fmt.Sprintf("%s-%d", spec.Kind, spec.Threshold)
	}
	schemas, err := normalize.New(normalize.IdentitySchema)
	if err != nil {
		return err
	}
	pred, err := schemas.PredicateSlots(spec)
	if err != nil {
		return err
	}

	log.WithField("circuit_id", circuitID).Info("running groth16 setup")
	params, err := zk.Setup(pred)
	if err != nil {
		return err
	}
	if err := zk.SaveParams(filepath.Join(setupOut, circuitID), params); err != nil {
		return fmt.Errorf("saving parameters: %w", err)
	}
	vk, err := params.VerifyingKeyBytes()
	if err != nil {
		return err
	}
	desc := domain.CircuitDescriptor{
		CircuitID:         circuitID,
		Version:           setupVersion,
		Name:              setupName,
		Creator:           setupCreator,
		Predicate:         spec,
		PublicInputSchema: zk.PublicInputSchema(),
		ProvingScheme:     zk.Scheme,
		ProvingParamsRef:  circuitID,
		VerifyingKey:      vk,
		VerifyingKeyHash:  zk.HashVerifyingKey(vk),
		Status:            domain.CircuitDraft,
	}
	descPath := filepath.Join(setupOut, circuitID+".json")
	if err := writeJSON(descPath, desc, 0o644); err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(map[string]string{
			"circuit_id":         circuitID,
			"descriptor":         descPath,
			"params":             filepath.Join(setupOut, circuitID),
			"verifying_key_hash": desc.VerifyingKeyHash,
		})
	}
	headerColor.Println("Circuit setup")
	fmt.Printf("  %s %s\n", labelColor.Sprint("circuit:"), circuitID)
	fmt.Printf("  %s %s\n", labelColor.Sprint("descriptor:"), descPath)
	fmt.Printf("  %s %s\n", labelColor.Sprint("params:"), filepath.Join(setupOut, circuitID))
	fmt.Printf("  %s %s\n", labelColor.Sprint("vk hash:"), dimColor.Sprint(desc.VerifyingKeyHash))
	return nil
}
