package main

import (
	"bytes"
	"errors"
	"os"

	"zkcred/internal/domain"
	"zkcred/internal/zk"

	"github.com/spf13/cobra"
)

var (
	exportDescriptor string
	exportOut        string
)

var exportVerifierCmd = &cobra.Command{
	Use:   "export-verifier",
	Short: "Export a Solidity verifier contract for a circuit",
	Args:  cobra.NoArgs,
	RunE:  runExportVerifier,
}

func init() {
	exportVerifierCmd.Flags().StringVar(&exportDescriptor, "descriptor", "", "Circuit descriptor JSON")
	exportVerifierCmd.Flags().StringVar(&exportOut, "out", "", "Output file (default stdout)")
	rootCmd.AddCommand(exportVerifierCmd)
}

func runExportVerifier(cmd *cobra.Command, args []string) error {
	if exportDescriptor == "" {
		return errors.New("--descriptor is required")
	}
	var desc domain.CircuitDescriptor
	if err := readJSON(exportDescriptor, &desc); err != nil {
		return err
	}
	vk, err := zk.DecodeVerifyingKey(desc.VerifyingKey)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := zk.ExportSolidity(vk, &buf); err != nil {
		return err
	}
	return writeOutput(exportOut, buf.Bytes(), os.FileMode(0o644))
}
