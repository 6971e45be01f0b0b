package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"zkcred/internal/domain"

	"github.com/fatih/color"
)

var (
	headerColor  = color.New(color.FgCyan, color.Bold)
	labelColor   = color.New(color.FgYellow)
	dimColor     = color.New(color.Faint)
	successColor = color.New(color.FgGreen)
	errorColor   = color.New(color.FgRed)
)

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// writeOutput writes payload to path, or to stdout when path is empty.
func writeOutput(path string, payload []byte, perm os.FileMode) error {
	if path == "" {
		if _, err := os.Stdout.Write(payload); err != nil {
			return err
		}
		_, err := fmt.Fprintln(os.Stdout)
		return err
	}
	return os.WriteFile(path, payload, perm)
}

func writeJSON(path string, v any, perm os.FileMode) error {
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return writeOutput(path, payload, perm)
}

// readJSON decodes path keeping numbers as json.Number, so credential
// integers survive without float rounding.
func readJSON(path string, out any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

func printVerification(res domain.VerificationResult) {
	headerColor.Println("Verification")
	if res.Verified {
		fmt.Printf("  %s %s\n", labelColor.Sprint("result:"), successColor.Sprint("accepted"))
	} else {
		fmt.Printf("  %s %s\n", labelColor.Sprint("result:"), errorColor.Sprint("rejected"))
		for _, r := range res.Reasons {
			fmt.Printf("    - %s\n", errorColor.Sprint(string(r)))
		}
	}
	if len(res.Disclosed) > 0 {
		fmt.Printf("  %s\n", labelColor.Sprint("disclosed:"))
		keys := make([]string, 0, len(res.Disclosed))
		for k := range res.Disclosed {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Printf("    %s = %v\n", k, res.Disclosed[k])
		}
	}
	if res.Receipt != nil {
		fmt.Printf("  %s %s\n", labelColor.Sprint("nullifier:"), dimColor.Sprint(res.Receipt.Nullifier.Hex()))
	}
}
