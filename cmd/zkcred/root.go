package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	jsonOutput bool
	noColor    bool
	verbose    bool

	log = logrus.New()
)

var rootCmd = &cobra.Command{
	Use:   "zkcred",
	Short: "Set up predicate circuits, prove credential predicates and verify proofs offline",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor {
			color.NoColor = true
		}
		log.SetOutput(os.Stderr)
		log.SetLevel(logrus.WarnLevel)
		if verbose {
			log.SetLevel(logrus.DebugLevel)
		}
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	log.SetOutput(io.Discard)
}

func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorColor.Sprint("error: ")+err.Error())
		return err
	}
	return nil
}
