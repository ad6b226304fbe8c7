package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oncomatch/oncomatch/internal/config"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid       bool   `json:"valid"`
	Collections int    `json:"collections"`
	SortStages  int    `json:"sort_stages"`
	MappingSize int    `json:"mapping_terms,omitempty"`
	Error       string `json:"error,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	var mappingPath string

	cmd := &cobra.Command{
		Use:   "validate <config.json>",
		Short: "Validate a matching configuration",
		Long: `Validate a matching configuration against the embedded schema.

Checks key structure, collection mappings, and sort stages. With
--mapping, also loads and checks the external vocabulary table.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, cmd, args[0], mappingPath)
		},
	}

	cmd.Flags().StringVar(&mappingPath, "mapping", "", "external vocabulary mapping file to check")

	return cmd
}

func runValidate(opts *RootOptions, cmd *cobra.Command, configPath, mappingPath string) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		_ = formatter.Error("CONFIG_INVALID", err.Error(), nil)
		return NewExitError(ExitFailure, fmt.Sprintf("invalid configuration: %v", err))
	}
	formatter.VerboseLog("Loaded configuration with %d collection mapping(s)", len(cfg.CollectionMappings))

	result := ValidationResult{
		Valid:       true,
		Collections: len(cfg.CollectionMappings),
		SortStages:  len(cfg.TrialMatchSorting),
	}

	if mappingPath != "" {
		table, err := config.LoadExternalMapping(mappingPath)
		if err != nil {
			_ = formatter.Error("MAPPING_INVALID", err.Error(), nil)
			return NewExitError(ExitFailure, fmt.Sprintf("invalid mapping: %v", err))
		}
		result.MappingSize = len(table)
		formatter.VerboseLog("Loaded external mapping with %d term(s)", len(table))
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintln(formatter.Writer, "configuration valid")
	return nil
}
