package commands

import (
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/streamsketch/pkg/config"
)

// ErrInvalidConfig is returned by config validate when any check fails.
var ErrInvalidConfig = errors.New("configuration is invalid")

// NewConfigCommand creates the config command group.
func NewConfigCommand(global *GlobalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and validate configuration",
	}

	cmd.AddCommand(newConfigValidateCommand(global))
	cmd.AddCommand(newConfigSchemaCommand())

	return cmd
}

func newConfigValidateCommand(global *GlobalFlags) *cobra.Command {
	var noColor bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check settings and every sketch declaration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.ReadConfig(global.ConfigPath)
			if err != nil {
				return err
			}

			violations, err := config.CheckSketches(cfg.Sketches)
			if err != nil {
				return err
			}

			return reportValidation(cmd.OutOrStdout(), cfg, cfg.Validate(), violations, noColor)
		},
	}

	cmd.Flags().BoolVar(&noColor, "no-color", false, "disable colored output")

	return cmd
}

func reportValidation(w io.Writer, cfg *config.Config, settingsErr error, violations []config.SchemaViolation, noColor bool) error {
	bad := color.New(color.FgRed, color.Bold)
	good := color.New(color.FgGreen, color.Bold)

	if noColor {
		bad.DisableColor()
		good.DisableColor()
	}

	if settingsErr == nil && len(violations) == 0 {
		fmt.Fprintf(w, "%s %d sketches declared\n", good.Sprint("OK"), len(cfg.Sketches))

		return nil
	}

	if settingsErr != nil {
		fmt.Fprintf(w, "%s %v\n", bad.Sprint("FAIL"), settingsErr)
	}

	for _, v := range violations {
		fmt.Fprintf(w, "%s sketches.%s: %s\n", bad.Sprint("FAIL"), v.Field, v.Description)
	}

	return fmt.Errorf("%w: %d problem(s)", ErrInvalidConfig, len(violations)+boolToInt(settingsErr != nil))
}

func boolToInt(b bool) int {
	if b {
		return 1
	}

	return 0
}

func newConfigSchemaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON schema for the sketches list",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := cmd.OutOrStdout().Write(config.SketchSchema()); err != nil {
				return fmt.Errorf("write schema: %w", err)
			}

			return nil
		},
	}
}
