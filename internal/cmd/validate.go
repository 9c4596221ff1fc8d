package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/MeKo-Tech/noisemix/internal/compose"
	"github.com/MeKo-Tech/noisemix/internal/expr"
	"github.com/MeKo-Tech/noisemix/internal/noise"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var validateCmd = &cobra.Command{
	Use:   "validate <composition>",
	Short: "Check a composition file and describe it",
	Long: `Validate decodes a composition, checks every generator and every tag the
expression references, and prints the fields and the expression as a formula.

A composition has a noise_dictionary section and either a
generation_expression tree or a generation_formula string:

  noise_dictionary:
    A: {PerlinNoiseConfig: {freq: 0.01}}
    B: {FBMNoiseConfig: {freq: 0.02, octaves: 3, lacunarity: 1.2}}
    C: {UniformNoiseConfig: {val: 5}}
  generation_formula: A * C + B`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().String("emit", "", "Also print the normalized composition (yaml, json)")

	if err := viper.BindPFlag("validate.emit", validateCmd.Flags().Lookup("emit")); err != nil {
		panic(fmt.Sprintf("failed to bind flag: %v", err))
	}
}

func runValidate(cmd *cobra.Command, args []string) error {
	emit := viper.GetString("validate.emit")
	if emit != "" && emit != "yaml" && emit != "json" {
		return fmt.Errorf("invalid emit format %q: must be 'yaml' or 'json'", emit)
	}

	cfg, err := compose.Load(args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TAG\tKIND\tUSED")
	unused := make(map[noise.Tag]bool)
	for _, t := range cfg.Unused() {
		unused[t] = true
	}
	for tag, g := range cfg.Dictionary.All() {
		kind, ok := noise.Default().KindOf(g)
		if !ok {
			kind = fmt.Sprintf("%T", g)
		}
		fmt.Fprintf(tw, "%s\t%s\t%t\n", tag, kind, !unused[tag])
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	formula, err := expr.FormatFormula(cfg.Expression, expr.Default())
	if err != nil {
		formula = fmt.Sprintf("(not expressible as a formula: %v)", err)
	}
	fmt.Fprintf(out, "\nformula: %s\n", formula)

	switch emit {
	case "yaml":
		data, err := compose.Encode(cfg)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "\n%s", data)
	case "json":
		data, err := compose.EncodeJSON(cfg)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "\n%s\n", data)
	}
	return nil
}
