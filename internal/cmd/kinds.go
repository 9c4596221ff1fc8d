package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/MeKo-Tech/noisemix/internal/expr"
	"github.com/MeKo-Tech/noisemix/internal/noise"
	"github.com/spf13/cobra"
)

var kindsCmd = &cobra.Command{
	Use:   "kinds",
	Short: "List the generator and operator kinds a composition may use",
	Args:  cobra.NoArgs,
	RunE:  runKinds,
}

func init() {
	rootCmd.AddCommand(kindsCmd)
}

func runKinds(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, "Generators:")
	for _, kind := range noise.Default().Kinds() {
		fmt.Fprintf(out, "  %s\n", kind)
	}

	fmt.Fprintln(out, "\nOperators:")
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "  KIND\tFORMULA\tKEYS")
	reg := expr.Default()
	for _, kind := range reg.Kinds() {
		def, _ := reg.Lookup(kind)
		fmt.Fprintf(tw, "  %s\t%s\t%s\n", kind, formulaForm(def), strings.Join(defKeys(def), ", "))
	}
	return tw.Flush()
}

func formulaForm(def expr.Def) string {
	var forms []string
	if def.Infix != "" {
		forms = append(forms, "a "+def.Infix+" b")
	}
	if def.Func != "" {
		args := append([]string{}, def.Slots...)
		if def.Variadic != "" {
			args = append(args, def.Variadic+"...")
		}
		args = append(args, def.Params...)
		forms = append(forms, def.Func+"("+strings.Join(args, ", ")+")")
	}
	return strings.Join(forms, " | ")
}

func defKeys(def expr.Def) []string {
	keys := append([]string{}, def.Slots...)
	if def.Variadic != "" {
		keys = append(keys, def.Variadic+"[]")
	}
	return append(keys, def.Params...)
}
