package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ironsheep/rmbg-local/internal/registry"
)

var modelsJSON bool

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the available segmentation models",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return printModels(os.Stdout, modelsJSON)
	},
}

func init() {
	modelsCmd.Flags().BoolVar(&modelsJSON, "json", false, "print the registry as JSON")
	rootCmd.AddCommand(modelsCmd)
}

func printModels(out io.Writer, asJSON bool) error {
	models := registry.All()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(models)
	}

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tINPUT\tNORMALIZATION")
	fmt.Fprintln(w, "--\t----\t-----\t-------------")
	for _, d := range models {
		def := ""
		if d.ID == registry.Default() {
			def = " (default)"
		}
		fmt.Fprintf(w, "%s%s\t%s\t%dx%d\t%s\n", d.ID, def, d.DisplayName, d.InputSize, d.InputSize, d.Normalization)
	}
	return w.Flush()
}
