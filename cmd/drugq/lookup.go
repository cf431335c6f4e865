package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Skufu/dosewise/internal/cluster"
	"github.com/Skufu/dosewise/internal/engine"
)

var lookupJSON bool

var lookupCmd = &cobra.Command{
	Use:   "lookup <drug name>",
	Short: "Look up a drug and show its cluster context",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := buildEngine(cmd.Context())
		if err != nil {
			return err
		}
		res, err := eng.Resolve(strings.Join(args, " "))
		var notFound *engine.NotFoundError
		switch {
		case errors.Is(err, engine.ErrEmptyQuery):
			return fmt.Errorf("please enter a drug name")
		case errors.As(err, &notFound):
			return fmt.Errorf("no drug found matching '%s'", notFound.Query)
		case err != nil:
			return err
		}

		out := cmd.OutOrStdout()
		if lookupJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}
		printResult(out, res)
		return nil
	},
}

func init() {
	lookupCmd.Flags().BoolVar(&lookupJSON, "json", false, "print the result as JSON")
	rootCmd.AddCommand(lookupCmd)
}

func printResult(w io.Writer, res *engine.Result) {
	for _, f := range res.Fields {
		fmt.Fprintf(w, "%s: %s\n", f.Name, formatValue(f.Value))
	}
	if res.ClusterID == cluster.Noise {
		fmt.Fprintln(w, "cluster: noise")
	} else {
		fmt.Fprintf(w, "cluster: %d\n", res.ClusterID)
	}

	if s := res.DosageStats; s != nil {
		fmt.Fprintf(w, "dosage: mean %.2f mg, std %.2f mg, suggested limit %.2f mg (n=%d)\n",
			s.Mean, s.Std, s.SuggestedLimit, s.Count)
	} else {
		fmt.Fprintln(w, "dosage: no data for this cluster")
	}

	if len(res.Similar) == 0 {
		fmt.Fprintln(w, "similar: (none)")
		return
	}
	fmt.Fprintln(w, "similar:")
	for _, d := range res.Similar {
		line := "- " + d.DrugName
		if d.DrugClass != nil {
			line += " [" + *d.DrugClass + "]"
		}
		if d.DosageMg != nil {
			line += fmt.Sprintf(" %g mg", *d.DosageMg)
		}
		fmt.Fprintln(w, line)
	}
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "-"
	case float64:
		return fmt.Sprintf("%g", x)
	default:
		return fmt.Sprint(x)
	}
}
