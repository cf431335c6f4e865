package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Skufu/dosewise/internal/cluster"
)

var clustersCmd = &cobra.Command{
	Use:   "clusters",
	Short: "List clusters with their size and dosage statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := buildEngine(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		sum := eng.Summary()
		fmt.Fprintf(out, "%d drugs, %d features, %d clusters, %d noise\n",
			sum.Rows, sum.FeatureWidth, sum.Clusters, sum.Noise)
		for _, c := range eng.Clusters() {
			label := fmt.Sprintf("%d", c.ID)
			if c.ID == cluster.Noise {
				label = "noise"
			}
			if c.DosageStats == nil {
				fmt.Fprintf(out, "- %s: %d drugs\n", label, c.Size)
				continue
			}
			fmt.Fprintf(out, "- %s: %d drugs, mean %.2f mg, limit %.2f mg\n",
				label, c.Size, c.DosageStats.Mean, c.DosageStats.SuggestedLimit)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(clustersCmd)
}
