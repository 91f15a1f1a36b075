package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/adiazny/bin-calendar/internal/pkg/fetcher"
)

func init() {
	rootCmd.AddCommand(sourcesCmd)
}

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Lists the data sources bins can fetch from.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, source := range fetcher.NewFactory(fetcher.Options{}).Sources() {
			if _, err := fmt.Fprintln(cmd.OutOrStdout(), source); err != nil {
				return err
			}
		}
		return nil
	},
}
