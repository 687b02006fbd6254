package cmd

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/abe-nagisa/fmscan/mission"
)

var newDarkCmd = &cobra.Command{
	Use:   "newdark-version FILE...",
	Short: "Find the NewDark release a readme asks for",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		enc := legacyEncoding()
		for _, name := range args {
			b, err := afero.ReadFile(appFs, name)
			if err != nil {
				return errors.Wrap(err, "read readme")
			}
			version, ok := mission.NewDarkVersion(decodeText(b, enc))
			if !ok {
				version = "-"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", name, version)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(newDarkCmd)
}
