package cmd

import (
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var catCmd = &cobra.Command{
	Use:   "cat ARCHIVE ENTRY",
	Short: "Write one decompressed entry to standard output",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openArchive(appFs, args[0])
		if err != nil {
			return err
		}
		defer a.Close()

		e := a.Lookup(args[1])
		if e == nil {
			return errors.Errorf("%s: no entry %q", args[0], args[1])
		}
		rc, err := e.Open()
		if err != nil {
			return err
		}
		defer rc.Close()
		_, err = io.Copy(cmd.OutOrStdout(), rc)
		return errors.Wrapf(err, "read %q", e.Name)
	},
}

func init() {
	rootCmd.AddCommand(catCmd)
}
