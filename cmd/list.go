package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list ARCHIVE",
	Short: "List the entries of an archive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openArchive(appFs, args[0])
		if err != nil {
			return err
		}
		defer a.Close()

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SIZE\tPACKED\tMETHOD\tMODIFIED\tNAME")
		for _, e := range a.Entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				humanize.IBytes(uint64(e.UncompressedSize)),
				humanize.IBytes(uint64(e.CompressedSize)),
				e.Method,
				e.ModTime().Format("2006-01-02 15:04"),
				e.Name)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		if a.Comment != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "\n%s\n", a.Comment)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
