package cmd

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/abe-nagisa/fmscan/zipfast"
)

var extractCmd = &cobra.Command{
	Use:   "extract ARCHIVE DIR",
	Short: "Unpack an archive into a directory",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		flat, err := cmd.Flags().GetBool("flat")
		if err != nil {
			return err
		}

		a, err := openArchive(appFs, args[0])
		if err != nil {
			return err
		}
		defer a.Close()

		// create extract location
		dir := args[1]
		if err := appFs.MkdirAll(dir, 0755); err != nil {
			return errors.Wrap(err, "create destination")
		}

		for _, e := range a.Entries {
			if e.IsDir() {
				continue
			}
			path, err := entryPath(dir, e, flat)
			if err != nil {
				return err
			}
			if err := extractEntry(appFs, e, path); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	extractCmd.Flags().Bool("flat", false, "drop directories and write every file into DIR")
	rootCmd.AddCommand(extractCmd)
}

// entryPath maps an entry to its file under dir. Names that would land
// outside dir are rejected.
func entryPath(dir string, e *zipfast.Entry, flat bool) (string, error) {
	name := e.Name
	if flat {
		name = e.BaseName()
	} else if e.CreatorVersion>>8 == 0 {
		name = strings.ReplaceAll(name, `\`, "/")
	}
	path := filepath.Join(dir, filepath.FromSlash(name))
	rel, err := filepath.Rel(dir, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errors.Errorf("entry %q escapes %s", e.Name, dir)
	}
	return path, nil
}

func extractEntry(fs afero.Fs, e *zipfast.Entry, path string) error {
	rc, err := e.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	if err := fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(err, "create directory")
	}
	fp, err := fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0666)
	if err != nil {
		return errors.Wrap(err, "create file")
	}
	defer fp.Close()

	n, err := io.Copy(fp, rc)
	if err != nil {
		return errors.Wrapf(err, "extract %q", e.Name)
	}
	slog.Debug("Extracted entry", "name", e.Name, "bytes", n)
	return fp.Close()
}
