package cmd

import (
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/encoding"

	"github.com/abe-nagisa/fmscan/internal/rangeread"
	"github.com/abe-nagisa/fmscan/mission"
	"github.com/abe-nagisa/fmscan/zipfast"
)

// Readmes larger than this are not searched for a NewDark version.
const maxReadmeSize = 1 << 20

var errNoMission = errors.New("no .mis file found")

var classifyCmd = &cobra.Command{
	Use:   "classify PATH...",
	Short: "Tell which game and engine a fan mission needs",
	Long: `classify reports the game and engine revision of each fan mission.
A PATH may be a zip archive (local or http(s)), an installed mission
directory, or a single .mis file. For archives and directories the
smallest .mis file is classified and top level .txt readmes are searched
for the NewDark release they ask for.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := classifier{
			fs:        appFs,
			maxBuffer: viper.GetInt64("max-buffer"),
			enc:       legacyEncoding(),
		}
		results := c.run(args, viper.GetInt("workers"))

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "PATH\tMISSION\tGAME\tNEWDARK\tVERSION")
		failed := 0
		for _, r := range results {
			if r.err != nil {
				failed++
				fmt.Fprintf(w, "%s\t-\t-\t-\t%s\n", r.path, describe(r.err))
				continue
			}
			version := r.version
			if version == "" {
				version = "-"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				r.path, r.mission, r.result.Game, yesNo(r.result.NewDarkRequired), version)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		if failed > 0 {
			return errors.Errorf("%d of %d paths could not be classified", failed, len(results))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(classifyCmd)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

type classification struct {
	path    string
	mission string // file or entry that was classified
	result  mission.Result
	version string // NewDark release named by a readme
	err     error
}

type classifier struct {
	fs        afero.Fs
	maxBuffer int64
	enc       encoding.Encoding
}

// run classifies paths with at most workers in flight. Results keep the
// order of paths.
func (c classifier) run(paths []string, workers int) []classification {
	results := make([]classification, len(paths))
	var g errgroup.Group
	g.SetLimit(max(workers, 1))
	for i, p := range paths {
		g.Go(func() error {
			results[i] = c.classify(p)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (c classifier) classify(p string) classification {
	r := classification{path: p}
	if rangeread.IsURL(p) || strings.EqualFold(filepath.Ext(p), ".zip") {
		r.mission, r.result, r.version, r.err = c.classifyArchive(p)
		return r
	}

	fi, err := c.fs.Stat(p)
	if err != nil {
		r.err = errors.Wrap(err, "stat")
		return r
	}
	if fi.IsDir() {
		r.mission, r.result, r.version, r.err = c.classifyDir(p)
		return r
	}
	r.mission = filepath.Base(p)
	r.result, r.err = c.classifyFile(p)
	return r
}

// classifyFile classifies a mission file with random access.
func (c classifier) classifyFile(name string) (mission.Result, error) {
	f, err := c.fs.Open(name)
	if err != nil {
		return mission.Result{}, errors.Wrap(err, "open mission")
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return mission.Result{}, errors.Wrap(err, "stat mission")
	}
	return mission.ClassifyReaderAt(io.NewSectionReader(f, 0, fi.Size()), mission.WithMaxBuffer(c.maxBuffer))
}

func isMission(name string) bool {
	return strings.EqualFold(path.Ext(name), ".mis")
}

func isReadme(name string) bool {
	return strings.EqualFold(path.Ext(name), ".txt")
}

func (c classifier) classifyArchive(name string) (string, mission.Result, string, error) {
	a, err := openArchive(c.fs, name)
	if err != nil {
		return "", mission.Result{}, "", err
	}
	defer a.Close()

	var smallest *zipfast.Entry
	var version string
	for _, e := range a.Entries {
		switch base := e.BaseName(); {
		case e.IsDir():
		case isMission(base):
			if smallest == nil || e.UncompressedSize < smallest.UncompressedSize {
				smallest = e
			}
		case isReadme(base) && base == e.Name && version == "" && e.UncompressedSize <= maxReadmeSize:
			version = c.readmeVersion(e.Open)
		}
	}
	if smallest == nil {
		return "", mission.Result{}, version, errors.WithStack(errNoMission)
	}

	rc, err := smallest.Open()
	if err != nil {
		return smallest.Name, mission.Result{}, version, err
	}
	defer rc.Close()
	res, err := mission.ClassifyStream(rc, smallest.UncompressedSize, mission.WithMaxBuffer(c.maxBuffer))
	return smallest.Name, res, version, errors.Wrapf(err, "%q", smallest.Name)
}

func (c classifier) classifyDir(dir string) (string, mission.Result, string, error) {
	fis, err := afero.ReadDir(c.fs, dir)
	if err != nil {
		return "", mission.Result{}, "", errors.Wrap(err, "read directory")
	}

	var smallest string
	var smallestSize int64
	var version string
	for _, fi := range fis {
		if !fi.Mode().IsRegular() {
			continue
		}
		switch name := fi.Name(); {
		case isMission(name):
			if smallest == "" || fi.Size() < smallestSize {
				smallest, smallestSize = name, fi.Size()
			}
		case isReadme(name) && version == "" && fi.Size() <= maxReadmeSize:
			version = c.readmeVersion(func() (io.ReadCloser, error) {
				return c.fs.Open(filepath.Join(dir, name))
			})
		}
	}
	if smallest == "" {
		return "", mission.Result{}, version, errors.WithStack(errNoMission)
	}

	res, err := c.classifyFile(filepath.Join(dir, smallest))
	return smallest, res, version, err
}

// readmeVersion returns the NewDark version a readme names, or "". A readme
// that cannot be read is skipped.
func (c classifier) readmeVersion(open func() (io.ReadCloser, error)) string {
	rc, err := open()
	if err != nil {
		return ""
	}
	defer rc.Close()
	b, err := io.ReadAll(io.LimitReader(rc, maxReadmeSize))
	if err != nil {
		return ""
	}
	version, _ := mission.NewDarkVersion(decodeText(b, c.enc))
	return version
}
