package cmd

import (
	"log/slog"
	"unicode/utf8"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"golang.org/x/text/encoding"

	"github.com/abe-nagisa/fmscan/internal/rangeread"
	"github.com/abe-nagisa/fmscan/zipfast"
)

// openArchive opens an archive on fs or one served over http(s).
func openArchive(fs afero.Fs, name string) (*zipfast.Archive, error) {
	opts := []zipfast.Option{zipfast.WithLegacyEncoding(legacyEncoding())}
	if rangeread.IsURL(name) {
		src, err := rangeread.New(name)
		if err != nil {
			return nil, err
		}
		return zipfast.New(src, src.Size(), opts...)
	}

	f, err := fs.Open(name)
	if err != nil {
		return nil, errors.Wrap(err, "open archive")
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, "stat archive")
	}
	a, err := zipfast.New(f, fi.Size(), append(opts, zipfast.WithCloser(f))...)
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "%s", name)
	}
	return a, nil
}

// legacyEncoding is the configured code page for names and readmes that
// are not UTF-8.
func legacyEncoding() encoding.Encoding {
	name := viper.GetString("encoding")
	e := zipfast.LookupEncoding(name)
	if e == nil {
		slog.Warn("Unknown encoding, reading names as UTF-8", "encoding", name)
	}
	return e
}

// decodeText returns readme bytes as a string, decoding from enc unless
// they are already valid UTF-8.
func decodeText(b []byte, enc encoding.Encoding) string {
	if enc == nil || utf8.Valid(b) {
		return string(b)
	}
	out, err := enc.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(out)
}
