// Package mission classifies Dark engine mission files by the engine
// revision that saved them and the game they were built for.
package mission

import (
	"io"
	"log/slog"

	"github.com/pkg/errors"
)

// DefaultMaxBuffer caps how much of a forward-only stream is held in memory
// for the table of contents walk.
const DefaultMaxBuffer = 256 << 20

type options struct {
	maxBuffer int64
}

// Option configures Classify.
type Option func(*options)

// WithMaxBuffer sets the largest forward-only stream buffered for the
// table of contents walk. Longer streams are scanned for the Thief 2
// marker instead.
func WithMaxBuffer(n int64) Option {
	return func(o *options) {
		if n > 0 {
			o.maxBuffer = n
		}
	}
}

// Classify reports the engine and game of the mission in src.
//
// A file carrying the sky object token at offset 750 is an OldDark Thief 2
// mission and nothing more is read. The token at 7180 or 3050 marks a
// NewDark mission. Otherwise the game comes from the object map chunk.
func Classify(src Source, opts ...Option) (Result, error) {
	o := options{maxBuffer: DefaultMaxBuffer}
	for _, opt := range opts {
		opt(&o)
	}

	pr, err := probe(src)
	if err != nil {
		return Result{}, errors.Wrap(err, "probe signature windows")
	}
	if pr == probeOldDarkThief2 {
		return Result{Game: Thief2}, nil
	}

	game, err := src.objectMapGame(o.maxBuffer)
	if err != nil {
		return Result{}, err
	}
	res := Result{NewDarkRequired: pr == probeNewDark, Game: game}
	slog.Debug("classified mission", "newdark", res.NewDarkRequired, "game", res.Game)
	return res, nil
}

// ClassifyReaderAt classifies a mission with random access.
func ClassifyReaderAt(r SeekableSource, opts ...Option) (Result, error) {
	return Classify(FromReaderAt(r), opts...)
}

// ClassifyStream classifies a mission read once from the start, such as a
// zip entry. sizeHint may be zero when the length is unknown.
func ClassifyStream(r io.Reader, sizeHint int64, opts ...Option) (Result, error) {
	return Classify(FromStream(r, sizeHint), opts...)
}

// ClassifyFile classifies the named mission file.
func ClassifyFile(name string, opts ...Option) (Result, error) {
	src, closer, err := openFile(name)
	if err != nil {
		return Result{}, err
	}
	defer closer.Close()
	return Classify(src, opts...)
}
