package mission

import (
	"github.com/abe-nagisa/fmscan/internal/bytesearch"
)

const (
	// probeWindow is the length of each signature window.
	probeWindow = 100

	oldDarkThief2Offset = 750
	newDarkOffset       = 7180
	newDarkAltOffset    = 3050
)

var (
	skyObjVar = []byte("SKYOBJVAR")

	// Offsets visited with random access. The first is also the
	// OldDark Thief 2 shortcut.
	probeOffsets = []int64{oldDarkThief2Offset, newDarkOffset, newDarkAltOffset}

	// Forward-only streams visit the same windows in ascending order.
	forwardProbeOffsets = []int64{oldDarkThief2Offset, newDarkAltOffset, newDarkOffset}
)

type probeResult int

const (
	probeOldDark probeResult = iota
	// probeOldDarkThief2 is an OldDark file already known to be Thief 2.
	probeOldDarkThief2
	probeNewDark
)

// probe looks for the SKYOBJVAR token in the fixed signature windows. A
// window cut short by the end of the file is searched as far as it goes.
func probe(src Source) (probeResult, error) {
	for _, off := range src.probeOffsets() {
		w, err := src.window(off, probeWindow)
		if err != nil {
			return probeOldDark, err
		}
		if !bytesearch.Contains(w, skyObjVar) {
			continue
		}
		if off == oldDarkThief2Offset {
			return probeOldDarkThief2, nil
		}
		return probeNewDark, nil
	}
	return probeOldDark, nil
}
