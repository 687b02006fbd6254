package mission

import "github.com/pkg/errors"

// ErrTruncatedOrCorruptMission is returned when the table of contents or a
// chunk it indexes does not fit inside the mission file.
var ErrTruncatedOrCorruptMission = errors.New("mission: truncated or corrupt file")
