package mission

// Game is the game a mission was built for.
type Game int

const (
	// GameUnknown means the object map chunk was not found.
	GameUnknown Game = iota
	// Thief1 covers Thief: The Dark Project and Thief Gold.
	Thief1
	// Thief2 is Thief 2: The Metal Age.
	Thief2
)

// String returns the short game code used by mission managers.
func (g Game) String() string {
	switch g {
	case Thief1:
		return "tdp"
	case Thief2:
		return "tma"
	}
	return "unknown"
}

// Result is the classification of one mission file.
type Result struct {
	// NewDarkRequired is set when the file was saved by the NewDark
	// engine revision and will not load in the 2000-era releases.
	NewDarkRequired bool
	Game            Game
}
