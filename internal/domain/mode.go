package domain

// Mode is the wire-level hint controlling backend behavior for one turn.
type Mode string

const (
	ModeNormal   Mode = "normal"
	ModeCode     Mode = "code"
	ModeDesign   Mode = "design"
	ModePlan     Mode = "plan"
	ModeSpec     Mode = "spec"
	ModeShip     Mode = "ship"
	ModeArgument Mode = "argument"
)

// KnownModes lists every mode the backend accepts.
var KnownModes = []Mode{
	ModeNormal, ModeCode, ModeDesign, ModePlan, ModeSpec, ModeShip, ModeArgument,
}

// ParseMode returns the mode matching s, or ModeNormal when s names no
// known mode.
func ParseMode(s string) Mode {
	for _, m := range KnownModes {
		if string(m) == s {
			return m
		}
	}
	return ModeNormal
}
