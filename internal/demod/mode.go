package demod

import (
	"fmt"
	"strings"
)

// Mode selects how an IQ stream is demodulated.
type Mode int

const (
	ModeFM Mode = iota
	ModeAM
	ModeNFM
	ModePAL
)

// String returns the lower-case name of the mode.
func (m Mode) String() string {
	switch m {
	case ModeFM:
		return "fm"
	case ModeAM:
		return "am"
	case ModeNFM:
		return "nfm"
	case ModePAL:
		return "pal"
	default:
		return "unknown"
	}
}

// ParseMode converts a mode name such as "fm" or "PAL" to a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fm", "wfm":
		return ModeFM, nil
	case "am":
		return ModeAM, nil
	case "nfm", "nbfm":
		return ModeNFM, nil
	case "pal", "tv", "pal-bg":
		return ModePAL, nil
	default:
		return 0, fmt.Errorf("unknown mode: %q", s)
	}
}

// MarshalYAML implements yaml.Marshaler for Mode
func (m Mode) MarshalYAML() (interface{}, error) {
	return m.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler for Mode
func (m *Mode) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}

	mode, err := ParseMode(s)
	if err != nil {
		return err
	}

	*m = mode
	return nil
}

// Set implements pflag.Value so a Mode can be bound to a command-line flag.
func (m *Mode) Set(s string) error {
	mode, err := ParseMode(s)
	if err != nil {
		return err
	}
	*m = mode
	return nil
}

// Type implements pflag.Value.
func (m *Mode) Type() string {
	return "mode"
}
