// Package control speaks the HackRF server's line-based control protocol:
// one "NAME:value" command per connection, answered by an OK or ERROR line.
package control

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrInvalidCommand is returned for unknown or out-of-range commands.
	ErrInvalidCommand = errors.New("invalid control command")
	// ErrRejected is returned when the server answers with an ERROR line.
	ErrRejected = errors.New("command rejected by server")
)

// Kind names a control command on the wire.
type Kind string

const (
	KindFrequency  Kind = "SET_FREQ"
	KindSampleRate Kind = "SET_SAMPLE_RATE"
	KindVGAGain    Kind = "SET_VGA_GAIN"
	KindLNAGain    Kind = "SET_LNA_GAIN"
	KindRxAmpGain  Kind = "SET_RX_AMP_GAIN"
	KindStatus     Kind = "GET_STATUS"
	KindHelp       Kind = "HELP"
)

// Ranges accepted by the server.
const (
	MinFrequency  = 1_000_000
	MaxFrequency  = 6_000_000_000
	MinSampleRate = 2_000_000
	MaxSampleRate = 20_000_000
	MaxVGAGain    = 62
	MaxLNAGain    = 40
	MaxRxAmpGain  = 14
)

type valueRange struct{ min, max int64 }

var ranges = map[Kind]valueRange{
	KindFrequency:  {MinFrequency, MaxFrequency},
	KindSampleRate: {MinSampleRate, MaxSampleRate},
	KindVGAGain:    {0, MaxVGAGain},
	KindLNAGain:    {0, MaxLNAGain},
	KindRxAmpGain:  {0, MaxRxAmpGain},
}

// Command is one control message. Queries carry no value.
type Command struct {
	Kind  Kind
	Value int64
}

// SetFrequency tunes the front end to hz.
func SetFrequency(hz int64) Command { return Command{KindFrequency, hz} }

// SetSampleRate changes the IQ sample rate.
func SetSampleRate(hz int64) Command { return Command{KindSampleRate, hz} }

// SetVGAGain sets the baseband gain in dB.
func SetVGAGain(db int) Command { return Command{KindVGAGain, int64(db)} }

// SetLNAGain sets the IF gain in dB.
func SetLNAGain(db int) Command { return Command{KindLNAGain, int64(db)} }

// SetRxAmpGain sets the RF amplifier gain in dB.
func SetRxAmpGain(db int) Command { return Command{KindRxAmpGain, int64(db)} }

// Status asks the server for its current settings.
func Status() Command { return Command{Kind: KindStatus} }

// Help asks the server for its command list.
func Help() Command { return Command{Kind: KindHelp} }

func (c Command) isQuery() bool {
	return c.Kind == KindStatus || c.Kind == KindHelp
}

func (c Command) valueRange() (valueRange, bool) {
	r, ok := ranges[c.Kind]
	return r, ok
}

// String returns the wire form without the trailing newline.
func (c Command) String() string {
	if c.isQuery() {
		return string(c.Kind)
	}
	return fmt.Sprintf("%s:%d", c.Kind, c.Value)
}

// Validate checks the command against the ranges the server accepts.
func (c Command) Validate() error {
	if c.isQuery() {
		return nil
	}
	r, ok := c.valueRange()
	if !ok {
		return fmt.Errorf("%w: unknown command %q", ErrInvalidCommand, c.Kind)
	}
	if c.Value < r.min || c.Value > r.max {
		return fmt.Errorf("%w: %s value %d outside %d-%d", ErrInvalidCommand, c.Kind, c.Value, r.min, r.max)
	}
	return nil
}

// Parse reads a command in wire form. Names are case-insensitive and
// surrounding whitespace, including the newline, is ignored.
func Parse(line string) (Command, error) {
	line = strings.TrimSpace(line)
	name, value, hasValue := strings.Cut(line, ":")
	cmd := Command{Kind: Kind(strings.ToUpper(strings.TrimSpace(name)))}

	if cmd.isQuery() {
		if hasValue {
			return Command{}, fmt.Errorf("%w: %s takes no value", ErrInvalidCommand, cmd.Kind)
		}
		return cmd, nil
	}
	if _, ok := cmd.valueRange(); !ok {
		return Command{}, fmt.Errorf("%w: unknown command %q", ErrInvalidCommand, name)
	}
	if !hasValue {
		return Command{}, fmt.Errorf("%w: %s needs a value", ErrInvalidCommand, cmd.Kind)
	}
	v, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return Command{}, fmt.Errorf("%w: %s value %q: %v", ErrInvalidCommand, cmd.Kind, value, err)
	}
	cmd.Value = v
	if err := cmd.Validate(); err != nil {
		return Command{}, err
	}
	return cmd, nil
}
