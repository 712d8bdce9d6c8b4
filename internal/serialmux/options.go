package serialmux

import (
	"fmt"
	"strings"

	"go.bug.st/serial"
)

// DefaultBaudRate is the receiver dongle's factory rate.
const DefaultBaudRate = 115200

// PortOptions are the line settings for a real serial port. Zero values
// mean 115200 8N1.
type PortOptions struct {
	BaudRate int    `json:"baud_rate"`
	DataBits int    `json:"data_bits"`
	StopBits int    `json:"stop_bits"`
	Parity   string `json:"parity"` // N, E or O
}

var parities = map[string]serial.Parity{
	"N": serial.NoParity, "NONE": serial.NoParity,
	"E": serial.EvenParity, "EVEN": serial.EvenParity,
	"O": serial.OddParity, "ODD": serial.OddParity,
}

var stopBits = map[int]serial.StopBits{
	1: serial.OneStopBit,
	2: serial.TwoStopBits,
}

// ParseFraming fills DataBits, Parity and StopBits from the usual
// shorthand, for example "8N1" or "7E2".
func (o PortOptions) ParseFraming(s string) (PortOptions, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if len(s) != 3 || s[0] < '5' || s[0] > '8' || (s[2] != '1' && s[2] != '2') {
		return o, fmt.Errorf("framing %q: want <data bits><parity><stop bits>, e.g. 8N1", s)
	}
	if _, ok := parities[s[1:2]]; !ok {
		return o, fmt.Errorf("framing %q: parity must be N, E or O", s)
	}
	o.DataBits = int(s[0] - '0')
	o.Parity = s[1:2]
	o.StopBits = int(s[2] - '0')
	return o, nil
}

// Normalise applies defaults and rejects settings the dongle cannot use.
// Parity is canonicalised to a single letter.
func (o PortOptions) Normalise() (PortOptions, error) {
	if o.BaudRate <= 0 {
		o.BaudRate = DefaultBaudRate
	}
	if o.DataBits == 0 {
		o.DataBits = 8
	}
	if o.DataBits < 5 || o.DataBits > 8 {
		return o, fmt.Errorf("invalid data bits %d: must be between 5 and 8", o.DataBits)
	}
	if o.StopBits == 0 {
		o.StopBits = 1
	}
	if _, ok := stopBits[o.StopBits]; !ok {
		return o, fmt.Errorf("invalid stop bits %d: supported values are 1 or 2", o.StopBits)
	}

	p := strings.ToUpper(strings.TrimSpace(o.Parity))
	if p == "" {
		p = "N"
	}
	if _, ok := parities[p]; !ok {
		return o, fmt.Errorf("unsupported parity %q: expected N, E, or O", o.Parity)
	}
	o.Parity = p[:1]
	return o, nil
}

// SerialMode converts the options for serial.Open.
func (o PortOptions) SerialMode() (*serial.Mode, error) {
	n, err := o.Normalise()
	if err != nil {
		return nil, err
	}
	return &serial.Mode{
		BaudRate: n.BaudRate,
		DataBits: n.DataBits,
		StopBits: stopBits[n.StopBits],
		Parity:   parities[n.Parity],
	}, nil
}
