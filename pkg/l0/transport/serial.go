package transport

import (
	"io"
	"net/url"
	"strconv"

	"github.com/pkg/errors"
	"go.bug.st/serial"
)

// DefaultBaudRate applies when a serial URL has no baud parameter.
const DefaultBaudRate = 115200

// serialMode reads line settings from the URL query. Frames are
// always carried 8N1.
func serialMode(u *url.URL) (*serial.Mode, error) {
	mode := &serial.Mode{
		BaudRate: DefaultBaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	if str := u.Query().Get("baud"); str != "" {
		baud, err := strconv.Atoi(str)
		if err != nil || baud <= 0 {
			return nil, errors.Errorf("invalid baud rate %q", str)
		}
		mode.BaudRate = baud
	}
	return mode, nil
}

// openSerial opens the port in raw mode, so '\r' and 0x0d bytes pass
// through untranslated.
func openSerial(u *url.URL) (io.ReadWriteCloser, error) {
	mode, err := serialMode(u)
	if err != nil {
		return nil, err
	}
	port, err := serial.Open(u.Path, mode)
	if err != nil {
		return nil, errors.Wrapf(err, "open serial %s", u.Path)
	}
	return port, nil
}
