// Package comm provides L0 protocol support.
package comm

// L0 protocol is communicated between the motor controller firmware and
// a host over a byte stream (USB CDC or serial port).
//
// Each frame starts with the marker 'P' and ends with '\n'. The payload
// in between is binary and never escaped, so it must not contain '\n'.
// The first payload byte is the packet type. There is no sequencing,
// checksum or retransmission: malformed data is dropped and the link
// is assumed to be trusted.
//
// Producer: host (commands), firmware (telemetry and console text)
// Consumer: firmware (commands), host (telemetry and console text)
