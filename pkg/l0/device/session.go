package device

import "sync/atomic"

// Session holds the link-wide flags shared by Router and Console.
type Session struct {
	override atomic.Bool
	connect  atomic.Bool
}

// SetOverride enables or disables set-points from the host.
func (s *Session) SetOverride(en bool) {
	s.override.Store(en)
}

// Override indicates whether set-points from the host are accepted.
func (s *Session) Override() bool {
	return s.override.Load()
}

// MarkConnect records a connect request.
func (s *Session) MarkConnect() {
	s.connect.Store(true)
}

// ConnectEvent reports whether a connect request arrived since the
// last call, and clears it.
func (s *Session) ConnectEvent() bool {
	return s.connect.Swap(false)
}
