package domain

// ConnectionStatus chat socket status
type ConnectionStatus int

const (
	// StatusDisconnected no socket
	StatusDisconnected ConnectionStatus = iota
	// StatusConnecting dialing
	StatusConnecting
	// StatusConnected socket open
	StatusConnected
)

func (s ConnectionStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	default:
		return "unknown"
	}
}
