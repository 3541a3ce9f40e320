package domain

// ConnectionState describes the upstream channel. The Connection Manager is
// the only writer; transitions are Disconnected → Connected → Degraded →
// Connected (reconnect) or terminal failure.
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnected    ConnectionState = "connected"
	StateDegraded     ConnectionState = "degraded"
)

// UpstreamStats is a point-in-time snapshot of connection counters.
type UpstreamStats struct {
	State             ConnectionState `json:"state"`
	RequestsIssued    uint64          `json:"requestsIssued"`
	Reconnects        uint64          `json:"reconnects"`
	ReconnectAttempts int             `json:"reconnectAttempts"`
}
