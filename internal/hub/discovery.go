package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"time"
)

// DefaultDiscoveryPortOffset is added to the listener port to give the
// discovery port; the hub has no setting for a different discovery port.
const DefaultDiscoveryPortOffset = 1

const (
	discoveryMessageType = "bridgeAnnounce"
	discoveryProtocol    = "mcp-bridge"
	discoveryVersion     = "1"
)

// ListClientsAnnounceType is the discovery payload's type field for the
// on-demand re-announce the listClients synthetic tool triggers (spec
// §4.4, scenario S6), as distinct from the startup broadcast's
// discoveryMessageType.
const ListClientsAnnounceType = "listClients"

// discoveryPayload is the single UDP broadcast datagram sent on startup so
// editor clients on the same subnet can locate the bridge without being
// told its address out of band.
type discoveryPayload struct {
	Type      string `json:"type"`
	Protocol  string `json:"protocol"`
	Host      string `json:"host"`
	Port      int    `json:"port"`
	Version   string `json:"version"`
	Timestamp int64  `json:"timestamp"`
}

// announceDiscovery sends a single best-effort UDP broadcast to
// 255.255.255.255:<discoveryPort> announcing the bridge's TCP listener
// address. A failure to announce is logged and otherwise ignored: discovery
// is a convenience, never a precondition for serving TCP clients.
func announceDiscovery(host string, port int, logger *slog.Logger) {
	announceDiscoveryOn(host, port, port+DefaultDiscoveryPortOffset, discoveryMessageType, logger)
}

// announceDiscoveryOn is the testable core of announceDiscovery, taking an
// explicit discovery port and payload type rather than deriving them from
// the listener port and the startup default.
func announceDiscoveryOn(host string, port, discoveryPort int, kind string, logger *slog.Logger) {
	payload := discoveryPayload{
		Type:      kind,
		Protocol:  discoveryProtocol,
		Host:      host,
		Port:      port,
		Version:   discoveryVersion,
		Timestamp: time.Now().Unix(),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		logger.Warn("hub: failed to encode discovery payload", "error", err)
		return
	}

	lc := net.ListenConfig{Control: setBroadcastOption}
	pc, err := lc.ListenPacket(context.Background(), "udp4", ":0")
	if err != nil {
		logger.Warn("hub: failed to open discovery socket", "error", err)
		return
	}
	defer pc.Close()

	dst, err := net.ResolveUDPAddr("udp4", fmt.Sprintf("255.255.255.255:%d", discoveryPort))
	if err != nil {
		logger.Warn("hub: failed to resolve broadcast address", "error", err)
		return
	}

	if _, err := pc.WriteTo(body, dst); err != nil {
		logger.Warn("hub: discovery broadcast failed", "error", err)
		return
	}
	logger.Debug("hub: sent discovery broadcast", "discovery_port", discoveryPort)
}
