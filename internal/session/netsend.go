package session

import (
	"context"
	"fmt"
	"net"
)

// Network sends the NET family's datagrams.
type Network interface {
	// SendUDP binds a fresh socket to src, sends payload to dst and closes
	// the socket. It returns the number of bytes the OS accepted.
	SendUDP(ctx context.Context, src, dst string, payload []byte) (int, error)
}

// UDPNetwork is the Network backed by real UDP sockets.
type UDPNetwork struct{}

func (UDPNetwork) SendUDP(ctx context.Context, src, dst string, payload []byte) (int, error) {
	var lc net.ListenConfig
	conn, err := lc.ListenPacket(ctx, "udp", src)
	if err != nil {
		return 0, fmt.Errorf("bind %s: %w", src, err)
	}
	defer conn.Close()

	addr, err := net.ResolveUDPAddr("udp", dst)
	if err != nil {
		return 0, fmt.Errorf("resolve %s: %w", dst, err)
	}

	n, err := conn.WriteTo(payload, addr)
	if err != nil {
		return n, fmt.Errorf("send to %s: %w", dst, err)
	}
	return n, nil
}
