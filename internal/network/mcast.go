package network

import (
	"context"
	"fmt"
	"net"
	"time"

	"rosgraph/internal/proto"
)

// Participant announcements ride UDP multicast; one datagram is one
// announcement. Ports follow the DDS well-known layout: 7400 + 250*domain.
const (
	mcastGroupIP  = "239.255.0.1"
	portBase      = 7400
	portPerDomain = 250
)

func MulticastAddr(domainID int) string {
	return fmt.Sprintf("%s:%d", mcastGroupIP, portBase+portPerDomain*domainID)
}

// Announce sends one announcement datagram to the domain's multicast
// group.
func Announce(addr string, payload []byte) error {
	if len(payload) == 0 || len(payload) > proto.MaxFrameSize {
		return fmt.Errorf("bad announcement size %d", len(payload))
	}
	udpAddr, err := net.ResolveUDPAddr("udp4", addr)
	if err != nil {
		return err
	}
	conn, err := net.DialUDP("udp4", nil, udpAddr)
	if err != nil {
		return err
	}
	defer conn.Close()
	_, err = conn.Write(payload)
	return err
}

// ListenMulticast joins the group and delivers each datagram to handle on
// a single goroutine until ctx is cancelled. Read errors after
// cancellation are expected; others are returned.
func ListenMulticast(ctx context.Context, addr string, handle func([]byte)) error {
	udpAddr, err := net.ResolveUDPAddr("udp4", addr)
	if err != nil {
		return err
	}
	conn, err := net.ListenMulticastUDP("udp4", nil, udpAddr)
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()
	buf := make([]byte, proto.MaxFrameSize)
	for {
		_ = conn.SetReadDeadline(time.Now().Add(time.Second))
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			return err
		}
		if n == 0 {
			continue
		}
		payload := make([]byte, n)
		copy(payload, buf[:n])
		handle(payload)
	}
}
