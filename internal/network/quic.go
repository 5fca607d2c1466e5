package network

import (
	"context"
	"errors"
	"io"
	"time"

	quic "github.com/quic-go/quic-go"

	"rosgraph/internal/debuglog"
	"rosgraph/internal/proto"
)

const logComponent = "rosgraph.network"

const (
	maxIdleTimeout       = 30 * time.Second
	keepAlivePeriod      = 10 * time.Second
	handshakeIdleTimeout = 5 * time.Second
	sendTimeout          = 8 * time.Second
)

// ListenAndServe accepts metatraffic connections on addr and delivers
// each received announcement frame to handle, in stream order. handle
// runs on the stream's goroutine; it must not block on the network.
// Returns when ctx is cancelled or the listener fails.
func ListenAndServe(ctx context.Context, addr string, handle func([]byte)) error {
	tlsConf, err := serverTLSConfig()
	if err != nil {
		return err
	}
	listener, err := quic.ListenAddr(addr, tlsConf, &quic.Config{
		MaxIdleTimeout:       maxIdleTimeout,
		KeepAlivePeriod:      keepAlivePeriod,
		HandshakeIdleTimeout: handshakeIdleTimeout,
	})
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()
	debuglog.Debugf(logComponent, "metatraffic listener ready on %s", addr)
	limiter := newConnLimiter(defaultMaxConnsPerIP)
	for {
		conn, err := listener.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		ip := remoteIP(conn.RemoteAddr())
		if !limiter.acquire(ip) {
			debuglog.RateLimitedf(logComponent, "conn-limit", 5*time.Second,
				"rejecting metatraffic connection from %s: per-ip limit", ip)
			_ = conn.CloseWithError(0, "connection limit")
			continue
		}
		go func() {
			defer limiter.release(ip)
			serveConn(ctx, conn, handle)
		}()
	}
}

func serveConn(ctx context.Context, conn *quic.Conn, handle func([]byte)) {
	for {
		stream, err := conn.AcceptStream(ctx)
		if err != nil {
			return
		}
		go func(s *quic.Stream) {
			defer s.Close()
			for {
				payload, err := proto.ReadFrame(s)
				if err != nil {
					if !errors.Is(err, io.EOF) {
						debuglog.RateLimitedf(logComponent, "stream-read", 5*time.Second,
							"metatraffic stream read: %v", err)
					}
					return
				}
				handle(payload)
			}
		}(stream)
	}
}

// Send delivers a batch of announcement frames to one peer over a pooled
// connection. Used for endpoint catch-up when a new participant appears.
func Send(ctx context.Context, addr string, payloads [][]byte) error {
	if len(payloads) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	conn, err := clientConns.get(ctx, addr, clientTLSConfig(), &quic.Config{
		MaxIdleTimeout:       maxIdleTimeout,
		KeepAlivePeriod:      keepAlivePeriod,
		HandshakeIdleTimeout: handshakeIdleTimeout,
	})
	if err != nil {
		return err
	}
	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		clientConns.drop(addr, conn, "open stream failed")
		return err
	}
	defer stream.Close()
	for _, payload := range payloads {
		if err := proto.WriteFrame(stream, payload); err != nil {
			clientConns.drop(addr, conn, "write failed")
			return err
		}
	}
	clientConns.touch(addr, conn)
	return nil
}
