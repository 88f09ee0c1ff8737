// tcpbench measures end-to-end throughput of a mintcp connection,
// supplementing original_source/tools/speed_test.cpp: instead of timing
// StreamBuffer alone, it drives a real client/server Socket pair over a
// loopback UDP link and reports the sustained transfer rate.
package main

import (
	"context"
	"crypto/rand"
	"flag"
	"fmt"
	"net"
	"net/netip"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/time/rate"

	"github.com/gopherlabs/mintcp/internal/adapter"
	"github.com/gopherlabs/mintcp/internal/socket"
	"github.com/gopherlabs/mintcp/internal/tcp"
	"github.com/gopherlabs/mintcp/internal/wrap"
)

func main() {
	var (
		totalBytes = flag.Int64("bytes", 10_000_000, "total bytes to transfer")
		writeSize  = flag.Int("write-size", 1400, "size of each application write, in bytes")
		capacity   = flag.Int("capacity", 64000, "sender/receiver byte-stream capacity")
		rateLimit  = flag.Float64("rate", 0, "cap sender writes to this many bytes/sec (0 = unlimited)")
	)
	flag.Parse()

	if err := run(*totalBytes, *writeSize, *capacity, *rateLimit); err != nil {
		fmt.Fprintf(os.Stderr, "tcpbench: %v\n", err)
		os.Exit(1)
	}
}

func run(totalBytes int64, writeSize, capacity int, rateLimit float64) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	serverUDPAddr, err := reserveLoopbackPort()
	if err != nil {
		return fmt.Errorf("reserve server udp port: %w", err)
	}
	clientUDPAddr, err := reserveLoopbackPort()
	if err != nil {
		return fmt.Errorf("reserve client udp port: %w", err)
	}

	serverTransport, err := adapter.NewUDPTransport(serverUDPAddr, clientUDPAddr, 64)
	if err != nil {
		return fmt.Errorf("server transport: %w", err)
	}
	defer serverTransport.Close()
	clientTransport, err := adapter.NewUDPTransport(clientUDPAddr, serverUDPAddr, 64)
	if err != nil {
		return fmt.Errorf("client transport: %w", err)
	}
	defer clientTransport.Close()

	serverAddr := netip.MustParseAddrPort("10.200.0.1:9000")
	clientAddr := netip.MustParseAddrPort("10.200.0.2:9001")

	cfg := tcp.DefaultConfig()
	cfg.RecvCapacity = capacity
	cfg.SendCapacity = capacity

	serverLink := adapter.New(serverTransport, adapter.Config{Source: serverAddr, Destination: clientAddr})
	clientLink := adapter.New(clientTransport, adapter.Config{Source: clientAddr, Destination: serverAddr})

	serverISN, clientISN := randomISN(), randomISN()

	type acceptResult struct {
		sock *socket.Socket
		err  error
	}
	serverCh := make(chan acceptResult, 1)
	go func() {
		s, err := socket.ListenAndAccept(ctx, serverLink, serverISN, cfg, nil)
		serverCh <- acceptResult{s, err}
	}()

	clientSock, err := socket.Connect(ctx, clientLink, clientISN, cfg, nil)
	if err != nil {
		return fmt.Errorf("client connect: %w", err)
	}
	defer clientSock.Close()

	accepted := <-serverCh
	if accepted.err != nil {
		return fmt.Errorf("server accept: %w", accepted.err)
	}
	serverSock := accepted.sock
	defer serverSock.Close()

	payload := make([]byte, writeSize)
	if _, err := rand.Read(payload); err != nil {
		return fmt.Errorf("generate payload: %w", err)
	}

	var limiter *rate.Limiter
	if rateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(rateLimit), writeSize)
	}

	bar := progressbar.DefaultBytes(totalBytes, "sending")
	defer bar.Close()

	recvDone := make(chan int64, 1)
	go func() {
		var received int64
		buf := make([]byte, 64*1024)
		for {
			n, err := serverSock.Read(buf)
			received += int64(n)
			if err != nil || received >= totalBytes {
				break
			}
			if n == 0 {
				time.Sleep(time.Millisecond)
			}
		}
		recvDone <- received
	}()

	start := time.Now()
	var sent int64
	for sent < totalBytes {
		if limiter != nil {
			if err := limiter.WaitN(ctx, writeSize); err != nil {
				return fmt.Errorf("rate limiter: %w", err)
			}
		}
		n, err := clientSock.Write(payload)
		if err != nil {
			return fmt.Errorf("write: %w", err)
		}
		if n == 0 {
			time.Sleep(time.Millisecond)
			continue
		}
		sent += int64(n)
		bar.Add(n)
	}
	clientSock.CloseWrite()

	received := <-recvDone
	elapsed := time.Since(start)

	gbps := 8 * float64(received) / elapsed.Seconds() / 1e9
	fmt.Printf("\nmintcp bench: capacity=%d write_size=%d sent=%d received=%d in %v -> %.2f Gbit/s\n",
		capacity, writeSize, sent, received, elapsed, gbps)
	return nil
}

// reserveLoopbackPort asks the kernel for a free UDP port on 127.0.0.1 and
// releases it immediately, so NewUDPTransport can bind that address itself.
func reserveLoopbackPort() (*net.UDPAddr, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	if err != nil {
		return nil, err
	}
	addr := conn.LocalAddr().(*net.UDPAddr)
	if err := conn.Close(); err != nil {
		return nil, err
	}
	return addr, nil
}

func randomISN() wrap.Wrap32 {
	var b [4]byte
	_, _ = rand.Read(b[:])
	return wrap.New(uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]))
}
