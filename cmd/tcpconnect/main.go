// tcpconnect bridges stdin/stdout over a userspace TCP connection carried
// inside IPv4-over-TUN, supplementing original_source/tools/BTCP.cpp: run
// with a hostname and port to connect, or -l <port> to listen.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net"
	"net/netip"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/miekg/dns"
	"golang.org/x/term"

	"github.com/gopherlabs/mintcp/internal/adapter"
	"github.com/gopherlabs/mintcp/internal/config"
	"github.com/gopherlabs/mintcp/internal/pcap"
	"github.com/gopherlabs/mintcp/internal/socket"
	"github.com/gopherlabs/mintcp/internal/tcp"
	"github.com/gopherlabs/mintcp/internal/wrap"
)

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: %s [options] <host> <port>
       %s -l [options] <port>

  -l              listen (server) mode
  -a <addr>       source address in client mode (default %s)
  -s <port>       source port in client mode (default random)
  -w <winsz>      receive window, in bytes (default %d)
  -t <tmout>      initial retransmission timeout, in ms (default %d)
  -d <tundev>     TUN device name (default %s)
  -fixed-isn <n>  use a fixed initial sequence number, for reproducible captures
  -pcap <file>    dump every packet that crosses the adapter to a libpcap file
  -debug-addr <a> expose connection internals as JSON at http://<a>/status
`, os.Args[0], os.Args[0], config.DefaultLocalAddress, 64000, 1000, config.DefaultDevice)
}

type options struct {
	listen    bool
	srcAddr   string
	srcPort   int
	window    int
	timeout   int
	tunDev    string
	fixedISN  int64
	hasISN    bool
	pcapPath  string
	debugAddr string
}

func main() {
	var opts options
	var fixedISN = flag.Int64("fixed-isn", -1, "fixed initial sequence number (-1 = random)")
	flag.BoolVar(&opts.listen, "l", false, "listen mode")
	flag.StringVar(&opts.srcAddr, "a", config.DefaultLocalAddress, "source address (client mode)")
	flag.IntVar(&opts.srcPort, "s", 0, "source port (client mode, 0 = random)")
	flag.IntVar(&opts.window, "w", 0, "receive window in bytes")
	flag.IntVar(&opts.timeout, "t", 0, "initial rt_timeout in ms")
	flag.StringVar(&opts.tunDev, "d", config.DefaultDevice, "TUN device name")
	flag.StringVar(&opts.pcapPath, "pcap", "", "dump packets to a libpcap file")
	flag.StringVar(&opts.debugAddr, "debug-addr", "", "expose connection internals over HTTP")
	flag.Usage = usage
	flag.Parse()

	if *fixedISN >= 0 {
		opts.hasISN = true
		opts.fixedISN = *fixedISN
	}

	if err := run(opts, flag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "tcpconnect: %v\n", err)
		os.Exit(1)
	}
}

func run(opts options, args []string) error {
	listen := opts.listen
	srcAddr := opts.srcAddr
	srcPort := opts.srcPort
	window := opts.window
	timeout := opts.timeout
	tunDev := opts.tunDev
	if listen {
		if len(args) != 1 {
			usage()
			return errors.New("listen mode requires exactly one argument: <port>")
		}
	} else if len(args) != 2 {
		usage()
		return errors.New("connect mode requires exactly two arguments: <host> <port>")
	}

	cfg := config.Default()
	if window != 0 {
		cfg.TCP.RecvCapacity = window
		cfg.TCP.SendCapacity = window
	}
	if timeout != 0 {
		cfg.TCP.RTTimeoutMs = uint16(timeout)
	}
	cfg.Adapter.Device = tunDev

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var transport adapter.Transport
	tun, err := adapter.NewTUN(tunDev)
	if err != nil {
		return fmt.Errorf("open tun device %s: %w", tunDev, err)
	}
	defer tun.Close()
	transport = tun

	if opts.pcapPath != "" {
		f, err := os.Create(opts.pcapPath)
		if err != nil {
			return fmt.Errorf("open pcap file %s: %w", opts.pcapPath, err)
		}
		defer f.Close()
		w := pcap.NewWriter(f)
		if err := w.WriteFileHeader(65535, pcap.LinkTypeRaw); err != nil {
			return fmt.Errorf("write pcap header: %w", err)
		}
		transport = adapter.WithCapture(transport, w)
	}

	isn := randomISN()
	if opts.hasISN {
		isn = wrap.New(uint32(opts.fixedISN))
	}

	var (
		source, destination netip.AddrPort
		sock                *socket.Socket
	)

	if listen {
		port, err := strconv.ParseUint(args[0], 10, 16)
		if err != nil || port == 0 {
			return fmt.Errorf("invalid listen port %q", args[0])
		}
		source = netip.AddrPortFrom(netip.IPv4Unspecified(), uint16(port))

		link := adapter.New(transport, adapter.Config{Source: source, Listening: true})
		sock, err = socket.ListenAndAccept(ctx, link, isn, cfg.ToTCPConfig(), nil)
		if err != nil {
			return fmt.Errorf("listen_and_accept: %w", err)
		}
	} else {
		host, portStr := args[0], args[1]
		port, err := strconv.ParseUint(portStr, 10, 16)
		if err != nil {
			return fmt.Errorf("invalid port %q", portStr)
		}
		destIP, err := resolveHost(host)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", host, err)
		}
		destination = netip.AddrPortFrom(destIP, uint16(port))

		srcIP, err := netip.ParseAddr(srcAddr)
		if err != nil {
			return fmt.Errorf("invalid source address %q: %w", srcAddr, err)
		}
		if srcPort == 0 {
			srcPort = 1024 + rand.Intn(64000)
		}
		source = netip.AddrPortFrom(srcIP, uint16(srcPort))

		link := adapter.New(transport, adapter.Config{Source: source, Destination: destination})
		sock, err = socket.Connect(ctx, link, isn, cfg.ToTCPConfig(), nil)
		if err != nil {
			return fmt.Errorf("connect: %w", err)
		}
	}
	defer sock.Close()

	if opts.debugAddr != "" {
		if err := sock.ServeDebug(opts.debugAddr); err != nil {
			return fmt.Errorf("debug http: %w", err)
		}
		slog.Info("tcpconnect: debug http listening", "addr", sock.DebugAddr())
	}

	if term.IsTerminal(int(os.Stdin.Fd())) {
		oldState, err := term.MakeRaw(int(os.Stdin.Fd()))
		if err == nil {
			defer term.Restore(int(os.Stdin.Fd()), oldState)
		}
	}

	go watchRetransmissions(ctx, sock)

	return bidirectionalCopy(ctx, sock)
}

// watchRetransmissions enforces original_source/utils/tcp_config.h's
// MAX_RETX_ATTEMPTS policy: the core leaves tearing the connection down to
// the caller, so after 8 consecutive retransmissions without a new ack, this
// gives up and aborts the connection (Socket.Abort) rather than retrying
// forever.
func watchRetransmissions(ctx context.Context, sock *socket.Socket) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if sock.ConsecutiveRetransmissions() >= tcp.MaxRetxAttempts {
				slog.Warn("tcpconnect: giving up after max retransmission attempts", "attempts", tcp.MaxRetxAttempts)
				sock.Abort()
				return
			}
		}
	}
}

// bidirectionalCopy pumps stdin into sock and sock into stdout
// concurrently, supplementing original_source/utils/stream_copy.h's
// bidirectional_stream_copy, returning once both directions finish or fail.
func bidirectionalCopy(ctx context.Context, sock *socket.Socket) error {
	errCh := make(chan error, 2)

	go func() {
		_, err := io.Copy(writerFunc(sock.Write), os.Stdin)
		sock.CloseWrite()
		errCh <- err
	}()
	go func() {
		_, err := io.Copy(os.Stdout, readerFunc(sock.Read))
		if errors.Is(err, io.EOF) {
			err = nil
		}
		errCh <- err
	}()

	var firstErr error
	for i := 0; i < 2; i++ {
		if err := <-errCh; err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }

type readerFunc func([]byte) (int, error)

func (f readerFunc) Read(p []byte) (int, error) { return f(p) }

func randomISN() wrap.Wrap32 {
	return wrap.New(rand.Uint32())
}

// resolveHost resolves host to an IPv4 address, trying a literal parse
// first and falling back to a DNS A-record lookup via miekg/dns against the
// system resolver.
func resolveHost(host string) (netip.Addr, error) {
	if addr, err := netip.ParseAddr(host); err == nil {
		return addr, nil
	}

	resolverAddr := systemResolver()
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(host), dns.TypeA)
	m.RecursionDesired = true

	client := new(dns.Client)
	client.Timeout = 3 * time.Second

	resp, _, err := client.Exchange(m, resolverAddr)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("dns query: %w", err)
	}
	for _, rr := range resp.Answer {
		if a, ok := rr.(*dns.A); ok {
			addr, ok := netip.AddrFromSlice(a.A.To4())
			if ok {
				return addr, nil
			}
		}
	}
	return netip.Addr{}, fmt.Errorf("no A record found for %s", host)
}

func systemResolver() string {
	f, err := os.Open("/etc/resolv.conf")
	if err == nil {
		defer f.Close()
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			fields := strings.Fields(scanner.Text())
			if len(fields) == 2 && fields[0] == "nameserver" {
				if ip := net.ParseIP(fields[1]); ip != nil {
					return net.JoinHostPort(fields[1], "53")
				}
			}
		}
	}
	slog.Warn("tcpconnect: no usable resolv.conf entry, falling back to 8.8.8.8")
	return "8.8.8.8:53"
}
