package probe

import (
	"context"
	"net"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"

	"netwatch/internal/domain"
)

// echoFunc performs one ICMP echo round trip. dialFunc opens one TCP
// connection. Both are injectable for tests.
type echoFunc func(ctx context.Context, ip net.IP, timeout time.Duration) (time.Duration, error)
type dialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// Chain measures latency with an escalating method chain: ICMP echo, then TCP
// connect to ports 53, 443 and 80 in that order, stopping at the first method
// that completes within the per-attempt timeout. Plain ICMP often requires
// privileges or is blocked, so TCP handshake time stands in for RTT, with the
// succeeding method recorded on the sample.
type Chain struct {
	timeout time.Duration
	logger  *zap.Logger
	lookup  func(ctx context.Context, host string) ([]net.IPAddr, error)
	echo    echoFunc
	dial    dialFunc
	now     func() time.Time
}

// NewChain builds the default probe chain with the given per-attempt timeout.
func NewChain(timeout time.Duration, logger *zap.Logger) *Chain {
	dialer := &net.Dialer{}
	return &Chain{
		timeout: timeout,
		logger:  logger.With(zap.String("component", "probe")),
		lookup:  net.DefaultResolver.LookupIPAddr,
		echo:    icmpEcho,
		dial:    dialer.DialContext,
		now:     time.Now,
	}
}

var tcpPorts = []struct {
	method domain.ProbeMethod
	port   string
}{
	{domain.MethodTcpDns, "53"},
	{domain.MethodTcpHttps, "443"},
	{domain.MethodTcpHttp, "80"},
}

// Probe runs the method chain against target (IP or hostname). A probe that
// fails on every method returns a valid Sample with absent latency; errors
// are never surfaced to the caller.
func (c *Chain) Probe(ctx context.Context, target string) domain.Sample {
	at := c.now()

	ip, err := c.resolveTarget(ctx, target)
	if err != nil {
		c.logger.Debug("target resolution failed",
			zap.String("target", target),
			zap.Error(err))
		return domain.NewFailedSample(target, at)
	}

	if latency, err := c.attemptICMP(ctx, ip); err == nil {
		return domain.NewSample(target, at, domain.MethodIcmp, latency)
	} else {
		c.logger.Debug("icmp probe failed",
			zap.String("target", target),
			zap.Error(err))
	}

	for _, p := range tcpPorts {
		latency, err := c.attemptTCP(ctx, ip, p.port)
		if err == nil {
			return domain.NewSample(target, at, p.method, latency)
		}
		c.logger.Debug("tcp probe failed",
			zap.String("target", target),
			zap.String("port", p.port),
			zap.Error(err))
	}

	return domain.NewFailedSample(target, at)
}

func (c *Chain) resolveTarget(ctx context.Context, target string) (net.IP, error) {
	if ip := net.ParseIP(target); ip != nil {
		return ip, nil
	}
	lookupCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	addrs, err := c.lookup(lookupCtx, target)
	if err != nil {
		return nil, err
	}
	return addrs[0].IP, nil
}

func (c *Chain) attemptICMP(ctx context.Context, ip net.IP) (time.Duration, error) {
	return c.echo(ctx, ip, c.timeout)
}

func (c *Chain) attemptTCP(ctx context.Context, ip net.IP, port string) (time.Duration, error) {
	dialCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	conn, err := c.dial(dialCtx, "tcp", net.JoinHostPort(ip.String(), port))
	if err != nil {
		return 0, err
	}
	latency := time.Since(start)
	conn.Close()
	return latency, nil
}

// icmpEcho sends one echo request over an unprivileged datagram ICMP socket
// and waits for the matching reply.
func icmpEcho(ctx context.Context, ip net.IP, timeout time.Duration) (time.Duration, error) {
	network := "udp4"
	listenAddr := "0.0.0.0"
	proto := 1 // iana.ProtocolICMP
	var echoType icmp.Type = ipv4.ICMPTypeEcho
	if ip.To4() == nil {
		network = "udp6"
		listenAddr = "::"
		proto = 58 // iana.ProtocolIPv6ICMP
		echoType = ipv6.ICMPTypeEchoRequest
	}

	conn, err := icmp.ListenPacket(network, listenAddr)
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return 0, err
	}

	msg := icmp.Message{
		Type: echoType,
		Code: 0,
		Body: &icmp.Echo{
			ID:   os.Getpid() & 0xffff,
			Seq:  1,
			Data: make([]byte, 56),
		},
	}
	wb, err := msg.Marshal(nil)
	if err != nil {
		return 0, err
	}

	start := time.Now()
	if _, err := conn.WriteTo(wb, &net.UDPAddr{IP: ip}); err != nil {
		return 0, err
	}

	rb := make([]byte, 1500)
	for {
		n, _, err := conn.ReadFrom(rb)
		if err != nil {
			return 0, err
		}
		rm, err := icmp.ParseMessage(proto, rb[:n])
		if err != nil {
			continue
		}
		if rm.Type == ipv4.ICMPTypeEchoReply || rm.Type == ipv6.ICMPTypeEchoReply {
			return time.Since(start), nil
		}
	}
}
