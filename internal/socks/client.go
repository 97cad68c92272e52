// Package socks is a minimal SOCKS5 client used as test traffic generation
// for the relay's -D proxy mode.
//
// It implements only the client half of the version-5 handshake with no
// authentication, enough to prove end-to-end that the proxy relays TCP
// CONNECT and UDP ASSOCIATE payloads. The harness still never parses the
// relay's own wire protocol; this speaks the standard proxy protocol to it
// the way curl --socks5 and PySocks did in the original fixtures.
package socks

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"
)

const (
	version5       = 0x05
	methodNoAuth   = 0x00
	cmdConnect     = 0x01
	cmdAssociate   = 0x03
	atypIPv4       = 0x01
	atypDomain     = 0x03
	atypIPv6       = 0x04
	replySucceeded = 0x00
)

var replyMessages = map[byte]string{
	0x01: "general failure",
	0x02: "connection not allowed",
	0x03: "network unreachable",
	0x04: "host unreachable",
	0x05: "connection refused",
	0x06: "TTL expired",
	0x07: "command not supported",
	0x08: "address type not supported",
}

// Client dials targets through one SOCKS5 proxy.
type Client struct {
	// ProxyAddr is the host:port of the proxy (the relay's -D listener).
	ProxyAddr string

	// Timeout bounds each dial and handshake read.
	Timeout time.Duration
}

// WaitConnectable polls addr until a TCP connection succeeds or the window
// elapses. Used to wait for the relay's proxy port to come up.
func WaitConnectable(addr string, window time.Duration) error {
	deadline := time.Now().Add(window)
	var lastErr error

	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, time.Second)
		if err == nil {
			conn.Close()
			return nil
		}
		lastErr = err
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("%s not connectable within %s: %w", addr, window, lastErr)
}

// Connect performs the no-auth handshake and a CONNECT request for target
// (host:port). On success the returned conn relays bytes to the target.
func (c *Client) Connect(target string) (net.Conn, error) {
	conn, err := c.handshake()
	if err != nil {
		return nil, err
	}

	if _, _, err := c.request(conn, cmdConnect, target); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// FetchHTTP issues a bare HTTP/1.0 GET for path on target through the proxy
// and returns the full response (headers and body). Enough to look for a
// fixture token; not an HTTP client.
func (c *Client) FetchHTTP(target, path string) (string, error) {
	conn, err := c.Connect(target)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(c.timeout()))
	if _, err := fmt.Fprintf(conn, "GET %s HTTP/1.0\r\nHost: %s\r\n\r\n", path, target); err != nil {
		return "", fmt.Errorf("proxied request: %w", err)
	}

	body, err := io.ReadAll(conn)
	if err != nil {
		return "", fmt.Errorf("proxied response: %w", err)
	}
	return string(body), nil
}

// UDPConn is a UDP socket relaying datagrams through the proxy's UDP relay
// port, established by an ASSOCIATE request. Closing it also closes the
// controlling TCP connection, which ends the association.
type UDPConn struct {
	control net.Conn
	socket  *net.UDPConn
	relay   *net.UDPAddr
	timeout time.Duration
}

// Associate performs the UDP ASSOCIATE handshake and returns a socket for
// proxied datagrams.
func (c *Client) Associate() (*UDPConn, error) {
	control, err := c.handshake()
	if err != nil {
		return nil, err
	}

	// RFC 1928 allows 0.0.0.0:0 when the client does not know its source
	// address yet; the relay answers with its UDP relay endpoint.
	bindHost, bindPort, err := c.request(control, cmdAssociate, "0.0.0.0:0")
	if err != nil {
		control.Close()
		return nil, err
	}

	if bindHost == "0.0.0.0" || bindHost == "::" {
		// Some servers bind the wildcard; reach the relay via the proxy host.
		proxyHost, _, splitErr := net.SplitHostPort(c.ProxyAddr)
		if splitErr == nil {
			bindHost = proxyHost
		}
	}

	relay, err := net.ResolveUDPAddr("udp", net.JoinHostPort(bindHost, strconv.Itoa(bindPort)))
	if err != nil {
		control.Close()
		return nil, fmt.Errorf("resolve relay addr: %w", err)
	}

	socket, err := net.ListenUDP("udp", nil)
	if err != nil {
		control.Close()
		return nil, fmt.Errorf("udp socket: %w", err)
	}

	return &UDPConn{
		control: control,
		socket:  socket,
		relay:   relay,
		timeout: c.timeout(),
	}, nil
}

// Send relays one datagram to target (host:port) through the proxy,
// prepending the SOCKS5 UDP request header.
func (u *UDPConn) Send(target string, payload []byte) error {
	header := []byte{0x00, 0x00, 0x00} // RSV, RSV, FRAG
	addr, err := appendAddr(header, target)
	if err != nil {
		return err
	}

	u.socket.SetWriteDeadline(time.Now().Add(u.timeout))
	_, err = u.socket.WriteToUDP(append(addr, payload...), u.relay)
	return err
}

// Receive reads one relayed datagram and strips the SOCKS5 UDP header,
// returning the payload and the original sender address.
func (u *UDPConn) Receive() (payload []byte, from string, err error) {
	buf := make([]byte, 64*1024)
	u.socket.SetReadDeadline(time.Now().Add(u.timeout))

	n, _, err := u.socket.ReadFromUDP(buf)
	if err != nil {
		return nil, "", err
	}
	if n < 4 || buf[0] != 0x00 || buf[1] != 0x00 {
		return nil, "", fmt.Errorf("malformed UDP reply header")
	}
	if buf[2] != 0x00 {
		return nil, "", fmt.Errorf("fragmented UDP replies not supported")
	}

	host, port, rest, err := parseAddr(buf[3:n])
	if err != nil {
		return nil, "", err
	}
	return rest, net.JoinHostPort(host, strconv.Itoa(port)), nil
}

// Close ends the association and releases both sockets.
func (u *UDPConn) Close() error {
	u.socket.Close()
	return u.control.Close()
}

func (c *Client) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return 5 * time.Second
}

// handshake dials the proxy and negotiates the no-auth method.
func (c *Client) handshake() (net.Conn, error) {
	conn, err := net.DialTimeout("tcp", c.ProxyAddr, c.timeout())
	if err != nil {
		return nil, fmt.Errorf("dial proxy %s: %w", c.ProxyAddr, err)
	}
	conn.SetDeadline(time.Now().Add(c.timeout()))

	if _, err := conn.Write([]byte{version5, 1, methodNoAuth}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("greeting: %w", err)
	}

	hello := make([]byte, 2)
	if _, err := io.ReadFull(conn, hello); err != nil {
		conn.Close()
		return nil, fmt.Errorf("server hello: %w", err)
	}
	if hello[0] != version5 || hello[1] != methodNoAuth {
		conn.Close()
		return nil, fmt.Errorf("server selected unsupported method %#02x", hello[1])
	}

	conn.SetDeadline(time.Time{})
	return conn, nil
}

// request sends a command for target and parses the reply, returning the
// bound address the server reports.
func (c *Client) request(conn net.Conn, cmd byte, target string) (bindHost string, bindPort int, err error) {
	conn.SetDeadline(time.Now().Add(c.timeout()))
	defer conn.SetDeadline(time.Time{})

	req, err := appendAddr([]byte{version5, cmd, 0x00}, target)
	if err != nil {
		return "", 0, err
	}
	if _, err := conn.Write(req); err != nil {
		return "", 0, fmt.Errorf("request: %w", err)
	}

	// Read exactly the reply, no buffering: for CONNECT the same conn
	// carries relayed application bytes right after.
	head := make([]byte, 4) // VER REP RSV ATYP
	if _, err := io.ReadFull(conn, head); err != nil {
		return "", 0, fmt.Errorf("reply: %w", err)
	}
	if head[0] != version5 {
		return "", 0, fmt.Errorf("reply version %#02x", head[0])
	}
	if head[1] != replySucceeded {
		msg, ok := replyMessages[head[1]]
		if !ok {
			msg = fmt.Sprintf("reply code %#02x", head[1])
		}
		return "", 0, fmt.Errorf("proxy refused request: %s", msg)
	}

	var addrLen int
	switch head[3] {
	case atypIPv4:
		addrLen = net.IPv4len
	case atypIPv6:
		addrLen = net.IPv6len
	case atypDomain:
		lenByte := make([]byte, 1)
		if _, err := io.ReadFull(conn, lenByte); err != nil {
			return "", 0, fmt.Errorf("reply addr: %w", err)
		}
		addrLen = int(lenByte[0])
	default:
		return "", 0, fmt.Errorf("reply address type %#02x not supported", head[3])
	}

	body := make([]byte, addrLen+2)
	if _, err := io.ReadFull(conn, body); err != nil {
		return "", 0, fmt.Errorf("reply addr: %w", err)
	}

	switch head[3] {
	case atypDomain:
		bindHost = string(body[:addrLen])
	default:
		bindHost = net.IP(body[:addrLen]).String()
	}
	bindPort = int(binary.BigEndian.Uint16(body[addrLen:]))
	return bindHost, bindPort, nil
}

// appendAddr encodes host:port in SOCKS5 address format onto buf.
func appendAddr(buf []byte, target string) ([]byte, error) {
	host, portStr, err := net.SplitHostPort(target)
	if err != nil {
		return nil, fmt.Errorf("target %q: %w", target, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 0 || port > 65535 {
		return nil, fmt.Errorf("target port %q out of range", portStr)
	}

	if ip := net.ParseIP(host); ip != nil {
		if v4 := ip.To4(); v4 != nil {
			buf = append(buf, atypIPv4)
			buf = append(buf, v4...)
		} else {
			buf = append(buf, atypIPv6)
			buf = append(buf, ip.To16()...)
		}
	} else {
		if len(host) > 255 {
			return nil, fmt.Errorf("hostname %q too long", host)
		}
		buf = append(buf, atypDomain, byte(len(host)))
		buf = append(buf, host...)
	}

	return binary.BigEndian.AppendUint16(buf, uint16(port)), nil
}

// parseAddr decodes a SOCKS5 address, returning the remaining bytes.
func parseAddr(b []byte) (host string, port int, rest []byte, err error) {
	if len(b) < 1 {
		return "", 0, nil, fmt.Errorf("truncated address")
	}
	atyp := b[0]
	b = b[1:]

	switch atyp {
	case atypIPv4:
		if len(b) < net.IPv4len {
			return "", 0, nil, fmt.Errorf("truncated IPv4 address")
		}
		host = net.IP(b[:net.IPv4len]).String()
		b = b[net.IPv4len:]
	case atypIPv6:
		if len(b) < net.IPv6len {
			return "", 0, nil, fmt.Errorf("truncated IPv6 address")
		}
		host = net.IP(b[:net.IPv6len]).String()
		b = b[net.IPv6len:]
	case atypDomain:
		if len(b) < 1 {
			return "", 0, nil, fmt.Errorf("truncated domain address")
		}
		n := int(b[0])
		b = b[1:]
		if len(b) < n {
			return "", 0, nil, fmt.Errorf("truncated domain address")
		}
		host = string(b[:n])
		b = b[n:]
	default:
		return "", 0, nil, fmt.Errorf("address type %#02x not supported", atyp)
	}

	if len(b) < 2 {
		return "", 0, nil, fmt.Errorf("truncated port")
	}
	port = int(binary.BigEndian.Uint16(b[:2]))
	return host, port, b[2:], nil
}
