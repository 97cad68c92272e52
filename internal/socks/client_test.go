package socks

import (
	"encoding/binary"
	"io"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeProxy is a scripted SOCKS5 server: enough of the server half to
// exercise the client handshake without the real relay.
type fakeProxy struct {
	t         *testing.T
	ln        net.Listener
	method    byte // method selected in the server hello
	replyCode byte // REP octet in the command reply
}

func startFakeProxy(t *testing.T, method, replyCode byte) *fakeProxy {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	p := &fakeProxy{t: t, ln: ln, method: method, replyCode: replyCode}
	go p.serve()
	t.Cleanup(func() { ln.Close() })
	return p
}

func (p *fakeProxy) addr() string { return p.ln.Addr().String() }

func (p *fakeProxy) serve() {
	for {
		conn, err := p.ln.Accept()
		if err != nil {
			return
		}
		go p.handle(conn)
	}
}

func (p *fakeProxy) handle(conn net.Conn) {
	defer conn.Close()

	greeting := make([]byte, 2)
	if _, err := io.ReadFull(conn, greeting); err != nil {
		return
	}
	methods := make([]byte, int(greeting[1]))
	if _, err := io.ReadFull(conn, methods); err != nil {
		return
	}
	conn.Write([]byte{version5, p.method})
	if p.method != methodNoAuth {
		return
	}

	head := make([]byte, 4)
	if _, err := io.ReadFull(conn, head); err != nil {
		return
	}
	host, port, ok := readRequestAddr(conn, head[3])
	if !ok {
		return
	}

	switch head[1] {
	case cmdConnect:
		// Reply, then act as the target: echo everything back.
		reply := []byte{version5, p.replyCode, 0x00, atypIPv4, 127, 0, 0, 1}
		reply = binary.BigEndian.AppendUint16(reply, 0)
		conn.Write(reply)
		if p.replyCode != replySucceeded {
			return
		}
		_ = host
		_ = port
		io.Copy(conn, conn)

	case cmdAssociate:
		relay, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
		if err != nil {
			return
		}
		defer relay.Close()

		reply := []byte{version5, replySucceeded, 0x00, atypIPv4, 127, 0, 0, 1}
		reply = binary.BigEndian.AppendUint16(reply, uint16(relay.LocalAddr().(*net.UDPAddr).Port))
		conn.Write(reply)

		// Echo one datagram back with a well-formed UDP header.
		buf := make([]byte, 64*1024)
		relay.SetReadDeadline(time.Now().Add(5 * time.Second))
		n, from, err := relay.ReadFromUDP(buf)
		if err != nil || n < 4 {
			return
		}
		targetHost, targetPort, payload, err := parseAddr(buf[3:n])
		if err != nil {
			return
		}
		out := []byte{0x00, 0x00, 0x00}
		out, err = appendAddr(out, net.JoinHostPort(targetHost, strconv.Itoa(targetPort)))
		if err != nil {
			return
		}
		relay.WriteToUDP(append(out, payload...), from)

		// Keep the control conn open until the client closes it.
		io.Copy(io.Discard, conn)
	}
}

func readRequestAddr(conn net.Conn, atyp byte) (string, int, bool) {
	var addrLen int
	switch atyp {
	case atypIPv4:
		addrLen = net.IPv4len
	case atypIPv6:
		addrLen = net.IPv6len
	case atypDomain:
		b := make([]byte, 1)
		if _, err := io.ReadFull(conn, b); err != nil {
			return "", 0, false
		}
		addrLen = int(b[0])
	default:
		return "", 0, false
	}
	body := make([]byte, addrLen+2)
	if _, err := io.ReadFull(conn, body); err != nil {
		return "", 0, false
	}
	host := string(body[:addrLen])
	if atyp != atypDomain {
		host = net.IP(body[:addrLen]).String()
	}
	return host, int(binary.BigEndian.Uint16(body[addrLen:])), true
}

func TestWaitConnectable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	require.NoError(t, WaitConnectable(ln.Addr().String(), 5*time.Second))
}

func TestWaitConnectableTimesOut(t *testing.T) {
	start := time.Now()
	err := WaitConnectable("127.0.0.1:1", 400*time.Millisecond)
	require.Error(t, err)
	require.Less(t, time.Since(start), 5*time.Second)
}

func TestConnectRelaysData(t *testing.T) {
	proxy := startFakeProxy(t, methodNoAuth, replySucceeded)
	c := &Client{ProxyAddr: proxy.addr(), Timeout: 5 * time.Second}

	conn, err := c.Connect("example.internal:9980")
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("ping through proxy"))
	require.NoError(t, err)

	buf := make([]byte, 64)
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	n, err := conn.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "ping through proxy", string(buf[:n]))
}

func TestConnectRejectsUnsupportedMethod(t *testing.T) {
	proxy := startFakeProxy(t, 0xFF, replySucceeded)
	c := &Client{ProxyAddr: proxy.addr(), Timeout: 2 * time.Second}

	_, err := c.Connect("example.internal:80")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported method")
}

func TestConnectSurfacesRefusal(t *testing.T) {
	proxy := startFakeProxy(t, methodNoAuth, 0x05)
	c := &Client{ProxyAddr: proxy.addr(), Timeout: 2 * time.Second}

	_, err := c.Connect("example.internal:80")
	require.Error(t, err)
	require.Contains(t, err.Error(), "connection refused")
}

func TestConnectFailsWhenProxyDown(t *testing.T) {
	c := &Client{ProxyAddr: "127.0.0.1:1", Timeout: time.Second}
	_, err := c.Connect("example.internal:80")
	require.Error(t, err)
}

func TestAssociateRoundTrip(t *testing.T) {
	proxy := startFakeProxy(t, methodNoAuth, replySucceeded)
	c := &Client{ProxyAddr: proxy.addr(), Timeout: 5 * time.Second}

	u, err := c.Associate()
	require.NoError(t, err)
	defer u.Close()

	require.NoError(t, u.Send("127.0.0.1:9999", []byte("udp payload")))

	payload, from, err := u.Receive()
	require.NoError(t, err)
	require.Equal(t, "udp payload", string(payload))
	require.Equal(t, "127.0.0.1:9999", from)
}

func TestAddrCodecRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		target string
	}{
		{"ipv4", "192.168.1.10:8080"},
		{"domain", "slave-tls:8080"},
		{"ipv6", "[::1]:443"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded, err := appendAddr(nil, tt.target)
			require.NoError(t, err)

			host, port, rest, err := parseAddr(encoded)
			require.NoError(t, err)
			require.Empty(t, rest)

			wantHost, wantPort, _ := net.SplitHostPort(tt.target)
			require.Equal(t, wantHost, host)
			require.Equal(t, wantPort, strconv.Itoa(port))
		})
	}
}

func TestParseAddrTruncated(t *testing.T) {
	cases := [][]byte{
		nil,
		{atypIPv4, 127, 0},
		{atypDomain},
		{atypDomain, 5, 'a', 'b'},
		{atypIPv4, 127, 0, 0, 1}, // missing port
		{0x42, 0, 0},
	}
	for _, c := range cases {
		_, _, _, err := parseAddr(c)
		require.Error(t, err)
	}
}
