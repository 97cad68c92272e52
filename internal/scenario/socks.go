package scenario

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sableyard/relaycheck/internal/classify"
	"github.com/sableyard/relaycheck/internal/metrics"
	"github.com/sableyard/relaycheck/internal/proc"
	"github.com/sableyard/relaycheck/internal/socks"
	"github.com/sableyard/relaycheck/internal/tee"
	"github.com/sableyard/relaycheck/internal/watchdog"
)

// runSocks validates the tool's -D proxy mode: once a session is up, the
// master's SOCKS5 port must relay TCP CONNECT and UDP ASSOCIATE traffic, and
// the proxy must die with the session.
func runSocks(r *Runner) (classify.Verdict, error) {
	cfg := r.cfg
	listenAddr := fmt.Sprintf("tcp://*:%d", cfg.SocksListen)
	proxyAddr := fmt.Sprintf("127.0.0.1:%d", cfg.SocksPort)

	master, err := proc.Spawn(r.logger, cfg.BinPath,
		"master", "listen", listenAddr, "-D", strconv.Itoa(cfg.SocksPort))
	if err != nil {
		metrics.SpawnFailure()
		return classify.VerdictError, err
	}
	metrics.ProcessSpawned()

	mt := tee.Start(r.logger, r.mirror, master.Output())
	// Both processes outlive a single classification window; the watchdogs
	// get the full scenario budget.
	budget := 2 * cfg.Waits.DeadlinePositive
	mw := watchdog.Arm(r.logger, master, budget, metrics.WatchdogKill)
	defer func() {
		mw.Disarm()
		master.Terminate()
		master.Release()
		<-mt.Done()
	}()

	if !awaitListening(mt.Queue(), cfg.Waits.WaitPositive) {
		return classify.VerdictTimeout, fmt.Errorf("master never announced listener on %s", listenAddr)
	}

	slave, err := proc.Spawn(r.logger, cfg.BinPath,
		"slave", "connect", fmt.Sprintf("tcp://127.0.0.1:%d", cfg.SocksListen))
	if err != nil {
		metrics.SpawnFailure()
		return classify.VerdictError, err
	}
	metrics.ProcessSpawned()

	st := tee.Start(r.logger, r.mirror, slave.Output())
	sw := watchdog.Arm(r.logger, slave, budget, metrics.WatchdogKill)
	defer func() {
		sw.Disarm()
		slave.Kill()
		slave.Release()
		<-st.Done()
	}()

	if !awaitSession(mt.Queue(), cfg.Waits.WaitPositive) {
		return classify.VerdictTimeout, fmt.Errorf("session never established")
	}

	if err := socks.WaitConnectable(proxyAddr, 10*time.Second); err != nil {
		return classify.VerdictTimeout, fmt.Errorf("proxy port: %w", err)
	}

	client := &socks.Client{ProxyAddr: proxyAddr, Timeout: 5 * time.Second}

	// TCP CONNECT: the fixture token must round-trip through the proxy, and
	// a second request proves the proxy survives across connections.
	if err := fetchToken(client, cfg.FixtureAddr, cfg.FixtureToken); err != nil {
		return classify.VerdictError, fmt.Errorf("first proxied fetch: %w", err)
	}
	if err := fetchToken(client, cfg.FixtureAddr, cfg.FixtureToken); err != nil {
		return classify.VerdictError, fmt.Errorf("second proxied fetch: %w", err)
	}

	// UDP ASSOCIATE: a datagram through the relay must come back intact.
	if cfg.UDPEchoAddr != "" {
		if err := udpRoundTrip(client, cfg.UDPEchoAddr); err != nil {
			return classify.VerdictError, fmt.Errorf("udp associate: %w", err)
		}
	}

	// Proxy lifetime is bound to session lifetime: kill the slave, wait for
	// the master to notice, and the next fetch must fail.
	slave.Kill()
	if !awaitClosed(mt.Queue(), cfg.Waits.WaitNegative) {
		return classify.VerdictTimeout, fmt.Errorf("master never announced session close")
	}

	if resp, err := client.FetchHTTP(cfg.FixtureAddr, "/token"); err == nil {
		if cfg.FixtureToken == "" || strings.Contains(resp, cfg.FixtureToken) {
			return classify.VerdictError, fmt.Errorf("proxy still relaying after session close")
		}
	}

	return classify.VerdictSession, nil
}

// fetchToken issues a proxied GET for /token and verifies the fixture token
// is present. With no token configured, any non-empty response passes.
func fetchToken(c *socks.Client, fixtureAddr, token string) error {
	resp, err := c.FetchHTTP(fixtureAddr, "/token")
	if err != nil {
		return err
	}
	if token == "" {
		if len(resp) == 0 {
			return fmt.Errorf("empty response from fixture")
		}
		return nil
	}
	if !strings.Contains(resp, token) {
		return fmt.Errorf("token %q not found in response", token)
	}
	return nil
}

// udpRoundTrip sends one datagram to the echo fixture through the proxy's
// UDP relay and verifies the payload comes back unchanged.
func udpRoundTrip(c *socks.Client, echoAddr string) error {
	u, err := c.Associate()
	if err != nil {
		return err
	}
	defer u.Close()

	payload := []byte("relaycheck-udp-7319")
	if err := u.Send(echoAddr, payload); err != nil {
		return fmt.Errorf("send: %w", err)
	}

	got, _, err := u.Receive()
	if err != nil {
		return fmt.Errorf("receive: %w", err)
	}
	if string(got) != string(payload) {
		return fmt.Errorf("payload mismatch: sent %q, got %q", payload, got)
	}
	return nil
}
