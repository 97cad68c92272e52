package scenario

import (
	"errors"
	"fmt"
	"time"

	"github.com/sableyard/relaycheck/internal/classify"
	"github.com/sableyard/relaycheck/internal/metrics"
	"github.com/sableyard/relaycheck/internal/proc"
	"github.com/sableyard/relaycheck/internal/tee"
	"github.com/sableyard/relaycheck/internal/term"
	"github.com/sableyard/relaycheck/internal/watchdog"
)

// stepTimeout bounds each individual expect step of the interactive script.
const stepTimeout = 10 * time.Second

// runPTY validates the tool's --exec --pty mode end to end: the master
// listens and serves a shell, a slave connects attached to a real terminal,
// and the driver scripts a command/response session against it.
//
// Shell command literals below split their expected output tokens with
// quoting (echo TTY_'Y'ES) so the terminal echo of the typed command can
// never satisfy the expectation meant for the command's output.
func runPTY(r *Runner) (classify.Verdict, error) {
	cfg := r.cfg
	addr := fmt.Sprintf("tcp://*:%d", cfg.PTYPort)

	master, err := proc.Spawn(r.logger, cfg.BinPath,
		"master", "listen", addr, "--exec", cfg.ExecShell, "--pty")
	if err != nil {
		metrics.SpawnFailure()
		return classify.VerdictError, err
	}
	metrics.ProcessSpawned()

	mt := tee.Start(r.logger, r.mirror, master.Output())
	// The master stays up across the whole script, so its watchdog gets the
	// full scenario budget rather than one classification deadline.
	w := watchdog.Arm(r.logger, master, 2*cfg.Waits.DeadlinePositive, metrics.WatchdogKill)
	defer func() {
		w.Disarm()
		master.Terminate()
		master.Release()
		<-mt.Done()
	}()

	if !awaitListening(mt.Queue(), cfg.Waits.WaitPositive) {
		return classify.VerdictTimeout, fmt.Errorf("master never announced listener on %s", addr)
	}

	d, err := term.Start(r.logger, r.mirror, cfg.BinPath,
		"slave", "connect", fmt.Sprintf("tcp://127.0.0.1:%d", cfg.PTYPort))
	if err != nil {
		metrics.SpawnFailure()
		return classify.VerdictError, err
	}
	metrics.ProcessSpawned()
	defer d.Close()

	if cfg.PromptMarker != "" {
		d.SetPromptMarker(cfg.PromptMarker)
	}

	if err := ptyScript(d); err != nil {
		var timeoutErr *term.PatternTimeoutError
		if errors.As(err, &timeoutErr) {
			return classify.VerdictTimeout, err
		}
		return classify.VerdictError, err
	}

	// The master must notice the peer going away.
	if !awaitClosed(mt.Queue(), cfg.Waits.WaitNegative) {
		return classify.VerdictTimeout, fmt.Errorf("master never announced session close")
	}

	return classify.VerdictSession, nil
}

// ptyScript drives the scripted command/response sequence against an
// established remote shell.
func ptyScript(d *term.Driver) error {
	if err := d.EstablishPrompt(stepTimeout); err != nil {
		return fmt.Errorf("establish prompt: %w", err)
	}

	// The remote side must present a real terminal, not a pipe.
	if err := d.SendLine("test -t 0 && echo TTY_'Y'ES || echo TTY_'N'O"); err != nil {
		return err
	}
	idx, err := d.Expect(stepTimeout, term.String("TTY_YES"), term.String("TTY_NO"))
	if err != nil {
		return fmt.Errorf("tty detection: %w", err)
	}
	if idx != 0 {
		return fmt.Errorf("remote stdin is not a terminal")
	}
	if err := d.ExpectPrompt(stepTimeout); err != nil {
		return fmt.Errorf("prompt after tty check: %w", err)
	}

	// Echo round trip.
	const token = "rc-token-7319"
	if err := d.SendLine("echo rc-token-'7319'"); err != nil {
		return err
	}
	if _, err := d.Expect(stepTimeout, term.String(token)); err != nil {
		return fmt.Errorf("echo round trip: %w", err)
	}
	if err := d.ExpectPrompt(stepTimeout); err != nil {
		return fmt.Errorf("prompt after echo: %w", err)
	}

	// Up-arrow must recall the echo command from history and re-run it.
	if err := d.Send("\x1b[A\r"); err != nil {
		return err
	}
	if _, err := d.Expect(stepTimeout, term.String(token)); err != nil {
		return fmt.Errorf("history recall: %w", err)
	}
	if err := d.ExpectPrompt(stepTimeout); err != nil {
		return fmt.Errorf("prompt after history recall: %w", err)
	}

	// Ctrl+C must abort a long foreground command and hand the prompt back
	// within seconds, not after the sleep completes.
	if err := d.SendLine("sleep 30"); err != nil {
		return err
	}
	time.Sleep(500 * time.Millisecond)
	if err := d.SendInterrupt(); err != nil {
		return err
	}
	if err := d.ExpectPrompt(5 * time.Second); err != nil {
		return fmt.Errorf("interrupt did not return prompt: %w", err)
	}

	// Window size changes must propagate to the remote terminal.
	if err := d.SetWindowSize(24, 120); err != nil {
		return fmt.Errorf("set window size: %w", err)
	}
	if err := d.SendLine(`echo cols=$(tput cols)`); err != nil {
		return err
	}
	if _, err := d.Expect(stepTimeout, term.String("cols=120")); err != nil {
		return fmt.Errorf("window size propagation: %w", err)
	}
	if err := d.ExpectPrompt(stepTimeout); err != nil {
		return fmt.Errorf("prompt after resize: %w", err)
	}

	// Graceful exit ends the terminal stream.
	if err := d.SendLine("exit"); err != nil {
		return err
	}
	if _, err := d.Expect(stepTimeout, term.EOF()); err != nil {
		return fmt.Errorf("exit did not end stream: %w", err)
	}

	return nil
}
