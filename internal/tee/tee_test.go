package tee

import (
	"bytes"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTeeMirrorsAndEnqueues(t *testing.T) {
	var mirror bytes.Buffer
	input := "Listening on tcp://*:8080\nSession with 10.0.0.5 established\n"

	tee := Start(testLogger(), &mirror, strings.NewReader(input))

	select {
	case <-tee.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("tee did not finish")
	}

	if got := mirror.String(); got != input {
		t.Errorf("mirror = %q, want %q", got, input)
	}
	if got := tee.LinesRead(); got != 2 {
		t.Errorf("LinesRead() = %d, want 2", got)
	}

	q := tee.Queue()
	first, ok := q.TryDequeue()
	if !ok || first != "Listening on tcp://*:8080" {
		t.Errorf("first dequeue = (%q, %v)", first, ok)
	}
	second, ok := q.TryDequeue()
	if !ok || second != "Session with 10.0.0.5 established" {
		t.Errorf("second dequeue = (%q, %v)", second, ok)
	}
	if !q.Drained() {
		t.Error("queue should be drained after consuming all lines")
	}
}

func TestTeeClosesQueueOnEOF(t *testing.T) {
	tee := Start(testLogger(), io.Discard, strings.NewReader(""))

	select {
	case <-tee.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("tee did not finish")
	}

	if !tee.Queue().Closed() {
		t.Error("queue must be closed once the stream ends")
	}
	if _, ok := tee.Queue().TryDequeue(); ok {
		t.Error("unexpected line from empty stream")
	}
}

func TestTeeDoesNotBlockWithoutConsumer(t *testing.T) {
	// 10k lines with nobody dequeueing; the producer must still drain to EOF.
	var b strings.Builder
	for i := 0; i < 10000; i++ {
		b.WriteString("line of relay output that nobody is reading yet\n")
	}

	tee := Start(testLogger(), io.Discard, strings.NewReader(b.String()))

	select {
	case <-tee.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("tee stalled without a consumer")
	}

	if got := tee.Queue().Len(); got != 10000 {
		t.Errorf("queued lines = %d, want 10000", got)
	}
}

func TestDequeueTimeout(t *testing.T) {
	q := NewLineQueue()

	start := time.Now()
	_, ok := q.Dequeue(100 * time.Millisecond)
	elapsed := time.Since(start)

	if ok {
		t.Error("dequeue on empty queue reported a line")
	}
	if elapsed < 80*time.Millisecond {
		t.Errorf("dequeue returned after %v, before the window elapsed", elapsed)
	}
	if elapsed > 2*time.Second {
		t.Errorf("dequeue blocked for %v", elapsed)
	}
}

func TestDequeueWokenByAppend(t *testing.T) {
	q := NewLineQueue()

	go func() {
		time.Sleep(50 * time.Millisecond)
		q.Append("wake up")
	}()

	line, ok := q.Dequeue(5 * time.Second)
	if !ok || line != "wake up" {
		t.Errorf("Dequeue = (%q, %v)", line, ok)
	}
}

func TestDequeueWokenByClose(t *testing.T) {
	q := NewLineQueue()

	go func() {
		time.Sleep(50 * time.Millisecond)
		q.Close()
	}()

	start := time.Now()
	_, ok := q.Dequeue(10 * time.Second)
	if ok {
		t.Error("close must not produce a line")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("consumer hung %v past close", elapsed)
	}
	if !q.Drained() {
		t.Error("queue should report drained")
	}
}

func TestQueueOrderingUnderConcurrency(t *testing.T) {
	q := NewLineQueue()
	const n = 1000

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			q.Append(strings.Repeat("x", i%7+1))
		}
		q.Close()
	}()

	var got int
	for {
		_, ok := q.Dequeue(time.Second)
		if !ok {
			if q.Drained() {
				break
			}
			continue
		}
		got++
	}
	wg.Wait()

	if got != n {
		t.Errorf("consumed %d lines, want %d", got, n)
	}
}
