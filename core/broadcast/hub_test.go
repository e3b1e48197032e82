package broadcast

import (
	"bufio"
	"net"
	"strconv"
	"testing"
	"time"
)

// pipeClient attaches one end of a net.Pipe to the hub and returns the lines
// read from the other end.
func pipeClient(t *testing.T, hub *Hub) (net.Conn, <-chan string) {
	t.Helper()

	server, remote := net.Pipe()
	hub.Add(server)

	lines := make(chan string, 8)
	go func() {
		defer close(lines)
		reader := bufio.NewReader(remote)
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				return
			}
			lines <- line
		}
	}()
	t.Cleanup(func() { remote.Close() })
	return remote, lines
}

func expectLine(t *testing.T, lines <-chan string, expected string) {
	t.Helper()

	select {
	case line := <-lines:
		if line != expected {
			t.Fatalf("expected line %q, got %q", expected, line)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for %q", expected)
	}
}

func waitForCondition(t *testing.T, timeout time.Duration, description string, condition func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Fatalf("timed out waiting for %s", description)
}

func TestBroadcastReachesEveryClient(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	readers := []<-chan string{}
	for range 3 {
		_, lines := pipeClient(t, hub)
		readers = append(readers, lines)
	}

	hub.Broadcast("AI:你好")
	for _, lines := range readers {
		expectLine(t, lines, "AI:你好\n")
	}
	if got := hub.Len(); got != 3 {
		t.Fatalf("expected 3 clients, got %d", got)
	}
}

func TestBroadcastDropsFailedClient(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	_, first := pipeClient(t, hub)
	dead, _ := pipeClient(t, hub)
	_, third := pipeClient(t, hub)
	dead.Close()

	hub.Broadcast("今天天气怎么样")
	if got := hub.Len(); got != 2 {
		t.Fatalf("expected failed client to be removed, got %d clients", got)
	}
	expectLine(t, first, "今天天气怎么样\n")
	expectLine(t, third, "今天天气怎么样\n")

	hub.Broadcast("AI:晴天")
	if got := hub.Len(); got != 2 {
		t.Fatalf("expected removal to be permanent, got %d clients", got)
	}
	expectLine(t, first, "AI:晴天\n")
	expectLine(t, third, "AI:晴天\n")
}

func TestBroadcastDropsSlowClient(t *testing.T) {
	hub := NewHub(WithWriteWait(50 * time.Millisecond))
	defer hub.Close()

	server, remote := net.Pipe()
	defer remote.Close()
	hub.Add(server)
	_, lines := pipeClient(t, hub)

	hub.Broadcast("hello")
	expectLine(t, lines, "hello\n")
	if got := hub.Len(); got != 1 {
		t.Fatalf("expected client that never reads to be dropped, got %d clients", got)
	}
}

func TestBroadcastKeepsOneLinePerMessage(t *testing.T) {
	hub := NewHub()
	defer hub.Close()
	_, lines := pipeClient(t, hub)

	hub.Broadcast("AI:第一行\n第二行\r\n")
	expectLine(t, lines, "AI:第一行 第二行\n")
}

func TestBroadcastWithoutClients(t *testing.T) {
	hub := NewHub()
	defer hub.Close()
	hub.Broadcast("nobody listening")
	if got := hub.Len(); got != 0 {
		t.Fatalf("expected no clients, got %d", got)
	}
}

func TestListenAcceptsTCPClients(t *testing.T) {
	hub := NewHub()
	if err := hub.Listen("127.0.0.1", 0); err != nil {
		t.Fatalf("expected listen to succeed, got %v", err)
	}

	port := hub.Addr().(*net.TCPAddr).Port
	conn, err := net.Dial("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	if err != nil {
		t.Fatalf("failed to dial hub: %v", err)
	}
	defer conn.Close()

	waitForCondition(t, time.Second, "client registration", func() bool { return hub.Len() == 1 })

	hub.Broadcast("AI:你好")
	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil || line != "AI:你好\n" {
		t.Fatalf("expected broadcast line, got %q err %v", line, err)
	}

	if err := hub.Close(); err != nil {
		t.Fatalf("expected close to succeed, got %v", err)
	}
	if got := hub.Len(); got != 0 {
		t.Fatalf("expected no clients after close, got %d", got)
	}
	if err := hub.Close(); err != nil {
		t.Fatalf("expected second close to be a no-op, got %v", err)
	}
	if err := hub.Listen("127.0.0.1", 0); err == nil {
		t.Fatalf("expected listen on a closed hub to fail")
	}
}
