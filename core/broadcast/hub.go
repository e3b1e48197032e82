package broadcast

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"
)

// writeWait bounds a single send so one slow client cannot hold up the rest.
const writeWait = 2 * time.Second

var newlineReplacer = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

type client struct {
	conn net.Conn
}

// Hub multicasts newline-terminated text lines to every connected client.
// A client that fails a single send is dropped for good.
type Hub struct {
	writeWait time.Duration

	mu       sync.Mutex
	clients  map[*client]struct{}
	listener net.Listener
	closed   bool

	acceptDone chan struct{}
}

type HubOption func(*Hub)

func WithWriteWait(wait time.Duration) HubOption {
	return func(h *Hub) {
		if wait > 0 {
			h.writeWait = wait
		}
	}
}

func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		writeWait: writeWait,
		clients:   map[*client]struct{}{},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Listen binds host:port and accepts clients in the background.
func (h *Hub) Listen(host string, port int) error {
	listener, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return fmt.Errorf("failed to listen for display clients: %w", err)
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		listener.Close()
		return fmt.Errorf("hub closed")
	}
	if h.listener != nil {
		h.mu.Unlock()
		listener.Close()
		return fmt.Errorf("hub already listening on %s", h.listener.Addr())
	}
	h.listener = listener
	h.acceptDone = make(chan struct{})
	h.mu.Unlock()

	logger.Info("broadcast hub listening", "address", listener.Addr().String())
	go h.acceptLoop(listener, h.acceptDone)
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (h *Hub) Addr() net.Addr {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.listener == nil {
		return nil
	}
	return h.listener.Addr()
}

func (h *Hub) acceptLoop(listener net.Listener, done chan struct{}) {
	defer close(done)
	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			logger.Warn("failed to accept display client", "error", err)
			continue
		}
		h.Add(conn)
	}
}

// Add registers an already connected client.
func (h *Hub) Add(conn net.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		conn.Close()
		return
	}
	h.clients[&client{conn: conn}] = struct{}{}
	logger.Info("display client connected", "remote", conn.RemoteAddr().String(), "clients", len(h.clients))
}

// Broadcast sends message as one line to every client. Embedded line breaks
// are replaced with spaces.
func (h *Hub) Broadcast(message string) {
	line := []byte(newlineReplacer.Replace(strings.TrimRight(message, "\r\n")) + "\n")

	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		if err := h.send(c, line); err != nil {
			delete(h.clients, c)
			c.conn.Close()
			logger.Info("display client dropped", "remote", c.conn.RemoteAddr().String(), "error", err)
		}
	}
}

func (h *Hub) send(c *client, line []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(h.writeWait)); err != nil {
		return err
	}
	_, err := c.conn.Write(line)
	return err
}

// Len reports the number of active clients.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close stops accepting and disconnects every client.
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	listener, acceptDone := h.listener, h.acceptDone

	var errs []error
	for c := range h.clients {
		if err := c.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = append(errs, err)
		}
	}
	clear(h.clients)
	h.mu.Unlock()

	if listener != nil {
		if err := listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = append(errs, err)
		}
		<-acceptDone
	}
	return errors.Join(errs...)
}
