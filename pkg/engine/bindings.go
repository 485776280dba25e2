package engine

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os/exec"
	"strings"
)

// maxOutput caps the amount of engine output read per call.
const maxOutput = 4 << 20

// Command runs a local engine executable once per call:
//
//	<path> [args...] -text <text>
type Command struct {
	Path string
	Args []string
}

// NewCommand creates a Command binding.
func NewCommand(path string, args ...string) *Command {
	return &Command{Path: path, Args: args}
}

// Kind implements Engine.
func (c *Command) Kind() Kind { return KindCommand }

// Parse implements Engine.
func (c *Command) Parse(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyText
	}
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	args := append(append([]string{}, c.Args...), "-text", text)
	cmd := exec.CommandContext(ctx, c.Path, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return "", fmt.Errorf("engine: %s: %w: %s", c.Path, err, msg)
		}
		return "", fmt.Errorf("engine: %s: %w", c.Path, err)
	}
	return stdout.String(), nil
}

// Socket talks to an engine server over TCP. Each call opens a connection,
// writes the text as one line and reads the reply until the server closes
// the connection.
type Socket struct {
	Addr   string
	dialer net.Dialer
}

// NewSocket creates a Socket binding for addr (host:port).
func NewSocket(addr string) *Socket {
	return &Socket{Addr: addr}
}

// Kind implements Engine.
func (s *Socket) Kind() Kind { return KindSocket }

// Parse implements Engine.
func (s *Socket) Parse(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyText
	}
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	conn, err := s.dialer.DialContext(ctx, "tcp", s.Addr)
	if err != nil {
		return "", fmt.Errorf("engine: dial %s: %w", s.Addr, err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	w := bufio.NewWriter(conn)
	w.WriteString(strings.ReplaceAll(text, "\n", " "))
	w.WriteByte('\n')
	if err := w.Flush(); err != nil {
		return "", fmt.Errorf("engine: write %s: %w", s.Addr, err)
	}
	if tcp, ok := conn.(*net.TCPConn); ok {
		tcp.CloseWrite()
	}

	out, err := io.ReadAll(io.LimitReader(conn, maxOutput))
	if err != nil {
		return "", fmt.Errorf("engine: read %s: %w", s.Addr, err)
	}
	return string(out), nil
}

// WebService calls an HTTP engine endpoint with GET <url>?text=<text>.
type WebService struct {
	URL    string
	Client *http.Client
}

// NewWebService creates a WebService binding. A nil client uses
// http.DefaultClient.
func NewWebService(rawURL string, client *http.Client) *WebService {
	if client == nil {
		client = http.DefaultClient
	}
	return &WebService{URL: rawURL, Client: client}
}

// Kind implements Engine.
func (w *WebService) Kind() Kind { return KindWebService }

// Parse implements Engine.
func (w *WebService) Parse(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyText
	}
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	u, err := url.Parse(w.URL)
	if err != nil {
		return "", fmt.Errorf("engine: invalid url %q: %w", w.URL, err)
	}
	q := u.Query()
	q.Set("text", text)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", err
	}
	resp, err := w.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("engine: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxOutput))
	if err != nil {
		return "", fmt.Errorf("engine: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("engine: %s returned %d: %s", u.Host, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return string(body), nil
}
