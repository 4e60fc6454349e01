package main

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

// mockConn implements net.Conn for testing
type mockConn struct {
	readData  io.Reader
	writeData bytes.Buffer
	writes    int
	// failOnWrite makes the n-th Write call (1-based) and every later one fail
	failOnWrite int
	closeCount  int
	deadline    time.Time
	mu          sync.Mutex
}

var errBrokenPipe = errors.New("broken pipe")

func newMockConn(data string) *mockConn {
	return &mockConn{readData: strings.NewReader(data)}
}

func (m *mockConn) Read(b []byte) (int, error) {
	return m.readData.Read(b)
}

func (m *mockConn) Write(b []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	if m.failOnWrite > 0 && m.writes >= m.failOnWrite {
		return 0, errBrokenPipe
	}
	return m.writeData.Write(b)
}

func (m *mockConn) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeCount++
	return nil
}

func (m *mockConn) LocalAddr() net.Addr {
	return &net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 8080}
}

func (m *mockConn) RemoteAddr() net.Addr {
	return &net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 12345}
}

func (m *mockConn) SetDeadline(t time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deadline = t
	return nil
}

func (m *mockConn) SetReadDeadline(t time.Time) error  { return nil }
func (m *mockConn) SetWriteDeadline(t time.Time) error { return nil }

func (m *mockConn) output() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writeData.String()
}

// indexHTML is 12 bytes long
const indexHTML = "<h1>hi</h1>\n"

// newSiteRoot creates a document root holding index.html and img/logo.png.
func newSiteRoot(t *testing.T) string {
	t.Helper()
	root := filepath.Join(t.TempDir(), "www")
	writeFile(t, filepath.Join(root, "index.html"), []byte(indexHTML))
	writeFile(t, filepath.Join(root, "img", "logo.png"), bytes.Repeat([]byte{0x89}, 500))
	return root
}

func writeFile(t *testing.T, path string, content []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func newTestServer(root string) *Server {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewServer(Config{DocumentRoot: root, Timeout: 5 * time.Second}, logger)
}

// serveRaw feeds raw to a fresh connection and returns it once handled.
func serveRaw(s *Server, raw string) *mockConn {
	conn := newMockConn(raw)
	s.handleConnection(conn)
	return conn
}

func readResponse(t *testing.T, raw string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.ReadResponse(bufio.NewReader(strings.NewReader(raw)), nil)
	if err != nil {
		t.Fatalf("ReadResponse(%q): %v", raw, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	return resp, body
}
