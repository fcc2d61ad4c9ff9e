package manager

import (
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Handler answers one IPC command line. The reply is sent back verbatim.
type Handler func(command string, args []string) (string, error)

type AppManager struct {
	log     *zap.Logger
	handler Handler
	// shutdown is called once when STOP arrives.
	shutdown func()

	mu       sync.Mutex
	listener net.Listener
	stops    []chan struct{}
	wg       sync.WaitGroup
}

func NewAppManager(log *zap.Logger, handler Handler, shutdown func()) *AppManager {
	if log == nil {
		log = zap.NewNop()
	}
	return &AppManager{log: log, handler: handler, shutdown: shutdown}
}

// SocketPath lives under $XDG_RUNTIME_DIR, falling back to the temp dir.
func SocketPath() string {
	var baseDir string
	if runtimeDir := os.Getenv("XDG_RUNTIME_DIR"); runtimeDir != "" {
		baseDir = runtimeDir
	} else {
		baseDir = os.TempDir()
	}

	socketDir := filepath.Join(baseDir, "nightdisplay")
	if err := os.MkdirAll(socketDir, 0o755); err != nil {
		return filepath.Join(os.TempDir(), "nightdisplay-socket.sock")
	}
	return filepath.Join(socketDir, "socket.sock")
}

// StartIPCServer serves connections until StopAll closes the listener.
func (m *AppManager) StartIPCServer() error {
	socketPath := SocketPath()
	_ = os.Remove(socketPath)

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.listener = listener
	m.mu.Unlock()

	m.log.Info("IPC server listening", zap.String("socket", socketPath))

	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			continue
		}
		go m.handleConnection(conn)
	}
}

func (m *AppManager) handleConnection(conn net.Conn) {
	defer conn.Close()

	buf := make([]byte, 1024)
	n, err := conn.Read(buf)
	if err != nil {
		return
	}

	fields := strings.Fields(string(buf[:n]))
	if len(fields) == 0 {
		_, _ = conn.Write([]byte("ERR: empty command"))
		return
	}
	command := strings.ToUpper(fields[0])
	args := fields[1:]

	switch command {
	case "STOP":
		m.log.Info("Received STOP via IPC, shutting down")
		_, _ = conn.Write([]byte("OK: Shutting down."))
		_ = conn.Close()

		if m.shutdown != nil {
			go m.shutdown()
		}
	case "STATUS":
		_, _ = conn.Write([]byte("OK: running"))
	default:
		if m.handler == nil {
			_, _ = conn.Write([]byte("ERR: unknown command"))
			return
		}
		reply, err := m.handler(command, args)
		if err != nil {
			_, _ = conn.Write([]byte("ERR: " + err.Error()))
			return
		}
		_, _ = conn.Write([]byte("OK: " + reply))
	}
}

// StartWatcher runs f until StopAll, restarting it after a panic or an
// early return.
func (m *AppManager) StartWatcher(name string, f func(stop <-chan struct{})) {
	stop := make(chan struct{})
	m.mu.Lock()
	m.stops = append(m.stops, stop)
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		for {
			func() {
				defer func() {
					if r := recover(); r != nil {
						m.log.Error("Watcher panic", zap.String("watcher", name), zap.Any("panic", r))
					}
				}()
				f(stop)
			}()

			select {
			case <-stop:
				return
			case <-time.After(2 * time.Second):
				m.log.Info("Restarting watcher", zap.String("watcher", name))
			}
		}
	}()
}

// StopAll stops every watcher and closes the IPC listener.
func (m *AppManager) StopAll() {
	m.mu.Lock()
	stops := m.stops
	listener := m.listener
	m.stops = nil
	m.listener = nil
	m.mu.Unlock()

	for _, s := range stops {
		close(s)
	}
	m.wg.Wait()

	if listener != nil {
		_ = listener.Close()
		_ = os.Remove(SocketPath())
	}
}

func ConnectIPC() (net.Conn, error) {
	return net.DialTimeout("unix", SocketPath(), 500*time.Millisecond)
}

// SendIPCCommand sends one command line and returns the raw reply.
func SendIPCCommand(cmd string) (string, error) {
	conn, err := ConnectIPC()
	if err != nil {
		return "", err
	}
	defer conn.Close()

	if _, err := conn.Write([]byte(cmd)); err != nil {
		return "", err
	}

	buf := make([]byte, 4096)
	n, err := conn.Read(buf)
	if err != nil && err != io.EOF {
		return "", err
	}

	return string(buf[:n]), nil
}
