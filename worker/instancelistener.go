package worker

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"os"
)

// InstanceListener implements spec.md §4.5's optional single-instance
// coordination: a local Unix-domain-socket endpoint that accepts a second
// process's argument list and hands it to a callback, so the second
// process can print a short confirmation and exit while the first process
// keeps running. Windows named-pipe support is a Non-goal here (no
// Windows-specific code in this module).
type InstanceListener struct {
	socketPath string
	listener   net.Listener
}

// openFileMessage is the JSON payload a second process sends: its
// argument list (typically a file path to open).
type openFileMessage struct {
	Args []string `json:"args"`
}

// NewInstanceListener binds a Unix domain socket at socketPath, removing
// any stale socket file left by a crashed prior instance.
func NewInstanceListener(socketPath string) (*InstanceListener, error) {
	_ = os.Remove(socketPath)
	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, err
	}
	return &InstanceListener{socketPath: socketPath, listener: ln}, nil
}

// Serve accepts connections until ctx is cancelled, calling onOpen with
// each incoming argument list. It blocks; run it in its own goroutine.
func (l *InstanceListener) Serve(ctx context.Context, onOpen func(args []string)) error {
	go func() {
		<-ctx.Done()
		l.listener.Close()
	}()

	for {
		conn, err := l.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		go func() {
			defer conn.Close()
			var msg openFileMessage
			if err := json.NewDecoder(bufio.NewReader(conn)).Decode(&msg); err != nil {
				return
			}
			onOpen(msg.Args)
		}()
	}
}

// Close removes the socket file and stops accepting connections.
func (l *InstanceListener) Close() error {
	err := l.listener.Close()
	_ = os.Remove(l.socketPath)
	return err
}

// SendOpenRequest is called by a second process: it dials socketPath and
// sends its argument list, returning an error if no first instance is
// listening (the caller should then start normally instead of exiting).
func SendOpenRequest(socketPath string, args []string) error {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return err
	}
	defer conn.Close()
	return json.NewEncoder(conn).Encode(openFileMessage{Args: args})
}
