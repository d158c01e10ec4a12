// Package transfer implements the session-scoped SFTP client adapter of
// spec.md §4.6: connect, stat, read the whole remote file into memory,
// close — one session per task.
package transfer

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"transformat/internal/xerrors"

	"github.com/google/uuid"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// DefaultTimeout is the 30s default named in spec.md §5 for file-transfer I/O.
const DefaultTimeout = 30 * time.Second

// Config names the SFTP endpoint and credentials for one session.
type Config struct {
	Host     string
	Port     string
	User     string
	Password string
	Timeout  time.Duration
}

// Session is a single connect->read->close lifetime, scoped to one task
// (spec.md §5's "file-transfer session: per-task, not shared").
type Session struct {
	cfg    Config
	client *ssh.Client
	sftp   *sftp.Client

	// ID correlates this session's log lines across its connect/read/
	// close lifetime; callers attach it to their own logger.
	ID string
}

// Open authenticates and binds an SFTP channel. Authentication failures
// and transport-level failures map to distinct system error codes.
func Open(ctx context.Context, cfg Config) (*Session, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	sshCfg := &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            []ssh.AuthMethod{ssh.Password(cfg.Password)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         timeout,
	}

	addr := net.JoinHostPort(cfg.Host, cfg.Port)
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeSFTPNetworkError, err, map[string]any{"host": addr})
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, sshCfg)
	if err != nil {
		_ = conn.Close()
		return nil, xerrors.Wrap(xerrors.CodeSFTPAuthFailed, err, map[string]any{"host": addr})
	}
	client := ssh.NewClient(sshConn, chans, reqs)

	sftpClient, err := sftp.NewClient(client)
	if err != nil {
		_ = client.Close()
		return nil, xerrors.Wrap(xerrors.CodeSFTPNetworkError, err, map[string]any{"host": addr})
	}

	return &Session{cfg: cfg, client: client, sftp: sftpClient, ID: uuid.NewString()}, nil
}

// ReadFile reads the entire remote file at path into memory. The design
// assumes batch-sized files, not multi-gigabyte streams (spec.md §4.6).
// A missing remote path yields FILE_NOT_FOUND (processing).
func (s *Session) ReadFile(path string) ([]byte, error) {
	f, err := s.sftp.Open(path)
	if err != nil {
		if isNotExist(err) {
			return nil, xerrors.New(xerrors.CodeFileNotFound, map[string]any{"path": path})
		}
		return nil, xerrors.Wrap(xerrors.CodeFileReadFailed, err, map[string]any{"path": path})
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeFileReadFailed, err, map[string]any{"path": path})
	}
	return data, nil
}

// Stat returns the size of the remote file, for logging/telemetry.
func (s *Session) Stat(path string) (int64, error) {
	info, err := s.sftp.Stat(path)
	if err != nil {
		if isNotExist(err) {
			return 0, xerrors.New(xerrors.CodeFileNotFound, map[string]any{"path": path})
		}
		return 0, xerrors.Wrap(xerrors.CodeFileReadFailed, err, map[string]any{"path": path})
	}
	return info.Size(), nil
}

// Close releases both the SFTP channel and the underlying transport.
func (s *Session) Close() error {
	var errs []error
	if s.sftp != nil {
		if err := s.sftp.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if s.client != nil {
		if err := s.client.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("closing sftp session: %v", errs)
	}
	return nil
}

func isNotExist(err error) bool {
	if sftpErr, ok := err.(*sftp.StatusError); ok {
		return sftpErr.FxCode() == sftp.ErrSSHFxNoSuchFile
	}
	return false
}
