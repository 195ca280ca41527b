package gateway

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// SSHConfig holds the connection settings shared by all remote calls.
// Hosts are addressed per call; authentication is key-based only, the
// tool never carries remote passwords.
type SSHConfig struct {
	// User is the SSH username on the feature instances
	User string

	// Port is the SSH port (default: 22)
	Port int

	// PrivateKeyPath is the path to the private key file. When empty,
	// the default ~/.ssh keys are tried in order.
	PrivateKeyPath string

	// KnownHostsPath is the path to the known_hosts file. When empty,
	// host key verification is disabled.
	KnownHostsPath string

	// StrictHostKeyChecking rejects unknown hosts when true
	StrictHostKeyChecking bool

	// ConnectTimeout is the timeout for establishing a connection
	ConnectTimeout time.Duration
}

// DefaultSSHConfig returns an SSHConfig with sensible defaults.
func DefaultSSHConfig(user string) SSHConfig {
	return SSHConfig{
		User:           user,
		Port:           22,
		ConnectTimeout: 30 * time.Second,
	}
}

// Validate checks if the configuration is valid.
func (c *SSHConfig) Validate() error {
	if c.User == "" {
		return fmt.Errorf("ssh user is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid ssh port: %d", c.Port)
	}
	if c.ConnectTimeout <= 0 {
		return fmt.Errorf("connect timeout must be positive")
	}
	return nil
}

// buildClientConfig creates an ssh.ClientConfig from the SSHConfig.
func (c *SSHConfig) buildClientConfig() (*ssh.ClientConfig, error) {
	keyPath := c.PrivateKeyPath
	if keyPath == "" {
		homeDir := os.Getenv("HOME")
		for _, candidate := range []string{
			filepath.Join(homeDir, ".ssh", "id_ed25519"),
			filepath.Join(homeDir, ".ssh", "id_rsa"),
			filepath.Join(homeDir, ".ssh", "id_ecdsa"),
		} {
			if _, err := os.Stat(candidate); err == nil {
				keyPath = candidate
				break
			}
		}
		if keyPath == "" {
			return nil, fmt.Errorf("no private key configured and no default key found")
		}
	}

	keyBytes, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key: %w", err)
	}
	signer, err := ssh.ParsePrivateKey(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	var hostKeyCallback ssh.HostKeyCallback
	if c.KnownHostsPath != "" && c.StrictHostKeyChecking {
		hostKeyCallback, err = knownhosts.New(c.KnownHostsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load known_hosts: %w", err)
		}
	} else {
		// Feature instances are short-lived and their host keys churn
		// on every create, so strict checking is opt-in.
		hostKeyCallback = ssh.InsecureIgnoreHostKey()
	}

	return &ssh.ClientConfig{
		User:            c.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: hostKeyCallback,
		Timeout:         c.ConnectTimeout,
	}, nil
}

// dial establishes an SSH connection to the given host, honoring ctx.
func (g *CommandGateway) dial(ctx context.Context, host string) (*ssh.Client, error) {
	clientConfig, err := g.ssh.buildClientConfig()
	if err != nil {
		return nil, &Error{Op: "connect", Target: host, ExitCode: -1, Err: err}
	}

	address := fmt.Sprintf("%s:%d", host, g.ssh.Port)
	log.Debug().Str("address", address).Msg("establishing SSH connection")

	connChan := make(chan *ssh.Client, 1)
	errChan := make(chan error, 1)
	go func() {
		client, err := ssh.Dial("tcp", address, clientConfig)
		if err != nil {
			errChan <- err
			return
		}
		connChan <- client
	}()

	select {
	case <-ctx.Done():
		return nil, &Error{Op: "connect", Target: host, ExitCode: -1, Err: ctx.Err()}
	case err := <-errChan:
		return nil, &Error{Op: "connect", Target: host, ExitCode: -1, Err: err}
	case client := <-connChan:
		return client, nil
	}
}

// RunRemote runs a shell command on the named remote host. A fresh
// connection is dialed per call; each orchestration step is a distinct
// remote call and the instances are short-lived, so pooling buys
// nothing here.
func (g *CommandGateway) RunRemote(ctx context.Context, host string, cmd string) (Result, error) {
	startTime := time.Now()

	log.Debug().
		Str("host", host).
		Str("command", cmd).
		Msg("executing remote command")

	client, err := g.dial(ctx, host)
	if err != nil {
		return Result{ExitCode: -1}, err
	}
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return Result{ExitCode: -1}, &Error{
			Op:       "run-remote",
			Target:   host,
			ExitCode: -1,
			Err:      fmt.Errorf("failed to create session: %w", err),
		}
	}
	defer session.Close()

	var stdoutBuf, stderrBuf bytes.Buffer
	session.Stdout = &stdoutBuf
	session.Stderr = &stderrBuf

	doneChan := make(chan error, 1)
	go func() {
		doneChan <- session.Run(cmd)
	}()

	var execErr error
	select {
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGTERM)
		time.Sleep(100 * time.Millisecond)
		_ = session.Signal(ssh.SIGKILL)
		execErr = ctx.Err()
	case execErr = <-doneChan:
	}

	result := Result{
		Stdout:   strings.TrimSpace(stdoutBuf.String()),
		Stderr:   strings.TrimSpace(stderrBuf.String()),
		Duration: time.Since(startTime),
	}

	log.Debug().
		Str("host", host).
		Str("command", cmd).
		Dur("duration", result.Duration).
		Err(execErr).
		Msg("remote command completed")

	if execErr != nil {
		if exitErr, ok := execErr.(*ssh.ExitError); ok {
			result.ExitCode = exitErr.ExitStatus()
			return result, &Error{
				Op:       "run-remote",
				Target:   host,
				ExitCode: result.ExitCode,
				Err:      fmt.Errorf("command exited with code %d: %s", result.ExitCode, result.Stderr),
			}
		}
		result.ExitCode = -1
		return result, &Error{Op: "run-remote", Target: host, ExitCode: -1, Err: execErr}
	}

	return result, nil
}

// Upload writes content to a file on the named remote host via SFTP,
// creating parent directories as needed.
func (g *CommandGateway) Upload(ctx context.Context, host string, remotePath string, content []byte, mode os.FileMode) error {
	client, err := g.dial(ctx, host)
	if err != nil {
		return err
	}
	defer client.Close()

	sftpClient, err := sftp.NewClient(client)
	if err != nil {
		return &Error{
			Op:       "upload",
			Target:   host,
			ExitCode: -1,
			Err:      fmt.Errorf("failed to create sftp client: %w", err),
		}
	}
	defer sftpClient.Close()

	if err := sftpClient.MkdirAll(filepath.Dir(remotePath)); err != nil {
		return &Error{
			Op:       "upload",
			Target:   host,
			ExitCode: -1,
			Err:      fmt.Errorf("failed to create remote directory: %w", err),
		}
	}

	remoteFile, err := sftpClient.Create(remotePath)
	if err != nil {
		return &Error{
			Op:       "upload",
			Target:   host,
			ExitCode: -1,
			Err:      fmt.Errorf("failed to create remote file: %w", err),
		}
	}
	defer remoteFile.Close()

	if _, err := remoteFile.Write(content); err != nil {
		return &Error{
			Op:       "upload",
			Target:   host,
			ExitCode: -1,
			Err:      fmt.Errorf("failed to write remote file: %w", err),
		}
	}

	if err := sftpClient.Chmod(remotePath, mode); err != nil {
		return &Error{
			Op:       "upload",
			Target:   host,
			ExitCode: -1,
			Err:      fmt.Errorf("failed to chmod remote file: %w", err),
		}
	}

	log.Debug().
		Str("host", host).
		Str("path", remotePath).
		Int("bytes", len(content)).
		Msg("file uploaded")

	return nil
}
