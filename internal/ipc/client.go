package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Client dials a running daemon's socket and issues framed requests. The
// CLI's run/status/doctor commands use this instead of talking to the
// engine in-process.
type Client struct {
	conn    net.Conn
	r       *bufio.Reader
	version string
}

// Dial connects to <stateDir>/daemon.sock. The dial sets no timeout of
// its own; it is bounded only by ctx.
func Dial(ctx context.Context, stateDir, version string) (*Client, error) {
	return DialPath(ctx, filepath.Join(stateDir, SocketName), version)
}

// DialPath connects to an explicit socket path. Hook scripts use this:
// the agent CLI hands them the daemon's socket path directly, with no
// state directory in scope to derive it from.
func DialPath(ctx context.Context, sockPath, version string) (*Client, error) {
	d := net.Dialer{}
	conn, err := d.DialContext(ctx, "unix", sockPath)
	if err != nil {
		return nil, fmt.Errorf("ipc: dial daemon: %w", err)
	}
	return &Client{conn: conn, r: bufio.NewReader(conn), version: version}, nil
}

// DialRetry is Dial with exponential backoff, for a CLI invoked in the
// narrow window right after it has just spawned the daemon and the
// socket file hasn't shown up yet.
func DialRetry(ctx context.Context, stateDir, version string) (*Client, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 20 * time.Millisecond
	b.MaxInterval = 500 * time.Millisecond
	b.MaxElapsedTime = 5 * time.Second

	var client *Client
	err := backoff.Retry(func() error {
		c, dialErr := Dial(ctx, stateDir, version)
		if dialErr != nil {
			return dialErr
		}
		client = c
		return nil
	}, backoff.WithContext(b, ctx))
	if err != nil {
		return nil, fmt.Errorf("ipc: dial daemon after retries: %w", err)
	}
	return client, nil
}

// Call sends method with params marshaled to JSON and decodes the
// response's Result into out (if non-nil and the call succeeded).
func (c *Client) Call(ctx context.Context, method string, params, out any) error {
	if dl, ok := ctx.Deadline(); ok {
		_ = c.conn.SetDeadline(dl)
	} else {
		_ = c.conn.SetDeadline(time.Now().Add(30 * time.Second))
	}

	var raw json.RawMessage
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return err
		}
		raw = data
	}
	req := Request{Version: c.version, Method: method, Params: raw}
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}
	if err := writeFrame(c.conn, body); err != nil {
		return err
	}

	respBody, err := readFrame(c.r)
	if err != nil {
		return fmt.Errorf("ipc: reading response: %w", err)
	}
	var resp Response
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return fmt.Errorf("ipc: malformed response: %w", err)
	}
	if !resp.OK {
		return fmt.Errorf("ipc: %s", resp.Error)
	}
	if out != nil && len(resp.Result) > 0 {
		return json.Unmarshal(resp.Result, out)
	}
	return nil
}

// Close closes the underlying connection.
func (c *Client) Close() error { return c.conn.Close() }
