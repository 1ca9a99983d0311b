package rpc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"time"
)

// Client is a connection to a running taskq-agentd daemon.
type Client struct {
	conn    net.Conn
	timeout time.Duration
}

// Dial connects to the daemon's Unix domain socket at socketPath.
func Dial(socketPath string, timeout time.Duration) (*Client, error) {
	conn, err := net.DialTimeout("unix", socketPath, timeout)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", socketPath, err)
	}
	return &Client{conn: conn, timeout: timeout}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Call sends operation with the given args and unmarshals the response
// data into out, if out is non-nil. Returns the *ErrorInfo reported by
// the daemon, or nil on success.
func (c *Client) Call(operation string, args interface{}, out interface{}) (*ErrorInfo, error) {
	argsJSON, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("marshal args: %w", err)
	}

	req := Request{Operation: operation, Args: argsJSON}
	reqJSON, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	if c.timeout > 0 {
		if err := c.conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
			return nil, fmt.Errorf("set deadline: %w", err)
		}
	}

	writer := bufio.NewWriter(c.conn)
	if _, err := writer.Write(reqJSON); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}
	if err := writer.WriteByte('\n'); err != nil {
		return nil, fmt.Errorf("write newline: %w", err)
	}
	if err := writer.Flush(); err != nil {
		return nil, fmt.Errorf("flush: %w", err)
	}

	reader := bufio.NewReader(c.conn)
	line, err := reader.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var resp Response
	if err := json.Unmarshal(line, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	if !resp.Success {
		return resp.Error, nil
	}
	if out != nil && len(resp.Data) > 0 {
		if err := json.Unmarshal(resp.Data, out); err != nil {
			return nil, fmt.Errorf("unmarshal data: %w", err)
		}
	}
	return nil, nil
}

// Ping verifies the daemon is alive.
func (c *Client) Ping() error {
	errInfo, err := c.Call(OpPing, nil, nil)
	if err != nil {
		return err
	}
	if errInfo != nil {
		return fmt.Errorf("ping failed: %s", errInfo.Message)
	}
	return nil
}
