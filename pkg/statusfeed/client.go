// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package statusfeed

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrConnectionClosed is returned by Next after the feed has gone away
var ErrConnectionClosed = errors.New("feed connection closed")

// commandTimeout bounds a single command write
const commandTimeout = 2 * time.Second

// Client reads snapshots from a feed and sends operator commands back.
// Next must be called from one goroutine; Send is safe from any.
type Client struct {
	conn   *websocket.Conn
	closed bool

	writeMu sync.Mutex
}

// DialOptions configures Dial
type DialOptions struct {
	Username      string
	Password      string
	SkipSSLVerify bool
}

// Dial connects to a feed at a ws:// or wss:// URL
func Dial(ctx context.Context, feedURL string, opts DialOptions) (*Client, error) {
	u, err := url.Parse(feedURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = Path
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: opts.SkipSSLVerify,
		}
	}

	headers := http.Header{}
	if opts.Username != "" && opts.Password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(opts.Username + ":" + opts.Password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	conn, resp, err := dialer.DialContext(ctx, u.String(), headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("feed connection failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("feed connection failed: %w", err)
	}
	return &Client{conn: conn}, nil
}

// Next blocks for the next snapshot. Non-binary messages are skipped.
func (c *Client) Next() (Snapshot, error) {
	if c.closed {
		return Snapshot{}, ErrConnectionClosed
	}
	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			c.closed = true
			return Snapshot{}, fmt.Errorf("%w: %v", ErrConnectionClosed, err)
		}
		if messageType != websocket.BinaryMessage {
			continue
		}
		return DecodeSnapshot(data)
	}
}

// Send asks the station to perform action
func (c *Client) Send(action Action) error {
	data, err := Command{Action: action}.Encode()
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(commandTimeout))
	if err := c.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return fmt.Errorf("failed to send %s: %w", action, err)
	}
	return nil
}

// Close ends the connection
func (c *Client) Close() error {
	return c.conn.Close()
}
