// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package station

import (
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/Thermoquad/dslink/pkg/ds"
)

// maxPacketSize bounds a single datagram or stream read
const maxPacketSize = 2048

// dialTimeout bounds a TCP connect to a peer
const dialTimeout = 500 * time.Millisecond

var errClosed = net.ErrClosed

// receiver yields packets from an input port. from is the sender's host
// without the port, empty when unknown.
type receiver interface {
	Receive() (data []byte, from string, err error)
	Close() error
}

func listen(socket ds.SocketType, port int) (receiver, error) {
	addr := ":" + strconv.Itoa(port)
	if socket == ds.SocketTCP {
		l, err := net.Listen("tcp", addr)
		if err != nil {
			return nil, err
		}
		return newTCPReceiver(l), nil
	}
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return nil, err
	}
	return &udpReceiver{conn: conn}, nil
}

//////////////////////////////////////////////////////////////
// UDP
//////////////////////////////////////////////////////////////

type udpReceiver struct {
	conn net.PacketConn
}

func (u *udpReceiver) Receive() ([]byte, string, error) {
	buf := make([]byte, maxPacketSize)
	n, addr, err := u.conn.ReadFrom(buf)
	if err != nil {
		return nil, "", err
	}
	return buf[:n], hostOf(addr), nil
}

func (u *udpReceiver) Close() error {
	return u.conn.Close()
}

func hostOf(addr net.Addr) string {
	switch a := addr.(type) {
	case *net.UDPAddr:
		return a.IP.String()
	case *net.TCPAddr:
		return a.IP.String()
	default:
		return ""
	}
}

//////////////////////////////////////////////////////////////
// TCP
//////////////////////////////////////////////////////////////

type chunk struct {
	data []byte
	from string
}

// tcpReceiver accepts any number of peers and yields each read as a packet
type tcpReceiver struct {
	listener net.Listener
	chunks   chan chunk
	done     chan struct{}

	mu    sync.Mutex
	conns map[net.Conn]struct{}
	once  sync.Once
}

func newTCPReceiver(l net.Listener) *tcpReceiver {
	t := &tcpReceiver{
		listener: l,
		chunks:   make(chan chunk, 64),
		done:     make(chan struct{}),
		conns:    make(map[net.Conn]struct{}),
	}
	go t.accept()
	return t
}

func (t *tcpReceiver) accept() {
	for {
		conn, err := t.listener.Accept()
		if err != nil {
			return
		}
		t.mu.Lock()
		t.conns[conn] = struct{}{}
		t.mu.Unlock()
		go t.read(conn)
	}
}

func (t *tcpReceiver) read(conn net.Conn) {
	defer func() {
		t.mu.Lock()
		delete(t.conns, conn)
		t.mu.Unlock()
		conn.Close()
	}()

	from := hostOf(conn.RemoteAddr())
	for {
		buf := make([]byte, maxPacketSize)
		n, err := conn.Read(buf)
		if n > 0 {
			select {
			case t.chunks <- chunk{data: buf[:n], from: from}:
			case <-t.done:
				return
			}
		}
		if err != nil {
			return
		}
	}
}

func (t *tcpReceiver) Receive() ([]byte, string, error) {
	select {
	case c := <-t.chunks:
		return c.data, c.from, nil
	case <-t.done:
		return nil, "", errClosed
	}
}

func (t *tcpReceiver) Close() error {
	var err error
	t.once.Do(func() {
		close(t.done)
		err = t.listener.Close()
		t.mu.Lock()
		for conn := range t.conns {
			conn.Close()
		}
		t.mu.Unlock()
	})
	return err
}

//////////////////////////////////////////////////////////////
// Senders
//////////////////////////////////////////////////////////////

type sender interface {
	Send(host string, data []byte) error
	io.Closer
}

func newSender(socket ds.SocketType, port int) sender {
	if socket == ds.SocketTCP {
		return &tcpSender{port: port}
	}
	return &udpSender{port: port, resolved: make(map[string]*net.UDPAddr)}
}

// udpSender writes datagrams from one ephemeral socket, caching resolved
// destinations
type udpSender struct {
	port     int
	conn     net.PacketConn
	resolved map[string]*net.UDPAddr
}

func (u *udpSender) Send(host string, data []byte) error {
	if u.conn == nil {
		conn, err := net.ListenPacket("udp", ":0")
		if err != nil {
			return fmt.Errorf("failed to open send socket: %w", err)
		}
		u.conn = conn
	}

	addr, ok := u.resolved[host]
	if !ok {
		var err error
		addr, err = net.ResolveUDPAddr("udp", net.JoinHostPort(host, strconv.Itoa(u.port)))
		if err != nil {
			return fmt.Errorf("failed to resolve %s: %w", host, err)
		}
		u.resolved[host] = addr
	}

	_, err := u.conn.WriteTo(data, addr)
	return err
}

func (u *udpSender) Close() error {
	if u.conn == nil {
		return nil
	}
	return u.conn.Close()
}

// tcpSender keeps one stream open and redials after a failure
type tcpSender struct {
	port int
	host string
	conn net.Conn
}

func (t *tcpSender) Send(host string, data []byte) error {
	if t.conn != nil && t.host != host {
		t.Close()
	}
	if t.conn == nil {
		conn, err := net.DialTimeout("tcp", net.JoinHostPort(host, strconv.Itoa(t.port)), dialTimeout)
		if err != nil {
			return fmt.Errorf("failed to connect to %s: %w", host, err)
		}
		t.conn = conn
		t.host = host
	}

	if _, err := t.conn.Write(data); err != nil {
		t.Close()
		return err
	}
	return nil
}

func (t *tcpSender) Close() error {
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}
