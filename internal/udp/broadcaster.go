// Package udp broadcasts leveler telemetry as one JSON datagram per snapshot.
package udp

import (
	"encoding/json"
	"fmt"
	"net"
	"sync/atomic"

	"gravitylevel/internal/level"
)

type udpConn interface {
	Write(p []byte) (int, error)
	Close() error
}

type resolveFunc func(network, address string) (*net.UDPAddr, error)
type dialFunc func(network string, laddr, raddr *net.UDPAddr) (udpConn, error)

// Packet is the datagram body. Seq lets receivers spot dropped datagrams.
type Packet struct {
	Seq    uint64         `json:"seq"`
	Status level.Snapshot `json:"status"`
}

type Broadcaster struct {
	dest string
	conn udpConn
	seq  atomic.Uint64
}

func NewBroadcaster(dest string) (*Broadcaster, error) {
	return newBroadcaster(dest, net.ResolveUDPAddr, func(network string, laddr, raddr *net.UDPAddr) (udpConn, error) {
		return net.DialUDP(network, laddr, raddr)
	})
}

func newBroadcaster(dest string, resolve resolveFunc, dial dialFunc) (*Broadcaster, error) {
	addr, err := resolve("udp", dest)
	if err != nil {
		return nil, fmt.Errorf("resolve dest: %w", err)
	}

	// DialUDP selects a suitable local address automatically.
	conn, err := dial("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("dial udp: %w", err)
	}

	return &Broadcaster{
		dest: dest,
		conn: conn,
	}, nil
}

func (b *Broadcaster) Dest() string { return b.dest }

func (b *Broadcaster) Send(payload []byte) error {
	if len(payload) == 0 {
		return nil
	}
	_, err := b.conn.Write(payload)
	return err
}

// Publish sends snap as the next sequenced packet.
func (b *Broadcaster) Publish(snap level.Snapshot) error {
	payload, err := json.Marshal(Packet{Seq: b.seq.Add(1), Status: snap})
	if err != nil {
		return fmt.Errorf("encode telemetry: %w", err)
	}
	return b.Send(payload)
}

func (b *Broadcaster) Close() error {
	if b.conn == nil {
		return nil
	}
	return b.conn.Close()
}
