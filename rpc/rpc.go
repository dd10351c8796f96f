// Package rpc lets a remote user interface follow and change the parameters
// of a running organ. The server side owns the UI ring pair of a broker: it
// is the only producer of UIParamsToAudio and the only consumer of
// UIParamsFromAudio.
package rpc

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/rpc"
	"sync"
	"time"

	"github.com/vsariola/drawbar"
	"github.com/vsariola/drawbar/core"
	"github.com/vsariola/drawbar/ring"
)

const DefaultPort = "31337"

type (
	// ParamValue is a parameter change sent by a client.
	ParamValue struct {
		ID    drawbar.ParamID
		Value float32
	}

	// Changes are the parameters that changed after a version, with the
	// version to ask from next time.
	Changes struct {
		Version uint64
		Values  map[drawbar.ParamID]float32
	}

	Server struct {
		toAudio   *ring.Ring
		fromAudio *ring.Ring
		listener  net.Listener
		logger    *slog.Logger

		mu       sync.Mutex
		version  uint64
		values   [drawbar.NumParams]float32
		versions [drawbar.NumParams]uint64

		closing chan struct{}
		polled  chan struct{}
	}

	// Sync is the receiver registered with net/rpc.
	Sync struct{ s *Server }

	Client struct {
		client *rpc.Client
	}
)

var ErrDropped = errors.New("parameter change dropped, audio thread queue full")

// Serve listens on address, e.g. ":31337", and starts following the UI rings
// of b.
func Serve(b *core.Broker, address string, logger *slog.Logger) (*Server, error) {
	l, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("net.Listen failed: %w", err)
	}
	s := &Server{
		toAudio:   b.UIParamsToAudio,
		fromAudio: b.UIParamsFromAudio,
		listener:  l,
		logger:    logger,
		closing:   make(chan struct{}),
		polled:    make(chan struct{}),
	}
	srv := rpc.NewServer()
	if err := srv.RegisterName("Sync", &Sync{s}); err != nil {
		l.Close()
		return nil, fmt.Errorf("rpc.Register failed: %w", err)
	}
	go func() {
		// net/rpc serves its CONNECT handshake on any path
		if err := http.Serve(l, srv); err != nil && !errors.Is(err, net.ErrClosed) {
			logger.Error("rpc server stopped", "err", err)
		}
	}()
	go s.run()
	logger.Info("remote control listening", "addr", l.Addr().String())
	return s, nil
}

func (s *Server) Addr() net.Addr { return s.listener.Addr() }

func (s *Server) Close() error {
	close(s.closing)
	<-s.polled
	return s.listener.Close()
}

func (s *Server) run() {
	defer close(s.polled)
	ticker := time.NewTicker(core.ObserverPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.closing:
			return
		case <-ticker.C:
			s.poll()
		}
	}
}

func (s *Server) poll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for v, ok := s.fromAudio.ReadValue(); ok; v, ok = s.fromAudio.ReadValue() {
		id := drawbar.ParamID(v.ID)
		if !id.Valid() {
			continue
		}
		s.version++
		s.values[id] = v.Value
		s.versions[id] = s.version
	}
}

func (s *Server) changes(since uint64) Changes {
	s.mu.Lock()
	defer s.mu.Unlock()
	ret := Changes{Version: s.version, Values: map[drawbar.ParamID]float32{}}
	for id, v := range s.versions {
		if v > since {
			ret.Values[drawbar.ParamID(id)] = s.values[id]
		}
	}
	return ret
}

func (s *Server) set(v ParamValue) error {
	if !v.ID.Valid() {
		return fmt.Errorf("unknown parameter %d", v.ID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.toAudio.TryWriteValue(ring.Value{ID: uint32(v.ID), Value: v.Value}) {
		return ErrDropped
	}
	return nil
}

func (r *Sync) Set(v ParamValue, reply *bool) error {
	err := r.s.set(v)
	*reply = err == nil
	return err
}

func (r *Sync) Poll(since uint64, reply *Changes) error {
	*reply = r.s.changes(since)
	return nil
}

// Dial connects to a server; a missing port defaults to DefaultPort.
func Dial(address string) (*Client, error) {
	if _, _, err := net.SplitHostPort(address); err != nil {
		address = net.JoinHostPort(address, DefaultPort)
	}
	client, err := rpc.DialHTTP("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("rpc.DialHTTP failed: %w", err)
	}
	return &Client{client: client}, nil
}

func (c *Client) Set(id drawbar.ParamID, value float32) error {
	var reply bool
	if err := c.client.Call("Sync.Set", ParamValue{ID: id, Value: value}, &reply); err != nil {
		return fmt.Errorf("Sync.Set failed: %w", err)
	}
	return nil
}

// Poll returns the parameters the audio thread reported after version since.
// Zero gets every parameter reported so far.
func (c *Client) Poll(since uint64) (Changes, error) {
	var reply Changes
	if err := c.client.Call("Sync.Poll", since, &reply); err != nil {
		return Changes{}, fmt.Errorf("Sync.Poll failed: %w", err)
	}
	return reply, nil
}

func (c *Client) Close() error { return c.client.Close() }
