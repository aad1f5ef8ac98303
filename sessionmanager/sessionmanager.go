// Package sessionmanager accepts many concurrent Owner connections
// against one Helper listener and tracks each by id, the way the
// teacher's session_manager.SessionManager tracks TLSNotary sessions
// keyed by remote address in a map guarded by a mutex, with a
// monitorSessions goroutine reaping anything idle or long-running and
// a destroyChan letting a session ask to be torn down early. There is
// no command-string methodLookup here: a comparison session is two
// long-lived method calls (HandleCompare/HandleArgmax), not thirty
// named steps, so fn is supplied directly by the caller instead of
// being dispatched by name per request.
package sessionmanager

import (
	"io"
	"log"
	"net"
	"sync"
	"time"

	"github.com/ironlatch/seccompare/config"
	"github.com/ironlatch/seccompare/session"
	"github.com/ironlatch/seccompare/transport"
)

// Limits mirror the teacher's monitorSessions constants: a session
// idle for staleAfter, or older than maxAge regardless of activity,
// gets reaped.
const (
	staleAfter = 1200 * time.Second
	maxAge     = 2400 * time.Second
)

type item struct {
	helper    *session.Helper
	lastSeen  time.Time
	createdAt time.Time
}

// Manager runs a Helper listener that accepts many concurrent Owner
// connections, handing each its own id and handler goroutine.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*item

	destroyChan chan string
	done        chan struct{}
}

// New starts a Manager's background monitor and destroy-channel
// goroutines. Call Close to stop them.
func New() *Manager {
	m := &Manager{
		sessions:    make(map[string]*item),
		destroyChan: make(chan string),
		done:        make(chan struct{}),
	}
	go m.monitorStale()
	go m.monitorDestroy()
	return m
}

// Close stops the background goroutines. It does not close any
// in-flight sessions; callers that want that should also stop Serve's
// listener.
func (m *Manager) Close() { close(m.done) }

// Handler runs once per accepted connection, against the Helper
// NewHelperConn built for it (keys already generated, Hello already
// sent). A typical handler calls h.HandleCompare or h.HandleArgmax,
// possibly in a loop for a multi-step classifier session.
type Handler func(h *session.Helper) error

// Serve accepts connections at cfg.ListenAddr until the listener is
// closed, assigning each a fresh id via idGen and running fn against
// it in its own goroutine. It blocks until Accept fails (typically
// because the listener was closed).
func (m *Manager) Serve(cfg config.Session, rnd io.Reader, idGen func() string, fn Handler) error {
	ln, err := transport.Listen(cfg.ListenAddr)
	if err != nil {
		return err
	}
	defer ln.Close()
	for {
		nc, err := ln.Accept()
		if err != nil {
			return err
		}
		id := idGen()
		m.runOne(cfg, rnd, id, nc, fn)
	}
}

func (m *Manager) runOne(cfg config.Session, rnd io.Reader, id string, nc net.Conn, fn Handler) {
	h, err := session.NewHelperConn(cfg, nc, rnd)
	if err != nil {
		log.Println("sessionmanager: handshake failed for", id, ":", err)
		nc.Close()
		return
	}

	now := time.Now()
	it := &item{helper: h, lastSeen: now, createdAt: now}
	m.mu.Lock()
	m.sessions[id] = it
	m.mu.Unlock()

	go func() {
		defer m.remove(id)
		if err := fn(h); err != nil {
			log.Println("sessionmanager: session", id, "ended with error:", err)
		}
	}()
}

// Touch refreshes id's last-activity timestamp, keeping it alive past
// staleAfter. A long-running handler should call this between steps.
func (m *Manager) Touch(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if it, ok := m.sessions[id]; ok {
		it.lastSeen = time.Now()
	}
}

// Destroy asks the manager to tear down id's session, mirroring the
// teacher's DestroyChan used when a handler panics mid-step.
func (m *Manager) Destroy(id string) {
	select {
	case m.destroyChan <- id:
	case <-m.done:
	}
}

func (m *Manager) remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if it, ok := m.sessions[id]; ok {
		it.helper.Close()
		delete(m.sessions, id)
	}
}

func (m *Manager) monitorStale() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case now := <-ticker.C:
			m.mu.Lock()
			var stale []string
			for id, it := range m.sessions {
				if now.Sub(it.lastSeen) > staleAfter || now.Sub(it.createdAt) > maxAge {
					stale = append(stale, id)
				}
			}
			m.mu.Unlock()
			for _, id := range stale {
				log.Println("sessionmanager: reaping stale session", id)
				m.remove(id)
			}
		}
	}
}

func (m *Manager) monitorDestroy() {
	for {
		select {
		case <-m.done:
			return
		case id := <-m.destroyChan:
			m.remove(id)
		}
	}
}

// Count returns the number of sessions currently tracked.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
