package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jrsteele09/go-passwordless/dialog"
	"github.com/jrsteele09/go-passwordless/passwordless"
)

const machineIdleTTL = time.Hour

// TokenSink buffers tokens issued by a dialog machine until the handler that
// triggered the issue picks them up and writes the cookies. Tokens are never
// stored anywhere else server-side.
type TokenSink struct {
	lock   sync.Mutex
	tokens *passwordless.Tokens
}

// Put stores the latest issued tokens, replacing any unclaimed ones.
func (s *TokenSink) Put(tokens passwordless.Tokens) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.tokens = &tokens
}

// Take removes and returns the buffered tokens, or nil when none were issued.
func (s *TokenSink) Take() *passwordless.Tokens {
	s.lock.Lock()
	defer s.lock.Unlock()
	tokens := s.tokens
	s.tokens = nil
	return tokens
}

// Tab bundles the per-tab dialog machine with its token sink.
type Tab struct {
	Machine *dialog.Machine
	Tokens  *TokenSink
}

// MachineFactory builds a dialog machine for a tab key. The factory must wire
// the sink as the machine's token destination.
type MachineFactory func(key string, sink *TokenSink) (*dialog.Machine, error)

type machineEntry struct {
	tab      *Tab
	lastSeen time.Time
}

// MachineRegistry holds one dialog machine per browser tab, identified by the
// tab cookie. Machines idle past the TTL are evicted lazily.
type MachineRegistry struct {
	lock    sync.Mutex
	entries map[string]*machineEntry
	factory MachineFactory
	nowTime func() time.Time
}

func NewMachineRegistry(factory MachineFactory) *MachineRegistry {
	return &MachineRegistry{
		entries: make(map[string]*machineEntry),
		factory: factory,
		nowTime: time.Now,
	}
}

// Get returns the tab for the request, minting the tab cookie and machine on
// first contact.
func (reg *MachineRegistry) Get(w http.ResponseWriter, r *http.Request) (*Tab, error) {
	key := ""
	if cookie, err := r.Cookie(tabCookieName); err == nil && cookie.Value != "" {
		key = cookie.Value
	}
	if key == "" {
		key = uuid.New().String()
		http.SetCookie(w, &http.Cookie{
			Name:     tabCookieName,
			Value:    key,
			Path:     "/",
			SameSite: http.SameSiteLaxMode,
		})
	}

	reg.lock.Lock()
	defer reg.lock.Unlock()

	reg.evictIdleLocked()

	if entry, ok := reg.entries[key]; ok {
		entry.lastSeen = reg.nowTime()
		return entry.tab, nil
	}

	sink := &TokenSink{}
	machine, err := reg.factory(key, sink)
	if err != nil {
		return nil, err
	}
	tab := &Tab{Machine: machine, Tokens: sink}
	reg.entries[key] = &machineEntry{tab: tab, lastSeen: reg.nowTime()}
	return tab, nil
}

func (reg *MachineRegistry) evictIdleLocked() {
	cutoff := reg.nowTime().Add(-machineIdleTTL)
	for key, entry := range reg.entries {
		if entry.lastSeen.Before(cutoff) {
			delete(reg.entries, key)
		}
	}
}

// Len reports the number of live machines.
func (reg *MachineRegistry) Len() int {
	reg.lock.Lock()
	defer reg.lock.Unlock()
	return len(reg.entries)
}
