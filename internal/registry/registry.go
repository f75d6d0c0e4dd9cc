package registry

import "sync"

type Role uint8

const (
	RoleNone Role = iota
	RoleProvider
	RoleUser
)

func (r Role) String() string {
	switch r {
	case RoleProvider:
		return "provider"
	case RoleUser:
		return "user"
	default:
		return "unregistered"
	}
}

// Participant is the identity bound to a connection. A connection holds
// RoleNone until its first registration; re-registration overwrites the
// whole participant, so a connection never carries two roles at once.
type Participant struct {
	Username      string
	Role          Role
	WalletAddress string
}

// Provider is one directory snapshot entry. RoutingAddress is the wallet
// address when one was supplied, otherwise the connection id; HasWallet
// distinguishes the two so settlement code cannot mistake a transient
// connection id for a durable payment target.
type Provider struct {
	ConnID         string
	Username       string
	RoutingAddress string
	HasWallet      bool
}

// Registry is the single source of truth for live connections and their
// roles. The relay drives it from one goroutine; the mutex covers direct
// use from tests and diagnostics.
type Registry struct {
	mu           sync.Mutex
	participants map[string]Participant
}

func NewRegistry() *Registry {
	return &Registry{
		participants: make(map[string]Participant),
	}
}

// Connect records a bare connection with no role. The transport layer
// guarantees connection ids are unique for the life of the process.
func (r *Registry) Connect(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.participants[connID] = Participant{}
}

// RegisterProvider binds or overwrites the connection's identity as a
// provider. An empty wallet address means the provider is routed by its
// connection id. Username is stored as-is; validation belongs to the
// client layer.
func (r *Registry) RegisterProvider(connID, username, walletAddress string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.participants[connID] = Participant{
		Username:      username,
		Role:          RoleProvider,
		WalletAddress: walletAddress,
	}
}

// RegisterUser binds or overwrites the connection's identity as a plain
// uploading client. It reports whether the connection previously held
// the provider role; that transition removes a directory entry and so
// needs a broadcast.
func (r *Registry) RegisterUser(connID, username string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	wasProvider := r.participants[connID].Role == RoleProvider
	r.participants[connID] = Participant{
		Username: username,
		Role:     RoleUser,
	}
	return wasProvider
}

// Unregister removes the connection entirely. It reports whether the
// removed connection was a provider, which is what decides a directory
// broadcast. Unknown ids are a no-op.
func (r *Registry) Unregister(connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.participants[connID]
	if !ok {
		return false
	}
	delete(r.participants, connID)
	return p.Role == RoleProvider
}

// Get returns the participant bound to a connection.
func (r *Registry) Get(connID string) (Participant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.participants[connID]
	return p, ok
}

// Providers returns a snapshot of the current provider entries. Iteration
// order is arbitrary. Mutating the result does not affect the registry.
func (r *Registry) Providers() []Provider {
	r.mu.Lock()
	defer r.mu.Unlock()

	providers := make([]Provider, 0, len(r.participants))
	for connID, p := range r.participants {
		if p.Role != RoleProvider {
			continue
		}
		entry := Provider{
			ConnID:         connID,
			Username:       p.Username,
			RoutingAddress: p.WalletAddress,
			HasWallet:      p.WalletAddress != "",
		}
		if !entry.HasWallet {
			entry.RoutingAddress = connID
		}
		providers = append(providers, entry)
	}
	return providers
}
