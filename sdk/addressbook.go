package sdk

import (
	"sync"

	"github.com/multiformats/go-multiaddr"

	"github.com/cloudpeers/tlfs/tlfsid"
)

// AddressBook tracks the known network addresses for remote peers: a
// local, in-memory table. Address discovery and TTL expiry are a network
// transport's job, not the core's — Sdk only needs somewhere to record
// what AddAddress/RemoveAddress were told.
type AddressBook struct {
	mu    sync.RWMutex
	addrs map[tlfsid.PeerID][]multiaddr.Multiaddr
}

// NewAddressBook returns an empty address book.
func NewAddressBook() *AddressBook {
	return &AddressBook{addrs: make(map[tlfsid.PeerID][]multiaddr.Multiaddr)}
}

// Add records addr as reachable for peer, appending to whatever is
// already known (a peer may have several addresses).
func (b *AddressBook) Add(peer tlfsid.PeerID, addr multiaddr.Multiaddr) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, existing := range b.addrs[peer] {
		if existing.Equal(addr) {
			return
		}
	}
	b.addrs[peer] = append(b.addrs[peer], addr)
}

// Remove drops addr from peer's known addresses. If peer has no
// addresses left afterward, its entry is removed entirely.
func (b *AddressBook) Remove(peer tlfsid.PeerID, addr multiaddr.Multiaddr) {
	b.mu.Lock()
	defer b.mu.Unlock()
	kept := b.addrs[peer][:0]
	for _, existing := range b.addrs[peer] {
		if !existing.Equal(addr) {
			kept = append(kept, existing)
		}
	}
	if len(kept) == 0 {
		delete(b.addrs, peer)
		return
	}
	b.addrs[peer] = kept
}

// Addresses returns every address currently known for peer.
func (b *AddressBook) Addresses(peer tlfsid.PeerID) []multiaddr.Multiaddr {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]multiaddr.Multiaddr(nil), b.addrs[peer]...)
}
