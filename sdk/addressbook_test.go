package sdk

import (
	"testing"

	"github.com/multiformats/go-multiaddr"
	"github.com/stretchr/testify/require"

	"github.com/cloudpeers/tlfs/tlfsid"
)

func TestAddressBookAddDedupesEqualAddresses(t *testing.T) {
	book := NewAddressBook()
	var peer tlfsid.PeerID
	peer[0] = 7

	a, err := multiaddr.NewMultiaddr("/ip4/127.0.0.1/tcp/4001")
	require.NoError(t, err)

	book.Add(peer, a)
	book.Add(peer, a)
	require.Len(t, book.Addresses(peer), 1)
}

func TestAddressBookRemoveDropsEmptyEntry(t *testing.T) {
	book := NewAddressBook()
	var peer tlfsid.PeerID
	peer[0] = 9

	a, err := multiaddr.NewMultiaddr("/ip4/127.0.0.1/tcp/4001")
	require.NoError(t, err)

	book.Add(peer, a)
	require.Len(t, book.Addresses(peer), 1)

	book.Remove(peer, a)
	require.Empty(t, book.Addresses(peer))
}

func TestAddressBookAddressesReturnsCopy(t *testing.T) {
	book := NewAddressBook()
	var peer tlfsid.PeerID
	peer[0] = 1

	a, err := multiaddr.NewMultiaddr("/ip4/10.0.0.1/tcp/4001")
	require.NoError(t, err)
	book.Add(peer, a)

	got := book.Addresses(peer)
	got[0] = nil

	require.NotNil(t, book.Addresses(peer)[0], "mutating the returned slice must not affect the book")
}
