package sdk

import (
	logging "github.com/ipfs/go-log/v2"
	"github.com/go-redis/redis/v8"

	"github.com/cloudpeers/tlfs/sign"
)

// config collects the options every Sdk constructor accepts, filled in by
// functional Option values the way nodestorage/v2's Options/EditOption
// pair is built.
type config struct {
	logger      *logging.ZapEventLogger
	addressBook *AddressBook
	badgerPath  string
	clock       func() int64
	keypair     *sign.Keypair
	redisClient *redis.Client
}

// Option configures an Sdk at construction time.
type Option func(*config)

func defaultConfig() *config {
	return &config{
		logger:      logger,
		addressBook: NewAddressBook(),
	}
}

// WithLogger records l in the Sdk's configuration. No code in this package
// reads that field; the package's own named logger is used for all logging
// either way.
func WithLogger(l *logging.ZapEventLogger) Option {
	return func(c *config) { c.logger = l }
}

// WithPeerAddressBook seeds the Sdk with a pre-populated address book
// instead of starting from an empty one.
func WithPeerAddressBook(book *AddressBook) Option {
	return func(c *config) { c.addressBook = book }
}

// WithBadgerPath is consumed by CreatePersistent to name the on-disk
// directory; passing it to CreateMemory has no effect.
func WithBadgerPath(path string) Option {
	return func(c *config) { c.badgerPath = path }
}

// WithClock records a millisecond clock in the Sdk's configuration. No
// code in this package reads that field; docstate transition logging does
// not timestamp with it.
func WithClock(now func() int64) Option {
	return func(c *config) { c.clock = now }
}

// WithKeypair fixes the Sdk's peer identity instead of minting a fresh
// one, for a replica restarting against a persistent store under the
// same peer id it used before.
func WithKeypair(kp sign.Keypair) Option {
	return func(c *config) { c.keypair = &kp }
}

// WithRedisClient mirrors every document's joined deltas onto a Redis
// pub/sub channel, for replicas running in separate processes to learn
// about each other's writes without a direct connection between them.
// Without this option a document's change feed only ever reaches local
// Subscribe callers.
func WithRedisClient(client *redis.Client) Option {
	return func(c *config) { c.redisClient = client }
}
