/*
Package dnsrelay implements a recursive-forwarding DNS resolver with a
local override database, an in-memory response cache, and upstream
relaying over UDP. There are five fundamental pieces of the library.

Wire codec

Message parses and builds RFC 1035 wire-format DNS messages, including
compression-pointer decoding with cycle detection. It never round-trips
through a third-party DNS library; hand-rolling the wire format is the
point of this package.

Override table

OverrideTable answers queries from a statically loaded rule set, with
exact/wildcard/parent-domain precedence and a blackhole sentinel.

Cache

Cache is a TTL-bounded, LRU-evicting store of previously resolved
answers, swept periodically in the background.

Relay

Relay forwards queries that miss both the override table and the cache
to a single upstream resolver, correlating concurrent in-flight queries
by a relay-owned transaction ID pool.

Server

Server ties the four pieces together behind a single UDP listener,
dispatching each datagram to a bounded pool of concurrent workers.
*/
package dnsrelay
