// Cache of user role lookups, used by the rules engine for exemption checks and by the editorial workflow for reviewer checks.
//
// Entries are small JSON documents. Users the directory doesn't know about are cached too, for a shorter time, so repeated content from unknown owners doesn't hit the directory on every item. Concurrent misses for the same user share a single directory lookup.
//
// Includes an interface and implementations using redis (with a local TinyLFU tier) and in-process memory.
package cachestore
