// CMCD Analytics - Streaming Buffer Health and Playback Error Analysis
// Copyright 2026 The CMCD Analytics Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/shamikatamazon/cmcd

// Package cache holds the bounded LRU set the ingest pipeline uses to drop
// log lines it has already accepted.
package cache

import (
	"sync"
	"time"
)

// Defaults applied for non-positive constructor arguments.
const (
	DefaultCapacity = 100_000
	DefaultTTL      = 10 * time.Minute
)

type entry struct {
	key       string
	prev      *entry
	next      *entry
	expiresAt time.Time
}

// LRU is a thread-safe set of recently seen keys with a TTL. Get, Seen and
// eviction are O(1): a map indexes a doubly-linked list whose head is the
// most recently used key.
type LRU struct {
	mu sync.Mutex

	capacity int
	ttl      time.Duration
	now      func() time.Time

	items map[string]*entry

	// Sentinels: head.next is newest, tail.prev is oldest.
	head *entry
	tail *entry

	hits   int64
	misses int64
}

// NewLRU returns a set holding at most capacity keys for ttl each.
func NewLRU(capacity int, ttl time.Duration) *LRU {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	c := &LRU{
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
		items:    make(map[string]*entry),
		head:     &entry{},
		tail:     &entry{},
	}
	c.head.next = c.tail
	c.tail.prev = c.head
	return c
}

// Seen reports whether key was recorded within the TTL. An unseen or
// expired key is recorded and false is returned, so exactly one of several
// concurrent callers with the same key gets false.
func (c *LRU) Seen(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if e, ok := c.items[key]; ok {
		if now.Before(e.expiresAt) {
			c.moveToFront(e)
			c.hits++
			return true
		}
		c.remove(e)
	}

	e := &entry{key: key, expiresAt: now.Add(c.ttl)}
	c.pushFront(e)
	c.items[key] = e
	for len(c.items) > c.capacity {
		c.remove(c.tail.prev)
	}

	c.misses++
	return false
}

// Forget drops key so a later Seen records it again. Used when the first
// delivery could not be forwarded.
func (c *LRU) Forget(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.items[key]; ok {
		c.remove(e)
	}
}

// Len returns the number of keys held, including expired ones not yet evicted.
func (c *LRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Stats returns duplicate (hit) and first-seen (miss) counts.
func (c *LRU) Stats() (hits, misses int64, size int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses, len(c.items)
}

// The helpers below must be called with mu held.

func (c *LRU) pushFront(e *entry) {
	e.prev = c.head
	e.next = c.head.next
	c.head.next.prev = e
	c.head.next = e
}

func (c *LRU) moveToFront(e *entry) {
	e.prev.next = e.next
	e.next.prev = e.prev
	c.pushFront(e)
}

func (c *LRU) remove(e *entry) {
	if e == c.head || e == c.tail {
		return
	}
	e.prev.next = e.next
	e.next.prev = e.prev
	delete(c.items, e.key)
}
