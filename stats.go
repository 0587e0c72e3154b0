// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package lattice

import (
	"expvar"
	"sort"
	"strings"
	"sync"
	"time"
)

// Expvar global expvar map.
var Expvar = expvar.NewMap("lattice")

// StatsClient represents a client to a stats server.
type StatsClient interface {
	// Tags returns a sorted list of tags on the client.
	Tags() []string

	// WithTags returns a new client with additional tags appended.
	WithTags(tags ...string) StatsClient

	// Count tracks the number of times something occurs.
	Count(name string, value int64, rate float64)

	// Gauge sets the value of a metric.
	Gauge(name string, value float64, rate float64)

	// Timing tracks timing information for a metric.
	Timing(name string, value time.Duration, rate float64)

	// Open starts the service.
	Open()

	// Close closes the client.
	Close() error
}

// NopStatsClient represents a client that doesn't do anything.
var NopStatsClient StatsClient = &nopStatsClient{}

type nopStatsClient struct{}

func (c *nopStatsClient) Tags() []string                                { return nil }
func (c *nopStatsClient) WithTags(tags ...string) StatsClient           { return c }
func (c *nopStatsClient) Count(name string, value int64, rate float64)  {}
func (c *nopStatsClient) Gauge(name string, value, rate float64)        {}
func (c *nopStatsClient) Timing(name string, d time.Duration, r float64) {}
func (c *nopStatsClient) Open()                                         {}
func (c *nopStatsClient) Close() error                                  { return nil }

// ExpvarStatsClient writes stats out to expvars.
type ExpvarStatsClient struct {
	mu   sync.Mutex
	m    *expvar.Map
	tags []string
}

// NewExpvarStatsClient returns a new instance of ExpvarStatsClient.
// This client points at the root of the expvar map.
func NewExpvarStatsClient() *ExpvarStatsClient {
	return &ExpvarStatsClient{m: Expvar}
}

// Tags returns a sorted list of tags on the client.
func (c *ExpvarStatsClient) Tags() []string { return c.tags }

// WithTags returns a new client with additional tags appended.
func (c *ExpvarStatsClient) WithTags(tags ...string) StatsClient {
	m := &expvar.Map{}
	m.Init()
	c.m.Set(strings.Join(tags, ","), m)

	return &ExpvarStatsClient{
		m:    m,
		tags: UnionStringSlice(c.tags, tags),
	}
}

// Count tracks the number of times something occurs.
func (c *ExpvarStatsClient) Count(name string, value int64, rate float64) {
	c.m.Add(name, value)
}

// Gauge sets the value of a metric.
func (c *ExpvarStatsClient) Gauge(name string, value float64, rate float64) {
	var f expvar.Float
	f.Set(value)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m.Set(name, &f)
}

// Timing tracks timing information for a metric.
func (c *ExpvarStatsClient) Timing(name string, value time.Duration, rate float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	timing := new(expvar.Int)
	if v := c.m.Get(name); v != nil {
		timing = v.(*expvar.Int)
	}
	timing.Add(int64(value))
	c.m.Set(name, timing)
}

// Open is a no-op.
func (c *ExpvarStatsClient) Open() {}

// Close is a no-op.
func (c *ExpvarStatsClient) Close() error { return nil }

// UnionStringSlice returns a sorted set of tags which combine a & b.
func UnionStringSlice(a, b []string) []string {
	// Sort both sets first.
	sort.Strings(a)
	sort.Strings(b)

	// Find size of largest slice.
	n := len(a)
	if len(b) > n {
		n = len(b)
	}

	// Exit if both sets are empty.
	if n == 0 {
		return nil
	}

	// Iterate over both in order and merge.
	other := make([]string, 0, n)
	for len(a) > 0 || len(b) > 0 {
		if len(a) == 0 {
			other, b = append(other, b[0]), b[1:]
		} else if len(b) == 0 {
			other, a = append(other, a[0]), a[1:]
		} else if a[0] < b[0] {
			other, a = append(other, a[0]), a[1:]
		} else if b[0] < a[0] {
			other, b = append(other, b[0]), b[1:]
		} else {
			other, a, b = append(other, a[0]), a[1:], b[1:]
		}
	}
	return other
}
