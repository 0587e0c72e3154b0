// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0

// Package statsd is a StatsD implementation of the lattice StatsClient
// interface, using the DataDog library that added tags to the StatsD
// protocol. The default StatsD host is "127.0.0.1:8125".
package statsd

import (
	"time"

	"github.com/DataDog/datadog-go/statsd"

	lattice "github.com/featurebasedb/lattice"
	"github.com/featurebasedb/lattice/logger"
)

const (
	// prefix is appended to each metric event name.
	prefix = "lattice."

	// bufferLen is the stats client buffer size.
	bufferLen = 1024
)

// Ensure client implements interface.
var _ lattice.StatsClient = &statsClient{}

// statsClient represents a StatsD implementation of lattice.StatsClient.
type statsClient struct {
	client *statsd.Client
	tags   []string
	logger logger.Logger
}

// NewStatsClient returns a new instance of StatsClient.
func NewStatsClient(host string) (*statsClient, error) {
	c, err := statsd.NewBuffered(host, bufferLen)
	if err != nil {
		return nil, err
	}

	return &statsClient{
		client: c,
		logger: logger.NopLogger,
	}, nil
}

// Open is a no-op.
func (c *statsClient) Open() {}

// Close closes the connection to the agent.
func (c *statsClient) Close() error {
	return c.client.Close()
}

// Tags returns a sorted list of tags on the client.
func (c *statsClient) Tags() []string {
	return c.tags
}

// WithTags returns a new client with additional tags appended.
func (c *statsClient) WithTags(tags ...string) lattice.StatsClient {
	return &statsClient{
		client: c.client,
		tags:   lattice.UnionStringSlice(c.tags, tags),
		logger: c.logger,
	}
}

// Count tracks the number of times something occurs per second.
func (c *statsClient) Count(name string, value int64, rate float64) {
	if err := c.client.Count(prefix+name, value, c.tags, rate); err != nil {
		c.logger.Printf("statsd.StatsClient.Count error: %s", err)
	}
}

// Gauge sets the value of a metric.
func (c *statsClient) Gauge(name string, value float64, rate float64) {
	if err := c.client.Gauge(prefix+name, value, c.tags, rate); err != nil {
		c.logger.Printf("statsd.StatsClient.Gauge error: %s", err)
	}
}

// Timing tracks timing information for a metric.
func (c *statsClient) Timing(name string, value time.Duration, rate float64) {
	if err := c.client.Timing(prefix+name, value, c.tags, rate); err != nil {
		c.logger.Printf("statsd.StatsClient.Timing error: %s", err)
	}
}

// SetLogger sets the logger for the client.
func (c *statsClient) SetLogger(l logger.Logger) {
	c.logger = l
}
