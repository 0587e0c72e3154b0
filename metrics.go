// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package lattice

const (
	MetricSchemaCacheHit    = "schema_cache_hit_total"
	MetricSchemaCacheMiss   = "schema_cache_miss_total"
	MetricSchemaCacheLength = "schema_cache_length"
	MetricInvalidateCache   = "invalidate_cache_total"
	MetricClearCache        = "clear_cache_total"
)
