// Package cachestore caches small values for a fixed TTL, in process memory or in redis.
//
// The moderation engine caches cohost membership here, which otherwise costs an API call per evaluated cast.
package cachestore
