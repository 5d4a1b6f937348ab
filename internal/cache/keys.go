package cache

import (
	"net/url"
	"strings"
)

const (
	GlobalKeyPrefix = "quizierra"
	keySeparator    = ":"
)

// GenerateCacheKey builds "quizierra:<service>:<object>:<identifier>[:<params>]".
// The identifier is escaped so that opaque ids containing the separator cannot
// collide with another key.
func GenerateCacheKey(serviceName, objectType, identifier string, paramsKey ...string) string {
	parts := []string{GlobalKeyPrefix, serviceName, objectType, url.QueryEscape(identifier)}
	if len(paramsKey) > 0 {
		parts = append(parts, strings.Join(paramsKey, "_"))
	}
	return strings.Join(parts, keySeparator)
}
