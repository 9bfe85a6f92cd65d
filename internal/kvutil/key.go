// Package kvutil maps lock, subject and bucket names onto valid NATS identifiers.
package kvutil

import (
	"regexp"
	"strconv"

	"github.com/zeebo/xxh3"
)

var (
	validKey     = regexp.MustCompile(`^[-/_=.a-zA-Z0-9]+$`)
	validToken   = regexp.MustCompile(`^[-_a-zA-Z0-9]+$`)
	validBucket  = validToken
	hashedPrefix = "h_"
)

// SafeKey maps an arbitrary lock name to a valid JetStream KV key.
//
// Names that are already valid keys are returned unchanged so records stay
// readable with the nats CLI. Anything else is replaced by a stable xxh3
// digest, which every process computes identically.
func SafeKey(name string) string {
	if validKey.MatchString(name) && name[0] != '.' && name[len(name)-1] != '.' {
		return name
	}

	return digest(name)
}

// SafeToken maps an arbitrary name to a single NATS subject token
// (no dots or wildcards).
func SafeToken(name string) string {
	if validToken.MatchString(name) {
		return name
	}

	return digest(name)
}

// SafeBucket maps an arbitrary store name to a valid KV bucket name.
func SafeBucket(name string) string {
	if validBucket.MatchString(name) {
		return name
	}

	return digest(name)
}

func digest(name string) string {
	return hashedPrefix + strconv.FormatUint(xxh3.HashString(name), 16)
}
