// Package save implements the two orthogonal snapshot formats of §6: a
// globals snapshot (format version, key, optional group, and a
// recursively-walked, deduplicated value graph per exported global) and a
// resume snapshot (the full live heap, call stack, operand stack and IP).
// The core is agnostic to how these are persisted; GlobalStore and
// ResumeStore are this module's default implementations, backed by
// github.com/akrylysov/pogreb and go.etcd.io/bbolt respectively.
package save

import (
	"github.com/blang/semver/v4"

	"github.com/ainrun/ainvm/vmerr"
)

// FormatVersion is the version tag stamped on every snapshot this module
// writes. It is parsed with blang/semver so a future incompatible change
// to either format can bump the minor/major component and be rejected by
// older readers instead of silently misinterpreting bytes.
var FormatVersion = semver.MustParse("1.0.0")

// checkVersion parses tag and rejects it as a DataError if it is not
// compatible with FormatVersion (same major version, per semver's
// public-API compatibility convention).
func checkVersion(tag string) error {
	v, err := semver.Parse(tag)
	if err != nil {
		return vmerr.NewData("malformed format version tag", err)
	}
	if v.Major != FormatVersion.Major {
		return vmerr.NewData("incompatible snapshot format version: "+tag, nil)
	}
	return nil
}
