//nolint:revive // types is a common Go package naming convention
package types

import (
	"errors"
	"fmt"
	"regexp"
)

// ToolVersion is the canonical slipway version.
// The CLI and the release report share this version (lockstep versioning).
const ToolVersion = "0.4.0"

// Version is the resolved release version label.
// Exactly one Version exists per pipeline run; every artifact name and every
// upload call references the same value. Immutable once resolved.
type Version string

// tagPattern matches release tags of the form v<major>.<minor>.<patch>
// with an optional suffix (e.g. v1.2.3, v0.4.0-rc.1, v2.0.0+build5).
var tagPattern = regexp.MustCompile(`^v\d+\.\d+\.\d+`)

// ErrEmptyVersion is returned when no version could be derived.
var ErrEmptyVersion = errors.New("no release version: neither an explicit version nor a trigger tag was provided")

// ParseTag validates a trigger tag and returns it as a Version.
// Tags must match v<major>.<minor>.<patch>[suffix].
func ParseTag(tag string) (Version, error) {
	if tag == "" {
		return "", ErrEmptyVersion
	}
	if !tagPattern.MatchString(tag) {
		return "", fmt.Errorf("tag %q does not match v<major>.<minor>.<patch>[suffix]", tag)
	}
	return Version(tag), nil
}

// Validate checks that the version is non-empty.
func (v Version) Validate() error {
	if v == "" {
		return ErrEmptyVersion
	}
	return nil
}

func (v Version) String() string { return string(v) }
