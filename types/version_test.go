package types

import (
	"errors"
	"testing"
)

func TestParseTag_ValidTags(t *testing.T) {
	tags := []string{
		"v1.2.3",
		"v0.0.1",
		"v10.20.30",
		"v1.2.3-rc.1",
		"v1.2.3+build5",
		"v2.0.0-alpha",
	}
	for _, tag := range tags {
		v, err := ParseTag(tag)
		if err != nil {
			t.Errorf("ParseTag(%q) returned error: %v", tag, err)
			continue
		}
		if v.String() != tag {
			t.Errorf("ParseTag(%q) = %q, want the tag itself", tag, v)
		}
	}
}

func TestParseTag_InvalidTags(t *testing.T) {
	tags := []string{
		"1.2.3",     // missing v prefix
		"v1.2",      // missing patch
		"release-1", // not a version at all
		"va.b.c",
	}
	for _, tag := range tags {
		if _, err := ParseTag(tag); err == nil {
			t.Errorf("ParseTag(%q) succeeded, want error", tag)
		}
	}
}

func TestParseTag_Empty(t *testing.T) {
	_, err := ParseTag("")
	if !errors.Is(err, ErrEmptyVersion) {
		t.Fatalf("ParseTag(\"\") error = %v, want ErrEmptyVersion", err)
	}
}

func TestVersion_Validate(t *testing.T) {
	if err := Version("v1.2.3").Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := Version("").Validate(); !errors.Is(err, ErrEmptyVersion) {
		t.Fatalf("empty version error = %v, want ErrEmptyVersion", err)
	}
}
