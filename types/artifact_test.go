package types

import "testing"

func TestArtifactFileName(t *testing.T) {
	tests := []struct {
		platform string
		format   PackagingFormat
		want     string
	}{
		{"linux", FormatZip, "demo-v1.2.3-linux.zip"},
		{"windows", FormatZip, "demo-v1.2.3-windows.zip"},
		{"macos", FormatDiskImage, "demo-v1.2.3-macos.dmg"},
		{"linux", FormatTarGz, "demo-v1.2.3-linux.tar.gz"},
	}
	for _, tt := range tests {
		got := ArtifactFileName("demo", "v1.2.3", tt.platform, tt.format)
		if got != tt.want {
			t.Errorf("ArtifactFileName(%s, %s) = %q, want %q", tt.platform, tt.format, got, tt.want)
		}
	}
}

// Names differ iff platform_id differs, given identical package and version.
func TestArtifactName_UniquenessByPlatform(t *testing.T) {
	platforms := []string{"linux", "windows", "macos"}
	seen := make(map[string]string)
	for _, p := range platforms {
		name := ArtifactFileName("demo", "v1.2.3", p, FormatZip)
		if prev, dup := seen[name]; dup {
			t.Fatalf("platforms %s and %s produced the same name %q", prev, p, name)
		}
		seen[name] = p
	}

	// Same tuple twice produces the identical name (deterministic).
	a := ArtifactFileName("demo", "v1.2.3", "linux", FormatZip)
	b := ArtifactFileName("demo", "v1.2.3", "linux", FormatZip)
	if a != b {
		t.Fatalf("identical inputs produced different names: %q vs %q", a, b)
	}
}

func TestPlatformSpec_Validate(t *testing.T) {
	valid := PlatformSpec{ID: "linux", Target: "x86_64-unknown-linux-gnu", Profile: "release", Format: FormatZip}
	if err := valid.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		name string
		spec PlatformSpec
	}{
		{"empty id", PlatformSpec{Target: "t", Format: FormatZip}},
		{"id with separator", PlatformSpec{ID: "lin/ux", Target: "t", Format: FormatZip}},
		{"empty target", PlatformSpec{ID: "linux", Format: FormatZip}},
		{"bad format", PlatformSpec{ID: "linux", Target: "t", Format: "rar"}},
	}
	for _, tt := range tests {
		if err := tt.spec.Validate(); err == nil {
			t.Errorf("%s: Validate succeeded, want error", tt.name)
		}
	}
}

func TestPlatformSpec_Windows(t *testing.T) {
	win := PlatformSpec{ID: "windows", Target: "x86_64-pc-windows-msvc"}
	if !win.Windows() {
		t.Error("windows spec not detected")
	}
	linux := PlatformSpec{ID: "linux", Target: "x86_64-unknown-linux-gnu"}
	if linux.Windows() {
		t.Error("linux spec detected as windows")
	}
}
