// SPDX-License-Identifier: MPL-2.0

// Package catalog holds the fixed provisioning tables: which tools the SDR
// scanner needs, where their prebuilt archives live, how to build them from
// source, and which OS packages must be present.
package catalog

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Logical OS package names. Each maps to concrete names per package manager
// in pkgmgr.
const (
	PkgGit            = "git"
	PkgBuildEssential = "build-essential"
	PkgAutotools      = "autotools"
	PkgPkgConfig      = "pkg-config"
	PkgCMake          = "cmake"
	PkgLibUSB         = "libusb"
	PkgPython         = "python"
	PkgPythonPip      = "python-pip"
	PkgPythonVenv     = "python-venv"
	PkgPortAudio      = "portaudio"
)

// RTLSDR is the name shared by the rtl-sdr ToolSpec and BuildTarget.
const RTLSDR = "rtl-sdr"

type (
	// Layout is where provisioned artifacts live on this host.
	Layout struct {
		// InstallRoot contains tools/ and build-cache/.
		InstallRoot string
		// Prefix is the configure --prefix for source builds.
		Prefix string
	}

	// ToolSpec describes a prebuilt tool distributed as an archive.
	ToolSpec struct {
		Name string
		// URLs are candidate archives in preference order.
		URLs []string
		// Checksums maps an exact URL to its SHA256. Optional.
		Checksums map[string]string
		// TargetDir is the directory the archive payload is installed into.
		TargetDir string
		// Executables must all resolve for the tool to count as installed.
		Executables []string
		// Remediation lists manual steps shown when installation fails.
		Remediation []string
		// BuildTarget names the source build used when no archive works.
		// Empty means the tool has no source fallback.
		BuildTarget string
	}

	// BuildTarget describes a tool built from a source repository.
	BuildTarget struct {
		Name string
		// PrimaryURL may be overridden through EnvOverride.
		PrimaryURL  string
		MirrorURL   string
		EnvOverride string
		ClonePath   string
		Prefix      string
		Executables []string
		// Packages are the logical OS packages the build needs.
		Packages []string
	}
)

// ToolsDir returns the directory holding installed tool payloads.
func (l Layout) ToolsDir() string { return filepath.Join(l.InstallRoot, "tools") }

// BuildCacheDir returns the directory holding source checkouts.
func (l Layout) BuildCacheDir() string { return filepath.Join(l.InstallRoot, "build-cache") }

// HasArchives reports whether the tool has any prebuilt archive candidates.
func (t ToolSpec) HasArchives() bool { return len(t.URLs) > 0 }

// WithPins returns a copy of t whose Checksums include every pin whose URL
// appears in t.URLs. Existing entries win.
func (t ToolSpec) WithPins(pins map[string]string) ToolSpec {
	if len(pins) == 0 {
		return t
	}
	merged := make(map[string]string, len(t.Checksums))
	for k, v := range t.Checksums {
		merged[k] = v
	}
	for _, u := range t.URLs {
		if _, ok := merged[u]; ok {
			continue
		}
		if sum, ok := pins[u]; ok {
			merged[u] = sum
		}
	}
	t.Checksums = merged
	return t
}

// SourceURL returns the primary URL, honoring the environment override.
func (b BuildTarget) SourceURL() string {
	if b.EnvOverride != "" {
		if v := strings.TrimSpace(os.Getenv(b.EnvOverride)); v != "" {
			return v
		}
	}
	return b.PrimaryURL
}

// Tools returns the ToolSpecs for goos.
func Tools(goos string, l Layout) []ToolSpec {
	rtl := ToolSpec{
		Name:        RTLSDR,
		TargetDir:   filepath.Join(l.ToolsDir(), RTLSDR),
		Executables: []string{"rtl_power", "rtl_fm"},
		BuildTarget: RTLSDR,
	}

	switch goos {
	case "windows":
		rtl.URLs = []string{
			"https://github.com/rtlsdrblog/rtl-sdr-blog/releases/download/v1.3.6/Release.zip",
			"https://ftp.osmocom.org/binaries/windows/rtl-sdr/rtl-sdr-64bit-20230716.zip",
			"https://ftp.osmocom.org/binaries/windows/rtl-sdr/rtl-sdr-32bit-20230716.zip",
		}
		rtl.Executables = []string{"rtl_power.exe", "rtl_fm.exe"}
		rtl.BuildTarget = ""
		rtl.Remediation = []string{
			"Download the latest rtl-sdr Windows release zip from https://github.com/rtlsdrblog/rtl-sdr-blog/releases",
			"Extract it to " + rtl.TargetDir,
			"Install the WinUSB driver for the dongle with Zadig (https://zadig.akeo.ie)",
			"Re-run sdrprov to register the directory on PATH",
		}
	default:
		// No trustworthy prebuilt archives for Unix; build from source.
		rtl.Remediation = []string{
			"Install rtl-sdr with your package manager (e.g. 'apt install rtl-sdr' or 'brew install librtlsdr')",
			"Or build it manually from https://gitea.osmocom.org/sdr/rtl-sdr",
		}
	}
	return []ToolSpec{rtl}
}

// BuildTargets returns the source builds available on goos.
func BuildTargets(goos string, l Layout) []BuildTarget {
	if goos == "windows" {
		return nil
	}
	return []BuildTarget{{
		Name:        RTLSDR,
		PrimaryURL:  "https://gitea.osmocom.org/sdr/rtl-sdr.git",
		MirrorURL:   "https://github.com/osmocom/rtl-sdr.git",
		EnvOverride: "SDRPROV_RTLSDR_SOURCE_URL",
		ClonePath:   filepath.Join(l.BuildCacheDir(), RTLSDR),
		Prefix:      l.Prefix,
		Executables: []string{"rtl_power", "rtl_fm"},
		Packages:    []string{PkgGit, PkgBuildEssential, PkgAutotools, PkgPkgConfig, PkgLibUSB},
	}}
}

// FindBuildTarget returns the target named name.
func FindBuildTarget(targets []BuildTarget, name string) (BuildTarget, bool) {
	i := slices.IndexFunc(targets, func(b BuildTarget) bool { return b.Name == name })
	if i < 0 {
		return BuildTarget{}, false
	}
	return targets[i], true
}

// Packages returns the logical OS packages to install on goos, in order.
// Build prerequisites come first so a later source build finds them.
func Packages(goos string) []string {
	switch goos {
	case "windows":
		return []string{PkgGit, PkgPython}
	default:
		return []string{
			PkgGit, PkgBuildEssential, PkgAutotools, PkgPkgConfig, PkgCMake,
			PkgLibUSB, PkgPython, PkgPythonPip, PkgPythonVenv, PkgPortAudio,
		}
	}
}
