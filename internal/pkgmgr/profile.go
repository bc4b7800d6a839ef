// SPDX-License-Identifier: MPL-2.0

package pkgmgr

import (
	"fmt"

	"sdrprov/internal/catalog"
	"sdrprov/internal/hostexec"

	"mvdan.cc/sh/v3/shell"
)

// Unsupported marks a logical package the manager cannot provide. It reads
// the same as a missing entry: the package is skipped.
//
//nolint:gochecknoglobals // Sentinel mapping value.
var Unsupported PackageNames

type (
	// PackageNames are the manager-specific names for one logical package.
	PackageNames []string

	// Prerequisite is a setup step run before the first install when its
	// check command fails.
	Prerequisite struct {
		Description string
		Check       string
		Run         string
		Elevate     bool
	}

	// Profile describes one OS package manager.
	Profile struct {
		// ID is the executable probed for detection.
		ID   string
		GOOS []string
		// Refresh updates the package index. Empty means none.
		Refresh string
		// Install is the command template; package names are appended.
		Install string
		// Query checks whether a package is installed; names are appended.
		// Empty disables the check.
		Query string
		// PerPackage installs one name per invocation.
		PerPackage bool
		// Elevate runs Refresh and Install through sudo when unprivileged.
		Elevate       bool
		Prerequisites []Prerequisite
		Names         map[string]PackageNames
	}
)

// Resolve maps a logical package to the manager's names. ok is false when
// the manager has no entry for it or the entry is Unsupported.
func (p Profile) Resolve(logical string) (names PackageNames, ok bool) {
	names = p.Names[logical]
	if len(names) == 0 {
		return nil, false
	}
	return names, true
}

// command expands a template into a Command with extra trailing args.
func (p Profile) command(template string, elevate bool, extra ...string) (hostexec.Command, error) {
	fields, err := shell.Fields(template, func(string) string { return "" })
	if err != nil {
		return hostexec.Command{}, fmt.Errorf("parsing %s command %q: %w", p.ID, template, err)
	}
	if len(fields) == 0 {
		return hostexec.Command{}, fmt.Errorf("empty %s command template", p.ID)
	}
	c := hostexec.Command{Name: fields[0], Args: append(fields[1:], extra...)}
	if elevate {
		c = hostexec.Elevate(c)
	}
	return c, nil
}

// batches splits names into one invocation, or one per name for managers
// that take a single package id.
func (p Profile) batches(names PackageNames) [][]string {
	if !p.PerPackage {
		return [][]string{names}
	}
	out := make([][]string, 0, len(names))
	for _, n := range names {
		out = append(out, []string{n})
	}
	return out
}

func (p Profile) supports(goos string) bool {
	for _, g := range p.GOOS {
		if g == goos {
			return true
		}
	}
	return false
}

// Profiles returns every known profile in detection priority order.
//
//nolint:funlen // Flat data table.
func Profiles() []Profile {
	linux := []string{"linux"}
	return []Profile{
		{
			ID:      "apt-get",
			GOOS:    linux,
			Refresh: "env DEBIAN_FRONTEND=noninteractive apt-get update",
			Install: "env DEBIAN_FRONTEND=noninteractive apt-get install -y --no-install-recommends",
			Query:   "dpkg -s",
			Elevate: true,
			Names: map[string]PackageNames{
				catalog.PkgGit:            {"git"},
				catalog.PkgBuildEssential: {"build-essential"},
				catalog.PkgAutotools:      {"autoconf", "automake", "libtool"},
				catalog.PkgPkgConfig:      {"pkg-config"},
				catalog.PkgCMake:          {"cmake"},
				catalog.PkgLibUSB:         {"libusb-1.0-0-dev"},
				catalog.PkgPython:         {"python3"},
				catalog.PkgPythonPip:      {"python3-pip"},
				catalog.PkgPythonVenv:     {"python3-venv"},
				catalog.PkgPortAudio:      {"portaudio19-dev"},
			},
		},
		{
			ID:      "dnf",
			GOOS:    linux,
			Refresh: "dnf makecache -y",
			Install: "dnf install -y",
			Query:   "rpm -q",
			Elevate: true,
			Prerequisites: []Prerequisite{{
				Description: "dnf plugins",
				Check:       "rpm -q dnf-plugins-core",
				Run:         "dnf install -y dnf-plugins-core",
				Elevate:     true,
			}},
			Names: map[string]PackageNames{
				catalog.PkgGit:            {"git"},
				catalog.PkgCMake:          {"cmake"},
				catalog.PkgBuildEssential: {"gcc", "gcc-c++", "make"},
				catalog.PkgAutotools:      {"autoconf", "automake", "libtool"},
				catalog.PkgPkgConfig:      {"pkgconf-pkg-config"},
				catalog.PkgLibUSB:         {"libusb1-devel"},
				catalog.PkgPython:         {"python3"},
				catalog.PkgPythonPip:      {"python3-pip"},
				catalog.PkgPythonVenv:     Unsupported,
				catalog.PkgPortAudio:      {"portaudio-devel"},
			},
		},
		{
			ID:      "yum",
			GOOS:    linux,
			Refresh: "yum makecache -y",
			Install: "yum install -y",
			Query:   "rpm -q",
			Elevate: true,
			Names: map[string]PackageNames{
				catalog.PkgGit:            {"git"},
				catalog.PkgCMake:          {"cmake"},
				catalog.PkgBuildEssential: {"gcc", "gcc-c++", "make"},
				catalog.PkgAutotools:      {"autoconf", "automake", "libtool"},
				catalog.PkgPkgConfig:      {"pkgconfig"},
				catalog.PkgLibUSB:         {"libusbx-devel"},
				catalog.PkgPython:         {"python3"},
				catalog.PkgPythonPip:      {"python3-pip"},
				catalog.PkgPythonVenv:     Unsupported,
				catalog.PkgPortAudio:      {"portaudio-devel"},
			},
		},
		{
			ID:      "pacman",
			GOOS:    linux,
			Refresh: "pacman -Sy --noconfirm",
			Install: "pacman -S --noconfirm --needed",
			Query:   "pacman -Q",
			Elevate: true,
			Names: map[string]PackageNames{
				catalog.PkgGit:            {"git"},
				catalog.PkgCMake:          {"cmake"},
				catalog.PkgBuildEssential: {"base-devel"},
				catalog.PkgAutotools:      {"autoconf", "automake", "libtool"},
				catalog.PkgPkgConfig:      {"pkgconf"},
				catalog.PkgLibUSB:         {"libusb"},
				catalog.PkgPython:         {"python"},
				catalog.PkgPythonPip:      {"python-pip"},
				catalog.PkgPythonVenv:     Unsupported,
				catalog.PkgPortAudio:      {"portaudio"},
			},
		},
		{
			ID:      "zypper",
			GOOS:    linux,
			Refresh: "zypper --non-interactive refresh",
			Install: "zypper --non-interactive install",
			Query:   "rpm -q",
			Elevate: true,
			Names: map[string]PackageNames{
				catalog.PkgGit:            {"git"},
				catalog.PkgCMake:          {"cmake"},
				catalog.PkgBuildEssential: {"gcc", "gcc-c++", "make"},
				catalog.PkgAutotools:      {"autoconf", "automake", "libtool"},
				catalog.PkgPkgConfig:      {"pkg-config"},
				catalog.PkgLibUSB:         {"libusb-1_0-devel"},
				catalog.PkgPython:         {"python3"},
				catalog.PkgPythonPip:      {"python3-pip"},
				catalog.PkgPythonVenv:     Unsupported,
				catalog.PkgPortAudio:      {"portaudio-devel"},
			},
		},
		{
			ID:      "apk",
			GOOS:    linux,
			Refresh: "apk update",
			Install: "apk add --no-cache",
			Query:   "apk info -e",
			Elevate: true,
			Names: map[string]PackageNames{
				catalog.PkgGit:            {"git"},
				catalog.PkgCMake:          {"cmake"},
				catalog.PkgBuildEssential: {"build-base"},
				catalog.PkgAutotools:      {"autoconf", "automake", "libtool"},
				catalog.PkgPkgConfig:      {"pkgconf"},
				catalog.PkgLibUSB:         {"libusb-dev"},
				catalog.PkgPython:         {"python3"},
				catalog.PkgPythonPip:      {"py3-pip"},
				catalog.PkgPythonVenv:     Unsupported,
				catalog.PkgPortAudio:      {"portaudio-dev"},
			},
		},
		{
			ID:      "brew",
			GOOS:    []string{"darwin", "linux"},
			Refresh: "brew update",
			Install: "brew install",
			Query:   "brew list --versions",
			Prerequisites: []Prerequisite{{
				Description: "Xcode command line tools",
				Check:       "xcode-select -p",
				Run:         "xcode-select --install",
			}},
			Names: map[string]PackageNames{
				catalog.PkgGit:            {"git"},
				catalog.PkgCMake:          {"cmake"},
				catalog.PkgBuildEssential: Unsupported,
				catalog.PkgAutotools:      {"autoconf", "automake", "libtool"},
				catalog.PkgPkgConfig:      {"pkg-config"},
				catalog.PkgLibUSB:         {"libusb"},
				catalog.PkgPython:         {"python"},
				catalog.PkgPythonPip:      Unsupported,
				catalog.PkgPythonVenv:     Unsupported,
				catalog.PkgPortAudio:      {"portaudio"},
			},
		},
		{
			ID:         "winget",
			GOOS:       []string{"windows"},
			Refresh:    "winget source update",
			Install:    "winget install --silent --exact --accept-package-agreements --accept-source-agreements --id",
			Query:      "winget list --exact --id",
			PerPackage: true,
			Names: map[string]PackageNames{
				catalog.PkgGit:            {"Git.Git"},
				catalog.PkgPython:         {"Python.Python.3.12"},
				catalog.PkgBuildEssential: Unsupported,
				catalog.PkgAutotools:      Unsupported,
				catalog.PkgPkgConfig:      Unsupported,
				catalog.PkgCMake:          {"Kitware.CMake"},
				catalog.PkgLibUSB:         Unsupported,
				catalog.PkgPythonPip:      Unsupported,
				catalog.PkgPythonVenv:     Unsupported,
				catalog.PkgPortAudio:      Unsupported,
			},
		},
		{
			ID:      "choco",
			GOOS:    []string{"windows"},
			Install: "choco install -y --no-progress",
			Names: map[string]PackageNames{
				catalog.PkgGit:            {"git"},
				catalog.PkgCMake:          {"cmake"},
				catalog.PkgPython:         {"python3"},
				catalog.PkgBuildEssential: Unsupported,
				catalog.PkgAutotools:      Unsupported,
				catalog.PkgPkgConfig:      Unsupported,
				catalog.PkgLibUSB:         Unsupported,
				catalog.PkgPythonPip:      Unsupported,
				catalog.PkgPythonVenv:     Unsupported,
				catalog.PkgPortAudio:      Unsupported,
			},
		},
	}
}
