// SPDX-License-Identifier: EPL-2.0

package issue

import (
	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

type Id int

const (
	PrivilegeRequiredId Id = iota + 1
	ConfigLoadFailedId
	NoPackageManagerId
	PackageInstallFailedId
	ToolDownloadFailedId
	SourceBuildFailedId
	InterpreterNotFoundId
	RequirementsInstallFailedId
	SearchPathPersistFailedId
	ToolInstallFailedId
)

type MarkdownMsg string

type HttpLink string

type Renderer interface {
	Render(in string, stylePath string) (string, error)
}

type Issue struct {
	id       Id          // ID used to lookup the issue
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	docLinks []HttpLink  // project documentation for this issue
	extLinks []HttpLink  // external links that might be useful for the user
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

func (i *Issue) Render(stylePath string) (string, error) {
	extraMd := ""
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		extraMd += "\n\n"
		extraMd += "## See also:\n"
		for _, link := range i.docLinks {
			extraMd += "- [" + string(link) + "](" + string(link) + ")\n"
		}
		for _, link := range i.extLinks {
			extraMd += "- [" + string(link) + "](" + string(link) + ")\n"
		}
	}
	return render(string(i.mdMsg)+extraMd, stylePath)
}

var (
	render = glamour.Render

	privilegeRequiredIssue = &Issue{
		id: PrivilegeRequiredId,
		mdMsg: `
# Administrative rights required!

Provisioning installs OS packages and writes system-wide files, so it needs
administrative rights.

## Things you can try:
- On Linux or macOS, make sure ` + "`sudo`" + ` is installed and your user may use it,
  or run as root:
~~~
$ sudo sdrprov
~~~

- On Windows, open a terminal with **Run as administrator** and run ` + "`sdrprov`" + ` again.`,
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

The configuration file could not be read or did not match the schema.

## Things you can try:
- Check the syntax of your config file (` + "`config.cue`" + ` or ` + "`config.toml`" + `)
- Remove unknown keys; only these are accepted:
~~~toml
install_root = "/opt/sdrprov"
venv_dir = ".venv"
requirements_file = "requirements.txt"

[network]
attempt_timeout = "5m"
max_attempts = 3
~~~

- Point to a different file:
~~~
$ sdrprov --config /path/to/config.toml
~~~`,
	}

	noPackageManagerIssue = &Issue{
		id: NoPackageManagerId,
		mdMsg: `
# No package manager found!

None of apt-get, dnf, yum, pacman, zypper, apk, brew, winget or choco was found,
so OS packages were not installed. The remaining steps still ran.

## Things you can try:
- Install git, a C toolchain, autotools, pkg-config, libusb, portaudio and Python 3
  by hand
- On macOS, install Homebrew and run ` + "`sdrprov`" + ` again
- On Windows, install winget (App Installer) or Chocolatey`,
		extLinks: []HttpLink{"https://brew.sh", "https://learn.microsoft.com/windows/package-manager/winget/"},
	}

	packageInstallFailedIssue = &Issue{
		id: PackageInstallFailedId,
		mdMsg: `
# Package installation failed!

The package manager returned an error for one or more packages.

## Things you can try:
- Run the install command shown above by hand to see the full output
- Refresh your package index and check network access to your mirrors
- Make sure no other package manager process holds the lock`,
	}

	toolDownloadFailedIssue = &Issue{
		id: ToolDownloadFailedId,
		mdMsg: `
# Tool download failed!

Every mirror for a prebuilt tool archive was rejected.

## Things you can try:
- Check network access to the mirrors listed above
- Follow the manual steps printed for the tool
- Host the archive yourself and add a ` + "`file://`" + ` or ` + "`s3://`" + ` mirror`,
	}

	toolInstallFailedIssue = &Issue{
		id: ToolInstallFailedId,
		mdMsg: `
# Tool installation failed!

The archive was downloaded and verified, but unpacking it into the tools
directory did not produce the expected programs.

## Things you can try:
- Check free disk space and write access to the tools directory shown above
- Remove the tool directory and run ` + "`sdrprov`" + ` again
- Follow the manual steps printed for the tool`,
	}

	sourceBuildFailedIssue = &Issue{
		id: SourceBuildFailedId,
		mdMsg: `
# Source build failed!

A tool could not be built from source. The failing step and the most likely
missing prerequisite are shown above.

## Things you can try:
- Install the build prerequisites (compiler, make, autotools, pkg-config, libusb headers)
- Point the build at a reachable repository:
~~~
$ SDRPROV_RTLSDR_SOURCE_URL=https://github.com/osmocom/rtl-sdr.git sdrprov
~~~`,
		extLinks: []HttpLink{"https://osmocom.org/projects/rtl-sdr/wiki"},
	}

	interpreterNotFoundIssue = &Issue{
		id: InterpreterNotFoundId,
		mdMsg: `
# Python not found!

No Python 3.8 or newer interpreter was found, so the Python requirements
were not installed.

## Things you can try:
- Install Python 3 with your package manager or from python.org
- Make sure ` + "`python3`" + ` (or ` + "`py`" + ` on Windows) is on your PATH
- Run ` + "`sdrprov`" + ` again`,
		extLinks: []HttpLink{"https://www.python.org/downloads/"},
	}

	requirementsInstallFailedIssue = &Issue{
		id: RequirementsInstallFailedId,
		mdMsg: `
# Python requirements failed to install!

pip could not install the packages listed in the requirements file.

## Things you can try:
- Install the PortAudio development headers (needed to build PyAudio)
- Activate the environment and run pip by hand:
~~~
$ . .venv/bin/activate
$ python -m pip install -r requirements.txt
~~~`,
	}

	searchPathPersistFailedIssue = &Issue{
		id: SearchPathPersistFailedId,
		mdMsg: `
# Could not save PATH changes!

Tools were installed, but their directories could not be added to the
persistent search path.

## Things you can try:
- Add the directories listed above to your PATH by hand
- Check that your shell profile (or the Windows environment registry key) is writable`,
	}

	issues = map[Id]*Issue{
		privilegeRequiredIssue.Id():         privilegeRequiredIssue,
		configLoadFailedIssue.Id():          configLoadFailedIssue,
		noPackageManagerIssue.Id():          noPackageManagerIssue,
		packageInstallFailedIssue.Id():      packageInstallFailedIssue,
		toolDownloadFailedIssue.Id():        toolDownloadFailedIssue,
		sourceBuildFailedIssue.Id():         sourceBuildFailedIssue,
		interpreterNotFoundIssue.Id():       interpreterNotFoundIssue,
		requirementsInstallFailedIssue.Id(): requirementsInstallFailedIssue,
		searchPathPersistFailedIssue.Id():   searchPathPersistFailedIssue,
		toolInstallFailedIssue.Id():         toolInstallFailedIssue,
	}
)

func Values() []*Issue {
	return maps.Values(issues)
}

func Get(id Id) *Issue {
	return issues[id]
}
