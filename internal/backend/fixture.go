package backend

import (
	"context"
	"fmt"
	"os/exec"
	"sort"
	"strings"
	"time"
)

// Fixture is a deterministic, in-memory Backend implementation. cmd/omgd
// serves it whether or not OMG_TEST_MODE is set, and the test suite uses it
// throughout. It never touches the real system package manager.
type Fixture struct {
	packages map[string]DetailedPackageInfo
	updates  []UpdateInfo
	orphans  int
}

// distroFamily selects which canned package set a Fixture seeds itself
// with, matching OMG_TEST_DISTRO.
type distroFamily string

const (
	DistroArch    distroFamily = "arch"
	DistroDebian  distroFamily = "debian"
	DistroGeneric distroFamily = "generic"
)

// NewFixture builds a Fixture seeded from the canned package set for the
// given distro family. An unrecognized family falls back to DistroGeneric.
func NewFixture(family string) *Fixture {
	pkgs := seedPackages(distroFamily(family))
	index := make(map[string]DetailedPackageInfo, len(pkgs))
	for _, p := range pkgs {
		index[p.Name] = p
	}
	return &Fixture{
		packages: index,
		updates:  seedUpdates(distroFamily(family)),
		orphans:  countSeedOrphans(pkgs),
	}
}

func (f *Fixture) ListInstalled(_ context.Context) ([]DetailedPackageInfo, error) {
	var out []DetailedPackageInfo
	for _, p := range f.packages {
		if p.Reason != "" {
			out = append(out, p)
		}
	}
	sortByName(out)
	return out, nil
}

func (f *Fixture) ListAvailable(_ context.Context) ([]DetailedPackageInfo, error) {
	out := make([]DetailedPackageInfo, 0, len(f.packages))
	for _, p := range f.packages {
		out = append(out, p)
	}
	sortByName(out)
	return out, nil
}

func (f *Fixture) QueryUpdates(_ context.Context) ([]UpdateInfo, error) {
	out := append([]UpdateInfo(nil), f.updates...)
	return out, nil
}

func (f *Fixture) ExactInfo(_ context.Context, name string) (DetailedPackageInfo, error) {
	p, ok := f.packages[name]
	if !ok {
		return DetailedPackageInfo{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return p, nil
}

// CountOrphans returns the number of seed packages whose InstallReason is
// ReasonDependency. It does not check whether another package depends on
// them, so dependency-installed packages that are still required are
// counted too.
func (f *Fixture) CountOrphans(_ context.Context) (int, error) {
	return f.orphans, nil
}

// knownRuntimes is the fixed set of language runtimes the daemon probes
// for RuntimeVersions, in display order.
var knownRuntimes = []struct {
	Name string
	Args []string
}{
	{"node", []string{"--version"}},
	{"python3", []string{"--version"}},
	{"go", []string{"version"}},
	{"rustc", []string{"--version"}},
}

// RuntimeVersions shells out to each known runtime's version flag with a
// bounded timeout, skipping any runtime that is absent or errors. This is
// the only place Fixture touches the real host; it never fails the caller.
func (f *Fixture) RuntimeVersions(ctx context.Context) ([]RuntimeVersion, error) {
	var out []RuntimeVersion
	for _, rt := range knownRuntimes {
		cctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
		cmd := exec.CommandContext(cctx, rt.Name, rt.Args...)
		output, err := cmd.Output()
		cancel()
		if err != nil {
			continue
		}
		out = append(out, RuntimeVersion{
			Name:    rt.Name,
			Version: strings.TrimSpace(string(output)),
		})
	}
	return out, nil
}

func sortByName(pkgs []DetailedPackageInfo) {
	sort.Slice(pkgs, func(i, j int) bool { return pkgs[i].Name < pkgs[j].Name })
}

func countSeedOrphans(pkgs []DetailedPackageInfo) int {
	n := 0
	for _, p := range pkgs {
		if p.Reason == ReasonDependency {
			n++
		}
	}
	return n
}

func seedPackages(family distroFamily) []DetailedPackageInfo {
	switch family {
	case DistroDebian:
		return []DetailedPackageInfo{
			mkPkg("vim", "2:9.1.0016-1", "Vi IMproved - enhanced vi editor", "apt", ReasonExplicit, []string{"vim-runtime", "libc6"}),
			mkPkg("vim-runtime", "2:9.1.0016-1", "Vi IMproved - runtime files", "apt", ReasonDependency, nil),
			mkPkg("curl", "8.5.0-2ubuntu10", "command line tool for transferring data", "apt", ReasonExplicit, []string{"libcurl4"}),
			mkPkg("libcurl4", "8.5.0-2ubuntu10", "easy-to-use client-side URL transfer library", "apt", ReasonDependency, nil),
			mkPkg("libc6", "2.39-0ubuntu8", "GNU C Library: Shared libraries", "apt", ReasonDependency, nil),
			mkPkg("git", "1:2.43.0-1ubuntu7", "fast, scalable, distributed revision control system", "apt", ReasonExplicit, []string{"libc6", "git-man"}),
			mkPkg("git-man", "1:2.43.0-1ubuntu7", "fast, scalable, distributed revision control system (manual pages)", "apt", "", nil),
			mkPkg("htop", "3.3.0-4", "interactive processes viewer", "apt", "", nil),
		}
	case DistroArch:
		return []DetailedPackageInfo{
			mkPkg("vim", "9.1.0672-1", "Vi Improved, a highly configurable, improved version of the vi text editor", "official", ReasonExplicit, []string{"gpm", "glibc"}),
			mkPkg("gpm", "1.20.7-14", "A mouse server for the console and xterm", "official", ReasonDependency, nil),
			mkPkg("glibc", "2.39+r52+gf8a0abf80c-1", "GNU C Library", "official", ReasonDependency, nil),
			mkPkg("yay", "12.3.5-1", "Yet another yogurt, pacman wrapper and AUR helper", "aur", ReasonExplicit, []string{"pacman", "git"}),
			mkPkg("pacman", "6.1.0-2", "A library-based package manager", "official", ReasonDependency, nil),
			mkPkg("git", "2.45.2-1", "the fast distributed version control system", "official", ReasonExplicit, []string{"glibc", "curl"}),
			mkPkg("curl", "8.8.0-1", "command line tool and library for transferring data", "official", ReasonDependency, nil),
			mkPkg("neofetch", "7.1.0-2", "A CLI system information tool", "official", "", nil),
		}
	default:
		return []DetailedPackageInfo{
			mkPkg("vim", "9.0.0", "terminal text editor", "generic", ReasonExplicit, []string{"libc"}),
			mkPkg("libc", "2.38", "standard C library", "generic", ReasonDependency, nil),
			mkPkg("curl", "8.4.0", "command line data transfer tool", "generic", ReasonExplicit, nil),
			mkPkg("make", "4.4.1", "GNU build automation tool", "generic", "", nil),
		}
	}
}

func seedUpdates(family distroFamily) []UpdateInfo {
	switch family {
	case DistroDebian:
		return []UpdateInfo{{Name: "curl", OldVersion: "8.5.0-2ubuntu10", NewVersion: "8.5.0-2ubuntu11", Repo: "jammy-updates"}}
	case DistroArch:
		return []UpdateInfo{
			{Name: "git", OldVersion: "2.45.2-1", NewVersion: "2.46.0-1", Repo: "core"},
			{Name: "yay", OldVersion: "12.3.5-1", NewVersion: "12.4.0-1", Repo: "aur"},
		}
	default:
		return nil
	}
}

func mkPkg(name, version, desc string, source SourceTag, reason InstallReason, deps []string) DetailedPackageInfo {
	return DetailedPackageInfo{
		PackageInfo: PackageInfo{
			Name:        name,
			Version:     version,
			Description: desc,
			Source:      source,
		},
		Repo:         string(source),
		Dependencies: deps,
		Licenses:     []string{"GPL-2.0-or-later"},
		Reason:       reason,
	}
}
