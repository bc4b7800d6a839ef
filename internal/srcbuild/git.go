// SPDX-License-Identifier: MPL-2.0

package srcbuild

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/transport"
)

const defaultCloneTimeout = 10 * time.Minute

// ErrNonFastForward is returned by Update when the local checkout has
// diverged from upstream. The checkout is left untouched.
var ErrNonFastForward = errors.New("local checkout cannot be fast-forwarded")

type (
	// Cloner obtains and refreshes source checkouts.
	Cloner interface {
		// Clone checks out url into dest, which must not exist. A failed
		// clone leaves nothing at dest.
		Clone(ctx context.Context, url, dest string) error
		// Update fast-forwards the checkout at dir to its upstream.
		Update(ctx context.Context, dir string) error
	}

	// GitCloner implements Cloner with go-git. It never prompts for
	// credentials; only anonymous access is attempted.
	GitCloner struct {
		timeout time.Duration
	}
)

// NewGitCloner creates a GitCloner bounding each network operation by
// timeout. A zero timeout selects the default of ten minutes.
func NewGitCloner(timeout time.Duration) *GitCloner {
	if timeout <= 0 {
		timeout = defaultCloneTimeout
	}
	return &GitCloner{timeout: timeout}
}

// Clone performs a single-branch clone. Network remotes are cloned
// shallow; local paths are cloned in full.
func (g *GitCloner) Clone(ctx context.Context, url, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	opts := &git.CloneOptions{
		URL:          url,
		SingleBranch: true,
		Tags:         git.NoTags,
	}
	if isNetworkURL(url) {
		opts.Depth = 1
	}

	if _, err := git.PlainCloneContext(ctx, dest, false, opts); err != nil {
		// Clean up failed attempt (best-effort)
		_ = os.RemoveAll(dest)
		return err
	}
	return nil
}

// Update pulls the checked-out branch from origin, fast-forward only.
func (g *GitCloner) Update(ctx context.Context, dir string) error {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return fmt.Errorf("opening %s: %w", dir, err)
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	err = worktree.PullContext(ctx, &git.PullOptions{
		RemoteName:   "origin",
		SingleBranch: true,
	})
	switch {
	case err == nil, errors.Is(err, git.NoErrAlreadyUpToDate):
		return nil
	case errors.Is(err, git.ErrNonFastForwardUpdate):
		return fmt.Errorf("%w: %s", ErrNonFastForward, dir)
	default:
		return err
	}
}

// isNetworkURL reports whether url names a remote reached over the network.
func isNetworkURL(url string) bool {
	ep, err := transport.NewEndpoint(url)
	if err != nil {
		return false
	}
	return ep.Protocol != "file"
}
