/*
Copyright 2026 Opsleuth Authors
SPDX-License-Identifier: Apache-2.0
*/

package remedy

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
)

const workspaceDirPrefix = "opsleuth-remedy-"

// maxFileBytes is the largest file the selection step will offer to the
// model. Anything bigger is almost certainly generated or vendored.
const maxFileBytes = 256 * 1024

// cloneRepo resolves a remote URL into a repository on disk. Tests override
// this to build local fixtures without a network.
var cloneRepo = defaultClone

func defaultClone(ctx context.Context, url, dir string, auth transport.AuthMethod) (*git.Repository, error) {
	return git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
		URL:  url,
		Auth: auth,
	})
}

// Workspace is an ephemeral clone of the target repository. Close removes
// the backing directory and must be called on every exit path.
type Workspace struct {
	dir  string
	repo *git.Repository

	baseSHA    plumbing.Hash
	baseBranch string
}

// acquireWorkspace clones the repository's default branch into a fresh
// temporary directory. On any failure the directory is removed before
// returning.
func acquireWorkspace(ctx context.Context, url string, auth transport.AuthMethod) (*Workspace, error) {
	dir, err := os.MkdirTemp("", workspaceDirPrefix)
	if err != nil {
		return nil, fmt.Errorf("creating workspace directory: %w", err)
	}

	repo, err := cloneRepo(ctx, url, dir, auth)
	if err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("cloning %s: %w", url, err)
	}

	head, err := repo.Head()
	if err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("resolving HEAD of %s: %w", url, err)
	}

	return &Workspace{
		dir:        dir,
		repo:       repo,
		baseSHA:    head.Hash(),
		baseBranch: head.Name().Short(),
	}, nil
}

// Close removes the workspace directory.
func (w *Workspace) Close() error {
	return os.RemoveAll(w.dir)
}

// Dir returns the workspace root on disk.
func (w *Workspace) Dir() string { return w.dir }

// Files enumerates the candidate source files in the working tree, relative
// to the root. The .git directory, binary content, and files over
// maxFileBytes are skipped.
func (w *Workspace) Files() ([]string, error) {
	var out []string
	err := filepath.WalkDir(w.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == git.GitDirName {
				return filepath.SkipDir
			}
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.Size() > maxFileBytes || !info.Mode().IsRegular() {
			return nil
		}
		binary, err := isBinary(path)
		if err != nil {
			return err
		}
		if binary {
			return nil
		}
		rel, err := filepath.Rel(w.dir, path)
		if err != nil {
			return err
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("enumerating workspace files: %w", err)
	}
	return out, nil
}

// Read returns the content of a workspace-relative path, rejecting paths
// that escape the workspace root.
func (w *Workspace) Read(path string) (string, error) {
	full, err := w.resolve(path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (w *Workspace) resolve(path string) (string, error) {
	full := filepath.Join(w.dir, filepath.Clean(path))
	rel, err := filepath.Rel(w.dir, full)
	if err != nil {
		return "", fmt.Errorf("path %q: %w", path, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes workspace", path)
	}
	return full, nil
}

// isBinary sniffs the first kilobytes for a NUL byte.
func isBinary(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	buf := make([]byte, 8000)
	n, err := f.Read(buf)
	if err != nil && n == 0 {
		return false, nil
	}
	return bytes.IndexByte(buf[:n], 0) >= 0, nil
}
