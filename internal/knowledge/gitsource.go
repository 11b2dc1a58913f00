// Copyright 2026 The mathrouter Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package knowledge

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing"
	log "github.com/sirupsen/logrus"

	"github.com/solvernet/mathrouter/internal/config"
)

// SyncFromGit clones or updates the corpus repository and returns the path
// of the corpus file inside the checkout. A pull failure on an existing
// checkout is logged and tolerated so the engine still starts offline with
// the last synced corpus; a failed first clone is fatal because there is no
// local data to fall back to.
func SyncFromGit(ctx context.Context, cfg *config.GitSourceConfig) (string, error) {
	if cfg.URL == "" {
		return "", fmt.Errorf("git corpus source requires a repository URL")
	}
	if cfg.Dir == "" {
		return "", fmt.Errorf("git corpus source requires a checkout directory")
	}

	repo, err := git.PlainOpen(cfg.Dir)
	switch {
	case errors.Is(err, git.ErrRepositoryNotExists):
		log.Infof("Cloning knowledge corpus from %s into %s", cfg.URL, cfg.Dir)
		cloneOpts := &git.CloneOptions{
			URL:          cfg.URL,
			SingleBranch: true,
			Depth:        1,
		}
		if cfg.Ref != "" {
			cloneOpts.ReferenceName = plumbing.NewBranchReferenceName(cfg.Ref)
		}
		if _, err := git.PlainCloneContext(ctx, cfg.Dir, cloneOpts); err != nil {
			return "", fmt.Errorf("failed to clone corpus repository: %w", err)
		}
	case err != nil:
		return "", fmt.Errorf("failed to open corpus checkout %s: %w", cfg.Dir, err)
	default:
		if err := pullCorpus(ctx, repo, cfg.Ref); err != nil {
			log.Warnf("Corpus pull failed, using existing checkout: %v", err)
		}
	}

	corpusPath := filepath.Join(cfg.Dir, cfg.File)
	if _, err := os.Stat(corpusPath); err != nil {
		return "", fmt.Errorf("corpus file %s missing after sync: %w", corpusPath, err)
	}
	return corpusPath, nil
}

func pullCorpus(ctx context.Context, repo *git.Repository, ref string) error {
	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to open worktree: %w", err)
	}
	pullOpts := &git.PullOptions{
		RemoteName:   "origin",
		SingleBranch: true,
	}
	if ref != "" {
		pullOpts.ReferenceName = plumbing.NewBranchReferenceName(ref)
	}
	err = wt.PullContext(ctx, pullOpts)
	if errors.Is(err, git.NoErrAlreadyUpToDate) {
		log.Debugf("Knowledge corpus already up to date")
		return nil
	}
	if err != nil {
		return err
	}
	log.Infof("Knowledge corpus updated from remote")
	return nil
}
