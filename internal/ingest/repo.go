package ingest

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/appgrove/appgrove-server/internal/bundle"
	"github.com/appgrove/appgrove-server/internal/log"
	"github.com/appgrove/appgrove-server/internal/xerrors"
)

var repoRefPattern = regexp.MustCompile(`github\.com/([^/]+)/([^/]+)`)

// RepoAdapter downloads a repository branch snapshot archive and unpacks
// it into a bundle. The primary default branch is probed first; a
// not-found response falls back to the legacy name once. That fallback
// is the only built-in retry.
type RepoAdapter struct {
	Client   *http.Client
	MaxBytes int64
	Logger   log.Logger

	// baseURL overrides the snapshot host in tests.
	baseURL string
}

// NewRepoAdapter applies the snapshot limits.
func NewRepoAdapter(maxBytes int64, timeout time.Duration, logger log.Logger) *RepoAdapter {
	if logger == nil {
		logger = log.Nop()
	}
	return &RepoAdapter{
		Client:   &http.Client{Timeout: timeout},
		MaxBytes: maxBytes,
		Logger:   logger,
	}
}

// Identity canonicalizes a repository reference for the duplicate guard.
// An error means the reference is not a recognizable repository URL.
func (a *RepoAdapter) Identity(repoURL string) (string, error) {
	m := repoRefPattern.FindStringSubmatch(repoURL)
	if m == nil {
		return "", xerrors.Ef(xerrors.KindInput, "not a recognizable repository URL: %s", repoURL)
	}
	owner, name := m[1], strings.TrimSuffix(m[2], ".git")
	return "https://github.com/" + owner + "/" + name, nil
}

// Fetch downloads the snapshot, extracts it into destDir and hoists the
// export's wrapper directory.
func (a *RepoAdapter) Fetch(ctx context.Context, repoURL, destDir string) (*bundle.Bundle, error) {
	identity, err := a.Identity(repoURL)
	if err != nil {
		return nil, err
	}

	var data []byte
	for i, branch := range []string{"main", "master"} {
		snapshot := a.snapshotURL(identity, branch)
		a.Logger.Info(ctx, "downloading repository snapshot", "url", snapshot)

		var status int
		data, status, err = fetchLimited(ctx, a.Client, snapshot, a.MaxBytes)
		if err == nil {
			break
		}
		if i == 0 && status == http.StatusNotFound {
			a.Logger.Info(ctx, "default branch missing, retrying legacy branch", "repo", identity)
			continue
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	b, err := ExtractArchive(data, destDir)
	if err != nil {
		return nil, err
	}

	if err := hoistWrapperDir(destDir); err != nil {
		b.Remove()
		return nil, xerrors.Wrap(err, "flatten repository export")
	}
	// re-inventory: hoisting moved every path up one level
	b, err = bundle.New(destDir)
	if err != nil {
		os.RemoveAll(destDir)
		return nil, err
	}
	return b, nil
}

func (a *RepoAdapter) snapshotURL(identity, branch string) string {
	if a.baseURL != "" {
		return fmt.Sprintf("%s/archive/refs/heads/%s.zip", a.baseURL, branch)
	}
	return fmt.Sprintf("%s/archive/refs/heads/%s.zip", identity, branch)
}
