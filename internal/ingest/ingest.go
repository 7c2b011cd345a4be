// Package ingest turns heterogeneous submissions into published catalog
// items: the archive, repository and URL-scrape adapters produce a local
// bundle, and the Router drives it through the validation gate, the
// classifier, the duplicate guard and the moderation thresholds before
// the row is written.
package ingest

import (
	"context"
	"io"
	"net/http"

	"github.com/appgrove/appgrove-server/internal/xerrors"
)

const userAgent = "appgrove-importer/1.0"

// fetchLimited GETs one URL and returns at most maxBytes of body. Remote
// failures and oversized responses come back as upstream errors; the
// caller decides whether to retry another location.
func fetchLimited(ctx context.Context, client *http.Client, url string, maxBytes int64) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, xerrors.WithKind(xerrors.Wrapf(err, "build request for %s", url), xerrors.KindInput)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, xerrors.WithKind(xerrors.Wrapf(err, "fetch %s", url), xerrors.KindUpstream)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, xerrors.Ef(xerrors.KindUpstream, "fetch %s: status %d", url, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		return nil, resp.StatusCode, xerrors.WithKind(xerrors.Wrapf(err, "read %s", url), xerrors.KindUpstream)
	}
	if int64(len(data)) > maxBytes {
		return nil, resp.StatusCode, xerrors.Ef(xerrors.KindUpstream, "fetch %s: response exceeds %d bytes", url, maxBytes)
	}
	return data, resp.StatusCode, nil
}
