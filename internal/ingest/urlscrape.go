package ingest

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/appgrove/appgrove-server/internal/bundle"
	"github.com/appgrove/appgrove-server/internal/log"
	"github.com/appgrove/appgrove-server/internal/pathutil"
	"github.com/appgrove/appgrove-server/internal/xerrors"
)

// ScrapeAdapter captures a single page plus the same-origin stylesheets,
// scripts and images it references. The page becomes the bundle's entry
// document; a failed asset download is logged and skipped, never fatal.
type ScrapeAdapter struct {
	Client        *http.Client
	PageMaxBytes  int64
	AssetMaxBytes int64
	AssetTimeout  time.Duration
	Logger        log.Logger
}

// NewScrapeAdapter applies the page and per-asset limits.
func NewScrapeAdapter(pageMax, assetMax int64, pageTimeout, assetTimeout time.Duration, logger log.Logger) *ScrapeAdapter {
	if logger == nil {
		logger = log.Nop()
	}
	return &ScrapeAdapter{
		Client:        &http.Client{Timeout: pageTimeout},
		PageMaxBytes:  pageMax,
		AssetMaxBytes: assetMax,
		AssetTimeout:  assetTimeout,
		Logger:        logger,
	}
}

// skippedHosts marks CDN-style origins never worth mirroring locally.
var skippedHosts = []string{"cdn.", "googleapis.com", "cloudflare.com"}

// Fetch saves the page as index.html under destDir, downloads its
// same-origin assets alongside and inventories the result.
func (a *ScrapeAdapter) Fetch(ctx context.Context, pageURL, destDir string) (*bundle.Bundle, error) {
	base, err := url.Parse(pageURL)
	if err != nil || base.Scheme != "http" && base.Scheme != "https" {
		return nil, xerrors.Ef(xerrors.KindInput, "invalid page URL: %s", pageURL)
	}

	page, _, err := fetchLimited(ctx, a.Client, pageURL, a.PageMaxBytes)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, xerrors.WithKind(xerrors.Wrap(err, "create scrape dir"), xerrors.KindStorage)
	}
	cleanup := func(err error) (*bundle.Bundle, error) {
		os.RemoveAll(destDir)
		return nil, err
	}

	if err := os.WriteFile(filepath.Join(destDir, "index.html"), page, 0o644); err != nil {
		return cleanup(xerrors.WithKind(xerrors.Wrap(err, "save page"), xerrors.KindStorage))
	}

	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return cleanup(xerrors.Ef(xerrors.KindUpstream, "page is not parseable HTML: %v", err))
	}

	for _, ref := range assetRefs(doc) {
		a.downloadAsset(ctx, base, ref, destDir)
	}

	b, err := bundle.New(destDir)
	if err != nil {
		return cleanup(err)
	}
	return b, nil
}

// assetRefs walks the parsed page collecting stylesheet hrefs, script
// srcs and image srcs in document order.
func assetRefs(doc *html.Node) []string {
	var refs []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "link":
				if attrVal(n, "rel") == "stylesheet" {
					if href := attrVal(n, "href"); href != "" {
						refs = append(refs, href)
					}
				}
			case "script", "img":
				if src := attrVal(n, "src"); src != "" {
					refs = append(refs, src)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return refs
}

func attrVal(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

func (a *ScrapeAdapter) downloadAsset(ctx context.Context, base *url.URL, ref, destDir string) {
	if strings.HasPrefix(ref, "data:") {
		return
	}
	for _, host := range skippedHosts {
		if strings.Contains(ref, host) {
			a.Logger.Debug(ctx, "skipping external asset", "ref", ref)
			return
		}
	}

	parsed, err := url.Parse(ref)
	if err != nil {
		a.Logger.Warn(ctx, "skipping unparseable asset reference", "ref", ref)
		return
	}
	full := base.ResolveReference(parsed)
	if full.Scheme != base.Scheme || full.Host != base.Host {
		a.Logger.Debug(ctx, "skipping cross-origin asset", "url", full.String())
		return
	}

	name := path.Base(full.Path)
	if name == "" || name == "/" || name == "." {
		name = "asset"
	}
	rel, ok := pathutil.CleanRelative(name)
	if !ok || strings.Contains(rel, "/") {
		a.Logger.Warn(ctx, "skipping asset with unusable name", "url", full.String())
		return
	}

	assetCtx, cancel := context.WithTimeout(ctx, a.AssetTimeout)
	defer cancel()

	data, _, err := fetchLimited(assetCtx, a.Client, full.String(), a.AssetMaxBytes)
	if err != nil {
		a.Logger.Warn(ctx, "asset download failed, continuing", "url", full.String(), "error", err)
		return
	}
	if err := os.WriteFile(filepath.Join(destDir, rel), data, 0o644); err != nil {
		a.Logger.Warn(ctx, "asset save failed, continuing", "file", rel, "error", err)
	}
}
