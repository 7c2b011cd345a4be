package ingest

import (
	"context"
	"path"
	"time"

	"github.com/appgrove/appgrove-server/internal/bundle"
	"github.com/appgrove/appgrove-server/internal/catalog"
	"github.com/appgrove/appgrove-server/internal/classify"
	"github.com/appgrove/appgrove-server/internal/log"
	"github.com/appgrove/appgrove-server/internal/metrics"
	"github.com/appgrove/appgrove-server/internal/storage"
	"github.com/appgrove/appgrove-server/internal/webassets"
	"github.com/appgrove/appgrove-server/internal/xerrors"
)

// Router is the moderation router: it vets a freshly extracted bundle,
// classifies it, guards against duplicate imports and writes the item
// with its threshold-derived initial status. One Router serves all
// adapters; it holds no per-request state.
type Router struct {
	store   *catalog.Store
	files   *storage.Store
	mirror  *storage.S3Mirror
	gate    *bundle.Gate
	table   classify.Table
	metrics *metrics.ServerMetrics
	logger  log.Logger

	reviewBytes int64
}

type RouterOptions struct {
	Store  *catalog.Store
	Files  *storage.Store
	Mirror *storage.S3Mirror // nil disables mirroring
	Gate   *bundle.Gate
	// ReviewBytes is the manual-review threshold; the gate's MaxBytes is
	// the hard cap and must be larger.
	ReviewBytes int64
	Metrics     *metrics.ServerMetrics
	Logger      log.Logger
}

func NewRouter(opts RouterOptions) *Router {
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	return &Router{
		store:       opts.Store,
		files:       opts.Files,
		mirror:      opts.Mirror,
		gate:        opts.Gate,
		table:       classify.ItemTable(),
		metrics:     opts.Metrics,
		logger:      opts.Logger,
		reviewBytes: opts.ReviewBytes,
	}
}

// BundleImport describes one adapter-produced bundle ready for routing.
type BundleImport struct {
	OwnerID     uint
	Title       string
	Description string
	// Method is the import method label (archive/repository/url-scrape).
	Method string
	// SourceIdentity is the remote origin or archive fingerprint; ""
	// skips the duplicate guard.
	SourceIdentity string
	// DirName is the bundle's directory name under the apps tree.
	DirName string
	Bundle  *bundle.Bundle
}

// MediaImport describes a video or link submission, which skips the gate
// but still flows through classification and the status thresholds.
type MediaImport struct {
	OwnerID      uint
	Title        string
	Description  string
	ContentType  string // catalog.TypeVideo or catalog.TypeLink
	PublishedURL string
	ByteSize     int64
}

// Outcome is what the submit endpoints report back.
type Outcome struct {
	Item           *catalog.ContentItem `json:"item"`
	RequiresReview bool                 `json:"requires_review"`
	BundleSize     string               `json:"bundle_size"`
}

// PublishBundle runs gate, classifier, icon resolution, duplicate guard
// and the atomic insert-then-slug write. Every failure path removes the
// extracted tree.
func (r *Router) PublishBundle(ctx context.Context, imp BundleImport) (*Outcome, error) {
	b := imp.Bundle

	if err := r.gate.Validate(b); err != nil {
		// the gate already removed the tree
		r.count(imp.Method, "validation_failed")
		return nil, err
	}
	if r.metrics != nil {
		r.metrics.ObserveBundleSize(b.TotalBytes)
	}

	if imp.SourceIdentity != "" {
		existing, err := r.store.ItemBySourceIdentity(imp.SourceIdentity)
		if err != nil {
			b.Remove()
			return nil, err
		}
		if existing != nil {
			b.Remove()
			r.count(imp.Method, "duplicate")
			return nil, xerrors.Ef(xerrors.KindConflict,
				"already imported as %q (/%s)", existing.Title, existing.SlugString())
		}
	}

	category, err := r.resolveCategory(imp.Title, imp.Description, b.Files)
	if err != nil {
		b.Remove()
		return nil, err
	}

	item := &catalog.ContentItem{
		OwnerID:           imp.OwnerID,
		Title:             imp.Title,
		Description:       imp.Description,
		ContentType:       catalog.TypeBundle,
		CategoryName:      category.Slug,
		CategoryID:        category.ID,
		PublishedURL:      storage.PublishedURL(imp.DirName, b.EntryDoc),
		ThumbnailPath:     webassets.PlaceholderPath(category.Slug),
		Status:            r.statusFor(b.TotalBytes),
		Visible:           true,
		ImportMethod:      imp.Method,
		AgreementAccepted: true,
		AgreementAt:       timePtr(time.Now()),
	}
	if icon := bundle.ResolveIcon(b.Root); icon != "" {
		item.IconPath = path.Join(storage.AppsDir, imp.DirName, icon)
	}
	if imp.SourceIdentity != "" {
		identity := imp.SourceIdentity
		item.SourceIdentity = &identity
	}

	if err := r.insertWithSlug(item); err != nil {
		b.Remove()
		if catalog.IsConflict(err) {
			r.count(imp.Method, "duplicate")
			return nil, xerrors.Ef(xerrors.KindConflict, "source already imported")
		}
		return nil, err
	}

	if r.mirror != nil {
		if err := r.mirror.MirrorTree(ctx, b.Root, imp.DirName); err != nil {
			r.logger.Error(ctx, err, "bundle mirror failed", "dir", imp.DirName)
		}
	}

	r.count(imp.Method, "published")
	r.logger.Info(ctx, "item published",
		"item_id", item.ID,
		"slug", item.SlugString(),
		"status", item.Status,
		"method", imp.Method,
		"size", bundle.HumanSize(b.TotalBytes),
	)

	return &Outcome{
		Item:           item,
		RequiresReview: item.Status == catalog.StatusPending,
		BundleSize:     bundle.HumanSize(b.TotalBytes),
	}, nil
}

// PublishMedia routes a video or link submission. Links always land
// below the review threshold and auto-approve.
func (r *Router) PublishMedia(ctx context.Context, imp MediaImport) (*Outcome, error) {
	category, err := r.resolveCategory(imp.Title, imp.Description, nil)
	if err != nil {
		return nil, err
	}

	item := &catalog.ContentItem{
		OwnerID:           imp.OwnerID,
		Title:             imp.Title,
		Description:       imp.Description,
		ContentType:       imp.ContentType,
		CategoryName:      category.Slug,
		CategoryID:        category.ID,
		PublishedURL:      imp.PublishedURL,
		ThumbnailPath:     webassets.PlaceholderPath(category.Slug),
		Status:            r.statusFor(imp.ByteSize),
		Visible:           true,
		ImportMethod:      catalog.MethodUpload,
		AgreementAccepted: true,
		AgreementAt:       timePtr(time.Now()),
	}

	if err := r.insertWithSlug(item); err != nil {
		return nil, err
	}

	r.count(imp.ContentType, "published")
	return &Outcome{
		Item:           item,
		RequiresReview: item.Status == catalog.StatusPending,
		BundleSize:     bundle.HumanSize(imp.ByteSize),
	}, nil
}

func (r *Router) insertWithSlug(item *catalog.ContentItem) error {
	if err := r.store.CreateItem(item); err != nil {
		return err
	}
	return r.store.AssignItemSlug(item)
}

func (r *Router) resolveCategory(title, desc string, files []string) (*catalog.Category, error) {
	slug := r.table.Classify(title, desc, files)
	return r.store.EnsureCategory(slug, classify.DisplayName(slug), "item")
}

// statusFor applies the review threshold; the hard cap was enforced by
// the gate before routing.
func (r *Router) statusFor(totalBytes int64) string {
	if totalBytes < r.reviewBytes {
		return catalog.StatusApproved
	}
	return catalog.StatusPending
}

func (r *Router) count(method, outcome string) {
	if r.metrics != nil {
		r.metrics.IncImport(method, outcome)
	}
}

func timePtr(t time.Time) *time.Time { return &t }
