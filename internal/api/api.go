// Package api exposes the catalog over HTTP: public reads, authenticated
// submission and import endpoints, and the admin moderation surface.
// Error kinds become status codes here and nowhere else.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/appgrove/appgrove-server/internal/authz"
	"github.com/appgrove/appgrove-server/internal/catalog"
	"github.com/appgrove/appgrove-server/internal/ingest"
	"github.com/appgrove/appgrove-server/internal/log"
	"github.com/appgrove/appgrove-server/internal/moderation"
	"github.com/appgrove/appgrove-server/internal/storage"
)

// API bundles the pipeline services behind the route tree.
type API struct {
	store    *catalog.Store
	files    *storage.Store
	router   *ingest.Router
	repos    *ingest.RepoAdapter
	scraper  *ingest.ScrapeAdapter
	mod      *moderation.Service
	verifier *authz.Verifier
	logger   log.Logger

	maxUploadBytes int64
	imageQuota     int
}

type Options struct {
	Store    *catalog.Store
	Files    *storage.Store
	Router   *ingest.Router
	Repos    *ingest.RepoAdapter
	Scraper  *ingest.ScrapeAdapter
	Mod      *moderation.Service
	Verifier *authz.Verifier
	Logger   log.Logger

	// MaxUploadBytes caps archive and video payloads.
	MaxUploadBytes int64
	// ImageQuota is the rolling 24h per-uploader image cap.
	ImageQuota int
}

func New(opts Options) *API {
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	if opts.ImageQuota <= 0 {
		opts.ImageQuota = 10
	}
	return &API{
		store:          opts.Store,
		files:          opts.Files,
		router:         opts.Router,
		repos:          opts.Repos,
		scraper:        opts.Scraper,
		mod:            opts.Mod,
		verifier:       opts.Verifier,
		logger:         opts.Logger,
		maxUploadBytes: opts.MaxUploadBytes,
		imageQuota:     opts.ImageQuota,
	}
}

// RegisterRoutes attaches every endpoint. submitLimit wraps the abuse
// prone mutating endpoints; pass nil to skip limiting (tests).
func (a *API) RegisterRoutes(r chi.Router, submitLimit func(http.Handler) http.Handler) {
	limited := func(h http.HandlerFunc) http.Handler {
		if submitLimit == nil {
			return h
		}
		return submitLimit(h)
	}

	// public reads
	r.Get("/api/community/list", a.handleListItems)
	r.Get("/api/community/categories", a.handleListCategories)
	r.Get("/api/items/trending", a.handleTrendingItems)
	r.Get("/api/items/{slug}", a.handleItemBySlug)
	r.Post("/api/import/discover", a.handleDiscover)
	r.Get("/api/images/feed", a.handleImageFeed)
	r.Get("/api/images/trending", a.handleTrendingImages)
	r.Get("/api/images/{slug}", a.handleImageBySlug)
	r.Post("/api/images/{id}/view", a.handleImageView)
	r.Post("/api/images/{id}/download", a.handleImageDownload)

	// authenticated
	r.Method(http.MethodPost, "/api/submit", limited(a.requireAuth(a.handleSubmit)))
	r.Method(http.MethodPost, "/api/import/repo", limited(a.requireAuth(a.handleImportRepo)))
	r.Method(http.MethodPost, "/api/import/url", limited(a.requireAuth(a.handleImportURL)))
	r.Method(http.MethodPost, "/api/import/discover/{id}", limited(a.requireAuth(a.handleImportDiscovered)))
	r.Method(http.MethodPost, "/api/items/{id}/like", limited(a.requireAuth(a.handleLikeItem)))
	r.Method(http.MethodPost, "/api/images/{id}/like", limited(a.requireAuth(a.handleLikeImage)))
	r.Method(http.MethodPost, "/api/images/upload", limited(a.requireAuth(a.handleImageUpload)))

	// admin
	r.Route("/api/admin", func(ar chi.Router) {
		ar.Use(a.requireAdmin)
		ar.Get("/pending", a.handlePending)
		ar.Patch("/items/{id}/status", a.handleItemStatus)
		ar.Patch("/items/{id}/visibility", a.handleItemVisibility)
		ar.Patch("/items/{id}/featured", a.handleItemFeatured)
		ar.Patch("/items/{id}/rank", a.handleItemRank)
		ar.Post("/items/{id}/thumbnail", a.handleItemThumbnail)
		ar.Delete("/items/{id}", a.handleDeleteItem)
		ar.Patch("/images/{id}/status", a.handleImageStatus)
		ar.Patch("/images/{id}/visibility", a.handleImageVisibility)
		ar.Get("/users", a.handleListUsers)
		ar.Delete("/users/{id}", a.handleDeleteUser)
		ar.Patch("/users/{id}/suspend", a.handleSuspendUser)
		ar.Post("/categories", a.handleCreateCategory)
		ar.Delete("/categories/{id}", a.handleDeleteCategory)
		ar.Post("/cleanup", a.handleCleanup)
	})
}
