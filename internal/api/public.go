package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/appgrove/appgrove-server/internal/authz"
)

func (a *API) handleListItems(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	items, err := a.store.ListPublicItems(r.URL.Query().Get("category"))
	if err != nil {
		// listing degrades to empty rather than failing the page
		a.logger.Error(ctx, err, "item listing failed")
		items = nil
	}
	a.writeJSON(ctx, w, http.StatusOK, map[string]any{"success": true, "items": items})
}

func (a *API) handleListCategories(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	cats, err := a.store.ListCategories()
	if err != nil {
		a.logger.Error(ctx, err, "category listing failed")
		cats = nil
	}
	a.writeJSON(ctx, w, http.StatusOK, map[string]any{"success": true, "categories": cats})
}

func (a *API) handleTrendingItems(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	items, err := a.store.TrendingItems(limit)
	if err != nil {
		a.logger.Error(ctx, err, "trending listing failed")
		items = nil
	}
	a.writeJSON(ctx, w, http.StatusOK, map[string]any{"success": true, "items": items})
}

func (a *API) handleItemBySlug(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	slug := chi.URLParam(r, "slug")

	item, err := a.store.PublicItemBySlug(slug)
	if err != nil {
		a.writeError(ctx, w, err)
		return
	}

	var userID uint
	if id, ok := authz.IdentityFromContext(ctx); ok {
		userID = id.UserID
	}
	if err := a.store.RecordItemPlay(item.ID, userID); err != nil {
		a.logger.Warn(ctx, "play count update failed", "item_id", item.ID, "error", err)
	} else {
		item.Plays++
	}

	a.writeJSON(ctx, w, http.StatusOK, map[string]any{"success": true, "item": item})
}

type discoverRequest struct {
	Keywords string `json:"keywords"`
}

func (a *API) handleDiscover(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req discoverRequest
	if err := decodeBody(r, &req); err != nil {
		a.writeError(ctx, w, err)
		return
	}

	sources, err := a.store.SearchSources(req.Keywords)
	if err != nil {
		a.writeError(ctx, w, err)
		return
	}
	a.writeJSON(ctx, w, http.StatusOK, map[string]any{"success": true, "sources": sources})
}

func (a *API) handleImageFeed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	imgs, err := a.store.ImageFeed(q.Get("category"), page, limit)
	if err != nil {
		a.logger.Error(ctx, err, "image feed failed")
		imgs = nil
	}
	a.writeJSON(ctx, w, http.StatusOK, map[string]any{"success": true, "images": imgs, "page": max(page, 1)})
}

func (a *API) handleTrendingImages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	imgs, err := a.store.TrendingImages(limit)
	if err != nil {
		a.logger.Error(ctx, err, "trending images failed")
		imgs = nil
	}
	a.writeJSON(ctx, w, http.StatusOK, map[string]any{"success": true, "images": imgs})
}

func (a *API) handleImageBySlug(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	img, err := a.store.PublicImageBySlug(chi.URLParam(r, "slug"))
	if err != nil {
		a.writeError(ctx, w, err)
		return
	}
	a.writeJSON(ctx, w, http.StatusOK, map[string]any{"success": true, "image": img})
}

func (a *API) handleImageView(w http.ResponseWriter, r *http.Request) {
	a.bumpImage(w, r, a.store.IncrementImageViews)
}

func (a *API) handleImageDownload(w http.ResponseWriter, r *http.Request) {
	a.bumpImage(w, r, a.store.IncrementImageDownloads)
}

func (a *API) bumpImage(w http.ResponseWriter, r *http.Request, bump func(uint) error) {
	ctx := r.Context()

	id, err := idParam(r)
	if err != nil {
		a.writeError(ctx, w, err)
		return
	}
	if err := bump(id); err != nil {
		a.writeError(ctx, w, err)
		return
	}
	a.writeJSON(ctx, w, http.StatusOK, map[string]any{"success": true})
}
