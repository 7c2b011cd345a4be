package api

import (
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/appgrove/appgrove-server/internal/catalog"
	"github.com/appgrove/appgrove-server/internal/storage"
	"github.com/appgrove/appgrove-server/internal/xerrors"
)

const maxThumbnailBytes = 5 << 20

var thumbnailExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true,
}

func (a *API) handlePending(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	items, err := a.store.PendingItems()
	if err != nil {
		a.writeError(ctx, w, err)
		return
	}
	images, err := a.store.PendingImages()
	if err != nil {
		a.writeError(ctx, w, err)
		return
	}
	a.writeJSON(ctx, w, http.StatusOK, map[string]any{
		"success": true,
		"items":   items,
		"images":  images,
	})
}

func (a *API) handleItemStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := idParam(r)
	if err != nil {
		a.writeError(ctx, w, err)
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := decodeBody(r, &req); err != nil {
		a.writeError(ctx, w, err)
		return
	}
	if err := a.mod.SetItemStatus(ctx, id, req.Status); err != nil {
		a.writeError(ctx, w, err)
		return
	}
	a.writeJSON(ctx, w, http.StatusOK, map[string]any{"success": true})
}

func (a *API) handleItemVisibility(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := idParam(r)
	if err != nil {
		a.writeError(ctx, w, err)
		return
	}
	var req struct {
		Visible bool `json:"visible"`
	}
	if err := decodeBody(r, &req); err != nil {
		a.writeError(ctx, w, err)
		return
	}
	if err := a.mod.SetItemVisibility(ctx, id, req.Visible); err != nil {
		a.writeError(ctx, w, err)
		return
	}
	a.writeJSON(ctx, w, http.StatusOK, map[string]any{"success": true})
}

func (a *API) handleItemFeatured(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := idParam(r)
	if err != nil {
		a.writeError(ctx, w, err)
		return
	}
	var req struct {
		Featured bool `json:"featured"`
	}
	if err := decodeBody(r, &req); err != nil {
		a.writeError(ctx, w, err)
		return
	}
	if err := a.mod.SetItemFeatured(ctx, id, req.Featured); err != nil {
		a.writeError(ctx, w, err)
		return
	}
	a.writeJSON(ctx, w, http.StatusOK, map[string]any{"success": true})
}

func (a *API) handleItemRank(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := idParam(r)
	if err != nil {
		a.writeError(ctx, w, err)
		return
	}
	var req struct {
		Rank int `json:"rank"`
	}
	if err := decodeBody(r, &req); err != nil {
		a.writeError(ctx, w, err)
		return
	}
	if err := a.mod.SetItemRank(ctx, id, req.Rank); err != nil {
		a.writeError(ctx, w, err)
		return
	}
	a.writeJSON(ctx, w, http.StatusOK, map[string]any{"success": true})
}

// handleItemThumbnail replaces an item's card image.
func (a *API) handleItemThumbnail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := idParam(r)
	if err != nil {
		a.writeError(ctx, w, err)
		return
	}
	if _, err := a.store.ItemByID(id); err != nil {
		a.writeError(ctx, w, err)
		return
	}

	if err := r.ParseMultipartForm(maxThumbnailBytes); err != nil {
		a.writeError(ctx, w, xerrors.Ef(xerrors.KindInput, "malformed multipart body: %v", err))
		return
	}
	file, header, err := r.FormFile("thumbnail")
	if err != nil {
		a.writeError(ctx, w, xerrors.Ef(xerrors.KindInput, "thumbnail file is required"))
		return
	}
	defer file.Close()

	ext := strings.ToLower(path.Ext(header.Filename))
	if !thumbnailExtensions[ext] {
		a.writeError(ctx, w, xerrors.Ef(xerrors.KindInput, "unsupported thumbnail type %q", ext))
		return
	}

	rel, size, err := a.files.SaveFile(storage.ThumbsDir, uuid.NewString()+ext, io.LimitReader(file, maxThumbnailBytes+1))
	if err != nil {
		a.writeError(ctx, w, err)
		return
	}
	if size > maxThumbnailBytes {
		a.files.RemoveTree(rel)
		a.writeError(ctx, w, xerrors.Ef(xerrors.KindValidation, "thumbnail exceeds size limit"))
		return
	}
	if err := a.store.SetItemThumbnail(id, rel); err != nil {
		a.files.RemoveTree(rel)
		a.writeError(ctx, w, err)
		return
	}
	a.writeJSON(ctx, w, http.StatusOK, map[string]any{"success": true, "thumbnail": rel})
}

func (a *API) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := idParam(r)
	if err != nil {
		a.writeError(ctx, w, err)
		return
	}
	if err := a.mod.DeleteItem(ctx, id); err != nil {
		a.writeError(ctx, w, err)
		return
	}
	a.writeJSON(ctx, w, http.StatusOK, map[string]any{"success": true})
}

func (a *API) handleImageStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := idParam(r)
	if err != nil {
		a.writeError(ctx, w, err)
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := decodeBody(r, &req); err != nil {
		a.writeError(ctx, w, err)
		return
	}
	if err := a.mod.SetImageStatus(ctx, id, req.Status); err != nil {
		a.writeError(ctx, w, err)
		return
	}
	a.writeJSON(ctx, w, http.StatusOK, map[string]any{"success": true})
}

func (a *API) handleImageVisibility(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := idParam(r)
	if err != nil {
		a.writeError(ctx, w, err)
		return
	}
	var req struct {
		Visible bool `json:"visible"`
	}
	if err := decodeBody(r, &req); err != nil {
		a.writeError(ctx, w, err)
		return
	}
	if err := a.mod.SetImageVisibility(ctx, id, req.Visible); err != nil {
		a.writeError(ctx, w, err)
		return
	}
	a.writeJSON(ctx, w, http.StatusOK, map[string]any{"success": true})
}

func (a *API) handleListUsers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	users, err := a.store.ListUsers()
	if err != nil {
		a.writeError(ctx, w, err)
		return
	}
	a.writeJSON(ctx, w, http.StatusOK, map[string]any{"success": true, "users": users})
}

func (a *API) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := idParam(r)
	if err != nil {
		a.writeError(ctx, w, err)
		return
	}
	if err := a.mod.DeleteUser(ctx, id); err != nil {
		a.writeError(ctx, w, err)
		return
	}
	a.writeJSON(ctx, w, http.StatusOK, map[string]any{"success": true})
}

func (a *API) handleSuspendUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := idParam(r)
	if err != nil {
		a.writeError(ctx, w, err)
		return
	}
	var req struct {
		Suspended bool `json:"suspended"`
	}
	if err := decodeBody(r, &req); err != nil {
		a.writeError(ctx, w, err)
		return
	}
	if err := a.store.SetUserSuspended(id, req.Suspended); err != nil {
		a.writeError(ctx, w, err)
		return
	}
	a.logger.Info(ctx, "user suspension changed", "user_id", id, "suspended", req.Suspended)
	a.writeJSON(ctx, w, http.StatusOK, map[string]any{"success": true})
}

func (a *API) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req struct {
		Name string `json:"name"`
		Slug string `json:"slug"`
		Type string `json:"type"`
	}
	if err := decodeBody(r, &req); err != nil {
		a.writeError(ctx, w, err)
		return
	}
	if req.Name == "" || req.Slug == "" {
		a.writeError(ctx, w, xerrors.Ef(xerrors.KindInput, "name and slug are required"))
		return
	}
	cat := &catalog.Category{Name: req.Name, Slug: req.Slug, Type: req.Type}
	if err := a.store.CreateCategory(cat); err != nil {
		a.writeError(ctx, w, err)
		return
	}
	a.writeJSON(ctx, w, http.StatusCreated, map[string]any{"success": true, "category": cat})
}

func (a *API) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := idParam(r)
	if err != nil {
		a.writeError(ctx, w, err)
		return
	}
	if err := a.store.DeleteCategory(id); err != nil {
		a.writeError(ctx, w, err)
		return
	}
	a.writeJSON(ctx, w, http.StatusOK, map[string]any{"success": true})
}

// handleCleanup sweeps orphaned bundle directories and image files. The
// referenced sets come from live rows; an extraction still in flight has
// no row yet, which is what the store's sweep grace window covers.
func (a *API) handleCleanup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	dirNames, err := a.store.PublishedDirNames()
	if err != nil {
		a.writeError(ctx, w, err)
		return
	}
	referencedDirs := make(map[string]bool, len(dirNames))
	for _, u := range dirNames {
		if name := storage.DirNameFromURL(u); name != "" {
			referencedDirs[name] = true
		}
	}

	paths, err := a.store.ImagePaths()
	if err != nil {
		a.writeError(ctx, w, err)
		return
	}
	referencedFiles := make(map[string]bool, len(paths))
	for _, p := range paths {
		referencedFiles[p] = true
	}

	report, err := a.files.Sweep(ctx, referencedDirs, referencedFiles)
	if err != nil {
		a.writeError(ctx, w, err)
		return
	}
	a.logger.Info(ctx, "cleanup sweep finished",
		"removed_dirs", len(report.RemovedDirs), "removed_files", len(report.RemovedFiles))
	a.writeJSON(ctx, w, http.StatusOK, map[string]any{"success": true, "report": report})
}
