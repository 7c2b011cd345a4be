package api

import (
	"bytes"
	"image"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	// register decoders for DecodeConfig
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/google/uuid"

	"github.com/appgrove/appgrove-server/internal/catalog"
	"github.com/appgrove/appgrove-server/internal/classify"
	"github.com/appgrove/appgrove-server/internal/storage"
	"github.com/appgrove/appgrove-server/internal/xerrors"
)

const maxImageBytes = 8 << 20

var imageExtensions = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".gif": true}

// handleImageUpload ingests a community image. Uploads land as pending
// and only become public once a moderator approves them; each user gets
// a rolling 24-hour quota.
func (a *API) handleImageUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := identity(r)

	uploaded, err := a.store.CountImagesUploadedSince(user.UserID, time.Now().Add(-24*time.Hour))
	if err != nil {
		a.writeError(ctx, w, err)
		return
	}
	if uploaded >= int64(a.imageQuota) {
		a.writeJSON(ctx, w, http.StatusTooManyRequests, errorResponse{
			Message: "daily upload limit reached, try again later",
		})
		return
	}

	if err := r.ParseMultipartForm(maxImageBytes); err != nil {
		a.writeError(ctx, w, xerrors.Ef(xerrors.KindInput, "malformed multipart body: %v", err))
		return
	}
	title := strings.TrimSpace(r.FormValue("title"))
	if title == "" {
		a.writeError(ctx, w, xerrors.Ef(xerrors.KindInput, "title is required"))
		return
	}
	description := strings.TrimSpace(r.FormValue("description"))
	category := strings.TrimSpace(r.FormValue("category"))

	file, header, err := r.FormFile("image")
	if err != nil {
		a.writeError(ctx, w, xerrors.Ef(xerrors.KindInput, "image file is required"))
		return
	}
	defer file.Close()

	ext := strings.ToLower(path.Ext(header.Filename))
	if !imageExtensions[ext] {
		a.writeError(ctx, w, xerrors.Ef(xerrors.KindInput, "unsupported image type %q", ext))
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, maxImageBytes+1))
	if err != nil {
		a.writeError(ctx, w, xerrors.WithKind(xerrors.Wrap(err, "read upload"), xerrors.KindInput))
		return
	}
	if len(data) > maxImageBytes {
		a.writeError(ctx, w, xerrors.Ef(xerrors.KindValidation, "image exceeds upload limit"))
		return
	}

	conf, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		a.writeError(ctx, w, xerrors.Ef(xerrors.KindValidation, "file is not a decodable image"))
		return
	}

	if category == "" {
		category = classify.ImageTable().Classify(title, description, nil)
	}

	rel, size, err := a.files.SaveFile(storage.ImagesDir, uuid.NewString()+ext, bytes.NewReader(data))
	if err != nil {
		a.writeError(ctx, w, err)
		return
	}

	img := &catalog.CommunityImage{
		UploaderID:    user.UserID,
		Title:         title,
		Description:   description,
		ImagePath:     rel,
		Category:      category,
		Width:         conf.Width,
		Height:        conf.Height,
		ByteSize:      size,
		Orientation:   orientationOf(conf.Width, conf.Height),
		DominantColor: "#808080",
		Status:        catalog.StatusPending,
		Visible:       true,
	}
	if err := a.store.CreateImage(img); err != nil {
		a.files.RemoveTree(rel)
		a.writeError(ctx, w, err)
		return
	}

	a.logger.Info(ctx, "image uploaded",
		"image_id", img.ID, "uploader", user.UserID, "category", category, "bytes", size)
	a.writeJSON(ctx, w, http.StatusCreated, map[string]any{
		"success": true,
		"message": "image submitted for review",
		"image":   img,
	})
}

func orientationOf(w, h int) string {
	switch {
	case w > h:
		return "landscape"
	case h > w:
		return "portrait"
	default:
		return "square"
	}
}
