package api

import (
	"io"
	"mime/multipart"
	"net/http"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/appgrove/appgrove-server/internal/catalog"
	"github.com/appgrove/appgrove-server/internal/ingest"
	"github.com/appgrove/appgrove-server/internal/storage"
	"github.com/appgrove/appgrove-server/internal/xerrors"
)

var videoExtensions = map[string]bool{".mp4": true, ".webm": true, ".ogg": true}

// handleSubmit accepts one of: a zip archive, a video file, or an
// external link, plus title/description and the agreement flag.
func (a *API) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := identity(r)

	if err := r.ParseMultipartForm(a.maxUploadBytes); err != nil {
		a.writeError(ctx, w, xerrors.Ef(xerrors.KindInput, "malformed multipart body: %v", err))
		return
	}

	title := strings.TrimSpace(r.FormValue("title"))
	description := strings.TrimSpace(r.FormValue("description"))
	link := strings.TrimSpace(r.FormValue("link"))
	agreed := r.FormValue("agreement") == "true" || r.FormValue("agreement") == "on"

	if title == "" {
		a.writeError(ctx, w, xerrors.Ef(xerrors.KindInput, "title is required"))
		return
	}
	if !agreed {
		a.writeError(ctx, w, xerrors.Ef(xerrors.KindInput, "agreement must be accepted"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil && link == "" {
		a.writeError(ctx, w, xerrors.Ef(xerrors.KindInput, "either a file or a link is required"))
		return
	}

	var out *ingest.Outcome
	switch {
	case err == nil:
		defer file.Close()
		out, err = a.submitFile(r, user.UserID, title, description, file, header)
	default:
		out, err = a.router.PublishMedia(ctx, ingest.MediaImport{
			OwnerID: user.UserID, Title: title, Description: description,
			ContentType: catalog.TypeLink, PublishedURL: link,
		})
	}
	if err != nil {
		a.writeError(ctx, w, err)
		return
	}

	a.writeJSON(ctx, w, http.StatusCreated, submitResponse(out))
}

func (a *API) submitFile(r *http.Request, owner uint, title, description string, file multipart.File, header *multipart.FileHeader) (*ingest.Outcome, error) {
	ctx := r.Context()
	ext := strings.ToLower(path.Ext(header.Filename))

	switch {
	case ext == ".zip":
		data, err := io.ReadAll(io.LimitReader(file, a.maxUploadBytes+1))
		if err != nil {
			return nil, xerrors.WithKind(xerrors.Wrap(err, "read upload"), xerrors.KindInput)
		}
		if int64(len(data)) > a.maxUploadBytes {
			return nil, xerrors.Ef(xerrors.KindValidation, "archive exceeds upload limit")
		}

		dirName, dirAbs := a.files.NewAppDir()
		b, err := ingest.ExtractArchive(data, dirAbs)
		if err != nil {
			return nil, err
		}
		return a.router.PublishBundle(ctx, ingest.BundleImport{
			OwnerID: owner, Title: title, Description: description,
			Method:         catalog.MethodArchive,
			SourceIdentity: ingest.Fingerprint(data),
			DirName:        dirName, Bundle: b,
		})

	case videoExtensions[ext]:
		name := uuid.NewString() + ext
		rel, size, err := a.files.SaveFile(storage.VideosDir, name, io.LimitReader(file, a.maxUploadBytes+1))
		if err != nil {
			return nil, err
		}
		if size > a.maxUploadBytes {
			a.files.RemoveTree(rel)
			return nil, xerrors.Ef(xerrors.KindValidation, "video exceeds upload limit")
		}
		return a.router.PublishMedia(ctx, ingest.MediaImport{
			OwnerID: owner, Title: title, Description: description,
			ContentType: catalog.TypeVideo, PublishedURL: rel, ByteSize: size,
		})

	default:
		return nil, xerrors.Ef(xerrors.KindInput, "unsupported upload type %q", ext)
	}
}

type importRequest struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

func (a *API) handleImportRepo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := identity(r)

	var req importRequest
	if err := decodeBody(r, &req); err != nil {
		a.writeError(ctx, w, err)
		return
	}
	if req.URL == "" || req.Title == "" {
		a.writeError(ctx, w, xerrors.Ef(xerrors.KindInput, "url and title are required"))
		return
	}

	out, err := a.importRepo(r, user.UserID, req.URL, req.Title, req.Description)
	if err != nil {
		a.writeError(ctx, w, err)
		return
	}
	a.writeJSON(ctx, w, http.StatusCreated, submitResponse(out))
}

func (a *API) importRepo(r *http.Request, owner uint, repoURL, title, description string) (*ingest.Outcome, error) {
	ctx := r.Context()

	srcIdentity, err := a.repos.Identity(repoURL)
	if err != nil {
		return nil, err
	}

	dirName, dirAbs := a.files.NewAppDir()
	b, err := a.repos.Fetch(ctx, repoURL, dirAbs)
	if err != nil {
		return nil, err
	}
	return a.router.PublishBundle(ctx, ingest.BundleImport{
		OwnerID: owner, Title: title, Description: description,
		Method:         catalog.MethodRepository,
		SourceIdentity: srcIdentity,
		DirName:        dirName, Bundle: b,
	})
}

func (a *API) handleImportURL(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := identity(r)

	var req importRequest
	if err := decodeBody(r, &req); err != nil {
		a.writeError(ctx, w, err)
		return
	}
	if req.URL == "" || req.Title == "" {
		a.writeError(ctx, w, xerrors.Ef(xerrors.KindInput, "url and title are required"))
		return
	}

	out, err := a.importURL(r, user.UserID, req.URL, req.Title, req.Description)
	if err != nil {
		a.writeError(ctx, w, err)
		return
	}
	a.writeJSON(ctx, w, http.StatusCreated, submitResponse(out))
}

func (a *API) importURL(r *http.Request, owner uint, pageURL, title, description string) (*ingest.Outcome, error) {
	ctx := r.Context()

	dirName, dirAbs := a.files.NewAppDir()
	b, err := a.scraper.Fetch(ctx, pageURL, dirAbs)
	if err != nil {
		return nil, err
	}
	return a.router.PublishBundle(ctx, ingest.BundleImport{
		OwnerID: owner, Title: title, Description: description,
		Method:         catalog.MethodURLScrape,
		SourceIdentity: pageURL,
		DirName:        dirName, Bundle: b,
	})
}

// handleImportDiscovered runs a one-click import from a registry entry,
// picking the adapter from the entry's recorded source type.
func (a *API) handleImportDiscovered(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := identity(r)

	id, err := idParam(r)
	if err != nil {
		a.writeError(ctx, w, err)
		return
	}
	src, err := a.store.SourceByID(id)
	if err != nil {
		a.writeError(ctx, w, err)
		return
	}

	var out *ingest.Outcome
	switch src.SourceType {
	case "repository":
		out, err = a.importRepo(r, user.UserID, src.URL, src.Name, src.Description)
	case "url":
		out, err = a.importURL(r, user.UserID, src.URL, src.Name, src.Description)
	default:
		err = xerrors.Ef(xerrors.KindInput, "registry entry %d has unknown source type %q", id, src.SourceType)
	}
	if err != nil {
		a.writeError(ctx, w, err)
		return
	}
	a.writeJSON(ctx, w, http.StatusCreated, submitResponse(out))
}

func (a *API) handleLikeItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := identity(r)

	id, err := idParam(r)
	if err != nil {
		a.writeError(ctx, w, err)
		return
	}
	if err := a.mod.LikeItem(ctx, user.UserID, id); err != nil {
		a.writeError(ctx, w, err)
		return
	}
	a.writeJSON(ctx, w, http.StatusOK, map[string]any{"success": true})
}

func (a *API) handleLikeImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := identity(r)

	id, err := idParam(r)
	if err != nil {
		a.writeError(ctx, w, err)
		return
	}
	if err := a.mod.LikeImage(ctx, user.UserID, id); err != nil {
		a.writeError(ctx, w, err)
		return
	}
	a.writeJSON(ctx, w, http.StatusOK, map[string]any{"success": true})
}

func submitResponse(out *ingest.Outcome) map[string]any {
	msg := "published successfully"
	if out.RequiresReview {
		msg = "submitted for review"
	}
	return map[string]any{
		"success":         true,
		"message":         msg,
		"item":            out.Item,
		"requires_review": out.RequiresReview,
		"bundle_size":     out.BundleSize,
	}
}
