// Package moderation drives the admin-facing state machine over items
// and images and the gamification side effects that hang off approval
// and like events.
package moderation

import (
	"context"

	"github.com/appgrove/appgrove-server/internal/catalog"
	"github.com/appgrove/appgrove-server/internal/log"
	"github.com/appgrove/appgrove-server/internal/metrics"
	"github.com/appgrove/appgrove-server/internal/storage"
	"github.com/appgrove/appgrove-server/internal/xerrors"
)

// XP awards. Level is derived from the XP total, never stored logic.
const (
	XPLike          = 5
	XPImageApproval = 25
)

// Service wires the catalog store and file storage together so deletes
// can remove the backing tree before the row.
type Service struct {
	store   *catalog.Store
	files   *storage.Store
	mirror  *storage.S3Mirror
	metrics *metrics.ServerMetrics
	logger  log.Logger
}

type Options struct {
	Store   *catalog.Store
	Files   *storage.Store
	Mirror  *storage.S3Mirror // nil disables mirror cleanup
	Metrics *metrics.ServerMetrics
	Logger  log.Logger
}

func New(opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	return &Service{
		store:   opts.Store,
		files:   opts.Files,
		mirror:  opts.Mirror,
		metrics: opts.Metrics,
		logger:  opts.Logger,
	}
}

func validStatus(status string) error {
	if status != catalog.StatusApproved && status != catalog.StatusRejected {
		return xerrors.Ef(xerrors.KindInput, "status must be approved or rejected, got %q", status)
	}
	return nil
}

// SetItemStatus moves an item to approved or rejected. Setting the
// current value again is a no-op success.
func (s *Service) SetItemStatus(ctx context.Context, id uint, status string) error {
	if err := validStatus(status); err != nil {
		return err
	}
	if err := s.store.SetItemStatus(id, status); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.IncModerationTransition(status)
	}
	s.logger.Info(ctx, "item status set", "item_id", id, "status", status)
	return nil
}

// SetItemVisibility toggles public visibility independent of status.
func (s *Service) SetItemVisibility(ctx context.Context, id uint, visible bool) error {
	return s.store.SetItemVisibility(id, visible)
}

// SetItemFeatured toggles the featured flag.
func (s *Service) SetItemFeatured(ctx context.Context, id uint, featured bool) error {
	return s.store.SetItemFeatured(id, featured)
}

// SetItemRank writes the ordering rank.
func (s *Service) SetItemRank(ctx context.Context, id uint, rank int) error {
	return s.store.SetItemRank(id, rank)
}

// SetImageStatus moves an image to approved or rejected. The first
// transition into approved awards the uploader XP; repeating it does not.
func (s *Service) SetImageStatus(ctx context.Context, id uint, status string) error {
	if err := validStatus(status); err != nil {
		return err
	}
	img, err := s.store.ImageByID(id)
	if err != nil {
		return err
	}

	firstApproval := status == catalog.StatusApproved && img.Status != catalog.StatusApproved

	if err := s.store.SetImageStatus(id, status); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.IncModerationTransition(status)
	}

	if firstApproval {
		if err := s.store.AwardXP(img.UploaderID, XPImageApproval, "uploads"); err != nil {
			return err
		}
		if s.metrics != nil {
			s.metrics.AddXP("image_approval", XPImageApproval)
		}
		s.logger.Info(ctx, "image approved, uploader rewarded",
			"image_id", id, "uploader_id", img.UploaderID, "xp", XPImageApproval)
	}
	return nil
}

// SetImageVisibility toggles image visibility independent of status.
func (s *Service) SetImageVisibility(ctx context.Context, id uint, visible bool) error {
	return s.store.SetImageVisibility(id, visible)
}

// LikeItem records one like. The like row insert is the atomicity point:
// a duplicate insert means "already liked" and nothing else happens. On
// first like the counter bumps and the owner earns XP unless liking
// their own item.
func (s *Service) LikeItem(ctx context.Context, userID, itemID uint) error {
	item, err := s.store.ItemByID(itemID)
	if err != nil {
		return err
	}

	if err := s.store.InsertItemLike(userID, itemID); err != nil {
		if catalog.IsConflict(err) {
			return xerrors.Ef(xerrors.KindConflict, "already liked")
		}
		return err
	}
	if err := s.store.IncrementItemLikes(itemID); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.IncLike()
	}

	if item.OwnerID != userID {
		if err := s.store.AwardXP(item.OwnerID, XPLike, "likes"); err != nil {
			return err
		}
		if s.metrics != nil {
			s.metrics.AddXP("like", XPLike)
		}
	}
	return nil
}

// LikeImage is the image counterpart of LikeItem.
func (s *Service) LikeImage(ctx context.Context, userID, imageID uint) error {
	img, err := s.store.ImageByID(imageID)
	if err != nil {
		return err
	}

	if err := s.store.InsertImageLike(userID, imageID); err != nil {
		if catalog.IsConflict(err) {
			return xerrors.Ef(xerrors.KindConflict, "already liked")
		}
		return err
	}
	if err := s.store.IncrementImageLikes(imageID); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.IncLike()
	}

	if img.UploaderID != userID {
		if err := s.store.AwardXP(img.UploaderID, XPLike, "likes"); err != nil {
			return err
		}
		if s.metrics != nil {
			s.metrics.AddXP("like", XPLike)
		}
	}
	return nil
}

// DeleteItem removes the backing file tree first, then the row; like and
// activity rows cascade at the storage layer.
func (s *Service) DeleteItem(ctx context.Context, id uint) error {
	item, err := s.store.ItemByID(id)
	if err != nil {
		return err
	}

	if item.ContentType != catalog.TypeLink && item.PublishedURL != "" {
		if err := s.files.RemoveTree(item.PublishedURL); err != nil {
			return xerrors.WithKind(xerrors.Wrapf(err, "remove tree for item %d", id), xerrors.KindStorage)
		}
		if s.mirror != nil {
			if dir := storage.DirNameFromURL(item.PublishedURL); dir != "" {
				if err := s.mirror.DeletePrefix(ctx, dir); err != nil {
					s.logger.Error(ctx, err, "mirror cleanup failed", "item_id", id)
				}
			}
		}
	}

	if err := s.store.DeleteItem(id); err != nil {
		return err
	}
	s.logger.Info(ctx, "item deleted", "item_id", id, "title", item.Title)
	return nil
}

// DeleteImage removes stored files then the row.
func (s *Service) DeleteImage(ctx context.Context, id uint) error {
	img, err := s.store.ImageByID(id)
	if err != nil {
		return err
	}
	for _, rel := range []string{img.ImagePath, img.ThumbnailPath} {
		if rel == "" {
			continue
		}
		if err := s.files.RemoveTree(rel); err != nil {
			return xerrors.WithKind(xerrors.Wrapf(err, "remove files for image %d", id), xerrors.KindStorage)
		}
	}
	return s.store.DeleteImage(id)
}

// DeleteUser cascades: every owned item and image loses its files and
// row, then the account and its like records go.
func (s *Service) DeleteUser(ctx context.Context, id uint) error {
	items, err := s.store.ItemsOwnedBy(id)
	if err != nil {
		return err
	}
	for _, item := range items {
		if err := s.DeleteItem(ctx, item.ID); err != nil {
			return err
		}
	}

	images, err := s.store.ImagesUploadedBy(id)
	if err != nil {
		return err
	}
	for _, img := range images {
		if err := s.DeleteImage(ctx, img.ID); err != nil {
			return err
		}
	}

	if err := s.store.DeleteUser(id); err != nil {
		return err
	}
	s.logger.Info(ctx, "user deleted", "user_id", id, "items", len(items), "images", len(images))
	return nil
}
