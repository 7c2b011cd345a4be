package catalog

import (
	"time"

	"gorm.io/gorm"
)

// CreateImage inserts a new image row and assigns its slug from the row
// id, same two-step shape as items.
func (s *Store) CreateImage(img *CommunityImage) error {
	if err := s.db.Create(img).Error; err != nil {
		return storeErr(err, "image")
	}
	slug := MakeSlug(img.Title, img.ID)
	if err := s.db.Model(img).Update("slug", slug).Error; err != nil {
		return storeErr(err, "image")
	}
	img.Slug = &slug
	return nil
}

// ImageByID fetches one image regardless of moderation state.
func (s *Store) ImageByID(id uint) (*CommunityImage, error) {
	var img CommunityImage
	if err := s.db.First(&img, id).Error; err != nil {
		return nil, storeErr(err, "image")
	}
	return &img, nil
}

// PublicImageBySlug fetches one approved, visible image by slug.
func (s *Store) PublicImageBySlug(slug string) (*CommunityImage, error) {
	var img CommunityImage
	err := s.db.
		Where("slug = ? AND status = ? AND visible = ?", slug, StatusApproved, true).
		First(&img).Error
	if err != nil {
		return nil, storeErr(err, "image")
	}
	return &img, nil
}

// ImageFeed pages through approved, visible images, newest first.
func (s *Store) ImageFeed(category string, page, limit int) ([]CommunityImage, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if page < 1 {
		page = 1
	}
	q := s.db.Where("status = ? AND visible = ?", StatusApproved, true)
	if category != "" {
		q = q.Where("category = ?", category)
	}
	var imgs []CommunityImage
	err := q.Order("created_at DESC").Offset((page - 1) * limit).Limit(limit).Find(&imgs).Error
	if err != nil {
		return nil, storeErr(err, "image")
	}
	return imgs, nil
}

// TrendingImages orders approved, visible images by the weighted score.
func (s *Store) TrendingImages(limit int) ([]CommunityImage, error) {
	if limit <= 0 {
		limit = 20
	}
	var imgs []CommunityImage
	err := s.db.
		Where("status = ? AND visible = ?", StatusApproved, true).
		Order("(downloads * 3 + likes * 2 + views) DESC, created_at DESC").
		Limit(limit).
		Find(&imgs).Error
	if err != nil {
		return nil, storeErr(err, "image")
	}
	return imgs, nil
}

// PendingImages lists images awaiting moderation, oldest first.
func (s *Store) PendingImages() ([]CommunityImage, error) {
	var imgs []CommunityImage
	err := s.db.Where("status = ?", StatusPending).Order("created_at ASC").Find(&imgs).Error
	if err != nil {
		return nil, storeErr(err, "image")
	}
	return imgs, nil
}

// ImagesUploadedBy lists every image belonging to one user, any state.
func (s *Store) ImagesUploadedBy(userID uint) ([]CommunityImage, error) {
	var imgs []CommunityImage
	if err := s.db.Where("uploader_id = ?", userID).Find(&imgs).Error; err != nil {
		return nil, storeErr(err, "image")
	}
	return imgs, nil
}

// CountImagesUploadedSince implements the rolling upload quota window.
func (s *Store) CountImagesUploadedSince(userID uint, since time.Time) (int64, error) {
	var n int64
	err := s.db.Model(&CommunityImage{}).
		Where("uploader_id = ? AND created_at >= ?", userID, since).
		Count(&n).Error
	if err != nil {
		return 0, storeErr(err, "image")
	}
	return n, nil
}

func (s *Store) updateImage(id uint, cols map[string]any) error {
	res := s.db.Model(&CommunityImage{}).Where("id = ?", id).Updates(cols)
	if res.Error != nil {
		return storeErr(res.Error, "image")
	}
	if res.RowsAffected == 0 {
		var n int64
		s.db.Model(&CommunityImage{}).Where("id = ?", id).Count(&n)
		if n == 0 {
			return storeErr(gorm.ErrRecordNotFound, "image")
		}
	}
	return nil
}

// SetImageStatus writes the moderation status. Idempotent.
func (s *Store) SetImageStatus(id uint, status string) error {
	return s.updateImage(id, map[string]any{"status": status})
}

// SetImageVisibility writes the visible flag. Idempotent.
func (s *Store) SetImageVisibility(id uint, visible bool) error {
	return s.updateImage(id, map[string]any{"visible": visible})
}

// InsertImageLike records (user, image) under the composite unique index.
func (s *Store) InsertImageLike(userID, imageID uint) error {
	return storeErr(s.db.Create(&ImageLike{UserID: userID, ImageID: imageID}).Error, "image")
}

func (s *Store) bumpImageCounter(id uint, column string) error {
	res := s.db.Model(&CommunityImage{}).
		Where("id = ?", id).
		UpdateColumn(column, gorm.Expr(column+" + 1"))
	if res.Error != nil {
		return storeErr(res.Error, "image")
	}
	if res.RowsAffected == 0 {
		return storeErr(gorm.ErrRecordNotFound, "image")
	}
	return nil
}

// IncrementImageLikes bumps the denormalized like counter.
func (s *Store) IncrementImageLikes(id uint) error { return s.bumpImageCounter(id, "likes") }

// IncrementImageViews bumps the view counter.
func (s *Store) IncrementImageViews(id uint) error { return s.bumpImageCounter(id, "views") }

// IncrementImageDownloads bumps the download counter.
func (s *Store) IncrementImageDownloads(id uint) error { return s.bumpImageCounter(id, "downloads") }

// DeleteImage removes the row; like rows cascade. The caller removes the
// stored file first.
func (s *Store) DeleteImage(id uint) error {
	res := s.db.Delete(&CommunityImage{}, id)
	if res.Error != nil {
		return storeErr(res.Error, "image")
	}
	if res.RowsAffected == 0 {
		return storeErr(gorm.ErrRecordNotFound, "image")
	}
	return nil
}

// ImagePaths returns every stored image path for the orphan sweep.
func (s *Store) ImagePaths() ([]string, error) {
	var paths []string
	if err := s.db.Model(&CommunityImage{}).Pluck("image_path", &paths).Error; err != nil {
		return nil, storeErr(err, "image")
	}
	return paths, nil
}
