package catalog

import (
	"errors"

	"gorm.io/gorm"
)

// CreateItem inserts a new item row. A duplicate source identity comes
// back as a conflict from the unique index; this is the authoritative
// duplicate-import guard.
func (s *Store) CreateItem(item *ContentItem) error {
	return storeErr(s.db.Create(item).Error, "item")
}

// AssignItemSlug writes the derived slug for a freshly inserted row and
// mirrors it onto item.
func (s *Store) AssignItemSlug(item *ContentItem) error {
	slug := MakeSlug(item.Title, item.ID)
	if err := s.db.Model(item).Update("slug", slug).Error; err != nil {
		return storeErr(err, "item")
	}
	item.Slug = &slug
	return nil
}

// ItemByID fetches one item regardless of moderation state.
func (s *Store) ItemByID(id uint) (*ContentItem, error) {
	var item ContentItem
	if err := s.db.First(&item, id).Error; err != nil {
		return nil, storeErr(err, "item")
	}
	return &item, nil
}

// ItemBySourceIdentity is the friendly pre-check before the unique index
// fires; a nil item with nil error means no existing import.
func (s *Store) ItemBySourceIdentity(identity string) (*ContentItem, error) {
	var item ContentItem
	err := s.db.Where("source_identity = ?", identity).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr(err, "item")
	}
	return &item, nil
}

// PublicItemBySlug fetches one approved, visible item by slug.
func (s *Store) PublicItemBySlug(slug string) (*ContentItem, error) {
	var item ContentItem
	err := s.db.
		Where("slug = ? AND status = ? AND visible = ?", slug, StatusApproved, true).
		First(&item).Error
	if err != nil {
		return nil, storeErr(err, "item")
	}
	return &item, nil
}

// ListPublicItems returns approved, visible items, optionally filtered
// by category, featured first then by rank and recency.
func (s *Store) ListPublicItems(category string) ([]ContentItem, error) {
	q := s.db.Where("status = ? AND visible = ?", StatusApproved, true)
	if category != "" {
		q = q.Where("category_name = ?", category)
	}
	var items []ContentItem
	err := q.Order("featured DESC, rank_order ASC, created_at DESC").Find(&items).Error
	if err != nil {
		return nil, storeErr(err, "item")
	}
	return items, nil
}

// TrendingItems returns approved, visible items ordered by the weighted
// activity score.
func (s *Store) TrendingItems(limit int) ([]ContentItem, error) {
	if limit <= 0 {
		limit = 20
	}
	var items []ContentItem
	err := s.db.
		Where("status = ? AND visible = ?", StatusApproved, true).
		Order("(plays * 3 + likes * 2 + views) DESC, created_at DESC").
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, storeErr(err, "item")
	}
	return items, nil
}

// PendingItems lists items awaiting moderation, oldest first.
func (s *Store) PendingItems() ([]ContentItem, error) {
	var items []ContentItem
	err := s.db.Where("status = ?", StatusPending).Order("created_at ASC").Find(&items).Error
	if err != nil {
		return nil, storeErr(err, "item")
	}
	return items, nil
}

// ItemsOwnedBy lists every item belonging to one user, any state.
func (s *Store) ItemsOwnedBy(userID uint) ([]ContentItem, error) {
	var items []ContentItem
	if err := s.db.Where("owner_id = ?", userID).Find(&items).Error; err != nil {
		return nil, storeErr(err, "item")
	}
	return items, nil
}

// updateItem applies column writes to one row, reporting not-found when
// the id does not exist.
func (s *Store) updateItem(id uint, cols map[string]any) error {
	res := s.db.Model(&ContentItem{}).Where("id = ?", id).Updates(cols)
	if res.Error != nil {
		return storeErr(res.Error, "item")
	}
	if res.RowsAffected == 0 {
		var n int64
		s.db.Model(&ContentItem{}).Where("id = ?", id).Count(&n)
		if n == 0 {
			return storeErr(gorm.ErrRecordNotFound, "item")
		}
	}
	return nil
}

// SetItemStatus writes the moderation status. Idempotent.
func (s *Store) SetItemStatus(id uint, status string) error {
	return s.updateItem(id, map[string]any{"status": status})
}

// SetItemVisibility writes the visible flag. Idempotent.
func (s *Store) SetItemVisibility(id uint, visible bool) error {
	return s.updateItem(id, map[string]any{"visible": visible})
}

// SetItemFeatured writes the featured flag. Idempotent.
func (s *Store) SetItemFeatured(id uint, featured bool) error {
	return s.updateItem(id, map[string]any{"featured": featured})
}

// SetItemRank writes the rank order. Idempotent.
func (s *Store) SetItemRank(id uint, rank int) error {
	return s.updateItem(id, map[string]any{"rank_order": rank})
}

// SetItemThumbnail writes a manually uploaded thumbnail path.
func (s *Store) SetItemThumbnail(id uint, path string) error {
	return s.updateItem(id, map[string]any{"thumbnail_path": path})
}

// RecordItemPlay bumps the play counter atomically and appends an
// activity row for the trending queries.
func (s *Store) RecordItemPlay(itemID, userID uint) error {
	return s.recordItemActivity(itemID, userID, "play", "plays")
}

// RecordItemView bumps the view counter atomically.
func (s *Store) RecordItemView(itemID, userID uint) error {
	return s.recordItemActivity(itemID, userID, "view", "views")
}

func (s *Store) recordItemActivity(itemID, userID uint, kind, column string) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&ContentItem{}).
			Where("id = ?", itemID).
			UpdateColumn(column, gorm.Expr(column+" + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Create(&ActivityRecord{ItemID: itemID, UserID: userID, Kind: kind}).Error
	})
	return storeErr(err, "item")
}

// InsertItemLike records (user, item) under the composite unique index.
// A conflict means the user already liked this item.
func (s *Store) InsertItemLike(userID, itemID uint) error {
	return storeErr(s.db.Create(&ItemLike{UserID: userID, ItemID: itemID}).Error, "item")
}

// IncrementItemLikes bumps the denormalized like counter.
func (s *Store) IncrementItemLikes(itemID uint) error {
	res := s.db.Model(&ContentItem{}).
		Where("id = ?", itemID).
		UpdateColumn("likes", gorm.Expr("likes + 1"))
	if res.Error != nil {
		return storeErr(res.Error, "item")
	}
	if res.RowsAffected == 0 {
		return storeErr(gorm.ErrRecordNotFound, "item")
	}
	return nil
}

// DeleteItem removes the row; like and activity rows go with it via the
// storage-layer cascade. The caller removes the backing file tree first.
func (s *Store) DeleteItem(id uint) error {
	res := s.db.Delete(&ContentItem{}, id)
	if res.Error != nil {
		return storeErr(res.Error, "item")
	}
	if res.RowsAffected == 0 {
		return storeErr(gorm.ErrRecordNotFound, "item")
	}
	return nil
}

// PublishedDirNames returns the unique directory name component of every
// item's published URL. The orphan sweep treats anything else under the
// apps tree as removable.
func (s *Store) PublishedDirNames() ([]string, error) {
	var urls []string
	err := s.db.Model(&ContentItem{}).
		Where("content_type = ?", TypeBundle).
		Pluck("published_url", &urls).Error
	if err != nil {
		return nil, storeErr(err, "item")
	}
	return urls, nil
}
