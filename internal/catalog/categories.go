package catalog

import (
	"errors"

	"gorm.io/gorm"
)

// EnsureCategory returns the category with the given slug, creating it
// with the supplied display name when absent. A concurrent create is
// absorbed by re-reading after the unique index fires.
func (s *Store) EnsureCategory(slug, name, typ string) (*Category, error) {
	var cat Category
	err := s.db.Where("slug = ?", slug).First(&cat).Error
	if err == nil {
		return &cat, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storeErr(err, "category")
	}

	cat = Category{Name: name, Slug: slug, Type: typ}
	err = s.db.Create(&cat).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		if err := s.db.Where("slug = ?", slug).First(&cat).Error; err != nil {
			return nil, storeErr(err, "category")
		}
		return &cat, nil
	}
	if err != nil {
		return nil, storeErr(err, "category")
	}
	return &cat, nil
}

// ListCategories returns the registry in name order.
func (s *Store) ListCategories() ([]Category, error) {
	var cats []Category
	if err := s.db.Order("name ASC").Find(&cats).Error; err != nil {
		return nil, storeErr(err, "category")
	}
	return cats, nil
}

// CreateCategory inserts an admin-defined category.
func (s *Store) CreateCategory(cat *Category) error {
	return storeErr(s.db.Create(cat).Error, "category")
}

// DeleteCategory removes a registry row. Items keep their denormalized
// category name.
func (s *Store) DeleteCategory(id uint) error {
	res := s.db.Delete(&Category{}, id)
	if res.Error != nil {
		return storeErr(res.Error, "category")
	}
	if res.RowsAffected == 0 {
		return storeErr(gorm.ErrRecordNotFound, "category")
	}
	return nil
}
