package catalog

import (
	"errors"

	"gorm.io/gorm"
)

// UserByID fetches one user.
func (s *Store) UserByID(id uint) (*User, error) {
	var u User
	if err := s.db.First(&u, id).Error; err != nil {
		return nil, storeErr(err, "user")
	}
	return &u, nil
}

// EnsureUser creates the row for an externally authenticated user id on
// first sight. Tokens are minted elsewhere; the catalog only needs a row
// to hang gamification state on.
func (s *Store) EnsureUser(id uint, username, role string) (*User, error) {
	var u User
	err := s.db.First(&u, id).Error
	if err == nil {
		return &u, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storeErr(err, "user")
	}
	u = User{ID: id, Username: username, Role: role, Level: 1}
	if err := s.db.Create(&u).Error; err != nil {
		return nil, storeErr(err, "user")
	}
	return &u, nil
}

// ListUsers returns every user, newest first.
func (s *Store) ListUsers() ([]User, error) {
	var users []User
	if err := s.db.Order("created_at DESC").Find(&users).Error; err != nil {
		return nil, storeErr(err, "user")
	}
	return users, nil
}

// SetUserSuspended toggles the suspended flag. Idempotent.
func (s *Store) SetUserSuspended(id uint, suspended bool) error {
	res := s.db.Model(&User{}).Where("id = ?", id).Update("suspended", suspended)
	if res.Error != nil {
		return storeErr(res.Error, "user")
	}
	if res.RowsAffected == 0 {
		var n int64
		s.db.Model(&User{}).Where("id = ?", id).Count(&n)
		if n == 0 {
			return storeErr(gorm.ErrRecordNotFound, "user")
		}
	}
	return nil
}

// AwardXP adds points to a user's XP, recomputes the level from the new
// total and optionally bumps the named companion counter ("uploads" or
// "likes"). The recompute keeps level a pure function of XP no matter
// how increments interleave.
func (s *Store) AwardXP(userID uint, points int64, counter string) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		cols := map[string]any{"xp": gorm.Expr("xp + ?", points)}
		if counter != "" {
			cols[counter] = gorm.Expr(counter + " + 1")
		}
		res := tx.Model(&User{}).Where("id = ?", userID).UpdateColumns(cols)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		var u User
		if err := tx.Select("xp").First(&u, userID).Error; err != nil {
			return err
		}
		return tx.Model(&User{}).Where("id = ?", userID).
			UpdateColumn("level", LevelForXP(u.XP)).Error
	})
	return storeErr(err, "user")
}

// DeleteUser removes the row and the user's like records. Items and
// images owned by the user are deleted by the caller first so their file
// trees can be cleaned up alongside.
func (s *Store) DeleteUser(id uint) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", id).Delete(&ItemLike{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id).Delete(&ImageLike{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&User{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	return storeErr(err, "user")
}
