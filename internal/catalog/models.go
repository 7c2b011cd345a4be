// Package catalog holds the persisted entities of the community catalog
// and the gorm-backed store that guards their invariants: unique slugs,
// unique source identities and unique (user, item) like pairs live here
// as database constraints, not application checks.
package catalog

import "time"

// Moderation states.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// Content types carried by a ContentItem.
const (
	TypeBundle = "bundle"
	TypeVideo  = "video"
	TypeLink   = "link"
)

// Import methods recorded on an item.
const (
	MethodArchive    = "archive"
	MethodRepository = "repository"
	MethodURLScrape  = "url-scrape"
	MethodUpload     = "upload"
)

// ContentItem is a published catalog entry: a static web bundle, a video
// or an external link. PublishedURL is a relative path into the content
// root for bundles and videos, or the external URL for links.
type ContentItem struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	OwnerID     uint   `gorm:"index" json:"owner_id"`
	Title       string `gorm:"size:255" json:"title"`
	Description string `gorm:"type:text" json:"description"`
	ContentType string `gorm:"size:16" json:"content_type"`

	CategoryName string `gorm:"size:64" json:"category"`
	CategoryID   uint   `gorm:"index" json:"-"`

	PublishedURL  string `gorm:"size:512" json:"published_url"`
	IconPath      string `gorm:"size:512" json:"icon_path,omitempty"`
	ThumbnailPath string `gorm:"size:512" json:"thumbnail_path,omitempty"`

	Status    string `gorm:"size:16;index" json:"status"`
	Visible   bool   `json:"visible"`
	Featured  bool   `json:"featured"`
	RankOrder int    `json:"rank_order"`

	Plays         int64   `json:"plays"`
	Views         int64   `json:"views"`
	Likes         int64   `json:"likes"`
	TrendingScore float64 `json:"trending_score"`

	// Slug is assigned right after insert from the row id; nullable so
	// the pre-slug window never trips the unique index.
	Slug *string `gorm:"uniqueIndex;size:191" json:"slug"`

	ImportMethod string `gorm:"size:16" json:"import_method"`

	// SourceIdentity is the remote origin (or archive fingerprint) of an
	// import. Unique when present; the authoritative duplicate guard.
	SourceIdentity *string `gorm:"uniqueIndex;size:191" json:"-"`

	AgreementAccepted bool       `json:"-"`
	AgreementAt       *time.Time `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"-"`
}

// SlugString returns the slug or "" when it has not been assigned yet.
func (i *ContentItem) SlugString() string {
	if i.Slug == nil {
		return ""
	}
	return *i.Slug
}

// CommunityImage is the image-marketplace entity, moderated the same way
// as items but with its own feed, counters and upload quota.
type CommunityImage struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	UploaderID  uint   `gorm:"index" json:"uploader_id"`
	Title       string `gorm:"size:255" json:"title"`
	Description string `gorm:"type:text" json:"description"`

	ImagePath     string `gorm:"size:512" json:"image_path"`
	ThumbnailPath string `gorm:"size:512" json:"thumbnail_path,omitempty"`

	Category string  `gorm:"size:64;index" json:"category"`
	Slug     *string `gorm:"uniqueIndex;size:191" json:"slug"`

	Width         int    `json:"width"`
	Height        int    `json:"height"`
	ByteSize      int64  `json:"byte_size"`
	Orientation   string `gorm:"size:16" json:"orientation"`
	DominantColor string `gorm:"size:16" json:"dominant_color"`

	Status  string `gorm:"size:16;index" json:"status"`
	Visible bool   `json:"visible"`

	Likes     int64 `json:"likes"`
	Downloads int64 `json:"downloads"`
	Views     int64 `json:"views"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"-"`
}

func (m *CommunityImage) SlugString() string {
	if m.Slug == nil {
		return ""
	}
	return *m.Slug
}

// Category is the registry of item categories. Rows are auto-created by
// the classifier on first use.
type Category struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"size:128" json:"name"`
	Slug string `gorm:"uniqueIndex;size:191" json:"slug"`
	Type string `gorm:"size:32" json:"type"`

	CreatedAt time.Time `json:"-"`
}

// ItemLike records one user liking one item. The composite unique index
// is the sole guard against double likes and double XP awards.
type ItemLike struct {
	ID     uint `gorm:"primaryKey"`
	UserID uint `gorm:"uniqueIndex:idx_item_likes_user_item"`
	ItemID uint `gorm:"uniqueIndex:idx_item_likes_user_item"`

	Item ContentItem `gorm:"constraint:OnDelete:CASCADE" json:"-"`

	CreatedAt time.Time
}

// ImageLike is the image counterpart of ItemLike.
type ImageLike struct {
	ID      uint `gorm:"primaryKey"`
	UserID  uint `gorm:"uniqueIndex:idx_image_likes_user_image"`
	ImageID uint `gorm:"uniqueIndex:idx_image_likes_user_image"`

	Image CommunityImage `gorm:"constraint:OnDelete:CASCADE" json:"-"`

	CreatedAt time.Time
}

// ActivityRecord is an append-only play/view/download event used by the
// trending queries. UserID is zero for anonymous traffic.
type ActivityRecord struct {
	ID     uint   `gorm:"primaryKey"`
	ItemID uint   `gorm:"index"`
	UserID uint   `gorm:"index"`
	Kind   string `gorm:"size:16"`

	Item ContentItem `gorm:"constraint:OnDelete:CASCADE" json:"-"`

	CreatedAt time.Time
}

// User carries the gamification state alongside identity basics. Level
// is always recomputed from XP, never incremented on its own.
type User struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Username string `gorm:"uniqueIndex;size:191" json:"username"`
	Role     string `gorm:"size:16" json:"role"`

	Suspended bool `json:"suspended"`

	XP      int64 `json:"xp"`
	Level   int   `json:"level"`
	Uploads int64 `json:"uploads"`
	Likes   int64 `json:"likes"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"-"`
}

// AppSource is a curated registry entry users can import from with one
// click. Tags is a comma-separated keyword list used by discovery search.
type AppSource struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Name        string `gorm:"size:255" json:"name"`
	Description string `gorm:"type:text" json:"description"`
	URL         string `gorm:"size:512" json:"url"`
	SourceType  string `gorm:"size:16" json:"source_type"`
	Tags        string `gorm:"size:512" json:"tags"`

	CreatedAt time.Time `json:"-"`
}

// XPPerLevel is the level divisor: level = xp/XPPerLevel + 1.
const XPPerLevel = 1000

// LevelForXP recomputes a level from accumulated XP.
func LevelForXP(xp int64) int {
	if xp < 0 {
		xp = 0
	}
	return int(xp/XPPerLevel) + 1
}
