package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Platform names as stored in SocialMediaPlatform.Name
const (
	PlatformTwitter   = "Twitter"
	PlatformInstagram = "Instagram"
)

// SocialMediaPlatform identifies a source platform. Looked up or created
// once by name and not changed afterwards.
type SocialMediaPlatform struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Name        string    `json:"name" gorm:"type:varchar(50);not null;uniqueIndex"`
	APIEndpoint string    `json:"api_endpoint" gorm:"type:varchar(255)"`
	IsActive    bool      `json:"is_active" gorm:"not null;default:true"`
	RateLimit   int       `json:"rate_limit"` // requests per window
	CreatedAt   time.Time `json:"created_at"`
}

func (SocialMediaPlatform) TableName() string { return "social_media_platforms" }

// SocialMediaPost is an ingested post. (platform_id, post_id) is unique.
type SocialMediaPost struct {
	ID         uint                `json:"id" gorm:"primaryKey"`
	PlatformID uint                `json:"platform_id" gorm:"not null;uniqueIndex:ux_social_posts_platform_post,priority:1"`
	Platform   SocialMediaPlatform `json:"-" gorm:"foreignKey:PlatformID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	PostID     string              `json:"post_id" gorm:"type:varchar(100);not null;uniqueIndex:ux_social_posts_platform_post,priority:2"`

	AuthorUsername    string `json:"author_username" gorm:"type:varchar(100)"`
	AuthorDisplayName string `json:"author_display_name" gorm:"type:varchar(200)"`
	IsVerifiedAccount bool   `json:"is_verified_account"`
	AccountFollowers  int    `json:"account_followers"`

	Content          string     `json:"content" gorm:"type:text;not null"`
	OriginalLanguage string     `json:"original_language" gorm:"type:varchar(10)"`
	Latitude         *float64   `json:"latitude,omitempty"`
	Longitude        *float64   `json:"longitude,omitempty"`
	PostedAt         time.Time  `json:"posted_at" gorm:"index"`
	Hashtags         StringList `json:"hashtags"`
	Mentions         StringList `json:"mentions"`
	URLs             StringList `json:"urls"`

	HasMedia   bool           `json:"has_media"`
	MediaURLs  StringList     `json:"media_urls"`
	MediaTypes StringList     `json:"media_types"`
	RawData    datatypes.JSON `json:"raw_data"`

	Likes    int `json:"likes"`
	Shares   int `json:"shares"`
	Comments int `json:"comments"`
	Views    int `json:"views"`

	IsDisasterRelated   bool    `json:"is_disaster_related" gorm:"index"`
	DisasterConfidence  float64 `json:"disaster_confidence"`
	Sentiment           string  `json:"sentiment" gorm:"type:varchar(20)"`
	SentimentConfidence float64 `json:"sentiment_confidence"`
	CredibilityScore    float64 `json:"credibility_score"`

	LastAnalyzed time.Time `json:"last_analyzed"`
	CreatedAt    time.Time `json:"created_at"`
}

func (SocialMediaPost) TableName() string { return "social_media_posts" }

// StringList is an ordered string sequence stored as a JSON column.
type StringList = datatypes.JSONSlice[string]

// APIUsage is the hourly usage bucket for one platform endpoint. Counters
// only ever grow.
type APIUsage struct {
	ID                 uint   `json:"id" gorm:"primaryKey"`
	PlatformID         uint   `json:"platform_id" gorm:"not null;uniqueIndex:ux_api_usage_bucket,priority:1"`
	Endpoint           string `json:"endpoint" gorm:"type:varchar(100);not null;uniqueIndex:ux_api_usage_bucket,priority:2"`
	Date               string `json:"date" gorm:"type:varchar(10);not null;uniqueIndex:ux_api_usage_bucket,priority:3"` // YYYY-MM-DD, UTC
	Hour               int    `json:"hour" gorm:"not null;uniqueIndex:ux_api_usage_bucket,priority:4"`
	RequestsMade       int    `json:"requests_made" gorm:"not null;default:0"`
	SuccessfulRequests int    `json:"successful_requests" gorm:"not null;default:0"`
	FailedRequests     int    `json:"failed_requests" gorm:"not null;default:0"`
	RateLimited        int    `json:"rate_limited" gorm:"not null;default:0"`
	DataRetrieved      int    `json:"data_retrieved" gorm:"not null;default:0"`
}

func (APIUsage) TableName() string { return "api_usage" }

// User is an account that can authenticate against the HTTP API.
type User struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	Username     string    `json:"username" gorm:"type:varchar(150);not null;uniqueIndex"`
	Email        string    `json:"email" gorm:"type:varchar(254)"`
	PasswordHash string    `json:"-" gorm:"type:varchar(100);not null"`
	CreatedAt    time.Time `json:"created_at"`
}

func (User) TableName() string { return "users" }

// Profile roles
const (
	RoleCitizen  = "citizen"
	RoleOfficial = "official"
	RoleAnalyst  = "analyst"
)

// UserProfile extends a User with a platform role.
type UserProfile struct {
	ID      uint   `json:"id" gorm:"primaryKey"`
	UserID  uint   `json:"-" gorm:"not null;uniqueIndex"`
	User    User   `json:"user" gorm:"foreignKey:UserID;references:ID;constraint:OnDelete:CASCADE"`
	Role    string `json:"role" gorm:"type:varchar(20);not null;default:'citizen'"`
	Phone   string `json:"phone" gorm:"type:varchar(30)"`
	Address string `json:"address" gorm:"type:text"`
}

func (UserProfile) TableName() string { return "user_profiles" }

// Hazard report statuses
const (
	StatusUnverified = "unverified"
	StatusVerified   = "verified"
)

// HazardReport is a crowdsourced report. Owner, status and CreatedAt are
// fixed at creation as far as the API is concerned.
type HazardReport struct {
	ID          uint            `json:"id" gorm:"primaryKey"`
	UserID      uint            `json:"-" gorm:"not null;index"`
	User        User            `json:"user" gorm:"foreignKey:UserID;references:ID;constraint:OnDelete:CASCADE"`
	Description string          `json:"description" gorm:"type:text;not null"`
	Latitude    decimal.Decimal `json:"latitude" gorm:"type:decimal(9,6);not null"`
	Longitude   decimal.Decimal `json:"longitude" gorm:"type:decimal(9,6);not null"`
	MediaURL    *string         `json:"media_url"`
	Status      string          `json:"status" gorm:"type:varchar(15);not null;default:'unverified'"`
	CreatedAt   time.Time       `json:"created_at"`
}

func (HazardReport) TableName() string { return "hazard_reports" }
