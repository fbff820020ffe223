// Package model contains the persisted entities of viewer360: users, panoramas,
// markers, votes and key/value settings.
package model

import (
	"time"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

type User struct {
	Id           int       `json:"id" gorm:"primaryKey;autoIncrement"`
	Username     string    `json:"username" gorm:"size:50;uniqueIndex;not null"`
	Email        string    `json:"email" gorm:"size:255;uniqueIndex;not null"`
	PasswordHash string    `json:"-" gorm:"column:password_hash;not null"`
	Role         Role      `json:"role" gorm:"size:10;not null;default:user"`
	IsBanned     bool      `json:"isBanned" gorm:"not null"`
	CreatedAt    time.Time `json:"createdAt"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Panorama is an uploaded equirectangular image. Forks share FilePath with their
// source and point back to it through OriginalPanoramaId.
type Panorama struct {
	Id                 int       `json:"id" gorm:"primaryKey;autoIncrement"`
	UserId             int       `json:"userId" gorm:"not null;index;uniqueIndex:idx_panorama_fork,priority:1"`
	User               *User     `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	FilePath           string    `json:"filePath" gorm:"size:255;not null;index"`
	Title              string    `json:"title" gorm:"size:200;not null"`
	Description        string    `json:"description" gorm:"type:text"`
	IsPublic           bool      `json:"isPublic" gorm:"not null;index"`
	OriginalPanoramaId *int      `json:"originalPanoramaId" gorm:"uniqueIndex:idx_panorama_fork,priority:2"`
	OriginalPanorama   *Panorama `json:"-" gorm:"foreignKey:OriginalPanoramaId;constraint:OnDelete:SET NULL"`
	CreatedAt          time.Time `json:"createdAt" gorm:"index"`

	// Filled by queries that join users.
	Username string `json:"username,omitempty" gorm:"->;-:migration"`
}

type Marker struct {
	Id               int         `json:"id" gorm:"primaryKey;autoIncrement"`
	PanoramaId       int         `json:"panoramaId" gorm:"not null;index"`
	Panorama         *Panorama   `json:"-" gorm:"foreignKey:PanoramaId;constraint:OnDelete:CASCADE"`
	UserId           int         `json:"userId" gorm:"not null;index"`
	User             *User       `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	Yaw              float64     `json:"yaw" gorm:"not null"`
	Pitch            float64     `json:"pitch" gorm:"not null"`
	Type             MarkerKind  `json:"type" gorm:"size:10;not null;default:text"`
	Color            MarkerColor `json:"color" gorm:"size:10;not null;default:blue"`
	Label            string      `json:"label" gorm:"size:200;not null"`
	Description      string      `json:"description" gorm:"type:text"`
	AudioPath        *string     `json:"audioPath" gorm:"size:255;index"`
	TargetPanoramaId *int        `json:"targetPanoramaId" gorm:"index"`
	TargetPanorama   *Panorama   `json:"-" gorm:"foreignKey:TargetPanoramaId;constraint:OnDelete:SET NULL"`
	CreatedAt        time.Time   `json:"createdAt"`
	UpdatedAt        time.Time   `json:"updatedAt"`

	Username      string `json:"username,omitempty" gorm:"->;-:migration"`
	PanoramaTitle string `json:"panoramaTitle,omitempty" gorm:"->;-:migration"`
}

func (m *Marker) HasAudio() bool {
	return m.AudioPath != nil && *m.AudioPath != ""
}

// Vote is keyed by (UserId, PanoramaId); a missing row means no vote.
type Vote struct {
	UserId     int       `json:"userId" gorm:"primaryKey;autoIncrement:false"`
	User       *User     `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	PanoramaId int       `json:"panoramaId" gorm:"primaryKey;autoIncrement:false;index"`
	Panorama   *Panorama `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	Value      int       `json:"value" gorm:"not null;check:chk_votes_value,value IN (-1,1)"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type Setting struct {
	Id    int    `json:"id" form:"id" gorm:"primaryKey;autoIncrement"`
	Key   string `json:"key" form:"key" gorm:"uniqueIndex"`
	Value string `json:"value" form:"value"`
}
