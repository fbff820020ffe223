// Package entity defines the request and response shapes used by the web layer.
package entity

import (
	"math"
	"net"
	"strings"
	"time"

	"github.com/viewer360/viewer360/database/model"
	"github.com/viewer360/viewer360/util/common"

	"github.com/robfig/cron/v3"
)

// Msg is the envelope of every JSON response.
type Msg struct {
	Success bool     `json:"success"`
	Msg     string   `json:"msg"`
	Errors  []string `json:"errors,omitempty"`
	Obj     any      `json:"obj"`
}

// AllSetting contains the panel settings editable by administrators.
type AllSetting struct {
	WebListen          string `json:"webListen" form:"webListen"`
	WebDomain          string `json:"webDomain" form:"webDomain"`
	WebPort            int    `json:"webPort" form:"webPort"`
	WebBasePath        string `json:"webBasePath" form:"webBasePath"`
	SessionMaxAge      int    `json:"sessionMaxAge" form:"sessionMaxAge"` // minutes
	TimeLocation       string `json:"timeLocation" form:"timeLocation"`
	OrphanCleanupCron  string `json:"orphanCleanupCron" form:"orphanCleanupCron"`
	RateLimitPerMinute int    `json:"rateLimitPerMinute" form:"rateLimitPerMinute"`
	RegistrationOpen   bool   `json:"registrationOpen" form:"registrationOpen"`
}

func (s *AllSetting) CheckValid() error {
	if s.WebListen != "" {
		ip := net.ParseIP(s.WebListen)
		if ip == nil {
			return common.NewError("web listen is not valid ip:", s.WebListen)
		}
	}

	if s.WebPort <= 0 || s.WebPort > math.MaxUint16 {
		return common.NewError("web port is not a valid port:", s.WebPort)
	}

	if s.SessionMaxAge < 0 {
		return common.NewError("session max age cannot be negative:", s.SessionMaxAge)
	}

	if s.RateLimitPerMinute < 0 {
		return common.NewError("rate limit cannot be negative:", s.RateLimitPerMinute)
	}

	if s.OrphanCleanupCron != "" {
		parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
		if _, err := parser.Parse(s.OrphanCleanupCron); err != nil {
			return common.NewErrorf("orphan cleanup schedule <%v> invalid: %v", s.OrphanCleanupCron, err)
		}
	}

	if !strings.HasPrefix(s.WebBasePath, "/") {
		s.WebBasePath = "/" + s.WebBasePath
	}
	if !strings.HasSuffix(s.WebBasePath, "/") {
		s.WebBasePath += "/"
	}

	_, err := time.LoadLocation(s.TimeLocation)
	if err != nil {
		return common.NewError("time location not exist:", s.TimeLocation)
	}

	return nil
}

// PanoramaLink is an entry of the portal target picker.
type PanoramaLink struct {
	Id    int    `json:"id"`
	Title string `json:"title"`
}

// PanoramaSummary is a panorama row enriched for listings.
type PanoramaSummary struct {
	Id                 int       `json:"id"`
	UserId             int       `json:"userId"`
	Username           string    `json:"username"`
	FilePath           string    `json:"filePath"`
	Title              string    `json:"title"`
	Description        string    `json:"description"`
	IsPublic           bool      `json:"isPublic"`
	OriginalPanoramaId *int      `json:"originalPanoramaId"`
	CreatedAt          time.Time `json:"createdAt"`
	VoteScore          int       `json:"voteScore"`
	MarkerCount        int       `json:"markerCount"`
}

type Lineage struct {
	Original  *model.Panorama `json:"original"`
	ForkCount int64           `json:"forkCount"`
}

type VoteResult struct {
	Score    int `json:"score"`
	UserVote int `json:"userVote"`
}

type ColorOption struct {
	Name string `json:"name"`
	Hex  string `json:"hex"`
}

// PanoramaExport is the document produced by the owner export.
type PanoramaExport struct {
	Panorama   *model.Panorama `json:"panorama"`
	Markers    []model.Marker  `json:"markers"`
	VoteScore  int             `json:"voteScore"`
	ExportedAt time.Time       `json:"exportedAt"`
}

type UserSummary struct {
	Id            int        `json:"id"`
	Username      string     `json:"username"`
	Email         string     `json:"email"`
	Role          model.Role `json:"role"`
	IsBanned      bool       `json:"isBanned"`
	CreatedAt     time.Time  `json:"createdAt"`
	PanoramaCount int        `json:"panoramaCount"`
}

type BanResult struct {
	IsBanned bool   `json:"isBanned"`
	Message  string `json:"message"`
}

type AdminStats struct {
	TotalUsers       int64  `json:"totalUsers"`
	TotalPanoramas   int64  `json:"totalPanoramas"`
	TotalMarkers     int64  `json:"totalMarkers"`
	AudioMarkers     int64  `json:"audioMarkers"`
	PortalMarkers    int64  `json:"portalMarkers"`
	StorageUsed      int64  `json:"storageUsed"`
	StorageFormatted string `json:"storageFormatted"`
	DiskFree         uint64 `json:"diskFree"`
}

type OrphanFile struct {
	Name          string `json:"name"`
	Size          int64  `json:"size"`
	SizeFormatted string `json:"sizeFormatted"`
}

type CleanupResult struct {
	OrphanFiles         []OrphanFile `json:"orphanFiles"`
	DeletedCount        int          `json:"deletedCount"`
	FreedSpace          int64        `json:"freedSpace"`
	FreedSpaceFormatted string       `json:"freedSpaceFormatted"`
}

type ForceDeleteResult struct {
	FileDeleted  bool `json:"fileDeleted"`
	AudioDeleted int  `json:"audioDeleted"`
}
