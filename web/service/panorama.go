package service

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/viewer360/viewer360/database"
	"github.com/viewer360/viewer360/database/model"
	"github.com/viewer360/viewer360/logger"
	"github.com/viewer360/viewer360/storage"
	"github.com/viewer360/viewer360/util/common"
	"github.com/viewer360/viewer360/web/entity"

	"github.com/goccy/go-json"
	"gorm.io/gorm"
)

const (
	maxTitleLength    = 200
	maxPanoramaSize   = 50 * 1024 * 1024
	forkTitleSuffix   = " (Remixed)"
	titleErrorMessage = "Title is required and must be less than 200 characters."
)

var panoramaRules = storage.Rules{
	Dir:               storage.UploadsDir,
	MaxSize:           maxPanoramaSize,
	AllowedTypes:      []string{"image/jpeg", "image/png"},
	AllowedExtensions: []string{"jpg", "jpeg", "png"},
	SizeMessage:       "File size exceeds the maximum limit of 50MB",
	TypeMessage:       "Only JPEG and PNG images are allowed.",
	ExtensionMessage:  "Invalid file extension. Only .jpg, .jpeg, and .png are allowed.",
}

// PanoramaService manages panoramas, their visibility and fork lineage.
type PanoramaService struct {
	markerService MarkerService
	fileRef       FileRefService
}

func validTitle(title string) bool {
	n := utf8.RuneCountInString(title)
	return n > 0 && n <= maxTitleLength
}

// Upload stores the image and records a new panorama owned by the caller.
// Every validation message is reported at once.
func (s *PanoramaService) Upload(caller Identity, file storage.Upload, title, description string, isPublic bool) (*model.Panorama, error) {
	if !caller.IsAuthenticated() {
		return nil, common.Unauthenticated("You must be logged in to upload.")
	}

	title = strings.TrimSpace(title)
	var errs []string
	if !validTitle(title) {
		errs = append(errs, titleErrorMessage)
	}
	if !file.Present() {
		errs = append(errs, "Please select a file to upload.")
		return nil, common.InvalidList(errs)
	}

	errs = append(errs, getFileStore().Validate(file, panoramaRules)...)
	if len(errs) > 0 {
		return nil, common.InvalidList(errs)
	}

	p := &model.Panorama{
		UserId:      caller.UserId,
		Title:       title,
		Description: strings.TrimSpace(description),
		IsPublic:    isPublic,
	}
	err := storeLocked(file, panoramaRules, func(filePath string) error {
		p.FilePath = filePath
		if err := database.GetDB().Create(p).Error; err != nil {
			return common.Internal("failed to insert panorama", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Infof("user %d uploaded panorama %d (%s)", caller.UserId, p.Id, p.FilePath)
	return p, nil
}

func withUsername(db *gorm.DB) *gorm.DB {
	return db.Model(&model.Panorama{}).
		Select("panoramas.*, users.username AS username").
		Joins("JOIN users ON users.id = panoramas.user_id")
}

// Get returns the panorama joined with its owner's username, or nil when missing.
func (s *PanoramaService) Get(id int) (*model.Panorama, error) {
	return s.get(database.GetDB(), id)
}

func (s *PanoramaService) get(tx *gorm.DB, id int) (*model.Panorama, error) {
	p := &model.Panorama{}
	err := withUsername(tx).Where("panoramas.id = ?", id).First(p).Error
	if database.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// CanView is true for public panoramas, administrators and the owner.
func (s *PanoramaService) CanView(p *model.Panorama, caller Identity) bool {
	if p == nil {
		return false
	}
	return p.IsPublic || caller.IsAdmin() || caller.Owns(p.UserId)
}

// GetForViewer distinguishes a missing panorama from one the caller may not see.
func (s *PanoramaService) GetForViewer(id int, caller Identity) (*model.Panorama, error) {
	p, err := s.Get(id)
	if err != nil {
		return nil, common.Internal("failed to load panorama", err)
	}
	if p == nil {
		return nil, common.NotFound("Panorama not found.")
	}
	if !s.CanView(p, caller) {
		return nil, common.Forbidden("You do not have access to this panorama.")
	}
	return p, nil
}

// loadOwned fetches a panorama and checks that the caller owns it.
func (s *PanoramaService) loadOwned(caller Identity, id int, action string) (*model.Panorama, error) {
	if !caller.IsAuthenticated() {
		return nil, common.Unauthenticated("You must be logged in to " + action + ".")
	}
	p, err := s.Get(id)
	if err != nil {
		return nil, common.Internal("failed to load panorama", err)
	}
	if p == nil {
		return nil, common.NotFound("Panorama not found.")
	}
	if p.UserId != caller.UserId {
		return nil, common.Forbidden("You do not have permission to " + action + " this panorama.")
	}
	return p, nil
}

func (s *PanoramaService) Update(caller Identity, id int, title, description string, isPublic bool) (*model.Panorama, error) {
	p, err := s.loadOwned(caller, id, "edit")
	if err != nil {
		return nil, err
	}
	title = strings.TrimSpace(title)
	if !validTitle(title) {
		return nil, common.Invalid(titleErrorMessage)
	}
	err = database.GetDB().Model(&model.Panorama{}).Where("id = ?", id).Updates(map[string]any{
		"title":       title,
		"description": strings.TrimSpace(description),
		"is_public":   isPublic,
	}).Error
	if err != nil {
		return nil, common.Internal("failed to update panorama", err)
	}
	p.Title = title
	p.Description = strings.TrimSpace(description)
	p.IsPublic = isPublic
	return p, nil
}

// Delete removes the caller's panorama and releases its files.
func (s *PanoramaService) Delete(caller Identity, id int) error {
	p, err := s.loadOwned(caller, id, "delete")
	if err != nil {
		return err
	}
	_, err = s.remove(p)
	return err
}

// remove deletes the panorama row together with its markers and votes, demotes
// portals pointing at it, detaches forks, and then releases the image and any
// audio no longer referenced.
func (s *PanoramaService) remove(p *model.Panorama) (*entity.ForceDeleteResult, error) {
	var audioPaths []string
	err := database.GetDB().Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Marker{}).
			Where("panorama_id = ? AND audio_path IS NOT NULL AND audio_path <> ''", p.Id).
			Distinct().Pluck("audio_path", &audioPaths).Error; err != nil {
			return err
		}
		if err := tx.Model(&model.Marker{}).Where("target_panorama_id = ?", p.Id).Updates(map[string]any{
			"target_panorama_id": nil,
			"type":               model.MarkerText,
		}).Error; err != nil {
			return err
		}
		if err := tx.Model(&model.Panorama{}).Where("original_panorama_id = ?", p.Id).
			Update("original_panorama_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Where("panorama_id = ?", p.Id).Delete(&model.Marker{}).Error; err != nil {
			return err
		}
		if err := tx.Where("panorama_id = ?", p.Id).Delete(&model.Vote{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Panorama{}, p.Id).Error
	})
	if err != nil {
		return nil, common.Internal("failed to delete panorama", err)
	}

	result := &entity.ForceDeleteResult{}
	result.FileDeleted, err = s.fileRef.Release(p.FilePath)
	if err != nil {
		logger.Warningf("panorama %d deleted but releasing %s failed: %v", p.Id, p.FilePath, err)
	}
	result.AudioDeleted = s.fileRef.releaseAll(audioPaths)
	logger.Infof("panorama %d deleted (file removed: %v, audio removed: %d)", p.Id, result.FileDeleted, result.AudioDeleted)
	return result, nil
}

func forkTitle(title string) string {
	room := maxTitleLength - utf8.RuneCountInString(forkTitleSuffix)
	if utf8.RuneCountInString(title) > room {
		title = string([]rune(title)[:room])
	}
	return title + forkTitleSuffix
}

// ForkPanorama saves a copy of someone else's public panorama into the caller's
// collection. The copy is private, shares the image file and carries the
// source's non-portal markers with their original authors.
func (s *PanoramaService) ForkPanorama(caller Identity, sourceId int) (*model.Panorama, error) {
	if !caller.IsAuthenticated() {
		return nil, common.Unauthenticated("You must be logged in to save to your collection.")
	}
	source, err := s.Get(sourceId)
	if err != nil {
		return nil, common.Internal("failed to load panorama", err)
	}
	if err := checkForkable(source, caller); err != nil {
		return nil, err
	}

	var existing int64
	err = database.GetDB().Model(&model.Panorama{}).
		Where("user_id = ? AND original_panorama_id = ?", caller.UserId, sourceId).
		Count(&existing).Error
	if err != nil {
		return nil, common.Internal("failed to check existing fork", err)
	}
	if existing > 0 {
		return nil, common.Conflict("You have already saved this panorama to your collection.")
	}

	var audioPaths []string
	err = database.GetDB().Model(&model.Marker{}).
		Where("panorama_id = ? AND target_panorama_id IS NULL AND audio_path IS NOT NULL", sourceId).
		Distinct().Pluck("audio_path", &audioPaths).Error
	if err != nil {
		return nil, common.Internal("failed to load markers", err)
	}
	unlock := lockPaths(append(audioPaths, source.FilePath))
	defer unlock()

	fork := &model.Panorama{}
	err = database.GetDB().Transaction(func(tx *gorm.DB) error {
		// Re-read under the lock: the source may have been deleted meanwhile.
		current, err := s.get(tx, sourceId)
		if err != nil {
			return err
		}
		if err := checkForkable(current, caller); err != nil {
			return err
		}
		fork = &model.Panorama{
			UserId:             caller.UserId,
			FilePath:           current.FilePath,
			Title:              forkTitle(current.Title),
			Description:        current.Description,
			IsPublic:           false,
			OriginalPanoramaId: &current.Id,
		}
		if err := tx.Create(fork).Error; err != nil {
			return err
		}
		return s.markerService.CopyMarkers(tx, current.Id, fork.Id)
	})
	if err != nil {
		if database.IsDuplicate(err) {
			return nil, common.Conflict("You have already saved this panorama to your collection.")
		}
		var cerr *common.Error
		if errors.As(err, &cerr) {
			return nil, cerr
		}
		return nil, common.Internal("failed to fork panorama", err)
	}
	logger.Infof("user %d forked panorama %d into %d", caller.UserId, sourceId, fork.Id)
	return fork, nil
}

func checkForkable(source *model.Panorama, caller Identity) error {
	if source == nil {
		return common.NotFound("Panorama not found.")
	}
	if !source.IsPublic {
		return common.Forbidden("This panorama is private and cannot be saved.")
	}
	if source.UserId == caller.UserId {
		return common.Invalid("You already own this panorama.")
	}
	return nil
}

// GetOriginalPanorama returns the source a fork was made from, or nil.
func (s *PanoramaService) GetOriginalPanorama(id int) (*model.Panorama, error) {
	p, err := s.Get(id)
	if err != nil || p == nil || p.OriginalPanoramaId == nil {
		return nil, err
	}
	return s.Get(*p.OriginalPanoramaId)
}

func (s *PanoramaService) GetForkCount(id int) (int64, error) {
	var count int64
	err := database.GetDB().Model(&model.Panorama{}).Where("original_panorama_id = ?", id).Count(&count).Error
	return count, err
}

// GetLineage returns the original of a viewable panorama and how often it was forked.
func (s *PanoramaService) GetLineage(id int, caller Identity) (*entity.Lineage, error) {
	if _, err := s.GetForViewer(id, caller); err != nil {
		return nil, err
	}
	original, err := s.GetOriginalPanorama(id)
	if err != nil {
		return nil, common.Internal("failed to load original panorama", err)
	}
	if original != nil && !s.CanView(original, caller) {
		original = nil
	}
	count, err := s.GetForkCount(id)
	if err != nil {
		return nil, common.Internal("failed to count forks", err)
	}
	return &entity.Lineage{Original: original, ForkCount: count}, nil
}

// ListForLinking returns the owner's panoramas for the portal target picker.
func (s *PanoramaService) ListForLinking(ownerId int, excludeId *int) ([]entity.PanoramaLink, error) {
	links := make([]entity.PanoramaLink, 0)
	q := database.GetDB().Model(&model.Panorama{}).Select("id, title").Where("user_id = ?", ownerId)
	if excludeId != nil {
		q = q.Where("id <> ?", *excludeId)
	}
	err := q.Order("title ASC").Scan(&links).Error
	return links, err
}

// ListByOwner returns the owner's panoramas, newest first.
func (s *PanoramaService) ListByOwner(ownerId int) ([]model.Panorama, error) {
	panoramas := make([]model.Panorama, 0)
	err := withUsername(database.GetDB()).
		Where("panoramas.user_id = ?", ownerId).
		Order("panoramas.created_at DESC, panoramas.id DESC").
		Find(&panoramas).Error
	return panoramas, err
}

// ListPublic returns every public panorama with its score and marker count, newest first.
func (s *PanoramaService) ListPublic() ([]entity.PanoramaSummary, error) {
	summaries := make([]entity.PanoramaSummary, 0)
	err := database.GetDB().Table("panoramas").
		Select(`panoramas.id, panoramas.user_id, users.username, panoramas.file_path, panoramas.title,
			panoramas.description, panoramas.is_public, panoramas.original_panorama_id, panoramas.created_at,
			(SELECT COALESCE(SUM(votes.value), 0) FROM votes WHERE votes.panorama_id = panoramas.id) AS vote_score,
			(SELECT COUNT(*) FROM markers WHERE markers.panorama_id = panoramas.id) AS marker_count`).
		Joins("JOIN users ON users.id = panoramas.user_id").
		Where("panoramas.is_public = ?", true).
		Order("panoramas.created_at DESC, panoramas.id DESC").
		Scan(&summaries).Error
	return summaries, err
}

// Export builds the owner's JSON export of a panorama and its markers.
func (s *PanoramaService) Export(caller Identity, id int) ([]byte, error) {
	p, err := s.loadOwned(caller, id, "export")
	if err != nil {
		return nil, err
	}
	markers, err := s.markerService.GetByPanorama(id, caller)
	if err != nil {
		return nil, err
	}
	var voteService VoteService
	score, err := voteService.GetVoteScore(id)
	if err != nil {
		return nil, common.Internal("failed to compute vote score", err)
	}
	doc := entity.PanoramaExport{
		Panorama:   p,
		Markers:    markers,
		VoteScore:  score,
		ExportedAt: time.Now().UTC(),
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, common.Internal("failed to encode export", err)
	}
	return data, nil
}
