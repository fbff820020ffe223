package service

import (
	"path"

	"github.com/viewer360/viewer360/database"
	"github.com/viewer360/viewer360/database/model"
	"github.com/viewer360/viewer360/logger"
	"github.com/viewer360/viewer360/storage"
	"github.com/viewer360/viewer360/util/common"
	"github.com/viewer360/viewer360/util/sys"
	"github.com/viewer360/viewer360/web/cache"
	"github.com/viewer360/viewer360/web/entity"
)

const adminOnlyMessage = "Admin access required."

// ModerationService holds the administrator operations. Every method checks the
// caller's role.
type ModerationService struct {
	panoramaService PanoramaService
	markerService   MarkerService
	userService     UserService
	fileRef         FileRefService
}

func requireAdmin(caller Identity) error {
	if !caller.IsAuthenticated() {
		return common.Unauthenticated("You must be logged in.")
	}
	if !caller.IsAdmin() {
		return common.Forbidden(adminOnlyMessage)
	}
	return nil
}

func (s *ModerationService) ListUsers(caller Identity) ([]entity.UserSummary, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	users := make([]entity.UserSummary, 0)
	err := database.GetDB().Table("users").
		Select(`users.id, users.username, users.email, users.role, users.is_banned, users.created_at,
			(SELECT COUNT(*) FROM panoramas WHERE panoramas.user_id = users.id) AS panorama_count`).
		Order("users.created_at DESC, users.id DESC").
		Scan(&users).Error
	if err != nil {
		return nil, common.Internal("failed to list users", err)
	}
	return users, nil
}

// ToggleBan flips the ban flag of a regular user.
func (s *ModerationService) ToggleBan(caller Identity, userId int) (*entity.BanResult, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	if userId == caller.UserId {
		return nil, common.Invalid("You cannot ban yourself.")
	}
	user, err := s.userService.GetUserById(userId)
	if database.IsNotFound(err) {
		return nil, common.NotFound("User not found.")
	} else if err != nil {
		return nil, common.Internal("failed to load user", err)
	}
	if user.IsAdmin() {
		return nil, common.Forbidden("You cannot ban an admin user.")
	}

	banned := !user.IsBanned
	err = database.GetDB().Model(model.User{}).Where("id = ?", userId).Update("is_banned", banned).Error
	if err != nil {
		return nil, common.Internal("failed to update ban state", err)
	}
	s.userService.InvalidateIdentity(userId)

	result := &entity.BanResult{IsBanned: banned, Message: "User has been unbanned."}
	if banned {
		result.Message = "User has been banned."
	}
	logger.Infof("admin %d set ban=%v on user %d", caller.UserId, banned, userId)
	return result, nil
}

// ListPanoramas returns every panorama, optionally of one owner, newest first.
func (s *ModerationService) ListPanoramas(caller Identity, userId *int) ([]model.Panorama, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	panoramas := make([]model.Panorama, 0)
	q := withUsername(database.GetDB())
	if userId != nil {
		q = q.Where("panoramas.user_id = ?", *userId)
	}
	if err := q.Order("panoramas.created_at DESC, panoramas.id DESC").Find(&panoramas).Error; err != nil {
		return nil, common.Internal("failed to list panoramas", err)
	}
	return panoramas, nil
}

// ListMarkers returns every marker with its creator and panorama title.
func (s *ModerationService) ListMarkers(caller Identity, panoramaId *int) ([]model.Marker, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	markers := make([]model.Marker, 0)
	q := withMarkerUsername(database.GetDB()).
		Select("markers.*, users.username AS username, panoramas.title AS panorama_title").
		Joins("JOIN panoramas ON panoramas.id = markers.panorama_id")
	if panoramaId != nil {
		q = q.Where("markers.panorama_id = ?", *panoramaId)
	}
	if err := q.Order("markers.created_at DESC, markers.id DESC").Find(&markers).Error; err != nil {
		return nil, common.Internal("failed to list markers", err)
	}
	return markers, nil
}

func (s *ModerationService) ForceDeletePanorama(caller Identity, id int) (*entity.ForceDeleteResult, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	p, err := s.panoramaService.Get(id)
	if err != nil {
		return nil, common.Internal("failed to load panorama", err)
	}
	if p == nil {
		return nil, common.NotFound("Panorama not found.")
	}
	result, err := s.panoramaService.remove(p)
	if err != nil {
		return nil, err
	}
	logger.Infof("admin %d removed panorama %d", caller.UserId, id)
	cache.InvalidateAdminStats()
	return result, nil
}

// ForceDeleteMarker removes any marker and reports whether its audio was removed.
func (s *ModerationService) ForceDeleteMarker(caller Identity, id int) (bool, error) {
	if err := requireAdmin(caller); err != nil {
		return false, err
	}
	m, err := s.markerService.GetMarker(id)
	if err != nil {
		return false, common.Internal("failed to load marker", err)
	}
	if m == nil {
		return false, common.NotFound("Marker not found.")
	}
	deleted, err := s.markerService.remove(m)
	if err != nil {
		return false, err
	}
	logger.Infof("admin %d removed marker %d", caller.UserId, id)
	cache.InvalidateAdminStats()
	return deleted, nil
}

// CleanupOrphanFiles removes stored files that no panorama or marker references.
func (s *ModerationService) CleanupOrphanFiles(caller Identity) (*entity.CleanupResult, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	return s.cleanupOrphans()
}

// SweepOrphans runs the orphan cleanup on behalf of the system, for the
// scheduler and the command line.
func (s *ModerationService) SweepOrphans() (*entity.CleanupResult, error) {
	return s.cleanupOrphans()
}

func (s *ModerationService) cleanupOrphans() (*entity.CleanupResult, error) {
	store := getFileStore()
	result := &entity.CleanupResult{OrphanFiles: make([]entity.OrphanFile, 0)}

	err := store.Walk(storage.UploadsDir, func(p string, size int64) error {
		removed, err := s.removeIfOrphan(store, p)
		if err != nil {
			logger.Warningf("orphan check of %s failed: %v", p, err)
			return nil
		}
		if !removed {
			return nil
		}
		result.OrphanFiles = append(result.OrphanFiles, entity.OrphanFile{
			Name:          path.Base(p),
			Size:          size,
			SizeFormatted: common.FormatBytes(size),
		})
		result.DeletedCount++
		result.FreedSpace += size
		return nil
	})
	if err != nil {
		return nil, common.Internal("failed to scan uploads", err)
	}
	result.FreedSpaceFormatted = common.FormatBytes(result.FreedSpace)
	if result.DeletedCount > 0 {
		logger.Infof("orphan cleanup removed %d files (%s)", result.DeletedCount, result.FreedSpaceFormatted)
		cache.InvalidateAdminStats()
	}
	return result, nil
}

func (s *ModerationService) removeIfOrphan(store storage.FileStore, p string) (bool, error) {
	unlock := lockPath(p)
	defer unlock()

	referenced, err := s.fileRef.IsFileReferenced(nil, p)
	if err != nil || referenced {
		return false, err
	}
	if err := store.Delete(p); err != nil {
		return false, err
	}
	return true, nil
}

// Stats reports content counts and storage usage. Results are cached briefly.
func (s *ModerationService) Stats(caller Identity) (*entity.AdminStats, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	stats := &entity.AdminStats{}
	err := cache.GetOrSet(cache.KeyAdminStats, stats, cache.TTLAdminStats, s.collectStats)
	if err != nil {
		return nil, common.Internal("failed to collect statistics", err)
	}
	return stats, nil
}

func (s *ModerationService) collectStats() (entity.AdminStats, error) {
	var stats entity.AdminStats
	db := database.GetDB()
	counts := []struct {
		dest  *int64
		model any
		where string
	}{
		{&stats.TotalUsers, &model.User{}, ""},
		{&stats.TotalPanoramas, &model.Panorama{}, ""},
		{&stats.TotalMarkers, &model.Marker{}, ""},
		{&stats.AudioMarkers, &model.Marker{}, "audio_path IS NOT NULL AND audio_path <> ''"},
		{&stats.PortalMarkers, &model.Marker{}, "target_panorama_id IS NOT NULL"},
	}
	for _, c := range counts {
		q := db.Model(c.model)
		if c.where != "" {
			q = q.Where(c.where)
		}
		if err := q.Count(c.dest).Error; err != nil {
			return stats, err
		}
	}

	store := getFileStore()
	used, err := store.TotalSize()
	if err != nil {
		return stats, err
	}
	stats.StorageUsed = used
	stats.StorageFormatted = common.FormatBytes(used)

	if usage, err := sys.GetDiskUsage(store.Root()); err == nil {
		stats.DiskFree = usage.Free
	} else {
		logger.Debug("disk usage unavailable:", err)
	}
	return stats, nil
}

// PromoteToAdmin grants the admin role. It is used by the command line where no
// caller exists.
func (s *ModerationService) PromoteToAdmin(userId int) error {
	return s.userService.SetRole(userId, model.RoleAdmin)
}

// Logs returns recent log lines at or above level, newest first.
func (s *ModerationService) Logs(caller Identity, count int, level string) ([]string, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	if count <= 0 {
		count = 100
	}
	return logger.GetLogs(count, level), nil
}
