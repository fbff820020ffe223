package service

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/viewer360/viewer360/database"
	"github.com/viewer360/viewer360/database/model"
	"github.com/viewer360/viewer360/logger"
	"github.com/viewer360/viewer360/storage"
	"github.com/viewer360/viewer360/util/common"
	"github.com/viewer360/viewer360/web/entity"

	"gorm.io/gorm"
)

const (
	maxLabelLength    = 200
	maxAudioSize      = 15 * 1024 * 1024
	labelErrorMessage = "Label is required and must be less than 200 characters."
)

var audioRules = storage.Rules{
	Dir:               storage.AudioDir,
	MaxSize:           maxAudioSize,
	AllowedTypes:      []string{"audio/mpeg", "audio/wav", "audio/x-wav", "audio/ogg"},
	AllowedExtensions: []string{"mp3", "wav", "ogg"},
	SizeMessage:       "Audio file size exceeds the maximum limit of 15MB.",
	TypeMessage:       "Only MP3, WAV, and OGG audio files are allowed.",
	ExtensionMessage:  "Invalid audio file extension.",
}

// MarkerInput carries the fields of a new marker.
type MarkerInput struct {
	PanoramaId       int
	Yaw              float64
	Pitch            float64
	Label            string
	Description      string
	Type             string
	Color            string
	Audio            *storage.Upload
	TargetPanoramaId *int
}

// MarkerUpdate carries the editable fields of a marker. Audio and RemoveAudio
// are exclusive; RemoveAudio wins when both are set.
type MarkerUpdate struct {
	Label            string
	Description      string
	Type             string
	Color            string
	Yaw              *float64
	Pitch            *float64
	Audio            *storage.Upload
	RemoveAudio      bool
	TargetPanoramaId *int
}

type MarkerService struct {
	fileRef FileRefService
}

func validLabel(label string) bool {
	n := utf8.RuneCountInString(label)
	return n > 0 && n <= maxLabelLength
}

// ValidPosition accepts yaw in [-2π, 2π] and pitch in [-π/2, π/2].
func ValidPosition(yaw, pitch float64) bool {
	for _, v := range []float64{yaw, pitch} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return yaw >= -2*math.Pi && yaw <= 2*math.Pi && pitch >= -math.Pi/2 && pitch <= math.Pi/2
}

func withMarkerUsername(db *gorm.DB) *gorm.DB {
	return db.Model(&model.Marker{}).
		Select("markers.*, users.username AS username").
		Joins("JOIN users ON users.id = markers.user_id")
}

// markerKind derives the stored kind: a target makes a portal, anything else is text.
func markerKind(requested string, target *int) model.MarkerKind {
	if target != nil {
		return model.MarkerPortal
	}
	if model.ParseMarkerKind(requested) == model.MarkerPortal {
		logger.Debug("portal requested without a target, storing a text marker")
	}
	return model.MarkerText
}

// validateTarget checks a portal target for a marker on panoramaId whose
// panorama belongs to ownerId.
func (s *MarkerService) validateTarget(caller Identity, panoramaId int, ownerId int, targetId int) error {
	var panoramaService PanoramaService
	target, err := panoramaService.Get(targetId)
	if err != nil {
		return common.Internal("failed to load target panorama", err)
	}
	if target == nil {
		return common.NotFound("Target panorama not found.")
	}
	if target.UserId != caller.UserId || ownerId != caller.UserId {
		return common.Forbidden("You can only link to your own panoramas.")
	}
	if targetId == panoramaId {
		return common.Invalid("Cannot link a panorama to itself.")
	}
	return nil
}

// validateAudio reports the first rule an audio upload breaks.
func validateAudio(file storage.Upload) error {
	if errs := getFileStore().Validate(file, audioRules); len(errs) > 0 {
		return common.Invalid(errs[0])
	}
	return nil
}

// Create adds a marker to a panorama the caller owns.
func (s *MarkerService) Create(caller Identity, in MarkerInput) (*model.Marker, error) {
	if !caller.IsAuthenticated() {
		return nil, common.Unauthenticated("You must be logged in to create markers.")
	}
	label := strings.TrimSpace(in.Label)
	if !validLabel(label) {
		return nil, common.Invalid(labelErrorMessage)
	}
	if !ValidPosition(in.Yaw, in.Pitch) {
		return nil, common.Invalid("Marker position is out of range.")
	}
	color := model.ParseMarkerColor(in.Color)
	kind := markerKind(in.Type, in.TargetPanoramaId)

	var panoramaService PanoramaService
	panorama, err := panoramaService.GetForViewer(in.PanoramaId, caller)
	if err != nil {
		return nil, err
	}
	if panorama.UserId != caller.UserId {
		return nil, common.Forbidden("You can only add markers to your own panoramas.")
	}

	if in.TargetPanoramaId != nil {
		if err := s.validateTarget(caller, panorama.Id, panorama.UserId, *in.TargetPanoramaId); err != nil {
			return nil, err
		}
	}

	marker := &model.Marker{
		PanoramaId:       panorama.Id,
		UserId:           caller.UserId,
		Yaw:              in.Yaw,
		Pitch:            in.Pitch,
		Type:             kind,
		Color:            color,
		Label:            label,
		Description:      strings.TrimSpace(in.Description),
		TargetPanoramaId: in.TargetPanoramaId,
	}
	insert := func() error {
		if err := database.GetDB().Create(marker).Error; err != nil {
			return common.Internal("failed to create marker", err)
		}
		return nil
	}
	if in.Audio != nil && in.Audio.Present() {
		if err := validateAudio(*in.Audio); err != nil {
			return nil, err
		}
		err = storeLocked(*in.Audio, audioRules, func(p string) error {
			marker.AudioPath = &p
			return insert()
		})
	} else {
		err = insert()
	}
	if err != nil {
		return nil, err
	}
	return marker, nil
}

// GetByPanorama lists the markers of a panorama in creation order. A missing or
// hidden panorama yields an empty list.
func (s *MarkerService) GetByPanorama(panoramaId int, caller Identity) ([]model.Marker, error) {
	markers := make([]model.Marker, 0)
	var panoramaService PanoramaService
	panorama, err := panoramaService.Get(panoramaId)
	if err != nil {
		return nil, common.Internal("failed to load panorama", err)
	}
	if !panoramaService.CanView(panorama, caller) {
		return markers, nil
	}
	err = withMarkerUsername(database.GetDB()).
		Where("markers.panorama_id = ?", panoramaId).
		Order("markers.created_at ASC, markers.id ASC").
		Find(&markers).Error
	if err != nil {
		return nil, common.Internal("failed to load markers", err)
	}
	return markers, nil
}

// GetMarker returns the marker with its creator's username, or nil when missing.
func (s *MarkerService) GetMarker(id int) (*model.Marker, error) {
	m := &model.Marker{}
	err := withMarkerUsername(database.GetDB()).Where("markers.id = ?", id).First(m).Error
	if database.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// GetMarkerForViewer hides markers on panoramas the caller cannot see.
func (s *MarkerService) GetMarkerForViewer(id int, caller Identity) (*model.Marker, error) {
	m, err := s.GetMarker(id)
	if err != nil {
		return nil, common.Internal("failed to load marker", err)
	}
	if m == nil {
		return nil, common.NotFound("Marker not found.")
	}
	var panoramaService PanoramaService
	if _, err := panoramaService.GetForViewer(m.PanoramaId, caller); err != nil {
		if common.IsKind(err, common.KindForbidden) {
			return nil, common.NotFound("Marker not found.")
		}
		return nil, err
	}
	return m, nil
}

func (s *MarkerService) loadOwnMarker(caller Identity, id int, action string) (*model.Marker, error) {
	if !caller.IsAuthenticated() {
		return nil, common.Unauthenticated("You must be logged in to " + action + " markers.")
	}
	m, err := s.GetMarker(id)
	if err != nil {
		return nil, common.Internal("failed to load marker", err)
	}
	if m == nil {
		return nil, common.NotFound("Marker not found.")
	}
	if m.UserId != caller.UserId {
		return nil, common.Forbidden("You can only " + action + " your own markers.")
	}
	return m, nil
}

// Update edits a marker created by the caller. Audio is removed, replaced or kept.
func (s *MarkerService) Update(caller Identity, id int, in MarkerUpdate) (*model.Marker, error) {
	m, err := s.loadOwnMarker(caller, id, "edit")
	if err != nil {
		return nil, err
	}
	label := strings.TrimSpace(in.Label)
	if !validLabel(label) {
		return nil, common.Invalid(labelErrorMessage)
	}
	yaw, pitch := m.Yaw, m.Pitch
	if in.Yaw != nil {
		yaw = *in.Yaw
	}
	if in.Pitch != nil {
		pitch = *in.Pitch
	}
	if !ValidPosition(yaw, pitch) {
		return nil, common.Invalid("Marker position is out of range.")
	}
	color := model.ParseMarkerColor(in.Color)
	kind := markerKind(in.Type, in.TargetPanoramaId)

	if in.TargetPanoramaId != nil {
		var panoramaService PanoramaService
		panorama, err := panoramaService.Get(m.PanoramaId)
		if err != nil {
			return nil, common.Internal("failed to load panorama", err)
		}
		if panorama == nil {
			return nil, common.NotFound("Panorama not found.")
		}
		if err := s.validateTarget(caller, m.PanoramaId, panorama.UserId, *in.TargetPanoramaId); err != nil {
			return nil, err
		}
	}

	oldAudio := m.AudioPath
	newAudio := oldAudio
	apply := func() error {
		err := database.GetDB().Model(&model.Marker{}).Where("id = ?", id).Updates(map[string]any{
			"label":              label,
			"description":        strings.TrimSpace(in.Description),
			"type":               kind,
			"color":              color,
			"yaw":                yaw,
			"pitch":              pitch,
			"audio_path":         newAudio,
			"target_panorama_id": in.TargetPanoramaId,
		}).Error
		if err != nil {
			return common.Internal("failed to update marker", err)
		}
		return nil
	}
	switch {
	case in.RemoveAudio:
		newAudio = nil
		err = apply()
	case in.Audio != nil && in.Audio.Present():
		if err := validateAudio(*in.Audio); err != nil {
			return nil, err
		}
		err = storeLocked(*in.Audio, audioRules, func(p string) error {
			newAudio = &p
			return apply()
		})
	default:
		err = apply()
	}
	if err != nil {
		return nil, err
	}

	if oldAudio != nil && (newAudio == nil || *newAudio != *oldAudio) {
		if _, err := s.fileRef.Release(*oldAudio); err != nil {
			logger.Warningf("marker %d updated but releasing %s failed: %v", id, *oldAudio, err)
		}
	}

	m.Label = label
	m.Description = strings.TrimSpace(in.Description)
	m.Type = kind
	m.Color = color
	m.Yaw, m.Pitch = yaw, pitch
	m.AudioPath = newAudio
	m.TargetPanoramaId = in.TargetPanoramaId
	return m, nil
}

// Delete removes a marker created by the caller and releases its audio.
func (s *MarkerService) Delete(caller Identity, id int) error {
	m, err := s.loadOwnMarker(caller, id, "delete")
	if err != nil {
		return err
	}
	_, err = s.remove(m)
	return err
}

// remove deletes the row first so the reference check no longer counts it.
func (s *MarkerService) remove(m *model.Marker) (bool, error) {
	if err := database.GetDB().Delete(&model.Marker{}, m.Id).Error; err != nil {
		return false, common.Internal("failed to delete marker", err)
	}
	if !m.HasAudio() {
		return false, nil
	}
	deleted, err := s.fileRef.Release(*m.AudioPath)
	if err != nil {
		logger.Warningf("marker %d deleted but releasing %s failed: %v", m.Id, *m.AudioPath, err)
	}
	return deleted, nil
}

// CopyMarkers copies every non-portal marker of source onto target inside tx.
// Creators and audio paths are kept; the audio file itself is shared.
func (s *MarkerService) CopyMarkers(tx *gorm.DB, sourcePanoramaId, targetPanoramaId int) error {
	var markers []model.Marker
	err := tx.Where("panorama_id = ? AND target_panorama_id IS NULL", sourcePanoramaId).
		Order("created_at ASC, id ASC").
		Find(&markers).Error
	if err != nil {
		return err
	}
	if len(markers) == 0 {
		return nil
	}
	copies := make([]model.Marker, 0, len(markers))
	for _, m := range markers {
		color := m.Color
		if color == "" {
			color = model.DefaultMarkerColor
		}
		copies = append(copies, model.Marker{
			PanoramaId:  targetPanoramaId,
			UserId:      m.UserId,
			Yaw:         m.Yaw,
			Pitch:       m.Pitch,
			Type:        m.Type,
			Color:       color,
			Label:       m.Label,
			Description: m.Description,
			AudioPath:   m.AudioPath,
		})
	}
	return tx.Create(&copies).Error
}

// Colors returns the marker palette.
func (s *MarkerService) Colors() []entity.ColorOption {
	colors := make([]entity.ColorOption, 0, len(model.MarkerColors))
	for _, c := range model.MarkerColors {
		colors = append(colors, entity.ColorOption{Name: string(c), Hex: c.Hex()})
	}
	return colors
}

// Normalize repairs rows written before the kind and color rules were
// enforced: portals without a target become text markers and unknown colors
// become the default. It returns the number of rows changed.
func (s *MarkerService) Normalize() (int64, error) {
	db := database.GetDB()
	res := db.Model(&model.Marker{}).
		Where("type <> ? AND target_panorama_id IS NULL", model.MarkerText).
		Update("type", model.MarkerText)
	if res.Error != nil {
		return 0, res.Error
	}
	changed := res.RowsAffected

	res = db.Model(&model.Marker{}).
		Where("type <> ? AND target_panorama_id IS NOT NULL", model.MarkerPortal).
		Update("type", model.MarkerPortal)
	if res.Error != nil {
		return changed, res.Error
	}
	changed += res.RowsAffected

	res = db.Model(&model.Marker{}).
		Where("color NOT IN ?", model.MarkerColors).
		Update("color", model.DefaultMarkerColor)
	if res.Error != nil {
		return changed, res.Error
	}
	return changed + res.RowsAffected, nil
}
