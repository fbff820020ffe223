package service

import (
	"strconv"
	"time"

	"github.com/viewer360/viewer360/database"
	"github.com/viewer360/viewer360/database/model"
	"github.com/viewer360/viewer360/util/common"
	"github.com/viewer360/viewer360/web/entity"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// VoteService keeps at most one signed vote per user and panorama.
type VoteService struct{}

func (s *VoteService) GetUserVote(panoramaId, userId int) (int, error) {
	return s.userVote(database.GetDB(), panoramaId, userId)
}

func (s *VoteService) userVote(tx *gorm.DB, panoramaId, userId int) (int, error) {
	var value int
	err := tx.Model(&model.Vote{}).
		Select("COALESCE(SUM(value), 0)").
		Where("panorama_id = ? AND user_id = ?", panoramaId, userId).
		Scan(&value).Error
	return value, err
}

func (s *VoteService) GetVoteScore(panoramaId int) (int, error) {
	return s.score(database.GetDB(), panoramaId)
}

func (s *VoteService) score(tx *gorm.DB, panoramaId int) (int, error) {
	var score int
	err := tx.Model(&model.Vote{}).
		Select("COALESCE(SUM(value), 0)").
		Where("panorama_id = ?", panoramaId).
		Scan(&score).Error
	return score, err
}

// castVote stores value for the pair; 0 removes the row.
func (s *VoteService) castVote(tx *gorm.DB, panoramaId, userId, value int) error {
	if value == 0 {
		return tx.Where("panorama_id = ? AND user_id = ?", panoramaId, userId).Delete(&model.Vote{}).Error
	}
	now := time.Now()
	vote := &model.Vote{
		UserId:     userId,
		PanoramaId: panoramaId,
		Value:      value,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "panorama_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(vote).Error
}

func (s *VoteService) checkVotable(caller Identity, panoramaId int) error {
	var panoramaService PanoramaService
	p, err := panoramaService.Get(panoramaId)
	if err != nil {
		return common.Internal("failed to load panorama", err)
	}
	if p == nil {
		return common.NotFound("Panorama not found")
	}
	if !p.IsPublic {
		return common.Forbidden("Cannot vote on private panoramas")
	}
	if p.UserId == caller.UserId {
		return common.Invalid("Cannot vote on your own panorama")
	}
	return nil
}

// ToggleVote applies intended (+1 or -1), or withdraws the vote when the caller
// already cast the same value.
func (s *VoteService) ToggleVote(caller Identity, panoramaId int, intended int) (*entity.VoteResult, error) {
	if !caller.IsAuthenticated() {
		return nil, common.Unauthenticated("You must be logged in to vote.")
	}
	if intended != 1 && intended != -1 {
		return nil, common.Invalid("Invalid vote value")
	}
	if err := s.checkVotable(caller, panoramaId); err != nil {
		return nil, err
	}

	// toggles on one panorama run one at a time so none is lost
	unlock := lockPath("votes/" + strconv.Itoa(panoramaId))
	defer unlock()

	result := &entity.VoteResult{}
	err := database.GetDB().Transaction(func(tx *gorm.DB) error {
		current, err := s.userVote(tx, panoramaId, caller.UserId)
		if err != nil {
			return err
		}
		value := intended
		if current == intended {
			value = 0
		}
		if err := s.castVote(tx, panoramaId, caller.UserId, value); err != nil {
			return err
		}
		result.UserVote = value
		result.Score, err = s.score(tx, panoramaId)
		return err
	})
	if err != nil {
		return nil, common.Internal("failed to save vote", err)
	}
	return result, nil
}

// Status returns the score of a viewable panorama and the caller's own vote.
func (s *VoteService) Status(caller Identity, panoramaId int) (*entity.VoteResult, error) {
	var panoramaService PanoramaService
	if _, err := panoramaService.GetForViewer(panoramaId, caller); err != nil {
		return nil, err
	}
	score, err := s.GetVoteScore(panoramaId)
	if err != nil {
		return nil, common.Internal("failed to compute vote score", err)
	}
	result := &entity.VoteResult{Score: score}
	if caller.IsAuthenticated() {
		if result.UserVote, err = s.GetUserVote(panoramaId, caller.UserId); err != nil {
			return nil, common.Internal("failed to load vote", err)
		}
	}
	return result, nil
}
