package template

import (
	"context"
	"encoding/json"
	"fmt"

	"tourney-service/internal/model"
	appErr "tourney-service/pkg/errors"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// BlindLevel is one timed segment of the tournament schedule. Break levels
// carry no blinds and park the clock in break status when entered.
type BlindLevel struct {
	Level           int   `json:"level"`
	DurationSeconds int   `json:"durationSeconds"`
	SmallBlind      int64 `json:"smallBlind"`
	BigBlind        int64 `json:"bigBlind"`
	Ante            int64 `json:"ante"`
	IsBreak         bool  `json:"isBreak,omitempty"`
}

type Service struct {
	db *gorm.DB
}

type MutationParams struct {
	Name              string
	BuyIn             float64
	StartingChips     int64
	TableSize         int
	AllowReentry      bool
	ReentryUntilLevel int
	LateRegUntilLevel int
	AllowRebuys       bool
	MaxRebuys         int
	RebuyAmount       float64
	RebuyChips        int64
	AddonAmount       float64
	AddonChips        int64
	AddonUntilLevel   int
	BountyPolicy      string
	BountyAmount      float64
	PKOCashShare      float64
	Levels            []BlindLevel
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

func (s *Service) Create(ctx context.Context, params MutationParams) (*model.TournamentTemplate, error) {
	if params.Name == "" || len(params.Levels) == 0 {
		return nil, fmt.Errorf("%w: name and levels are required", appErr.ErrInvalidOperation)
	}
	for i := range params.Levels {
		params.Levels[i].Level = i + 1
		if params.Levels[i].DurationSeconds <= 0 {
			return nil, fmt.Errorf("%w: level %d duration must be positive", appErr.ErrInvalidOperation, i+1)
		}
	}
	raw, err := json.Marshal(params.Levels)
	if err != nil {
		return nil, err
	}

	tableSize := params.TableSize
	if tableSize <= 0 {
		tableSize = 9
	}

	tpl := model.TournamentTemplate{
		Name:              params.Name,
		BuyIn:             params.BuyIn,
		StartingChips:     params.StartingChips,
		TableSize:         tableSize,
		AllowReentry:      params.AllowReentry,
		ReentryUntilLevel: params.ReentryUntilLevel,
		LateRegUntilLevel: params.LateRegUntilLevel,
		AllowRebuys:       params.AllowRebuys,
		MaxRebuys:         params.MaxRebuys,
		RebuyAmount:       params.RebuyAmount,
		RebuyChips:        params.RebuyChips,
		AddonAmount:       params.AddonAmount,
		AddonChips:        params.AddonChips,
		AddonUntilLevel:   params.AddonUntilLevel,
		BountyPolicy:      normalizeBountyPolicy(params.BountyPolicy),
		BountyAmount:      params.BountyAmount,
		PKOCashShare:      params.PKOCashShare,
		LevelsJSON:        datatypes.JSON(raw),
	}
	if err := s.db.WithContext(ctx).Create(&tpl).Error; err != nil {
		return nil, err
	}
	return &tpl, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*model.TournamentTemplate, error) {
	var tpl model.TournamentTemplate
	if err := s.db.WithContext(ctx).First(&tpl, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, appErr.ErrTemplateNotFound
		}
		return nil, err
	}
	return &tpl, nil
}

func (s *Service) List(ctx context.Context) ([]model.TournamentTemplate, error) {
	var tpls []model.TournamentTemplate
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&tpls).Error; err != nil {
		return nil, err
	}
	return tpls, nil
}

// Levels decodes the stored schedule.
func Levels(tpl *model.TournamentTemplate) ([]BlindLevel, error) {
	var levels []BlindLevel
	if err := json.Unmarshal(tpl.LevelsJSON, &levels); err != nil {
		return nil, err
	}
	return levels, nil
}

// LevelFor resolves the schedule entry for a 1-indexed level. Levels past the
// end of the schedule repeat the last non-break level, so a long tournament
// never runs out of blinds.
func LevelFor(tpl *model.TournamentTemplate, level int) (BlindLevel, error) {
	levels, err := Levels(tpl)
	if err != nil {
		return BlindLevel{}, err
	}
	if len(levels) == 0 {
		return BlindLevel{}, fmt.Errorf("%w: template %d has no levels", appErr.ErrTemplateNotFound, tpl.ID)
	}
	if level >= 1 && level <= len(levels) {
		return levels[level-1], nil
	}

	last := levels[len(levels)-1]
	for i := len(levels) - 1; i >= 0; i-- {
		if !levels[i].IsBreak {
			last = levels[i]
			break
		}
	}
	last.Level = level
	return last, nil
}

func normalizeBountyPolicy(policy string) string {
	switch policy {
	case "fixed", "pko":
		return policy
	default:
		return "none"
	}
}
