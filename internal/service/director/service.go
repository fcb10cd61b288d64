package director

import (
	"context"
	"strings"
	"time"

	"tourney-service/internal/config"
	"tourney-service/internal/model"
	pkgAuth "tourney-service/pkg/auth"
	appErr "tourney-service/pkg/errors"
	"tourney-service/pkg/logger"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type Service struct {
	db *gorm.DB
}

type LoginResult struct {
	Token    string       `json:"token"`
	ExpireAt time.Time    `json:"expireAt"`
	Director DirectorInfo `json:"director"`
}

type DirectorInfo struct {
	ID          int64      `json:"id"`
	Username    string     `json:"username"`
	DisplayName string     `json:"displayName"`
	Status      string     `json:"status"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

func (s *Service) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	username = strings.TrimSpace(username)
	password = strings.TrimSpace(password)
	if username == "" || password == "" {
		return nil, appErr.ErrInvalidPassword
	}

	var director model.Director
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&director).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, appErr.ErrDirectorNotFound
		}
		return nil, err
	}
	if !strings.EqualFold(director.Status, "active") {
		return nil, appErr.ErrDirectorDisabled
	}
	if err := bcrypt.CompareHashAndPassword([]byte(director.PasswordHash), []byte(password)); err != nil {
		return nil, appErr.ErrInvalidPassword
	}

	token, err := pkgAuth.GenerateDirectorToken(director.ID)
	if err != nil {
		return nil, err
	}
	expireAt := time.Now().Add(time.Duration(config.GlobalConfig.JWT.Expire) * time.Hour)

	now := time.Now()
	if err := s.db.WithContext(ctx).
		Model(&director).
		Updates(map[string]interface{}{
			"last_login_at": now,
			"updated_at":    now,
		}).Error; err != nil {
		return nil, err
	}

	return &LoginResult{
		Token:    token,
		ExpireAt: expireAt,
		Director: sanitizeDirector(director),
	}, nil
}

func (s *Service) EnsureDefaultDirector(ctx context.Context) error {
	cfg := config.GlobalConfig.Director
	if cfg.DefaultUsername == "" || cfg.DefaultPassword == "" {
		logger.Log.Warn("default director credentials not configured; skipping bootstrap")
		return nil
	}

	var exists int64
	if err := s.db.WithContext(ctx).
		Model(&model.Director{}).
		Where("username = ?", cfg.DefaultUsername).
		Count(&exists).Error; err != nil {
		return err
	}
	if exists > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.DefaultPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	director := model.Director{
		Username:     cfg.DefaultUsername,
		PasswordHash: string(hash),
		DisplayName:  cfg.DefaultUsername,
		Status:       "active",
	}
	if err := s.db.WithContext(ctx).Create(&director).Error; err != nil {
		return err
	}
	logger.Log.Info("default director account created",
		zap.String("username", cfg.DefaultUsername))
	return nil
}

func sanitizeDirector(director model.Director) DirectorInfo {
	return DirectorInfo{
		ID:          director.ID,
		Username:    director.Username,
		DisplayName: director.DisplayName,
		Status:      director.Status,
		LastLoginAt: director.LastLoginAt,
		CreatedAt:   director.CreatedAt,
	}
}
