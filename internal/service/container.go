package service

import (
	"context"

	"tourney-service/internal/config"
	"tourney-service/internal/service/clock"
	"tourney-service/internal/service/director"
	"tourney-service/internal/service/elimination"
	"tourney-service/internal/service/engine"
	"tourney-service/internal/service/ledger"
	"tourney-service/internal/service/seating"
	"tourney-service/internal/service/template"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	Template    *template.Service
	Ledger      *ledger.Service
	Seating     *seating.Service
	Clock       *clock.Service
	Elimination *elimination.Service
	Engine      *engine.Service
	Director    *director.Service
}

func NewContainer(db *gorm.DB, rdb *redis.Client) *Container {
	engineCfg := engine.DefaultConfig()
	if ec := config.GlobalConfig.Engine; ec.TickInterval > 0 {
		engineCfg = engine.Config{
			TickInterval:    ec.TickInterval,
			FinalTableSize:  ec.FinalTableSize,
			EventBufferSize: ec.EventBufferSize,
		}
	}

	templates := template.NewService(db)
	ledgerSvc := ledger.NewService(db)
	seats := seating.NewService(db)
	clk := clock.NewService(db, templates)
	elim := elimination.NewService(db, ledgerSvc, seats, clk, templates, engineCfg.FinalTableSize)

	return &Container{
		Template:    templates,
		Ledger:      ledgerSvc,
		Seating:     seats,
		Clock:       clk,
		Elimination: elim,
		Engine:      engine.NewService(db, rdb, engineCfg, templates, clk, seats, ledgerSvc, elim),
		Director:    director.NewService(db),
	}
}

func (c *Container) Start(ctx context.Context) error {
	if err := c.Director.EnsureDefaultDirector(ctx); err != nil {
		return err
	}
	c.Engine.Start(ctx)
	return nil
}
