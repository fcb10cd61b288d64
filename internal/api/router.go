package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"tourney-service/internal/middleware"
	"tourney-service/internal/model"
	"tourney-service/internal/service"
	"tourney-service/internal/service/elimination"
	"tourney-service/internal/service/engine"
	"tourney-service/internal/service/ledger"
	"tourney-service/internal/service/seating"
	templateSvc "tourney-service/internal/service/template"
	"tourney-service/internal/ws"
	pkgAuth "tourney-service/pkg/auth"
	appErr "tourney-service/pkg/errors"
	"tourney-service/pkg/response"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	services *service.Container
}

func RegisterRoutes(r *gin.Engine, services *service.Container) {
	handler := &Handler{services: services}
	wsHandler := ws.NewHandler(services.Engine)

	r.GET("/ping", func(c *gin.Context) {
		response.Success(c, gin.H{"message": "pong"})
	})

	v1 := r.Group("/tourneyService/v1")
	{
		v1.POST("/director/login", handler.DirectorLogin)

		// Read-side endpoints for rail displays and viewers.
		v1.GET("/tournaments/:id/state", handler.GetState)
		v1.GET("/tournaments/:id/entries", handler.GetEntries)
		v1.GET("/tournaments/:id/entries/:entryId/position", handler.GetFinishPosition)
		v1.GET("/tournaments/:id/seats", handler.GetSeatMap)
		v1.GET("/templates", handler.ListTemplates)
		v1.GET("/templates/:id", handler.GetTemplate)

		// Financial reads need a token, viewer or director.
		viewer := v1.Group("/")
		viewer.Use(middleware.ViewerAuthRequired())
		{
			viewer.GET("/tournaments/:id/ledger", handler.GetLedger)
			viewer.GET("/tournaments/:id/summary", handler.GetSummary)
		}

		protected := v1.Group("/")
		protected.Use(middleware.DirectorAuthRequired())
		{
			protected.POST("/templates", handler.CreateTemplate)
			protected.POST("/viewer_tokens", handler.IssueViewerToken)

			protected.POST("/tournaments/:id/start", handler.StartTournament)
			protected.POST("/tournaments/:id/pause", handler.Pause)
			protected.POST("/tournaments/:id/resume", handler.Resume)
			protected.POST("/tournaments/:id/advance_level", handler.AdvanceLevel)
			protected.POST("/tournaments/:id/break/start", handler.StartBreak)
			protected.POST("/tournaments/:id/break/end", handler.EndBreak)
			protected.POST("/tournaments/:id/complete", handler.Complete)

			protected.POST("/tournaments/:id/register", handler.Register)
			protected.POST("/tournaments/:id/rebuy", handler.Rebuy)
			protected.POST("/tournaments/:id/addon", handler.AddOn)
			protected.POST("/tournaments/:id/adjust_chips", handler.ChipAdjustment)
			protected.POST("/tournaments/:id/bustout", handler.BustOut)
			protected.POST("/tournaments/:id/withdraw", handler.Withdraw)

			protected.POST("/tournaments/:id/seats/move", handler.MoveSeat)
			protected.POST("/tournaments/:id/seats/unseat", handler.UnseatPlayer)
			protected.POST("/tournaments/:id/seats/auto", handler.AutoSeatAll)
			protected.POST("/tournaments/:id/seats/bulk_move", handler.BulkMove)

			protected.GET("/tournaments/:id/reconcile", handler.ReconcilePrizePool)
		}
	}

	r.GET("/ws/tournament/:tournamentId", wsHandler.HandleTournamentWS)
}

type directorLoginBody struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type viewerTokenBody struct {
	PlayerID int64 `json:"playerId" binding:"required,min=1"`
}

type templateBody struct {
	Name              string                   `json:"name" binding:"required"`
	BuyIn             float64                  `json:"buyIn" binding:"min=0"`
	StartingChips     int64                    `json:"startingChips" binding:"required,min=1"`
	TableSize         int                      `json:"tableSize" binding:"required,min=2,max=10"`
	AllowReentry      bool                     `json:"allowReentry"`
	ReentryUntilLevel int                      `json:"reentryUntilLevel" binding:"min=0"`
	LateRegUntilLevel int                      `json:"lateRegUntilLevel" binding:"min=0"`
	AllowRebuys       bool                     `json:"allowRebuys"`
	MaxRebuys         int                      `json:"maxRebuys" binding:"min=0"`
	RebuyAmount       float64                  `json:"rebuyAmount" binding:"min=0"`
	RebuyChips        int64                    `json:"rebuyChips" binding:"min=0"`
	AddonAmount       float64                  `json:"addonAmount" binding:"min=0"`
	AddonChips        int64                    `json:"addonChips" binding:"min=0"`
	AddonUntilLevel   int                      `json:"addonUntilLevel" binding:"min=0"`
	BountyPolicy      string                   `json:"bountyPolicy" binding:"omitempty,oneof=none fixed pko"`
	BountyAmount      float64                  `json:"bountyAmount" binding:"min=0"`
	PKOCashShare      float64                  `json:"pkoCashShare" binding:"gte=0,lte=1"`
	Levels            []templateSvc.BlindLevel `json:"levels" binding:"required,min=1"`
}

func (b templateBody) toParams() templateSvc.MutationParams {
	policy := strings.ToLower(strings.TrimSpace(b.BountyPolicy))
	if policy == "" {
		policy = "none"
	}
	return templateSvc.MutationParams{
		Name:              strings.TrimSpace(b.Name),
		BuyIn:             b.BuyIn,
		StartingChips:     b.StartingChips,
		TableSize:         b.TableSize,
		AllowReentry:      b.AllowReentry,
		ReentryUntilLevel: b.ReentryUntilLevel,
		LateRegUntilLevel: b.LateRegUntilLevel,
		AllowRebuys:       b.AllowRebuys,
		MaxRebuys:         b.MaxRebuys,
		RebuyAmount:       b.RebuyAmount,
		RebuyChips:        b.RebuyChips,
		AddonAmount:       b.AddonAmount,
		AddonChips:        b.AddonChips,
		AddonUntilLevel:   b.AddonUntilLevel,
		BountyPolicy:      policy,
		BountyAmount:      b.BountyAmount,
		PKOCashShare:      b.PKOCashShare,
		Levels:            b.Levels,
	}
}

type startBody struct {
	TemplateID   int64   `json:"templateId" binding:"required,min=1"`
	TotalPlayers int     `json:"totalPlayers" binding:"min=0"`
	IsPractice   bool    `json:"isPractice"`
	PlayerIDs    []int64 `json:"playerIds"`
}

type pauseBody struct {
	RemainingSeconds *int `json:"remainingSeconds"`
}

type breakBody struct {
	DurationSeconds int `json:"durationSeconds" binding:"required,min=1"`
}

type registerBody struct {
	PlayerID int64 `json:"playerId" binding:"required,min=1"`
}

type entryBody struct {
	EntryID int64 `json:"entryId" binding:"required,min=1"`
}

type adjustBody struct {
	EntryID    int64  `json:"entryId" binding:"required,min=1"`
	ChipsDelta int64  `json:"chipsDelta"`
	Reason     string `json:"reason"`
}

type bustoutBody struct {
	EntryID       int64   `json:"entryId" binding:"required,min=1"`
	EliminatorIDs []int64 `json:"eliminatorIds"`
}

type withdrawBody struct {
	EntryID int64  `json:"entryId" binding:"required,min=1"`
	Reason  string `json:"reason"`
	Type    string `json:"type" binding:"omitempty,oneof=voluntary declined_reentry"`
}

type moveSeatBody struct {
	PlayerID   int64 `json:"playerId" binding:"required,min=1"`
	TableID    int64 `json:"tableId" binding:"required,min=1"`
	SeatNumber int   `json:"seatNumber" binding:"required,min=1"`
}

type unseatBody struct {
	PlayerID int64 `json:"playerId" binding:"required,min=1"`
}

type bulkMoveBody struct {
	Moves []moveSeatBody `json:"moves" binding:"required,min=1"`
}

func (h *Handler) DirectorLogin(c *gin.Context) {
	var body directorLoginBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.services.Director.Login(c.Request.Context(), body.Username, body.Password)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, appErr.ErrDirectorNotFound), errors.Is(err, appErr.ErrInvalidPassword):
			status = http.StatusUnauthorized
		case errors.Is(err, appErr.ErrDirectorDisabled):
			status = http.StatusForbidden
		}
		response.Error(c, status, err.Error())
		return
	}

	response.Success(c, resp)
}

func (h *Handler) IssueViewerToken(c *gin.Context) {
	var body viewerTokenBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	token, err := pkgAuth.GenerateViewerToken(body.PlayerID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	response.Success(c, gin.H{"token": token})
}

func (h *Handler) CreateTemplate(c *gin.Context) {
	var body templateBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	tpl, err := h.services.Template.Create(c.Request.Context(), body.toParams())
	if err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	response.Success(c, gin.H{"id": tpl.ID})
}

func (h *Handler) ListTemplates(c *gin.Context) {
	templates, err := h.services.Template.List(c.Request.Context())
	if err != nil {
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	response.Success(c, gin.H{"templates": templates})
}

func (h *Handler) GetTemplate(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid template id")
		return
	}

	tpl, err := h.services.Template.Get(c.Request.Context(), id)
	if err != nil {
		h.handleEngineError(c, err)
		return
	}
	response.Success(c, tpl)
}

func (h *Handler) StartTournament(c *gin.Context) {
	tournamentID, err := parseIDParam(c, "id")
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid tournament id")
		return
	}

	var body startBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	state, err := h.services.Engine.StartTournament(c.Request.Context(), engine.StartRequest{
		TournamentID: tournamentID,
		TemplateID:   body.TemplateID,
		TotalPlayers: body.TotalPlayers,
		IsPractice:   body.IsPractice,
		PlayerIDs:    body.PlayerIDs,
		ActorID:      getActorID(c),
	})
	if err != nil {
		h.handleEngineError(c, err)
		return
	}
	response.Success(c, state)
}

func (h *Handler) Pause(c *gin.Context) {
	tournamentID, err := parseIDParam(c, "id")
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid tournament id")
		return
	}

	var body pauseBody
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			response.Error(c, http.StatusBadRequest, err.Error())
			return
		}
	}

	state, err := h.services.Engine.Pause(c.Request.Context(), tournamentID, body.RemainingSeconds)
	if err != nil {
		h.handleEngineError(c, err)
		return
	}
	response.Success(c, state)
}

func (h *Handler) Resume(c *gin.Context) {
	h.simpleClockOp(c, h.services.Engine.Resume)
}

func (h *Handler) AdvanceLevel(c *gin.Context) {
	h.simpleClockOp(c, h.services.Engine.AdvanceLevel)
}

func (h *Handler) EndBreak(c *gin.Context) {
	h.simpleClockOp(c, h.services.Engine.EndBreak)
}

func (h *Handler) StartBreak(c *gin.Context) {
	tournamentID, err := parseIDParam(c, "id")
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid tournament id")
		return
	}

	var body breakBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	state, err := h.services.Engine.StartBreak(c.Request.Context(), tournamentID, body.DurationSeconds)
	if err != nil {
		h.handleEngineError(c, err)
		return
	}
	response.Success(c, state)
}

func (h *Handler) Complete(c *gin.Context) {
	tournamentID, err := parseIDParam(c, "id")
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid tournament id")
		return
	}

	state, err := h.services.Engine.Complete(c.Request.Context(), tournamentID, getActorID(c))
	if err != nil {
		h.handleEngineError(c, err)
		return
	}
	response.Success(c, state)
}

func (h *Handler) Register(c *gin.Context) {
	tournamentID, err := parseIDParam(c, "id")
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid tournament id")
		return
	}

	var body registerBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.services.Engine.Register(c.Request.Context(), engine.RegisterRequest{
		TournamentID: tournamentID,
		PlayerID:     body.PlayerID,
		ActorID:      getActorID(c),
	})
	if err != nil {
		h.handleEngineError(c, err)
		return
	}
	response.Success(c, result)
}

func (h *Handler) Rebuy(c *gin.Context) {
	tournamentID, err := parseIDParam(c, "id")
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid tournament id")
		return
	}

	var body entryBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.services.Engine.Rebuy(c.Request.Context(), engine.RebuyRequest{
		TournamentID: tournamentID,
		EntryID:      body.EntryID,
		ActorID:      getActorID(c),
	})
	if err != nil {
		h.handleEngineError(c, err)
		return
	}
	response.Success(c, result)
}

func (h *Handler) AddOn(c *gin.Context) {
	tournamentID, err := parseIDParam(c, "id")
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid tournament id")
		return
	}

	var body entryBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.services.Engine.AddOn(c.Request.Context(), engine.AddOnRequest{
		TournamentID: tournamentID,
		EntryID:      body.EntryID,
		ActorID:      getActorID(c),
	})
	if err != nil {
		h.handleEngineError(c, err)
		return
	}
	response.Success(c, result)
}

func (h *Handler) ChipAdjustment(c *gin.Context) {
	tournamentID, err := parseIDParam(c, "id")
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid tournament id")
		return
	}

	var body adjustBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.services.Engine.ChipAdjustment(c.Request.Context(), engine.AdjustmentRequest{
		TournamentID: tournamentID,
		EntryID:      body.EntryID,
		ChipsDelta:   body.ChipsDelta,
		Reason:       body.Reason,
		ActorID:      getActorID(c),
	})
	if err != nil {
		h.handleEngineError(c, err)
		return
	}
	response.Success(c, result)
}

func (h *Handler) BustOut(c *gin.Context) {
	tournamentID, err := parseIDParam(c, "id")
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid tournament id")
		return
	}

	var body bustoutBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.services.Engine.BustOut(c.Request.Context(), elimination.BustOutRequest{
		TournamentID:  tournamentID,
		EntryID:       body.EntryID,
		EliminatorIDs: body.EliminatorIDs,
		ActorID:       getActorID(c),
	})
	if err != nil {
		h.handleEngineError(c, err)
		return
	}
	response.Success(c, result)
}

func (h *Handler) Withdraw(c *gin.Context) {
	tournamentID, err := parseIDParam(c, "id")
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid tournament id")
		return
	}

	var body withdrawBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	withdrawType := body.Type
	if withdrawType == "" {
		withdrawType = "voluntary"
	}

	result, err := h.services.Engine.Withdraw(c.Request.Context(), elimination.WithdrawalRequest{
		TournamentID: tournamentID,
		EntryID:      body.EntryID,
		Reason:       body.Reason,
		Type:         withdrawType,
		ActorID:      getActorID(c),
	})
	if err != nil {
		h.handleEngineError(c, err)
		return
	}
	response.Success(c, result)
}

func (h *Handler) MoveSeat(c *gin.Context) {
	tournamentID, err := parseIDParam(c, "id")
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid tournament id")
		return
	}

	var body moveSeatBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	seat, err := h.services.Engine.MoveSeat(c.Request.Context(), tournamentID, body.PlayerID, body.TableID, body.SeatNumber)
	if err != nil {
		h.handleEngineError(c, err)
		return
	}
	response.Success(c, seat)
}

func (h *Handler) UnseatPlayer(c *gin.Context) {
	tournamentID, err := parseIDParam(c, "id")
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid tournament id")
		return
	}

	var body unseatBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	unseated, err := h.services.Engine.UnseatPlayer(c.Request.Context(), tournamentID, body.PlayerID)
	if err != nil {
		h.handleEngineError(c, err)
		return
	}
	response.Success(c, gin.H{"unseated": unseated})
}

func (h *Handler) AutoSeatAll(c *gin.Context) {
	tournamentID, err := parseIDParam(c, "id")
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid tournament id")
		return
	}

	results, err := h.services.Engine.AutoSeatAll(c.Request.Context(), tournamentID)
	if err != nil {
		h.handleEngineError(c, err)
		return
	}
	response.Success(c, gin.H{"results": results})
}

func (h *Handler) BulkMove(c *gin.Context) {
	tournamentID, err := parseIDParam(c, "id")
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid tournament id")
		return
	}

	var body bulkMoveBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	moves := make([]seating.MoveRequest, 0, len(body.Moves))
	for _, m := range body.Moves {
		moves = append(moves, seating.MoveRequest{
			PlayerID:     m.PlayerID,
			ToTableID:    m.TableID,
			ToSeatNumber: m.SeatNumber,
		})
	}

	results, err := h.services.Engine.BulkMove(c.Request.Context(), tournamentID, moves)
	if err != nil {
		h.handleEngineError(c, err)
		return
	}
	response.Success(c, gin.H{"results": results})
}

func (h *Handler) GetState(c *gin.Context) {
	tournamentID, err := parseIDParam(c, "id")
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid tournament id")
		return
	}

	state, err := h.services.Engine.GetState(c.Request.Context(), tournamentID)
	if err != nil {
		h.handleEngineError(c, err)
		return
	}
	response.Success(c, state)
}

func (h *Handler) GetEntries(c *gin.Context) {
	tournamentID, err := parseIDParam(c, "id")
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid tournament id")
		return
	}

	entries, err := h.services.Engine.GetEntries(c.Request.Context(), tournamentID)
	if err != nil {
		h.handleEngineError(c, err)
		return
	}
	response.Success(c, gin.H{"entries": entries})
}

func (h *Handler) GetFinishPosition(c *gin.Context) {
	tournamentID, err := parseIDParam(c, "id")
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid tournament id")
		return
	}
	entryID, err := parseIDParam(c, "entryId")
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid entry id")
		return
	}

	position, err := h.services.Engine.CalculateFinishPosition(c.Request.Context(), tournamentID, entryID)
	if err != nil {
		h.handleEngineError(c, err)
		return
	}
	response.Success(c, gin.H{"position": position})
}

func (h *Handler) GetSeatMap(c *gin.Context) {
	tournamentID, err := parseIDParam(c, "id")
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid tournament id")
		return
	}

	tables, err := h.services.Engine.GetSeatMap(c.Request.Context(), tournamentID)
	if err != nil {
		h.handleEngineError(c, err)
		return
	}
	response.Success(c, gin.H{"tables": tables})
}

func (h *Handler) GetLedger(c *gin.Context) {
	tournamentID, err := parseIDParam(c, "id")
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid tournament id")
		return
	}

	page, err := parsePositiveIntQuery(c, "page", 1)
	if err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}
	size, err := parsePositiveIntQuery(c, "size", 50)
	if err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	filters := ledger.QueryFilters{
		Page:     page,
		PageSize: size,
		Desc:     c.Query("order") == "desc",
	}
	if types := strings.TrimSpace(c.Query("types")); types != "" {
		filters.Types = strings.Split(types, ",")
	}
	if playerIDStr := strings.TrimSpace(c.Query("playerId")); playerIDStr != "" {
		playerID, parseErr := strconv.ParseInt(playerIDStr, 10, 64)
		if parseErr != nil || playerID <= 0 {
			response.Error(c, http.StatusBadRequest, "invalid playerId")
			return
		}
		filters.PlayerID = &playerID
	}

	result, err := h.services.Engine.GetLedger(c.Request.Context(), tournamentID, filters)
	if err != nil {
		h.handleEngineError(c, err)
		return
	}

	response.Success(c, gin.H{
		"items": result.Items,
		"total": result.Total,
		"page":  page,
		"size":  size,
	})
}

func (h *Handler) GetSummary(c *gin.Context) {
	tournamentID, err := parseIDParam(c, "id")
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid tournament id")
		return
	}

	summary, err := h.services.Engine.GetSummary(c.Request.Context(), tournamentID)
	if err != nil {
		h.handleEngineError(c, err)
		return
	}
	response.Success(c, gin.H{"summary": summary})
}

func (h *Handler) ReconcilePrizePool(c *gin.Context) {
	tournamentID, err := parseIDParam(c, "id")
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid tournament id")
		return
	}

	result, err := h.services.Engine.ReconcilePrizePool(c.Request.Context(), tournamentID)
	if err != nil {
		h.handleEngineError(c, err)
		return
	}
	response.Success(c, result)
}

func (h *Handler) simpleClockOp(c *gin.Context, op func(ctx context.Context, tournamentID int64) (*model.LiveTournamentState, error)) {
	tournamentID, err := parseIDParam(c, "id")
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid tournament id")
		return
	}

	state, err := op(c.Request.Context(), tournamentID)
	if err != nil {
		h.handleEngineError(c, err)
		return
	}
	response.Success(c, state)
}

func (h *Handler) handleEngineError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, appErr.ErrTournamentNotFound),
		errors.Is(err, appErr.ErrTemplateNotFound),
		errors.Is(err, appErr.ErrEntryNotFound),
		errors.Is(err, appErr.ErrTableNotFound),
		errors.Is(err, appErr.ErrSeatNotFound):
		status = http.StatusNotFound
	case errors.Is(err, appErr.ErrAlreadyStarted),
		errors.Is(err, appErr.ErrAlreadyEliminated),
		errors.Is(err, appErr.ErrAlreadyWithdrawn),
		errors.Is(err, appErr.ErrSeatOccupied),
		errors.Is(err, appErr.ErrTournamentComplete):
		status = http.StatusConflict
	case errors.Is(err, appErr.ErrNotRunning),
		errors.Is(err, appErr.ErrNotPaused),
		errors.Is(err, appErr.ErrNotOnBreak),
		errors.Is(err, appErr.ErrMissingReason),
		errors.Is(err, appErr.ErrZeroAdjustment),
		errors.Is(err, appErr.ErrNegativeChips),
		errors.Is(err, appErr.ErrInvalidTxnType),
		errors.Is(err, appErr.ErrRebuyNotAllowed),
		errors.Is(err, appErr.ErrAddonNotAllowed),
		errors.Is(err, appErr.ErrLateRegClosed),
		errors.Is(err, appErr.ErrNoSeatAvailable),
		errors.Is(err, appErr.ErrInvalidOperation):
		status = http.StatusBadRequest
	}
	response.Error(c, status, err.Error())
}

func parseIDParam(c *gin.Context, key string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(key), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid id")
	}
	return id, nil
}

func parsePositiveIntQuery(c *gin.Context, key string, defaultVal int) (int, error) {
	val := c.Query(key)
	if val == "" {
		return defaultVal, nil
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return 0, errors.New("invalid " + key)
	}
	return parsed, nil
}

func getActorID(c *gin.Context) int64 {
	v, ok := c.Get(middleware.ContextActorIDKey)
	if !ok {
		return 0
	}
	id, _ := v.(int64)
	return id
}
