package handler

import (
	"quizierra/internal/domain"
	"quizierra/internal/dto"
	"quizierra/internal/logger"
	"quizierra/internal/middleware"
	"quizierra/internal/service"
	"quizierra/internal/validation"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// AdaptiveHandler exposes the adaptive engine over HTTP
type AdaptiveHandler struct {
	service   service.AdaptiveService
	validator *validation.Validator
}

// NewAdaptiveHandler creates a new AdaptiveHandler instance
func NewAdaptiveHandler(service service.AdaptiveService) *AdaptiveHandler {
	return &AdaptiveHandler{
		service:   service,
		validator: validation.NewValidator(),
	}
}

// bind parses the JSON body into req and runs its validate tags.
func (h *AdaptiveHandler) bind(c *fiber.Ctx, req interface{}) error {
	if err := c.BodyParser(req); err != nil {
		logger.Get().Debug("Failed to parse request body", zap.String("path", c.Path()), zap.Error(err))
		return domain.ValidationErrors{{Field: "body", Message: err.Error()}}
	}
	if errs := h.validator.Struct(req); len(errs) > 0 {
		return errs
	}
	return nil
}

// StartSession handles POST /api/adaptive/start_session
func (h *AdaptiveHandler) StartSession(c *fiber.Ctx) error {
	var req dto.StartSessionRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}

	skill, err := h.service.GetOrCreateSkill(c.UserContext(), req.UserID)
	if err != nil {
		return err
	}

	return c.JSON(dto.StartSessionResponse{UserID: req.UserID, Skill: skill})
}

// NextQuestion handles POST /api/adaptive/next_question
func (h *AdaptiveHandler) NextQuestion(c *fiber.Ctx) error {
	var req dto.NextQuestionRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}

	selection, err := h.service.SelectNext(c.UserContext(), req.ToDomain())
	if err != nil {
		return err
	}
	if selection == nil {
		return domain.NewNoCandidatesError(req.UserID)
	}

	return c.JSON(dto.NewNextQuestionResponse(selection))
}

// RecordAnswer handles POST /api/adaptive/record_answer
func (h *AdaptiveHandler) RecordAnswer(c *fiber.Ctx) error {
	var req dto.RecordAnswerRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}

	result, err := h.service.RecordOutcome(c.UserContext(), req.ToDomain())
	if err != nil {
		return err
	}

	return c.JSON(dto.NewRecordAnswerResponse(result))
}

// RegisterQuestion handles POST /api/adaptive/questions
func (h *AdaptiveHandler) RegisterQuestion(c *fiber.Ctx) error {
	var req dto.QuestionRequest
	if err := h.bind(c, &req); err != nil {
		return err
	}

	difficulty, err := h.service.EnsureQuestion(c.UserContext(), req.ToDomain())
	if err != nil {
		return err
	}

	return c.JSON(dto.QuestionResponse{
		QuestionID:      req.QuestionID,
		Difficulty:      difficulty,
		DifficultyLabel: domain.LabelForDifficulty(difficulty),
	})
}

// GetQuestion handles GET /api/adaptive/questions/:id
func (h *AdaptiveHandler) GetQuestion(c *fiber.Ctx) error {
	question, err := h.service.GetQuestion(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}

	return c.JSON(dto.QuestionResponse{
		QuestionID:      question.ID,
		Difficulty:      question.Difficulty,
		DifficultyLabel: question.DifficultyLabel(),
	})
}

// History handles GET /api/adaptive/users/:id/history
func (h *AdaptiveHandler) History(c *fiber.Ctx) error {
	userID, _ := c.Locals(middleware.LocalUserID).(string)
	limit, _ := c.Locals(middleware.LocalLimit).(int)

	interactions, err := h.service.RecentInteractions(c.UserContext(), userID, limit)
	if err != nil {
		return err
	}

	return c.JSON(dto.NewHistoryResponse(userID, interactions))
}

// Stats handles GET /api/adaptive/users/:id/stats
func (h *AdaptiveHandler) Stats(c *fiber.Ctx) error {
	userID, _ := c.Locals(middleware.LocalUserID).(string)

	stats, err := h.service.UserStats(c.UserContext(), userID)
	if err != nil {
		return err
	}

	return c.JSON(dto.NewUserStatsResponse(stats))
}
