package quiz

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/quizforge/quizforge-api/services"
	"github.com/quizforge/quizforge-api/utils/middleware"
	"github.com/quizforge/quizforge-api/utils/response"
)

// QuizHandler handles quiz-related requests
type QuizHandler struct {
	quizService *services.QuizService
}

// NewQuizHandler creates a new quiz handler
func NewQuizHandler(quizService *services.QuizService) *QuizHandler {
	return &QuizHandler{quizService: quizService}
}

// ListQuizzes handles GET /api/v1/quizzes
func (h *QuizHandler) ListQuizzes(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	quizzes, err := h.quizService.ListQuizzes(c.Context(), userID)
	if err != nil {
		return response.InternalServerError(c, "Failed to fetch quizzes")
	}

	summaries := make([]fiber.Map, len(quizzes))
	for i, q := range quizzes {
		summaries[i] = fiber.Map{
			"id":              q.ID,
			"title":           q.Title,
			"total_questions": q.TotalQuestions,
			"created_at":      q.CreatedAt,
		}
	}

	return response.Success(c, fiber.Map{
		"quizzes": summaries,
		"total":   len(summaries),
	})
}

// GetQuiz handles GET /api/v1/quizzes/:id
func (h *QuizHandler) GetQuiz(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	quizID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid quiz ID")
	}

	quiz, err := h.quizService.GetQuiz(c.Context(), uint(quizID), userID)
	if err != nil {
		if errors.Is(err, services.ErrQuizNotFound) {
			return response.NotFound(c, "Quiz not found")
		}
		return response.InternalServerError(c, "Failed to fetch quiz")
	}

	return response.Success(c, quiz.ToResponse())
}

// DeleteQuiz handles DELETE /api/v1/quizzes/:id
func (h *QuizHandler) DeleteQuiz(c *fiber.Ctx) error {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return response.Unauthorized(c, "User not authenticated")
	}

	quizID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid quiz ID")
	}

	if err := h.quizService.DeleteQuiz(c.Context(), uint(quizID), userID); err != nil {
		if errors.Is(err, services.ErrQuizNotFound) {
			return response.NotFound(c, "Quiz not found")
		}
		return response.InternalServerError(c, "Failed to delete quiz")
	}

	return response.NoContent(c)
}
