package controller

import (
	"github.com/gin-gonic/gin"

	"gradex/internal/grading"
	pmodel "gradex/internal/problem/model"
	"gradex/pkg/utils/response"
)

// GradeController handles "submit" requests.
type GradeController struct {
	engine *grading.Engine
}

// NewGradeController creates a new controller.
func NewGradeController(engine *grading.Engine) *GradeController {
	return &GradeController{engine: engine}
}

type submitRequest struct {
	UnitID     string `json:"unit_id"`
	ExamID     string `json:"exam_id"`
	QuestionID string `json:"question_id"`
	Language   string `json:"language" binding:"required"`
	SourceCode string `json:"source_code" binding:"required"`
}

// Submit grades a submission and returns the full report.
func (h *GradeController) Submit(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	ref := pmodel.ProblemRef{
		UnitID:     req.UnitID,
		ExamID:     req.ExamID,
		QuestionID: req.QuestionID,
	}
	report, err := h.engine.Grade(c.Request.Context(), ref, req.Language, req.SourceCode)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, report)
}
