package controller

import (
	"github.com/gin-gonic/gin"

	"gradex/internal/exec/service"
	"gradex/pkg/utils/response"
)

// ExecController handles ad hoc "run code" requests.
type ExecController struct {
	svc *service.Service
}

// NewExecController creates a new controller.
func NewExecController(svc *service.Service) *ExecController {
	return &ExecController{svc: svc}
}

type runRequest struct {
	Language   string `json:"language" binding:"required"`
	SourceCode string `json:"source_code" binding:"required"`
	Stdin      string `json:"stdin"`
}

// Run executes submitted code and returns the raw execution result.
func (h *ExecController) Run(c *gin.Context) {
	var req runRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	result, err := h.svc.Run(c.Request.Context(), req.Language, req.SourceCode, req.Stdin)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// Health reports liveness plus a queue counter snapshot.
func (h *ExecController) Health(c *gin.Context) {
	response.Success(c, gin.H{
		"status": "ok",
		"queue":  h.svc.Stats(),
	})
}
