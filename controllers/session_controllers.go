package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yeremiapane/qr-dine/models"
	"github.com/yeremiapane/qr-dine/services"
	"github.com/yeremiapane/qr-dine/utils"
)

type SessionController struct {
	Sessions   *services.SessionService
	Settlement *services.SettlementService
}

func NewSessionController(sessions *services.SessionService, settlement *services.SettlementService) *SessionController {
	return &SessionController{Sessions: sessions, Settlement: settlement}
}

// ScanTable -> POST /qr-sessions/scan
func (sc *SessionController) ScanTable(c *gin.Context) {
	type reqBody struct {
		TableID    uint  `json:"table_id" binding:"required"`
		CustomerID *uint `json:"customer_id"`
	}

	var body reqBody
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	session, err := sc.Sessions.Scan(body.TableID, body.CustomerID)
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Session ready", session)
}

// ValidateSession -> GET /qr-sessions/:session_id/validate
func (sc *SessionController) ValidateSession(c *gin.Context) {
	sessionID, err := strconv.Atoi(c.Param("session_id"))
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	session, err := sc.Sessions.Validate(uint(sessionID))
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Session detail", gin.H{
		"session": session,
		"active":  session.Status == models.SessionActive,
	})
}

// EndSession -> PUT /qr-sessions/:session_id/end
func (sc *SessionController) EndSession(c *gin.Context) {
	sessionID, err := strconv.Atoi(c.Param("session_id"))
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	session, err := sc.Sessions.End(uint(sessionID))
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Session ended", session)
}

// SettleSession -> POST /sessions/:session_id/settle (admin)
func (sc *SessionController) SettleSession(c *gin.Context) {
	sessionID, err := strconv.Atoi(c.Param("session_id"))
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	adminID, exists := c.Get("user_id")
	if !exists {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("missing admin identity"))
		return
	}

	result, err := sc.Settlement.SettleSession(uint(sessionID), adminID.(uint))
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Session settled", result)
}
