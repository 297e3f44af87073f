package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mkernan/questboard/internal/models"
	"github.com/mkernan/questboard/internal/notify"
	"github.com/mkernan/questboard/internal/progression"
	"github.com/mkernan/questboard/internal/quest"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// handlers bundles the dependencies every route needs.
type handlers struct {
	db         *gorm.DB
	dispatcher *notify.Dispatcher
	log        *logrus.Logger
}

// registerRoutes sets up the API surface on the gin router.
func registerRoutes(router *gin.Engine, h *handlers, secret []byte) {
	router.GET("/healthz", h.handleHealth)

	api := router.Group("/api", requireAuth(secret))

	// Quest catalog.
	api.GET("/quests", h.handleListQuests)
	api.GET("/quests/:id", h.handleGetQuest)
	api.POST("/quests/:id/accept", h.handleAccept)

	// A member's own quest runs.
	api.GET("/runs", h.handleListMine)
	api.GET("/runs/:id", h.handleProgress)
	api.POST("/runs/:id/abandon", h.handleAbandon)
	api.POST("/runs/:id/claim", h.handleRequestClaim)
	api.POST("/runs/:id/extension", h.handleRequestExtension)

	// Objective work.
	api.POST("/objectives/:id/submit", h.handleSubmit)
	api.POST("/objectives/:id/done", h.handleMarkDone)

	// GM surface.
	gm := api.Group("", requireGM())
	gm.POST("/quests", h.handleCreateQuest)
	gm.POST("/quests/:id/objectives", h.handleAddObjective)
	gm.POST("/quests/:id/publish", h.handlePublish)
	gm.POST("/quests/:id/archive", h.handleArchive)
	gm.GET("/review-queue", h.handleReviewQueue)
	gm.POST("/objectives/:id/approve", h.handleApprove)
	gm.POST("/objectives/:id/reject", h.handleReject)
	gm.POST("/runs/:id/completion/approve", h.handleApproveCompletion)
	gm.POST("/runs/:id/completion/reject", h.handleRejectCompletion)
	gm.POST("/runs/:id/extension/approve", h.handleApproveExtension)
	gm.POST("/runs/:id/extension/deny", h.handleDenyExtension)
}

func (h *handlers) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// emit hands an event to the dispatcher when one is configured.
func (h *handlers) emit(event notify.Event) {
	if h.dispatcher != nil {
		h.dispatcher.Emit(event)
	}
}

// questTitle resolves a quest's title for notification text. Best-effort.
func (h *handlers) questTitle(questID string) string {
	var q models.Quest
	if err := h.db.Select("title").Where("id = ?", questID).First(&q).Error; err != nil {
		return questID
	}
	return q.Title
}

// emitRunTransition announces a quest run reaching a notable state.
func (h *handlers) emitRunTransition(uq *models.UserQuest) {
	switch uq.Status {
	case models.UserQuestReadyToClaim:
		h.emit(notify.Event{
			Kind:       notify.EventQuestReadyToClaim,
			UserID:     uq.UserID,
			QuestTitle: h.questTitle(uq.QuestID),
		})
	case models.UserQuestCompleted:
		h.emit(notify.Event{
			Kind:       notify.EventQuestCompleted,
			UserID:     uq.UserID,
			QuestTitle: h.questTitle(uq.QuestID),
		})
	}
}

// --- Quest catalog ---

func (h *handlers) handleListQuests(c *gin.Context) {
	filters := quest.ListFilters{}
	if s := c.Query("status"); s != "" {
		filters.Status = models.QuestStatus(s)
	} else if !currentActor(c).IsGM() {
		// Members only browse the live catalog.
		filters.Status = models.QuestPublished
	}
	quests, err := quest.List(h.db, filters)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"quests": quests})
}

func (h *handlers) handleGetQuest(c *gin.Context) {
	q, err := quest.Get(h.db, c.Param("id"))
	if err != nil {
		writeQuestError(c, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

func (h *handlers) handleAccept(c *gin.Context) {
	actor := currentActor(c)
	uq, err := progression.Accept(h.db, actor, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	h.emit(notify.Event{
		Kind:       notify.EventQuestAccepted,
		UserID:     actor.UserID,
		QuestTitle: h.questTitle(uq.QuestID),
	})
	h.emitRunTransition(uq)
	c.JSON(http.StatusCreated, uq)
}

// --- Quest runs ---

func (h *handlers) handleListMine(c *gin.Context) {
	summaries, err := progression.ListMine(h.db, currentActor(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": summaries})
}

func (h *handlers) handleProgress(c *gin.Context) {
	summary, objectives, err := progression.Progress(h.db, currentActor(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"run": summary, "objectives": objectives})
}

func (h *handlers) handleAbandon(c *gin.Context) {
	if err := progression.Abandon(h.db, currentActor(c), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "abandoned"})
}

func (h *handlers) handleRequestClaim(c *gin.Context) {
	uq, err := progression.RequestClaim(h.db, currentActor(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	h.emitRunTransition(uq)
	c.JSON(http.StatusOK, uq)
}

type extensionRequest struct {
	Reason string `json:"reason"`
}

func (h *handlers) handleRequestExtension(c *gin.Context) {
	var req extensionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": codeValidation, "error": "invalid request body"})
		return
	}
	uq, err := progression.RequestExtension(h.db, currentActor(c), c.Param("id"), req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	h.emit(notify.Event{
		Kind:       notify.EventExtensionRequested,
		UserID:     uq.UserID,
		QuestTitle: h.questTitle(uq.QuestID),
		Feedback:   uq.ExtensionReason,
	})
	c.JSON(http.StatusOK, uq)
}

// --- Objective work ---

type submitRequest struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

func (h *handlers) handleSubmit(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": codeValidation, "error": "invalid request body"})
		return
	}
	actor := currentActor(c)
	uo, err := progression.Submit(h.db, actor, c.Param("id"), progression.Evidence{
		Text: req.Text,
		URL:  req.URL,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	h.emit(notify.Event{
		Kind:   notify.EventEvidenceSubmitted,
		UserID: actor.UserID,
	})
	c.JSON(http.StatusOK, uo)
}

func (h *handlers) handleMarkDone(c *gin.Context) {
	actor := currentActor(c)
	outcome, err := progression.MarkDone(h.db, actor, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	h.emitRunTransition(outcome.UserQuest)
	c.JSON(http.StatusOK, outcome)
}

// --- Review ---

type reviewRequest struct {
	Feedback string `json:"feedback"`
}

func (h *handlers) handleApprove(c *gin.Context) {
	// Feedback is optional on approval; an empty body is fine.
	var req reviewRequest
	c.ShouldBindJSON(&req)
	outcome, err := progression.Approve(h.db, currentActor(c), c.Param("id"), req.Feedback)
	if err != nil {
		writeError(c, err)
		return
	}
	h.emit(notify.Event{
		Kind:       notify.EventObjectiveApproved,
		UserID:     outcome.UserQuest.UserID,
		QuestTitle: h.questTitle(outcome.UserQuest.QuestID),
		Points:     outcome.PointsAwarded,
	})
	h.emitRunTransition(outcome.UserQuest)
	c.JSON(http.StatusOK, outcome)
}

func (h *handlers) handleReject(c *gin.Context) {
	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": codeValidation, "error": "invalid request body"})
		return
	}
	outcome, err := progression.Reject(h.db, currentActor(c), c.Param("id"), req.Feedback)
	if err != nil {
		writeError(c, err)
		return
	}
	h.emit(notify.Event{
		Kind:       notify.EventObjectiveRejected,
		UserID:     outcome.UserQuest.UserID,
		QuestTitle: h.questTitle(outcome.UserQuest.QuestID),
		Feedback:   outcome.UserObjective.Feedback,
	})
	c.JSON(http.StatusOK, outcome)
}

func (h *handlers) handleReviewQueue(c *gin.Context) {
	entries, err := progression.ReviewQueue(h.db, currentActor(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"queue": entries})
}

// --- Completion sign-off ---

func (h *handlers) handleApproveCompletion(c *gin.Context) {
	var req reviewRequest
	c.ShouldBindJSON(&req)
	uq, err := progression.ApproveCompletion(h.db, currentActor(c), c.Param("id"), req.Feedback)
	if err != nil {
		writeError(c, err)
		return
	}
	h.emitRunTransition(uq)
	c.JSON(http.StatusOK, uq)
}

func (h *handlers) handleRejectCompletion(c *gin.Context) {
	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": codeValidation, "error": "invalid request body"})
		return
	}
	uq, err := progression.RejectCompletion(h.db, currentActor(c), c.Param("id"), req.Feedback)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, uq)
}

// --- Extensions (GM side) ---

type extensionDecision struct {
	NewDeadline time.Time `json:"new_deadline"`
}

func (h *handlers) handleApproveExtension(c *gin.Context) {
	var req extensionDecision
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": codeValidation, "error": "invalid request body"})
		return
	}
	uq, err := progression.ApproveExtension(h.db, currentActor(c), c.Param("id"), req.NewDeadline)
	if err != nil {
		writeError(c, err)
		return
	}
	h.emit(notify.Event{
		Kind:       notify.EventExtensionDecided,
		UserID:     uq.UserID,
		QuestTitle: h.questTitle(uq.QuestID),
	})
	c.JSON(http.StatusOK, uq)
}

func (h *handlers) handleDenyExtension(c *gin.Context) {
	uq, err := progression.DenyExtension(h.db, currentActor(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	h.emit(notify.Event{
		Kind:       notify.EventExtensionDecided,
		UserID:     uq.UserID,
		QuestTitle: h.questTitle(uq.QuestID),
	})
	c.JSON(http.StatusOK, uq)
}

// --- Quest administration ---

type createQuestRequest struct {
	Title                 string `json:"title"`
	Description           string `json:"description"`
	Points                int    `json:"points"`
	CompletionDays        int    `json:"completion_days"`
	RequiresFinalApproval bool   `json:"requires_final_approval"`
	ExclusivityCode       string `json:"exclusivity_code"`
}

func (h *handlers) handleCreateQuest(c *gin.Context) {
	var req createQuestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": codeValidation, "error": "invalid request body"})
		return
	}
	q, err := quest.Create(h.db, quest.CreateOpts{
		Title:                 req.Title,
		Description:           req.Description,
		Points:                req.Points,
		CompletionDays:        req.CompletionDays,
		RequiresFinalApproval: req.RequiresFinalApproval,
		ExclusivityCode:       req.ExclusivityCode,
	})
	if err != nil {
		writeQuestError(c, err)
		return
	}
	c.JSON(http.StatusCreated, q)
}

type addObjectiveRequest struct {
	Title        string `json:"title"`
	Points       int    `json:"points"`
	DisplayOrder int    `json:"display_order"`
	DependsOnID  string `json:"depends_on_id"`
	EvidenceType string `json:"evidence_type"`
}

func (h *handlers) handleAddObjective(c *gin.Context) {
	var req addObjectiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": codeValidation, "error": "invalid request body"})
		return
	}
	obj, err := quest.AddObjective(h.db, quest.ObjectiveOpts{
		QuestID:      c.Param("id"),
		Title:        req.Title,
		Points:       req.Points,
		DisplayOrder: req.DisplayOrder,
		DependsOnID:  req.DependsOnID,
		EvidenceType: models.EvidenceType(req.EvidenceType),
	})
	if err != nil {
		writeQuestError(c, err)
		return
	}
	c.JSON(http.StatusCreated, obj)
}

func (h *handlers) handlePublish(c *gin.Context) {
	if err := quest.Publish(h.db, c.Param("id")); err != nil {
		writeQuestError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "published"})
}

func (h *handlers) handleArchive(c *gin.Context) {
	if err := quest.Archive(h.db, c.Param("id")); err != nil {
		writeQuestError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "archived"})
}
