package api

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rawblock/eventlog-pretsa/internal/compare"
	"github.com/rawblock/eventlog-pretsa/internal/db"
	"github.com/rawblock/eventlog-pretsa/internal/engine"
	"github.com/rawblock/eventlog-pretsa/pkg/models"
)

// maxInputRows caps a single sanitize request's table size, mirroring the
// block-range cap the teacher's scanner endpoint applied to its own
// unbounded resource.
const maxInputRows = 2_000_000

// APIHandler wires the HTTP surface to the sanitization engine, the
// audit store, and the websocket progress hub.
type APIHandler struct {
	dbStore *db.Store
	wsHub   *Hub
}

// SetupRouter builds the gin engine with CORS, auth, and rate-limit
// middleware around the sanitize/compare endpoints, following the
// teacher's grouping of public vs. bearer-protected routes.
func SetupRouter(dbStore *db.Store, wsHub *Hub) *gin.Engine {
	r := gin.Default()

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if allowedOrigins == "" || allowedOrigins == "*" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		} else {
			for _, allowed := range strings.Split(allowedOrigins, ",") {
				if strings.TrimSpace(allowed) == origin {
					c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
					break
				}
			}
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	handler := &APIHandler{dbStore: dbStore, wsHub: wsHub}

	pub := r.Group("/api/v1")
	{
		pub.GET("/health", handler.handleHealth)
		pub.GET("/stream", wsHub.Subscribe)
	}

	auth := r.Group("/api/v1")
	auth.Use(AuthMiddleware())
	auth.Use(NewRateLimiter(30, 5).Middleware())
	{
		auth.POST("/sanitize", handler.handleSanitize)
		auth.POST("/compare", handler.handleCompare)
		auth.GET("/runs", handler.handleListRuns)
	}

	return r
}

type sanitizeRequest struct {
	Events       []models.EventRecord   `json:"events"`
	K            int                    `json:"k"`
	T            float64                `json:"t"`
	Mode         string                 `json:"mode"`
	DPEnabled    bool                   `json:"dpEnabled"`
	Epsilon      float64                `json:"epsilon"`
	Seed         int64                  `json:"seed"`
	PreviousLogs [][]models.EventRecord `json:"previousLogs,omitempty"`
}

// handleSanitize runs one full engine invocation over the posted event
// table and returns the sanitized table plus a run summary (spec.md §6
// "Engine call"). It also broadcasts a progress message over the
// websocket hub and persists the run summary when a store is attached.
func (h *APIHandler) handleSanitize(c *gin.Context) {
	var req sanitizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	if len(req.Events) > maxInputRows {
		c.JSON(http.StatusBadRequest, gin.H{"error": "input table too large", "maxRows": maxInputRows})
		return
	}

	mode := engine.ModeStandard
	if req.Mode == "stochastic" {
		mode = engine.ModeStochastic
	}

	records, hasHolder := toEngineRecords(req.Events)
	previous := make([][]engine.PreviousLogRecord, len(req.PreviousLogs))
	for i, log := range req.PreviousLogs {
		previous[i] = toPreviousLogRecords(log)
	}

	runID := uuid.New().String()

	e := engine.NewSeeded(req.Seed)
	result, err := e.Run(records, hasHolder, req.K, req.T, mode, req.DPEnabled, req.Epsilon, previous)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	summary := buildRunSummary(runID, req, mode, result)
	sanitized := toSanitizedEvents(result.Events)

	if h.wsHub != nil {
		if payload, err := json.Marshal(gin.H{"type": "run_complete", "summary": summary}); err == nil {
			h.wsHub.Broadcast(payload)
		}
	}

	if h.dbStore != nil {
		if err := h.dbStore.SaveRun(c.Request.Context(), summary); err != nil {
			log.Printf("run %s: failed to persist sanitization run: %v", runID, err)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"events":  sanitized,
		"summary": summary,
	})
}

type compareRequest struct {
	Events []models.EventRecord `json:"events"`
	Seed   int64                `json:"seed"`
	Left   engine.ModeParams    `json:"left"`
	Right  engine.ModeParams    `json:"right"`
}

// handleCompare runs two engine configurations over the same input and
// reports how much they agree on which cases end up sharing a final
// trace, per the multi-run divergence check grounded in compare.Run.
func (h *APIHandler) handleCompare(c *gin.Context) {
	var req compareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	records, hasHolder := toEngineRecords(req.Events)
	report, err := compare.Run(records, hasHolder, req.Seed, req.Left, req.Right)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, report)
}

// handleListRuns returns recently persisted run summaries.
func (h *APIHandler) handleListRuns(c *gin.Context) {
	if h.dbStore == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit store not connected"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	runs, err := h.dbStore.ListRuns(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list runs", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": runs})
}

// handleHealth reports service status and DB connectivity.
func (h *APIHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "operational",
		"service":     "eventlog-pretsa",
		"dbConnected": h.dbStore != nil,
		"time":        time.Now().UTC().Format(time.RFC3339),
	})
}

func toEngineRecords(events []models.EventRecord) ([]engine.EventRecordLike, bool) {
	out := make([]engine.EventRecordLike, len(events))
	hasHolder := false
	for i, e := range events {
		out[i] = engine.EventRecordLike{
			CaseID: e.CaseID, Activity: e.Activity, Duration: e.Duration, HolderID: e.HolderID,
		}
		if e.HolderID != "" {
			hasHolder = true
		}
	}
	return out, hasHolder
}

func toPreviousLogRecords(events []models.EventRecord) []engine.PreviousLogRecord {
	out := make([]engine.PreviousLogRecord, len(events))
	for i, e := range events {
		out[i] = engine.PreviousLogRecord{CaseID: e.CaseID, Activity: e.Activity}
	}
	return out
}

func toSanitizedEvents(events []engine.EmittedEvent) []models.SanitizedEvent {
	out := make([]models.SanitizedEvent, len(events))
	for i, e := range events {
		out[i] = models.SanitizedEvent{
			CaseID: e.CaseID, Activity: e.Activity, Duration: e.Duration,
			EventNr: e.EventNr, HolderID: e.HolderID,
		}
	}
	return out
}

func buildRunSummary(runID string, req sanitizeRequest, mode engine.Mode, result engine.Result) models.RunSummary {
	cutOut := make([]string, 0, len(result.CutOut))
	for c := range result.CutOut {
		cutOut = append(cutOut, c)
	}
	return models.RunSummary{
		RunID: runID,
		K:     req.K, T: req.T, Mode: mode.String(),
		DPEnabled: req.DPEnabled, Epsilon: req.Epsilon,
		CutOutCases: cutOut, Distance: result.Distance,
		EventCount: result.EventCount, CaseCount: result.CaseCount,
		SyntheticCase: result.SyntheticCase,
	}
}
