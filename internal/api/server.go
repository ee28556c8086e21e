package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/netwatch/internal/alert"
	"github.com/netwatch/internal/logger"
	"github.com/netwatch/internal/models"
	"github.com/netwatch/internal/monitor"
	"github.com/netwatch/internal/notify"
	"github.com/netwatch/internal/telemetry"
)

// RuleStore is the editable rule catalog. It is nil when rules come from a
// file.
type RuleStore interface {
	CreateRule(ctx context.Context, rule *models.AlertRule) error
	UpdateRule(ctx context.Context, rule *models.AlertRule) error
	DeleteRule(ctx context.Context, id uint) error
	GetRule(ctx context.Context, id uint) (*models.AlertRule, error)
	ListRules(ctx context.Context, enabled *bool) ([]models.AlertRule, error)
	EnableRule(ctx context.Context, id uint) error
	DisableRule(ctx context.Context, id uint) error
	ImportRules(ctx context.Context, rules []models.AlertRule) error
}

// Reloader is implemented by catalogs that cache their rules.
type Reloader interface {
	Reload() error
}

type Options struct {
	Engine    *alert.Engine
	Rules     RuleStore
	Catalog   alert.RuleCatalog
	Buffer    *telemetry.Buffer
	Hub       *notify.Hub
	Scheduler *monitor.Scheduler
}

type Server struct {
	engine    *alert.Engine
	rules     RuleStore
	catalog   alert.RuleCatalog
	buffer    *telemetry.Buffer
	hub       *notify.Hub
	scheduler *monitor.Scheduler
	router    *gin.Engine
}

var errRulesReadOnly = errors.New("rules are loaded from a file and cannot be edited through the API")

func NewServer(opts Options) *Server {
	router := gin.New()
	router.Use(Recovery(), RequestLogger(), Metrics())

	server := &Server{
		engine:    opts.Engine,
		rules:     opts.Rules,
		catalog:   opts.Catalog,
		buffer:    opts.Buffer,
		hub:       opts.Hub,
		scheduler: opts.Scheduler,
		router:    router,
	}

	server.setupRoutes()
	return server
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", s.health)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := s.router.Group("/api/v1")

	alerts := api.Group("/alerts")
	{
		alerts.GET("", s.listAlerts)
		alerts.GET("/summary", s.alertSummary)
		alerts.GET("/:id", s.getAlert)
		alerts.PUT("/:id/acknowledge", s.acknowledgeAlert)
		alerts.PUT("/:id/resolve", s.resolveAlert)
	}

	api.POST("/cycles", s.runCycle)
	api.POST("/samples", s.ingestSamples)
	api.GET("/ws", s.websocket)

	rules := api.Group("/rules")
	{
		rules.GET("", s.listRules)
		rules.GET("/:id", s.getRule)
		rules.POST("", s.createRule)
		rules.PUT("/:id", s.updateRule)
		rules.DELETE("/:id", s.deleteRule)
		rules.PUT("/:id/enable", s.enableRule)
		rules.PUT("/:id/disable", s.disableRule)
		rules.POST("/validate", s.validateRule)
		rules.POST("/import", s.importRules)
		rules.POST("/reload", s.reloadRules)
		rules.POST("/test", s.testRule)
		rules.GET("/export", s.exportRules)
	}
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on port until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log := logger.WithComponent("api")
		log.Info().Int("port", port).Msg("http server listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// writeError maps engine errors onto HTTP status codes.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case alert.IsNotFound(err), errors.Is(err, alert.ErrRuleNotFound):
		status = http.StatusNotFound
	case alert.IsInvalidTransition(err):
		status = http.StatusConflict
	case alert.IsValidation(err):
		status = http.StatusBadRequest
	case errors.Is(err, errRulesReadOnly):
		status = http.StatusMethodNotAllowed
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func (s *Server) health(c *gin.Context) {
	resp := gin.H{
		"status": "ok",
		"rules":  len(s.engine.Rules()),
	}
	if s.scheduler != nil {
		resp["scheduler"] = s.scheduler.GetMetrics()
	}
	if s.buffer != nil {
		resp["buffered_samples"] = s.buffer.Len()
	}
	if s.hub != nil {
		resp["push_clients"] = s.hub.ClientCount()
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) listAlerts(c *gin.Context) {
	var filter models.AlertFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if filter.Status != "" && !filter.Status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid status: %s", filter.Status)})
		return
	}
	if filter.Severity != "" && !filter.Severity.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid severity: %s", filter.Severity)})
		return
	}

	c.JSON(http.StatusOK, s.engine.ListAlerts(filter))
}

func (s *Server) alertSummary(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.Summary())
}

func (s *Server) getAlert(c *gin.Context) {
	a, err := s.engine.GetAlert(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

type transitionRequest struct {
	Actor string `json:"actor" binding:"required"`
}

func (s *Server) acknowledgeAlert(c *gin.Context) {
	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	a, err := s.engine.Acknowledge(c.Request.Context(), c.Param("id"), req.Actor)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (s *Server) resolveAlert(c *gin.Context) {
	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	a, err := s.engine.Resolve(c.Request.Context(), c.Param("id"), req.Actor)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (s *Server) runCycle(c *gin.Context) {
	if s.scheduler != nil && c.Query("async") == "true" {
		s.scheduler.Trigger()
		c.JSON(http.StatusAccepted, gin.H{"message": "cycle scheduled"})
		return
	}

	var (
		created []models.Alert
		err     error
	)
	if s.scheduler != nil {
		created, err = s.scheduler.RunNow(c.Request.Context())
	} else {
		created, err = s.engine.RunCycle(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": created, "count": len(created)})
}

func (s *Server) ingestSamples(c *gin.Context) {
	if s.buffer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "sample ingestion is not enabled"})
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	samples, rejected, err := telemetry.DecodeSamples(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(samples) == 0 && rejected > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no valid samples", "rejected": rejected})
		return
	}

	dropped := s.buffer.Push("http", samples...)
	c.JSON(http.StatusAccepted, gin.H{"accepted": len(samples), "rejected": rejected, "dropped": dropped})
}

func (s *Server) websocket(c *gin.Context) {
	if s.hub == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "push channel is not enabled"})
		return
	}
	if err := s.hub.ServeWS(c.Writer, c.Request); err != nil {
		log := logger.WithComponent("api")
		log.Warn().Err(err).Msg("websocket connection failed")
	}
}

func parseRuleID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid rule ID"})
		return 0, false
	}
	return uint(id), true
}

func (s *Server) editableRules(c *gin.Context) bool {
	if s.rules == nil {
		writeError(c, errRulesReadOnly)
		return false
	}
	return true
}

func (s *Server) listRules(c *gin.Context) {
	if s.rules == nil {
		c.JSON(http.StatusOK, s.engine.Rules())
		return
	}

	var enabledPtr *bool
	if enabled := c.Query("enabled"); enabled != "" {
		enabledBool := enabled == "true"
		enabledPtr = &enabledBool
	}

	rules, err := s.rules.ListRules(c.Request.Context(), enabledPtr)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rules)
}

func (s *Server) getRule(c *gin.Context) {
	id, ok := parseRuleID(c)
	if !ok || !s.editableRules(c) {
		return
	}

	rule, err := s.rules.GetRule(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rule)
}

func (s *Server) createRule(c *gin.Context) {
	if !s.editableRules(c) {
		return
	}
	var rule models.AlertRule
	if err := c.ShouldBindJSON(&rule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rule.ID = 0
	if err := s.rules.CreateRule(c.Request.Context(), &rule); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rule)
}

func (s *Server) updateRule(c *gin.Context) {
	id, ok := parseRuleID(c)
	if !ok || !s.editableRules(c) {
		return
	}

	var rule models.AlertRule
	if err := c.ShouldBindJSON(&rule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rule.ID = id
	if err := s.rules.UpdateRule(c.Request.Context(), &rule); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rule)
}

func (s *Server) deleteRule(c *gin.Context) {
	id, ok := parseRuleID(c)
	if !ok || !s.editableRules(c) {
		return
	}

	if err := s.rules.DeleteRule(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "rule deleted successfully"})
}

func (s *Server) enableRule(c *gin.Context) {
	id, ok := parseRuleID(c)
	if !ok || !s.editableRules(c) {
		return
	}

	if err := s.rules.EnableRule(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "rule enabled successfully"})
}

func (s *Server) disableRule(c *gin.Context) {
	id, ok := parseRuleID(c)
	if !ok || !s.editableRules(c) {
		return
	}

	if err := s.rules.DisableRule(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "rule disabled successfully"})
}

func (s *Server) validateRule(c *gin.Context) {
	var rule models.AlertRule
	if err := c.ShouldBindJSON(&rule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := rule.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "rule is valid"})
}

func (s *Server) importRules(c *gin.Context) {
	if !s.editableRules(c) {
		return
	}
	var rules []models.AlertRule
	if err := c.ShouldBindJSON(&rules); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.rules.ImportRules(c.Request.Context(), rules); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("successfully imported %d rules", len(rules))})
}

func (s *Server) reloadRules(c *gin.Context) {
	if r, ok := s.catalog.(Reloader); ok {
		if err := r.Reload(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	rules, err := s.engine.ReloadRules(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"rules": len(rules)})
}

func (s *Server) exportRules(c *gin.Context) {
	if s.rules == nil {
		c.JSON(http.StatusOK, s.engine.Rules())
		return
	}

	rules, err := s.rules.ListRules(c.Request.Context(), nil)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rules)
}

func (s *Server) testRule(c *gin.Context) {
	var request struct {
		Rule    models.AlertRule      `json:"rule"`
		Samples []models.MetricSample `json:"samples"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	candidates, err := alert.TestRule(&request.Rule, request.Samples)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"rule":       request.Rule,
		"candidates": candidates,
		"summary": gin.H{
			"samples":    len(request.Samples),
			"candidates": len(candidates),
		},
	})
}
