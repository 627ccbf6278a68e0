package api

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/voiddp/ak-events-tracker/internal/ingest"
	"github.com/voiddp/ak-events-tracker/internal/models"
	"github.com/voiddp/ak-events-tracker/internal/reconcile"
	"github.com/voiddp/ak-events-tracker/internal/store"
)

const (
	// Reconciled datasets are cached per lookback window so interactive
	// reads rarely hit the wiki at all.
	datasetKeyPrefix = "events:dataset"
	datasetTTL       = time.Hour

	defaultMonths = 6
	maxMonths     = 24
)

type Server struct {
	Store       store.Store
	Fetcher     *ingest.Fetcher
	Anchors     reconcile.Table
	ShiftMonths int
	Echo        *echo.Echo

	// Background job tracking
	jobMu      sync.Mutex
	runningJob *backgroundJob
}

type backgroundJob struct {
	ID        string             `json:"id"`
	Status    string             `json:"status"` // running, completed, failed
	StartedAt time.Time          `json:"started_at"`
	EndedAt   time.Time          `json:"ended_at,omitempty"`
	Result    any                `json:"result,omitempty"`
	Error     string             `json:"error,omitempty"`
	Cancel    context.CancelFunc `json:"-"`
}

var (
	adminSecretOnce    sync.Once
	adminSecretRuntime string
	adminSecretErr     error
)

func NewServer(st store.Store, fetcher *ingest.Fetcher, anchors reconcile.Table, shiftMonths int) *Server {
	e := echo.New()
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	// CORS: allow frontend origins from env or default to localhost
	allowedOrigins := []string{"http://localhost:5173"}
	if extra := os.Getenv("CORS_ORIGINS"); extra != "" {
		for _, o := range strings.Split(extra, ",") {
			o = strings.TrimSpace(o)
			if o != "" {
				allowedOrigins = append(allowedOrigins, o)
			}
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: allowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, "X-Admin-Secret", "X-Session-ID"},
	}))

	s := &Server{
		Store:       st,
		Fetcher:     fetcher,
		Anchors:     anchors,
		ShiftMonths: shiftMonths,
		Echo:        e,
	}

	s.routes()
	return s
}

func (s *Server) Start(port string) error {
	return s.Echo.Start(":" + port)
}

func (s *Server) routes() {
	s.Echo.GET("/healthz", s.handleHealth)
	api := s.Echo.Group("/api")
	api.GET("/events", s.handleListEvents)

	admin := api.Group("/admin")
	admin.Use(s.adminMiddleware)
	admin.POST("/ingest", s.handleTriggerIngest)
	admin.GET("/ingest/:id", s.handleJobStatus)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// handleListEvents serves the reconciled dataset for the requested lookback
// window. A cached dataset is returned as-is; a miss triggers one interactive
// crawl under the caller's session.
func (s *Server) handleListEvents(c echo.Context) error {
	months := monthsParam(c)
	ctx := c.Request().Context()

	cacheKey := fmt.Sprintf("%s:%d", datasetKeyPrefix, months)
	if cached, err := s.Store.Get(ctx, cacheKey); err == nil {
		return c.JSONBlob(http.StatusOK, []byte(cached))
	} else if !errors.Is(err, store.ErrNotFound) {
		log.Printf("[api] dataset cache read: %v", err)
	}

	ticket := models.SchedulerTicket{SessionID: strings.TrimSpace(c.Request().Header.Get("X-Session-ID"))}
	events, err := s.Fetcher.GetEventList(ctx, months, ticket)
	if err != nil {
		return c.JSON(http.StatusBadGateway, map[string]string{"error": err.Error()})
	}
	reconciled := reconcile.Apply(events, s.Anchors, s.ShiftMonths)

	payload, err := json.Marshal(reconciled)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if err := s.Store.Set(ctx, cacheKey, string(payload), datasetTTL); err != nil {
		log.Printf("[api] dataset cache write: %v", err)
	}
	return c.JSONBlob(http.StatusOK, payload)
}

// handleTriggerIngest starts one background batch crawl. Only one job runs at
// a time; a second trigger reports the running job instead of queueing.
func (s *Server) handleTriggerIngest(c echo.Context) error {
	months := monthsParam(c)

	s.jobMu.Lock()
	if s.runningJob != nil && s.runningJob.Status == "running" {
		job := s.runningJob
		s.jobMu.Unlock()
		return c.JSON(http.StatusConflict, map[string]interface{}{
			"error":  "An ingest job is already running",
			"job_id": job.ID,
		})
	}

	// context.WithoutCancel detaches from HTTP lifecycle but preserves
	// trace values. We add our own timeout for safety.
	jobCtx, jobCancel := context.WithTimeout(
		context.WithoutCancel(c.Request().Context()), 30*time.Minute,
	)

	jobID := uuid.New().String()[:8]
	job := &backgroundJob{
		ID:        jobID,
		Status:    "running",
		StartedAt: time.Now(),
		Cancel:    jobCancel,
	}
	s.runningJob = job
	s.jobMu.Unlock()

	go func() {
		defer jobCancel()
		ticket := models.SchedulerTicket{SessionID: "batch-" + jobID, IsBatchJob: true}

		events, err := s.Fetcher.GetEventList(jobCtx, months, ticket)
		if err != nil {
			s.jobMu.Lock()
			job.Status = "failed"
			job.Error = err.Error()
			job.EndedAt = time.Now()
			s.jobMu.Unlock()
			log.Printf("[ingest-job %s] failed: %v", jobID, err)
			return
		}
		reconciled := reconcile.Apply(events, s.Anchors, s.ShiftMonths)

		dated := 0
		for _, ev := range reconciled {
			if ev.TargetDate != nil {
				dated++
			}
		}

		cacheKey := fmt.Sprintf("%s:%d", datasetKeyPrefix, months)
		if payload, err := json.Marshal(reconciled); err != nil {
			log.Printf("[ingest-job %s] marshaling dataset: %v", jobID, err)
		} else if err := s.Store.Set(jobCtx, cacheKey, string(payload), datasetTTL); err != nil {
			log.Printf("[ingest-job %s] caching dataset: %v", jobID, err)
		}

		s.jobMu.Lock()
		job.Status = "completed"
		job.EndedAt = time.Now()
		job.Result = map[string]interface{}{
			"events": len(reconciled),
			"dated":  dated,
			"months": months,
		}
		s.jobMu.Unlock()
		log.Printf("[ingest-job %s] completed: events=%d dated=%d", jobID, len(reconciled), dated)
	}()

	return c.JSON(http.StatusAccepted, map[string]interface{}{
		"message": "Ingest job started",
		"job_id":  jobID,
		"poll":    fmt.Sprintf("/api/admin/ingest/%s", jobID),
	})
}

func (s *Server) handleJobStatus(c echo.Context) error {
	queried := c.Param("id")
	s.jobMu.Lock()
	defer s.jobMu.Unlock()

	job := s.runningJob
	if job == nil || job.ID != queried {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "job not found"})
	}

	resp := map[string]interface{}{
		"id":         job.ID,
		"status":     job.Status,
		"started_at": job.StartedAt,
	}
	if !job.EndedAt.IsZero() {
		resp["ended_at"] = job.EndedAt
		resp["duration"] = job.EndedAt.Sub(job.StartedAt).String()
	}
	if job.Result != nil {
		resp["result"] = job.Result
	}
	if job.Error != "" {
		resp["error"] = job.Error
	}
	return c.JSON(http.StatusOK, resp)
}

func monthsParam(c echo.Context) int {
	months := defaultMonths
	if raw := strings.TrimSpace(c.QueryParam("months")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= maxMonths {
			months = parsed
		}
	}
	return months
}

func (s *Server) adminMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		secret, err := adminSecret()
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Server admin configuration error"})
		}

		// Check X-Admin-Secret header or Bearer token
		authHeader := c.Request().Header.Get("Authorization")
		adminHeader := c.Request().Header.Get("X-Admin-Secret")

		if adminHeader == secret {
			return next(c)
		}
		if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
			if authHeader[7:] == secret {
				return next(c)
			}
		}

		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized admin access"})
	}
}

func adminSecret() (string, error) {
	adminSecretOnce.Do(func() {
		secret := strings.TrimSpace(os.Getenv("ADMIN_SECRET"))
		if secret != "" {
			adminSecretRuntime = secret
			return
		}

		buf := make([]byte, 48)
		if _, err := rand.Read(buf); err != nil {
			adminSecretErr = fmt.Errorf("failed to generate ADMIN_SECRET fallback: %w", err)
			return
		}

		adminSecretRuntime = base64.RawURLEncoding.EncodeToString(buf)
		log.Print("ADMIN_SECRET is not set; using ephemeral in-memory fallback secret")
	})

	if adminSecretErr != nil {
		return "", adminSecretErr
	}
	return adminSecretRuntime, nil
}
