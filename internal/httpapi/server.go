package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"civicgrid.dev/grievdedup/internal/db"
	"civicgrid.dev/grievdedup/internal/globaltime"
	"civicgrid.dev/grievdedup/internal/pipeline"
	payloadschema "civicgrid.dev/grievdedup/schema"
)

// Options configures the HTTP server's listen address and timeouts.
type Options struct {
	Host               string
	Port               int
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	ShutdownTimeout    time.Duration
	CORSAllowedOrigins []string
}

// Server is the thin transport binding over the batch orchestrator (§2.2,
// §6): it validates and decodes HTTP payloads, delegates to the
// orchestrator, and shapes the JSend response envelope.
type Server struct {
	pool         *db.Pool
	orchestrator *pipeline.Orchestrator
	logger       zerolog.Logger
	opts         Options
}

func NewServer(pool *db.Pool, orchestrator *pipeline.Orchestrator, logger zerolog.Logger, opts Options) *Server {
	host := strings.TrimSpace(opts.Host)
	if host == "" {
		host = "0.0.0.0"
	}
	port := opts.Port
	if port <= 0 {
		port = 8090
	}
	readTimeout := opts.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 10 * time.Second
	}
	writeTimeout := opts.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 30 * time.Second
	}
	shutdownTimeout := opts.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}

	return &Server{
		pool:         pool,
		orchestrator: orchestrator,
		logger:       logger,
		opts: Options{
			Host:               host,
			Port:               port,
			ReadTimeout:        readTimeout,
			WriteTimeout:       writeTimeout,
			ShutdownTimeout:    shutdownTimeout,
			CORSAllowedOrigins: opts.CORSAllowedOrigins,
		},
	}
}

func (s *Server) Start(ctx context.Context) error {
	if s == nil || s.pool == nil || s.orchestrator == nil {
		return fmt.Errorf("server is not initialized")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.httpErrorHandler

	corsOrigins := s.opts.CORSAllowedOrigins
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: corsOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
		MaxAge:       3600,
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				s.logger.Error().
					Err(v.Error).
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Str("remote_ip", v.RemoteIP).
					Str("request_id", v.RequestID).
					Msg("http request failed")
				return nil
			}

			s.logger.Info().
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("remote_ip", v.RemoteIP).
				Str("request_id", v.RequestID).
				Msg("http request")
			return nil
		},
	}))

	api := e.Group("/api/v1")
	api.GET("/health", s.handleHealth)
	api.POST("/batches", s.handleSubmitBatch)
	api.GET("/batches/:batch_id", s.handleGetBatch)
	api.POST("/feedback", s.handleSubmitFeedback)

	addr := fmt.Sprintf("%s:%d", s.opts.Host, s.opts.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      e,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		if shutdownErr := e.Shutdown(shutdownCtx); shutdownErr != nil {
			s.logger.Error().Err(shutdownErr).Msg("server shutdown failed")
		}
	}()

	s.logger.Info().Str("addr", addr).Msg("grievdedup web server started")

	if err := e.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("start server: %w", err)
	}
	s.logger.Info().Msg("grievdedup web server stopped")
	return nil
}

func (s *Server) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	message := "Internal server error"
	if he, ok := err.(*echo.HTTPError); ok {
		status = he.Code
		switch v := he.Message.(type) {
		case string:
			if strings.TrimSpace(v) != "" {
				message = v
			}
		default:
			if text := strings.TrimSpace(http.StatusText(status)); text != "" {
				message = text
			}
		}
	} else if err != nil {
		message = err.Error()
	}

	if status >= 500 {
		_ = internalError(c, "Internal server error")
		return
	}
	_ = fail(c, status, message, nil)
}

func (s *Server) handleHealth(c echo.Context) error {
	return success(c, map[string]any{
		"service": "grievdedup",
		"time":    globaltime.UTC(),
	})
}

// handleSubmitBatch implements POST /api/v1/batches (§6): schema-validate,
// hand off to the orchestrator, and return 202 with the new batch id.
func (s *Server) handleSubmitBatch(c echo.Context) error {
	body, err := readRequestBody(c)
	if err != nil {
		return failValidation(c, err.Error())
	}

	batch, err := payloadschema.ValidateBatchSubmit(body)
	if err != nil {
		return failValidation(c, err.Error())
	}

	req := pipeline.BatchRequest{
		Source:            "api",
		SubmittedByUserID: batch.UserID,
		PDFs:              make([]pipeline.PDFEntry, 0, len(batch.PDFs)),
	}
	for _, pdf := range batch.PDFs {
		entry := pipeline.PDFEntry{
			PDFID:      pdf.PDFID,
			Filename:   pdf.Filename,
			Area:       pdf.Area,
			Grievances: make([]pipeline.PageEntry, 0, len(pdf.Grievances)),
		}
		for _, page := range pdf.Grievances {
			entry.Grievances = append(entry.Grievances, pipeline.PageEntry{PageNumber: page.PageNumber, Text: page.Text})
		}
		req.PDFs = append(req.PDFs, entry)
	}

	batchID, err := s.orchestrator.Submit(c.Request().Context(), req)
	if err != nil {
		s.logger.Error().Err(err).Msg("submit batch failed")
		return internalError(c, "Failed to submit batch")
	}

	return successWithStatus(c, http.StatusAccepted, map[string]any{"batch_id": batchID})
}

// handleGetBatch implements GET /api/v1/batches/:batch_id (§6).
func (s *Server) handleGetBatch(c echo.Context) error {
	batchID, err := strconv.ParseInt(c.Param("batch_id"), 10, 64)
	if err != nil {
		return failValidation(c, "batch_id must be an integer")
	}

	batch, err := s.pool.GetBatch(c.Request().Context(), batchID)
	if err != nil {
		if errors.Is(err, db.ErrNoRows) {
			return failNotFound(c, "batch not found")
		}
		s.logger.Error().Err(err).Int64("batch_id", batchID).Msg("get batch failed")
		return internalError(c, "Failed to load batch")
	}

	return success(c, batchStatusResponse{
		BatchID:            batch.BatchID,
		Status:             batch.State,
		TotalPDFs:          batch.TotalPDFs,
		ProcessedPDFs:      batch.ProcessedPDFs,
		TotalGrievances:    batch.TotalGrievances,
		UniqueCount:        batch.UniqueCount,
		DuplicateCount:     batch.DuplicateCount,
		NearDuplicateCount: batch.NearDuplicateCount,
		StartedAt:          batch.StartedAt,
		CompletedAt:        batch.CompletedAt,
		ErrorMessage:       batch.ErrorMessage,
	})
}

type batchStatusResponse struct {
	BatchID            int64      `json:"batch_id"`
	Status             string     `json:"status"`
	TotalPDFs          int        `json:"total_pdfs"`
	ProcessedPDFs      int        `json:"processed_pdfs"`
	TotalGrievances    int        `json:"total_grievances"`
	UniqueCount        int        `json:"unique_count"`
	DuplicateCount     int        `json:"duplicate_count"`
	NearDuplicateCount int        `json:"near_duplicate_count"`
	StartedAt          *time.Time `json:"started_at,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	ErrorMessage       *string    `json:"error_message,omitempty"`
}

// handleSubmitFeedback implements POST /api/v1/feedback (§6).
func (s *Server) handleSubmitFeedback(c echo.Context) error {
	body, err := readRequestBody(c)
	if err != nil {
		return failValidation(c, err.Error())
	}

	fb, err := payloadschema.ValidateFeedback(body)
	if err != nil {
		return failValidation(c, err.Error())
	}

	if err := s.orchestrator.SubmitFeedback(c.Request().Context(), pipeline.FeedbackRequest{
		GrievanceID:        fb.GrievanceID,
		MatchedGrievanceID: fb.MatchedGrievanceID,
		OriginalStatus:     fb.OriginalStatus,
		CorrectedStatus:    fb.CorrectedStatus,
		OriginalScore:      fb.OriginalScore,
		Notes:              fb.Notes,
	}); err != nil {
		s.logger.Error().Err(err).Int64("grievance_id", fb.GrievanceID).Msg("submit feedback failed")
		return internalError(c, "Failed to record feedback")
	}

	return success(c, map[string]any{"recorded": true})
}

func readRequestBody(c echo.Context) ([]byte, error) {
	defer c.Request().Body.Close()
	const maxBodyBytes = 32 << 20 // 32MiB, generous for a multi-PDF batch submission.
	limited := http.MaxBytesReader(c.Response(), c.Request().Body, maxBodyBytes)
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("read request body: %w", err)
	}
	return body, nil
}
