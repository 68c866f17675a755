package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"narrator/config"
	"narrator/logging"
	"narrator/models"
	"narrator/services"
	"narrator/store"
	"narrator/utils"
)

// Renderer turns options into a finished video.
type Renderer interface {
	Render(ctx context.Context, opts models.RenderOptions, progress services.ProgressFunc) (models.RenderResult, error)
}

// Publisher uploads a finished video.
type Publisher interface {
	Upload(ctx context.Context, videoPath string, meta services.VideoMetadata) (services.UploadResult, error)
}

// VideoHandler accepts render jobs and reports on them.
type VideoHandler struct {
	cfg           *config.Config
	renderer      Renderer
	publisher     Publisher
	jobs          store.Store
	textProcessor *services.TextProcessor
	ids           utils.IDGenerator
	logger        *slog.Logger

	// Background renders outlive the request that started them.
	baseCtx context.Context
	wg      sync.WaitGroup
}

// NewVideoHandler creates a new video handler
func NewVideoHandler(ctx context.Context, cfg *config.Config, renderer Renderer, jobs store.Store, ids utils.IDGenerator, logger *slog.Logger) *VideoHandler {
	if ids == nil {
		ids = utils.UUIDGenerator{}
	}
	return &VideoHandler{
		cfg:           cfg,
		renderer:      renderer,
		jobs:          jobs,
		textProcessor: services.NewTextProcessor(0),
		ids:           ids,
		logger:        logging.NewComponentLogger(logger, "api"),
		baseCtx:       context.WithoutCancel(ctx),
	}
}

// WithPublisher uploads every completed render.
func (h *VideoHandler) WithPublisher(p Publisher) *VideoHandler {
	h.publisher = p
	return h
}

// Render handles POST /api/render
func (h *VideoHandler) Render(c *gin.Context) {
	var req models.RenderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	opts, err := h.optionsFor(req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	jobID, err := h.Submit(c.Request.Context(), opts)
	if err != nil {
		h.logger.Error("failed to create job", logging.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create job"})
		return
	}

	c.JSON(http.StatusAccepted, models.RenderResponse{
		JobID:  jobID,
		Status: models.JobStatusProcessing,
	})
}

// optionsFor validates a request and fills in process defaults. Output
// paths are chosen by Submit.
func (h *VideoHandler) optionsFor(req models.RenderRequest) (models.RenderOptions, error) {
	if len(req.Lines) > 0 && strings.TrimSpace(req.Script) != "" {
		return models.RenderOptions{}, errors.New("set either lines or script, not both")
	}
	lines := services.NewLines(req.Lines)
	if strings.TrimSpace(req.Script) != "" {
		lines = h.textProcessor.SplitIntoLines(req.Script)
	}
	if len(lines) == 0 {
		return models.RenderOptions{}, errors.New("lines or script is required")
	}

	if req.SpeakingSpeed == 0 {
		req.SpeakingSpeed = 1.0
	}
	if req.SpeakingSpeed < 0.5 || req.SpeakingSpeed > 2.0 {
		return models.RenderOptions{}, errors.New("speaking speed must be between 0.5 and 2.0")
	}
	if req.Voice == "" {
		req.Voice = h.cfg.TTSVoice
	}

	crossfade := h.cfg.MusicCrossfadeSeconds
	if req.CrossfadeSeconds != nil {
		if *req.CrossfadeSeconds < 0 {
			return models.RenderOptions{}, errors.New("crossfade_seconds must not be negative")
		}
		crossfade = *req.CrossfadeSeconds
	}

	footage := h.cfg.BackgroundFootage
	if req.StockKeywords != "" {
		footage = ""
	}
	if footage == "" && req.StockKeywords == "" {
		return models.RenderOptions{}, errors.New("stock_keywords is required when no background footage is configured")
	}

	return models.RenderOptions{
		Title: req.Title,
		Lines: lines,
		FPS:   h.cfg.VideoFPS,
		Size:  models.FrameSize{Width: h.cfg.VideoWidth, Height: h.cfg.VideoHeight},
		Subtitle: models.SubtitleStyle{
			FontPath: h.cfg.FontPath,
			FontSize: h.cfg.FontSize,
			Color:    h.cfg.FontColor,
		},
		Voice:             req.Voice,
		VoiceSpeed:        req.SpeakingSpeed,
		BackgroundFootage: footage,
		StockKeywords:     req.StockKeywords,
		BackgroundMusic:   append([]string(nil), h.cfg.BackgroundMusic...),
		ShuffleMusic:      req.ShuffleMusic,
		CrossfadeSeconds:  crossfade,
		Weights:           models.MixWeights{Music: h.cfg.MusicWeight, Voice: h.cfg.VoiceWeight},
		WriteSubtitles:    true,
	}, nil
}

// SubmitRequest validates req and submits it. Scheduled compilations use it
// in place of the HTTP endpoint.
func (h *VideoHandler) SubmitRequest(ctx context.Context, req models.RenderRequest) (string, error) {
	opts, err := h.optionsFor(req)
	if err != nil {
		return "", err
	}
	return h.Submit(ctx, opts)
}

// Submit records a new job and renders it in the background.
func (h *VideoHandler) Submit(ctx context.Context, opts models.RenderOptions) (string, error) {
	jobID := h.ids.NewID("job")
	opts.OutputPath = filepath.Join(h.cfg.OutputDir, jobID+".mp4")

	now := time.Now()
	job := models.JobStatus{
		JobID:       jobID,
		Status:      models.JobStatusProcessing,
		CurrentStep: "Initializing",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := h.jobs.Create(ctx, job); err != nil {
		return "", err
	}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.processRender(job, opts)
	}()
	return jobID, nil
}

// Wait blocks until every background render has finished.
func (h *VideoHandler) Wait() {
	h.wg.Wait()
}

// GetStatus handles GET /api/status/:job_id
func (h *VideoHandler) GetStatus(c *gin.Context) {
	job, ok := h.lookup(c)
	if !ok {
		return
	}

	resp := models.StatusResponse{
		Status:      job.Status,
		Progress:    job.Progress,
		CurrentStep: job.CurrentStep,
	}
	if job.Status == models.JobStatusCompleted && job.VideoPath != "" {
		videoURL := fmt.Sprintf("/api/download/%s", job.JobID)
		resp.VideoURL = &videoURL
	}
	if job.Status == models.JobStatusCompleted && job.SubtitlePath != "" {
		subtitleURL := fmt.Sprintf("/api/subtitles/%s", job.JobID)
		resp.SubtitleURL = &subtitleURL
	}
	if job.Error != "" {
		errMsg := job.Error
		resp.Error = &errMsg
	}

	c.JSON(http.StatusOK, resp)
}

// Download handles GET /api/download/:job_id
func (h *VideoHandler) Download(c *gin.Context) {
	job, ok := h.completed(c)
	if !ok {
		return
	}
	if !utils.FileExists(job.VideoPath) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Video file not found"})
		return
	}

	c.Header("Content-Type", "video/mp4")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=video_%s.mp4", job.JobID))
	c.File(job.VideoPath)
}

// DownloadSubtitles handles GET /api/subtitles/:job_id
func (h *VideoHandler) DownloadSubtitles(c *gin.Context) {
	job, ok := h.completed(c)
	if !ok {
		return
	}
	if job.SubtitlePath == "" || !utils.FileExists(job.SubtitlePath) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Subtitle file not found"})
		return
	}

	c.Header("Content-Type", "application/x-subrip")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=subtitles_%s.srt", job.JobID))
	c.File(job.SubtitlePath)
}

func (h *VideoHandler) lookup(c *gin.Context) (models.JobStatus, bool) {
	job, err := h.jobs.Get(c.Request.Context(), c.Param("job_id"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return job, false
	}
	if err != nil {
		h.logger.Error("failed to load job", logging.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load job"})
		return job, false
	}
	return job, true
}

func (h *VideoHandler) completed(c *gin.Context) (models.JobStatus, bool) {
	job, ok := h.lookup(c)
	if !ok {
		return job, false
	}
	if job.Status != models.JobStatusCompleted {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Job not completed yet"})
		return job, false
	}
	return job, true
}

// processRender runs one job and records its progress and outcome.
func (h *VideoHandler) processRender(job models.JobStatus, opts models.RenderOptions) {
	ctx := h.baseCtx
	logger := h.logger.With(logging.String("job_id", job.JobID))

	var mu sync.Mutex
	save := func(update func(*models.JobStatus)) {
		mu.Lock()
		defer mu.Unlock()
		update(&job)
		job.UpdatedAt = time.Now()
		if err := h.jobs.Update(ctx, job); err != nil {
			logger.Warn("failed to save job status", logging.Error(err))
		}
	}

	result, err := h.renderer.Render(ctx, opts, func(step string, percent int) {
		save(func(j *models.JobStatus) {
			j.CurrentStep = step
			j.Progress = percent
		})
		logger.Info(step, logging.Int("progress", percent))
	})
	if err != nil {
		logger.Error("render failed", logging.Error(err))
		save(func(j *models.JobStatus) {
			j.Status = models.JobStatusFailed
			j.Error = err.Error()
		})
		return
	}

	save(func(j *models.JobStatus) {
		j.Status = models.JobStatusCompleted
		j.Progress = 100
		j.CurrentStep = "Completed"
		j.VideoPath = result.OutputPath
		j.SubtitlePath = result.SubtitlePath
	})

	if h.publisher != nil {
		h.publish(ctx, logger, result.OutputPath, opts.Title)
	}
}

func (h *VideoHandler) publish(ctx context.Context, logger *slog.Logger, path, title string) {
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	res, err := h.publisher.Upload(ctx, path, services.VideoMetadata{
		Title:      title,
		CategoryID: h.cfg.YouTubeCategoryID,
		Privacy:    h.cfg.YouTubePrivacy,
	})
	if err != nil {
		logger.Error("publish failed", logging.Error(err))
		return
	}
	logger.Info("published", logging.String("video_id", res.ID))
}
