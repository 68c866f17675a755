package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/url"
	"path/filepath"
	"time"

	"narrator/logging"
	"narrator/models"
	"narrator/utils"
)

const pexelsSearchURL = "https://api.pexels.com/videos/search"

// FootageSource fetches background footage for a search phrase into dir.
type FootageSource interface {
	FetchFootage(ctx context.Context, keywords string, size models.FrameSize, dir string) (string, error)
}

// StockVideoService handles stock video searching and downloading
type StockVideoService struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	pick       func(n int) int
	logger     *slog.Logger
}

// NewStockVideoService creates a new stock video service
func NewStockVideoService(apiKey string, logger *slog.Logger) *StockVideoService {
	return &StockVideoService{
		apiKey:  apiKey,
		baseURL: pexelsSearchURL,
		httpClient: &http.Client{
			Timeout: 2 * time.Minute,
		},
		pick:   rand.IntN,
		logger: logging.NewComponentLogger(logger, "stock"),
	}
}

type pexelsFile struct {
	Quality string `json:"quality"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Link    string `json:"link"`
}

type pexelsSearch struct {
	Videos []struct {
		ID    int          `json:"id"`
		Files []pexelsFile `json:"video_files"`
	} `json:"videos"`
}

// FetchFootage searches for a clip matching keywords and downloads it into
// dir. The render loops it, so its length does not matter.
func (sv *StockVideoService) FetchFootage(ctx context.Context, keywords string, size models.FrameSize, dir string) (string, error) {
	if sv.apiKey == "" {
		return "", errors.New("PEXELS_API_KEY is not set")
	}

	videoURL, err := sv.searchVideo(ctx, keywords, size)
	if err != nil {
		return "", fmt.Errorf("failed to search video: %w", err)
	}

	path := filepath.Join(dir, "stock_footage.mp4")
	if err := utils.DownloadFile(ctx, sv.httpClient, videoURL, path); err != nil {
		return "", fmt.Errorf("failed to download video: %w", err)
	}

	sv.logger.Info("stock footage downloaded",
		logging.String("keywords", keywords),
		logging.String("path", path),
	)
	return path, nil
}

// searchVideo returns the download link of one matching clip.
func (sv *StockVideoService) searchVideo(ctx context.Context, keywords string, size models.FrameSize) (string, error) {
	orientation := "landscape"
	if size.Height > size.Width {
		orientation = "portrait"
	}

	params := url.Values{
		"query":       {keywords},
		"per_page":    {"10"},
		"orientation": {orientation},
		"size":        {"medium"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sv.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", sv.apiKey)

	resp, err := sv.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("pexels search: status %d", resp.StatusCode)
	}

	var result pexelsSearch
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode pexels response: %w", err)
	}
	if len(result.Videos) == 0 {
		return "", fmt.Errorf("no videos found for %q", keywords)
	}

	video := result.Videos[sv.pick(len(result.Videos))]
	link := bestFile(video.Files, size)
	if link == "" {
		return "", fmt.Errorf("pexels video %d has no files", video.ID)
	}
	sv.logger.Debug("stock footage selected",
		logging.Int("video_id", video.ID),
		logging.String("orientation", orientation),
	)
	return link, nil
}

// bestFile returns the first HD file covering size, else the first file.
func bestFile(files []pexelsFile, size models.FrameSize) string {
	for _, f := range files {
		if f.Quality == "hd" && f.Width >= size.Width && f.Height >= size.Height {
			return f.Link
		}
	}
	if len(files) > 0 {
		return files[0].Link
	}
	return ""
}
