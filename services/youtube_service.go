package services

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"narrator/logging"
)

// YouTube API scopes.
const (
	ScopeYouTubeUpload   = "https://www.googleapis.com/auth/youtube.upload"
	ScopeYouTubeReadonly = "https://www.googleapis.com/auth/youtube.readonly"
)

const youtubeUploadURL = "https://www.googleapis.com/upload/youtube/v3/videos?uploadType=multipart&part=snippet,status"

// VideoMetadata describes an upload.
type VideoMetadata struct {
	Title       string
	Description string
	CategoryID  string
	Privacy     string
	Tags        []string
}

// UploadResult is the subset of the API response we keep.
type UploadResult struct {
	ID     string `json:"id"`
	Status struct {
		UploadStatus  string `json:"uploadStatus"`
		PrivacyStatus string `json:"privacyStatus"`
	} `json:"status"`
}

// storedToken is the on-disk token, with the granted scopes alongside.
type storedToken struct {
	oauth2.Token
	Scope string `json:"scope"`
}

// YouTubePublisher uploads finished videos using an installed-app OAuth2
// client.
type YouTubePublisher struct {
	secretPath string
	tokenPath  string
	scopes     []string
	uploadURL  string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewYouTubePublisher creates a publisher. Authorize must succeed before
// Upload is called.
func NewYouTubePublisher(secretPath, tokenPath string, logger *slog.Logger, scopes ...string) *YouTubePublisher {
	if len(scopes) == 0 {
		scopes = []string{ScopeYouTubeUpload}
	}
	return &YouTubePublisher{
		secretPath: secretPath,
		tokenPath:  tokenPath,
		scopes:     scopes,
		uploadURL:  youtubeUploadURL,
		logger:     logging.NewComponentLogger(logger, "youtube"),
	}
}

// Authorize loads the cached token. When it is missing or lacks a required
// scope, the user is sent through the consent flow: the auth URL is printed to
// out and the code is read from in.
func (yp *YouTubePublisher) Authorize(ctx context.Context, in io.Reader, out io.Writer) error {
	secret, err := os.ReadFile(yp.secretPath)
	if err != nil {
		return fmt.Errorf("%q is missing, check YOUTUBE_CLIENT_SECRET: %w", yp.secretPath, err)
	}
	conf, err := google.ConfigFromJSON(secret, yp.scopes...)
	if err != nil {
		return fmt.Errorf("parse client secret: %w", err)
	}

	tok, err := yp.loadToken()
	switch {
	case errors.Is(err, os.ErrNotExist):
		tok, err = yp.newToken(ctx, conf, in, out)
	case err != nil:
		return err
	case !hasScopes(tok.Scope, yp.scopes):
		yp.logger.Info("token is missing required scopes, re-authorizing")
		tok, err = yp.newToken(ctx, conf, in, out)
	}
	if err != nil {
		return err
	}

	yp.httpClient = conf.Client(ctx, &tok.Token)
	return nil
}

func (yp *YouTubePublisher) newToken(ctx context.Context, conf *oauth2.Config, in io.Reader, out io.Writer) (storedToken, error) {
	authURL := conf.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	fmt.Fprintln(out, "Please authorize the YouTube API by visiting this url:")
	fmt.Fprintln(out, authURL)
	fmt.Fprint(out, "Code: ")

	code, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return storedToken{}, fmt.Errorf("read authorization code: %w", err)
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return storedToken{}, errors.New("no authorization code entered")
	}

	tok, err := conf.Exchange(ctx, code)
	if err != nil {
		return storedToken{}, fmt.Errorf("exchange authorization code: %w", err)
	}
	stored := storedToken{Token: *tok, Scope: strings.Join(conf.Scopes, " ")}
	if scope, ok := tok.Extra("scope").(string); ok && scope != "" {
		stored.Scope = scope
	}
	if err := yp.saveToken(stored); err != nil {
		return storedToken{}, err
	}
	yp.logger.Info("saved new token", logging.String("path", yp.tokenPath))
	return stored, nil
}

func (yp *YouTubePublisher) loadToken() (storedToken, error) {
	data, err := os.ReadFile(yp.tokenPath)
	if err != nil {
		return storedToken{}, err
	}
	var tok storedToken
	if err := json.Unmarshal(data, &tok); err != nil {
		return storedToken{}, fmt.Errorf("parse token %s: %w", yp.tokenPath, err)
	}
	return tok, nil
}

func (yp *YouTubePublisher) saveToken(tok storedToken) error {
	data, err := json.MarshalIndent(tok, "", "    ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(yp.tokenPath), 0o700); err != nil {
		return err
	}
	return os.WriteFile(yp.tokenPath, data, 0o600)
}

func hasScopes(granted string, required []string) bool {
	have := strings.Fields(granted)
	for _, s := range required {
		if !slices.Contains(have, s) {
			return false
		}
	}
	return true
}

// Upload sends videoPath with meta as a multipart upload.
func (yp *YouTubePublisher) Upload(ctx context.Context, videoPath string, meta VideoMetadata) (UploadResult, error) {
	if yp.httpClient == nil {
		return UploadResult{}, errors.New("youtube publisher is not authorized")
	}
	if strings.TrimSpace(meta.Title) == "" {
		return UploadResult{}, errors.New("video title is required")
	}
	if meta.Privacy == "" {
		meta.Privacy = "unlisted"
	}

	video, err := os.Open(videoPath)
	if err != nil {
		return UploadResult{}, fmt.Errorf("open video: %w", err)
	}
	defer video.Close()

	snippet := map[string]any{
		"title":       meta.Title,
		"description": meta.Description,
	}
	if meta.CategoryID != "" {
		snippet["categoryId"] = meta.CategoryID
	}
	if len(meta.Tags) > 0 {
		snippet["tags"] = meta.Tags
	}
	metadata, err := json.Marshal(map[string]any{
		"snippet": snippet,
		"status":  map[string]any{"privacyStatus": meta.Privacy},
	})
	if err != nil {
		return UploadResult{}, err
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeUploadBody(mw, metadata, video))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, yp.uploadURL, pr)
	if err != nil {
		pr.Close()
		return UploadResult{}, err
	}
	req.Header.Set("Content-Type", "multipart/related; boundary="+mw.Boundary())

	resp, err := yp.httpClient.Do(req)
	if err != nil {
		return UploadResult{}, fmt.Errorf("upload: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return UploadResult{}, fmt.Errorf("upload failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result UploadResult
	if err := json.Unmarshal(body, &result); err != nil {
		return UploadResult{}, fmt.Errorf("parse upload response: %w", err)
	}
	yp.logger.Info("video uploaded",
		logging.String("id", result.ID),
		logging.String("privacy", meta.Privacy),
	)
	return result, nil
}

func writeUploadBody(mw *multipart.Writer, metadata []byte, video io.Reader) error {
	meta, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {"application/json; charset=UTF-8"}})
	if err != nil {
		return err
	}
	if _, err := meta.Write(metadata); err != nil {
		return err
	}
	media, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {"video/*"}})
	if err != nil {
		return err
	}
	if _, err := io.Copy(media, video); err != nil {
		return err
	}
	return mw.Close()
}
