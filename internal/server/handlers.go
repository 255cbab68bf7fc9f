package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/amiaddur/wavepipe/internal/download"
	"github.com/amiaddur/wavepipe/internal/logging"
	"github.com/amiaddur/wavepipe/internal/model"
	"github.com/amiaddur/wavepipe/internal/platform"
)

// Health states
const (
	HealthOK       = "ok"
	HealthDegraded = "degraded"
)

// HealthStatus represents server health information
type HealthStatus struct {
	Status          string   `json:"status"`
	YtdlpVersion    string   `json:"ytdlp_version,omitempty"`
	FFmpegVersion   string   `json:"ffmpeg_version,omitempty"`
	ActiveDownloads int      `json:"active_downloads"`
	Uptime          string   `json:"uptime"`
	MemoryUsage     string   `json:"memory_usage"`
	Errors          []string `json:"errors,omitempty"`
}

// DownloadsResponse lists in-flight and recent jobs
type DownloadsResponse struct {
	Active int                 `json:"active"`
	Jobs   []model.DownloadJob `json:"jobs"`
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	url := strings.TrimSpace(r.URL.Query().Get("url"))
	if url == "" {
		writeError(w, http.StatusBadRequest, MsgMissingURL, nil)
		return
	}

	info, err := s.metadata.Fetch(r.Context(), url)
	if err != nil {
		s.logger.Error().Err(err).
			Str(logging.FieldRequestID, middleware.GetReqID(r.Context())).
			Str(logging.FieldURL, url).
			Msg("info lookup failed")
		writeError(w, statusFor(err), MsgInfoFailed, err)
		return
	}

	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	url := strings.TrimSpace(query.Get("url"))
	if url == "" {
		writeError(w, http.StatusBadRequest, MsgMissingURL, nil)
		return
	}
	format := model.ParseFormat(query.Get("format"))

	artifact, err := s.downloads.Prepare(r.Context(), url, format)
	if err != nil {
		writeError(w, statusFor(err), MsgDownloadFail, err)
		return
	}

	f, err := artifact.Open()
	if err != nil {
		artifact.Fail(err)
		writeError(w, http.StatusInternalServerError, MsgDownloadFail, fmt.Errorf("%w: %v", download.ErrOutputMissing, err))
		return
	}

	header := w.Header()
	header.Set("Content-Disposition", platform.ContentDisposition(artifact.Filename))
	header.Set("Content-Type", artifact.ContentType)
	header.Set("Content-Length", strconv.FormatInt(artifact.Size, 10))
	w.WriteHeader(http.StatusOK)

	_, copyErr := io.Copy(w, f)
	f.Close()

	if copyErr != nil {
		artifact.Fail(copyErr)
		return
	}
	artifact.Cleanup()
}

func (s *Server) handleDownloads(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, DownloadsResponse{
		Active: s.downloads.ActiveCount(),
		Jobs:   s.downloads.ListJobs(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), VersionTimeout)
	defer cancel()

	health := HealthStatus{
		Status:          HealthOK,
		ActiveDownloads: s.downloads.ActiveCount(),
		Uptime:          time.Since(s.startedAt).Round(time.Second).String(),
		MemoryUsage:     memoryUsage(),
	}

	if s.runner != nil {
		version, err := s.ytdlpVersion(ctx)
		if err != nil {
			health.Status = HealthDegraded
			health.Errors = append(health.Errors, err.Error())
		}
		health.YtdlpVersion = version
	}

	if s.prober != nil {
		version, err := s.prober.FFmpegVersion(ctx)
		if err != nil {
			health.Status = HealthDegraded
			health.Errors = append(health.Errors, err.Error())
		}
		health.FFmpegVersion = version
	}

	writeJSON(w, http.StatusOK, health)
}

func (s *Server) ytdlpVersion(ctx context.Context) (string, error) {
	res, err := s.runner.Run(ctx, download.Invocation{Kind: download.KindVersion})
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		return "", &download.ToolError{Op: "version", ExitCode: res.ExitCode, Stderr: res.Stderr}
	}
	return strings.TrimSpace(res.Stdout), nil
}

func memoryUsage() string {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return "N/A"
	}
	return fmt.Sprintf("%.1f%% of %d MiB", vm.UsedPercent, vm.Total/1024/1024)
}

const robotsTxt = "User-agent: *\nAllow: /\nDisallow: /api/\n"

func handleRobots(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, robotsTxt)
}

type manifestIcon struct {
	Src   string `json:"src"`
	Sizes string `json:"sizes"`
	Type  string `json:"type"`
}

type webManifest struct {
	Name            string         `json:"name"`
	ShortName       string         `json:"short_name"`
	Description     string         `json:"description"`
	StartURL        string         `json:"start_url"`
	Display         string         `json:"display"`
	BackgroundColor string         `json:"background_color"`
	ThemeColor      string         `json:"theme_color"`
	Orientation     string         `json:"orientation"`
	Icons           []manifestIcon `json:"icons"`
}

var manifest = webManifest{
	Name:            "WavePipe Downloader",
	ShortName:       "WavePipe",
	Description:     "Open-source audio and video downloader.",
	StartURL:        "/",
	Display:         "standalone",
	BackgroundColor: "#0a0a0f",
	ThemeColor:      "#0a0a0f",
	Orientation:     "portrait",
	Icons: []manifestIcon{
		{Src: "/icon.svg", Sizes: "any", Type: "image/svg+xml"},
	},
}

func handleManifest(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/manifest+json")
	_ = json.NewEncoder(w).Encode(manifest)
}
