package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"log/slog"

	"dubmaster/internal/config"
	"dubmaster/internal/language"
	"dubmaster/internal/logging"
	"dubmaster/internal/pipeline"
	"dubmaster/internal/queue"
	"dubmaster/internal/services"
	"dubmaster/internal/tts"
)

const maxUploadMemory = 32 << 20

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:   strings.TrimSpace(cfg.Paths.APIBind),
		logger: logger,
		daemon: d,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/dub", srv.handleDub)
	mux.HandleFunc("/api/dub/upload", srv.handleDubUpload)
	mux.HandleFunc("/api/status/", srv.handleStatus)
	mux.HandleFunc("/api/download/", srv.handleDownload)
	mux.HandleFunc("/api/video-info", srv.handleVideoInfo)
	mux.HandleFunc("/api/health", srv.handleHealth)

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       5 * time.Minute,
		WriteTimeout:      10 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleDub(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var payload dubbingRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req, err := payload.toJobRequest()
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	job, err := s.daemon.CreateJobFromURL(r.Context(), req)
	if err != nil {
		if errors.Is(err, services.ErrValidation) {
			s.writeError(w, http.StatusBadRequest, services.Details(err).Message)
			return
		}
		message := "Failed to download video"
		if detail := services.Details(err).Message; detail != "" {
			message = fmt.Sprintf("Failed to download video: %s", detail)
		}
		s.writeError(w, http.StatusBadRequest, message)
		return
	}

	s.writeJSON(w, http.StatusOK, dubbingResponse{
		JobID:   job.ID,
		Status:  string(job.Status),
		Message: "Dubbing job started successfully",
	})
}

func (s *apiServer) handleDubUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid multipart payload")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	payload := dubbingRequest{
		SourceLang:         r.FormValue("source_lang"),
		TargetLang:         r.FormValue("target_lang"),
		VoiceGender:        r.FormValue("voice_gender"),
		PreserveBackground: parseFormBool(r.FormValue("preserve_background"), true),
		DubVolume:          parseFormInt(r.FormValue("dub_volume"), defaultDubVolume),
	}
	req, err := payload.toJobRequest()
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	job, err := s.daemon.CreateJobFromUpload(r.Context(), header.Filename, file, req)
	if err != nil {
		if errors.Is(err, services.ErrValidation) {
			s.writeError(w, http.StatusBadRequest, services.Details(err).Message)
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, dubbingResponse{
		JobID:   job.ID,
		Status:  string(job.Status),
		Message: "Dubbing job started successfully",
	})
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/status/")
	if id == "" || strings.Contains(id, "/") {
		s.writeError(w, http.StatusNotFound, "Job not found")
		return
	}
	job, err := s.daemon.store.GetByID(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if job == nil {
		s.writeError(w, http.StatusNotFound, "Job not found")
		return
	}
	s.writeJSON(w, http.StatusOK, statusResponseFromJob(job))
}

func (s *apiServer) handleDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/api/download/")
	id, sub, _ := strings.Cut(rest, "/")
	if id == "" {
		s.writeError(w, http.StatusNotFound, "Job not found")
		return
	}
	job, err := s.daemon.store.GetByID(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if job == nil {
		s.writeError(w, http.StatusNotFound, "Job not found")
		return
	}

	switch sub {
	case "":
		s.serveVideo(w, r, job)
	case "subtitles":
		s.serveSubtitles(w, r, job)
	default:
		s.writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *apiServer) serveVideo(w http.ResponseWriter, r *http.Request, job *queue.Job) {
	if !job.DownloadReady {
		s.writeError(w, http.StatusBadRequest, "Video not ready for download")
		return
	}
	path := job.FinalFile
	if path == "" {
		path = filepath.Join(job.WorkDir, pipeline.FileFinalVideo)
	}
	if !fileExists(path) {
		s.writeError(w, http.StatusNotFound, "Video file not found")
		return
	}
	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "dubbed_video_"+job.ID+".mp4"))
	http.ServeFile(w, r, path)
}

func (s *apiServer) serveSubtitles(w http.ResponseWriter, r *http.Request, job *queue.Job) {
	lang := strings.TrimSpace(r.URL.Query().Get("lang"))
	if lang == "" {
		lang = job.TargetLang
	}
	path := filepath.Join(job.WorkDir, pipeline.TranslatedSubtitles(lang))
	if !fileExists(path) {
		matches, _ := filepath.Glob(filepath.Join(job.WorkDir, "subtitles_*.srt"))
		if len(matches) == 0 {
			s.writeError(w, http.StatusNotFound, "Subtitles not found")
			return
		}
		path = matches[0]
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(path)))
	http.ServeFile(w, r, path)
}

func (s *apiServer) handleVideoInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var payload videoInfoRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(payload.URL) == "" {
		s.writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	info, err := s.daemon.fetcher.Info(r.Context(), payload.URL)
	if err != nil {
		s.writeJSON(w, http.StatusOK, videoInfoResponse{
			Success: false,
			Error:   services.Details(err).Message,
		})
		return
	}
	s.writeJSON(w, http.StatusOK, videoInfoResponse{
		Success:   true,
		Title:     info.Title,
		Duration:  formatDuration(info.Duration),
		Thumbnail: info.Thumbnail,
		Uploader:  info.Uploader,
	})
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	summary, err := s.daemon.store.Health(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	status := s.daemon.Status(r.Context())

	depStatuses := make([]dependencyStatus, 0, len(status.Dependencies))
	healthy := true
	for _, dep := range status.Dependencies {
		depStatuses = append(depStatuses, dependencyStatus{
			Name:      dep.Name,
			Command:   dep.Command,
			Optional:  dep.Optional,
			Available: dep.Available,
			Detail:    dep.Detail,
		})
		if !dep.Available && !dep.Optional {
			healthy = false
		}
	}

	state := "ok"
	if !healthy {
		state = "degraded"
	}
	s.writeJSON(w, http.StatusOK, healthResponse{
		Status:         state,
		VoiceCloning:   s.daemon.cfg.VoiceCloningAvailable(),
		VoiceLanguages: tts.VoiceLanguages(),
		Queue:          queueSummary(summary),
		Workflow:       workflowSummary(status.Workflow),
		Dependencies:   depStatuses,
	})
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger.With(logging.String(logging.FieldComponent, "api-server"))
	}
	return logging.NewNop()
}

func normalizeLang(code, fallback string) (string, error) {
	if strings.TrimSpace(code) == "" {
		code = fallback
	}
	normalized := language.Normalize(code)
	if normalized == "" {
		return "", fmt.Errorf("unsupported language code %q", code)
	}
	return normalized, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func formatDuration(seconds float64) string {
	if seconds <= 0 {
		return ""
	}
	total := int(seconds)
	h := total / 3600
	m := (total % 3600) / 60
	sec := total % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, sec)
	}
	return fmt.Sprintf("%d:%02d", m, sec)
}
