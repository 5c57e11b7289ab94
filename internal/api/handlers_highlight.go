package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/highlighter/internal/parser"
	"github.com/dgallion1/highlighter/internal/pipeline"
	"github.com/dgallion1/highlighter/internal/report"
)

// downloadName is the attachment name of every annotated PDF.
const downloadName = "highlighted.pdf"

func (s *Server) handleHighlight(w http.ResponseWriter, r *http.Request) {
	// Limit total request size.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024) // extra 1MB for form overhead

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	filename := sanitizeFilename(header.Filename)
	if !parser.IsSupportedExtension(filename) {
		jsonError(w, fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)), http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		jsonError(w, "failed to read file", http.StatusInternalServerError)
		return
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
		return
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		jsonError(w, "file is not a PDF", http.StatusBadRequest)
		return
	}

	maxTokens := 0
	if v := r.FormValue("max_tokens"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			jsonError(w, "max_tokens must be a positive integer", http.StatusBadRequest)
			return
		}
		maxTokens = n
	}

	job := pipeline.NewJob(filename)
	job.ContentHash = pipeline.ContentHashHex(data)
	job.MaxTokens = maxTokens
	job.Dir = filepath.Join(s.workDir, job.ID)
	if err := os.MkdirAll(job.Dir, 0o700); err != nil {
		s.log.Error("create job dir", "error", err)
		jsonError(w, "failed to store upload", http.StatusInternalServerError)
		return
	}
	job.SrcPath = filepath.Join(job.Dir, filename)
	job.OutPath = pipeline.OutputPath(job.SrcPath, s.cfg.OutputSuffix)
	if err := os.WriteFile(job.SrcPath, data, 0o600); err != nil {
		os.RemoveAll(job.Dir)
		s.log.Error("write upload", "error", err)
		jsonError(w, "failed to store upload", http.StatusInternalServerError)
		return
	}

	if err := s.orchestrator.Submit(job); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{
		"job_id":   job.ID,
		"status":   job.Status,
		"poll_url": fmt.Sprintf("/api/jobs/%s/status", job.ID),
	})
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	snap := job.Snapshot()
	resp := map[string]any{
		"job_id":   snap.ID,
		"filename": snap.Filename,
		"status":   snap.Status,
		"phase":    snap.Phase,
		"progress": snap.Progress,
	}
	if snap.Status == pipeline.StatusCompleted {
		resp["download_url"] = fmt.Sprintf("/api/jobs/%s/download", snap.ID)
		resp["report_url"] = fmt.Sprintf("/api/jobs/%s/report", snap.ID)
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// completedJob writes an error response and returns nil unless the job
// exists and has finished.
func (s *Server) completedJob(w http.ResponseWriter, r *http.Request) *pipeline.Job {
	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return nil
	}
	if job.Result() == nil {
		jsonError(w, fmt.Sprintf("job is %s", job.Snapshot().Status), http.StatusConflict)
		return nil
	}
	return job
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	job := s.completedJob(w, r)
	if job == nil {
		return
	}
	f, err := os.Open(job.Result().Output)
	if err != nil {
		jsonError(w, "output no longer available", http.StatusGone)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", downloadName))
	io.Copy(w, f)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	job := s.completedJob(w, r)
	if job == nil {
		return
	}
	model := ""
	if s.points != nil {
		model = s.points.Model()
	}
	rep := report.FromResult(job.Result(), model)
	rep.Source = job.Filename
	rep.Output = downloadName

	var (
		data        []byte
		err         error
		contentType string
	)
	switch strings.ToLower(r.URL.Query().Get("format")) {
	case "", "html":
		data, err = rep.HTML()
		contentType = "text/html; charset=utf-8"
	case "md", "markdown":
		data = []byte(rep.Markdown())
		contentType = "text/markdown; charset=utf-8"
	case "json":
		data, err = rep.JSON()
		contentType = "application/json"
	case "yaml":
		data, err = rep.YAML()
		contentType = "application/yaml"
	case "docx":
		data, err = rep.Docx()
		contentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
		w.Header().Set("Content-Disposition", `attachment; filename="highlights.docx"`)
	default:
		jsonError(w, "format must be one of html, md, json, yaml, docx", http.StatusBadRequest)
		return
	}
	if err != nil {
		s.log.Error("render report", "job_id", job.ID, "error", err)
		jsonError(w, "failed to render report", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(name)
	// Remove any path separators that might have survived.
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}
