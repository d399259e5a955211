package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/MokshankSoni-SDP/rag-best-acc/internal/document"
	"github.com/MokshankSoni-SDP/rag-best-acc/internal/parser"
	"github.com/MokshankSoni-SDP/rag-best-acc/internal/pipeline"
)

// formOverhead is allowed on top of MaxUploadBytes for multipart framing.
const formOverhead = 1 << 20

type ingestResult struct {
	Filename string             `json:"filename"`
	JobID    string             `json:"job_id,omitempty"`
	DocID    string             `json:"doc_id,omitempty"`
	Status   pipeline.JobStatus `json:"status,omitempty"`
	PollURL  string             `json:"poll_url,omitempty"`
	Error    string             `json:"error,omitempty"`
}

// uploadError carries the HTTP status for a rejected upload.
type uploadError struct {
	code int
	msg  string
}

func (e *uploadError) Error() string { return e.msg }

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+formOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["file"]
	if len(files) == 0 {
		jsonError(w, "file is required", http.StatusBadRequest)
		return
	}
	force, _ := strconv.ParseBool(r.FormValue("force"))

	res, err := s.submitUpload(files[0], strings.TrimSpace(r.FormValue("doc_id")), r.FormValue("title"), force)
	if err != nil {
		code := http.StatusInternalServerError
		var ue *uploadError
		if errors.As(err, &ue) {
			code = ue.code
		}
		jsonError(w, err.Error(), code)
		return
	}
	writeJSON(w, http.StatusAccepted, res)
}

func (s *Server) handleBatchIngest(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10*(s.cfg.MaxUploadBytes+formOverhead))
	if err := r.ParseMultipartForm(64 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		jsonError(w, "at least one file is required", http.StatusBadRequest)
		return
	}
	force, _ := strconv.ParseBool(r.FormValue("force"))

	results := make([]ingestResult, 0, len(files))
	for _, fh := range files {
		res, err := s.submitUpload(fh, "", "", force)
		if err != nil {
			res = ingestResult{Filename: sanitizeFilename(fh.Filename), Error: err.Error()}
		}
		results = append(results, res)
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"jobs": results})
}

// submitUpload reads one uploaded file and queues it. An empty docID is
// derived from the file content.
func (s *Server) submitUpload(fh *multipart.FileHeader, docID, title string, force bool) (ingestResult, error) {
	filename := sanitizeFilename(fh.Filename)
	if !parser.IsSupportedExtension(filename) {
		return ingestResult{}, &uploadError{http.StatusBadRequest, fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename))}
	}
	data, err := s.readUpload(fh)
	if err != nil {
		return ingestResult{}, err
	}
	if docID == "" {
		docID = document.DocumentID(data)
	}

	job := pipeline.NewJob(docID, filename, title, force, data)
	if err := s.orchestrator.Submit(job); err != nil {
		code := http.StatusServiceUnavailable
		if errors.Is(err, pipeline.ErrDocumentInFlight) {
			code = http.StatusConflict
		}
		return ingestResult{}, &uploadError{code, err.Error()}
	}
	return ingestResult{
		Filename: filename,
		JobID:    job.ID,
		DocID:    job.DocID,
		Status:   pipeline.StatusQueued,
		PollURL:  fmt.Sprintf("/api/ingest/%s/status", job.ID),
	}, nil
}

func (s *Server) handleIngestStatus(w http.ResponseWriter, r *http.Request) {
	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job.Snapshot())
}

// handleChunkPreview parses and chunks an upload without indexing it.
func (s *Server) handleChunkPreview(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+formOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["file"]
	if len(files) == 0 {
		jsonError(w, "file is required", http.StatusBadRequest)
		return
	}
	filename := sanitizeFilename(files[0].Filename)
	p, err := parser.ForFile(filename)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	data, err := s.readUpload(files[0])
	if err != nil {
		var ue *uploadError
		if errors.As(err, &ue) {
			jsonError(w, ue.msg, ue.code)
			return
		}
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	doc, err := p.Parse(bytes.NewReader(data), filename)
	if err != nil {
		jsonError(w, "parse failed: "+err.Error(), http.StatusUnprocessableEntity)
		return
	}
	doc.SetID(document.DocumentID(data))

	chunks := s.app.Chunker.Chunk(doc)
	if chunks == nil {
		chunks = []document.Chunk{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"doc_id": doc.ID,
		"title":  doc.Title,
		"lines":  len(doc.Lines),
		"chunks": chunks,
	})
}

func (s *Server) readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, &uploadError{http.StatusBadRequest, "failed to open file"}
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, s.cfg.MaxUploadBytes+1))
	if err != nil {
		return nil, &uploadError{http.StatusInternalServerError, "failed to read file"}
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		return nil, &uploadError{http.StatusRequestEntityTooLarge, fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes)}
	}
	return data, nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// sanitizeFilename keeps only a safe base name.
func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	name = strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(name)
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}
