package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"contractextract/internal/analyzer"
	"contractextract/internal/doctext"
	"contractextract/internal/report"
)

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	// Limit total request size.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024) // extra 1MB for form overhead

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	in := analyzer.Input{
		PackID: r.FormValue("pack_id"),
		Text:   r.FormValue("text"),
	}

	if in.Text == "" {
		file, header, err := r.FormFile("file")
		if err != nil {
			jsonError(w, "file or text is required: "+err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()

		filename := sanitizeFilename(header.Filename)
		if !doctext.IsSupportedExtension(filename) {
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
		in.Name = filename
		in.Data = data
	} else {
		in.Name = sanitizeFilename(r.FormValue("name"))
		if in.Name == "" || in.Name == "." {
			in.Name = "document.txt"
		}
	}

	rep, err := s.analyzer.Analyze(r.Context(), in)
	if err != nil {
		if strings.Contains(err.Error(), "unknown rule pack") {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
		jsonError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	switch r.URL.Query().Get("format") {
	case "markdown":
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		io.WriteString(w, report.RenderMarkdown(rep))
	case "html":
		html, err := report.RenderHTML(rep)
		if err != nil {
			jsonError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		io.WriteString(w, html)
	default:
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(rep)
	}
}

func (s *Server) handleAnalyzeBatch(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes*10+10*1024*1024)

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
	packID := r.FormValue("pack_id")

	var inputs []analyzer.Input
	var rejected []analyzer.Outcome
	for _, fh := range files {
		filename := sanitizeFilename(fh.Filename)
		if !doctext.IsSupportedExtension(filename) {
			rejected = append(rejected, analyzer.Outcome{
				Name: filename,
				Err:  fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)),
			})
			continue
		}

		f, err := fh.Open()
		if err != nil {
			rejected = append(rejected, analyzer.Outcome{Name: filename, Err: "failed to open file"})
			continue
		}
		data, err := io.ReadAll(io.LimitReader(f, s.cfg.MaxUploadBytes+1))
		f.Close()
		if err != nil || int64(len(data)) > s.cfg.MaxUploadBytes {
			rejected = append(rejected, analyzer.Outcome{Name: filename, Err: "file too large or read error"})
			continue
		}

		inputs = append(inputs, analyzer.Input{Name: filename, Data: data, PackID: packID})
	}

	outcomes := s.analyzer.AnalyzeBatch(r.Context(), inputs)
	outcomes = append(outcomes, rejected...)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"results": outcomes})
}

func (s *Server) handleListPacks(w http.ResponseWriter, r *http.Request) {
	type packInfo struct {
		ID           string   `json:"id"`
		DocTypeNames []string `json:"doc_type_names"`
		CustomRules  int      `json:"custom_rules"`
		Fields       int      `json:"fields"`
	}
	packs := s.analyzer.Packs()
	out := make([]packInfo, 0, len(packs))
	for _, p := range packs {
		out = append(out, packInfo{
			ID:           p.ID,
			DocTypeNames: p.Policy.DocTypeNames,
			CustomRules:  len(p.Policy.CustomRules),
			Fields:       len(p.Policy.FieldSchema),
		})
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"packs": out})
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	return filepath.Base(strings.TrimSpace(name))
}
