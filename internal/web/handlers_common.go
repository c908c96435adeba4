package web

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/JonMunkholm/ingest/internal/filegate"
)

// multipartSlack covers the multipart framing around the file body.
const multipartSlack = 1 << 20

// parseIntParam parses a positive integer query parameter.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}

func parseBoolParam(r *http.Request, name string) bool {
	b, _ := strconv.ParseBool(r.URL.Query().Get(name))
	return b
}

// filePart returns the multipart part named "file" without buffering the
// request body. Parts before it are skipped.
func (s *Server) filePart(w http.ResponseWriter, r *http.Request) (*multipart.Part, error) {
	if limit := s.cfg.Storage.MaxFileSize; limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit+multipartSlack)
	}

	mr, err := r.MultipartReader()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, errNoFile
		}
		if err != nil {
			var maxBytes *http.MaxBytesError
			if errors.As(err, &maxBytes) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %v", errBadRequest, err)
		}
		if part.FormName() == "file" && part.FileName() != "" {
			return part, nil
		}
		part.Close()
	}
}

// handleUpload stores an arbitrary file and returns its handle.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	part, err := s.filePart(w, r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer part.Close()

	stored, err := s.service.Upload(r.Context(), part, part.FileName())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, stored)
}

// handleDownload streams a generated file. With delete=true the file is
// removed once the response has been written.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	d, err := s.service.Download(r.URL.Query().Get("fileName"), parseBoolParam(r, "delete"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	serveDownload(w, r, d)
}

// handleDownloadResource streams an upload addressed by its logical URL.
func (s *Server) handleDownloadResource(w http.ResponseWriter, r *http.Request) {
	d, err := s.service.DownloadResource(r.URL.Query().Get("resource"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	serveDownload(w, r, d)
}

func (s *Server) handleDeleteResource(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteResource(r.URL.Query().Get("resource")); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func serveDownload(w http.ResponseWriter, r *http.Request, d *filegate.Download) {
	defer d.Close()
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": d.Name}))
	http.ServeContent(w, r, d.Name, d.ModTime, d)
}
