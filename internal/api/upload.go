package api

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"

	"go.uber.org/zap"

	"github.com/dmarais/umsindo/internal/ingest"
)

// maxTextField caps the artist/title parts; anything longer is truncated by
// the pipeline's sanitizer anyway.
const maxTextField = 4 << 10

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxFileBytes+1024)
	mr, err := r.MultipartReader()
	if err != nil {
		respondError(w, http.StatusBadRequest, "expecting multipart form")
		return
	}

	form, err := s.readForm(mr)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if form.tempPath != "" {
		// The pipeline either moves the file into the blob store or rejects
		// it; either way the intake temp must not linger.
		defer os.Remove(form.tempPath)
	}

	rec, err := s.pipeline.Ingest(r.Context(), ingest.Request{
		TempPath:     form.tempPath,
		OriginalName: form.fileName,
		Artist:       form.artist,
		Title:        form.title,
	})
	if err != nil {
		s.respondIngestError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, rec)
}

func (s *Server) respondIngestError(w http.ResponseWriter, err error) {
	var validation *ingest.ValidationError
	switch {
	case errors.Is(err, ingest.ErrNoFile):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &validation):
		respondError(w, http.StatusBadRequest, validation.Error())
	default:
		s.logger.Error("ingest failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "upload failed")
	}
}

// uploadForm is the parsed intake: one streamed file plus two text fields.
type uploadForm struct {
	tempPath string
	fileName string
	artist   string
	title    string
}

// readForm walks the multipart stream, spooling the file part to a temp file
// and collecting the text fields. Only the first file part is kept.
func (s *Server) readForm(mr *multipart.Reader) (*uploadForm, error) {
	form := &uploadForm{}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read upload: %w", err)
		}
		switch part.FormName() {
		case "artist":
			form.artist, err = readTextPart(part)
		case "title":
			form.title, err = readTextPart(part)
		case "file":
			if form.tempPath == "" {
				form.tempPath, form.fileName, err = s.spoolFilePart(part)
			}
		}
		part.Close()
		if err != nil {
			if form.tempPath != "" {
				os.Remove(form.tempPath)
			}
			return nil, err
		}
	}
	return form, nil
}

func readTextPart(part *multipart.Part) (string, error) {
	data, err := io.ReadAll(io.LimitReader(part, maxTextField))
	if err != nil {
		return "", fmt.Errorf("read form field: %w", err)
	}
	return string(data), nil
}

// spoolFilePart streams the file part to a temp file owned by this request.
func (s *Server) spoolFilePart(part *multipart.Part) (string, string, error) {
	tmp, err := os.CreateTemp("", "umsindo-upload-*")
	if err != nil {
		return "", "", fmt.Errorf("create temp file: %w", err)
	}
	written, err := io.Copy(tmp, part)
	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return "", "", fmt.Errorf("write temp file: %w", err)
	}
	if written == 0 {
		os.Remove(tmp.Name())
		return "", "", errors.New("empty file")
	}
	return tmp.Name(), part.FileName(), nil
}
