package app

import (
	"bytes"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/louisbranch/study.space/internal/platform/errors"
	"github.com/louisbranch/study.space/internal/platform/requestctx"
	"github.com/louisbranch/study.space/internal/services/study/domain"
	"github.com/louisbranch/study.space/internal/services/study/wire"
)

const defaultHistoryWindow = 7 * 24 * time.Hour

type sessionResponse struct {
	Session *wire.Session `json:"session"`
}

func sessionBody(sess domain.Session) sessionResponse {
	out := wire.NewSession(sess)
	return sessionResponse{Session: &out}
}

func (h *handlers) startSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.study.Start(r.Context(), requestctx.UserIDFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionBody(sess))
}

func (h *handlers) stopSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.study.Stop(r.Context(), requestctx.UserIDFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionBody(sess))
}

type breakRequest struct {
	Type string `json:"type"`
}

func (h *handlers) startBreak(w http.ResponseWriter, r *http.Request) {
	var req breakRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	sess, err := h.study.StartBreak(r.Context(), requestctx.UserIDFromContext(r.Context()), req.Type)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionBody(sess))
}

func (h *handlers) resumeSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.study.Resume(r.Context(), requestctx.UserIDFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionBody(sess))
}

func (h *handlers) currentSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.study.GetCurrent(r.Context(), requestctx.UserIDFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if sess == nil {
		writeJSON(w, http.StatusOK, sessionResponse{})
		return
	}
	writeJSON(w, http.StatusOK, sessionBody(*sess))
}

func (h *handlers) analyze(w http.ResponseWriter, r *http.Request) {
	image, err := h.readImage(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	result, err := h.study.Analyze(r.Context(), requestctx.UserIDFromContext(r.Context()), image)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wire.NewAnalysis(result))
}

// readImage accepts a multipart form with an "image" file or a raw image
// body.
func (h *handlers) readImage(w http.ResponseWriter, r *http.Request) (domain.Image, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxImageBytes)
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return domain.Image{}, invalid("content type is required")
	}

	switch {
	case mediaType == "multipart/form-data":
		if err := r.ParseMultipartForm(h.maxImageBytes); err != nil {
			return domain.Image{}, imageReadError(err)
		}
		file, header, err := r.FormFile("image")
		if errors.Is(err, http.ErrMissingFile) {
			return domain.Image{}, domain.ErrImageMissing
		}
		if err != nil {
			return domain.Image{}, imageReadError(err)
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			return domain.Image{}, imageReadError(err)
		}
		partType := header.Header.Get("Content-Type")
		if partType == "" || partType == "application/octet-stream" {
			partType = http.DetectContentType(data)
		}
		return checkImage(partType, data)
	case strings.HasPrefix(mediaType, "image/"):
		var buf bytes.Buffer
		if _, err := buf.ReadFrom(r.Body); err != nil {
			return domain.Image{}, imageReadError(err)
		}
		return checkImage(mediaType, buf.Bytes())
	default:
		return domain.Image{}, invalid("image must be multipart form data or an image body")
	}
}

func checkImage(mediaType string, data []byte) (domain.Image, error) {
	if len(data) == 0 {
		return domain.Image{}, domain.ErrImageMissing
	}
	mediaType = strings.TrimSpace(strings.SplitN(mediaType, ";", 2)[0])
	switch mediaType {
	case "image/jpeg", "image/png", "image/webp", "image/gif":
		return domain.Image{MediaType: mediaType, Data: data}, nil
	default:
		return domain.Image{}, invalid("unsupported image type " + mediaType)
	}
}

func imageReadError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return apperrors.WithMetadata(apperrors.CodeValidationFailed, "image is too large", map[string]string{"limit_bytes": formatInt(tooLarge.Limit)})
	}
	return invalid("read image: " + err.Error())
}

func (h *handlers) listSessions(w http.ResponseWriter, r *http.Request) {
	to := h.study.Now()
	from := to.Add(-defaultHistoryWindow)
	query := r.URL.Query()
	var err error
	if raw := query.Get("from"); raw != "" {
		if from, err = time.Parse(time.RFC3339, raw); err != nil {
			writeError(w, r, invalid("from must be an RFC 3339 timestamp"))
			return
		}
	}
	if raw := query.Get("to"); raw != "" {
		if to, err = time.Parse(time.RFC3339, raw); err != nil {
			writeError(w, r, invalid("to must be an RFC 3339 timestamp"))
			return
		}
	}
	sessions, err := h.study.ListSessions(r.Context(), requestctx.UserIDFromContext(r.Context()), from, to)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": wire.NewSessions(sessions)})
}
