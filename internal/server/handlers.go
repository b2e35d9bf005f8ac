package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/soundpilot/soundpilot/internal/classify"
	"github.com/soundpilot/soundpilot/pkg/audio"
)

// errorBody is the JSON shape of every non-2xx response.
type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	writeJSON(w, status, errorBody{Error: err.Error(), Code: code})
}

// writeServiceError maps the service's sentinel errors to status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, classify.ErrNoModel):
		writeError(w, http.StatusNotFound, "no_model", err)
	case errors.Is(err, classify.ErrNoProfile):
		writeError(w, http.StatusNotFound, "no_profile", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal", err)
	}
}

// decodeUpload reads one multipart WAV part into a waveform at the server's
// processing rate.
func (s *Server) decodeUpload(fh *multipart.FileHeader) (audio.Waveform, error) {
	f, err := fh.Open()
	if err != nil {
		return audio.Waveform{}, fmt.Errorf("open upload %q: %w", fh.Filename, err)
	}
	defer f.Close()

	w, err := audio.DecodeWAV(f, s.rate)
	if err != nil {
		return audio.Waveform{}, fmt.Errorf("upload %q: %w", fh.Filename, err)
	}
	return w, nil
}

// uploadedFiles collects the audio parts of a multipart request, accepting
// both repeated "file" parts and any other field name carrying files.
func uploadedFiles(r *http.Request) []*multipart.FileHeader {
	if r.MultipartForm == nil {
		return nil
	}
	var out []*multipart.FileHeader
	for _, fhs := range r.MultipartForm.File {
		out = append(out, fhs...)
	}
	return out
}

// handleEnroll stores uploaded WAV captures as examples of a label and
// retrains. POST /v1/users/{user}/labels/{label}/examples
func (s *Server) handleEnroll(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "bad_multipart", fmt.Errorf("parse multipart form: %w", err))
		return
	}
	files := uploadedFiles(r)
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "no_audio", errors.New("no audio files in upload"))
		return
	}

	sources := make([]audio.Source, 0, len(files))
	for _, fh := range files {
		wave, err := s.decodeUpload(fh)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_audio", err)
			return
		}
		sources = append(sources, audio.MemorySource{Wave: wave})
	}

	actionID := r.FormValue("action_id")
	res, err := s.svc.Enroll(r.Context(), vars["user"], vars["label"], actionID, sources)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	s.status.set(fmt.Sprintf("enrolled %d example(s) of %s/%s", len(res.Samples), res.User, res.Label))
	writeJSON(w, http.StatusOK, res)
}

// handleClassify decides the command for one uploaded capture and, when
// requested with ?trigger=true, fires the bound action.
// POST /v1/users/{user}/classify
func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	wave, err := s.readCapture(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_audio", err)
		return
	}

	cls, err := s.svc.Classify(r.Context(), vars["user"], wave)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	s.status.set(classifyStatus(cls))

	type response struct {
		classify.Classification
		Triggered bool   `json:"triggered"`
		TrigErr   string `json:"trigger_error,omitempty"`
	}
	resp := response{Classification: cls}

	if r.URL.Query().Get("trigger") == "true" && cls.ActionID != "" {
		if err := s.trig.Fire(r.Context(), vars["user"], cls.Label, cls.ActionID); err != nil {
			slog.Error("trigger failed", "user", vars["user"], "action_id", cls.ActionID, "err", err)
			resp.TrigErr = err.Error()
		} else {
			resp.Triggered = true
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// readCapture accepts either a multipart upload (first file part) or a raw
// WAV request body.
func (s *Server) readCapture(r *http.Request) (audio.Waveform, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			return audio.Waveform{}, fmt.Errorf("parse multipart form: %w", err)
		}
		files := uploadedFiles(r)
		if len(files) == 0 {
			return audio.Waveform{}, errors.New("no audio file in upload")
		}
		return s.decodeUpload(files[0])
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxUploadBytes))
	if err != nil {
		return audio.Waveform{}, fmt.Errorf("read request body: %w", err)
	}
	if len(data) == 0 {
		return audio.Waveform{}, errors.New("empty request body")
	}
	return audio.DecodeWAV(bytes.NewReader(data), s.rate)
}

func classifyStatus(cls classify.Classification) string {
	if cls.Label == classify.LabelUnknown {
		return "no confident match"
	}
	if len(cls.Ranked) > 0 {
		return fmt.Sprintf("matched %s (%.2f)", cls.Label, cls.Ranked[0].Proba)
	}
	return "matched " + cls.Label
}

// handleTrain retrains a user's model from the stored examples.
// POST /v1/users/{user}/train
func (s *Server) handleTrain(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	res, err := s.svc.Train(r.Context(), vars["user"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	s.status.set(fmt.Sprintf("training %s: %s", vars["user"], res.Status))
	writeJSON(w, http.StatusOK, res)
}

// handleUsers lists all users with stored profiles. GET /v1/users
func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.svc.Users(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"users": users})
}

// handleLabels reports a user's labels, example counts, and bindings.
// GET /v1/users/{user}/labels
func (s *Server) handleLabels(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	info, err := s.svc.Info(r.Context(), vars["user"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// handleDeleteLabel removes a label and retrains.
// DELETE /v1/users/{user}/labels/{label}
func (s *Server) handleDeleteLabel(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	res, err := s.svc.DeleteLabel(r.Context(), vars["user"], vars["label"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	s.status.set(fmt.Sprintf("deleted %s/%s", res.User, res.Label))
	writeJSON(w, http.StatusOK, res)
}

// handleReset deletes a user's profile, audio, and model.
// DELETE /v1/users/{user}
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	if err := s.svc.Reset(r.Context(), vars["user"]); err != nil {
		writeServiceError(w, err)
		return
	}
	s.status.set("reset " + vars["user"])
	w.WriteHeader(http.StatusNoContent)
}

// handleStatus reports the most recent pipeline outcome. GET /status
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	text, at := s.status.get()
	writeJSON(w, http.StatusOK, struct {
		Status string    `json:"status"`
		At     time.Time `json:"at"`
	}{text, at})
}
