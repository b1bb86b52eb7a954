package api

import (
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/MrWong99/lettersprout/internal/observe"
	"github.com/MrWong99/lettersprout/internal/recording"
	"github.com/MrWong99/lettersprout/internal/speech"
	"github.com/MrWong99/lettersprout/internal/store"
)

// multipartOverhead is the allowance for form fields and part headers on
// top of the audio limit.
const multipartOverhead = 64 << 10

var errAudioTooLarge = errors.New("audio file too large")

// readUpload parses a multipart form and returns its letter field and audio
// file. Bodies over the audio limit fail with errAudioTooLarge.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (letter string, data []byte, err error) {
	limit := s.maxAudio.Load()
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)
	if err := r.ParseMultipartForm(limit + multipartOverhead); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return "", nil, errAudioTooLarge
		}
		return "", nil, err
	}

	f, _, err := r.FormFile("audio")
	if err != nil {
		return "", nil, err
	}
	defer f.Close()

	data, err = io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return "", nil, err
	}
	if int64(len(data)) > limit {
		return "", nil, errAudioTooLarge
	}
	return r.FormValue("letter"), data, nil
}

// writeUploadError answers a failed readUpload call.
func writeUploadError(w http.ResponseWriter, err error) {
	if errors.Is(err, errAudioTooLarge) {
		writeError(w, http.StatusBadRequest, errAudioTooLarge.Error())
		return
	}
	writeError(w, http.StatusBadRequest, "multipart form with letter and audio fields required")
}

type evaluationDetails struct {
	RecognizedText string  `json:"recognized_text"`
	Confidence     float64 `json:"confidence"`
	Matched        bool    `json:"matched"`
	Exact          bool    `json:"exact"`
	Rule           string  `json:"rule"`
	Similarity     float64 `json:"similarity"`
	TargetLetter   string  `json:"target_letter"`
	TargetWord     string  `json:"target_word"`
	AudioLength    int     `json:"audio_length"`
}

type evaluationResponse struct {
	Score    int               `json:"score"`
	Accuracy float64           `json:"accuracy"`
	Feedback string            `json:"feedback"`
	Details  evaluationDetails `json:"details"`
}

func round3(f float64) float64 { return math.Round(f*1000) / 1000 }

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request, _ store.User) {
	letter, data, err := s.readUpload(w, r)
	if err != nil {
		writeUploadError(w, err)
		return
	}

	res, err := s.evaluator.Load().Evaluate(r.Context(), data, letter)
	switch {
	case errors.Is(err, speech.ErrInvalidTarget):
		writeError(w, http.StatusBadRequest, "please provide a single letter A-Z")
		return
	case errors.Is(err, speech.ErrEmptyAudio):
		writeError(w, http.StatusBadRequest, "audio file is empty")
		return
	case errors.Is(err, speech.ErrRecognitionFailed):
		observe.Logger(r.Context()).Warn("speech recognition failed", "letter", letter, "err", err)
		writeError(w, http.StatusServiceUnavailable, "speech recognition is unavailable, please try again")
		return
	case err != nil:
		internalError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, evaluationResponse{
		Score:    res.Stars,
		Accuracy: res.Accuracy,
		Feedback: res.Feedback,
		Details: evaluationDetails{
			RecognizedText: res.RecognizedText,
			Confidence:     round3(res.Confidence),
			Matched:        res.Matched,
			Exact:          res.Exact,
			Rule:           string(res.Rule),
			Similarity:     round3(res.Similarity),
			TargetLetter:   res.Target.Letter,
			TargetWord:     res.Target.Word,
			AudioLength:    res.AudioBytes,
		},
	})
}

type recordingResponse struct {
	ID        int64     `json:"id"`
	LetterID  int       `json:"letter_id"`
	Letter    string    `json:"letter"`
	FileURL   string    `json:"file_url"`
	Score     int       `json:"score"`
	CreatedAt time.Time `json:"created_at"`
}

func toRecordingResponse(rec store.Recording) recordingResponse {
	return recordingResponse{
		ID:        rec.ID,
		LetterID:  rec.LetterID,
		Letter:    rec.Letter,
		FileURL:   rec.FileURL,
		Score:     rec.Score,
		CreatedAt: rec.CreatedAt,
	}
}

func (s *Server) handleSaveRecording(w http.ResponseWriter, r *http.Request, u store.User) {
	letter, data, err := s.readUpload(w, r)
	if err != nil {
		writeUploadError(w, err)
		return
	}
	score := 0
	if v := r.FormValue("score"); v != "" {
		if score, err = strconv.Atoi(v); err != nil {
			writeError(w, http.StatusBadRequest, "score must be an integer")
			return
		}
	}

	rec, err := s.recordings.Save(r.Context(), u.ID, letter, score, data)
	switch {
	case errors.Is(err, speech.ErrInvalidTarget):
		writeError(w, http.StatusBadRequest, "please provide a single letter A-Z")
		return
	case errors.Is(err, speech.ErrEmptyAudio):
		writeError(w, http.StatusBadRequest, "audio file is empty")
		return
	case errors.Is(err, recording.ErrInvalidScore):
		writeError(w, http.StatusBadRequest, "score must be between 0 and 3")
		return
	case err != nil:
		internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordingResponse(rec))
}

func (s *Server) handleListRecordings(w http.ResponseWriter, r *http.Request, u store.User) {
	recs, err := s.recordings.List(r.Context(), u.ID)
	if err != nil {
		internalError(w, r, err)
		return
	}
	out := make([]recordingResponse, len(recs))
	for i, rec := range recs {
		out[i] = toRecordingResponse(rec)
	}
	writeJSON(w, http.StatusOK, out)
}
