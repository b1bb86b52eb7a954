// Package recording saves children's audio attempts to disk and indexes
// them in the store so they can be played back later.
package recording

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/MrWong99/lettersprout/internal/speech"
	"github.com/MrWong99/lettersprout/internal/store"
	"github.com/MrWong99/lettersprout/pkg/audio"
)

// ListLimit caps how many recordings [Service.List] returns.
const ListLimit = 50

// ErrInvalidScore is returned for a score outside 0..3.
var ErrInvalidScore = errors.New("recording: invalid score")

// Service stores recording files under a directory and their metadata in
// a [store.Store].
type Service struct {
	store     store.Store
	dir       string
	urlPrefix string
}

// New creates a Service writing into dir, creating it if needed. File URLs
// are built as urlPrefix + "/" + file name.
func New(st store.Store, dir, urlPrefix string) (*Service, error) {
	if st == nil {
		return nil, errors.New("recording: store must not be nil")
	}
	if dir == "" {
		return nil, errors.New("recording: directory must not be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("recording: create dir: %w", err)
	}
	return &Service{
		store:     st,
		dir:       dir,
		urlPrefix: strings.TrimRight(urlPrefix, "/"),
	}, nil
}

// Dir returns the directory recordings are written to.
func (s *Service) Dir() string { return s.dir }

// Save writes data under a random name that keeps the sniffed container's
// extension, then records it for userID. The file is removed again if the
// metadata cannot be stored.
func (s *Service) Save(ctx context.Context, userID int64, letter string, score int, data []byte) (store.Recording, error) {
	target, err := speech.LookupTarget(letter)
	if err != nil {
		return store.Recording{}, err
	}
	if len(data) == 0 {
		return store.Recording{}, speech.ErrEmptyAudio
	}
	if score < 0 || score > 3 {
		return store.Recording{}, ErrInvalidScore
	}

	name := uuid.NewString() + audio.DetectContainer(data).Ext()
	path := filepath.Join(s.dir, name)
	if err := writeFile(path, data); err != nil {
		return store.Recording{}, fmt.Errorf("recording: write %s: %w", name, err)
	}

	rec, err := s.store.CreateRecording(ctx, store.Recording{
		UserID:   userID,
		LetterID: target.ID(),
		Letter:   target.Letter,
		FilePath: path,
		FileURL:  s.urlPrefix + "/" + name,
		Score:    score,
	})
	if err != nil {
		_ = os.Remove(path)
		return store.Recording{}, fmt.Errorf("recording: save: %w", err)
	}
	return rec, nil
}

// List returns the user's latest recordings, newest first.
func (s *Service) List(ctx context.Context, userID int64) ([]store.Recording, error) {
	recs, err := s.store.ListRecordings(ctx, userID, ListLimit)
	if err != nil {
		return nil, fmt.Errorf("recording: list: %w", err)
	}
	return recs, nil
}

// writeFile writes through a temp file and renames it so readers never see
// a partial clip.
func writeFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
