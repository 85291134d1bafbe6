// Package voicestore persists and enumerates voice identities on the
// filesystem, one directory per voice under the configured root.
//
// Layout, which downstream consumers depend on:
//
//	voices/<id>/sample.wav             Kokoro record (mono, 24 kHz)
//	voices/<id>/speaker_embedding.pt   Zonos record (+ optional sample.wav)
//	voices/zonos_default/...           the Zonos default-voice slot
package voicestore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	gaudio "github.com/go-audio/audio"
	"github.com/book-expert/logger"

	"github.com/book-expert/voice-agent/internal/audio"
	"github.com/book-expert/voice-agent/internal/core"
)

// File names inside a voice record directory.
const (
	SampleFileName    = "sample.wav"
	EmbeddingFileName = "speaker_embedding.pt"
)

// DefaultVoiceID is the well-known identifier of the Zonos default-voice
// slot. At most one default exists; promotion overwrites it.
const DefaultVoiceID = "zonos_default"

// Identifier prefixes per model namespace.
const (
	kokoroPrefix = "kokoro_"
	zonosPrefix  = "zonos_"
)

const (
	filePermissions = 0o600
	dirPermissions  = 0o750
)

// ErrVoiceIDEmpty indicates a record operation without an identifier.
var ErrVoiceIDEmpty = errors.New("voice id cannot be empty")

// Record is a resolved voice identity. SamplePath or EmbeddingPath may be
// empty depending on the model namespace the record belongs to.
type Record struct {
	VoiceID       string
	Dir           string
	SamplePath    string
	EmbeddingPath string
}

// Store is the filesystem-backed voice registry. Writes to the same
// identifier are serialized per id; the externally observable contract
// stays last-write-wins.
type Store struct {
	root  string
	log   *logger.Logger
	locks sync.Map
}

// New creates a store rooted at the given directory, creating it if
// needed.
func New(root string, log *logger.Logger) (*Store, error) {
	err := os.MkdirAll(root, dirPermissions)
	if err != nil {
		return nil, fmt.Errorf("failed to create voices directory %q: %w", root, err)
	}

	return &Store{root: root, log: log, locks: sync.Map{}}, nil
}

// Root returns the store's base directory.
func (s *Store) Root() string {
	return s.root
}

// DeriveVoiceID builds the identifier for a clone: the explicit id when
// given, otherwise the model prefix plus the sanitized filename stem of
// the sample.
func DeriveVoiceID(model core.ModelType, samplePath, explicit string) string {
	if explicit != "" {
		return sanitize(explicit)
	}

	stem := strings.TrimSuffix(filepath.Base(samplePath), filepath.Ext(samplePath))

	return prefixFor(model) + sanitize(stem)
}

// PutSample writes a normalized reference sample as the record for
// voiceID, overwriting any prior record with that id.
func (s *Store) PutSample(voiceID string, buf *gaudio.IntBuffer) (Record, error) {
	if voiceID == "" {
		return Record{}, ErrVoiceIDEmpty
	}

	unlock := s.lock(voiceID)
	defer unlock()

	dir := filepath.Join(s.root, voiceID)
	samplePath := filepath.Join(dir, SampleFileName)

	err := audio.WriteWAVFile(samplePath, buf)
	if err != nil {
		return Record{}, fmt.Errorf("failed to store sample for voice %q: %w", voiceID, err)
	}

	s.log.Info("Stored voice sample: %s", samplePath)

	return Record{
		VoiceID:       voiceID,
		Dir:           dir,
		SamplePath:    samplePath,
		EmbeddingPath: "",
	}, nil
}

// PutEmbedding writes a serialized speaker embedding (and an optional
// reference copy of the sample) as the record for voiceID. When
// makeDefault is set the embedding is additionally copied into the
// default-voice slot, replacing whatever was there.
func (s *Store) PutEmbedding(
	voiceID string,
	embedding []byte,
	sampleWAV []byte,
	makeDefault bool,
) (Record, error) {
	if voiceID == "" {
		return Record{}, ErrVoiceIDEmpty
	}

	unlock := s.lock(voiceID)
	defer unlock()

	dir := filepath.Join(s.root, voiceID)

	mkdirErr := os.MkdirAll(dir, dirPermissions)
	if mkdirErr != nil {
		return Record{}, fmt.Errorf("failed to create voice directory %q: %w", dir, mkdirErr)
	}

	embeddingPath := filepath.Join(dir, EmbeddingFileName)

	writeErr := os.WriteFile(embeddingPath, embedding, filePermissions)
	if writeErr != nil {
		return Record{}, fmt.Errorf(
			"failed to store embedding for voice %q: %w", voiceID, writeErr,
		)
	}

	record := Record{
		VoiceID:       voiceID,
		Dir:           dir,
		SamplePath:    "",
		EmbeddingPath: embeddingPath,
	}

	if len(sampleWAV) > 0 {
		samplePath := filepath.Join(dir, SampleFileName)

		sampleErr := os.WriteFile(samplePath, sampleWAV, filePermissions)
		if sampleErr != nil {
			return Record{}, fmt.Errorf(
				"failed to store reference sample for voice %q: %w", voiceID, sampleErr,
			)
		}

		record.SamplePath = samplePath
	}

	if makeDefault && voiceID != DefaultVoiceID {
		defaultErr := s.writeDefault(embedding)
		if defaultErr != nil {
			return Record{}, defaultErr
		}

		s.log.Info("Promoted voice %q to the default slot", voiceID)
	}

	s.log.Info("Stored voice embedding: %s", embeddingPath)

	return record, nil
}

// Resolve looks up a voice record in the given model namespace. A record
// missing its backing file (sample for Kokoro, embedding for Zonos) is
// treated as absent.
func (s *Store) Resolve(model core.ModelType, voiceID string) (Record, error) {
	if voiceID == "" {
		return Record{}, ErrVoiceIDEmpty
	}

	dir := filepath.Join(s.root, voiceID)

	info, statErr := os.Stat(dir)
	if statErr != nil || !info.IsDir() {
		return Record{}, fmt.Errorf("%w: %q", core.ErrVoiceNotFound, voiceID)
	}

	record := Record{
		VoiceID:       voiceID,
		Dir:           dir,
		SamplePath:    existingFile(dir, SampleFileName),
		EmbeddingPath: existingFile(dir, EmbeddingFileName),
	}

	switch model {
	case core.ModelKokoro:
		if record.SamplePath == "" {
			return Record{}, fmt.Errorf(
				"%w: %q has no stored sample", core.ErrVoiceNotFound, voiceID,
			)
		}
	case core.ModelZonos:
		if record.EmbeddingPath == "" {
			return Record{}, fmt.Errorf(
				"%w: %q has no speaker embedding", core.ErrVoiceNotFound, voiceID,
			)
		}
	default:
		return Record{}, fmt.Errorf("%w: %q", core.ErrUnsupportedModel, string(model))
	}

	return record, nil
}

// ListCloned enumerates the valid cloned-voice identifiers in the given
// model namespace. Order is filesystem order; the default slot is never
// listed as a clone.
func (s *Store) ListCloned(model core.ModelType) ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to read voices directory %q: %w", s.root, err)
	}

	prefix := prefixFor(model)
	cloned := make([]string, 0, len(entries))

	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() || !strings.HasPrefix(name, prefix) {
			continue
		}

		if name == DefaultVoiceID {
			continue
		}

		if model == core.ModelZonos &&
			existingFile(filepath.Join(s.root, name), EmbeddingFileName) == "" {
			continue
		}

		cloned = append(cloned, name)
	}

	return cloned, nil
}

// HasDefault reports whether the Zonos default-voice slot holds a valid
// embedding.
func (s *Store) HasDefault() bool {
	return existingFile(filepath.Join(s.root, DefaultVoiceID), EmbeddingFileName) != ""
}

// DefaultEmbeddingPath returns the path of the default slot's embedding
// file, or core.ErrNoVoiceAvailable when the slot is empty.
func (s *Store) DefaultEmbeddingPath() (string, error) {
	path := existingFile(filepath.Join(s.root, DefaultVoiceID), EmbeddingFileName)
	if path == "" {
		return "", core.ErrNoVoiceAvailable
	}

	return path, nil
}

func (s *Store) writeDefault(embedding []byte) error {
	unlock := s.lock(DefaultVoiceID)
	defer unlock()

	dir := filepath.Join(s.root, DefaultVoiceID)

	mkdirErr := os.MkdirAll(dir, dirPermissions)
	if mkdirErr != nil {
		return fmt.Errorf("failed to create default voice directory: %w", mkdirErr)
	}

	writeErr := os.WriteFile(
		filepath.Join(dir, EmbeddingFileName), embedding, filePermissions,
	)
	if writeErr != nil {
		return fmt.Errorf("failed to write default voice embedding: %w", writeErr)
	}

	return nil
}

// lock serializes writers of a single voice identifier.
func (s *Store) lock(voiceID string) func() {
	value, _ := s.locks.LoadOrStore(voiceID, &sync.Mutex{})
	mutex, _ := value.(*sync.Mutex)
	mutex.Lock()

	return mutex.Unlock
}

func prefixFor(model core.ModelType) string {
	if model == core.ModelZonos {
		return zonosPrefix
	}

	return kokoroPrefix
}

func existingFile(dir, name string) string {
	path := filepath.Join(dir, name)

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return ""
	}

	return path
}

// sanitize replaces path-hostile characters so a filename stem is safe to
// use as a directory name.
func sanitize(name string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		"..", "_",
		" ", "_",
		":", "_",
	)

	return replacer.Replace(name)
}
