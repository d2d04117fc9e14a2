package store

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"tagscraper/pkg/collector"
	errs "tagscraper/pkg/errors"
	"tagscraper/pkg/logger"
	"tagscraper/pkg/models"
)

const (
	postsFile    = "posts.json"
	metadataFile = "metadata.json"
)

// TargetMeta is the per-target slice of the metadata file.
type TargetMeta struct {
	// UniquePosts is the number of posts this target contributed to
	// the global archive. Posts first seen under another target do
	// not count here.
	UniquePosts    int       `json:"unique_posts"`
	Runs           int       `json:"runs"`
	LastRequested  int       `json:"last_requested"`
	FirstCollected time.Time `json:"first_collected"`
	LastCollected  time.Time `json:"last_collected"`
}

// SessionEntry records one merge in the session history.
type SessionEntry struct {
	SessionID  string    `json:"session_id"`
	Target     string    `json:"target"`
	Timestamp  time.Time `json:"timestamp"`
	Requested  int       `json:"requested"`
	Received   int       `json:"received"`
	Accepted   int       `json:"accepted"`
	Duplicates int       `json:"duplicates"`
	TotalAfter int       `json:"total_after"`
}

// Metadata is the content of metadata.json.
type Metadata struct {
	TotalPosts  int                    `json:"total_posts"`
	LastUpdated time.Time              `json:"last_updated"`
	Targets     map[string]*TargetMeta `json:"targets"`
	Sessions    []SessionEntry         `json:"scraping_sessions"`
}

// Record is the full durable state: every post plus the metadata.
type Record struct {
	Posts    []models.Post
	Metadata Metadata
}

// MergeResult reports what one Merge call did.
type MergeResult struct {
	Received   int
	Accepted   int
	Duplicates int
	TotalAfter int
}

// Store is the incremental post archive. One Store owns one data
// directory; Merge calls are serialized by an internal mutex.
type Store struct {
	dataDir      string
	postsPath    string
	metadataPath string
	logger       logger.Logger

	mu sync.Mutex
}

// Open prepares a store rooted at dataDir, creating the directory if
// needed. Missing files mean an empty archive, not an error.
func Open(dataDir string, log logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.GetLogger()
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, errs.Wrap(err, errs.ErrorTypeStorage, "failed to create data directory")
	}
	return &Store{
		dataDir:      dataDir,
		postsPath:    filepath.Join(dataDir, postsFile),
		metadataPath: filepath.Join(dataDir, metadataFile),
		logger:       log,
	}, nil
}

// Merge folds a run's posts into the archive. Posts whose ID already
// exists anywhere in the archive are counted as duplicates and
// dropped; the rest are appended in their given order. On any error
// the durable record is left as it was.
func (s *Store) Merge(target string, posts []models.Post, requested int) (*MergeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.load()
	if err != nil {
		return nil, err
	}

	col := collector.New()
	ids := make([]string, 0, len(rec.Posts))
	for _, p := range rec.Posts {
		ids = append(ids, p.ID)
	}
	col.Seed(ids)

	var accepted []models.Post
	for _, p := range posts {
		if col.Add(p) {
			accepted = append(accepted, p)
		}
	}

	now := time.Now()
	rec.Posts = append(rec.Posts, accepted...)

	meta := rec.Metadata.Targets[target]
	if meta == nil {
		meta = &TargetMeta{FirstCollected: now}
		rec.Metadata.Targets[target] = meta
	}
	meta.UniquePosts += len(accepted)
	meta.Runs++
	meta.LastRequested = requested
	meta.LastCollected = now

	result := &MergeResult{
		Received:   len(posts),
		Accepted:   len(accepted),
		Duplicates: len(posts) - len(accepted),
		TotalAfter: len(rec.Posts),
	}

	rec.Metadata.TotalPosts = len(rec.Posts)
	rec.Metadata.LastUpdated = now
	rec.Metadata.Sessions = append(rec.Metadata.Sessions, SessionEntry{
		SessionID:  uuid.NewString(),
		Target:     target,
		Timestamp:  now,
		Requested:  requested,
		Received:   result.Received,
		Accepted:   result.Accepted,
		Duplicates: result.Duplicates,
		TotalAfter: result.TotalAfter,
	})

	if err := s.persist(rec); err != nil {
		return nil, err
	}

	s.logger.InfoWithFields("merge persisted", map[string]interface{}{
		"target":      target,
		"received":    result.Received,
		"accepted":    result.Accepted,
		"duplicates":  result.Duplicates,
		"total_after": result.TotalAfter,
	})
	return result, nil
}

// LoadAll reads the durable record from disk.
func (s *Store) LoadAll() (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.load()
}

// Summary is the condensed view used by the status command.
type Summary struct {
	TotalPosts  int
	TargetCount int
	SessionRuns int
	LastUpdated time.Time
	Targets     map[string]TargetMeta
}

// Summarize returns per-target statistics without loading heavy state
// into the caller.
func (s *Store) Summarize() (*Summary, error) {
	rec, err := s.LoadAll()
	if err != nil {
		return nil, err
	}

	sum := &Summary{
		TotalPosts:  rec.Metadata.TotalPosts,
		TargetCount: len(rec.Metadata.Targets),
		SessionRuns: len(rec.Metadata.Sessions),
		LastUpdated: rec.Metadata.LastUpdated,
		Targets:     make(map[string]TargetMeta, len(rec.Metadata.Targets)),
	}
	for name, meta := range rec.Metadata.Targets {
		sum.Targets[name] = *meta
	}
	return sum, nil
}

// TargetNames returns the targets present in the archive, sorted.
func (sum *Summary) TargetNames() []string {
	names := make([]string, 0, len(sum.Targets))
	for name := range sum.Targets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Export copies the archive files into destDir.
func (s *Store) Export(destDir string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return errs.Wrap(err, errs.ErrorTypeStorage, "failed to create export directory")
	}

	for _, name := range []string{postsFile, metadataFile} {
		src := filepath.Join(s.dataDir, name)
		if _, err := os.Stat(src); os.IsNotExist(err) {
			continue
		}
		if err := copyFile(src, filepath.Join(destDir, name)); err != nil {
			return errs.Wrap(err, errs.ErrorTypeStorage, fmt.Sprintf("failed to export %s", name))
		}
	}

	s.logger.InfoWithFields("archive exported", map[string]interface{}{
		"destination": destDir,
	})
	return nil
}

func (s *Store) load() (*Record, error) {
	rec := &Record{
		Metadata: Metadata{Targets: make(map[string]*TargetMeta)},
	}

	if err := readJSON(s.postsPath, &rec.Posts); err != nil {
		return nil, errs.Wrap(err, errs.ErrorTypeStorage, "failed to read posts file")
	}

	var meta Metadata
	if err := readJSON(s.metadataPath, &meta); err != nil {
		return nil, errs.Wrap(err, errs.ErrorTypeStorage, "failed to read metadata file")
	}
	if meta.Targets != nil {
		rec.Metadata = meta
	}

	// posts.json is the source of truth for the archive size
	rec.Metadata.TotalPosts = len(rec.Posts)
	return rec, nil
}

// persist writes both files via temp+fsync+rename, posts first. Each
// file is replaced whole or not at all; a crash between the renames
// can leave metadata lagging the posts by one merge. That is tolerable:
// the identity set only grows, and load recomputes the archive size
// from posts.json rather than trusting the metadata.
func (s *Store) persist(rec *Record) error {
	postsTemp := s.postsPath + ".tmp"
	metaTemp := s.metadataPath + ".tmp"

	if err := writeJSON(postsTemp, rec.Posts); err != nil {
		return errs.Wrap(err, errs.ErrorTypeStorage, "failed to write posts file")
	}
	if err := writeJSON(metaTemp, rec.Metadata); err != nil {
		os.Remove(postsTemp)
		return errs.Wrap(err, errs.ErrorTypeStorage, "failed to write metadata file")
	}

	if err := os.Rename(postsTemp, s.postsPath); err != nil {
		os.Remove(postsTemp)
		os.Remove(metaTemp)
		return errs.Wrap(err, errs.ErrorTypeStorage, "failed to replace posts file")
	}
	if err := os.Rename(metaTemp, s.metadataPath); err != nil {
		os.Remove(metaTemp)
		return errs.Wrap(err, errs.ErrorTypeStorage, "failed to replace metadata file")
	}
	return nil
}

func readJSON(path string, v interface{}) error {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close()

	return json.NewDecoder(file).Decode(v)
}

func writeJSON(path string, v interface{}) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		file.Close()
		os.Remove(path)
		return err
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(path)
		return err
	}
	if err := file.Close(); err != nil {
		os.Remove(path)
		return err
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
