package reports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
)

const indexFile = "index.txt"

var ErrRecordNotFound = errors.New("training record not found")

// Summary is the index entry of a record.
type Summary struct {
	ID   int    `json:"id"`
	Time string `json:"time"`
	Type Type   `json:"type"`
}

// FileStore keeps one <id>.json file per record and the number of allocated
// ids in index.txt.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create reports directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// NextID allocates the next record id.
func (s *FileStore) NextID() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count, err := s.readIndex()
	if err != nil {
		return 0, err
	}
	if err := s.writeIndex(count + 1); err != nil {
		return 0, err
	}
	return count, nil
}

// Count returns how many ids have been allocated.
func (s *FileStore) Count() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readIndex()
}

func (s *FileStore) Save(_ context.Context, record Record) error {
	data, err := json.MarshalIndent(record, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode record %d: %w", record.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.recordPath(record.ID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write record %d: %w", record.ID, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to write record %d: %w", record.ID, err)
	}
	return nil
}

func (s *FileStore) Load(id int) (Record, error) {
	data, err := os.ReadFile(s.recordPath(id))
	if errors.Is(err, fs.ErrNotExist) {
		return Record{}, fmt.Errorf("%w: %d", ErrRecordNotFound, id)
	} else if err != nil {
		return Record{}, fmt.Errorf("failed to read record %d: %w", id, err)
	}

	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return Record{}, fmt.Errorf("failed to decode record %d: %w", id, err)
	}
	record.ID = id
	return record, nil
}

// List returns the summaries of every readable record ordered by id. Files
// that are not named <number>.json or fail to decode are skipped.
func (s *FileStore) List() ([]Summary, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}

	ids := []int{}
	for _, entry := range entries {
		name, ok := strings.CutSuffix(entry.Name(), ".json")
		if !ok || entry.IsDir() {
			continue
		}
		id, err := strconv.Atoi(name)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	slices.Sort(ids)

	summaries := make([]Summary, 0, len(ids))
	for _, id := range ids {
		record, err := s.Load(id)
		if err != nil {
			logger.Warn("skipping unreadable record", "id", id, "error", err)
			continue
		}
		summaries = append(summaries, Summary{ID: id, Time: record.Time, Type: record.Type})
	}
	return summaries, nil
}

func (s *FileStore) recordPath(id int) string {
	return filepath.Join(s.dir, strconv.Itoa(id)+".json")
}

func (s *FileStore) readIndex() (int, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, indexFile))
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	} else if err != nil {
		return 0, fmt.Errorf("failed to read report index: %w", err)
	}

	count, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("malformed report index: %w", err)
	}
	return count, nil
}

func (s *FileStore) writeIndex(count int) error {
	if err := os.WriteFile(filepath.Join(s.dir, indexFile), []byte(strconv.Itoa(count)), 0o644); err != nil {
		return fmt.Errorf("failed to write report index: %w", err)
	}
	return nil
}
