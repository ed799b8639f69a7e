package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/JoseTor101/mom-middleware/pkg/log"
	"github.com/JoseTor101/mom-middleware/pkg/store"
	"github.com/JoseTor101/mom-middleware/pkg/types"
)

// instancesKey is the one document key that is not a topic entry.
const instancesKey = "mom_instances"

// topicEntry is the on-disk shape of one topic catalog entry.
type topicEntry struct {
	Partitions int `json:"partitions"`
}

// File is the durable JSON state document: the topic catalog plus the
// last-known instance registry. Every mutation saves synchronously so the
// file is always a superset of the catalog in the coordination store.
type File struct {
	mu        sync.Mutex
	path      string
	topics    map[string]topicEntry
	instances map[string]string
}

// Load reads the state file at path, treating a missing file as empty.
func Load(path string) (*File, error) {
	f := &File{
		path:      path,
		topics:    make(map[string]topicEntry),
		instances: make(map[string]string),
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return f, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read state file: %v", types.ErrInternal, err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: parse state file: %v", types.ErrInternal, err)
	}

	for key, val := range raw {
		if key == instancesKey {
			if err := json.Unmarshal(val, &f.instances); err != nil {
				return nil, fmt.Errorf("%w: parse %s: %v", types.ErrInternal, instancesKey, err)
			}
			continue
		}
		var entry topicEntry
		if err := json.Unmarshal(val, &entry); err != nil {
			log.WithComponent("state").Warn().Str("topic", key).Msg("skipping malformed topic entry")
			continue
		}
		if entry.Partitions <= 0 {
			log.WithComponent("state").Warn().Str("topic", key).Msg("topic entry missing partitions, skipping")
			continue
		}
		f.topics[key] = entry
	}

	return f, nil
}

// Path returns the file location on disk.
func (f *File) Path() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.path
}

// save writes the document atomically. Caller holds f.mu.
func (f *File) save() error {
	doc := make(map[string]interface{}, len(f.topics)+1)
	for name, entry := range f.topics {
		doc[name] = entry
	}
	doc[instancesKey] = f.instances

	data, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return fmt.Errorf("%w: encode state: %v", types.ErrInternal, err)
	}

	tmp := f.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("%w: create state dir: %v", types.ErrInternal, err)
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("%w: write state: %v", types.ErrInternal, err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("%w: replace state: %v", types.ErrInternal, err)
	}
	return nil
}

// AddTopic records a topic and its partition count.
func (f *File) AddTopic(name string, partitions int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.topics[name] = topicEntry{Partitions: partitions}
	return f.save()
}

// DeleteTopic removes a topic entry. Idempotent.
func (f *File) DeleteTopic(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.topics[name]; !ok {
		return nil
	}
	delete(f.topics, name)
	return f.save()
}

// Topics returns the recorded catalog sorted by name.
func (f *File) Topics() []types.Topic {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]types.Topic, 0, len(f.topics))
	for name, entry := range f.topics {
		out = append(out, types.Topic{Name: name, Partitions: entry.Partitions})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// SetInstances replaces the recorded instance registry.
func (f *File) SetInstances(instances map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.instances = make(map[string]string, len(instances))
	for name, addr := range instances {
		f.instances[name] = addr
	}
	return f.save()
}

// Instances returns a copy of the recorded instance registry.
func (f *File) Instances() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]string, len(f.instances))
	for name, addr := range f.instances {
		out[name] = addr
	}
	return out
}

// Restore warms the coordination store from the recorded catalog on cold
// start: re-adds each topic to the catalog set and re-establishes its
// partition marker keys. Message lists are left alone: whatever the store
// still holds survives, everything else starts empty.
func (f *File) Restore(ctx context.Context, s store.Store) error {
	logger := log.WithComponent("state")
	for _, topic := range f.Topics() {
		if err := s.SAdd(ctx, "topics", topic.Name); err != nil {
			return err
		}
		for p := 0; p < topic.Partitions; p++ {
			marker := fmt.Sprintf("%s:partition_exists:%d", topic.Name, p)
			if err := s.Set(ctx, marker, "1", 0); err != nil {
				return err
			}
		}
		logger.Info().
			Str("topic", topic.Name).
			Int("partitions", topic.Partitions).
			Msg("restored topic into coordination store")
	}
	return nil
}
