// Package docdex is an embedded, file-backed document store. It emulates a
// useful subset of a search-engine document API (index creation, upsert,
// merge, existence checks, a small filter+sort query language, and lookup by
// an arbitrary field) with no external search engine.
//
// Each index is one JSON file mapping document id to document body, plus an
// opaque mapping file persisted verbatim. Every write goes through a
// backup-then-atomic-replace sequence, so after any crash either the data
// file or its .bak sibling holds a fully parseable past state. Mutations are
// serialized per index name; reads go straight to disk without the lock and
// may observe the previous snapshot of an in-flight write, never a torn one.
package docdex

import (
	"fmt"
	"log/slog"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/maruel/docdex/internal/fsjson"
)

// Operation results reported in DocResult.Result.
const (
	ResultCreated  = "created"
	ResultUpdated  = "updated"
	ResultNotFound = "not_found"
)

// Ack is the result of CreateIndex.
type Ack struct {
	Acknowledged bool `json:"acknowledged"`
}

// DocResult is the result of a single-document mutation.
type DocResult struct {
	ID     string `json:"_id,omitempty"`
	Result string `json:"result"`
}

// Store is a document store rooted at one directory. Construct with New and
// share the instance; per-index locks live in the Store, so two Stores over
// the same directory would not serialize against each other.
type Store struct {
	root   string
	logger *slog.Logger
	locks  *lockRegistry
}

// Option configures a Store.
type Option func(*Store)

// WithLogger routes the store's corruption and recovery logging to logger
// instead of slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// New creates a Store over root, creating the directory if needed.
func New(root string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}
	s := &Store{
		root:   root,
		logger: slog.Default(),
		locks:  newLockRegistry(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Root returns the storage root directory.
func (s *Store) Root() string {
	return s.root
}

// CreateIndex writes the index's mapping file and, only when no data file
// exists yet, an empty data file. Re-creating an index that already holds
// documents never empties it; the mapping file is overwritten every time.
func (s *Store) CreateIndex(name string, mapping map[string]any) (Ack, error) {
	if err := checkName(name); err != nil {
		return Ack{}, err
	}
	if len(mapping) == 0 {
		return Ack{}, ErrMappingRequired
	}
	p := pathsFor(s.root, name)
	if err := fsjson.Write(p.mapping, mapping); err != nil {
		return Ack{}, fmt.Errorf("failed to write mapping for index %s: %w", name, err)
	}

	l := s.locks.get(name)
	l.Lock()
	defer l.Unlock()
	if !fsjson.Exists(p.data) {
		if err := fsjson.Write(p.data, map[string]map[string]any{}); err != nil {
			return Ack{}, fmt.Errorf("failed to write data file for index %s: %w", name, err)
		}
	}
	return Ack{Acknowledged: true}, nil
}

// Mapping returns the index's stored mapping blob, or nil when no mapping
// file exists. The blob is persisted verbatim and never validated against.
func (s *Store) Mapping(name string) (map[string]any, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	p := pathsFor(s.root, name)
	m, status, err := fsjson.Read(p.mapping)
	if err != nil {
		return nil, fmt.Errorf("failed to read mapping for index %s: %w", name, err)
	}
	if status != fsjson.Ok {
		return nil, nil
	}
	return m, nil
}

// Index stores body under docID with replace semantics: any previous
// document at that id is discarded entirely.
//
// Indices whose last underscore-delimited name segment is "message" have a
// top-level "body" field stripped before storage, working around a field
// name collision in a downstream consumer.
func (s *Store) Index(name, docID string, body map[string]any) (DocResult, error) {
	if err := checkName(name); err != nil {
		return DocResult{}, err
	}
	if docID == "" {
		return DocResult{}, ErrDocIDRequired
	}
	if body == nil {
		return DocResult{}, ErrBodyRequired
	}
	doc := maps.Clone(body)
	if seg := name[strings.LastIndex(name, "_")+1:]; seg == "message" {
		delete(doc, "body")
	}

	l := s.locks.get(name)
	l.Lock()
	defer l.Unlock()
	p := pathsFor(s.root, name)
	docs, err := s.loadForWrite(name, p)
	if err != nil {
		return DocResult{}, err
	}
	docs[docID] = doc
	if err := s.persist(name, p, docs); err != nil {
		return DocResult{}, err
	}
	return DocResult{ID: docID, Result: ResultCreated}, nil
}

// Update merges partial into the document at docID, overwriting colliding
// fields and preserving the rest. A missing document is created from
// partial alone.
func (s *Store) Update(name, docID string, partial map[string]any) (DocResult, error) {
	if err := checkName(name); err != nil {
		return DocResult{}, err
	}
	if docID == "" {
		return DocResult{}, ErrDocIDRequired
	}
	if partial == nil {
		return DocResult{}, ErrBodyRequired
	}

	l := s.locks.get(name)
	l.Lock()
	defer l.Unlock()
	p := pathsFor(s.root, name)
	docs, err := s.loadForWrite(name, p)
	if err != nil {
		return DocResult{}, err
	}
	doc, ok := docs[docID]
	if !ok {
		doc = map[string]any{}
		docs[docID] = doc
	}
	maps.Copy(doc, partial)
	if err := s.persist(name, p, docs); err != nil {
		return DocResult{}, err
	}
	return DocResult{ID: docID, Result: ResultUpdated}, nil
}

// Exists reports whether the index currently holds a document with docID.
func (s *Store) Exists(name, docID string) (bool, error) {
	if err := checkName(name); err != nil {
		return false, err
	}
	if docID == "" {
		return false, ErrDocIDRequired
	}
	docs, err := s.loadForRead(name)
	if err != nil {
		return false, err
	}
	_, ok := docs[docID]
	return ok, nil
}

// Search filters, sorts, and truncates the index's documents per q.
// Without a sort spec, hits are ordered by document id.
func (s *Store) Search(name string, q Query) (*SearchResult, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	docs, err := s.loadForRead(name)
	if err != nil {
		return nil, err
	}

	hits := make([]Hit, 0, len(docs))
	for _, id := range sortedKeys(docs) {
		if q.Query.matches(id, docs[id]) {
			hits = append(hits, Hit{ID: id, Source: docs[id]})
		}
	}
	if err := sortHits(hits, q.Sort); err != nil {
		return nil, err
	}

	total := len(hits)
	size := q.Size
	if size <= 0 {
		size = defaultSearchSize
	}
	if len(hits) > size {
		hits = hits[:size]
	}
	return &SearchResult{Hits: Hits{Total: total, Hits: hits}}, nil
}

// GetByNodeID scans the index for the first document whose body field
// "node_id" equals nodeID. This is O(n) per call; fine for the small local
// datasets this store targets, revisit before pointing it at large indices.
func (s *Store) GetByNodeID(name string, nodeID any) (*Hit, bool, error) {
	if err := checkName(name); err != nil {
		return nil, false, err
	}
	docs, err := s.loadForRead(name)
	if err != nil {
		return nil, false, err
	}
	if id, ok := findByNodeID(docs, nodeID); ok {
		return &Hit{ID: id, Source: docs[id]}, true, nil
	}
	return nil, false, nil
}

// UpdateByNodeID locates the document whose "node_id" field equals nodeID
// and merges updates into it. A missing document yields a not_found result,
// not an error. The index lock is held for the whole scan-mutate-persist
// sequence.
func (s *Store) UpdateByNodeID(name string, nodeID any, updates map[string]any) (DocResult, error) {
	if err := checkName(name); err != nil {
		return DocResult{}, err
	}
	if updates == nil {
		return DocResult{}, ErrBodyRequired
	}

	l := s.locks.get(name)
	l.Lock()
	defer l.Unlock()
	p := pathsFor(s.root, name)
	docs, err := s.loadForWrite(name, p)
	if err != nil {
		return DocResult{}, err
	}
	id, ok := findByNodeID(docs, nodeID)
	if !ok {
		return DocResult{Result: ResultNotFound}, nil
	}
	maps.Copy(docs[id], updates)
	if err := s.persist(name, p, docs); err != nil {
		return DocResult{}, err
	}
	return DocResult{ID: id, Result: ResultUpdated}, nil
}

// sortedKeys returns the keys of m in ascending order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// findByNodeID returns the id of the first document (in id order, for
// determinism) whose "node_id" field equals nodeID.
func findByNodeID(docs map[string]map[string]any, nodeID any) (string, bool) {
	for _, id := range sortedKeys(docs) {
		if equalValues(docs[id]["node_id"], nodeID) {
			return id, true
		}
	}
	return "", false
}

// loadForWrite reads the data file with full corruption recovery. Caller
// must hold the index lock: recovery renames files.
//
// Recovery is two-tier. A corrupt data file is first replaced by the backup
// snapshot when one exists; if the restored file is also unreadable (or no
// backup exists), the unreadable file is quarantined under a .corrupt suffix
// and the index restarts from an empty document set. Both outcomes are
// logged since they represent data loss an operator must be able to audit.
func (s *Store) loadForWrite(name string, p indexPaths) (map[string]map[string]any, error) {
	raw, status, err := fsjson.Read(p.data)
	if err != nil {
		return nil, fmt.Errorf("failed to load index %s: %w", name, err)
	}
	if status == fsjson.Ok {
		if docs, ok := decodeDocs(raw); ok {
			return docs, nil
		}
		status = fsjson.Corrupt
	}
	if status == fsjson.Missing {
		return map[string]map[string]any{}, nil
	}

	// Corrupt data file: try the backup snapshot.
	if fsjson.Exists(p.backup) {
		if err := os.Rename(p.backup, p.data); err != nil {
			return nil, fmt.Errorf("failed to restore index %s from backup: %w", name, err)
		}
		raw, status, err = fsjson.Read(p.data)
		if err != nil {
			return nil, fmt.Errorf("failed to load index %s: %w", name, err)
		}
		if status == fsjson.Ok {
			if docs, ok := decodeDocs(raw); ok {
				s.logger.Warn("restored index from backup snapshot", "index", name, "path", p.data)
				return docs, nil
			}
		}
	}

	// No backup, or the backup was unreadable too: quarantine and restart
	// empty.
	if fsjson.Exists(p.data) {
		if err := os.Rename(p.data, p.quarantine); err != nil {
			return nil, fmt.Errorf("failed to quarantine index %s: %w", name, err)
		}
		s.logger.Error("quarantined unreadable index data file", "index", name, "path", p.quarantine)
	}
	return map[string]map[string]any{}, nil
}

// loadForRead reads the data file without the index lock and without
// touching any files. Missing or unreadable data reads as an empty index;
// a concurrent writer's atomic replace guarantees we never see a torn file.
func (s *Store) loadForRead(name string) (map[string]map[string]any, error) {
	p := pathsFor(s.root, name)
	raw, status, err := fsjson.Read(p.data)
	if err != nil {
		return nil, fmt.Errorf("failed to load index %s: %w", name, err)
	}
	if status == fsjson.Ok {
		if docs, ok := decodeDocs(raw); ok {
			return docs, nil
		}
		status = fsjson.Corrupt
	}
	if status == fsjson.Corrupt {
		s.logger.Warn("index data file unreadable, reading as empty", "index", name, "path", p.data)
	}
	return map[string]map[string]any{}, nil
}

// persist snapshots the current data file to the backup path (keeping only
// the single most recent snapshot) and atomically writes docs in its place.
func (s *Store) persist(name string, p indexPaths, docs map[string]map[string]any) error {
	if fsjson.Exists(p.data) {
		if err := os.Rename(p.data, p.backup); err != nil {
			return fmt.Errorf("failed to snapshot index %s: %w", name, err)
		}
	}
	if err := fsjson.Write(p.data, docs); err != nil {
		return fmt.Errorf("failed to persist index %s: %w", name, err)
	}
	return nil
}

// decodeDocs checks that every value in a decoded data file is an object.
// Anything else means the file is not a document mapping.
func decodeDocs(raw map[string]any) (map[string]map[string]any, bool) {
	docs := make(map[string]map[string]any, len(raw))
	for id, v := range raw {
		body, ok := v.(map[string]any)
		if !ok {
			return nil, false
		}
		docs[id] = body
	}
	return docs, true
}
