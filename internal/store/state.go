// Package store keeps the durable primary tables and the in-memory
// secondary indices derived from them: the user existence set, the two
// external-id maps, the display-name cache, and per entity kind a sequence
// counter, a title cache and an ordered lead-author index.
//
// All indices live in one State guarded by a single RWMutex. Every
// mutation writes the durable side first, in one atomic kv.Batch, and only
// then updates memory, so a failed write leaves the indices untouched.
package store

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/btree"
	"github.com/perforate-org/arche/internal/domain/entityid"
	"github.com/perforate-org/arche/internal/domain/post"
	"github.com/perforate-org/arche/internal/domain/user"
	"github.com/perforate-org/arche/internal/kv"
)

// Bucket names of the durable tables.
const (
	BucketUsers = "users"
	// BucketUserPrincipals backs up the external id -> owner key map.
	BucketUserPrincipals = "user_principals"
	// BucketUserIDs backs up the owner key -> external id map.
	BucketUserIDs = "user_ids"
	// BucketSnapshots holds snapshot blobs when no separate blob store is configured.
	BucketSnapshots = "_snapshots"
)

var reservedBuckets = map[string]bool{
	BucketUsers:          true,
	BucketUserPrincipals: true,
	BucketUserIDs:        true,
	BucketSnapshots:      true,
}

// ErrKindRegistered is returned when two entity kinds share a name.
var ErrKindRegistered = errors.New("entity kind already registered")

const leadIndexDegree = 16

// Options configures a State.
type Options struct {
	Clock  entityid.Clock
	Logger *slog.Logger
}

// State is the process-wide container of every index.
type State struct {
	mu     sync.RWMutex
	db     kv.Store
	clock  entityid.Clock
	logger *slog.Logger

	users      *kv.Table[user.PrimaryKey, *user.User]
	principals *kv.Table[user.ID, user.PrimaryKey]
	userIDs    *kv.Table[user.PrimaryKey, user.ID]

	userIdx userIndex
	kinds   map[string]*kindIndex
}

type userIndex struct {
	existence  map[user.PrimaryKey]struct{}
	principals map[user.ID]user.PrimaryKey
	ids        map[user.PrimaryKey]user.ID
	names      map[user.PrimaryKey]user.Name
}

func newUserIndex() userIndex {
	return userIndex{
		existence:  make(map[user.PrimaryKey]struct{}),
		principals: make(map[user.ID]user.PrimaryKey),
		ids:        make(map[user.PrimaryKey]user.ID),
		names:      make(map[user.PrimaryKey]user.Name),
	}
}

// kindIndex holds the secondary indices of one entity kind.
type kindIndex struct {
	name    string
	table   *kv.Table[entityid.ID, []byte]
	counter entityid.Counter
	titles  map[entityid.ID]post.Title
	leads   *btree.BTreeG[post.Summary]
	// header decodes just enough of a stored entity to rebuild the indices.
	header func(id entityid.ID, raw []byte) (*post.Header, error)
}

func lessSummary(a, b post.Summary) bool { return a.ID.Less(b.ID) }

func (k *kindIndex) reset() {
	k.counter.Restore(entityid.CounterState{})
	k.titles = make(map[entityid.ID]post.Title)
	k.leads = btree.NewG(leadIndexDegree, lessSummary)
}

var (
	primaryKeyCodec = kv.BinaryCodec[user.PrimaryKey, *user.PrimaryKey]{}
	entityIDCodec   = kv.BinaryCodec[entityid.ID, *entityid.ID]{}
	userCodec       = kv.CodecFuncs[*user.User]{EncodeFunc: user.Encode, DecodeFunc: user.Decode}
)

// New creates an empty State over db. Entity kinds are added with NewEntities
// before the State is resumed.
func New(db kv.Store, opts Options) *State {
	if opts.Clock == nil {
		opts.Clock = entityid.SystemClock
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &State{
		db:         db,
		clock:      opts.Clock,
		logger:     opts.Logger,
		users:      kv.NewTable[user.PrimaryKey, *user.User](db, BucketUsers, primaryKeyCodec, userCodec),
		principals: kv.NewTable[user.ID, user.PrimaryKey](db, BucketUserPrincipals, kv.StringCodec[user.ID]{}, primaryKeyCodec),
		userIDs:    kv.NewTable[user.PrimaryKey, user.ID](db, BucketUserIDs, primaryKeyCodec, kv.StringCodec[user.ID]{}),
		userIdx:    newUserIndex(),
		kinds:      make(map[string]*kindIndex),
	}
}

// DB returns the underlying store.
func (s *State) DB() kv.Store { return s.db }

// Kinds returns the registered kind names in sorted order.
func (s *State) Kinds() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.kinds))
	for name := range s.kinds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *State) register(name string, header func(entityid.ID, []byte) (*post.Header, error)) (*kindIndex, error) {
	if name == "" || reservedBuckets[name] {
		return nil, fmt.Errorf("invalid entity kind name %q", name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.kinds[name]; ok {
		return nil, fmt.Errorf("%w: %s", ErrKindRegistered, name)
	}
	idx := &kindIndex{
		name:   name,
		table:  kv.NewTable[entityid.ID, []byte](s.db, name, entityIDCodec, kv.BytesCodec{}),
		header: header,
	}
	idx.reset()
	s.kinds[name] = idx
	return idx, nil
}

// Stats reports the size of every in-memory index.
type Stats struct {
	Users      int            `json:"users"`
	Principals int            `json:"principals"`
	IDs        int            `json:"ids"`
	Names      int            `json:"names"`
	Titles     map[string]int `json:"titles"`
	Leads      map[string]int `json:"lead_authors"`
}

// Stats returns current index sizes.
func (s *State) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Stats{
		Users:      len(s.userIdx.existence),
		Principals: len(s.userIdx.principals),
		IDs:        len(s.userIdx.ids),
		Names:      len(s.userIdx.names),
		Titles:     make(map[string]int, len(s.kinds)),
		Leads:      make(map[string]int, len(s.kinds)),
	}
	for name, k := range s.kinds {
		st.Titles[name] = len(k.titles)
		st.Leads[name] = k.leads.Len()
	}
	return st
}

// publishSizes updates the index size gauges. Callers hold s.mu.
func (s *State) publishSizes() {
	indexEntries.WithLabelValues("users").Set(float64(len(s.userIdx.existence)))
	indexEntries.WithLabelValues("user_principals").Set(float64(len(s.userIdx.principals)))
	for name, k := range s.kinds {
		indexEntries.WithLabelValues(name + "_titles").Set(float64(len(k.titles)))
		indexEntries.WithLabelValues(name + "_lead_authors").Set(float64(k.leads.Len()))
	}
}
