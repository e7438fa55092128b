package store

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/perforate-org/arche/internal/domain/entityid"
	"github.com/perforate-org/arche/internal/domain/post"
	"github.com/perforate-org/arche/internal/domain/user"
	"github.com/perforate-org/arche/internal/kv"
)

// Capture copies every secondary index into a Snapshot.
func (s *State) Capture() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := &s.userIdx
	existence := make([]user.PrimaryKey, 0, len(idx.existence))
	for key := range idx.existence {
		existence = append(existence, key)
	}
	slices.SortFunc(existence, func(a, b user.PrimaryKey) int {
		return slices.Compare(a[:], b[:])
	})

	snap := &Snapshot{
		Users: UserSnapshot{
			Existence:  existence,
			Principals: maps.Clone(idx.principals),
			IDs:        maps.Clone(idx.ids),
			Names:      maps.Clone(idx.names),
		},
		Kinds: make(map[string]KindSnapshot, len(s.kinds)),
	}
	for name, k := range s.kinds {
		leads := make([]post.Summary, 0, k.leads.Len())
		k.leads.Ascend(func(sum post.Summary) bool {
			leads = append(leads, sum)
			return true
		})
		snap.Kinds[name] = KindSnapshot{
			Counter:     k.counter.State(),
			Titles:      maps.Clone(k.titles),
			LeadAuthors: leads,
		}
	}
	return snap
}

// Restore replaces the secondary indices with the content of snap and
// returns the registered kinds the snapshot does not cover.
func (s *State) Restore(snap *Snapshot) (missing []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := newUserIndex()
	for _, key := range snap.Users.Existence {
		idx.existence[key] = struct{}{}
	}
	maps.Copy(idx.principals, snap.Users.Principals)
	maps.Copy(idx.ids, snap.Users.IDs)
	maps.Copy(idx.names, snap.Users.Names)
	s.userIdx = idx

	for name, k := range s.kinds {
		k.reset()
		ks, ok := snap.Kinds[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		k.counter.Restore(ks.Counter)
		maps.Copy(k.titles, ks.Titles)
		for _, sum := range ks.LeadAuthors {
			k.leads.ReplaceOrInsert(sum)
		}
	}
	slices.Sort(missing)
	s.publishSizes()
	return missing
}

// Rebuild clears every secondary index and repopulates it from the primary
// tables and the id-map backups. Kinds are scanned in parallel.
func (s *State) Rebuild(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.rebuildUsers(ctx); err != nil {
		return err
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, k := range s.kinds {
		g.Go(func() error {
			return s.rebuildKind(gctx, k)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	s.publishSizes()
	return nil
}

// RebuildKinds rebuilds only the named kinds.
func (s *State) RebuildKinds(ctx context.Context, names []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, name := range names {
		k, ok := s.kinds[name]
		if !ok {
			return fmt.Errorf("unknown entity kind %q", name)
		}
		g.Go(func() error {
			return s.rebuildKind(gctx, k)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	s.publishSizes()
	return nil
}

// rebuildUsers repopulates the user indices. The existence set and name
// cache come from the primary table. The id maps come from the backup
// tables, cross-checked against the ids stored in the profiles, which win
// on disagreement. Callers hold s.mu.
func (s *State) rebuildUsers(ctx context.Context) error {
	idx := newUserIndex()
	profileIDs := make(map[user.PrimaryKey]user.ID)
	err := s.users.Ascend(ctx, func(key user.PrimaryKey, u *user.User) bool {
		idx.existence[key] = struct{}{}
		idx.names[key] = u.Name
		if u.ID != nil {
			profileIDs[key] = *u.ID
		}
		return true
	})
	if err != nil {
		return fmt.Errorf("failed to scan users: %w", err)
	}

	err = s.principals.Ascend(ctx, func(id user.ID, key user.PrimaryKey) bool {
		if _, ok := idx.existence[key]; !ok {
			indexDesync.WithLabelValues("user_principals").Inc()
			s.logger.Warn("dropping principal backup for unknown user", "id", id, "key", key)
			return true
		}
		idx.principals[id] = key
		return true
	})
	if err != nil {
		return fmt.Errorf("failed to scan principal backup: %w", err)
	}
	err = s.userIDs.Ascend(ctx, func(key user.PrimaryKey, id user.ID) bool {
		if _, ok := idx.existence[key]; ok {
			idx.ids[key] = id
		}
		return true
	})
	if err != nil {
		return fmt.Errorf("failed to scan id backup: %w", err)
	}

	for key, id := range profileIDs {
		if idx.ids[key] == id && idx.principals[id] == key {
			continue
		}
		indexDesync.WithLabelValues("user_ids").Inc()
		s.logger.Warn("id backup disagrees with profile, using profile", "key", key, "id", id)
		if old, ok := idx.ids[key]; ok && idx.principals[old] == key {
			delete(idx.principals, old)
		}
		idx.ids[key] = id
		idx.principals[id] = key
	}
	for key, id := range idx.ids {
		if _, ok := profileIDs[key]; !ok {
			delete(idx.ids, key)
			if idx.principals[id] == key {
				delete(idx.principals, id)
			}
		}
	}
	for id, key := range idx.principals {
		if idx.ids[key] != id {
			delete(idx.principals, id)
		}
	}

	s.userIdx = idx
	return nil
}

// rebuildKind repopulates one kind's title cache and lead-author index and
// resyncs its counter from the greatest stored id.
func (s *State) rebuildKind(ctx context.Context, k *kindIndex) error {
	k.reset()
	var scanErr error
	err := k.table.Ascend(ctx, func(id entityid.ID, raw []byte) bool {
		h, err := k.header(id, raw)
		if err != nil {
			scanErr = fmt.Errorf("%s %s: %w", k.name, id, err)
			return false
		}
		k.titles[id] = h.Title
		k.leads.ReplaceOrInsert(post.Summary{ID: id, LeadAuthor: h.LeadAuthor})
		return true
	})
	if err == nil {
		err = scanErr
	}
	if err != nil {
		return fmt.Errorf("failed to scan %s: %w", k.name, err)
	}
	return s.resyncCounter(ctx, k)
}

// resyncCounter advances the counter past the greatest key of the primary table.
func (s *State) resyncCounter(ctx context.Context, k *kindIndex) error {
	last, err := k.table.LastKey(ctx)
	if errors.Is(err, kv.ErrKeyNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read last %s id: %w", k.name, err)
	}
	k.counter.Observe(last)
	return nil
}

// ResyncCounters advances every counter past its table's greatest key.
func (s *State) ResyncCounters(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range s.kinds {
		if err := s.resyncCounter(ctx, k); err != nil {
			return err
		}
	}
	return nil
}
