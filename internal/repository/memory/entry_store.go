package memory

import (
	"context"
	"sort"
	"time"

	"github.com/frontandrew/ivisit/internal/domain"
	"github.com/google/uuid"
)

type entryRepo struct{ v *view }

func (r entryRepo) Create(_ context.Context, entry *domain.VisitorLogEntry) error {
	defer r.v.lock()()
	st := r.v.st()
	if _, ok := st.logs[entry.LogID]; !ok {
		return domain.ErrLogNotFound
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	st.entries = append(st.entries, *entry)
	return nil
}

func (r entryRepo) GetLatestByLog(_ context.Context, logID uuid.UUID) (*domain.VisitorLogEntry, error) {
	defer r.v.lock()()
	var latest *domain.VisitorLogEntry
	for _, entry := range r.v.st().entries {
		if entry.LogID != logID {
			continue
		}
		// при равных timestamp побеждает более поздняя запись
		if latest == nil || !entry.Timestamp.Before(latest.Timestamp) {
			e := entry
			latest = &e
		}
	}
	return latest, nil
}

func (r entryRepo) ListByLog(ctx context.Context, logID uuid.UUID) ([]*domain.VisitorLogEntry, error) {
	return r.ListByLogs(ctx, []uuid.UUID{logID})
}

func (r entryRepo) ListByLogs(_ context.Context, logIDs []uuid.UUID) ([]*domain.VisitorLogEntry, error) {
	defer r.v.lock()()
	ids := idSet(logIDs)
	var out []*domain.VisitorLogEntry
	for _, entry := range r.v.st().entries {
		if _, ok := ids[entry.LogID]; !ok {
			continue
		}
		e := entry
		out = append(out, &e)
	}
	return out, nil
}

func (r entryRepo) ListRecent(_ context.Context, limit int) ([]*domain.VisitorLogEntry, error) {
	defer r.v.lock()()
	st := r.v.st()
	out := make([]*domain.VisitorLogEntry, 0, len(st.entries))
	for i := len(st.entries) - 1; i >= 0; i-- {
		e := st.entries[i]
		out = append(out, &e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r entryRepo) ListArchived(_ context.Context) ([]*domain.VisitorLogEntry, error) {
	defer r.v.lock()()
	var out []*domain.VisitorLogEntry
	for _, entry := range r.v.st().entries {
		if entry.Archived {
			e := entry
			out = append(out, &e)
		}
	}
	return out, nil
}

func (r entryRepo) MarkArchivedByLogs(_ context.Context, logIDs []uuid.UUID, at time.Time) (int64, error) {
	defer r.v.lock()()
	st := r.v.st()
	ids := idSet(logIDs)
	var n int64
	for i := range st.entries {
		if _, ok := ids[st.entries[i].LogID]; !ok || st.entries[i].Archived {
			continue
		}
		st.entries[i].MarkArchived(at)
		n++
	}
	return n, nil
}
