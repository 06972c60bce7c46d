package memory

import (
	"context"
	"sort"
	"time"

	"github.com/frontandrew/ivisit/internal/domain"
	"github.com/google/uuid"
)

type visitorRepo struct{ v *view }

func (r visitorRepo) Create(_ context.Context, visitor *domain.Visitor) error {
	defer r.v.lock()()
	if visitor.ID == uuid.Nil {
		visitor.ID = uuid.New()
	}
	if visitor.CreatedAt.IsZero() {
		visitor.CreatedAt = time.Now().UTC()
	}
	r.v.st().visitors[visitor.ID] = *visitor
	return nil
}

func (r visitorRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Visitor, error) {
	defer r.v.lock()()
	visitor, ok := r.v.st().visitors[id]
	if !ok {
		return nil, domain.ErrVisitorNotFound
	}
	return &visitor, nil
}

func (r visitorRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.Visitor, error) {
	return r.GetByID(ctx, id)
}

func (r visitorRepo) ListNotArchived(_ context.Context) ([]*domain.Visitor, error) {
	defer r.v.lock()()
	var out []*domain.Visitor
	for _, visitor := range r.v.st().visitors {
		if visitor.Archived {
			continue
		}
		v := visitor
		out = append(out, &v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r visitorRepo) MarkArchived(_ context.Context, ids []uuid.UUID, at time.Time) (int64, error) {
	defer r.v.lock()()
	st := r.v.st()
	var n int64
	for id := range idSet(ids) {
		visitor, ok := st.visitors[id]
		if !ok || visitor.Archived {
			continue
		}
		visitor.MarkArchived(at)
		st.visitors[id] = visitor
		n++
	}
	return n, nil
}
