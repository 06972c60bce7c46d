package memory

import (
	"context"
	"sort"
	"time"

	"github.com/frontandrew/ivisit/internal/domain"
	"github.com/google/uuid"
)

type passRepo struct{ v *view }

func (r passRepo) Create(_ context.Context, pass *domain.VisitorPass) error {
	defer r.v.lock()()
	st := r.v.st()
	for _, existing := range st.passes {
		if existing.PassNumber == pass.PassNumber {
			return domain.ErrPassAlreadyExists
		}
	}
	if pass.ID == uuid.Nil {
		pass.ID = uuid.New()
	}
	now := time.Now().UTC()
	if pass.CreatedAt.IsZero() {
		pass.CreatedAt = now
	}
	pass.UpdatedAt = pass.CreatedAt
	st.passes[pass.ID] = *pass
	return nil
}

func (r passRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.VisitorPass, error) {
	defer r.v.lock()()
	pass, ok := r.v.st().passes[id]
	if !ok {
		return nil, domain.ErrPassNotFound
	}
	return &pass, nil
}

func (r passRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.VisitorPass, error) {
	return r.GetByID(ctx, id)
}

func (r passRepo) GetByPassNumber(_ context.Context, passNumber string) (*domain.VisitorPass, error) {
	defer r.v.lock()()
	for _, pass := range r.v.st().passes {
		if pass.PassNumber == passNumber {
			p := pass
			return &p, nil
		}
	}
	return nil, domain.ErrPassNotFound
}

func (r passRepo) GetByExternalID(_ context.Context, externalID string) (*domain.VisitorPass, error) {
	defer r.v.lock()()
	if externalID == "" {
		return nil, domain.ErrPassNotFound
	}
	for _, pass := range r.v.st().passes {
		if pass.ExternalID == externalID {
			p := pass
			return &p, nil
		}
	}
	return nil, domain.ErrPassNotFound
}

func (r passRepo) Update(_ context.Context, pass *domain.VisitorPass) error {
	defer r.v.lock()()
	st := r.v.st()
	if _, ok := st.passes[pass.ID]; !ok {
		return domain.ErrPassNotFound
	}
	pass.UpdatedAt = time.Now().UTC()
	st.passes[pass.ID] = *pass
	return nil
}

func (r passRepo) List(_ context.Context, status *domain.PassStatus) ([]*domain.VisitorPass, error) {
	defer r.v.lock()()
	var out []*domain.VisitorPass
	for _, pass := range r.v.st().passes {
		if status != nil && pass.Status != *status {
			continue
		}
		p := pass
		out = append(out, &p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PassNumber < out[j].PassNumber })
	return out, nil
}
