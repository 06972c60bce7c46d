package memory

import (
	"context"

	"github.com/frontandrew/ivisit/internal/domain"
	"github.com/google/uuid"
)

type incidentRepo struct{ v *view }

func (r incidentRepo) Create(_ context.Context, incident *domain.VisitorPassIncident) error {
	defer r.v.lock()()
	st := r.v.st()
	if _, ok := st.passes[incident.PassID]; !ok {
		return domain.ErrPassNotFound
	}
	if incident.ID == uuid.Nil {
		incident.ID = uuid.New()
	}
	st.incidents = append(st.incidents, *incident)
	return nil
}

func (r incidentRepo) GetByIDForUpdate(_ context.Context, id uuid.UUID) (*domain.VisitorPassIncident, error) {
	defer r.v.lock()()
	for _, incident := range r.v.st().incidents {
		if incident.ID == id {
			i := incident
			return &i, nil
		}
	}
	return nil, domain.ErrIncidentNotFound
}

func (r incidentRepo) Update(_ context.Context, incident *domain.VisitorPassIncident) error {
	defer r.v.lock()()
	st := r.v.st()
	for i := range st.incidents {
		if st.incidents[i].ID == incident.ID {
			st.incidents[i] = *incident
			return nil
		}
	}
	return domain.ErrIncidentNotFound
}

func (r incidentRepo) List(_ context.Context, status *domain.IncidentStatus) ([]*domain.VisitorPassIncident, error) {
	defer r.v.lock()()
	st := r.v.st()
	out := make([]*domain.VisitorPassIncident, 0, len(st.incidents))
	for i := len(st.incidents) - 1; i >= 0; i-- {
		incident := st.incidents[i]
		if status != nil && incident.Status != *status {
			continue
		}
		out = append(out, &incident)
	}
	return out, nil
}
