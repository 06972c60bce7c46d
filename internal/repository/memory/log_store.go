package memory

import (
	"context"
	"sort"
	"time"

	"github.com/frontandrew/ivisit/internal/domain"
	"github.com/google/uuid"
)

type logRepo struct{ v *view }

func (r logRepo) Create(_ context.Context, log *domain.VisitorLog) error {
	defer r.v.lock()()
	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	if err := r.checkPassExclusive(log); err != nil {
		return err
	}
	r.v.st().logs[log.ID] = copyLog(*log)
	return nil
}

func (r logRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.VisitorLog, error) {
	defer r.v.lock()()
	log, ok := r.v.st().logs[id]
	if !ok {
		return nil, domain.ErrLogNotFound
	}
	l := copyLog(log)
	return &l, nil
}

func (r logRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.VisitorLog, error) {
	return r.GetByID(ctx, id)
}

func (r logRepo) Update(_ context.Context, log *domain.VisitorLog) error {
	defer r.v.lock()()
	st := r.v.st()
	if _, ok := st.logs[log.ID]; !ok {
		return domain.ErrLogNotFound
	}
	if err := r.checkPassExclusive(log); err != nil {
		return err
	}
	st.logs[log.ID] = copyLog(*log)
	return nil
}

// checkPassExclusive повторяет частичный уникальный индекс Postgres:
// один пропуск - не больше одного открытого визита
func (r logRepo) checkPassExclusive(log *domain.VisitorLog) error {
	if log.PassID == nil || log.ActiveEnd != nil {
		return nil
	}
	for id, other := range r.v.st().logs {
		if id == log.ID || other.ActiveEnd != nil || other.PassID == nil {
			continue
		}
		if *other.PassID == *log.PassID {
			return domain.ErrPassAlreadyInUse
		}
	}
	return nil
}

func (r logRepo) filter(keep func(domain.VisitorLog) bool) []*domain.VisitorLog {
	var out []*domain.VisitorLog
	for _, log := range r.v.st().logs {
		if !keep(log) {
			continue
		}
		l := copyLog(log)
		out = append(out, &l)
	}
	return out
}

func byStartAsc(logs []*domain.VisitorLog) []*domain.VisitorLog {
	sort.Slice(logs, func(i, j int) bool { return logs[i].ActiveStart.Before(logs[j].ActiveStart) })
	return logs
}

func byStartDesc(logs []*domain.VisitorLog) []*domain.VisitorLog {
	sort.Slice(logs, func(i, j int) bool { return logs[i].ActiveStart.After(logs[j].ActiveStart) })
	return logs
}

func (r logRepo) ListOpen(_ context.Context) ([]*domain.VisitorLog, error) {
	defer r.v.lock()()
	return byStartAsc(r.filter(func(l domain.VisitorLog) bool { return l.ActiveEnd == nil })), nil
}

func (r logRepo) ListOpenByVisitor(_ context.Context, visitorID uuid.UUID) ([]*domain.VisitorLog, error) {
	defer r.v.lock()()
	return byStartAsc(r.filter(func(l domain.VisitorLog) bool {
		return l.VisitorID == visitorID && l.ActiveEnd == nil
	})), nil
}

func (r logRepo) ListNotArchivedByVisitor(_ context.Context, visitorID uuid.UUID) ([]*domain.VisitorLog, error) {
	defer r.v.lock()()
	return byStartAsc(r.filter(func(l domain.VisitorLog) bool {
		return l.VisitorID == visitorID && !l.Archived
	})), nil
}

func (r logRepo) List(_ context.Context) ([]*domain.VisitorLog, error) {
	defer r.v.lock()()
	return byStartDesc(r.filter(func(domain.VisitorLog) bool { return true })), nil
}

func (r logRepo) ListArchived(_ context.Context) ([]*domain.VisitorLog, error) {
	defer r.v.lock()()
	return byStartDesc(r.filter(func(l domain.VisitorLog) bool { return l.Archived })), nil
}

func (r logRepo) MarkArchived(_ context.Context, ids []uuid.UUID, at time.Time) (int64, error) {
	defer r.v.lock()()
	st := r.v.st()
	var n int64
	for id := range idSet(ids) {
		log, ok := st.logs[id]
		if !ok || log.Archived {
			continue
		}
		log.MarkArchived(at)
		st.logs[id] = log
		n++
	}
	return n, nil
}
