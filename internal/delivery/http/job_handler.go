package http

import (
	"context"
	"net/http"

	"github.com/frontandrew/ivisit/internal/pkg/logger"
	"github.com/frontandrew/ivisit/internal/usecase/archive"
	"github.com/frontandrew/ivisit/internal/usecase/overstay"
)

// OverstayRunner запускает проверку превышения времени визитов
type OverstayRunner interface {
	Evaluate(ctx context.Context) (*overstay.Report, error)
}

// ArchiveRunner запускает архивацию
type ArchiveRunner interface {
	Run(ctx context.Context) (*archive.Report, error)
}

// JobHandler - ручной запуск фоновых задач (только для админов)
type JobHandler struct {
	overstay OverstayRunner
	archive  ArchiveRunner
	logger   logger.Logger
}

// NewJobHandler создает новый handler
func NewJobHandler(overstay OverstayRunner, archive ArchiveRunner, logger logger.Logger) *JobHandler {
	return &JobHandler{
		overstay: overstay,
		archive:  archive,
		logger:   logger,
	}
}

// RunOverstay POST /api/v1/admin/jobs/overstay/run
func (h *JobHandler) RunOverstay(w http.ResponseWriter, r *http.Request) {
	report, err := h.overstay.Evaluate(r.Context())
	if err != nil {
		respondServiceError(w, h.logger, "run overstay evaluation", err)
		return
	}
	respondData(w, http.StatusOK, report)
}

// RunArchive POST /api/v1/admin/jobs/archive/run
func (h *JobHandler) RunArchive(w http.ResponseWriter, r *http.Request) {
	report, err := h.archive.Run(r.Context())
	if err != nil {
		respondServiceError(w, h.logger, "run archive", err)
		return
	}
	respondData(w, http.StatusOK, report)
}
