package handlers

import (
	"net/http"
)

// HandleGetInternalStats возвращает счётчики работы сервиса: число пакетов,
// обработанных и отклонённых изображений, объём сэкономленных байтов и
// принятых сообщений. Доступ ограничивается TrustedSubnetMiddleware.
func (h *Handlers) HandleGetInternalStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Stats.Snapshot())
}
