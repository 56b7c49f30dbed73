// Package list реализует HTTP-обработчик выдачи каталога тарифных пакетов.
package list

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/entitlement-engine/internal/http/response"
	"github.com/magabrotheeeer/entitlement-engine/internal/lib/sl"
	"github.com/magabrotheeeer/entitlement-engine/internal/models"
)

// Handler управляет HTTP-запросами списка пакетов.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает интерфейс бизнес-логики каталога пакетов.
type Service interface {
	ListPackages(ctx context.Context, limit, offset int) ([]*models.Package, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Список тарифных пакетов
// @Description Возвращает страницу каталога пакетов.
// @Tags Packages
// @Produce json
// @Param limit query int false "Размер страницы" default(10)
// @Param offset query int false "Смещение" default(0)
// @Success 200 {object} response.Response "Страница каталога"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера при выдаче каталога"
// @Security BearerAuth
// @Router /packages/list [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.packages.list"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	limitStr := r.URL.Query().Get("limit")
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit <= 0 {
		limit = 10
	}

	offsetStr := r.URL.Query().Get("offset")
	offset, err := strconv.Atoi(offsetStr)
	if err != nil || offset < 0 {
		offset = 0
	}

	packages, err := h.service.ListPackages(r.Context(), limit, offset)
	if err != nil {
		log.Error("failed to list packages", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to list packages"))
		return
	}

	log.Info("list packages", "count", len(packages))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"list_count": len(packages),
		"packages":   packages,
	}))
}
