package news

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/thocc/newsrelay/internal/domain"
	"github.com/thocc/newsrelay/internal/pkg/ctxlog"
	"github.com/thocc/newsrelay/internal/pkg/httputil"
)

// Announcer relays a manually submitted item to the chat.
type Announcer interface {
	Announce(ctx context.Context, item domain.CandidateItem)
}

// Handler handles HTTP requests for news.
type Handler struct {
	service   *Service
	announcer Announcer
	stamp     domain.TimeFormat
	now       func() time.Time
	validator *validator.Validate
}

// NewHandler creates a new news handler. announcer may be nil, in which case
// relayed items are stored but not announced.
func NewHandler(service *Service, announcer Announcer, stamp domain.TimeFormat) *Handler {
	return &Handler{
		service:   service,
		announcer: announcer,
		stamp:     stamp,
		now:       time.Now,
		validator: validator.New(),
	}
}

// RegisterRoutes registers news routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/news", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Post("/relay", h.Relay)
		r.Get("/{key}", h.Get)
	})
}

var errorMappings = []httputil.ErrorMapping{
	{Error: ErrNewsNotFound, Status: http.StatusNotFound},
	{Error: ErrNewsExists, Status: http.StatusConflict},
	{Error: ErrInvalidSource, Status: http.StatusBadRequest},
	{Error: ErrInvalidKey, Status: http.StatusBadRequest},
}

// CreateNewsRequest is the body of POST /news.
type CreateNewsRequest struct {
	Name         string `json:"name" validate:"required,max=1000"`
	OriginalName string `json:"original_name" validate:"required,max=1000"`
	Link         string `json:"link" validate:"required,url"`
	SourceID     int    `json:"source_id" validate:"required,oneof=1 2 3"`
	Timestamp    string `json:"timestamp" validate:"required,max=64"`
}

// ToCandidate converts the request to a candidate item.
func (r *CreateNewsRequest) ToCandidate() domain.CandidateItem {
	return domain.CandidateItem{
		DisplayName:  r.Name,
		OriginalName: r.OriginalName,
		Link:         r.Link,
		SourceID:     domain.SourceID(r.SourceID),
		Timestamp:    r.Timestamp,
	}
}

// RelayRequest is the body of POST /news/relay.
type RelayRequest struct {
	Name string `json:"name" validate:"required,max=1000"`
	Link string `json:"link" validate:"required,url"`
}

// Create handles POST /news.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateNewsRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	n, err := h.service.CreateNews(r.Context(), req.ToCandidate())
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusCreated, n)
}

// Relay handles POST /news/relay: stores the item under the Other source and
// announces it.
func (h *Handler) Relay(w http.ResponseWriter, r *http.Request) {
	var req RelayRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	item := domain.CandidateItem{
		DisplayName:  req.Name,
		OriginalName: req.Name,
		Link:         req.Link,
		SourceID:     domain.SourceOther,
		Timestamp:    h.stamp.Format(h.now()),
	}

	n, err := h.service.CreateNews(r.Context(), item)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	if h.announcer != nil {
		h.announcer.Announce(context.WithoutCancel(r.Context()), item)
	} else {
		ctxlog.FromContext(r.Context()).Warn("relay stored without announcement", "id", n.ID)
	}

	httputil.Success(w, http.StatusCreated, n)
}

// List handles GET /news.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.List(r.Context())
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}
	if items == nil {
		items = []domain.News{}
	}
	httputil.Success(w, http.StatusOK, items)
}

// Get handles GET /news/{key} where key is a numeric id or name:source_id.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if unescaped, err := url.PathUnescape(key); err == nil {
		key = unescaped
	}

	var (
		n   *domain.News
		err error
	)
	if id, parseErr := strconv.ParseInt(key, 10, 64); parseErr == nil {
		n, err = h.service.GetByID(r.Context(), id)
	} else {
		name, source, keyErr := ParseNameKey(key)
		if keyErr != nil {
			httputil.HandleError(r.Context(), w, keyErr, errorMappings)
			return
		}
		n, err = h.service.FindByName(r.Context(), name, source)
	}

	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, n)
}

// ParseNameKey splits "name:source_id" at the last colon, so names may
// themselves contain colons.
func ParseNameKey(key string) (string, domain.SourceID, error) {
	i := strings.LastIndexByte(key, ':')
	if i <= 0 || i == len(key)-1 {
		return "", 0, ErrInvalidKey
	}

	id, err := strconv.Atoi(key[i+1:])
	if err != nil {
		return "", 0, ErrInvalidKey
	}
	source := domain.SourceID(id)
	if !source.IsValid() {
		return "", 0, ErrInvalidSource
	}

	name := strings.TrimSpace(key[:i])
	if name == "" {
		return "", 0, ErrInvalidKey
	}
	return name, source, nil
}
