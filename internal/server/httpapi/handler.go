// Package httpapi is the REST surface of filevault: a chi router whose
// handlers parse requests, resolve the caller's token and delegate to the
// services.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/filevault/internal/common"
	"github.com/dmitrijs2005/filevault/internal/logging"
	"github.com/dmitrijs2005/filevault/internal/server/models"
	"github.com/dmitrijs2005/filevault/internal/server/services"
	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"
)

type userKey struct{}

type Handler struct {
	auth    *services.AuthService
	files   *services.FileService
	status  *services.StatusService
	maxBody int64
	logger  logging.Logger
}

// NewHandler builds the API handlers. Request bodies larger than maxBody
// bytes are rejected.
func NewHandler(a *services.AuthService, f *services.FileService, s *services.StatusService, maxBody int64, l logging.Logger) *Handler {
	return &Handler{auth: a, files: f, status: s, maxBody: maxBody, logger: l.With("module", "http_api")}
}

type userResponse struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
}

type fileResponse struct {
	ID       int64           `json:"id"`
	UserID   int64           `json:"userId"`
	Name     string          `json:"name"`
	Type     models.FileType `json:"type"`
	IsPublic bool            `json:"isPublic"`
	ParentID int64           `json:"parentId"`
}

func toFileResponse(f *models.File) fileResponse {
	return fileResponse{
		ID:       f.ID,
		UserID:   f.UserID,
		Name:     f.Name,
		Type:     f.Type,
		IsPublic: f.IsPublic,
		ParentID: f.ParentID,
	}
}

// decodeBody reads a JSON body of at most h.maxBody bytes into v. Only an
// oversized body is an error; malformed JSON leaves v partially filled and
// the service reports the first missing field.
func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	var tooLarge *http.MaxBytesError
	if err := json.NewDecoder(r.Body).Decode(v); errors.As(err, &tooLarge) {
		return common.ErrorTooLarge
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// token reads X-Token, falling back to an Authorization bearer token.
func token(r *http.Request) string {
	if t := r.Header.Get(common.TokenHeaderName); t != "" {
		return t
	}
	if v, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func currentUser(ctx context.Context) *models.User {
	u, _ := ctx.Value(userKey{}).(*models.User)
	return u
}

// requireUser rejects requests without a valid session.
func (h *Handler) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, err := h.auth.Resolve(r.Context(), token(r))
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey{}, u)))
	})
}

// optionalUser treats a missing or invalid token as an anonymous caller.
func (h *Handler) optionalUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if t := token(r); t != "" {
			u, err := h.auth.Resolve(ctx, t)
			switch {
			case err == nil:
				ctx = context.WithValue(ctx, userKey{}, u)
			case !errors.Is(err, common.ErrorUnauthorized):
				h.writeError(w, r, err)
				return
			}
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// idParam parses the {id} segment. Ids that cannot exist are not found.
func idParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, common.ErrorNotFound
	}
	return id, nil
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.status.Status(r.Context()))
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.status.Stats(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := h.decodeBody(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	u, err := h.auth.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, userResponse{ID: u.ID, Email: u.Email})
}

func (h *Handler) Connect(w http.ResponseWriter, r *http.Request) {
	creds, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Basic ")
	if !ok {
		h.writeError(w, r, common.ErrorUnauthorized)
		return
	}
	t, err := h.auth.Login(r.Context(), strings.TrimSpace(creds))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": t})
}

func (h *Handler) Disconnect(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.Logout(r.Context(), token(r)); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r.Context())
	writeJSON(w, http.StatusOK, userResponse{ID: u.ID, Email: u.Email})
}

type uploadRequest struct {
	Name     string   `json:"name"`
	Type     string   `json:"type"`
	ParentID flexID   `json:"parentId"`
	IsPublic flexBool `json:"isPublic"`
	Data     string   `json:"data"`
}

func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	var req uploadRequest
	if err := h.decodeBody(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	f, err := h.files.Upload(r.Context(), currentUser(r.Context()), services.UploadRequest{
		Name:     req.Name,
		Type:     req.Type,
		ParentID: int64(req.ParentID),
		IsPublic: bool(req.IsPublic),
		Data:     req.Data,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toFileResponse(f))
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	f, err := h.files.Get(r.Context(), currentUser(r.Context()), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toFileResponse(f))
}

func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	parentID := common.RootParentID
	if v := q.Get("parentId"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			// such a parent cannot exist
			writeJSON(w, http.StatusOK, []fileResponse{})
			return
		}
		parentID = n
	}
	page, err := strconv.Atoi(q.Get("page"))
	if err != nil {
		page = 0
	}

	list, err := h.files.List(r.Context(), currentUser(r.Context()), parentID, page)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	out := make([]fileResponse, 0, len(list))
	for _, f := range list {
		out = append(out, toFileResponse(f))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) Publish(w http.ResponseWriter, r *http.Request) {
	h.setPublic(w, r, h.files.Publish)
}

func (h *Handler) Unpublish(w http.ResponseWriter, r *http.Request) {
	h.setPublic(w, r, h.files.Unpublish)
}

func (h *Handler) setPublic(w http.ResponseWriter, r *http.Request, op func(context.Context, *models.User, int64) (*models.File, error)) {
	id, err := idParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	f, err := op(r.Context(), currentUser(r.Context()), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toFileResponse(f))
}

func (h *Handler) Data(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	data, err := h.files.Data(r.Context(), currentUser(r.Context()), id, r.URL.Query().Get("size"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", mimetype.Detect(data).String())
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
