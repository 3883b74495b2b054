// Package httpapi is the JSON gateway for web and mobile clients. It serves
// the same handlers as the gRPC API.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/and161185/lookup-credits/internal/errs"
	v1 "github.com/and161185/lookup-credits/internal/rpc/ledgerv1"
	grpcserver "github.com/and161185/lookup-credits/internal/server/grpc"
)

// HeaderDeviceID carries the client's device id.
const HeaderDeviceID = "X-Device-ID"

const maxBody = 64 << 10

// Handler adapts HTTP requests to the ledger API.
type Handler struct {
	api  v1.LedgerServer
	auth *grpcserver.Authenticator
	log  *zap.Logger
}

// NewHandler constructs Handler.
func NewHandler(api v1.LedgerServer, auth *grpcserver.Authenticator, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{api: api, auth: auth, log: log}
}

// NewRouter creates the gateway router. Empty origins disables CORS.
func NewRouter(h *Handler, origins []string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.log))
	r.Use(middleware.Recoverer)
	if len(origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{
				http.MethodGet, http.MethodPost, http.MethodPut,
				http.MethodPatch, http.MethodDelete, http.MethodOptions,
			},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", HeaderDeviceID},
			ExposedHeaders: []string{"X-Request-Id"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Get("/leaderboard", h.Leaderboard)

		r.Group(func(r chi.Router) {
			r.Use(h.withSession)
			r.Get("/account", h.Account)
			r.Post("/search", h.Search)
			r.Post("/ads/watch", h.WatchAd)

			r.Route("/referrals", func(r chi.Router) {
				r.Get("/", h.ListReferrals)
				r.Post("/apply", h.ApplyReferral)
				r.Get("/pending", h.PendingReferral)
				r.Put("/pending", h.RememberReferral)
				r.Delete("/pending", h.DeclineReferral)
			})

			r.Route("/keys", func(r chi.Router) {
				r.Post("/activate", h.ActivateKey)
				r.Post("/logout", h.LogoutKey)
			})
		})

		r.Route("/admin/keys", func(r chi.Router) {
			r.Use(h.withAdmin)
			r.Get("/", h.ListKeys)
			r.Post("/", h.GenerateKey)
			r.Patch("/{id}", h.SetKeyActive)
			r.Delete("/{id}", h.DeleteKey)
		})
	})

	return r
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Info("http",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("dur", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}

func (h *Handler) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, err := h.auth.Session(r.Context(), r.Header.Get(HeaderDeviceID), r.Header.Values("Authorization"), r.RemoteAddr)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(grpcserver.WithSession(r.Context(), s)))
	})
}

func (h *Handler) withAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := h.auth.Admin(r.Header.Values("Authorization"))
		if err != nil {
			h.fail(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(grpcserver.WithIdentity(r.Context(), id)))
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	code, body := describe(err)
	if code >= http.StatusInternalServerError {
		h.log.Warn("http request failed",
			zap.String("path", r.URL.Path), zap.String("kind", body.Error.Kind), zap.Error(err))
	}
	writeJSON(w, code, body)
}

// decode reads a JSON body into dst. An empty body leaves dst untouched.
func decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: body: %w", errs.ErrInvalidArgument, err)
	}
	return nil
}

// call decodes req, runs fn and writes the response.
func call[Req, Resp any](h *Handler, fn func(*Req) (*Resp, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req Req
		if r.Body != nil && r.Method != http.MethodGet {
			if err := decode(r, &req); err != nil {
				h.fail(w, r, err)
				return
			}
		}
		resp, err := fn(&req)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
