package httpapi

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/and161185/lookup-credits/internal/errs"
	v1 "github.com/and161185/lookup-credits/internal/rpc/ledgerv1"
)

func (h *Handler) Account(w http.ResponseWriter, r *http.Request) {
	call(h, func(req *v1.ResolveRequest) (*v1.ResolveResponse, error) {
		return h.api.Resolve(r.Context(), req)
	})(w, r)
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	call(h, func(req *v1.SearchRequest) (*v1.SearchResponse, error) {
		return h.api.Search(r.Context(), req)
	})(w, r)
}

func (h *Handler) WatchAd(w http.ResponseWriter, r *http.Request) {
	call(h, func(req *v1.WatchAdRequest) (*v1.WatchAdResponse, error) {
		return h.api.WatchAd(r.Context(), req)
	})(w, r)
}

func (h *Handler) ApplyReferral(w http.ResponseWriter, r *http.Request) {
	call(h, func(req *v1.ApplyReferralRequest) (*v1.ApplyReferralResponse, error) {
		return h.api.ApplyReferral(r.Context(), req)
	})(w, r)
}

func (h *Handler) RememberReferral(w http.ResponseWriter, r *http.Request) {
	call(h, func(req *v1.RememberReferralRequest) (*v1.Empty, error) {
		return h.api.RememberReferral(r.Context(), req)
	})(w, r)
}

func (h *Handler) PendingReferral(w http.ResponseWriter, r *http.Request) {
	call(h, func(req *v1.PendingReferralRequest) (*v1.PendingReferralResponse, error) {
		return h.api.PendingReferral(r.Context(), req)
	})(w, r)
}

func (h *Handler) DeclineReferral(w http.ResponseWriter, r *http.Request) {
	call(h, func(req *v1.DeclineReferralRequest) (*v1.Empty, error) {
		return h.api.DeclineReferral(r.Context(), req)
	})(w, r)
}

func (h *Handler) ListReferrals(w http.ResponseWriter, r *http.Request) {
	call(h, func(req *v1.ListReferralsRequest) (*v1.ListReferralsResponse, error) {
		return h.api.ListReferrals(r.Context(), req)
	})(w, r)
}

// Leaderboard is public; ?limit=N overrides the default size.
func (h *Handler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	req := &v1.LeaderboardRequest{}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.fail(w, r, fmt.Errorf("%w: limit %q", errs.ErrInvalidArgument, raw))
			return
		}
		req.Limit = n
	}
	resp, err := h.api.Leaderboard(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) ActivateKey(w http.ResponseWriter, r *http.Request) {
	call(h, func(req *v1.ActivateKeyRequest) (*v1.ActivateKeyResponse, error) {
		return h.api.ActivateKey(r.Context(), req)
	})(w, r)
}

func (h *Handler) LogoutKey(w http.ResponseWriter, r *http.Request) {
	call(h, func(req *v1.LogoutKeyRequest) (*v1.LogoutKeyResponse, error) {
		return h.api.LogoutKey(r.Context(), req)
	})(w, r)
}

// --- admin ---

func (h *Handler) ListKeys(w http.ResponseWriter, r *http.Request) {
	call(h, func(req *v1.ListKeysRequest) (*v1.ListKeysResponse, error) {
		return h.api.ListKeys(r.Context(), req)
	})(w, r)
}

func (h *Handler) GenerateKey(w http.ResponseWriter, r *http.Request) {
	call(h, func(req *v1.GenerateKeyRequest) (*v1.GenerateKeyResponse, error) {
		return h.api.GenerateKey(r.Context(), req)
	})(w, r)
}

func (h *Handler) SetKeyActive(w http.ResponseWriter, r *http.Request) {
	call(h, func(req *v1.SetKeyActiveRequest) (*v1.Empty, error) {
		req.ID = chi.URLParam(r, "id")
		return h.api.SetKeyActive(r.Context(), req)
	})(w, r)
}

func (h *Handler) DeleteKey(w http.ResponseWriter, r *http.Request) {
	call(h, func(req *v1.DeleteKeyRequest) (*v1.Empty, error) {
		req.ID = chi.URLParam(r, "id")
		return h.api.DeleteKey(r.Context(), req)
	})(w, r)
}
