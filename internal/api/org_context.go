package api

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type contextKey string

const (
	orgIDKey  contextKey = "organization_id"
	roleKey   contextKey = "membership_role"
	emailKey  contextKey = "user_email"
	orgHeader            = "X-Organization-ID"
)

// OrgContext resolves the acting organization from the X-Organization-ID
// header (org_id query param as fallback) and verifies the session user
// is a member. Every /api handler below it reads the org from context,
// so a handler can never forget the tenant filter.
func (h *Handlers) OrgContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(orgHeader)
		if raw == "" {
			raw = r.URL.Query().Get("org_id")
		}
		if raw == "" {
			respondError(w, http.StatusBadRequest, "missing "+orgHeader+" header")
			return
		}
		orgID, err := uuid.Parse(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid organization id")
			return
		}

		ctx := context.WithValue(r.Context(), orgIDKey, orgID)

		if session := h.session(r); session != nil {
			membership, err := h.store.GetMembership(ctx, orgID, session.Email)
			if err != nil {
				respondSafeError(w, http.StatusInternalServerError, err, "failed to check membership")
				return
			}
			if membership == nil {
				respondError(w, http.StatusForbidden, "not a member of this organization")
				return
			}
			ctx = context.WithValue(ctx, roleKey, membership.Role)
			ctx = context.WithValue(ctx, emailKey, session.Email)
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func orgIDFrom(ctx context.Context) uuid.UUID {
	if v, ok := ctx.Value(orgIDKey).(uuid.UUID); ok {
		return v
	}
	return uuid.Nil
}

func roleFrom(ctx context.Context) string {
	if v, ok := ctx.Value(roleKey).(string); ok {
		return v
	}
	return ""
}

func emailFrom(ctx context.Context) string {
	if v, ok := ctx.Value(emailKey).(string); ok {
		return v
	}
	return ""
}
