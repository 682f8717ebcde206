package app

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/louisbranch/study.space/internal/platform/requestctx"
	"github.com/louisbranch/study.space/internal/services/study/domain"
	"github.com/louisbranch/study.space/internal/services/study/wire"
)

func formatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}

func (h *handlers) budget(w http.ResponseWriter, r *http.Request) {
	status, err := h.study.Budget(r.Context(), requestctx.UserIDFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wire.NewBudget(status))
}

func (h *handlers) profile(w http.ResponseWriter, r *http.Request) {
	userID := requestctx.UserIDFromContext(r.Context())
	profile, err := h.study.GetProfile(r.Context(), userID)
	if errors.Is(err, domain.ErrNotFound) {
		profile = domain.NewProfile(userID, h.study.Now())
		err = nil
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wire.NewProfile(profile))
}

func (h *handlers) getConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, wire.NewConfig(h.config.Current()))
}

func (h *handlers) putConfig(w http.ResponseWriter, r *http.Request) {
	var req wire.Config
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	cfg, err := req.Domain()
	if err != nil {
		writeError(w, r, err)
		return
	}
	updated, err := h.config.Update(r.Context(), cfg)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wire.NewConfig(updated))
}

type userBody struct {
	ID                    string     `json:"id"`
	Plan                  string     `json:"plan"`
	SubscriptionExpiresAt *time.Time `json:"subscription_expires_at,omitempty"`
	TrialEndsAt           *time.Time `json:"trial_ends_at,omitempty"`
	DailyRemainingSeconds int64      `json:"daily_remaining_seconds"`
	LastResetDate         string     `json:"last_reset_date,omitempty"`
}

func newUserBody(u domain.User) userBody {
	return userBody{
		ID:                    u.ID,
		Plan:                  string(u.Plan),
		SubscriptionExpiresAt: u.SubscriptionExpiresAt,
		TrialEndsAt:           u.TrialEndsAt,
		DailyRemainingSeconds: u.Budget.DailyRemainingSeconds,
		LastResetDate:         u.Budget.LastResetDate,
	}
}

func (h *handlers) getUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.study.GetUser(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newUserBody(user))
}

type putUserRequest struct {
	Plan                  string     `json:"plan"`
	SubscriptionExpiresAt *time.Time `json:"subscription_expires_at"`
	TrialEndsAt           *time.Time `json:"trial_ends_at"`
}

func (h *handlers) putUser(w http.ResponseWriter, r *http.Request) {
	var req putUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	user, err := h.study.PutUser(r.Context(), domain.UserInput{
		ID:                    r.PathValue("id"),
		Plan:                  req.Plan,
		SubscriptionExpiresAt: req.SubscriptionExpiresAt,
		TrialEndsAt:           req.TrialEndsAt,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newUserBody(user))
}

type putProfileRequest struct {
	DisplayName                  *string `json:"display_name"`
	Locale                       *string `json:"locale"`
	WorkMinutesBeforeForcedBreak *int    `json:"work_minutes_before_forced_break"`
	ForcedBreakMinutes           *int    `json:"forced_break_minutes"`
}

func (h *handlers) putProfile(w http.ResponseWriter, r *http.Request) {
	var req putProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	profile, err := h.study.UpdateProfile(r.Context(), domain.ProfileSettings{
		UserID:                       r.PathValue("id"),
		DisplayName:                  req.DisplayName,
		Locale:                       req.Locale,
		WorkMinutesBeforeForcedBreak: req.WorkMinutesBeforeForcedBreak,
		ForcedBreakMinutes:           req.ForcedBreakMinutes,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wire.NewProfile(profile))
}
