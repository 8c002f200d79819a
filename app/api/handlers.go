package api

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"marcel.works/classpoll-go/app/auth"
	"marcel.works/classpoll-go/app/broadcast"
	"marcel.works/classpoll-go/app/metrics"
	"marcel.works/classpoll-go/app/model"
	"marcel.works/classpoll-go/app/polls"
	"marcel.works/classpoll-go/app/sessions"
)

// Handler maps the poll engine's operations onto the HTTP surface.
type Handler struct {
	Engine   *polls.Engine
	Auth     *auth.Service
	Sessions *sessions.Registry
	Pub      broadcast.Publisher
	Met      *metrics.Metrics
	Log      *zap.Logger
}

// CreatePoll handles POST /api/v1/polls/create
func (h *Handler) CreatePoll(w http.ResponseWriter, r *http.Request) {
	var req CreatePollRequest
	if err := parseJSONBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	poll, err := h.Engine.CreatePoll(r.Context(), req.Question, req.Options, req.Timer)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, poll)
}

// GetCurrentPoll handles GET /api/v1/polls/current
func (h *Handler) GetCurrentPoll(w http.ResponseWriter, r *http.Request) {
	poll, err := h.Engine.GetCurrentPoll(r.Context())
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, poll)
}

// SubmitAnswer handles POST /api/v1/polls/answer
func (h *Handler) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	var req SubmitAnswerRequest
	if err := parseJSONBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	poll, err := h.Engine.SubmitAnswer(r.Context(), req.PollID, req.SelectedOption, req.StudentName)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	h.publishResults(r, poll)
	writeJSON(w, http.StatusOK, SubmitAnswerResponse{
		Message: "Answer submitted successfully",
		Poll:    poll,
	})
}

// GetPollResults handles GET /api/v1/polls/{pollId}/results
func (h *Handler) GetPollResults(w http.ResponseWriter, r *http.Request) {
	poll, err := h.Engine.GetPoll(r.Context(), r.PathValue("pollId"))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, poll)
}

// ClosePoll handles PUT /api/v1/polls/{pollId}/close
func (h *Handler) ClosePoll(w http.ResponseWriter, r *http.Request) {
	poll, err := h.Engine.ClosePoll(r.Context(), r.PathValue("pollId"))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, poll)
}

// GetHistory handles GET /api/v1/polls/history
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	polls, err := h.Engine.ListHistory(r.Context())
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, polls)
}

// KickOutStudent handles DELETE /api/v1/polls/{pollId}/kickout/{studentName}
func (h *Handler) KickOutStudent(w http.ResponseWriter, r *http.Request) {
	poll, err := h.Engine.KickOutParticipant(r.Context(), r.PathValue("pollId"), r.PathValue("studentName"))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	h.publishResults(r, poll)
	writeJSON(w, http.StatusOK, KickOutResponse{
		Message: "Student kicked out successfully",
		Poll:    poll,
	})
}

// SignUp handles POST /api/v1/auth/signup
func (h *Handler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req SignUpRequest
	if err := parseJSONBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if _, err := h.Auth.SignUp(r.Context(), req.Name, req.Email, req.Password); err != nil {
		switch {
		case errors.Is(err, auth.ErrEmailTaken), errors.Is(err, auth.ErrInvalidCredentials):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			h.Log.Error("signup failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "could not create account")
		}
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"message": "User created successfully"})
}

// SignIn handles POST /api/v1/auth/signin
func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req SignInRequest
	if err := parseJSONBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	token, user, err := h.Auth.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.Log.Error("signin failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not sign in")
		return
	}
	writeJSON(w, http.StatusOK, SignInResponse{
		Message: "Signed in successfully",
		Token:   token,
		User:    UserInfo{ID: user.ID, Name: user.Name, Email: user.Email},
	})
}

// publishResults pushes a refreshed snapshot to everyone after a successful
// submit or kick.
func (h *Handler) publishResults(r *http.Request, poll *model.Poll) {
	ev := broadcast.NewEvent(broadcast.TypeResultsUpdated, poll.ID, broadcast.AudienceAll, poll)
	h.Met.EventsPublished.WithLabelValues(ev.Type).Inc()
	if err := h.Pub.Publish(r.Context(), ev); err != nil {
		h.Log.Warn("results broadcast failed", zap.String("pollId", poll.ID), zap.Error(err))
	}
}

func (h *Handler) writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, polls.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, polls.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, polls.ErrAlreadyAnswered):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, polls.ErrInvalidOption):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, polls.ErrStoreUnavailable):
		h.Log.Error("store unavailable", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "poll store unavailable, try again")
	default:
		h.Log.Error("unexpected engine error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
