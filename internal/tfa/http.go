package tfa

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
)

// Handler exposes a Service over three HTTP endpoints: POST /register,
// /deregister, /verify.
type Handler struct {
	svc    *Service
	mailer Mailer // nil disables email delivery; codes are logged instead
}

// NewHandler wraps svc for mounting on an http.ServeMux. mailer may be nil,
// in which case registration codes are logged rather than emailed.
func NewHandler(svc *Service, mailer Mailer) *Handler { return &Handler{svc: svc, mailer: mailer} }

// Mount registers the three routes on mux.
func (h *Handler) Mount(mux *http.ServeMux) {
	mux.HandleFunc("POST /register", h.register)
	mux.HandleFunc("POST /deregister", h.deregister)
	mux.HandleFunc("POST /verify", h.verify)
}

type registerRequest struct {
	Email string `json:"email"`
}

type registerSuccess struct {
	Cooldown *int `json:"cooldown,omitempty"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	code, err := h.svc.Register(req.Email)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	// The code itself is never returned to the caller. Delivery happens
	// out-of-band, fire-and-forget off the request goroutine.
	email := req.Email
	if h.mailer != nil {
		go func() {
			if err := h.mailer.SendCode(email, code); err != nil {
				log.Printf("tfa: failed to email code to %s: %v", email, err)
			}
		}()
	} else {
		log.Printf("tfa: no mailer configured, code for %s: %06d", email, code)
	}
	writeJSON(w, http.StatusOK, registerSuccess{})
}

type deregisterRequest struct {
	Email string `json:"email"`
}

type deregisterSuccess struct{}

func (h *Handler) deregister(w http.ResponseWriter, r *http.Request) {
	var req deregisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.svc.Deregister(req.Email); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, deregisterSuccess{})
}

type verifyRequest struct {
	Email string `json:"email"`
	Code  uint32 `json:"code"`
}

type verifySuccess struct {
	Token string `json:"token"`
}

func (h *Handler) verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	token, err := h.svc.Verify(req.Email, req.Code)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, verifySuccess{Token: token})
}

func statusFor(err error) int {
	var tooMany *TooManyRegisterRequests
	switch {
	case errors.As(err, &tooMany):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrTooManyTokenRequests):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrCodeExpired), errors.Is(err, ErrInvalidCode):
		return http.StatusUnauthorized
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorBody{Error: err.Error()})
}
