package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gwi.com/product-recommender/internal/auth"
	"gwi.com/product-recommender/internal/core"
	"gwi.com/product-recommender/internal/store"
)

type ctxKey string

const userIDKey ctxKey = "userID"

// ownedSessionID scopes a caller-supplied session id to the authenticated
// user, so one account can never reach another account's conversation.
func ownedSessionID(r *http.Request, sessionID string) string {
	userID, _ := r.Context().Value(userIDKey).(int64)
	return fmt.Sprintf("%d:%s", userID, sessionID)
}

type APIHandler struct {
	chatService *core.ChatService
	log         *zap.Logger
}

func NewAPIHandler(cs *core.ChatService, log *zap.Logger) *APIHandler {
	return &APIHandler{chatService: cs, log: log}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (h *APIHandler) requestLog(r *http.Request) *zap.Logger {
	return h.log.With(zap.String("request_id", middleware.GetReqID(r.Context())))
}

func (h *APIHandler) JWTAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Authorization header is required", http.StatusUnauthorized)
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		externalUserID, err := auth.ValidateJWT(tokenString)
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		user, err := h.chatService.GetUserByExternalID(externalUserID)
		if err != nil {
			h.requestLog(r).Error("failed to resolve user", zap.String("user", externalUserID), zap.Error(err))
			http.Error(w, "Failed to process user identity", http.StatusInternalServerError)
			return
		}

		if user == nil {
			http.Error(w, "User not found", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, user.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type CredentialsRequest struct {
	UserID   string `json:"user_id"`
	Password string `json:"password"`
}

func (h *APIHandler) SignupHandler(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	if req.UserID == "" || req.Password == "" {
		http.Error(w, "User ID and password are required", http.StatusBadRequest)
		return
	}

	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) {
			http.Error(w, "Password must be at most 72 bytes", http.StatusBadRequest)
			return
		}
		h.requestLog(r).Error("failed to hash password", zap.String("user", req.UserID), zap.Error(err))
		http.Error(w, "Failed to process password", http.StatusInternalServerError)
		return
	}

	user, err := h.chatService.CreateUser(req.UserID, hashedPassword)
	if err != nil {
		if errors.Is(err, store.ErrUserExists) {
			http.Error(w, "User already exists", http.StatusConflict)
			return
		}
		h.requestLog(r).Error("failed to create user", zap.String("user", req.UserID), zap.Error(err))
		http.Error(w, "Failed to create user", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	if req.UserID == "" || req.Password == "" {
		http.Error(w, "User ID and password are required", http.StatusBadRequest)
		return
	}

	user, err := h.chatService.GetUserByExternalID(req.UserID)
	if err != nil {
		h.requestLog(r).Error("failed to get user", zap.String("user", req.UserID), zap.Error(err))
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	if user == nil || !auth.CheckPasswordHash(req.Password, user.PasswordHash) {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	token, err := auth.GenerateJWT(req.UserID)
	if err != nil {
		h.requestLog(r).Error("failed to generate token", zap.String("user", req.UserID), zap.Error(err))
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

type ChatRequest struct {
	Input     string `json:"input"`
	SessionID string `json:"session_id,omitempty"`
}

func (h *APIHandler) ChatHandler(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Input) == "" {
		http.Error(w, "Input cannot be empty", http.StatusBadRequest)
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	answer, err := h.chatService.Recommend(r.Context(), ownedSessionID(r, req.SessionID), req.Input)
	if err != nil {
		if errors.Is(err, core.ErrEmptyInput) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.requestLog(r).Error("recommendation turn failed",
			zap.String("session_id", req.SessionID), zap.Error(err))
		http.Error(w, "Failed to generate an answer", http.StatusBadGateway)
		return
	}
	answer.SessionID = req.SessionID

	writeJSON(w, http.StatusOK, answer)
}

func (h *APIHandler) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": sessionID,
		"messages":   h.chatService.History(ownedSessionID(r, sessionID)),
	})
}
