package handler

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/pricehound/pricehound/internal/api/response"
	"github.com/pricehound/pricehound/internal/archive"
	"github.com/pricehound/pricehound/pkg/models"
	"golang.org/x/crypto/bcrypt"
)

const keyPrefixLen = 8

// MintAPIKey generates a raw key, its lookup prefix and its bcrypt hash.
// Shared with cmd/keygen so both mint identically shaped keys.
func MintAPIKey() (raw, prefix, hash string, err error) {
	secret := make([]byte, 16)
	if _, err := rand.Read(secret); err != nil {
		return "", "", "", fmt.Errorf("generate key secret: %w", err)
	}
	raw = "ph_" + hex.EncodeToString(secret)
	prefix = raw[:keyPrefixLen]

	h, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
	if err != nil {
		return "", "", "", fmt.Errorf("hash key: %w", err)
	}
	return raw, prefix, string(h), nil
}

// NewCreateKeyHandler returns the handler for POST /api/v1/admin/keys.
func NewCreateKeyHandler(arc archive.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name   string   `json:"name"`
			Scopes []string `json:"scopes"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		if req.Name == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "name is required", nil)
			return
		}
		if len(req.Scopes) == 0 {
			req.Scopes = []string{"jobs:write"}
		}

		raw, prefix, hash, err := MintAPIKey()
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to mint key", nil)
			return
		}

		now := time.Now().UTC()
		key := &models.APIKey{
			ID:        uuid.New(),
			Name:      req.Name,
			KeyHash:   hash,
			KeyPrefix: prefix,
			Scopes:    req.Scopes,
			CreatedAt: now,
			UpdatedAt: now,
		}

		if err := arc.CreateAPIKey(r.Context(), key); err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create key", nil)
			return
		}

		response.Created(w, map[string]any{
			"id":         key.ID.String(),
			"name":       key.Name,
			"key":        raw, // Only shown once at creation
			"key_prefix": key.KeyPrefix,
			"scopes":     key.Scopes,
			"created_at": key.CreatedAt,
		})
	}
}

// NewListKeysHandler returns the handler for GET /api/v1/admin/keys.
func NewListKeysHandler(arc archive.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		keys, err := arc.ListAPIKeys(r.Context())
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list keys", nil)
			return
		}

		// Strip sensitive fields — the hash must never be exposed
		safeKeys := make([]map[string]any, len(keys))
		for i, k := range keys {
			safeKeys[i] = map[string]any{
				"id":           k.ID.String(),
				"name":         k.Name,
				"key_prefix":   k.KeyPrefix,
				"scopes":       k.Scopes,
				"last_used_at": k.LastUsedAt,
				"created_at":   k.CreatedAt,
			}
		}

		response.JSON(w, safeKeys)
	}
}

// NewRevokeKeyHandler returns the handler for DELETE /api/v1/admin/keys/{keyID}.
func NewRevokeKeyHandler(arc archive.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		keyID, err := uuid.Parse(chi.URLParam(r, "keyID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"keyID must be a valid UUID", nil)
			return
		}

		if err := arc.RevokeAPIKey(r.Context(), keyID); err != nil {
			if errors.Is(err, archive.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "KEY_NOT_FOUND",
					"No active key with this ID", nil)
			} else {
				response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
					"Failed to revoke key", nil)
			}
			return
		}

		response.JSON(w, map[string]any{"id": keyID.String(), "revoked": true})
	}
}
