package handlers

import (
	"errors"
	"net/http"
	"strings"

	"expense-tracker/internal/auth"
	"expense-tracker/internal/log"
	"expense-tracker/internal/models"
	"expense-tracker/internal/storage"

	"golang.org/x/crypto/bcrypt"
)

type credentials struct {
	username string
	password string
}

// decodeCredentials reads {username, password}. Empty strings count as
// missing.
func decodeCredentials(w http.ResponseWriter, r *http.Request) (credentials, error) {
	fields, err := decodeObject(w, r)
	if err != nil {
		return credentials{}, err
	}

	var username, password models.Optional[string]
	if err := decodeField(fields, "username", CodeInvalidUsername, &username); err != nil {
		return credentials{}, err
	}
	if err := decodeField(fields, "password", CodeInvalidPassword, &password); err != nil {
		return credentials{}, err
	}

	var missing []string
	if !username.IsSet() || strings.TrimSpace(username.Value) == "" {
		missing = append(missing, "username")
	}
	if !password.IsSet() || password.Value == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return credentials{}, missingFields(missing)
	}
	return credentials{username: username.Value, password: password.Value}, nil
}

// Register creates a user account.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	logger := log.FromContext(r.Context()).WithComponent(log.ComponentAuth)

	creds, err := decodeCredentials(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	hash, err := auth.HashPassword(creds.password)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		writeError(w, r, badRequest(CodeInvalidPassword, "password must be at most 72 bytes"))
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	user, err := h.store.CreateUser(r.Context(), creds.username, hash)
	if err != nil {
		if errors.Is(err, storage.ErrUsernameTaken) {
			logger.Info("Registration rejected: username exists", log.FieldOperation, log.OpRegister)
		}
		writeError(w, r, err)
		return
	}

	logger.Info("User registered", log.FieldOperation, log.OpRegister, log.FieldUserID, user.ID)
	writeJSON(w, http.StatusCreated, map[string]string{"message": "User registered successfully"})
}

// Login exchanges a username and password for an access token.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	logger := log.FromContext(r.Context()).WithComponent(log.ComponentAuth)

	creds, err := decodeCredentials(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	user, err := h.store.GetUserByUsername(r.Context(), creds.username)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		auth.RejectPassword(creds.password)
		logger.Info("Login failed", log.FieldOperation, log.OpLogin)
		writeError(w, r, errInvalidCredentials)
		return
	case err != nil:
		writeError(w, r, err)
		return
	}

	if !auth.CheckPassword(creds.password, user.PasswordHash) {
		logger.Info("Login failed", log.FieldOperation, log.OpLogin, log.FieldUserID, user.ID)
		writeError(w, r, errInvalidCredentials)
		return
	}

	token, err := h.tokens.Issue(user.Username)
	if err != nil {
		writeError(w, r, err)
		return
	}

	logger.Info("User logged in", log.FieldOperation, log.OpLogin, log.FieldUserID, user.ID)
	writeJSON(w, http.StatusOK, map[string]string{"access_token": token})
}
