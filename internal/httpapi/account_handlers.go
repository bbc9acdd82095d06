package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"docdesk.org/internal/directory"
)

type tokenRequest struct {
	Email      string `json:"email"`
	Credential string `json:"credential"`
}

type tokenResponse struct {
	Token     string             `json:"token"`
	ExpiresAt time.Time          `json:"expires_at"`
	Account   *directory.Account `json:"account"`
}

type registerRequest struct {
	Email      string `json:"email"`
	Name       string `json:"name"`
	Title      string `json:"title"`
	Contact    string `json:"contact"`
	Credential string `json:"credential"`
	WantsAdmin bool   `json:"wants_admin"`
}

type changeCredentialRequest struct {
	Old     string `json:"old"`
	New     string `json:"new"`
	Confirm string `json:"confirm"`
}

func (a *API) handleAuthToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req tokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	account, err := a.directory.Authenticate(r.Context(), req.Email, req.Credential)
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := directory.GenerateToken(account, tokenTTL)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "token generation failed")
		return
	}

	a.audit(r.Context(), "auth.token.issued", map[string]any{
		"account_id": account.ID,
		"email":      account.Email,
	})
	writeJSON(w, http.StatusOK, tokenResponse{
		Token:     token,
		ExpiresAt: time.Now().UTC().Add(tokenTTL),
		Account:   account,
	})
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	account, entry, err := a.directory.Register(r.Context(), directory.RegistrationInput{
		Email:      req.Email,
		Name:       req.Name,
		Title:      req.Title,
		Contact:    req.Contact,
		Credential: req.Credential,
		WantsAdmin: req.WantsAdmin,
	})
	if err != nil {
		handleDirectoryError(w, r, err)
		return
	}

	a.audit(r.Context(), "directory.account.register", map[string]any{
		"account_id": account.ID,
		"email":      account.Email,
		"entry_id":   entry.ID,
	})
	writeJSON(w, http.StatusCreated, map[string]any{
		"account":  account,
		"entry_id": entry.ID,
	})
}

func (a *API) handleAccountsCollection(w http.ResponseWriter, r *http.Request) {
	if !a.requireAdmin(w, r) {
		return
	}
	switch r.Method {
	case http.MethodGet:
		accounts, err := a.directory.ListAccounts(r.Context())
		if err != nil {
			handleDirectoryError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": accounts})
	case http.MethodPost:
		a.addAccount(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) addAccount(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	account, err := a.directory.AddAccount(r.Context(), directory.RegistrationInput{
		Email:      req.Email,
		Name:       req.Name,
		Title:      req.Title,
		Contact:    req.Contact,
		Credential: req.Credential,
		WantsAdmin: req.WantsAdmin,
	})
	if err != nil {
		handleDirectoryError(w, r, err)
		return
	}

	a.audit(r.Context(), "directory.account.add", map[string]any{
		"account_id": account.ID,
		"email":      account.Email,
		"role":       account.Role,
	})
	w.Header().Set("Location", "/v1/accounts/"+account.ID)
	writeJSON(w, http.StatusCreated, account)
}

func (a *API) handlePendingAccounts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if !a.requireAdmin(w, r) {
		return
	}

	role := directory.RoleRegular
	if raw := r.URL.Query().Get("role"); raw != "" {
		parsed, err := directory.ParseRole(raw)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "unknown role")
			return
		}
		role = parsed
	}

	accounts, err := a.directory.PendingByRole(r.Context(), role)
	if err != nil {
		handleDirectoryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": accounts, "role": role})
}

func (a *API) handleChangeCredential(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	actor, ok := directory.ActorFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}

	var req changeCredentialRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if err := a.directory.ChangeCredential(r.Context(), actor.ID, req.Old, req.New, req.Confirm); err != nil {
		handleDirectoryError(w, r, err)
		return
	}
	a.audit(r.Context(), "directory.credential.change", map[string]any{
		"account_id": actor.ID,
	})
	writeJSON(w, http.StatusOK, map[string]any{"status": "changed"})
}

func (a *API) handleAccountResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/accounts/"), "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")
	id := parts[0]

	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		if !a.requireAdmin(w, r) {
			return
		}
		account, err := a.directory.FindAccount(r.Context(), id)
		if err != nil {
			handleDirectoryError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, account)
		return
	}
	if len(parts) != 2 {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch parts[1] {
	case "revoke":
		a.revokeAdmin(w, r, id)
	case "disable":
		a.disableAccount(w, r, id)
	case "promote":
		a.requestPromotion(w, r, id)
	case "audit":
		a.fetchAuditTrail(w, r, id)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) revokeAdmin(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if !a.requireAdmin(w, r) {
		return
	}
	if err := a.directory.RevokeAdmin(r.Context(), id); err != nil {
		handleDirectoryError(w, r, err)
		return
	}
	a.audit(r.Context(), "directory.account.revoke_admin", map[string]any{"account_id": id})
	writeJSON(w, http.StatusOK, map[string]any{"status": "revoked"})
}

func (a *API) disableAccount(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if !a.requireAdmin(w, r) {
		return
	}
	if err := a.directory.Disable(r.Context(), id); err != nil {
		handleDirectoryError(w, r, err)
		return
	}
	a.audit(r.Context(), "directory.account.disable", map[string]any{"account_id": id})
	writeJSON(w, http.StatusOK, map[string]any{"status": "disabled"})
}

// requestPromotion may be called by the account itself or by an admin; the
// promotion still waits for a second admin in the notification queue.
func (a *API) requestPromotion(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	actor, ok := directory.ActorFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	if actor.ID != id && !actor.IsAdmin() {
		writeError(w, r, http.StatusForbidden, "cannot request promotion for another account")
		return
	}
	entry, err := a.directory.RequestPromotion(r.Context(), id)
	if err != nil {
		handleDirectoryError(w, r, err)
		return
	}
	a.audit(r.Context(), "directory.account.promotion_requested", map[string]any{
		"account_id": id,
		"entry_id":   entry.ID,
	})
	writeJSON(w, http.StatusAccepted, map[string]any{"entry_id": entry.ID})
}

func (a *API) fetchAuditTrail(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if !a.requireAdmin(w, r) {
		return
	}
	account, err := a.directory.FindAccount(r.Context(), id)
	if err != nil {
		handleDirectoryError(w, r, err)
		return
	}
	text, err := a.trail.Read(r.Context(), account.Email)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "audit trail unavailable")
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(text))
}

func (a *API) handleNotifications(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if !a.requireAdmin(w, r) {
		return
	}
	items, err := a.directory.Notifications(r.Context())
	if err != nil {
		handleDirectoryError(w, r, err)
		return
	}
	count, err := a.directory.UnresolvedCount(r.Context())
	if err != nil {
		handleDirectoryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items":      items,
		"unresolved": count,
	})
}

func (a *API) handleNotificationResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/notifications/"), "/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[0] == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if !a.requireAdmin(w, r) {
		return
	}

	entryID := parts[0]
	var (
		res directory.Resolution
		err error
	)
	switch parts[1] {
	case "approve":
		res, err = a.directory.Approve(r.Context(), entryID)
	case "reject":
		res, err = a.directory.Reject(r.Context(), entryID)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if err != nil {
		handleDirectoryError(w, r, err)
		return
	}

	a.audit(r.Context(), "directory.entry."+parts[1], map[string]any{
		"entry_id":   entryID,
		"account_id": res.Entry.AccountID,
		"removed":    res.Removed,
	})
	writeJSON(w, http.StatusOK, res)
}

func handleDirectoryError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, directory.ErrValidation), errors.Is(err, directory.ErrCredentialTooShort):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, directory.ErrDuplicateIdentity),
		errors.Is(err, directory.ErrAlreadyResolved),
		errors.Is(err, directory.ErrPendingApproval):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, directory.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, directory.ErrCredentialMismatch):
		writeError(w, r, http.StatusForbidden, err.Error())
	case errors.Is(err, directory.ErrUnauthorized):
		writeError(w, r, http.StatusUnauthorized, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
