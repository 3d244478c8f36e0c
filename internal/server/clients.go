package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/alexjbarnes/hydra-login/internal/auth"
	apperrors "github.com/alexjbarnes/hydra-login/internal/errors"
	"github.com/alexjbarnes/hydra-login/internal/models"
	"github.com/alexjbarnes/hydra-login/internal/registry"
)

// response is the envelope of every admin API reply.
type response struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`

	Client    *models.ClientRecord    `json:"client,omitempty"`
	Clients   []models.ClientRecord   `json:"clients,omitempty"`
	Refresh   *registry.RefreshResult `json:"refresh,omitempty"`
	Succeeded []string                `json:"succeeded,omitempty"`
	Failed    map[string]string       `json:"failed,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body response) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeJSONError(w http.ResponseWriter, err error) {
	writeJSON(w, apperrors.HTTPStatus(err), response{
		OK:      false,
		Message: err.Error(),
		Error:   apperrors.KindOf(err),
	})
}

func redactAll(recs []models.ClientRecord) []models.ClientRecord {
	out := make([]models.ClientRecord, len(recs))
	for i, rec := range recs {
		out[i] = rec.Redacted()
	}

	return out
}

// HandleListClients returns the GET /clients handler. Secrets are never
// listed.
func HandleListClients(reg *registry.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		recs, err := reg.List()
		if err != nil {
			writeJSONError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, response{
			OK:      true,
			Message: fmt.Sprintf("%d clients", len(recs)),
			Clients: redactAll(recs),
		})
	}
}

// HandleGetClient returns the GET /clients/{id} handler.
func HandleGetClient(reg *registry.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := reg.Get(r.PathValue("id"))
		if err != nil {
			writeJSONError(w, err)
			return
		}

		red := rec.Redacted()
		writeJSON(w, http.StatusOK, response{OK: true, Message: "Client " + rec.String(), Client: &red})
	}
}

// HandleCreateClient returns the POST /clients handler. The response is
// the only place the client secret is ever shown.
func HandleCreateClient(reg *registry.Registry, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		edits, err := decodeClientBody(w, r)
		if err != nil {
			writeJSONError(w, err)
			return
		}

		draft := edits.Apply(models.ClientRecord{})
		draft.ClientID = edits.ClientID

		rec, err := reg.CreateLocal(r.Context(), draft)
		if err != nil {
			logger.Warn("create client failed",
				slog.String("admin", auth.RequestUserID(r.Context())),
				slog.String("error", err.Error()),
			)
			writeJSONError(w, err)

			return
		}

		logger.Info("client created",
			slog.String("admin", auth.RequestUserID(r.Context())),
			slog.String("client_id", rec.ClientID),
		)

		writeJSON(w, http.StatusCreated, response{
			OK:      true,
			Message: fmt.Sprintf("Client %s was created", rec),
			Client:  &rec,
		})
	}
}

// HandleUpdateClient returns the PUT /clients/{id} handler. Only the
// fields present in the body change.
func HandleUpdateClient(reg *registry.Registry, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")

		edits, err := decodeClientBody(w, r)
		if err != nil {
			writeJSONError(w, err)
			return
		}

		if edits.ClientID != "" && edits.ClientID != id {
			writeJSONError(w, fmt.Errorf("%w: client_id cannot be changed", apperrors.ErrValidation))
			return
		}

		rec, err := reg.UpdateLocal(r.Context(), id, edits.ClientEdits)
		if err != nil {
			logger.Warn("update client failed",
				slog.String("admin", auth.RequestUserID(r.Context())),
				slog.String("client_id", id),
				slog.String("error", err.Error()),
			)
			writeJSONError(w, err)

			return
		}

		logger.Info("client updated",
			slog.String("admin", auth.RequestUserID(r.Context())),
			slog.String("client_id", id),
		)

		red := rec.Redacted()
		writeJSON(w, http.StatusOK, response{
			OK:      true,
			Message: fmt.Sprintf("Client %s was updated", rec),
			Client:  &red,
		})
	}
}

// HandleDeleteClient returns the DELETE /clients/{id} handler.
func HandleDeleteClient(reg *registry.Registry, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")

		if err := reg.DeleteLocal(r.Context(), id); err != nil {
			logger.Warn("delete client failed",
				slog.String("admin", auth.RequestUserID(r.Context())),
				slog.String("client_id", id),
				slog.String("error", err.Error()),
			)
			writeJSONError(w, err)

			return
		}

		logger.Info("client deleted",
			slog.String("admin", auth.RequestUserID(r.Context())),
			slog.String("client_id", id),
		)

		writeJSON(w, http.StatusOK, response{OK: true, Message: fmt.Sprintf("Client %s was deleted", id)})
	}
}

// HandleRefreshClients returns the POST /clients/refresh handler. A
// partial failure still reports the counts of what was applied.
func HandleRefreshClients(reg *registry.Registry, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := reg.RefreshAll(r.Context())

		body := response{
			OK: err == nil,
			Message: fmt.Sprintf("%d created, %d updated, %d unchanged, %d pruned",
				res.Created, res.Updated, res.Unchanged, res.Pruned),
			Refresh: &res,
		}

		status := http.StatusOK
		if err != nil {
			logger.Warn("refresh failed", slog.String("error", err.Error()))

			status = apperrors.HTTPStatus(err)
			body.Message = err.Error() + " (" + body.Message + ")"
			body.Error = apperrors.KindOf(err)
		}

		writeJSON(w, status, body)
	}
}

type bulkRequest struct {
	ClientIDs []string `json:"client_ids"`
}

// HandleSyncClients returns the POST /clients/sync handler, which pushes
// the selected local records to Hydra.
func HandleSyncClients(reg *registry.Registry, logger *slog.Logger) http.HandlerFunc {
	return handleBulk("synchronized", reg.BulkSync, logger)
}

// HandleDeleteClients returns the POST /clients/delete handler, which
// deletes the selected clients in Hydra and locally.
func HandleDeleteClients(reg *registry.Registry, logger *slog.Logger) http.HandlerFunc {
	return handleBulk("deleted", reg.BulkDelete, logger)
}

// handleBulk decodes a list of client ids and reports the per-id
// outcome. The status is an error status only when every id failed.
func handleBulk(done string, run func(context.Context, []string) registry.BulkResult, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

		var req bulkRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, fmt.Errorf("%w: invalid request body", apperrors.ErrValidation))
			return
		}

		if len(req.ClientIDs) == 0 {
			writeJSONError(w, fmt.Errorf("%w: client_ids is required", apperrors.ErrValidation))
			return
		}

		res := run(r.Context(), req.ClientIDs)

		body := response{
			OK:        res.FailedCount() == 0,
			Message:   fmt.Sprintf("%d clients %s, %d failed", res.SucceededCount(), done, res.FailedCount()),
			Succeeded: res.Succeeded,
		}

		status := http.StatusOK

		if err := res.Err(); err != nil {
			logger.Warn("bulk operation had failures",
				slog.String("action", done),
				slog.Int("failed", res.FailedCount()),
				slog.String("error", err.Error()),
			)

			body.Failed = make(map[string]string, len(res.Failed))
			for id, ferr := range res.Failed {
				body.Failed[id] = ferr.Error()
			}

			if res.SucceededCount() == 0 {
				status = apperrors.HTTPStatus(err)
			}
		}

		writeJSON(w, status, body)
	}
}

// clientBody is the decoded create or update body. ClientID is only
// honored on create.
type clientBody struct {
	ClientID string `json:"client_id,omitempty"`
	models.ClientEdits
}

// decodeClientBody reads a JSON or form encoded client body. Form list
// fields accept one value per field repetition, and each value may
// itself be comma or newline separated, as a textarea would submit.
func decodeClientBody(w http.ResponseWriter, r *http.Request) (clientBody, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	var body clientBody

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/x-www-form-urlencoded" {
		if err := r.ParseForm(); err != nil {
			return body, fmt.Errorf("%w: invalid form data", apperrors.ErrValidation)
		}

		body.ClientID = strings.TrimSpace(r.PostFormValue("client_id"))
		body.ClientEdits = editsFromForm(r)

		return body, nil
	}

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&body); err != nil {
		return body, fmt.Errorf("%w: invalid request body: %s", apperrors.ErrValidation, err.Error())
	}

	return body, nil
}

func editsFromForm(r *http.Request) models.ClientEdits {
	var e models.ClientEdits

	str := func(key string) *string {
		if _, ok := r.PostForm[key]; !ok {
			return nil
		}

		v := r.PostFormValue(key)

		return &v
	}

	list := func(key string) *[]string {
		vals, ok := r.PostForm[key]
		if !ok {
			return nil
		}

		var out []string
		for _, v := range vals {
			out = append(out, splitFormList(v)...)
		}

		return &out
	}

	e.Name = str("client_name")
	e.Secret = str("client_secret")
	e.Scope = str("scope")
	e.ClientURI = str("client_uri")
	e.LogoURI = str("logo_uri")
	e.TOSURI = str("tos_uri")
	e.PolicyURI = str("policy_uri")
	e.JWKSURI = str("jwks_uri")
	e.RedirectURIs = list("redirect_uris")
	e.GrantTypes = list("grant_types")
	e.ResponseTypes = list("response_types")
	e.Audience = list("audience")
	e.Contacts = list("contacts")

	if v := str("token_endpoint_auth_method"); v != nil {
		m := models.AuthMethod(strings.TrimSpace(*v))
		e.AuthMethod = &m
	}

	if _, ok := r.PostForm["allow_cors_requests"]; ok {
		b := formBool(r.PostFormValue("allow_cors_requests"))
		e.AllowCORS = &b
	}

	return e
}

// splitFormList splits a textarea value on newlines and commas.
func splitFormList(v string) []string {
	fields := strings.FieldsFunc(v, func(r rune) bool {
		return r == '\n' || r == '\r' || r == ','
	})

	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}

	return out
}
