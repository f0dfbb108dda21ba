package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/vertextoedge/estateshare/internal/domain"
	"github.com/vertextoedge/estateshare/internal/service/credential"
	"github.com/vertextoedge/estateshare/internal/service/sharing"
)

const stateCookieName = "oauth_state"

// DriveHandler handles the authenticated remote storage endpoints
type DriveHandler struct {
	creds   Credentials
	catalog Catalog
	shares  Shares
	logger  *zap.Logger
}

// NewDriveHandler creates a new DriveHandler
func NewDriveHandler(creds Credentials, catalog Catalog, shares Shares, logger *zap.Logger) *DriveHandler {
	return &DriveHandler{
		creds:   creds,
		catalog: catalog,
		shares:  shares,
		logger:  logger,
	}
}

// HandleAuthURL returns the consent URL and its state value
func (h *DriveHandler) HandleAuthURL(w http.ResponseWriter, r *http.Request) {
	url, state := h.creds.NewAuthorization()

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/api/drive",
		MaxAge:   600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
	})
	writeJSON(w, http.StatusOK, map[string]string{"url": url, "state": state})
}

// HandleCallback completes the consent flow with the returned code
func (h *DriveHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		writeError(w, http.StatusBadRequest, "Authorization denied: "+e)
		return
	}

	code := q.Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "Missing authorization code")
		return
	}
	if c, err := r.Cookie(stateCookieName); err == nil && c.Value != q.Get("state") {
		writeError(w, http.StatusBadRequest, "State mismatch")
		return
	}

	h.connect(w, r, credential.ConnectInput{Code: code})
}

// HandleConnect stores a connection from a code or directly supplied tokens
func (h *DriveHandler) HandleConnect(w http.ResponseWriter, r *http.Request) {
	var in credential.ConnectInput
	if err := json.NewDecoder(io.LimitReader(r.Body, 64*1024)).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	h.connect(w, r, in)
}

func (h *DriveHandler) connect(w http.ResponseWriter, r *http.Request, in credential.ConnectInput) {
	conn, err := h.creds.Connect(r.Context(), UserIDFromContext(r.Context()), in)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	expiresAt := conn.ExpiresAt
	writeJSON(w, http.StatusOK, domain.ConnectionStatus{
		Connected:    true,
		AccountLabel: conn.AccountLabel,
		ExpiresAt:    &expiresAt,
	})
}

// HandleDisconnect revokes and removes the caller's connection
func (h *DriveHandler) HandleDisconnect(w http.ResponseWriter, r *http.Request) {
	err := h.creds.Disconnect(r.Context(), UserIDFromContext(r.Context()))
	if errors.Is(err, domain.ErrNotConnected) {
		writeError(w, http.StatusBadRequest, "Remote storage is not connected")
		return
	}
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"disconnected": true})
}

// HandleStatus reports the caller's connection status
func (h *DriveHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.creds.GetStatus(r.Context(), UserIDFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// HandleListFiles lists non-folder files
func (h *DriveHandler) HandleListFiles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := h.catalog.ListFiles(r.Context(), UserIDFromContext(r.Context()), domain.ListFilesOptions{
		FolderID:  q.Get("folderId"),
		PageSize:  queryInt(q.Get("pageSize")),
		PageToken: q.Get("pageToken"),
		Query:     q.Get("q"),
		OrderBy:   q.Get("orderBy"),
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// HandleListFolders lists the children of a folder
func (h *DriveHandler) HandleListFolders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := h.catalog.ListFolders(r.Context(), UserIDFromContext(r.Context()), domain.ListFoldersOptions{
		ParentID:  q.Get("parentId"),
		PageSize:  queryInt(q.Get("pageSize")),
		PageToken: q.Get("pageToken"),
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// HandleGetFile returns file metadata
func (h *DriveHandler) HandleGetFile(w http.ResponseWriter, r *http.Request) {
	f, err := h.catalog.GetFileByID(r.Context(), UserIDFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// HandleGetFolder returns folder metadata
func (h *DriveHandler) HandleGetFolder(w http.ResponseWriter, r *http.Request) {
	f, err := h.catalog.GetFolderByID(r.Context(), UserIDFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// HandleFileContent streams file bytes to the owner
func (h *DriveHandler) HandleFileContent(w http.ResponseWriter, r *http.Request) {
	f, content, err := h.catalog.Open(r.Context(), UserIDFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	defer content.Close()

	size := f.Size
	if size <= 0 {
		size = -1
	}
	serveContent(w, h.logger, &domain.ResolvedFile{
		Content:  content,
		Name:     f.Name,
		MimeType: f.MimeType,
		Size:     size,
	})
}

type shareResponse struct {
	*domain.IssuedShare
	FileID string `json:"fileId"`
}

// HandleShare issues a share token for a file
func (h *DriveHandler) HandleShare(w http.ResponseWriter, r *http.Request) {
	var opts sharing.IssueOptions
	if r.ContentLength != 0 {
		if err := json.NewDecoder(io.LimitReader(r.Body, 64*1024)).Decode(&opts); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	fileID := r.PathValue("id")
	issued, err := h.shares.Issue(r.Context(), UserIDFromContext(r.Context()), fileID, opts)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, shareResponse{IssuedShare: issued, FileID: fileID})
}

func queryInt(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
