package server

import (
	"io"
	"mime"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/vertextoedge/estateshare/internal/domain"
	"github.com/vertextoedge/estateshare/internal/domain/vo"
)

// FileHandler handles public file downloads
type FileHandler struct {
	resolver FileResolver
	logger   *zap.Logger
}

// NewFileHandler creates a new FileHandler
func NewFileHandler(resolver FileResolver, logger *zap.Logger) *FileHandler {
	return &FileHandler{
		resolver: resolver,
		logger:   logger,
	}
}

// HandleDownload serves /api/public/files/{identifier}. The identifier is
// either a share token or a legacy file id.
func (h *FileHandler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	identifier := r.PathValue("identifier")
	if identifier == "" {
		writeError(w, http.StatusBadRequest, "Identifier required")
		return
	}

	file, err := h.resolver.Resolve(r.Context(), identifier)
	if err != nil {
		h.logger.Debug("public download failed",
			zap.String("identifier", vo.MaskIdentifier(identifier)),
			zap.Error(err))
		writeServiceError(w, h.logger, err)
		return
	}
	defer file.Content.Close()

	n := serveContent(w, h.logger, file)
	h.logger.Debug("public file served",
		zap.String("identifier", vo.MaskIdentifier(identifier)),
		zap.Bool("local", file.IsLocal),
		zap.Int64("bytes", n))
}

// serveContent writes the headers and streams the body
func serveContent(w http.ResponseWriter, logger *zap.Logger, file *domain.ResolvedFile) int64 {
	contentType := file.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	w.Header().Set("Content-Type", contentType)
	if file.Size >= 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(file.Size, 10))
	}
	w.Header().Set("Content-Disposition", contentDisposition(file.Name))
	w.Header().Set("Cache-Control", "private, no-store")
	w.WriteHeader(http.StatusOK)

	n, err := io.Copy(w, file.Content)
	if err != nil {
		logger.Warn("failed to stream file", zap.Int64("written", n), zap.Error(err))
	}
	return n
}

func contentDisposition(name string) string {
	if name == "" {
		return "inline"
	}
	if v := mime.FormatMediaType("inline", map[string]string{"filename": name}); v != "" {
		return v
	}
	return "inline"
}
