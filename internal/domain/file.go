package domain

import (
	"io"
	"time"
)

// FolderMimeType identifies folder entries in the remote catalog.
const FolderMimeType = "application/vnd.google-apps.folder"

// RemoteFile is a file or folder entry in the remote catalog.
type RemoteFile struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	MimeType     string     `json:"mimeType"`
	Size         int64      `json:"size"`
	ModifiedTime *time.Time `json:"modifiedTime,omitempty"`
	Parents      []string   `json:"parents,omitempty"`
	WebViewLink  string     `json:"webViewLink,omitempty"`
	ThumbnailURL string     `json:"thumbnailLink,omitempty"`
}

// IsFolder returns true if the entry is a folder
func (f *RemoteFile) IsFolder() bool {
	return f.MimeType == FolderMimeType
}

// FileList is one page of catalog results.
type FileList struct {
	Files         []*RemoteFile `json:"files"`
	NextPageToken string        `json:"nextPageToken,omitempty"`
}

// ListFilesOptions filters a file listing.
type ListFilesOptions struct {
	FolderID  string
	PageSize  int
	PageToken string
	Query     string
	OrderBy   string
}

// ListFoldersOptions filters a folder listing.
type ListFoldersOptions struct {
	ParentID  string
	PageSize  int
	PageToken string
}

// CatalogQuery is the provider-neutral listing request built by the catalog service.
type CatalogQuery struct {
	ParentID     string
	ExcludeDirs  bool
	NameContains string
	OrderBy      string
	PageSize     int
	PageToken    string
}

// ResolvedFile is the stream plus metadata returned by public resolution.
// The caller must close Content.
type ResolvedFile struct {
	Content  io.ReadCloser
	Name     string
	MimeType string
	Size     int64 // -1 when unknown
	IsLocal  bool
}
