// Package models defines server-side data models persisted in the database
// and carried on the job queues.
package models

import "time"

// FileType is the kind of a stored entity.
type FileType string

const (
	FileTypeFolder FileType = "folder"
	FileTypeFile   FileType = "file"
	FileTypeImage  FileType = "image"
)

// Valid reports whether t is one of the known kinds.
func (t FileType) Valid() bool {
	switch t {
	case FileTypeFolder, FileTypeFile, FileTypeImage:
		return true
	}
	return false
}

// HasContent reports whether entities of this kind carry a blob.
func (t FileType) HasContent() bool {
	return t == FileTypeFile || t == FileTypeImage
}

// File is the metadata of a folder, file or image.
type File struct {
	ID       int64
	UserID   int64
	Name     string
	Type     FileType
	IsPublic bool
	// ParentID is 0 for entities at the root.
	ParentID int64
	// StorageKey locates the blob; empty for folders.
	StorageKey string
	CreatedAt  time.Time
}

// IsFolder is shorthand for f.Type == FileTypeFolder.
func (f *File) IsFolder() bool {
	return f.Type == FileTypeFolder
}

// FilePatch lists the mutable fields of a File; nil means unchanged.
type FilePatch struct {
	IsPublic *bool
}
