package models

import (
	"time"

	"github.com/uptrace/bun"
)

type FileType string

const (
	FileTypeImage FileType = "image"
	FileTypeRaw   FileType = "raw"
)

type FileStatus string

const (
	FileStatusPending  FileStatus = "pending"
	FileStatusApproved FileStatus = "approved"
	FileStatusRejected FileStatus = "rejected"
)

// File is a source-of-truth record owned by the storage component.
// The aggregation core only ever reads it.
type File struct {
	bun.BaseModel `bun:"table:files,alias:f"`

	ID        int64      `bun:"id,pk,autoincrement"`
	LegacyID  string     `bun:"legacy_id,notnull,default:''"`
	OwnerID   string     `bun:"owner_id,notnull"`
	Name      string     `bun:"name,notnull"`
	FileType  FileType   `bun:"file_type,notnull"`
	Status    FileStatus `bun:"status,notnull,default:'pending'"`
	Downloads int64      `bun:"downloads,notnull,default:0"`
	Views     int64      `bun:"views,notnull,default:0"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}
