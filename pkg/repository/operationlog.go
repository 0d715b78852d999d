package repository

import (
	"context"
	"fmt"
	"time"
)

// OperationLogTableName is the table name for operation logs
const OperationLogTableName = "operation_logs"

// OperationLog interface defines the methods for the operation_logs table.
// Entries are immutable: created by every pipeline/deletion stage that
// touches a file record, never updated, never deleted here.
type OperationLog interface {
	// CreateOperationLog appends an audit entry.
	CreateOperationLog(ctx context.Context, entry *OperationLogModel) error
	// ListOperationLogs returns a page of audit entries, newest first.
	ListOperationLogs(ctx context.Context, params ListOperationLogsParams) (*OperationLogList, error)
}

// OperationLogModel is the model for the operation_logs table. File name and
// type are denormalized at write time so history survives hard deletion.
type OperationLogModel struct {
	ID            uint      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	OperationType string    `gorm:"column:operation_type;size:20;not null" json:"operation_type"`
	OperationTime time.Time `gorm:"column:operation_time;not null;default:CURRENT_TIMESTAMP" json:"operation_time"`
	IPAddress     string    `gorm:"column:ip_address;size:50" json:"ip_address"`
	Details       string    `gorm:"column:details;type:text" json:"details"`
	FileName      string    `gorm:"column:file_name;size:255" json:"file_name"`
	FileType      string    `gorm:"column:file_type;size:50" json:"file_type"`
	UserID        uint      `gorm:"column:user_id" json:"user_id"`
	// FileID is nil for operations not scoped to a single file, e.g. a
	// batched remote delete.
	FileID *uint `gorm:"column:file_id" json:"file_id"`
}

// TableName overrides the default table name for GORM
func (OperationLogModel) TableName() string {
	return OperationLogTableName
}

// Operation types recorded in the audit log.
const (
	OperationCreate = "create"
	OperationRead   = "read"
	OperationUpdate = "update"
	OperationDelete = "delete"
)

// ListOperationLogsParams narrows and paginates ListOperationLogs.
type ListOperationLogsParams struct {
	Page          int
	PageSize      int
	OperationType string
	UserID        uint
	FileID        uint
	Since         *time.Time
	Until         *time.Time
}

// OperationLogList is a page of audit entries.
type OperationLogList struct {
	Entries  []OperationLogModel
	Total    int64
	Page     int
	PageSize int
	Pages    int
}

func (r *repository) CreateOperationLog(ctx context.Context, entry *OperationLogModel) error {
	if entry.OperationTime.IsZero() {
		entry.OperationTime = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) ListOperationLogs(ctx context.Context, params ListOperationLogsParams) (*OperationLogList, error) {
	page := params.Page
	if page < 1 {
		page = 1
	}
	pageSize := params.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	query := r.db.WithContext(ctx).Model(&OperationLogModel{})
	if params.OperationType != "" {
		query = query.Where("operation_type = ?", params.OperationType)
	}
	if params.UserID != 0 {
		query = query.Where("user_id = ?", params.UserID)
	}
	if params.FileID != 0 {
		query = query.Where("file_id = ?", params.FileID)
	}
	if params.Since != nil {
		query = query.Where("operation_time >= ?", *params.Since)
	}
	if params.Until != nil {
		query = query.Where("operation_time <= ?", *params.Until)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	var entries []OperationLogModel
	err := query.
		Order("operation_time DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}

	pages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return &OperationLogList{
		Entries:  entries,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
		Pages:    pages,
	}, nil
}

// String renders a one-line summary used in debug logs.
func (e OperationLogModel) String() string {
	return fmt.Sprintf("%s %s (file=%s user=%d)", e.OperationTime.Format(time.RFC3339), e.OperationType, e.FileName, e.UserID)
}
