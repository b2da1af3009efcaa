package journal

import (
	"time"
)

// Operation names a mutating command.
type Operation string

const (
	OperationRelease    Operation = "release"
	OperationUpdatePath Operation = "update-path"
	OperationInvalidate Operation = "invalidate"
)

// Outcome is how a mutating command ended.
type Outcome string

const (
	OutcomeCommitted Outcome = "committed"
	OutcomeDryRun    Outcome = "dry-run"
	OutcomeFailed    Outcome = "failed"
)

// Release is the GORM model for one journal entry.
type Release struct {
	ID             string    `gorm:"primaryKey;column:id;type:varchar(36)" json:"id" yaml:"id"`
	DistributionID string    `gorm:"column:distribution_id;index:idx_release_dist_created,priority:1;not null" json:"distributionId" yaml:"distributionId"`
	Operation      Operation `gorm:"column:operation;not null" json:"operation" yaml:"operation"`
	Version        string    `gorm:"column:version" json:"version,omitempty" yaml:"version,omitempty"`
	PreviousPath   string    `gorm:"column:previous_path" json:"previousPath,omitempty" yaml:"previousPath,omitempty"`
	NewPath        string    `gorm:"column:new_path" json:"newPath,omitempty" yaml:"newPath,omitempty"`
	VersionToken   string    `gorm:"column:version_token" json:"versionToken,omitempty" yaml:"versionToken,omitempty"`
	InvalidationID string    `gorm:"column:invalidation_id" json:"invalidationId,omitempty" yaml:"invalidationId,omitempty"`
	Outcome        Outcome   `gorm:"column:outcome;index:idx_release_outcome;not null" json:"outcome" yaml:"outcome"`
	Error          string    `gorm:"column:error" json:"error,omitempty" yaml:"error,omitempty"`
	RequestedBy    string    `gorm:"column:requested_by" json:"requestedBy,omitempty" yaml:"requestedBy,omitempty"`
	CreatedAt      time.Time `gorm:"column:created_at;index:idx_release_dist_created,priority:2;not null" json:"createdAt" yaml:"createdAt"`
}

// TableName returns the GORM table name.
func (Release) TableName() string { return "releases" }
