// model.go this code defines the data model for the application
package datastore

import "time"

// JobStatus is the locally cached lifecycle state of a TrainingJob.
type JobStatus string

const (
	JobStatusStarting  JobStatus = "starting"
	JobStatusTraining  JobStatus = "training"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

// Terminal reports whether no further remote transition is expected.
func (s JobStatus) Terminal() bool {
	return s == JobStatusSucceeded || s == JobStatusFailed
}

// Brand is the unit of personalization: one fine-tuned model scoped to one
// set of training images and one trigger phrase.
type Brand struct {
	ID            string `gorm:"primaryKey;type:varchar(36)"` // UUID
	UserID        string `gorm:"index:idx_brands_user"`
	Name          string `gorm:"not null"`
	TriggerPhrase string `gorm:"uniqueIndex;not null"` // immutable after registration

	// CurrentJobID points at the brand's current training job. Rows written
	// before the pointer existed are resolved by latest creation time instead.
	CurrentJobID *uint

	CreatedAt time.Time
	UpdatedAt time.Time

	Assets []TrainingAsset `gorm:"foreignKey:BrandID;constraint:OnDelete:CASCADE"`
	Jobs   []TrainingJob   `gorm:"foreignKey:BrandID;constraint:OnDelete:CASCADE"`
}

// TrainingAsset references one source image belonging to a Brand.
// Created in bulk at registration, never mutated, deleted only with the Brand.
type TrainingAsset struct {
	ID           uint   `gorm:"primaryKey"`
	BrandID      string `gorm:"index;not null"`
	StoragePath  string `gorm:"not null"` // fetchable URL of the source image
	OriginalName string
	CreatedAt    time.Time
}

// TrainingJob is one training attempt for a Brand. Rows are never deleted,
// they form the audit trail of training attempts.
type TrainingJob struct {
	ID          uint      `gorm:"primaryKey"`
	BrandID     string    `gorm:"index;not null"`
	RemoteID    string    `gorm:"index"` // opaque remote job handle
	Status      JobStatus `gorm:"type:varchar(20);index"`
	Version     string    // remote model version, empty until the job succeeds
	Destination string    // owner/name of the model container recorded at launch
	CreatedAt   time.Time `gorm:"index:idx_training_jobs_created"`
	UpdatedAt   time.Time
}

// GeneratedImage is one successful inference result.
type GeneratedImage struct {
	ID          uint   `gorm:"primaryKey"`
	BrandID     string `gorm:"index;not null"`
	UserID      string `gorm:"index"`
	URL         string `gorm:"not null"`
	Prompt      string `gorm:"type:text"`
	AspectRatio string `gorm:"type:varchar(10)"`
	Seed        int64
	CreatedAt   time.Time `gorm:"index"`
}
