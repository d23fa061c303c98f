// interfaces.go: this code defines the interface for the database operations
package datastore

import (
	"fmt"

	"github.com/tphakala/brandforge-go/internal/conf"
	"github.com/tphakala/brandforge-go/internal/errors"
	"gorm.io/gorm"
)

// Interface abstracts the underlying database implementation and defines the
// operations the orchestrator and API need.
type Interface interface {
	Open() error
	Close() error

	CreateBrand(brand *Brand, assets []TrainingAsset) error
	GetBrand(id string) (Brand, error)
	GetTrainingAssets(brandID string) ([]TrainingAsset, error)

	CreateTrainingJob(job *TrainingJob) error
	CurrentTrainingJob(brandID string) (*TrainingJob, error)
	UpdateTrainingJob(jobID uint, status JobStatus, version string) error

	SaveGeneratedImage(img *GeneratedImage) error
	GetGeneratedImages(brandID string, limit, offset int) ([]GeneratedImage, error)
}

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB *gorm.DB // GORM database instance
}

// New creates a new datastore instance based on the provided settings.
func New(settings *conf.Settings) Interface {
	switch {
	case settings.Output.SQLite.Enabled:
		return &SQLiteStore{
			Settings: settings,
		}
	case settings.Output.MySQL.Enabled:
		return &MySQLStore{
			Settings: settings,
		}
	default:
		return nil
	}
}

// Close closes the database connection.
func (ds *DataStore) Close() error {
	if ds.DB == nil {
		return nil
	}
	sqlDB, err := ds.DB.DB()
	if err != nil {
		return fmt.Errorf("getting generic database interface: %w", err)
	}
	return sqlDB.Close()
}

// CreateBrand stores a brand and its training assets as a single transaction.
func (ds *DataStore) CreateBrand(brand *Brand, assets []TrainingAsset) error {
	tx := ds.DB.Begin()
	if tx.Error != nil {
		return fmt.Errorf("starting transaction: %w", tx.Error)
	}

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	if err := tx.Create(brand).Error; err != nil {
		tx.Rollback()
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "create_brand").
			Build()
	}

	for i := range assets {
		assets[i].BrandID = brand.ID
		if err := tx.Create(&assets[i]).Error; err != nil {
			tx.Rollback()
			return errors.New(err).
				Component("datastore").
				Category(errors.CategoryDatabase).
				Context("operation", "create_training_asset").
				Build()
		}
	}

	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// GetBrand retrieves a brand by its ID.
func (ds *DataStore) GetBrand(id string) (Brand, error) {
	var brand Brand
	if err := ds.DB.First(&brand, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Brand{}, errors.Newf("brand %s not found", id).
				Component("datastore").
				Category(errors.CategoryNotFound).
				Build()
		}
		return Brand{}, fmt.Errorf("getting brand %s: %w", id, err)
	}
	return brand, nil
}

// GetTrainingAssets retrieves all training assets of a brand, insertion order.
func (ds *DataStore) GetTrainingAssets(brandID string) ([]TrainingAsset, error) {
	var assets []TrainingAsset
	if err := ds.DB.Where("brand_id = ?", brandID).Order("id ASC").Find(&assets).Error; err != nil {
		return nil, fmt.Errorf("getting training assets for brand %s: %w", brandID, err)
	}
	return assets, nil
}

// CreateTrainingJob persists a new training job and advances the owning
// brand's current-job pointer in the same transaction.
func (ds *DataStore) CreateTrainingJob(job *TrainingJob) error {
	tx := ds.DB.Begin()
	if tx.Error != nil {
		return fmt.Errorf("starting transaction: %w", tx.Error)
	}

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	if err := tx.Create(job).Error; err != nil {
		tx.Rollback()
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "create_training_job").
			Build()
	}

	if err := tx.Model(&Brand{}).Where("id = ?", job.BrandID).
		Update("current_job_id", job.ID).Error; err != nil {
		tx.Rollback()
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "advance_current_job").
			Build()
	}

	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// CurrentTrainingJob resolves the job generation requests run against:
// the brand's current-job pointer when set, otherwise the most recently
// created job row.
func (ds *DataStore) CurrentTrainingJob(brandID string) (*TrainingJob, error) {
	brand, err := ds.GetBrand(brandID)
	if err != nil {
		return nil, err
	}

	var job TrainingJob
	if brand.CurrentJobID != nil {
		if err := ds.DB.First(&job, *brand.CurrentJobID).Error; err == nil {
			return &job, nil
		}
		// Pointer is stale, fall through to the latest-by-creation-time query
	}

	err = ds.DB.Where("brand_id = ?", brandID).
		Order("created_at DESC, id DESC").
		First(&job).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Newf("no training job for brand %s", brandID).
				Component("datastore").
				Category(errors.CategoryNotFound).
				Build()
		}
		return nil, fmt.Errorf("getting current training job for brand %s: %w", brandID, err)
	}
	return &job, nil
}

// UpdateTrainingJob persists a new status and, when non-empty, the produced
// model version. Concurrent writers racing on the same terminal transition
// write identical values, so last-write-wins is acceptable here.
func (ds *DataStore) UpdateTrainingJob(jobID uint, status JobStatus, version string) error {
	updates := map[string]any{"status": status}
	if version != "" {
		updates["version"] = version
	}
	if err := ds.DB.Model(&TrainingJob{}).Where("id = ?", jobID).Updates(updates).Error; err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "update_training_job").
			Context("job_id", jobID).
			Build()
	}
	return nil
}

// SaveGeneratedImage inserts a new generated image record.
func (ds *DataStore) SaveGeneratedImage(img *GeneratedImage) error {
	if err := ds.DB.Create(img).Error; err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "save_generated_image").
			Build()
	}
	return nil
}

// GetGeneratedImages retrieves a brand's generated images, newest first.
func (ds *DataStore) GetGeneratedImages(brandID string, limit, offset int) ([]GeneratedImage, error) {
	var images []GeneratedImage
	query := ds.DB.Where("brand_id = ?", brandID).Order("created_at DESC, id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	if err := query.Find(&images).Error; err != nil {
		return nil, fmt.Errorf("getting generated images for brand %s: %w", brandID, err)
	}
	return images, nil
}
