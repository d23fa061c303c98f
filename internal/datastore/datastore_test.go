package datastore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tphakala/brandforge-go/internal/errors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// newTestStore opens an isolated in-memory SQLite database with the full schema.
func newTestStore(t *testing.T) *DataStore {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, performAutoMigration(db, "SQLite"))

	ds := &DataStore{DB: db}
	t.Cleanup(func() {
		_ = ds.Close()
	})
	return ds
}

func testBrand(id string) *Brand {
	return &Brand{
		ID:            id,
		UserID:        "user-1",
		Name:          "Coffee Co",
		TriggerPhrase: "tok-" + id,
	}
}

func TestCreateBrandWithAssets(t *testing.T) {
	t.Parallel()
	ds := newTestStore(t)

	brand := testBrand("b1")
	assets := []TrainingAsset{
		{StoragePath: "https://img.example.com/1.jpg", OriginalName: "cup.jpg"},
		{StoragePath: "https://img.example.com/2.png", OriginalName: "logo.png"},
	}
	require.NoError(t, ds.CreateBrand(brand, assets))

	got, err := ds.GetBrand("b1")
	require.NoError(t, err)
	assert.Equal(t, "Coffee Co", got.Name)
	assert.Equal(t, "tok-b1", got.TriggerPhrase)
	assert.Nil(t, got.CurrentJobID)

	stored, err := ds.GetTrainingAssets("b1")
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "b1", stored[0].BrandID)
	assert.Equal(t, "cup.jpg", stored[0].OriginalName)
}

func TestGetBrandNotFound(t *testing.T) {
	t.Parallel()
	ds := newTestStore(t)

	_, err := ds.GetBrand("missing")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestCreateTrainingJobAdvancesCurrentPointer(t *testing.T) {
	t.Parallel()
	ds := newTestStore(t)

	require.NoError(t, ds.CreateBrand(testBrand("b1"), nil))

	first := &TrainingJob{BrandID: "b1", RemoteID: "job-1", Status: JobStatusStarting, Destination: "acme/coffee-co-1"}
	require.NoError(t, ds.CreateTrainingJob(first))

	second := &TrainingJob{BrandID: "b1", RemoteID: "job-2", Status: JobStatusStarting, Destination: "acme/coffee-co-2"}
	require.NoError(t, ds.CreateTrainingJob(second))

	brand, err := ds.GetBrand("b1")
	require.NoError(t, err)
	require.NotNil(t, brand.CurrentJobID)
	assert.Equal(t, second.ID, *brand.CurrentJobID)

	current, err := ds.CurrentTrainingJob("b1")
	require.NoError(t, err)
	assert.Equal(t, "job-2", current.RemoteID)
}

func TestCurrentTrainingJobFallsBackToLatest(t *testing.T) {
	t.Parallel()
	ds := newTestStore(t)

	require.NoError(t, ds.CreateBrand(testBrand("b1"), nil))

	// Rows written without the pointer, as older deployments did
	older := &TrainingJob{BrandID: "b1", RemoteID: "job-old", Status: JobStatusFailed, CreatedAt: time.Now().Add(-time.Hour)}
	require.NoError(t, ds.DB.Create(older).Error)
	newer := &TrainingJob{BrandID: "b1", RemoteID: "job-new", Status: JobStatusStarting, CreatedAt: time.Now()}
	require.NoError(t, ds.DB.Create(newer).Error)

	current, err := ds.CurrentTrainingJob("b1")
	require.NoError(t, err)
	assert.Equal(t, "job-new", current.RemoteID)
}

func TestCurrentTrainingJobNoneRecorded(t *testing.T) {
	t.Parallel()
	ds := newTestStore(t)

	require.NoError(t, ds.CreateBrand(testBrand("b1"), nil))

	_, err := ds.CurrentTrainingJob("b1")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestUpdateTrainingJobPersistsStatusAndVersion(t *testing.T) {
	t.Parallel()
	ds := newTestStore(t)

	require.NoError(t, ds.CreateBrand(testBrand("b1"), nil))
	job := &TrainingJob{BrandID: "b1", RemoteID: "job-1", Status: JobStatusStarting}
	require.NoError(t, ds.CreateTrainingJob(job))

	require.NoError(t, ds.UpdateTrainingJob(job.ID, JobStatusSucceeded, "v7"))

	current, err := ds.CurrentTrainingJob("b1")
	require.NoError(t, err)
	assert.Equal(t, JobStatusSucceeded, current.Status)
	assert.Equal(t, "v7", current.Version)

	// Empty version does not clear a previously recorded one
	require.NoError(t, ds.UpdateTrainingJob(job.ID, JobStatusSucceeded, ""))
	current, err = ds.CurrentTrainingJob("b1")
	require.NoError(t, err)
	assert.Equal(t, "v7", current.Version)
}

func TestGeneratedImagesNewestFirst(t *testing.T) {
	t.Parallel()
	ds := newTestStore(t)

	require.NoError(t, ds.CreateBrand(testBrand("b1"), nil))

	older := &GeneratedImage{BrandID: "b1", UserID: "user-1", URL: "https://cdn.example.com/a.webp", Prompt: "a latte cup, tok-b1", AspectRatio: "1:1", Seed: 1, CreatedAt: time.Now().Add(-time.Minute)}
	require.NoError(t, ds.SaveGeneratedImage(older))
	newer := &GeneratedImage{BrandID: "b1", UserID: "user-1", URL: "https://cdn.example.com/b.webp", Prompt: "an espresso, tok-b1", AspectRatio: "16:9", Seed: 2, CreatedAt: time.Now()}
	require.NoError(t, ds.SaveGeneratedImage(newer))

	images, err := ds.GetGeneratedImages("b1", 10, 0)
	require.NoError(t, err)
	require.Len(t, images, 2)
	assert.Equal(t, "https://cdn.example.com/b.webp", images[0].URL)

	limited, err := ds.GetGeneratedImages("b1", 1, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "https://cdn.example.com/a.webp", limited[0].URL)
}

func TestJobStatusTerminal(t *testing.T) {
	t.Parallel()

	assert.False(t, JobStatusStarting.Terminal())
	assert.False(t, JobStatusTraining.Terminal())
	assert.True(t, JobStatusSucceeded.Terminal())
	assert.True(t, JobStatusFailed.Terminal())
}
