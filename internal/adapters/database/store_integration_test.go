//go:build integration

package database

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/zatekoja/facilitydirectory/internal/domain/entities"
	"github.com/zatekoja/facilitydirectory/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/facilitydirectory/pkg/config"
	apperrors "github.com/zatekoja/facilitydirectory/pkg/errors"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func newTestPostgresClient(t *testing.T) *postgres.Client {
	t.Helper()
	if os.Getenv("TEST_DB_HOST") == "" {
		t.Skip("Skipping integration test: TEST_DB_HOST not set")
	}

	port, err := strconv.Atoi(getEnv("TEST_DB_PORT", "5432"))
	require.NoError(t, err)

	client, err := postgres.NewClient(context.Background(), "test", &config.DatabaseConfig{
		Host:     getEnv("TEST_DB_HOST", "localhost"),
		Port:     port,
		User:     getEnv("TEST_DB_USER", "postgres"),
		Password: getEnv("TEST_DB_PASSWORD", "postgres"),
		Database: getEnv("TEST_DB_NAME", "facilities_test"),
		SSLMode:  getEnv("TEST_DB_SSLMODE", "disable"),
	})
	require.NoError(t, err, "Failed to create postgres client")
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, Migrate(context.Background(), client))
	for _, table := range []string{"facilities", "facility_overlays", "drive_time_bands"} {
		_, err := client.DB().Exec("TRUNCATE " + table)
		require.NoError(t, err)
	}
	return client
}

func TestFacilityStoreIntegration(t *testing.T) {
	client := newTestPostgresClient(t)
	ctx := context.Background()
	repo := NewFacilityAdapter(client)

	facility := &entities.Facility{ID: "vha_688", Name: "Washington VA Medical Center", FacilityType: entities.FacilityTypeHealth}
	require.NoError(t, repo.Save(ctx, facility, "hash-1"))

	got, err := repo.FindByID(ctx, "VHA_688")
	require.NoError(t, err)
	assert.Equal(t, "Washington VA Medical Center", got.Name)

	missingAt := time.Date(2026, 3, 1, 2, 0, 0, 0, time.UTC)
	require.NoError(t, repo.MarkMissing(ctx, []string{"vha_688"}, missingAt))

	snapshot, err := repo.Snapshot(ctx)
	require.NoError(t, err)
	assert.True(t, snapshot["vha_688"].Missing)
	assert.Equal(t, "hash-1", snapshot["vha_688"].ContentHash)

	// saving again revives the facility
	require.NoError(t, repo.Save(ctx, facility, "hash-2"))
	stored, err := repo.FindStored(ctx, "vha_688")
	require.NoError(t, err)
	assert.Nil(t, stored.MissingSince)
	assert.Equal(t, "hash-2", stored.ContentHash)

	require.NoError(t, repo.Delete(ctx, "vha_688"))
	_, err = repo.FindByID(ctx, "vha_688")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestOverlayAndBandStoreIntegration(t *testing.T) {
	client := newTestPostgresClient(t)
	ctx := context.Background()

	overlays := NewOverlayAdapter(client)
	_, err := overlays.Update(ctx, "vha_688", func(current *entities.Overlay) (*entities.Overlay, error) {
		assert.Nil(t, current)
		return &entities.Overlay{
			ID:              "vha_688",
			OperatingStatus: &entities.OperatingStatus{Code: entities.OperatingStatusLimited, AdditionalInfo: "Reduced hours"},
		}, nil
	})
	require.NoError(t, err)
	all, err := overlays.FindAll(ctx)
	require.NoError(t, err)
	require.Contains(t, all, "vha_688")
	assert.Equal(t, entities.OperatingStatusLimited, all["vha_688"].OperatingStatus.Code)

	bands := NewDriveTimeBandAdapter(client)
	band := &entities.DriveTimeBand{
		ID:         "vha_688_0_10",
		FacilityID: "vha_688",
		MinMinutes: 0,
		MaxMinutes: 10,
		Rings:      [][]entities.Point{{{-77.1, 38.8}, {-76.9, 38.8}, {-76.9, 39.0}, {-77.1, 39.0}, {-77.1, 38.8}}},
		Version:    "2026-10",
	}
	band.ComputeBounds()
	require.NoError(t, bands.Save(ctx, band))

	found, err := bands.FindInBounds(ctx, 38.9, -77.0, 90)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "vha_688", found[0].FacilityID)

	found, err = bands.FindInBounds(ctx, 40.0, -77.0, 90)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestOverlayConcurrentUpdateIntegration(t *testing.T) {
	client := newTestPostgresClient(t)
	ctx := context.Background()

	overlays := NewOverlayAdapter(client)
	require.NoError(t, overlays.Delete(ctx, "vha_640"))

	const writers = 8
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < writers; i++ {
		name := fmt.Sprintf("Clinic %d", i)
		g.Go(func() error {
			_, err := overlays.Update(gctx, "VHA_640", func(current *entities.Overlay) (*entities.Overlay, error) {
				next := &entities.Overlay{ID: "vha_640"}
				if current != nil {
					next = current
				}
				next.DetailedServices = append(next.DetailedServices, entities.DetailedService{Name: name, Active: true})
				next.UpdatedAt = time.Time{}
				return next, nil
			})
			return err
		})
	}
	require.NoError(t, g.Wait())

	stored, err := overlays.FindByID(ctx, "vha_640")
	require.NoError(t, err)
	assert.Len(t, stored.DetailedServices, writers)
}
