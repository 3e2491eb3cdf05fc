package importer

import (
	"context"
	"testing"
	"time"

	"truck-tracker-backend/internal/models"
	"truck-tracker-backend/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func februaryTemplate(shippingNo string) models.MonthlyTemplate {
	return models.MonthlyTemplate{
		Row:               2,
		Year:              2024,
		Month:             2,
		Terminal:          "A",
		ShippingNo:        shippingNo,
		DockCode:          "DOCK-A1",
		TruckRoute:        "Bangkok-Chonburi",
		PreparationStart:  ptr("08:00"),
		StatusPreparation: models.StatusFinished,
		StatusLoading:     models.StatusOnProcess,
		PreviewDays:       29,
	}
}

func TestMaterializeExpandsEveryDay(t *testing.T) {
	db := testutil.NewDB(t)

	out := Materialize(context.Background(), db, []models.MonthlyTemplate{februaryTemplate("SHP001")})
	assert.Equal(t, 29, out.Imported)
	assert.Equal(t, 29, out.Created)
	assert.Zero(t, out.Updated)
	assert.Empty(t, out.Failed)

	var trucks []models.Truck
	require.NoError(t, db.Order("created_at").Find(&trucks).Error)
	require.Len(t, trucks, 29)

	for i, tr := range trucks {
		want := time.Date(2024, 2, i+1, 0, 0, 0, 0, time.UTC)
		assert.True(t, want.Equal(tr.CreatedAt), "day %d: %s", i+1, tr.CreatedAt)
		assert.Equal(t, "SHP001", tr.ShippingNo)
		assert.Equal(t, ptr("08:00"), tr.PreparationStart)
		assert.Nil(t, tr.LoadingStart)
		assert.Equal(t, models.StatusFinished, tr.StatusPreparation)
		assert.NotEmpty(t, tr.ID)
	}
}

func TestMaterializeIsIdempotentPerDay(t *testing.T) {
	db := testutil.NewDB(t)
	tpl := februaryTemplate("SHP001")

	first := Materialize(context.Background(), db, []models.MonthlyTemplate{tpl})
	require.Equal(t, 29, first.Created)

	var before models.Truck
	require.NoError(t, db.Where("created_at = ?", models.DayDate(2024, 2, 10)).First(&before).Error)

	tpl.StatusLoading = models.StatusDelay
	tpl.PreparationStart = nil
	second := Materialize(context.Background(), db, []models.MonthlyTemplate{tpl})
	assert.Equal(t, 29, second.Imported)
	assert.Zero(t, second.Created)
	assert.Equal(t, 29, second.Updated)

	var count int64
	require.NoError(t, db.Model(&models.Truck{}).Count(&count).Error)
	assert.Equal(t, int64(29), count)

	var after models.Truck
	require.NoError(t, db.First(&after, "id = ?", before.ID).Error)
	assert.Equal(t, models.StatusDelay, after.StatusLoading)
	assert.Nil(t, after.PreparationStart)
	assert.False(t, after.UpdatedAt.Before(before.UpdatedAt))
}

func TestMaterializeMatchesManualRecordOnSameDate(t *testing.T) {
	db := testutil.NewDB(t)

	manual := models.Truck{
		Terminal:   "Z",
		ShippingNo: "SHP001",
		DockCode:   "OLD",
		TruckRoute: "Old route",
		CreatedAt:  time.Date(2024, 2, 5, 14, 32, 0, 0, time.UTC),
	}
	require.NoError(t, db.Create(&manual).Error)

	out := Materialize(context.Background(), db, []models.MonthlyTemplate{februaryTemplate("SHP001")})
	assert.Equal(t, 28, out.Created)
	assert.Equal(t, 1, out.Updated)

	var got models.Truck
	require.NoError(t, db.First(&got, "id = ?", manual.ID).Error)
	assert.Equal(t, "A", got.Terminal)
	assert.Equal(t, "DOCK-A1", got.DockCode)
	assert.True(t, models.DayDate(2024, 2, 5).Equal(got.CreatedAt))
}

func TestMaterializeContinuesPastFailingDay(t *testing.T) {
	db := testutil.NewDB(t)
	require.NoError(t, db.Exec(`
		CREATE TRIGGER reject_day BEFORE INSERT ON trucks
		WHEN NEW.shipping_no = 'BAD' AND NEW.created_at LIKE '2024-02-10%'
		BEGIN SELECT RAISE(ABORT, 'dock closed'); END;
	`).Error)

	out := Materialize(context.Background(), db, []models.MonthlyTemplate{
		februaryTemplate("BAD"),
		februaryTemplate("GOOD"),
	})

	assert.Equal(t, 28+29, out.Imported)
	require.Len(t, out.Failed, 1)
	failed := out.Failed[0]
	assert.Equal(t, 1, failed.Template)
	require.NotNil(t, failed.Day)
	assert.Equal(t, 10, *failed.Day)
	assert.Equal(t, "BAD", failed.ShippingNo)
	assert.Contains(t, failed.Error, "dock closed")

	var bad int64
	require.NoError(t, db.Model(&models.Truck{}).Where("shipping_no = ?", "BAD").Count(&bad).Error)
	assert.Equal(t, int64(28), bad)
}

func TestMaterializeStopsOnCancelledContext(t *testing.T) {
	db := testutil.NewDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := Materialize(ctx, db, []models.MonthlyTemplate{februaryTemplate("SHP001")})
	assert.Zero(t, out.Imported)
	require.Len(t, out.Failed, 1)
	assert.Nil(t, out.Failed[0].Day)
}
