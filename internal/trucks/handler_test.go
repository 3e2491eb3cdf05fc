package trucks

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"truck-tracker-backend/internal/auth"
	"truck-tracker-backend/internal/models"
	"truck-tracker-backend/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTruckApp(t *testing.T) *fiber.App {
	t.Helper()
	cfg := testutil.Config()
	app := testutil.NewApp()

	api := app.Group("/api", auth.JWTMiddleware(cfg))
	api.Get("/stats", auth.RequireRole(models.RoleViewer), StatsHandler())

	g := api.Group("/trucks")
	g.Get("/", auth.RequireRole(models.RoleViewer), ListTrucksHandler())
	g.Post("/", auth.RequireRole(models.RoleUser), CreateTruckHandler())
	g.Get("/template", auth.RequireRole(models.RoleViewer), TemplateHandler())
	g.Get("/template/json", auth.RequireRole(models.RoleViewer), TemplateJSONHandler())
	g.Get("/export", auth.RequireRole(models.RoleViewer), ExportHandler())
	g.Get("/duplicate-stats", auth.RequireRole(models.RoleViewer), DuplicateStatsHandler())
	g.Get("/:id", auth.RequireRole(models.RoleViewer), GetTruckHandler())
	g.Put("/:id", auth.RequireRole(models.RoleUser), UpdateTruckHandler())
	g.Delete("/:id", auth.RequireRole(models.RoleAdmin), DeleteTruckHandler())
	g.Patch("/:id/status", auth.RequireRole(models.RoleUser), UpdateStatusHandler())
	return app
}

func tokenFor(t *testing.T, name string, role models.UserRole) string {
	t.Helper()
	tok, err := auth.GenerateToken(testutil.JWTSecret, name, role, false, time.Hour)
	require.NoError(t, err)
	return tok
}

func sptr(s string) *string { return &s }

func seedTruck(t *testing.T, db *gorm.DB, terminal, shippingNo string, created time.Time) models.Truck {
	t.Helper()
	truck := models.Truck{
		Terminal:   terminal,
		ShippingNo: shippingNo,
		DockCode:   "DOCK-" + terminal,
		TruckRoute: "Bangkok-Chonburi",
		CreatedAt:  created,
	}
	require.NoError(t, db.Create(&truck).Error)
	return truck
}

func day(d int) time.Time {
	return time.Date(2024, 3, d, 9, 30, 0, 0, time.UTC)
}

func auditLogs(t *testing.T, db *gorm.DB, entityID string) []models.AuditLog {
	t.Helper()
	var logs []models.AuditLog
	require.NoError(t, db.Where("entity_id = ?", entityID).Order("id").Find(&logs).Error)
	return logs
}

func TestListTrucksFiltersAndOrders(t *testing.T) {
	db := testutil.NewDB(t)
	app := newTruckApp(t)
	viewer := tokenFor(t, "viewer", models.RoleViewer)

	seedTruck(t, db, "A", "S1", day(1))
	seedTruck(t, db, "B", "S2", day(2))
	seedTruck(t, db, "A", "S3", day(3))
	late := seedTruck(t, db, "A", "S4", day(4))
	require.NoError(t, db.Model(&late).Update("status_loading", models.StatusDelay).Error)

	var all []models.Truck
	resp := testutil.Do(t, app, http.MethodGet, "/api/trucks", viewer, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	testutil.DecodeJSON(t, resp, &all)
	require.Len(t, all, 4)
	assert.Equal(t, []string{"S4", "S3", "S2", "S1"}, shippingNos(all))

	var filtered []models.Truck
	resp = testutil.Do(t, app, http.MethodGet, "/api/trucks?terminal=A&date_from=2024-03-01&date_to=2024-03-03", viewer, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	testutil.DecodeJSON(t, resp, &filtered)
	assert.Equal(t, []string{"S3", "S1"}, shippingNos(filtered))

	var delayed []models.Truck
	resp = testutil.Do(t, app, http.MethodGet, "/api/trucks?status_loading=Delay", viewer, nil)
	testutil.DecodeJSON(t, resp, &delayed)
	assert.Equal(t, []string{"S4"}, shippingNos(delayed))

	var page []models.Truck
	resp = testutil.Do(t, app, http.MethodGet, "/api/trucks?skip=1&limit=2", viewer, nil)
	testutil.DecodeJSON(t, resp, &page)
	assert.Equal(t, []string{"S3", "S2"}, shippingNos(page))
}

func shippingNos(trucks []models.Truck) []string {
	out := make([]string, len(trucks))
	for i, tr := range trucks {
		out[i] = tr.ShippingNo
	}
	return out
}

func TestListTrucksRejectsBadQuery(t *testing.T) {
	testutil.NewDB(t)
	app := newTruckApp(t)
	viewer := tokenFor(t, "viewer", models.RoleViewer)

	for _, target := range []string{
		"/api/trucks?date_from=2024-13-01",
		"/api/trucks?date_to=yesterday",
		"/api/trucks?limit=abc",
		"/api/trucks?limit=0",
		"/api/trucks?skip=-1",
	} {
		resp := testutil.Do(t, app, http.MethodGet, target, viewer, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, target)
	}
}

func TestListTrucksRequiresToken(t *testing.T) {
	testutil.NewDB(t)
	app := newTruckApp(t)

	resp := testutil.Do(t, app, http.MethodGet, "/api/trucks", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestGetTruck(t *testing.T) {
	db := testutil.NewDB(t)
	app := newTruckApp(t)
	viewer := tokenFor(t, "viewer", models.RoleViewer)
	truck := seedTruck(t, db, "A", "S1", day(1))

	var got models.Truck
	resp := testutil.Do(t, app, http.MethodGet, "/api/trucks/"+truck.ID, viewer, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	testutil.DecodeJSON(t, resp, &got)
	assert.Equal(t, truck.ID, got.ID)
	assert.Equal(t, models.StatusOnProcess, got.StatusPreparation)

	resp = testutil.Do(t, app, http.MethodGet, "/api/trucks/missing", viewer, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Truck not found", testutil.Detail(t, resp))
}

func TestCreateTruck(t *testing.T) {
	db := testutil.NewDB(t)
	app := newTruckApp(t)
	user := tokenFor(t, "alice", models.RoleUser)

	resp := testutil.Do(t, app, http.MethodPost, "/api/trucks", user, fiber.Map{
		"terminal":          " A ",
		"shipping_no":       "SHP001",
		"dock_code":         "DOCK-A1",
		"truck_route":       "Bangkok-Rayong",
		"preparation_start": "08:00",
		"loading_end":       "  ",
		"status_loading":    "Delay",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created models.Truck
	testutil.DecodeJSON(t, resp, &created)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "A", created.Terminal)
	assert.Equal(t, sptr("08:00"), created.PreparationStart)
	assert.Nil(t, created.LoadingEnd)
	assert.Equal(t, models.StatusOnProcess, created.StatusPreparation)
	assert.Equal(t, models.StatusDelay, created.StatusLoading)

	var stored models.Truck
	require.NoError(t, db.First(&stored, "id = ?", created.ID).Error)
	assert.Equal(t, "SHP001", stored.ShippingNo)

	logs := auditLogs(t, db, created.ID)
	require.Len(t, logs, 1)
	assert.Equal(t, models.AuditActionCreate, logs[0].Action)
	assert.Equal(t, "alice", logs[0].UserName)
	assert.Equal(t, "null", logs[0].BeforeData)
}

func TestCreateTruckValidation(t *testing.T) {
	testutil.NewDB(t)
	app := newTruckApp(t)
	user := tokenFor(t, "alice", models.RoleUser)

	resp := testutil.Do(t, app, http.MethodPost, "/api/trucks", user, fiber.Map{
		"terminal": "A", "shipping_no": "S1", "dock_code": " ", "truck_route": "R",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "dock_code is required", testutil.Detail(t, resp))

	resp = testutil.Do(t, app, http.MethodPost, "/api/trucks", user, fiber.Map{
		"terminal": "A", "shipping_no": "S1", "dock_code": "D", "truck_route": "R",
		"status_preparation": "Done",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid status value", testutil.Detail(t, resp))

	viewer := tokenFor(t, "bob", models.RoleViewer)
	resp = testutil.Do(t, app, http.MethodPost, "/api/trucks", viewer, fiber.Map{
		"terminal": "A", "shipping_no": "S1", "dock_code": "D", "truck_route": "R",
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestUpdateTruckPartial(t *testing.T) {
	db := testutil.NewDB(t)
	app := newTruckApp(t)
	user := tokenFor(t, "alice", models.RoleUser)

	truck := seedTruck(t, db, "A", "S1", day(1))
	require.NoError(t, db.Model(&truck).Update("preparation_start", "08:00").Error)

	resp := testutil.Do(t, app, http.MethodPut, "/api/trucks/"+truck.ID, user, map[string]any{
		"dock_code":         "DOCK-Z9",
		"preparation_start": nil,
		"loading_start":     "11:15",
		"status_loading":    "Finished",
		"unknown_field":     "ignored",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var updated models.Truck
	testutil.DecodeJSON(t, resp, &updated)
	assert.Equal(t, "DOCK-Z9", updated.DockCode)
	assert.Equal(t, "A", updated.Terminal)
	assert.Nil(t, updated.PreparationStart)
	assert.Equal(t, sptr("11:15"), updated.LoadingStart)
	assert.Equal(t, models.StatusFinished, updated.StatusLoading)
	assert.True(t, truck.CreatedAt.Equal(updated.CreatedAt))
	assert.True(t, updated.UpdatedAt.After(truck.UpdatedAt) || updated.UpdatedAt.Equal(truck.UpdatedAt))

	logs := auditLogs(t, db, truck.ID)
	require.Len(t, logs, 1)
	assert.Equal(t, models.AuditActionUpdate, logs[0].Action)

	var before models.Truck
	require.NoError(t, json.Unmarshal([]byte(logs[0].BeforeData), &before))
	assert.Equal(t, "DOCK-A", before.DockCode)
	assert.Equal(t, sptr("08:00"), before.PreparationStart)
}

func TestUpdateTruckErrors(t *testing.T) {
	db := testutil.NewDB(t)
	app := newTruckApp(t)
	user := tokenFor(t, "alice", models.RoleUser)
	truck := seedTruck(t, db, "A", "S1", day(1))

	tests := []struct {
		name   string
		id     string
		body   map[string]any
		status int
		detail string
	}{
		{"no fields", truck.ID, map[string]any{"foo": "bar"}, http.StatusBadRequest, "No fields to update"},
		{"empty required", truck.ID, map[string]any{"terminal": "  "}, http.StatusBadRequest, "terminal cannot be empty"},
		{"null required", truck.ID, map[string]any{"shipping_no": nil}, http.StatusBadRequest, "shipping_no cannot be null"},
		{"bad status", truck.ID, map[string]any{"status_preparation": "Done"}, http.StatusBadRequest, "Invalid status value"},
		{"wrong type", truck.ID, map[string]any{"dock_code": 12}, http.StatusBadRequest, "Invalid value for dock_code"},
		{"unknown id", "missing", map[string]any{"terminal": "B"}, http.StatusNotFound, "Truck not found"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := testutil.Do(t, app, http.MethodPut, "/api/trucks/"+tc.id, user, tc.body)
			assert.Equal(t, tc.status, resp.StatusCode)
			assert.Equal(t, tc.detail, testutil.Detail(t, resp))
		})
	}

	assert.Empty(t, auditLogs(t, db, truck.ID))
}

func TestDeleteTruck(t *testing.T) {
	db := testutil.NewDB(t)
	app := newTruckApp(t)
	truck := seedTruck(t, db, "A", "S1", day(1))

	resp := testutil.Do(t, app, http.MethodDelete, "/api/trucks/"+truck.ID, tokenFor(t, "alice", models.RoleUser), nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	admin := tokenFor(t, "root", models.RoleAdmin)
	resp = testutil.Do(t, app, http.MethodDelete, "/api/trucks/"+truck.ID, admin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]string
	testutil.DecodeJSON(t, resp, &body)
	assert.Equal(t, "Truck deleted successfully", body["message"])

	var count int64
	require.NoError(t, db.Model(&models.Truck{}).Count(&count).Error)
	assert.Zero(t, count)

	resp = testutil.Do(t, app, http.MethodDelete, "/api/trucks/"+truck.ID, admin, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	logs := auditLogs(t, db, truck.ID)
	require.Len(t, logs, 1)
	assert.Equal(t, models.AuditActionDelete, logs[0].Action)
	assert.Equal(t, "null", logs[0].AfterData)
}

func TestUpdateStatus(t *testing.T) {
	db := testutil.NewDB(t)
	app := newTruckApp(t)
	user := tokenFor(t, "alice", models.RoleUser)
	truck := seedTruck(t, db, "A", "S1", day(1))

	resp := testutil.Do(t, app, http.MethodPatch, "/api/trucks/"+truck.ID+"/status?status_type=unloading&status=Delay", user, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid status type", testutil.Detail(t, resp))

	resp = testutil.Do(t, app, http.MethodPatch, "/api/trucks/"+truck.ID+"/status?status_type=loading&status=Late", user, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid status value", testutil.Detail(t, resp))

	resp = testutil.Do(t, app, http.MethodPatch, "/api/trucks/missing/status?status_type=loading&status=Delay", user, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = testutil.Do(t, app, http.MethodPatch, "/api/trucks/"+truck.ID+"/status?status_type=loading&status=On%20Process", user, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = testutil.Do(t, app, http.MethodPatch, "/api/trucks/"+truck.ID+"/status?status_type=preparation&status=Finished", user, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var updated models.Truck
	testutil.DecodeJSON(t, resp, &updated)
	assert.Equal(t, models.StatusFinished, updated.StatusPreparation)
	assert.Equal(t, models.StatusOnProcess, updated.StatusLoading)

	logs := auditLogs(t, db, truck.ID)
	require.Len(t, logs, 2)
	assert.Equal(t, models.AuditActionStatus, logs[1].Action)
}
