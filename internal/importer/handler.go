package importer

import (
	"errors"
	"fmt"
	"time"

	"truck-tracker-backend/internal/audit"
	"truck-tracker-backend/internal/auth"
	"truck-tracker-backend/internal/database"
	"truck-tracker-backend/internal/metrics"
	"truck-tracker-backend/internal/models"
	"truck-tracker-backend/internal/session"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const previewLimit = 10

type PreviewResponse struct {
	Success              bool                     `json:"success"`
	SessionID            string                   `json:"session_id"`
	Preview              []models.MonthlyTemplate `json:"preview"`
	TotalTemplates       int                      `json:"total_templates"`
	TotalRecordsToCreate int                      `json:"total_records_to_create"`
	Errors               []string                 `json:"errors"`
	ColumnsFound         []string                 `json:"columns_found"`
	Message              string                   `json:"message"`
}

type ConfirmRequest struct {
	SessionID string `json:"session_id"`
}

type ConfirmResponse struct {
	Success       bool           `json:"success"`
	Imported      int            `json:"imported"`
	Failed        int            `json:"failed"`
	FailedDetails []FailedImport `json:"failed_details"`
	Message       string         `json:"message"`
}

// POST /api/trucks/import/preview (multipart field "file")
func PreviewHandler(store session.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fileHeader, err := c.FormFile("file")
		if err != nil || !IsSpreadsheetName(fileHeader.Filename) {
			return fiber.NewError(fiber.StatusBadRequest, ErrUnsupportedFile.Error())
		}

		file, err := fileHeader.Open()
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Error reading Excel file: "+err.Error())
		}
		defer file.Close()

		rows, err := ReadRows(file, fileHeader.Filename)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Error reading Excel file: "+err.Error())
		}

		result, err := ParseTemplates(rows)
		if err != nil {
			var missing *MissingColumnsError
			if errors.As(err, &missing) {
				return fiber.NewError(fiber.StatusBadRequest, missing.Error())
			}
			return fiber.NewError(fiber.StatusBadRequest, "Error reading Excel file: "+err.Error())
		}

		sess := &session.ImportSession{
			ID:                   uuid.NewString(),
			Templates:            result.Templates,
			UserID:               auth.CurrentUsername(c),
			CreatedAt:            time.Now().UTC(),
			TotalRecordsToCreate: result.TotalRecordsToCreate,
		}
		if err := store.Save(c.UserContext(), sess); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to store import session: "+err.Error())
		}
		metrics.ImportPreviewsTotal.Inc()

		preview := result.Templates
		if len(preview) > previewLimit {
			preview = preview[:previewLimit]
		}

		return c.JSON(PreviewResponse{
			Success:              true,
			SessionID:            sess.ID,
			Preview:              preview,
			TotalTemplates:       len(result.Templates),
			TotalRecordsToCreate: result.TotalRecordsToCreate,
			Errors:               result.Errors,
			ColumnsFound:         result.ColumnsFound,
			Message: fmt.Sprintf("Will create %d daily records from %d monthly templates",
				result.TotalRecordsToCreate, len(result.Templates)),
		})
	}
}

// POST /api/trucks/import/confirm
func ConfirmHandler(store session.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body ConfirmRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		ctx := c.UserContext()
		username := auth.CurrentUsername(c)

		sess, err := store.Get(ctx, body.SessionID)
		if err != nil {
			return sessionError(err)
		}
		if sess.UserID != username {
			return fiber.NewError(fiber.StatusForbidden, "Unauthorized")
		}

		unlock, err := store.Lock(ctx, sess.ID)
		if err != nil {
			return sessionError(err)
		}
		defer unlock()

		// A concurrent confirm may have consumed the session before we got the lock.
		if _, err := store.Get(ctx, sess.ID); err != nil {
			return sessionError(err)
		}

		outcome := Materialize(ctx, database.DB, sess.Templates)

		if err := store.Delete(ctx, sess.ID); err != nil {
			zap.L().Warn("import session could not be deleted", zap.String("session_id", sess.ID), zap.Error(err))
		}

		metrics.ImportRecordsTotal.WithLabelValues("created").Add(float64(outcome.Created))
		metrics.ImportRecordsTotal.WithLabelValues("updated").Add(float64(outcome.Updated))
		metrics.ImportRecordsTotal.WithLabelValues("failed").Add(float64(len(outcome.Failed)))

		if err := audit.WriteLog(audit.LogOptions{
			UserName:    username,
			EntityType:  models.EntityImport,
			EntityID:    sess.ID,
			Action:      models.AuditActionImport,
			Description: fmt.Sprintf("Imported %d daily records from %d monthly templates", outcome.Imported, len(sess.Templates)),
			After: fiber.Map{
				"imported": outcome.Imported,
				"created":  outcome.Created,
				"updated":  outcome.Updated,
				"failed":   len(outcome.Failed),
			},
		}); err != nil {
			zap.L().Warn("audit log failed", zap.Error(err))
		}

		return c.JSON(ConfirmResponse{
			Success:       true,
			Imported:      outcome.Imported,
			Failed:        len(outcome.Failed),
			FailedDetails: outcome.Failed,
			Message:       fmt.Sprintf("Successfully imported %d daily records from monthly templates", outcome.Imported),
		})
	}
}

func sessionError(err error) error {
	switch {
	case errors.Is(err, session.ErrNotFound):
		return fiber.NewError(fiber.StatusBadRequest, "Import session not found or expired")
	case errors.Is(err, session.ErrLocked):
		return fiber.NewError(fiber.StatusConflict, "Import session is already being confirmed")
	}
	return fiber.NewError(fiber.StatusInternalServerError, "Import session lookup failed: "+err.Error())
}
