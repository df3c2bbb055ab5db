package controller

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"bryllupstorget_backend/internal/middleware"
	"bryllupstorget_backend/internal/model"
	"bryllupstorget_backend/pkg/database"
	"bryllupstorget_backend/pkg/subscription"
	"bryllupstorget_backend/pkg/utils/storage"
	"bryllupstorget_backend/pkg/utils/validation"
)

func InitGalleryController() {}

// UploadGalleryPhoto stores one gallery image and meters it. The photo
// quota itself is enforced by RequireQuota on the route.
func UploadGalleryPhoto(c *fiber.Ctx) error {
	claims := middleware.VendorFromContext(c)

	file, err := c.FormFile("photo")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "photo file is required",
		})
	}
	if err := validation.ValidateImage(file); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	var vendor model.Vendor
	if err := database.GetDB().First(&vendor, claims.VendorID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Vendor not found",
		})
	}

	result, err := storage.UploadGalleryPhoto(file, vendor.Username)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not store photo",
		})
	}

	photo := model.GalleryPhoto{
		VendorID:    claims.VendorID,
		URL:         result.URL,
		StorageKey:  result.StorageKey,
		ContentType: result.ContentType,
		SizeBytes:   result.SizeBytes,
	}
	if err := database.GetDB().Create(&photo).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not save photo",
		})
	}

	if _, err := subscriptionService.TrackUsage(claims.VendorID, subscription.MetricPhotosUploaded, 1); err != nil {
		log.Printf("could not track photo upload for vendor %d: %v", claims.VendorID, err)
	}
	if mb := bytesToMB(result.SizeBytes); mb > 0 {
		if _, err := subscriptionService.TrackUsage(claims.VendorID, subscription.MetricStorageMB, mb); err != nil {
			log.Printf("could not track storage for vendor %d: %v", claims.VendorID, err)
		}
	}

	return c.Status(fiber.StatusCreated).JSON(photo)
}

// ListGalleryPhotos returns the vendor's own gallery.
func ListGalleryPhotos(c *fiber.Ctx) error {
	claims := middleware.VendorFromContext(c)

	var photos []model.GalleryPhoto
	err := database.GetDB().
		Where("vendor_id = ?", claims.VendorID).
		Order("created_at DESC").
		Find(&photos).Error
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not fetch photos",
		})
	}

	return c.JSON(photos)
}

// DeleteGalleryPhoto removes a photo and releases its metered storage.
// The upload counter is not decremented: it counts uploads per period,
// not live photos.
func DeleteGalleryPhoto(c *fiber.Ctx) error {
	claims := middleware.VendorFromContext(c)
	photoID := c.Params("id")

	var photo model.GalleryPhoto
	if err := database.GetDB().First(&photo, photoID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Photo not found",
		})
	}
	if photo.VendorID != claims.VendorID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "You don't have permission to delete this photo",
		})
	}

	if err := storage.DeletePhoto(photo.StorageKey); err != nil {
		log.Printf("could not delete stored photo %s: %v", photo.StorageKey, err)
	}
	if err := database.GetDB().Delete(&photo).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not delete photo",
		})
	}

	if mb := bytesToMB(photo.SizeBytes); mb > 0 {
		if _, err := subscriptionService.TrackUsage(claims.VendorID, subscription.MetricStorageMB, -mb); err != nil {
			log.Printf("could not release storage for vendor %d: %v", claims.VendorID, err)
		}
	}

	return c.JSON(fiber.Map{"message": "Photo deleted"})
}

func bytesToMB(n int64) int64 {
	const mb = 1024 * 1024
	return (n + mb - 1) / mb
}
