package controller

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gosimple/slug"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"bryllupstorget_backend/internal/middleware"
	"bryllupstorget_backend/internal/model"
	"bryllupstorget_backend/pkg/database"
	"bryllupstorget_backend/pkg/utils/jwt"
)

type RegisterInput struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=6"`
	CompanyName string `json:"company_name" validate:"required"`
	Category    string `json:"category"`
	City        string `json:"city"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func InitAuthController() {}

func Register(c *fiber.Ctx) error {
	input := new(RegisterInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid input",
		})
	}
	if input.Email == "" || input.Password == "" || input.CompanyName == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "email, password and company_name are required",
		})
	}

	var existing model.Vendor
	if err := database.GetDB().Where("email = ?", input.Email).First(&existing).Error; err == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Email already exists",
		})
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not hash password",
		})
	}

	vendor := model.Vendor{
		Email:       input.Email,
		Password:    string(hashedPassword),
		Username:    slug.Make(input.CompanyName),
		CompanyName: input.CompanyName,
		Category:    input.Category,
		City:        input.City,
	}

	if err := database.GetDB().Create(&vendor).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not create vendor account",
		})
	}

	token, err := jwt.GenerateToken(vendor.ID, vendor.Email, vendor.CompanyName)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not generate token",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Registration successful",
		"token":   token,
		"vendor":  vendor.GetPublicProfile(),
	})
}

func Login(c *fiber.Ctx) error {
	input := new(LoginInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid input",
		})
	}

	var vendor model.Vendor
	if err := database.GetDB().Where("email = ?", input.Email).First(&vendor).Error; err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid credentials",
		})
	}

	if err := bcrypt.CompareHashAndPassword([]byte(vendor.Password), []byte(input.Password)); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid credentials",
		})
	}

	token, err := jwt.GenerateToken(vendor.ID, vendor.Email, vendor.CompanyName)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not generate token",
		})
	}

	return c.JSON(fiber.Map{
		"token": token,
		"vendor": fiber.Map{
			"id":           vendor.ID,
			"email":        vendor.Email,
			"company_name": vendor.CompanyName,
		},
	})
}

// GetMe returns the authenticated vendor's profile.
func GetMe(c *fiber.Ctx) error {
	claims := middleware.VendorFromContext(c)

	var vendor model.Vendor
	if err := database.GetDB().First(&vendor, claims.VendorID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Vendor not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not fetch vendor",
		})
	}

	return c.JSON(fiber.Map{
		"vendor": fiber.Map{
			"id":           vendor.ID,
			"email":        vendor.Email,
			"username":     vendor.Username,
			"company_name": vendor.CompanyName,
			"category":     vendor.Category,
			"city":         vendor.City,
			"created_at":   vendor.CreatedAt,
		},
	})
}
