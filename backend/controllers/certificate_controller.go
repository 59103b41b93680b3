package controllers

import (
	"errors"
	"strconv"

	"stoa/backend/config"
	"stoa/backend/services"
	"stoa/backend/utils"

	"github.com/gofiber/fiber/v2"
)

type CertificateController struct {
	Cfg          *config.Config
	Certificates *services.Certificates
}

func NewCertificateController(cfg *config.Config, certificates *services.Certificates) *CertificateController {
	return &CertificateController{Cfg: cfg, Certificates: certificates}
}

// Issue godoc
// @Summary Issue a certificate
// @Description Mints the certificate for a completed certification, idempotently
// @Tags certificates
// @Router /certifications/{id}/certificate [post]
func (cc *CertificateController) Issue(c *fiber.Ctx) error {
	studentID, err := utils.ExtractStudentIDFromToken(c, cc.Cfg)
	if err != nil {
		return utils.Unauthorized(c, "Unauthorized")
	}

	certificationID, err := strconv.Atoi(c.Params("id"))
	if err != nil || certificationID <= 0 {
		return utils.BadRequest(c, "Invalid certification ID")
	}

	certificate, err := cc.Certificates.Issue(studentID, uint(certificationID))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNotEnrolled):
			return utils.Forbidden(c, "Not enrolled in this certification")
		case errors.Is(err, services.ErrNotCompleted):
			return utils.BadRequest(c, "Certification is not completed yet")
		default:
			return utils.InternalServerError(c, "Could not issue certificate")
		}
	}

	return utils.Created(c, fiber.Map{
		"message":     "Certificate issued",
		"certificate": certificate,
	})
}
