// Package credentials manages advisor exchange credentials: encrypted
// storage, decryption for the submission path, and connectivity testing.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/wealthdesk/exchange-gateway/internal/partner"
	"github.com/wealthdesk/exchange-gateway/internal/types"
	"github.com/wealthdesk/exchange-gateway/internal/vault"
	"github.com/wealthdesk/exchange-gateway/pkg/response"
)

var (
	ErrNotConfigured = errors.New("no credentials configured for this exchange")
	ErrInactive      = errors.New("credentials for this exchange are deactivated")
)

type Service struct {
	db      *Database
	vault   *vault.Vault
	clients map[types.Exchange]partner.Client
	logger  zerolog.Logger
}

func NewService(gormDB *gorm.DB, v *vault.Vault, clients map[types.Exchange]partner.Client) *Service {
	return &Service{
		db:      NewDatabase(gormDB),
		vault:   v,
		clients: clients,
		logger:  log.With().Str("component", "credentials").Logger(),
	}
}

// SetParams is the plaintext credential set an advisor submits. It is never
// stored or logged in this form.
type SetParams struct {
	MemberID   string `json:"member_id" binding:"required"`
	LoginID    string `json:"login_id" binding:"required"`
	Secret     string `json:"secret" binding:"required"`
	LicenseKey string `json:"license_key" binding:"required"`
}

// Set encrypts and stores credentials, replacing any previous set for the
// advisor/exchange pair.
func (s *Service) Set(advisorID string, exchange types.Exchange, params SetParams) (*Credential, error) {
	secretEnc, secretIV, err := s.vault.Encrypt(params.Secret)
	if err != nil {
		return nil, fmt.Errorf("encrypting secret: %w", err)
	}
	licenseEnc, licenseIV, err := s.vault.Encrypt(params.LicenseKey)
	if err != nil {
		return nil, fmt.Errorf("encrypting license key: %w", err)
	}

	cred := &Credential{
		AdvisorID:     advisorID,
		Exchange:      exchange,
		MemberID:      params.MemberID,
		LoginID:       params.LoginID,
		SecretEnc:     secretEnc,
		SecretIV:      secretIV,
		LicenseKeyEnc: licenseEnc,
		LicenseKeyIV:  licenseIV,
		Active:        true,
	}
	if err := s.db.Upsert(cred); err != nil {
		return nil, err
	}
	s.logger.Info().Str("advisor_id", advisorID).Str("exchange", string(exchange)).Msg("credentials updated")
	return cred, nil
}

// Status returns the stored credential metadata without decrypting anything.
func (s *Service) Status(advisorID string, exchange types.Exchange) (*Credential, error) {
	return s.db.Get(advisorID, exchange)
}

// Decrypted loads and opens the advisor's credentials for one exchange. A
// decryption failure comes back wrapping vault.ErrDecryption, which callers
// must treat as permanent.
func (s *Service) Decrypted(advisorID string, exchange types.Exchange) (partner.Credentials, error) {
	cred, err := s.db.Get(advisorID, exchange)
	if err != nil {
		return partner.Credentials{}, err
	}
	if cred == nil {
		return partner.Credentials{}, ErrNotConfigured
	}
	if !cred.Active {
		return partner.Credentials{}, ErrInactive
	}

	secret, err := s.vault.Decrypt(cred.SecretEnc, cred.SecretIV)
	if err != nil {
		return partner.Credentials{}, err
	}
	licenseKey, err := s.vault.Decrypt(cred.LicenseKeyEnc, cred.LicenseKeyIV)
	if err != nil {
		return partner.Credentials{}, err
	}

	return partner.Credentials{
		AdvisorID:  advisorID,
		MemberID:   cred.MemberID,
		LoginID:    cred.LoginID,
		Secret:     secret,
		LicenseKey: licenseKey,
	}, nil
}

// Test makes a live connectivity call with the stored credentials and stamps
// the outcome on the record.
func (s *Service) Test(ctx context.Context, advisorID string, exchange types.Exchange) (bool, string, error) {
	creds, err := s.Decrypted(advisorID, exchange)
	if err != nil {
		return false, "", err
	}
	client, ok := s.clients[exchange]
	if !ok {
		return false, "", fmt.Errorf("no client configured for exchange %s", exchange)
	}

	status := "OK"
	ok = true
	message := "connectivity verified"
	if pingErr := client.Ping(ctx, creds); pingErr != nil {
		status = "FAILED"
		ok = false
		message = pingErr.Error()
	}

	if cred, getErr := s.db.Get(advisorID, exchange); getErr == nil && cred != nil {
		now := time.Now()
		cred.LastTestedAt = &now
		cred.TestStatus = status
		if updateErr := s.db.Update(cred); updateErr != nil {
			s.logger.Warn().Err(updateErr).Str("advisor_id", advisorID).Msg("failed to stamp credential test result")
		}
	}
	return ok, message, nil
}

type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{service: service}
}

// SetHandler handles PUT /credentials/:exchange.
func (h *GinHandlers) SetHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		advisorID := c.GetString("advisor_id")
		exchange := types.Exchange(c.Param("exchange"))
		if !exchange.Valid() {
			response.BadRequest(c, "Unknown exchange")
			return
		}

		var params SetParams
		if err := c.ShouldBindJSON(&params); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		cred, err := h.service.Set(advisorID, exchange, params)
		if err != nil {
			response.InternalError(c, "Failed to store credentials")
			return
		}
		response.Success(c, cred)
	}
}

// StatusHandler handles GET /credentials/:exchange.
func (h *GinHandlers) StatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		advisorID := c.GetString("advisor_id")
		exchange := types.Exchange(c.Param("exchange"))
		if !exchange.Valid() {
			response.BadRequest(c, "Unknown exchange")
			return
		}

		cred, err := h.service.Status(advisorID, exchange)
		if err != nil {
			response.InternalError(c, "Failed to load credentials")
			return
		}
		if cred == nil {
			response.NotFound(c, "No credentials configured")
			return
		}
		response.Success(c, cred)
	}
}

// TestHandler handles POST /credentials/:exchange/test.
func (h *GinHandlers) TestHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		advisorID := c.GetString("advisor_id")
		exchange := types.Exchange(c.Param("exchange"))
		if !exchange.Valid() {
			response.BadRequest(c, "Unknown exchange")
			return
		}

		ok, message, err := h.service.Test(c.Request.Context(), advisorID, exchange)
		if err != nil {
			if errors.Is(err, ErrNotConfigured) {
				response.NotFound(c, err.Error())
				return
			}
			response.InternalError(c, err.Error())
			return
		}
		response.Success(c, gin.H{"ok": ok, "message": message})
	}
}
