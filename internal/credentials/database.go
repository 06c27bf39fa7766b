package credentials

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/wealthdesk/exchange-gateway/internal/types"
)

// Credential is one advisor's stored secrets for one exchange. Secret fields
// are sealed per field with their own IV so rows are independently
// decryptable.
type Credential struct {
	gorm.Model    `json:"-"`
	AdvisorID     string         `gorm:"uniqueIndex:idx_credentials_advisor_exchange" json:"advisor_id"`
	Exchange      types.Exchange `gorm:"uniqueIndex:idx_credentials_advisor_exchange" json:"exchange"`
	MemberID      string         `json:"member_id"`
	LoginID       string         `json:"login_id"`
	SecretEnc     string         `json:"-"`
	SecretIV      string         `json:"-"`
	LicenseKeyEnc string         `json:"-"`
	LicenseKeyIV  string         `json:"-"`
	Active        bool           `json:"active"`
	LastTestedAt  *time.Time     `json:"last_tested_at,omitempty"`
	TestStatus    string         `json:"test_status,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) Get(advisorID string, exchange types.Exchange) (*Credential, error) {
	var cred Credential
	err := d.db.Where("advisor_id = ? AND exchange = ?", advisorID, exchange).First(&cred).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cred, nil
}

// Upsert replaces the stored credential for the advisor/exchange pair.
func (d *Database) Upsert(cred *Credential) error {
	existing, err := d.Get(cred.AdvisorID, cred.Exchange)
	if err != nil {
		return err
	}
	if existing == nil {
		return d.db.Create(cred).Error
	}
	cred.ID = existing.ID
	cred.CreatedAt = existing.CreatedAt
	return d.db.Save(cred).Error
}

func (d *Database) Update(cred *Credential) error {
	return d.db.Save(cred).Error
}
