package testing

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/amirphl/realty-workflow/models"
	"github.com/amirphl/realty-workflow/utils"
)

// TestPassword is the plaintext behind every fixture credential
const TestPassword = "TestPass123!"

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

func hashTestPassword() (string, error) {
	// MinCost keeps the suite fast; production cost comes from config
	hashed, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

func randomDigits(n int) string {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte('0' + rand.Intn(10))
	}
	return string(out)
}

// CreateTestLead creates an unverified lead of the given type
func (tf *TestFixtures) CreateTestLead(leadType string) (*models.Lead, error) {
	suffix := randomDigits(7)
	lead := &models.Lead{
		UUID:   uuid.New(),
		Type:   leadType,
		Name:   "Jane Buyer",
		Email:  fmt.Sprintf("jane.%s@example.com", suffix),
		Phone:  "+1212" + suffix,
		Source: models.LeadSourceWebsiteForm,
		Status: models.LeadStatusNew,
		VerificationState: models.VerificationState{
			EmailVerified: utils.ToPtr(false),
			PhoneVerified: utils.ToPtr(false),
		},
	}
	if err := tf.DB.DB.Create(lead).Error; err != nil {
		return nil, fmt.Errorf("failed to create test lead: %w", err)
	}
	return lead, nil
}

// CreateTestPartner creates a partner with the given approval status and verification flags
func (tf *TestFixtures) CreateTestPartner(status string, emailVerified, phoneVerified bool) (*models.Partner, error) {
	hashed, err := hashTestPassword()
	if err != nil {
		return nil, err
	}
	suffix := randomDigits(7)
	partner := &models.Partner{
		UUID:           uuid.New(),
		Username:       "partner" + suffix,
		PasswordHash:   hashed,
		Email:          fmt.Sprintf("partner.%s@example.com", suffix),
		FirstName:      "Pat",
		LastName:       "Partner",
		Phone:          utils.ToPtr("+1646" + suffix),
		IsActive:       utils.ToPtr(true),
		ApprovalStatus: status,
		VerificationState: models.VerificationState{
			EmailVerified: utils.ToPtr(emailVerified),
			PhoneVerified: utils.ToPtr(phoneVerified),
		},
	}
	if err := tf.DB.DB.Create(partner).Error; err != nil {
		return nil, fmt.Errorf("failed to create test partner: %w", err)
	}
	return partner, nil
}

// CreateTestUser creates a site user
func (tf *TestFixtures) CreateTestUser(emailVerified bool) (*models.User, error) {
	hashed, err := hashTestPassword()
	if err != nil {
		return nil, err
	}
	suffix := randomDigits(7)
	user := &models.User{
		UUID:         uuid.New(),
		Username:     "user" + suffix,
		PasswordHash: hashed,
		Email:        fmt.Sprintf("user.%s@example.com", suffix),
		FirstName:    "Uma",
		IsActive:     utils.ToPtr(true),
		VerificationState: models.VerificationState{
			EmailVerified: utils.ToPtr(emailVerified),
			PhoneVerified: utils.ToPtr(false),
		},
	}
	if err := tf.DB.DB.Create(user).Error; err != nil {
		return nil, fmt.Errorf("failed to create test user: %w", err)
	}
	return user, nil
}

// CreatePendingInvestor creates an institutional investor application without credentials
func (tf *TestFixtures) CreatePendingInvestor() (*models.InstitutionalInvestor, error) {
	suffix := randomDigits(7)
	investor := &models.InstitutionalInvestor{
		UUID:            uuid.New(),
		PersonName:      "Ivan Investor",
		InstitutionName: "Hudson Capital",
		JobTitle:        "Acquisitions Director",
		Email:           fmt.Sprintf("ivan.%s@hudson.example.com", suffix),
		WorkPhone:       "+1917" + suffix,
		PersonalPhone:   "+1347" + suffix,
		Status:          models.ApprovalStatusPending,
		IsActive:        utils.ToPtr(false),
	}
	if err := tf.DB.DB.Create(investor).Error; err != nil {
		return nil, fmt.Errorf("failed to create test investor: %w", err)
	}
	return investor, nil
}

// CreateApprovedInvestor creates an active investor whose password is TestPassword
func (tf *TestFixtures) CreateApprovedInvestor() (*models.InstitutionalInvestor, error) {
	investor, err := tf.CreatePendingInvestor()
	if err != nil {
		return nil, err
	}
	hashed, err := hashTestPassword()
	if err != nil {
		return nil, err
	}
	now := utils.UTCNow()
	updates := map[string]any{
		"status":        models.ApprovalStatusApproved,
		"is_active":     true,
		"username":      "investor" + randomDigits(7),
		"password_hash": hashed,
		"approved_at":   now,
		"approved_by":   utils.ApprovedByAdmin,
	}
	if err := tf.DB.DB.Model(investor).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to approve test investor: %w", err)
	}
	if err := tf.DB.DB.First(investor, investor.ID).Error; err != nil {
		return nil, err
	}
	return investor, nil
}

// CreateTestAdmin creates an active administrator
func (tf *TestFixtures) CreateTestAdmin(username string) (*models.Admin, error) {
	hashed, err := hashTestPassword()
	if err != nil {
		return nil, err
	}
	admin := &models.Admin{
		UUID:         uuid.New(),
		Username:     username,
		PasswordHash: hashed,
		Role:         models.AdminRoleAdministrator,
		IsActive:     utils.ToPtr(true),
	}
	if err := tf.DB.DB.Create(admin).Error; err != nil {
		return nil, fmt.Errorf("failed to create test admin: %w", err)
	}
	return admin, nil
}

// BackdateVerification moves the issue time of an outstanding secret into the past
func (tf *TestFixtures) BackdateVerification(table string, id uint, kind string, age time.Duration) error {
	cols := models.ColumnsFor(kind)
	return tf.DB.DB.Table(table).Where("id = ?", id).
		Update(cols.SentAt, utils.UTCNow().Add(-age)).Error
}

// ExpireInstitutionalSessions moves every session of an investor into the past
func (tf *TestFixtures) ExpireInstitutionalSessions(investorID uint) error {
	return tf.DB.DB.Model(&models.InstitutionalSession{}).
		Where("investor_id = ?", investorID).
		Update("expires_at", utils.UTCNow().Add(-time.Minute)).Error
}

// CountAudit returns the number of audit rows with the given action
func (tf *TestFixtures) CountAudit(action string) (int64, error) {
	var n int64
	err := tf.DB.DB.Model(&models.AuditLog{}).Where("action = ?", action).Count(&n).Error
	return n, err
}
