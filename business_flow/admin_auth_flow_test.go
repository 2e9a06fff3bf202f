package businessflow_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/amirphl/realty-workflow/app/dto"
	"github.com/amirphl/realty-workflow/app/services"
	businessflow "github.com/amirphl/realty-workflow/business_flow"
	"github.com/amirphl/realty-workflow/models"
	"github.com/amirphl/realty-workflow/repository"
	testingutil "github.com/amirphl/realty-workflow/testing"
	"github.com/amirphl/realty-workflow/utils"
)

type fixedCaptcha struct{ angle float64 }

func (f fixedCaptcha) GenerateRotate(ctx context.Context) (*services.RotateChallenge, error) {
	return &services.RotateChallenge{ID: "challenge-1"}, nil
}

func (f fixedCaptcha) VerifyRotate(ctx context.Context, challengeID string, userAngle float64) bool {
	return challengeID == "challenge-1" && userAngle == f.angle
}

func TestAdminAuthFlow(t *testing.T) {
	ctx := context.Background()
	env := newFlowEnv(t)

	t.Run("BootstrapCreatesOnce", func(t *testing.T) {
		created, err := env.AdminAuth.EnsureBootstrapAdmin(ctx, " root ", "Bootstrap-Pass-1")
		require.NoError(t, err)
		assert.True(t, created)

		created, err = env.AdminAuth.EnsureBootstrapAdmin(ctx, "root", "Another-Pass-2")
		require.NoError(t, err)
		assert.False(t, created, "existing admin keeps its password")

		_, err = env.AdminAuth.Login(ctx, &dto.AdminLoginRequest{Username: "root", Password: "Bootstrap-Pass-1"}, metadata())
		assert.NoError(t, err)

		created, err = env.AdminAuth.EnsureBootstrapAdmin(ctx, "", "")
		require.NoError(t, err)
		assert.False(t, created)
	})

	t.Run("LoginSessionLogout", func(t *testing.T) {
		admin, err := env.Fixtures.CreateTestAdmin("ops_admin")
		require.NoError(t, err)

		out, err := env.AdminAuth.Login(ctx, &dto.AdminLoginRequest{Username: "ops_admin", Password: testingutil.TestPassword}, metadata())
		require.NoError(t, err)
		assert.Len(t, out.SessionToken, 2*utils.SessionTokenBytes)
		assert.Equal(t, admin.ID, out.Admin.ID)
		assert.NotNil(t, out.Admin.LastLoginAt)

		who, err := env.AdminAuth.Authenticate(ctx, out.SessionToken)
		require.NoError(t, err)
		assert.Equal(t, admin.ID, who.ID)

		me, err := env.AdminAuth.Me(ctx, admin.ID)
		require.NoError(t, err)
		assert.Equal(t, "ops_admin", me.Username)

		require.NoError(t, env.AdminAuth.Logout(ctx, out.SessionToken, metadata()))
		_, err = env.AdminAuth.Authenticate(ctx, out.SessionToken)
		assert.True(t, businessflow.IsUnauthenticated(err))
	})

	t.Run("WrongPasswordIsAudited", func(t *testing.T) {
		_, err := env.Fixtures.CreateTestAdmin("careful_admin")
		require.NoError(t, err)

		_, err = env.AdminAuth.Login(ctx, &dto.AdminLoginRequest{Username: "careful_admin", Password: "guess"}, metadata())
		assert.True(t, businessflow.IsInvalidCredentials(err))
		_, err = env.AdminAuth.Login(ctx, &dto.AdminLoginRequest{Username: "nobody", Password: "guess"}, metadata())
		assert.True(t, businessflow.IsInvalidCredentials(err))

		n, err := env.Fixtures.CountAudit(models.AuditActionLoginFailed)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, int64(2))
	})

	t.Run("NoHardcodedCredentials", func(t *testing.T) {
		for _, pw := range []string{"admin", "password", "admin123"} {
			_, err := env.AdminAuth.Login(ctx, &dto.AdminLoginRequest{Username: "admin", Password: pw}, metadata())
			assert.True(t, businessflow.IsInvalidCredentials(err), "password %q", pw)
		}
	})

	t.Run("InactiveAdminIsRefused", func(t *testing.T) {
		admin, err := env.Fixtures.CreateTestAdmin("retired_admin")
		require.NoError(t, err)
		out, err := env.AdminAuth.Login(ctx, &dto.AdminLoginRequest{Username: "retired_admin", Password: testingutil.TestPassword}, metadata())
		require.NoError(t, err)

		require.NoError(t, env.DB.DB.Model(&models.Admin{}).Where("id = ?", admin.ID).Update("is_active", false).Error)

		_, err = env.AdminAuth.Authenticate(ctx, out.SessionToken)
		assert.True(t, businessflow.IsAccountInactive(err))
		_, err = env.AdminAuth.Login(ctx, &dto.AdminLoginRequest{Username: "retired_admin", Password: testingutil.TestPassword}, metadata())
		assert.True(t, businessflow.IsAccountInactive(err))
	})

	t.Run("CaptchaDisabledHasNoChallenge", func(t *testing.T) {
		_, err := env.AdminAuth.InitCaptcha(ctx)
		assert.Error(t, err)
	})
}

func TestAdminLoginWithCaptcha(t *testing.T) {
	ctx := context.Background()
	env := newFlowEnv(t)

	_, err := env.Fixtures.CreateTestAdmin("captcha_admin")
	require.NoError(t, err)

	flow := businessflow.NewAdminAuthFlow(
		repository.NewAdminRepository(env.DB.DB),
		env.Audit,
		services.NewMemoryAdminSessionStore(),
		fixedCaptcha{angle: 90},
		true,
		time.Hour,
		bcrypt.MinCost,
	)

	ch, err := flow.InitCaptcha(ctx)
	require.NoError(t, err)
	assert.Equal(t, "challenge-1", ch.ChallengeID)

	req := &dto.AdminLoginRequest{Username: "captcha_admin", Password: testingutil.TestPassword}
	_, err = flow.Login(ctx, req, metadata())
	assert.ErrorIs(t, err, businessflow.ErrInvalidCaptcha, "missing answer")

	req.ChallengeID = utils.ToPtr("challenge-1")
	req.UserAngle = utils.ToPtr(45.0)
	_, err = flow.Login(ctx, req, metadata())
	assert.ErrorIs(t, err, businessflow.ErrInvalidCaptcha, "wrong angle")

	req.UserAngle = utils.ToPtr(90.0)
	_, err = flow.Login(ctx, req, metadata())
	assert.NoError(t, err)
}
