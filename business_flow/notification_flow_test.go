package businessflow

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bf1digital/spot-dispatch/app/services"
	"github.com/bf1digital/spot-dispatch/config"
	"github.com/bf1digital/spot-dispatch/models"
	"github.com/bf1digital/spot-dispatch/repository"
	testutil "github.com/bf1digital/spot-dispatch/testing"
	"github.com/bf1digital/spot-dispatch/utils"
)

type notificationFlowEnv struct {
	db       *testutil.TestDB
	fixtures *testutil.TestFixtures

	assignmentRepo repository.AssignmentRepository
	campaignRepo   repository.CampaignRepository
	attemptRepo    repository.AttemptRepository
	logRepo        repository.AssignmentLogRepository

	email    *services.MockEmailService
	whatsapp *services.MockWhatsAppService
	renderer *services.MockDocumentRenderer

	flow NotificationFlow
}

func setupNotificationFlowTest(t *testing.T) *notificationFlowEnv {
	t.Helper()

	db, err := testutil.SetupTestDB()
	if err != nil {
		t.Skipf("test database unavailable: %v", err)
	}
	t.Cleanup(func() {
		_ = db.TeardownTestDB()
	})

	env := &notificationFlowEnv{
		db:       db,
		fixtures: testutil.NewTestFixtures(db),

		assignmentRepo: repository.NewAssignmentRepository(db.DB),
		campaignRepo:   repository.NewCampaignRepository(db.DB),
		attemptRepo:    repository.NewAttemptRepository(db.DB),
		logRepo:        repository.NewAssignmentLogRepository(db.DB),

		email:    services.NewMockEmailService(),
		whatsapp: services.NewMockWhatsAppService(),
		renderer: services.NewMockDocumentRenderer(),
	}

	siteCfg := &config.SiteConfig{
		BaseURL:     "https://spot.bf1tv.bf",
		ICSTimezone: "Africa/Ouagadougou",
		UIDDomain:   "bf1tv.bf",
	}
	env.flow = NewNotificationFlow(
		env.assignmentRepo, env.campaignRepo, env.attemptRepo, env.logRepo,
		env.email, env.whatsapp, env.renderer, siteCfg, db.DB)

	return env
}

func (env *notificationFlowEnv) campaignByKind(t *testing.T, campaigns []*models.NotificationCampaign, kind models.RecipientKind) *models.NotificationCampaign {
	t.Helper()
	for _, c := range campaigns {
		if c.RecipientKind == kind {
			return c
		}
	}
	t.Fatalf("no campaign for recipient kind %s", kind)
	return nil
}

func (env *notificationFlowEnv) reloadCampaign(t *testing.T, id uuid.UUID) *models.NotificationCampaign {
	t.Helper()
	campaign, err := env.campaignRepo.ByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, campaign)
	return campaign
}

func TestCreateCampaignsFansOutPerRecipient(t *testing.T) {
	env := setupNotificationFlowTest(t)
	ctx := context.Background()

	assignment, err := env.fixtures.CreateTestAssignment()
	require.NoError(t, err)

	campaigns, err := env.flow.CreateCampaigns(ctx, assignment.ID, nil)
	require.NoError(t, err)
	require.Len(t, campaigns, 2)

	journalist := env.campaignByKind(t, campaigns, models.RecipientKindJournalist)
	driver := env.campaignByKind(t, campaigns, models.RecipientKindDriver)

	require.NotNil(t, journalist.ToEmail)
	assert.Equal(t, *assignment.JournalistEmail, *journalist.ToEmail)
	require.NotNil(t, journalist.ToPhone)
	assert.Equal(t, *assignment.JournalistPhone, *journalist.ToPhone)

	assert.Nil(t, driver.ToEmail)
	require.NotNil(t, driver.ToPhone)
	assert.Equal(t, *assignment.DriverPhone, *driver.ToPhone)

	for _, c := range campaigns {
		assert.Equal(t, models.CampaignStatusActive, c.Status)
		assert.Len(t, c.ConfirmCode, utils.ConfirmCodeLength)
		for _, r := range c.ConfirmCode {
			assert.True(t, r >= '0' && r <= '9')
		}
		assert.Nil(t, c.NextAttemptAt)
	}

	// The initial email is queued for the journalist only.
	journalistAttempts, err := env.attemptRepo.ListByCampaign(ctx, journalist.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, journalistAttempts, 1)
	assert.Equal(t, models.AttemptChannelEmail, journalistAttempts[0].Channel)
	assert.Equal(t, models.AttemptStatusQueued, journalistAttempts[0].Status)

	driverAttempts, err := env.attemptRepo.ListByCampaign(ctx, driver.ID, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, driverAttempts)

	entries, err := env.logRepo.ListByAssignment(ctx, assignment.ID, 50, 0)
	require.NoError(t, err)
	prepared := 0
	for _, e := range entries {
		if e.Label == models.LogLabelNotificationsPrepared {
			prepared++
		}
	}
	assert.Equal(t, 2, prepared)
}

func TestCreateCampaignsIsIdempotent(t *testing.T) {
	env := setupNotificationFlowTest(t)
	ctx := context.Background()

	assignment, err := env.fixtures.CreateTestAssignment()
	require.NoError(t, err)

	first, err := env.flow.CreateCampaigns(ctx, assignment.ID, nil)
	require.NoError(t, err)
	second, err := env.flow.CreateCampaigns(ctx, assignment.ID, nil)
	require.NoError(t, err)
	require.Len(t, second, len(first))

	firstIDs := map[uuid.UUID]bool{}
	for _, c := range first {
		firstIDs[c.ID] = true
	}
	for _, c := range second {
		assert.True(t, firstIDs[c.ID], "repeated call must reuse existing campaigns")
	}

	journalist := env.campaignByKind(t, second, models.RecipientKindJournalist)
	attempts, err := env.attemptRepo.ListByCampaign(ctx, journalist.ID, 10, 0)
	require.NoError(t, err)
	assert.Len(t, attempts, 1, "queued email attempt must not be duplicated")
}

func TestCreateCampaignsContactChangeStartsFreshThread(t *testing.T) {
	env := setupNotificationFlowTest(t)
	ctx := context.Background()

	assignment, err := env.fixtures.CreateTestAssignment()
	require.NoError(t, err)

	first, err := env.flow.CreateCampaigns(ctx, assignment.ID, nil)
	require.NoError(t, err)
	oldJournalist := env.campaignByKind(t, first, models.RecipientKindJournalist)
	oldDriver := env.campaignByKind(t, first, models.RecipientKindDriver)

	assignment.JournalistEmail = utils.ToPtr("remplacant@bf1tv.bf")
	require.NoError(t, env.assignmentRepo.Save(ctx, assignment))

	second, err := env.flow.CreateCampaigns(ctx, assignment.ID, nil)
	require.NoError(t, err)

	newJournalist := env.campaignByKind(t, second, models.RecipientKindJournalist)
	newDriver := env.campaignByKind(t, second, models.RecipientKindDriver)

	assert.NotEqual(t, oldJournalist.ID, newJournalist.ID, "changed email must open a new campaign")
	assert.Equal(t, oldDriver.ID, newDriver.ID, "untouched driver contact is reused")
	require.NotNil(t, newJournalist.ToEmail)
	assert.Equal(t, "remplacant@bf1tv.bf", *newJournalist.ToEmail)
}

func TestCreateCampaignsWithoutRecipients(t *testing.T) {
	env := setupNotificationFlowTest(t)

	assignment, err := env.fixtures.CreateTestAssignmentWithoutContacts()
	require.NoError(t, err)

	_, err = env.flow.CreateCampaigns(context.Background(), assignment.ID, nil)
	require.Error(t, err)
	assert.True(t, IsNoRecipients(err))
}

func TestCreateCampaignsUnknownAssignment(t *testing.T) {
	env := setupNotificationFlowTest(t)

	_, err := env.flow.CreateCampaigns(context.Background(), uuid.New(), nil)
	require.Error(t, err)
	assert.True(t, IsAssignmentNotFound(err))
}

func TestCampaignByIDAndCode(t *testing.T) {
	env := setupNotificationFlowTest(t)
	ctx := context.Background()

	assignment, err := env.fixtures.CreateTestAssignment()
	require.NoError(t, err)
	campaign, err := env.fixtures.CreateTestCampaign(assignment, models.RecipientKindJournalist)
	require.NoError(t, err)

	loaded, err := env.flow.CampaignByIDAndCode(ctx, campaign.ID, campaign.ConfirmCode)
	require.NoError(t, err)
	assert.Equal(t, campaign.ID, loaded.ID)
	require.NotNil(t, loaded.Assignment)
	assert.Equal(t, assignment.ID, loaded.Assignment.ID)

	_, err = env.flow.CampaignByIDAndCode(ctx, campaign.ID, "000000")
	assert.True(t, IsInvalidConfirmCode(err))

	_, err = env.flow.CampaignByIDAndCode(ctx, campaign.ID, "")
	assert.True(t, IsInvalidConfirmCode(err))

	_, err = env.flow.CampaignByIDAndCode(ctx, uuid.New(), campaign.ConfirmCode)
	assert.True(t, IsInvalidConfirmCode(err))
}

func TestConfirmWeb(t *testing.T) {
	env := setupNotificationFlowTest(t)
	ctx := context.Background()

	assignment, err := env.fixtures.CreateTestAssignment()
	require.NoError(t, err)
	campaign, err := env.fixtures.CreateDueCampaign(assignment, models.RecipientKindJournalist, 1)
	require.NoError(t, err)

	confirmed, err := env.flow.ConfirmWeb(ctx, campaign.ID, campaign.ConfirmCode)
	require.NoError(t, err)
	assert.Equal(t, campaign.ID, confirmed.ID)

	reloaded := env.reloadCampaign(t, campaign.ID)
	assert.Equal(t, models.CampaignStatusConfirmed, reloaded.Status)
	require.NotNil(t, reloaded.ConfirmedAt)
	assert.Equal(t, "web", reloaded.ConfirmedVia)
	assert.Nil(t, reloaded.NextAttemptAt, "confirmation must disarm the reminder loop")

	attempts, err := env.attemptRepo.ListByCampaign(ctx, campaign.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.Equal(t, models.AttemptChannelWeb, attempts[0].Channel)
	assert.Equal(t, models.AttemptStatusConfirmed, attempts[0].Status)

	// A repeat visit is a friendly no-op.
	again, err := env.flow.ConfirmWeb(ctx, campaign.ID, campaign.ConfirmCode)
	require.NoError(t, err)
	assert.Equal(t, campaign.ID, again.ID)

	attempts, err = env.attemptRepo.ListByCampaign(ctx, campaign.ID, 10, 0)
	require.NoError(t, err)
	assert.Len(t, attempts, 1, "repeat confirmation must not append attempts")
	assert.Equal(t, "web", env.reloadCampaign(t, campaign.ID).ConfirmedVia)
}

func TestConfirmInboundSMSMatchesByPhoneTail(t *testing.T) {
	env := setupNotificationFlowTest(t)
	ctx := context.Background()

	first, err := env.fixtures.CreateTestAssignment()
	require.NoError(t, err)
	second, err := env.fixtures.CreateTestAssignment()
	require.NoError(t, err)

	older, err := env.fixtures.CreateTestCampaign(first, models.RecipientKindDriver)
	require.NoError(t, err)
	newer, err := env.fixtures.CreateTestCampaign(second, models.RecipientKindDriver)
	require.NoError(t, err)

	// Force both campaigns onto the same code so the phone tail decides.
	sharedCode := "731954"
	for _, id := range []uuid.UUID{older.ID, newer.ID} {
		require.NoError(t, env.db.DB.Model(&models.NotificationCampaign{}).
			Where("id = ?", id).
			Update("confirm_code", sharedCode).Error)
	}

	matched, err := env.flow.ConfirmInboundSMS(ctx, *first.DriverPhone, "OK code "+sharedCode+" merci")
	require.NoError(t, err)
	assert.Equal(t, older.ID, matched.ID, "sender phone tail must win over recency")

	reloaded := env.reloadCampaign(t, older.ID)
	assert.Equal(t, "sms", reloaded.ConfirmedVia)
	assert.Equal(t, models.CampaignStatusConfirmed, reloaded.Status)

	// The other campaign sharing the code stays untouched.
	assert.Equal(t, models.CampaignStatusActive, env.reloadCampaign(t, newer.ID).Status)
}

func TestConfirmInboundSMSFallsBackToNewest(t *testing.T) {
	env := setupNotificationFlowTest(t)
	ctx := context.Background()

	assignment, err := env.fixtures.CreateTestAssignment()
	require.NoError(t, err)
	campaign, err := env.fixtures.CreateTestCampaign(assignment, models.RecipientKindJournalist)
	require.NoError(t, err)

	// Unknown sender: the code alone must still resolve the campaign.
	matched, err := env.flow.ConfirmInboundSMS(ctx, "+33612345678", campaign.ConfirmCode)
	require.NoError(t, err)
	assert.Equal(t, campaign.ID, matched.ID)
	assert.Equal(t, "sms", env.reloadCampaign(t, campaign.ID).ConfirmedVia)
}

func TestConfirmInboundSMSErrors(t *testing.T) {
	env := setupNotificationFlowTest(t)
	ctx := context.Background()

	_, err := env.flow.ConfirmInboundSMS(ctx, "+22670000000", "merci pour le message")
	assert.True(t, IsCodeMissing(err))

	_, err = env.flow.ConfirmInboundSMS(ctx, "+22670000000", "code 999999")
	assert.True(t, IsCampaignNotFound(err))
}

func TestNotifyEmailConfirmsOnSend(t *testing.T) {
	env := setupNotificationFlowTest(t)
	ctx := context.Background()

	assignment, err := env.fixtures.CreateTestAssignment()
	require.NoError(t, err)
	campaign, err := env.fixtures.CreateTestCampaign(assignment, models.RecipientKindJournalist)
	require.NoError(t, err)

	resp, err := env.flow.NotifyEmail(ctx, campaign.ID, nil)
	require.NoError(t, err)
	assert.True(t, resp.Sent)
	assert.True(t, resp.Confirmed)
	assert.Equal(t, *assignment.JournalistEmail, resp.To)

	require.Len(t, env.email.SentMessages, 1)
	sent := env.email.SentMessages[0]
	assert.Equal(t, *assignment.JournalistEmail, sent.To)
	assert.Contains(t, sent.Subject, assignment.EventTitle)
	require.Len(t, sent.Attachments, 2, "expected PDF sheet plus calendar file")
	assert.True(t, strings.HasSuffix(sent.Attachments[0].Filename, ".pdf"))
	assert.True(t, strings.HasSuffix(sent.Attachments[1].Filename, ".ics"))

	reloaded := env.reloadCampaign(t, campaign.ID)
	assert.Equal(t, models.CampaignStatusConfirmed, reloaded.Status)
	assert.Equal(t, "email", reloaded.ConfirmedVia)

	attempts, err := env.attemptRepo.ListByCampaign(ctx, campaign.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.Equal(t, models.AttemptChannelEmail, attempts[0].Channel)
	assert.Equal(t, models.AttemptStatusSent, attempts[0].Status)
}

func TestNotifyEmailFailureKeepsCampaignActive(t *testing.T) {
	env := setupNotificationFlowTest(t)
	ctx := context.Background()

	assignment, err := env.fixtures.CreateTestAssignment()
	require.NoError(t, err)
	campaign, err := env.fixtures.CreateTestCampaign(assignment, models.RecipientKindJournalist)
	require.NoError(t, err)

	env.email.FailWith = assert.AnError

	_, err = env.flow.NotifyEmail(ctx, campaign.ID, nil)
	require.Error(t, err)
	assert.True(t, IsChannelSendFailed(err))

	reloaded := env.reloadCampaign(t, campaign.ID)
	assert.Equal(t, models.CampaignStatusActive, reloaded.Status)
	assert.Nil(t, reloaded.ConfirmedAt)

	attempts, err := env.attemptRepo.ListByCampaign(ctx, campaign.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.Equal(t, models.AttemptStatusFailed, attempts[0].Status)
}

func TestNotifyEmailWithoutEmailContact(t *testing.T) {
	env := setupNotificationFlowTest(t)

	assignment, err := env.fixtures.CreateTestAssignment()
	require.NoError(t, err)
	campaign, err := env.fixtures.CreateTestCampaign(assignment, models.RecipientKindDriver)
	require.NoError(t, err)

	_, err = env.flow.NotifyEmail(context.Background(), campaign.ID, nil)
	require.Error(t, err)
	assert.True(t, IsContactMissing(err))
}

func TestNotifyWhatsAppGatewayMode(t *testing.T) {
	env := setupNotificationFlowTest(t)
	ctx := context.Background()

	assignment, err := env.fixtures.CreateTestAssignment()
	require.NoError(t, err)
	campaign, err := env.fixtures.CreateTestCampaign(assignment, models.RecipientKindDriver)
	require.NoError(t, err)

	resp, err := env.flow.NotifyWhatsApp(ctx, campaign.ID, nil)
	require.NoError(t, err)
	assert.True(t, resp.Sent)
	assert.True(t, resp.Confirmed)
	assert.Equal(t, *assignment.DriverPhone, resp.To)
	assert.Empty(t, resp.DeepLink)
	assert.Contains(t, resp.PDFURL, campaign.ID.String())
	assert.Contains(t, resp.PDFURL, campaign.ConfirmCode)

	require.Len(t, env.whatsapp.SentMessages, 1)
	assert.Equal(t, *assignment.DriverPhone, env.whatsapp.SentMessages[0].Recipient)
	assert.Contains(t, env.whatsapp.SentMessages[0].Message, resp.PDFURL)

	assert.Equal(t, "whatsapp", env.reloadCampaign(t, campaign.ID).ConfirmedVia)
}

func TestNotifyWhatsAppDeepLinkFallback(t *testing.T) {
	env := setupNotificationFlowTest(t)
	ctx := context.Background()

	assignment, err := env.fixtures.CreateTestAssignment()
	require.NoError(t, err)
	campaign, err := env.fixtures.CreateTestCampaign(assignment, models.RecipientKindDriver)
	require.NoError(t, err)

	env.whatsapp.FailWith = services.ErrNotConfigured

	resp, err := env.flow.NotifyWhatsApp(ctx, campaign.ID, nil)
	require.NoError(t, err)
	assert.True(t, resp.Sent)
	assert.True(t, resp.Confirmed)
	assert.True(t, strings.HasPrefix(resp.DeepLink, "https://wa.me/"))

	reloaded := env.reloadCampaign(t, campaign.ID)
	assert.Equal(t, "whatsapp", reloaded.ConfirmedVia)

	attempts, err := env.attemptRepo.ListByCampaign(ctx, campaign.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.Equal(t, models.AttemptStatusSent, attempts[0].Status)
	assert.Equal(t, resp.DeepLink, attempts[0].Meta["link"])
}

func TestNotifyWhatsAppWithoutPhoneContact(t *testing.T) {
	env := setupNotificationFlowTest(t)

	assignment, err := env.fixtures.CreateTestAssignment()
	require.NoError(t, err)

	campaign := &models.NotificationCampaign{
		ID:            uuid.New(),
		AssignmentID:  assignment.ID,
		RecipientKind: models.RecipientKindJournalist,
		ToEmail:       assignment.JournalistEmail,
		ConfirmCode:   "246810",
		Status:        models.CampaignStatusActive,
	}
	require.NoError(t, env.db.DB.Create(campaign).Error)

	_, err = env.flow.NotifyWhatsApp(context.Background(), campaign.ID, nil)
	require.Error(t, err)
	assert.True(t, IsContactMissing(err))
}

func TestConfirmWebDoesNotOutliveDeadline(t *testing.T) {
	env := setupNotificationFlowTest(t)

	assignment, err := env.fixtures.CreateTestAssignment()
	require.NoError(t, err)
	campaign, err := env.fixtures.CreateTestCampaign(assignment, models.RecipientKindJournalist)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err = env.flow.ConfirmWeb(ctx, campaign.ID, campaign.ConfirmCode)
	require.NoError(t, err)
}
