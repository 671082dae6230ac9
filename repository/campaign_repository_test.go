package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bf1digital/spot-dispatch/models"
	testutil "github.com/bf1digital/spot-dispatch/testing"
	"github.com/bf1digital/spot-dispatch/utils"
)

type campaignRepoEnv struct {
	db       *testutil.TestDB
	fixtures *testutil.TestFixtures
	repo     CampaignRepository
}

func setupCampaignRepoTest(t *testing.T) *campaignRepoEnv {
	t.Helper()

	db, err := testutil.SetupTestDB()
	if err != nil {
		t.Skipf("test database unavailable: %v", err)
	}
	t.Cleanup(func() {
		_ = db.TeardownTestDB()
	})

	return &campaignRepoEnv{
		db:       db,
		fixtures: testutil.NewTestFixtures(db),
		repo:     NewCampaignRepository(db.DB),
	}
}

// reload fetches the campaign back so timestamps carry database precision.
func (env *campaignRepoEnv) reload(t *testing.T, id uuid.UUID) *models.NotificationCampaign {
	t.Helper()
	campaign, err := env.repo.ByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, campaign)
	return campaign
}

func TestFindReusable(t *testing.T) {
	env := setupCampaignRepoTest(t)
	ctx := context.Background()

	assignment, err := env.fixtures.CreateTestAssignment()
	require.NoError(t, err)
	journalist, err := env.fixtures.CreateTestCampaign(assignment, models.RecipientKindJournalist)
	require.NoError(t, err)
	driver, err := env.fixtures.CreateTestCampaign(assignment, models.RecipientKindDriver)
	require.NoError(t, err)

	found, err := env.repo.FindReusable(ctx, assignment.ID, models.RecipientKindJournalist,
		assignment.JournalistEmail, assignment.JournalistPhone)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, journalist.ID, found.ID)

	// NULL email must match NULL, not any value.
	found, err = env.repo.FindReusable(ctx, assignment.ID, models.RecipientKindDriver,
		nil, assignment.DriverPhone)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, driver.ID, found.ID)

	found, err = env.repo.FindReusable(ctx, assignment.ID, models.RecipientKindDriver,
		utils.ToPtr("chauffeur@bf1tv.bf"), assignment.DriverPhone)
	require.NoError(t, err)
	assert.Nil(t, found)

	// A changed phone means a different thread.
	found, err = env.repo.FindReusable(ctx, assignment.ID, models.RecipientKindJournalist,
		assignment.JournalistEmail, utils.ToPtr("+22699999999"))
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestFindReusableStatusGate(t *testing.T) {
	env := setupCampaignRepoTest(t)
	ctx := context.Background()

	assignment, err := env.fixtures.CreateTestAssignment()
	require.NoError(t, err)
	campaign, err := env.fixtures.CreateTestCampaign(assignment, models.RecipientKindJournalist)
	require.NoError(t, err)

	// A confirmed campaign is still reusable: the thread is settled.
	won, err := env.repo.Confirm(ctx, campaign.ID, "web", utils.UTCNow())
	require.NoError(t, err)
	require.True(t, won)

	found, err := env.repo.FindReusable(ctx, assignment.ID, models.RecipientKindJournalist,
		assignment.JournalistEmail, assignment.JournalistPhone)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, campaign.ID, found.ID)

	// An expired one is not.
	require.NoError(t, env.db.DB.Model(&models.NotificationCampaign{}).
		Where("id = ?", campaign.ID).
		Updates(map[string]any{"status": models.CampaignStatusExpired, "confirmed_at": nil}).Error)

	found, err = env.repo.FindReusable(ctx, assignment.ID, models.RecipientKindJournalist,
		assignment.JournalistEmail, assignment.JournalistPhone)
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestListDue(t *testing.T) {
	env := setupCampaignRepoTest(t)
	ctx := context.Background()
	now := time.Now().UTC()

	assignment, err := env.fixtures.CreateTestAssignment()
	require.NoError(t, err)

	due, err := env.fixtures.CreateDueCampaign(assignment, models.RecipientKindDriver, 0)
	require.NoError(t, err)

	// Not yet due.
	notYet, err := env.fixtures.CreateTestCampaign(assignment, models.RecipientKindJournalist)
	require.NoError(t, err)
	future := now.Add(30 * time.Minute)
	require.NoError(t, env.db.DB.Model(&models.NotificationCampaign{}).
		Where("id = ?", notYet.ID).
		Update("next_attempt_at", future).Error)

	campaigns, err := env.repo.ListDue(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, campaigns, 1)
	assert.Equal(t, due.ID, campaigns[0].ID)

	// Confirmation removes the campaign from the due set.
	won, err := env.repo.Confirm(ctx, due.ID, "sms", now)
	require.NoError(t, err)
	require.True(t, won)

	campaigns, err = env.repo.ListDue(ctx, now, 10)
	require.NoError(t, err)
	assert.Empty(t, campaigns)
}

func TestClaimDue(t *testing.T) {
	env := setupCampaignRepoTest(t)
	ctx := context.Background()

	assignment, err := env.fixtures.CreateTestAssignment()
	require.NoError(t, err)
	campaign, err := env.fixtures.CreateDueCampaign(assignment, models.RecipientKindDriver, 0)
	require.NoError(t, err)

	seen := env.reload(t, campaign.ID).NextAttemptAt
	require.NotNil(t, seen)

	next := time.Now().UTC().Add(utils.ReminderDelay)
	won, err := env.repo.ClaimDue(ctx, campaign.ID, *seen, &next, 1, models.CampaignStatusActive)
	require.NoError(t, err)
	assert.True(t, won)

	reloaded := env.reload(t, campaign.ID)
	assert.Equal(t, 1, reloaded.ReminderCount)
	require.NotNil(t, reloaded.NextAttemptAt)

	// A second claim against the stale observation loses.
	won, err = env.repo.ClaimDue(ctx, campaign.ID, *seen, &next, 1, models.CampaignStatusActive)
	require.NoError(t, err)
	assert.False(t, won)
}

func TestClaimDueLosesToConfirmation(t *testing.T) {
	env := setupCampaignRepoTest(t)
	ctx := context.Background()

	assignment, err := env.fixtures.CreateTestAssignment()
	require.NoError(t, err)
	campaign, err := env.fixtures.CreateDueCampaign(assignment, models.RecipientKindDriver, 1)
	require.NoError(t, err)

	seen := env.reload(t, campaign.ID).NextAttemptAt
	require.NotNil(t, seen)

	won, err := env.repo.Confirm(ctx, campaign.ID, "sms", utils.UTCNow())
	require.NoError(t, err)
	require.True(t, won)

	claimed, err := env.repo.ClaimDue(ctx, campaign.ID, *seen, nil, 2, models.CampaignStatusExpired)
	require.NoError(t, err)
	assert.False(t, claimed, "a confirmed campaign must never be expired by the reminder loop")
	assert.Equal(t, models.CampaignStatusConfirmed, env.reload(t, campaign.ID).Status)
}

func TestClaimDueExpiry(t *testing.T) {
	env := setupCampaignRepoTest(t)
	ctx := context.Background()

	assignment, err := env.fixtures.CreateTestAssignment()
	require.NoError(t, err)
	campaign, err := env.fixtures.CreateDueCampaign(assignment, models.RecipientKindDriver, utils.MaxReminderCount-1)
	require.NoError(t, err)

	seen := env.reload(t, campaign.ID).NextAttemptAt
	require.NotNil(t, seen)

	won, err := env.repo.ClaimDue(ctx, campaign.ID, *seen, nil, utils.MaxReminderCount, models.CampaignStatusExpired)
	require.NoError(t, err)
	assert.True(t, won)

	reloaded := env.reload(t, campaign.ID)
	assert.Equal(t, models.CampaignStatusExpired, reloaded.Status)
	assert.Equal(t, utils.MaxReminderCount, reloaded.ReminderCount)
	assert.Nil(t, reloaded.NextAttemptAt)
}

func TestConfirmIsIdempotent(t *testing.T) {
	env := setupCampaignRepoTest(t)
	ctx := context.Background()

	assignment, err := env.fixtures.CreateTestAssignment()
	require.NoError(t, err)
	campaign, err := env.fixtures.CreateDueCampaign(assignment, models.RecipientKindJournalist, 1)
	require.NoError(t, err)

	at := utils.UTCNow()
	won, err := env.repo.Confirm(ctx, campaign.ID, "web", at)
	require.NoError(t, err)
	assert.True(t, won)

	reloaded := env.reload(t, campaign.ID)
	assert.Equal(t, models.CampaignStatusConfirmed, reloaded.Status)
	assert.Equal(t, "web", reloaded.ConfirmedVia)
	require.NotNil(t, reloaded.ConfirmedAt)
	assert.Nil(t, reloaded.NextAttemptAt)

	// The second confirmation loses and leaves the first channel in place.
	won, err = env.repo.Confirm(ctx, campaign.ID, "sms", utils.UTCNow())
	require.NoError(t, err)
	assert.False(t, won)
	assert.Equal(t, "web", env.reload(t, campaign.ID).ConfirmedVia)
}

func TestScheduleFirstReminder(t *testing.T) {
	env := setupCampaignRepoTest(t)
	ctx := context.Background()

	assignment, err := env.fixtures.CreateTestAssignment()
	require.NoError(t, err)
	campaign, err := env.fixtures.CreateTestCampaign(assignment, models.RecipientKindDriver)
	require.NoError(t, err)

	at := utils.UTCNow()
	require.NoError(t, env.repo.ScheduleFirstReminder(ctx, campaign.ID, at))

	armed := env.reload(t, campaign.ID).NextAttemptAt
	require.NotNil(t, armed)

	// Re-arming must not move an already scheduled attempt.
	require.NoError(t, env.repo.ScheduleFirstReminder(ctx, campaign.ID, at.Add(time.Hour)))
	assert.Equal(t, armed.Unix(), env.reload(t, campaign.ID).NextAttemptAt.Unix())
}

func TestClearNextAttempt(t *testing.T) {
	env := setupCampaignRepoTest(t)
	ctx := context.Background()

	assignment, err := env.fixtures.CreateTestAssignment()
	require.NoError(t, err)
	campaign, err := env.fixtures.CreateDueCampaign(assignment, models.RecipientKindDriver, 0)
	require.NoError(t, err)

	require.NoError(t, env.repo.ClearNextAttempt(ctx, campaign.ID))
	assert.Nil(t, env.reload(t, campaign.ID).NextAttemptAt)
}

func TestListActiveByCode(t *testing.T) {
	env := setupCampaignRepoTest(t)
	ctx := context.Background()

	assignment, err := env.fixtures.CreateTestAssignment()
	require.NoError(t, err)
	campaign, err := env.fixtures.CreateTestCampaign(assignment, models.RecipientKindJournalist)
	require.NoError(t, err)

	campaigns, err := env.repo.ListActiveByCode(ctx, campaign.ConfirmCode, utils.InboundMatchScanLimit)
	require.NoError(t, err)
	require.Len(t, campaigns, 1)
	assert.Equal(t, campaign.ID, campaigns[0].ID)
	require.NotNil(t, campaigns[0].Assignment, "assignment must be preloaded for matching")

	// Confirmed campaigns drop out of the candidate set.
	won, err := env.repo.Confirm(ctx, campaign.ID, "web", utils.UTCNow())
	require.NoError(t, err)
	require.True(t, won)

	campaigns, err = env.repo.ListActiveByCode(ctx, campaign.ConfirmCode, utils.InboundMatchScanLimit)
	require.NoError(t, err)
	assert.Empty(t, campaigns)
}
