package businessflow

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bf1digital/spot-dispatch/app/dto"
	"github.com/bf1digital/spot-dispatch/config"
	"github.com/bf1digital/spot-dispatch/models"
	"github.com/bf1digital/spot-dispatch/utils"
)

func setupAssignmentFlowTest(t *testing.T) (*notificationFlowEnv, AssignmentFlow) {
	t.Helper()

	env := setupNotificationFlowTest(t)
	flow := NewAssignmentFlow(
		env.assignmentRepo, env.campaignRepo, env.attemptRepo, env.logRepo,
		env.flow, env.email, env.renderer,
		&config.SiteConfig{
			BaseURL:     "https://spot.bf1tv.bf",
			ICSTimezone: "Africa/Ouagadougou",
			UIDDomain:   "bf1tv.bf",
		}, env.db.DB)
	return env, flow
}

func validCreateRequest() *dto.CreateAssignmentRequest {
	return &dto.CreateAssignmentRequest{
		EventTitle:      "Sommet de la CEDEAO",
		EventDate:       "2026-10-03",
		StartTime:       "08:45",
		EndTime:         utils.ToPtr("12:00"),
		Address:         "Salle des banquets, Ouaga 2000",
		MeetingPoint:    "Parking presse",
		JournalistName:  utils.ToPtr("Awa Traoré"),
		JournalistEmail: utils.ToPtr("awa.traore@bf1tv.bf"),
		JournalistPhone: utils.ToPtr("+22670112233"),
		DriverName:      utils.ToPtr("Issouf Kaboré"),
		DriverPhone:     utils.ToPtr("+22660445566"),
	}
}

func TestCreateAssignment(t *testing.T) {
	env, flow := setupAssignmentFlowTest(t)
	ctx := context.Background()

	resp, err := flow.CreateAssignment(ctx, validCreateRequest(), nil)
	require.NoError(t, err)
	assert.Equal(t, "assigned", resp.Status)

	id, err := uuid.Parse(resp.ID)
	require.NoError(t, err)

	assignment, err := env.assignmentRepo.ByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, assignment)
	assert.Equal(t, "Sommet de la CEDEAO", assignment.EventTitle)
	assert.Equal(t, "2026-10-03", assignment.EventDate.Format("2006-01-02"))
	assert.Equal(t, "08:45", assignment.StartTime.Format("15:04"))
	require.NotNil(t, assignment.EndTime)
	assert.Equal(t, "12:00", assignment.EndTime.Format("15:04"))
	require.NotNil(t, assignment.JournalistEmail)
	assert.Equal(t, "awa.traore@bf1tv.bf", *assignment.JournalistEmail)

	entries, err := env.logRepo.ListByAssignment(ctx, id, 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.LogLabelAssignmentCreated, entries[0].Label)
}

func TestCreateAssignmentRejectsMalformedDates(t *testing.T) {
	_, flow := setupAssignmentFlowTest(t)
	ctx := context.Background()

	req := validCreateRequest()
	req.EventDate = "03/10/2026"
	_, err := flow.CreateAssignment(ctx, req, nil)
	require.Error(t, err)

	req = validCreateRequest()
	req.StartTime = "8h45"
	_, err = flow.CreateAssignment(ctx, req, nil)
	require.Error(t, err)

	req = validCreateRequest()
	req.EndTime = utils.ToPtr("midi")
	_, err = flow.CreateAssignment(ctx, req, nil)
	require.Error(t, err)
}

func TestTriggerNotifications(t *testing.T) {
	env, flow := setupAssignmentFlowTest(t)
	ctx := context.Background()

	assignment, err := env.fixtures.CreateTestAssignment()
	require.NoError(t, err)

	resp, err := flow.TriggerNotifications(ctx, assignment.ID, nil)
	require.NoError(t, err)
	require.Len(t, resp.Campaigns, 2)

	var journalistDTO, driverDTO *dto.CampaignDTO
	for i := range resp.Campaigns {
		switch resp.Campaigns[i].RecipientKind {
		case models.RecipientKindJournalist.String():
			journalistDTO = &resp.Campaigns[i]
		case models.RecipientKindDriver.String():
			driverDTO = &resp.Campaigns[i]
		}
	}
	require.NotNil(t, journalistDTO)
	require.NotNil(t, driverDTO)

	// The journalist got the initial email with code and confirm link.
	require.Len(t, env.email.SentMessages, 1)
	sent := env.email.SentMessages[0]
	assert.Equal(t, *assignment.JournalistEmail, sent.To)
	assert.Contains(t, sent.Subject, assignment.EventTitle)
	assert.Contains(t, sent.TextBody, "/assignments/confirm/"+journalistDTO.ID+"/")
	assert.Len(t, sent.Attachments, 2)

	// Both phone-bearing campaigns are armed for the SMS reminder loop.
	journalistID := uuid.MustParse(journalistDTO.ID)
	driverID := uuid.MustParse(driverDTO.ID)
	assert.NotNil(t, env.reloadCampaign(t, journalistID).NextAttemptAt)
	assert.NotNil(t, env.reloadCampaign(t, driverID).NextAttemptAt)

	attempts, err := env.attemptRepo.ListByCampaign(ctx, journalistID, 10, 0)
	require.NoError(t, err)
	statuses := map[models.AttemptStatus]int{}
	for _, a := range attempts {
		statuses[a.Status]++
	}
	assert.Equal(t, 1, statuses[models.AttemptStatusQueued])
	assert.Equal(t, 1, statuses[models.AttemptStatusSent])

	entries, err := env.logRepo.ListByAssignment(ctx, assignment.ID, 50, 0)
	require.NoError(t, err)
	labels := map[string]int{}
	for _, e := range entries {
		labels[e.Label]++
	}
	assert.Equal(t, 1, labels[models.LogLabelInitialEmailSent])
	assert.Equal(t, 2, labels[models.LogLabelNotificationsPrepared])
}

func TestTriggerNotificationsEmailFailure(t *testing.T) {
	env, flow := setupAssignmentFlowTest(t)
	ctx := context.Background()

	assignment, err := env.fixtures.CreateTestAssignment()
	require.NoError(t, err)

	env.email.FailWith = assert.AnError

	// A failing email channel never blocks campaign preparation.
	resp, err := flow.TriggerNotifications(ctx, assignment.ID, nil)
	require.NoError(t, err)
	require.Len(t, resp.Campaigns, 2)

	entries, err := env.logRepo.ListByAssignment(ctx, assignment.ID, 50, 0)
	require.NoError(t, err)
	found := false
	for _, e := range entries {
		if e.Label == models.LogLabelInitialEmailFailed {
			found = true
		}
	}
	assert.True(t, found, "failed initial email must be logged")
}

func TestTriggerNotificationsLeavesConfirmedCampaignsAlone(t *testing.T) {
	env, flow := setupAssignmentFlowTest(t)
	ctx := context.Background()

	assignment, err := env.fixtures.CreateTestAssignment()
	require.NoError(t, err)
	campaign, err := env.fixtures.CreateTestCampaign(assignment, models.RecipientKindJournalist)
	require.NoError(t, err)

	won, err := env.campaignRepo.Confirm(ctx, campaign.ID, "web", utils.UTCNow())
	require.NoError(t, err)
	require.True(t, won)

	_, err = flow.TriggerNotifications(ctx, assignment.ID, nil)
	require.NoError(t, err)

	assert.Empty(t, env.email.SentMessages, "confirmed journalist must not be re-notified")
	reloaded := env.reloadCampaign(t, campaign.ID)
	assert.Equal(t, models.CampaignStatusConfirmed, reloaded.Status)
	assert.Nil(t, reloaded.NextAttemptAt)
}

func TestTriggerNotificationsErrors(t *testing.T) {
	env, flow := setupAssignmentFlowTest(t)
	ctx := context.Background()

	_, err := flow.TriggerNotifications(ctx, uuid.New(), nil)
	assert.True(t, IsAssignmentNotFound(err))

	empty, err := env.fixtures.CreateTestAssignmentWithoutContacts()
	require.NoError(t, err)
	_, err = flow.TriggerNotifications(ctx, empty.ID, nil)
	assert.True(t, IsNoRecipients(err))
}

func TestListLogs(t *testing.T) {
	env, flow := setupAssignmentFlowTest(t)
	ctx := context.Background()

	assignment, err := env.fixtures.CreateTestAssignment()
	require.NoError(t, err)
	_, err = flow.TriggerNotifications(ctx, assignment.ID, nil)
	require.NoError(t, err)

	logs, err := flow.ListLogs(ctx, assignment.ID)
	require.NoError(t, err)
	require.NotEmpty(t, logs)
	for _, entry := range logs {
		assert.NotEmpty(t, entry.Label)
		assert.False(t, entry.At.IsZero())
	}

	_, err = flow.ListLogs(ctx, uuid.New())
	assert.True(t, IsAssignmentNotFound(err))
}
