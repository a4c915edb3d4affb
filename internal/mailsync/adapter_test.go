package mailsync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tranquileza/leadflow/internal/model"
	"github.com/tranquileza/leadflow/internal/resilience"
	"github.com/tranquileza/leadflow/pkg/mailerlite"
)

// fakeClient scripts MailerLite responses per call.
type fakeClient struct {
	upsertErrs    []error
	upsertCalls   int
	upsertReqs    []mailerlite.UpsertRequest
	assignErr     error
	assignedPairs [][2]string
}

func (f *fakeClient) UpsertSubscriber(_ context.Context, req mailerlite.UpsertRequest) (*mailerlite.Subscriber, error) {
	f.upsertCalls++
	f.upsertReqs = append(f.upsertReqs, req)
	if len(f.upsertErrs) > 0 {
		err := f.upsertErrs[0]
		f.upsertErrs = f.upsertErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &mailerlite.Subscriber{ID: "sub-1", Email: req.Email}, nil
}

func (f *fakeClient) AssignGroup(_ context.Context, email, groupID string) error {
	f.assignedPairs = append(f.assignedPairs, [2]string{email, groupID})
	return f.assignErr
}

func (f *fakeClient) Ping(context.Context) error { return nil }

func testAdapter(client *fakeClient, groups ...string) *Adapter {
	return New(client, Config{
		TriggerGroups: groups,
		DefaultNotes:  "Lead via Instagram DM",
		Retry:         resilience.RetryConfig{MaxAttempts: 3, BackoffStep: time.Millisecond},
	})
}

func TestPush_RetriesTransientThenSucceeds(t *testing.T) {
	client := &fakeClient{upsertErrs: []error{
		&mailerlite.APIError{StatusCode: 500, Body: "boom"},
		nil,
	}}
	a := testAdapter(client, "111")

	err := a.Push(context.Background(), model.Lead{Email: "ana@gmail.com"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, client.upsertCalls)
	assert.Empty(t, client.assignedPairs, "no conflict, upsert already carries the groups")
}

func TestPush_BenignConflictAssignsGroupsExplicitly(t *testing.T) {
	client := &fakeClient{upsertErrs: []error{
		&mailerlite.APIError{StatusCode: 422, Body: `{"errors": {"email": ["has already been taken"]}}`},
	}}
	a := testAdapter(client, "111", "222")

	err := a.Push(context.Background(), model.Lead{Email: "ana@gmail.com"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, client.upsertCalls, "conflict is success, not a retry")
	assert.Equal(t, [][2]string{{"ana@gmail.com", "111"}, {"ana@gmail.com", "222"}}, client.assignedPairs)
}

func TestPush_PermanentErrorDoesNotRetry(t *testing.T) {
	client := &fakeClient{upsertErrs: []error{
		&mailerlite.APIError{StatusCode: 422, Body: `{"message": "invalid email"}`},
	}}
	a := testAdapter(client, "111")

	err := a.Push(context.Background(), model.Lead{Email: "ana@gmail.com"}, nil)
	require.Error(t, err)
	assert.Equal(t, 1, client.upsertCalls)
}

func TestPush_ExhaustsRetryBudget(t *testing.T) {
	client := &fakeClient{upsertErrs: []error{
		&mailerlite.APIError{StatusCode: 429, Body: "slow down"},
		&mailerlite.APIError{StatusCode: 429, Body: "slow down"},
		&mailerlite.APIError{StatusCode: 429, Body: "slow down"},
	}}
	a := testAdapter(client, "111")

	err := a.Push(context.Background(), model.Lead{Email: "ana@gmail.com"}, nil)
	require.Error(t, err)
	assert.Equal(t, 3, client.upsertCalls)
}

func TestPush_NoEmailIsSkip(t *testing.T) {
	client := &fakeClient{}
	a := testAdapter(client, "111")

	err := a.Push(context.Background(), model.Lead{Name: "Ana"}, nil)
	require.ErrorIs(t, err, ErrNoEmail)
	assert.Zero(t, client.upsertCalls)
}

func TestPush_ContactEmailWins(t *testing.T) {
	client := &fakeClient{}
	a := testAdapter(client, "111")

	err := a.Push(context.Background(),
		model.Lead{Email: "lead@gmail.com"},
		&model.Contact{Email: "Merged@Gmail.com"})
	require.NoError(t, err)
	require.Len(t, client.upsertReqs, 1)
	assert.Equal(t, "merged@gmail.com", client.upsertReqs[0].Email)
}

func TestBuildRequest(t *testing.T) {
	req := BuildRequest(model.Lead{
		Email:     "ana@gmail.com",
		Name:      "Ana María Pérez",
		FirstName: "Ana María",
		LastName:  "Pérez",
		City:      "Bogotá",
		Country:   "Colombia",
		Phone:     "+57 300 1234567",
		Handle:    "ana.maria",
		Message:   "quiero el curso",
	}, nil, "Lead via Instagram DM", []string{"111"})

	assert.Equal(t, "ana@gmail.com", req.Email)
	assert.Equal(t, "Ana María", req.Fields["name"])
	assert.Equal(t, "Pérez", req.Fields["last_name"])
	assert.Equal(t, "Colombia", req.Fields["country"])
	assert.Equal(t, "Bogotá", req.Fields["city"])
	assert.Equal(t, "ana.maria", req.Fields["instagram"])
	assert.Equal(t, "quiero el curso", req.Fields["notes"])
	assert.Equal(t, []string{"111"}, req.Groups)
	assert.Equal(t, "active", req.Status)
}

func TestBuildRequest_OmitsPlaceholdersAndDefaultsNotes(t *testing.T) {
	req := BuildRequest(model.Lead{
		Email: "ana@gmail.com",
		City:  "{{city}}",
	}, nil, "Lead via Instagram DM", nil)

	_, hasCity := req.Fields["city"]
	assert.False(t, hasCity, "template artifacts must not reach the marketing service")
	assert.Equal(t, "Lead via Instagram DM", req.Fields["notes"])
	assert.Empty(t, req.Groups)
}
