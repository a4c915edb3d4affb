package pipeline

import (
	"context"
	"sync"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tranquileza/leadflow/internal/extract"
	"github.com/tranquileza/leadflow/internal/geo"
	"github.com/tranquileza/leadflow/internal/mailsync"
	"github.com/tranquileza/leadflow/internal/model"
)

type fakeEvents struct {
	mu            sync.Mutex
	insertErr     error
	insertedDup   bool
	inserted      []*model.RawEvent
	patches       map[string]model.EventStatus
	patchErrors   map[string]string
	attempts      map[string]int
	permanent     []string
	reprocessable []model.RawEvent
}

func newFakeEvents() *fakeEvents {
	return &fakeEvents{
		patches:     map[string]model.EventStatus{},
		patchErrors: map[string]string{},
		attempts:    map[string]int{},
	}
}

func (f *fakeEvents) Insert(_ context.Context, ev *model.RawEvent) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return false, f.insertErr
	}
	if f.insertedDup {
		return false, nil
	}
	ev.ID = "ev-1"
	ev.Status = model.EventStatusNew
	f.inserted = append(f.inserted, ev)
	return true, nil
}

func (f *fakeEvents) PatchStatus(_ context.Context, id string, status model.EventStatus, lastError, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.patches[id] = status
	f.patchErrors[id] = lastError
	return nil
}

func (f *fakeEvents) IncrementAttempt(_ context.Context, id string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts[id]++
	return f.attempts[id], nil
}

func (f *fakeEvents) MarkPermanentFailed(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.permanent = append(f.permanent, id)
	return nil
}

func (f *fakeEvents) SelectReprocessable(_ context.Context, _, _ int) ([]model.RawEvent, error) {
	return f.reprocessable, nil
}

type fakeReconciler struct {
	mu       sync.Mutex
	err      error
	existing *model.Contact
	calls    int
}

func (f *fakeReconciler) Reconcile(_ context.Context, incoming *model.Contact) (*model.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.existing != nil {
		return f.existing, nil
	}
	incoming.ID = "contact-1"
	return incoming, nil
}

func (f *fakeReconciler) FindExisting(context.Context, *model.Contact) (*model.Contact, error) {
	return f.existing, nil
}

type fakeInteractions struct {
	mu   sync.Mutex
	rows []*model.Interaction
	err  error
}

func (f *fakeInteractions) InsertInteraction(_ context.Context, in *model.Interaction) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	f.rows = append(f.rows, in)
	return true, nil
}

type fakeSyncer struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (f *fakeSyncer) Push(_ context.Context, lead model.Lead, _ *model.Contact) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if lead.Email == "" {
		return mailsync.ErrNoEmail
	}
	f.calls++
	return f.err
}

type fakeAlerts struct {
	mu    sync.Mutex
	posts []string
}

func (f *fakeAlerts) Post(_ context.Context, severity, _ string, _ map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts = append(f.posts, severity)
}

func (f *fakeAlerts) severities() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.posts...)
}

type gatewayFixture struct {
	gateway      *Gateway
	events       *fakeEvents
	reconciler   *fakeReconciler
	interactions *fakeInteractions
	syncer       *fakeSyncer
	alerts       *fakeAlerts
}

func newGatewayFixture(t *testing.T) *gatewayFixture {
	t.Helper()
	gaz, err := geo.Default()
	require.NoError(t, err)

	fx := &gatewayFixture{
		events:       newFakeEvents(),
		reconciler:   &fakeReconciler{},
		interactions: &fakeInteractions{},
		syncer:       &fakeSyncer{},
		alerts:       &fakeAlerts{},
	}
	fx.gateway = NewGateway(GatewayConfig{
		Events:        fx.events,
		Reconciler:    fx.reconciler,
		Interactions:  fx.interactions,
		Syncer:        fx.syncer,
		Alerts:        fx.alerts,
		Extractor:     extract.New(geo.NewResolver(gaz)),
		Provider:      "manychat",
		TriggerGroups: []string{"111"},
	})
	return fx
}

func deliver(t *testing.T, fx *gatewayFixture, payload string) (*DeliveryResult, error) {
	t.Helper()
	env, err := extract.Decode([]byte(payload))
	require.NoError(t, err)
	return fx.gateway.HandleDelivery(context.Background(), env, []byte(payload))
}

const richPayload = `{
	"contact_id": "mc-1",
	"instagram_username": "ana.maria",
	"full_name": "Ana María Pérez",
	"last_text_input": "Hola, soy de Bogotá y mi correo es ana@gmail.com",
	"last_interaction_instagram": "2026-08-27T10:00:00Z"
}`

func TestHandleDelivery_ProcessedEndToEnd(t *testing.T) {
	fx := newGatewayFixture(t)

	res, err := deliver(t, fx, richPayload)
	require.NoError(t, err)
	assert.Equal(t, model.EventStatusProcessed, res.Status)
	assert.Equal(t, "ana@gmail.com", res.Lead.Email)
	assert.Equal(t, model.EventStatusProcessed, fx.events.patches["ev-1"])
	assert.Equal(t, 1, fx.reconciler.calls)
	assert.Equal(t, 1, fx.syncer.calls)
	require.Len(t, fx.interactions.rows, 1)
	assert.Equal(t, "contact-1", fx.interactions.rows[0].ContactID)
	assert.Equal(t, "manychat:mc-1:2026-08-27T10:00:00Z", fx.interactions.rows[0].ExternalID)
	assert.Empty(t, fx.alerts.severities())
}

func TestHandleDelivery_DuplicateSkipsPipeline(t *testing.T) {
	fx := newGatewayFixture(t)
	fx.events.insertedDup = true

	res, err := deliver(t, fx, richPayload)
	require.NoError(t, err)
	assert.True(t, res.Duplicate)
	assert.Zero(t, fx.reconciler.calls)
	assert.Zero(t, fx.syncer.calls)
}

func TestHandleDelivery_StoreDownPropagates(t *testing.T) {
	fx := newGatewayFixture(t)
	fx.events.insertErr = eris.New("connection refused")

	_, err := deliver(t, fx, richPayload)
	require.Error(t, err)
}

func TestHandleDelivery_SyncFailureIsFatalForEvent(t *testing.T) {
	fx := newGatewayFixture(t)
	fx.syncer.err = eris.New("mailerlite: HTTP 500")

	res, err := deliver(t, fx, richPayload)
	require.NoError(t, err, "webhook still answers 200 once the event is stored")
	assert.Equal(t, model.EventStatusFailed, res.Status)
	assert.Contains(t, res.Error, "sync lead")
	assert.Equal(t, model.EventStatusFailed, fx.events.patches["ev-1"])
	assert.Contains(t, fx.events.patchErrors["ev-1"], "HTTP 500")
	assert.Contains(t, fx.alerts.severities(), "fatal")
}

func TestHandleDelivery_LowConfidenceAlertsButProcesses(t *testing.T) {
	fx := newGatewayFixture(t)

	res, err := deliver(t, fx, `{"last_text_input": "hola"}`)
	require.NoError(t, err)
	assert.Equal(t, model.EventStatusProcessed, res.Status)
	assert.Equal(t, []string{"warning"}, fx.alerts.severities())
	assert.Zero(t, fx.reconciler.calls, "no natural key, nothing to reconcile")
	assert.Zero(t, fx.syncer.calls, "no email, sync skipped")
}

func TestHandleDelivery_ReconcileFailureFailsEvent(t *testing.T) {
	fx := newGatewayFixture(t)
	fx.reconciler.err = eris.New("unresolvable conflict")

	res, err := deliver(t, fx, richPayload)
	require.NoError(t, err)
	assert.Equal(t, model.EventStatusFailed, res.Status)
	assert.Contains(t, res.Error, "reconcile contact")
	assert.Zero(t, fx.syncer.calls)
}

func TestHandleDelivery_InteractionFailureIsBestEffort(t *testing.T) {
	fx := newGatewayFixture(t)
	fx.interactions.err = eris.New("interactions table locked")

	res, err := deliver(t, fx, richPayload)
	require.NoError(t, err)
	assert.Equal(t, model.EventStatusProcessed, res.Status)
	assert.Equal(t, 1, fx.syncer.calls)
}

func TestSimulate_ReportsPlanWithoutWrites(t *testing.T) {
	fx := newGatewayFixture(t)
	fx.reconciler.existing = &model.Contact{ID: "contact-9"}

	env, err := extract.Decode([]byte(richPayload))
	require.NoError(t, err)
	sim, err := fx.gateway.Simulate(context.Background(), env)
	require.NoError(t, err)

	assert.Equal(t, "ana@gmail.com", sim.Lead.Email)
	assert.False(t, sim.WouldCreate)
	assert.Equal(t, "contact-9", sim.ExistingContactID)
	assert.True(t, sim.WouldSync)
	assert.Equal(t, []string{"111"}, sim.TriggerGroups)
	assert.Empty(t, fx.events.inserted)
	assert.Empty(t, fx.interactions.rows)
	assert.Zero(t, fx.syncer.calls)
}

func TestSimulate_NewContactWouldCreate(t *testing.T) {
	fx := newGatewayFixture(t)

	env, err := extract.Decode([]byte(richPayload))
	require.NoError(t, err)
	sim, err := fx.gateway.Simulate(context.Background(), env)
	require.NoError(t, err)
	assert.True(t, sim.WouldCreate)
	assert.Empty(t, sim.ExistingContactID)
}

func TestReprocessor_Run(t *testing.T) {
	fx := newGatewayFixture(t)
	fx.events.reprocessable = []model.RawEvent{
		{ID: "ev-ok", Provider: "manychat", ContactID: "mc-1", Payload: []byte(richPayload)},
		{ID: "ev-bad", Provider: "manychat", ContactID: "mc-2", Payload: []byte(`not json`)},
	}
	// ev-bad is on its final allowed attempt.
	fx.events.attempts["ev-bad"] = 4

	r := NewReprocessor(fx.gateway, fx.events, 5, 2)
	res, err := r.Run(context.Background(), 100)
	require.NoError(t, err)

	assert.Equal(t, ReprocessResult{Processed: 1, Failed: 1, Checked: 2}, res)
	assert.Equal(t, model.EventStatusProcessed, fx.events.patches["ev-ok"])
	assert.Equal(t, model.EventStatusFailed, fx.events.patches["ev-bad"])
	assert.Equal(t, []string{"ev-bad"}, fx.events.permanent)
}

func TestReprocessor_BelowCeilingNotPermanent(t *testing.T) {
	fx := newGatewayFixture(t)
	fx.events.reprocessable = []model.RawEvent{
		{ID: "ev-bad", Provider: "manychat", Payload: []byte(`not json`)},
	}

	r := NewReprocessor(fx.gateway, fx.events, 5, 1)
	res, err := r.Run(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	assert.Empty(t, fx.events.permanent)
}
