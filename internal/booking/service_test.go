package booking

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tukangin-app/tukangin_be/internal/models"
)

func i64(v int64) *int64 { return &v }

func newTestService() (*Service, *memStore, *recordingEvents) {
	store := newMemStore()
	events := &recordingEvents{}
	return NewService(store, events), store, events
}

func mustCreateRequest(t *testing.T, svc *Service, clientID uuid.UUID) *models.ServiceRequest {
	t.Helper()
	req, err := svc.CreateRequest(clientID, CreateRequestInput{
		TypeOfWork: "bathroom plumbing",
		BudgetMin:  i64(500),
		BudgetMax:  i64(1500),
	})
	require.NoError(t, err)
	return req
}

func TestCreateRequestValidation(t *testing.T) {
	svc, _, _ := newTestService()
	client := uuid.New()

	_, err := svc.CreateRequest(client, CreateRequestInput{})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "type_of_work", ve.Field)

	_, err = svc.CreateRequest(client, CreateRequestInput{TypeOfWork: "x", Budget: i64(-5)})
	require.ErrorAs(t, err, &ve)

	_, err = svc.CreateRequest(client, CreateRequestInput{TypeOfWork: "x", BudgetMin: i64(100), BudgetMax: i64(50)})
	require.ErrorAs(t, err, &ve)

	lat := 1.0
	_, err = svc.CreateRequest(client, CreateRequestInput{TypeOfWork: "x", Lat: &lat})
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "location", ve.Field)
}

func TestOfferAcceptOpensConversation(t *testing.T) {
	svc, store, events := newTestService()
	client, provider := uuid.New(), uuid.New()

	req := mustCreateRequest(t, svc, client)

	offer, err := svc.CreateOffer(client, req.ID, provider)
	require.NoError(t, err)
	assert.Equal(t, models.DirectionOffered, offer.Direction)

	got, _ := store.Request(req.ID)
	assert.Equal(t, models.RequestStatusOffered, got.Status)
	require.NotNil(t, got.TargetProviderID)
	assert.Equal(t, provider, *got.TargetProviderID)

	// only the targeted provider may accept
	_, err = svc.RespondToOffer(uuid.New(), offer.ID, true)
	var ae *AuthorizationError
	require.ErrorAs(t, err, &ae)

	accepted, err := svc.RespondToOffer(provider, offer.ID, true)
	require.NoError(t, err)
	assert.Equal(t, models.OfferStatusAccepted, accepted.Status)

	got, _ = store.Request(req.ID)
	assert.Equal(t, models.RequestStatusAccepted, got.Status)
	assert.Nil(t, got.TargetProviderID, "target cleared on accept")
	require.NotNil(t, got.ServiceProviderID)
	assert.Equal(t, provider, *got.ServiceProviderID)

	conv, err := store.EnsureConversation(req.ID, client, provider)
	require.NoError(t, err)
	assert.Equal(t, req.ID, conv.RequestID)

	assert.True(t, events.has("offer_accepted"))
}

func TestDeclineReturnsRequestToOpen(t *testing.T) {
	svc, store, _ := newTestService()
	client, provider := uuid.New(), uuid.New()

	req := mustCreateRequest(t, svc, client)
	offer, err := svc.CreateOffer(client, req.ID, provider)
	require.NoError(t, err)

	declined, err := svc.RespondToOffer(provider, offer.ID, false)
	require.NoError(t, err)
	assert.Equal(t, models.OfferStatusDeclined, declined.Status)

	got, _ := store.Request(req.ID)
	assert.Equal(t, models.RequestStatusOpen, got.Status, "request is re-offerable")
	assert.Nil(t, got.TargetProviderID)

	// re-offer to another provider works
	_, err = svc.CreateOffer(client, req.ID, uuid.New())
	require.NoError(t, err)
}

func TestOfferOnNonOpenRequestRejected(t *testing.T) {
	svc, _, _ := newTestService()
	client, provider := uuid.New(), uuid.New()

	req := mustCreateRequest(t, svc, client)
	_, err := svc.CreateOffer(client, req.ID, provider)
	require.NoError(t, err)

	_, err = svc.CreateOffer(client, req.ID, uuid.New())
	var te *TransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, models.RequestStatusOffered, te.From)
}

func TestDuplicateApplicationRejected(t *testing.T) {
	svc, _, _ := newTestService()
	client, provider := uuid.New(), uuid.New()

	reqA := mustCreateRequest(t, svc, client)
	reqB := mustCreateRequest(t, svc, client)

	_, err := svc.ApplyToRequest(provider, reqA.ID, i64(800), "can start tomorrow")
	require.NoError(t, err)

	// second application to the same request
	_, err = svc.ApplyToRequest(provider, reqA.ID, i64(700), "")
	var de *DuplicateApplicationError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, reqA.ID, de.RequestID)
	assert.Equal(t, provider, de.ProviderID)

	// a different request is fine
	_, err = svc.ApplyToRequest(provider, reqB.ID, i64(800), "")
	require.NoError(t, err)
}

func TestApplicationFeeMustFitBudget(t *testing.T) {
	svc, _, _ := newTestService()
	client, provider := uuid.New(), uuid.New()
	req := mustCreateRequest(t, svc, client) // budget 500..1500

	_, err := svc.ApplyToRequest(provider, req.ID, i64(2000), "")
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "commission_fee", ve.Field)

	_, err = svc.ApplyToRequest(provider, req.ID, i64(200), "")
	require.ErrorAs(t, err, &ve)

	// no fee at all is allowed
	_, err = svc.ApplyToRequest(provider, req.ID, nil, "")
	require.NoError(t, err)
}

func TestConcurrentAcceptsExactlyOneWins(t *testing.T) {
	svc, store, _ := newTestService()
	client := uuid.New()
	req := mustCreateRequest(t, svc, client)

	// two providers apply; the client "accepts" both concurrently
	providerA, providerB := uuid.New(), uuid.New()
	offerA, err := svc.ApplyToRequest(providerA, req.ID, i64(900), "")
	require.NoError(t, err)
	offerB, err := svc.ApplyToRequest(providerB, req.ID, i64(1000), "")
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, offerID := range []uuid.UUID{offerA.ID, offerB.ID} {
		wg.Add(1)
		go func(i int, id uuid.UUID) {
			defer wg.Done()
			_, errs[i] = svc.RespondToOffer(client, id, true)
		}(i, offerID)
	}
	wg.Wait()

	wins, conflicts := 0, 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		var ce *ConflictError
		require.ErrorAs(t, err, &ce)
		conflicts++
	}
	assert.Equal(t, 1, wins, "exactly one accept succeeds")
	assert.Equal(t, 1, conflicts, "the loser gets a ConflictError")

	got, _ := store.Request(req.ID)
	assert.Equal(t, models.RequestStatusAccepted, got.Status)

	// no offer other than the winner is still pending
	a, _ := store.Offer(offerA.ID)
	b, _ := store.Offer(offerB.ID)
	active := 0
	for _, o := range []*models.Offer{a, b} {
		if !o.Status.Terminal() {
			active++
		}
	}
	assert.Zero(t, active)
	accepted := 0
	for _, o := range []*models.Offer{a, b} {
		if o.Status == models.OfferStatusAccepted {
			accepted++
		}
	}
	assert.Equal(t, 1, accepted)
}

func TestConcurrentTargetedAccept(t *testing.T) {
	// same race through the directed-offer path: two goroutines, one offer
	svc, _, _ := newTestService()
	client, provider := uuid.New(), uuid.New()
	req := mustCreateRequest(t, svc, client)
	offer, err := svc.CreateOffer(client, req.ID, provider)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.RespondToOffer(provider, offer.ID, true)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		} else {
			var ce *ConflictError
			require.ErrorAs(t, err, &ce)
		}
	}
	assert.Equal(t, 1, wins)
}

func TestStartCompleteAuthority(t *testing.T) {
	svc, store, events := newTestService()
	client, provider := uuid.New(), uuid.New()
	req := mustCreateRequest(t, svc, client)
	offer, _ := svc.CreateOffer(client, req.ID, provider)
	_, err := svc.RespondToOffer(provider, offer.ID, true)
	require.NoError(t, err)

	// only the assigned provider can start
	_, err = svc.Start(uuid.New(), req.ID)
	var ae *AuthorizationError
	require.ErrorAs(t, err, &ae)

	// completing before work starts is an illegal transition
	_, err = svc.Complete(provider, req.ID)
	var te *TransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, models.RequestStatusAccepted, te.From)

	started, err := svc.Start(provider, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusWorking, started.Status)

	done, err := svc.Complete(provider, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusCompleted, done.Status)
	assert.True(t, events.has("request_completed"))

	// terminal: nothing moves any more
	_, err = svc.Cancel(client, req.ID, false)
	require.ErrorAs(t, err, &te)

	got, _ := store.Request(req.ID)
	assert.Equal(t, models.RequestStatusCompleted, got.Status, "no partial mutation on rejection")
}

func TestCancelAuthority(t *testing.T) {
	svc, store, _ := newTestService()
	client, provider := uuid.New(), uuid.New()
	req := mustCreateRequest(t, svc, client)
	_, err := svc.ApplyToRequest(provider, req.ID, nil, "")
	require.NoError(t, err)

	// a stranger cannot cancel
	_, err = svc.Cancel(uuid.New(), req.ID, false)
	var ae *AuthorizationError
	require.ErrorAs(t, err, &ae)

	// an admin can
	cancelled, err := svc.Cancel(uuid.New(), req.ID, true)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusCancelled, cancelled.Status)

	// the pending application was resolved with it
	var stillPending int
	for _, o := range store.offers {
		if o.Status == models.OfferStatusPending {
			stillPending++
		}
	}
	assert.Zero(t, stillPending)
}

func TestExpireStaleOffers(t *testing.T) {
	svc, store, events := newTestService()
	client, provider := uuid.New(), uuid.New()
	req := mustCreateRequest(t, svc, client)
	_, err := svc.CreateOffer(client, req.ID, provider)
	require.NoError(t, err)

	// age the request by hand
	store.mu.Lock()
	store.requests[req.ID].UpdatedAt = time.Now().Add(-80 * time.Hour)
	store.mu.Unlock()

	n, err := svc.ExpireStaleOffers(72 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, _ := store.Request(req.ID)
	assert.Equal(t, models.RequestStatusOpen, got.Status)
	assert.Nil(t, got.TargetProviderID)
	assert.True(t, events.has("offer_expired"))

	// nothing left to expire on a second pass
	n, err = svc.ExpireStaleOffers(72 * time.Hour)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestGuardSerializes(t *testing.T) {
	g := NewGuard()
	id := uuid.New()

	var inside, max int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = g.Do(id, func() error {
				mu.Lock()
				inside++
				if inside > max {
					max = inside
				}
				mu.Unlock()
				time.Sleep(time.Millisecond)
				mu.Lock()
				inside--
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, max, "at most one caller inside the section")
}

// gatedStore lets a test pin an apply inside its critical section so a
// concurrent accept has to queue behind the per-request guard.
type gatedStore struct {
	*memStore
	entered chan struct{}
	release chan struct{}
}

func (g *gatedStore) CreateOffer(offer *models.Offer) error {
	if g.entered != nil {
		close(g.entered)
		g.entered = nil
		<-g.release
	}
	return g.memStore.CreateOffer(offer)
}

func TestApplyRacingAcceptLeavesNoPendingOffer(t *testing.T) {
	gated := &gatedStore{memStore: newMemStore()}
	svc := NewService(gated, &recordingEvents{})
	client, providerA, providerB := uuid.New(), uuid.New(), uuid.New()

	req := mustCreateRequest(t, svc, client)
	offerA, err := svc.ApplyToRequest(providerA, req.ID, i64(900), "")
	require.NoError(t, err)

	// providerB's apply stalls after its status check; the client's accept
	// arrives while it is parked there
	gated.entered = make(chan struct{})
	gated.release = make(chan struct{})

	applied := make(chan error, 1)
	var offerB *models.Offer
	go func() {
		var err error
		offerB, err = svc.ApplyToRequest(providerB, req.ID, i64(1000), "")
		applied <- err
	}()
	<-gated.entered

	accepted := make(chan error, 1)
	go func() {
		_, err := svc.RespondToOffer(client, offerA.ID, true)
		accepted <- err
	}()

	// the accept must wait for the apply to finish, not interleave with it
	select {
	case err := <-accepted:
		t.Fatalf("accept ran inside the apply critical section: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(gated.release)
	require.NoError(t, <-applied)
	require.NoError(t, <-accepted)

	got, _ := gated.Request(req.ID)
	assert.Equal(t, models.RequestStatusAccepted, got.Status)
	require.NotNil(t, got.ServiceProviderID)
	assert.Equal(t, providerA, *got.ServiceProviderID)

	// the late application was resolved by the accept, not left pending
	b, err := gated.Offer(offerB.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OfferStatusDeclined, b.Status)
}

func TestApplyAfterAcceptRejected(t *testing.T) {
	svc, _, _ := newTestService()
	client, providerA, providerB := uuid.New(), uuid.New(), uuid.New()

	req := mustCreateRequest(t, svc, client)
	offerA, err := svc.ApplyToRequest(providerA, req.ID, i64(900), "")
	require.NoError(t, err)
	_, err = svc.RespondToOffer(client, offerA.ID, true)
	require.NoError(t, err)

	_, err = svc.ApplyToRequest(providerB, req.ID, i64(1000), "")
	var te *TransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, models.RequestStatusAccepted, te.From)
}

func TestAcceptCommitFailureLeavesNoPartialState(t *testing.T) {
	svc, store, _ := newTestService()
	client, provider := uuid.New(), uuid.New()

	req := mustCreateRequest(t, svc, client)
	offer, err := svc.ApplyToRequest(provider, req.ID, i64(900), "")
	require.NoError(t, err)

	storeDown := errors.New("store down")
	store.failAccept = storeDown
	_, err = svc.RespondToOffer(client, offer.ID, true)
	require.ErrorIs(t, err, storeDown)

	// nothing moved: the request is still open, the offer still pending
	got, _ := store.Request(req.ID)
	assert.Equal(t, models.RequestStatusOpen, got.Status)
	assert.Nil(t, got.ServiceProviderID)
	o, _ := store.Offer(offer.ID)
	assert.Equal(t, models.OfferStatusPending, o.Status)

	// so a retry succeeds instead of hitting a permanent conflict
	store.failAccept = nil
	accepted, err := svc.RespondToOffer(client, offer.ID, true)
	require.NoError(t, err)
	assert.Equal(t, models.OfferStatusAccepted, accepted.Status)
	got, _ = store.Request(req.ID)
	assert.Equal(t, models.RequestStatusAccepted, got.Status)
}
