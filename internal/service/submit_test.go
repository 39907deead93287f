package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/quantlab/quantjobs/internal/core"
	"github.com/quantlab/quantjobs/internal/domain/model"
	"github.com/quantlab/quantjobs/internal/mocks"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

var clock = fixedClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}

func submitRequest() *model.SubmitRequest {
	return &model.SubmitRequest{
		Kind:    model.JobKindMonteCarlo,
		Symbols: []string{"AAPL", "MSFT"},
		Start:   "2024-01-02",
		End:     "2024-12-31",
		Params:  json.RawMessage(`{"simulations": 5000}`),
	}
}

func newSubmission(t *testing.T, store core.JobStore, pub core.DispatchPublisher) *SubmissionService {
	t.Helper()
	svc, err := NewSubmissionService(SubmissionServiceOptions{
		Store:     store,
		Publisher: pub,
		Clock:     clock,
	})
	require.NoError(t, err)
	return svc
}

func TestSubmissionService_Submit_PersistsAndPublishesOnce(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := mocks.NewMockJobStore(ctrl)
	pub := mocks.NewMockDispatchPublisher(ctrl)
	owner := uuid.New()

	var created *model.JobRecord
	store.EXPECT().Create(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, rec *model.JobRecord) error {
			created = rec
			return nil
		})
	var published model.DispatchMessage
	pub.EXPECT().Publish(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, msg model.DispatchMessage) error {
			published = msg
			return nil
		}).Times(1)

	svc := newSubmission(t, store, pub)
	result, err := svc.Submit(context.Background(), owner, submitRequest())
	require.NoError(t, err)

	require.NotNil(t, created)
	assert.Equal(t, model.JobStatusQueued, created.Status)
	assert.Equal(t, owner, created.OwnerID)
	assert.Equal(t, clock.now, created.CreatedAt)
	assert.NotEqual(t, uuid.Nil, created.ID)

	assert.Equal(t, created.ID, published.JobID)
	assert.Equal(t, owner, published.OwnerID)
	assert.Equal(t, model.JobKindMonteCarlo, published.Kind)
	assert.Equal(t, "2024-01-02", published.Start)

	// montecarlo base 30s + 2 symbols x 2s.
	assert.Equal(t, 34*time.Second, result.EstimatedDuration)
	assert.Same(t, created, result.Record)
}

func TestSubmissionService_Submit_ValidationFailurePersistsNothing(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := mocks.NewMockJobStore(ctrl)
	pub := mocks.NewMockDispatchPublisher(ctrl)
	// No Create or Publish expectations: any call fails the test.

	req := submitRequest()
	req.Symbols = nil

	svc := newSubmission(t, store, pub)
	_, err := svc.Submit(context.Background(), uuid.New(), req)

	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "symbols", verr.Field)
}

func TestSubmissionService_Submit_PublishFailureLeavesRecordQueued(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := mocks.NewMockJobStore(ctrl)
	pub := mocks.NewMockDispatchPublisher(ctrl)

	store.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
	pub.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(errors.New("stream unavailable"))
	// Crucially, no Transition call: the record must stay queued.

	svc := newSubmission(t, store, pub)
	_, err := svc.Submit(context.Background(), uuid.New(), submitRequest())

	var derr *core.DispatchError
	require.ErrorAs(t, err, &derr)
	assert.NotEqual(t, uuid.Nil, derr.JobID)
}

func TestSubmissionService_Submit_StoreFailurePropagates(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := mocks.NewMockJobStore(ctrl)
	pub := mocks.NewMockDispatchPublisher(ctrl)

	store.EXPECT().Create(gomock.Any(), gomock.Any()).Return(errors.New("db down"))

	svc := newSubmission(t, store, pub)
	_, err := svc.Submit(context.Background(), uuid.New(), submitRequest())
	require.ErrorContains(t, err, "db down")
}

func TestSubmissionService_Submit_RequiresOwner(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc := newSubmission(t, mocks.NewMockJobStore(ctrl), mocks.NewMockDispatchPublisher(ctrl))
	_, err := svc.Submit(context.Background(), uuid.Nil, submitRequest())

	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "owner_id", verr.Field)
}

func TestNewSubmissionService_RequiresDependencies(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	_, err := NewSubmissionService(SubmissionServiceOptions{Publisher: mocks.NewMockDispatchPublisher(ctrl)})
	require.Error(t, err)

	_, err = NewSubmissionService(SubmissionServiceOptions{Store: mocks.NewMockJobStore(ctrl)})
	require.Error(t, err)
}
