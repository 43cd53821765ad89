package tasks_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/Nisarg2003/real-tractors-and-equipments/internal/models"
	"github.com/Nisarg2003/real-tractors-and-equipments/internal/tasks"
)

// --- Mocks ---

type MockEmailSender struct {
	mock.Mock
}

func (m *MockEmailSender) Send(ctx context.Context, to []string, subject, body string) error {
	args := m.Called(ctx, to, subject, body)
	return args.Error(0)
}

func sampleInquiry(withListing bool) *models.Inquiry {
	inq := &models.Inquiry{
		Base:      models.NewBase(),
		FullName:  "Ravi Patel",
		ContactNo: "9876543210",
		EmailID:   "ravi@example.com",
		Query:     models.DefaultInquiryQuery,
	}
	inq.CreatedAt = time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)
	if withListing {
		id := primitive.NewObjectID()
		inq.Post = &id
	}
	return inq
}

// --- Tests ---

func TestNewInquiryNotifyTask_Payload(t *testing.T) {
	inq := sampleInquiry(true)

	task, err := tasks.NewInquiryNotifyTask("firm@example.com", inq)
	require.NoError(t, err)
	assert.Equal(t, tasks.TypeInquiryNotify, task.Type())

	var payload tasks.InquiryNotifyPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, "firm@example.com", payload.To)
	assert.Equal(t, inq.ID.Hex(), payload.InquiryID)
	assert.Equal(t, inq.Post.Hex(), payload.ListingID)
	assert.Equal(t, "Ravi Patel", payload.FullName)
}

func TestHandleInquiryNotifyTask_Success(t *testing.T) {
	sender := new(MockEmailSender)
	p := tasks.NewTaskProcessor(sender, zap.NewNop())

	task, err := tasks.NewInquiryNotifyTask("firm@example.com", sampleInquiry(false))
	require.NoError(t, err)

	sender.On("Send",
		mock.Anything,
		[]string{"firm@example.com"},
		"New inquiry from Ravi Patel",
		mock.MatchedBy(func(body string) bool {
			return assert.Contains(t, body, "ravi@example.com") &&
				assert.Contains(t, body, "9876543210") &&
				assert.Contains(t, body, models.DefaultInquiryQuery) &&
				assert.NotContains(t, body, "Listing:")
		}),
	).Return(nil)

	assert.NoError(t, p.HandleInquiryNotifyTask(context.Background(), task))
	sender.AssertExpectations(t)
}

func TestHandleInquiryNotifyTask_SendFailureRetries(t *testing.T) {
	sender := new(MockEmailSender)
	p := tasks.NewTaskProcessor(sender, zap.NewNop())
	task, err := tasks.NewInquiryNotifyTask("firm@example.com", sampleInquiry(true))
	require.NoError(t, err)

	sender.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(assert.AnError)

	err = p.HandleInquiryNotifyTask(context.Background(), task)
	assert.ErrorIs(t, err, assert.AnError)
	assert.False(t, errors.Is(err, asynq.SkipRetry))
}

func TestHandleInquiryNotifyTask_BadPayloadSkipsRetry(t *testing.T) {
	sender := new(MockEmailSender)
	p := tasks.NewTaskProcessor(sender, zap.NewNop())

	err := p.HandleInquiryNotifyTask(context.Background(), asynq.NewTask(tasks.TypeInquiryNotify, []byte("{")))
	assert.True(t, errors.Is(err, asynq.SkipRetry))

	raw, _ := json.Marshal(tasks.InquiryNotifyPayload{FullName: "x"})
	err = p.HandleInquiryNotifyTask(context.Background(), asynq.NewTask(tasks.TypeInquiryNotify, raw))
	assert.True(t, errors.Is(err, asynq.SkipRetry))

	sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestClient_EnqueueInquiryNotify(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	client := tasks.NewClient(rdb, "firm@example.com", zap.NewNop())
	defer client.Close()

	require.NoError(t, client.EnqueueInquiryNotify(context.Background(), sampleInquiry(false)))

	pending, err := mr.List("asynq:{default}:pending")
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestClient_NoRecipientSkipsEnqueue(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	client := tasks.NewClient(rdb, "", zap.NewNop())
	defer client.Close()

	require.NoError(t, client.EnqueueInquiryNotify(context.Background(), sampleInquiry(false)))
	assert.False(t, mr.Exists("asynq:{default}:pending"))
}
