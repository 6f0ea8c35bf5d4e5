package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/smart-bill-tracker/internal/domain/common"
)

type MockChannel struct {
	mock.Mock
}

func (m *MockChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error {
	return m.Called(name, kind, durable).Error(0)
}

func (m *MockChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp091.Table) (amqp091.Queue, error) {
	ret := m.Called(name, durable)
	return amqp091.Queue{Name: name}, ret.Error(0)
}

func (m *MockChannel) QueueBind(name, key, exchange string, noWait bool, args amqp091.Table) error {
	return m.Called(name, key, exchange).Error(0)
}

func (m *MockChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error {
	return m.Called(ctx, exchange, key, msg).Error(0)
}

func (m *MockChannel) Close() error {
	return m.Called().Error(0)
}

var testConfig = AMQPConfig{Exchange: "bills", Queue: "bills.ingested"}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func expectSetup(ch *MockChannel) {
	ch.On("ExchangeDeclare", "bills", "direct", true).Return(nil).Once()
	ch.On("QueueDeclare", "bills.ingested", true).Return(nil).Once()
	ch.On("QueueBind", "bills.ingested", "bills.ingested", "bills").Return(nil).Once()
}

func TestNewBillsIngested(t *testing.T) {
	bills := []*common.Bill{
		{ID: uuid.New(), TotalAmount: decimal.RequireFromString("19.98")},
		{ID: uuid.New(), TotalAmount: decimal.RequireFromString("4.50")},
	}

	ev := NewBillsIngested(common.UploadTypeCSV, "items.csv", bills)

	assert.Equal(t, 2, ev.BillCount)
	assert.Equal(t, []uuid.UUID{bills[0].ID, bills[1].ID}, ev.BillIDs)
	assert.True(t, ev.TotalAmount.Equal(decimal.RequireFromString("24.48")))
	assert.NotEqual(t, uuid.Nil, ev.EventID)

	body, err := ev.ToJSON()
	require.NoError(t, err)
	assert.Contains(t, string(body), `"total_amount":"24.48"`)

	decoded, err := BillsIngestedFromJSON(body)
	require.NoError(t, err)
	assert.Equal(t, ev.BillIDs, decoded.BillIDs)
	assert.Equal(t, common.UploadTypeCSV, decoded.UploadType)
}

func TestAMQPPublisher_Setup(t *testing.T) {
	t.Run("declares and binds", func(t *testing.T) {
		ch := new(MockChannel)
		expectSetup(ch)

		_, err := newAMQPPublisher(ch, testConfig, discardLogger())
		require.NoError(t, err)
		ch.AssertExpectations(t)
	})

	t.Run("closes the channel when setup fails", func(t *testing.T) {
		ch := new(MockChannel)
		ch.On("ExchangeDeclare", "bills", "direct", true).Return(errors.New("access refused")).Once()
		ch.On("Close").Return(nil).Once()

		_, err := newAMQPPublisher(ch, testConfig, discardLogger())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "declare exchange")
		ch.AssertExpectations(t)
	})
}

func TestAMQPPublisher_Publish(t *testing.T) {
	ch := new(MockChannel)
	expectSetup(ch)
	p, err := newAMQPPublisher(ch, testConfig, discardLogger())
	require.NoError(t, err)

	ev := NewBillsIngested(common.UploadTypeImage, "receipt.jpg", []*common.Bill{{ID: uuid.New(), TotalAmount: decimal.NewFromInt(3)}})
	isEvent := mock.MatchedBy(func(msg amqp091.Publishing) bool {
		return msg.DeliveryMode == amqp091.Persistent &&
			msg.ContentType == "application/json" &&
			msg.MessageId == ev.EventID.String()
	})
	ch.On("PublishWithContext", mock.Anything, "bills", "bills.ingested", isEvent).Return(nil).Once()

	require.NoError(t, p.PublishBillsIngested(context.Background(), ev))

	ch.On("PublishWithContext", mock.Anything, "bills", "bills.ingested", mock.Anything).Return(amqp091.ErrClosed).Once()
	err = p.PublishBillsIngested(context.Background(), ev)
	assert.ErrorIs(t, err, amqp091.ErrClosed)

	ch.AssertExpectations(t)
}

func TestNoopPublisher(t *testing.T) {
	var p Publisher = NoopPublisher{}
	assert.NoError(t, p.PublishBillsIngested(context.Background(), BillsIngested{}))
	assert.NoError(t, p.Close())
}
