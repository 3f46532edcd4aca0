package notification

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jia-app/hotelservice/internal/domain"
)

func sampleBooking() domain.Booking {
	return domain.Booking{
		ID:                 "b1",
		ConfirmationNumber: "BKXYZ123",
		PropertyID:         "p1",
		GuestID:            "g1",
		Status:             domain.BookingConfirmed,
		CheckIn:            time.Date(2027, 3, 1, 0, 0, 0, 0, time.UTC),
		CheckOut:           time.Date(2027, 3, 3, 0, 0, 0, 0, time.UTC),
		Nights:             2,
		Pricing: domain.PricingSnapshot{
			Currency:    "USD",
			TotalAmount: decimal.NewFromInt(220),
		},
	}
}

func TestKafkaNotifierPublishesKeyedJSON(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		key, err := msg.Key.Encode()
		if err != nil {
			return err
		}
		if string(key) != "b1" {
			return errors.New("message must be keyed by booking id")
		}
		if msg.Topic != "hotel.notifications" {
			return errors.New("unexpected topic " + msg.Topic)
		}
		return nil
	})
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var msg Message
		if err := json.Unmarshal(val, &msg); err != nil {
			return err
		}
		if msg.Type != TypeReminder || msg.Booking.ConfirmationNumber != "BKXYZ123" {
			return errors.New("unexpected payload")
		}
		return nil
	})

	notifier := NewKafkaNotifier(producer, "hotel.notifications", []string{"email", "sms"}, zap.NewNop())
	ctx := context.Background()

	result, err := notifier.SendBookingConfirmation(ctx, NewBookingData(sampleBooking(), ""))
	require.NoError(t, err)
	assert.Equal(t, StatusQueued, result.Status)
	assert.Equal(t, []string{"email", "sms"}, result.Channels)
	assert.NotEmpty(t, result.ID)

	_, err = notifier.SendBookingReminder(ctx, NewBookingData(sampleBooking(), "see you soon"))
	require.NoError(t, err)

	require.NoError(t, notifier.Close())
}

func TestKafkaNotifierSurfacesBrokerErrors(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	notifier := NewKafkaNotifier(producer, "hotel.notifications", nil, zap.NewNop())
	_, err := notifier.SendBookingUpdate(context.Background(), NewBookingData(sampleBooking(), "dates changed"))
	require.Error(t, err)
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)

	require.NoError(t, notifier.Close())
}

func TestNoopNotifierSkips(t *testing.T) {
	n := NewNoopNotifier(zap.NewNop())
	result, err := n.SendBookingConfirmation(context.Background(), NewBookingData(sampleBooking(), ""))
	require.NoError(t, err)
	assert.Equal(t, StatusSkipped, result.Status)
	assert.Empty(t, result.Channels)
}

func TestNewBookingDataCopiesPricing(t *testing.T) {
	data := NewBookingData(sampleBooking(), "hello")
	assert.Equal(t, "USD", data.Currency)
	assert.True(t, data.TotalAmount.Equal(decimal.NewFromInt(220)))
	assert.Equal(t, domain.BookingConfirmed, data.Status)
	assert.Equal(t, "hello", data.Message)
}
