package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	mock_kafka "gitlab.ozon.dev/pupkingeorgij/giftstore/internal/kafka/mocks"
	"gitlab.ozon.dev/pupkingeorgij/giftstore/internal/repository"
)

func TestConsumer_Run(t *testing.T) {
	t.Run("decodes messages and skips garbage", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		reader := mock_kafka.NewMockMessageReader(ctrl)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var got []repository.ActivityPayload
		c := NewConsumer(reader, func(_ context.Context, p repository.ActivityPayload) error {
			got = append(got, p)
			return nil
		}, zap.NewNop())

		gomock.InOrder(
			reader.EXPECT().ReadMessage(gomock.Any()).Return(kafka.Message{
				Key:   []byte("task-1"),
				Value: []byte(`{"event_id":"e1","type":"order_placed","entity_id":"order-2"}`),
			}, nil),
			reader.EXPECT().ReadMessage(gomock.Any()).Return(kafka.Message{Value: []byte("not json")}, nil),
			reader.EXPECT().ReadMessage(gomock.Any()).DoAndReturn(func(context.Context) (kafka.Message, error) {
				cancel()
				return kafka.Message{}, context.Canceled
			}),
			reader.EXPECT().Close().Return(nil),
		)

		err := c.Run(ctx)

		assert.NoError(t, err)
		if assert.Len(t, got, 1) {
			assert.Equal(t, "e1", got[0].EventID)
			assert.Equal(t, "order_placed", got[0].Type)
			assert.Equal(t, "order-2", got[0].EntityID)
		}
	})

	t.Run("read errors are retried", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		reader := mock_kafka.NewMockMessageReader(ctrl)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		calls := 0
		c := NewConsumer(reader, func(context.Context, repository.ActivityPayload) error {
			calls++
			return errors.New("handler error")
		}, zap.NewNop())
		c.retryDelay = time.Millisecond

		gomock.InOrder(
			reader.EXPECT().ReadMessage(gomock.Any()).Return(kafka.Message{}, errors.New("broker unavailable")),
			reader.EXPECT().ReadMessage(gomock.Any()).Return(kafka.Message{Value: []byte(`{"event_id":"e2"}`)}, nil),
			reader.EXPECT().ReadMessage(gomock.Any()).DoAndReturn(func(context.Context) (kafka.Message, error) {
				cancel()
				return kafka.Message{}, context.Canceled
			}),
			reader.EXPECT().Close().Return(nil),
		)

		err := c.Run(ctx)

		assert.NoError(t, err)
		assert.Equal(t, 1, calls)
	})
}
