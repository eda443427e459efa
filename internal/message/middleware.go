package message

import (
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/hanse-dev/eventbocker/internal/logging"
	"github.com/rs/zerolog"
)

func addMiddlewares(router *message.Router, base zerolog.Logger, logger watermill.LoggerAdapter) {
	router.AddMiddleware(correlationIDMiddleware)
	router.AddMiddleware(loggerMiddleware(base))
	router.AddMiddleware(ackAfterRetriesMiddleware)
	router.AddMiddleware(handlerLogMiddleware)
	router.AddMiddleware(middleware.Retry{
		MaxRetries:      5,
		InitialInterval: time.Millisecond * 100,
		MaxInterval:     time.Second,
		Multiplier:      2,
		Logger:          logger,
	}.Middleware)
	router.AddMiddleware(middleware.Recoverer)
}

func correlationIDMiddleware(next message.HandlerFunc) message.HandlerFunc {
	return func(msg *message.Message) ([]*message.Message, error) {
		correlationID := middleware.MessageCorrelationID(msg)
		if correlationID == "" {
			correlationID = logging.NewCorrelationID()
		}

		ctx := logging.ContextWithCorrelationID(msg.Context(), correlationID)
		msg.SetContext(ctx)

		return next(msg)
	}
}

func loggerMiddleware(base zerolog.Logger) message.HandlerMiddleware {
	return func(next message.HandlerFunc) message.HandlerFunc {
		return func(msg *message.Message) ([]*message.Message, error) {
			l := base.With().
				Str("message_uuid", msg.UUID).
				Str("correlation_id", logging.CorrelationIDFromContext(msg.Context())).
				Logger()
			msg.SetContext(l.WithContext(msg.Context()))

			return next(msg)
		}
	}
}

func handlerLogMiddleware(next message.HandlerFunc) message.HandlerFunc {
	return func(msg *message.Message) ([]*message.Message, error) {
		logger := zerolog.Ctx(msg.Context())
		logger.Info().Str("handler", message.HandlerNameFromCtx(msg.Context())).Msg("Handling a message")

		msgs, err := next(msg)
		if err != nil {
			logger.Error().Err(err).Msg("Message handling error")
		}

		return msgs, err
	}
}

// ackAfterRetriesMiddleware acks a message whose retries are exhausted. The
// gochannel would otherwise redeliver it forever; the daily reconciliation
// recreates any reminder that was lost this way.
func ackAfterRetriesMiddleware(next message.HandlerFunc) message.HandlerFunc {
	return func(msg *message.Message) ([]*message.Message, error) {
		msgs, err := next(msg)
		if err != nil {
			zerolog.Ctx(msg.Context()).Warn().Err(err).Msg("Retries exhausted, dropping message")
			return nil, nil
		}
		return msgs, nil
	}
}

// CorrelationPublisherDecorator copies the correlation ID of the publishing
// context into message metadata.
type CorrelationPublisherDecorator struct {
	message.Publisher
}

// Publish sets the correlation ID on each message and forwards them.
func (c CorrelationPublisherDecorator) Publish(topic string, messages ...*message.Message) error {
	for _, msg := range messages {
		id := logging.CorrelationIDFromContext(msg.Context())
		if id == "" {
			id = logging.NewCorrelationID()
		}
		middleware.SetCorrelationID(id, msg)
	}
	return c.Publisher.Publish(topic, messages...)
}
