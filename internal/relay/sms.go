package relay

import (
	"context"

	"go.uber.org/zap"
)

// StubSMSTransport is the placeholder SMS channel: it logs the message it
// would send and always reports success. Replace it with a real gateway
// client behind the SMSTransport interface.
type StubSMSTransport struct {
	logger *zap.Logger
}

func NewStubSMSTransport(logger *zap.Logger) *StubSMSTransport {
	return &StubSMSTransport{logger: logger}
}

func (s *StubSMSTransport) Send(ctx context.Context, phone, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.logger.Info("sms would be sent",
		zap.String("to", phone),
		zap.Int("body_len", len(body)),
	)
	return nil
}

var _ SMSTransport = (*StubSMSTransport)(nil)
