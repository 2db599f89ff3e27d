package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/notifyhub/safety-dispatch/internal/config"
	"github.com/notifyhub/safety-dispatch/internal/dispatcher"
	"github.com/notifyhub/safety-dispatch/internal/domain"
	"github.com/notifyhub/safety-dispatch/internal/relay"
)

func newEmailTestCmd() *cobra.Command {
	var (
		name      string
		emergency bool
		verbose   bool
		timeout   time.Duration
	)
	c := &cobra.Command{
		Use:   "email-test ADDRESS",
		Short: "Send one test notification through the configured email relay",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if !cfg.RelayConfigured() {
				return fmt.Errorf("%w: set EMAILJS_SERVICE_ID, EMAILJS_TEMPLATE_ID and EMAILJS_PUBLIC_KEY", domain.ErrRelayUnconfigured)
			}

			logger := zap.NewNop()
			if verbose {
				logger, _ = zap.NewDevelopment()
			}
			defer logger.Sync() //nolint:errcheck

			disp := dispatcher.New(
				relay.NewEmailJSRelay(cfg.EmailJSURL, cfg.EmailJSPrivateKey, cfg.RelayTimeout),
				nil, nil,
				dispatcher.Config{
					ServiceID:  cfg.EmailJSServiceID,
					TemplateID: cfg.EmailJSTemplateID,
					PublicKey:  cfg.EmailJSPublicKey,
					MaxRetries: cfg.MaxRetries,
					RetryDelay: cfg.RetryDelay,
				},
				logger,
			)

			kind := domain.KindLocationShare
			if emergency {
				kind = domain.KindEmergencyAlert
			}
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			res, err := disp.DispatchEmail(ctx,
				[]domain.Contact{{ID: "test", Name: name, Email: args[0]}},
				&domain.UserInfo{Name: "safetyctl", Message: "This is a test notification."},
				&domain.LocationSnapshot{
					Latitude:  37.7749,
					Longitude: -122.4194,
					Address:   "Test location",
					Timestamp: time.Now().UTC(),
				},
				dispatcher.TemplateFor(kind, nil),
			)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	c.Flags().StringVar(&name, "name", "Test Contact", "contact name used in the template")
	c.Flags().BoolVar(&emergency, "emergency", false, "use the emergency alert template")
	c.Flags().BoolVarP(&verbose, "verbose", "v", false, "log relay attempts to stderr")
	c.Flags().DurationVar(&timeout, "timeout", time.Minute, "overall deadline")
	return c
}
