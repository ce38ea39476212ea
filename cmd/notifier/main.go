package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/gommon/log"

	"github.com/iliyamo/playhouse-booking/internal/config"
	"github.com/iliyamo/playhouse-booking/internal/notify"
)

// The notifier consumes booking.confirmed events and sends the WhatsApp
// confirmation to the parent and alerts to staff.
func main() {
	l := log.New("notifier")

	var exitCode int
	if err := run(l); err != nil {
		l.Errorf("failed to run notifier: %v", err)
		exitCode = 1
	}
	os.Exit(exitCode)
}

func run(l *log.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	var sender notify.Sender = notify.LogSender{L: l}
	if cfg.WhatsApp.Enabled() {
		sender = notify.NewWhatsAppSender(notify.WhatsAppConfig{
			BaseURL:       cfg.WhatsApp.BaseURL,
			APIVersion:    cfg.WhatsApp.APIVersion,
			PhoneNumberID: cfg.WhatsApp.PhoneNumberID,
			AccessToken:   cfg.WhatsApp.AccessToken,
		}, nil)
	} else {
		l.Warn("WHATSAPP_PHONE_NUMBER_ID or WHATSAPP_ACCESS_TOKEN unset: messages are only logged")
	}

	d := notify.NewDispatcher(sender, cfg.Notifier.StaffPhones, l)
	c := notify.NewConsumer(cfg.AMQPURL, cfg.Notifier.Prefetch, d.Handle, l)

	l.Infof("consuming %s with %d staff recipients", notify.BookingConfirmedQueue, len(cfg.Notifier.StaffPhones))
	if err := c.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	l.Info("notifier stopped")
	return nil
}
