package notify

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Dispatcher turns a confirmed booking into a customer confirmation and
// staff alerts.
type Dispatcher struct {
	sender      Sender
	staffPhones []string
	l           Logger
}

func NewDispatcher(sender Sender, staffPhones []string, l Logger) *Dispatcher {
	return &Dispatcher{sender: sender, staffPhones: staffPhones, l: l}
}

// Handle sends every message concurrently.  The customer message decides
// the result; staff alert failures are only logged.
func (d *Dispatcher) Handle(ctx context.Context, ev BookingConfirmedEvent) error {
	var g errgroup.Group

	g.Go(func() error {
		if err := d.sender.Send(ctx, ev.ParentPhone, CustomerConfirmation(ev)); err != nil {
			return fmt.Errorf("customer confirmation to %s: %w", ev.ParentPhone, err)
		}
		return nil
	})
	alert := InternalAlert(ev)
	for _, phone := range d.staffPhones {
		g.Go(func() error {
			if err := d.sender.Send(ctx, phone, alert); err != nil {
				d.l.Warnf("staff alert for %s to %s: %v", ev.Reference, phone, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	d.l.Infof("notified booking %s", ev.Reference)
	return nil
}
