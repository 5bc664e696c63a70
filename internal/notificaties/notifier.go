package notificaties

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/open-zaak/open-zaak/backend/go-services/pkg/logger"
	"github.com/open-zaak/open-zaak/backend/go-services/pkg/metrics"
)

// Notifier sends messages and stores the ones that fail.
type Notifier struct {
	sender   Sender
	failed   FailedStore
	disabled bool
	now      func() time.Time
}

type Option func(*Notifier)

// Disabled turns Notify into a no-op (NOTIFICATIONS_DISABLED).
func Disabled(d bool) Option { return func(n *Notifier) { n.disabled = d } }

// WithClock overrides the clock used for aanmaakdatum and bookkeeping.
func WithClock(now func() time.Time) Option { return func(n *Notifier) { n.now = now } }

func NewNotifier(sender Sender, failed FailedStore, opts ...Option) *Notifier {
	n := &Notifier{sender: sender, failed: failed, now: time.Now}
	for _, o := range opts {
		o(n)
	}
	return n
}

func (n *Notifier) Enabled() bool { return !n.disabled && n.sender != nil }

// Notify delivers msg. A failed delivery is logged and stored; the caller's
// operation has already been committed and is not affected.
func (n *Notifier) Notify(ctx context.Context, msg Message) {
	if n.disabled {
		return
	}
	if msg.Aanmaakdatum.IsZero() {
		msg.Aanmaakdatum = n.now().UTC().Truncate(time.Second)
	}
	if msg.Kenmerken == nil {
		msg.Kenmerken = map[string]string{}
	}
	err := n.send(ctx, msg)
	if err == nil {
		return
	}
	logger.WithFields(map[string]interface{}{
		"kanaal":   msg.Kanaal,
		"resource": msg.ResourceURL,
		"actie":    msg.Actie,
	}).Warnf("notification failed: %v", err)

	f := &FailedNotification{
		ID:        uuid.NewString(),
		Message:   msg,
		CreatedAt: n.now().UTC(),
		Attempts:  []Attempt{n.attempt(err)},
	}
	if serr := n.failed.Save(ctx, f); serr != nil {
		logger.Errorf("store failed notification for %s: %v", msg.ResourceURL, serr)
	}
}

func (n *Notifier) send(ctx context.Context, msg Message) error {
	if n.sender == nil {
		metrics.NotificationsFailed.WithLabelValues(msg.Kanaal).Inc()
		return errors.New("no notification sender configured")
	}
	if err := n.sender.Send(ctx, msg); err != nil {
		metrics.NotificationsFailed.WithLabelValues(msg.Kanaal).Inc()
		return err
	}
	metrics.NotificationsSent.WithLabelValues(msg.Kanaal).Inc()
	return nil
}

func (n *Notifier) attempt(err error) Attempt {
	a := Attempt{At: n.now().UTC(), Exception: err.Error()}
	var derr *DeliveryError
	if errors.As(err, &derr) {
		a.StatusCode = derr.StatusCode
	}
	return a
}

// ResendResult summarises a resend run.
type ResendResult struct {
	Sent    []string `json:"sent"`
	Failed  []string `json:"failed"`
	Skipped []string `json:"skipped"`
}

// Resend retries the given failed notifications, or every pending one when ids is empty.
// Notifications that were already retried successfully are skipped and a failure
// does not stop the run.
func (n *Notifier) Resend(ctx context.Context, ids []string) (ResendResult, error) {
	var (
		res   ResendResult
		items []*FailedNotification
	)
	if len(ids) == 0 {
		var err error
		if items, err = n.failed.List(ctx, true); err != nil {
			return res, err
		}
	} else {
		for _, id := range ids {
			f, err := n.failed.Get(ctx, id)
			if err != nil {
				return res, err
			}
			items = append(items, f)
		}
	}

	for _, f := range items {
		if f.RetriedAt != nil {
			res.Skipped = append(res.Skipped, f.ID)
			continue
		}
		if err := n.send(ctx, f.Message); err != nil {
			f.Attempts = append(f.Attempts, n.attempt(err))
			res.Failed = append(res.Failed, f.ID)
			if serr := n.failed.Save(ctx, f); serr != nil {
				logger.Errorf("update failed notification %s: %v", f.ID, serr)
			}
			continue
		}
		now := n.now().UTC()
		f.RetriedAt = &now
		if err := n.failed.Save(ctx, f); err != nil {
			return res, err
		}
		res.Sent = append(res.Sent, f.ID)
	}
	logger.Infof("resent notifications: %d sent, %d failed, %d skipped", len(res.Sent), len(res.Failed), len(res.Skipped))
	return res, nil
}

// Failed exposes the store for the admin endpoints.
func (n *Notifier) Failed() FailedStore { return n.failed }
