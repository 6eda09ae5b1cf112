package telegram

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/NicoNex/echotron/v3"
	"github.com/labstack/gommon/log"

	"github.com/monstermash/monstermash/model"
	"github.com/monstermash/monstermash/util"
)

// sender is the part of the echotron API the alerter uses
type sender interface {
	SendMessage(text string, chatID int64, opts *echotron.MessageOptions) (echotron.APIResponseMessage, error)
}

// sendTimeout bounds one Telegram API call
const sendTimeout = 10 * time.Second

// Alerter tells the administrators' chat about new registrations
type Alerter struct {
	bot     sender
	chatID  int64
	baseURL string
	timeout time.Duration

	// floodWait suppresses repeated alerts for the same name
	floodWait time.Duration
	mu        sync.Mutex
	lastSent  map[string]time.Time

	wg sync.WaitGroup
}

// New connects to the bot. An empty or short token disables alerts and returns nil.
func New(token string, chatID int64, baseURL string, floodWait time.Duration) (*Alerter, error) {
	if token == "" || len(token) < 30 || chatID == 0 {
		return nil, nil
	}

	bot := echotron.NewAPI(token)
	res, err := bot.GetMe()
	if err != nil {
		return nil, fmt.Errorf("unable to connect to telegram bot: %w", err)
	}
	if !res.Ok {
		return nil, fmt.Errorf("unable to connect to telegram bot: %s", res.Description)
	}
	log.Infof("[Telegram] Authorized as %s", res.Result.Username)

	return newAlerter(bot, chatID, baseURL, floodWait), nil
}

func newAlerter(bot sender, chatID int64, baseURL string, floodWait time.Duration) *Alerter {
	return &Alerter{
		bot:       bot,
		chatID:    chatID,
		baseURL:   baseURL,
		timeout:   sendTimeout,
		floodWait: floodWait,
		lastSent:  make(map[string]time.Time),
	}
}

// NotifyRegistered posts a short message with the new monster's profile link.
// The message is sent in the background; failures are only logged.
func (a *Alerter) NotifyRegistered(ctx context.Context, m model.Monster) error {
	if !a.claim(m.Name, time.Now()) {
		return nil
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()
		if err := a.send(ctx, m); err != nil {
			log.Warn(err)
		}
	}()
	return nil
}

// Wait blocks until the alerts in flight are done or ctx expires
func (a *Alerter) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// claim records an alert for name unless one went out within floodWait.
// Entries older than floodWait are evicted.
func (a *Alerter) claim(name string, now time.Time) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	for n, last := range a.lastSent {
		if now.Sub(last) >= a.floodWait {
			delete(a.lastSent, n)
		}
	}
	if _, ok := a.lastSent[name]; ok {
		return false
	}
	a.lastSent[name] = now
	return true
}

func (a *Alerter) send(ctx context.Context, m model.Monster) error {
	text := fmt.Sprintf("New monster registered: %s (%s)\n%s", m.Name, m.Gender, util.ProfileURL(a.baseURL, m.ID))

	errc := make(chan error, 1)
	go func() {
		res, err := a.bot.SendMessage(text, a.chatID, nil)
		switch {
		case err != nil:
			errc <- fmt.Errorf("unable to send telegram alert: %w", err)
		case !res.Ok:
			errc <- fmt.Errorf("unable to send telegram alert: %s", res.Description)
		default:
			errc <- nil
		}
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return fmt.Errorf("unable to send telegram alert: %w", ctx.Err())
	}
}
