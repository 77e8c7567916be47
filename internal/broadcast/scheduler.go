// Package broadcast runs the scheduled morning stock alert. Every opted-in
// customer receives the fresh_stock_alert template with today's price list.
// Templates are used because most recipients are outside the 24-hour session
// window at broadcast time.
package broadcast

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/maachbazar/maachbazar-bot/internal/channel/whatsapp"
	"github.com/maachbazar/maachbazar-bot/internal/domain"
	"github.com/maachbazar/maachbazar-bot/internal/repo"
)

// stockTemplate is the pre-approved template name for the morning alert.
const stockTemplate = "fresh_stock_alert"

// perUserTimeout bounds one template send during a broadcast run.
const perUserTimeout = 15 * time.Second

// TemplateSender delivers template messages to one recipient.
type TemplateSender interface {
	SendTemplate(ctx context.Context, to, name, languageCode string, components []whatsapp.TemplateComponent) (string, error)
}

// Scheduler owns the cron instance that fires the daily broadcast.
type Scheduler struct {
	db     *gorm.DB
	sender TemplateSender
	cron   *cron.Cron
	spec   string
}

// New builds a Scheduler with the given cron spec evaluated in tz (IANA
// name, e.g. "Asia/Kolkata"). The spec is standard 5-field cron.
func New(db *gorm.DB, sender TemplateSender, spec, tz string) (*Scheduler, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("broadcast timezone %q: %w", tz, err)
	}
	return &Scheduler{
		db:     db,
		sender: sender,
		cron:   cron.New(cron.WithLocation(loc)),
		spec:   spec,
	}, nil
}

// Start registers the broadcast job and starts the cron loop. The returned
// stop function halts scheduling and waits for a running job to finish.
func (s *Scheduler) Start() (stop func(), err error) {
	_, err = s.cron.AddFunc(s.spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		s.Run(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("broadcast spec %q: %w", s.spec, err)
	}
	s.cron.Start()
	return func() { <-s.cron.Stop().Done() }, nil
}

// Run executes one broadcast pass: load today's catalog, then send the
// template to every opted-in user. Individual send failures are logged and
// skipped so one bad number does not stop the run.
func (s *Scheduler) Run(ctx context.Context) {
	inventory, err := repo.ListAvailableInventory(ctx, s.db)
	if err != nil {
		log.Error().Err(err).Msg("broadcast aborted: inventory load failed")
		return
	}
	if len(inventory) == 0 {
		log.Info().Msg("broadcast skipped: no fish available today")
		return
	}

	users, err := repo.ListOptInUsers(ctx, s.db)
	if err != nil {
		log.Error().Err(err).Msg("broadcast aborted: user list failed")
		return
	}

	priceList := formatPriceList(inventory)
	components := whatsapp.BodyTextComponent(priceList)

	sent, failed := 0, 0
	for _, u := range users {
		sendCtx, cancel := context.WithTimeout(ctx, perUserTimeout)
		_, err := s.sender.SendTemplate(sendCtx, u.Phone, stockTemplate, "en", components)
		cancel()
		if err != nil {
			failed++
			log.Warn().Err(err).Str("user", u.Phone).Msg("broadcast send failed")
			continue
		}
		sent++
	}
	log.Info().Int("sent", sent).Int("failed", failed).Msg("morning broadcast complete")
}

// formatPriceList renders the catalog as one template body parameter, e.g.
// "Rohu ₹250/kg, Katla ₹300/kg". Template parameters cannot contain newlines.
func formatPriceList(items []domain.InventoryItem) string {
	parts := make([]string, 0, len(items))
	for _, it := range items {
		parts = append(parts, fmt.Sprintf("%s ₹%d/kg", it.Name, it.Price))
	}
	return strings.Join(parts, ", ")
}
