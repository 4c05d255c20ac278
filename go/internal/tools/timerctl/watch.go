package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"time"

	"github.com/urfave/cli"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/mcdev12/focustimer/go/internal/models"
	"github.com/mcdev12/focustimer/go/internal/timer"
)

// watch renders the countdown as a progress bar until it expires or the
// user interrupts. A local session keeps ticking while it watches.
func watch(ctx context.Context, c *cli.Context, s session) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	snap, err := s.Snapshot(ctx)
	if err != nil {
		return err
	}

	p := mpb.NewWithContext(ctx, mpb.WithOutput(c.App.Writer), mpb.WithWidth(48))
	cd := newCountdown(p, snap)

	ticker := time.NewTicker(c.Duration("interval"))
	defer ticker.Stop()

	for {
		cd.update(snap)
		if snap.Status == models.TimerStatusExpired {
			cd.bar.SetTotal(-1, true)
			p.Wait()
			fmt.Fprintln(c.App.Writer, "time is up")
			return nil
		}

		select {
		case <-ctx.Done():
			cd.bar.Abort(false)
			p.Wait()
			return nil
		case <-ticker.C:
		}

		if snap, err = s.Snapshot(ctx); err != nil {
			cd.bar.Abort(false)
			p.Wait()
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

// countdown is a bar showing the elapsed share of the active mode.
type countdown struct {
	bar  *mpb.Bar
	last atomic.Pointer[timer.Snapshot]
}

func newCountdown(p *mpb.Progress, snap timer.Snapshot) *countdown {
	cd := &countdown{}
	cd.last.Store(&snap)

	barStyle := mpb.BarStyle().Lbound("╢").Filler("█").Tip("█").Padding("░").Rbound("╟")
	name := fmt.Sprintf("%d min", snap.ActiveMinutes)

	cd.bar = p.New(int64(snap.ActiveMinutes*60),
		barStyle,
		mpb.PrependDecorators(
			decor.Name(name, decor.WC{W: len(name) + 1, C: decor.DindentRight}),
			decor.Any(func(decor.Statistics) string {
				return string(cd.last.Load().Status)
			}, decor.WC{W: 8, C: decor.DindentRight}),
		),
		mpb.AppendDecorators(
			decor.Any(func(decor.Statistics) string {
				return timer.FormatClock(cd.last.Load().RemainingSeconds)
			}),
		),
	)
	return cd
}

func (cd *countdown) update(snap timer.Snapshot) {
	cd.last.Store(&snap)
	total := int64(snap.ActiveMinutes * 60)
	cd.bar.SetTotal(total, false)
	cd.bar.SetCurrent(total - int64(max(snap.RemainingSeconds, 0)))
}
