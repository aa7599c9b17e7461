package app

import (
	"fmt"
	"io"
	"log"

	"ddt.game/internal/dailysign"
	"ddt.game/internal/inventory"
	"ddt.game/internal/module"
	"ddt.game/internal/player"
)

// Modules holds the domain controllers. Each slot builds its controller on
// first use; disposing a slot drops the instance.
type Modules struct {
	Player    *module.Slot[*player.Controller]
	Inventory *module.Slot[*inventory.Controller]
	DailySign *module.Slot[*dailysign.Controller]
}

func NewModules(net module.Network, logger *log.Logger) *Modules {
	return &Modules{
		Player: module.NewSlot(func() *player.Controller {
			return player.New(net, prefixed(logger, "[player] "))
		}),
		Inventory: module.NewSlot(func() *inventory.Controller {
			return inventory.New(net, prefixed(logger, "[inventory] "))
		}),
		DailySign: module.NewSlot(func() *dailysign.Controller {
			return dailysign.New(net, prefixed(logger, "[dailysign] "))
		}),
	}
}

func (m *Modules) Init() {
	m.Player.Get().Init()
	m.Inventory.Get().Init()
	m.DailySign.Get().Init()
}

func (m *Modules) Dispose() {
	m.Player.Dispose()
	m.Inventory.Dispose()
	m.DailySign.Dispose()
}

// RequestAll asks for every snapshot. It returns how many requests went out.
func (m *Modules) RequestAll() int {
	n := 0
	for _, ok := range []bool{
		m.Player.Get().RequestInfo(),
		m.Inventory.Get().RequestBag(),
		m.DailySign.Get().RequestInfo(),
	} {
		if ok {
			n++
		}
	}
	return n
}

// Report prints one line per domain event to w.
func (m *Modules) Report(w io.Writer) {
	p := m.Player.Get()
	p.Updated.Subscribe(func(v player.Profile) {
		fmt.Fprintf(w, "player updated id=%d nickname=%q level=%d gold=%d diamond=%d\n", v.ID, v.Nickname, v.Level, v.Gold, v.Diamond)
	})
	p.Failed.Subscribe(func(msg string) { fmt.Fprintf(w, "player failed: %s\n", msg) })

	inv := m.Inventory.Get()
	inv.Refreshed.Subscribe(func(items map[int64]inventory.Item) {
		fmt.Fprintf(w, "bag refreshed items=%d\n", len(items))
	})
	inv.CountChanged.Subscribe(func(c inventory.ItemCount) {
		fmt.Fprintf(w, "bag item=%d count=%d\n", c.ItemID, c.Count)
	})
	inv.Failed.Subscribe(func(msg string) { fmt.Fprintf(w, "bag failed: %s\n", msg) })

	ds := m.DailySign.Get()
	ds.Updated.Subscribe(func(s dailysign.Status) {
		fmt.Fprintf(w, "daily sign days=%d signed_today=%v last=%s\n", s.SignInDays, s.SignedToday, s.LastSignInDate)
	})
	ds.Signed.Subscribe(func(s dailysign.Status) {
		fmt.Fprintf(w, "daily sign ok days=%d\n", s.SignInDays)
	})
	ds.Failed.Subscribe(func(msg string) { fmt.Fprintf(w, "daily sign failed: %s\n", msg) })
}

func prefixed(l *log.Logger, prefix string) *log.Logger {
	return log.New(l.Writer(), prefix, l.Flags())
}
