package app

import (
	"io"
	"log"

	"ddt.game/internal/dispatch"
	"ddt.game/internal/journal"
)

// offline is a Network with no connection: controllers register handlers
// but every request is refused.
type offline struct {
	*dispatch.Dispatcher
}

func (offline) Send(string) (string, error)          { return "", nil }
func (offline) SendData(string, any) (string, error) { return "", nil }
func (offline) IsConnected() bool                    { return false }

type ReplayStats struct {
	Files    int
	Inbound  int
	Outbound int
}

// Replay feeds the inbound frames journaled under dir through a fresh
// dispatcher and controllers, writing the resulting events to w.
// Outbound records are counted but not sent anywhere.
func Replay(dir string, w io.Writer, logger *log.Logger) (ReplayStats, error) {
	if logger == nil {
		logger = log.Default()
	}
	var stats ReplayStats
	files, err := journal.ListFiles(dir)
	if err != nil {
		return stats, err
	}
	stats.Files = len(files)

	d := dispatch.New(dispatch.NewQueue(), dispatch.Options{Logger: prefixed(logger, "[dispatch] ")})
	mods := NewModules(offline{d}, logger)
	mods.Init()
	defer mods.Dispose()
	mods.Report(w)

	for _, path := range files {
		err := journal.ReadFile(path, func(r journal.Record) error {
			switch r.Dir {
			case journal.DirIn:
				stats.Inbound++
				d.Queue().PushFrame([]byte(r.Frame))
				d.Drain()
			case journal.DirOut:
				stats.Outbound++
			}
			return nil
		})
		if err != nil {
			return stats, err
		}
	}
	return stats, nil
}
