package pool

import (
	"fmt"
	"log"

	"github.com/san-kum/envpool/internal/engine"
)

// A worker hosts independent engine instances in slots and executes
// commands against them strictly in arrival order. Commands for the same
// slot are therefore FIFO. Workers never touch the registry; all state
// flows back through reply channels.
type worker struct {
	id   int
	eng  engine.Engine
	cmds chan workerCommand
}

type workerCommand interface{ isCommand() }

type loadCmd struct {
	slot  int
	cfg   engine.Config
	reply chan loadReply
}

type loadReply struct {
	obs []float64
	err error
}

type resetCmd struct {
	slot  int
	reply chan loadReply
}

type stepCmd struct {
	items []stepItem
	reply chan []stepResult
}

type stepItem struct {
	envID  int
	slot   int
	action []float64
	seq    uint64
}

type stepResult struct {
	envID  int
	seq    uint64
	obs    []float64
	reward float64
	done   bool
	err    error
}

func (loadCmd) isCommand()  {}
func (resetCmd) isCommand() {}
func (stepCmd) isCommand()  {}

const workerQueueDepth = 16

func newWorker(id int, eng engine.Engine) *worker {
	return &worker{
		id:   id,
		eng:  eng,
		cmds: make(chan workerCommand, workerQueueDepth),
	}
}

// run is the worker loop. Reply channels are buffered by the sender, so an
// abandoned request (dispatcher timed out) never wedges the loop.
func (w *worker) run() {
	slots := make(map[int]engine.Instance)

	for cmd := range w.cmds {
		switch c := cmd.(type) {
		case loadCmd:
			inst, err := w.eng.Materialize(c.cfg)
			if err != nil {
				delete(slots, c.slot)
				c.reply <- loadReply{err: fmt.Errorf("%w: %v", ErrConfig, err)}
				continue
			}
			slots[c.slot] = inst
			c.reply <- loadReply{obs: inst.Reset()}

		case resetCmd:
			inst, ok := slots[c.slot]
			if !ok {
				c.reply <- loadReply{err: fmt.Errorf("%w: slot %d", ErrSlotUnusable, c.slot)}
				continue
			}
			c.reply <- loadReply{obs: inst.Reset()}

		case stepCmd:
			results := make([]stepResult, 0, len(c.items))
			for _, item := range c.items {
				res := stepResult{envID: item.envID, seq: item.seq}
				inst, ok := slots[item.slot]
				if !ok {
					res.err = fmt.Errorf("%w: slot %d", ErrSlotUnusable, item.slot)
				} else {
					res.obs, res.reward, res.done = inst.Step(item.action)
				}
				results = append(results, res)
			}
			c.reply <- results

		default:
			log.Printf("worker %d: dropping unknown command %T", w.id, cmd)
		}
	}
}

func (w *worker) stop() {
	close(w.cmds)
}
