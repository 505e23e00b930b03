// Package loader implements format dispatch (C7): given a root path, it
// identifies which source format produced it and invokes the matching
// pipeline, converging every format on entity.LoadResult.
package loader

import (
	"fmt"

	"historyloader/internal/domain/entity"
	"historyloader/internal/domain/telegram"
)

// MyselfChooser is the external disambiguation service a single-chat
// Telegram export needs (§6.4): given the candidates collected so far,
// it returns the index of the account owner.
type MyselfChooser interface {
	ChooseMyself(candidates []entity.User) (int, error)
}

// MyselfChooserFunc adapts a plain function to MyselfChooser.
type MyselfChooserFunc func(candidates []entity.User) (int, error)

func (f MyselfChooserFunc) ChooseMyself(candidates []entity.User) (int, error) { return f(candidates) }

// BlockingMyselfChooser runs chooser.ChooseMyself on a dedicated
// goroutine and blocks for its result, so a chooser whose implementation
// schedules its own RPC from a context that owns the calling thread (an
// async dispatcher) never deadlocks the loader. A panic inside the
// chooser is recovered and re-reported as an error rather than taking
// down the caller, mirroring a joined thread's panic propagation.
func BlockingMyselfChooser(chooser MyselfChooser) telegram.ChooseMyselfFunc {
	return func(candidates []entity.User) (idx int, err error) {
		type result struct {
			idx int
			err error
		}
		done := make(chan result, 1)
		go func() {
			var r result
			defer func() {
				if p := recover(); p != nil {
					r = result{err: fmt.Errorf("myself chooser panicked: %v", p)}
				}
				done <- r
			}()
			r.idx, r.err = chooser.ChooseMyself(candidates)
		}()
		res := <-done
		return res.idx, res.err
	}
}
