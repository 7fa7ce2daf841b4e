package core

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/signalsfoundry/repeater-blackhole-sim/internal/logging"
	"github.com/signalsfoundry/repeater-blackhole-sim/kb"
	"github.com/signalsfoundry/repeater-blackhole-sim/model"
)

var (
	ErrInvalidBlackHoleCount = errors.New("invalid number of black holes")
	ErrInvalidTargetCount    = errors.New("invalid number of targets per black hole")
)

// AttackManager turns normal nodes into black holes and keeps the
// normal/black-hole registry consistent. Black holes are never reverted.
type AttackManager struct {
	net        *Network
	log        logging.Logger
	attackType model.AttackType
}

// AttackType returns the label of the last accepted attack.
func (a *AttackManager) AttackType() model.AttackType { return a.attackType }

// BlackHoles returns the ids of the black holes created so far.
func (a *AttackManager) BlackHoles() []int { return a.net.BlackHoles() }

// CreateBlackHoles converts count normal nodes into black holes applying
// swapProbability. With targetsPerBlackHole < 1 every swap at a black hole
// is degraded; otherwise each black hole degrades swaps only for
// targetsPerBlackHole victims drawn from the normal nodes.
//
// Invalid arguments are logged and returned as an error and leave the
// network untouched.
func (a *AttackManager) CreateBlackHoles(ctx context.Context, count int, swapProbability float64, targetsPerBlackHole int) error {
	if err := a.net.alive(); err != nil {
		return err
	}
	log := a.log.With(
		logging.Int("black_holes", count),
		logging.Any("swap_probability", swapProbability),
		logging.Int("targets_per_black_hole", targetsPerBlackHole),
	)
	if err := a.validate(count, swapProbability, targetsPerBlackHole); err != nil {
		log.Warn(ctx, "no black hole was created", logging.String("error", err.Error()))
		return err
	}

	a.attackType = model.AttackBlackHole
	var err error
	if targetsPerBlackHole < 1 {
		err = a.createUntargeted(count, swapProbability)
	} else {
		err = a.createTargeted(count, swapProbability, targetsPerBlackHole)
	}
	if err != nil {
		return err
	}

	data := a.net.data
	data.SetLabel(KeyAttackType, string(a.attackType))
	data.Set(KeyTargetsPerBlackHole, float64(max(targetsPerBlackHole, 0)))
	data.Set(KeyAttackSwapProbability, swapProbability)

	for _, id := range a.net.BlackHoles() {
		rep, _ := a.net.Node(id)
		log.Debug(ctx, "black hole active",
			logging.String("node", rep.Name()),
			logging.Any("targets", rep.profile.Targets()),
		)
	}
	return nil
}

func (a *AttackManager) validate(count int, prob float64, targets int) error {
	if prob < 0 || prob > 1 {
		return fmt.Errorf("%w: swap probability %v", ErrInvalidProbability, prob)
	}
	normal := len(a.net.NormalNodes())
	if targets < 1 {
		if count < 1 || count >= normal {
			return fmt.Errorf("%w: %d with %d normal nodes", ErrInvalidBlackHoleCount, count, normal)
		}
		return nil
	}
	if count <= 0 || count == a.net.NumNodes() {
		return fmt.Errorf("%w: %d with %d nodes", ErrInvalidBlackHoleCount, count, a.net.NumNodes())
	}
	if normal <= targets {
		return fmt.Errorf("%w: %d with %d normal nodes", ErrInvalidTargetCount, targets, normal)
	}
	// The pool shrinks by one black hole per round; the last round still
	// needs targets victims besides the chosen node.
	if normal-count < targets {
		return fmt.Errorf("%w: %d black holes with %d targets each exceed %d normal nodes",
			ErrInvalidBlackHoleCount, count, targets, normal)
	}
	return nil
}

func (a *AttackManager) createUntargeted(count int, prob float64) error {
	pool := a.net.NormalNodes()
	for range count {
		id := pick(a.net.rng, &pool)
		if err := a.turn(id, prob, nil); err != nil {
			return err
		}
	}
	return nil
}

func (a *AttackManager) createTargeted(count int, prob float64, targets int) error {
	for range count {
		pool := a.net.NormalNodes()
		id := pick(a.net.rng, &pool)
		victims := make(map[string]float64, targets)
		for range targets {
			victims[NodeName(pick(a.net.rng, &pool))] = prob
		}
		if err := a.turn(id, prob, victims); err != nil {
			return err
		}
	}
	return nil
}

func (a *AttackManager) turn(id int, prob float64, victims map[string]float64) error {
	rep, ok := a.net.Node(id)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownNode, id)
	}
	if err := rep.ResourceManager().TurnBlackHole(prob, victims); err != nil {
		return err
	}
	return a.net.registry.SetRole(id, kb.RoleBlackHole)
}

// pick removes and returns a uniformly chosen element of pool.
func pick(rng interface{ IntN(int) int }, pool *[]int) int {
	i := rng.IntN(len(*pool))
	id := (*pool)[i]
	*pool = slices.Delete(*pool, i, i+1)
	return id
}
