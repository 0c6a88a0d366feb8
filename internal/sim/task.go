package sim

import (
	"errors"
	"time"
)

// PlantTask steps the plant from the scheduler so physics advance in
// lockstep with the control tasks. The step uses the nominal period
// rather than wall-clock deltas, keeping runs reproducible under a
// virtual clock.
type PlantTask struct {
	robot *Robot
	dt    time.Duration
}

func NewPlantTask(robot *Robot, period time.Duration) (*PlantTask, error) {
	if robot == nil {
		return nil, errors.New("sim: plant task needs a robot")
	}
	if period <= 0 {
		return nil, errors.New("sim: plant period must be positive")
	}
	return &PlantTask{robot: robot, dt: period}, nil
}

func (p *PlantTask) Tick(now time.Time) {
	p.robot.Step(p.dt)
}
