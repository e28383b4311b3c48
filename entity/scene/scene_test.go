package scene

import (
	"testing"

	"git.fiblab.net/general/common/v2/geometry"
	"github.com/stretchr/testify/assert"
	"github.com/tsinghua-fib-lab/intersection-sim/entity"
)

func TestLookAtCopyAndClear(t *testing.T) {
	s := New(geometry.Point{X: -100})
	id := entity.AgentID{Kind: entity.KindPedestrian, ID: 3}
	target := geometry.Point{X: 1, Y: 2}
	s.SetLookAt(id, &target)
	target.X = 9
	assert.Equal(t, 1.0, s.LookAt(id).X)
	s.SetLookAt(id, nil)
	assert.Nil(t, s.LookAt(id))
}

func TestPoseAndObstacles(t *testing.T) {
	s := New(geometry.Point{X: -100})
	id := entity.AgentID{Kind: entity.KindVehicle, ID: 1}
	_, ok := s.Pose(id)
	assert.False(t, ok)
	s.SetPose(id, s.Holding())
	p, ok := s.Pose(id)
	assert.True(t, ok)
	assert.Equal(t, -100.0, p.Position.X)

	assert.False(t, s.Obstacle("barrier-north"))
	s.SetObstacle("barrier-north", true)
	s.SetObstacle("barrier-south", false)
	assert.True(t, s.Obstacle("barrier-north"))
	assert.Equal(t, []string{"barrier-north"}, s.Obstacles())
}
