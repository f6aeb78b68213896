package ecs

import (
	"github.com/phanxgames/pano"

	"github.com/yohamta/donburi"
	"github.com/yohamta/donburi/features/events"
)

// ViewerEventType is the Donburi event type for pano viewer events.
// Subscribe to this in your ECS systems to follow scene switches, marker
// activations and camera movement.
var ViewerEventType = events.NewEventType[pano.ViewerEvent]()

type donburiStore struct {
	world donburi.World
}

// NewDonburiStore creates an EntityStore backed by a Donburi world.
// Viewer events are published to ViewerEventType and can be consumed with
// events.Subscribe and ProcessEvents.
func NewDonburiStore(world donburi.World) pano.EntityStore {
	return &donburiStore{world: world}
}

func (s *donburiStore) EmitEvent(event pano.ViewerEvent) {
	ViewerEventType.Publish(s.world, event)
}
