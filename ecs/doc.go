// Package ecs provides ECS adapters for pano's viewer events.
//
// The primary adapter is [NewDonburiStore], which bridges viewer events
// (scene change, marker activation, camera movement) into a [Donburi] world
// as typed events. Subscribe to [ViewerEventType] in your ECS systems to
// receive them.
//
// Usage:
//
//	store := ecs.NewDonburiStore(world)
//	viewer.SetEntityStore(store)
//
// [Donburi]: https://github.com/yohamta/donburi
package ecs
