// Package pano is an interactive panorama viewer for [Ebitengine].
//
// A [Viewer] holds a list of scenes. Each [Scene] is a cube (six face
// textures) or a sphere (one equirectangular texture) seen from its center.
// Dragging rotates the camera, markers pinned to world angles follow the
// view, and clicking a marker flies the camera toward it before switching to
// the scene it links to.
//
// # Quick start
//
// The simplest way to get started is [Run], which renders the active scene
// and opens a window:
//
//	r := pano.NewEbitenRenderer(1024, 640)
//	v := pano.NewViewer(r, nil, pano.DefaultViewerConfig())
//	hall, _ := pano.NewScene(pano.Cuboid(), pano.Sources(
//		"hall/front.jpg", "hall/right.jpg", "hall/up.jpg",
//		"hall/left.jpg", "hall/down.jpg", "hall/back.jpg"))
//	v.AddScene(hall)
//	pano.Run(v, pano.RunConfig{Title: "Tour"})
//
// Tours can also be described in a JSON, YAML or TOML file and built with
// [LoadTour] and [BuildTour].
//
// # Camera
//
// The camera is a pitch (up/down, clamped) and a yaw (left/right, wrapped
// into [0, 360)) plus a vertical field of view. [Scene.Draw] rotates by
// deltas; [Scene.SetAngle] and [Scene.SetFieldOfView] jump or animate (via
// [gween]) to absolute values.
//
// # Markers
//
// A [Marker] ties a [MarkerHandle] to a world angle. Its position is
// recomputed on every draw; handles behind the camera are hidden.
//
// # Textures
//
// Textures are loaded through a [Loader] shared by all scenes, so each
// image is fetched and decoded once. Files, http(s) URLs and decoded images
// are accepted, in JPEG, PNG, WebP, BMP and TGA formats.
//
// Viewer events can be forwarded to an ECS (via [Donburi] adapter in
// pano/ecs).
//
// [Ebitengine]: https://ebitengine.org
// [gween]: https://github.com/tanema/gween
// [Donburi]: https://github.com/yohamta/donburi
package pano
