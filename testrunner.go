package pano

import (
	"encoding/json"
	"errors"
	"fmt"
)

// testStep is a single action in a test script.
type testStep struct {
	Action  string  `json:"action"`
	Label   string  `json:"label,omitempty"`
	X       float64 `json:"x,omitempty"`
	Y       float64 `json:"y,omitempty"`
	FromX   float64 `json:"fromX,omitempty"`
	FromY   float64 `json:"fromY,omitempty"`
	ToX     float64 `json:"toX,omitempty"`
	ToY     float64 `json:"toY,omitempty"`
	Frames  int     `json:"frames,omitempty"`
	Pitch   float64 `json:"pitch,omitempty"`
	Yaw     float64 `json:"yaw,omitempty"`
	FOV     float64 `json:"fov,omitempty"`
	Scene   int     `json:"scene,omitempty"`
	Animate bool    `json:"animate,omitempty"`
}

// testScript is the top-level JSON structure for a test script.
type testScript struct {
	Steps []testStep `json:"steps"`
}

var knownActions = map[string]bool{
	"screenshot": true,
	"click":      true,
	"drag":       true,
	"wait":       true,
	"angle":      true,
	"fov":        true,
	"scene":      true,
}

// TestRunner sequences injected input, camera commands and screenshots
// across frames for automated visual testing. Attach to a Viewer via
// SetTestRunner.
type TestRunner struct {
	steps     []testStep
	cursor    int
	waitCount int
	done      bool
	errs      []error
}

// LoadTestScript parses a JSON test script and returns a TestRunner ready
// to be attached to a Viewer via SetTestRunner.
func LoadTestScript(jsonData []byte) (*TestRunner, error) {
	var script testScript
	if err := json.Unmarshal(jsonData, &script); err != nil {
		return nil, fmt.Errorf("parse test script: %w", err)
	}
	if len(script.Steps) == 0 {
		return nil, fmt.Errorf("parse test script: no steps")
	}
	for i, st := range script.Steps {
		if !knownActions[st.Action] {
			return nil, fmt.Errorf("parse test script: step %d: unknown action %q", i, st.Action)
		}
	}
	return &TestRunner{steps: script.Steps}, nil
}

// SetTestRunner attaches a TestRunner to the viewer. The runner advances
// from Viewer.Update before input is processed each frame.
func (v *Viewer) SetTestRunner(runner *TestRunner) {
	v.testRunner = runner
}

// Done reports whether all steps in the test script have been executed.
func (r *TestRunner) Done() bool {
	return r.done
}

// Err returns the errors of the camera and scene steps that failed, joined.
func (r *TestRunner) Err() error {
	return errors.Join(r.errs...)
}

// step advances the test runner by one frame. Called from Viewer.Update.
func (r *TestRunner) step(v *Viewer) {
	if r.done {
		return
	}
	// Wait for pending injections and animations before advancing.
	if len(v.injectQueue) > 0 {
		return
	}
	if s := v.CurrentScene(); s != nil && s.IsAnimating() {
		return
	}
	if r.waitCount > 0 {
		r.waitCount--
		return
	}
	if r.cursor >= len(r.steps) {
		r.done = true
		return
	}

	st := r.steps[r.cursor]
	r.cursor++

	var err error
	switch st.Action {
	case "screenshot":
		v.Screenshot(st.Label)
	case "click":
		v.InjectClick(st.X, st.Y)
	case "drag":
		v.InjectDrag(st.FromX, st.FromY, st.ToX, st.ToY, st.Frames)
	case "wait":
		if st.Frames > 0 {
			r.waitCount = st.Frames - 1 // this frame counts as one
		}
	case "angle":
		if s := v.CurrentScene(); s != nil {
			err = s.SetAngle(Angle{Pitch: st.Pitch, Yaw: st.Yaw}, AnimationOptions{Animate: st.Animate})
		}
	case "fov":
		if s := v.CurrentScene(); s != nil {
			err = s.SetFieldOfView(st.FOV, AnimationOptions{Animate: st.Animate})
		}
	case "scene":
		err = v.SetScene(st.Scene)
	}
	if err != nil {
		err = fmt.Errorf("test step %d (%s): %w", r.cursor-1, st.Action, err)
		r.errs = append(r.errs, err)
		v.Logger.Error().Err(err).Msg("test runner")
	}

	if r.cursor >= len(r.steps) && r.waitCount == 0 && len(v.injectQueue) == 0 {
		r.done = true
	}
}
