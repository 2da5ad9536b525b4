package cli

import (
	"context"
	"errors"
	"strings"
	"testing"
)

const sampleStream = `{"face":{"leftEye":[{"x":0,"y":0},{"x":1,"y":1},{"x":2,"y":1},{"x":3,"y":0},{"x":2,"y":-1},{"x":1,"y":-1}],"rightEye":[{"x":0,"y":0},{"x":1,"y":1},{"x":2,"y":1},{"x":3,"y":0},{"x":2,"y":-1},{"x":1,"y":-1}],"nose":[{"x":0,"y":0},{"x":0,"y":1},{"x":0,"y":2},{"x":0,"y":3}]}}

{"face":null,"tabVisible":false}
`

func TestReadFrames(t *testing.T) {
	frames, err := readFrames(strings.NewReader(sampleStream))
	if err != nil {
		t.Fatalf("read frames: %v", err)
	}
	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(frames))
	}
	if frames[0].Face == nil || len(frames[0].Face.LeftEye) != 6 {
		t.Fatalf("first frame should carry a face, got %+v", frames[0])
	}
	if frames[1].Face != nil || frames[1].TabVisible == nil || *frames[1].TabVisible {
		t.Fatalf("second frame should be a hidden tab without a face, got %+v", frames[1])
	}
}

func TestReadFramesRejectsBadLine(t *testing.T) {
	if _, err := readFrames(strings.NewReader("{\"face\":null}\nnot json\n")); err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Fatalf("expected line 2 error, got %v", err)
	}
}

func TestReplayDetectorEndsStream(t *testing.T) {
	frames, _ := readFrames(strings.NewReader(sampleStream))
	var visible []bool
	ended := false
	d := &replayDetector{
		frames:     frames,
		visibility: func(v bool) { visible = append(visible, v) },
		done:       func() { ended = true },
	}

	if lm, err := d.Detect(context.Background()); err != nil || lm == nil {
		t.Fatalf("expected first face, got %v %v", lm, err)
	}
	if lm, err := d.Detect(context.Background()); err != nil || lm != nil {
		t.Fatalf("expected no face, got %v %v", lm, err)
	}
	if len(visible) != 1 || visible[0] {
		t.Fatalf("expected one hidden-tab switch, got %v", visible)
	}
	if _, err := d.Detect(context.Background()); !errors.Is(err, errStreamEnded) || !ended {
		t.Fatalf("expected end of stream, got %v ended=%v", err, ended)
	}
}

func TestReplayDetectorLoops(t *testing.T) {
	frames, _ := readFrames(strings.NewReader(sampleStream))
	d := &replayDetector{frames: frames, loop: true, done: func() { t.Fatalf("looping stream must not end") }}
	for i := 0; i < 5; i++ {
		if _, err := d.Detect(context.Background()); err != nil {
			t.Fatalf("detect %d: %v", i, err)
		}
	}
}
