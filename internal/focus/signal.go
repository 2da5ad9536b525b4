package focus

import (
	"errors"
	"fmt"
	"math"
)

// Point is a 2D landmark coordinate in video pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Landmarks holds the eye contours and nose points of one detected face
// (68-point layout: six points per eye, nose tip at index 3).
type Landmarks struct {
	LeftEye  []Point `json:"leftEye"`
	RightEye []Point `json:"rightEye"`
	Nose     []Point `json:"nose"`
}

// Signals are the per-frame scalars the state machine consumes.
type Signals struct {
	EAR float64
	Yaw float64
}

// ErrMalformedLandmarks is returned for detections missing required points.
var ErrMalformedLandmarks = errors.New("malformed landmarks")

const (
	eyePoints  = 6
	noseTipIdx = 3
	neutralEAR = 0.3
)

// Extract computes the averaged eye-aspect ratio and the head-yaw estimate.
func Extract(lm Landmarks) (Signals, error) {
	left, err := EyeAspectRatio(lm.LeftEye)
	if err != nil {
		return Signals{}, fmt.Errorf("left eye: %w", err)
	}
	right, err := EyeAspectRatio(lm.RightEye)
	if err != nil {
		return Signals{}, fmt.Errorf("right eye: %w", err)
	}
	yaw, err := HeadYaw(lm)
	if err != nil {
		return Signals{}, err
	}
	return Signals{EAR: (left + right) / 2, Yaw: yaw}, nil
}

// EyeAspectRatio is (|p1-p5| + |p2-p4|) / (2|p0-p3|), or a neutral 0.3 when
// the eye is narrower than one pixel.
func EyeAspectRatio(eye []Point) (float64, error) {
	if len(eye) < eyePoints {
		return 0, ErrMalformedLandmarks
	}
	width := dist(eye[0], eye[3])
	if width < 1 {
		return neutralEAR, nil
	}
	return (dist(eye[1], eye[5]) + dist(eye[2], eye[4])) / (2 * width), nil
}

// HeadYaw is the nose tip's horizontal offset from the eye midpoint,
// normalised by the distance between eye centroids. Zero when the eyes overlap.
func HeadYaw(lm Landmarks) (float64, error) {
	if len(lm.Nose) <= noseTipIdx || len(lm.LeftEye) == 0 || len(lm.RightEye) == 0 {
		return 0, ErrMalformedLandmarks
	}
	left := centroid(lm.LeftEye)
	right := centroid(lm.RightEye)
	span := math.Abs(right.X - left.X)
	if span < 1 {
		return 0, nil
	}
	return (lm.Nose[noseTipIdx].X - (left.X+right.X)/2) / span, nil
}

func dist(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

func centroid(pts []Point) Point {
	var c Point
	for _, p := range pts {
		c.X += p.X
		c.Y += p.Y
	}
	n := float64(len(pts))
	return Point{X: c.X / n, Y: c.Y / n}
}
