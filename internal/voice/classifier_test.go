package voice

import "testing"

func TestClassify(t *testing.T) {
	cases := map[string]Command{
		"OK, topic finished":                TopicFinished,
		"that’s the end, stop everything":   TopicFinished,
		"let's do a quiz":                   TopicFinished,
		"please push question two":          PushQuestion,
		"next question please":              NextQuestion,
		"Stop timer":                        StopTimer,
		"end question now":                  StopTimer,
		"give them twenty seconds":          Set20s,
		"10 seconds":                        Set10s,
		"thirty seconds on the clock":       Set30s,
		"good morning everyone":             Unknown,
		"   ":                               Unknown,
		"ask question, then stop the timer": PushQuestion,
		"moving on to the next slide":       TopicFinished,
	}
	for transcript, want := range cases {
		if got := Classify(transcript); got != want {
			t.Fatalf("%q: expected %q, got %q", transcript, want, got)
		}
	}
}

func TestTimerSeconds(t *testing.T) {
	cases := map[Command]int{Set10s: 10, Set20s: 20, Set30s: 30, StopTimer: 0}
	for cmd, want := range cases {
		if got := cmd.TimerSeconds(); got != want {
			t.Fatalf("%s: expected %d seconds, got %d", cmd, want, got)
		}
	}
}
