// Package voice maps teacher speech transcripts onto classroom commands.
package voice

import "strings"

// Command is a discrete instruction recognised in a transcript.
type Command string

const (
	TopicFinished Command = "TOPIC_FINISHED"
	PushQuestion  Command = "PUSH_QUESTION"
	NextQuestion  Command = "NEXT_QUESTION"
	StopTimer     Command = "STOP_TIMER"
	Set10s        Command = "SET_10S"
	Set20s        Command = "SET_20S"
	Set30s        Command = "SET_30S"
	Unknown       Command = "UNKNOWN"
)

type rule struct {
	command Command
	phrases []string
}

// rules are checked in order; "topic finished" has to win over "stop".
var rules = []rule{
	{TopicFinished, []string{
		"topic finished",
		"topic is finished",
		"topic done",
		"topic is done",
		"that's the end",
		"end of topic",
		"end topic",
		"finished the topic",
		"done with this topic",
		"done with the topic",
		"moving on",
		"now for a question",
		"time for a question",
		"question time",
		"lets do a quiz",
		"let's do a quiz",
		"quiz time",
		"pop quiz",
		"test your knowledge",
	}},
	{PushQuestion, []string{"start question", "push question", "send question", "ask question"}},
	{NextQuestion, []string{"next question", "next"}},
	{StopTimer, []string{"stop", "stop timer", "end question"}},
	{Set10s, []string{"ten seconds", "10 seconds"}},
	{Set20s, []string{"twenty seconds", "20 seconds"}},
	{Set30s, []string{"thirty seconds", "30 seconds"}},
}

// Classify returns the first command whose phrase occurs in the transcript.
func Classify(transcript string) Command {
	t := strings.ToLower(strings.TrimSpace(transcript))
	t = strings.ReplaceAll(t, "’", "'")
	if t == "" {
		return Unknown
	}
	for _, r := range rules {
		for _, p := range r.phrases {
			if strings.Contains(t, p) {
				return r.command
			}
		}
	}
	return Unknown
}

// TimerSeconds is the question timer a SET_* command selects, 0 otherwise.
func (c Command) TimerSeconds() int {
	switch c {
	case Set10s:
		return 10
	case Set20s:
		return 20
	case Set30s:
		return 30
	}
	return 0
}
