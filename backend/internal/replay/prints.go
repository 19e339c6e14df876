package replay

import (
	"sort"
	"sync"
)

const (
	FormatPlain     = ""
	FormatError     = "error"
	FormatToModel   = "to_gpt"
	FormatFromModel = "from_gpt"
)

// Print is an out-of-band annotation from the producer: narration, errors,
// and the prompts/answers exchanged with the model. It never touches the
// buffer.
type Print struct {
	Text   string `json:"text"`
	Format string `json:"format"`
	Step   int    `json:"step"`
}

// StepPrints groups what the chat panel shows for one step.
type StepPrints struct {
	Step      int     `json:"step"`
	Prints    []Print `json:"prints"`
	ToModel   string  `json:"toModel,omitempty"`
	FromModel string  `json:"fromModel,omitempty"`
}

type PrintLog struct {
	mu     sync.RWMutex
	prints []Print
}

func NewPrintLog() *PrintLog {
	return &PrintLog{}
}

func (l *PrintLog) Append(p ...Print) {
	l.mu.Lock()
	l.prints = append(l.prints, p...)
	l.mu.Unlock()
}

func (l *PrintLog) All() []Print {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Print(nil), l.prints...)
}

// Steps groups prints by step, keeping the first print of each format per
// step, and hides steps more than one ahead of currentStep so the panel
// stays in sync with the buffer animation. Model prints attach to a step's
// group but never open one.
func (l *PrintLog) Steps(currentStep int) []StepPrints {
	l.mu.RLock()
	defer l.mu.RUnlock()

	byStep := make(map[int]*StepPrints)
	for _, p := range l.prints {
		sp := byStep[p.Step]
		if sp == nil {
			sp = &StepPrints{Step: p.Step}
			byStep[p.Step] = sp
		}
		switch p.Format {
		case FormatToModel:
			sp.ToModel = p.Text
			continue
		case FormatFromModel:
			sp.FromModel = p.Text
			continue
		}
		dup := false
		for _, existing := range sp.Prints {
			if existing.Format == p.Format {
				dup = true
				break
			}
		}
		if !dup {
			sp.Prints = append(sp.Prints, p)
		}
	}

	out := make([]StepPrints, 0, len(byStep))
	for step, sp := range byStep {
		if len(sp.Prints) > 0 && step <= currentStep+1 {
			out = append(out, *sp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Step < out[j].Step })
	return out
}
