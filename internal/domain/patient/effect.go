package patient

// EffectKind tells the scheduler what a pending effect does when it fires.
type EffectKind string

const (
	EffectExamResult      EffectKind = "EXAM_RESULT"
	EffectTreatmentEffect EffectKind = "TREATMENT_EFFECT"
)

// ScheduledEffect is a delayed consequence of an action.
// Effects fire once, in insertion order, and never reschedule.
type ScheduledEffect struct {
	Kind          EffectKind `json:"kind"`
	Key           string     `json:"key"`
	Text          string     `json:"text,omitempty"`
	SeverityDelta float64    `json:"severity_delta,omitempty"`
	ReadyAtSec    float64    `json:"ready_at_sec"`
	Seq           uint64     `json:"seq"`
}

// Outline hides what the effect carries, keeping only what kind of effect
// is due and when.
func (e ScheduledEffect) Outline() ScheduledEffect {
	return ScheduledEffect{Kind: e.Kind, Key: e.Key, ReadyAtSec: e.ReadyAtSec, Seq: e.Seq}
}

// TakeReady removes and returns every effect due at the patient's current
// elapsed time. Relative order is kept in both partitions.
func (p *Patient) TakeReady() []ScheduledEffect {
	if len(p.Pending) == 0 {
		return nil
	}
	var ready []ScheduledEffect
	keep := p.Pending[:0]
	for _, e := range p.Pending {
		if e.ReadyAtSec <= p.ElapsedSec {
			ready = append(ready, e)
		} else {
			keep = append(keep, e)
		}
	}
	p.Pending = keep
	return ready
}
