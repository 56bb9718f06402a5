package domain

import "fmt"

// Candidate - запись другого источника, возможно описывающая тот же ЖК
type Candidate struct {
	Kind        SourceKind `json:"kind"`
	SourceID    string     `json:"source_id"`
	DisplayName string     `json:"display_name"`
	Score       float64    `json:"score"`
	// DistanceMeters < 0, если у одной из сторон нет координат
	DistanceMeters float64 `json:"distance_m"`
}

// ProbeStatus - терминальное состояние пробы
type ProbeStatus string

const (
	ProbeCreated      ProbeStatus = "created"
	ProbeSkipped      ProbeStatus = "skipped"
	ProbeFailed       ProbeStatus = "failed"
	ProbeNoCandidates ProbeStatus = "no_candidates"
	ProbeEmptyName    ProbeStatus = "empty_name"
	ProbeProcessed    ProbeStatus = "processed"
)

// ProbeOutcome - итог обработки одной пробы
type ProbeOutcome struct {
	Kind        SourceKind                 `json:"probe_kind"`
	ID          string                     `json:"probe_id"`
	Name        string                     `json:"name"`
	Status      ProbeStatus                `json:"status"`
	Reason      string                     `json:"reason,omitempty"`
	CanonicalID string                     `json:"canonical_id,omitempty"`
	Accepted    map[SourceKind]string      `json:"accepted,omitempty"`
	Candidates  map[SourceKind][]Candidate `json:"-"`
	Err         error                      `json:"-"`

	// Stop - оператор попросил завершить работу после этой пробы
	Stop bool `json:"-"`
}

func (o ProbeOutcome) String() string {
	s := fmt.Sprintf("%s %s %q: %s", o.Kind, o.ID, o.Name, o.Status)
	if o.CanonicalID != "" {
		s += " -> " + o.CanonicalID
	}
	if o.Reason != "" {
		s += " (" + o.Reason + ")"
	}
	return s
}

// Tally - сводка прогона драйвера
type Tally struct {
	Created      int `json:"created"`
	Skipped      int `json:"skipped"`
	Failed       int `json:"failed"`
	NoCandidates int `json:"no_candidates"`
	EmptyName    int `json:"empty_name"`
	Processed    int `json:"processed"`
}

func (t *Tally) Add(status ProbeStatus) {
	switch status {
	case ProbeCreated:
		t.Created++
	case ProbeSkipped:
		t.Skipped++
	case ProbeFailed:
		t.Failed++
	case ProbeNoCandidates:
		t.NoCandidates++
	case ProbeEmptyName:
		t.EmptyName++
	case ProbeProcessed:
		t.Processed++
	}
}

func (t Tally) Total() int {
	return t.Created + t.Skipped + t.Failed + t.NoCandidates + t.EmptyName + t.Processed
}

func (t Tally) String() string {
	return fmt.Sprintf("created=%d skipped=%d failed=%d no_candidates=%d empty_name=%d processed=%d",
		t.Created, t.Skipped, t.Failed, t.NoCandidates, t.EmptyName, t.Processed)
}

// DecisionAction - ответ оператора или правила
type DecisionAction string

const (
	DecisionAccept        DecisionAction = "accept"
	DecisionReject        DecisionAction = "reject"
	DecisionStop          DecisionAction = "stop"
	DecisionMarkProcessed DecisionAction = "mark_processed"
)

// Decision - выбор по кандидатам одного вида; Index указывает на принятого кандидата
type Decision struct {
	Action DecisionAction
	Index  int
	Reason string
}

// Proposal - то, что контроллер предлагает решателю для одного вида источника
type Proposal struct {
	Probe      *SourceRecord
	Kind       SourceKind
	Candidates []Candidate
}
