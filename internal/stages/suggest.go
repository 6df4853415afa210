package stages

// Snapshot is the related data a reconciliation pass derives a stage from.
type Snapshot struct {
	EntityType   string
	CurrentStage string

	HasActivity     bool
	Qualified       bool
	QuoteSent       bool
	Negotiating     bool
	Signed          bool
	DepositReceived bool
	InProduction    bool
	Delivered       bool
	Won             bool
	FullyPaid       bool
}

type evidence struct {
	holds  func(Snapshot) bool
	stages []string
}

var evidenceRules = []evidence{
	{func(s Snapshot) bool { return s.HasActivity }, []string{"en_cours"}},
	{func(s Snapshot) bool { return s.Qualified }, []string{"qualifie"}},
	{func(s Snapshot) bool { return s.QuoteSent }, []string{"proposition"}},
	{func(s Snapshot) bool { return s.Negotiating }, []string{"negociation"}},
	{func(s Snapshot) bool { return s.Signed }, []string{"signe"}},
	{func(s Snapshot) bool { return s.DepositReceived }, []string{"acompte_recu"}},
	{func(s Snapshot) bool { return s.InProduction }, []string{"en_production"}},
	{func(s Snapshot) bool { return s.Delivered }, []string{"livre"}},
	{func(s Snapshot) bool { return s.Won }, []string{"gagne", "converti", "client"}},
	{func(s Snapshot) bool { return s.FullyPaid }, []string{"solde"}},
}

// ComputeSuggestedStage returns the furthest stage of the snapshot's
// StageSet backed by evidence, never earlier than CurrentStage. Unknown
// entity types yield CurrentStage.
func ComputeSuggestedStage(s Snapshot) string {
	set, ok := Lookup(s.EntityType)
	if !ok {
		return s.CurrentStage
	}
	best := s.CurrentStage
	bestIdx := set.Index(best)
	if bestIdx < 0 {
		best, bestIdx = set.First(), 0
	}
	for _, rule := range evidenceRules {
		if !rule.holds(s) {
			continue
		}
		for _, stage := range rule.stages {
			if idx := set.Index(stage); idx > bestIdx {
				best, bestIdx = stage, idx
			}
		}
	}
	return best
}
