package state

import (
	"github.com/orchestratord/oj/internal/event"
	"github.com/orchestratord/oj/internal/model"
)

func applyDecisionEvent(s *model.State, e event.Envelope) {
	switch e.Kind {
	case event.KindDecisionCreated:
		p, err := event.Decode[event.PayloadDecisionCreated](e)
		if err != nil {
			return
		}
		s.Decisions[p.Decision.ID] = p.Decision

	case event.KindDecisionResolved:
		p, err := event.Decode[event.PayloadDecisionResolved](e)
		if err != nil {
			return
		}
		d, ok := s.Decisions[p.DecisionID]
		if !ok {
			return
		}
		d.Resolved = true
		d.ChosenOption = p.ChosenOption
		d.Message = p.Message
		s.Decisions[p.DecisionID] = d
	}
}
