package service

import (
	"context"
	"sort"

	"github.com/haloestate/leadpipe/modules/matching/model"
	"github.com/haloestate/leadpipe/modules/matching/ports"
	"github.com/haloestate/leadpipe/pkg/normalize"
)

// DefaultCandidateLimit is N in "up to N candidate CRM leads" from the spec.
const DefaultCandidateLimit = 5

// addressFuzzyFloor is the lower bound below which address_fuzzy is
// discarded entirely, per spec.
const addressFuzzyFloor = 0.60

// ScorerService is the stateless Match Scorer: given one normalized lead and
// a tenant's CRM corpus, it emits scored match signals.
type ScorerService struct {
	corpus ports.ScorerCorpusReader
}

func NewScorerService(corpus ports.ScorerCorpusReader) *ScorerService {
	return &ScorerService{corpus: corpus}
}

// NormalizedLead is the subset of a CanonicalLead the scorer needs.
type NormalizedLead struct {
	TenantID          string
	EmailNormalized   string
	PhoneNormalized   string
	AddressNormalized string
}

// Score returns up to N candidate CRM leads sorted by confidence
// descending, keeping only the max-confidence signal per (canonical, crm).
func (s *ScorerService) Score(ctx context.Context, lead NormalizedLead) ([]model.ScoredCandidate, error) {
	best := map[string]model.ScoredCandidate{}

	if lead.EmailNormalized != "" {
		refs, err := s.corpus.FindByEmailNormalized(ctx, lead.TenantID, lead.EmailNormalized)
		if err != nil {
			return nil, err
		}
		for _, ref := range refs {
			if ref.EmailNormalized == "" || ref.EmailNormalized != lead.EmailNormalized {
				continue
			}
			considerSignal(best, model.ScoredCandidate{
				CrmLeadID: ref.ID, AssignedUserID: ref.AssignedUserID, MatchType: model.MatchTypeEmailExact, Confidence: 1.00,
				Details: map[string]any{"email": lead.EmailNormalized},
			})
		}
	}

	if normalize.IsUsablePhoneKey(lead.PhoneNormalized) {
		refs, err := s.corpus.FindByPhoneNormalized(ctx, lead.TenantID, lead.PhoneNormalized)
		if err != nil {
			return nil, err
		}
		for _, ref := range refs {
			if !normalize.IsUsablePhoneKey(ref.PhoneNormalized) || ref.PhoneNormalized != lead.PhoneNormalized {
				continue
			}
			considerSignal(best, model.ScoredCandidate{
				CrmLeadID: ref.ID, AssignedUserID: ref.AssignedUserID, MatchType: model.MatchTypePhoneExact, Confidence: 0.95,
				Details: map[string]any{"phone": lead.PhoneNormalized},
			})
		}
	}

	if lead.AddressNormalized != "" {
		refs, err := s.corpus.FindByAddressTrigram(ctx, lead.TenantID, lead.AddressNormalized, DefaultCandidateLimit*4)
		if err != nil {
			return nil, err
		}
		for _, ref := range refs {
			if ref.AddressNormalized == "" {
				continue
			}
			similarity := normalize.TrigramSimilarity(lead.AddressNormalized, ref.AddressNormalized)
			if similarity <= addressFuzzyFloor {
				continue
			}
			considerSignal(best, model.ScoredCandidate{
				CrmLeadID: ref.ID, AssignedUserID: ref.AssignedUserID, MatchType: model.MatchTypeAddressFuzzy, Confidence: similarity,
				Details: map[string]any{"address_similarity": similarity},
			})
		}
	}

	out := make([]model.ScoredCandidate, 0, len(best))
	for _, c := range best {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Beats(out[j]) })
	if len(out) > DefaultCandidateLimit {
		out = out[:DefaultCandidateLimit]
	}
	return out, nil
}

func considerSignal(best map[string]model.ScoredCandidate, candidate model.ScoredCandidate) {
	existing, ok := best[candidate.CrmLeadID]
	if !ok || candidate.Beats(existing) {
		best[candidate.CrmLeadID] = candidate
	}
}
