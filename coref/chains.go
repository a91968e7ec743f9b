package coref

import (
	"github.com/teranos/factgate/internal/unionfind"
	"github.com/teranos/factgate/mention"
)

// Chain is a set of mentions in one document that refer to the same thing.
type Chain struct {
	DocID      string   `json:"doc_id"`
	ChainID    string   `json:"chain_id"`
	MentionIDs []string `json:"mention_ids"`
}

// BuildChains unions every (mention, antecedent) edge of resolved mentions
// and returns chains with at least two members. ChainID is the smallest
// member id.
func BuildChains(docID string, resolved []mention.Entity) []Chain {
	sets := unionfind.New()
	for i := range resolved {
		m := &resolved[i]
		if m.Coref == nil || m.Coref.AntecedentMentionID == "" {
			continue
		}
		sets.Union(m.MentionID, m.Coref.AntecedentMentionID)
	}

	var chains []Chain
	for _, members := range sets.Groups() {
		if len(members) < 2 {
			continue
		}
		chains = append(chains, Chain{DocID: docID, ChainID: members[0], MentionIDs: members})
	}
	return chains
}
