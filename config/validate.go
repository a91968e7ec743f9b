package config

import (
	"strings"

	"github.com/teranos/factgate/errors"
	"github.com/teranos/factgate/link/external"
)

// Validate checks that the configuration is usable. Every failure is an
// invalid request.
func (c *Config) Validate() error {
	if c.Coref.MaxSentBack < 0 {
		return errors.NewInvalidRequestError("coref.max_sent_back must be >= 0, got %d", c.Coref.MaxSentBack)
	}
	if c.Coref.MaxMentionsBack < 0 {
		return errors.NewInvalidRequestError("coref.max_mentions_back must be >= 0, got %d", c.Coref.MaxMentionsBack)
	}

	for _, a := range c.Link.Adapters {
		if !external.IsKnown(strings.ToLower(strings.TrimSpace(a))) {
			return errors.WithHintf(
				errors.NewInvalidRequestError("link.adapters: unknown adapter %q", a),
				"supported adapters: %s", strings.Join(external.Known(), ", "))
		}
	}

	// Zero thresholds mean "use the schema's promotion defaults".
	if c.Promote.ConfThr < 0 || c.Promote.ConfThr > 1 {
		return errors.NewInvalidRequestError("promote.conf_thr must be in [0,1], got %v", c.Promote.ConfThr)
	}
	if c.Promote.MinEvidence < 0 {
		return errors.NewInvalidRequestError("promote.min_evidence must be >= 0, got %d", c.Promote.MinEvidence)
	}
	if c.Promote.MaxMentionSamples < 0 {
		return errors.NewInvalidRequestError("promote.max_mention_samples must be >= 0, got %d", c.Promote.MaxMentionSamples)
	}
	if c.Promote.MaxExamples < 0 {
		return errors.NewInvalidRequestError("promote.max_examples must be >= 0, got %d", c.Promote.MaxExamples)
	}
	return nil
}
