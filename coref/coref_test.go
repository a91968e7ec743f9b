package coref

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teranos/factgate/mention"
)

func mk(t *testing.T, doc, text string, start, end int, typ string, sent int) mention.Entity {
	t.Helper()
	line := fmt.Sprintf(`{"doc_id":%q,"chunk_id":"c1","text":%q,"start":%d,"end":%d,"type":%q,"sent_id":%d}`,
		doc, text, start, end, typ, sent)
	var e mention.Entity
	require.NoError(t, json.Unmarshal([]byte(line), &e))
	return e
}

func TestPersonalPronounsMapToLatestCompatible(t *testing.T) {
	ents := []mention.Entity{
		mk(t, "d1", "Jane", 0, 4, "PERSON", 0),
		mk(t, "d1", "Bob", 10, 13, "PERSON", 0),
		mk(t, "d1", "She", 15, 18, "PERSON", 1),
		mk(t, "d1", "him", 25, 28, "PERSON", 1),
	}
	out := Resolve(ents, DefaultOptions())

	assert.Equal(t, out[0].MentionID, out[2].Coref.AntecedentMentionID)
	assert.Equal(t, out[1].MentionID, out[3].Coref.AntecedentMentionID)
	assert.Equal(t, mention.RuleNearestCompatible, out[2].Coref.Rule)
	assert.InDelta(t, 0.75, out[2].Coref.Conf, 1e-9)
	assert.Equal(t, "jane", out[2].ResolvedEntityID)
	assert.Equal(t, "bob", out[3].ResolvedEntityID)

	assert.Equal(t, Fem, out[0].Coref.Gender)
	assert.Equal(t, Masc, out[1].Coref.Gender)
	assert.Equal(t, mention.RuleUnresolved, out[0].Coref.Rule)
	assert.Empty(t, out[0].Coref.AntecedentMentionID)
}

func TestDevicePreferredOverOrgForIt(t *testing.T) {
	ents := []mention.Entity{
		mk(t, "d2", "ACME", 0, 4, "ORG", 0),
		mk(t, "d2", "drone", 16, 21, "PRODUCT", 0),
		mk(t, "d2", "It", 24, 26, "PERSON", 1),
	}
	out := Resolve(ents, DefaultOptions())

	it := out[2].Coref
	assert.Equal(t, out[1].MentionID, it.AntecedentMentionID)
	assert.Equal(t, mention.RulePreferDeviceOverOrg, it.Rule)
	assert.InDelta(t, 0.85, it.Conf, 1e-9)
}

func TestDevicePreferredEvenWhenOrgIsCloser(t *testing.T) {
	ents := []mention.Entity{
		mk(t, "d2", "the prototype", 0, 13, "MISC", 0),
		mk(t, "d2", "ACME", 20, 24, "ORG", 0),
		mk(t, "d2", "it", 30, 32, "", 1),
	}
	out := Resolve(ents, DefaultOptions())
	assert.Equal(t, out[0].MentionID, out[2].Coref.AntecedentMentionID)
	assert.Equal(t, mention.RulePreferDeviceOverOrg, out[2].Coref.Rule)
}

func TestPluralAgreement(t *testing.T) {
	ents := []mention.Entity{
		mk(t, "d3", "battery packs", 4, 17, "PRODUCT", 0),
		mk(t, "d3", "They", 24, 28, "PERSON", 1),
	}
	out := Resolve(ents, DefaultOptions())

	assert.Equal(t, out[0].MentionID, out[1].Coref.AntecedentMentionID)
	assert.InDelta(t, 0.7, out[1].Coref.Conf, 1e-9)
	assert.Equal(t, Plural, out[1].Coref.Number)
}

func TestPluralRejectsSingularAndOrg(t *testing.T) {
	ents := []mention.Entity{
		mk(t, "d4", "Acme Systems", 0, 12, "ORG", 0),
		mk(t, "d4", "glass", 13, 18, "MATERIAL", 0),
		mk(t, "d4", "they", 20, 24, "", 0),
	}
	out := Resolve(ents, DefaultOptions())
	assert.Equal(t, mention.RuleUnresolved, out[2].Coref.Rule)
	assert.Zero(t, out[2].Coref.Conf)
	assert.Empty(t, out[2].ResolvedEntityID)
}

func TestWindowLimits(t *testing.T) {
	t.Run("sentence distance", func(t *testing.T) {
		ents := []mention.Entity{
			mk(t, "d5", "Mary", 0, 4, "PERSON", 0),
			mk(t, "d5", "she", 100, 103, "PERSON", 4),
		}
		out := Resolve(ents, DefaultOptions())
		assert.Equal(t, mention.RuleUnresolved, out[1].Coref.Rule)

		out = Resolve(ents, Options{MaxSentBack: 4, MaxMentionsBack: 30})
		assert.Equal(t, out[0].MentionID, out[1].Coref.AntecedentMentionID)
	})

	t.Run("mention count only counts in-window candidates", func(t *testing.T) {
		ents := []mention.Entity{
			mk(t, "d6", "Alice", 0, 5, "PERSON", 1),
			mk(t, "d6", "John", 10, 14, "PERSON", 1),
			mk(t, "d6", "far away", 20, 28, "MISC", 9),
			mk(t, "d6", "she", 30, 33, "PERSON", 2),
		}
		out := Resolve(ents, Options{MaxSentBack: 3, MaxMentionsBack: 2})
		assert.Equal(t, out[0].MentionID, out[3].Coref.AntecedentMentionID)

		out = Resolve(ents, Options{MaxSentBack: 3, MaxMentionsBack: 1})
		assert.Equal(t, mention.RuleUnresolved, out[3].Coref.Rule)
	})
}

func TestResolveNeverOverwritesAndDoesNotMutateInput(t *testing.T) {
	ents := []mention.Entity{
		mk(t, "d7", "Jane", 0, 4, "PERSON", 0),
		mk(t, "d7", "she", 5, 8, "PERSON", 0),
	}
	ents[1].ResolvedEntityID = "upstream"

	out := Resolve(ents, DefaultOptions())
	assert.Equal(t, "upstream", out[1].ResolvedEntityID)
	assert.Equal(t, out[0].MentionID, out[1].Coref.AntecedentMentionID)
	assert.Nil(t, ents[1].Coref)
}

func TestPronounChainsPropagateKey(t *testing.T) {
	ents := []mention.Entity{
		mk(t, "d8", "Karen", 0, 5, "PERSON", 0),
		mk(t, "d8", "she", 6, 9, "PERSON", 0),
		mk(t, "d8", "her", 10, 13, "PERSON", 1),
	}
	out := Resolve(ents, DefaultOptions())
	assert.Equal(t, out[1].MentionID, out[2].Coref.AntecedentMentionID)
	assert.Equal(t, "karen", out[2].ResolvedEntityID)

	chains := BuildChains("d8", out)
	require.Len(t, chains, 1)
	assert.Len(t, chains[0].MentionIDs, 3)
	assert.Equal(t, chains[0].MentionIDs[0], chains[0].ChainID)
}

func TestCandidateNumber(t *testing.T) {
	tests := []struct {
		text, typ, want string
	}{
		{"battery packs", "PRODUCT", Plural},
		{"Acme Systems", "ORG", Singular},
		{"Lockheed Martin Systems", "COMPANY", Plural},
		{"glass", "MATERIAL", Singular},
		{"bus", "VEHICLE", Singular},
		{"those", "", Plural},
		{"drone", "PRODUCT", Singular},
	}
	for _, tt := range tests {
		e := mention.Entity{Text: tt.text, Type: tt.typ}
		assert.Equal(t, tt.want, candidateNumber(&e), tt.text)
	}
}

func TestStageRun(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()

	lines := []string{
		`{"doc_id":"a","mention_id":"a1","text":"Jane","type":"PERSON","sent_id":0,"custom":"keep"}`,
		`{"doc_id":"b","mention_id":"b1","text":"drone","type":"PRODUCT","sent_id":0}`,
		`not json`,
		`{"doc_id":"a","mention_id":"a2","text":"She","type":"PERSON","sent_id":1}`,
		`{"doc_id":"b","mention_id":"b2","text":"It","type":"","sent_id":1}`,
	}
	require.NoError(t, os.MkdirAll(filepath.Join(in, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(in, "sub", "doc.entities.jsonl"), []byte(strings.Join(lines, "\n")+"\n"), 0o644))

	stage := NewStage(DefaultOptions(), zaptest.NewLogger(t).Sugar())
	var seen []string
	stage.OnFile = func(path string, done, total int) { seen = append(seen, path) }

	rep, err := stage.Run(context.Background(), in, out)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Files)
	assert.Equal(t, 2, rep.Docs)
	assert.Equal(t, 4, rep.Mentions)
	assert.Equal(t, 2, rep.Pronouns)
	assert.Equal(t, 2, rep.Resolved)
	assert.Equal(t, 2, rep.Chains)
	assert.Equal(t, 1, rep.Errors)
	assert.Len(t, seen, 1)

	data, err := os.ReadFile(filepath.Join(out, "sub", "doc.entities.jsonl"))
	require.NoError(t, err)
	got := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, got, 4)

	var first, she map[string]any
	require.NoError(t, json.Unmarshal([]byte(got[0]), &first))
	require.NoError(t, json.Unmarshal([]byte(got[2]), &she))
	assert.Equal(t, "keep", first["custom"])
	assert.Equal(t, "unresolved", first["coref_rule"])
	assert.Equal(t, "a1", she["antecedent_mention_id"])
	assert.Equal(t, "jane", she["resolved_entity_id"])

	chains, err := os.ReadFile(filepath.Join(out, "sub", "doc.chains.jsonl"))
	require.NoError(t, err)
	assert.Equal(t,
		`{"chain_id":"a1","doc_id":"a","mention_ids":["a1","a2"]}`+"\n"+
			`{"chain_id":"b1","doc_id":"b","mention_ids":["b1","b2"]}`+"\n",
		string(chains))
}

func TestStageSkipsNullRecords(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(in, "d.entities.jsonl"),
		[]byte(`{"doc_id":"d","type":"ORG","text":"ACME"}`+"\nnull\n"), 0o644))

	rep, err := NewStage(DefaultOptions(), zaptest.NewLogger(t).Sugar()).Run(context.Background(), in, out)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Mentions)
	assert.Equal(t, 1, rep.Errors)

	data, err := os.ReadFile(filepath.Join(out, "d.entities.jsonl"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], `"text":"ACME"`)
}
