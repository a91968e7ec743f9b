package contracts

import (
	"encoding/json"
	"os"

	"go.uber.org/zap"

	"github.com/teranos/factgate/errors"
	"github.com/teranos/factgate/jsonl"
	"github.com/teranos/factgate/logger"
)

// LoadDoc reads one extractor output document.
func LoadDoc(path string) (*ExtractedDoc, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.WithHint(
				errors.NewInvalidRequestError("document %s does not exist", path),
				"pass the extractor's JSON output for one document")
		}
		return nil, errors.Wrapf(err, "read %s", path)
	}
	var doc ExtractedDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.WrapInvalidRequest(err, "decode document "+path)
	}
	return &doc, nil
}

// VerifyFiles checks the sentences in sentsPath that belong to the document
// at docPath and returns how many were checked. Sentences without a doc_id
// are taken to belong to it.
func VerifyFiles(docPath, sentsPath string, log *zap.SugaredLogger) (int, error) {
	log = logger.OrNop(log)
	doc, err := LoadDoc(docPath)
	if err != nil {
		return 0, err
	}
	sents, _, err := jsonl.ReadFile[Sentence](sentsPath, log)
	if err != nil {
		return 0, err
	}

	var own []Sentence
	for _, s := range sents {
		if s.DocID == "" || s.DocID == doc.DocID {
			own = append(own, s)
		}
	}
	if err := VerifySlices(doc, own); err != nil {
		return len(own), err
	}
	log.Infow("Sentence offsets verified",
		logger.FieldDocID, doc.DocID,
		logger.FieldCount, len(own),
	)
	return len(own), nil
}
