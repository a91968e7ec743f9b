package contracts

import (
	"fmt"

	"github.com/teranos/factgate/errors"
)

// SliceMismatch describes a sentence whose text does not match its offsets.
type SliceMismatch struct {
	SentID string
	Reason string
}

func (m SliceMismatch) String() string {
	return fmt.Sprintf("sent_id=%s: %s", m.SentID, m.Reason)
}

// CheckSlices returns every sentence whose Text differs from the page text
// between CharStart and CharEnd. A nil page means page 1.
func CheckSlices(doc *ExtractedDoc, sents []Sentence) []SliceMismatch {
	pages := make([][]rune, len(doc.Pages))
	for i, p := range doc.Pages {
		pages[i] = []rune(p)
	}

	var out []SliceMismatch
	for _, s := range sents {
		page := 1
		if s.Page != nil && *s.Page != 0 {
			page = *s.Page
		}
		if page < 1 || page > len(pages) {
			out = append(out, SliceMismatch{s.SentID, fmt.Sprintf("page %d out of range", page)})
			continue
		}
		src := pages[page-1]
		if s.CharStart < 0 || s.CharEnd < s.CharStart || s.CharEnd > len(src) {
			out = append(out, SliceMismatch{s.SentID, fmt.Sprintf("offsets [%d,%d) outside page of %d chars", s.CharStart, s.CharEnd, len(src))})
			continue
		}
		if string(src[s.CharStart:s.CharEnd]) != s.Text {
			out = append(out, SliceMismatch{s.SentID, "text differs from page slice"})
		}
	}
	return out
}

// VerifySlices is CheckSlices as an error: nil when every sentence matches,
// otherwise an invalid-request error with one detail per mismatch.
func VerifySlices(doc *ExtractedDoc, sents []Sentence) error {
	bad := CheckSlices(doc, sents)
	if len(bad) == 0 {
		return nil
	}
	err := errors.NewInvalidRequestError("%d of %d sentences in %s do not slice back into the page text",
		len(bad), len(sents), doc.DocID)
	for _, m := range bad {
		err = errors.WithDetail(err, m.String())
	}
	return err
}
