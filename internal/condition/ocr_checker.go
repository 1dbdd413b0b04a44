package condition

import (
	"context"

	"github.com/smilemakc/avtrace/internal/domain"
	"github.com/smilemakc/avtrace/internal/ocr"
)

// ocrChecker matches keywords against recognized screen text. It prefers an
// OCR backend's output (if configured) but always also considers the
// frame's accessibility-tree text, since xml-visible labels are free signal
// the image-based OCR pass doesn't need to rediscover. Each keyword goes
// through ocr.SmartContains, whose first tier is plain containment on the
// normalized text, followed by its fuzzier tiers.
//
// A backend error is treated as inconclusive, not fatal: the frame is
// reported unmatched and the scan continues, except when the error is the
// caller's own context cancellation/deadline, which propagates so the run
// actually stops.
type ocrChecker struct {
	backend      OCRBackend
	cacheEnabled bool
}

func newOCRChecker(backend OCRBackend, cacheEnabled bool) Checker {
	return &ocrChecker{backend: backend, cacheEnabled: cacheEnabled}
}

func (c *ocrChecker) Check(ctx context.Context, frames []*domain.Frame, idx int, spec domain.ConditionSpec) (bool, domain.Evidence, error) {
	frame := frames[idx]
	keywords := stringSlice(spec.Params, "any_of")
	if len(keywords) == 0 {
		keywords = stringSlice(spec.Params, "keywords")
	}
	if len(keywords) == 0 {
		return false, domain.Evidence{CheckerType: "ocr", Reason: "no keywords configured"}, nil
	}

	text := ocr.ExtractXMLText(frame.XMLText)
	if c.backend != nil {
		recognized, err := c.recognize(ctx, frame)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return false, domain.Evidence{CheckerType: "ocr", Reason: "ocr backend error: " + err.Error()}, ctxErr
			}
			return false, domain.Evidence{CheckerType: "ocr", Reason: "inconclusive: ocr backend error: " + err.Error()}, nil
		}
		if recognized != "" {
			text = text + " " + recognized
		}
	}

	var matched, unmatched []string
	for _, kw := range keywords {
		if ocr.SmartContains(text, kw) {
			matched = append(matched, kw)
		} else {
			unmatched = append(unmatched, kw)
		}
	}

	if len(matched) > 0 {
		return true, domain.Evidence{CheckerType: "ocr", MatchedKeywords: matched, UnmatchedKeywords: unmatched, Reason: "ocr text matched"}, nil
	}
	return false, domain.Evidence{CheckerType: "ocr", UnmatchedKeywords: unmatched, Reason: "ocr text did not match"}, nil
}

// recognize calls the backend, checking and populating the process-wide
// OCR cache around it when caching is enabled and the frame carries a
// screenshot to key on.
func (c *ocrChecker) recognize(ctx context.Context, frame *domain.Frame) (string, error) {
	if !c.cacheEnabled || len(frame.Screenshot) == 0 {
		return c.backend.OCR(ctx, frame)
	}

	cache := ocr.SharedCache()
	if cached, ok := cache.Get(frame.Screenshot); ok {
		return cached, nil
	}

	recognized, err := c.backend.OCR(ctx, frame)
	if err != nil {
		return "", err
	}
	cache.Put(frame.Screenshot, recognized)
	return recognized, nil
}
